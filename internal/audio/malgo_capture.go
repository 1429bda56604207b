package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/gen2brain/malgo"

	"voiceagent/internal/domain"
	"voiceagent/internal/pcm"
	"voiceagent/internal/ports"
)

// MalgoMicrophone captures from the platform input device through miniaudio.
type MalgoMicrophone struct {
	logger *slog.Logger
}

func NewMalgoMicrophone(logger *slog.Logger) *MalgoMicrophone {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &MalgoMicrophone{logger: logger}
}

func (m *MalgoMicrophone) Open(ctx context.Context, cfg ports.CaptureConfig, onFrame func([]float32)) (ports.CaptureStream, error) {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = pcm.CaptureSampleRate
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mctx, err := initContext(m.logger)
	if err != nil {
		return nil, err
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = uint32(cfg.Channels)
	deviceConfig.SampleRate = uint32(cfg.SampleRate)
	deviceConfig.Alsa.NoMMap = 1

	if name := cfg.InputDevice; name != "" && name != "default" {
		info, err := findCaptureDevice(mctx.Context, name)
		if err != nil {
			freeContext(mctx, m.logger)
			return nil, err
		}
		deviceConfig.Capture.DeviceID = info.ID.Pointer()
	}

	channels := cfg.Channels
	onData := func(_, input []byte, _ uint32) {
		samples := pcm.Float32FromLE(input)
		if channels > 1 {
			samples = downmix(samples, channels)
		}
		if len(samples) > 0 {
			onFrame(samples)
		}
	}

	device, err := malgo.InitDevice(mctx.Context, deviceConfig, malgo.DeviceCallbacks{Data: onData})
	if err != nil {
		freeContext(mctx, m.logger)
		return nil, classifyDeviceErr("open capture device", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		freeContext(mctx, m.logger)
		return nil, classifyDeviceErr("start capture device", err)
	}

	m.logger.Debug("capture started", "backend", "malgo", "sample_rate", cfg.SampleRate, "channels", cfg.Channels)
	return &malgoStream{context: mctx, device: device, logger: m.logger}, nil
}

type malgoStream struct {
	context *malgo.AllocatedContext
	device  *malgo.Device
	logger  *slog.Logger

	stopOnce sync.Once
	stopErr  error
}

func (s *malgoStream) Stop() error {
	s.stopOnce.Do(func() {
		if err := s.device.Stop(); err != nil && !errors.Is(err, malgo.ErrDeviceNotStarted) {
			s.stopErr = fmt.Errorf("stop capture device: %w", err)
		}
		s.device.Uninit()
		freeContext(s.context, s.logger)
	})
	return s.stopErr
}

func initContext(logger *slog.Logger) (*malgo.AllocatedContext, error) {
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		logger.Debug("miniaudio", "message", strings.TrimSpace(message))
	})
	if err != nil {
		return nil, classifyDeviceErr("init audio context", err)
	}
	return mctx, nil
}

func freeContext(mctx *malgo.AllocatedContext, logger *slog.Logger) {
	if err := mctx.Uninit(); err != nil {
		logger.Warn("audio context uninit failed", "err", err)
	}
	mctx.Free()
}

func findCaptureDevice(mctx malgo.Context, name string) (malgo.DeviceInfo, error) {
	infos, err := mctx.Devices(malgo.Capture)
	if err != nil {
		return malgo.DeviceInfo{}, classifyDeviceErr("list capture devices", err)
	}
	for _, info := range infos {
		if info.Name() == name {
			return info, nil
		}
	}
	return malgo.DeviceInfo{}, fmt.Errorf("%w: capture device %q not found", domain.ErrUnsupportedEnvironment, name)
}

func classifyDeviceErr(op string, err error) error {
	switch {
	case errors.Is(err, malgo.ErrAccessDenied):
		return fmt.Errorf("%w: %s: %v", domain.ErrPermissionDenied, op, err)
	case errors.Is(err, malgo.ErrNoBackend), errors.Is(err, malgo.ErrNoDevice):
		return fmt.Errorf("%w: %s: %v", domain.ErrUnsupportedEnvironment, op, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

// downmix averages interleaved frames into mono.
func downmix(samples []float32, channels int) []float32 {
	frames := len(samples) / channels
	mono := make([]float32, frames)
	for i := range mono {
		var sum float32
		for c := range channels {
			sum += samples[i*channels+c]
		}
		mono[i] = sum / float32(channels)
	}
	return mono
}

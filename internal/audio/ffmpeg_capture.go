package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"voiceagent/internal/domain"
	"voiceagent/internal/pcm"
	"voiceagent/internal/ports"
)

const (
	startupWindow = 250 * time.Millisecond
	stopGrace     = 1200 * time.Millisecond
	readChunk     = 4096
)

// FFMPEGMicrophone captures mono float32 PCM from an ffmpeg process.
type FFMPEGMicrophone struct {
	command string
	logger  *slog.Logger
}

func NewFFMPEGMicrophone(command string, logger *slog.Logger) *FFMPEGMicrophone {
	if command == "" {
		command = "ffmpeg"
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &FFMPEGMicrophone{command: command, logger: logger}
}

func (m *FFMPEGMicrophone) Open(ctx context.Context, cfg ports.CaptureConfig, onFrame func([]float32)) (ports.CaptureStream, error) {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = pcm.CaptureSampleRate
	}
	if cfg.InputFormat == "" {
		cfg.InputFormat = "pulse"
	}
	if cfg.InputDevice == "" {
		cfg.InputDevice = "default"
	}

	args := []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-f", cfg.InputFormat,
		"-i", cfg.InputDevice,
		"-ac", "1",
		"-ar", strconv.Itoa(cfg.SampleRate),
		"-f", "f32le",
		"-",
	}

	// Stop owns the process; a connect ctx cancelled later must not kill a live capture.
	cmd := exec.Command(m.command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create ffmpeg stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s not found", domain.ErrUnsupportedEnvironment, m.command)
		}
		return nil, fmt.Errorf("%w: failed to start ffmpeg: %v", domain.ErrUnsupportedEnvironment, err)
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
		close(waitErr)
	}()

	select {
	case err := <-waitErr:
		detail := stringsTrimSpaceSafe(stderr.String())
		if err != nil {
			return nil, fmt.Errorf("%w: ffmpeg exited before capture started: %v: %s", domain.ErrPermissionDenied, err, detail)
		}
		return nil, fmt.Errorf("%w: ffmpeg exited before capture started", domain.ErrPermissionDenied)
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		<-waitErr
		return nil, ctx.Err()
	case <-time.After(startupWindow):
	}

	stream := &ffmpegStream{
		stdout:     stdout,
		stderr:     &stderr,
		process:    cmd.Process,
		waitErr:    waitErr,
		readerDone: make(chan struct{}),
		logger:     m.logger,
	}
	go stream.read(onFrame)

	m.logger.Debug("capture started", "backend", "ffmpeg", "format", cfg.InputFormat, "device", cfg.InputDevice)
	return stream, nil
}

type ffmpegStream struct {
	stdout io.ReadCloser
	stderr *bytes.Buffer

	process    *os.Process
	waitErr    <-chan error
	readerDone chan struct{}
	logger     *slog.Logger

	stopOnce sync.Once
	stopErr  error
}

// read delivers whole samples; a sample split across reads is carried to the next one.
func (s *ffmpegStream) read(onFrame func([]float32)) {
	defer close(s.readerDone)

	buf := make([]byte, readChunk)
	carry := 0
	for {
		n, err := s.stdout.Read(buf[carry:])
		n += carry
		whole := n - n%4
		if whole > 0 {
			onFrame(pcm.Float32FromLE(buf[:whole]))
		}
		carry = copy(buf, buf[whole:n])
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
				s.logger.Warn("capture read failed", "backend", "ffmpeg", "err", err)
			}
			return
		}
	}
}

func (s *ffmpegStream) Stop() error {
	s.stopOnce.Do(func() {
		if s.process != nil {
			_ = s.process.Signal(os.Interrupt)
		}

		select {
		case err, ok := <-s.waitErr:
			if ok {
				s.stopErr = normalizeStopErr(err)
			}
		case <-time.After(stopGrace):
			if s.process != nil {
				_ = s.process.Kill()
			}
			err, ok := <-s.waitErr
			if ok {
				s.stopErr = normalizeStopErr(err)
			}
		}

		if closeErr := s.stdout.Close(); closeErr != nil && !errors.Is(closeErr, os.ErrClosed) {
			if s.stopErr == nil {
				s.stopErr = closeErr
			}
		}
		<-s.readerDone

		if s.stopErr != nil && s.stderr != nil && s.stderr.Len() > 0 {
			s.stopErr = fmt.Errorf("%w: %s", s.stopErr, stringsTrimSpaceSafe(s.stderr.String()))
		}
	})

	return s.stopErr
}

func normalizeStopErr(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}

func stringsTrimSpaceSafe(input string) string {
	if input == "" {
		return input
	}
	return string(bytes.TrimSpace([]byte(input)))
}

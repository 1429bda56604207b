package bootstrap

import (
	"fmt"
	"io"
	"log/slog"

	"voiceagent/internal/audio"
	"voiceagent/internal/config"
	"voiceagent/internal/logging"
	"voiceagent/internal/metrics"
	"voiceagent/internal/persona"
	"voiceagent/internal/ports"
	"voiceagent/internal/providers/gemini"
	"voiceagent/internal/usecase"
)

// Services is the assembled runtime graph.
type Services struct {
	Controller *usecase.SessionController
	Config     config.Config
	Persona    persona.Persona
	Logger     *slog.Logger
	Metrics    *metrics.Prometheus
}

// Build loads configuration and wires all backend dependencies for the current runtime.
// Logs go to logOutput (stderr when nil).
func Build(eventSink ports.EventSink, logOutput io.Writer, opts ...usecase.Option) (Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return Services{}, err
	}
	return BuildWithConfig(cfg, eventSink, logging.New(cfg.Logging, logOutput), opts...)
}

// BuildWithConfig wires the runtime graph from an already resolved configuration.
func BuildWithConfig(cfg config.Config, eventSink ports.EventSink, logger *slog.Logger, opts ...usecase.Option) (Services, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	p, err := persona.Load(cfg.Persona.Path)
	if err != nil {
		return Services{}, err
	}
	instruction, err := p.SystemInstruction()
	if err != nil {
		return Services{}, err
	}

	mic, speaker, err := audioBackend(cfg, logger)
	if err != nil {
		return Services{}, err
	}
	provider, err := liveProvider(cfg, logger)
	if err != nil {
		return Services{}, err
	}

	voice := cfg.Gemini.Voice
	if p.Voice != "" {
		voice = p.Voice
	}

	telemetry := metrics.NewPrometheus()
	options := append([]usecase.Option{
		usecase.WithLogger(logger),
		usecase.WithTelemetry(telemetry),
	}, opts...)

	controller := usecase.NewSessionController(
		mic,
		speaker,
		provider,
		eventSink,
		usecase.Config{
			Capture: ports.CaptureConfig{
				SampleRate:  cfg.Audio.CaptureSampleRate,
				Channels:    1,
				InputFormat: cfg.Audio.InputFormat,
				InputDevice: cfg.Audio.InputDevice,
			},
			Output: ports.OutputConfig{
				SampleRate: cfg.Audio.PlaybackSampleRate,
				Channels:   1,
			},
			Live: ports.LiveConfig{
				Model:               cfg.Gemini.Model,
				Voice:               voice,
				SystemInstruction:   instruction,
				ResponseModality:    "AUDIO",
				InputTranscription:  true,
				OutputTranscription: true,
				InputSampleRate:     cfg.Audio.CaptureSampleRate,
			},
			BlockSize:   cfg.Audio.BlockSize,
			SettleDelay: cfg.Session.SettleDelay,
		},
		options...,
	)

	logger.Debug("services wired",
		"transport", cfg.Gemini.Transport,
		"audio_backend", cfg.Audio.Backend,
		"model", cfg.Gemini.Model,
		"persona", p.Name,
	)

	return Services{
		Controller: controller,
		Config:     cfg,
		Persona:    p,
		Logger:     logger,
		Metrics:    telemetry,
	}, nil
}

func audioBackend(cfg config.Config, logger *slog.Logger) (ports.Microphone, ports.Speaker, error) {
	switch cfg.Audio.Backend {
	case config.BackendMalgo, "":
		return audio.NewMalgoMicrophone(logger), audio.NewOtoSpeaker(cfg.Audio.OutputBuffer, logger), nil
	case config.BackendFFmpeg:
		return audio.NewFFMPEGMicrophone(cfg.Audio.RecorderCommand, logger), audio.NewFFPlaySpeaker(cfg.Audio.PlayerCommand, logger), nil
	default:
		return nil, nil, fmt.Errorf("unknown audio backend %q", cfg.Audio.Backend)
	}
}

func liveProvider(cfg config.Config, logger *slog.Logger) (ports.LiveProvider, error) {
	providerCfg := gemini.Config{
		APIKey:        cfg.Gemini.APIKey,
		APIBaseURL:    cfg.Gemini.APIBaseURL,
		APIVersion:    cfg.Gemini.APIVersion,
		SendQueue:     cfg.Session.SendQueue,
		SendStreamEnd: cfg.Gemini.SendStreamEnd,
	}
	switch cfg.Gemini.Transport {
	case config.TransportSDK, "":
		return gemini.NewSDKProvider(providerCfg, logger), nil
	case config.TransportWebsocket:
		return gemini.NewWebsocketProvider(providerCfg, logger), nil
	default:
		return nil, fmt.Errorf("unknown gemini transport %q", cfg.Gemini.Transport)
	}
}

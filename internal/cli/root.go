package cli

import (
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"voiceagent/internal/audio"
	"voiceagent/internal/bootstrap"
	"voiceagent/internal/config"
	"voiceagent/internal/ports"
	"voiceagent/internal/usecase"
	"voiceagent/internal/version"
)

// BuildFunc assembles the runtime graph for a call.
type BuildFunc func(cfg config.Config, sink ports.EventSink, opts ...usecase.Option) (bootstrap.Services, error)

type Dependencies struct {
	Config config.Config
	Logger *slog.Logger

	Build       BuildFunc
	ListDevices func() ([]audio.Device, error)

	Stdin  io.Reader
	Stdout io.Writer
}

// NewDependencies returns production dependencies for cfg.
func NewDependencies(cfg config.Config, logger *slog.Logger) *Dependencies {
	return &Dependencies{
		Config: cfg,
		Logger: logger,
		Build: func(cfg config.Config, sink ports.EventSink, opts ...usecase.Option) (bootstrap.Services, error) {
			return bootstrap.BuildWithConfig(cfg, sink, logger, opts...)
		},
		ListDevices: func() ([]audio.Device, error) {
			return audio.ListCaptureDevices(logger)
		},
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
	}
}

func NewRootCmd(deps *Dependencies) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "voiceagent",
		Short:         "Talk to the real estate voice agent from the terminal",
		Long:          "A terminal client that streams your microphone to the Gemini Live API and plays the agent's voice back, with a live transcript.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.Version = version.Version
	rootCmd.SetVersionTemplate(version.Full() + "\n")

	rootCmd.AddCommand(NewCallCmd(deps))
	rootCmd.AddCommand(NewDevicesCmd(deps))
	rootCmd.AddCommand(NewPersonaCmd(deps))

	return rootCmd
}

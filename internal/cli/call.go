package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"voiceagent/internal/config"
	"voiceagent/internal/output"
	"voiceagent/internal/usecase"
)

func NewCallCmd(deps *Dependencies) *cobra.Command {
	var transport string
	var backend string
	var metricsAddr string
	var muted bool

	cmd := &cobra.Command{
		Use:   "call",
		Short: "Start a voice call with the agent",
		Long:  "Connect the microphone and speaker to the agent. Ctrl+C or q hangs up.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := deps.Config
			if transport != "" {
				cfg.Gemini.Transport = strings.ToLower(transport)
			}
			if backend != "" {
				cfg.Audio.Backend = strings.ToLower(backend)
			}
			if metricsAddr != "" {
				cfg.Metrics.Address = metricsAddr
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runCall(ctx, deps, cfg, muted)
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "", "Live API transport: sdk or websocket")
	cmd.Flags().StringVar(&backend, "backend", "", "Audio backend: malgo or ffmpeg")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	cmd.Flags().BoolVar(&muted, "muted", false, "Start with the microphone muted")

	return cmd
}

func runCall(ctx context.Context, deps *Dependencies, cfg config.Config, muted bool) error {
	formatter := output.NewFormatter(deps.Stdout)
	sink := output.NewTerminalSink(formatter)

	services, err := deps.Build(cfg, sink, usecase.WithMuted(muted))
	if err != nil {
		return err
	}
	controller := services.Controller

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if cfg.Metrics.Address != "" && services.Metrics != nil {
		go func() {
			if err := services.Metrics.Serve(ctx, cfg.Metrics.Address, services.Logger, nil); err != nil {
				formatter.Warning(err.Error())
			}
		}()
	}

	if err := controller.Connect(ctx); err != nil {
		if errors.Is(err, usecase.ErrConnectCancelled) {
			return nil
		}
		return fmt.Errorf("connect: %w", err)
	}
	defer controller.Disconnect()

	formatter.CallControls()
	quit := make(chan struct{})
	go readCommands(deps, controller, quit)

	select {
	case <-ctx.Done():
	case <-quit:
	case <-sink.Ended():
	}
	return nil
}

// readCommands handles m (toggle mute) and q (hang up). EOF on stdin leaves the call running.
func readCommands(deps *Dependencies, controller *usecase.SessionController, quit chan<- struct{}) {
	if deps.Stdin == nil {
		return
	}
	scanner := bufio.NewScanner(deps.Stdin)
	for scanner.Scan() {
		switch strings.ToLower(strings.TrimSpace(scanner.Text())) {
		case "m", "mute":
			controller.ToggleMute()
		case "q", "quit", "exit":
			close(quit)
			return
		}
	}
}

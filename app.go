package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"voiceagent/internal/bootstrap"
	"voiceagent/internal/config"
	"voiceagent/internal/domain"
	"voiceagent/internal/metrics"
	"voiceagent/internal/usecase"
)

const (
	eventState           = "voiceagent:state"
	eventSpeaking        = "voiceagent:speaking"
	eventMute            = "voiceagent:mute"
	eventTranscript      = "voiceagent:transcript"
	eventTranscriptReset = "voiceagent:transcript-reset"
	eventError           = "voiceagent:error"

	errorCodeStartup domain.ErrorCode = "startup"
)

// App is the Wails application root.
type App struct {
	ctx  context.Context
	emit func(ctx context.Context, name string, data ...interface{})

	controller  *usecase.SessionController
	cfg         config.Config
	personaName string
	logger      *slog.Logger
	bootErr     error
	stopMetrics context.CancelFunc
}

func NewApp() *App {
	return &App{emit: runtime.EventsEmit, logger: slog.New(slog.DiscardHandler)}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	services, err := bootstrap.Build(a, nil)
	if err != nil {
		a.bootErr = err
		a.emitEvent(eventError, map[string]string{
			"code":    string(errorCodeStartup),
			"message": "Startup failed",
		})
		return
	}

	a.cfg = services.Config
	a.controller = services.Controller
	a.personaName = services.Persona.Name
	a.logger = services.Logger

	if addr := a.cfg.Metrics.Address; addr != "" {
		a.startMetrics(ctx, services.Metrics, addr)
	}
	a.ConnectionStateChanged(domain.StateDisconnected, domain.ReasonIdle)
}

func (a *App) startMetrics(ctx context.Context, m *metrics.Prometheus, addr string) {
	metricsCtx, cancel := context.WithCancel(ctx)
	a.stopMetrics = cancel
	go func() {
		if err := m.Serve(metricsCtx, addr, a.logger, nil); err != nil {
			a.logger.Warn("metrics server stopped", "err", err)
		}
	}()
}

func (a *App) shutdown(_ context.Context) {
	if a.controller != nil {
		a.controller.Disconnect()
	}
	if a.stopMetrics != nil {
		a.stopMetrics()
	}
}

// Connect starts a call. Failures are reported by code; detail stays in the log.
func (a *App) Connect() (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	err := a.controller.Connect(a.ctx)
	if err != nil && !errors.Is(err, usecase.ErrConnectCancelled) {
		return a.controller.Status(), errors.New(domain.ClassifyConnectError(err).UserMessage())
	}
	return a.controller.Status(), nil
}

// Disconnect hangs up.
func (a *App) Disconnect() (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	a.controller.Disconnect()
	return a.controller.Status(), nil
}

// ToggleMute flips the microphone mute flag.
func (a *App) ToggleMute() (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	a.controller.ToggleMute()
	return a.controller.Status(), nil
}

// GetStatus returns the current call status.
func (a *App) GetStatus() domain.Status {
	if a.controller == nil {
		if a.bootErr != nil {
			return domain.Status{State: domain.StateError, Message: "Startup failed"}
		}
		return domain.Status{State: domain.StateDisconnected, Message: usecase.StatusMessage(domain.StateDisconnected, domain.ReasonIdle)}
	}
	return a.controller.Status()
}

// GetTranscript returns the committed conversation log.
func (a *App) GetTranscript() []domain.LogEntry {
	if a.controller == nil {
		return []domain.LogEntry{}
	}
	return a.controller.Transcript()
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	if a.bootErr != nil {
		return map[string]string{"error": "Startup failed"}
	}

	return map[string]string{
		"provider":     "Gemini Live",
		"transport":    a.cfg.Gemini.Transport,
		"model":        a.cfg.Gemini.Model,
		"voice":        a.cfg.Gemini.Voice,
		"persona":      a.personaName,
		"audioBackend": a.cfg.Audio.Backend,
		"audioInput":   a.cfg.Audio.InputDevice,
		"configFile":   a.cfg.Source,
	}
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return fmt.Errorf("startup failed: %w", a.bootErr)
	}
	if a.controller == nil {
		return fmt.Errorf("application is not initialized")
	}
	return nil
}

func (a *App) emitEvent(name string, data interface{}) {
	if a.ctx == nil || a.emit == nil {
		return
	}
	a.emit(a.ctx, name, data)
}

// ConnectionStateChanged emits call lifecycle updates to the frontend.
func (a *App) ConnectionStateChanged(state domain.ConnectionState, reason domain.StateReason) {
	a.emitEvent(eventState, map[string]string{
		"state":   string(state),
		"reason":  string(reason),
		"message": usecase.StatusMessage(state, reason),
	})
}

// SpeakingChanged drives the waveform.
func (a *App) SpeakingChanged(speaking bool) {
	a.emitEvent(eventSpeaking, map[string]bool{"speaking": speaking})
}

func (a *App) MuteChanged(muted bool) {
	a.emitEvent(eventMute, map[string]bool{"muted": muted})
}

// TranscriptAppended emits newly committed transcript entries.
func (a *App) TranscriptAppended(entries []domain.LogEntry) {
	a.emitEvent(eventTranscript, entries)
}

func (a *App) TranscriptCleared() {
	a.emitEvent(eventTranscriptReset, nil)
}

// SessionError emits a user-facing error. Raw detail is never sent to the UI.
func (a *App) SessionError(code domain.ErrorCode) {
	a.emitEvent(eventError, map[string]string{
		"code":    string(code),
		"message": code.UserMessage(),
	})
}

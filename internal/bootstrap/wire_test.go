package bootstrap

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"voiceagent/internal/audio"
	"voiceagent/internal/config"
	"voiceagent/internal/domain"
	"voiceagent/internal/providers/gemini"
)

func TestBuildSuccess(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("VOICEAGENT_CONFIG", "")
	t.Setenv("VOICEAGENT_PERSONA_FILE", "")
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("VOICEAGENT_LOG_LEVEL", "debug")

	var logs bytes.Buffer
	services, err := Build(noopEventSink{}, &logs)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if services.Controller == nil || services.Metrics == nil {
		t.Fatalf("expected controller and metrics")
	}
	if services.Persona.Name != "Pelumi AI" {
		t.Fatalf("unexpected persona: %+v", services.Persona)
	}
	if !strings.Contains(logs.String(), "services wired") {
		t.Fatalf("expected wiring log, got %q", logs.String())
	}
	if status := services.Controller.Status(); status.State != domain.StateDisconnected {
		t.Fatalf("unexpected initial status: %+v", status)
	}
}

func TestBuildFailsOnInvalidPersona(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "persona.yaml")
	if err := os.WriteFile(path, []byte("packages: [not: valid: yaml\n"), 0o600); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	cfg := config.Defaults()
	cfg.Persona.Path = path

	if _, err := BuildWithConfig(cfg, noopEventSink{}, nil); err == nil {
		t.Fatalf("expected build error due to invalid persona")
	}
}

func TestBuildSelectsBackends(t *testing.T) {
	t.Parallel()

	cfg := config.Defaults()
	mic, speaker, err := audioBackend(cfg, nil)
	if err != nil {
		t.Fatalf("backend failed: %v", err)
	}
	if _, ok := mic.(*audio.MalgoMicrophone); !ok {
		t.Fatalf("expected malgo microphone, got %T", mic)
	}
	if _, ok := speaker.(*audio.OtoSpeaker); !ok {
		t.Fatalf("expected oto speaker, got %T", speaker)
	}

	cfg.Audio.Backend = config.BackendFFmpeg
	mic, speaker, _ = audioBackend(cfg, nil)
	if _, ok := mic.(*audio.FFMPEGMicrophone); !ok {
		t.Fatalf("expected ffmpeg microphone, got %T", mic)
	}
	if _, ok := speaker.(*audio.FFPlaySpeaker); !ok {
		t.Fatalf("expected ffplay speaker, got %T", speaker)
	}

	provider, err := liveProvider(cfg, nil)
	if err != nil {
		t.Fatalf("provider failed: %v", err)
	}
	if _, ok := provider.(*gemini.SDKProvider); !ok {
		t.Fatalf("expected sdk provider, got %T", provider)
	}
	cfg.Gemini.Transport = config.TransportWebsocket
	provider, _ = liveProvider(cfg, nil)
	if _, ok := provider.(*gemini.WebsocketProvider); !ok {
		t.Fatalf("expected websocket provider, got %T", provider)
	}

	cfg.Gemini.Transport = "smoke-signals"
	if _, err := liveProvider(cfg, nil); err == nil {
		t.Fatalf("expected unknown transport error")
	}
}

type noopEventSink struct{}

func (noopEventSink) ConnectionStateChanged(domain.ConnectionState, domain.StateReason) {}
func (noopEventSink) SpeakingChanged(bool)                                             {}
func (noopEventSink) MuteChanged(bool)                                                 {}
func (noopEventSink) TranscriptAppended([]domain.LogEntry)                             {}
func (noopEventSink) TranscriptCleared()                                               {}
func (noopEventSink) SessionError(domain.ErrorCode)                                    {}

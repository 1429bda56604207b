package main

import (
	"context"
	"errors"
	"sync"
	"testing"

	"voiceagent/internal/domain"
)

type emitted struct {
	name string
	data interface{}
}

type emitRecorder struct {
	mu     sync.Mutex
	events []emitted
}

func (r *emitRecorder) emit(_ context.Context, name string, data ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var payload interface{}
	if len(data) > 0 {
		payload = data[0]
	}
	r.events = append(r.events, emitted{name: name, data: payload})
}

func (r *emitRecorder) last(t *testing.T) emitted {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		t.Fatalf("no events emitted")
	}
	return r.events[len(r.events)-1]
}

func newRecordingApp() (*App, *emitRecorder) {
	rec := &emitRecorder{}
	app := NewApp()
	app.ctx = context.Background()
	app.emit = rec.emit
	return app, rec
}

func TestConnectionStateEventCarriesMessage(t *testing.T) {
	t.Parallel()

	cases := []struct {
		state  domain.ConnectionState
		reason domain.StateReason
		want   string
	}{
		{domain.StateConnecting, domain.ReasonConnecting, "Connecting to secure line..."},
		{domain.StateConnected, domain.ReasonSessionOpened, "Connected"},
		{domain.StateDisconnected, domain.ReasonHungUp, "Call ended"},
		{domain.StateError, domain.ReasonConnectFailed, "Connection Failed"},
	}
	for _, tc := range cases {
		t.Run(string(tc.state), func(t *testing.T) {
			t.Parallel()
			app, rec := newRecordingApp()
			app.ConnectionStateChanged(tc.state, tc.reason)

			event := rec.last(t)
			payload, ok := event.data.(map[string]string)
			if event.name != eventState || !ok {
				t.Fatalf("unexpected event: %+v", event)
			}
			if payload["state"] != string(tc.state) || payload["message"] != tc.want {
				t.Fatalf("unexpected payload: %v", payload)
			}
		})
	}
}

func TestSessionErrorOmitsDetail(t *testing.T) {
	t.Parallel()

	app, rec := newRecordingApp()
	app.SessionError(domain.ErrorCodeSessionOpen)

	event := rec.last(t)
	payload := event.data.(map[string]string)
	if event.name != eventError || payload["code"] != "session_open" || payload["message"] != "Could not reach the agent" {
		t.Fatalf("unexpected error event: %+v", event)
	}
	if _, ok := payload["detail"]; ok {
		t.Fatalf("error event must not carry detail")
	}
}

func TestTranscriptAndIndicatorEvents(t *testing.T) {
	t.Parallel()

	app, rec := newRecordingApp()
	entries := []domain.LogEntry{{Role: domain.RoleUser, Text: "hi"}}
	app.TranscriptAppended(entries)
	if event := rec.last(t); event.name != eventTranscript || len(event.data.([]domain.LogEntry)) != 1 {
		t.Fatalf("unexpected transcript event: %+v", event)
	}

	app.TranscriptCleared()
	if event := rec.last(t); event.name != eventTranscriptReset {
		t.Fatalf("unexpected reset event: %+v", event)
	}

	app.SpeakingChanged(true)
	if event := rec.last(t); event.name != eventSpeaking || !event.data.(map[string]bool)["speaking"] {
		t.Fatalf("unexpected speaking event: %+v", event)
	}

	app.MuteChanged(true)
	if event := rec.last(t); event.name != eventMute || !event.data.(map[string]bool)["muted"] {
		t.Fatalf("unexpected mute event: %+v", event)
	}
}

func TestEventsBeforeStartupAreDropped(t *testing.T) {
	t.Parallel()

	rec := &emitRecorder{}
	app := NewApp()
	app.emit = rec.emit
	app.SpeakingChanged(true)
	if len(rec.events) != 0 {
		t.Fatalf("expected no events without a runtime context")
	}
}

func TestRequireReady(t *testing.T) {
	t.Parallel()

	app := &App{}
	if err := app.requireReady(); err == nil {
		t.Fatalf("expected uninitialized error")
	}

	bootErr := errors.New("boot")
	app.bootErr = bootErr
	if err := app.requireReady(); !errors.Is(err, bootErr) {
		t.Fatalf("expected boot error, got %v", err)
	}
	if _, err := app.Connect(); !errors.Is(err, bootErr) {
		t.Fatalf("connect should fail before startup, got %v", err)
	}
}

func TestGetStatusWhenNotInitialized(t *testing.T) {
	t.Parallel()

	app := &App{}
	status := app.GetStatus()
	if status.State != domain.StateDisconnected || status.Message != "Ready" {
		t.Fatalf("unexpected status: %+v", status)
	}
	if transcript := app.GetTranscript(); transcript == nil || len(transcript) != 0 {
		t.Fatalf("expected empty transcript, got %v", transcript)
	}

	app.bootErr = errors.New("secret detail")
	status = app.GetStatus()
	if status.State != domain.StateError || status.Message != "Startup failed" {
		t.Fatalf("unexpected boot status: %+v", status)
	}
	if info := app.GetRuntimeInfo(); info["error"] != "Startup failed" {
		t.Fatalf("unexpected runtime info: %v", info)
	}
}

package ports

import (
	"context"
	"time"

	"voiceagent/internal/domain"
	"voiceagent/internal/pcm"
)

// CaptureConfig describes how the microphone should be captured.
type CaptureConfig struct {
	SampleRate  int
	Channels    int
	InputFormat string
	InputDevice string
}

// CaptureStream is a running microphone stream.
type CaptureStream interface {
	Stop() error
}

// Microphone opens capture streams. onFrame receives mono float samples in capture order
// from the device goroutine; frame lengths are whatever the device delivers.
type Microphone interface {
	Open(ctx context.Context, cfg CaptureConfig, onFrame func(samples []float32)) (CaptureStream, error)
}

// OutputConfig describes the playback sink.
type OutputConfig struct {
	SampleRate int
	Channels   int
}

// PlaybackSource is one scheduled buffer. Stop is a no-op once playback finished.
type PlaybackSource interface {
	Stop()
}

// OutputSink plays buffers against its own monotonic output clock.
type OutputSink interface {
	CurrentTime() time.Duration
	Play(buf pcm.Buffer, at time.Duration, onEnded func()) (PlaybackSource, error)
	Close() error
}

// Speaker opens output sinks.
type Speaker interface {
	Open(ctx context.Context, cfg OutputConfig) (OutputSink, error)
}

// LiveConfig describes the remote conversational session.
type LiveConfig struct {
	Model               string
	Voice               string
	SystemInstruction   string
	ResponseModality    string
	InputTranscription  bool
	OutputTranscription bool
	InputSampleRate     int
}

// LiveSession is an open bidirectional session with the remote service.
type LiveSession interface {
	SendAudio(chunk pcm.Blob) error
	Events() <-chan domain.SessionEvent
	Close() error
}

// LiveProvider opens live sessions.
type LiveProvider interface {
	Open(ctx context.Context, cfg LiveConfig) (LiveSession, error)
}

// EventSink receives state for the presentation layer. Calls are synchronous and must not
// call back into the controller.
type EventSink interface {
	ConnectionStateChanged(state domain.ConnectionState, reason domain.StateReason)
	SpeakingChanged(speaking bool)
	MuteChanged(muted bool)
	TranscriptAppended(entries []domain.LogEntry)
	TranscriptCleared()
	SessionError(code domain.ErrorCode)
}

// Telemetry records pipeline counters.
type Telemetry interface {
	ConnectionState(state domain.ConnectionState)
	ConnectAttempt(result string)
	ChunkSent()
	ChunkDropped(reason string)
	ChunkScheduled(duration time.Duration)
	PayloadRejected()
	Interrupted()
	TurnCommitted(entries int)
}

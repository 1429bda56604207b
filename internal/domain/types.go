package domain

import (
	"errors"
	"time"
)

// ConnectionState models the call lifecycle.
type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
	StateError        ConnectionState = "error"
)

// StateReason provides a structured reason for state transitions.
type StateReason string

const (
	ReasonIdle          StateReason = "idle"
	ReasonConnecting    StateReason = "connecting"
	ReasonSessionOpened StateReason = "session_opened"
	ReasonHungUp        StateReason = "hung_up"
	ReasonRemoteClosed  StateReason = "remote_closed"
	ReasonConnectFailed StateReason = "connect_failed"
	ReasonSessionFailed StateReason = "session_failed"
)

// ErrorCode identifies user-visible error categories.
type ErrorCode string

const (
	ErrorCodePermissionDenied       ErrorCode = "permission_denied"
	ErrorCodeSessionOpen            ErrorCode = "session_open"
	ErrorCodeSessionRuntime         ErrorCode = "session_runtime"
	ErrorCodeUnsupportedEnvironment ErrorCode = "unsupported_environment"
	ErrorCodeDecode                 ErrorCode = "decode"
	ErrorCodeAudioStream            ErrorCode = "audio_stream"
)

// UserMessage is the text shown for the code. Raw error detail never reaches the user.
func (c ErrorCode) UserMessage() string {
	switch c {
	case ErrorCodePermissionDenied:
		return "Microphone access was denied"
	case ErrorCodeSessionOpen:
		return "Could not reach the agent"
	case ErrorCodeSessionRuntime:
		return "The call was interrupted"
	case ErrorCodeUnsupportedEnvironment:
		return "Audio devices are not available"
	case ErrorCodeDecode:
		return "Some agent audio could not be played"
	case ErrorCodeAudioStream:
		return "Audio streaming issue"
	default:
		return "Unknown error"
	}
}

var (
	ErrPermissionDenied       = errors.New("microphone permission denied")
	ErrSessionOpen            = errors.New("failed to open live session")
	ErrSessionRuntime         = errors.New("live session failed")
	ErrUnsupportedEnvironment = errors.New("audio devices are not available")
	ErrOutputClosed           = errors.New("audio output closed")

	// ErrSendQueueFull reports an outbound chunk dropped because the session writer is behind.
	ErrSendQueueFull = errors.New("live session send queue full")
)

// ClassifyError maps an error from the connect sequence or a running session onto an ErrorCode.
func ClassifyError(err error) ErrorCode {
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return ErrorCodePermissionDenied
	case errors.Is(err, ErrUnsupportedEnvironment):
		return ErrorCodeUnsupportedEnvironment
	case errors.Is(err, ErrSessionOpen):
		return ErrorCodeSessionOpen
	case errors.Is(err, ErrOutputClosed):
		return ErrorCodeAudioStream
	default:
		return ErrorCodeSessionRuntime
	}
}

// ClassifyConnectError is ClassifyError for a failure before the session opened. Anything
// outside the taxonomy counts as a failure to open.
func ClassifyConnectError(err error) ErrorCode {
	code := ClassifyError(err)
	if code == ErrorCodeSessionRuntime && !errors.Is(err, ErrSessionRuntime) {
		return ErrorCodeSessionOpen
	}
	return code
}

// Role identifies the speaker of a transcript entry.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

// InterruptedMarker is logged in place of an agent utterance cut off by the user.
const InterruptedMarker = "[Interrupted]"

// LogEntry is one committed line of the conversation transcript.
type LogEntry struct {
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Status summarizes what the presentation layer renders.
type Status struct {
	State    ConnectionState `json:"state"`
	Speaking bool            `json:"speaking"`
	Muted    bool            `json:"muted"`
	Message  string          `json:"message,omitempty"`
}

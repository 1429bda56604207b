package domain

// SessionEventKind identifies what a live session reported.
type SessionEventKind string

const (
	SessionOpened  SessionEventKind = "opened"
	SessionMessage SessionEventKind = "message"
	SessionClosed  SessionEventKind = "closed"
	SessionError   SessionEventKind = "error"
)

// SessionEvent is one item of a live session's inbound stream.
type SessionEvent struct {
	Kind    SessionEventKind
	Message *ServerMessage
	Err     error
}

// ServerMessage is the provider-neutral content of one server message.
type ServerMessage struct {
	InputTranscript  string
	OutputTranscript string
	Audio            []AudioPayload
	TurnComplete     bool
	Interrupted      bool
}

// AudioPayload is synthesized speech still in wire form: base64 PCM tagged with its mime type.
type AudioPayload struct {
	MIMEType string
	Data     string
}

package output

import (
	"sync"

	"voiceagent/internal/domain"
)

// TerminalSink prints controller events and reports when the call ends on its own.
type TerminalSink struct {
	formatter *Formatter

	endOnce sync.Once
	ended   chan struct{}
}

func NewTerminalSink(formatter *Formatter) *TerminalSink {
	return &TerminalSink{formatter: formatter, ended: make(chan struct{})}
}

// Ended closes when the remote side closes the call or the session fails.
func (s *TerminalSink) Ended() <-chan struct{} {
	return s.ended
}

func (s *TerminalSink) ConnectionStateChanged(state domain.ConnectionState, reason domain.StateReason) {
	s.formatter.State(state, reason)
	if state == domain.StateError || (state == domain.StateDisconnected && reason == domain.ReasonRemoteClosed) {
		s.endOnce.Do(func() { close(s.ended) })
	}
}

func (s *TerminalSink) SpeakingChanged(speaking bool) {
	s.formatter.Speaking(speaking)
}

func (s *TerminalSink) MuteChanged(muted bool) {
	s.formatter.Mute(muted)
}

func (s *TerminalSink) TranscriptAppended(entries []domain.LogEntry) {
	for _, entry := range entries {
		s.formatter.TranscriptEntry(entry)
	}
}

func (s *TerminalSink) TranscriptCleared() {}

func (s *TerminalSink) SessionError(code domain.ErrorCode) {
	s.formatter.SessionError(code)
}

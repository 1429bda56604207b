package usecase

import (
	"errors"

	"voiceagent/internal/domain"
)

// dispatch consumes one session's events in arrival order until a terminal event.
func (c *SessionController) dispatch(active *activeSession) {
	defer close(active.dispatchDone)

	for event := range active.live.Events() {
		switch event.Kind {
		case domain.SessionOpened:
			c.handleOpened(active)
		case domain.SessionMessage:
			if event.Message != nil {
				c.handleMessage(active, event.Message)
			}
		case domain.SessionClosed:
			c.endSession(active, domain.StateDisconnected, domain.ReasonRemoteClosed, nil)
			return
		case domain.SessionError:
			c.endSession(active, domain.StateError, domain.ReasonSessionFailed, event.Err)
			return
		}
	}

	// Stream ended without a terminal event; only a local close does that.
	c.endSession(active, domain.StateDisconnected, domain.ReasonRemoteClosed, nil)
}

func (c *SessionController) handleOpened(active *activeSession) {
	c.mu.Lock()
	if c.current != active {
		c.mu.Unlock()
		return
	}
	c.setStateLocked(domain.StateConnected, domain.ReasonSessionOpened)
	active.pipeline.Bind(active.live)
	c.mu.Unlock()

	active.logger.Info("live session opened")
	c.telemetry.ConnectAttempt("opened")
}

// handleMessage applies one server message: transcripts, then turn completion, then audio,
// then interruption.
func (c *SessionController) handleMessage(active *activeSession, msg *domain.ServerMessage) {
	if !c.isCurrent(active) {
		return
	}

	active.transcript.AddUser(msg.InputTranscript)
	active.transcript.AddAgent(msg.OutputTranscript)

	if msg.TurnComplete {
		entries := active.transcript.Commit(c.now())
		if c.appendLog(active, entries) {
			c.telemetry.TurnCommitted(len(entries))
		}
		c.setSpeaking(active, false)
	}

	for _, payload := range msg.Audio {
		if _, err := active.scheduler.Enqueue(payload); err != nil {
			active.logger.Warn("dropping audio payload", "mime_type", payload.MIMEType, "err", err)
			c.telemetry.PayloadRejected()
			code := domain.ErrorCodeDecode
			if errors.Is(err, domain.ErrOutputClosed) {
				code = domain.ErrorCodeAudioStream
			}
			c.reportError(active, code)
		}
	}

	if msg.Interrupted {
		active.scheduler.HardStop()
		active.transcript.DiscardAgent()
		c.appendLog(active, []domain.LogEntry{{
			Role:      domain.RoleAgent,
			Text:      domain.InterruptedMarker,
			Timestamp: c.now(),
		}})
		c.telemetry.Interrupted()
		active.logger.Debug("agent interrupted")
	}
}

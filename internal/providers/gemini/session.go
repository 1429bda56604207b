package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"voiceagent/internal/domain"
	"voiceagent/internal/pcm"
)

// ErrSessionClosed is returned by SendAudio after Close.
var ErrSessionClosed = errors.New("live session closed")

const closeGrace = time.Second

// inbound is one server message reduced to what the call pipeline consumes.
type inbound struct {
	setupComplete bool
	content       *domain.ServerMessage
	goAway        *time.Duration
}

// transport is one Live API connection. Receive is called from a single reader and the send
// methods from a single writer; Close may be called concurrently with both.
type transport interface {
	Receive() (inbound, error)
	SendAudio(chunk pcm.Blob) error
	SendAudioStreamEnd() error
	Close() error
}

type sessionOptions struct {
	queueSize     int
	sendStreamEnd bool
	logger        *slog.Logger
}

// liveSession adapts a transport to ports.LiveSession: a bounded outbound queue drained by one
// writer, and an ordered event stream fed by one reader.
type liveSession struct {
	transport     transport
	sendStreamEnd bool
	logger        *slog.Logger

	events     chan domain.SessionEvent
	audio      chan pcm.Blob
	closing    chan struct{}
	writerDone chan struct{}

	wg           sync.WaitGroup
	closeOnce    sync.Once
	terminalOnce sync.Once

	openMu sync.Mutex
	opened bool
}

func newLiveSession(ctx context.Context, t transport, opts sessionOptions) *liveSession {
	if opts.queueSize <= 0 {
		opts.queueSize = 32
	}
	if opts.logger == nil {
		opts.logger = slog.New(slog.DiscardHandler)
	}

	s := &liveSession{
		transport:     t,
		sendStreamEnd: opts.sendStreamEnd,
		logger:        opts.logger,
		events:        make(chan domain.SessionEvent, 16),
		audio:         make(chan pcm.Blob, opts.queueSize),
		closing:       make(chan struct{}),
		writerDone:    make(chan struct{}),
	}

	s.wg.Add(2)
	go s.readLoop()
	go s.writeLoop()
	go func() {
		s.wg.Wait()
		close(s.events)
	}()
	go func() {
		select {
		case <-ctx.Done():
			_ = s.Close()
		case <-s.closing:
		}
	}()
	return s
}

func (s *liveSession) SendAudio(chunk pcm.Blob) error {
	select {
	case <-s.closing:
		return ErrSessionClosed
	default:
	}

	select {
	case s.audio <- chunk:
		return nil
	case <-s.closing:
		return ErrSessionClosed
	default:
		return domain.ErrSendQueueFull
	}
}

func (s *liveSession) Events() <-chan domain.SessionEvent {
	return s.events
}

// Close stops both loops. A local close emits no terminal event.
func (s *liveSession) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closing)

		timer := time.NewTimer(closeGrace)
		select {
		case <-s.writerDone:
		case <-timer.C:
			s.logger.Warn("live session writer did not stop in time")
		}
		timer.Stop()

		err = s.transport.Close()
	})
	return err
}

func (s *liveSession) writeLoop() {
	defer s.wg.Done()
	defer close(s.writerDone)

	for {
		select {
		case <-s.closing:
			if s.sendStreamEnd {
				if err := s.transport.SendAudioStreamEnd(); err != nil {
					s.logger.Debug("audio stream end not delivered", "err", err)
				}
			}
			return
		case chunk := <-s.audio:
			if err := s.transport.SendAudio(chunk); err != nil {
				s.terminate(fmt.Errorf("%w: send audio: %v", domain.ErrSessionRuntime, err), false)
				return
			}
		}
	}
}

func (s *liveSession) readLoop() {
	defer s.wg.Done()

	for {
		msg, err := s.transport.Receive()
		if err != nil {
			select {
			case <-s.closing:
				return
			default:
			}
			s.terminate(err, isNormalClose(err))
			return
		}

		if msg.goAway != nil {
			s.logger.Warn("live session will be closed by the server", "time_left", msg.goAway.String())
		}
		if msg.setupComplete {
			s.openMu.Lock()
			s.opened = true
			s.openMu.Unlock()
			s.emit(domain.SessionEvent{Kind: domain.SessionOpened})
		}
		if msg.content != nil && !isEmpty(msg.content) {
			s.emit(domain.SessionEvent{Kind: domain.SessionMessage, Message: msg.content})
		}
	}
}

// terminate emits the single terminal event of the session.
func (s *liveSession) terminate(err error, normal bool) {
	s.terminalOnce.Do(func() {
		if normal {
			s.emit(domain.SessionEvent{Kind: domain.SessionClosed})
			return
		}

		s.openMu.Lock()
		opened := s.opened
		s.openMu.Unlock()

		switch {
		case errors.Is(err, domain.ErrSessionRuntime):
		case opened:
			err = fmt.Errorf("%w: %v", domain.ErrSessionRuntime, err)
		default:
			err = fmt.Errorf("%w: %v", domain.ErrSessionOpen, err)
		}
		s.emit(domain.SessionEvent{Kind: domain.SessionError, Err: err})
	})
}

func (s *liveSession) emit(event domain.SessionEvent) {
	select {
	case s.events <- event:
	case <-s.closing:
	}
}

func isNormalClose(err error) bool {
	var closeErr *websocket.CloseError
	if !errors.As(err, &closeErr) {
		return false
	}
	return closeErr.Code == websocket.CloseNormalClosure || closeErr.Code == websocket.CloseGoingAway
}

func isEmpty(msg *domain.ServerMessage) bool {
	return msg.InputTranscript == "" &&
		msg.OutputTranscript == "" &&
		len(msg.Audio) == 0 &&
		!msg.TurnComplete &&
		!msg.Interrupted
}

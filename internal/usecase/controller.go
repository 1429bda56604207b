package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"voiceagent/internal/domain"
	"voiceagent/internal/pcm"
	"voiceagent/internal/ports"
)

// ErrConnectCancelled is returned by a Connect that was superseded by Disconnect or a newer Connect.
var ErrConnectCancelled = errors.New("connect cancelled")

// Config controls the realtime call pipeline.
type Config struct {
	Capture     ports.CaptureConfig
	Output      ports.OutputConfig
	Live        ports.LiveConfig
	BlockSize   int
	SettleDelay time.Duration
}

// Option customizes a SessionController.
type Option func(*SessionController)

func WithLogger(logger *slog.Logger) Option {
	return func(c *SessionController) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithTelemetry(telemetry ports.Telemetry) Option {
	return func(c *SessionController) {
		if telemetry != nil {
			c.telemetry = telemetry
		}
	}
}

// WithClock replaces the wall clock used for transcript timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *SessionController) {
		if now != nil {
			c.now = now
		}
	}
}

// WithMuted sets the initial mute flag.
func WithMuted(muted bool) Option {
	return func(c *SessionController) {
		c.muted.Store(muted)
	}
}

// SessionController owns the call lifecycle: it acquires devices and the live session on
// Connect, dispatches inbound session events, and tears everything down on Disconnect.
//
// Lock order is scheduler, then controller, then pipeline. The controller never calls into a
// scheduler while holding mu.
type SessionController struct {
	mic       ports.Microphone
	speaker   ports.Speaker
	provider  ports.LiveProvider
	events    ports.EventSink
	telemetry ports.Telemetry
	logger    *slog.Logger
	now       func() time.Time
	cfg       Config

	muted atomic.Bool

	mu         sync.Mutex
	state      domain.ConnectionState
	reason     domain.StateReason
	generation uint64
	pending    context.CancelFunc
	current    *activeSession
	log        []domain.LogEntry
	speaking   bool
}

func NewSessionController(
	mic ports.Microphone,
	speaker ports.Speaker,
	provider ports.LiveProvider,
	events ports.EventSink,
	cfg Config,
	opts ...Option,
) *SessionController {
	if cfg.BlockSize < minBlockSize {
		cfg.BlockSize = defaultBlockSize
	}
	if cfg.Capture.SampleRate <= 0 {
		cfg.Capture.SampleRate = pcm.CaptureSampleRate
	}
	if cfg.Capture.Channels <= 0 {
		cfg.Capture.Channels = 1
	}
	if cfg.Output.SampleRate <= 0 {
		cfg.Output.SampleRate = pcm.PlaybackSampleRate
	}
	if cfg.Output.Channels <= 0 {
		cfg.Output.Channels = 1
	}
	if cfg.Live.InputSampleRate <= 0 {
		cfg.Live.InputSampleRate = cfg.Capture.SampleRate
	}
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = defaultSettleDelay
	}

	c := &SessionController{
		mic:       mic,
		speaker:   speaker,
		provider:  provider,
		events:    events,
		telemetry: nopTelemetry{},
		logger:    slog.New(slog.DiscardHandler),
		now:       time.Now,
		cfg:       cfg,
		state:     domain.StateDisconnected,
		reason:    domain.ReasonIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect starts a new call. A call that is already live or connecting is torn down first and
// the transcript log starts over. Connect returns once devices and the live session are open;
// the Connected state follows when the remote side confirms the session.
func (c *SessionController) Connect(ctx context.Context) error {
	attemptCtx, cancel := context.WithCancel(ctx)

	c.mu.Lock()
	if c.pending != nil {
		c.pending()
	}
	previous := c.detachLocked()
	c.generation++
	generation := c.generation
	c.pending = cancel
	c.setSpeakingLocked(false)
	c.log = nil
	c.events.TranscriptCleared()
	c.setStateLocked(domain.StateConnecting, domain.ReasonConnecting)
	c.mu.Unlock()

	if previous != nil {
		c.release(previous)
	}

	id := uuid.NewString()
	active := &activeSession{
		id:           id,
		generation:   generation,
		ctx:          attemptCtx,
		cancel:       cancel,
		logger:       c.logger.With("session_id", id, "generation", generation),
		transcript:   newTranscriptAggregator(),
		dispatchDone: make(chan struct{}),
	}
	active.logger.Info("connecting", "model", c.cfg.Live.Model, "voice", c.cfg.Live.Voice)

	output, err := c.speaker.Open(attemptCtx, c.cfg.Output)
	if err != nil {
		return c.failConnect(active, fmt.Errorf("open output: %w", err))
	}
	active.output = output
	if !c.isGeneration(generation) {
		return c.abandon(active)
	}
	active.scheduler = newPlaybackScheduler(
		output,
		c.cfg.Output.SampleRate,
		c.cfg.SettleDelay,
		func(speaking bool) { c.setSpeaking(active, speaking) },
		c.telemetry,
	)
	active.pipeline = newCapturePipeline(c.cfg.BlockSize, c.cfg.Capture.SampleRate, &c.muted, c.telemetry)

	capture, err := c.mic.Open(attemptCtx, c.cfg.Capture, active.pipeline.Write)
	if err != nil {
		return c.failConnect(active, fmt.Errorf("open microphone: %w", err))
	}
	active.capture = capture
	if !c.isGeneration(generation) {
		return c.abandon(active)
	}

	live, err := c.provider.Open(attemptCtx, c.cfg.Live)
	if err != nil {
		return c.failConnect(active, fmt.Errorf("open live session: %w", err))
	}
	active.live = live

	c.mu.Lock()
	if c.generation != generation {
		c.mu.Unlock()
		return c.abandon(active)
	}
	c.current = active
	c.pending = nil
	c.mu.Unlock()

	go c.dispatch(active)
	return nil
}

// Disconnect hangs up. It is safe from any state and repeated calls are no-ops. A connect in
// flight is cancelled and tears itself down.
func (c *SessionController) Disconnect() {
	c.mu.Lock()
	c.generation++
	if c.pending != nil {
		c.pending()
		c.pending = nil
	}
	active := c.detachLocked()
	c.setSpeakingLocked(false)
	c.setStateLocked(domain.StateDisconnected, domain.ReasonHungUp)
	c.mu.Unlock()

	if active != nil {
		active.logger.Info("hanging up")
		c.release(active)
	}
}

// Mute suppresses outbound audio. Capture keeps running.
func (c *SessionController) Mute() {
	c.setMuted(true)
}

func (c *SessionController) Unmute() {
	c.setMuted(false)
}

// ToggleMute flips the mute flag and returns the new value.
func (c *SessionController) ToggleMute() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	muted := !c.muted.Load()
	c.muted.Store(muted)
	c.events.MuteChanged(muted)
	return muted
}

func (c *SessionController) setMuted(muted bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.muted.Swap(muted) == muted {
		return
	}
	c.events.MuteChanged(muted)
}

// Status returns a snapshot for rendering.
func (c *SessionController) Status() domain.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return domain.Status{
		State:    c.state,
		Speaking: c.speaking,
		Muted:    c.muted.Load(),
		Message:  StatusMessage(c.state, c.reason),
	}
}

// Transcript returns a copy of the committed log.
func (c *SessionController) Transcript() []domain.LogEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.log)
}

// StatusMessage is the human-readable status line for a state. It never carries error detail.
func StatusMessage(state domain.ConnectionState, reason domain.StateReason) string {
	switch state {
	case domain.StateConnecting:
		return "Connecting to secure line..."
	case domain.StateConnected:
		return "Connected"
	case domain.StateError:
		return "Connection Failed"
	default:
		if reason == domain.ReasonHungUp || reason == domain.ReasonRemoteClosed {
			return "Call ended"
		}
		return "Ready"
	}
}

func (c *SessionController) isGeneration(generation uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation == generation
}

func (c *SessionController) isCurrent(active *activeSession) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current == active
}

func (c *SessionController) detachLocked() *activeSession {
	active := c.current
	c.current = nil
	return active
}

// release tears down a detached session and waits for its dispatcher to exit. It must not be
// called from the dispatcher itself.
func (c *SessionController) release(active *activeSession) {
	active.teardown()
	if active.live != nil {
		<-active.dispatchDone
	}
}

func (c *SessionController) failConnect(active *activeSession, err error) error {
	callerCancelled := active.ctx.Err() != nil
	active.teardown()

	c.mu.Lock()
	if c.generation != active.generation {
		c.mu.Unlock()
		active.logger.Info("connect superseded", "err", err)
		c.telemetry.ConnectAttempt("cancelled")
		return ErrConnectCancelled
	}
	c.pending = nil
	if callerCancelled {
		c.setStateLocked(domain.StateDisconnected, domain.ReasonHungUp)
		c.mu.Unlock()
		active.logger.Info("connect cancelled by caller", "err", err)
		c.telemetry.ConnectAttempt("cancelled")
		return ErrConnectCancelled
	}
	code := domain.ClassifyConnectError(err)
	c.setStateLocked(domain.StateError, domain.ReasonConnectFailed)
	c.events.SessionError(code)
	c.mu.Unlock()

	active.logger.Error("connect failed", "code", code, "err", err)
	c.telemetry.ConnectAttempt("failed")
	return err
}

func (c *SessionController) abandon(active *activeSession) error {
	active.teardown()
	active.logger.Info("connect superseded")
	c.telemetry.ConnectAttempt("cancelled")
	return ErrConnectCancelled
}

// endSession handles a terminal session event. Stale sessions are ignored.
func (c *SessionController) endSession(active *activeSession, state domain.ConnectionState, reason domain.StateReason, cause error) {
	c.mu.Lock()
	if c.current != active {
		c.mu.Unlock()
		return
	}
	c.current = nil
	c.setSpeakingLocked(false)
	c.setStateLocked(state, reason)
	if cause != nil {
		c.events.SessionError(domain.ClassifyError(cause))
	}
	c.mu.Unlock()

	if cause != nil {
		active.logger.Error("live session failed", "err", cause)
	} else {
		active.logger.Info("live session closed by remote")
	}
	active.teardown()
}

func (c *SessionController) setSpeaking(active *activeSession, speaking bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != active {
		return
	}
	c.setSpeakingLocked(speaking)
}

func (c *SessionController) setSpeakingLocked(speaking bool) {
	if c.speaking == speaking {
		return
	}
	c.speaking = speaking
	c.events.SpeakingChanged(speaking)
}

func (c *SessionController) setStateLocked(state domain.ConnectionState, reason domain.StateReason) {
	if c.state == state && c.reason == reason {
		return
	}
	c.state = state
	c.reason = reason
	c.telemetry.ConnectionState(state)
	c.events.ConnectionStateChanged(state, reason)
}

// appendLog commits entries for a still-current session.
func (c *SessionController) appendLog(active *activeSession, entries []domain.LogEntry) bool {
	if len(entries) == 0 {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != active {
		return false
	}
	c.log = append(c.log, entries...)
	c.events.TranscriptAppended(slices.Clone(entries))
	return true
}

func (c *SessionController) reportError(active *activeSession, code domain.ErrorCode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != active {
		return
	}
	c.events.SessionError(code)
}

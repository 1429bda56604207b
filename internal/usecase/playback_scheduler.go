package usecase

import (
	"fmt"
	"sync"
	"time"

	"voiceagent/internal/domain"
	"voiceagent/internal/pcm"
	"voiceagent/internal/ports"
)

const defaultSettleDelay = 200 * time.Millisecond

type scheduledSource struct {
	source   ports.PlaybackSource
	start    time.Duration
	duration time.Duration
}

// playbackScheduler plays inbound payloads back to back on an output sink. The cursor is the
// next free slot on the sink clock; every chunk starts at max(cursor, now).
//
// onSpeaking runs with the scheduler lock held. It must not call back into the scheduler.
type playbackScheduler struct {
	sink       ports.OutputSink
	sampleRate int
	settle     time.Duration
	onSpeaking func(bool)
	telemetry  ports.Telemetry

	mu          sync.Mutex
	cursor      time.Duration
	active      map[*scheduledSource]struct{}
	epoch       uint64
	settleTimer *time.Timer
}

func newPlaybackScheduler(
	sink ports.OutputSink,
	sampleRate int,
	settle time.Duration,
	onSpeaking func(bool),
	telemetry ports.Telemetry,
) *playbackScheduler {
	if sampleRate <= 0 {
		sampleRate = pcm.PlaybackSampleRate
	}
	if settle < 0 {
		settle = 0
	}
	if onSpeaking == nil {
		onSpeaking = func(bool) {}
	}
	return &playbackScheduler{
		sink:       sink,
		sampleRate: sampleRate,
		settle:     settle,
		onSpeaking: onSpeaking,
		telemetry:  telemetry,
		active:     make(map[*scheduledSource]struct{}),
	}
}

// Enqueue decodes payload and schedules it after everything already queued. It returns the
// scheduled start on the sink clock.
func (s *playbackScheduler) Enqueue(payload domain.AudioPayload) (time.Duration, error) {
	rate := s.sampleRate
	if tagged, ok := pcm.RateFromMIME(payload.MIMEType); ok {
		rate = tagged
	}
	buf, err := pcm.DecodeBuffer(payload.Data, rate)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	start := max(s.cursor, s.sink.CurrentTime())
	entry := &scheduledSource{start: start, duration: buf.Duration()}
	source, err := s.sink.Play(buf, start, func() { s.finished(entry) })
	if err != nil {
		return 0, fmt.Errorf("schedule playback: %w", err)
	}
	entry.source = source

	s.cancelSettleLocked()
	s.active[entry] = struct{}{}
	s.cursor = start + entry.duration
	s.telemetry.ChunkScheduled(entry.duration)
	s.onSpeaking(true)
	return start, nil
}

// HardStop silences everything immediately and resets the cursor.
func (s *playbackScheduler) HardStop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for entry := range s.active {
		entry.source.Stop()
	}
	clear(s.active)
	s.cursor = 0
	s.cancelSettleLocked()
	s.onSpeaking(false)
}

// Active reports how many sources are scheduled or playing.
func (s *playbackScheduler) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// Cursor returns the next free slot on the sink clock.
func (s *playbackScheduler) Cursor() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

func (s *playbackScheduler) finished(entry *scheduledSource) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.active[entry]; !ok {
		return
	}
	delete(s.active, entry)
	if len(s.active) > 0 {
		return
	}

	epoch := s.epoch
	s.settleTimer = time.AfterFunc(s.settle, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.epoch != epoch || len(s.active) > 0 {
			return
		}
		s.settleTimer = nil
		s.onSpeaking(false)
	})
}

// cancelSettleLocked invalidates any pending idle notification.
func (s *playbackScheduler) cancelSettleLocked() {
	s.epoch++
	if s.settleTimer != nil {
		s.settleTimer.Stop()
		s.settleTimer = nil
	}
}

package usecase

import (
	"context"
	"log/slog"
	"sync"

	"voiceagent/internal/ports"
)

// activeSession is everything one connect attempt acquired. It is torn down as a unit.
type activeSession struct {
	id         string
	generation uint64
	ctx        context.Context
	cancel     context.CancelFunc
	logger     *slog.Logger

	output    ports.OutputSink
	capture   ports.CaptureStream
	live      ports.LiveSession
	pipeline  *capturePipeline
	scheduler *playbackScheduler

	transcript   *transcriptAggregator
	dispatchDone chan struct{}

	teardownOnce sync.Once
}

// teardown releases resources in reverse acquisition order. Safe to call more than once and
// on a partially built session.
func (s *activeSession) teardown() {
	s.teardownOnce.Do(func() {
		s.cancel()
		if s.pipeline != nil {
			s.pipeline.Unbind()
		}
		if s.live != nil {
			if err := s.live.Close(); err != nil {
				s.logger.Debug("live session close failed", "err", err)
			}
		}
		if s.capture != nil {
			if err := s.capture.Stop(); err != nil {
				s.logger.Warn("microphone stop failed", "err", err)
			}
		}
		if s.scheduler != nil {
			s.scheduler.HardStop()
		}
		if s.output != nil {
			if err := s.output.Close(); err != nil {
				s.logger.Warn("output close failed", "err", err)
			}
		}
		s.logger.Debug("session released")
	})
}

package audio

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"voiceagent/internal/domain"
	"voiceagent/internal/pcm"
	"voiceagent/internal/ports"
)

const defaultOutputBuffer = 100 * time.Millisecond

// oto allows a single context per process, so every OtoSpeaker shares this one.
var (
	otoOnce    sync.Once
	otoContext *oto.Context
	otoReady   chan struct{}
	otoRate    int
	otoErr     error
)

// OtoSpeaker plays through the platform audio device via oto.
type OtoSpeaker struct {
	buffer time.Duration
	logger *slog.Logger
}

func NewOtoSpeaker(buffer time.Duration, logger *slog.Logger) *OtoSpeaker {
	if buffer <= 0 {
		buffer = defaultOutputBuffer
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &OtoSpeaker{buffer: buffer, logger: logger}
}

func (s *OtoSpeaker) Open(ctx context.Context, cfg ports.OutputConfig) (ports.OutputSink, error) {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = pcm.PlaybackSampleRate
	}

	otoOnce.Do(func() {
		otoRate = cfg.SampleRate
		otoContext, otoReady, otoErr = oto.NewContext(&oto.NewContextOptions{
			SampleRate:   cfg.SampleRate,
			ChannelCount: 1,
			Format:       oto.FormatFloat32LE,
			BufferSize:   s.buffer,
		})
	})
	if otoErr != nil {
		return nil, fmt.Errorf("%w: open audio output: %v", domain.ErrUnsupportedEnvironment, otoErr)
	}
	if otoRate != cfg.SampleRate {
		return nil, fmt.Errorf("%w: audio output already running at %d Hz, requested %d Hz", domain.ErrUnsupportedEnvironment, otoRate, cfg.SampleRate)
	}

	select {
	case <-otoReady:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	timeline := NewTimeline(cfg.SampleRate)
	player := otoContext.NewPlayer(timeline)
	player.Play()
	s.logger.Debug("audio output opened", "backend", "oto", "sample_rate", cfg.SampleRate)

	return &otoSink{Timeline: timeline, player: player, logger: s.logger}, nil
}

type otoSink struct {
	*Timeline
	player *oto.Player
	logger *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

func (s *otoSink) Close() error {
	s.closeOnce.Do(func() {
		_ = s.Timeline.Close()
		s.player.Pause()
		if err := s.player.Err(); err != nil {
			s.logger.Warn("audio output player failed", "err", err)
		}
		s.closeErr = s.player.Close()
	})
	return s.closeErr
}

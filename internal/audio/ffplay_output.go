package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"voiceagent/internal/domain"
	"voiceagent/internal/pcm"
	"voiceagent/internal/ports"
)

const renderInterval = 20 * time.Millisecond

// FFPlaySpeaker pipes rendered float32 PCM into an ffplay process.
type FFPlaySpeaker struct {
	command string
	logger  *slog.Logger
}

func NewFFPlaySpeaker(command string, logger *slog.Logger) *FFPlaySpeaker {
	if command == "" {
		command = "ffplay"
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &FFPlaySpeaker{command: command, logger: logger}
}

func (s *FFPlaySpeaker) Open(ctx context.Context, cfg ports.OutputConfig) (ports.OutputSink, error) {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = pcm.PlaybackSampleRate
	}

	args := []string{
		"-nodisp",
		"-hide_banner",
		"-loglevel", "warning",
		"-f", "f32le",
		"-ar", strconv.Itoa(cfg.SampleRate),
		"-ac", "1",
		"-i", "pipe:0",
	}

	// The process outlives Open's ctx; Close owns its lifetime.
	cmd := exec.Command(s.command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create ffplay stdin pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s not found", domain.ErrUnsupportedEnvironment, s.command)
		}
		return nil, fmt.Errorf("%w: failed to start ffplay: %v", domain.ErrUnsupportedEnvironment, err)
	}
	if err := ctx.Err(); err != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return nil, err
	}

	sink := &ffplaySink{
		Timeline: NewTimeline(cfg.SampleRate),
		stdin:    stdin,
		stderr:   &stderr,
		process:  cmd.Process,
		waitErr:  make(chan error, 1),
		done:     make(chan struct{}),
		logger:   s.logger,
	}
	go func() {
		sink.waitErr <- cmd.Wait()
		close(sink.waitErr)
	}()
	go sink.pump()

	s.logger.Debug("audio output opened", "backend", "ffplay", "sample_rate", cfg.SampleRate)
	return sink, nil
}

type ffplaySink struct {
	*Timeline
	stdin  io.WriteCloser
	stderr *bytes.Buffer

	process *os.Process
	waitErr chan error
	done    chan struct{}
	logger  *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

// pump renders the timeline in real time, one interval per tick.
func (s *ffplaySink) pump() {
	frames := int(pcm.DurationToFrames(renderInterval, s.SampleRate()))
	samples := make([]float32, frames)
	raw := make([]byte, frames*4)

	ticker := time.NewTicker(renderInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
		}
		s.Render(samples)
		pcm.PutFloat32LE(raw, samples)
		if _, err := s.stdin.Write(raw); err != nil {
			select {
			case <-s.done:
			default:
				s.logger.Warn("ffplay write failed", "err", err)
				s.Timeline.Fail()
			}
			return
		}
	}
}

func (s *ffplaySink) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.Timeline.Close()
		_ = s.stdin.Close()

		select {
		case err, ok := <-s.waitErr:
			if ok {
				s.closeErr = normalizeStopErr(err)
			}
		case <-time.After(stopGrace):
			_ = s.process.Kill()
			if err, ok := <-s.waitErr; ok {
				s.closeErr = normalizeStopErr(err)
			}
		}

		if s.closeErr != nil && s.stderr.Len() > 0 {
			s.closeErr = fmt.Errorf("%w: %s", s.closeErr, stringsTrimSpaceSafe(s.stderr.String()))
		}
	})
	return s.closeErr
}

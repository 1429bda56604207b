package audio

import (
	"fmt"
	"io"
	"sync"
	"time"

	"voiceagent/internal/domain"
	"voiceagent/internal/pcm"
	"voiceagent/internal/ports"
)

var ErrSinkClosed = fmt.Errorf("output sink closed: %w", domain.ErrOutputClosed)

// Timeline is a mono mixer with its own output clock. The clock is the number of frames
// rendered so far; buffers are placed on it by start frame and summed where they overlap.
// Both speaker backends pull rendered audio from a Timeline.
type Timeline struct {
	sampleRate int

	mu       sync.Mutex
	rendered int64
	voices   []*voice
	closed   bool
}

type voice struct {
	timeline *Timeline
	samples  []float32
	start    int64
	onEnded  func()
}

func NewTimeline(sampleRate int) *Timeline {
	if sampleRate <= 0 {
		sampleRate = pcm.PlaybackSampleRate
	}
	return &Timeline{sampleRate: sampleRate}
}

func (t *Timeline) SampleRate() int {
	return t.sampleRate
}

// CurrentTime returns the output clock.
func (t *Timeline) CurrentTime() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return pcm.FramesToDuration(t.rendered, t.sampleRate)
}

// Play places buf at output time at. A start already rendered is moved to the clock.
func (t *Timeline) Play(buf pcm.Buffer, at time.Duration, onEnded func()) (ports.PlaybackSource, error) {
	if buf.SampleRate != t.sampleRate {
		return nil, fmt.Errorf("buffer sample rate %d does not match output rate %d", buf.SampleRate, t.sampleRate)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, ErrSinkClosed
	}

	v := &voice{
		timeline: t,
		samples:  buf.Samples,
		start:    max(pcm.DurationToFrames(at, t.sampleRate), t.rendered),
		onEnded:  onEnded,
	}
	t.voices = append(t.voices, v)
	return v, nil
}

// Render mixes the next len(out) frames and advances the clock. Completion callbacks run on
// their own goroutines.
func (t *Timeline) Render(out []float32) {
	for _, fn := range t.render(out) {
		go fn()
	}
}

func (t *Timeline) render(out []float32) []func() {
	clear(out)

	t.mu.Lock()
	defer t.mu.Unlock()

	from := t.rendered
	to := from + int64(len(out))
	var ended []func()

	remaining := t.voices[:0]
	for _, v := range t.voices {
		end := v.start + int64(len(v.samples))
		lo := max(from, v.start)
		hi := min(to, end)
		for frame := lo; frame < hi; frame++ {
			out[frame-from] += v.samples[frame-v.start]
		}
		if end <= to {
			if v.onEnded != nil {
				ended = append(ended, v.onEnded)
			}
			continue
		}
		remaining = append(remaining, v)
	}
	clear(t.voices[len(remaining):])
	t.voices = remaining
	t.rendered = to

	for i, sample := range out {
		if sample > 1 {
			out[i] = 1
		} else if sample < -1 {
			out[i] = -1
		}
	}
	return ended
}

// Read renders float32 little-endian frames, for players that pull from an io.Reader.
// Idle time renders as silence; io.EOF follows Close.
func (t *Timeline) Read(p []byte) (int, error) {
	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return 0, io.EOF
	}

	frames := len(p) / 4
	if frames == 0 {
		return 0, nil
	}
	samples := make([]float32, frames)
	t.Render(samples)
	return pcm.PutFloat32LE(p, samples), nil
}

// Active returns the number of scheduled or playing buffers.
func (t *Timeline) Active() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.voices)
}

// Fail closes the timeline after its device stopped consuming audio. Pending voices end
// through their callbacks since they will never play.
func (t *Timeline) Fail() {
	t.mu.Lock()
	var ended []func()
	for _, v := range t.voices {
		if v.onEnded != nil {
			ended = append(ended, v.onEnded)
		}
	}
	t.voices = nil
	t.closed = true
	t.mu.Unlock()

	for _, fn := range ended {
		go fn()
	}
}

// Close drops every voice without completion callbacks.
func (t *Timeline) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	t.voices = nil
	return nil
}

// Stop removes the voice. It is a no-op once the voice finished or was stopped.
func (v *voice) Stop() {
	t := v.timeline
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, candidate := range t.voices {
		if candidate == v {
			t.voices = append(t.voices[:i], t.voices[i+1:]...)
			return
		}
	}
}

package usecase

import (
	"errors"
	"sync"
	"sync/atomic"

	"voiceagent/internal/domain"
	"voiceagent/internal/pcm"
	"voiceagent/internal/ports"
)

const (
	defaultBlockSize = 4096
	minBlockSize     = 256
)

// audioSender is the realtime-input side of an open live session.
type audioSender interface {
	SendAudio(chunk pcm.Blob) error
}

// capturePipeline cuts captured samples into fixed blocks and forwards each block to the
// bound session unless muted. Capture keeps running while unbound or muted; blocks are dropped.
type capturePipeline struct {
	blockSize  int
	sampleRate int
	muted      *atomic.Bool
	telemetry  ports.Telemetry

	mu      sync.Mutex
	pending []float32
	target  audioSender
}

func newCapturePipeline(blockSize, sampleRate int, muted *atomic.Bool, telemetry ports.Telemetry) *capturePipeline {
	if blockSize < minBlockSize {
		blockSize = defaultBlockSize
	}
	return &capturePipeline{
		blockSize:  blockSize,
		sampleRate: sampleRate,
		muted:      muted,
		telemetry:  telemetry,
		pending:    make([]float32, 0, blockSize),
	}
}

// Bind activates forwarding to target.
func (p *capturePipeline) Bind(target audioSender) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.target = target
}

// Unbind stops forwarding and drops any partial block.
func (p *capturePipeline) Unbind() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.target = nil
	p.pending = p.pending[:0]
}

// Write is the capture callback. It is safe to call from the device goroutine.
func (p *capturePipeline) Write(samples []float32) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for len(samples) > 0 {
		room := p.blockSize - len(p.pending)
		n := min(room, len(samples))
		p.pending = append(p.pending, samples[:n]...)
		samples = samples[n:]
		if len(p.pending) == p.blockSize {
			p.flushLocked()
		}
	}
}

func (p *capturePipeline) flushLocked() {
	block := p.pending
	p.pending = make([]float32, 0, p.blockSize)

	if p.muted.Load() {
		p.telemetry.ChunkDropped("muted")
		return
	}
	if p.target == nil {
		p.telemetry.ChunkDropped("inactive")
		return
	}

	if err := p.target.SendAudio(pcm.Encode(block, p.sampleRate)); err != nil {
		if errors.Is(err, domain.ErrSendQueueFull) {
			p.telemetry.ChunkDropped("queue_full")
		} else {
			p.telemetry.ChunkDropped("send")
		}
		return
	}
	p.telemetry.ChunkSent()
}

// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"fmt"
	"sync"

	"chordscope/internal/fault"
)

// FrameBuffer keeps the most recent frameSize mono samples written by the
// capture callback. Readers take a copy of the whole window; consecutive
// reads overlap whenever fewer than frameSize new samples have arrived.
type FrameBuffer struct {
	mu       sync.Mutex
	ring     []float64
	pos      int    // Next write index; also the oldest sample once full.
	filled   int    // Valid samples, up to len(ring).
	written  uint64 // Samples written since creation.
	lastRead uint64 // Value of written at the previous successful read.
	notify   chan struct{}
}

// NewFrameBuffer returns an empty buffer holding frameSize samples.
func NewFrameBuffer(frameSize int) *FrameBuffer {
	return &FrameBuffer{
		ring:   make([]float64, frameSize),
		notify: make(chan struct{}, 1),
	}
}

// Size returns the frame length.
func (b *FrameBuffer) Size() int {
	return len(b.ring)
}

// WriteInterleaved downmixes interleaved float32 samples to mono by
// averaging channels, then appends them. It does not allocate and is safe
// to call from the PortAudio callback.
func (b *FrameBuffer) WriteInterleaved(in []float32, channels int) {
	if channels < 1 {
		channels = 1
	}
	scale := 1.0 / float64(channels)

	b.mu.Lock()
	for i := 0; i+channels <= len(in); i += channels {
		var sum float64
		for c := range channels {
			sum += float64(in[i+c])
		}
		b.put(sum * scale)
	}
	b.mu.Unlock()
	b.signal()
}

// Write appends mono samples.
func (b *FrameBuffer) Write(samples []float64) {
	b.mu.Lock()
	for _, s := range samples {
		b.put(s)
	}
	b.mu.Unlock()
	b.signal()
}

// put stores one sample. Caller holds mu.
func (b *FrameBuffer) put(s float64) {
	b.ring[b.pos] = s
	b.pos++
	if b.pos == len(b.ring) {
		b.pos = 0
	}
	if b.filled < len(b.ring) {
		b.filled++
	}
	b.written++
}

func (b *FrameBuffer) signal() {
	select {
	case b.notify <- struct{}{}:
	default:
	}
}

// ReadFrame copies the newest frameSize samples, oldest first, into dst.
// It waits until the buffer is full and has new samples since the last
// read. If ctx ends first it returns an error wrapping fault.ErrStarved.
func (b *FrameBuffer) ReadFrame(ctx context.Context, dst []float64) error {
	if len(dst) != len(b.ring) {
		return fmt.Errorf("destination length %d does not match frame size %d", len(dst), len(b.ring))
	}
	for {
		b.mu.Lock()
		if b.filled == len(b.ring) && b.written > b.lastRead {
			n := copy(dst, b.ring[b.pos:])
			copy(dst[n:], b.ring[:b.pos])
			b.lastRead = b.written
			b.mu.Unlock()
			return nil
		}
		b.mu.Unlock()

		select {
		case <-b.notify:
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", fault.ErrStarved, ctx.Err())
		}
	}
}

// SPDX-License-Identifier: MIT
package pipeline

import (
	"context"
	"errors"
	"time"

	applog "chordscope/internal/log"
	"chordscope/internal/transport"
)

// Renderer draws or forwards a snapshot. Render must not modify it.
type Renderer interface {
	Render(snap *Snapshot) error
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(snap *Snapshot) error

func (f RendererFunc) Render(snap *Snapshot) error {
	return f(snap)
}

// RenderLoop polls provider every interval and hands each new snapshot to
// every renderer. It never blocks the analysis loop and returns when ctx is
// canceled.
func RenderLoop(ctx context.Context, provider SnapshotProvider, interval time.Duration, renderers ...Renderer) error {
	if interval <= 0 {
		return errors.New("render interval must be positive")
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastSeq uint64
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			snap := provider.Latest()
			if snap == nil || snap.Seq == lastSeq {
				continue
			}
			lastSeq = snap.Seq
			for _, r := range renderers {
				if err := r.Render(snap); err != nil {
					applog.Warnf("Render: %v", err)
				}
			}
		}
	}
}

// TransportRenderer sends each snapshot's Message over a transport.
type TransportRenderer struct {
	transport transport.Transport
}

func NewTransportRenderer(t transport.Transport) *TransportRenderer {
	return &TransportRenderer{transport: t}
}

func (r *TransportRenderer) Render(snap *Snapshot) error {
	return r.transport.Send(snap.Message())
}

// SPDX-License-Identifier: MIT
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"chordscope/internal/analysis"
	"chordscope/internal/chord"
	"chordscope/internal/fault"
	applog "chordscope/internal/log"
)

// Source delivers fixed-length mono frames. ReadFrame blocks until a frame
// newer than the previous one is available or ctx ends, in which case it
// returns an error wrapping fault.ErrStarved.
type Source interface {
	SampleRate() float64
	ReadFrame(ctx context.Context, dst []float64) error
	Close() error
}

// TickOutcome describes what a single tick did.
type TickOutcome int

const (
	TickPublished TickOutcome = iota
	TickStarved
	TickFailed
	TickCanceled
)

func (o TickOutcome) String() string {
	switch o {
	case TickPublished:
		return "published"
	case TickStarved:
		return "starved"
	case TickFailed:
		return "failed"
	case TickCanceled:
		return "canceled"
	default:
		return fmt.Sprintf("TickOutcome(%d)", int(o))
	}
}

// Stats counts tick outcomes since the runner was created.
type Stats struct {
	Ticks     uint64
	Published uint64
	Starved   uint64
	Failed    uint64
}

// Runner drives the pipeline on a fixed cadence. Ticks never overlap: a
// tick that runs long delays the next one, and missed ticks are dropped
// rather than queued.
type Runner struct {
	pipeline   *Pipeline
	stabilizer *chord.Stabilizer
	source     Source
	interval   time.Duration

	slot  Slot
	frame []float64
	seq   uint64

	ticks, published, starved, failed atomic.Uint64

	running   atomic.Bool
	closeOnce sync.Once
}

// NewRunner wires a pipeline to a source. A nil source is reported as
// fault.ErrCaptureUnavailable.
func NewRunner(p *Pipeline, stabilizer *chord.Stabilizer, source Source, interval time.Duration) (*Runner, error) {
	if source == nil {
		return nil, fmt.Errorf("%w: no audio source", fault.ErrCaptureUnavailable)
	}
	if p == nil || stabilizer == nil {
		return nil, fmt.Errorf("%w: runner needs a pipeline and a stabilizer", fault.ErrConfiguration)
	}
	if interval <= 0 {
		return nil, fmt.Errorf("%w: tick interval must be positive, got %s", fault.ErrConfiguration, interval)
	}
	if source.SampleRate() <= 0 {
		return nil, fmt.Errorf("%w: source reports sample rate %g", fault.ErrCaptureUnavailable, source.SampleRate())
	}
	return &Runner{
		pipeline:   p,
		stabilizer: stabilizer,
		source:     source,
		interval:   interval,
		frame:      make([]float64, p.FrameSize()),
	}, nil
}

// Latest returns the most recently published snapshot, or nil.
func (r *Runner) Latest() *Snapshot {
	return r.slot.Latest()
}

// Stats returns the tick counters.
func (r *Runner) Stats() Stats {
	return Stats{
		Ticks:     r.ticks.Load(),
		Published: r.published.Load(),
		Starved:   r.starved.Load(),
		Failed:    r.failed.Load(),
	}
}

// Run ticks until ctx is canceled, then stops the source and resets the
// stabilizer. It returns nil on cancellation.
func (r *Runner) Run(ctx context.Context) error {
	if !r.running.CompareAndSwap(false, true) {
		return errors.New("runner is already running")
	}
	defer r.running.Store(false)
	defer r.stop()

	applog.Infof("Runner: Starting analysis loop (tick %s, frame %d samples)", r.interval, len(r.frame))

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			applog.Infof("Runner: Stopping analysis loop (%+v)", r.Stats())
			return nil
		case <-ticker.C:
			r.Tick(ctx)
		}
	}
}

// Tick runs one analysis pass. It waits at most one tick interval for a
// fresh frame; if none arrives the tick is skipped and nothing is
// published.
func (r *Runner) Tick(ctx context.Context) TickOutcome {
	r.ticks.Add(1)

	readCtx, cancel := context.WithTimeout(ctx, r.interval)
	err := r.source.ReadFrame(readCtx, r.frame)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return TickCanceled
		}
		r.starved.Add(1)
		if !errors.Is(err, fault.ErrStarved) {
			applog.Warnf("Runner: Capture read failed: %v", err)
		} else {
			applog.Debugf("Runner: Tick skipped: %v", err)
		}
		return TickStarved
	}

	frame := analysis.AudioFrame{Samples: r.frame, SampleRate: r.source.SampleRate()}
	result, err := r.pipeline.Process(frame)
	if err != nil {
		r.failed.Add(1)
		applog.Warnf("Runner: Analysis failed, keeping previous profile: %v", err)
		r.publishFailure()
		return TickFailed
	}

	decision := r.stabilizer.Update(result.Estimate)
	r.publish(&Snapshot{
		Profile:    result.Profile,
		Decision:   decision,
		Candidates: result.Candidates,
		Gated:      result.Gated,
	})
	return TickPublished
}

// publishFailure republishes the last profile with an uncertain, zero
// strength decision.
func (r *Runner) publishFailure() {
	var profile analysis.PitchClassProfile
	if prev := r.slot.Latest(); prev != nil {
		profile = prev.Profile
	} else {
		profile = make(analysis.PitchClassProfile, r.pipeline.ProfileSize())
	}
	r.publish(&Snapshot{
		Profile:  profile,
		Decision: chord.Decision{State: chord.Uncertain},
		Failed:   true,
	})
}

func (r *Runner) publish(snap *Snapshot) {
	r.seq++
	snap.Seq = r.seq
	snap.Time = time.Now()
	r.slot.Publish(snap)
	r.published.Add(1)
}

func (r *Runner) stop() {
	r.closeOnce.Do(func() {
		if err := r.source.Close(); err != nil {
			applog.Warnf("Runner: Error closing source: %v", err)
		}
	})
	r.stabilizer.Reset()
}

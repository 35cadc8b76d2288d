// SPDX-License-Identifier: MIT
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"chordscope/internal/chord"
	"chordscope/internal/config"
	"chordscope/internal/fault"
	"chordscope/pkg/utils"
)

const testTick = 20 * time.Millisecond

// queueSource hands out queued frames and starves once they run out.
type queueSource struct {
	mu     sync.Mutex
	frames [][]float64
	closed bool
}

func (s *queueSource) push(frames ...[]float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, frames...)
}

func (s *queueSource) SampleRate() float64 { return testSampleRate }

func (s *queueSource) ReadFrame(ctx context.Context, dst []float64) error {
	s.mu.Lock()
	if len(s.frames) > 0 {
		copy(dst, s.frames[0])
		s.frames = s.frames[1:]
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()
	<-ctx.Done()
	return fmt.Errorf("%w: %v", fault.ErrStarved, ctx.Err())
}

func (s *queueSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *queueSource) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func newTestRunner(t *testing.T, src Source) *Runner {
	t.Helper()
	cfg := config.Default()
	p, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	stab, err := NewStabilizer(cfg)
	if err != nil {
		t.Fatalf("NewStabilizer() error = %v", err)
	}
	r, err := NewRunner(p, stab, src, testTick)
	if err != nil {
		t.Fatalf("NewRunner() error = %v", err)
	}
	return r
}

func triad() []float64 {
	return utils.GenerateChord(config.DefaultFrameSize, testSampleRate, 0.2, noteC4, noteE4, noteG4)
}

func TestNewRunnerValidation(t *testing.T) {
	cfg := config.Default()
	p, _ := New(cfg)
	stab, _ := NewStabilizer(cfg)

	if _, err := NewRunner(p, stab, nil, testTick); !errors.Is(err, fault.ErrCaptureUnavailable) {
		t.Errorf("nil source error = %v, want ErrCaptureUnavailable", err)
	}
	if _, err := NewRunner(p, stab, &queueSource{}, 0); !errors.Is(err, fault.ErrConfiguration) {
		t.Errorf("zero interval error = %v, want ErrConfiguration", err)
	}
}

func TestTickPublishesDecision(t *testing.T) {
	src := &queueSource{}
	src.push(triad())
	r := newTestRunner(t, src)

	if r.Latest() != nil {
		t.Fatal("Latest() before first tick should be nil")
	}
	if got := r.Tick(context.Background()); got != TickPublished {
		t.Fatalf("Tick() = %v, want published", got)
	}
	snap := r.Latest()
	if snap == nil || snap.Seq != 1 {
		t.Fatalf("Latest() = %+v, want seq 1", snap)
	}
	if !snap.Decision.Confident() || snap.Decision.Estimate.Label != "C major" {
		t.Errorf("Decision = %v, want confident C major", snap.Decision)
	}
}

func TestStarvedTickPublishesNothing(t *testing.T) {
	src := &queueSource{}
	src.push(triad())
	r := newTestRunner(t, src)

	r.Tick(context.Background())
	first := r.Latest()

	start := time.Now()
	if got := r.Tick(context.Background()); got != TickStarved {
		t.Fatalf("Tick() = %v, want starved", got)
	}
	if elapsed := time.Since(start); elapsed > 10*testTick {
		t.Errorf("starved tick took %s, want about one interval", elapsed)
	}
	if r.Latest() != first {
		t.Error("a starved tick must leave the published snapshot untouched")
	}
	if s := r.Stats(); s.Starved != 1 || s.Published != 1 || s.Ticks != 2 {
		t.Errorf("Stats() = %+v", s)
	}
}

func TestFailedTickKeepsProfile(t *testing.T) {
	bad := triad()
	bad[10] = math.Inf(1)

	src := &queueSource{}
	src.push(triad(), bad)
	r := newTestRunner(t, src)

	r.Tick(context.Background())
	first := r.Latest()

	if got := r.Tick(context.Background()); got != TickFailed {
		t.Fatalf("Tick() = %v, want failed", got)
	}
	snap := r.Latest()
	if !snap.Failed || snap.Seq != first.Seq+1 {
		t.Fatalf("Latest() = %+v, want a failed snapshot after %d", snap, first.Seq)
	}
	for i := range first.Profile {
		if snap.Profile[i] != first.Profile[i] {
			t.Fatalf("profile bin %d changed on failure", i)
		}
	}
	if snap.Decision.State != chord.Uncertain || snap.Decision.Estimate.Strength != 0 {
		t.Errorf("Decision = %+v, want uncertain with zero strength", snap.Decision)
	}
	if got := snap.Decision.String(); got != "... (0.00)" {
		t.Errorf("Decision.String() = %q", got)
	}
}

func TestFailedFirstTickPublishesZeroProfile(t *testing.T) {
	bad := triad()
	bad[0] = math.NaN()
	src := &queueSource{}
	src.push(bad)
	r := newTestRunner(t, src)

	r.Tick(context.Background())
	snap := r.Latest()
	if snap == nil || !snap.Failed || len(snap.Profile) != 12 || !snap.Profile.IsZero() {
		t.Errorf("Latest() = %+v, want a zero failed snapshot", snap)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	src := &queueSource{}
	src.push(triad())
	r := newTestRunner(t, src)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for r.Latest() == nil {
		select {
		case <-deadline:
			t.Fatal("no snapshot published")
		case <-time.After(testTick / 2):
		}
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
	if !src.isClosed() {
		t.Error("Run() should close the source on exit")
	}
}

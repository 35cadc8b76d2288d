// SPDX-License-Identifier: MIT
package chord

import (
	"fmt"
	"math"
	"strings"

	"chordscope/internal/fault"
)

// DefaultThreshold is the strength at or above which a chord is shown.
const DefaultThreshold = 0.6

// State is the display state of a decision.
type State int

const (
	Uncertain State = iota
	Confident
)

func (s State) String() string {
	if s == Confident {
		return "confident"
	}
	return "uncertain"
}

// Decision is what the display shows for one tick.
type Decision struct {
	State    State
	Estimate Estimate
}

// Confident reports whether the label should be shown.
func (d Decision) Confident() bool {
	return d.State == Confident
}

// String renders the decision as "C major (0.93)", or "... (0.42)" when the
// estimate is not trusted.
func (d Decision) String() string {
	if d.Confident() {
		return fmt.Sprintf("%s (%.2f)", d.Estimate.Label, d.Estimate.Strength)
	}
	return fmt.Sprintf("... (%.2f)", d.Estimate.Strength)
}

// Policy turns a stream of estimates into decisions. Implementations may
// keep history; Reset clears it.
type Policy interface {
	Decide(e Estimate) Decision
	Reset()
	Name() string
}

// ThresholdPolicy shows an estimate when its strength reaches the
// threshold. It has no memory.
type ThresholdPolicy struct {
	threshold float64
}

func NewThresholdPolicy(threshold float64) (*ThresholdPolicy, error) {
	if err := checkThreshold(threshold); err != nil {
		return nil, err
	}
	return &ThresholdPolicy{threshold: threshold}, nil
}

func (p *ThresholdPolicy) Decide(e Estimate) Decision {
	if e.HasChord() && e.Strength >= p.threshold {
		return Decision{State: Confident, Estimate: e}
	}
	return Decision{State: Uncertain, Estimate: e}
}

func (p *ThresholdPolicy) Reset() {}

func (p *ThresholdPolicy) Name() string { return "threshold" }

// HysteresisPolicy enters the confident state at threshold and keeps the
// same label until its strength drops below threshold-margin. A different
// label must reach the full threshold to take over.
type HysteresisPolicy struct {
	enter, exit float64
	current     string
}

func NewHysteresisPolicy(threshold, margin float64) (*HysteresisPolicy, error) {
	if err := checkThreshold(threshold); err != nil {
		return nil, err
	}
	if margin < 0 || margin > threshold || math.IsNaN(margin) {
		return nil, fmt.Errorf("%w: hysteresis margin must be within [0, %g], got %g", fault.ErrConfiguration, threshold, margin)
	}
	return &HysteresisPolicy{enter: threshold, exit: threshold - margin}, nil
}

func (p *HysteresisPolicy) Decide(e Estimate) Decision {
	switch {
	case !e.HasChord():
		p.current = ""
	case e.Strength >= p.enter:
		p.current = e.Label
	case e.Label == p.current && e.Strength >= p.exit:
		// Holding.
	default:
		p.current = ""
	}
	if p.current != "" {
		return Decision{State: Confident, Estimate: e}
	}
	return Decision{State: Uncertain, Estimate: e}
}

func (p *HysteresisPolicy) Reset() {
	p.current = ""
}

func (p *HysteresisPolicy) Name() string { return "hysteresis" }

// MajorityPolicy shows a label only when it cleared the threshold in more
// than half of the last window ticks, including this one.
type MajorityPolicy struct {
	threshold float64
	history   []string
	next      int
}

func NewMajorityPolicy(threshold float64, window int) (*MajorityPolicy, error) {
	if err := checkThreshold(threshold); err != nil {
		return nil, err
	}
	if window < 1 {
		return nil, fmt.Errorf("%w: majority window must be >= 1, got %d", fault.ErrConfiguration, window)
	}
	return &MajorityPolicy{threshold: threshold, history: make([]string, window)}, nil
}

func (p *MajorityPolicy) Decide(e Estimate) Decision {
	vote := ""
	if e.HasChord() && e.Strength >= p.threshold {
		vote = e.Label
	}
	p.history[p.next] = vote
	p.next = (p.next + 1) % len(p.history)

	if vote == "" {
		return Decision{State: Uncertain, Estimate: e}
	}
	votes := 0
	for _, v := range p.history {
		if v == vote {
			votes++
		}
	}
	if 2*votes > len(p.history) {
		return Decision{State: Confident, Estimate: e}
	}
	return Decision{State: Uncertain, Estimate: e}
}

func (p *MajorityPolicy) Reset() {
	clear(p.history)
	p.next = 0
}

func (p *MajorityPolicy) Name() string { return "majority" }

// NewPolicy builds a policy by name.
func NewPolicy(name string, threshold, margin float64, window int) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "threshold":
		return NewThresholdPolicy(threshold)
	case "hysteresis":
		return NewHysteresisPolicy(threshold, margin)
	case "majority":
		return NewMajorityPolicy(threshold, window)
	default:
		return nil, fmt.Errorf("%w: unknown stabilizer policy %q", fault.ErrConfiguration, name)
	}
}

func checkThreshold(threshold float64) error {
	if threshold < 0 || threshold > 1 || math.IsNaN(threshold) {
		return fmt.Errorf("%w: chord threshold must be within [0, 1], got %g", fault.ErrConfiguration, threshold)
	}
	return nil
}

// Stabilizer owns a policy and the last decision it produced. It is driven
// by a single analysis goroutine.
type Stabilizer struct {
	policy Policy
	last   Decision
}

func NewStabilizer(policy Policy) *Stabilizer {
	return &Stabilizer{policy: policy}
}

// Update feeds one estimate through the policy.
func (s *Stabilizer) Update(e Estimate) Decision {
	s.last = s.policy.Decide(e)
	return s.last
}

// Last returns the most recent decision.
func (s *Stabilizer) Last() Decision {
	return s.last
}

// Reset clears policy history, as when capture stops.
func (s *Stabilizer) Reset() {
	s.policy.Reset()
	s.last = Decision{}
}

// Policy returns the name of the active policy.
func (s *Stabilizer) Policy() string {
	return s.policy.Name()
}

// SPDX-License-Identifier: MIT
package analysis

import (
	"math"
	"sync/atomic"
)

// Gate is a peak-amplitude noise gate. A frame whose largest absolute
// sample stays below the threshold is treated as silence. Enable, Disable
// and SetThreshold may be called while frames are being analyzed.
type Gate struct {
	enabled   atomic.Bool
	threshold atomic.Uint64 // math.Float64bits of the 0.0-1.0 threshold.
}

// NewGate returns a gate with the given threshold, enabled when the
// threshold is above zero.
func NewGate(threshold float64) *Gate {
	g := &Gate{}
	g.SetThreshold(threshold)
	g.enabled.Store(g.Threshold() > 0)
	return g
}

func (g *Gate) Enable() {
	g.enabled.Store(true)
}

func (g *Gate) Disable() {
	g.enabled.Store(false)
}

// Toggle flips the gate and returns the new state.
func (g *Gate) Toggle() bool {
	for {
		old := g.enabled.Load()
		if g.enabled.CompareAndSwap(old, !old) {
			return !old
		}
	}
}

func (g *Gate) Enabled() bool {
	return g.enabled.Load()
}

// SetThreshold adjusts the gate threshold.
// The value is in the range of 0.0-1.0 where 0=always open, 1=always closed.
func (g *Gate) SetThreshold(threshold float64) {
	if math.IsNaN(threshold) || threshold < 0.0 {
		threshold = 0.0
	}
	if threshold > 1.0 {
		threshold = 1.0
	}
	g.threshold.Store(math.Float64bits(threshold))
}

// Threshold returns the current threshold in the range 0.0-1.0.
func (g *Gate) Threshold() float64 {
	return math.Float64frombits(g.threshold.Load())
}

// Open reports whether samples should be analyzed. A disabled gate is
// always open.
func (g *Gate) Open(samples []float64) bool {
	if !g.enabled.Load() {
		return true
	}
	threshold := g.Threshold()
	for _, s := range samples {
		if math.Abs(s) > threshold {
			return true
		}
	}
	return false
}

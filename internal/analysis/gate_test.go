// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"testing"
)

func TestGateEnable(t *testing.T) {
	g := NewGate(0)
	if g.Enabled() {
		t.Error("Gate with zero threshold should start disabled")
	}

	g.Enable()
	g.Enable() // Multiple calls should be idempotent
	if !g.Enabled() {
		t.Error("Gate should be enabled after Enable()")
	}

	g.Disable()
	if g.Enabled() {
		t.Error("Gate should be disabled after Disable()")
	}

	if !g.Toggle() || !g.Enabled() {
		t.Error("Toggle() should enable a disabled gate")
	}
	if g.Toggle() || g.Enabled() {
		t.Error("Toggle() should disable an enabled gate")
	}
}

func TestGateThresholdBoundaries(t *testing.T) {
	tests := []struct {
		input    float64
		expected float64
	}{
		{-0.1, 0.0}, // Below min
		{0.0, 0.0},  // Minimum
		{0.5, 0.5},  // Middle
		{1.0, 1.0},  // Maximum
		{1.5, 1.0},  // Above max
	}

	g := NewGate(0)
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%.2f", tt.input), func(t *testing.T) {
			g.SetThreshold(tt.input)
			if got := g.Threshold(); got != tt.expected {
				t.Errorf("Threshold() = %f, want %f", got, tt.expected)
			}
		})
	}
}

func TestGateOpen(t *testing.T) {
	g := NewGate(0.01)
	tests := []struct {
		name    string
		samples []float64
		want    bool
	}{
		{"Silence", make([]float64, 64), false},
		{"Below Threshold", []float64{0.001, -0.009, 0.005}, false},
		{"Above Threshold", []float64{0.001, -0.02, 0.005}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := g.Open(tt.samples); got != tt.want {
				t.Errorf("Open() = %v, want %v", got, tt.want)
			}
		})
	}

	g.Disable()
	if !g.Open(make([]float64, 64)) {
		t.Error("disabled gate should always be open")
	}
}

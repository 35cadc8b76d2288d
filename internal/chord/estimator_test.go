// SPDX-License-Identifier: MIT
package chord

import (
	"errors"
	"math"
	"testing"

	"chordscope/internal/analysis"
	"chordscope/internal/fault"
)

func mustEstimator(t *testing.T, qualities ...Quality) *Estimator {
	t.Helper()
	templates, err := BuildTemplates(qualities)
	if err != nil {
		t.Fatalf("BuildTemplates() error = %v", err)
	}
	e, err := NewEstimator(templates, DefaultTieEpsilon)
	if err != nil {
		t.Fatalf("NewEstimator() error = %v", err)
	}
	return e
}

func profileOf(bins map[int]float64) analysis.PitchClassProfile {
	p := make(analysis.PitchClassProfile, 12)
	for pc, v := range bins {
		p[pc] = v
	}
	return p
}

func TestEstimateExactTriads(t *testing.T) {
	e := mustEstimator(t, DefaultQualities...)
	tests := []struct {
		name    string
		profile analysis.PitchClassProfile
		want    string
	}{
		{"C Major", profileOf(map[int]float64{0: 1, 4: 1, 7: 1}), "C major"},
		{"A Minor", profileOf(map[int]float64{9: 1, 0: 1, 4: 1}), "A minor"},
		{"F# Major", profileOf(map[int]float64{6: 1, 10: 1, 1: 1}), "F# major"},
		{"Eb Minor", profileOf(map[int]float64{3: 1, 6: 1, 10: 1}), "Eb minor"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.Estimate(tt.profile)
			if got.Label != tt.want {
				t.Errorf("Label = %q, want %q", got.Label, tt.want)
			}
			if got.Strength < 0.95 {
				t.Errorf("Strength = %f, want >= 0.95", got.Strength)
			}
		})
	}
}

func TestEstimateSilence(t *testing.T) {
	e := mustEstimator(t, DefaultQualities...)
	for _, p := range []analysis.PitchClassProfile{make(analysis.PitchClassProfile, 12), nil, {math.NaN(), 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}} {
		got := e.Estimate(p)
		if got.HasChord() || got.Strength != 0 {
			t.Errorf("Estimate(%v) = %+v, want no chord", p, got)
		}
	}
}

func TestEstimateTieBreakPrefersFewerTones(t *testing.T) {
	// With Bb at 2*sqrt(3)-3 the C major and C7 cosines are equal.
	p := profileOf(map[int]float64{0: 1, 4: 1, 7: 1, 10: 2*math.Sqrt(3) - 3})

	for _, order := range [][]Quality{{Dominant7, Major}, {Major, Dominant7}} {
		e := mustEstimator(t, order...)
		got := e.Estimate(p)
		if got.Label != "C major" {
			t.Errorf("qualities %v: Label = %q, want %q", order, got.Label, "C major")
		}
	}
}

func TestEstimateFoldsHigherResolution(t *testing.T) {
	e := mustEstimator(t, DefaultQualities...)
	p := make(analysis.PitchClassProfile, 36)
	p[0], p[12], p[21] = 1, 1, 1 // C, E, G at three bins per semitone.
	if got := e.Estimate(p); got.Label != "C major" {
		t.Errorf("Label = %q, want C major", got.Label)
	}
}

func TestEstimateIsStableUnderScaling(t *testing.T) {
	e := mustEstimator(t, DefaultQualities...)
	base := profileOf(map[int]float64{2: 1, 5: 0.8, 9: 0.6, 0: 0.1})
	scaled := base.Clone()
	for i := range scaled {
		scaled[i] *= 7
	}
	a, b := e.Estimate(base), e.Estimate(scaled)
	if a.Label != b.Label || math.Abs(a.Strength-b.Strength) > 1e-12 {
		t.Errorf("Estimate changed under scaling: %+v vs %+v", a, b)
	}
}

func TestRank(t *testing.T) {
	e := mustEstimator(t, DefaultQualities...)
	p := profileOf(map[int]float64{0: 1, 4: 1, 7: 1})
	ranked := e.Rank(p, 3)
	if len(ranked) != 3 {
		t.Fatalf("Rank() returned %d, want 3", len(ranked))
	}
	if ranked[0] != e.Estimate(p) {
		t.Errorf("Rank()[0] = %+v, want Estimate()", ranked[0])
	}
	for i := 1; i < len(ranked); i++ {
		if ranked[i].Strength > ranked[i-1].Strength+DefaultTieEpsilon {
			t.Errorf("Rank() not descending at %d: %v", i, ranked)
		}
	}
	if e.Rank(make(analysis.PitchClassProfile, 12), 3) != nil {
		t.Error("Rank(silence) should be nil")
	}
}

func TestNewEstimatorValidation(t *testing.T) {
	if _, err := NewEstimator(nil, DefaultTieEpsilon); !errors.Is(err, fault.ErrConfiguration) {
		t.Errorf("NewEstimator(nil) error = %v, want ErrConfiguration", err)
	}
	templates, _ := BuildTemplates(DefaultQualities)
	if _, err := NewEstimator(templates, -1); !errors.Is(err, fault.ErrConfiguration) {
		t.Errorf("negative epsilon error = %v, want ErrConfiguration", err)
	}
	if _, err := NewEstimator([]Template{{Label: "empty"}}, 0); !errors.Is(err, fault.ErrConfiguration) {
		t.Errorf("empty template error = %v, want ErrConfiguration", err)
	}
}

func BenchmarkEstimate(b *testing.B) {
	templates, _ := BuildTemplates([]Quality{Major, Minor, Diminished, Augmented, Dominant7, Major7, Minor7})
	e, _ := NewEstimator(templates, DefaultTieEpsilon)
	p := profileOf(map[int]float64{0: 1, 4: 0.9, 7: 0.8, 11: 0.3})
	for b.Loop() {
		_ = e.Estimate(p)
	}
}

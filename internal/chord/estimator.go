// SPDX-License-Identifier: MIT
package chord

import (
	"fmt"
	"math"
	"sort"

	"chordscope/internal/analysis"
	"chordscope/internal/fault"

	"gonum.org/v1/gonum/floats"
)

// DefaultTieEpsilon is the score difference below which two templates are
// considered tied.
const DefaultTieEpsilon = 1e-6

// Estimate is the best template match for one profile. An empty Label means
// no chord (silent or unusable profile) and always comes with zero Strength.
type Estimate struct {
	Label    string
	Root     int
	Quality  Quality
	Tones    int
	Strength float64 // Cosine similarity in [0, 1].
}

// HasChord reports whether the estimate names a chord.
func (e Estimate) HasChord() bool {
	return e.Label != ""
}

// Estimator scores profiles against a fixed template set.
type Estimator struct {
	templates  []Template
	tieEpsilon float64
}

// NewEstimator returns an estimator over templates. Ties within tieEpsilon
// go to the template with fewer tones, then to the earlier template.
func NewEstimator(templates []Template, tieEpsilon float64) (*Estimator, error) {
	if len(templates) == 0 {
		return nil, fmt.Errorf("%w: estimator needs at least one template", fault.ErrConfiguration)
	}
	if tieEpsilon < 0 || math.IsNaN(tieEpsilon) {
		return nil, fmt.Errorf("%w: tie epsilon must be >= 0, got %g", fault.ErrConfiguration, tieEpsilon)
	}
	for i, t := range templates {
		if t.norm == 0 {
			return nil, fmt.Errorf("%w: template %d (%q) is empty", fault.ErrConfiguration, i, t.Label)
		}
	}
	ts := make([]Template, len(templates))
	copy(ts, templates)
	return &Estimator{templates: ts, tieEpsilon: tieEpsilon}, nil
}

// Templates returns the number of templates the estimator scores.
func (e *Estimator) Templates() int {
	return len(e.templates)
}

// Estimate returns the best-scoring template for profile. Profiles with more
// than 12 bins are folded to semitones first.
func (e *Estimator) Estimate(profile analysis.PitchClassProfile) Estimate {
	scores, ok := e.score(profile)
	if !ok {
		return Estimate{}
	}
	best := 0
	for i := 1; i < len(scores); i++ {
		if e.beats(i, best, scores) {
			best = i
		}
	}
	return e.estimateAt(best, scores[best])
}

// Rank returns up to n estimates, best first. The first entry always equals
// Estimate(profile); the rest follow in descending score.
func (e *Estimator) Rank(profile analysis.PitchClassProfile, n int) []Estimate {
	scores, ok := e.score(profile)
	if !ok || n <= 0 {
		return nil
	}
	best := 0
	for i := 1; i < len(scores); i++ {
		if e.beats(i, best, scores) {
			best = i
		}
	}

	order := make([]int, 0, len(scores)-1)
	for i := range scores {
		if i != best {
			order = append(order, i)
		}
	}
	sort.SliceStable(order, func(a, b int) bool {
		sa, sb := scores[order[a]], scores[order[b]]
		if sa != sb {
			return sa > sb
		}
		return e.templates[order[a]].Tones < e.templates[order[b]].Tones
	})

	out := make([]Estimate, 0, min(n, len(scores)))
	out = append(out, e.estimateAt(best, scores[best]))
	for _, i := range order {
		if len(out) == n {
			break
		}
		out = append(out, e.estimateAt(i, scores[i]))
	}
	return out
}

// beats reports whether template i should replace the current best.
func (e *Estimator) beats(i, best int, scores []float64) bool {
	diff := scores[i] - scores[best]
	if diff > e.tieEpsilon {
		return true
	}
	if diff < -e.tieEpsilon {
		return false
	}
	return e.templates[i].Tones < e.templates[best].Tones
}

// score computes the cosine similarity of profile with every template. It
// returns false for empty, zero or non-finite profiles.
func (e *Estimator) score(profile analysis.PitchClassProfile) ([]float64, bool) {
	if !profile.Valid() || profile.IsZero() {
		return nil, false
	}
	folded := profile.Fold12()
	norm := floats.Norm(folded[:], 2)
	if norm <= analysis.ProfileEpsilon {
		return nil, false
	}

	scores := make([]float64, len(e.templates))
	for i := range e.templates {
		t := &e.templates[i]
		s := floats.Dot(folded[:], t.Pattern[:]) / (norm * t.norm)
		scores[i] = math.Max(0, math.Min(1, s))
	}
	return scores, true
}

func (e *Estimator) estimateAt(i int, score float64) Estimate {
	t := e.templates[i]
	return Estimate{
		Label:    t.Label,
		Root:     t.Root,
		Quality:  t.Quality,
		Tones:    t.Tones,
		Strength: score,
	}
}

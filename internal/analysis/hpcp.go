// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"math"
	"strings"

	"chordscope/internal/fault"

	"gonum.org/v1/gonum/floats"
)

// ProfileEpsilon is added to normalization denominators so an empty profile
// stays all-zero instead of dividing by zero.
const ProfileEpsilon = 1e-12

// Weighting is the shape used to spread a peak over neighbouring bins.
type Weighting int

const (
	WeightSquaredCosine Weighting = iota
	WeightCosine
	WeightTriangular
	WeightNone
)

func (w Weighting) String() string {
	switch w {
	case WeightSquaredCosine:
		return "squaredCosine"
	case WeightCosine:
		return "cosine"
	case WeightTriangular:
		return "triangular"
	case WeightNone:
		return "none"
	default:
		return fmt.Sprintf("Weighting(%d)", int(w))
	}
}

// ParseWeighting converts a weighting name to a Weighting.
func ParseWeighting(name string) (Weighting, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "squaredcosine", "squared_cosine":
		return WeightSquaredCosine, nil
	case "cosine":
		return WeightCosine, nil
	case "triangular":
		return WeightTriangular, nil
	case "none":
		return WeightNone, nil
	default:
		return WeightSquaredCosine, fmt.Errorf("unknown hpcp weighting: %q", name)
	}
}

// Normalization selects how a profile is scaled after accumulation.
type Normalization int

const (
	NormUnitMax Normalization = iota
	NormUnitSum
	NormNone
)

func (n Normalization) String() string {
	switch n {
	case NormUnitMax:
		return "unitMax"
	case NormUnitSum:
		return "unitSum"
	case NormNone:
		return "none"
	default:
		return fmt.Sprintf("Normalization(%d)", int(n))
	}
}

// ParseNormalization converts a normalization name to a Normalization.
func ParseNormalization(name string) (Normalization, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "unitmax":
		return NormUnitMax, nil
	case "unitsum":
		return NormUnitSum, nil
	case "none":
		return NormNone, nil
	default:
		return NormUnitMax, fmt.Errorf("unknown hpcp normalization: %q", name)
	}
}

// PitchClassProfile is a non-negative energy vector of Size bins. Bin 0 is
// C; with more than 12 bins each semitone is split into Size/12 bins.
type PitchClassProfile []float64

// Clone returns an independent copy of p.
func (p PitchClassProfile) Clone() PitchClassProfile {
	if p == nil {
		return nil
	}
	out := make(PitchClassProfile, len(p))
	copy(out, p)
	return out
}

// IsZero reports whether every bin is zero.
func (p PitchClassProfile) IsZero() bool {
	for _, v := range p {
		if v != 0 {
			return false
		}
	}
	return true
}

// Valid reports whether p is non-empty, finite and non-negative.
func (p PitchClassProfile) Valid() bool {
	if len(p) == 0 || floats.HasNaN(p) {
		return false
	}
	for _, v := range p {
		if v < 0 || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Fold12 sums an N-bin profile into 12 semitone bins, each centred on its
// pitch class. A 12-bin profile is returned as a copy.
func (p PitchClassProfile) Fold12() [12]float64 {
	var out [12]float64
	if len(p) == 0 || len(p)%12 != 0 {
		return out
	}
	r := len(p) / 12
	for b, v := range p {
		out[((b+r/2)/r)%12] += v
	}
	return out
}

// HPCPParams configures a Profiler.
type HPCPParams struct {
	Size            int
	ReferenceFreq   float64 // Frequency of A4 in Hz.
	MinFrequency    float64
	MaxFrequency    float64
	WindowSemitones float64 // Full width of the weighting window.
	Weighting       Weighting
	Harmonics       int     // Extra harmonic multiples (2x, 3x, ...) credited per peak.
	HarmonicDecay   float64 // Weight of harmonic h is HarmonicDecay^(h-1).
	Normalization   Normalization
	NonLinear       bool // sin^2(pi*x/2) after unitMax normalization.
}

// DefaultHPCPParams returns a 12-bin, unit-max profile tuned to A4=440 Hz.
func DefaultHPCPParams() HPCPParams {
	return HPCPParams{
		Size:            12,
		ReferenceFreq:   440,
		MinFrequency:    40,
		MaxFrequency:    4000,
		WindowSemitones: 1,
		Weighting:       WeightSquaredCosine,
		Harmonics:       0,
		HarmonicDecay:   0.6,
		Normalization:   NormUnitMax,
		NonLinear:       true,
	}
}

// Profiler folds spectral peaks into a PitchClassProfile. It holds no state
// between calls.
type Profiler struct {
	params    HPCPParams
	halfWidth float64 // Half the weighting window, in bins.
	harmonics []float64
}

// NewProfiler validates params and returns a Profiler.
func NewProfiler(params HPCPParams) (*Profiler, error) {
	switch {
	case params.Size <= 0 || params.Size%12 != 0:
		return nil, fmt.Errorf("%w: hpcp size must be a positive multiple of 12, got %d", fault.ErrConfiguration, params.Size)
	case params.ReferenceFreq <= 0:
		return nil, fmt.Errorf("%w: reference frequency must be positive, got %g", fault.ErrConfiguration, params.ReferenceFreq)
	case params.MinFrequency <= 0 || params.MaxFrequency <= params.MinFrequency:
		return nil, fmt.Errorf("%w: hpcp band [%g, %g] Hz is invalid", fault.ErrConfiguration, params.MinFrequency, params.MaxFrequency)
	case params.WindowSemitones <= 0 || params.WindowSemitones > 12:
		return nil, fmt.Errorf("%w: window width must be within (0, 12] semitones, got %g", fault.ErrConfiguration, params.WindowSemitones)
	case params.Harmonics < 0:
		return nil, fmt.Errorf("%w: harmonics must be >= 0, got %d", fault.ErrConfiguration, params.Harmonics)
	case params.Harmonics > 0 && (params.HarmonicDecay <= 0 || params.HarmonicDecay > 1):
		return nil, fmt.Errorf("%w: harmonic decay must be within (0, 1], got %g", fault.ErrConfiguration, params.HarmonicDecay)
	case params.NonLinear && params.Normalization != NormUnitMax:
		return nil, fmt.Errorf("%w: non-linear hpcp requires unitMax normalization, got %v", fault.ErrConfiguration, params.Normalization)
	}

	// harmonics[0] is the fundamental itself.
	weights := make([]float64, params.Harmonics+1)
	weights[0] = 1
	for h := 1; h < len(weights); h++ {
		weights[h] = weights[h-1] * params.HarmonicDecay
	}

	return &Profiler{
		params:    params,
		halfWidth: params.WindowSemitones * float64(params.Size) / 12 / 2,
		harmonics: weights,
	}, nil
}

// Params returns the profiler configuration.
func (p *Profiler) Params() HPCPParams {
	return p.params
}

// Profile returns a newly allocated, normalized profile for peaks. Peaks
// outside the band or with non-positive frequency contribute nothing; with
// no contributing peaks every bin is zero.
func (p *Profiler) Profile(peaks []SpectralPeak) PitchClassProfile {
	profile := make(PitchClassProfile, p.params.Size)
	for _, peak := range peaks {
		if peak.Frequency <= 0 || peak.Magnitude <= 0 {
			continue
		}
		if peak.Frequency < p.params.MinFrequency || peak.Frequency > p.params.MaxFrequency {
			continue
		}
		for h, w := range p.harmonics {
			freq := peak.Frequency * float64(h+1)
			if freq > p.params.MaxFrequency {
				break
			}
			p.accumulate(profile, freq, peak.Magnitude*w)
		}
	}
	p.normalize(profile)
	return profile
}

// accumulate spreads weight over the bins within halfWidth of freq's
// position on the pitch-class circle.
func (p *Profiler) accumulate(profile PitchClassProfile, freq, weight float64) {
	size := float64(p.params.Size)
	// Semitones above C, since bin 0 is C and A sits 9 semitones up.
	semis := 12*math.Log2(freq/p.params.ReferenceFreq) + 9
	pos := math.Mod(semis*size/12, size)
	if pos < 0 {
		pos += size
	}

	for k := int(math.Ceil(pos - p.halfWidth)); k <= int(math.Floor(pos+p.halfWidth)); k++ {
		d := math.Abs(float64(k)-pos) / p.halfWidth
		w := p.windowWeight(d)
		if w <= 0 {
			continue
		}
		bin := ((k % p.params.Size) + p.params.Size) % p.params.Size
		profile[bin] += weight * w
	}
}

// windowWeight maps a normalized distance in [0, 1] to a weight.
func (p *Profiler) windowWeight(d float64) float64 {
	if d > 1 {
		return 0
	}
	switch p.params.Weighting {
	case WeightCosine:
		return math.Cos(d * math.Pi / 2)
	case WeightTriangular:
		return 1 - d
	case WeightNone:
		return 1
	default:
		c := math.Cos(d * math.Pi / 2)
		return c * c
	}
}

func (p *Profiler) normalize(profile PitchClassProfile) {
	switch p.params.Normalization {
	case NormUnitMax:
		m := floats.Max(profile)
		if m <= 0 {
			return
		}
		floats.Scale(1/(m+ProfileEpsilon), profile)
		if p.params.NonLinear {
			for i, v := range profile {
				s := math.Sin(v * math.Pi / 2)
				profile[i] = s * s
			}
		}
	case NormUnitSum:
		sum := floats.Sum(profile)
		if sum <= 0 {
			return
		}
		floats.Scale(1/(sum+ProfileEpsilon), profile)
	}
}

// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"math"

	"chordscope/internal/fault"
)

// whiteningEpsilon keeps the envelope division finite.
const whiteningEpsilon = 1e-12

// WhiteningParams configures a Whitener.
type WhiteningParams struct {
	Enabled bool
	// EnvelopeOctaves is the width of the band, centred on each peak in
	// log-frequency, over which the spectral envelope is measured.
	EnvelopeOctaves float64
}

// DefaultWhiteningParams returns whitening over a one octave envelope.
func DefaultWhiteningParams() WhiteningParams {
	return WhiteningParams{Enabled: true, EnvelopeOctaves: 1.0}
}

// Whitener divides each peak magnitude by the local spectral envelope so
// that a bright timbre or a loud register does not dominate the profile.
// The envelope at a peak is the largest spectrum magnitude within
// EnvelopeOctaves around it, so the strongest component of a region maps
// to 1 and weaker ones keep their ratio to it.
type Whitener struct {
	params WhiteningParams
}

// NewWhitener validates params and returns a Whitener.
func NewWhitener(params WhiteningParams) (*Whitener, error) {
	if params.Enabled && (params.EnvelopeOctaves <= 0 || math.IsNaN(params.EnvelopeOctaves)) {
		return nil, fmt.Errorf("%w: whitening envelope must be a positive number of octaves, got %g",
			fault.ErrConfiguration, params.EnvelopeOctaves)
	}
	return &Whitener{params: params}, nil
}

// Whiten returns a new slice of the same length and order as peaks, with the
// same frequencies and rescaled magnitudes. When disabled it returns a copy.
func (w *Whitener) Whiten(s Spectrum, peaks []SpectralPeak) []SpectralPeak {
	out := make([]SpectralPeak, len(peaks))
	copy(out, peaks)
	if !w.params.Enabled || len(s.Magnitudes) == 0 || s.FrameSize <= 0 || s.SampleRate <= 0 {
		return out
	}

	binWidth := s.BinWidth()
	half := math.Exp2(w.params.EnvelopeOctaves / 2)
	last := len(s.Magnitudes) - 1

	for i, p := range out {
		lo := int(math.Floor(p.Frequency / half / binWidth))
		hi := int(math.Ceil(p.Frequency * half / binWidth))
		lo = max(lo, 0)
		hi = min(hi, last)
		lo = min(lo, hi)

		envelope := p.Magnitude
		for _, m := range s.Magnitudes[lo : hi+1] {
			envelope = math.Max(envelope, m)
		}
		out[i].Magnitude = p.Magnitude / (envelope + whiteningEpsilon)
	}
	return out
}

// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"chordscope/internal/fault"
)

// PeakOrder controls the ordering of extracted peaks.
type PeakOrder int

const (
	OrderByFrequency PeakOrder = iota
	OrderByMagnitude
)

func (o PeakOrder) String() string {
	if o == OrderByMagnitude {
		return "magnitude"
	}
	return "frequency"
}

// ParsePeakOrder converts "frequency" or "magnitude" to a PeakOrder.
func ParsePeakOrder(name string) (PeakOrder, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "frequency":
		return OrderByFrequency, nil
	case "magnitude":
		return OrderByMagnitude, nil
	default:
		return OrderByFrequency, fmt.Errorf("unknown peak order: %q", name)
	}
}

// PeakParams configures a PeakExtractor.
type PeakParams struct {
	MinFrequency float64 // Hz, inclusive.
	MaxFrequency float64 // Hz, inclusive.
	MaxPeaks     int
	ThresholdDB  float64 // Peaks below this level (dBFS) are dropped.
	OrderBy      PeakOrder
	Interpolate  bool // Parabolic refinement on the dB spectrum.
}

// DefaultPeakParams returns the extractor settings used by the live display.
func DefaultPeakParams() PeakParams {
	return PeakParams{
		MinFrequency: 0,
		MaxFrequency: 4000,
		MaxPeaks:     100,
		ThresholdDB:  -60,
		OrderBy:      OrderByFrequency,
		Interpolate:  true,
	}
}

// PeakExtractor picks local maxima out of a magnitude spectrum.
type PeakExtractor struct {
	params    PeakParams
	threshold float64 // Linear form of ThresholdDB.
}

// NewPeakExtractor validates params and returns an extractor.
func NewPeakExtractor(params PeakParams) (*PeakExtractor, error) {
	switch {
	case params.MinFrequency < 0:
		return nil, fmt.Errorf("%w: peak min frequency must be >= 0, got %g", fault.ErrConfiguration, params.MinFrequency)
	case params.MaxFrequency <= params.MinFrequency:
		return nil, fmt.Errorf("%w: peak max frequency %g must exceed min frequency %g",
			fault.ErrConfiguration, params.MaxFrequency, params.MinFrequency)
	case params.MaxPeaks <= 0:
		return nil, fmt.Errorf("%w: max peaks must be positive, got %d", fault.ErrConfiguration, params.MaxPeaks)
	case math.IsNaN(params.ThresholdDB):
		return nil, fmt.Errorf("%w: peak threshold must be a number", fault.ErrConfiguration)
	}
	return &PeakExtractor{params: params, threshold: fromDB(params.ThresholdDB)}, nil
}

// Params returns the extractor configuration.
func (e *PeakExtractor) Params() PeakParams {
	return e.params
}

// Extract returns at most MaxPeaks peaks inside the configured band whose
// level reaches the threshold. The strongest peaks are kept; the result is
// then ordered by OrderBy. A silent spectrum yields an empty slice.
func (e *PeakExtractor) Extract(s Spectrum) []SpectralPeak {
	mags := s.Magnitudes
	if len(mags) < 3 || s.FrameSize <= 0 || s.SampleRate <= 0 {
		return []SpectralPeak{}
	}
	binWidth := s.BinWidth()

	// DC and Nyquist have only one neighbour and are never peaks.
	lo := max(1, int(math.Floor(e.params.MinFrequency/binWidth))-1)
	hi := min(len(mags)-2, int(math.Ceil(e.params.MaxFrequency/binWidth))+1)

	peaks := make([]SpectralPeak, 0, 32)
	for i := lo; i <= hi; i++ {
		m := mags[i]
		if m < e.threshold {
			continue
		}
		// A plateau reports its left edge only.
		if !(m > mags[i-1] && m >= mags[i+1]) {
			continue
		}

		freq, mag := float64(i)*binWidth, m
		if e.params.Interpolate {
			freq, mag = interpolatePeak(mags, i, binWidth)
		}
		if freq < e.params.MinFrequency || freq > e.params.MaxFrequency {
			continue
		}
		peaks = append(peaks, SpectralPeak{Frequency: freq, Magnitude: mag})
	}

	if len(peaks) > e.params.MaxPeaks {
		sort.SliceStable(peaks, func(i, j int) bool {
			return peaks[i].Magnitude > peaks[j].Magnitude
		})
		peaks = peaks[:e.params.MaxPeaks]
		if e.params.OrderBy == OrderByFrequency {
			sort.SliceStable(peaks, func(i, j int) bool {
				return peaks[i].Frequency < peaks[j].Frequency
			})
		}
		return peaks
	}

	// Peaks were collected in ascending frequency.
	if e.params.OrderBy == OrderByMagnitude {
		sort.SliceStable(peaks, func(i, j int) bool {
			return peaks[i].Magnitude > peaks[j].Magnitude
		})
	}
	return peaks
}

// interpolatePeak fits a parabola through the dB magnitudes of bin i and its
// neighbours and returns the refined frequency and linear magnitude.
func interpolatePeak(mags []float64, i int, binWidth float64) (float64, float64) {
	a, b, c := toDB(mags[i-1]), toDB(mags[i]), toDB(mags[i+1])
	denom := a - 2*b + c
	if denom == 0 {
		return float64(i) * binWidth, mags[i]
	}
	p := 0.5 * (a - c) / denom
	p = math.Max(-0.5, math.Min(0.5, p))
	peakDB := b - 0.25*(a-c)*p
	return (float64(i) + p) * binWidth, fromDB(peakDB)
}

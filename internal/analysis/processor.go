// SPDX-License-Identifier: MIT

// Package analysis turns one time-domain audio frame into a pitch-class
// profile: window and FFT (SpectrumAnalyzer), local-maximum peak picking
// (PeakExtractor), envelope whitening (Whitener) and octave folding
// (Profiler). Every stage is deterministic, and the same input always
// yields the same output.
package analysis

import "math"

// NoteNames spells the twelve pitch classes, indexed from C.
var NoteNames = [12]string{"C", "C#", "D", "Eb", "E", "F", "F#", "G", "Ab", "A", "Bb", "B"}

// PitchClassName returns the note name for a pitch class, wrapping values
// outside 0-11.
func PitchClassName(pc int) string {
	return NoteNames[((pc%12)+12)%12]
}

// AudioFrame is one fixed-length window of mono samples in [-1, 1].
// A frame is owned by a single analysis tick and is never mutated.
type AudioFrame struct {
	Samples    []float64
	SampleRate float64
}

// NewAudioFrame copies samples into a new frame.
func NewAudioFrame(samples []float64, sampleRate float64) AudioFrame {
	s := make([]float64, len(samples))
	copy(s, samples)
	return AudioFrame{Samples: s, SampleRate: sampleRate}
}

// Len returns the number of samples in the frame.
func (f AudioFrame) Len() int {
	return len(f.Samples)
}

// Spectrum holds FrameSize/2+1 magnitudes, scaled so that a full-scale sine
// reads 1.0 (0 dBFS) at its bin.
type Spectrum struct {
	Magnitudes []float64
	SampleRate float64
	FrameSize  int
}

// BinWidth returns the frequency resolution in Hz.
func (s Spectrum) BinWidth() float64 {
	return s.SampleRate / float64(s.FrameSize)
}

// FrequencyForBin returns the center frequency (Hz) of bin i.
func (s Spectrum) FrequencyForBin(i int) float64 {
	return float64(i) * s.BinWidth()
}

// BinForFrequency returns the fractional bin index of freq.
func (s Spectrum) BinForFrequency(freq float64) float64 {
	return freq / s.BinWidth()
}

// SpectralPeak is a prominent spectral component. Magnitude is linear.
type SpectralPeak struct {
	Frequency float64
	Magnitude float64
}

// MagnitudeDB returns the peak magnitude in dBFS.
func (p SpectralPeak) MagnitudeDB() float64 {
	return toDB(p.Magnitude)
}

// minMagnitude keeps log conversions finite for silent bins (-400 dB).
const minMagnitude = 1e-20

func toDB(mag float64) float64 {
	return 20 * math.Log10(math.Max(mag, minMagnitude))
}

func fromDB(db float64) float64 {
	return math.Pow(10, db/20)
}

// isFinite reports whether every value in s is neither NaN nor infinite.
func isFinite(s []float64) bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

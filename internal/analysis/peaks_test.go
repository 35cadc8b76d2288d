// SPDX-License-Identifier: MIT
package analysis

import (
	"errors"
	"math"
	"testing"

	"chordscope/internal/fault"
	"chordscope/pkg/utils"
)

func spectrumOf(t *testing.T, samples []float64) Spectrum {
	t.Helper()
	a, err := NewSpectrumAnalyzer(len(samples), BlackmanHarris, BackendGonum)
	if err != nil {
		t.Fatalf("NewSpectrumAnalyzer() error = %v", err)
	}
	spec, err := a.Analyze(AudioFrame{Samples: samples, SampleRate: testSampleRate})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	return spec
}

func mustExtractor(t *testing.T, p PeakParams) *PeakExtractor {
	t.Helper()
	e, err := NewPeakExtractor(p)
	if err != nil {
		t.Fatalf("NewPeakExtractor() error = %v", err)
	}
	return e
}

func TestExtractSilenceHasNoPeaks(t *testing.T) {
	e := mustExtractor(t, DefaultPeakParams())
	peaks := e.Extract(spectrumOf(t, utils.GenerateSilence(testFrameSize)))
	if len(peaks) != 0 {
		t.Errorf("Extract(silence) = %v, want none", peaks)
	}
}

func TestExtractSineInterpolates(t *testing.T) {
	e := mustExtractor(t, DefaultPeakParams())
	peaks := e.Extract(spectrumOf(t, utils.GenerateSineWave(testFrameSize, testSampleRate, 440, 0.5)))
	if len(peaks) != 1 {
		t.Fatalf("Extract() returned %d peaks, want 1: %v", len(peaks), peaks)
	}
	if math.Abs(peaks[0].Frequency-440) > 1.0 {
		t.Errorf("frequency = %f, want ~440", peaks[0].Frequency)
	}
	if math.Abs(peaks[0].MagnitudeDB()-toDB(0.5)) > 0.5 {
		t.Errorf("level = %f dB, want ~%f dB", peaks[0].MagnitudeDB(), toDB(0.5))
	}
}

func TestExtractRespectsBandAndThreshold(t *testing.T) {
	e := mustExtractor(t, DefaultPeakParams())
	tests := []struct {
		name string
		freq float64
		amp  float64
	}{
		{"Above Band", 5000, 0.5},
		{"Below Threshold", 440, 0.0005},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			peaks := e.Extract(spectrumOf(t, utils.GenerateSineWave(testFrameSize, testSampleRate, tt.freq, tt.amp)))
			if len(peaks) != 0 {
				t.Errorf("Extract() = %v, want none", peaks)
			}
		})
	}
}

func TestExtractKeepsStrongestAndOrders(t *testing.T) {
	samples := utils.GenerateSineWave(testFrameSize, testSampleRate, 300, 0.1)
	for i, s := range utils.GenerateSineWave(testFrameSize, testSampleRate, 600, 0.3) {
		samples[i] += s
	}
	for i, s := range utils.GenerateSineWave(testFrameSize, testSampleRate, 1200, 0.5) {
		samples[i] += s
	}
	spec := spectrumOf(t, samples)

	tests := []struct {
		order PeakOrder
		want  []float64
	}{
		{OrderByFrequency, []float64{600, 1200}},
		{OrderByMagnitude, []float64{1200, 600}},
	}
	for _, tt := range tests {
		t.Run(tt.order.String(), func(t *testing.T) {
			p := DefaultPeakParams()
			p.MaxPeaks = 2
			p.OrderBy = tt.order
			peaks := mustExtractor(t, p).Extract(spec)
			if len(peaks) != len(tt.want) {
				t.Fatalf("Extract() returned %d peaks, want %d", len(peaks), len(tt.want))
			}
			for i, f := range tt.want {
				if math.Abs(peaks[i].Frequency-f) > 1.0 {
					t.Errorf("peak %d frequency = %f, want ~%f", i, peaks[i].Frequency, f)
				}
			}
		})
	}
}

func TestExtractPlateauReportsOnce(t *testing.T) {
	p := DefaultPeakParams()
	p.Interpolate = false
	spec := Spectrum{Magnitudes: []float64{0, 1, 1, 0.5, 0}, SampleRate: 8, FrameSize: 8}
	peaks := mustExtractor(t, p).Extract(spec)
	if len(peaks) != 1 || peaks[0].Frequency != 1 {
		t.Errorf("Extract(plateau) = %v, want one peak at 1 Hz", peaks)
	}
}

func TestNewPeakExtractorValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*PeakParams)
	}{
		{"Negative Min", func(p *PeakParams) { p.MinFrequency = -1 }},
		{"Empty Band", func(p *PeakParams) { p.MaxFrequency = p.MinFrequency }},
		{"No Peaks", func(p *PeakParams) { p.MaxPeaks = 0 }},
		{"NaN Threshold", func(p *PeakParams) { p.ThresholdDB = math.NaN() }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultPeakParams()
			tt.mutate(&p)
			if _, err := NewPeakExtractor(p); !errors.Is(err, fault.ErrConfiguration) {
				t.Errorf("NewPeakExtractor() error = %v, want ErrConfiguration", err)
			}
		})
	}
}

// SPDX-License-Identifier: MIT

// Package utils holds synthetic signal generators and test doubles shared by
// the analysis, pipeline and transport tests.
package utils

import "math"

// NoteFrequency returns the equal-tempered frequency of a MIDI note number
// with A4 (69) at 440 Hz.
func NoteFrequency(midi int) float64 {
	return 440 * math.Exp2(float64(midi-69)/12)
}

// GenerateSineWave returns size samples of a sine at frequency Hz.
func GenerateSineWave(size int, sampleRate, frequency, amplitude float64) []float64 {
	buffer := make([]float64, size)
	for i := range buffer {
		t := float64(i) / sampleRate
		buffer[i] = amplitude * math.Sin(2*math.Pi*frequency*t)
	}
	return buffer
}

// GenerateChord sums one sine per frequency, each at amplitude.
func GenerateChord(size int, sampleRate, amplitude float64, frequencies ...float64) []float64 {
	buffer := make([]float64, size)
	for _, f := range frequencies {
		for i := range buffer {
			t := float64(i) / sampleRate
			buffer[i] += amplitude * math.Sin(2*math.Pi*f*t)
		}
	}
	return buffer
}

// GenerateComplexWave returns a 440 Hz tone with its second and third
// harmonics.
func GenerateComplexWave(size int, sampleRate float64) []float64 {
	buffer := make([]float64, size)
	for i := range buffer {
		tm := float64(i) / sampleRate
		buffer[i] = math.Sin(2*math.Pi*440*tm)*0.5 +
			math.Sin(2*math.Pi*880*tm)*0.3 +
			math.Sin(2*math.Pi*1320*tm)*0.2
	}
	return buffer
}

// GenerateSilence returns size zero samples.
func GenerateSilence(size int) []float64 {
	return make([]float64, size)
}

// FindPeakBin returns the index of the largest magnitude in
// [startBin, endBin].
func FindPeakBin(magnitudes []float64, startBin, endBin int) int {
	if len(magnitudes) == 0 {
		return 0
	}

	if startBin < 0 {
		startBin = 0
	}

	if endBin >= len(magnitudes) {
		endBin = len(magnitudes) - 1
	}

	peakBin := startBin
	peakValue := magnitudes[startBin]

	for bin := startBin + 1; bin <= endBin; bin++ {
		if magnitudes[bin] > peakValue {
			peakValue = magnitudes[bin]
			peakBin = bin
		}
	}

	return peakBin
}

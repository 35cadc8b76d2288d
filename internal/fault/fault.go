// SPDX-License-Identifier: MIT

// Package fault defines the error kinds shared by the analysis pipeline.
// Callers wrap them with context and test with errors.Is.
package fault

import "errors"

var (
	// ErrConfiguration marks invalid startup configuration (frame size,
	// window, band, bin count, chord templates). Fatal.
	ErrConfiguration = errors.New("configuration error")

	// ErrCaptureUnavailable marks a missing or unusable audio source. Fatal,
	// and always returned before the analysis loop starts.
	ErrCaptureUnavailable = errors.New("capture unavailable")

	// ErrTransientAnalysis marks a single tick whose DSP produced invalid
	// data. The tick is dropped and the loop continues.
	ErrTransientAnalysis = errors.New("transient analysis failure")

	// ErrStarved is returned when the capture source has no fresh frame
	// within the tick budget. The tick is skipped, never queued.
	ErrStarved = errors.New("capture starved")
)

// IsFatal reports whether err must abort startup rather than a single tick.
func IsFatal(err error) bool {
	return errors.Is(err, ErrConfiguration) || errors.Is(err, ErrCaptureUnavailable)
}

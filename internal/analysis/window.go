// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/dsp/window"
)

// WindowFunc selects the taper applied to a frame before the transform.
type WindowFunc int

const (
	BlackmanHarris WindowFunc = iota
	Blackman
	BlackmanNuttall
	BartlettHann
	Hann
	Hamming
	Lanczos
	Nuttall
	Rectangular
)

var windowNames = map[WindowFunc]string{
	BlackmanHarris:  "blackmanharris",
	Blackman:        "blackman",
	BlackmanNuttall: "blackmannuttall",
	BartlettHann:    "bartletthann",
	Hann:            "hann",
	Hamming:         "hamming",
	Lanczos:         "lanczos",
	Nuttall:         "nuttall",
	Rectangular:     "rectangular",
}

func (w WindowFunc) String() string {
	if name, ok := windowNames[w]; ok {
		return name
	}
	return fmt.Sprintf("WindowFunc(%d)", int(w))
}

// ParseWindowFunc converts a case-insensitive name to a WindowFunc. The
// four-term Blackman-Harris window ("blackmanharris92") and its common
// aliases all map to BlackmanHarris.
func ParseWindowFunc(name string) (WindowFunc, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "blackmanharris", "blackman-harris", "blackmanharris92", "blackmanharris62":
		return BlackmanHarris, nil
	case "blackman":
		return Blackman, nil
	case "blackmannuttall":
		return BlackmanNuttall, nil
	case "bartletthann":
		return BartlettHann, nil
	case "hann", "hanning":
		return Hann, nil
	case "hamming":
		return Hamming, nil
	case "lanczos":
		return Lanczos, nil
	case "nuttall":
		return Nuttall, nil
	case "rectangular", "none":
		return Rectangular, nil
	default:
		return BlackmanHarris, fmt.Errorf("unknown window function name: %q", name)
	}
}

// windowCoefficients returns n coefficients of the selected window.
func windowCoefficients(n int, w WindowFunc) ([]float64, error) {
	// gonum's window functions scale the sequence in place, so start from ones.
	coeffs := make([]float64, n)
	for i := range coeffs {
		coeffs[i] = 1.0
	}

	switch w {
	case BlackmanHarris:
		window.BlackmanHarris(coeffs)
	case Blackman:
		window.Blackman(coeffs)
	case BlackmanNuttall:
		window.BlackmanNuttall(coeffs)
	case BartlettHann:
		window.BartlettHann(coeffs)
	case Hann:
		window.Hann(coeffs)
	case Hamming:
		window.Hamming(coeffs)
	case Lanczos:
		window.Lanczos(coeffs)
	case Nuttall:
		window.Nuttall(coeffs)
	case Rectangular:
		window.Rectangular(coeffs)
	default:
		return nil, fmt.Errorf("unsupported window function %v", w)
	}
	return coeffs, nil
}

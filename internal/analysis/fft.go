// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"math/cmplx"
	"strings"
	"sync"

	"chordscope/internal/fault"
	applog "chordscope/internal/log"
	"chordscope/pkg/bitint"

	dspfft "github.com/mjibson/go-dsp/fft"
	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"
)

// FFTBackend selects the transform implementation.
type FFTBackend int

const (
	// BackendGonum uses a reusable gonum real FFT plan.
	BackendGonum FFTBackend = iota
	// BackendGoDSP uses go-dsp's FFTReal, which allocates per call.
	BackendGoDSP
)

func (b FFTBackend) String() string {
	switch b {
	case BackendGonum:
		return "gonum"
	case BackendGoDSP:
		return "godsp"
	default:
		return fmt.Sprintf("FFTBackend(%d)", int(b))
	}
}

// ParseFFTBackend converts a backend name to an FFTBackend.
func ParseFFTBackend(name string) (FFTBackend, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "gonum":
		return BackendGonum, nil
	case "godsp", "go-dsp":
		return BackendGoDSP, nil
	default:
		return BackendGonum, fmt.Errorf("unknown fft backend: %q", name)
	}
}

// Pre-allocated buffers for FFT calculations.
type fftWorkspace struct {
	input     []float64    // Windowed input signal.
	fftOutput []complex128 // N/2+1 complex coefficients.
	window    []float64    // Pre-calculated window coefficients.
	mu        sync.Mutex   // Serializes use of the buffers above.
}

// SpectrumAnalyzer windows a frame and computes its magnitude spectrum.
// It is safe for concurrent use; calls are serialized on the workspace.
type SpectrumAnalyzer struct {
	fftCalculator *fourier.FFT
	frameSize     int
	windowType    WindowFunc
	backend       FFTBackend
	scale         float64 // 2/sum(window), maps a full-scale sine to 1.0.
	workspace     fftWorkspace
}

// NewSpectrumAnalyzer prepares an analyzer for frames of frameSize samples.
// frameSize must be a power of two.
func NewSpectrumAnalyzer(frameSize int, windowType WindowFunc, backend FFTBackend) (*SpectrumAnalyzer, error) {
	if frameSize < 4 || !bitint.IsPowerOfTwo(frameSize) {
		return nil, fmt.Errorf("%w: frame size must be a power of 2, got %d (nearest %d)",
			fault.ErrConfiguration, frameSize, bitint.NearestPowerOfTwo(frameSize))
	}
	if backend != BackendGonum && backend != BackendGoDSP {
		return nil, fmt.Errorf("%w: unsupported fft backend %v", fault.ErrConfiguration, backend)
	}

	windowCoeffs, err := windowCoefficients(frameSize, windowType)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", fault.ErrConfiguration, err)
	}
	sum := floats.Sum(windowCoeffs)
	if sum <= 0 {
		return nil, fmt.Errorf("%w: window %v has no energy at size %d", fault.ErrConfiguration, windowType, frameSize)
	}

	applog.Debugf("Analysis: Initializing SpectrumAnalyzer (Size: %d, Window: %v, Backend: %v)", frameSize, windowType, backend)

	a := &SpectrumAnalyzer{
		frameSize:  frameSize,
		windowType: windowType,
		backend:    backend,
		scale:      2.0 / sum,
		workspace: fftWorkspace{
			input:     make([]float64, frameSize),
			fftOutput: make([]complex128, frameSize/2+1),
			window:    windowCoeffs,
		},
	}
	if backend == BackendGonum {
		a.fftCalculator = fourier.NewFFT(frameSize)
	}
	return a, nil
}

// FrameSize returns the number of samples the analyzer expects.
func (a *SpectrumAnalyzer) FrameSize() int {
	return a.frameSize
}

// SpectrumSize returns the number of magnitudes produced per frame.
func (a *SpectrumAnalyzer) SpectrumSize() int {
	return a.frameSize/2 + 1
}

// Window returns the configured window function.
func (a *SpectrumAnalyzer) Window() WindowFunc {
	return a.windowType
}

// Analyze returns the magnitude spectrum of frame in a newly allocated
// Spectrum.
func (a *SpectrumAnalyzer) Analyze(frame AudioFrame) (Spectrum, error) {
	mags := make([]float64, a.SpectrumSize())
	if err := a.AnalyzeInto(mags, frame); err != nil {
		return Spectrum{}, err
	}
	return Spectrum{Magnitudes: mags, SampleRate: frame.SampleRate, FrameSize: a.frameSize}, nil
}

// AnalyzeInto writes the magnitude spectrum of frame into dst, which must
// hold SpectrumSize values. With the gonum backend it does not allocate.
func (a *SpectrumAnalyzer) AnalyzeInto(dst []float64, frame AudioFrame) error {
	if len(dst) != a.SpectrumSize() {
		return fmt.Errorf("destination length %d does not match spectrum size %d", len(dst), a.SpectrumSize())
	}
	if len(frame.Samples) != a.frameSize {
		return fmt.Errorf("%w: frame has %d samples, analyzer expects %d",
			fault.ErrTransientAnalysis, len(frame.Samples), a.frameSize)
	}
	if frame.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate must be positive, got %f", fault.ErrTransientAnalysis, frame.SampleRate)
	}
	if !isFinite(frame.Samples) {
		return fmt.Errorf("%w: frame contains non-finite samples", fault.ErrTransientAnalysis)
	}

	ws := &a.workspace
	ws.mu.Lock()
	defer ws.mu.Unlock()

	for i, s := range frame.Samples {
		ws.input[i] = s * ws.window[i]
	}

	switch a.backend {
	case BackendGoDSP:
		coeffs := dspfft.FFTReal(ws.input)
		copy(ws.fftOutput, coeffs[:len(ws.fftOutput)])
	default:
		a.fftCalculator.Coefficients(ws.fftOutput, ws.input)
	}

	for i, c := range ws.fftOutput {
		dst[i] = cmplx.Abs(c) * a.scale
	}
	return nil
}

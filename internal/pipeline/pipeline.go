// SPDX-License-Identifier: MIT

// Package pipeline runs one audio frame through the analysis chain and
// drives it on a fixed cadence, publishing each result to a single slot
// that render loops read at their own rate.
package pipeline

import (
	"fmt"

	"chordscope/internal/analysis"
	"chordscope/internal/chord"
	"chordscope/internal/config"
	"chordscope/internal/fault"
	applog "chordscope/internal/log"

	"gonum.org/v1/gonum/floats"
)

// candidateCount is how many ranked estimates accompany each result.
const candidateCount = 3

// Result is the output of one pass through the chain.
type Result struct {
	Peaks      []analysis.SpectralPeak // Whitened.
	Profile    analysis.PitchClassProfile
	Estimate   chord.Estimate
	Candidates []chord.Estimate // Best first, Candidates[0] == Estimate.
	Gated      bool             // The noise gate treated the frame as silence.
}

// Pipeline is the stateless chain Framer -> Spectrum -> Peaks -> Whitening
// -> HPCP -> Estimate. Only the gate may change while it runs.
type Pipeline struct {
	analyzer  *analysis.SpectrumAnalyzer
	extractor *analysis.PeakExtractor
	whitener  *analysis.Whitener
	profiler  *analysis.Profiler
	estimator *chord.Estimator
	gate      *analysis.Gate
}

// New builds every stage from cfg. Any invalid setting is reported as
// fault.ErrConfiguration.
func New(cfg *config.Config) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	an, hp, ch := cfg.Analysis, cfg.HPCP, cfg.Chord

	windowType, err := analysis.ParseWindowFunc(an.Window)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", fault.ErrConfiguration, err)
	}
	backend, err := analysis.ParseFFTBackend(an.FFTBackend)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", fault.ErrConfiguration, err)
	}
	orderBy, err := analysis.ParsePeakOrder(an.OrderBy)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", fault.ErrConfiguration, err)
	}
	weighting, err := analysis.ParseWeighting(hp.Weighting)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", fault.ErrConfiguration, err)
	}
	normalization, err := analysis.ParseNormalization(hp.Normalization)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", fault.ErrConfiguration, err)
	}

	analyzer, err := analysis.NewSpectrumAnalyzer(an.FrameSize, windowType, backend)
	if err != nil {
		return nil, err
	}
	extractor, err := analysis.NewPeakExtractor(analysis.PeakParams{
		MinFrequency: an.MinFreq,
		MaxFrequency: an.MaxFreq,
		MaxPeaks:     an.MaxPeaks,
		ThresholdDB:  an.MagnitudeThresholdDB,
		OrderBy:      orderBy,
		Interpolate:  an.Interpolate,
	})
	if err != nil {
		return nil, err
	}
	whitener, err := analysis.NewWhitener(analysis.WhiteningParams{
		Enabled:         an.Whitening.Enabled,
		EnvelopeOctaves: an.Whitening.EnvelopeOctaves,
	})
	if err != nil {
		return nil, err
	}
	profiler, err := analysis.NewProfiler(analysis.HPCPParams{
		Size:            hp.Size,
		ReferenceFreq:   hp.ReferenceFreq,
		MinFrequency:    hp.MinFreq,
		MaxFrequency:    hp.MaxFreq,
		WindowSemitones: hp.WindowSemitones,
		Weighting:       weighting,
		Harmonics:       hp.Harmonics,
		HarmonicDecay:   hp.HarmonicDecay,
		Normalization:   normalization,
		NonLinear:       hp.NonLinear,
	})
	if err != nil {
		return nil, err
	}

	qualities, err := chord.ParseQualities(ch.Qualities)
	if err != nil {
		return nil, err
	}
	templates, err := chord.BuildTemplates(qualities)
	if err != nil {
		return nil, err
	}
	estimator, err := chord.NewEstimator(templates, ch.TieEpsilon)
	if err != nil {
		return nil, err
	}

	applog.Infof("Pipeline: frame %d @ %.0f Hz (%.2f Hz/bin), window %v, %d-bin profile, %d templates",
		an.FrameSize, cfg.Audio.SampleRate, cfg.Audio.SampleRate/float64(an.FrameSize),
		windowType, hp.Size, estimator.Templates())

	return &Pipeline{
		analyzer:  analyzer,
		extractor: extractor,
		whitener:  whitener,
		profiler:  profiler,
		estimator: estimator,
		gate:      analysis.NewGate(an.GateThreshold),
	}, nil
}

// NewStabilizer builds the display policy named in cfg.
func NewStabilizer(cfg *config.Config) (*chord.Stabilizer, error) {
	policy, err := chord.NewPolicy(cfg.Chord.Policy, cfg.Chord.Threshold, cfg.Chord.HysteresisMargin, cfg.Chord.MajorityWindow)
	if err != nil {
		return nil, err
	}
	return chord.NewStabilizer(policy), nil
}

// FrameSize returns the number of samples Process expects.
func (p *Pipeline) FrameSize() int {
	return p.analyzer.FrameSize()
}

// ProfileSize returns the number of bins in each profile.
func (p *Pipeline) ProfileSize() int {
	return p.profiler.Params().Size
}

// Gate returns the noise gate, which may be toggled while running.
func (p *Pipeline) Gate() *analysis.Gate {
	return p.gate
}

// Process runs frame through every stage. Errors wrap
// fault.ErrTransientAnalysis; the caller drops the tick and carries on.
func (p *Pipeline) Process(frame analysis.AudioFrame) (Result, error) {
	if frame.Len() != p.FrameSize() {
		return Result{}, fmt.Errorf("%w: frame has %d samples, want %d", fault.ErrTransientAnalysis, frame.Len(), p.FrameSize())
	}

	if !p.gate.Open(frame.Samples) {
		return Result{
			Peaks:   []analysis.SpectralPeak{},
			Profile: make(analysis.PitchClassProfile, p.ProfileSize()),
			Gated:   true,
		}, nil
	}

	spectrum, err := p.analyzer.Analyze(frame)
	if err != nil {
		return Result{}, err
	}
	if floats.HasNaN(spectrum.Magnitudes) {
		return Result{}, fmt.Errorf("%w: spectrum contains NaN", fault.ErrTransientAnalysis)
	}

	peaks := p.extractor.Extract(spectrum)
	whitened := p.whitener.Whiten(spectrum, peaks)
	profile := p.profiler.Profile(whitened)
	if !profile.Valid() {
		return Result{}, fmt.Errorf("%w: profile is not finite", fault.ErrTransientAnalysis)
	}

	candidates := p.estimator.Rank(profile, candidateCount)
	var estimate chord.Estimate
	if len(candidates) > 0 {
		estimate = candidates[0]
	}
	return Result{
		Peaks:      whitened,
		Profile:    profile,
		Estimate:   estimate,
		Candidates: candidates,
	}, nil
}

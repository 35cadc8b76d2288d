// SPDX-License-Identifier: MIT

// Package config holds the runtime configuration: built-in defaults, an
// optional YAML file, ENV_* overrides, and validation.
package config

import "time"

// Core configuration constants that define the boundaries and defaults
// for the analyzer.
const (
	// Audio capture
	DefaultInputDevice     = -1    // System default input device.
	DefaultSampleRate      = 44100 // Hz
	DefaultFramesPerBuffer = 512
	DefaultInputChannels   = 1
	DefaultLowLatency      = false

	// Spectral analysis
	DefaultFrameSize            = 4096
	DefaultWindow               = "blackmanharris"
	DefaultFFTBackend           = "gonum"
	DefaultPeakMinFreq          = 0.0
	DefaultPeakMaxFreq          = 4000.0
	DefaultMaxPeaks             = 100
	DefaultMagnitudeThresholdDB = -60.0
	DefaultOrderBy              = "frequency"
	DefaultInterpolate          = true
	DefaultGateThreshold        = 0.001 // 0.0-1.0, 0 disables the gate.
	DefaultWhitening            = true
	DefaultEnvelopeOctaves      = 1.0

	// Pitch-class profile
	DefaultHPCPSize        = 12
	DefaultReferenceFreq   = 440.0
	DefaultHPCPMinFreq     = 40.0
	DefaultHPCPMaxFreq     = 4000.0
	DefaultWindowSemitones = 1.0
	DefaultWeighting       = "squaredCosine"
	DefaultHarmonics       = 0
	DefaultHarmonicDecay   = 0.6
	DefaultNormalization   = "unitMax"
	DefaultNonLinear       = true

	// Chord estimation and display
	DefaultChordThreshold   = 0.6
	DefaultTieEpsilon       = 1e-6
	DefaultPolicy           = "threshold"
	DefaultHysteresisMargin = 0.1
	DefaultMajorityWindow   = 5

	// Recording
	DefaultRecordingDir = "./recordings"
	DefaultBitDepth     = 16

	// Transport
	DefaultWebSocketAddress = "localhost:8080"
	DefaultUDPTargetAddress = "127.0.0.1:9090"

	// Hardware and processing limits
	MinDeviceID     = -1     // -1 represents system default device
	MinSampleRate   = 8000   // Minimum usable sample rate (Hz)
	MaxSampleRate   = 192000 // Maximum supported sample rate (Hz)
	MinBufferFrames = 16
	MaxBufferFrames = 8192
	MinFrameSize    = 256
	MaxFrameSize    = 32768
	MinTickInterval = 10 * time.Millisecond
)

// Timing defaults.
const (
	DefaultTickInterval    = 200 * time.Millisecond
	DefaultRefreshInterval = 33 * time.Millisecond // ~30Hz
	DefaultUDPSendInterval = 33 * time.Millisecond
)

// DefaultChordQualities is the template set matched when none is configured.
var DefaultChordQualities = []string{"major", "minor"}

// Default returns a configuration populated with built-in defaults.
func Default() *Config {
	return &Config{
		Debug:    false,
		LogLevel: "info",
		Audio: AudioConfig{
			InputDevice:     DefaultInputDevice,
			SampleRate:      DefaultSampleRate,
			FramesPerBuffer: DefaultFramesPerBuffer,
			InputChannels:   DefaultInputChannels,
			LowLatency:      DefaultLowLatency,
		},
		Analysis: AnalysisConfig{
			FrameSize:            DefaultFrameSize,
			Window:               DefaultWindow,
			FFTBackend:           DefaultFFTBackend,
			MinFreq:              DefaultPeakMinFreq,
			MaxFreq:              DefaultPeakMaxFreq,
			MaxPeaks:             DefaultMaxPeaks,
			MagnitudeThresholdDB: DefaultMagnitudeThresholdDB,
			OrderBy:              DefaultOrderBy,
			Interpolate:          DefaultInterpolate,
			GateThreshold:        DefaultGateThreshold,
			Whitening: WhiteningConfig{
				Enabled:         DefaultWhitening,
				EnvelopeOctaves: DefaultEnvelopeOctaves,
			},
		},
		HPCP: HPCPConfig{
			Size:            DefaultHPCPSize,
			ReferenceFreq:   DefaultReferenceFreq,
			MinFreq:         DefaultHPCPMinFreq,
			MaxFreq:         DefaultHPCPMaxFreq,
			WindowSemitones: DefaultWindowSemitones,
			Weighting:       DefaultWeighting,
			Harmonics:       DefaultHarmonics,
			HarmonicDecay:   DefaultHarmonicDecay,
			Normalization:   DefaultNormalization,
			NonLinear:       DefaultNonLinear,
		},
		Chord: ChordConfig{
			Qualities:        append([]string(nil), DefaultChordQualities...),
			Threshold:        DefaultChordThreshold,
			TieEpsilon:       DefaultTieEpsilon,
			Policy:           DefaultPolicy,
			HysteresisMargin: DefaultHysteresisMargin,
			MajorityWindow:   DefaultMajorityWindow,
		},
		Loop: LoopConfig{
			TickInterval:    DefaultTickInterval,
			RefreshInterval: DefaultRefreshInterval,
		},
		Recording: RecordingConfig{
			Enabled:   false,
			OutputDir: DefaultRecordingDir,
			BitDepth:  DefaultBitDepth,
		},
		Transport: TransportConfig{
			WebSocketEnabled: false,
			WebSocketAddress: DefaultWebSocketAddress,
			UDPEnabled:       false,
			UDPTargetAddress: DefaultUDPTargetAddress,
			UDPSendInterval:  DefaultUDPSendInterval,
		},
		TUI: TUIConfig{
			Enabled: true,
		},
	}
}

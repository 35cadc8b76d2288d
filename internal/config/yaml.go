// SPDX-License-Identifier: MIT
package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"chordscope/internal/fault"
	applog "chordscope/internal/log"
	"chordscope/pkg/bitint"

	"gopkg.in/yaml.v3"
)

// Config represents the main application configuration structure, loaded from YAML.
type Config struct {
	Debug     bool            `yaml:"debug"`     // Forces the debug log level.
	LogLevel  string          `yaml:"log_level"` // debug, info, warn, error or fatal.
	Audio     AudioConfig     `yaml:"audio"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
	HPCP      HPCPConfig      `yaml:"hpcp"`
	Chord     ChordConfig     `yaml:"chord"`
	Loop      LoopConfig      `yaml:"loop"`
	Recording RecordingConfig `yaml:"recording"`
	Transport TransportConfig `yaml:"transport"`
	TUI       TUIConfig       `yaml:"tui"`
}

// AudioConfig holds settings related to audio capture.
type AudioConfig struct {
	InputDevice     int     `yaml:"input_device"`      // PortAudio device index for audio input (-1 for default).
	SampleRate      float64 `yaml:"sample_rate"`       // Sample rate in Hz (e.g., 44100, 48000).
	FramesPerBuffer int     `yaml:"frames_per_buffer"` // Frames delivered per PortAudio callback.
	InputChannels   int     `yaml:"input_channels"`    // Captured channels, downmixed to mono.
	LowLatency      bool    `yaml:"low_latency"`       // Request low latency settings from PortAudio device.
}

// AnalysisConfig covers framing, the spectrum, peak picking and whitening.
type AnalysisConfig struct {
	FrameSize            int             `yaml:"frame_size"` // Samples per analysis frame (power of 2).
	Window               string          `yaml:"window"`
	FFTBackend           string          `yaml:"fft_backend"` // gonum or godsp.
	MinFreq              float64         `yaml:"min_freq"`
	MaxFreq              float64         `yaml:"max_freq"`
	MaxPeaks             int             `yaml:"max_peaks"`
	MagnitudeThresholdDB float64         `yaml:"magnitude_threshold_db"`
	OrderBy              string          `yaml:"order_by"` // frequency or magnitude.
	Interpolate          bool            `yaml:"interpolate"`
	GateThreshold        float64         `yaml:"gate_threshold"` // Peak amplitude below which a frame is silence.
	Whitening            WhiteningConfig `yaml:"whitening"`
}

// WhiteningConfig controls spectral whitening of peaks.
type WhiteningConfig struct {
	Enabled         bool    `yaml:"enabled"`
	EnvelopeOctaves float64 `yaml:"envelope_octaves"`
}

// HPCPConfig controls how peaks fold into the pitch-class profile.
type HPCPConfig struct {
	Size            int     `yaml:"size"`           // Bins, a multiple of 12.
	ReferenceFreq   float64 `yaml:"reference_freq"` // A4 in Hz.
	MinFreq         float64 `yaml:"min_freq"`
	MaxFreq         float64 `yaml:"max_freq"`
	WindowSemitones float64 `yaml:"window_semitones"`
	Weighting       string  `yaml:"weighting"` // squaredCosine, cosine, triangular or none.
	Harmonics       int     `yaml:"harmonics"`
	HarmonicDecay   float64 `yaml:"harmonic_decay"`
	Normalization   string  `yaml:"normalization"` // unitMax, unitSum or none.
	NonLinear       bool    `yaml:"non_linear"`
}

// ChordConfig selects templates and the display policy.
type ChordConfig struct {
	Qualities        []string `yaml:"qualities"`
	Threshold        float64  `yaml:"threshold"` // Minimum strength to show a label.
	TieEpsilon       float64  `yaml:"tie_epsilon"`
	Policy           string   `yaml:"policy"` // threshold, hysteresis or majority.
	HysteresisMargin float64  `yaml:"hysteresis_margin"`
	MajorityWindow   int      `yaml:"majority_window"`
}

// LoopConfig sets the analysis and render cadences.
type LoopConfig struct {
	TickInterval    time.Duration `yaml:"tick_interval"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
}

// RecordingConfig holds settings related to audio recording functionality.
type RecordingConfig struct {
	Enabled   bool   `yaml:"enabled"`    // Record captured input to a WAV file.
	OutputDir string `yaml:"output_dir"` // Directory to save recorded audio files.
	BitDepth  int    `yaml:"bit_depth"`  // 16, 24 or 32.
}

// TransportConfig holds settings related to sending results over the network.
type TransportConfig struct {
	WebSocketEnabled bool          `yaml:"websocket_enabled"`
	WebSocketAddress string        `yaml:"websocket_address"`
	UDPEnabled       bool          `yaml:"udp_enabled"`
	UDPTargetAddress string        `yaml:"udp_target_address"` // e.g. "127.0.0.1:9090".
	UDPSendInterval  time.Duration `yaml:"udp_send_interval"`
}

// TUIConfig toggles the terminal display.
type TUIConfig struct {
	Enabled bool `yaml:"enabled"`
}

// LoadConfig loads configuration from a YAML file specified by path. If path is empty,
// it searches default locations ("config.yaml"). If no file is found, it uses built-in
// defaults. After loading defaults or from file, it applies environment variable
// overrides and validates the final configuration.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		candidates := []string{"config.yaml"}
		for _, candidate := range candidates {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: failed to parse config file: %v", fault.ErrConfiguration, err)
		}
	}

	// Apply environment variable overrides AFTER loading from file.
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// EffectiveLogLevel returns the log level to apply, with Debug taking
// precedence over LogLevel.
func (c *Config) EffectiveLogLevel() applog.LogLevel {
	if c.Debug {
		return applog.LevelDebug
	}
	level, _ := applog.ParseLevel(c.LogLevel)
	return level
}

// Validate checks ranges and cross-field constraints. Names of windows,
// weightings and chord qualities are resolved, and checked, when the
// pipeline is built. Every error wraps fault.ErrConfiguration.
func (c *Config) Validate() error {
	var errs []string
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Sprintf(format, args...))
	}

	if _, ok := applog.ParseLevel(c.LogLevel); !ok {
		fail("log_level %q is not a known level", c.LogLevel)
	}

	// Audio
	a := c.Audio
	if a.InputDevice < MinDeviceID {
		fail("audio.input_device must be >= %d, got %d", MinDeviceID, a.InputDevice)
	}
	if a.SampleRate < MinSampleRate || a.SampleRate > MaxSampleRate {
		fail("audio.sample_rate must be within [%d, %d] Hz, got %g", MinSampleRate, MaxSampleRate, a.SampleRate)
	}
	if a.FramesPerBuffer < MinBufferFrames || a.FramesPerBuffer > MaxBufferFrames {
		fail("audio.frames_per_buffer must be within [%d, %d], got %d", MinBufferFrames, MaxBufferFrames, a.FramesPerBuffer)
	}
	if a.InputChannels < 1 {
		fail("audio.input_channels must be >= 1, got %d", a.InputChannels)
	}

	// Analysis
	an := c.Analysis
	if !bitint.IsPowerOfTwo(an.FrameSize) || an.FrameSize < MinFrameSize || an.FrameSize > MaxFrameSize {
		fail("analysis.frame_size must be a power of 2 within [%d, %d], got %d (nearest %d)",
			MinFrameSize, MaxFrameSize, an.FrameSize, bitint.NearestPowerOfTwo(an.FrameSize))
	}
	nyquist := a.SampleRate / 2
	if an.MinFreq < 0 || an.MaxFreq <= an.MinFreq {
		fail("analysis band [%g, %g] Hz is invalid", an.MinFreq, an.MaxFreq)
	}
	if an.MaxFreq > nyquist {
		fail("analysis.max_freq %g Hz exceeds the Nyquist frequency %g Hz", an.MaxFreq, nyquist)
	}
	if an.MaxPeaks <= 0 {
		fail("analysis.max_peaks must be positive, got %d", an.MaxPeaks)
	}
	if math.IsNaN(an.MagnitudeThresholdDB) || an.MagnitudeThresholdDB > 0 {
		fail("analysis.magnitude_threshold_db must be <= 0 dBFS, got %g", an.MagnitudeThresholdDB)
	}
	if an.GateThreshold < 0 || an.GateThreshold > 1 {
		fail("analysis.gate_threshold must be within [0, 1], got %g", an.GateThreshold)
	}
	if an.Whitening.Enabled && an.Whitening.EnvelopeOctaves <= 0 {
		fail("analysis.whitening.envelope_octaves must be positive, got %g", an.Whitening.EnvelopeOctaves)
	}

	// HPCP
	h := c.HPCP
	if h.Size <= 0 || h.Size%12 != 0 {
		fail("hpcp.size must be a positive multiple of 12, got %d", h.Size)
	}
	if h.ReferenceFreq <= 0 {
		fail("hpcp.reference_freq must be positive, got %g", h.ReferenceFreq)
	}
	if h.MinFreq <= 0 || h.MaxFreq <= h.MinFreq {
		fail("hpcp band [%g, %g] Hz is invalid", h.MinFreq, h.MaxFreq)
	}
	if h.Harmonics < 0 {
		fail("hpcp.harmonics must be >= 0, got %d", h.Harmonics)
	}

	// Chord
	ch := c.Chord
	if len(ch.Qualities) == 0 {
		fail("chord.qualities must name at least one chord quality")
	}
	if ch.Threshold < 0 || ch.Threshold > 1 {
		fail("chord.threshold must be within [0, 1], got %g", ch.Threshold)
	}
	if ch.TieEpsilon < 0 {
		fail("chord.tie_epsilon must be >= 0, got %g", ch.TieEpsilon)
	}

	// Loop
	if c.Loop.TickInterval < MinTickInterval {
		fail("loop.tick_interval must be at least %s, got %s", MinTickInterval, c.Loop.TickInterval)
	}
	if c.Loop.RefreshInterval <= 0 {
		fail("loop.refresh_interval must be positive, got %s", c.Loop.RefreshInterval)
	}

	// Recording
	if c.Recording.Enabled {
		switch c.Recording.BitDepth {
		case 16, 24, 32:
		default:
			fail("recording.bit_depth must be 16, 24 or 32, got %d", c.Recording.BitDepth)
		}
		if c.Recording.OutputDir == "" {
			fail("recording.output_dir must be set when recording is enabled")
		}
	}

	// Transport
	t := c.Transport
	if t.UDPEnabled {
		if t.UDPTargetAddress == "" || !strings.Contains(t.UDPTargetAddress, ":") {
			fail("transport.udp_target_address %q appears invalid (missing port?)", t.UDPTargetAddress)
		}
		if t.UDPSendInterval <= 0 {
			fail("transport.udp_send_interval must be positive when UDP is enabled")
		}
	}
	if t.WebSocketEnabled && t.WebSocketAddress == "" {
		fail("transport.websocket_address must be set when the WebSocket transport is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", fault.ErrConfiguration, strings.Join(errs, "; "))
	}
	return nil
}

// applyEnvOverrides applies ENV_* variables on top of file values.
// Unparseable values are ignored with a warning.
func (cfg *Config) applyEnvOverrides() {
	// ENV_DEBUG
	if val, ok := os.LookupEnv("ENV_DEBUG"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			cfg.Debug = bVal
			applog.Infof("Config: Overriding debug from env: %v", bVal)
		} else {
			applog.Warnf("Config: Ignoring ENV_DEBUG=%q: %v", val, err)
		}
	}
	// ENV_LOG_LEVEL
	if val, ok := os.LookupEnv("ENV_LOG_LEVEL"); ok {
		cfg.LogLevel = val
		applog.Infof("Config: Overriding log_level from env: %s", val)
	}

	// ENV_TICK_INTERVAL
	if val, ok := os.LookupEnv("ENV_TICK_INTERVAL"); ok {
		if dur, err := time.ParseDuration(val); err == nil {
			cfg.Loop.TickInterval = dur
			applog.Infof("Config: Overriding loop.tick_interval from env: %s", dur)
		} else {
			applog.Warnf("Config: Ignoring ENV_TICK_INTERVAL=%q: %v", val, err)
		}
	}
	// ENV_CHORD_THRESHOLD
	if val, ok := os.LookupEnv("ENV_CHORD_THRESHOLD"); ok {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Chord.Threshold = f
			applog.Infof("Config: Overriding chord.threshold from env: %g", f)
		} else {
			applog.Warnf("Config: Ignoring ENV_CHORD_THRESHOLD=%q: %v", val, err)
		}
	}

	// ENV_UDP_{...}
	// These are specific to the transport layer.

	// ENV_UDP_ENABLED
	if val, ok := os.LookupEnv("ENV_UDP_ENABLED"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			cfg.Transport.UDPEnabled = bVal
			applog.Infof("Config: Overriding transport.udp_enabled from env: %v", bVal)
		}
	}
	// ENV_UDP_TARGET_ADDRESS
	if val, ok := os.LookupEnv("ENV_UDP_TARGET_ADDRESS"); ok {
		cfg.Transport.UDPTargetAddress = val
		applog.Infof("Config: Overriding transport.udp_target_address from env: %s", val)
	}
	// ENV_UDP_SEND_INTERVAL
	if val, ok := os.LookupEnv("ENV_UDP_SEND_INTERVAL"); ok {
		if dur, err := time.ParseDuration(val); err == nil {
			cfg.Transport.UDPSendInterval = dur
			applog.Infof("Config: Overriding transport.udp_send_interval from env: %s", dur)
		}
	}
	// ENV_WS_ADDRESS
	if val, ok := os.LookupEnv("ENV_WS_ADDRESS"); ok {
		cfg.Transport.WebSocketAddress = val
		cfg.Transport.WebSocketEnabled = val != ""
		applog.Infof("Config: Overriding transport.websocket_address from env: %s", val)
	}
}

// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"chordscope/internal/fault"
	applog "chordscope/internal/log"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	tmp := t.TempDir()
	path := filepath.Join(tmp, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	return path
}

func TestLoadConfig_EmptyPath(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if cfg.Analysis.FrameSize != DefaultFrameSize || cfg.Loop.TickInterval != DefaultTickInterval {
		t.Errorf("expected defaults, got frame_size=%d tick=%s", cfg.Analysis.FrameSize, cfg.Loop.TickInterval)
	}
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	t.Parallel()
	cfg, err := LoadConfig("nonexistent.yaml")
	if err == nil {
		t.Errorf("expected error for missing file, got nil")
	}
	if cfg != nil {
		t.Errorf("expected nil config on error, got %+v", cfg)
	}
}

func TestLoadConfig_UnmarshalError(t *testing.T) {
	t.Parallel()
	path := writeTempConfig(t, ":\n:bad")
	_, err := LoadConfig(path)
	if err == nil || !strings.Contains(err.Error(), "failed to parse config file") {
		t.Errorf("expected unmarshal error, got %v", err)
	}
	if !errors.Is(err, fault.ErrConfiguration) {
		t.Errorf("expected ErrConfiguration, got %v", err)
	}
}

func TestLoadConfig_FileOverridesDefaults(t *testing.T) {
	t.Parallel()
	path := writeTempConfig(t, `
log_level: warn
audio:
  sample_rate: 48000
analysis:
  frame_size: 8192
  window: hann
  whitening:
    enabled: false
hpcp:
  size: 36
chord:
  qualities: [major, minor, dom7]
  threshold: 0.7
  policy: majority
loop:
  tick_interval: 250ms
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Audio.SampleRate != 48000 {
		t.Errorf("sample_rate = %g, want 48000", cfg.Audio.SampleRate)
	}
	if cfg.Analysis.FrameSize != 8192 || cfg.Analysis.Window != "hann" || cfg.Analysis.Whitening.Enabled {
		t.Errorf("analysis = %+v", cfg.Analysis)
	}
	if cfg.HPCP.Size != 36 || cfg.HPCP.ReferenceFreq != DefaultReferenceFreq {
		t.Errorf("hpcp = %+v", cfg.HPCP)
	}
	if len(cfg.Chord.Qualities) != 3 || cfg.Chord.Threshold != 0.7 || cfg.Chord.Policy != "majority" {
		t.Errorf("chord = %+v", cfg.Chord)
	}
	if cfg.Loop.TickInterval != 250*time.Millisecond {
		t.Errorf("tick_interval = %s, want 250ms", cfg.Loop.TickInterval)
	}
	if cfg.EffectiveLogLevel() != applog.LevelWarn {
		t.Errorf("EffectiveLogLevel() = %v, want WARN", cfg.EffectiveLogLevel())
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"Defaults", func(*Config) {}, ""},
		{"Frame Size Not Power Of Two", func(c *Config) { c.Analysis.FrameSize = 3000 }, "nearest 2048"},
		{"Frame Size Too Small", func(c *Config) { c.Analysis.FrameSize = 128 }, "analysis.frame_size"},
		{"Band Above Nyquist", func(c *Config) { c.Audio.SampleRate = 8000; c.Analysis.MaxFreq = 5000 }, "Nyquist"},
		{"Inverted Band", func(c *Config) { c.Analysis.MinFreq = 500; c.Analysis.MaxFreq = 100 }, "analysis band"},
		{"HPCP Size", func(c *Config) { c.HPCP.Size = 10 }, "hpcp.size"},
		{"Threshold Range", func(c *Config) { c.Chord.Threshold = 1.5 }, "chord.threshold"},
		{"No Qualities", func(c *Config) { c.Chord.Qualities = nil }, "chord.qualities"},
		{"Tick Too Fast", func(c *Config) { c.Loop.TickInterval = time.Millisecond }, "loop.tick_interval"},
		{"Bad Log Level", func(c *Config) { c.LogLevel = "chatty" }, "log_level"},
		{"UDP Without Port", func(c *Config) { c.Transport.UDPEnabled = true; c.Transport.UDPTargetAddress = "localhost" }, "udp_target_address"},
		{"Recording Bit Depth", func(c *Config) { c.Recording.Enabled = true; c.Recording.BitDepth = 12 }, "bit_depth"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if !errors.Is(err, fault.ErrConfiguration) {
				t.Fatalf("Validate() error = %v, want ErrConfiguration", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %q, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("ENV_DEBUG", "true")
	t.Setenv("ENV_TICK_INTERVAL", "500ms")
	t.Setenv("ENV_CHORD_THRESHOLD", "0.75")
	t.Setenv("ENV_UDP_ENABLED", "true")
	t.Setenv("ENV_UDP_TARGET_ADDRESS", "10.0.0.2:7000")
	t.Setenv("ENV_WS_ADDRESS", ":9999")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if !cfg.Debug || cfg.EffectiveLogLevel() != applog.LevelDebug {
		t.Errorf("debug override not applied: %+v", cfg.Debug)
	}
	if cfg.Loop.TickInterval != 500*time.Millisecond {
		t.Errorf("tick_interval = %s, want 500ms", cfg.Loop.TickInterval)
	}
	if cfg.Chord.Threshold != 0.75 {
		t.Errorf("chord.threshold = %g, want 0.75", cfg.Chord.Threshold)
	}
	if !cfg.Transport.UDPEnabled || cfg.Transport.UDPTargetAddress != "10.0.0.2:7000" {
		t.Errorf("udp override not applied: %+v", cfg.Transport)
	}
	if !cfg.Transport.WebSocketEnabled || cfg.Transport.WebSocketAddress != ":9999" {
		t.Errorf("websocket override not applied: %+v", cfg.Transport)
	}
}

func TestEnvOverrideInvalidatesConfig(t *testing.T) {
	t.Setenv("ENV_CHORD_THRESHOLD", "3")
	if _, err := LoadConfig(""); !errors.Is(err, fault.ErrConfiguration) {
		t.Errorf("LoadConfig() error = %v, want ErrConfiguration", err)
	}
}

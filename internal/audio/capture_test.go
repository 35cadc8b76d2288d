// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"chordscope/internal/config"
	"chordscope/internal/fault"

	"github.com/gordonklaus/portaudio"
)

// newDetachedCapture builds a Capture without a stream so the callback can
// be driven directly.
func newDetachedCapture(channels, frameSize int, rec *Recorder) *Capture {
	cfg := config.Default().Audio
	cfg.InputChannels = channels
	return &Capture{
		cfg:      cfg,
		device:   &portaudio.DeviceInfo{Name: "test"},
		buffer:   NewFrameBuffer(frameSize),
		recorder: rec,
	}
}

func TestCaptureCallbackFillsFrames(t *testing.T) {
	c := newDetachedCapture(2, 4, nil)

	c.processInputStream([]float32{0.2, 0.4, 0.2, 0.4, 0.2, 0.4, 0.2, 0.4})

	dst := make([]float64, 4)
	if err := c.ReadFrame(context.Background(), dst); err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	for i, v := range dst {
		if v < 0.299 || v > 0.301 {
			t.Errorf("sample %d = %f, want 0.3", i, v)
		}
	}
	if c.SampleRate() != config.DefaultSampleRate {
		t.Errorf("SampleRate = %f", c.SampleRate())
	}
	if c.DeviceName() != "test" {
		t.Errorf("DeviceName = %q", c.DeviceName())
	}
}

func TestCaptureCallbackRecords(t *testing.T) {
	rec, err := NewRecorder(filepath.Join(t.TempDir(), "cb.wav"), 44100, 1, 16, 8)
	if err != nil {
		t.Fatalf("NewRecorder: %v", err)
	}
	c := newDetachedCapture(1, 8, rec)

	c.processInputStream(make([]float32, 8))
	if rec.Frames() != 8 {
		t.Errorf("recorded %d frames, want 8", rec.Frames())
	}

	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if rec.Recording() {
		t.Error("Close should finish the recording")
	}
	if err := c.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestOpenCaptureUnavailable(t *testing.T) {
	mockDevices(t, fakeDevices, nil)

	cfg := config.Default().Audio
	cfg.InputDevice = 0 // output only
	_, err := OpenCapture(cfg, 1024, nil)
	if !errors.Is(err, fault.ErrCaptureUnavailable) {
		t.Fatalf("OpenCapture = %v, want ErrCaptureUnavailable", err)
	}

	cfg.InputDevice = 1
	cfg.InputChannels = 2 // device has one
	_, err = OpenCapture(cfg, 1024, nil)
	if !errors.Is(err, fault.ErrCaptureUnavailable) {
		t.Fatalf("OpenCapture = %v, want ErrCaptureUnavailable", err)
	}
}

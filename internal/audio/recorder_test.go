// SPDX-License-Identifier: MIT
package audio

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-audio/wav"
)

func TestRecordingPath(t *testing.T) {
	at := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)
	got := RecordingPath("out", at)
	want := filepath.Join("out", "chordscope-20240309-140507.wav")
	if got != want {
		t.Errorf("RecordingPath = %q, want %q", got, want)
	}
}

func TestNewRecorderValidation(t *testing.T) {
	dir := t.TempDir()
	if _, err := NewRecorder(filepath.Join(dir, "a.wav"), 44100, 1, 12, 256); err == nil || !strings.Contains(err.Error(), "bit depth") {
		t.Errorf("expected bit depth error, got %v", err)
	}
	if _, err := NewRecorder(filepath.Join(dir, "b.wav"), 44100, 0, 16, 256); err == nil {
		t.Error("expected channel count error")
	}
}

func TestRecorderRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "take.wav")

	r, err := NewRecorder(path, 44100, 2, 16, 4)
	if err != nil {
		t.Fatalf("NewRecorder: %v", err)
	}
	if !r.Recording() {
		t.Fatal("recorder should be recording after creation")
	}

	r.Write([]float32{0, 0, 0.5, -0.5, 1, -1, 2, -2})
	if r.Frames() != 4 {
		t.Errorf("Frames = %d, want 4", r.Frames())
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if r.Recording() {
		t.Error("recorder should stop after Close")
	}
	if err := r.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}

	// Writes after Close are dropped.
	r.Write([]float32{1, 1})

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open recording: %v", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		t.Fatal("recording is not a valid WAV file")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if buf.Format.NumChannels != 2 || buf.Format.SampleRate != 44100 {
		t.Errorf("format = %+v", buf.Format)
	}

	want := []int{0, 0, 16384, -16384, 32767, -32767, 32767, -32767}
	if len(buf.Data) != len(want) {
		t.Fatalf("decoded %d samples, want %d", len(buf.Data), len(want))
	}
	for i := range want {
		if buf.Data[i] != want[i] {
			t.Errorf("sample %d = %d, want %d", i, buf.Data[i], want[i])
		}
	}
}

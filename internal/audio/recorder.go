// SPDX-License-Identifier: MIT
package audio

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	applog "chordscope/internal/log"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// maxConsecutiveWriteFailures stops a recording that keeps failing rather
// than logging from the callback forever.
const maxConsecutiveWriteFailures = 5

// Recorder writes captured float32 buffers to a PCM WAV file.
type Recorder struct {
	mu        sync.Mutex
	recording atomic.Bool
	failures  int

	path       string
	outputFile *os.File
	wavEncoder *wav.Encoder
	sampleBuf  *audio.IntBuffer // Reusable buffer for format conversion
	fullScale  float64
	frames     atomic.Uint64
	channels   int
}

// RecordingPath returns a timestamped file name inside dir.
func RecordingPath(dir string, now time.Time) string {
	return filepath.Join(dir, "chordscope-"+now.Format("20060102-150405")+".wav")
}

// NewRecorder creates path (and its directory) and starts recording.
// framesPerBuffer sizes the conversion buffer so the callback does not
// allocate.
func NewRecorder(path string, sampleRate float64, channels, bitDepth, framesPerBuffer int) (*Recorder, error) {
	switch bitDepth {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("unsupported bit depth %d", bitDepth)
	}
	if channels < 1 {
		return nil, fmt.Errorf("channels must be >= 1, got %d", channels)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create recording directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	r := &Recorder{
		path:       path,
		outputFile: file,
		wavEncoder: wav.NewEncoder(file, int(sampleRate), bitDepth, channels, 1),
		sampleBuf: &audio.IntBuffer{
			Format: &audio.Format{
				NumChannels: channels,
				SampleRate:  int(sampleRate),
			},
			Data:           make([]int, framesPerBuffer*channels),
			SourceBitDepth: bitDepth,
		},
		fullScale: float64(int64(1)<<(bitDepth-1) - 1),
		channels:  channels,
	}
	r.recording.Store(true)

	applog.Infof("Recorder: Writing %d-bit %d ch WAV to %s", bitDepth, channels, path)
	return r, nil
}

// Path returns the output file path.
func (r *Recorder) Path() string {
	return r.path
}

// Frames returns the number of sample frames written so far.
func (r *Recorder) Frames() uint64 {
	return r.frames.Load()
}

// Recording reports whether the recorder still accepts buffers.
func (r *Recorder) Recording() bool {
	return r.recording.Load()
}

// Write appends interleaved samples in [-1, 1]. Values outside the range
// are clipped. After repeated encoder failures the recorder stops.
func (r *Recorder) Write(in []float32) {
	if !r.recording.Load() {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.wavEncoder == nil {
		return
	}

	if cap(r.sampleBuf.Data) < len(in) {
		r.sampleBuf.Data = make([]int, len(in))
	}
	r.sampleBuf.Data = r.sampleBuf.Data[:len(in)]
	for i, s := range in {
		v := math.Max(-1, math.Min(1, float64(s)))
		r.sampleBuf.Data[i] = int(math.Round(v * r.fullScale))
	}

	if err := r.wavEncoder.Write(r.sampleBuf); err != nil {
		r.failures++
		applog.Errorf("Recorder: Error writing to WAV file: %v", err)
		if r.failures >= maxConsecutiveWriteFailures {
			applog.Errorf("Recorder: Stopping after %d consecutive write failures", r.failures)
			r.recording.Store(false)
		}
		return
	}
	r.failures = 0
	r.frames.Add(uint64(len(in) / r.channels))
}

// Close finalizes the WAV header and closes the file.
func (r *Recorder) Close() error {
	r.recording.Store(false)

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.wavEncoder != nil {
		if err := r.wavEncoder.Close(); err != nil {
			r.outputFile.Close()
			r.wavEncoder, r.outputFile = nil, nil
			return err
		}
		r.wavEncoder = nil
	}

	if r.outputFile != nil {
		if err := r.outputFile.Close(); err != nil {
			r.outputFile = nil
			return err
		}
		r.outputFile = nil
		applog.Infof("Recorder: Wrote %d frames to %s", r.frames.Load(), r.path)
	}
	return nil
}

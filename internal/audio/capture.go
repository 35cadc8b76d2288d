// SPDX-License-Identifier: MIT

/*
Package audio captures microphone input with PortAudio and serves it to
the analysis loop as fixed-length mono frames.

Thread Safety:
  - The PortAudio callback only downmixes into a FrameBuffer and, when
    recording, hands the raw buffer to the Recorder. Neither allocates.
  - The analysis goroutine reads frames from the FrameBuffer; a read that
    finds nothing new waits at most until its context ends.
*/
package audio

import (
	"context"
	"fmt"
	"sync"
	"time"

	"chordscope/internal/config"
	"chordscope/internal/fault"
	applog "chordscope/internal/log"

	"github.com/gordonklaus/portaudio"
)

// Capture is a running PortAudio input stream.
type Capture struct {
	cfg      config.AudioConfig
	device   *portaudio.DeviceInfo
	latency  time.Duration
	stream   *portaudio.Stream
	buffer   *FrameBuffer
	recorder *Recorder

	closeOnce sync.Once
	closeErr  error
}

// OpenCapture opens and starts an input stream that fills frames of
// frameSize samples. recorder may be nil. Initialize must have been called.
// Every failure wraps fault.ErrCaptureUnavailable.
func OpenCapture(cfg config.AudioConfig, frameSize int, recorder *Recorder) (*Capture, error) {
	device, err := InputDevice(cfg.InputDevice)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", fault.ErrCaptureUnavailable, err)
	}
	if device.MaxInputChannels < cfg.InputChannels {
		return nil, fmt.Errorf("%w: device %q has %d input channels, %d requested",
			fault.ErrCaptureUnavailable, device.Name, device.MaxInputChannels, cfg.InputChannels)
	}

	c := &Capture{
		cfg:      cfg,
		device:   device,
		buffer:   NewFrameBuffer(frameSize),
		recorder: recorder,
	}
	if cfg.LowLatency {
		c.latency = device.DefaultLowInputLatency
	} else {
		c.latency = device.DefaultHighInputLatency
	}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Channels: cfg.InputChannels,
			Device:   device,
			Latency:  c.latency,
		},
		Output: portaudio.StreamDeviceParameters{
			Channels: 0, // No output device
			Device:   nil,
		},
		FramesPerBuffer: cfg.FramesPerBuffer,
		SampleRate:      cfg.SampleRate,
	}

	stream, err := portaudio.OpenStream(params, c.processInputStream)
	if err != nil {
		return nil, fmt.Errorf("%w: open stream on %q: %v", fault.ErrCaptureUnavailable, device.Name, err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("%w: start stream on %q: %v", fault.ErrCaptureUnavailable, device.Name, err)
	}
	c.stream = stream

	applog.Infof("Audio: Capturing from %q (%d ch @ %.0f Hz, %d frames/buffer, latency %s)",
		device.Name, cfg.InputChannels, cfg.SampleRate, cfg.FramesPerBuffer, c.latency)
	return c, nil
}

// processInputStream is the PortAudio callback. It must not block or
// allocate.
func (c *Capture) processInputStream(in []float32) {
	c.buffer.WriteInterleaved(in, c.cfg.InputChannels)
	if c.recorder != nil {
		c.recorder.Write(in)
	}
}

// DeviceName returns the name of the capture device.
func (c *Capture) DeviceName() string {
	return c.device.Name
}

// SampleRate returns the stream sample rate in Hz.
func (c *Capture) SampleRate() float64 {
	return c.cfg.SampleRate
}

// ReadFrame copies the latest frame into dst, waiting for fresh samples
// until ctx ends.
func (c *Capture) ReadFrame(ctx context.Context, dst []float64) error {
	return c.buffer.ReadFrame(ctx, dst)
}

// Close stops the stream and finishes any recording. It is safe to call
// more than once.
func (c *Capture) Close() error {
	c.closeOnce.Do(func() {
		applog.Infof("Audio: Stopping capture from %q", c.device.Name)
		if c.stream != nil {
			if err := c.stream.Stop(); err != nil {
				c.closeErr = err
			}
			if err := c.stream.Close(); err != nil && c.closeErr == nil {
				c.closeErr = err
			}
		}
		if c.recorder != nil {
			if err := c.recorder.Close(); err != nil && c.closeErr == nil {
				c.closeErr = err
			}
		}
	})
	return c.closeErr
}

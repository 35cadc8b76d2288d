// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"chordscope/cmd"
	"chordscope/internal/audio"
	"chordscope/internal/config"
	"chordscope/internal/fault"
	applog "chordscope/internal/log"
	"chordscope/internal/pipeline"
	"chordscope/internal/transport"
	"chordscope/internal/transport/udp"
	"chordscope/internal/tui"
	"chordscope/pkg/build"

	"golang.org/x/sync/errgroup"
)

// Exit codes by error kind.
const (
	exitError       = 1
	exitConfig      = 2
	exitUnavailable = 3
)

// main is the entry point for the chord analyzer.
// The program flow is divided into three distinct phases:
//
// 1. Startup Phase (Cold Path):
//   - Initialize build information
//   - Parse command line arguments and load configuration
//   - Execute one-off commands if requested
//   - Build the analysis pipeline and open the capture stream
//
// 2. Concurrent Phase (Hot Path):
//   - Analysis loop ticking at the configured interval
//   - Render loop forwarding new results to transports
//   - Terminal display, if enabled
//
// 3. Shutdown Phase (Cold Path):
//   - Handle termination signals or the display quitting
//   - Stop capture, finish any recording, close transports
func main() {
	// ==================== STARTUP PHASE (Cold Path) ====================

	if err := build.Initialize(); err != nil {
		fatal(err)
	}

	opts, err := cmd.ParseArgs(os.Args[1:])
	if err != nil {
		fatal(err)
	}

	switch opts.Command {
	case cmd.CommandList:
		err = listDevices()
	case cmd.CommandRun:
		err = run(opts.Config)
	default:
		return // help or version was printed
	}
	if err != nil {
		fatal(err)
	}
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(exitCode(err))
}

func exitCode(err error) int {
	switch {
	case !fault.IsFatal(err):
		return exitError
	case errors.Is(err, fault.ErrConfiguration):
		return exitConfig
	default:
		return exitUnavailable
	}
}

// listDevices handles the one-off 'list' command.
func listDevices() error {
	if err := audio.Initialize(); err != nil {
		return fmt.Errorf("%w: %v", fault.ErrCaptureUnavailable, err)
	}
	defer audio.Terminate()
	return audio.ListDevices(os.Stdout)
}

func run(cfg *config.Config) error {
	applog.SetLevel(cfg.EffectiveLogLevel())

	p, err := pipeline.New(cfg)
	if err != nil {
		return err
	}
	stabilizer, err := pipeline.NewStabilizer(cfg)
	if err != nil {
		return err
	}

	if err := audio.Initialize(); err != nil {
		return fmt.Errorf("%w: %v", fault.ErrCaptureUnavailable, err)
	}
	defer audio.Terminate()

	var recorder *audio.Recorder
	if cfg.Recording.Enabled {
		path := audio.RecordingPath(cfg.Recording.OutputDir, time.Now())
		recorder, err = audio.NewRecorder(path, cfg.Audio.SampleRate, cfg.Audio.InputChannels,
			cfg.Recording.BitDepth, cfg.Audio.FramesPerBuffer)
		if err != nil {
			return fmt.Errorf("start recording: %w", err)
		}
	}

	capture, err := audio.OpenCapture(cfg.Audio, p.FrameSize(), recorder)
	if err != nil {
		if recorder != nil {
			recorder.Close()
		}
		return err
	}

	// The runner owns the capture from here on and closes it when it stops.
	runner, err := pipeline.NewRunner(p, stabilizer, capture, cfg.Loop.TickInterval)
	if err != nil {
		capture.Close()
		return err
	}

	transports, publisher, err := openTransports(cfg, runner)
	if err != nil {
		capture.Close()
		return err
	}
	defer func() {
		for _, t := range transports {
			if cerr := t.Close(); cerr != nil {
				applog.Warnf("Main: Error closing transport: %v", cerr)
			}
		}
		if publisher != nil {
			publisher.Close()
		}
	}()

	// ==================== CONCURRENT PHASE (Hot Path) ====================

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return runner.Run(ctx)
	})

	renderers := make([]pipeline.Renderer, 0, len(transports))
	for _, t := range transports {
		renderers = append(renderers, pipeline.NewTransportRenderer(t))
	}
	g.Go(func() error {
		return pipeline.RenderLoop(ctx, runner, cfg.Loop.RefreshInterval, renderers...)
	})

	if cfg.TUI.Enabled {
		logFile := redirectLogs()
		if logFile != nil {
			defer logFile.Close()
		}
		model := tui.NewModel(runner, p.Gate(), cfg.Loop.RefreshInterval, capture.DeviceName())
		g.Go(func() error {
			defer stop() // quitting the display ends the session
			return tui.Run(ctx, model)
		})
	} else {
		fmt.Printf("Listening on %q. Press Ctrl+C to stop.\n", capture.DeviceName())
	}

	err = g.Wait()

	// ==================== SHUTDOWN PHASE (Cold Path) ====================

	applog.SetOutput(os.Stderr)
	stats := runner.Stats()
	applog.Infof("Main: %d ticks, %d published, %d starved, %d failed",
		stats.Ticks, stats.Published, stats.Starved, stats.Failed)
	if recorder != nil {
		fmt.Printf("Recording saved to: %s\n", recorder.Path())
	}
	return err
}

// openTransports builds the configured outputs. Results always go to the
// debug log; WebSocket clients and a UDP target are optional.
func openTransports(cfg *config.Config, provider pipeline.SnapshotProvider) ([]transport.Transport, *udp.UDPPublisher, error) {
	transports := []transport.Transport{transport.NewLoggingTransport()}

	if cfg.Transport.WebSocketEnabled {
		wst := transport.NewWebSocketTransport(cfg.Transport.WebSocketAddress)
		if err := wst.Start(); err != nil {
			wst.Close()
			return nil, nil, fmt.Errorf("%w: websocket listen on %s: %v",
				fault.ErrConfiguration, cfg.Transport.WebSocketAddress, err)
		}
		transports = append(transports, wst)
	}

	var publisher *udp.UDPPublisher
	if cfg.Transport.UDPEnabled {
		sender, err := udp.NewUDPSender(cfg.Transport.UDPTargetAddress)
		if err != nil {
			closeAll(transports)
			return nil, nil, fmt.Errorf("%w: %v", fault.ErrConfiguration, err)
		}
		publisher, err = udp.NewUDPPublisher(cfg.Transport.UDPSendInterval, sender, provider)
		if err != nil {
			sender.Close()
			closeAll(transports)
			return nil, nil, err
		}
		publisher.Start()
	}
	return transports, publisher, nil
}

func closeAll(transports []transport.Transport) {
	for _, t := range transports {
		t.Close()
	}
}

// redirectLogs keeps log lines from tearing the terminal display. Logs go
// to a file in the temp directory, or nowhere if it cannot be opened.
func redirectLogs() *os.File {
	path := filepath.Join(os.TempDir(), build.GetBuildFlags().Name+".log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		applog.SetOutput(io.Discard)
		return nil
	}
	applog.Infof("Main: Logging to %s while the display is running", path)
	applog.SetOutput(f)
	return f
}

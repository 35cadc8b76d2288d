// SPDX-License-Identifier: MIT

// Package cmd parses the command line into a runtime configuration.
package cmd

import (
	"time"

	"chordscope/internal/config"
	"chordscope/pkg/build"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Commands selected on the command line.
const (
	CommandRun  = "run"
	CommandList = "list"
)

// Options is the outcome of parsing the command line. Command is empty
// when cobra handled the invocation itself (help, version).
type Options struct {
	Command    string
	ConfigPath string
	Config     *config.Config
}

// flagValues holds raw flag values until they are applied over the loaded
// configuration.
type flagValues struct {
	configPath string

	device          int
	channels        int
	sampleRate      float64
	framesPerBuffer int
	lowLatency      bool

	frameSize     int
	window        string
	gateThreshold float64
	hpcpSize      int
	qualities     []string
	threshold     float64
	policy        string
	tickInterval  time.Duration

	record    bool
	outputDir string

	websocket string
	udp       string
	noTUI     bool

	verbose  bool
	logLevel string
}

// ParseArgs parses args (without the program name) and returns the
// resolved options. Flags that were set override the configuration file.
func ParseArgs(args []string) (*Options, error) {
	buildInfo := build.GetBuildFlags()
	options := &Options{}
	var fv flagValues

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         buildInfo.Description,
		Version:       buildInfo.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(fv.configPath)
			if err != nil {
				return err
			}
			applyFlags(cmd.Flags(), &fv, cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}
			options.ConfigPath = fv.configPath
			options.Config = cfg
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			options.Command = CommandRun
			return nil
		},
	}
	rootCmd.SetVersionTemplate(buildInfo.String() + "\n")

	// Display help message
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	// List command
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List available audio input devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			options.Command = CommandList
			return nil
		},
	}
	rootCmd.AddCommand(listCmd)

	flags := rootCmd.PersistentFlags()

	flags.StringVar(&fv.configPath, "config", "",
		"Path to a YAML configuration file (default: ./config.yaml if present)")

	// Audio Device Configuration
	flags.IntVarP(&fv.device, "device", "d", config.DefaultInputDevice,
		"Input device ID, -1 for the system default. Use 'list' to see available devices.")
	flags.IntVarP(&fv.channels, "channels", "c", config.DefaultInputChannels,
		"Number of input channels to capture; they are averaged to mono")
	flags.Float64VarP(&fv.sampleRate, "sample-rate", "s", config.DefaultSampleRate,
		"Sample rate, measured in Hertz (Hz)")
	flags.IntVarP(&fv.framesPerBuffer, "frames-per-buffer", "b", config.DefaultFramesPerBuffer,
		"The number of frames per buffer (affects latency)")
	flags.BoolVarP(&fv.lowLatency, "low-latency", "l", config.DefaultLowLatency,
		"Use the device's low input latency")

	// Analysis Configuration
	flags.IntVarP(&fv.frameSize, "frame-size", "n", config.DefaultFrameSize,
		"Analysis frame length in samples (power of two)")
	flags.StringVar(&fv.window, "window", config.DefaultWindow,
		"Analysis window: blackmanharris, blackman, hann, hamming, ...")
	flags.Float64VarP(&fv.gateThreshold, "gate", "g", config.DefaultGateThreshold,
		"Noise gate threshold (0.0-1.0), 0 disables the gate")
	flags.IntVar(&fv.hpcpSize, "hpcp-size", config.DefaultHPCPSize,
		"Pitch class profile size (multiple of 12)")
	flags.StringSliceVarP(&fv.qualities, "qualities", "q", config.DefaultChordQualities,
		"Chord qualities to match, e.g. major,minor,dom7")
	flags.Float64VarP(&fv.threshold, "threshold", "t", config.DefaultChordThreshold,
		"Minimum chord strength shown as confident (0.0-1.0)")
	flags.StringVar(&fv.policy, "policy", config.DefaultPolicy,
		"Display policy: threshold, hysteresis or majority")
	flags.DurationVar(&fv.tickInterval, "tick", config.DefaultTickInterval,
		"Analysis interval")

	// Recording Configuration
	flags.BoolVarP(&fv.record, "record", "r", false,
		"Record the input stream to a WAV file")
	flags.StringVarP(&fv.outputDir, "output-dir", "o", config.DefaultRecordingDir,
		"Directory for recordings")

	// Output Configuration
	flags.StringVar(&fv.websocket, "websocket", "",
		"Serve results over WebSocket on this address, e.g. localhost:8080")
	flags.StringVar(&fv.udp, "udp", "",
		"Stream results as UDP packets to this address, e.g. 127.0.0.1:9090")
	flags.BoolVar(&fv.noTUI, "no-tui", false,
		"Disable the terminal display")

	// Debug Configuration
	flags.BoolVarP(&fv.verbose, "verbose", "v", false,
		"Show verbose (debug) output")
	flags.StringVar(&fv.logLevel, "log-level", "",
		"Log level: debug, info, warn or error")

	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}
	return options, nil
}

// applyFlags copies every flag the user set onto cfg.
func applyFlags(fs *pflag.FlagSet, fv *flagValues, cfg *config.Config) {
	set := func(name string, apply func()) {
		if fs.Changed(name) {
			apply()
		}
	}

	set("device", func() { cfg.Audio.InputDevice = fv.device })
	set("channels", func() { cfg.Audio.InputChannels = fv.channels })
	set("sample-rate", func() { cfg.Audio.SampleRate = fv.sampleRate })
	set("frames-per-buffer", func() { cfg.Audio.FramesPerBuffer = fv.framesPerBuffer })
	set("low-latency", func() { cfg.Audio.LowLatency = fv.lowLatency })

	set("frame-size", func() { cfg.Analysis.FrameSize = fv.frameSize })
	set("window", func() { cfg.Analysis.Window = fv.window })
	set("gate", func() { cfg.Analysis.GateThreshold = fv.gateThreshold })
	set("hpcp-size", func() { cfg.HPCP.Size = fv.hpcpSize })
	set("qualities", func() { cfg.Chord.Qualities = fv.qualities })
	set("threshold", func() { cfg.Chord.Threshold = fv.threshold })
	set("policy", func() { cfg.Chord.Policy = fv.policy })
	set("tick", func() { cfg.Loop.TickInterval = fv.tickInterval })

	set("record", func() { cfg.Recording.Enabled = fv.record })
	set("output-dir", func() { cfg.Recording.OutputDir = fv.outputDir })

	set("websocket", func() {
		cfg.Transport.WebSocketEnabled = fv.websocket != ""
		cfg.Transport.WebSocketAddress = fv.websocket
	})
	set("udp", func() {
		cfg.Transport.UDPEnabled = fv.udp != ""
		cfg.Transport.UDPTargetAddress = fv.udp
	})
	set("no-tui", func() { cfg.TUI.Enabled = !fv.noTUI })

	set("verbose", func() { cfg.Debug = fv.verbose })
	set("log-level", func() { cfg.LogLevel = fv.logLevel })
}

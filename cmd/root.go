// Package cmd wires the daemon together: device selection, the TCP
// server, and the player update loop.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/drgolem/go-portaudio/portaudio"
	"github.com/spf13/cobra"

	"github.com/playdproj/playd/internal/audio"
	"github.com/playdproj/playd/internal/player"
	"github.com/playdproj/playd/internal/server"
	"github.com/playdproj/playd/internal/sink"
	"github.com/playdproj/playd/pkg/sources"
)

const (
	defaultHost = "0.0.0.0"
	defaultPort = 1350
)

var (
	framesPerBuffer int
	announcePeriod  time.Duration
	updateTick      time.Duration
	verbose         bool
)

var rootCmd = &cobra.Command{
	Use:   "playd <device-id> [host [port]]",
	Short: "Headless audio file player driven over TCP",
	Long: `playd streams one audio file at a time to a local sound device,
controlled by a line-oriented text protocol over TCP.

Clients send tagged commands (load, play, stop, pos, eject, quit) and
receive asynchronous position ticks, state transitions and end-of-file
notifications.

Run with no device ID (or an invalid one) to list output devices.

Examples:
  # List output devices
  playd

  # Serve device 1 on the default address (0.0.0.0:1350)
  playd 1

  # Serve device 0 on localhost:9999
  playd 0 127.0.0.1 9999

Supported Formats:
  MP3:    .mp3
  WAV:    .wav (8/16/32-bit PCM)
  FLAC:   .flac, .fla
  Vorbis: .ogg, .oga
  G.711:  .alaw, .al, .ulaw, .ul`,
	Args: cobra.RangeArgs(0, 3),
	Run:  runPlayd,
}

func init() {
	rootCmd.Flags().IntVarP(&framesPerBuffer, "frames", "f", 512, "Audio frames per device buffer")
	rootCmd.Flags().DurationVarP(&announcePeriod, "period", "p", time.Second, "Minimum period between position announcements")
	rootCmd.Flags().DurationVarP(&updateTick, "tick", "t", 5*time.Millisecond, "Player update loop tick")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output (debug logging)")
}

// Execute runs the root command. It is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runPlayd(cmd *cobra.Command, args []string) {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	if err := portaudio.Initialize(); err != nil {
		slog.Error("Failed to initialize PortAudio", "error", err)
		os.Exit(1)
	}
	defer portaudio.Terminate()

	slog.Info("PortAudio initialized", "version", portaudio.GetVersion())

	device, ok := chooseDevice(args)
	if !ok {
		listDevices()
		os.Exit(1)
	}

	host, port, err := chooseAddress(args)
	if err != nil {
		slog.Error("Bad listen address", "error", err)
		os.Exit(1)
	}

	requests := make(chan server.Request, 64)
	srv := server.New(requests)
	if err := srv.Listen(host, port); err != nil {
		slog.Error("Failed to listen", "error", err)
		os.Exit(1)
	}
	defer srv.Close()
	go srv.Serve()

	pl := player.New(pipeFactory(device), srv, uint64(announcePeriod.Microseconds()))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	slog.Info("Player running",
		"device", device.Index,
		"frames_per_buffer", framesPerBuffer,
		"announce_period", announcePeriod)

	ticker := time.NewTicker(updateTick)
	defer ticker.Stop()

	for pl.Running() {
		select {
		case req := <-requests:
			if req.Hello() {
				pl.WelcomeClient(req.ClientID)
				continue
			}
			ack := pl.RunCommand(req.ClientID, req.Words)
			srv.Respond(req.ClientID, ack)
		case <-ticker.C:
			pl.Update()
		case sig := <-sigChan:
			slog.Info("Signal received, shutting down", "signal", sig)
			pl.RunCommand(server.Broadcast, []string{server.NoRequest, "quit"})
		}
	}

	slog.Info("Exiting")
}

// pipeFactory builds the load path: open the file by extension, open
// the device for its format, and fall back to resampling at the
// device's default rate when the native rate is refused.
func pipeFactory(device sink.Device) player.AudioFactory {
	return func(path string) (audio.Audio, error) {
		src, err := sources.New(path)
		if err != nil {
			return nil, err
		}

		snk, err := sink.NewPortAudio(src, device.Index, framesPerBuffer)
		if err != nil {
			slog.Debug("Native rate refused, resampling",
				"rate", src.SampleRate(),
				"device_rate", device.DefaultSampleRate,
				"error", err)

			resampled, rerr := sources.Resample(src, int(device.DefaultSampleRate))
			if rerr != nil {
				src.Close()
				return nil, fmt.Errorf("%w (resample fallback: %s)", err, rerr)
			}
			src = resampled

			snk, err = sink.NewPortAudio(src, device.Index, framesPerBuffer)
			if err != nil {
				src.Close()
				return nil, err
			}
		}

		return audio.NewPipe(src, snk), nil
	}
}

// chooseDevice parses the device ID argument and checks it can output.
func chooseDevice(args []string) (sink.Device, bool) {
	if len(args) == 0 {
		return sink.Device{}, false
	}

	id, err := strconv.Atoi(args[0])
	if err != nil {
		slog.Error("Device ID is not a number", "arg", args[0])
		return sink.Device{}, false
	}

	devices, err := sink.OutputDevices()
	if err != nil {
		slog.Error("Failed to enumerate devices", "error", err)
		return sink.Device{}, false
	}

	for _, d := range devices {
		if d.Index == id {
			return d, true
		}
	}

	slog.Error("Incorrect device ID", "id", id)
	return sink.Device{}, false
}

func chooseAddress(args []string) (string, int, error) {
	host := defaultHost
	port := defaultPort

	if len(args) >= 2 {
		host = args[1]
	}
	if len(args) >= 3 {
		p, err := strconv.Atoi(args[2])
		if err != nil || p < 1 || p > 65535 {
			return "", 0, fmt.Errorf("invalid port %q", args[2])
		}
		port = p
	}

	return host, port, nil
}

func listDevices() {
	devices, err := sink.OutputDevices()
	if err != nil {
		fmt.Println("No output devices available.")
		return
	}

	fmt.Println("Output devices:")
	for _, d := range devices {
		fmt.Println(" ", d)
	}
}

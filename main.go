package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
)

// Version is set at build time via -ldflags
var Version = "dev"

// AppOptions holds the parsed command line.
type AppOptions struct {
	ConfigFile   string
	MapOnce      bool
	FramesDir    string
	RobotX       int
	RobotY       int
	Heading      float64
	OutputFile   string
	RenderFormat string
	DebugDir     string
	MqttMode     bool
	HttpMode     bool
	HttpPort     int
	Verbose      bool
}

// Runner is what run dispatches to. *App is the real implementation.
type Runner interface {
	ApplyOptions(opts AppOptions)
	RunMapOnce() error
	RunService() error
}

func main() {
	if err := run(os.Args[1:], os.Stdout, NewApp()); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "floormesh: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer, app Runner) error {
	fs := flag.NewFlagSet("floormesh", flag.ContinueOnError)
	fs.SetOutput(out)

	var opts AppOptions
	fs.StringVar(&opts.ConfigFile, "config", "config.yaml", "Path to configuration file (built-in calibration is used if the default is absent)")
	fs.BoolVar(&opts.MapOnce, "map-once", false, "Map one frame triple from --frames-dir and exit")
	fs.StringVar(&opts.FramesDir, "frames-dir", ".", "Directory containing right.png, center.png and left.png")
	fs.IntVar(&opts.RobotX, "robot-x", 0, "Robot grid column for --map-once")
	fs.IntVar(&opts.RobotY, "robot-y", 0, "Robot grid row for --map-once")
	fs.Float64Var(&opts.Heading, "heading", 0, "Robot heading in degrees for --map-once")
	fs.StringVar(&opts.OutputFile, "output", "floor.png", "Output file for --map-once")
	fs.StringVar(&opts.RenderFormat, "format", "raster", "Render format: raster or vector")
	fs.StringVar(&opts.DebugDir, "debug-dir", "", "Write intermediate rasters to this directory")
	fs.BoolVar(&opts.MqttMode, "mqtt", false, "Ingest camera frames and poses over MQTT")
	fs.BoolVar(&opts.HttpMode, "http", false, "Serve the floor map over HTTP")
	fs.IntVar(&opts.HttpPort, "http-port", 8080, "HTTP server port")
	fs.BoolVar(&opts.Verbose, "verbose", false, "Development logging at debug level")

	if err := fs.Parse(args); err != nil {
		return err
	}

	fmt.Fprintf(out, "floormesh version: %s\n", Version)

	switch opts.RenderFormat {
	case "raster", "vector":
	default:
		return fmt.Errorf("unknown --format %q (want raster or vector)", opts.RenderFormat)
	}

	app.ApplyOptions(opts)

	if opts.MapOnce {
		return app.RunMapOnce()
	}
	if opts.MqttMode || opts.HttpMode {
		return app.RunService()
	}

	fmt.Fprintln(out, "Nothing to do.")
	fmt.Fprintln(out, "Use --map-once --frames-dir DIR to map one frame triple")
	fmt.Fprintln(out, "Use --mqtt to map frames arriving over MQTT")
	fmt.Fprintln(out, "Use --http to serve /floor.png and /floor.svg")
	fmt.Fprintln(out, "\nConfiguration:")
	fmt.Fprintln(out, "  config.yaml - calibration, camera mounts, grid and MQTT settings")
	return nil
}

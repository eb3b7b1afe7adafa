package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/kwv/floormesh/floormap"
	"github.com/kwv/floormesh/geometry"
	"go.uber.org/zap"
)

const defaultConfigFile = "config.yaml"

// tripleQueueDepth bounds how many complete triples may wait for the mapper.
const tripleQueueDepth = 2

// App wires configuration, the grid, the mapper and the service surfaces.
type App struct {
	Config     *floormap.Config
	Grid       *floormap.ExpandableGrid
	Mapper     *floormap.FloorMapper
	MQTTClient *floormap.MQTTClient
	Publisher  *floormap.Publisher
	Logger     *zap.Logger

	// CLI flags
	ConfigFile   string
	FramesDir    string
	RobotX       int
	RobotY       int
	Heading      float64
	OutputFile   string
	RenderFormat string
	DebugDir     string
	HttpPort     int
	MqttMode     bool
	HttpMode     bool

	// mu guards the grid and everything below it.
	mu         sync.Mutex
	pose       *floormap.Pose
	lastStats  floormap.CommitStats
	commits    int
	failures   int
	lastCommit time.Time
}

// NewApp creates an App with a no-op logger.
func NewApp() *App {
	return &App{
		Logger:       zap.NewNop(),
		ConfigFile:   defaultConfigFile,
		RenderFormat: "raster",
	}
}

// ApplyOptions copies CLI options onto the App and builds its logger.
func (a *App) ApplyOptions(opts AppOptions) {
	a.ConfigFile = opts.ConfigFile
	a.FramesDir = opts.FramesDir
	a.RobotX = opts.RobotX
	a.RobotY = opts.RobotY
	a.Heading = opts.Heading
	a.OutputFile = opts.OutputFile
	a.RenderFormat = opts.RenderFormat
	a.DebugDir = opts.DebugDir
	a.HttpPort = opts.HttpPort
	a.MqttMode = opts.MqttMode
	a.HttpMode = opts.HttpMode

	logger, err := newLogger(opts.Verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "falling back to no-op logger: %v\n", err)
		logger = zap.NewNop()
	}
	a.Logger = logger
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// loadConfig reads ConfigFile. A missing file is only tolerated at the default
// path, in which case the built-in calibration is used.
func (a *App) loadConfig() (*floormap.Config, error) {
	path := a.ConfigFile
	if path == "" {
		path = defaultConfigFile
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) && path == defaultConfigFile {
		a.Logger.Info("no config file, using built-in calibration", zap.String("path", path))
		return floormap.DefaultConfig(), nil
	}
	cfg, err := floormap.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("loading config %s: %w", path, err)
	}
	a.Logger.Info("loaded config", zap.String("path", path))
	return cfg, nil
}

// setup loads configuration and builds the grid and mapper. It is a no-op when
// already done.
func (a *App) setup() error {
	if a.Mapper != nil {
		return nil
	}
	if a.Logger == nil {
		a.Logger = zap.NewNop()
	}
	if a.Config == nil {
		cfg, err := a.loadConfig()
		if err != nil {
			return err
		}
		a.Config = cfg
	}

	opts := []floormap.MapperOption{floormap.WithLogger(a.Logger)}
	debugDir := a.DebugDir
	if debugDir == "" {
		debugDir = a.Config.DebugDir
	}
	if debugDir != "" {
		sink, err := floormap.NewPNGDirSink(debugDir, a.Logger)
		if err != nil {
			return err
		}
		opts = append(opts, floormap.WithDebugSink(sink))
		a.Logger.Info("writing debug rasters", zap.String("dir", debugDir))
	}
	// The service maps one triple at a time under a.mu, so scratch canvases can be
	// shared across calls.
	opts = append(opts, floormap.WithCanvasReuse())

	grid := floormap.NewExpandableGrid(a.Config.Grid)
	mapper, err := floormap.NewFloorMapper(grid, a.Config, opts...)
	if err != nil {
		return err
	}
	a.Grid = grid
	a.Mapper = mapper
	return nil
}

// RunMapOnce maps right.png, center.png and left.png from FramesDir at the pose
// given on the command line and writes the rendered floor to OutputFile.
func (a *App) RunMapOnce() error {
	if err := a.setup(); err != nil {
		return err
	}

	frames, err := a.loadFrames(a.FramesDir)
	if err != nil {
		return err
	}
	pose := floormap.Pose{
		Index:   floormap.GridIndex{X: a.RobotX, Y: a.RobotY},
		Heading: geometry.AngleFromDegrees(a.Heading),
	}

	stats, err := a.mapTriple(frames, pose)
	if err != nil {
		return err
	}

	f, err := os.Create(a.OutputFile)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	if err := a.writeFloor(f, a.RenderFormat, a.OutputFile); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing output file: %w", err)
	}

	a.Logger.Info("floor written",
		zap.String("output", a.OutputFile),
		zap.String("format", a.RenderFormat),
		zap.Int("written", stats.Written))
	return nil
}

func (a *App) loadFrames(dir string) ([floormap.NumCameras]floormap.CameraFrame, error) {
	var frames [floormap.NumCameras]floormap.CameraFrame
	mounts := a.Config.Mounts()
	for i, id := range floormap.CameraOrder {
		img, err := floormap.LoadFrame(filepath.Join(dir, id.String()+".png"))
		if err != nil {
			return frames, err
		}
		frames[i] = floormap.CameraFrame{Image: img, Orientation: mounts[id].Orientation}
	}
	return frames, nil
}

// mapTriple commits one triple and records the outcome.
func (a *App) mapTriple(frames [floormap.NumCameras]floormap.CameraFrame, pose floormap.Pose) (floormap.CommitStats, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	stats, err := a.Mapper.MapFloor(frames, pose.Index, pose.Heading)
	if err != nil {
		a.failures++
		return stats, fmt.Errorf("mapping floor at %d,%d: %w", pose.Index.X, pose.Index.Y, err)
	}
	a.pose = &pose
	a.lastStats = stats
	a.commits++
	a.lastCommit = time.Now()
	return stats, nil
}

// handleTriple runs on the triple queue's worker: map, then publish the update and
// a fresh snapshot.
func (a *App) handleTriple(frames [floormap.NumCameras]floormap.CameraFrame, pose floormap.Pose) {
	stats, err := a.mapTriple(frames, pose)
	if err != nil {
		a.Logger.Warn("triple not mapped", zap.Error(err))
		return
	}
	a.Logger.Debug("triple mapped",
		zap.Int("x", pose.Index.X),
		zap.Int("y", pose.Index.Y),
		zap.Float64("heading", pose.Heading.Degrees()),
		zap.Int("written", stats.Written))

	if a.Publisher == nil {
		return
	}
	if err := a.Publisher.PublishUpdate(pose, stats); err != nil {
		a.Logger.Warn("publishing floor update", zap.Error(err))
	}
	if stats.Written == 0 {
		return
	}
	a.mu.Lock()
	err = a.Publisher.PublishMap(a.Grid, a.pose)
	a.mu.Unlock()
	if err != nil {
		a.Logger.Warn("publishing floor map", zap.Error(err))
	}
}

// writeFloor renders the grid. Vector output is SVG unless name ends in .png.
func (a *App) writeFloor(w io.Writer, format, name string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch format {
	case "vector":
		r := floormap.NewVectorFloorRenderer(a.Grid, a.pose, a.Config.Calibration)
		if strings.HasSuffix(strings.ToLower(name), ".png") {
			return r.RenderToPNG(w)
		}
		return r.RenderToSVG(w)
	default:
		return floormap.WriteFloorPNG(w, a.Grid, a.pose, floormap.DefaultRenderOptions())
	}
}

// serviceStatus is reported by /health.
type serviceStatus struct {
	Status        string              `json:"status"`
	Timestamp     time.Time           `json:"timestamp"`
	Commits       int                 `json:"commits"`
	Failures      int                 `json:"failures"`
	LastCommit    *time.Time          `json:"lastCommit,omitempty"`
	LastWritten   int                 `json:"lastWritten"`
	Robot         *floormap.GridIndex `json:"robot,omitempty"`
	Heading       *float64            `json:"heading,omitempty"`
	GridSize      [2]int              `json:"gridSize"`
	MQTTConnected bool                `json:"mqttConnected"`
	Session       string              `json:"session,omitempty"`
}

func (a *App) status() serviceStatus {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := serviceStatus{
		Status:      "ok",
		Timestamp:   time.Now(),
		Commits:     a.commits,
		Failures:    a.failures,
		LastWritten: a.lastStats.Written,
	}
	if a.commits > 0 {
		t := a.lastCommit
		s.LastCommit = &t
	}
	if a.pose != nil {
		idx := a.pose.Index
		deg := a.pose.Heading.Degrees()
		s.Robot = &idx
		s.Heading = &deg
	}
	if a.Grid != nil {
		size := a.Grid.Size()
		s.GridSize = [2]int{size.X, size.Y}
	}
	if a.MQTTClient != nil {
		s.MQTTConnected = a.MQTTClient.IsConnected()
	}
	if a.Publisher != nil {
		s.Session = a.Publisher.Session()
	}
	return s
}

func (a *App) hasFloor() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.commits > 0
}

// RunService starts MQTT ingest and/or the HTTP server and blocks until SIGINT or
// SIGTERM.
func (a *App) RunService() error {
	if err := a.setup(); err != nil {
		return err
	}
	a.Logger.Info("starting floormesh service", zap.String("version", Version))

	var queue *floormap.TripleQueue
	if a.MqttMode {
		queue = floormap.NewTripleQueue(a.handleTriple, tripleQueueDepth, a.Logger)
		assembler := floormap.NewFrameAssembler(a.Config.Mounts(), queue.Handle)
		client, err := floormap.InitMQTT(a.Config, assembler, a.Logger)
		if err != nil {
			queue.Close()
			return fmt.Errorf("initializing MQTT: %w", err)
		}
		if client == nil {
			queue.Close()
			return fmt.Errorf("MQTT broker not configured (set mqtt.broker or MQTT_BROKER)")
		}
		a.MQTTClient = client
		a.Publisher = floormap.NewPublisher(client.GetClient(), a.Config.MQTT.PublishPrefix, a.Logger)

		topics := []string{}
		for _, cam := range a.Config.Cameras {
			topics = append(topics, cam.Topic)
		}
		a.Logger.Info("MQTT ingest configured",
			zap.Strings("cameraTopics", topics),
			zap.String("poseTopic", a.Config.MQTT.PoseTopic),
			zap.String("updateTopic", a.Publisher.UpdateTopic()),
			zap.String("mapTopic", a.Publisher.MapTopic()))
	}

	var srv *http.Server
	if a.HttpMode {
		srv = &http.Server{
			Addr:              fmt.Sprintf("0.0.0.0:%d", a.HttpPort),
			Handler:           newHTTPServer(a),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			a.Logger.Info("HTTP server listening", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.Logger.Error("HTTP server stopped", zap.Error(err))
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	a.Logger.Info("shutting down")
	if srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			a.Logger.Warn("HTTP shutdown", zap.Error(err))
		}
	}
	if a.MQTTClient != nil {
		a.MQTTClient.Disconnect()
	}
	if queue != nil {
		queue.Close()
	}
	_ = a.Logger.Sync()
	return nil
}

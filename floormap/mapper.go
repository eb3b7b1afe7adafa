package floormap

import (
	"fmt"
	"image"
	"image/color"

	"github.com/kwv/floormesh/geometry"
	"github.com/paulmach/orb"
	"go.uber.org/zap"
)

// CommitStats summarizes one MapFloor call.
type CommitStats struct {
	Written int       `json:"written"`
	Bounds  orb.Bound `json:"bounds"` // grid-index extent of written cells, X = column
	Start   GridIndex `json:"start"`
	End     GridIndex `json:"end"`
}

// MapperOption configures a FloorMapper.
type MapperOption func(*FloorMapper)

// WithLogger sets the mapper's logger.
func WithLogger(l *zap.Logger) MapperOption {
	return func(m *FloorMapper) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithDebugSink receives intermediate rasters.
func WithDebugSink(s DebugSink) MapperOption {
	return func(m *FloorMapper) {
		if s != nil {
			m.debug = s
		}
	}
}

// WithMergePolicy overrides the configured merge policy.
func WithMergePolicy(p MergePolicy) MapperOption {
	return func(m *FloorMapper) {
		m.policy = p
	}
}

// WithAlphaThreshold overrides the configured commit threshold.
func WithAlphaThreshold(t uint8) MapperOption {
	return func(m *FloorMapper) {
		m.threshold = t
	}
}

// WithCanvasReuse keeps one scratch canvas per camera across calls instead of
// allocating fresh ones.
func WithCanvasReuse() MapperOption {
	return func(m *FloorMapper) {
		m.reuse = true
	}
}

// FloorMapper turns camera triples into floor-color writes on a Grid.
type FloorMapper struct {
	grid      Grid
	rectifier *Rectifier
	mounts    [NumCameras]CameraMount

	policy    MergePolicy
	threshold uint8

	reuse   bool
	scratch [NumCameras]*image.NRGBA

	logger *zap.Logger
	debug  DebugSink
}

// NewFloorMapper builds the rectifier from cfg and binds the mapper to grid.
func NewFloorMapper(grid Grid, cfg *Config, opts ...MapperOption) (*FloorMapper, error) {
	if grid == nil {
		return nil, fmt.Errorf("grid is required")
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	rect, err := NewRectifier(cfg.Calibration)
	if err != nil {
		return nil, fmt.Errorf("creating rectifier: %w", err)
	}
	policy, err := ParseMergePolicy(cfg.Mapping.MergePolicy)
	if err != nil {
		return nil, err
	}

	m := &FloorMapper{
		grid:      grid,
		rectifier: rect,
		mounts:    cfg.Mounts(),
		policy:    policy,
		threshold: uint8(cfg.Mapping.AlphaThreshold),
		logger:    zap.NewNop(),
		debug:     NopSink{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Rectifier exposes the mapper's rectifier.
func (m *FloorMapper) Rectifier() *Rectifier {
	return m.rectifier
}

// MapFloor rectifies, aligns and merges the three frames, then commits merged
// pixels whose alpha exceeds the threshold into the floor_color layer, centered on
// robot. Frames are given in calibration order (right, center, left); each
// frame's Orientation is its mount offset relative to the body, and heading is the
// robot's heading in the world. Every step that can fail runs before the grid is
// touched, so on error no colors are written.
func (m *FloorMapper) MapFloor(frames [NumCameras]CameraFrame, robot GridIndex, heading geometry.Angle) (CommitStats, error) {
	var canvases [NumCameras]*image.NRGBA
	for i, id := range CameraOrder {
		c, err := m.composeCamera(id, frames[i], heading)
		if err != nil {
			return CommitStats{}, fmt.Errorf("camera %s: %w", id, err)
		}
		canvases[i] = c
	}

	merged, err := Merge(m.policy, canvases[:]...)
	if err != nil {
		return CommitStats{}, err
	}
	if m.debugEnabled() {
		m.debug.Show("final_pov_alpha", AlphaImage(merged))
	}

	if _, ok := m.grid.Layer(FloorColorLayer); !ok {
		return CommitStats{}, fmt.Errorf("%w: %s", ErrMissingLayer, FloorColorLayer)
	}

	stats, err := m.loadToGrid(merged, robot)
	if err != nil {
		return stats, err
	}
	m.logger.Debug("floor committed",
		zap.Int("x", robot.X),
		zap.Int("y", robot.Y),
		zap.Float64("heading", heading.Degrees()),
		zap.Int("written", stats.Written),
	)
	return stats, nil
}

// debugEnabled reports whether intermediate rasters have anywhere to go.
func (m *FloorMapper) debugEnabled() bool {
	_, nop := m.debug.(NopSink)
	return !nop
}

func (m *FloorMapper) composeCamera(id CameraID, frame CameraFrame, heading geometry.Angle) (*image.NRGBA, error) {
	if frame.Image == nil {
		return nil, fmt.Errorf("%w: frame is nil", ErrFrameShape)
	}
	mount := m.mounts[id]

	raw := applyMountRotation(frame.Image, mount.RotateCW)
	view, err := m.rectifier.Rectify(raw)
	if err != nil {
		return nil, err
	}
	if mount.Mirror {
		mirrorHorizontal(view)
	}
	m.debug.Show("pov_"+id.String(), view)

	var buf *image.NRGBA
	if m.reuse {
		buf = m.scratch[id]
	}
	placed, err := PlaceInCanvas(view, buf)
	if err != nil {
		return nil, err
	}
	if m.reuse {
		m.scratch[id] = placed
	}

	rotated := RotateToOrientation(placed, frame.Orientation.Add(heading))
	m.debug.Show("pov_in_background_"+id.String(), rotated)
	return rotated, nil
}

// loadToGrid writes merged into the floor layer. The commit range is centered on
// robot; the grid is expanded to both corners before either is translated, since
// expansion may relocate storage. End is the exclusive corner.
func (m *FloorMapper) loadToGrid(merged *image.NRGBA, robot GridIndex) (CommitStats, error) {
	b := merged.Bounds()
	rows, cols := b.Dy(), b.Dx()
	half := GridIndex{X: cols / 2, Y: rows / 2}
	stats := CommitStats{
		Start: robot.Sub(half),
		End:   robot.Add(half),
	}

	if !m.anyAboveThreshold(merged) {
		m.logger.Debug("nothing above alpha threshold", zap.Uint8("threshold", m.threshold))
		return stats, nil
	}

	m.grid.ExpandToGridIndex(stats.Start)
	m.grid.ExpandToGridIndex(stats.End)
	start := m.grid.GridIndexToArrayIndex(stats.Start)
	end := m.grid.GridIndexToArrayIndex(stats.End)

	layer, ok := m.grid.Layer(FloorColorLayer)
	if !ok {
		return stats, fmt.Errorf("%w: %s", ErrMissingLayer, FloorColorLayer)
	}
	need := image.Rectangle{Min: image.Point(start), Max: image.Point(end)}
	if need.Dx() != cols || need.Dy() != rows {
		return stats, fmt.Errorf("%w: %v..%v translates to %v, want %dx%d", ErrGridBounds, stats.Start, stats.End, need, cols, rows)
	}
	lb := layer.Bounds()
	if !need.In(lb) {
		return stats, fmt.Errorf("%w: need %v, layer covers %v", ErrGridBounds, need, lb)
	}

	var bound orb.Bound
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			i := merged.PixOffset(b.Min.X+x, b.Min.Y+y)
			px := merged.Pix[i : i+4 : i+4]
			if px[3] <= m.threshold {
				continue
			}
			layer.SetRGB(ArrayIndex{X: start.X + x, Y: start.Y + y}, color.RGBA{R: px[0], G: px[1], B: px[2], A: 255})
			stats.Written++

			p := orb.Point{float64(stats.Start.X + x), float64(stats.Start.Y + y)}
			if stats.Written == 1 {
				bound = p.Bound()
			} else {
				bound = bound.Extend(p)
			}
		}
	}
	stats.Bounds = bound
	return stats, nil
}

func (m *FloorMapper) anyAboveThreshold(img *image.NRGBA) bool {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		i := img.PixOffset(b.Min.X, y)
		row := img.Pix[i : i+4*b.Dx()]
		for k := 3; k < len(row); k += 4 {
			if row[k] > m.threshold {
				return true
			}
		}
	}
	return false
}

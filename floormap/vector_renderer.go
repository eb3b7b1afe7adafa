package floormap

import (
	"image/color"
	"image/png"
	"io"
	"math"

	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/rasterizer"
	"github.com/tdewolff/canvas/renderers/svg"
)

// VectorFloorRenderer renders the floor layer as vector graphics in millimeters.
// Runs of equal-colored cells in a row become one rectangle.
type VectorFloorRenderer struct {
	Grid        *ExpandableGrid
	Pose        *Pose
	CellSize    float64           // Cell edge in millimeters
	Padding     float64           // Padding in millimeters
	GridSpacing float64           // Tile line spacing in millimeters; 0 disables
	Resolution  canvas.Resolution // PNG output resolution
}

// NewVectorFloorRenderer sizes cells and tile lines from the calibration.
func NewVectorFloorRenderer(grid *ExpandableGrid, pose *Pose, cal CalibrationConfig) *VectorFloorRenderer {
	cell := 1.0
	if cal.TileResolution > 0 && cal.TileSize > 0 {
		cell = cal.TileSize * 1000 / float64(cal.TileResolution)
	}
	return &VectorFloorRenderer{
		Grid:        grid,
		Pose:        pose,
		CellSize:    cell,
		Padding:     20 * cell,
		GridSpacing: cal.TileSize * 1000,
		Resolution:  canvas.DPMM(1 / cell), // one output pixel per cell
	}
}

// canvasRenderer is an interface that both svg and rasterizer renderers implement
type canvasRenderer interface {
	RenderPath(path *canvas.Path, style canvas.Style, m canvas.Matrix)
}

// cellRun is a horizontal run of same-colored cells in array coordinates.
type cellRun struct {
	x, y, n int
	c       color.RGBA
}

// RenderToSVG writes the floor as an SVG to the provided writer
func (r *VectorFloorRenderer) RenderToSVG(w io.Writer) error {
	runs, area, err := r.collect()
	if err != nil {
		return err
	}
	width, height := r.size(area)
	s := svg.New(w, width, height, nil)
	r.renderToCanvas(s, runs, area, width, height)
	return s.Close()
}

// RenderToPNG writes the floor as a PNG to the provided writer
func (r *VectorFloorRenderer) RenderToPNG(w io.Writer) error {
	runs, area, err := r.collect()
	if err != nil {
		return err
	}
	width, height := r.size(area)
	rast := rasterizer.New(width, height, r.Resolution, canvas.DefaultColorSpace)
	r.renderToCanvas(rast, runs, area, width, height)
	return png.Encode(w, rast)
}

type cellArea struct {
	minX, minY, maxX, maxY int // array indices, max exclusive
}

func (r *VectorFloorRenderer) collect() ([]cellRun, cellArea, error) {
	layer, ok := r.Grid.RGBLayer(FloorColorLayer)
	if !ok {
		return nil, cellArea{}, ErrMissingLayer
	}

	bounds := writtenBounds(layer)
	if r.Pose != nil {
		a := r.Grid.GridIndexToArrayIndex(r.Pose.Index)
		if bounds.Empty() {
			bounds.Min.X, bounds.Min.Y, bounds.Max.X, bounds.Max.Y = a.X, a.Y, a.X+1, a.Y+1
		} else {
			bounds.Min.X = min(bounds.Min.X, a.X)
			bounds.Min.Y = min(bounds.Min.Y, a.Y)
			bounds.Max.X = max(bounds.Max.X, a.X+1)
			bounds.Max.Y = max(bounds.Max.Y, a.Y+1)
		}
	}
	area := cellArea{bounds.Min.X, bounds.Min.Y, bounds.Max.X, bounds.Max.Y}

	var runs []cellRun
	for y := area.minY; y < area.maxY; y++ {
		var cur *cellRun
		for x := area.minX; x < area.maxX; x++ {
			c, written := layer.RGBAt(ArrayIndex{X: x, Y: y})
			if !written {
				cur = nil
				continue
			}
			if cur != nil && cur.c == c {
				cur.n++
				continue
			}
			runs = append(runs, cellRun{x: x, y: y, n: 1, c: c})
			cur = &runs[len(runs)-1]
		}
	}
	return runs, area, nil
}

func (r *VectorFloorRenderer) size(a cellArea) (float64, float64) {
	w := float64(a.maxX-a.minX)*r.CellSize + 2*r.Padding
	h := float64(a.maxY-a.minY)*r.CellSize + 2*r.Padding
	return w, h
}

// renderToCanvas draws onto a y-up canvas; array rows are flipped so row 0 is at
// the top of the output like the raster renderer.
func (r *VectorFloorRenderer) renderToCanvas(renderer canvasRenderer, runs []cellRun, area cellArea, width, height float64) {
	bgStyle := canvas.DefaultStyle
	bgStyle.Fill = canvas.Paint{Color: canvas.White}
	bgStyle.Stroke = canvas.Paint{Color: canvas.Transparent}
	renderer.RenderPath(canvas.Rectangle(width, height), bgStyle, canvas.Identity)

	toCanvas := func(x, y float64) (float64, float64) {
		cx := (x-float64(area.minX))*r.CellSize + r.Padding
		cy := height - ((y-float64(area.minY))*r.CellSize + r.Padding)
		return cx, cy
	}

	cellStyle := canvas.DefaultStyle
	cellStyle.Stroke = canvas.Paint{Color: canvas.Transparent}
	for _, run := range runs {
		cellStyle.Fill = canvas.Paint{Color: run.c}
		x, y := toCanvas(float64(run.x), float64(run.y+1))
		path := canvas.Rectangle(float64(run.n)*r.CellSize, r.CellSize).Translate(x, y)
		renderer.RenderPath(path, cellStyle, canvas.Identity)
	}

	if r.GridSpacing > 0 && r.Grid != nil {
		gridStyle := canvas.DefaultStyle
		gridStyle.Fill = canvas.Paint{Color: canvas.Transparent}
		gridStyle.Stroke = canvas.Paint{Color: canvas.Gray}
		gridStyle.StrokeWidth = r.CellSize / 2
		gridStyle.Dashes = []float64{2 * r.CellSize, 2 * r.CellSize}

		// Tile lines sit on multiples of the tile size in grid-index space.
		cellsPerTile := r.GridSpacing / r.CellSize
		origin := r.Grid.GridIndexToArrayIndex(GridIndex{})
		first := func(lo, o int) float64 {
			return float64(o) + math.Ceil(float64(lo-o)/cellsPerTile)*cellsPerTile
		}
		for x := first(area.minX, origin.X); x <= float64(area.maxX); x += cellsPerTile {
			p := &canvas.Path{}
			x1, y1 := toCanvas(x, float64(area.minY))
			x2, y2 := toCanvas(x, float64(area.maxY))
			p.MoveTo(x1, y1)
			p.LineTo(x2, y2)
			renderer.RenderPath(p, gridStyle, canvas.Identity)
		}
		for y := first(area.minY, origin.Y); y <= float64(area.maxY); y += cellsPerTile {
			p := &canvas.Path{}
			x1, y1 := toCanvas(float64(area.minX), y)
			x2, y2 := toCanvas(float64(area.maxX), y)
			p.MoveTo(x1, y1)
			p.LineTo(x2, y2)
			renderer.RenderPath(p, gridStyle, canvas.Identity)
		}
	}

	if r.Pose != nil {
		a := r.Grid.GridIndexToArrayIndex(r.Pose.Index)
		cx, cy := toCanvas(float64(a.X)+0.5, float64(a.Y)+0.5)

		robotStyle := canvas.DefaultStyle
		robotStyle.Fill = canvas.Paint{Color: color.RGBA{255, 0, 0, 255}}
		robotStyle.Stroke = canvas.Paint{Color: canvas.Black}
		robotStyle.StrokeWidth = r.CellSize / 2
		radius := 4 * r.CellSize
		renderer.RenderPath(canvas.Circle(radius).Translate(cx, cy), robotStyle, canvas.Identity)

		// Forward is screen-down at heading 0, turning counter-clockwise; the canvas
		// is y-up so screen-down is −y.
		sin, cos := math.Sincos(r.Pose.Heading.Radians())
		headStyle := canvas.DefaultStyle
		headStyle.Fill = canvas.Paint{Color: canvas.Transparent}
		headStyle.Stroke = canvas.Paint{Color: canvas.Black}
		headStyle.StrokeWidth = r.CellSize / 2
		head := &canvas.Path{}
		head.MoveTo(cx, cy)
		head.LineTo(cx+sin*3*radius, cy-cos*3*radius)
		renderer.RenderPath(head, headStyle, canvas.Identity)
	}
}

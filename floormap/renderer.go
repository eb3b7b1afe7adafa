package floormap

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"

	"github.com/kwv/floormesh/geometry"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// RenderOptions controls RenderFloor.
type RenderOptions struct {
	Scale      int        // Pixels per grid cell (default 1)
	Padding    int        // Border around the map
	Background color.RGBA // Shown where no floor was observed
	Robot      color.RGBA
	Legend     bool
}

// DefaultRenderOptions returns the options used by the HTTP and MQTT outputs.
func DefaultRenderOptions() RenderOptions {
	return RenderOptions{
		Scale:      1,
		Padding:    20,
		Background: color.RGBA{240, 240, 240, 255},
		Robot:      color.RGBA{255, 0, 0, 255},
		Legend:     true,
	}
}

// RenderFloor draws the grid's floor_color layer cropped to the observed area, with
// the robot marked at its grid index and an arrow for its heading.
func RenderFloor(grid *ExpandableGrid, pose *Pose, opts RenderOptions) (*image.RGBA, error) {
	layer, ok := grid.RGBLayer(FloorColorLayer)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingLayer, FloorColorLayer)
	}
	if opts.Scale <= 0 {
		opts.Scale = 1
	}

	area := writtenBounds(layer)
	if pose != nil {
		a := grid.GridIndexToArrayIndex(pose.Index)
		area = area.Union(image.Rect(a.X, a.Y, a.X+1, a.Y+1))
	}

	width := area.Dx()*opts.Scale + 2*opts.Padding
	height := area.Dy()*opts.Scale + 2*opts.Padding
	if width <= 0 || height <= 0 {
		width, height = 2*opts.Padding+1, 2*opts.Padding+1
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i] = opts.Background.R
		img.Pix[i+1] = opts.Background.G
		img.Pix[i+2] = opts.Background.B
		img.Pix[i+3] = opts.Background.A
	}

	toImage := func(a ArrayIndex) (int, int) {
		return (a.X-area.Min.X)*opts.Scale + opts.Padding, (a.Y-area.Min.Y)*opts.Scale + opts.Padding
	}

	for y := area.Min.Y; y < area.Max.Y; y++ {
		for x := area.Min.X; x < area.Max.X; x++ {
			c, written := layer.RGBAt(ArrayIndex{X: x, Y: y})
			if !written {
				continue
			}
			ix, iy := toImage(ArrayIndex{X: x, Y: y})
			for dy := 0; dy < opts.Scale; dy++ {
				for dx := 0; dx < opts.Scale; dx++ {
					img.SetRGBA(ix+dx, iy+dy, c)
				}
			}
		}
	}

	if pose != nil {
		ix, iy := toImage(grid.GridIndexToArrayIndex(pose.Index))
		r := max(3, opts.Scale*3)
		drawCircle(img, ix, iy, r, opts.Robot)
		drawHeading(img, ix, iy, 3*r, pose.Heading, opts.Robot)
	}

	if opts.Legend {
		black := color.RGBA{0, 0, 0, 255}
		drawText(img, 4, 13, fmt.Sprintf("cells %d", layer.CountWritten()), black)
		if pose != nil {
			drawText(img, 4, 26, fmt.Sprintf("robot %d,%d %s", pose.Index.X, pose.Index.Y, pose.Heading), black)
		}
	}
	return img, nil
}

// WriteFloorPNG renders and PNG-encodes the floor to w.
func WriteFloorPNG(w io.Writer, grid *ExpandableGrid, pose *Pose, opts RenderOptions) error {
	img, err := RenderFloor(grid, pose, opts)
	if err != nil {
		return err
	}
	return png.Encode(w, img)
}

// writtenBounds is the array-index rectangle enclosing all written cells.
func writtenBounds(l *RGBLayer) image.Rectangle {
	var r image.Rectangle
	for y := 0; y < l.Height; y++ {
		for x := 0; x < l.Width; x++ {
			if l.Written[y*l.Width+x] {
				r = r.Union(image.Rect(x, y, x+1, y+1))
			}
		}
	}
	return r
}

// drawCircle draws a filled circle
func drawCircle(img *image.RGBA, cx, cy, radius int, c color.RGBA) {
	b := img.Bounds()
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if dx*dx+dy*dy > radius*radius {
				continue
			}
			if p := (image.Point{X: cx + dx, Y: cy + dy}); p.In(b) {
				img.SetRGBA(p.X, p.Y, c)
			}
		}
	}
}

// drawHeading draws a line along the robot's forward direction. Views are composited
// below the rotation center and turned counter-clockwise by the heading, so forward
// is screen-down at 0 and screen-right at 90°.
func drawHeading(img *image.RGBA, cx, cy, length int, heading geometry.Angle, c color.RGBA) {
	tip := geometry.Vector{Direction: heading, Magnitude: 1}.ToPosition()
	b := img.Bounds()
	for i := 0; i <= length; i++ {
		x := cx + int(math.Round(tip.X*float64(i)))
		y := cy + int(math.Round(tip.Y*float64(i)))
		if p := (image.Point{X: x, Y: y}); p.In(b) {
			img.SetRGBA(x, y, c)
		}
	}
}

// drawText renders text onto an image at the specified position
func drawText(img *image.RGBA, x, y int, text string, c color.RGBA) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}

package floormap

import (
	"fmt"
	"image"
	"math"

	"github.com/kwv/floormesh/geometry"
	"golang.org/x/image/draw"
)

// Rectifier projects raw camera frames onto the floor plane as seen from above.
// The homography is solved once at construction and reused for every frame.
type Rectifier struct {
	cal CalibrationConfig

	pixelsPerMeter float64
	standOffRows   int // transparent rows prepended for the robot's own footprint
	supersample    int

	srcPoints [4]geometry.Position // center tile corners in the frame
	dstPoints [4]geometry.Position // center tile corners in the rectified view
	outSize   image.Point          // rectified size before the stand-off rows

	homography Homography
	inverse    Homography
}

// NewRectifier validates the calibration and precomputes the homography.
func NewRectifier(cal CalibrationConfig) (*Rectifier, error) {
	if cal.TileResolution <= 0 || cal.TileSize <= 0 {
		return nil, fmt.Errorf("%w: tile resolution and size must be positive", ErrDegenerateCalibration)
	}

	r := &Rectifier{
		cal:            cal,
		pixelsPerMeter: float64(cal.TileResolution) / cal.TileSize,
		supersample:    cal.Supersample,
		srcPoints:      cal.SourcePoints,
	}
	if r.supersample < 1 {
		r.supersample = 1
	}
	r.standOffRows = int(math.Round((cal.CameraDistance + cal.BodyMargin) * r.pixelsPerMeter))

	res := float64(cal.TileResolution)
	minX := res * float64(cal.TilesSides)
	maxX := res * float64(cal.TilesSides+1)
	minY := res * float64(cal.TilesUp)
	maxY := res * float64(cal.TilesUp+1)
	r.dstPoints = [4]geometry.Position{
		{X: minX, Y: minY},
		{X: maxX, Y: minY},
		{X: maxX, Y: maxY},
		{X: minX, Y: maxY},
	}

	r.outSize = image.Point{
		X: cal.TileResolution * (cal.TilesSides*2 + 1),
		Y: cal.TileResolution * (cal.TilesUp + cal.TilesDown + 1),
	}

	if quadArea(r.srcPoints) < 1e-9 {
		return nil, fmt.Errorf("%w: source quadrilateral %v has no area", ErrDegenerateCalibration, r.srcPoints)
	}

	h, err := SolveHomography(r.srcPoints[:], r.dstPoints[:])
	if err != nil {
		return nil, err
	}
	inv, err := h.Inverse()
	if err != nil {
		return nil, err
	}
	r.homography = h
	r.inverse = inv

	return r, nil
}

// Homography returns the frame-to-view transform.
func (r *Rectifier) Homography() Homography {
	return r.homography
}

// StandOffRows is the number of transparent rows covering the robot body.
func (r *Rectifier) StandOffRows() int {
	return r.standOffRows
}

// OutputSize is the size of every rectified view, stand-off rows included.
func (r *Rectifier) OutputSize() image.Point {
	return image.Point{X: r.outSize.X, Y: r.outSize.Y + r.standOffRows}
}

// CheckFrame reports ErrFrameShape when the frame cannot be rectified.
func (r *Rectifier) CheckFrame(frame *image.NRGBA) error {
	if frame == nil {
		return fmt.Errorf("%w: frame is nil", ErrFrameShape)
	}
	b := frame.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return fmt.Errorf("%w: frame is empty (%dx%d)", ErrFrameShape, b.Dx(), b.Dy())
	}
	if frame.Stride < 4*b.Dx() || frame.PixOffset(b.Max.X-1, b.Max.Y-1)+4 > len(frame.Pix) {
		return fmt.Errorf("%w: frame buffer does not hold %dx%d RGBA pixels", ErrFrameShape, b.Dx(), b.Dy())
	}
	if r.cal.FrameWidth > 0 && b.Dx() != r.cal.FrameWidth {
		return fmt.Errorf("%w: frame width %d, calibrated for %d", ErrFrameShape, b.Dx(), r.cal.FrameWidth)
	}
	if r.cal.FrameHeight > 0 && b.Dy() != r.cal.FrameHeight {
		return fmt.Errorf("%w: frame height %d, calibrated for %d", ErrFrameShape, b.Dy(), r.cal.FrameHeight)
	}
	return nil
}

// Rectify warps a frame into the top-down view. Sampling is nearest-neighbor so
// tile edges stay hard; when supersampling is enabled the warped raster is then
// reduced to the canonical size with Catmull-Rom. The result always has the
// stand-off rows prepended as fully transparent pixels.
func (r *Rectifier) Rectify(frame *image.NRGBA) (*image.NRGBA, error) {
	if err := r.CheckFrame(frame); err != nil {
		return nil, err
	}

	warped := r.warp(frame)

	view := warped
	if r.supersample > 1 {
		view = image.NewNRGBA(image.Rect(0, 0, r.outSize.X, r.outSize.Y))
		draw.CatmullRom.Scale(view, view.Bounds(), warped, warped.Bounds(), draw.Src, nil)
	}

	out := image.NewNRGBA(image.Rect(0, 0, r.outSize.X, r.outSize.Y+r.standOffRows))
	for y := 0; y < r.outSize.Y; y++ {
		srcRow := view.Pix[y*view.Stride : y*view.Stride+4*r.outSize.X]
		dstOff := (y + r.standOffRows) * out.Stride
		copy(out.Pix[dstOff:dstOff+4*r.outSize.X], srcRow)
	}
	return out, nil
}

// warp backward-maps every output pixel into the frame.
func (r *Rectifier) warp(frame *image.NRGBA) *image.NRGBA {
	ss := r.supersample
	w, h := r.outSize.X*ss, r.outSize.Y*ss
	out := image.NewNRGBA(image.Rect(0, 0, w, h))

	b := frame.Bounds()
	scale := float64(ss)
	for y := 0; y < h; y++ {
		// Output pixel centers expressed in canonical view coordinates.
		vy := (float64(y)+0.5)/scale - 0.5
		for x := 0; x < w; x++ {
			vx := (float64(x)+0.5)/scale - 0.5
			src, ok := r.inverse.Apply(geometry.Position{X: vx, Y: vy})
			if !ok {
				continue
			}
			sx := int(math.Round(src.X))
			sy := int(math.Round(src.Y))
			if sx < 0 || sy < 0 || sx >= b.Dx() || sy >= b.Dy() {
				continue
			}
			si := frame.PixOffset(b.Min.X+sx, b.Min.Y+sy)
			di := out.PixOffset(x, y)
			copy(out.Pix[di:di+4], frame.Pix[si:si+4])
		}
	}
	return out
}

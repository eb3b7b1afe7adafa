package floormap

import (
	"fmt"
	"image"
	"math"

	"github.com/kwv/floormesh/geometry"
	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// CameraMount is the fixed, per-camera part of the compositing transform.
type CameraMount struct {
	Orientation geometry.Angle // default offset relative to the robot body
	RotateCW    int            // quarter turns applied to the raw frame
	Mirror      bool           // mirror the rectified view left-right
}

// rotationMargin covers the Catmull-Rom support around the rotated view's corners.
const rotationMargin = 2

// CanvasSize returns the square canvas side needed to hold a view of the given
// size with room to rotate it about the canvas center. The view hangs from the
// center by its top edge, so its far corners sit hypot(h, w/2) away; the canvas is
// never smaller than twice the larger view side.
func CanvasSize(view image.Point) int {
	halfW := (view.X + 1) / 2
	reach := int(math.Ceil(math.Hypot(float64(view.Y), float64(halfW)))) + rotationMargin
	return 2 * max(view.X, view.Y, reach)
}

// PlaceInCanvas copies the view into a square canvas so that the view's top
// center, the robot's rotation center, lands on the canvas center. When canvas is
// nil a new one is allocated; otherwise the caller's buffer is cleared and reused.
// Pixels are copied without blending.
func PlaceInCanvas(view *image.NRGBA, canvas *image.NRGBA) (*image.NRGBA, error) {
	vb := view.Bounds()
	size := CanvasSize(vb.Size())
	half := size / 2

	if canvas == nil {
		canvas = image.NewNRGBA(image.Rect(0, 0, size, size))
	} else {
		cb := canvas.Bounds()
		if cb.Dx() < size || cb.Dy() < size || cb.Dx() != cb.Dy() {
			return nil, fmt.Errorf("%w: need %dx%d, got %dx%d", ErrCanvasTooSmall, size, size, cb.Dx(), cb.Dy())
		}
		clear(canvas.Pix)
		half = cb.Dx() / 2
	}

	cb := canvas.Bounds()
	top := half
	left := half - int(math.RoundToEven(float64(vb.Dx())/2))
	rowBytes := 4 * vb.Dx()
	for y := 0; y < vb.Dy(); y++ {
		si := view.PixOffset(vb.Min.X, vb.Min.Y+y)
		di := canvas.PixOffset(cb.Min.X+left, cb.Min.Y+top+y)
		copy(canvas.Pix[di:di+rowBytes], view.Pix[si:si+rowBytes])
	}
	return canvas, nil
}

// RotateToOrientation returns a copy of canvas rotated counter-clockwise by angle
// about its center, resampled with Catmull-Rom. A zero angle after normalization
// yields an exact copy, so 0° and 360° produce identical rasters.
func RotateToOrientation(canvas *image.NRGBA, angle geometry.Angle) *image.NRGBA {
	b := canvas.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))

	if angle.Normalize().IsZero() {
		for y := 0; y < b.Dy(); y++ {
			si := canvas.PixOffset(b.Min.X, b.Min.Y+y)
			copy(out.Pix[y*out.Stride:y*out.Stride+4*b.Dx()], canvas.Pix[si:si+4*b.Dx()])
		}
		return out
	}

	// Rotate about the continuous center so quarter turns of an even-sized canvas
	// land exactly on pixel centers.
	cx := float64(b.Min.X) + float64(b.Dx())/2
	cy := float64(b.Min.Y) + float64(b.Dy())/2
	ox := float64(b.Dx()) / 2
	oy := float64(b.Dy()) / 2

	sin, cos := math.Sincos(angle.Radians())
	cos, sin = snapUnit(cos), snapUnit(sin)

	// Screen coordinates have y pointing down, so a counter-clockwise turn maps
	// (dx, dy) to (dx·cos + dy·sin, −dx·sin + dy·cos).
	s2d := f64.Aff3{
		cos, sin, ox - cx*cos - cy*sin,
		-sin, cos, oy + cx*sin - cy*cos,
	}
	draw.CatmullRom.Transform(out, s2d, canvas, b, draw.Src, nil)
	return out
}

// snapUnit removes the floating-point residue sin/cos leave at quarter turns.
func snapUnit(v float64) float64 {
	switch {
	case math.Abs(v) < 1e-12:
		return 0
	case math.Abs(v-1) < 1e-12:
		return 1
	case math.Abs(v+1) < 1e-12:
		return -1
	}
	return v
}

// applyMountRotation turns a raw frame clockwise by quarter turns.
func applyMountRotation(img *image.NRGBA, quarterTurns int) *image.NRGBA {
	out := img
	for i := 0; i < quarterTurns%4; i++ {
		out = rotate90CW(out)
	}
	return out
}

func rotate90CW(img *image.NRGBA) *image.NRGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewNRGBA(image.Rect(0, 0, h, w))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			si := img.PixOffset(b.Min.X+x, b.Min.Y+y)
			di := out.PixOffset(h-1-y, x)
			copy(out.Pix[di:di+4], img.Pix[si:si+4])
		}
	}
	return out
}

// mirrorHorizontal reverses the column order in place.
func mirrorHorizontal(img *image.NRGBA) {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for l, r := b.Min.X, b.Max.X-1; l < r; l, r = l+1, r-1 {
			li := img.PixOffset(l, y)
			ri := img.PixOffset(r, y)
			for k := 0; k < 4; k++ {
				img.Pix[li+k], img.Pix[ri+k] = img.Pix[ri+k], img.Pix[li+k]
			}
		}
	}
}

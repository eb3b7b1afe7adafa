package floormap

import (
	"fmt"
	"image"
)

// MergePolicy decides how overlapping camera canvases combine.
type MergePolicy int

const (
	// MergeMaxAlpha keeps, per pixel, the canvas with the highest alpha. Ties go to
	// the earlier camera in calibration order.
	MergeMaxAlpha MergePolicy = iota
	// MergeSaturatingAdd adds channels and clamps at 255.
	MergeSaturatingAdd
)

func (p MergePolicy) String() string {
	switch p {
	case MergeMaxAlpha:
		return "max-alpha"
	case MergeSaturatingAdd:
		return "saturating-add"
	default:
		return fmt.Sprintf("MergePolicy(%d)", int(p))
	}
}

// ParseMergePolicy maps a config string to a policy. Empty selects MergeMaxAlpha.
func ParseMergePolicy(s string) (MergePolicy, error) {
	switch s {
	case "", "max-alpha":
		return MergeMaxAlpha, nil
	case "saturating-add":
		return MergeSaturatingAdd, nil
	}
	return 0, fmt.Errorf("unknown merge policy %q", s)
}

// Merge combines same-sized canvases into a new raster.
func Merge(policy MergePolicy, canvases ...*image.NRGBA) (*image.NRGBA, error) {
	if len(canvases) == 0 {
		return nil, fmt.Errorf("%w: nothing to merge", ErrCanvasMismatch)
	}
	size := canvases[0].Bounds().Size()
	for i, c := range canvases[1:] {
		if c.Bounds().Size() != size {
			return nil, fmt.Errorf("%w: canvas %d is %v, canvas 0 is %v", ErrCanvasMismatch, i+1, c.Bounds().Size(), size)
		}
	}

	out := image.NewNRGBA(image.Rect(0, 0, size.X, size.Y))
	for y := 0; y < size.Y; y++ {
		for x := 0; x < size.X; x++ {
			di := out.PixOffset(x, y)
			dst := out.Pix[di : di+4 : di+4]
			for _, c := range canvases {
				b := c.Bounds()
				si := c.PixOffset(b.Min.X+x, b.Min.Y+y)
				src := c.Pix[si : si+4 : si+4]
				switch policy {
				case MergeSaturatingAdd:
					for k := 0; k < 4; k++ {
						dst[k] = addSat(dst[k], src[k])
					}
				default:
					if src[3] > dst[3] {
						copy(dst, src)
					}
				}
			}
		}
	}
	return out, nil
}

func addSat(a, b uint8) uint8 {
	s := uint16(a) + uint16(b)
	if s > 255 {
		return 255
	}
	return uint8(s)
}

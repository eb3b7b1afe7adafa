package floormap

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"os"

	"github.com/kwv/floormesh/geometry"
	"golang.org/x/image/draw"
)

// IsPNG checks if data starts with PNG magic bytes
func IsPNG(data []byte) bool {
	if len(data) < 8 {
		return false
	}
	return data[0] == 0x89 && data[1] == 'P' && data[2] == 'N' && data[3] == 'G'
}

// DecodeFrame decodes a PNG camera frame into NRGBA with its origin at (0, 0).
func DecodeFrame(data []byte) (*image.NRGBA, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrFrameShape)
	}
	if !IsPNG(data) {
		return nil, fmt.Errorf("%w: payload is not a PNG", ErrFrameShape)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding PNG frame: %w", err)
	}
	return toNRGBA(img), nil
}

// LoadFrame reads a PNG frame from disk.
func LoadFrame(path string) (*image.NRGBA, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading frame %s: %w", path, err)
	}
	img, err := DecodeFrame(data)
	if err != nil {
		return nil, fmt.Errorf("frame %s: %w", path, err)
	}
	return img, nil
}

func toNRGBA(img image.Image) *image.NRGBA {
	b := img.Bounds()
	if n, ok := img.(*image.NRGBA); ok && b.Min == (image.Point{}) {
		return n
	}
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}

// posePayload is the JSON carried on the pose topic. Heading is in degrees.
type posePayload struct {
	X       *int     `json:"x"`
	Y       *int     `json:"y"`
	Heading *float64 `json:"heading"`
}

// ParsePose decodes {"x": int, "y": int, "heading": degrees}. All fields are
// required.
func ParsePose(data []byte) (Pose, error) {
	var p posePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return Pose{}, fmt.Errorf("parsing pose JSON: %w", err)
	}
	if p.X == nil || p.Y == nil || p.Heading == nil {
		return Pose{}, fmt.Errorf("pose requires x, y and heading")
	}
	return Pose{
		Index:   GridIndex{X: *p.X, Y: *p.Y},
		Heading: geometry.AngleFromDegrees(*p.Heading),
	}, nil
}

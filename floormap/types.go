package floormap

import (
	"fmt"
	"image"

	"github.com/kwv/floormesh/geometry"
)

// FloorColorLayer is the grid layer that receives committed floor colors.
const FloorColorLayer = "floor_color"

// CameraID identifies a physically mounted camera. The numeric order is the
// calibration order in which frames are supplied and composited.
type CameraID int

const (
	CameraRight CameraID = iota
	CameraCenter
	CameraLeft

	NumCameras = 3
)

// CameraOrder lists cameras in calibration order.
var CameraOrder = [NumCameras]CameraID{CameraRight, CameraCenter, CameraLeft}

func (c CameraID) String() string {
	switch c {
	case CameraRight:
		return "right"
	case CameraCenter:
		return "center"
	case CameraLeft:
		return "left"
	default:
		return fmt.Sprintf("CameraID(%d)", int(c))
	}
}

// ParseCameraID maps a config name ("right", "center", "left") to a CameraID.
func ParseCameraID(name string) (CameraID, error) {
	for _, id := range CameraOrder {
		if id.String() == name {
			return id, nil
		}
	}
	return 0, fmt.Errorf("unknown camera %q", name)
}

// CameraFrame is one raw capture plus the camera's orientation relative to the
// robot body.
type CameraFrame struct {
	Image       *image.NRGBA
	Orientation geometry.Angle
}

// GridIndex is a world-fixed logical cell coordinate. X is the column, Y the row.
// Values may be negative.
type GridIndex struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Add returns g + o.
func (g GridIndex) Add(o GridIndex) GridIndex {
	return GridIndex{X: g.X + o.X, Y: g.Y + o.Y}
}

// Sub returns g − o.
func (g GridIndex) Sub(o GridIndex) GridIndex {
	return GridIndex{X: g.X - o.X, Y: g.Y - o.Y}
}

// ArrayIndex is a physical offset into grid storage. It is only valid until the
// next expansion of the grid that produced it.
type ArrayIndex struct {
	X int
	Y int
}

// Pose is the robot's current grid cell and heading.
type Pose struct {
	Index   GridIndex
	Heading geometry.Angle
}

package floormap

import "errors"

var (
	// ErrFrameShape is returned when a camera frame is missing, empty, or does not
	// match the calibrated frame size.
	ErrFrameShape = errors.New("camera frame shape mismatch")

	// ErrCanvasTooSmall is returned when a caller-supplied canvas cannot hold a view
	// with enough margin for rotation.
	ErrCanvasTooSmall = errors.New("canvas too small for view")

	// ErrCanvasMismatch is returned when canvases being merged differ in size.
	ErrCanvasMismatch = errors.New("canvas sizes differ")

	// ErrDegenerateCalibration is returned when the calibration quadrilateral has
	// no area or the homography cannot be solved.
	ErrDegenerateCalibration = errors.New("degenerate calibration")

	// ErrMissingLayer is returned when the grid has no floor_color layer.
	ErrMissingLayer = errors.New("grid layer not found")

	// ErrGridBounds is returned when the grid does not cover the commit range even
	// after expansion.
	ErrGridBounds = errors.New("grid does not cover commit range")

	// ErrPublishTimeout is returned when the broker does not acknowledge a publish
	// in time.
	ErrPublishTimeout = errors.New("publish not acknowledged in time")
)

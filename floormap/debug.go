package floormap

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// DebugSink receives named intermediate rasters while a frame triple is mapped.
type DebugSink interface {
	Show(name string, img image.Image)
}

// NopSink discards everything. It is the headless default.
type NopSink struct{}

// Show implements DebugSink.
func (NopSink) Show(string, image.Image) {}

// PNGDirSink writes each raster to <Dir>/<name>.png, overwriting the previous one
// of the same name.
type PNGDirSink struct {
	Dir    string
	Logger *zap.Logger
}

// NewPNGDirSink creates dir if needed.
func NewPNGDirSink(dir string, logger *zap.Logger) (*PNGDirSink, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating debug dir: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PNGDirSink{Dir: dir, Logger: logger}, nil
}

// Show implements DebugSink. Write failures are logged, not returned, so a full
// disk never aborts mapping.
func (s *PNGDirSink) Show(name string, img image.Image) {
	path := filepath.Join(s.Dir, sanitizeName(name)+".png")
	if err := writePNG(path, img); err != nil {
		s.Logger.Warn("debug image not written", zap.String("path", path), zap.Error(err))
	}
}

func sanitizeName(name string) string {
	return strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == os.PathSeparator {
			return '_'
		}
		return r
	}, name)
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// AlphaImage extracts the alpha channel as a grayscale image.
func AlphaImage(img *image.NRGBA) *image.Gray {
	b := img.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		si := img.PixOffset(b.Min.X, b.Min.Y+y)
		for x := 0; x < b.Dx(); x++ {
			out.Pix[y*out.Stride+x] = img.Pix[si+4*x+3]
		}
	}
	return out
}

package floormap

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestPNGDirSink_WritesFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "debug")
	sink, err := NewPNGDirSink(dir, nil)
	require.NoError(t, err)

	sink.Show("pov_center", solidFrame(4, 3, white))
	sink.Show("a/b", solidFrame(1, 1, white))

	f, err := os.Open(filepath.Join(dir, "pov_center.png"))
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, image.Pt(4, 3), img.Bounds().Size())

	_, err = os.Stat(filepath.Join(dir, "a_b.png"))
	assert.NoError(t, err)
}

func TestPNGDirSink_LogsWriteFailure(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	sink := &PNGDirSink{Dir: filepath.Join(t.TempDir(), "gone"), Logger: zap.New(core)}

	sink.Show("pov_left", solidFrame(1, 1, white))
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "debug image not written", logs.All()[0].Message)
}

func TestAlphaImage(t *testing.T) {
	img := image.NewNRGBA(image.Rect(2, 3, 5, 5))
	img.SetNRGBA(2, 3, color.NRGBA{9, 9, 9, 17})
	img.SetNRGBA(4, 4, color.NRGBA{0, 0, 0, 255})

	a := AlphaImage(img)
	assert.Equal(t, image.Rect(0, 0, 3, 2), a.Bounds())
	assert.Equal(t, uint8(17), a.GrayAt(0, 0).Y)
	assert.Equal(t, uint8(255), a.GrayAt(2, 1).Y)
	assert.Equal(t, uint8(0), a.GrayAt(1, 0).Y)
}

package floormap

import (
	"image"
	"image/color"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewExpandableGrid(t *testing.T) {
	g := NewExpandableGrid(GridConfig{InitialWidth: 10, InitialHeight: 6, ChunkSize: 4})
	assert.Equal(t, image.Pt(10, 6), g.Size())
	assert.Equal(t, ArrayIndex{X: 5, Y: 3}, g.GridIndexToArrayIndex(GridIndex{}))
	assert.Equal(t, GridIndex{X: -5, Y: -3}, g.ArrayIndexToGridIndex(ArrayIndex{}))
	assert.Equal(t, image.Rect(-5, -3, 5, 3), g.GridBounds())
	assert.Equal(t, []string{FloorColorLayer}, g.LayerNames())

	_, ok := g.Layer(FloorColorLayer)
	assert.True(t, ok)
	_, ok = g.Layer("height")
	assert.False(t, ok)

	d := NewExpandableGrid(GridConfig{})
	assert.Equal(t, image.Pt(64, 64), d.Size())
}

func TestExpandableGrid_ExpandPreservesContent(t *testing.T) {
	g := NewExpandableGrid(GridConfig{InitialWidth: 4, InitialHeight: 4, ChunkSize: 8})
	layer, _ := g.Layer(FloorColorLayer)

	marks := map[GridIndex]color.RGBA{
		{X: -2, Y: -2}: {255, 0, 0, 255},
		{X: 1, Y: 1}:   {0, 255, 0, 255},
		{X: 0, Y: -1}:  {0, 0, 255, 255},
	}
	for gi, c := range marks {
		layer.SetRGB(g.GridIndexToArrayIndex(gi), c)
	}
	before := g.GridIndexToArrayIndex(GridIndex{X: -2, Y: -2})

	g.ExpandToGridIndex(GridIndex{X: -10, Y: 5})
	require.Equal(t, 1, g.Expansions())
	assert.True(t, g.Contains(GridIndex{X: -10, Y: 5}))
	// Left grew by one chunk, bottom by one chunk.
	assert.Equal(t, image.Pt(12, 12), g.Size())
	assert.NotEqual(t, before, g.GridIndexToArrayIndex(GridIndex{X: -2, Y: -2}))

	layer, _ = g.Layer(FloorColorLayer)
	got := map[GridIndex]color.RGBA{}
	for gi := range marks {
		c, written := layer.RGBAt(g.GridIndexToArrayIndex(gi))
		require.True(t, written, "cell %v lost", gi)
		got[gi] = c
	}
	if diff := cmp.Diff(marks, got); diff != "" {
		t.Errorf("content moved (-want +got):\n%s", diff)
	}

	rgb, _ := g.RGBLayer(FloorColorLayer)
	assert.Equal(t, len(marks), rgb.CountWritten())
}

func TestExpandableGrid_NoOpInsideBounds(t *testing.T) {
	g := NewExpandableGrid(GridConfig{InitialWidth: 8, InitialHeight: 8, ChunkSize: 8})
	g.ExpandToGridIndex(GridIndex{X: 3, Y: -4})
	assert.Equal(t, 0, g.Expansions())
	g.ExpandToGridIndex(GridIndex{X: 4, Y: 0})
	assert.Equal(t, 1, g.Expansions())
	assert.Equal(t, image.Pt(16, 8), g.Size())
}

func TestExpandableGrid_ExpandsEveryLayer(t *testing.T) {
	g := NewExpandableGrid(GridConfig{InitialWidth: 2, InitialHeight: 2, ChunkSize: 2})
	extra := g.AddLayer("confidence")
	assert.Same(t, extra, g.AddLayer("confidence"))

	g.ExpandToGridIndex(GridIndex{X: 5, Y: 5})
	for _, name := range g.LayerNames() {
		l, ok := g.RGBLayer(name)
		require.True(t, ok)
		assert.Equal(t, g.Size(), image.Pt(l.Width, l.Height), name)
	}
}

func TestRGBLayer_OutOfRange(t *testing.T) {
	g := NewExpandableGrid(GridConfig{InitialWidth: 2, InitialHeight: 2, ChunkSize: 2})
	layer, _ := g.Layer(FloorColorLayer)
	layer.SetRGB(ArrayIndex{X: -1, Y: 0}, color.RGBA{1, 1, 1, 255})
	layer.SetRGB(ArrayIndex{X: 2, Y: 0}, color.RGBA{1, 1, 1, 255})
	_, written := layer.RGBAt(ArrayIndex{X: 5, Y: 5})
	assert.False(t, written)

	rgb, _ := g.RGBLayer(FloorColorLayer)
	assert.Zero(t, rgb.CountWritten())
}

func TestExpandableGrid_Snapshot(t *testing.T) {
	g := NewExpandableGrid(GridConfig{InitialWidth: 3, InitialHeight: 3, ChunkSize: 3})
	layer, _ := g.Layer(FloorColorLayer)
	layer.SetRGB(g.GridIndexToArrayIndex(GridIndex{}), color.RGBA{10, 20, 30, 255})

	img, ok := g.Snapshot(FloorColorLayer)
	require.True(t, ok)
	assert.Equal(t, color.NRGBA{10, 20, 30, 255}, img.NRGBAAt(1, 1))
	assert.Equal(t, color.NRGBA{}, img.NRGBAAt(0, 0))

	_, ok = g.Snapshot("missing")
	assert.False(t, ok)
}

package floormap

import (
	"image"
	"image/color"
	"sort"
)

// Grid is the shared, world-fixed map the mapper commits into. Expansion may
// relocate storage, so array indices must be recomputed after every call to
// ExpandToGridIndex.
type Grid interface {
	ExpandToGridIndex(idx GridIndex)
	GridIndexToArrayIndex(idx GridIndex) ArrayIndex
	ArrayIndexToGridIndex(idx ArrayIndex) GridIndex
	Layer(name string) (ColorLayer, bool)
}

// ColorLayer is a rectangular RGB layer addressed by array index.
type ColorLayer interface {
	// Bounds is the addressable array-index rectangle.
	Bounds() image.Rectangle
	// RGBAt returns the stored color and whether the cell was ever written.
	RGBAt(idx ArrayIndex) (color.RGBA, bool)
	SetRGB(idx ArrayIndex, c color.RGBA)
}

// RGBLayer stores three bytes per cell plus a written mask.
type RGBLayer struct {
	Pix     []uint8 // row-major RGB
	Written []bool
	Width   int
	Height  int
}

func newRGBLayer(w, h int) *RGBLayer {
	return &RGBLayer{
		Pix:     make([]uint8, 3*w*h),
		Written: make([]bool, w*h),
		Width:   w,
		Height:  h,
	}
}

// Bounds implements ColorLayer.
func (l *RGBLayer) Bounds() image.Rectangle {
	return image.Rect(0, 0, l.Width, l.Height)
}

func (l *RGBLayer) contains(idx ArrayIndex) bool {
	return idx.X >= 0 && idx.Y >= 0 && idx.X < l.Width && idx.Y < l.Height
}

// RGBAt implements ColorLayer. Out-of-range indices read as unwritten.
func (l *RGBLayer) RGBAt(idx ArrayIndex) (color.RGBA, bool) {
	if !l.contains(idx) {
		return color.RGBA{}, false
	}
	i := idx.Y*l.Width + idx.X
	return color.RGBA{R: l.Pix[3*i], G: l.Pix[3*i+1], B: l.Pix[3*i+2], A: 255}, l.Written[i]
}

// SetRGB implements ColorLayer. Out-of-range indices are ignored.
func (l *RGBLayer) SetRGB(idx ArrayIndex, c color.RGBA) {
	if !l.contains(idx) {
		return
	}
	i := idx.Y*l.Width + idx.X
	l.Pix[3*i] = c.R
	l.Pix[3*i+1] = c.G
	l.Pix[3*i+2] = c.B
	l.Written[i] = true
}

// CountWritten returns the number of cells written at least once.
func (l *RGBLayer) CountWritten() int {
	n := 0
	for _, w := range l.Written {
		if w {
			n++
		}
	}
	return n
}

// relocated copies the layer into a larger one, shifted by off.
func (l *RGBLayer) relocated(w, h int, off ArrayIndex) *RGBLayer {
	n := newRGBLayer(w, h)
	for y := 0; y < l.Height; y++ {
		srcRow := y * l.Width
		dstRow := (y+off.Y)*w + off.X
		copy(n.Pix[3*dstRow:3*(dstRow+l.Width)], l.Pix[3*srcRow:3*(srcRow+l.Width)])
		copy(n.Written[dstRow:dstRow+l.Width], l.Written[srcRow:srcRow+l.Width])
	}
	return n
}

// ExpandableGrid is an in-memory Grid that grows in whole chunks on any side.
// It is not safe for concurrent use.
type ExpandableGrid struct {
	origin ArrayIndex // array index of grid index (0, 0)
	width  int
	height int
	chunk  int
	layers map[string]*RGBLayer

	expansions int
}

// NewExpandableGrid creates a grid of the given initial size centered on grid
// index (0, 0), with a floor_color layer.
func NewExpandableGrid(cfg GridConfig) *ExpandableGrid {
	chunk := cfg.ChunkSize
	if chunk <= 0 {
		chunk = 64
	}
	w, h := cfg.InitialWidth, cfg.InitialHeight
	if w <= 0 {
		w = chunk
	}
	if h <= 0 {
		h = chunk
	}
	g := &ExpandableGrid{
		origin: ArrayIndex{X: w / 2, Y: h / 2},
		width:  w,
		height: h,
		chunk:  chunk,
		layers: make(map[string]*RGBLayer),
	}
	g.AddLayer(FloorColorLayer)
	return g
}

// AddLayer creates an empty RGB layer if one with that name does not exist.
func (g *ExpandableGrid) AddLayer(name string) *RGBLayer {
	if l, ok := g.layers[name]; ok {
		return l
	}
	l := newRGBLayer(g.width, g.height)
	g.layers[name] = l
	return l
}

// Layer implements Grid.
func (g *ExpandableGrid) Layer(name string) (ColorLayer, bool) {
	l, ok := g.layers[name]
	if !ok {
		return nil, false
	}
	return l, true
}

// RGBLayer returns the concrete layer for rendering and persistence.
func (g *ExpandableGrid) RGBLayer(name string) (*RGBLayer, bool) {
	l, ok := g.layers[name]
	return l, ok
}

// LayerNames returns layer names in sorted order.
func (g *ExpandableGrid) LayerNames() []string {
	names := make([]string, 0, len(g.layers))
	for n := range g.layers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Size returns the storage dimensions.
func (g *ExpandableGrid) Size() image.Point {
	return image.Point{X: g.width, Y: g.height}
}

// Expansions counts how many times storage was reallocated.
func (g *ExpandableGrid) Expansions() int {
	return g.expansions
}

// GridIndexToArrayIndex implements Grid.
func (g *ExpandableGrid) GridIndexToArrayIndex(idx GridIndex) ArrayIndex {
	return ArrayIndex{X: idx.X + g.origin.X, Y: idx.Y + g.origin.Y}
}

// ArrayIndexToGridIndex implements Grid.
func (g *ExpandableGrid) ArrayIndexToGridIndex(idx ArrayIndex) GridIndex {
	return GridIndex{X: idx.X - g.origin.X, Y: idx.Y - g.origin.Y}
}

// Contains reports whether a grid index is already backed by storage.
func (g *ExpandableGrid) Contains(idx GridIndex) bool {
	a := g.GridIndexToArrayIndex(idx)
	return a.X >= 0 && a.Y >= 0 && a.X < g.width && a.Y < g.height
}

// ExpandToGridIndex implements Grid. Storage grows in whole chunks so repeated
// small expansions do not reallocate every call; existing content keeps its grid
// index but moves to a new array index.
func (g *ExpandableGrid) ExpandToGridIndex(idx GridIndex) {
	a := g.GridIndexToArrayIndex(idx)

	var growLeft, growTop, growRight, growBottom int
	if a.X < 0 {
		growLeft = g.roundUp(-a.X)
	} else if a.X >= g.width {
		growRight = g.roundUp(a.X - g.width + 1)
	}
	if a.Y < 0 {
		growTop = g.roundUp(-a.Y)
	} else if a.Y >= g.height {
		growBottom = g.roundUp(a.Y - g.height + 1)
	}
	if growLeft == 0 && growTop == 0 && growRight == 0 && growBottom == 0 {
		return
	}

	w := g.width + growLeft + growRight
	h := g.height + growTop + growBottom
	shift := ArrayIndex{X: growLeft, Y: growTop}
	for name, l := range g.layers {
		g.layers[name] = l.relocated(w, h, shift)
	}
	g.width, g.height = w, h
	g.origin.X += growLeft
	g.origin.Y += growTop
	g.expansions++
}

func (g *ExpandableGrid) roundUp(n int) int {
	return ((n + g.chunk - 1) / g.chunk) * g.chunk
}

// GridBounds returns the grid-index rectangle currently backed by storage.
func (g *ExpandableGrid) GridBounds() image.Rectangle {
	return image.Rect(-g.origin.X, -g.origin.Y, g.width-g.origin.X, g.height-g.origin.Y)
}

// Snapshot renders a layer as an image; unwritten cells are transparent.
func (g *ExpandableGrid) Snapshot(name string) (*image.NRGBA, bool) {
	l, ok := g.layers[name]
	if !ok {
		return nil, false
	}
	img := image.NewNRGBA(image.Rect(0, 0, l.Width, l.Height))
	for i, written := range l.Written {
		if !written {
			continue
		}
		img.Pix[4*i] = l.Pix[3*i]
		img.Pix[4*i+1] = l.Pix[3*i+1]
		img.Pix[4*i+2] = l.Pix[3*i+2]
		img.Pix[4*i+3] = 255
	}
	return img, true
}

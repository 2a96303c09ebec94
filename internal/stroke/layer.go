package stroke

import (
	"image"
	"image/color"
	"math"
)

// Layer accumulates the brush strokes of one mask layer (add or remove).
//
// The visible region is the union of drawn strokes minus the union of erased
// regions. Erasing before anything has been drawn is dropped. An erase stroke
// that overlaps an earlier erase region (by sampling its edge) replaces that
// region instead of merging with it.
//
// A nil *Layer behaves as an empty layer that ignores mutations, which covers
// pointer input arriving before an image has been opened.
type Layer struct {
	width, height int
	drawn         []Stroke
	erased        []Stroke
	hasContent    bool
	watchers      []func()
}

// NewLayer creates an empty layer for a canvas of the given size.
func NewLayer(width, height int) *Layer {
	return &Layer{width: width, height: height}
}

// Size returns the canvas dimensions the layer was created for.
func (l *Layer) Size() (int, int) {
	if l == nil {
		return 0, 0
	}
	return l.width, l.height
}

// OnChange registers fn to be called synchronously after every mutation that
// changed the layer's state.
func (l *Layer) OnChange(fn func()) {
	if l == nil || fn == nil {
		return
	}
	l.watchers = append(l.watchers, fn)
}

func (l *Layer) changed() {
	for _, fn := range l.watchers {
		fn()
	}
}

// Draw records a brush daub at p. In ModeDraw the stroke is appended to the
// drawn strokes. In ModeErase it is appended to the erased regions, after
// removing the first earlier erase region that contains one of its edge
// samples. It reports whether the layer changed.
func (l *Layer) Draw(p Point, radius float64, mode Mode) bool {
	if l == nil || radius <= 0 || math.IsNaN(radius) {
		return false
	}
	s := Stroke{Center: p, Radius: radius}
	switch mode {
	case ModeDraw:
		l.drawn = append(l.drawn, s)
		l.hasContent = true
	case ModeErase:
		if !l.hasContent {
			return false
		}
		samples := s.ArcPoints(arcSamples)
	regions:
		for i, region := range l.erased {
			for _, pt := range samples {
				if region.Contains(pt) {
					l.erased = append(l.erased[:i:i], l.erased[i+1:]...)
					break regions
				}
			}
		}
		l.erased = append(l.erased, s)
	default:
		return false
	}
	l.changed()
	return true
}

// Clear wipes all strokes and erased regions. Clearing an already empty layer
// does not notify watchers.
func (l *Layer) Clear() {
	if l == nil {
		return
	}
	if !l.hasContent && len(l.drawn) == 0 && len(l.erased) == 0 {
		return
	}
	l.drawn = nil
	l.erased = nil
	l.hasContent = false
	l.changed()
}

// HasContent reports whether anything has been drawn since the last clear.
func (l *Layer) HasContent() bool {
	return l != nil && l.hasContent
}

// Strokes returns a copy of the drawn strokes in draw order.
func (l *Layer) Strokes() []Stroke {
	if l == nil {
		return nil
	}
	return append([]Stroke(nil), l.drawn...)
}

// ErasedRegions returns a copy of the current erased regions.
func (l *Layer) ErasedRegions() []Stroke {
	if l == nil {
		return nil
	}
	return append([]Stroke(nil), l.erased...)
}

// Contains reports whether p is part of the visible region.
func (l *Layer) Contains(p Point) bool {
	if l == nil {
		return false
	}
	return anyContains(l.drawn, p) && !anyContains(l.erased, p)
}

// IsEmpty reports whether the visible region covers no pixel of the canvas.
// Strokes that are fully erased or lie outside the canvas count as empty.
func (l *Layer) IsEmpty() bool {
	if l == nil || !l.hasContent {
		return true
	}
	cov := l.Coverage(l.width, l.height)
	for _, a := range cov.Pix {
		if a != 0 {
			return false
		}
	}
	return true
}

// DrawnMask returns the union of drawn strokes as an opaque/transparent mask.
func (l *Layer) DrawnMask(width, height int) *image.Alpha {
	m := image.NewAlpha(image.Rect(0, 0, width, height))
	if l != nil {
		fillCircles(m, l.drawn, color.Alpha{A: 255})
	}
	return m
}

// ErasedMask returns the union of erased regions as an opaque/transparent
// mask.
func (l *Layer) ErasedMask(width, height int) *image.Alpha {
	m := image.NewAlpha(image.Rect(0, 0, width, height))
	if l != nil {
		fillCircles(m, l.erased, color.Alpha{A: 255})
	}
	return m
}

// Coverage returns the visible region as an opaque/transparent mask.
func (l *Layer) Coverage(width, height int) *image.Alpha {
	m := l.DrawnMask(width, height)
	if l != nil {
		fillCircles(m, l.erased, color.Alpha{})
	}
	return m
}

// RasterizeBlackWhite renders the visible region as an opaque bitmap: white
// inside, black everywhere else.
func (l *Layer) RasterizeBlackWhite(width, height int) *image.RGBA {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	cov := l.Coverage(width, height)
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for i, a := range cov.Pix {
		v := uint8(0)
		if a != 0 {
			v = 255
		}
		o := i * 4
		img.Pix[o+0] = v
		img.Pix[o+1] = v
		img.Pix[o+2] = v
		img.Pix[o+3] = 255
	}
	return img
}

func anyContains(strokes []Stroke, p Point) bool {
	for _, s := range strokes {
		if s.Contains(p) {
			return true
		}
	}
	return false
}

// fillCircles sets every pixel whose integer coordinate lies inside one of
// strokes to c, clipped to dst's bounds.
func fillCircles(dst *image.Alpha, strokes []Stroke, c color.Alpha) {
	b := dst.Bounds()
	for _, s := range strokes {
		x0 := int(math.Floor(s.Center.X - s.Radius))
		x1 := int(math.Ceil(s.Center.X + s.Radius))
		y0 := int(math.Floor(s.Center.Y - s.Radius))
		y1 := int(math.Ceil(s.Center.Y + s.Radius))
		r := image.Rect(x0, y0, x1+1, y1+1).Intersect(b)
		for y := r.Min.Y; y < r.Max.Y; y++ {
			for x := r.Min.X; x < r.Max.X; x++ {
				if s.Contains(Point{X: float64(x), Y: float64(y)}) {
					dst.SetAlpha(x, y, c)
				}
			}
		}
	}
}

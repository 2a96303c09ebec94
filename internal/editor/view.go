package editor

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"strings"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/example/maskstudio/internal/palette"
	"github.com/example/maskstudio/internal/stroke"
)

const (
	statusHeight = 20
	helpHeight   = 20
	checkerSize  = 8
)

// viewport places the canvas in the window. scale is window pixels per
// canvas pixel.
type viewport struct {
	canvas image.Rectangle
	scale  float64
}

// fitViewport centres an imgW x imgH canvas in the window area above the
// status bars, scaling it to fit.
func fitViewport(imgW, imgH, winW, winH int) viewport {
	availH := winH - statusHeight - helpHeight
	if imgW <= 0 || imgH <= 0 || winW <= 0 || availH <= 0 {
		return viewport{scale: 1}
	}
	z := math.Min(float64(winW)/float64(imgW), float64(availH)/float64(imgH))
	w := int(float64(imgW) * z)
	h := int(float64(imgH) * z)
	x0 := (winW - w) / 2
	y0 := (availH - h) / 2
	return viewport{canvas: image.Rect(x0, y0, x0+w, y0+h), scale: z}
}

// toCanvas maps a window position to canvas pixel space and reports whether
// it falls on the canvas.
func (v viewport) toCanvas(x, y float32) (stroke.Point, bool) {
	p := stroke.Pt(
		(float64(x)-float64(v.canvas.Min.X))/v.scale,
		(float64(y)-float64(v.canvas.Min.Y))/v.scale,
	)
	return p, image.Pt(int(x), int(y)).In(v.canvas)
}

// stamps returns the brush centres needed to cover the segment from a to b
// without gaps, excluding a itself.
func stamps(a, b stroke.Point, radius float64) []stroke.Point {
	dx, dy := b.X-a.X, b.Y-a.Y
	dist := math.Hypot(dx, dy)
	step := math.Max(radius/2, 1)
	n := int(math.Ceil(dist / step))
	if n < 1 {
		return []stroke.Point{b}
	}
	out := make([]stroke.Point, n)
	for i := 1; i <= n; i++ {
		t := float64(i) / float64(n)
		out[i-1] = stroke.Pt(a.X+dx*t, a.Y+dy*t)
	}
	return out
}

type status struct {
	image      string
	state      string
	layer      string
	mode       stroke.Mode
	brush      int
	order      string
	selected   int
	candidates int
	pending    bool
	message    string
}

func (s status) String() string {
	parts := []string{s.image, s.state, fmt.Sprintf("%s:%s", s.layer, s.mode), fmt.Sprintf("brush %d", s.brush), s.order}
	if s.candidates > 0 {
		parts = append(parts, fmt.Sprintf("mask %d/%d", s.selected+1, s.candidates))
	}
	if s.pending {
		parts = append(parts, "discard edits? y/n")
	}
	if s.message != "" {
		parts = append(parts, s.message)
	}
	return strings.Join(parts, " | ")
}

func helpLine() string {
	var b strings.Builder
	for i, sc := range shortcuts {
		if i > 0 {
			b.WriteString("  ")
		}
		fmt.Fprintf(&b, "%s:%s", sc.Key, sc.Help)
	}
	return b.String()
}

// drawCheckerboard fills rect of dst with a checkerboard of the given
// colours.
func drawCheckerboard(dst *image.RGBA, rect image.Rectangle, size int, light, dark color.Color) {
	rect = rect.Intersect(dst.Bounds())
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			if ((x-rect.Min.X)/size+(y-rect.Min.Y)/size)%2 == 0 {
				dst.Set(x, y, light)
			} else {
				dst.Set(x, y, dark)
			}
		}
	}
}

func drawText(dst *image.RGBA, r image.Rectangle, text string, bg, fg color.RGBA) {
	draw.Draw(dst, r, image.NewUniform(bg), image.Point{}, draw.Src)
	d := &font.Drawer{Dst: dst, Src: image.NewUniform(fg), Face: basicfont.Face7x13}
	d.Dot = fixed.P(r.Min.X+4, r.Min.Y+basicfont.Face7x13.Ascent+3)
	d.DrawString(text)
}

// paintState is a snapshot of what one frame shows.
type paintState struct {
	width, height int
	frame         *image.RGBA
	status        status
	brushAt       *stroke.Point
	brushRadius   float64
	pal           *palette.Palette
}

// compose draws st into dst.
func compose(dst *image.RGBA, st paintState) {
	pal := st.pal
	draw.Draw(dst, dst.Bounds(), image.NewUniform(pal.Background), image.Point{}, draw.Src)
	if st.frame != nil {
		b := st.frame.Bounds()
		vp := fitViewport(b.Dx(), b.Dy(), st.width, st.height)
		drawCheckerboard(dst, vp.canvas, checkerSize, pal.CheckerLight, pal.CheckerDark)
		xdraw.NearestNeighbor.Scale(dst, vp.canvas, st.frame, b, xdraw.Over, nil)
		if st.brushAt != nil {
			drawBrushOutline(dst, vp, *st.brushAt, st.brushRadius, pal.Text)
		}
	}
	statusRect := image.Rect(0, st.height-statusHeight-helpHeight, st.width, st.height-helpHeight)
	drawText(dst, statusRect, st.status.String(), pal.Background, pal.Text)
	helpRect := image.Rect(0, st.height-helpHeight, st.width, st.height)
	drawText(dst, helpRect, helpLine(), pal.Background, pal.Text)
}

func drawBrushOutline(dst *image.RGBA, vp viewport, c stroke.Point, radius float64, col color.Color) {
	r := radius * vp.scale
	cx := float64(vp.canvas.Min.X) + c.X*vp.scale
	cy := float64(vp.canvas.Min.Y) + c.Y*vp.scale
	steps := int(math.Max(16, 2*math.Pi*r))
	for i := 0; i < steps; i++ {
		a := 2 * math.Pi * float64(i) / float64(steps)
		dst.Set(int(cx+r*math.Cos(a)), int(cy+r*math.Sin(a)), col)
	}
}

package render

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"

	"github.com/example/maskstudio/internal/stroke"
)

// Style configures how a layer is painted.
type Style struct {
	Color   color.RGBA
	Opacity float64
	Visible bool
}

// DefaultOpacity is the opacity new layers are painted with.
const DefaultOpacity = 0.5

// NewStyle returns a visible style with c at DefaultOpacity.
func NewStyle(c color.RGBA) Style {
	return Style{Color: c, Opacity: DefaultOpacity, Visible: true}
}

// Alpha returns the 8-bit alpha the layer fill is painted with. Hidden
// layers paint with zero alpha.
func (s Style) Alpha() uint8 {
	if !s.Visible {
		return 0
	}
	o := s.Opacity
	if o <= 0 {
		return 0
	}
	if o > 1 {
		o = 1
	}
	return uint8(o*255 + 0.5)
}

// Surface is a pixel buffer a single stroke layer is rendered into.
type Surface struct {
	img *image.NRGBA
}

// NewSurface allocates a transparent surface.
func NewSurface(width, height int) *Surface {
	return &Surface{img: image.NewNRGBA(image.Rect(0, 0, width, height))}
}

// Image returns the surface's backing buffer.
func (s *Surface) Image() *image.NRGBA {
	return s.img
}

// Bounds returns the surface bounds.
func (s *Surface) Bounds() image.Rectangle {
	return s.img.Bounds()
}

// Render clears the surface, fills the layer's drawn strokes with st.Color at
// st's alpha, then punches out the erased regions at full strength. A hidden
// style still runs the full pass with zero alpha.
func (s *Surface) Render(l *stroke.Layer, st Style) *image.NRGBA {
	draw.Draw(s.img, s.img.Bounds(), image.Transparent, image.Point{}, draw.Src)
	w, h := s.img.Bounds().Dx(), s.img.Bounds().Dy()

	fill := color.NRGBA{R: st.Color.R, G: st.Color.G, B: st.Color.B, A: st.Alpha()}
	drawn := l.DrawnMask(w, h)
	for i, a := range drawn.Pix {
		if a == 0 {
			continue
		}
		o := i * 4
		s.img.Pix[o+0] = fill.R
		s.img.Pix[o+1] = fill.G
		s.img.Pix[o+2] = fill.B
		s.img.Pix[o+3] = fill.A
	}
	DestinationOut(s.img, l.ErasedMask(w, h))
	return s.img
}

// DestinationOut clears every pixel of dst where mask is non-zero, scaled by
// the mask's alpha.
func DestinationOut(dst *image.NRGBA, mask *image.Alpha) {
	b := dst.Bounds().Intersect(mask.Bounds())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			m := mask.AlphaAt(x, y).A
			if m == 0 {
				continue
			}
			o := dst.PixOffset(x, y)
			if m == 255 {
				dst.Pix[o+3] = 0
				continue
			}
			dst.Pix[o+3] = uint8(uint16(dst.Pix[o+3]) * uint16(255-m) / 255)
		}
	}
}

// Tint turns a black/white mask image into a coloured overlay: the overlay
// alpha follows the mask's luminance scaled by st's alpha.
func Tint(mask image.Image, st Style) *image.NRGBA {
	b := mask.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	alpha := uint32(st.Alpha())
	if alpha == 0 {
		return out
	}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			g := color.GrayModel.Convert(mask.At(x, y)).(color.Gray).Y
			_, _, _, a := mask.At(x, y).RGBA()
			lum := uint32(g) * (a >> 8) / 255
			if lum == 0 {
				continue
			}
			o := out.PixOffset(x-b.Min.X, y-b.Min.Y)
			out.Pix[o+0] = st.Color.R
			out.Pix[o+1] = st.Color.G
			out.Pix[o+2] = st.Color.B
			out.Pix[o+3] = uint8(lum * alpha / 255)
		}
	}
	return out
}

// Compose draws base and then each layer in order (bottom first) onto a new
// RGBA image the size of base. A nil base yields a transparent backdrop the
// size of the first layer.
func Compose(base image.Image, layers ...image.Image) *image.RGBA {
	var r image.Rectangle
	switch {
	case base != nil:
		r = base.Bounds()
	case len(layers) > 0 && layers[0] != nil:
		r = layers[0].Bounds()
	}
	dst := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	if base != nil {
		draw.Draw(dst, dst.Bounds(), base, r.Min, draw.Src)
	}
	for _, l := range layers {
		if l == nil {
			continue
		}
		draw.Draw(dst, dst.Bounds(), l, l.Bounds().Min, draw.Over)
	}
	return dst
}

// IsBlank reports whether img has no pixel that is both non-transparent and
// non-black.
func IsBlank(img image.Image) bool {
	if img == nil {
		return true
	}
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, a := img.At(x, y).RGBA()
			if a != 0 && (r|g|bl) != 0 {
				return false
			}
		}
	}
	return true
}

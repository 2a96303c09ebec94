package session

import (
	"image"

	"github.com/example/maskstudio/internal/maskservice"
	"github.com/example/maskstudio/internal/render"
)

type tint int

const (
	tintNone tint = iota
	tintPreview
	tintSam
)

func (s *Session) setPreview(img image.Image, t tint) {
	s.preview = img
	s.previewTint = t
}

func (s *Session) clearPreview() {
	s.setPreview(nil, tintNone)
}

func (s *Session) showCombined(cm *maskservice.CombinedMask) {
	switch {
	case cm.Overlay != nil:
		s.setPreview(cm.Overlay, tintNone)
	case cm.Mask != nil:
		s.setPreview(cm.Mask, tintPreview)
	default:
		s.clearPreview()
	}
}

func (s *Session) styleOf(k Kind) render.Style {
	if k == Remove {
		return s.styles.Remove
	}
	return s.styles.Add
}

// Frame composes the canvas: base image, SAM mask, the inactive layer, the
// active layer and finally the preview when it is shown.
func (s *Session) Frame() *image.RGBA {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, h := s.img.Width, s.img.Height

	var layers []image.Image
	if m := s.samMaskImage(); m != nil {
		layers = append(layers, render.Tint(render.Fit(m, w, h), s.styles.Sam))
	}
	bottom, top := Remove, Add
	if s.active == Remove {
		bottom, top = Add, Remove
	}
	for _, k := range []Kind{bottom, top} {
		layers = append(layers, s.surface[k].Render(s.layers[k], s.styleOf(k)))
	}
	if s.showPreview && s.preview != nil {
		p := render.Fit(s.preview, w, h)
		switch s.previewTint {
		case tintPreview:
			p = render.Tint(p, s.styles.Preview)
		case tintSam:
			p = render.Tint(p, s.styles.Sam)
		}
		layers = append(layers, p)
	}

	var base image.Image
	if s.img.Base != nil {
		base = render.Fit(s.img.Base, w, h)
	}
	return render.Compose(base, layers...)
}

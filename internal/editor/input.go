package editor

import (
	"golang.org/x/mobile/event/mouse"

	"github.com/example/maskstudio/internal/render"
	"github.com/example/maskstudio/internal/session"
	"github.com/example/maskstudio/internal/stroke"
)

// opacityDial accumulates opacity steps per layer. Steps taken while the
// debounce window is open build on the last requested value, and the
// session only sees the final one.
type opacityDial struct {
	styles  *render.StyleDebouncer
	sess    *session.Session
	pending map[session.Kind]float64
}

func newOpacityDial(styles *render.StyleDebouncer) *opacityDial {
	return &opacityDial{styles: styles}
}

// step moves the requested opacity of layer k by delta and returns the
// requested style.
func (d *opacityDial) step(sess *session.Session, k session.Kind, delta float64) render.Style {
	if d.sess != sess {
		d.sess = sess
		d.pending = map[session.Kind]float64{}
	}
	st := layerStyle(sess.Styles(), k)
	if op, ok := d.pending[k]; ok {
		st.Opacity = op
	}
	st = withOpacity(st, delta)
	d.pending[k] = st.Opacity

	want := make(map[session.Kind]float64, len(d.pending))
	for kind, op := range d.pending {
		want[kind] = op
	}
	d.styles.Set(st, func(render.Style) {
		all := sess.Styles()
		for kind, op := range want {
			cur := layerStyle(all, kind)
			cur.Opacity = op
			setLayerStyle(&all, kind, cur)
		}
		sess.SetStyles(all)
	})
	return st
}

// pointer tracks brush input between mouse events.
type pointer struct {
	stroking bool
	mode     stroke.Mode
	last     stroke.Point
	hover    *stroke.Point
}

// pointerEvent feeds ev into sess. mode is the current tool mode; the right
// button always erases. Redraws go through the scheduler so a burst of moves
// costs a single frame.
func (e *Editor) pointerEvent(pt *pointer, sess *session.Session, vp viewport, ev mouse.Event, mode stroke.Mode) {
	defer e.sched.Invalidate()
	p, in := vp.toCanvas(ev.X, ev.Y)
	if in {
		pt.hover = &p
	} else {
		pt.hover = nil
	}
	radius := float64(e.brush) / 2
	switch ev.Direction {
	case mouse.DirPress:
		switch ev.Button {
		case mouse.ButtonLeft, mouse.ButtonRight:
			if !in {
				return
			}
			pt.stroking = true
			pt.mode = mode
			if ev.Button == mouse.ButtonRight {
				pt.mode = stroke.ModeErase
			}
			pt.last = p
			sess.Draw(sess.Active(), p, radius, pt.mode)
		case mouse.ButtonWheelUp:
			e.brush = clampBrush(e.brush + brushStep)
		case mouse.ButtonWheelDown:
			e.brush = clampBrush(e.brush - brushStep)
		}
	case mouse.DirNone:
		if pt.stroking {
			for _, q := range stamps(pt.last, p, radius) {
				sess.Draw(sess.Active(), q, radius, pt.mode)
			}
			pt.last = p
		}
	case mouse.DirRelease:
		pt.stroking = false
	}
}

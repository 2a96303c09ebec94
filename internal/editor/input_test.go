package editor

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/mobile/event/mouse"

	"github.com/example/maskstudio/internal/render"
	"github.com/example/maskstudio/internal/session"
	"github.com/example/maskstudio/internal/stroke"
)

func sessionWithOpacity(add, remove float64) *session.Session {
	sess := session.New(session.Image{ID: "img", Width: 4, Height: 4}, nopService{})
	st := sess.Styles()
	st.Add.Opacity = add
	st.Remove.Opacity = remove
	sess.SetStyles(st)
	return sess
}

func opacityIs(sess *session.Session, k session.Kind, want float64) func() bool {
	return func() bool {
		return math.Abs(layerStyle(sess.Styles(), k).Opacity-want) < 1e-9
	}
}

func TestOpacityStepsAccumulateInsideDebounce(t *testing.T) {
	sess := sessionWithOpacity(0.5, 0.5)
	dial := newOpacityDial(render.NewStyleDebouncer(50 * time.Millisecond))

	var st render.Style
	for i := 0; i < 3; i++ {
		st = dial.step(sess, session.Add, opacityStep)
		time.Sleep(5 * time.Millisecond)
	}
	assert.InDelta(t, 0.8, st.Opacity, 1e-9)
	assert.Eventually(t, opacityIs(sess, session.Add, 0.8), time.Second, 5*time.Millisecond)

	st = dial.step(sess, session.Add, -opacityStep)
	assert.InDelta(t, 0.7, st.Opacity, 1e-9)
	assert.Eventually(t, opacityIs(sess, session.Add, 0.7), time.Second, 5*time.Millisecond)
}

func TestOpacityStepsOnBothLayersAllLand(t *testing.T) {
	sess := sessionWithOpacity(0.5, 0.5)
	dial := newOpacityDial(render.NewStyleDebouncer(30 * time.Millisecond))

	dial.step(sess, session.Add, opacityStep)
	dial.step(sess, session.Remove, -opacityStep)
	dial.step(sess, session.Remove, -opacityStep)

	assert.Eventually(t, opacityIs(sess, session.Add, 0.6), time.Second, 5*time.Millisecond)
	assert.Eventually(t, opacityIs(sess, session.Remove, 0.3), time.Second, 5*time.Millisecond)
}

func TestOpacityDialForgetsPreviousSession(t *testing.T) {
	dial := newOpacityDial(render.NewStyleDebouncer(10 * time.Millisecond))
	first := sessionWithOpacity(0.9, 0.5)
	dial.step(first, session.Add, opacityStep)

	second := sessionWithOpacity(0.2, 0.5)
	st := dial.step(second, session.Add, opacityStep)
	assert.InDelta(t, 0.3, st.Opacity, 1e-9)
}

func TestDragCoalescesRedraws(t *testing.T) {
	img := session.Image{ID: "img", Width: 100, Height: 80}
	e := New(session.NewWorkspace(nopService{}), []session.Image{img}, WithBrushSize(8))
	sess := e.open(0)
	e.sched.Pending()

	vp := fitViewport(img.Width, img.Height, img.Width, img.Height+statusHeight+helpHeight)
	at := func(x, y float32) (float32, float32) {
		return float32(vp.canvas.Min.X) + x, float32(vp.canvas.Min.Y) + y
	}
	var pt pointer
	x, y := at(10, 10)
	e.pointerEvent(&pt, sess, vp, mouse.Event{X: x, Y: y, Button: mouse.ButtonLeft, Direction: mouse.DirPress}, stroke.ModeDraw)
	for i := 1; i <= 20; i++ {
		x, y = at(10+float32(i)*3, 10)
		e.pointerEvent(&pt, sess, vp, mouse.Event{X: x, Y: y, Direction: mouse.DirNone}, stroke.ModeDraw)
	}

	assert.True(t, e.sched.Pending(), "drag should request a redraw")
	assert.False(t, e.sched.Pending(), "a drag must leave one pending redraw, not one per move")
	assert.True(t, sess.HasContent(session.Add))
	require.NotNil(t, pt.hover)
	assert.Equal(t, stroke.Pt(70, 10), *pt.hover)

	e.pointerEvent(&pt, sess, vp, mouse.Event{X: x, Y: y, Button: mouse.ButtonLeft, Direction: mouse.DirRelease}, stroke.ModeDraw)
	assert.False(t, pt.stroking)
}

func TestPointerRightButtonErasesAndWheelResizes(t *testing.T) {
	img := session.Image{ID: "img", Width: 100, Height: 80}
	e := New(session.NewWorkspace(nopService{}), []session.Image{img}, WithBrushSize(20))
	sess := e.open(0)
	vp := fitViewport(img.Width, img.Height, img.Width, img.Height+statusHeight+helpHeight)
	x, y := float32(vp.canvas.Min.X)+50, float32(vp.canvas.Min.Y)+40

	var pt pointer
	e.pointerEvent(&pt, sess, vp, mouse.Event{X: x, Y: y, Button: mouse.ButtonRight, Direction: mouse.DirPress}, stroke.ModeDraw)
	assert.True(t, pt.stroking)
	assert.Equal(t, stroke.ModeErase, pt.mode)
	assert.False(t, sess.HasContent(session.Add), "erasing an empty layer records nothing")

	e.pointerEvent(&pt, sess, vp, mouse.Event{X: x, Y: y, Button: mouse.ButtonWheelUp, Direction: mouse.DirPress}, stroke.ModeDraw)
	assert.Equal(t, 20+brushStep, e.brush)

	e.pointerEvent(&pt, sess, vp, mouse.Event{X: -5, Y: -5, Direction: mouse.DirNone}, stroke.ModeDraw)
	assert.Nil(t, pt.hover)
}

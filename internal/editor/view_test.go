package editor

import (
	"context"
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/maskstudio/internal/maskservice"
	"github.com/example/maskstudio/internal/palette"
	"github.com/example/maskstudio/internal/render"
	"github.com/example/maskstudio/internal/sam"
	"github.com/example/maskstudio/internal/session"
	"github.com/example/maskstudio/internal/stroke"
)

func TestFitViewportScalesToWindow(t *testing.T) {
	vp := fitViewport(100, 50, 400, 300+statusHeight+helpHeight)
	assert.Equal(t, 4.0, vp.scale)
	assert.Equal(t, image.Rect(0, 50, 400, 250), vp.canvas)

	p, in := vp.toCanvas(200, 150)
	assert.True(t, in)
	assert.Equal(t, stroke.Pt(50, 25), p)

	_, in = vp.toCanvas(10, 10)
	assert.False(t, in)
}

func TestFitViewportDegenerate(t *testing.T) {
	vp := fitViewport(0, 0, 100, 100)
	assert.Equal(t, 1.0, vp.scale)
	assert.True(t, vp.canvas.Empty())
}

func TestStampsCoverSegment(t *testing.T) {
	pts := stamps(stroke.Pt(0, 0), stroke.Pt(20, 0), 4)
	require.Len(t, pts, 10)
	assert.Equal(t, stroke.Pt(20, 0), pts[len(pts)-1])
	prev := stroke.Pt(0, 0)
	for _, p := range pts {
		assert.LessOrEqual(t, math.Hypot(p.X-prev.X, p.Y-prev.Y), 2.0+1e-9)
		prev = p
	}

	same := stamps(stroke.Pt(3, 3), stroke.Pt(3, 3), 4)
	assert.Equal(t, []stroke.Point{stroke.Pt(3, 3)}, same)
}

func TestStatusString(t *testing.T) {
	st := status{image: "img1", state: "idle", layer: "add", mode: stroke.ModeErase, brush: 20, order: "add-then-remove"}
	assert.Equal(t, "img1 | idle | add:erase | brush 20 | add-then-remove", st.String())

	st.candidates, st.selected, st.pending, st.message = 3, 1, true, "hello"
	assert.Contains(t, st.String(), "mask 2/3")
	assert.Contains(t, st.String(), "discard edits? y/n")
	assert.Contains(t, st.String(), "hello")
}

func TestComposeDrawsCanvasAndBars(t *testing.T) {
	pal := palette.Default()
	frame := image.NewRGBA(image.Rect(0, 0, 10, 10))
	for i := range frame.Pix {
		frame.Pix[i] = 0xff
	}
	h := 10 + statusHeight + helpHeight
	dst := image.NewRGBA(image.Rect(0, 0, 10, h))
	compose(dst, paintState{width: 10, height: h, frame: frame, pal: pal})

	assert.Equal(t, color.RGBA{255, 255, 255, 255}, dst.RGBAAt(5, 5))
	assert.Equal(t, pal.Background, dst.RGBAAt(9, h-1))
}

type nopService struct{}

func (nopService) Segment(context.Context, maskservice.SegmentRequest) ([]sam.Candidate, error) {
	return nil, nil
}

func (nopService) Combine(context.Context, maskservice.CombineRequest) (*maskservice.CombinedMask, error) {
	return nil, nil
}

func (nopService) FetchImage(context.Context, string) (image.Image, error) { return nil, nil }

func TestCurrentMaskWithoutResult(t *testing.T) {
	sess := session.New(session.Image{ID: "img", Width: 4, Height: 4}, nopService{})
	_, err := currentMask(sess)
	assert.ErrorIs(t, err, session.ErrNoMask)
}

func TestWithOpacityClamps(t *testing.T) {
	st := withOpacity(render.Style{Opacity: 0.95}, opacityStep)
	assert.Equal(t, 1.0, st.Opacity)
	st = withOpacity(render.Style{Opacity: 0.05}, -opacityStep)
	assert.Equal(t, 0.0, st.Opacity)
}

func TestNewClampsBrush(t *testing.T) {
	e := New(session.NewWorkspace(nopService{}), nil, WithBrushSize(1))
	assert.Equal(t, minBrush, e.brush)
	assert.Error(t, e.Run())
}

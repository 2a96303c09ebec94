package session

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/maskstudio/internal/maskservice"
	"github.com/example/maskstudio/internal/render"
	"github.com/example/maskstudio/internal/sam"
	"github.com/example/maskstudio/internal/stroke"
)

type fakeService struct {
	mu          sync.Mutex
	candidates  []sam.Candidate
	segmentErr  error
	combineErr  error
	segments    int
	combines    []maskservice.CombineRequest
	combineHook func()
}

func (f *fakeService) Segment(ctx context.Context, req maskservice.SegmentRequest) ([]sam.Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.segments++
	if f.segmentErr != nil {
		return nil, f.segmentErr
	}
	if req.Prompt == "" || req.Image == "" {
		return nil, &maskservice.ValidationError{Field: "prompt", Reason: "is required"}
	}
	return f.candidates, nil
}

func (f *fakeService) Combine(ctx context.Context, req maskservice.CombineRequest) (*maskservice.CombinedMask, error) {
	f.mu.Lock()
	f.combines = append(f.combines, req)
	hook := f.combineHook
	err := f.combineErr
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	if err != nil {
		return nil, err
	}
	return &maskservice.CombinedMask{
		MaskRef:    "https://svc/static/combined.png",
		OverlayRef: "https://svc/static/combined-overlay.png",
		Mask:       solid(100, 80, color.White),
	}, nil
}

func (f *fakeService) FetchImage(ctx context.Context, ref string) (image.Image, error) {
	return solid(100, 80, color.White), nil
}

func (f *fakeService) combineCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.combines)
}

type fakeStore struct {
	saved []*maskservice.CombinedMask
	err   error
}

func (f *fakeStore) SaveCombinedMask(ctx context.Context, imageID string, cm *maskservice.CombinedMask) error {
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, cm)
	return nil
}

func solid(w, h int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	return img
}

func threeCandidates() []sam.Candidate {
	return []sam.Candidate{
		{ID: "c0", MaskBitmap: "https://svc/static/m0.png", OverlayImage: "https://svc/static/o0.png"},
		{ID: "c1", MaskBitmap: "https://svc/static/m1.png", OverlayImage: "https://svc/static/o1.png"},
		{ID: "c2", MaskBitmap: "https://svc/static/m2.png", OverlayImage: "https://svc/static/o2.png"},
	}
}

func newSession(t *testing.T, svc *fakeService, opts ...Option) *Session {
	t.Helper()
	img := Image{ID: "img1", URL: "https://cdn/room.png", Width: 100, Height: 80}
	return New(img, svc, opts...)
}

func decodeBW(t *testing.T, dataURL string) *image.RGBA {
	t.Helper()
	img, err := render.DecodeDataURL(dataURL)
	require.NoError(t, err)
	out := image.NewRGBA(img.Bounds())
	for y := img.Bounds().Min.Y; y < img.Bounds().Max.Y; y++ {
		for x := img.Bounds().Min.X; x < img.Bounds().Max.X; x++ {
			out.Set(x, y, img.At(x, y))
		}
	}
	return out
}

func TestEndToEndPreview(t *testing.T) {
	svc := &fakeService{candidates: threeCandidates()}
	s := newSession(t, svc)

	res := s.Generate(context.Background(), "add a lamp")
	require.NoError(t, res.Err)
	assert.Len(t, res.Candidates, 3)
	sel, ok := s.Selected()
	require.True(t, ok)
	assert.Equal(t, "c0", sel.ID)
	assert.Equal(t, CandidatesReady, s.State())

	s.Draw(Add, stroke.Pt(50, 40), 10, stroke.ModeDraw)
	assert.Equal(t, Editing, s.State())

	res = s.Preview(context.Background(), maskservice.AddThenRemove)
	require.NoError(t, res.Err)
	require.Equal(t, 1, svc.combineCount())
	req := svc.combines[0]
	assert.Equal(t, "https://svc/static/m0.png", req.SamMask)
	assert.Equal(t, maskservice.AddThenRemove, req.Order)
	assert.True(t, render.IsBlank(decodeBW(t, req.RemoveMask)), "remove layer is all black")
	assert.False(t, render.IsBlank(decodeBW(t, req.AddMask)))

	require.NotNil(t, s.CombinedMask())
	assert.NotNil(t, s.PreviewImage())
	assert.Equal(t, PreviewReady, s.State())

	res = s.Preview(context.Background(), maskservice.AddThenRemove)
	require.NoError(t, res.Err)
	assert.True(t, res.Cached)
	assert.Equal(t, 1, svc.combineCount(), "unchanged edits reuse the cached combine")

	res = s.Preview(context.Background(), maskservice.RemoveThenAdd)
	require.NoError(t, res.Err)
	assert.False(t, res.Cached)
	assert.Equal(t, 2, svc.combineCount(), "a different order recombines")
}

func TestPreviewWithEmptyLayersSkipsService(t *testing.T) {
	svc := &fakeService{candidates: threeCandidates()}
	s := newSession(t, svc)
	s.Generate(context.Background(), "sofa")

	res := s.Preview(context.Background(), maskservice.AddThenRemove)
	require.NoError(t, res.Err)
	assert.True(t, res.Local)
	assert.Zero(t, svc.combineCount())
	assert.NotNil(t, s.PreviewImage())
}

func TestPreviewWithoutCandidate(t *testing.T) {
	svc := &fakeService{}
	s := newSession(t, svc)
	s.Draw(Add, stroke.Pt(10, 10), 4, stroke.ModeDraw)

	res := s.Preview(context.Background(), maskservice.AddThenRemove)
	assert.True(t, maskservice.IsValidation(res.Err))
	assert.Zero(t, svc.combineCount())
}

func TestEditInvalidatesCache(t *testing.T) {
	svc := &fakeService{candidates: threeCandidates()}
	s := newSession(t, svc)
	s.Generate(context.Background(), "lamp")
	s.Draw(Add, stroke.Pt(50, 40), 10, stroke.ModeDraw)
	s.Preview(context.Background(), maskservice.AddThenRemove)
	require.NotNil(t, s.CombinedMask())

	s.Draw(Remove, stroke.Pt(20, 20), 5, stroke.ModeDraw)
	assert.Nil(t, s.CombinedMask())
	assert.Nil(t, s.PreviewImage())
	assert.Equal(t, Editing, s.State())
}

func TestPreviewFailureLeavesCacheEmpty(t *testing.T) {
	svc := &fakeService{candidates: threeCandidates(), combineErr: &maskservice.ServiceError{Op: "combine", Status: 500}}
	s := newSession(t, svc)
	s.Generate(context.Background(), "lamp")
	s.Draw(Add, stroke.Pt(50, 40), 10, stroke.ModeDraw)

	res := s.Preview(context.Background(), maskservice.AddThenRemove)
	assert.True(t, maskservice.IsServiceError(res.Err))
	assert.Nil(t, s.CombinedMask())
	assert.False(t, s.Busy())
	assert.Equal(t, Editing, s.State())
}

func TestPreviewFailureAfterOrderChangeDropsCache(t *testing.T) {
	svc := &fakeService{candidates: threeCandidates()}
	s := newSession(t, svc, WithShowPreview(true))
	s.Generate(context.Background(), "lamp")
	s.Draw(Add, stroke.Pt(50, 40), 10, stroke.ModeDraw)
	require.NoError(t, s.Preview(context.Background(), maskservice.AddThenRemove).Err)
	require.NotNil(t, s.CombinedMask())

	svc.mu.Lock()
	svc.combineErr = &maskservice.ServiceError{Op: "combine", Status: 502}
	svc.mu.Unlock()
	res := s.Preview(context.Background(), maskservice.RemoveThenAdd)
	assert.True(t, maskservice.IsServiceError(res.Err))
	assert.Nil(t, s.CombinedMask(), "the add-then-remove result must not survive")
	assert.Nil(t, s.PreviewImage())
	assert.Equal(t, 2, svc.combineCount())
}

func TestGenerateFailureClearsState(t *testing.T) {
	svc := &fakeService{candidates: threeCandidates()}
	s := newSession(t, svc)
	s.Generate(context.Background(), "lamp")
	s.Draw(Add, stroke.Pt(50, 40), 10, stroke.ModeDraw)

	svc.segmentErr = errors.New("boom")
	res := s.Generate(context.Background(), "lamp")
	require.Error(t, res.Err)
	assert.Empty(t, s.Candidates())
	_, ok := s.Selected()
	assert.False(t, ok)
	assert.False(t, s.HasContent(Add))
	assert.Equal(t, Idle, s.State())
}

func TestSelectGuard(t *testing.T) {
	svc := &fakeService{candidates: threeCandidates()}
	s := newSession(t, svc)
	s.Generate(context.Background(), "lamp")

	assert.Equal(t, sam.Selected, s.RequestSelect(1))

	s.Draw(Add, stroke.Pt(50, 40), 10, stroke.ModeDraw)
	s.Preview(context.Background(), maskservice.AddThenRemove)
	require.NotNil(t, s.CombinedMask())

	assert.Equal(t, sam.NeedsConfirmation, s.RequestSelect(2))
	sel, _ := s.Selected()
	assert.Equal(t, "c1", sel.ID)
	assert.True(t, s.HasContent(Add))

	s.CancelSelect()
	sel, _ = s.Selected()
	assert.Equal(t, "c1", sel.ID)

	assert.Equal(t, sam.NeedsConfirmation, s.RequestSelect(2))
	assert.Equal(t, sam.Selected, s.ConfirmSelect(2))
	sel, _ = s.Selected()
	assert.Equal(t, "c2", sel.ID)
	assert.False(t, s.HasContent(Add))
	assert.False(t, s.HasContent(Remove))
	assert.Nil(t, s.CombinedMask())
}

func TestApplyReusesCacheAndSetsBaseline(t *testing.T) {
	svc := &fakeService{candidates: threeCandidates()}
	store := &fakeStore{}
	s := newSession(t, svc, WithStore(store))
	s.Generate(context.Background(), "lamp")
	s.Draw(Add, stroke.Pt(50, 40), 10, stroke.ModeDraw)
	s.Preview(context.Background(), maskservice.AddThenRemove)

	res := s.Apply(context.Background())
	require.NoError(t, res.Err)
	assert.True(t, res.Cached)
	assert.Equal(t, 1, svc.combineCount())
	require.Len(t, store.saved, 1)
	assert.Equal(t, "https://svc/static/combined.png", store.saved[0].MaskRef)

	assert.False(t, s.HasContent(Add))
	assert.Nil(t, s.CombinedMask())
	require.NotNil(t, s.Baseline())
	assert.Equal(t, Editing, s.State())
	assert.Equal(t, sam.NeedsConfirmation, s.RequestSelect(1), "an applied mask counts as an edit")
	s.CancelSelect()

	s.Draw(Remove, stroke.Pt(30, 30), 5, stroke.ModeDraw)
	s.Preview(context.Background(), maskservice.AddThenRemove)
	require.Equal(t, 2, svc.combineCount())
	assert.Equal(t, "https://svc/static/combined.png", svc.combines[1].SamMask, "next combine refines the applied mask")
}

func TestApplyWithoutCacheCombines(t *testing.T) {
	svc := &fakeService{candidates: threeCandidates()}
	store := &fakeStore{}
	s := newSession(t, svc, WithStore(store), WithRefineOrder(maskservice.RemoveThenAdd))
	s.Generate(context.Background(), "lamp")
	s.Draw(Remove, stroke.Pt(50, 40), 10, stroke.ModeDraw)

	res := s.Apply(context.Background())
	require.NoError(t, res.Err)
	assert.False(t, res.Cached)
	require.Equal(t, 1, svc.combineCount())
	assert.Equal(t, maskservice.RemoveThenAdd, svc.combines[0].Order)
	assert.Nil(t, s.PreviewImage(), "apply does not force the preview")
}

func TestApplyEmptyLayersPersistsSelectedMask(t *testing.T) {
	svc := &fakeService{candidates: threeCandidates()}
	store := &fakeStore{}
	s := newSession(t, svc, WithStore(store))
	s.Generate(context.Background(), "lamp")

	res := s.Apply(context.Background())
	require.NoError(t, res.Err)
	assert.True(t, res.Local)
	assert.Zero(t, svc.combineCount())
	require.Len(t, store.saved, 1)
	assert.Equal(t, "https://svc/static/m0.png", store.saved[0].MaskRef)
}

func TestApplyWithNothingSelected(t *testing.T) {
	s := newSession(t, &fakeService{}, WithStore(&fakeStore{}))
	res := s.Apply(context.Background())
	assert.ErrorIs(t, res.Err, ErrNoMask)

	s.Draw(Add, stroke.Pt(10, 10), 3, stroke.ModeDraw)
	res = s.Apply(context.Background())
	assert.ErrorIs(t, res.Err, ErrNoMask)
}

func TestApplyStoreFailureKeepsEdits(t *testing.T) {
	svc := &fakeService{candidates: threeCandidates()}
	s := newSession(t, svc, WithStore(&fakeStore{err: errors.New("forbidden")}))
	s.Generate(context.Background(), "lamp")
	s.Draw(Add, stroke.Pt(50, 40), 10, stroke.ModeDraw)

	res := s.Apply(context.Background())
	require.Error(t, res.Err)
	assert.True(t, s.HasContent(Add))
	assert.Nil(t, s.Baseline())
	assert.False(t, s.Busy())
}

func TestApplyWithoutStore(t *testing.T) {
	s := newSession(t, &fakeService{candidates: threeCandidates()})
	s.Generate(context.Background(), "lamp")
	assert.ErrorIs(t, s.Apply(context.Background()).Err, ErrNoStore)
}

func TestReentrantCallsRejected(t *testing.T) {
	svc := &fakeService{candidates: threeCandidates()}
	s := newSession(t, svc, WithStore(&fakeStore{}))
	s.Generate(context.Background(), "lamp")
	s.Draw(Add, stroke.Pt(50, 40), 10, stroke.ModeDraw)

	var inner []Result
	svc.combineHook = func() {
		inner = append(inner,
			s.Preview(context.Background(), maskservice.AddThenRemove),
			s.Apply(context.Background()),
			s.Generate(context.Background(), "lamp"),
		)
	}
	res := s.Preview(context.Background(), maskservice.AddThenRemove)
	require.NoError(t, res.Err)
	require.Len(t, inner, 3)
	for _, r := range inner {
		assert.ErrorIs(t, r.Err, ErrBusy, r.Op.String())
	}
	assert.Equal(t, 1, svc.combineCount())
}

func TestEditDuringPreviewIsStale(t *testing.T) {
	svc := &fakeService{candidates: threeCandidates()}
	s := newSession(t, svc)
	s.Generate(context.Background(), "lamp")
	s.Draw(Add, stroke.Pt(50, 40), 10, stroke.ModeDraw)

	svc.combineHook = func() { s.Draw(Add, stroke.Pt(10, 10), 4, stroke.ModeDraw) }
	res := s.Preview(context.Background(), maskservice.AddThenRemove)
	assert.ErrorIs(t, res.Err, ErrStale)
	assert.Nil(t, s.CombinedMask())
}

func TestWorkspaceDropsLateResponses(t *testing.T) {
	svc := &fakeService{candidates: threeCandidates()}
	ws := NewWorkspace(svc)
	first := ws.Open(Image{ID: "a", URL: "https://cdn/a.png", Width: 100, Height: 80})
	first.Generate(context.Background(), "lamp")
	first.Draw(Add, stroke.Pt(50, 40), 10, stroke.ModeDraw)

	var second *Session
	svc.combineHook = func() {
		second = ws.Open(Image{ID: "b", URL: "https://cdn/b.png", Width: 100, Height: 80})
	}
	res := first.Preview(context.Background(), maskservice.AddThenRemove)
	assert.ErrorIs(t, res.Err, ErrStale)
	assert.True(t, first.Closed())
	assert.False(t, first.HasContent(Add))

	require.NotNil(t, second)
	assert.Same(t, second, ws.Current())
	assert.Equal(t, Idle, second.State())
	assert.Empty(t, second.Candidates())
	assert.NotEqual(t, first.ID(), second.ID())
}

func TestFrameZOrder(t *testing.T) {
	svc := &fakeService{}
	var redraws int
	s := newSession(t, svc, WithChangeListener(func() { redraws++ }))
	s.Draw(Add, stroke.Pt(50, 40), 10, stroke.ModeDraw)
	s.Draw(Remove, stroke.Pt(50, 40), 10, stroke.ModeDraw)
	st := s.Styles()
	st.Add.Opacity, st.Remove.Opacity = 1, 1
	s.SetStyles(st)

	assert.Equal(t, st.Add.Color, s.Frame().RGBAAt(50, 40), "add layer on top by default")
	s.SetActive(Remove)
	assert.Equal(t, st.Remove.Color, s.Frame().RGBAAt(50, 40))

	s.SetVisible(Remove, false)
	assert.Equal(t, st.Add.Color, s.Frame().RGBAAt(50, 40))
	assert.True(t, s.HasContent(Remove), "hiding keeps strokes")
	assert.Greater(t, redraws, 0)
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("Remove")
	require.NoError(t, err)
	assert.Equal(t, Remove, k)
	_, err = ParseKind("middle")
	assert.True(t, err != nil && strings.Contains(err.Error(), "middle"))
}

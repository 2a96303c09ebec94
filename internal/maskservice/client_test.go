package maskservice

import (
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writePNG(w http.ResponseWriter, c color.Color) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, c)
		}
	}
	w.Header().Set("Content-Type", "image/png")
	_ = png.Encode(w, img)
}

func newClient(t *testing.T, h http.Handler, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	opts = append([]Option{WithSleep(func(context.Context, time.Duration) error { return nil })}, opts...)
	c, err := New(srv.URL, opts...)
	require.NoError(t, err)
	return c
}

func TestSegmentZipsCandidates(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/generate-sam-mask", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "add a lamp", r.FormValue("mask_prompt"))
		assert.Equal(t, "https://cdn.example.com/room.png", r.FormValue("init_image"))
		writeJSON(w, http.StatusOK, map[string]any{"image_paths": map[string]any{
			"blended_images": []string{"/static/b0.png", "/static/b1.png", "/static/b2.png"},
			"masks":          []string{"/static/m0.png", "/static/m1.png", "/static/m2.png"},
			"masked_images":  []string{"/static/o0.png", "/static/o1.png", "/static/o2.png"},
		}})
	})
	c := newClient(t, mux)

	cands, err := c.Segment(context.Background(), SegmentRequest{Prompt: " add a lamp ", Image: "https://cdn.example.com/room.png"})
	require.NoError(t, err)
	require.Len(t, cands, 3)
	assert.Equal(t, c.BaseURL()+"static/m1.png", cands[1].MaskBitmap)
	assert.Equal(t, c.BaseURL()+"static/b2.png", cands[2].BlendedPreview)
	assert.NotEqual(t, cands[0].ID, cands[1].ID)
}

func TestSegmentAcceptsShortBlendedKey(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"image_paths": map[string]any{
			"blended":       []string{"b0", "b1"},
			"masks":         []string{"m0", "m1", "m2"},
			"masked_images": []string{"o0", "o1"},
		}})
	}))
	cands, err := c.Segment(context.Background(), SegmentRequest{Prompt: "sofa", Image: "x"})
	require.NoError(t, err)
	assert.Len(t, cands, 2)
}

func TestSegmentValidation(t *testing.T) {
	var calls int32
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))

	_, err := c.Segment(context.Background(), SegmentRequest{Prompt: "  ", Image: "x"})
	assert.True(t, IsValidation(err))
	_, err = c.Segment(context.Background(), SegmentRequest{Prompt: "lamp"})
	assert.True(t, IsValidation(err))
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestServiceErrorCarriesStatus(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Mask prompt is required"})
	}))
	_, err := c.Segment(context.Background(), SegmentRequest{Prompt: "lamp", Image: "x"})
	require.Error(t, err)
	assert.True(t, IsServiceError(err))
	assert.Equal(t, http.StatusBadRequest, StatusCode(err))
	assert.Contains(t, err.Error(), "Mask prompt is required")
}

func TestUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := New(url)
	require.NoError(t, err)
	_, err = c.Segment(context.Background(), SegmentRequest{Prompt: "lamp", Image: "x"})
	assert.True(t, IsUnavailable(err))
}

func TestCombineFetchesImages(t *testing.T) {
	var fetches int32
	mux := http.NewServeMux()
	mux.HandleFunc("/preview-mask", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "1", r.FormValue("refine_option"))
		assert.Equal(t, "sam.png", r.FormValue("sam_mask"))
		assert.Equal(t, "data:image/png;base64,AAA", r.FormValue("user_mask_add"))
		writeJSON(w, http.StatusOK, map[string]string{"mask": "/static/c.png", "masked_image": "/static/co.png"})
	})
	mux.HandleFunc("/static/", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&fetches, 1)
		writePNG(w, color.White)
	})
	c := newClient(t, mux)

	req := CombineRequest{SamMask: "sam.png", AddMask: "data:image/png;base64,AAA", RemoveMask: "data:image/png;base64,BBB", Order: RemoveThenAdd}
	cm, err := c.Combine(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, c.BaseURL()+"static/c.png", cm.MaskRef)
	require.NotNil(t, cm.Mask)
	require.NotNil(t, cm.Overlay)
	assert.Equal(t, 4, cm.Mask.Bounds().Dx())

	_, err = c.FetchImage(context.Background(), cm.MaskRef)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&fetches), "second fetch is served from cache")
}

func TestCombineRequiresSamMask(t *testing.T) {
	c := newClient(t, http.NotFoundHandler())
	_, err := c.Combine(context.Background(), CombineRequest{AddMask: "a", RemoveMask: "b"})
	require.True(t, IsValidation(err))
	assert.Contains(t, err.Error(), "no SAM candidate selected")
}

func TestResolve(t *testing.T) {
	c, err := New("http://svc.local:5000/api")
	require.NoError(t, err)
	assert.Equal(t, "http://svc.local:5000/api/static/x.png", c.Resolve("/static/x.png"))
	assert.Equal(t, "https://other/x.png", c.Resolve("https://other/x.png"))
	assert.Equal(t, "data:image/png;base64,AA", c.Resolve("data:image/png;base64,AA"))
}

func TestNewRejectsBadScheme(t *testing.T) {
	_, err := New("ftp://svc")
	assert.Error(t, err)
}

func TestParseRefineOrder(t *testing.T) {
	o, err := ParseRefineOrder("remove-then-add")
	require.NoError(t, err)
	assert.Equal(t, RemoveThenAdd, o)
	o, err = ParseRefineOrder("0")
	require.NoError(t, err)
	assert.Equal(t, AddThenRemove, o)
	_, err = ParseRefineOrder("sideways")
	assert.Error(t, err)
}

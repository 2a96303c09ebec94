package designapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/maskstudio/internal/maskservice"
	"github.com/example/maskstudio/internal/sam"
)

func TestSinkSavesCombinedMask(t *testing.T) {
	var got updateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/design/d1/design-version/v2/update-combined-mask", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(updateResponse{Images: []Image{{ID: "img1"}}})
	}))
	defer srv.Close()

	c, err := New(srv.URL+"/api/", "secret")
	require.NoError(t, err)
	sink := Sink{Client: c, Target: Target{DesignID: "d1", VersionID: "v2"}}

	err = sink.SaveCombinedMask(context.Background(), "img1", &maskservice.CombinedMask{
		MaskRef:    "https://svc/static/c.png",
		OverlayRef: "https://svc/static/co.png",
	})
	require.NoError(t, err)
	assert.Equal(t, "img1", got.ImageID)
	require.NotNil(t, got.CombinedMask)
	assert.Equal(t, "https://svc/static/c.png", got.CombinedMask.Mask)
}

func TestUpdateSamMasks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/design/d1/design-version/v1/update-sam-masks", r.URL.Path)
		var body updateRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Len(t, body.SamMasks, 2)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(updateResponse{Images: []Image{{ID: "img1", SamMasks: body.SamMasks}}})
	}))
	defer srv.Close()

	c, err := New(srv.URL, "")
	require.NoError(t, err)
	imgs, err := c.UpdateSamMasks(context.Background(), Target{DesignID: "d1", VersionID: "v1"}, "img1", []sam.Candidate{
		{ID: "a", MaskBitmap: "m0"}, {ID: "b", MaskBitmap: "m1"},
	})
	require.NoError(t, err)
	require.Len(t, imgs, 1)
	assert.Equal(t, "m1", imgs[0].SamMasks[1].Mask)
}

func TestUpdateErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "not a collaborator"})
	}))
	defer srv.Close()

	c, err := New(srv.URL, "tok")
	require.NoError(t, err)

	_, err = c.UpdateCombinedMask(context.Background(), Target{}, "img1", MaskRefs{Mask: "https://x/c.png"})
	require.Error(t, err)

	_, err = c.UpdateCombinedMask(context.Background(), Target{DesignID: "d", VersionID: "v"}, "img1", MaskRefs{Mask: "not a url"})
	require.Error(t, err)

	_, err = c.UpdateCombinedMask(context.Background(), Target{DesignID: "d", VersionID: "v"}, "img1", MaskRefs{Mask: "https://x/c.png"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
	assert.Equal(t, "not a collaborator", apiErr.Msg)
}

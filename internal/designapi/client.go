// Package designapi persists mask results onto a design version through the
// application's REST API.
package designapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/example/maskstudio/internal/maskservice"
	"github.com/example/maskstudio/internal/sam"
)

// Target identifies the design version whose images are updated.
type Target struct {
	DesignID  string `validate:"required"`
	VersionID string `validate:"required"`
}

// MaskRefs is the persisted form of a combined mask.
type MaskRefs struct {
	Mask        string `json:"mask" validate:"required,url"`
	MaskedImage string `json:"maskedImage,omitempty"`
}

// SamMask is the persisted form of one segmentation candidate.
type SamMask struct {
	Blended     string `json:"blended"`
	Mask        string `json:"mask"`
	MaskedImage string `json:"maskedImage"`
}

// Image is an entry of the design version's image list.
type Image struct {
	ID           string    `json:"imageId"`
	Link         string    `json:"link,omitempty"`
	Description  string    `json:"description,omitempty"`
	CombinedMask *MaskRefs `json:"combinedMask,omitempty"`
	SamMasks     []SamMask `json:"samMasks,omitempty"`
}

type updateRequest struct {
	ImageID      string    `json:"imageId" validate:"required"`
	CombinedMask *MaskRefs `json:"combinedMask,omitempty"`
	SamMasks     []SamMask `json:"samMasks,omitempty"`
}

type updateResponse struct {
	Images []Image `json:"images"`
}

// APIError is a failed call to the design API.
type APIError struct {
	Op     string
	Status int
	Msg    string
}

func (e *APIError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("design api %s: %s", e.Op, e.Msg)
	}
	return fmt.Sprintf("design api %s: status %d: %s", e.Op, e.Status, e.Msg)
}

// Client calls the design-version update endpoints.
type Client struct {
	http     *resty.Client
	validate *validator.Validate
	logger   *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying transport client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = resty.NewWithClient(hc) }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a client for the API at baseURL authenticating with token.
func New(baseURL, token string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("invalid design api url %q", baseURL)
	}
	c := &Client{
		http:     resty.New(),
		validate: validator.New(),
		logger:   zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	c.http.SetBaseURL(strings.TrimRight(baseURL, "/")).SetTimeout(30 * time.Second)
	if token != "" {
		c.http.SetAuthToken(token)
	}
	return c, nil
}

// UpdateCombinedMask stores the combined mask on imageID and returns the
// updated image list.
func (c *Client) UpdateCombinedMask(ctx context.Context, t Target, imageID string, refs MaskRefs) ([]Image, error) {
	return c.update(ctx, t, "update-combined-mask", updateRequest{ImageID: imageID, CombinedMask: &refs})
}

// UpdateSamMasks stores the segmentation candidates on imageID and returns
// the updated image list.
func (c *Client) UpdateSamMasks(ctx context.Context, t Target, imageID string, cands []sam.Candidate) ([]Image, error) {
	masks := make([]SamMask, len(cands))
	for i, cand := range cands {
		masks[i] = SamMask{Blended: cand.BlendedPreview, Mask: cand.MaskBitmap, MaskedImage: cand.OverlayImage}
	}
	return c.update(ctx, t, "update-sam-masks", updateRequest{ImageID: imageID, SamMasks: masks})
}

func (c *Client) update(ctx context.Context, t Target, action string, body updateRequest) ([]Image, error) {
	if err := c.validate.Struct(t); err != nil {
		return nil, &APIError{Op: action, Msg: "design and version ids are required"}
	}
	if err := c.validate.Struct(body); err != nil {
		return nil, &APIError{Op: action, Msg: err.Error()}
	}
	path := fmt.Sprintf("/design/%s/design-version/%s/%s", url.PathEscape(t.DesignID), url.PathEscape(t.VersionID), action)
	resp, err := c.http.R().SetContext(ctx).SetBody(body).Post(path)
	if err != nil {
		return nil, &APIError{Op: action, Msg: err.Error()}
	}
	if !resp.IsSuccess() {
		var e struct {
			Message string `json:"message"`
			Error   string `json:"error"`
		}
		_ = json.Unmarshal(resp.Body(), &e)
		msg := e.Message
		if msg == "" {
			msg = e.Error
		}
		return nil, &APIError{Op: action, Status: resp.StatusCode(), Msg: msg}
	}
	var out updateResponse
	if len(resp.Body()) > 0 {
		if err := json.Unmarshal(resp.Body(), &out); err != nil {
			return nil, &APIError{Op: action, Status: resp.StatusCode(), Msg: "malformed response"}
		}
	}
	c.logger.Info("design version updated", zap.String("action", action), zap.String("image", body.ImageID), zap.Int("images", len(out.Images)))
	return out.Images, nil
}

// Sink adapts the client to a single design version so it can be handed to
// a mask editing session as its persistence target.
type Sink struct {
	Client *Client
	Target Target
}

// SaveCombinedMask persists cm on imageID.
func (s Sink) SaveCombinedMask(ctx context.Context, imageID string, cm *maskservice.CombinedMask) error {
	if cm == nil {
		return &APIError{Op: "update-combined-mask", Msg: "no combined mask"}
	}
	_, err := s.Client.UpdateCombinedMask(ctx, s.Target, imageID, MaskRefs{Mask: cm.MaskRef, MaskedImage: cm.OverlayRef})
	return err
}

// SaveCandidates persists the segmentation candidates on imageID.
func (s Sink) SaveCandidates(ctx context.Context, imageID string, cands []sam.Candidate) error {
	_, err := s.Client.UpdateSamMasks(ctx, s.Target, imageID, cands)
	return err
}

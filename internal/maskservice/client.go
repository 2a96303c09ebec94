// Package maskservice talks to the segmentation, combine and image
// generation service over multipart HTTP.
package maskservice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/example/maskstudio/internal/render"
	"github.com/example/maskstudio/internal/sam"
)

// Default polling limits for image generation.
const (
	DefaultPollInterval     = time.Second
	DefaultProgressAttempts = 300
	DefaultResultAttempts   = 10
	DefaultAssetTTL         = 10 * time.Minute
	DefaultTimeout          = 2 * time.Minute
)

// Client is a stateless wrapper around the mask service endpoints. The only
// state it keeps is a TTL cache of fetched images.
type Client struct {
	http     *resty.Client
	base     *url.URL
	validate *validator.Validate
	assets   *cache.Cache
	logger   *zap.Logger

	pollInterval     time.Duration
	progressAttempts int
	resultAttempts   int
	sleep            func(context.Context, time.Duration) error
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying transport client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = resty.NewWithClient(hc) }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.SetTimeout(d)
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithPolling sets the generation polling interval and attempt ceilings.
// Non-positive values keep the defaults.
func WithPolling(interval time.Duration, progressAttempts, resultAttempts int) Option {
	return func(c *Client) {
		if interval > 0 {
			c.pollInterval = interval
		}
		if progressAttempts > 0 {
			c.progressAttempts = progressAttempts
		}
		if resultAttempts > 0 {
			c.resultAttempts = resultAttempts
		}
	}
}

// WithAssetTTL sets how long fetched mask images stay cached.
func WithAssetTTL(ttl time.Duration) Option {
	return func(c *Client) {
		if ttl > 0 {
			c.assets = cache.New(ttl, 2*ttl)
		}
	}
}

// WithSleep replaces the wait between polling attempts.
func WithSleep(fn func(context.Context, time.Duration) error) Option {
	return func(c *Client) { c.sleep = fn }
}

// New creates a client for the service rooted at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("parse mask service url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("mask service url %q must be http or https", baseURL)
	}
	c := &Client{
		http:             resty.New().SetTimeout(DefaultTimeout),
		base:             base,
		validate:         validator.New(),
		assets:           cache.New(DefaultAssetTTL, 2*DefaultAssetTTL),
		logger:           zap.NewNop(),
		pollInterval:     DefaultPollInterval,
		progressAttempts: DefaultProgressAttempts,
		resultAttempts:   DefaultResultAttempts,
		sleep:            sleepCtx,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// BaseURL returns the service root.
func (c *Client) BaseURL() string {
	return c.base.String()
}

type segmentResponse struct {
	ImagePaths struct {
		Blended       []string `json:"blended"`
		BlendedImages []string `json:"blended_images"`
		Masks         []string `json:"masks"`
		MaskedImages  []string `json:"masked_images"`
	} `json:"image_paths"`
}

// Segment asks the service for mask candidates of prompt in image. The
// response arrays are zipped index-wise; extra entries in longer arrays are
// dropped.
func (c *Client) Segment(ctx context.Context, req SegmentRequest) ([]sam.Candidate, error) {
	req.Prompt = strings.TrimSpace(req.Prompt)
	if err := c.check(req); err != nil {
		return nil, err
	}
	var out segmentResponse
	err := c.post(ctx, "segment", "generate-sam-mask", map[string]string{
		"mask_prompt": req.Prompt,
		"init_image":  req.Image,
	}, nil, &out)
	if err != nil {
		return nil, err
	}

	blended := out.ImagePaths.BlendedImages
	if len(blended) == 0 {
		blended = out.ImagePaths.Blended
	}
	n := min(len(blended), len(out.ImagePaths.Masks), len(out.ImagePaths.MaskedImages))
	cands := make([]sam.Candidate, n)
	for i := range cands {
		cands[i] = sam.Candidate{
			ID:             uuid.NewString(),
			BlendedPreview: c.Resolve(blended[i]),
			MaskBitmap:     c.Resolve(out.ImagePaths.Masks[i]),
			OverlayImage:   c.Resolve(out.ImagePaths.MaskedImages[i]),
		}
	}
	c.logger.Debug("segment finished", zap.String("prompt", req.Prompt), zap.Int("candidates", n))
	return cands, nil
}

type combineResponse struct {
	Mask        string `json:"mask"`
	MaskedImage string `json:"masked_image"`
}

// Combine merges the SAM mask with the add and remove layers and fetches the
// resulting images.
func (c *Client) Combine(ctx context.Context, req CombineRequest) (*CombinedMask, error) {
	if req.SamMask == "" {
		return nil, &ValidationError{Field: "sam_mask", Reason: "is required: no SAM candidate selected"}
	}
	if err := c.check(req); err != nil {
		return nil, err
	}
	var out combineResponse
	err := c.post(ctx, "combine", "preview-mask", map[string]string{
		"refine_option":    strconv.Itoa(int(req.Order)),
		"sam_mask":         req.SamMask,
		"user_mask_add":    req.AddMask,
		"user_mask_remove": req.RemoveMask,
	}, nil, &out)
	if err != nil {
		return nil, err
	}
	if out.Mask == "" {
		return nil, &ServiceError{Op: "combine", Status: http.StatusOK, Message: "response has no mask"}
	}
	cm := &CombinedMask{MaskRef: c.Resolve(out.Mask)}
	if out.MaskedImage != "" {
		cm.OverlayRef = c.Resolve(out.MaskedImage)
	}
	if cm.Mask, err = c.FetchImage(ctx, cm.MaskRef); err != nil {
		return nil, err
	}
	if cm.OverlayRef != "" {
		if cm.Overlay, err = c.FetchImage(ctx, cm.OverlayRef); err != nil {
			return nil, err
		}
	}
	return cm, nil
}

// Resolve turns a server-relative path into an absolute URL. Absolute URLs
// and data URLs are returned unchanged.
func (c *Client) Resolve(ref string) string {
	if ref == "" || render.IsDataURL(ref) {
		return ref
	}
	u, err := url.Parse(ref)
	if err != nil || u.IsAbs() {
		return ref
	}
	return c.base.ResolveReference(&url.URL{Path: strings.TrimLeft(u.Path, "/"), RawQuery: u.RawQuery}).String()
}

// FetchImage loads the image behind ref, decoding data URLs in place and
// downloading everything else. Downloads are cached by URL.
func (c *Client) FetchImage(ctx context.Context, ref string) (image.Image, error) {
	if ref == "" {
		return nil, &ValidationError{Field: "image", Reason: "reference is empty"}
	}
	if render.IsDataURL(ref) {
		return render.DecodeDataURL(ref)
	}
	u := c.Resolve(ref)
	if v, ok := c.assets.Get(u); ok {
		return v.(image.Image), nil
	}
	resp, err := c.http.R().SetContext(ctx).Get(u)
	if err != nil {
		return nil, &UnavailableError{Op: "fetch", err: err}
	}
	if resp.IsError() {
		return nil, &ServiceError{Op: "fetch", Status: resp.StatusCode(), Message: u}
	}
	img, err := render.DecodeImage(resp.Body())
	if err != nil {
		return nil, &ServiceError{Op: "fetch", Status: resp.StatusCode(), Message: err.Error()}
	}
	c.assets.SetDefault(u, img)
	return img, nil
}

type file struct {
	name string
	data []byte
}

func (c *Client) post(ctx context.Context, op, path string, form map[string]string, files map[string]file, out any) error {
	fields := make(map[string]string, len(form))
	for k, v := range form {
		if v != "" {
			fields[k] = v
		}
	}
	r := c.http.R().SetContext(ctx).SetMultipartFormData(fields)
	for field, f := range files {
		if len(f.data) > 0 {
			r.SetFileReader(field, f.name, bytes.NewReader(f.data))
		}
	}
	c.logger.Debug("mask service request", zap.String("op", op), zap.String("path", path))
	resp, err := r.Post(c.endpoint(path))
	if err != nil {
		return &UnavailableError{Op: op, err: err}
	}
	return c.decode(op, resp, out)
}

func (c *Client) get(ctx context.Context, op, path, taskID string, out any) (*resty.Response, error) {
	resp, err := c.http.R().SetContext(ctx).SetQueryParam("task_id", taskID).Get(c.endpoint(path))
	if err != nil {
		return nil, &UnavailableError{Op: op, err: err}
	}
	return resp, c.decode(op, resp, out)
}

func (c *Client) decode(op string, resp *resty.Response, out any) error {
	if !resp.IsSuccess() {
		var body struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		_ = json.Unmarshal(resp.Body(), &body)
		msg := body.Error
		if msg == "" {
			msg = body.Message
		}
		return &ServiceError{Op: op, Status: resp.StatusCode(), Message: msg}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return &ServiceError{Op: op, Status: resp.StatusCode(), Message: "malformed response: " + err.Error()}
	}
	return nil
}

func (c *Client) endpoint(path string) string {
	return c.base.ResolveReference(&url.URL{Path: path}).String()
}

func (c *Client) check(req any) error {
	err := c.validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &ValidationError{Field: strings.ToLower(fe.Field()), Reason: "failed " + fe.Tag()}
	}
	return &ValidationError{Reason: err.Error()}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Package session orchestrates mask editing for a single image: the add and
// remove stroke layers, the segmentation candidates, the cached combined mask
// and the generate, preview and apply round trips to the mask service.
package session

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/maskstudio/internal/maskservice"
	"github.com/example/maskstudio/internal/palette"
	"github.com/example/maskstudio/internal/render"
	"github.com/example/maskstudio/internal/sam"
	"github.com/example/maskstudio/internal/stroke"
)

var (
	// ErrBusy rejects an operation while another one is in flight.
	ErrBusy = errors.New("another mask operation is in progress")
	// ErrStale marks a response that arrived after the session closed or
	// its edits changed.
	ErrStale = errors.New("response no longer matches the session state")
	// ErrNoMask is returned by Apply when there is nothing to apply.
	ErrNoMask = errors.New("no SAM mask selected and no combined mask to apply")
	// ErrNoStore is returned by Apply when no persistence target is set.
	ErrNoStore = errors.New("no mask store configured")
)

// MaskService is the subset of the mask service client a session uses.
type MaskService interface {
	Segment(ctx context.Context, req maskservice.SegmentRequest) ([]sam.Candidate, error)
	Combine(ctx context.Context, req maskservice.CombineRequest) (*maskservice.CombinedMask, error)
	FetchImage(ctx context.Context, ref string) (image.Image, error)
}

// MaskStore persists an applied combined mask.
type MaskStore interface {
	SaveCombinedMask(ctx context.Context, imageID string, cm *maskservice.CombinedMask) error
}

// Kind names one of the two stroke layers.
type Kind int

const (
	Add Kind = iota
	Remove
)

func (k Kind) String() string {
	if k == Remove {
		return "remove"
	}
	return "add"
}

// ParseKind accepts "add" or "remove".
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "add", "a", "+":
		return Add, nil
	case "remove", "r", "-":
		return Remove, nil
	}
	return Add, fmt.Errorf("unknown layer %q", s)
}

// State is the session's position in the edit protocol.
type State int

const (
	Idle State = iota
	Generating
	CandidatesReady
	Editing
	Previewing
	PreviewReady
	Applying
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Generating:
		return "generating"
	case CandidatesReady:
		return "candidates-ready"
	case Editing:
		return "editing"
	case Previewing:
		return "previewing"
	case PreviewReady:
		return "preview-ready"
	case Applying:
		return "applying"
	}
	return "unknown"
}

// Image is the picture being edited.
type Image struct {
	ID     string
	URL    string
	Width  int
	Height int
	Base   image.Image
}

// Styles holds the paint settings of every overlay.
type Styles struct {
	Add     render.Style
	Remove  render.Style
	Sam     render.Style
	Preview render.Style
}

// StylesFrom builds visible styles at the default opacity from p.
func StylesFrom(p *palette.Palette) Styles {
	return Styles{
		Add:     render.NewStyle(p.Add),
		Remove:  render.NewStyle(p.Remove),
		Sam:     render.NewStyle(p.Sam),
		Preview: render.NewStyle(p.Preview),
	}
}

// Session is the mask editing state of one image. It is safe for use from
// multiple goroutines; network calls run without holding the lock.
type Session struct {
	mu sync.Mutex

	id     string
	img    Image
	svc    MaskService
	store  MaskStore
	logger *zap.Logger

	layers  [2]*stroke.Layer
	surface [2]*render.Surface
	sam     *sam.Controller
	masks   map[string]image.Image

	combined      *maskservice.CombinedMask
	combinedOrder maskservice.RefineOrder
	baseline      *maskservice.CombinedMask
	preview       image.Image
	previewTint   tint
	epoch         uint64

	state       State
	generating  bool
	previewing  bool
	applying    bool
	closed      bool
	order       maskservice.RefineOrder
	active      Kind
	showPreview bool
	styles      Styles

	onChange func()
}

// Option configures a Session.
type Option func(*Session)

// WithStore sets where applied masks are persisted.
func WithStore(st MaskStore) Option { return func(s *Session) { s.store = st } }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithStyles sets the initial overlay styles.
func WithStyles(st Styles) Option { return func(s *Session) { s.styles = st } }

// WithRefineOrder sets the initial combine order.
func WithRefineOrder(o maskservice.RefineOrder) Option { return func(s *Session) { s.order = o } }

// WithShowPreview controls whether combine results are displayed.
func WithShowPreview(show bool) Option { return func(s *Session) { s.showPreview = show } }

// WithChangeListener registers fn to run after any change that needs a
// redraw. fn is called with the session lock held and must not call back
// into the session.
func WithChangeListener(fn func()) Option { return func(s *Session) { s.onChange = fn } }

// New creates a session for img.
func New(img Image, svc MaskService, opts ...Option) *Session {
	if img.Base != nil && (img.Width <= 0 || img.Height <= 0) {
		b := img.Base.Bounds()
		img.Width, img.Height = b.Dx(), b.Dy()
	}
	s := &Session{
		id:          uuid.NewString(),
		img:         img,
		svc:         svc,
		logger:      zap.NewNop(),
		masks:       map[string]image.Image{},
		showPreview: true,
		styles:      StylesFrom(palette.Default()),
	}
	for _, o := range opts {
		o(s)
	}
	s.logger = s.logger.With(zap.String("session", s.id), zap.String("image", img.ID))
	for k := range s.layers {
		s.layers[k] = stroke.NewLayer(img.Width, img.Height)
		s.layers[k].OnChange(s.invalidate)
		s.surface[k] = render.NewSurface(img.Width, img.Height)
	}
	s.sam = sam.New(
		sam.WithLogger(s.logger),
		sam.WithGuard(s.destructive, s.discard),
		sam.WithSelectListener(func(sam.Candidate) { s.invalidate() }),
	)
	return s
}

// ID returns the session's unique tag.
func (s *Session) ID() string { return s.id }

// Image returns the image being edited.
func (s *Session) Image() Image { return s.img }

// invalidate drops the cached combine result. Callers hold the lock.
func (s *Session) invalidate() {
	s.epoch++
	if s.combined != nil {
		s.logger.Debug("combined mask invalidated")
	}
	s.combined = nil
	s.clearPreview()
	if s.state == CandidatesReady || s.state == PreviewReady {
		s.state = Editing
	}
	s.changed()
}

func (s *Session) changed() {
	if s.onChange != nil {
		s.onChange()
	}
}

func (s *Session) destructive() bool {
	return s.layers[Add].HasContent() || s.layers[Remove].HasContent() || s.combined != nil || s.baseline != nil
}

func (s *Session) discard() {
	s.layers[Add].Clear()
	s.layers[Remove].Clear()
	s.baseline = nil
	s.invalidate()
}

// Draw records a brush daub on layer k. It reports whether the layer changed.
func (s *Session) Draw(k Kind, p stroke.Point, radius float64, mode stroke.Mode) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	return s.layers[k].Draw(p, radius, mode)
}

// ClearLayer wipes layer k.
func (s *Session) ClearLayer(k Kind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.layers[k].Clear()
}

// HasContent reports whether layer k has strokes.
func (s *Session) HasContent(k Kind) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.layers[k].HasContent()
}

// Strokes returns copies of layer k's drawn strokes and erased regions.
func (s *Session) Strokes(k Kind) (drawn, erased []stroke.Stroke) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.layers[k].Strokes(), s.layers[k].ErasedRegions()
}

// Rasterize returns layer k as a black/white bitmap of the image size.
func (s *Session) Rasterize(k Kind) *image.RGBA {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.layers[k].RasterizeBlackWhite(s.img.Width, s.img.Height)
}

// Candidates returns the current segmentation candidates.
func (s *Session) Candidates() []sam.Candidate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sam.Candidates()
}

// Selected returns the selected candidate.
func (s *Session) Selected() (sam.Candidate, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sam.Selected()
}

// PendingSelection returns the candidate awaiting confirmation.
func (s *Session) PendingSelection() (sam.Candidate, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sam.Pending()
}

// RequestSelect switches to candidate i unless that would discard edits, in
// which case it returns sam.NeedsConfirmation.
func (s *Session) RequestSelect(i int) sam.Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sam.RequestSelect(s.candidate(i))
}

// ConfirmSelect discards edits and the combined mask and switches to
// candidate i.
func (s *Session) ConfirmSelect(i int) sam.Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sam.ConfirmSelect(s.candidate(i))
}

// CancelSelect abandons a pending switch.
func (s *Session) CancelSelect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sam.CancelSelect()
}

func (s *Session) candidate(i int) sam.Candidate {
	list := s.sam.Candidates()
	if i < 0 || i >= len(list) {
		return sam.Candidate{ID: fmt.Sprintf("#%d", i)}
	}
	return list[i]
}

// CombinedMask returns the cached combine result, or nil.
func (s *Session) CombinedMask() *maskservice.CombinedMask {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.combined
}

// Baseline returns the most recently applied mask, or nil.
func (s *Session) Baseline() *maskservice.CombinedMask {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.baseline
}

// PreviewImage returns the image shown in the preview slot, or nil.
func (s *Session) PreviewImage() image.Image {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.preview
}

// State returns the current protocol state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Busy reports whether a remote operation is in flight.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy()
}

func (s *Session) busy() bool {
	return s.generating || s.previewing || s.applying
}

// Active returns the layer on top of the canvas.
func (s *Session) Active() Kind {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// SetActive puts layer k on top of the canvas.
func (s *Session) SetActive(k Kind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != k {
		s.active = k
		s.changed()
	}
}

// RefineOrder returns the combine order used by Apply.
func (s *Session) RefineOrder() maskservice.RefineOrder {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order
}

// SetRefineOrder changes the combine order used by Apply.
func (s *Session) SetRefineOrder(o maskservice.RefineOrder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = o
}

// ShowPreview reports whether combine results are displayed.
func (s *Session) ShowPreview() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.showPreview
}

// SetShowPreview toggles display of combine results.
func (s *Session) SetShowPreview(show bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.showPreview == show {
		return
	}
	s.showPreview = show
	if show && s.combined != nil {
		s.showCombined(s.combined)
	}
	s.changed()
}

// Styles returns the overlay styles.
func (s *Session) Styles() Styles {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.styles
}

// SetStyles replaces the overlay styles.
func (s *Session) SetStyles(st Styles) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.styles = st
	s.changed()
}

// SetVisible shows or hides layer k without touching its strokes.
func (s *Session) SetVisible(k Kind, visible bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if k == Remove {
		s.styles.Remove.Visible = visible
	} else {
		s.styles.Add.Visible = visible
	}
	s.changed()
}

// Close ends the session. Responses to requests still in flight are dropped.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.layers[Add].Clear()
	s.layers[Remove].Clear()
	s.sam.Reset()
	s.combined = nil
	s.baseline = nil
	s.clearPreview()
	s.masks = map[string]image.Image{}
	s.state = Idle
	s.logger.Debug("session closed")
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

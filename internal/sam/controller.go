// Package sam tracks the segmentation mask candidates produced for an image
// and guards switching between them.
package sam

import (
	"go.uber.org/zap"
)

// Candidate is one segmentation result. The image fields are references
// (URLs or data URLs) as returned by the mask service.
type Candidate struct {
	ID             string `json:"id"`
	BlendedPreview string `json:"blended_preview"`
	MaskBitmap     string `json:"mask"`
	OverlayImage   string `json:"overlay"`
}

// Outcome reports what a selection request did.
type Outcome int

const (
	// Ignored means the request named no known candidate.
	Ignored Outcome = iota
	// Unchanged means the candidate was already selected.
	Unchanged
	// Selected means the selection changed.
	Selected
	// NeedsConfirmation means the selection would discard edits and is parked
	// until ConfirmSelect or CancelSelect.
	NeedsConfirmation
)

func (o Outcome) String() string {
	switch o {
	case Ignored:
		return "ignored"
	case Unchanged:
		return "unchanged"
	case Selected:
		return "selected"
	case NeedsConfirmation:
		return "needs-confirmation"
	}
	return "unknown"
}

// Controller holds the candidates for the current image and the selected one.
type Controller struct {
	candidates []Candidate
	selected   int
	pending    int

	destructive func() bool
	discard     func()
	onSelect    func(Candidate)
	logger      *zap.Logger
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger used for diagnostics.
func WithLogger(l *zap.Logger) Option { return func(c *Controller) { c.logger = l } }

// WithGuard installs the destructive-state check consulted before switching
// candidates, and the discard hook run when a switch is confirmed.
func WithGuard(destructive func() bool, discard func()) Option {
	return func(c *Controller) {
		c.destructive = destructive
		c.discard = discard
	}
}

// WithSelectListener registers fn to run whenever the selection changes.
func WithSelectListener(fn func(Candidate)) Option {
	return func(c *Controller) { c.onSelect = fn }
}

// New creates an empty controller.
func New(opts ...Option) *Controller {
	c := &Controller{selected: -1, pending: -1, logger: zap.NewNop()}
	for _, o := range opts {
		o(c)
	}
	return c
}

// SetCandidates replaces the candidate list and selects the first entry, or
// nothing when list is empty. A parked confirmation is dropped.
func (c *Controller) SetCandidates(list []Candidate) {
	c.candidates = append([]Candidate(nil), list...)
	c.pending = -1
	if len(c.candidates) == 0 {
		c.selected = -1
		return
	}
	c.setSelected(0)
}

// Reset drops all candidates and the selection.
func (c *Controller) Reset() {
	c.candidates = nil
	c.selected = -1
	c.pending = -1
}

// Candidates returns a copy of the candidate list.
func (c *Controller) Candidates() []Candidate {
	return append([]Candidate(nil), c.candidates...)
}

// Selected returns the selected candidate.
func (c *Controller) Selected() (Candidate, bool) {
	if c.selected < 0 {
		return Candidate{}, false
	}
	return c.candidates[c.selected], true
}

// Pending returns the candidate awaiting confirmation.
func (c *Controller) Pending() (Candidate, bool) {
	if c.pending < 0 {
		return Candidate{}, false
	}
	return c.candidates[c.pending], true
}

// Index returns the position of the candidate with id, or -1.
func (c *Controller) Index(id string) int {
	for i, cand := range c.candidates {
		if cand.ID == id {
			return i
		}
	}
	return -1
}

// RequestSelect selects cand immediately when nothing would be lost. When
// edits or a combined result exist it parks cand and returns
// NeedsConfirmation without touching the selection.
func (c *Controller) RequestSelect(cand Candidate) Outcome {
	i, ok := c.lookup(cand, "select")
	if !ok {
		return Ignored
	}
	if i == c.selected {
		c.pending = -1
		return Unchanged
	}
	if c.destructive != nil && c.destructive() {
		c.pending = i
		c.logger.Debug("mask change needs confirmation", zap.String("candidate", cand.ID))
		return NeedsConfirmation
	}
	c.setSelected(i)
	return Selected
}

// ConfirmSelect discards the current edits and selects cand.
func (c *Controller) ConfirmSelect(cand Candidate) Outcome {
	i, ok := c.lookup(cand, "confirm")
	if !ok {
		return Ignored
	}
	c.pending = -1
	if c.discard != nil {
		c.discard()
	}
	if i == c.selected {
		return Unchanged
	}
	c.setSelected(i)
	return Selected
}

// CancelSelect abandons a parked selection.
func (c *Controller) CancelSelect() {
	c.pending = -1
}

func (c *Controller) lookup(cand Candidate, op string) (int, bool) {
	if len(c.candidates) == 0 {
		c.logger.Warn("no selected SAM mask found", zap.String("op", op))
		return -1, false
	}
	i := c.Index(cand.ID)
	if i < 0 {
		c.logger.Warn("unknown SAM mask candidate", zap.String("op", op), zap.String("candidate", cand.ID))
		return -1, false
	}
	return i, true
}

func (c *Controller) setSelected(i int) {
	c.selected = i
	if c.onSelect != nil {
		c.onSelect(c.candidates[i])
	}
}

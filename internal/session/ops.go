package session

import (
	"context"
	"image"

	"go.uber.org/zap"

	"github.com/example/maskstudio/internal/maskservice"
	"github.com/example/maskstudio/internal/render"
	"github.com/example/maskstudio/internal/sam"
)

// Op names a remote session operation.
type Op int

const (
	OpGenerate Op = iota
	OpPreview
	OpApply
)

func (o Op) String() string {
	switch o {
	case OpGenerate:
		return "generate"
	case OpPreview:
		return "preview"
	case OpApply:
		return "apply"
	}
	return "unknown"
}

// Result is the outcome of Generate, Preview or Apply. Failures are carried
// in Err; the operations never panic or return errors separately.
type Result struct {
	Op         Op
	Err        error
	Candidates []sam.Candidate
	Combined   *maskservice.CombinedMask
	// Cached is set when a still-valid combine result was reused.
	Cached bool
	// Local is set when both layers were empty and the SAM mask was used
	// without a combine call.
	Local bool
}

// OK reports whether the operation succeeded.
func (r Result) OK() bool { return r.Err == nil }

func (s *Session) begin() error {
	if s.closed {
		return ErrStale
	}
	if s.busy() {
		return ErrBusy
	}
	return nil
}

// accept decides whether a response issued at epoch may be applied.
func (s *Session) accept(epoch uint64, err error) error {
	if s.closed {
		return ErrStale
	}
	if err != nil {
		return err
	}
	if s.epoch != epoch {
		return ErrStale
	}
	return nil
}

// Generate discards all edits and candidates, then asks the service for new
// candidates for prompt and selects the first one. A failure leaves the
// session with no candidates.
func (s *Session) Generate(ctx context.Context, prompt string) Result {
	res := Result{Op: OpGenerate}
	s.mu.Lock()
	if err := s.begin(); err != nil {
		s.mu.Unlock()
		res.Err = err
		return res
	}
	s.generating = true
	s.layers[Add].Clear()
	s.layers[Remove].Clear()
	s.baseline = nil
	s.sam.Reset()
	s.masks = map[string]image.Image{}
	s.invalidate()
	s.state = Generating
	img := s.img
	s.mu.Unlock()

	cands, err := s.svc.Segment(ctx, maskservice.SegmentRequest{Prompt: prompt, Image: img.URL})
	masks := map[string]image.Image{}
	if err == nil {
		for _, c := range cands {
			m, ferr := s.svc.FetchImage(ctx, c.MaskBitmap)
			if ferr != nil {
				s.logger.Warn("candidate mask unavailable", zap.String("candidate", c.ID), zap.Error(ferr))
				continue
			}
			masks[c.ID] = render.Fit(m, img.Width, img.Height)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.generating = false
	if s.closed {
		res.Err = ErrStale
		return res
	}
	if err != nil {
		s.state = Idle
		s.changed()
		s.logger.Warn("generate failed", zap.Error(err))
		res.Err = err
		return res
	}
	s.masks = masks
	s.sam.SetCandidates(cands)
	s.state = CandidatesReady
	if len(cands) == 0 {
		s.state = Idle
		s.logger.Warn("segmentation returned no candidates", zap.String("prompt", prompt))
	}
	s.changed()
	res.Candidates = cands
	return res
}

// Preview combines the SAM mask with both layers using order. When both
// layers are empty the SAM mask itself is previewed without a service call,
// and an unchanged cached combine result for the same order is reused.
func (s *Session) Preview(ctx context.Context, order maskservice.RefineOrder) Result {
	res := Result{Op: OpPreview}
	s.mu.Lock()
	if err := s.begin(); err != nil {
		s.mu.Unlock()
		res.Err = err
		return res
	}
	s.order = order
	samRef := s.samMaskRef()
	if samRef == "" {
		s.mu.Unlock()
		res.Err = &maskservice.ValidationError{Field: "sam_mask", Reason: "is required: no SAM candidate selected"}
		return res
	}
	if s.layersEmpty() {
		s.setPreview(s.samMaskImage(), tintSam)
		s.state = PreviewReady
		s.changed()
		s.mu.Unlock()
		res.Local = true
		return res
	}
	if s.combined != nil && s.combinedOrder == order {
		if s.showPreview {
			s.showCombined(s.combined)
		}
		s.state = PreviewReady
		s.changed()
		res.Cached = true
		res.Combined = s.combined
		s.mu.Unlock()
		return res
	}
	// Any cached result left here was combined with the other order.
	s.combined = nil
	s.clearPreview()
	req, err := s.combineRequest(samRef, order)
	if err != nil {
		s.mu.Unlock()
		res.Err = err
		return res
	}
	s.previewing = true
	s.state = Previewing
	epoch := s.epoch
	s.mu.Unlock()

	cm, err := s.svc.Combine(ctx, req)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.previewing = false
	if err := s.accept(epoch, err); err != nil {
		if !s.closed && s.state == Previewing {
			s.state = Editing
		}
		s.changed()
		s.logger.Debug("preview dropped", zap.Error(err))
		res.Err = err
		return res
	}
	s.combined = cm
	s.combinedOrder = order
	if s.showPreview {
		s.showCombined(cm)
	}
	s.state = PreviewReady
	s.changed()
	res.Combined = cm
	return res
}

// Apply persists the combined mask through the store, reusing a valid cached
// combine result when there is one. On success both layers are cleared and
// the applied mask becomes the baseline for the next combine. When both
// layers are empty the current baseline or selected SAM mask is persisted
// as is.
func (s *Session) Apply(ctx context.Context) Result {
	res := Result{Op: OpApply}
	s.mu.Lock()
	if err := s.begin(); err != nil {
		s.mu.Unlock()
		res.Err = err
		return res
	}
	if s.store == nil {
		s.mu.Unlock()
		res.Err = ErrNoStore
		return res
	}
	order := s.order
	cm := s.combined
	if cm != nil && s.combinedOrder != order {
		cm = nil
	}
	res.Cached = cm != nil
	samRef := s.samMaskRef()
	if cm == nil && s.layersEmpty() {
		if s.baseline != nil {
			cm = s.baseline
		} else if sel, ok := s.sam.Selected(); ok {
			cm = &maskservice.CombinedMask{MaskRef: sel.MaskBitmap, OverlayRef: sel.OverlayImage, Mask: s.masks[sel.ID]}
		}
		res.Local = cm != nil
	}
	if cm == nil && samRef == "" {
		s.mu.Unlock()
		res.Err = ErrNoMask
		return res
	}
	var req maskservice.CombineRequest
	if cm == nil {
		var err error
		if req, err = s.combineRequest(samRef, order); err != nil {
			s.mu.Unlock()
			res.Err = err
			return res
		}
	}
	s.applying = true
	s.state = Applying
	epoch := s.epoch
	store, imageID := s.store, s.img.ID
	s.mu.Unlock()

	var err error
	if cm == nil {
		cm, err = s.svc.Combine(ctx, req)
		s.mu.Lock()
		err = s.accept(epoch, err)
		s.mu.Unlock()
	}
	if err == nil {
		err = store.SaveCombinedMask(ctx, imageID, cm)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.applying = false
	if s.closed {
		res.Err = ErrStale
		return res
	}
	if err != nil {
		s.state = Editing
		s.changed()
		s.logger.Warn("apply failed", zap.Error(err))
		res.Err = err
		return res
	}
	if s.epoch == epoch {
		s.layers[Add].Clear()
		s.layers[Remove].Clear()
	} else {
		s.logger.Debug("strokes drawn during apply kept")
	}
	s.baseline = cm
	s.invalidate()
	s.state = Editing
	s.logger.Info("mask applied", zap.String("mask", cm.MaskRef))
	res.Combined = cm
	return res
}

func (s *Session) layersEmpty() bool {
	return s.layers[Add].IsEmpty() && s.layers[Remove].IsEmpty()
}

// samMaskRef is the mask the user layers are combined with: the last applied
// mask when there is one, otherwise the selected candidate.
func (s *Session) samMaskRef() string {
	if s.baseline != nil {
		return s.baseline.MaskRef
	}
	if sel, ok := s.sam.Selected(); ok {
		return sel.MaskBitmap
	}
	return ""
}

func (s *Session) samMaskImage() image.Image {
	if s.baseline != nil && s.baseline.Mask != nil {
		return s.baseline.Mask
	}
	if sel, ok := s.sam.Selected(); ok {
		return s.masks[sel.ID]
	}
	return nil
}

func (s *Session) combineRequest(samRef string, order maskservice.RefineOrder) (maskservice.CombineRequest, error) {
	w, h := s.img.Width, s.img.Height
	add, err := render.DataURL(s.layers[Add].RasterizeBlackWhite(w, h))
	if err != nil {
		return maskservice.CombineRequest{}, err
	}
	remove, err := render.DataURL(s.layers[Remove].RasterizeBlackWhite(w, h))
	if err != nil {
		return maskservice.CombineRequest{}, err
	}
	return maskservice.CombineRequest{SamMask: samRef, AddMask: add, RemoveMask: remove, Order: order}, nil
}

// Package editor is the interactive mask editing window. It feeds pointer
// strokes into a session, runs network operations in the background and
// repaints whenever the session changes.
package editor

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/exp/shiny/driver"
	"golang.org/x/exp/shiny/screen"
	"golang.org/x/mobile/event/key"
	"golang.org/x/mobile/event/lifecycle"
	"golang.org/x/mobile/event/mouse"
	"golang.org/x/mobile/event/paint"
	"golang.org/x/mobile/event/size"

	"github.com/example/maskstudio/internal/clipboard"
	"github.com/example/maskstudio/internal/maskservice"
	"github.com/example/maskstudio/internal/notify"
	"github.com/example/maskstudio/internal/palette"
	"github.com/example/maskstudio/internal/render"
	"github.com/example/maskstudio/internal/sam"
	"github.com/example/maskstudio/internal/session"
	"github.com/example/maskstudio/internal/stroke"
)

const (
	minBrush     = 2
	maxBrush     = 400
	brushStep    = 4
	opacityStep  = 0.1
	messageDelay = 3 * time.Second
)

// Editor hosts mask editing sessions in a window.
type Editor struct {
	ws       *session.Workspace
	images   []session.Image
	prompt   string
	output   string
	brush    int
	debounce time.Duration
	pal      *palette.Palette
	notifier *notify.Notifier
	logger   *zap.Logger

	sched *render.Scheduler

	onClose   func()
	closeOnce sync.Once
}

// Option modifies an Editor during creation.
type Option func(*Editor)

// WithPrompt sets the text sent when segmentation is requested.
func WithPrompt(p string) Option { return func(e *Editor) { e.prompt = p } }

// WithOutput sets the path the save key writes the combined mask to.
func WithOutput(path string) Option { return func(e *Editor) { e.output = path } }

// WithBrushSize sets the initial brush diameter in canvas pixels.
func WithBrushSize(n int) Option { return func(e *Editor) { e.brush = n } }

// WithDebounce sets the delay before opacity changes are applied.
func WithDebounce(d time.Duration) Option { return func(e *Editor) { e.debounce = d } }

// WithPalette sets the canvas colours.
func WithPalette(p *palette.Palette) Option {
	return func(e *Editor) {
		if p != nil {
			e.pal = p
		}
	}
}

// WithNotifier sets the desktop notifier.
func WithNotifier(n *notify.Notifier) Option { return func(e *Editor) { e.notifier = n } }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Editor) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithOnClose registers fn to run once when the window goes away.
func WithOnClose(fn func()) Option { return func(e *Editor) { e.onClose = fn } }

// New creates an editor for images. Sessions are opened in ws, one image at
// a time.
func New(ws *session.Workspace, images []session.Image, opts ...Option) *Editor {
	e := &Editor{
		ws:     ws,
		images: images,
		output: "mask.png",
		brush:  20,
		pal:    palette.Default(),
		logger: zap.NewNop(),
		sched:  render.NewScheduler(),
	}
	for _, o := range opts {
		o(e)
	}
	e.brush = clampBrush(e.brush)
	return e
}

func clampBrush(n int) int {
	if n < minBrush {
		return minBrush
	}
	if n > maxBrush {
		return maxBrush
	}
	return n
}

// open starts a session for images[i].
func (e *Editor) open(i int) *session.Session {
	return e.ws.Open(e.images[i], session.WithChangeListener(e.sched.Invalidate))
}

// Run executes the UI loop using shiny's driver.
func (e *Editor) Run() error {
	if len(e.images) == 0 {
		return errors.New("no image to edit")
	}
	driver.Main(e.Main)
	return nil
}

func (e *Editor) notifyClose() {
	e.closeOnce.Do(func() {
		e.ws.Close()
		if e.onClose != nil {
			e.onClose()
		}
	})
}

// opDone carries a finished background operation back to the event loop.
type opDone struct {
	sess *session.Session
	res  session.Result
}

// Main runs the window until it is closed.
func (e *Editor) Main(s screen.Screen) {
	current := 0
	sess := e.open(current)
	img := sess.Image()

	width := img.Width
	height := img.Height + statusHeight + helpHeight
	w, err := s.NewWindow(&screen.NewWindowOptions{Width: width, Height: height, Title: "MaskStudio"})
	if err != nil {
		e.logger.Error("new window", zap.Error(err))
		return
	}
	defer w.Release()
	defer e.notifyClose()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			select {
			case <-e.sched.C():
				w.Send(paint.Event{})
			case <-done:
				return
			}
		}
	}()

	paintCh := make(chan paintState, 1)
	defer close(paintCh)
	go func() {
		for st := range paintCh {
			b, err := s.NewBuffer(image.Point{st.width, st.height})
			if err != nil {
				e.logger.Warn("new buffer", zap.Error(err))
				continue
			}
			compose(b.RGBA(), st)
			w.Upload(image.Point{}, b, b.Bounds())
			w.Publish()
			b.Release()
		}
	}()

	dial := newOpacityDial(render.NewStyleDebouncer(e.debounce))
	mode := stroke.ModeDraw
	var (
		pt           pointer
		message      string
		messageUntil time.Time
	)
	pending := -1
	say := func(format string, args ...any) {
		message = fmt.Sprintf(format, args...)
		messageUntil = time.Now().Add(messageDelay)
		e.logger.Info(message)
		e.sched.Invalidate()
	}
	launch := func(fn func(context.Context, *session.Session) session.Result) {
		target := sess
		go func() {
			w.Send(opDone{sess: target, res: fn(ctx, target)})
		}()
	}

	handle := func(b Binding) bool {
		active := sess.Active()
		switch b.Action {
		case ActionLayerAdd:
			sess.SetActive(session.Add)
		case ActionLayerRemove:
			sess.SetActive(session.Remove)
		case ActionToggleErase:
			if mode == stroke.ModeDraw {
				mode = stroke.ModeErase
			} else {
				mode = stroke.ModeDraw
			}
		case ActionBrushSmaller:
			e.brush = clampBrush(e.brush - brushStep)
		case ActionBrushLarger:
			e.brush = clampBrush(e.brush + brushStep)
		case ActionToggleVisible:
			sess.SetVisible(active, !layerStyle(sess.Styles(), active).Visible)
		case ActionClear:
			sess.ClearLayer(active)
		case ActionSelect:
			switch sess.RequestSelect(b.Index) {
			case sam.NeedsConfirmation:
				pending = b.Index
			case sam.Ignored:
				say("no mask %d", b.Index+1)
			default:
				pending = -1
			}
		case ActionConfirm:
			if pending >= 0 {
				sess.ConfirmSelect(pending)
				pending = -1
			}
		case ActionCancel:
			if pending >= 0 {
				sess.CancelSelect()
				pending = -1
			}
		case ActionGenerate:
			if e.prompt == "" {
				say("no prompt set")
				break
			}
			prompt := e.prompt
			launch(func(ctx context.Context, s *session.Session) session.Result { return s.Generate(ctx, prompt) })
		case ActionPreview:
			order := sess.RefineOrder()
			launch(func(ctx context.Context, s *session.Session) session.Result { return s.Preview(ctx, order) })
		case ActionToggleOrder:
			if sess.RefineOrder() == maskservice.AddThenRemove {
				sess.SetRefineOrder(maskservice.RemoveThenAdd)
			} else {
				sess.SetRefineOrder(maskservice.AddThenRemove)
			}
		case ActionTogglePreview:
			sess.SetShowPreview(!sess.ShowPreview())
		case ActionApply:
			launch(func(ctx context.Context, s *session.Session) session.Result { return s.Apply(ctx) })
		case ActionSave:
			if err := e.save(sess); err != nil {
				say("save: %v", err)
				break
			}
			say("saved %s", e.output)
		case ActionCopy:
			if err := e.copy(sess); err != nil {
				say("copy: %v", err)
				break
			}
			say("copied mask")
		case ActionOpacityDown, ActionOpacityUp:
			delta := opacityStep
			if b.Action == ActionOpacityDown {
				delta = -opacityStep
			}
			dial.step(sess, active, delta)
		case ActionNextImage:
			if len(e.images) > 1 {
				current = (current + 1) % len(e.images)
				sess = e.open(current)
				pending = -1
				pt.stroking = false
				say("opened %s", sess.Image().ID)
			}
		case ActionQuit:
			return false
		}
		e.sched.Invalidate()
		return true
	}

	for {
		switch ev := w.NextEvent().(type) {
		case lifecycle.Event:
			if ev.To == lifecycle.StageDead {
				return
			}
		case size.Event:
			width, height = ev.WidthPx, ev.HeightPx
			e.sched.Invalidate()
		case paint.Event:
			msg := ""
			if time.Now().Before(messageUntil) {
				msg = message
			}
			st := paintState{
				width:       width,
				height:      height,
				frame:       sess.Frame(),
				status:      e.status(sess, mode, pending >= 0, msg),
				brushAt:     pt.hover,
				brushRadius: float64(e.brush) / 2,
				pal:         e.pal,
			}
			select {
			case paintCh <- st:
			default:
				select {
				case <-paintCh:
				default:
				}
				paintCh <- st
			}
		case opDone:
			if ev.sess != sess {
				continue
			}
			e.finished(ev.sess, ev.res, say)
		case mouse.Event:
			img := sess.Image()
			e.pointerEvent(&pt, sess, fitViewport(img.Width, img.Height, width, height), ev, mode)
		case key.Event:
			if !handle(Resolve(ev)) {
				return
			}
		}
	}
}

// finished reports the outcome of a background operation.
func (e *Editor) finished(sess *session.Session, res session.Result, say func(string, ...any)) {
	switch {
	case errors.Is(res.Err, session.ErrStale):
		e.logger.Debug("dropped stale result", zap.Stringer("op", res.Op))
	case errors.Is(res.Err, session.ErrBusy):
		say("%s: busy", res.Op)
	case res.Err != nil:
		say("%s failed: %v", res.Op, res.Err)
	case res.Op == session.OpGenerate:
		say("%d masks", len(res.Candidates))
	case res.Op == session.OpPreview && res.Local:
		say("previewing selected mask")
	case res.Op == session.OpPreview:
		say("preview ready")
	case res.Op == session.OpApply:
		say("applied")
		e.notifier.Applied(sess.Image().ID)
	}
}

func (e *Editor) status(sess *session.Session, mode stroke.Mode, pending bool, msg string) status {
	st := status{
		image:   sess.Image().ID,
		state:   sess.State().String(),
		layer:   sess.Active().String(),
		mode:    mode,
		brush:   e.brush,
		order:   sess.RefineOrder().String(),
		pending: pending,
		message: msg,
	}
	cands := sess.Candidates()
	st.candidates = len(cands)
	if sel, ok := sess.Selected(); ok {
		for i, c := range cands {
			if c.ID == sel.ID {
				st.selected = i
			}
		}
	}
	return st
}

// currentMask is the combined mask if one exists, otherwise the last applied
// one.
func currentMask(sess *session.Session) (image.Image, error) {
	if cm := sess.CombinedMask(); cm != nil && cm.Mask != nil {
		return cm.Mask, nil
	}
	if cm := sess.Baseline(); cm != nil && cm.Mask != nil {
		return cm.Mask, nil
	}
	return nil, session.ErrNoMask
}

func (e *Editor) save(sess *session.Session) error {
	m, err := currentMask(sess)
	if err != nil {
		return err
	}
	data, err := render.EncodePNG(m)
	if err != nil {
		return err
	}
	if err := os.WriteFile(e.output, data, 0o644); err != nil {
		return err
	}
	e.notifier.Saved(e.output)
	return nil
}

func (e *Editor) copy(sess *session.Session) error {
	m, err := currentMask(sess)
	if err != nil {
		return err
	}
	if err := clipboard.WriteImage(m); err != nil {
		return err
	}
	e.notifier.Copied("combined mask")
	return nil
}

func layerStyle(st session.Styles, k session.Kind) render.Style {
	if k == session.Remove {
		return st.Remove
	}
	return st.Add
}

func setLayerStyle(st *session.Styles, k session.Kind, v render.Style) {
	if k == session.Remove {
		st.Remove = v
	} else {
		st.Add = v
	}
}

func withOpacity(st render.Style, delta float64) render.Style {
	st.Opacity += delta
	if st.Opacity < 0 {
		st.Opacity = 0
	}
	if st.Opacity > 1 {
		st.Opacity = 1
	}
	return st
}

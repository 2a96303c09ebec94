package main

import (
	"errors"
	"flag"
	"fmt"
	"image"
	"os"
	"time"

	"github.com/example/maskstudio/internal/maskservice"
	"github.com/example/maskstudio/internal/sam"
	"github.com/example/maskstudio/internal/session"
)

var (
	refineFlagNames = names("image", "image-id", "prompt", "candidate", "order", "brush", "script", "output", "o", "frame", "apply", "design", "version", "timeout")
	refineBoolFlags = names("apply")
)

// refineCmd runs a whole edit headlessly: segment, pick a candidate, replay
// strokes, combine and optionally apply.
type refineCmd struct {
	*root
	fs *flag.FlagSet

	image     string
	imageID   string
	prompt    string
	candidate int
	orderName string
	brush     float64
	script    string
	output    string
	frame     string
	apply     bool
	designID  string
	versionID string
	timeout   time.Duration

	order maskservice.RefineOrder
	ops   []strokeOp
}

func (c *refineCmd) FlagSet() *flag.FlagSet { return c.fs }

func parseRefineCmd(args []string, r *root) (*refineCmd, error) {
	fs := flag.NewFlagSet("refine", flag.ExitOnError)
	c := &refineCmd{root: r, fs: fs}
	fs.Usage = usageFunc(c)
	brush, order := 20.0, "add-then-remove"
	if r != nil && r.config != nil {
		brush, order = r.config.Brush.Size, r.config.Brush.Refine
	}
	fs.StringVar(&c.image, "image", "", "image URL or local file")
	fs.StringVar(&c.imageID, "image-id", "image", "design image id")
	fs.StringVar(&c.prompt, "prompt", "", "description of the object to mask")
	fs.IntVar(&c.candidate, "candidate", 1, "candidate mask to refine, starting at 1")
	fs.StringVar(&c.orderName, "order", order, "combine order (add-then-remove or remove-then-add)")
	fs.Float64Var(&c.brush, "brush", brush, "default brush diameter in pixels")
	fs.StringVar(&c.script, "script", "", "file of stroke operations, - for stdin")
	fs.StringVar(&c.output, "output", "combined.png", "combined mask output path")
	fs.StringVar(&c.output, "o", "combined.png", "combined mask output path (alias)")
	fs.StringVar(&c.frame, "frame", "", "also write the composited editor view to this path")
	fs.BoolVar(&c.apply, "apply", false, "persist the combined mask to the design version")
	fs.StringVar(&c.designID, "design", "", "design id for -apply")
	fs.StringVar(&c.versionID, "version", "", "design version id for -apply")
	fs.DurationVar(&c.timeout, "timeout", 5*time.Minute, "overall time limit")

	flagArgs, positionals, err := splitArgs(args, refineFlagNames, refineBoolFlags)
	if err != nil {
		return nil, err
	}
	if err := fs.Parse(flagArgs); err != nil {
		return nil, err
	}
	if c.image == "" || c.prompt == "" {
		return nil, &UsageError{of: c}
	}
	if c.candidate < 1 {
		return nil, fmt.Errorf("candidate must be 1 or more")
	}
	if c.brush <= 0 {
		return nil, fmt.Errorf("brush must be positive")
	}
	if c.apply && (c.designID == "" || c.versionID == "") {
		return nil, errors.New("-apply requires -design and -version")
	}
	if c.order, err = maskservice.ParseRefineOrder(c.orderName); err != nil {
		return nil, err
	}
	if c.ops, err = scriptOps(c.script, positionals, c.brush/2); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *refineCmd) Run() error {
	client, err := c.maskClient()
	if err != nil {
		return err
	}
	var store session.MaskStore
	if c.apply {
		sink, err := c.designSink(c.designID, c.versionID)
		if err != nil {
			return err
		}
		store = sink
	}
	ctx, cancel := commandContext(c.timeout)
	defer cancel()

	ref, base, err := imageRef(c.image)
	if err != nil {
		return err
	}
	if base == nil {
		if base, err = client.FetchImage(ctx, ref); err != nil {
			return fmt.Errorf("fetch image: %w", err)
		}
	}

	opts := []session.Option{
		session.WithLogger(c.logger.Named("session")),
		session.WithStyles(c.styles()),
		session.WithRefineOrder(c.order),
	}
	if store != nil {
		opts = append(opts, session.WithStore(store))
	}
	sess := session.New(session.Image{ID: c.imageID, URL: ref, Base: base}, client, opts...)
	defer sess.Close()

	res := sess.Generate(ctx, c.prompt)
	if !res.OK() {
		return fmt.Errorf("segment: %w", res.Err)
	}
	fmt.Fprintf(os.Stderr, "%d candidates\n", len(res.Candidates))
	if c.candidate > 1 {
		if out := sess.RequestSelect(c.candidate - 1); out == sam.Ignored {
			return fmt.Errorf("candidate %d not available, service returned %d", c.candidate, len(res.Candidates))
		}
	}

	for _, op := range c.ops {
		sess.Draw(op.layer, op.at, op.radius, op.mode)
	}

	res = sess.Preview(ctx, c.order)
	if !res.OK() {
		return fmt.Errorf("preview: %w", res.Err)
	}
	mask, ref := previewMask(sess, res)
	if ref != "" {
		fmt.Println(ref)
	}
	if c.frame != "" {
		if err := writePNG(c.frame, sess.Frame()); err != nil {
			return err
		}
	}

	if c.apply {
		res = sess.Apply(ctx)
		if !res.OK() {
			return fmt.Errorf("apply: %w", res.Err)
		}
		fmt.Fprintf(os.Stderr, "applied mask to %s\n", c.imageID)
		c.notifier.Applied(c.imageID)
	}

	if mask == nil {
		return fmt.Errorf("combined mask image unavailable")
	}
	if err := writePNG(c.output, mask); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "saved %s\n", c.output)
	c.notifier.Saved(c.output)
	return nil
}

// previewMask returns the mask a preview produced and its reference. A local
// preview is the selected candidate itself.
func previewMask(sess *session.Session, res session.Result) (image.Image, string) {
	if res.Combined != nil {
		return res.Combined.Mask, res.Combined.MaskRef
	}
	sel, _ := sess.Selected()
	return sess.PreviewImage(), sel.MaskBitmap
}

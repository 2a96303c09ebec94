package main

import (
	"flag"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/example/maskstudio/internal/editor"
	"github.com/example/maskstudio/internal/session"
)

// editCmd opens the interactive editor on one or more local images.
type editCmd struct {
	*root
	fs *flag.FlagSet

	url       string
	imageID   string
	prompt    string
	output    string
	brush     float64
	designID  string
	versionID string

	files []string
}

func (e *editCmd) FlagSet() *flag.FlagSet { return e.fs }

func parseEditCmd(args []string, r *root) (*editCmd, error) {
	fs := flag.NewFlagSet("edit", flag.ExitOnError)
	e := &editCmd{root: r, fs: fs}
	fs.Usage = usageFunc(e)
	brush := 20.0
	if r != nil && r.config != nil {
		brush = r.config.Brush.Size
	}
	fs.StringVar(&e.url, "url", "", "URL the mask service loads the image from (single image only)")
	fs.StringVar(&e.imageID, "image-id", "", "design image id (single image only)")
	fs.StringVar(&e.prompt, "prompt", "", "description of the object to mask, used by the G key")
	fs.StringVar(&e.output, "output", "mask.png", "where the S key saves the combined mask")
	fs.Float64Var(&e.brush, "brush", brush, "brush diameter in pixels")
	fs.StringVar(&e.designID, "design", "", "design id the Enter key applies masks to")
	fs.StringVar(&e.versionID, "version", "", "design version id the Enter key applies masks to")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	e.files = fs.Args()
	if len(e.files) == 0 {
		return nil, &UsageError{of: e}
	}
	if len(e.files) > 1 && (e.url != "" || e.imageID != "") {
		return nil, fmt.Errorf("-url and -image-id apply to a single image")
	}
	return e, nil
}

func (e *editCmd) images() ([]session.Image, error) {
	out := make([]session.Image, 0, len(e.files))
	for _, path := range e.files {
		ref, img, err := imageRef(path)
		if err != nil {
			return nil, err
		}
		if img == nil {
			return nil, fmt.Errorf("%s: the editor needs a local image file", path)
		}
		id := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		if e.imageID != "" {
			id = e.imageID
		}
		if e.url != "" {
			ref = e.url
		}
		b := img.Bounds()
		out = append(out, session.Image{ID: id, URL: ref, Width: b.Dx(), Height: b.Dy(), Base: img})
	}
	return out, nil
}

func (e *editCmd) Run() error {
	images, err := e.images()
	if err != nil {
		return err
	}
	client, err := e.maskClient()
	if err != nil {
		return err
	}
	opts := []session.Option{
		session.WithLogger(e.logger.Named("session")),
		session.WithStyles(e.styles()),
		session.WithRefineOrder(e.refineOrder()),
		session.WithShowPreview(e.config.Brush.ShowPreview),
	}
	sink, err := e.designSink(e.designID, e.versionID)
	if err != nil {
		return err
	}
	if sink != nil {
		opts = append(opts, session.WithStore(sink))
	}
	ws := session.NewWorkspace(client, opts...)
	ed := editor.New(ws, images,
		editor.WithPrompt(e.prompt),
		editor.WithOutput(e.output),
		editor.WithBrushSize(int(e.brush)),
		editor.WithDebounce(e.config.Brush.Debounce),
		editor.WithPalette(e.currentPalette()),
		editor.WithNotifier(e.notifier),
		editor.WithLogger(e.logger.Named("editor")),
	)
	return ed.Run()
}

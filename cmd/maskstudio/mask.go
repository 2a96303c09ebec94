package main

import (
	"flag"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/example/maskstudio/internal/clipboard"
	"github.com/example/maskstudio/internal/palette"
	"github.com/example/maskstudio/internal/render"
	"github.com/example/maskstudio/internal/session"
	"github.com/example/maskstudio/internal/stroke"
)

var (
	maskFlagNames = names("size", "base", "brush", "layer", "style", "output", "o", "script", "to-clipboard", "to-clip")
	maskBoolFlags = names("style", "to-clipboard", "to-clip")
)

// maskCmd replays stroke operations into a layer offline and writes the
// result as a PNG.
type maskCmd struct {
	*root
	fs *flag.FlagSet

	size        string
	basePath    string
	brush       float64
	layerName   string
	styled      bool
	output      string
	script      string
	toClipboard bool

	width, height int
	layer         session.Kind
	base          image.Image
	ops           []strokeOp
}

func (m *maskCmd) FlagSet() *flag.FlagSet { return m.fs }

func parseMaskCmd(args []string, r *root) (*maskCmd, error) {
	fs := flag.NewFlagSet("mask", flag.ExitOnError)
	m := &maskCmd{root: r, fs: fs}
	fs.Usage = usageFunc(m)
	brush := 20.0
	if r != nil && r.config != nil {
		brush = r.config.Brush.Size
	}
	fs.StringVar(&m.size, "size", "", "canvas size as WIDTHxHEIGHT (defaults to the -base image size)")
	fs.StringVar(&m.basePath, "base", "", "image to size the canvas from and to draw a styled mask over")
	fs.Float64Var(&m.brush, "brush", brush, "default brush diameter in pixels")
	fs.StringVar(&m.layerName, "layer", "add", "layer to render (add or remove)")
	fs.BoolVar(&m.styled, "style", false, "render the layer in its palette colour instead of black and white")
	fs.StringVar(&m.output, "output", "mask.png", "output file path")
	fs.StringVar(&m.output, "o", "mask.png", "output file path (alias)")
	fs.StringVar(&m.script, "script", "", "file of stroke operations, - for stdin")
	fs.BoolVar(&m.toClipboard, "to-clipboard", false, "copy the result to the clipboard")
	fs.BoolVar(&m.toClipboard, "to-clip", false, "copy the result to the clipboard (alias)")

	flagArgs, positionals, err := splitArgs(args, maskFlagNames, maskBoolFlags)
	if err != nil {
		return nil, err
	}
	if err := fs.Parse(flagArgs); err != nil {
		return nil, err
	}
	if len(positionals) == 0 && m.script == "" {
		return nil, &UsageError{of: m}
	}
	if m.brush <= 0 {
		return nil, fmt.Errorf("brush must be positive")
	}
	if m.layer, err = session.ParseKind(m.layerName); err != nil {
		return nil, err
	}
	if m.ops, err = scriptOps(m.script, positionals, m.brush/2); err != nil {
		return nil, err
	}
	if m.basePath != "" {
		if m.base, err = loadImage(m.basePath); err != nil {
			return nil, err
		}
	}
	switch {
	case m.size != "":
		if m.width, m.height, err = parseSize(m.size); err != nil {
			return nil, err
		}
	case m.base != nil:
		b := m.base.Bounds()
		m.width, m.height = b.Dx(), b.Dy()
	default:
		return nil, fmt.Errorf("-size or -base is required")
	}
	return m, nil
}

func (m *maskCmd) Run() error {
	layer := stroke.NewLayer(m.width, m.height)
	for _, op := range m.ops {
		if op.layer == m.layer {
			layer.Draw(op.at, op.radius, op.mode)
		}
	}
	img := m.render(layer)
	if err := writePNG(m.output, img); err != nil {
		return err
	}
	saved := m.output
	if abs, err := filepath.Abs(m.output); err == nil {
		saved = abs
	}
	fmt.Fprintf(os.Stderr, "saved %s\n", saved)
	if m.root != nil && m.notifier != nil {
		m.notifier.Saved(saved)
	}
	if m.toClipboard {
		if err := clipboard.WriteImage(img); err != nil {
			return fmt.Errorf("copy PNG to clipboard: %w", err)
		}
		fmt.Fprintf(os.Stderr, "copied %s to clipboard\n", filepath.Base(m.output))
		if m.root != nil && m.notifier != nil {
			m.notifier.Copied(filepath.Base(m.output))
		}
	}
	return nil
}

func (m *maskCmd) render(layer *stroke.Layer) image.Image {
	if !m.styled {
		return layer.RasterizeBlackWhite(m.width, m.height)
	}
	styles := session.StylesFrom(palette.Default())
	if m.root != nil {
		styles = m.styles()
	}
	st := styles.Add
	if m.layer == session.Remove {
		st = styles.Remove
	}
	overlay := render.NewSurface(m.width, m.height).Render(layer, st)
	if m.base == nil {
		return overlay
	}
	return render.Compose(render.Fit(m.base, m.width, m.height), overlay)
}

func loadImage(path string) (image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	img, err := render.DecodeImage(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

func writePNG(path string, img image.Image) error {
	data, err := render.EncodePNG(img)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}

package main

import (
	"flag"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/example/maskstudio/internal/maskservice"
	"github.com/example/maskstudio/internal/render"
)

// generateCmd queues an image generation task and waits for its results.
type generateCmd struct {
	*root
	fs *flag.FlagSet

	prompt       string
	count        int
	palette      string
	basePath     string
	next         bool
	initImage    string
	combinedMask string
	styleRef     string
	outputDir    string
	timeout      time.Duration
}

func (g *generateCmd) FlagSet() *flag.FlagSet { return g.fs }

func parseGenerateCmd(args []string, r *root) (*generateCmd, error) {
	fs := flag.NewFlagSet("generate", flag.ExitOnError)
	g := &generateCmd{root: r, fs: fs}
	fs.Usage = usageFunc(g)
	fs.StringVar(&g.prompt, "prompt", "", "text prompt")
	fs.IntVar(&g.count, "count", 1, "number of images (1-4)")
	fs.StringVar(&g.palette, "colors", "", "comma separated hex colour palette")
	fs.StringVar(&g.basePath, "base", "", "base image file for a first generation")
	fs.BoolVar(&g.next, "next", false, "refine a previous generation instead of starting a new one")
	fs.StringVar(&g.initImage, "init", "", "previous result URL for -next")
	fs.StringVar(&g.combinedMask, "mask", "", "combined mask URL limiting the edit for -next")
	fs.StringVar(&g.styleRef, "style-ref", "", "style reference image file")
	fs.StringVar(&g.outputDir, "output-dir", "", "download the results into this directory")
	fs.DurationVar(&g.timeout, "timeout", 15*time.Minute, "overall time limit")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if g.prompt == "" && fs.NArg() > 0 {
		g.prompt = strings.Join(fs.Args(), " ")
	}
	if strings.TrimSpace(g.prompt) == "" {
		return nil, &UsageError{of: g}
	}
	return g, nil
}

func (g *generateCmd) request() (maskservice.GenerateRequest, error) {
	req := maskservice.GenerateRequest{
		Prompt:       g.prompt,
		Count:        g.count,
		Next:         g.next,
		InitImage:    g.initImage,
		CombinedMask: g.combinedMask,
	}
	for _, c := range strings.Split(g.palette, ",") {
		if c = strings.TrimSpace(c); c != "" {
			req.Palette = append(req.Palette, c)
		}
	}
	var err error
	if g.basePath != "" {
		if req.BaseImage, err = os.ReadFile(g.basePath); err != nil {
			return req, err
		}
	}
	if g.styleRef != "" {
		if req.StyleReference, err = os.ReadFile(g.styleRef); err != nil {
			return req, err
		}
	}
	return req, nil
}

func (g *generateCmd) Run() error {
	req, err := g.request()
	if err != nil {
		return err
	}
	client, err := g.maskClient()
	if err != nil {
		return err
	}
	ctx, cancel := commandContext(g.timeout)
	defer cancel()

	urls, err := client.GenerateImage(ctx, req, printProgress)
	if err != nil {
		return fmt.Errorf("generate: %w", err)
	}
	for _, u := range urls {
		fmt.Println(u)
	}

	var first image.Image
	if g.outputDir != "" {
		for i, u := range urls {
			img, err := client.FetchImage(ctx, u)
			if err != nil {
				return fmt.Errorf("download %s: %w", u, err)
			}
			path := filepath.Join(g.outputDir, fmt.Sprintf("generated-%d.png", i+1))
			if err := writePNG(path, img); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "saved %s\n", path)
			if first == nil {
				first = img
			}
		}
	} else if g.generateAlert && len(urls) > 0 {
		if img, err := client.FetchImage(ctx, urls[0]); err == nil {
			first = img
		}
	}
	if first != nil {
		first = thumbnail(first)
	}
	g.notifier.Generated(fmt.Sprintf("%d image(s)", len(urls)), first)
	return nil
}

func printProgress(p maskservice.Progress) {
	switch p.Status {
	case maskservice.TaskPending:
		fmt.Fprintf(os.Stderr, "queued, position %d\n", p.Position)
	case maskservice.TaskRunning:
		line := fmt.Sprintf("generating %3.0f%%", p.Fraction*100)
		if p.ETA > 0 {
			line += fmt.Sprintf(", about %s left", time.Duration(p.ETA*float64(time.Second)).Round(time.Second))
		}
		fmt.Fprintln(os.Stderr, line)
	}
}

// thumbnail keeps notification icons small.
func thumbnail(img image.Image) image.Image {
	const limit = 256
	b := img.Bounds()
	if b.Dx() <= limit && b.Dy() <= limit {
		return img
	}
	w, h := limit, b.Dy()*limit/b.Dx()
	if b.Dy() > b.Dx() {
		w, h = b.Dx()*limit/b.Dy(), limit
	}
	return render.Fit(img, w, h)
}

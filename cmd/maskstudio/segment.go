package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"image"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/example/maskstudio/internal/maskservice"
	"github.com/example/maskstudio/internal/render"
)

// segmentCmd asks the mask service for candidate masks and prints them.
type segmentCmd struct {
	*root
	fs *flag.FlagSet

	image     string
	prompt    string
	imageID   string
	designID  string
	versionID string
	timeout   time.Duration
}

func (s *segmentCmd) FlagSet() *flag.FlagSet { return s.fs }

func parseSegmentCmd(args []string, r *root) (*segmentCmd, error) {
	fs := flag.NewFlagSet("segment", flag.ExitOnError)
	s := &segmentCmd{root: r, fs: fs}
	fs.Usage = usageFunc(s)
	fs.StringVar(&s.image, "image", "", "image URL or local file")
	fs.StringVar(&s.prompt, "prompt", "", "description of the object to mask")
	fs.StringVar(&s.imageID, "image-id", "", "design image id the candidates are stored on")
	fs.StringVar(&s.designID, "design", "", "design id to store the candidates on")
	fs.StringVar(&s.versionID, "version", "", "design version id to store the candidates on")
	fs.DurationVar(&s.timeout, "timeout", 2*time.Minute, "overall time limit")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if s.prompt == "" && fs.NArg() > 0 {
		s.prompt = strings.Join(fs.Args(), " ")
	}
	if s.image == "" || strings.TrimSpace(s.prompt) == "" {
		return nil, &UsageError{of: s}
	}
	if (s.designID != "" || s.versionID != "") && s.imageID == "" {
		return nil, errors.New("-image-id is required to store candidates")
	}
	return s, nil
}

func (s *segmentCmd) Run() error {
	client, err := s.maskClient()
	if err != nil {
		return err
	}
	sink, err := s.designSink(s.designID, s.versionID)
	if err != nil {
		return err
	}
	ref, _, err := imageRef(s.image)
	if err != nil {
		return err
	}
	ctx, cancel := commandContext(s.timeout)
	defer cancel()

	cands, err := client.Segment(ctx, maskservice.SegmentRequest{Prompt: s.prompt, Image: ref})
	if err != nil {
		return fmt.Errorf("segment: %w", err)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(cands); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "%d candidates\n", len(cands))
	if sink != nil {
		if err := sink.SaveCandidates(ctx, s.imageID, cands); err != nil {
			return fmt.Errorf("store candidates: %w", err)
		}
		fmt.Fprintf(os.Stderr, "stored candidates on %s\n", s.imageID)
	}
	return nil
}

// imageRef returns a reference the mask service accepts for s: URLs pass
// through and local files are inlined as PNG data URLs. The decoded image is
// returned for local files.
func imageRef(s string) (string, image.Image, error) {
	if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") || render.IsDataURL(s) {
		return s, nil, nil
	}
	img, err := loadImage(s)
	if err != nil {
		return "", nil, err
	}
	ref, err := render.DataURL(img)
	if err != nil {
		return "", nil, err
	}
	return ref, img, nil
}

// commandContext is cancelled on interrupt or after timeout.
func commandContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	if timeout <= 0 {
		return ctx, stop
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, func() {
		cancel()
		stop()
	}
}

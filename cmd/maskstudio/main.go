package main

import (
	"errors"
	"flag"
	"fmt"
	"image/color"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/example/maskstudio/internal/config"
	"github.com/example/maskstudio/internal/designapi"
	"github.com/example/maskstudio/internal/logging"
	"github.com/example/maskstudio/internal/maskservice"
	"github.com/example/maskstudio/internal/notify"
	"github.com/example/maskstudio/internal/palette"
	"github.com/example/maskstudio/internal/render"
	"github.com/example/maskstudio/internal/session"
)

var (
	version            = "dev"
	commit             = ""
	date               = ""
	configPathOverride = ""
)

type runnable interface{ Run() error }

type root struct {
	fs            *flag.FlagSet
	program       string
	notifier      *notify.Notifier
	config        *config.Config
	logger        *zap.Logger
	generateAlert bool
	saveAlerts    bool
	copyAlerts    bool
	applyAlerts   bool
	paletteName   string
	serviceURL    string
	logLevel      string
	activePalette *palette.Palette
}

func (r *root) Program() string {
	return r.program
}

func (r *root) subcommand(name string) *root {
	cp := *r
	cp.fs = nil
	cp.program = strings.TrimSpace(strings.Join([]string{r.program, name}, " "))
	return &cp
}

func (r *root) FlagSet() *flag.FlagSet {
	return r.fs
}

func newRoot() *root {
	loader := config.NewLoader(version, configPathOverride)
	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to load config: %v\n", err)
		cfg = config.New()
	}

	r := &root{
		fs:      flag.NewFlagSet("maskstudio", flag.ExitOnError),
		program: "maskstudio",
		config:  cfg,
		logger:  zap.NewNop(),
	}
	r.fs.BoolVar(&r.generateAlert, "notify-generate", cfg.Notify.Generated, "show a desktop notification when image generation finishes")
	r.fs.BoolVar(&r.saveAlerts, "notify-save", cfg.Notify.Saved, "show a desktop notification after saving a mask")
	r.fs.BoolVar(&r.copyAlerts, "notify-copy", cfg.Notify.Copied, "show a desktop notification after copying to the clipboard")
	r.fs.BoolVar(&r.applyAlerts, "notify-apply", cfg.Notify.Applied, "show a desktop notification after applying a mask to a design")
	// Precedence: CLI > Env > Config > Default
	r.fs.StringVar(&r.paletteName, "palette", "", "layer colour palette (default, contrast or a configured name)")
	r.fs.StringVar(&r.serviceURL, "service", "", "mask service base URL")
	r.fs.StringVar(&r.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	r.fs.Usage = usageFunc(r)
	return r
}

func (r *root) Run(args []string) error {
	if err := r.fs.Parse(args); err != nil {
		return err
	}
	if r.fs.NArg() < 1 {
		return &UsageError{of: r}
	}
	if r.serviceURL != "" {
		r.config.Service.BaseURL = r.serviceURL
	}
	if r.logLevel != "" {
		r.config.Log.Level = r.logLevel
	}
	logger, err := logging.New(logging.Options{Mode: r.config.Log.Mode, Level: r.config.Log.Level, File: r.config.Log.File})
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	r.logger = logger

	r.notifier = notify.New(notify.LoadPreferences(), logger.Named("notify"))
	r.notifier.Enable(notify.EventGenerated, r.generateAlert)
	r.notifier.Enable(notify.EventSaved, r.saveAlerts)
	r.notifier.Enable(notify.EventCopied, r.copyAlerts)
	r.notifier.Enable(notify.EventApplied, r.applyAlerts)

	r.activePalette = r.loadPalette()

	cmdName := r.fs.Arg(0)
	subArgs := r.fs.Args()[1:]

	var cmd runnable
	switch cmdName {
	case "mask":
		cmd, err = parseMaskCmd(subArgs, r.subcommand("mask"))
	case "segment":
		cmd, err = parseSegmentCmd(subArgs, r.subcommand("segment"))
	case "refine":
		cmd, err = parseRefineCmd(subArgs, r.subcommand("refine"))
	case "generate":
		cmd, err = parseGenerateCmd(subArgs, r.subcommand("generate"))
	case "edit":
		cmd, err = parseEditCmd(subArgs, r.subcommand("edit"))
	case "config":
		cmd, err = parseConfigCmd(subArgs, r.subcommand("config"))
	case "version":
		cmd = &versionCmd{r: r}
	default:
		err = &UsageError{of: r}
	}
	if err != nil {
		return err
	}
	return cmd.Run()
}

// loadPalette resolves the palette from the flag, MASKSTUDIO_PALETTE or the
// config file, in that order.
func (r *root) loadPalette() *palette.Palette {
	name := r.paletteName
	if name == "" {
		name = os.Getenv("MASKSTUDIO_PALETTE")
	}
	if name == "" {
		name = r.config.Palette
	}
	if p, ok := r.config.Palettes[name]; ok {
		return p
	}
	p, err := palette.NewLoader().Load(name)
	if err != nil {
		if name != "" && name != "default" {
			fmt.Fprintf(os.Stderr, "warning: failed to load palette '%s': %v. using default.\n", name, err)
		}
		return palette.Default()
	}
	return p
}

func (r *root) currentPalette() *palette.Palette {
	if r.activePalette == nil {
		return palette.Default()
	}
	return r.activePalette
}

// styles builds the overlay styles from the palette and the [layer.*]
// overrides.
func (r *root) styles() session.Styles {
	st := session.StylesFrom(r.currentPalette())
	apply := func(name string, s *render.Style) {
		l, ok := r.config.Layer(name)
		if !ok {
			return
		}
		if l.Color != (color.RGBA{}) {
			s.Color = l.Color
		}
		if l.Opacity >= 0 {
			s.Opacity = l.Opacity
		}
	}
	apply("add", &st.Add)
	apply("remove", &st.Remove)
	apply("sam", &st.Sam)
	apply("preview", &st.Preview)
	return st
}

func (r *root) maskClient() (*maskservice.Client, error) {
	svc := r.config.Service
	return maskservice.New(svc.BaseURL,
		maskservice.WithTimeout(svc.Timeout),
		maskservice.WithPolling(svc.PollInterval, svc.PollAttempts, svc.ResultAttempts),
		maskservice.WithAssetTTL(svc.AssetTTL),
		maskservice.WithLogger(r.logger.Named("maskservice")),
	)
}

// designSink returns nil when no design version was named.
func (r *root) designSink(designID, versionID string) (*designapi.Sink, error) {
	if designID == "" && versionID == "" {
		return nil, nil
	}
	if designID == "" || versionID == "" {
		return nil, errors.New("both -design and -version are required to persist masks")
	}
	api := r.config.DesignAPI
	if api.BaseURL == "" {
		return nil, fmt.Errorf("design api url is not configured; set [design_api] base_url or %s", config.EnvDesignAPIURL)
	}
	c, err := designapi.New(api.BaseURL, api.Token, designapi.WithLogger(r.logger.Named("designapi")))
	if err != nil {
		return nil, err
	}
	return &designapi.Sink{Client: c, Target: designapi.Target{DesignID: designID, VersionID: versionID}}, nil
}

func (r *root) refineOrder() maskservice.RefineOrder {
	o, err := maskservice.ParseRefineOrder(r.config.Brush.Refine)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v; using %s\n", err, o)
	}
	return o
}

func main() {
	r := newRoot()
	if err := r.Run(os.Args[1:]); err != nil {
		var uerr *UsageError
		if errors.As(err, &uerr) {
			fmt.Fprintln(os.Stderr, uerr.Error())
		} else {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
}

package config

import (
	"fmt"
	"image/color"
	"sort"
	"strings"
	"time"

	"github.com/example/maskstudio/internal/palette"
)

// Service holds mask service settings.
type Service struct {
	BaseURL        string
	Timeout        time.Duration
	PollInterval   time.Duration
	PollAttempts   int
	ResultAttempts int
	AssetTTL       time.Duration
}

// DesignAPI holds the design-version persistence API settings.
type DesignAPI struct {
	BaseURL string
	Token   string
}

// Brush holds editing defaults.
type Brush struct {
	Size        float64
	Refine      string
	ShowPreview bool
	Debounce    time.Duration
}

// Log holds logger settings.
type Log struct {
	Mode  string
	Level string
	File  string
}

// Notify holds notification settings.
type Notify struct {
	Generated bool
	Saved     bool
	Copied    bool
	Applied   bool
}

// Layer overrides the paint of one overlay. A zero Color keeps the palette
// colour; a negative Opacity keeps the default.
type Layer struct {
	Color   color.RGBA
	Opacity float64
}

// Layer section names.
var LayerNames = []string{"add", "remove", "sam", "preview"}

// Config holds the application configuration.
type Config struct {
	Palette   string
	SaveDir   string
	Service   Service
	DesignAPI DesignAPI
	Brush     Brush
	Log       Log
	Notify    Notify
	Layers    map[string]*Layer
	Palettes  map[string]*palette.Palette
}

// New creates a new Config with defaults.
func New() *Config {
	return &Config{
		Service: Service{
			BaseURL:        "http://127.0.0.1:5000",
			Timeout:        2 * time.Minute,
			PollInterval:   time.Second,
			PollAttempts:   300,
			ResultAttempts: 10,
			AssetTTL:       10 * time.Minute,
		},
		Brush: Brush{
			Size:        20,
			Refine:      "add-then-remove",
			ShowPreview: true,
			Debounce:    100 * time.Millisecond,
		},
		Log: Log{
			Mode:  "dev",
			Level: "info",
		},
		Layers:   make(map[string]*Layer),
		Palettes: make(map[string]*palette.Palette),
	}
}

// Layer returns the override for name, if configured.
func (c *Config) Layer(name string) (Layer, bool) {
	l, ok := c.Layers[strings.ToLower(name)]
	if !ok || l == nil {
		return Layer{Opacity: -1}, false
	}
	return *l, true
}

// Redacted returns a copy with secrets masked, suitable for printing.
func (c *Config) Redacted() *Config {
	cp := *c
	if cp.DesignAPI.Token != "" {
		cp.DesignAPI.Token = "********"
	}
	return &cp
}

// String implements fmt.Stringer and returns the configuration in RC format.
func (c *Config) String() string {
	var sb strings.Builder

	// Root section
	if c.Palette != "" {
		fmt.Fprintf(&sb, "palette = %s\n", c.Palette)
	}
	if c.SaveDir != "" {
		fmt.Fprintf(&sb, "save_dir = %s\n", c.SaveDir)
	}
	sb.WriteString("\n")

	sb.WriteString("[service]\n")
	fmt.Fprintf(&sb, "base_url = %s\n", c.Service.BaseURL)
	fmt.Fprintf(&sb, "timeout = %s\n", c.Service.Timeout)
	fmt.Fprintf(&sb, "poll_interval = %s\n", c.Service.PollInterval)
	fmt.Fprintf(&sb, "poll_attempts = %d\n", c.Service.PollAttempts)
	fmt.Fprintf(&sb, "result_attempts = %d\n", c.Service.ResultAttempts)
	fmt.Fprintf(&sb, "asset_ttl = %s\n", c.Service.AssetTTL)
	sb.WriteString("\n")

	if c.DesignAPI.BaseURL != "" || c.DesignAPI.Token != "" {
		sb.WriteString("[design_api]\n")
		fmt.Fprintf(&sb, "base_url = %s\n", c.DesignAPI.BaseURL)
		if c.DesignAPI.Token != "" {
			fmt.Fprintf(&sb, "token = %s\n", c.DesignAPI.Token)
		}
		sb.WriteString("\n")
	}

	sb.WriteString("[brush]\n")
	fmt.Fprintf(&sb, "size = %g\n", c.Brush.Size)
	fmt.Fprintf(&sb, "refine = %s\n", c.Brush.Refine)
	fmt.Fprintf(&sb, "show_preview = %v\n", c.Brush.ShowPreview)
	fmt.Fprintf(&sb, "debounce = %s\n", c.Brush.Debounce)
	sb.WriteString("\n")

	sb.WriteString("[log]\n")
	fmt.Fprintf(&sb, "mode = %s\n", c.Log.Mode)
	fmt.Fprintf(&sb, "level = %s\n", c.Log.Level)
	if c.Log.File != "" {
		fmt.Fprintf(&sb, "file = %s\n", c.Log.File)
	}
	sb.WriteString("\n")

	sb.WriteString("[notify]\n")
	fmt.Fprintf(&sb, "generated = %v\n", c.Notify.Generated)
	fmt.Fprintf(&sb, "saved = %v\n", c.Notify.Saved)
	fmt.Fprintf(&sb, "copied = %v\n", c.Notify.Copied)
	fmt.Fprintf(&sb, "applied = %v\n", c.Notify.Applied)
	sb.WriteString("\n")

	for _, name := range LayerNames {
		l, ok := c.Layers[name]
		if !ok || l == nil {
			continue
		}
		fmt.Fprintf(&sb, "[layer.%s]\n", name)
		if l.Color != (color.RGBA{}) {
			fmt.Fprintf(&sb, "color = %s\n", palette.Hex(l.Color))
		}
		if l.Opacity >= 0 {
			fmt.Fprintf(&sb, "opacity = %g\n", l.Opacity)
		}
		sb.WriteString("\n")
	}

	// Sort keys for deterministic output
	var names []string
	for name := range c.Palettes {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		p := c.Palettes[name]
		fmt.Fprintf(&sb, "[palette.%s]\n", name)
		fmt.Fprintf(&sb, "Name: %s\n", p.Name)
		fmt.Fprintf(&sb, "Add: %s\n", palette.Hex(p.Add))
		fmt.Fprintf(&sb, "Remove: %s\n", palette.Hex(p.Remove))
		fmt.Fprintf(&sb, "Sam: %s\n", palette.Hex(p.Sam))
		fmt.Fprintf(&sb, "Preview: %s\n", palette.Hex(p.Preview))
		fmt.Fprintf(&sb, "Background: %s\n", palette.Hex(p.Background))
		fmt.Fprintf(&sb, "Text: %s\n", palette.Hex(p.Text))
		fmt.Fprintf(&sb, "CheckerLight: %s\n", palette.Hex(p.CheckerLight))
		fmt.Fprintf(&sb, "CheckerDark: %s\n", palette.Hex(p.CheckerDark))
		sb.WriteString("\n")
	}

	return sb.String()
}

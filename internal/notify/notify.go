package notify

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/example/maskstudio/internal/platform"
)

// Event identifies a notification trigger.
type Event string

const (
	// EventGenerated fires when an image generation task finishes.
	EventGenerated Event = "generated"
	// EventSaved fires when a mask is written to disk.
	EventSaved Event = "saved"
	// EventCopied fires when a mask is copied to the clipboard.
	EventCopied Event = "copied"
	// EventApplied fires when a combined mask is persisted to the design.
	EventApplied Event = "applied"
)

// EventPreference describes formatting for a notification event.
type EventPreference struct {
	Template string
}

// Preferences describes notification behaviour loaded from configuration.
type Preferences struct {
	Title  string
	Events map[Event]EventPreference
}

// DefaultPreferences returns the default notification settings.
func DefaultPreferences() Preferences {
	return Preferences{
		Title: "MaskStudio",
		Events: map[Event]EventPreference{
			EventGenerated: {Template: "Generated %s"},
			EventSaved:     {Template: "Saved %s"},
			EventCopied:    {Template: "Copied %s to clipboard"},
			EventApplied:   {Template: "Applied mask to %s"},
		},
	}
}

// LoadPreferences reads template overrides from MASKSTUDIO_NOTIFY_*
// environment variables.
func LoadPreferences() Preferences {
	prefs := DefaultPreferences()
	if v := strings.TrimSpace(os.Getenv("MASKSTUDIO_NOTIFY_TITLE")); v != "" {
		prefs.Title = v
	}
	for _, event := range []Event{EventGenerated, EventSaved, EventCopied, EventApplied} {
		key := "MASKSTUDIO_NOTIFY_" + strings.ToUpper(string(event)) + "_TEXT"
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			prefs.Events[event] = EventPreference{Template: v}
		}
	}
	return prefs
}

// Sender delivers a rendered notification.
type Sender func(title, body string, opts platform.Options) error

// Notifier sends OS-level notifications based on the configured preferences.
type Notifier struct {
	prefs   Preferences
	enabled map[Event]bool
	send    Sender
	logger  *zap.Logger
}

// New creates a new Notifier using the provided preferences. All events
// start disabled.
func New(prefs Preferences, logger *zap.Logger) *Notifier {
	cloned := Preferences{Title: prefs.Title, Events: make(map[Event]EventPreference, len(prefs.Events))}
	for k, v := range prefs.Events {
		cloned.Events[k] = v
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{prefs: cloned, enabled: make(map[Event]bool), send: platform.Notify, logger: logger}
}

// SetSender replaces the delivery function.
func (n *Notifier) SetSender(s Sender) {
	if n != nil && s != nil {
		n.send = s
	}
}

// Enable toggles the notifier for the provided event.
func (n *Notifier) Enable(event Event, enabled bool) {
	if n == nil {
		return
	}
	n.enabled[event] = enabled
}

// Generated announces finished image generation with the first result as
// the notification icon when available.
func (n *Notifier) Generated(detail string, img image.Image) {
	if !n.enabledFor(EventGenerated) {
		return
	}
	opts := platform.Options{}
	if img != nil {
		if path, cleanup, err := createPreview(img); err != nil {
			n.logger.Warn("notification preview", zap.Error(err))
		} else {
			defer cleanup()
			opts.IconPath = path
		}
	}
	n.dispatch(EventGenerated, detail, opts)
}

// Saved announces a written file, using it as the icon.
func (n *Notifier) Saved(path string) {
	if !n.enabledFor(EventSaved) {
		return
	}
	detail := strings.TrimSpace(path)
	opts := platform.Options{}
	if abs, err := filepath.Abs(path); err == nil {
		detail = abs
		if _, statErr := os.Stat(abs); statErr == nil {
			opts.IconPath = abs
		}
	}
	n.dispatch(EventSaved, detail, opts)
}

// Copied announces a clipboard copy.
func (n *Notifier) Copied(detail string) {
	if strings.TrimSpace(detail) == "" {
		detail = "mask"
	}
	n.dispatch(EventCopied, detail, platform.Options{})
}

// Applied announces that a combined mask was stored on imageID.
func (n *Notifier) Applied(imageID string) {
	n.dispatch(EventApplied, imageID, platform.Options{})
}

func (n *Notifier) enabledFor(event Event) bool {
	return n != nil && n.enabled[event]
}

func (n *Notifier) dispatch(event Event, detail string, opts platform.Options) {
	if !n.enabledFor(event) {
		return
	}
	template := strings.TrimSpace(n.prefs.Events[event].Template)
	if template == "" {
		return
	}
	body := strings.TrimSpace(fmt.Sprintf(template, strings.TrimSpace(detail)))
	if body == "" {
		return
	}
	if err := n.send(n.prefs.Title, body, opts); err != nil {
		n.logger.Warn("notification failed", zap.String("event", string(event)), zap.Error(err))
	}
}

func createPreview(img image.Image) (string, func(), error) {
	f, err := os.CreateTemp("", "maskstudio-preview-*.png")
	if err != nil {
		return "", nil, err
	}
	path := f.Name()
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", nil, err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", nil, err
	}
	return path, func() { _ = os.Remove(path) }, nil
}

package platform

import (
	"strings"
	"time"
)

// DefaultAppName identifies notifications sent by the application.
const DefaultAppName = "MaskStudio"

// Options configures how a notification is displayed on the host platform.
type Options struct {
	// AppName overrides DefaultAppName.
	AppName string
	// IconPath, when non-empty, points to an image file shown alongside the
	// notification where the platform supports it.
	IconPath string
	// Expire is how long the notification stays visible. Zero uses the
	// platform default.
	Expire time.Duration
}

func (o Options) appName() string {
	if name := strings.TrimSpace(o.AppName); name != "" {
		return name
	}
	return DefaultAppName
}

// expireMillis maps Expire onto the freedesktop convention: -1 means the
// server default.
func (o Options) expireMillis() int32 {
	if o.Expire <= 0 {
		return -1
	}
	return int32(o.Expire / time.Millisecond)
}

// Package clipboard copies masks and mask references to the system
// clipboard. PNG is the only image format exchanged.
package clipboard

import (
	"bytes"
	"errors"
	"image"
	"image/png"
	"os"
	"sync"
)

type format int

const (
	formatText format = iota
	formatPNG
)

// backend is a platform clipboard.
type backend interface {
	write(f format, data []byte) error
	read(f format) ([]byte, error)
}

var (
	// ErrNoDisplay is returned on X11/Wayland systems without a session.
	ErrNoDisplay = errors.New("clipboard requires DISPLAY or WAYLAND_DISPLAY")
	// ErrUnsupported is returned where no clipboard backend is built in.
	ErrUnsupported = errors.New("clipboard is not supported on this platform")
	// ErrEmpty is returned when the clipboard holds nothing of the requested type.
	ErrEmpty = errors.New("clipboard holds no data of the requested type")
)

var (
	initOnce sync.Once
	initErr  error
	active   backend
)

func ensureInit() (backend, error) {
	initOnce.Do(func() {
		active, initErr = open()
	})
	return active, initErr
}

func hasDisplay() bool {
	return os.Getenv("DISPLAY") != "" || os.Getenv("WAYLAND_DISPLAY") != ""
}

// WriteImage encodes img as PNG and publishes it.
func WriteImage(img image.Image) error {
	b, err := ensureInit()
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return err
	}
	return b.write(formatPNG, buf.Bytes())
}

// ReadImage decodes PNG data from the clipboard.
func ReadImage() (image.Image, error) {
	b, err := ensureInit()
	if err != nil {
		return nil, err
	}
	data, err := b.read(formatPNG)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, ErrEmpty
	}
	return png.Decode(bytes.NewReader(data))
}

// WriteText publishes text, typically a mask URL.
func WriteText(text string) error {
	b, err := ensureInit()
	if err != nil {
		return err
	}
	return b.write(formatText, []byte(text))
}

// ReadText returns UTF-8 text from the clipboard.
func ReadText() (string, error) {
	b, err := ensureInit()
	if err != nil {
		return "", err
	}
	data, err := b.read(formatText)
	if err != nil {
		return "", err
	}
	// Some owners include a trailing NUL in STRING responses.
	data = bytes.TrimRight(data, "\x00")
	if len(data) == 0 {
		return "", ErrEmpty
	}
	return string(data), nil
}

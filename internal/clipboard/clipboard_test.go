package clipboard

import (
	"image"
	"image/color"
	"sync"
	"testing"
)

type memBackend map[format][]byte

func (m memBackend) write(f format, data []byte) error {
	for k := range m {
		delete(m, k)
	}
	m[f] = data
	return nil
}

func (m memBackend) read(f format) ([]byte, error) { return m[f], nil }

func useBackend(t *testing.T, b backend) {
	t.Helper()
	initOnce = sync.Once{}
	initOnce.Do(func() {})
	active, initErr = b, nil
	t.Cleanup(func() {
		initOnce = sync.Once{}
		active, initErr = nil, nil
	})
}

func TestImageRoundTrip(t *testing.T) {
	useBackend(t, memBackend{})
	src := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	src.Set(1, 1, color.White)
	if err := WriteImage(src); err != nil {
		t.Fatalf("WriteImage: %v", err)
	}
	got, err := ReadImage()
	if err != nil {
		t.Fatalf("ReadImage: %v", err)
	}
	if got.Bounds() != src.Bounds() {
		t.Fatalf("bounds %v, want %v", got.Bounds(), src.Bounds())
	}
	if r, _, _, _ := got.At(1, 1).RGBA(); r != 0xffff {
		t.Errorf("pixel not preserved")
	}
}

func TestWritingReplacesOtherFormat(t *testing.T) {
	useBackend(t, memBackend{})
	if err := WriteImage(image.NewGray(image.Rect(0, 0, 1, 1))); err != nil {
		t.Fatal(err)
	}
	if err := WriteText("mask.png\x00"); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadImage(); err != ErrEmpty {
		t.Errorf("expected ErrEmpty for image after text write, got %v", err)
	}
	text, err := ReadText()
	if err != nil || text != "mask.png" {
		t.Errorf("ReadText = %q, %v", text, err)
	}
}

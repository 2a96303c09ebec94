package render

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"strings"

	"github.com/disintegration/imaging"
)

const dataURLPrefix = "data:image/png;base64,"

// EncodePNG encodes img as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// DataURL encodes img as a base64 PNG data URL.
func DataURL(img image.Image) (string, error) {
	b, err := EncodePNG(img)
	if err != nil {
		return "", err
	}
	return dataURLPrefix + base64.StdEncoding.EncodeToString(b), nil
}

// IsDataURL reports whether s is an inline base64 image.
func IsDataURL(s string) bool {
	return strings.HasPrefix(s, "data:image/")
}

// DecodeDataURL decodes a base64 image data URL.
func DecodeDataURL(s string) (image.Image, error) {
	if !IsDataURL(s) {
		return nil, errors.New("not an image data url")
	}
	i := strings.Index(s, ",")
	if i < 0 || !strings.Contains(s[:i], ";base64") {
		return nil, errors.New("data url is not base64 encoded")
	}
	raw, err := base64.StdEncoding.DecodeString(s[i+1:])
	if err != nil {
		return nil, fmt.Errorf("decode data url: %w", err)
	}
	return DecodeImage(raw)
}

// DecodeImage decodes PNG or JPEG bytes.
func DecodeImage(b []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

// Fit scales img to exactly width x height with nearest-neighbour sampling so
// binary masks stay binary. Images that already match are returned as is.
func Fit(img image.Image, width, height int) image.Image {
	if img == nil || width <= 0 || height <= 0 {
		return img
	}
	b := img.Bounds()
	if b.Dx() == width && b.Dy() == height {
		return img
	}
	return imaging.Resize(img, width, height, imaging.NearestNeighbor)
}

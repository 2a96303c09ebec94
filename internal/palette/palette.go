package palette

import (
	"image/color"
)

// Palette defines the colours used to paint the mask layers and the editor
// canvas.
type Palette struct {
	Name string

	// Mask layers
	Add     color.RGBA // User "add" strokes
	Remove  color.RGBA // User "remove" strokes
	Sam     color.RGBA // Selected segmentation mask
	Preview color.RGBA // Combined mask preview when no overlay image exists

	// Canvas
	Background   color.RGBA
	Text         color.RGBA
	CheckerLight color.RGBA
	CheckerDark  color.RGBA
}

// Default returns the built-in palette.
func Default() *Palette {
	return &Palette{
		Name:         "Default",
		Add:          color.RGBA{0x00, 0xff, 0x40, 255},
		Remove:       color.RGBA{0xff, 0x00, 0x00, 255},
		Sam:          color.RGBA{0x75, 0x43, 0xff, 255},
		Preview:      color.RGBA{0xff, 0xc8, 0x00, 255},
		Background:   color.RGBA{40, 40, 40, 255},
		Text:         color.RGBA{240, 240, 240, 255},
		CheckerLight: color.RGBA{220, 220, 220, 255},
		CheckerDark:  color.RGBA{192, 192, 192, 255},
	}
}

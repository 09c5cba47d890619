package fake

import (
	"bytes"
	"image"
	"image/color"
	"image/png"

	"github.com/ashparshp/hairone/pkg/browser"
)

// renderPNG paints a blank page in the session's color scheme. It stands in
// for a real rasterization so capture paths and formats can be verified.
func renderPNG(width, height int, scheme browser.ColorScheme) ([]byte, error) {
	bg := color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	if scheme == browser.ColorSchemeDark {
		bg = color.RGBA{R: 0x12, G: 0x12, B: 0x12, A: 0xff}
	}
	img := image.NewPaletted(image.Rect(0, 0, width, height), color.Palette{bg})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

package tile

import (
	"fmt"
	"image"
	"image/color"

	"github.com/fogleman/gg"
	"golang.org/x/image/font"

	"github.com/matzehuels/qrsheet/pkg/fonts"
)

// Captioner stamps human-readable text onto a rendered tile.
type Captioner interface {
	Caption(img image.Image, text string) (image.Image, error)
}

// TextCaptioner draws the caption centered horizontally in the blank band
// above the code. The text width is measured with the actual face, so the
// caption stays centered for any identifier length and font size.
//
// A TextCaptioner owns a font face and must not be shared between
// goroutines.
type TextCaptioner struct {
	face  font.Face
	size  float64
	color color.Color
}

// NewTextCaptioner creates a captioner using the embedded font at size
// points (one point per pixel).
func NewTextCaptioner(size float64) (*TextCaptioner, error) {
	face, err := fonts.Face(size)
	if err != nil {
		return nil, err
	}
	return &TextCaptioner{face: face, size: size, color: color.Black}, nil
}

// FontSize returns the caption size in points.
func (c *TextCaptioner) FontSize() float64 { return c.size }

// Caption returns a copy of img with text drawn on it.
func (c *TextCaptioner) Caption(img image.Image, text string) (image.Image, error) {
	if text == "" {
		return img, nil
	}
	b := img.Bounds()
	dc := gg.NewContextForImage(img)
	dc.SetFontFace(c.face)
	dc.SetColor(c.color)

	w, h := dc.MeasureString(text)
	if w > float64(b.Dx()) {
		return nil, fmt.Errorf("caption %q is %.0f px wide, tile is %d px", text, w, b.Dx())
	}

	band := float64(blankBand(img))
	cx := float64(b.Dx()) / 2
	if band >= h {
		dc.DrawStringAnchored(text, cx, band/2, 0.5, 0.5)
	} else {
		dc.DrawStringAnchored(text, cx, 0, 0.5, 1)
	}
	return dc.Image(), nil
}

// blankBand returns the number of fully white rows at the top of img.
func blankBand(img image.Image) int {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if !isWhite(img.At(x, y)) {
				return y - b.Min.Y
			}
		}
	}
	return b.Dy()
}

func isWhite(c color.Color) bool {
	r, g, b, _ := c.RGBA()
	return r == 0xffff && g == 0xffff && b == 0xffff
}

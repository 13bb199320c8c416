// Package fonts provides the font face used for tile captions.
//
// The Go Regular TrueType font ships with golang.org/x/image, so it is
// compiled into the binary and no system fonts are needed.
package fonts

import (
	"fmt"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// FontFamily is the family name of the caption font.
const FontFamily = "Go Regular"

// DefaultSize is the default caption size in points at 72 dpi, which makes
// one point equal one canvas pixel.
const DefaultSize = 40

var (
	parsed     *opentype.Font
	parseErr   error
	parsedOnce sync.Once
)

// GoRegularTTF returns the raw TrueType data.
func GoRegularTTF() []byte {
	return goregular.TTF
}

func goRegular() (*opentype.Font, error) {
	parsedOnce.Do(func() {
		parsed, parseErr = opentype.Parse(goregular.TTF)
	})
	return parsed, parseErr
}

// Face returns a new caption face of the given size. Faces are not safe for
// concurrent use; each goroutine drawing captions needs its own.
func Face(size float64) (font.Face, error) {
	if size <= 0 {
		return nil, fmt.Errorf("font size must be positive, got %g", size)
	}
	f, err := goRegular()
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", FontFamily, err)
	}
	return opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
}

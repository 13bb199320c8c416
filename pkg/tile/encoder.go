package tile

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"strconv"

	"github.com/boombuler/barcode/qr"
	"github.com/disintegration/imaging"

	"github.com/matzehuels/qrsheet/pkg/geometry"
)

// Encoder renders the machine-readable code for one identifier as an image
// of exactly the requested size.
type Encoder interface {
	Encode(ctx context.Context, id int, size geometry.Size) (image.Image, error)
}

// CacheKeyer is implemented by encoders whose output depends on their
// settings. The key must differ whenever the rendered image would.
type CacheKeyer interface {
	CacheKey() string
}

// DefaultQuietZone is the blank border around the code, in modules.
const DefaultQuietZone = 4

// QREncoder encodes the decimal identifier as a QR code.
type QREncoder struct {
	Level     qr.ErrorCorrectionLevel
	QuietZone int // modules of white border on every side
}

// NewQREncoder returns an encoder with error-correction level M and a
// four-module quiet zone.
func NewQREncoder() *QREncoder {
	return &QREncoder{Level: qr.M, QuietZone: DefaultQuietZone}
}

// NewQREncoderLevel returns an encoder for the named error-correction
// level (L, M, Q or H).
func NewQREncoderLevel(level string) (*QREncoder, error) {
	l, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	return &QREncoder{Level: l, QuietZone: DefaultQuietZone}, nil
}

// Encode renders id as a QR code scaled to size with nearest-neighbour
// resampling, so module edges stay sharp.
func (e *QREncoder) Encode(ctx context.Context, id int, size geometry.Size) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	code, err := qr.Encode(strconv.Itoa(id), e.Level, qr.Auto)
	if err != nil {
		return nil, fmt.Errorf("qr encode: %w", err)
	}

	modules := code.Bounds().Dx()
	total := modules + 2*e.QuietZone
	if size.W < total || size.H < total {
		return nil, fmt.Errorf("tile %s too small for %d modules", size, total)
	}

	canvas := imaging.New(total, total, color.White)
	canvas = imaging.Paste(canvas, code, image.Pt(e.QuietZone, e.QuietZone))
	return imaging.Resize(canvas, size.W, size.H, imaging.NearestNeighbor), nil
}

// CacheKey identifies the level and quiet zone, e.g. "qr-M-qz4".
func (e *QREncoder) CacheKey() string {
	return fmt.Sprintf("qr-%s-qz%d", LevelName(e.Level), e.QuietZone)
}

// LevelName returns "L", "M", "Q" or "H".
func LevelName(l qr.ErrorCorrectionLevel) string {
	switch l {
	case qr.L:
		return "L"
	case qr.M:
		return "M"
	case qr.Q:
		return "Q"
	case qr.H:
		return "H"
	}
	return "?"
}

// ParseLevel parses an error-correction level letter.
func ParseLevel(s string) (qr.ErrorCorrectionLevel, error) {
	switch s {
	case "L", "l":
		return qr.L, nil
	case "M", "m", "":
		return qr.M, nil
	case "Q", "q":
		return qr.Q, nil
	case "H", "h":
		return qr.H, nil
	}
	return qr.M, fmt.Errorf("unknown error-correction level %q (want L, M, Q or H)", s)
}

package pipeline

import (
	"path/filepath"
	"testing"

	"github.com/matzehuels/qrsheet/pkg/errors"
	"github.com/matzehuels/qrsheet/pkg/geometry"
	"github.com/matzehuels/qrsheet/pkg/tile"
)

func TestValidateAndSetDefaults(t *testing.T) {
	opts := Options{Start: 100001, Count: 50}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Fatalf("ValidateAndSetDefaults: %v", err)
	}

	if opts.Geometry != geometry.Default() {
		t.Errorf("Geometry = %v, want defaults", opts.Geometry)
	}
	if opts.DPI != 300 {
		t.Errorf("DPI = %d, want 300", opts.DPI)
	}
	if opts.CaptionFontSize != 40 {
		t.Errorf("CaptionFontSize = %g, want 40", opts.CaptionFontSize)
	}
	if opts.Prefix != "qr_codes" {
		t.Errorf("Prefix = %q, want qr_codes", opts.Prefix)
	}
	if opts.OutputDir != "." || opts.PagesDir != filepath.Join(".", "pages") {
		t.Errorf("dirs = %q, %q", opts.OutputDir, opts.PagesDir)
	}
	if opts.Workers != 1 {
		t.Errorf("Workers = %d, want 1", opts.Workers)
	}
	if opts.Level != "M" {
		t.Errorf("Level = %q, want M", opts.Level)
	}
	if opts.Logger == nil {
		t.Error("Logger should default to a discarding logger")
	}
	if opts.PageCount() != 2 {
		t.Errorf("PageCount = %d, want 2", opts.PageCount())
	}
	if got := opts.OutputPath(); got != "qr_codes_100001_through_100050.pdf" {
		t.Errorf("OutputPath = %q", got)
	}
}

func TestValidateAndSetDefaultsKeepsExplicitValues(t *testing.T) {
	g := geometry.Geometry{
		PageSize: geometry.Size{W: 1000, H: 1000},
		Margin:   0,
		TileSize: geometry.Size{W: 200, H: 200},
	}
	opts := Options{
		Start:     1,
		Count:     10,
		Geometry:  g,
		Prefix:    "labels",
		OutputDir: "/out",
		PagesDir:  "/tmp/pages",
		Workers:   4,
	}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Fatalf("ValidateAndSetDefaults: %v", err)
	}
	if opts.Geometry != g {
		t.Error("explicit geometry should be kept (zero margin and spacing included)")
	}
	if opts.PagesDir != "/tmp/pages" || opts.Workers != 4 {
		t.Errorf("explicit values overwritten: %+v", opts)
	}
	if got := opts.OutputPath(); got != filepath.Join("/out", "labels_1_through_10.pdf") {
		t.Errorf("OutputPath = %q", got)
	}
}

func TestValidateAndSetDefaultsErrors(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		code errors.Code
	}{
		{"negative count", Options{Start: 1, Count: -1}, errors.ErrCodeConfig},
		{"negative start", Options{Start: -5, Count: 1}, errors.ErrCodeConfig},
		{"degenerate geometry", Options{Count: 1, Geometry: geometry.Geometry{
			PageSize: geometry.Size{W: 300, H: 300}, Margin: 120, TileSize: geometry.Size{W: 435, H: 435},
		}}, errors.ErrCodeConfig},
		{"negative dpi", Options{Count: 1, DPI: -1}, errors.ErrCodeConfig},
		{"negative font", Options{Count: 1, CaptionFontSize: -2}, errors.ErrCodeConfig},
		{"bad prefix", Options{Count: 1, Prefix: "a/b"}, errors.ErrCodeInvalidInput},
		{"negative workers", Options{Count: 1, Workers: -2}, errors.ErrCodeConfig},
		{"unknown level", Options{Count: 1, Level: "X"}, errors.ErrCodeConfig},
		{"bad publish", Options{Count: 1, Publish: "ftp://host/x"}, errors.ErrCodeConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.ValidateAndSetDefaults()
			if !errors.Is(err, tt.code) {
				t.Errorf("error = %v, want %s", err, tt.code)
			}
		})
	}
}

func TestValidateAndSetDefaultsIdempotent(t *testing.T) {
	opts := Options{Count: 5}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Fatal(err)
	}
	opts.Workers = -1 // ignored once validated
	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Errorf("second call should be a no-op, got %v", err)
	}
}

func TestOptionsEncoder(t *testing.T) {
	opts := Options{Count: 1, Level: "h"}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Fatal(err)
	}
	if opts.Level != "H" {
		t.Errorf("Level = %q, want normalized H", opts.Level)
	}

	enc, err := opts.encoder()
	if err != nil {
		t.Fatalf("encoder: %v", err)
	}
	qe, ok := enc.(*tile.QREncoder)
	if !ok {
		t.Fatalf("encoder = %T, want *tile.QREncoder", enc)
	}
	if tile.LevelName(qe.Level) != "H" {
		t.Errorf("encoder level = %s, want H", tile.LevelName(qe.Level))
	}

	injected := &countingEncoder{}
	opts.Encoder = injected
	if enc, _ := opts.encoder(); enc != injected {
		t.Error("an injected encoder should be used as is")
	}
}

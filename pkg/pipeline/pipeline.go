// Package pipeline provides the tile sheet pipeline for qrsheet.
//
// This package wires the stages together so the CLI and any other entry
// point produce identical output:
//
//  1. Produce: render one QR tile per identifier, lazily and in order
//  2. Pack: fill page canvases with tiles, row-major inside the margin
//  3. Write: persist every filled page as a single-page PDF
//  4. Merge: concatenate the page documents into one document
//  5. Publish (optional): upload the merged document to gs:// or s3://
//
// # Usage
//
//	runner := pipeline.NewRunner(cache, nil, logger)
//	opts := pipeline.Options{
//	    Start: 100001,
//	    Count: 50,
//	}
//	result, err := runner.Execute(ctx, opts)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(result.OutputPath)
//
// # Concurrency
//
// With Workers <= 1 a single producer feeds the packer page after page, so
// memory holds one page canvas and one tile. With Workers > 1 the
// identifier range is split into page-sized chunks that are produced,
// packed and written independently; records are collected by page index so
// the merge order is unchanged.
package pipeline

import (
	"io"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/qrsheet/pkg/errors"
	"github.com/matzehuels/qrsheet/pkg/fonts"
	"github.com/matzehuels/qrsheet/pkg/geometry"
	"github.com/matzehuels/qrsheet/pkg/merge"
	"github.com/matzehuels/qrsheet/pkg/page"
	"github.com/matzehuels/qrsheet/pkg/publish"
	"github.com/matzehuels/qrsheet/pkg/tile"
)

// =============================================================================
// Default Values - Single Source of Truth for CLI and library callers
// =============================================================================

const (
	// DefaultStart is the first identifier of a run.
	DefaultStart = 100001

	// DefaultCount is the number of identifiers in a run.
	DefaultCount = 50

	// DefaultOutputDir is where the merged document is written.
	DefaultOutputDir = "."

	// PagesDirName is the page directory below the output directory.
	PagesDirName = "pages"

	// DefaultWorkers runs the pipeline sequentially.
	DefaultWorkers = 1

	// DefaultLevel is the QR error-correction level.
	DefaultLevel = "M"
)

// =============================================================================
// Options - Pipeline Configuration
// =============================================================================

// Options contains all configuration for one run.
type Options struct {
	Start int `json:"start"`
	Count int `json:"count"`

	// Layout
	Geometry geometry.Geometry `json:"geometry"`
	DPI      int               `json:"dpi,omitempty"`

	// Tiles
	CaptionFontSize float64 `json:"caption_font_size,omitempty"`
	NoCaption       bool    `json:"no_caption,omitempty"`
	Level           string  `json:"level,omitempty"` // QR error correction: L, M, Q or H

	// Output
	Prefix    string `json:"prefix,omitempty"`
	OutputDir string `json:"output_dir,omitempty"`
	PagesDir  string `json:"pages_dir,omitempty"`

	// Execution
	Workers int    `json:"workers,omitempty"`
	Resume  bool   `json:"resume,omitempty"`
	Lenient bool   `json:"lenient,omitempty"`
	Publish string `json:"publish,omitempty"` // gs://… or s3://… destination

	// Runtime options (not serialized)
	Logger  *log.Logger  `json:"-"`
	Encoder tile.Encoder `json:"-"` // replaces the QR encoder

	// validated tracks whether ValidateAndSetDefaults has been called.
	validated bool `json:"-"`
}

// Result contains the outputs of a pipeline run.
type Result struct {
	// RunID identifies the run in logs.
	RunID string

	// Pages holds one record per page, in identifier order.
	Pages []page.Record

	// Merge describes the merged document.
	Merge *merge.Result

	// OutputPath is the merged document location.
	OutputPath string

	// Published is set when the document was uploaded.
	Published *publish.Destination

	// Stats contains timing and size information.
	Stats Stats
}

// Stats contains pipeline execution statistics.
type Stats struct {
	Tiles        int // tiles rendered in this run
	Pages        int
	ReusedPages  int // pages taken from a previous run
	SkippedPages int // pages dropped by a lenient merge
	ProduceTime  time.Duration
	MergeTime    time.Duration
	PublishTime  time.Duration
}

// =============================================================================
// Options Methods
// =============================================================================

// ValidateAndSetDefaults checks the options and applies defaults.
// This method is idempotent - calling it multiple times has the same effect as calling it once.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if err := errors.ValidateRange(o.Start, o.Count); err != nil {
		return err
	}

	if o.Geometry == (geometry.Geometry{}) {
		o.Geometry = geometry.Default()
	}
	if err := o.Geometry.Validate(); err != nil {
		return err
	}
	if o.DPI == 0 {
		o.DPI = page.DefaultDPI
	}
	if o.DPI < 0 {
		return errors.New(errors.ErrCodeConfig, "dpi must be positive, got %d", o.DPI)
	}
	if o.CaptionFontSize == 0 {
		o.CaptionFontSize = fonts.DefaultSize
	}
	if o.CaptionFontSize < 0 {
		return errors.New(errors.ErrCodeConfig, "caption font size must be positive, got %g", o.CaptionFontSize)
	}

	if o.Level == "" {
		o.Level = DefaultLevel
	}
	level, err := tile.ParseLevel(o.Level)
	if err != nil {
		return errors.Wrap(errors.ErrCodeConfig, err, "qr level")
	}
	o.Level = tile.LevelName(level)

	if o.Prefix == "" {
		o.Prefix = page.DefaultPrefix
	}
	if err := errors.ValidatePrefix(o.Prefix); err != nil {
		return err
	}
	if o.OutputDir == "" {
		o.OutputDir = DefaultOutputDir
	}
	if o.PagesDir == "" {
		o.PagesDir = filepath.Join(o.OutputDir, PagesDirName)
	}

	if o.Workers == 0 {
		o.Workers = DefaultWorkers
	}
	if o.Workers < 0 {
		return errors.New(errors.ErrCodeConfig, "workers must be >= 1, got %d", o.Workers)
	}
	if o.Publish != "" {
		if _, err := publish.ParseDestination(o.Publish, o.outputName()); err != nil {
			return errors.Wrap(errors.ErrCodeConfig, err, "publish destination")
		}
	}

	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	o.validated = true
	return nil
}

// LastID returns the last identifier of the run.
func (o *Options) LastID() int {
	return o.Start + o.Count - 1
}

// PageCount returns the number of pages the run produces.
func (o *Options) PageCount() int {
	return o.Geometry.PageCount(o.Count)
}

// OutputPath returns where the merged document is written.
func (o *Options) OutputPath() string {
	return filepath.Join(o.OutputDir, o.outputName())
}

// encoder returns the tile encoder for the run: the injected one, or a QR
// encoder at the configured level.
func (o *Options) encoder() (tile.Encoder, error) {
	if o.Encoder != nil {
		return o.Encoder, nil
	}
	enc, err := tile.NewQREncoderLevel(o.Level)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfig, err, "qr level")
	}
	return enc, nil
}

func (o *Options) outputName() string {
	prefix := o.Prefix
	if prefix == "" {
		prefix = page.DefaultPrefix
	}
	return page.Name(prefix, o.Start, o.LastID())
}

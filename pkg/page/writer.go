// Package page turns filled page canvases into standalone single-page PDF
// documents.
//
// Each page is encoded as PNG, wrapped into a one-page PDF sized to the
// print resolution, and written atomically (temp file plus rename) so an
// interrupted run never leaves a truncated page behind. The returned
// [Record] carries the identifier range and location the merger needs.
package page

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/disintegration/imaging"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/matzehuels/qrsheet/pkg/errors"
	"github.com/matzehuels/qrsheet/pkg/pack"
)

// DefaultDPI maps the 2550x3300 default canvas to US Letter.
const DefaultDPI = 300

// Record describes one written page document.
type Record struct {
	Index   int    `json:"index"`    // 0-based page number within the run
	FirstID int    `json:"first_id"` // first identifier on the page
	LastID  int    `json:"last_id"`  // last identifier on the page
	Path    string `json:"path"`     // location of the single-page document

	// Reused is set when the document existed before this run.
	Reused bool `json:"reused,omitempty"`
}

// Count returns the number of identifiers on the page.
func (r Record) Count() int { return r.LastID - r.FirstID + 1 }

// Writer writes single-page documents into a directory.
type Writer struct {
	dir    string
	prefix string
	dpi    int
	logger *log.Logger
}

// Option configures a Writer.
type Option func(*Writer)

// WithPrefix sets the file name prefix. Default "qr_codes".
func WithPrefix(prefix string) Option {
	return func(w *Writer) { w.prefix = prefix }
}

// WithDPI sets the print resolution used to size the PDF page. Default 300.
func WithDPI(dpi int) Option {
	return func(w *Writer) { w.dpi = dpi }
}

// WithLogger sets the logger. Default discards.
func WithLogger(l *log.Logger) Option {
	return func(w *Writer) { w.logger = l }
}

// NewWriter creates dir if needed and returns a Writer for it.
func NewWriter(dir string, opts ...Option) (*Writer, error) {
	w := &Writer{
		dir:    dir,
		prefix: DefaultPrefix,
		dpi:    DefaultDPI,
		logger: log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(w)
	}
	if err := errors.ValidatePrefix(w.prefix); err != nil {
		return nil, err
	}
	if w.dpi <= 0 {
		return nil, errors.New(errors.ErrCodeConfig, "dpi must be positive, got %d", w.dpi)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrap(errors.ErrCodeIO, err, "create page directory %s", dir)
	}
	return w, nil
}

// Dir returns the page directory.
func (w *Writer) Dir() string { return w.dir }

// Path returns where the page for first … last is written.
func (w *Writer) Path(first, last int) string {
	return filepath.Join(w.dir, Name(w.prefix, first, last))
}

// Write encodes p as a single-page PDF and persists it.
func (w *Writer) Write(ctx context.Context, p *pack.Page, index int) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	if p.Len() == 0 {
		return Record{}, errors.New(errors.ErrCodeInternal, "page %d has no tiles", index)
	}
	rec := Record{Index: index, FirstID: p.FirstID(), LastID: p.LastID(), Path: w.Path(p.FirstID(), p.LastID())}

	doc, err := w.encode(p)
	if err != nil {
		return Record{}, errors.Wrap(errors.ErrCodeEncode, err, "encode page %d (%d-%d)", index, rec.FirstID, rec.LastID)
	}
	if err := writeAtomic(rec.Path, doc); err != nil {
		return Record{}, errors.Wrap(errors.ErrCodeIO, err, "write %s", rec.Path)
	}

	w.logger.Debug("wrote page", "index", index, "first", rec.FirstID, "last", rec.LastID, "bytes", len(doc))
	return rec, nil
}

// Lookup reports whether a valid page document for first … last already
// exists. A document is valid when pdfcpu can read it and it has exactly
// one page.
func (w *Writer) Lookup(index, first, last int) (Record, bool) {
	path := w.Path(first, last)
	if _, err := os.Stat(path); err != nil {
		return Record{}, false
	}
	n, err := api.PageCountFile(path)
	if err != nil || n != 1 {
		w.logger.Warn("ignoring existing page", "path", path, "pages", n, "err", err)
		return Record{}, false
	}
	return Record{Index: index, FirstID: first, LastID: last, Path: path, Reused: true}, true
}

func (w *Writer) encode(p *pack.Page) ([]byte, error) {
	var img bytes.Buffer
	if err := imaging.Encode(&img, p.Canvas, imaging.PNG); err != nil {
		return nil, fmt.Errorf("png: %w", err)
	}

	b := p.Canvas.Bounds()
	width := float64(b.Dx()) * 72 / float64(w.dpi)
	height := float64(b.Dy()) * 72 / float64(w.dpi)
	imp, err := api.Import(fmt.Sprintf("dimensions:%.2f %.2f, position:full", width, height), types.POINTS)
	if err != nil {
		return nil, fmt.Errorf("import settings: %w", err)
	}

	var doc bytes.Buffer
	if err := api.ImportImages(nil, &doc, []io.Reader{&img}, imp, model.NewDefaultConfiguration()); err != nil {
		return nil, fmt.Errorf("pdf: %w", err)
	}
	return doc.Bytes(), nil
}

// writeAtomic writes data to a temp file next to path and renames it.
func writeAtomic(path string, data []byte) error {
	f, err := os.CreateTemp(filepath.Dir(path), ".tmp-*.pdf")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

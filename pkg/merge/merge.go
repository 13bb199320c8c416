// Package merge concatenates single-page documents into one document.
//
// The merger runs in one of two modes. [Strict] validates every input
// strictly and fails on the first invalid page, naming it. [Lenient]
// validates in relaxed mode, skips inputs that still fail with a warning,
// and merges the rest. Either way the merged document is written to a temp
// file and renamed into place, so a failed merge leaves no partial output.
package merge

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/matzehuels/qrsheet/pkg/errors"
	"github.com/matzehuels/qrsheet/pkg/observability"
	"github.com/matzehuels/qrsheet/pkg/page"
)

// Mode selects how invalid inputs are handled.
type Mode int

const (
	// Strict fails the merge on the first invalid input.
	Strict Mode = iota
	// Lenient skips invalid inputs with a warning.
	Lenient
)

// String returns "strict" or "lenient".
func (m Mode) String() string {
	if m == Lenient {
		return "lenient"
	}
	return "strict"
}

// ModeFor returns Lenient when lenient is set and Strict otherwise.
func ModeFor(lenient bool) Mode {
	if lenient {
		return Lenient
	}
	return Strict
}

// Result describes a completed merge.
type Result struct {
	Path      string        // merged document
	PageCount int           // pages in the merged document
	Merged    []page.Record // inputs included, in order
	Skipped   []page.Record // inputs dropped in lenient mode
}

// Merger merges page documents.
type Merger struct {
	mode   Mode
	logger *log.Logger
}

// New returns a Merger. A nil logger discards output.
func New(mode Mode, logger *log.Logger) *Merger {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Merger{mode: mode, logger: logger}
}

// Mode returns the merge mode.
func (m *Merger) Mode() Mode { return m.mode }

// Merge writes the documents of records, in the given order, to outPath.
func (m *Merger) Merge(ctx context.Context, records []page.Record, outPath string) (res *Result, err error) {
	if len(records) == 0 {
		return nil, errors.New(errors.ErrCodeConfig, "nothing to merge")
	}

	start := time.Now()
	observability.Pipeline().OnMergeStart(ctx, len(records))
	defer func() {
		skipped := 0
		if res != nil {
			skipped = len(res.Skipped)
		}
		observability.Pipeline().OnMergeComplete(ctx, len(records), skipped, time.Since(start), err)
	}()

	res = &Result{Path: outPath}
	conf := m.config()
	for _, r := range records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if verr := api.ValidateFile(r.Path, conf); verr != nil {
			if m.mode == Strict {
				return nil, &errors.MergeError{Path: r.Path, FirstID: r.FirstID, LastID: r.LastID, Cause: verr}
			}
			m.logger.Warn("skipping invalid page", "path", r.Path, "first", r.FirstID, "last", r.LastID, "err", verr)
			res.Skipped = append(res.Skipped, r)
			continue
		}
		res.Merged = append(res.Merged, r)
	}
	if len(res.Merged) == 0 {
		return nil, &errors.MergeError{Cause: fmt.Errorf("all %d page documents are invalid", len(records))}
	}

	if err := m.write(res.Merged, outPath, conf); err != nil {
		return nil, err
	}

	n, err := api.PageCountFile(outPath)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeIO, err, "read back %s", outPath)
	}
	res.PageCount = n

	m.logger.Debug("merged document", "path", outPath, "pages", n, "skipped", len(res.Skipped), "mode", m.mode)
	return res, nil
}

func (m *Merger) write(records []page.Record, outPath string, conf *model.Configuration) error {
	dir := filepath.Dir(outPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(errors.ErrCodeIO, err, "create output directory %s", dir)
	}
	f, err := os.CreateTemp(dir, ".tmp-merge-*.pdf")
	if err != nil {
		return errors.Wrap(errors.ErrCodeIO, err, "create temp file in %s", dir)
	}
	tmp := f.Name()
	f.Close()
	defer os.Remove(tmp)

	paths := make([]string, len(records))
	for i, r := range records {
		paths[i] = r.Path
	}

	if len(paths) == 1 {
		if err := copyFile(paths[0], tmp); err != nil {
			return errors.Wrap(errors.ErrCodeIO, err, "copy %s", paths[0])
		}
	} else if err := api.MergeCreateFile(paths, tmp, false, conf); err != nil {
		return &errors.MergeError{Cause: fmt.Errorf("merge %s: %w", strings.Join(paths, ", "), err)}
	}

	if err := os.Rename(tmp, outPath); err != nil {
		return errors.Wrap(errors.ErrCodeIO, err, "write %s", outPath)
	}
	return nil
}

func (m *Merger) config() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	if m.mode == Lenient {
		conf.ValidationMode = model.ValidationRelaxed
	} else {
		conf.ValidationMode = model.ValidationStrict
	}
	return conf
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

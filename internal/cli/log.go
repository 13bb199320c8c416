package cli

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"
)

// newLogger creates a new logger with timestamp formatting.
// The logger writes to w and filters messages at the specified level.
// Timestamps are formatted as "HH:MM:SS.ms" (e.g., "14:32:01.45").
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// progress tracks the start time of an operation and logs completion with elapsed duration.
// It is safe for sequential use by a single goroutine; concurrent calls to done will race.
type progress struct {
	logger *log.Logger
	start  time.Time
}

// newProgress creates a progress tracker that captures the current time as start.
func newProgress(l *log.Logger) *progress {
	return &progress{logger: l, start: time.Now()}
}

// done logs msg along with the elapsed time since progress was created.
// Example output: "Merged 4 pages (1.234s)"
func (p *progress) done(msg string) {
	p.logger.Infof("%s (%s)", msg, time.Since(p.start).Round(time.Millisecond))
}

// ctxKey is the type for context keys used in this package.
type ctxKey int

// loggerKey is the context key for storing a logger.
const loggerKey ctxKey = 0

// withLogger returns a new context with the given logger attached.
func withLogger(ctx context.Context, l *log.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// loggerFromContext retrieves the logger from ctx.
// If no logger is attached, it returns log.Default().
func loggerFromContext(ctx context.Context) *log.Logger {
	if l, ok := ctx.Value(loggerKey).(*log.Logger); ok {
		return l
	}
	return log.Default()
}

// logHooks reports pipeline, cache and upload events at debug level.
type logHooks struct {
	logger *log.Logger
}

func (h *logHooks) OnPageStart(_ context.Context, index, first, last int) {
	h.logger.Debug("page start", "index", index, "first", first, "last", last)
}

func (h *logHooks) OnPageComplete(_ context.Context, index, placed int, d time.Duration, err error) {
	if err != nil {
		h.logger.Debug("page failed", "index", index, "placed", placed, "err", err)
		return
	}
	h.logger.Debug("page done", "index", index, "placed", placed, "duration", d.Round(time.Millisecond))
}

func (h *logHooks) OnMergeStart(_ context.Context, pages int) {
	h.logger.Debug("merge start", "pages", pages)
}

func (h *logHooks) OnMergeComplete(_ context.Context, pages, skipped int, d time.Duration, err error) {
	h.logger.Debug("merge done", "pages", pages, "skipped", skipped, "duration", d.Round(time.Millisecond), "err", err)
}

func (h *logHooks) OnCacheHit(_ context.Context, keyType string) {
	h.logger.Debug("cache hit", "type", keyType)
}

func (h *logHooks) OnCacheMiss(_ context.Context, keyType string) {
	h.logger.Debug("cache miss", "type", keyType)
}

func (h *logHooks) OnCacheSet(_ context.Context, keyType string, size int) {
	h.logger.Debug("cache set", "type", keyType, "bytes", size)
}

func (h *logHooks) OnUploadStart(_ context.Context, scheme, bucket, object string) {
	h.logger.Debug("upload start", "scheme", scheme, "bucket", bucket, "object", object)
}

func (h *logHooks) OnUploadComplete(_ context.Context, scheme, bucket, object string, size int64, d time.Duration, err error) {
	h.logger.Debug("upload done", "scheme", scheme, "bucket", bucket, "object", object,
		"bytes", size, "duration", d.Round(time.Millisecond), "err", err)
}

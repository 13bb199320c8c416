package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/qrsheet/pkg/cache"
	"github.com/matzehuels/qrsheet/pkg/merge"
	"github.com/matzehuels/qrsheet/pkg/observability"
	"github.com/matzehuels/qrsheet/pkg/pack"
	"github.com/matzehuels/qrsheet/pkg/page"
	"github.com/matzehuels/qrsheet/pkg/publish"
	"github.com/matzehuels/qrsheet/pkg/tile"
)

// Runner encapsulates pipeline execution with tile caching.
//
// The Runner doesn't store results between runs. Multiple goroutines can
// use the same Runner with different options as long as they write to
// different directories.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger

	// Publisher uploads merged documents. Nil creates a default one when
	// a run asks for publishing.
	Publisher *publish.Publisher

	// OnPage is called after each page is written or reused.
	OnPage func(rec page.Record, done, total int)
}

// NewRunner creates a runner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
// If logger is nil, each run logs to the logger in its Options.
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	return &Runner{
		Cache:  c,
		Keyer:  keyer,
		Logger: logger,
	}
}

// Execute runs produce → pack → write → merge → publish.
func (r *Runner) Execute(ctx context.Context, opts Options) (*Result, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	runID := uuid.NewString()
	logger := r.logger(opts).With("run", runID[:8])
	result := &Result{RunID: runID, OutputPath: opts.OutputPath()}

	packer, err := pack.New(opts.Geometry)
	if err != nil {
		return nil, err
	}
	writer, err := page.NewWriter(opts.PagesDir,
		page.WithPrefix(opts.Prefix),
		page.WithDPI(opts.DPI),
		page.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	logger.Info("starting run",
		"first", opts.Start,
		"last", opts.LastID(),
		"grid", opts.Geometry.String(),
		"per_page", opts.Geometry.TilesPerPage(),
		"pages", opts.PageCount(),
		"workers", opts.Workers)

	// Stage 1: Produce, pack and write pages
	produceStart := time.Now()
	run := &pageRun{
		runner: r,
		opts:   opts,
		packer: packer,
		writer: writer,
		logger: logger,
		total:  opts.PageCount(),
	}
	if opts.Workers > 1 {
		err = run.parallel(ctx)
	} else {
		err = run.sequential(ctx)
	}
	if err != nil {
		return nil, err
	}
	result.Pages = run.records
	result.Stats.Pages = len(run.records)
	result.Stats.Tiles = run.tiles
	result.Stats.ReusedPages = run.reused
	result.Stats.ProduceTime = time.Since(produceStart)

	logger.Info("wrote pages",
		"pages", len(run.records),
		"reused", run.reused,
		"duration", result.Stats.ProduceTime)

	// Stage 2: Merge
	mergeStart := time.Now()
	merged, err := merge.New(merge.ModeFor(opts.Lenient), logger).Merge(ctx, run.records, result.OutputPath)
	if err != nil {
		return nil, err
	}
	result.Merge = merged
	result.Stats.SkippedPages = len(merged.Skipped)
	result.Stats.MergeTime = time.Since(mergeStart)

	logger.Info("merged document",
		"path", result.OutputPath,
		"pages", merged.PageCount,
		"duration", result.Stats.MergeTime)

	// Stage 3: Publish
	if opts.Publish != "" {
		publishStart := time.Now()
		pub := r.Publisher
		if pub == nil {
			pub = publish.New(publish.WithLogger(logger))
			defer pub.Close()
		}
		dest, err := pub.Publish(ctx, result.OutputPath, opts.Publish)
		if err != nil {
			return nil, err
		}
		result.Published = &dest
		result.Stats.PublishTime = time.Since(publishStart)
	}

	return result, nil
}

// logger returns the runner's logger, falling back to the one in opts.
func (r *Runner) logger(opts Options) *log.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return opts.Logger
}

// pageRun holds the state of the page stage of one run.
type pageRun struct {
	runner *Runner
	opts   Options
	packer *pack.Packer
	writer *page.Writer
	logger *log.Logger
	total  int

	mu      sync.Mutex
	records []page.Record
	tiles   int
	reused  int
	done    int
}

// sequential pulls every tile from one producer.
func (p *pageRun) sequential(ctx context.Context) error {
	prod, err := p.producer(p.opts.Start, p.opts.Count)
	if err != nil {
		return err
	}
	p.records = make([]page.Record, 0, p.total)

	for index := 0; prod.Remaining() > 0; index++ {
		first, last, _ := p.opts.Geometry.PageRange(p.opts.Start, p.opts.Count, index)
		if rec, ok := p.reuse(index, first, last); ok {
			prod.Skip(rec.Count())
			p.record(rec, 0)
			continue
		}
		rec, err := p.fill(ctx, prod, index, first, last)
		if err != nil {
			return err
		}
		p.record(rec, rec.Count())
	}
	return nil
}

// parallel produces each page from its own producer on a bounded pool.
func (p *pageRun) parallel(ctx context.Context) error {
	p.records = make([]page.Record, p.total)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Workers)
	for index := 0; index < p.total; index++ {
		if gctx.Err() != nil {
			break
		}
		index := index
		first, last, _ := p.opts.Geometry.PageRange(p.opts.Start, p.opts.Count, index)
		g.Go(func() error {
			if rec, ok := p.reuse(index, first, last); ok {
				p.record(rec, 0)
				return nil
			}
			prod, err := p.producer(first, last-first+1)
			if err != nil {
				return err
			}
			rec, err := p.fill(gctx, prod, index, first, last)
			if err != nil {
				return err
			}
			p.record(rec, rec.Count())
			return nil
		})
	}
	return g.Wait()
}

// fill packs one page from prod and writes it.
func (p *pageRun) fill(ctx context.Context, prod *tile.Producer, index, first, last int) (rec page.Record, err error) {
	start := time.Now()
	placed := 0
	observability.Pipeline().OnPageStart(ctx, index, first, last)
	defer func() {
		observability.Pipeline().OnPageComplete(ctx, index, placed, time.Since(start), err)
	}()

	pg, err := p.packer.Fill(ctx, prod)
	if err != nil {
		return page.Record{}, err
	}
	placed = pg.Len()
	return p.writer.Write(ctx, pg, index)
}

// reuse returns an existing page when resuming.
func (p *pageRun) reuse(index, first, last int) (page.Record, bool) {
	if !p.opts.Resume {
		return page.Record{}, false
	}
	rec, ok := p.writer.Lookup(index, first, last)
	if ok {
		p.logger.Debug("reusing page", "index", index, "first", first, "last", last)
	}
	return rec, ok
}

// record stores rec at its index and reports progress.
func (p *pageRun) record(rec page.Record, rendered int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if rec.Index < len(p.records) {
		p.records[rec.Index] = rec
	} else {
		p.records = append(p.records, rec)
	}
	p.tiles += rendered
	if rec.Reused {
		p.reused++
	}
	p.done++
	if p.runner.OnPage != nil {
		p.runner.OnPage(rec, p.done, p.total)
	}
}

func (p *pageRun) producer(start, count int) (*tile.Producer, error) {
	enc, err := p.opts.encoder()
	if err != nil {
		return nil, err
	}
	opts := []tile.Option{
		tile.WithTileSize(p.opts.Geometry.TileSize),
		tile.WithEncoder(enc),
		tile.WithCaption(!p.opts.NoCaption),
		tile.WithCaptionFontSize(p.opts.CaptionFontSize),
	}
	if _, null := p.runner.Cache.(*cache.NullCache); p.runner.Cache != nil && !null {
		opts = append(opts, tile.WithCache(p.runner.Cache, p.runner.Keyer))
	}
	return tile.NewProducer(start, count, opts...)
}

package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/qrsheet/pkg/fonts"
	"github.com/matzehuels/qrsheet/pkg/geometry"
	"github.com/matzehuels/qrsheet/pkg/page"
	"github.com/matzehuels/qrsheet/pkg/pipeline"
	"github.com/matzehuels/qrsheet/pkg/publish"
)

// generateFlags holds the flags of the generate command that do not map
// directly onto pipeline.Options.
type generateFlags struct {
	configPath  string
	noCache     bool
	cacheURL    string
	cachePrefix string
	overwrite   bool
}

// generateCommand creates the generate command, the main entry point.
func (c *CLI) generateCommand() *cobra.Command {
	var flags generateFlags
	opts := pipeline.Options{
		Start:           pipeline.DefaultStart,
		Count:           pipeline.DefaultCount,
		Geometry:        geometry.Default(),
		DPI:             page.DefaultDPI,
		CaptionFontSize: fonts.DefaultSize,
		Prefix:          page.DefaultPrefix,
		OutputDir:       pipeline.DefaultOutputDir,
		Workers:         pipeline.DefaultWorkers,
		Level:           pipeline.DefaultLevel,
	}

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a PDF of captioned QR codes for a range of identifiers",
		Long: `Generate a PDF of captioned QR codes for a range of identifiers.

Every identifier from --start to --start+--count-1 becomes one QR code tile
captioned with its decimal value. Tiles are packed row-major onto pages, each
page is written to <pages-dir>/<prefix>_<first>_through_<last>.pdf, and all
pages are merged into <out>/<prefix>_<start>_through_<last>.pdf.

Settings can be read from a TOML file with --config; flags given on the
command line take precedence over the file.

Rendered tiles are cached locally (or in Redis with --cache-url) for faster
subsequent runs.`,
		Example: `  qrsheet generate --start 100001 --count 300
  qrsheet generate --config labels.toml --workers 4 --resume
  qrsheet generate --count 90 --publish gs://labels/batches/`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if flags.configPath != "" {
				cfg, err := loadConfig(flags.configPath)
				if err != nil {
					return err
				}
				cfg.apply(&opts, func(name string) bool { return cmd.Flags().Changed(name) })
			}
			return c.runGenerate(cmd.Context(), opts, flags)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&flags.configPath, "config", "c", "", "TOML configuration file")
	f.IntVar(&opts.Start, "start", opts.Start, "first identifier")
	f.IntVarP(&opts.Count, "count", "n", opts.Count, "number of identifiers")
	addGeometryFlags(cmd, &opts.Geometry)
	f.IntVar(&opts.DPI, "dpi", opts.DPI, "page resolution in dots per inch")
	f.Float64Var(&opts.CaptionFontSize, "font-size", opts.CaptionFontSize, "caption font size in pixels")
	f.BoolVar(&opts.NoCaption, "no-caption", false, "omit the decimal caption")
	f.StringVar(&opts.Level, "level", opts.Level, "QR error-correction level: L, M, Q or H")

	f.StringVarP(&opts.OutputDir, "out", "o", opts.OutputDir, "directory for the merged document")
	f.StringVar(&opts.PagesDir, "pages-dir", "", "directory for page documents (default: <out>/pages)")
	f.StringVar(&opts.Prefix, "prefix", opts.Prefix, "file name prefix")

	f.IntVarP(&opts.Workers, "workers", "w", opts.Workers, "pages rendered in parallel")
	f.BoolVar(&opts.Resume, "resume", false, "reuse valid page documents from an earlier run")
	f.BoolVar(&opts.Lenient, "lenient", false, "skip invalid page documents when merging")
	f.StringVar(&opts.Publish, "publish", "", "upload the merged document to gs://bucket/path or s3://bucket/path")
	f.BoolVar(&flags.overwrite, "overwrite", false, "replace an existing published object")

	f.BoolVar(&flags.noCache, "no-cache", false, "disable the tile cache")
	f.StringVar(&flags.cacheURL, "cache-url", "", "Redis URL for a shared tile cache (env "+envCacheURL+")")
	f.StringVar(&flags.cachePrefix, "cache-prefix", "", "key namespace in a shared tile cache (env "+envCachePrefix+")")

	return cmd
}

// runGenerate executes the pipeline and prints a summary.
func (c *CLI) runGenerate(ctx context.Context, opts pipeline.Options, flags generateFlags) error {
	logger := loggerFromContext(ctx)

	tiles, err := c.newCache(ctx, flags.cacheURL, flags.noCache)
	if err != nil {
		return fmt.Errorf("initialize cache: %w", err)
	}
	defer tiles.Close()

	runner := pipeline.NewRunner(tiles, tileKeyer(flags.cachePrefix), logger)
	if opts.Publish != "" {
		pub := publish.New(publish.WithOverwrite(flags.overwrite), publish.WithLogger(logger))
		defer pub.Close()
		runner.Publisher = pub
	}

	spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Generating %d codes...", opts.Count))
	runner.OnPage = func(rec page.Record, done, total int) {
		spinner.SetMessage(fmt.Sprintf("Page %d/%d (%d-%d)...", done, total, rec.FirstID, rec.LastID))
	}
	spinner.Start()

	start := time.Now()
	result, err := runner.Execute(ctx, opts)
	if err != nil {
		spinner.StopWithError("Generation failed")
		return err
	}
	spinner.Stop()

	printSuccess("Generated %d codes in %s", opts.Count, time.Since(start).Round(time.Millisecond))
	printFile(result.OutputPath)
	printStats(result.Stats)
	if result.Published != nil {
		printKeyValue("published", StyleLink.Render(result.Published.String()))
	}
	if result.Stats.SkippedPages > 0 {
		printWarning("%d page(s) skipped as invalid", result.Stats.SkippedPages)
		for _, rec := range result.Merge.Skipped {
			printDetail("%s", rec.Path)
		}
	}
	return nil
}

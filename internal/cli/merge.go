package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/qrsheet/pkg/merge"
	"github.com/matzehuels/qrsheet/pkg/page"
)

// mergeCommand creates the merge command for concatenating page documents.
func (c *CLI) mergeCommand() *cobra.Command {
	var (
		output  string
		lenient bool
	)

	cmd := &cobra.Command{
		Use:   "merge -o OUT PAGE.pdf...",
		Short: "Merge page documents into one PDF",
		Long: `Merge page documents into one PDF, in the order given.

Every input is validated first. By default an invalid input aborts the merge
and names the offending file; with --lenient invalid inputs are skipped with
a warning.`,
		Example: `  qrsheet merge -o all.pdf pages/qr_codes_100001_through_100030.pdf pages/qr_codes_100031_through_100050.pdf`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runMerge(cmd.Context(), args, output, lenient)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "merged document path")
	cmd.Flags().BoolVar(&lenient, "lenient", false, "skip invalid inputs instead of failing")
	_ = cmd.MarkFlagRequired("output")

	return cmd
}

// runMerge merges the files at paths into output.
func (c *CLI) runMerge(ctx context.Context, paths []string, output string, lenient bool) error {
	logger := loggerFromContext(ctx)
	records := make([]page.Record, len(paths))
	for i, p := range paths {
		records[i] = page.RecordFromPath(i, p)
	}

	prog := newProgress(logger)
	spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Merging %d documents...", len(records)))
	spinner.Start()

	res, err := merge.New(merge.ModeFor(lenient), logger).Merge(ctx, records, output)
	if err != nil {
		spinner.StopWithError("Merge failed")
		return err
	}
	spinner.Stop()
	prog.done(fmt.Sprintf("Merged %d documents", len(res.Merged)))

	printSuccess("Wrote %d pages", res.PageCount)
	printFile(res.Path)
	for _, rec := range res.Skipped {
		printWarning("skipped %s", rec.Path)
	}
	return nil
}

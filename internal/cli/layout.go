package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/matzehuels/qrsheet/pkg/geometry"
	"github.com/matzehuels/qrsheet/pkg/pipeline"
)

// addGeometryFlags registers the page layout flags on cmd, bound to g.
func addGeometryFlags(cmd *cobra.Command, g *geometry.Geometry) {
	f := cmd.Flags()
	f.IntVar(&g.PageSize.W, "page-width", g.PageSize.W, "page width in pixels")
	f.IntVar(&g.PageSize.H, "page-height", g.PageSize.H, "page height in pixels")
	f.IntVar(&g.Margin, "margin", g.Margin, "page margin in pixels")
	f.IntVar(&g.HSpacing, "h-spacing", g.HSpacing, "horizontal gap between tiles in pixels")
	f.IntVar(&g.VSpacing, "v-spacing", g.VSpacing, "vertical gap between tiles in pixels")
	f.IntVar(&g.TileSize.W, "tile-width", g.TileSize.W, "tile width in pixels")
	f.IntVar(&g.TileSize.H, "tile-height", g.TileSize.H, "tile height in pixels")
}

// layoutCommand creates the layout command for previewing page geometry.
func (c *CLI) layoutCommand() *cobra.Command {
	var (
		start = pipeline.DefaultStart
		count = pipeline.DefaultCount
		g     = geometry.Default()
	)

	cmd := &cobra.Command{
		Use:   "layout",
		Short: "Show the page grid and identifier ranges for a geometry",
		Long: `Show the page grid and identifier ranges for a geometry.

Nothing is rendered. The command prints how many tiles fit on a page, how
many pages a run needs and which identifiers land on each page, so a geometry
can be checked before generating.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printLayout(cmd.OutOrStdout(), g, start, count)
		},
	}

	cmd.Flags().IntVar(&start, "start", start, "first identifier")
	cmd.Flags().IntVarP(&count, "count", "n", count, "number of identifiers")
	addGeometryFlags(cmd, &g)

	return cmd
}

// printLayout writes the grid summary and the per-page ranges to w.
func printLayout(w io.Writer, g geometry.Geometry, start, count int) error {
	opts := pipeline.Options{Start: start, Count: count, Geometry: g}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return err
	}

	fmt.Fprintln(w, StyleTitle.Render("Layout"))
	fmt.Fprintln(w, keyValue("page", g.PageSize.String()))
	fmt.Fprintln(w, keyValue("tile", g.TileSize.String()))
	fmt.Fprintln(w, keyValue("grid", fmt.Sprintf("%d columns x %d rows", g.Columns(), g.Rows())))
	fmt.Fprintln(w, keyValue("per page", StyleNumber.Render(fmt.Sprint(g.TilesPerPage()))))
	fmt.Fprintln(w, keyValue("pages", StyleNumber.Render(fmt.Sprint(opts.PageCount()))))

	for i := 0; ; i++ {
		first, last, ok := g.PageRange(start, count, i)
		if !ok {
			break
		}
		fmt.Fprintf(w, "  %s %s\n", StyleDim.Render(fmt.Sprintf("%4d", i+1)), StyleValue.Render(fmt.Sprintf("%d-%d", first, last)))
	}
	fmt.Fprintln(w, keyValue("output", opts.OutputPath()))
	return nil
}

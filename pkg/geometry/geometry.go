// Package geometry describes page geometry for tile sheets and computes the
// packing grid derived from it.
//
// # Overview
//
// A [Geometry] is an immutable configuration record: page size, uniform
// margin (bleed), horizontal and vertical spacing between tiles, and the
// fixed tile size. All values are in pixels of the page canvas.
//
// Tiles are placed row-major starting at (Margin, Margin). A column fits
// while x + TileW + HSpacing <= PageW - Margin, and a row fits while
// y + TileH + VSpacing <= PageH - Margin. The trailing spacing of the last
// tile in a row or column is part of the rule, so the grid has
//
//	Columns = (PageW - 2*Margin) / (TileW + HSpacing)
//	Rows    = (PageH - 2*Margin) / (TileH + VSpacing)
//
// slots (integer division, clamped at zero).
//
// # Usage
//
//	g := geometry.Default()
//	if err := g.Validate(); err != nil {
//	    return err // CONFIG_ERROR
//	}
//	perPage := g.TilesPerPage()        // 30 for the defaults (5 x 6)
//	pages := g.PageCount(50)            // 2
//	first, last, ok := g.PageRange(100001, 50, 1) // 100031, 100050, true
package geometry

import (
	"fmt"

	"github.com/matzehuels/qrsheet/pkg/errors"
)

// Defaults for a US Letter page at 300 dpi.
const (
	DefaultPageWidth  = 2550
	DefaultPageHeight = 3300
	DefaultMargin     = 120
	DefaultSpacing    = 20

	// DefaultTileSize is 290 px scaled by 1.5.
	DefaultTileSize = 435
)

// Size is a width/height pair in pixels.
type Size struct {
	W int `json:"width" toml:"width"`
	H int `json:"height" toml:"height"`
}

// String returns the size as "WxH".
func (s Size) String() string { return fmt.Sprintf("%dx%d", s.W, s.H) }

// Geometry holds the page layout parameters. It is a value type; copies are
// independent, so one Geometry can be shared by concurrent page workers.
type Geometry struct {
	PageSize Size `json:"page_size"`
	Margin   int  `json:"margin"`
	HSpacing int  `json:"h_spacing"`
	VSpacing int  `json:"v_spacing"`
	TileSize Size `json:"tile_size"`
}

// Default returns the default geometry: 2550x3300 page, 120 px margin,
// 20 px spacing, 435x435 tiles.
func Default() Geometry {
	return Geometry{
		PageSize: Size{W: DefaultPageWidth, H: DefaultPageHeight},
		Margin:   DefaultMargin,
		HSpacing: DefaultSpacing,
		VSpacing: DefaultSpacing,
		TileSize: Size{W: DefaultTileSize, H: DefaultTileSize},
	}
}

// Validate reports a CONFIG_ERROR for negative or zero sizes and for
// degenerate geometry where not a single tile fits on a page.
func (g Geometry) Validate() error {
	if g.PageSize.W <= 0 || g.PageSize.H <= 0 {
		return errors.New(errors.ErrCodeConfig, "page size must be positive, got %s", g.PageSize)
	}
	if g.TileSize.W <= 0 || g.TileSize.H <= 0 {
		return errors.New(errors.ErrCodeConfig, "tile size must be positive, got %s", g.TileSize)
	}
	if g.Margin < 0 {
		return errors.New(errors.ErrCodeConfig, "margin must be non-negative, got %d", g.Margin)
	}
	if g.HSpacing < 0 || g.VSpacing < 0 {
		return errors.New(errors.ErrCodeConfig, "spacing must be non-negative, got h=%d v=%d", g.HSpacing, g.VSpacing)
	}
	if g.Columns() == 0 {
		return errors.New(errors.ErrCodeConfig,
			"tile width %d (+%d spacing) does not fit page width %d minus %d margin on each side",
			g.TileSize.W, g.HSpacing, g.PageSize.W, g.Margin)
	}
	if g.Rows() == 0 {
		return errors.New(errors.ErrCodeConfig,
			"tile height %d (+%d spacing) does not fit page height %d minus %d margin on each side",
			g.TileSize.H, g.VSpacing, g.PageSize.H, g.Margin)
	}
	return nil
}

// Columns returns the number of tiles per row.
func (g Geometry) Columns() int {
	return fit(g.PageSize.W-2*g.Margin, g.TileSize.W+g.HSpacing)
}

// Rows returns the number of tile rows per page.
func (g Geometry) Rows() int {
	return fit(g.PageSize.H-2*g.Margin, g.TileSize.H+g.VSpacing)
}

// TilesPerPage returns the maximum number of tiles a page holds.
func (g Geometry) TilesPerPage() int {
	return g.Columns() * g.Rows()
}

// PageCount returns ceil(count / TilesPerPage), or 0 for degenerate geometry.
func (g Geometry) PageCount(count int) int {
	per := g.TilesPerPage()
	if per == 0 || count <= 0 {
		return 0
	}
	return (count + per - 1) / per
}

// PageRange returns the inclusive identifier range on page index (0-based)
// for a run of count identifiers beginning at start. ok is false when the
// page index is outside the run.
func (g Geometry) PageRange(start, count, index int) (first, last int, ok bool) {
	per := g.TilesPerPage()
	if per == 0 || index < 0 || index >= g.PageCount(count) {
		return 0, 0, false
	}
	offset := index * per
	n := min(per, count-offset)
	return start + offset, start + offset + n - 1, true
}

// Position returns the top-left corner of slot k (0-based, row-major).
func (g Geometry) Position(k int) (x, y int) {
	cols := g.Columns()
	if cols == 0 {
		return g.Margin, g.Margin
	}
	col, row := k%cols, k/cols
	return g.Margin + col*(g.TileSize.W+g.HSpacing), g.Margin + row*(g.TileSize.H+g.VSpacing)
}

// ColumnFits reports whether a tile placed at x stays inside the right margin.
func (g Geometry) ColumnFits(x int) bool {
	return x+g.TileSize.W+g.HSpacing <= g.PageSize.W-g.Margin
}

// RowFits reports whether a tile placed at y stays inside the bottom margin.
func (g Geometry) RowFits(y int) bool {
	return y+g.TileSize.H+g.VSpacing <= g.PageSize.H-g.Margin
}

// String returns a compact description for logs.
func (g Geometry) String() string {
	return fmt.Sprintf("page %s margin %d spacing %dx%d tile %s", g.PageSize, g.Margin, g.HSpacing, g.VSpacing, g.TileSize)
}

func fit(avail, step int) int {
	if avail <= 0 || step <= 0 {
		return 0
	}
	return avail / step
}

// Package pack fills page canvases with tiles.
//
// A [Packer] pulls tiles from a [Source] one at a time and pastes them onto
// a white canvas in row-major order, starting at (margin, margin). It never
// pulls more tiles than fit on the current page, so the source is the only
// place where unplaced tiles can wait.
//
//	pk, err := pack.New(geometry.Default())
//	for {
//	    page, err := pk.Fill(ctx, producer)
//	    if err != nil {
//	        return err
//	    }
//	    if page.Len() > 0 {
//	        // write page
//	    }
//	    if page.Exhausted {
//	        break
//	    }
//	}
package pack

import (
	"context"
	"image"
	"io"

	"github.com/fogleman/gg"
	"golang.org/x/image/draw"

	"github.com/matzehuels/qrsheet/pkg/errors"
	"github.com/matzehuels/qrsheet/pkg/geometry"
	"github.com/matzehuels/qrsheet/pkg/tile"
)

// Background is the page canvas color.
const Background = "#FFFFFF"

// Source yields tiles in identifier order and returns io.EOF when empty.
type Source interface {
	Next(ctx context.Context) (tile.Tile, error)
}

// Placement records where a tile was pasted.
type Placement struct {
	ID int
	X  int
	Y  int
}

// Page is a filled canvas and the ordered placements on it.
type Page struct {
	Canvas     *image.RGBA
	Placements []Placement

	// Exhausted is set when the source ran out while this page was filled.
	Exhausted bool
}

// Len returns the number of tiles placed on the page.
func (p *Page) Len() int { return len(p.Placements) }

// FirstID returns the identifier of the first placed tile.
func (p *Page) FirstID() int { return p.Placements[0].ID }

// LastID returns the identifier of the last placed tile.
func (p *Page) LastID() int { return p.Placements[len(p.Placements)-1].ID }

// Packer fills pages according to a validated geometry.
type Packer struct {
	g          geometry.Geometry
	background string
}

// Option configures a Packer.
type Option func(*Packer)

// WithBackground sets the canvas color as a hex string. Default #FFFFFF.
func WithBackground(hex string) Option {
	return func(p *Packer) { p.background = hex }
}

// New validates g and returns a Packer for it.
func New(g geometry.Geometry, opts ...Option) (*Packer, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	p := &Packer{g: g, background: Background}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Geometry returns the packer's geometry.
func (p *Packer) Geometry() geometry.Geometry { return p.g }

// Fill places tiles from src onto a new page until the page is full or the
// source is exhausted. An error from src other than io.EOF is returned
// as is; the failed identifier gets no placement.
func (p *Packer) Fill(ctx context.Context, src Source) (*Page, error) {
	g := p.g
	page := &Page{
		Canvas:     p.blank(),
		Placements: make([]Placement, 0, g.TilesPerPage()),
	}

	stepX := g.TileSize.W + g.HSpacing
	stepY := g.TileSize.H + g.VSpacing

rows:
	for y := g.Margin; g.RowFits(y); y += stepY {
		for x := g.Margin; g.ColumnFits(x); x += stepX {
			t, err := src.Next(ctx)
			if err == io.EOF {
				page.Exhausted = true
				break rows
			}
			if err != nil {
				return nil, err
			}
			if b := t.Image.Bounds(); b.Dx() != g.TileSize.W || b.Dy() != g.TileSize.H {
				return nil, &errors.RenderError{
					ID:    t.ID,
					Cause: errors.New(errors.ErrCodeRender, "tile is %dx%d, page expects %s", b.Dx(), b.Dy(), g.TileSize),
				}
			}
			draw.Copy(page.Canvas, image.Pt(x, y), t.Image, t.Image.Bounds(), draw.Src, nil)
			page.Placements = append(page.Placements, Placement{ID: t.ID, X: x, Y: y})
		}
	}

	if page.Len() == 0 && !page.Exhausted {
		return nil, errors.New(errors.ErrCodeConfig, "geometry %s places no tiles", g)
	}
	return page, nil
}

func (p *Packer) blank() *image.RGBA {
	dc := gg.NewContext(p.g.PageSize.W, p.g.PageSize.H)
	dc.SetHexColor(p.background)
	dc.Clear()
	return dc.Image().(*image.RGBA)
}

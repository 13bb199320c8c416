// Package tile produces the rendered, captioned code images that are packed
// onto pages.
//
// A [Producer] yields one [Tile] per identifier in ascending order. Tiles
// are rendered lazily on each call to [Producer.Next], so memory holds at
// most one tile no matter how long the run is. The stream ends with
// [io.EOF] and cannot be restarted.
//
//	p, err := tile.NewProducer(100001, 50)
//	for {
//	    t, err := p.Next(ctx)
//	    if err == io.EOF {
//	        break
//	    }
//	    ...
//	}
//
// Rendering is split into an [Encoder] (identifier to code image) and a
// [Captioner] (decimal text stamped on top). Encoded tiles may be stored in
// a [cache.Cache] and reused by later runs.
package tile

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"strconv"

	"github.com/disintegration/imaging"

	"github.com/matzehuels/qrsheet/pkg/cache"
	"github.com/matzehuels/qrsheet/pkg/errors"
	"github.com/matzehuels/qrsheet/pkg/fonts"
	"github.com/matzehuels/qrsheet/pkg/geometry"
	"github.com/matzehuels/qrsheet/pkg/observability"
)

// Tile is one rendered code image with its identifier. The image is exactly
// the configured tile size.
type Tile struct {
	ID    int
	Image image.Image
}

// Producer lazily renders tiles for a contiguous identifier range.
// It is not safe for concurrent use.
type Producer struct {
	next, end int

	size      geometry.Size
	encoder   Encoder
	captioner Captioner
	caption   bool
	fontSize  float64

	cache cache.Cache
	keyer cache.Keyer
}

// Option configures a Producer.
type Option func(*Producer)

// WithTileSize sets the tile size. Default 435x435.
func WithTileSize(s geometry.Size) Option {
	return func(p *Producer) { p.size = s }
}

// WithEncoder replaces the QR encoder.
func WithEncoder(e Encoder) Option {
	return func(p *Producer) { p.encoder = e }
}

// WithCaptionFontSize sets the caption size in points. Default 40.
func WithCaptionFontSize(size float64) Option {
	return func(p *Producer) { p.fontSize = size }
}

// WithCaption enables or disables captions. Default enabled.
func WithCaption(enabled bool) Option {
	return func(p *Producer) { p.caption = enabled }
}

// WithCache stores encoded tiles in c under keys from k. A nil keyer uses
// the default keyer.
func WithCache(c cache.Cache, k cache.Keyer) Option {
	return func(p *Producer) {
		p.cache = c
		p.keyer = k
	}
}

// NewProducer creates a producer for identifiers start … start+count-1.
func NewProducer(start, count int, opts ...Option) (*Producer, error) {
	if err := errors.ValidateRange(start, count); err != nil {
		return nil, err
	}
	p := &Producer{
		next:     start,
		end:      start + count,
		size:     geometry.Size{W: geometry.DefaultTileSize, H: geometry.DefaultTileSize},
		caption:  true,
		fontSize: fonts.DefaultSize,
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.size.W <= 0 || p.size.H <= 0 {
		return nil, errors.New(errors.ErrCodeConfig, "tile size must be positive, got %s", p.size)
	}
	if p.encoder == nil {
		p.encoder = NewQREncoder()
	}
	if p.caption && p.captioner == nil {
		c, err := NewTextCaptioner(p.fontSize)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeConfig, err, "caption font")
		}
		p.captioner = c
	}
	if p.cache != nil && p.keyer == nil {
		p.keyer = cache.NewDefaultKeyer()
	}
	return p, nil
}

// Next renders and returns the next tile. It returns io.EOF once every
// identifier has been produced, and a *errors.RenderError if the tile for
// the current identifier cannot be rendered.
func (p *Producer) Next(ctx context.Context) (Tile, error) {
	if err := ctx.Err(); err != nil {
		return Tile{}, err
	}
	if p.next >= p.end {
		return Tile{}, io.EOF
	}
	id := p.next
	p.next++

	img, err := p.render(ctx, id)
	if err != nil {
		return Tile{}, &errors.RenderError{ID: id, Cause: err}
	}
	return Tile{ID: id, Image: img}, nil
}

// Skip advances past up to n identifiers without rendering them and
// returns how many were skipped.
func (p *Producer) Skip(n int) int {
	n = max(0, min(n, p.Remaining()))
	p.next += n
	return n
}

// Remaining returns the number of identifiers not yet produced.
func (p *Producer) Remaining() int {
	return p.end - p.next
}

func (p *Producer) render(ctx context.Context, id int) (image.Image, error) {
	key := ""
	if p.cache != nil {
		key = p.keyer.TileKey(id, p.keyOpts())
		if img, ok := p.cached(ctx, key); ok {
			return img, nil
		}
	}

	img, err := p.encoder.Encode(ctx, id, p.size)
	if err != nil {
		return nil, err
	}
	if b := img.Bounds(); b.Dx() != p.size.W || b.Dy() != p.size.H {
		return nil, fmt.Errorf("encoder returned %dx%d image, want %s", b.Dx(), b.Dy(), p.size)
	}
	if p.caption {
		if img, err = p.captioner.Caption(img, strconv.Itoa(id)); err != nil {
			return nil, fmt.Errorf("caption: %w", err)
		}
	}

	if p.cache != nil {
		p.store(ctx, key, img)
	}
	return img, nil
}

// cached returns a decoded tile on a hit. Unreadable or mis-sized entries
// count as misses.
func (p *Producer) cached(ctx context.Context, key string) (image.Image, bool) {
	data, hit, err := p.cache.Get(ctx, key)
	if err != nil || !hit {
		observability.Cache().OnCacheMiss(ctx, "tile")
		return nil, false
	}
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil || img.Bounds().Dx() != p.size.W || img.Bounds().Dy() != p.size.H {
		observability.Cache().OnCacheMiss(ctx, "tile")
		return nil, false
	}
	observability.Cache().OnCacheHit(ctx, "tile")
	return img, true
}

func (p *Producer) store(ctx context.Context, key string, img image.Image) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return
	}
	if err := p.cache.Set(ctx, key, buf.Bytes(), cache.TileTTL); err == nil {
		observability.Cache().OnCacheSet(ctx, "tile", buf.Len())
	}
}

func (p *Producer) keyOpts() cache.TileKeyOpts {
	opts := cache.TileKeyOpts{Size: p.size.String(), Caption: p.caption}
	if p.caption {
		opts.FontSize = p.fontSize
	}
	if k, ok := p.encoder.(CacheKeyer); ok {
		opts.Encoder = k.CacheKey()
	} else {
		opts.Encoder = fmt.Sprintf("%T", p.encoder)
	}
	return opts
}

package cache

import "strconv"

// TileKeyOpts holds every rendering parameter that changes a tile's pixels.
type TileKeyOpts struct {
	Size     string  `json:"size"`      // tile size, e.g. "435x435"
	FontSize float64 `json:"font_size"` // caption font size in points
	Caption  bool    `json:"caption"`   // whether the caption is stamped
	Encoder  string  `json:"encoder"`   // encoder identity, e.g. "qr-M-qz4"
}

// Keyer generates cache keys.
type Keyer interface {
	// TileKey returns the key for the rendered tile of identifier id.
	TileKey(id int, opts TileKeyOpts) string
}

// DefaultKeyer produces keys of the form "tile:<sha256>".
type DefaultKeyer struct{}

// NewDefaultKeyer returns the default keyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// TileKey hashes the identifier together with the rendering options.
func (DefaultKeyer) TileKey(id int, opts TileKeyOpts) string {
	return hashKey("tile", strconv.Itoa(id), opts)
}

var _ Keyer = DefaultKeyer{}

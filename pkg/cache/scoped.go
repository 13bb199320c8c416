package cache

// ScopedKeyer wraps a Keyer with a prefix so independent deployments can
// share one cache backend without colliding.
//
// Example usage:
//
//	// Keys for the warehouse label batch
//	k := NewScopedKeyer(NewDefaultKeyer(), "warehouse:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// TileKey generates a prefixed tile key.
func (k *ScopedKeyer) TileKey(id int, opts TileKeyOpts) string {
	return k.prefix + k.inner.TileKey(id, opts)
}

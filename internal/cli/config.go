package cli

import (
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/qrsheet/pkg/errors"
	"github.com/matzehuels/qrsheet/pkg/pipeline"
)

// fileConfig mirrors the TOML configuration file.
//
//	start = 100001
//	count = 300
//	output_dir = "out"
//
//	[page]
//	margin = 150
//
//	[tile]
//	caption = false
type fileConfig struct {
	Start     int    `toml:"start"`
	Count     int    `toml:"count"`
	Prefix    string `toml:"prefix"`
	OutputDir string `toml:"output_dir"`
	PagesDir  string `toml:"pages_dir"`
	Workers   int    `toml:"workers"`
	Resume    bool   `toml:"resume"`
	Publish   string `toml:"publish"`

	Page struct {
		Width    int `toml:"width"`
		Height   int `toml:"height"`
		Margin   int `toml:"margin"`
		HSpacing int `toml:"h_spacing"`
		VSpacing int `toml:"v_spacing"`
		DPI      int `toml:"dpi"`
	} `toml:"page"`

	Tile struct {
		Width           int     `toml:"width"`
		Height          int     `toml:"height"`
		CaptionFontSize float64 `toml:"caption_font_size"`
		Caption         bool    `toml:"caption"`
		Level           string  `toml:"level"`
	} `toml:"tile"`

	Merge struct {
		Lenient bool `toml:"lenient"`
	} `toml:"merge"`
}

// config is a decoded configuration file together with the keys it sets.
type config struct {
	file fileConfig
	md   toml.MetaData
}

// loadConfig decodes the TOML file at path. Unknown keys are rejected so
// typos do not silently fall back to defaults.
func loadConfig(path string) (*config, error) {
	var cfg config
	md, err := toml.DecodeFile(path, &cfg.file)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfig, err, "read config %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, errors.New(errors.ErrCodeConfig, "config %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	cfg.md = md
	return &cfg, nil
}

// configBinding ties a file key to the flag that overrides it.
type configBinding struct {
	key   []string
	flag  string
	apply func(f *fileConfig, o *pipeline.Options)
}

var configBindings = []configBinding{
	{[]string{"start"}, "start", func(f *fileConfig, o *pipeline.Options) { o.Start = f.Start }},
	{[]string{"count"}, "count", func(f *fileConfig, o *pipeline.Options) { o.Count = f.Count }},
	{[]string{"prefix"}, "prefix", func(f *fileConfig, o *pipeline.Options) { o.Prefix = f.Prefix }},
	{[]string{"output_dir"}, "out", func(f *fileConfig, o *pipeline.Options) { o.OutputDir = f.OutputDir }},
	{[]string{"pages_dir"}, "pages-dir", func(f *fileConfig, o *pipeline.Options) { o.PagesDir = f.PagesDir }},
	{[]string{"workers"}, "workers", func(f *fileConfig, o *pipeline.Options) { o.Workers = f.Workers }},
	{[]string{"resume"}, "resume", func(f *fileConfig, o *pipeline.Options) { o.Resume = f.Resume }},
	{[]string{"publish"}, "publish", func(f *fileConfig, o *pipeline.Options) { o.Publish = f.Publish }},

	{[]string{"page", "width"}, "page-width", func(f *fileConfig, o *pipeline.Options) { o.Geometry.PageSize.W = f.Page.Width }},
	{[]string{"page", "height"}, "page-height", func(f *fileConfig, o *pipeline.Options) { o.Geometry.PageSize.H = f.Page.Height }},
	{[]string{"page", "margin"}, "margin", func(f *fileConfig, o *pipeline.Options) { o.Geometry.Margin = f.Page.Margin }},
	{[]string{"page", "h_spacing"}, "h-spacing", func(f *fileConfig, o *pipeline.Options) { o.Geometry.HSpacing = f.Page.HSpacing }},
	{[]string{"page", "v_spacing"}, "v-spacing", func(f *fileConfig, o *pipeline.Options) { o.Geometry.VSpacing = f.Page.VSpacing }},
	{[]string{"page", "dpi"}, "dpi", func(f *fileConfig, o *pipeline.Options) { o.DPI = f.Page.DPI }},

	{[]string{"tile", "width"}, "tile-width", func(f *fileConfig, o *pipeline.Options) { o.Geometry.TileSize.W = f.Tile.Width }},
	{[]string{"tile", "height"}, "tile-height", func(f *fileConfig, o *pipeline.Options) { o.Geometry.TileSize.H = f.Tile.Height }},
	{[]string{"tile", "caption_font_size"}, "font-size", func(f *fileConfig, o *pipeline.Options) { o.CaptionFontSize = f.Tile.CaptionFontSize }},
	{[]string{"tile", "caption"}, "no-caption", func(f *fileConfig, o *pipeline.Options) { o.NoCaption = !f.Tile.Caption }},
	{[]string{"tile", "level"}, "level", func(f *fileConfig, o *pipeline.Options) { o.Level = f.Tile.Level }},

	{[]string{"merge", "lenient"}, "lenient", func(f *fileConfig, o *pipeline.Options) { o.Lenient = f.Merge.Lenient }},
}

// apply copies every key set in the file into opts, except those whose
// flag was given on the command line.
func (c *config) apply(opts *pipeline.Options, flagChanged func(name string) bool) {
	for _, b := range configBindings {
		if !c.md.IsDefined(b.key...) || flagChanged(b.flag) {
			continue
		}
		b.apply(&c.file, opts)
	}
}

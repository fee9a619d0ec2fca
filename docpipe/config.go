// CLAUDE:SUMMARY Configuration struct and defaults for the ultrabuf conversion pipeline.
package docpipe

import (
	"log/slog"
	"runtime"

	"github.com/hazyhaar/ultradoc/wire"
)

// Config configures the conversion pipeline.
type Config struct {
	// MaxPayloadSize caps envelope and payload sizes (default: 64 MB).
	MaxPayloadSize int64 `json:"max_payload_size" yaml:"max_payload_size" toml:"max_payload_size"`

	// MaxDepth bounds wire-format recursion (default: 20).
	MaxDepth int `json:"max_depth" yaml:"max_depth" toml:"max_depth"`

	// HeadingAnchor is "start" (default) or "end".
	HeadingAnchor string `json:"heading_anchor" yaml:"heading_anchor" toml:"heading_anchor"`

	// Workers bounds ConvertBatch concurrency (default: GOMAXPROCS).
	Workers int `json:"workers" yaml:"workers" toml:"workers"`

	// Logger for debug/error messages.
	Logger *slog.Logger `json:"-" yaml:"-" toml:"-"`
}

func (c *Config) defaults() {
	if c.MaxPayloadSize <= 0 {
		c.MaxPayloadSize = 64 * 1024 * 1024
	}
	if c.MaxDepth <= 0 {
		c.MaxDepth = wire.DefaultMaxDepth
	}
	if c.HeadingAnchor == "" {
		c.HeadingAnchor = "start"
	}
	if c.Workers <= 0 {
		c.Workers = runtime.GOMAXPROCS(0)
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

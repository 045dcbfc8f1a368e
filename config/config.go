// Package config holds the server's runtime configuration: the pieces
// the CLI in cmd/mfsd gathers from flags before starting the server.
package config

import "github.com/mfsd/mfsd/fsimage"

// Config is the fully-resolved set of parameters needed to start a
// server. Port and ImagePath are the two positional arguments the spec's
// CLI contract requires; everything else is ambient (only consulted when
// an image is created for the first time, or affects logging/metrics,
// never the wire protocol itself).
type Config struct {
	Port      int
	ImagePath string

	BlockSize     uint32
	NumInodes     uint32
	NumDataBlocks uint32

	LogLevel    string
	MetricsAddr string
}

// Default returns a Config with every ambient field set to the spec's
// reference values; Port and ImagePath are left zero for the caller to
// fill in.
func Default() Config {
	return Config{
		BlockSize:     fsimage.DefaultBlockSize,
		NumInodes:     fsimage.DefaultNumInodes,
		NumDataBlocks: fsimage.DefaultNumDataBlocks,
		LogLevel:      "info",
	}
}

// ImageOptions extracts the fsimage.Options this config implies.
func (c Config) ImageOptions() fsimage.Options {
	return fsimage.Options{
		BlockSize:     c.BlockSize,
		NumInodes:     c.NumInodes,
		NumDataBlocks: c.NumDataBlocks,
	}
}

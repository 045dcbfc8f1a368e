// Package geometry provides named, CSV-driven presets for image creation
// parameters, the way disks/disks.go provides named floppy-disk
// geometries for disko. Here the rows describe mfsd image shapes (block
// size, inode count, data block count) instead of physical disk
// parameters, but the lookup-by-slug shape is the same.
package geometry

import (
	"fmt"
	"io"
	"strings"

	"github.com/gocarina/gocsv"

	"github.com/mfsd/mfsd/fsimage"
)

// Preset names one reference image shape.
type Preset struct {
	Slug          string `csv:"slug"`
	BlockSize     uint32 `csv:"block_size"`
	NumInodes     uint32 `csv:"num_inodes"`
	NumDataBlocks uint32 `csv:"num_data_blocks"`
	Notes         string `csv:"notes"`
}

// Options converts a Preset to the fsimage.Options Open expects.
func (p Preset) Options() fsimage.Options {
	return fsimage.Options{
		BlockSize:     p.BlockSize,
		NumInodes:     p.NumInodes,
		NumDataBlocks: p.NumDataBlocks,
	}
}

// rawCSV holds the built-in presets. "reference" reproduces the spec's
// reference values (B=4096, N_i=N_d=32); "tiny" is small enough to
// exhaust inodes and data blocks in a few operations, and "wide-block"
// keeps the reference counts with 8192-byte blocks.
const rawCSV = `slug,block_size,num_inodes,num_data_blocks,notes
reference,4096,32,32,spec reference sizing
tiny,4096,4,4,small enough to exhaust inodes/blocks quickly in tests
wide-block,8192,32,32,larger block size same inode/data counts
`

var presets map[string]Preset

func init() {
	presets = make(map[string]Preset)
	reader := strings.NewReader(rawCSV)
	err := gocsv.UnmarshalToCallback(reader, func(row Preset) error {
		if _, exists := presets[row.Slug]; exists {
			return fmt.Errorf("duplicate geometry preset slug %q", row.Slug)
		}
		presets[row.Slug] = row
		return nil
	})
	if err != nil && err != io.EOF {
		panic(err)
	}
}

// Get looks up a named preset.
func Get(slug string) (Preset, error) {
	preset, ok := presets[slug]
	if !ok {
		return Preset{}, fmt.Errorf("no predefined image geometry exists with slug %q", slug)
	}
	return preset, nil
}

// Names lists every known preset slug, for CLI help text.
func Names() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	return names
}

package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/mfsd/mfsd/fsimage"
	"github.com/mfsd/mfsd/geometry"
)

func main() {
	app := cli.App{
		Name:  "mfsimage",
		Usage: "Create or inspect mfs image files",
		Commands: []*cli.Command{
			{
				Name:      "format",
				Usage:     "Create a fresh image, failing if the path already exists",
				Action:    formatImage,
				ArgsUsage: "IMAGE_PATH",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "geometry",
						Usage: fmt.Sprintf("named geometry preset (%s)", strings.Join(geometry.Names(), ", ")),
						Value: "reference",
					},
				},
			},
			{
				Name:      "inspect",
				Usage:     "Print the superblock and allocator occupancy of an existing image",
				Action:    inspectImage,
				ArgsUsage: "IMAGE_PATH",
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("fatal error: %s", err.Error())
	}
}

func formatImage(ctx *cli.Context) error {
	if ctx.Args().Len() < 1 {
		return cli.Exit("usage: mfsimage format IMAGE_PATH", 1)
	}
	path := ctx.Args().Get(0)

	if _, err := os.Stat(path); err == nil {
		return cli.Exit(fmt.Sprintf("%s already exists, refusing to overwrite", path), 1)
	}

	preset, err := geometry.Get(ctx.String("geometry"))
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	img, err := fsimage.Open(path, preset.Options())
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	defer img.Close()

	fmt.Printf("formatted %s: %d-byte blocks, %d inodes, %d data blocks\n",
		path, img.Superblock.BlockSize, img.Superblock.NumInodes, img.Superblock.NumData)
	return nil
}

func inspectImage(ctx *cli.Context) error {
	if ctx.Args().Len() < 1 {
		return cli.Exit("usage: mfsimage inspect IMAGE_PATH", 1)
	}
	path := ctx.Args().Get(0)

	if _, err := os.Stat(path); err != nil {
		return cli.Exit(fmt.Sprintf("%s: %s", path, err), 1)
	}

	img, err := fsimage.Open(path, fsimage.Options{})
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	defer img.Close()

	sb := img.Superblock
	fmt.Printf("block size:        %d\n", sb.BlockSize)
	fmt.Printf("total blocks:      %d\n", sb.TotalBlocks())
	fmt.Printf("inodes:            %d (in use: %d)\n", sb.NumInodes, img.InodeAlloc.Count())
	fmt.Printf("data blocks:       %d (in use: %d)\n", sb.NumData, img.DataAlloc.Count())
	fmt.Printf("inode bitmap:      block %d, len %d\n", sb.InodeBitmapAddr, sb.InodeBitmapLen)
	fmt.Printf("data bitmap:       block %d, len %d\n", sb.DataBitmapAddr, sb.DataBitmapLen)
	fmt.Printf("inode region:      block %d, len %d\n", sb.InodeRegionAddr, sb.InodeRegionLen)
	fmt.Printf("data region:       block %d, len %d\n", sb.DataRegionAddr, sb.DataRegionLen)
	fmt.Printf("dirents per block: %d\n", sb.DirEntriesPerBlock)

	for i, inode := range img.Inodes {
		if inode.IsFree() {
			continue
		}
		fmt.Printf("inode %-4d type=%d size=%d\n", i, inode.Type, inode.Size)
	}
	return nil
}

package main

import (
	"log"
	"os"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/mfsd/mfsd/config"
	"github.com/mfsd/mfsd/engine"
	"github.com/mfsd/mfsd/fsimage"
	"github.com/mfsd/mfsd/geometry"
	"github.com/mfsd/mfsd/proto"
	"github.com/mfsd/mfsd/server"
)

func main() {
	app := cli.App{
		Name:  "mfsd",
		Usage: "Serve an mfs single-image filesystem over UDP",
		Commands: []*cli.Command{
			{
				Name:      "serve",
				Usage:     "Bind a UDP port and serve requests against an image",
				Action:    serve,
				ArgsUsage: "PORT IMAGE_PATH",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "geometry",
						Usage: "named geometry preset to use if IMAGE_PATH doesn't exist yet",
						Value: "reference",
					},
					&cli.StringFlag{
						Name:  "log-level",
						Usage: "debug, info, warn, or error",
						Value: "info",
					},
					&cli.StringFlag{
						Name:  "metrics-addr",
						Usage: "address to serve /metrics on, e.g. :9090 (empty disables it)",
					},
					&cli.UintFlag{
						Name:  "block-size",
						Usage: "override --geometry's block size; only consulted when IMAGE_PATH doesn't exist yet",
					},
					&cli.UintFlag{
						Name:  "num-inodes",
						Usage: "override --geometry's inode count; only consulted when IMAGE_PATH doesn't exist yet",
					},
					&cli.UintFlag{
						Name:  "num-data-blocks",
						Usage: "override --geometry's data block count; only consulted when IMAGE_PATH doesn't exist yet",
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("fatal error: %s", err.Error())
	}
}

func serve(ctx *cli.Context) error {
	if ctx.Args().Len() < 2 {
		return cli.Exit("usage: mfsd serve PORT IMAGE_PATH", 1)
	}
	port, err := strconv.Atoi(ctx.Args().Get(0))
	if err != nil {
		return cli.Exit("PORT must be an integer: "+err.Error(), 1)
	}
	imagePath := ctx.Args().Get(1)

	cfg := config.Default()
	cfg.Port = port
	cfg.ImagePath = imagePath
	cfg.LogLevel = ctx.String("log-level")
	cfg.MetricsAddr = ctx.String("metrics-addr")

	if preset, err := geometry.Get(ctx.String("geometry")); err == nil {
		cfg.BlockSize = preset.BlockSize
		cfg.NumInodes = preset.NumInodes
		cfg.NumDataBlocks = preset.NumDataBlocks
	} else {
		return cli.Exit(err.Error(), 1)
	}

	// Individual sizing flags take precedence over whatever --geometry chose.
	if ctx.IsSet("block-size") {
		cfg.BlockSize = uint32(ctx.Uint("block-size"))
	}
	if ctx.IsSet("num-inodes") {
		cfg.NumInodes = uint32(ctx.Uint("num-inodes"))
	}
	if ctx.IsSet("num-data-blocks") {
		cfg.NumDataBlocks = uint32(ctx.Uint("num-data-blocks"))
	}

	logger := config.NewLogger(cfg.LogLevel)

	img, err := fsimage.Open(cfg.ImagePath, cfg.ImageOptions())
	if err != nil {
		logger.Fatalf("failed to open image %s: %s", cfg.ImagePath, err)
	}

	eng := engine.New(img)
	dispatcher := proto.NewDispatcher(eng)

	srv, err := server.New(cfg.Port, img, dispatcher, logger)
	if err != nil {
		logger.Fatalf("failed to start server: %s", err)
	}
	srv.ServeMetrics(cfg.MetricsAddr)

	logger.Infof("serving %s on udp port %d", cfg.ImagePath, cfg.Port)
	os.Exit(srv.Serve())
	return nil
}

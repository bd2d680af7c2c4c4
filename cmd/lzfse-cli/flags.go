package main

import (
	"context"
	"fmt"

	"github.com/lzfse-cli/lzfse-cli/internal/engine"
	"github.com/lzfse-cli/lzfse-cli/internal/engine/codecs"
	"github.com/urfave/cli/v3"
)

const (
	categoryPipeline = "Pipeline"
	categoryPublish  = "Publish"
	categoryLogging  = "Logging"
)

// Flags carry parse state, so every app gets fresh instances.
func newOperationFlags() cli.MutuallyExclusiveFlags {
	return cli.MutuallyExclusiveFlags{
		Flags: [][]cli.Flag{
			{
				&cli.BoolFlag{
					Name:    "encode",
					Aliases: []string{"e"},
					Usage:   "Compress a file, or archive and compress a directory",
				},
			},
			{
				&cli.BoolFlag{
					Name:    "decode",
					Aliases: []string{"d"},
					Usage:   "Decompress a .lzfse file or extract a .aar archive",
				},
			},
		},
	}
}

func newRootFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "input",
			Aliases: []string{"i"},
			Usage:   "Input file or directory",
			Sources: cli.EnvVars("LZFSE_INPUT"),
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Directory receiving the output (default: beside the input)",
			Sources: cli.EnvVars("LZFSE_OUTPUT"),
		},
		&cli.BoolFlag{
			Name:    "force",
			Aliases: []string{"f"},
			Usage:   "Replace an existing output",
			Sources: cli.EnvVars("LZFSE_FORCE"),
		},
		&cli.StringFlag{
			Name:    "config",
			Usage:   "YAML configuration file; flags override its settings",
			Sources: cli.EnvVars("LZFSE_CONFIG"),
		},
		&cli.StringFlag{
			Name:    "report",
			Value:   "auto",
			Usage:   "Summary format (auto, text, json); auto prints text on a terminal",
			Sources: cli.EnvVars("LZFSE_REPORT"),
			Action: func(ctx context.Context, command *cli.Command, s string) error {
				switch s {
				case "auto", "text", "json":
					return nil
				default:
					return fmt.Errorf("invalid report format %q", s)
				}
			},
		},
		&cli.IntFlag{
			Name:     "block-size",
			Value:    engine.DefaultBlockSize,
			Usage:    "Uncompressed block size in bytes",
			Category: categoryPipeline,
			Sources:  cli.EnvVars("LZFSE_BLOCK_SIZE"),
		},
		&cli.IntFlag{
			Name:     "threads",
			Aliases:  []string{"t"},
			Usage:    "Blocks processed concurrently (0 uses every CPU)",
			Category: categoryPipeline,
			Sources:  cli.EnvVars("LZFSE_THREADS"),
		},
		&cli.StringFlag{
			Name:     "codec",
			Aliases:  []string{"c"},
			Value:    string(codecs.Default),
			Usage:    "Block codec used when encoding (none, zstd, lz4, snappy, brotli, gzip)",
			Category: categoryPipeline,
			Sources:  cli.EnvVars("LZFSE_CODEC"),
		},
		&cli.BoolFlag{
			Name:     "keep-partial",
			Usage:    "Leave the output of a failed operation in place",
			Category: categoryPipeline,
			Sources:  cli.EnvVars("LZFSE_KEEP_PARTIAL"),
		},
		&cli.StringFlag{
			Name:     "s3-bucket",
			Usage:    "Upload encoded output to this S3 bucket",
			Category: categoryPublish,
			Sources:  cli.EnvVars("LZFSE_S3_BUCKET"),
		},
		&cli.StringFlag{
			Name:     "s3-prefix",
			Usage:    "Key prefix of uploads; accepts ${VAR} templates",
			Category: categoryPublish,
			Sources:  cli.EnvVars("LZFSE_S3_PREFIX"),
		},
		&cli.StringFlag{
			Name:     "s3-region",
			Category: categoryPublish,
			Sources:  cli.EnvVars("LZFSE_S3_REGION"),
		},
		&cli.StringFlag{
			Name:     "s3-endpoint",
			Usage:    "Endpoint of an S3 compatible service",
			Category: categoryPublish,
			Sources:  cli.EnvVars("LZFSE_S3_ENDPOINT"),
		},
		&cli.BoolFlag{
			Name:     "s3-force-path-style",
			Category: categoryPublish,
			Sources:  cli.EnvVars("LZFSE_S3_FORCE_PATH_STYLE"),
		},
		&cli.StringFlag{
			Name:     "mirror-dir",
			Usage:    "Copy encoded output into this directory; accepts ${VAR} templates",
			Category: categoryPublish,
			Sources:  cli.EnvVars("LZFSE_MIRROR_DIR"),
		},
		&cli.StringSliceFlag{
			Name:     "allowed-env",
			Usage:    "Environment variables usable in publish templates (can be repeated)",
			Category: categoryPublish,
		},
		&cli.BoolFlag{
			Name:     "debug",
			Usage:    "Enable debug logging",
			Category: categoryLogging,
			Sources:  cli.EnvVars("LZFSE_DEBUG"),
		},
		&cli.StringFlag{
			Name:     "log-level",
			Aliases:  []string{"l"},
			Value:    "warn",
			Usage:    "Log Level (debug, info, warn, error, fatal)",
			Category: categoryLogging,
			Sources:  cli.EnvVars("LZFSE_LOG_LEVEL"),
		},
	}
}

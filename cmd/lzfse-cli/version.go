package main

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/lzfse-cli/lzfse-cli/internal/engine/codecs"
	"github.com/urfave/cli/v3"
)

// Build information populated at init() from debug.ReadBuildInfo().
var (
	Version   = "unknown"
	GoVersion = "unknown"
	Commit    = "unknown"
	Modified  bool
)

func init() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}

	Version = info.Main.Version
	GoVersion = info.GoVersion
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			Commit = setting.Value
		case "vcs.modified":
			Modified = setting.Value == "true"
		}
	}
}

func newVersionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print version information and the available codecs",
		Action: func(ctx context.Context, command *cli.Command) error {
			registry, err := codecs.NewRegistry()
			if err != nil {
				return err
			}

			w := command.Root().Writer
			fmt.Fprintf(w, "version: %s\n", Version)
			fmt.Fprintf(w, "go: %s\n", GoVersion)
			if Commit != "unknown" {
				dirty := ""
				if Modified {
					dirty = " (dirty)"
				}
				fmt.Fprintf(w, "commit: %s%s\n", Commit, dirty)
			}
			fmt.Fprintf(w, "codecs: %s (default %s)\n", strings.Join(registry.Available(), ", "), codecs.Default)
			return nil
		},
	}
}

package main

import (
	"os"

	"github.com/lzfse-cli/lzfse-cli/internal/report"
	"golang.org/x/term"
)

// reportFormat picks human text when stdout is a terminal outside CI and
// JSON otherwise.
func reportFormat(out *os.File) report.Format {
	if os.Getenv("CI") != "" {
		return report.FormatJSON
	}
	if term.IsTerminal(int(out.Fd())) {
		return report.FormatText
	}
	return report.FormatJSON
}

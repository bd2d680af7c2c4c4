// Package report renders the outcome of an operation for the user.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/lzfse-cli/lzfse-cli/internal/engine"
	"github.com/samber/lo"
)

// Format selects how a Summary is rendered.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// Summary describes one finished operation.
type Summary struct {
	Operation  engine.Operation `json:"operation"`
	Target     engine.Target    `json:"target"`
	Input      string           `json:"input"`
	Output     string           `json:"output"`
	InputSize  uint64           `json:"input_size"`
	OutputSize uint64           `json:"output_size"`
	Ratio      float64          `json:"ratio"`
	Duration   time.Duration    `json:"duration_ns"`
	Skipped    []SkippedEntry   `json:"skipped,omitempty"`
}

// SkippedEntry is an extracted entry whose metadata was left unapplied.
type SkippedEntry struct {
	Path   string `json:"path"`
	Type   string `json:"type"`
	Reason string `json:"reason,omitempty"`
}

func NewSummary(op engine.Operation, target engine.Target, input, output string, result engine.Result, duration time.Duration) Summary {
	return Summary{
		Operation:  op,
		Target:     target,
		Input:      input,
		Output:     output,
		InputSize:  result.InputSize,
		OutputSize: result.OutputSize,
		Ratio:      result.Ratio(),
		Duration:   duration,
		Skipped: lo.Map(result.Skipped(), func(e engine.EntryResult, _ int) SkippedEntry {
			s := SkippedEntry{Path: e.Path, Type: e.Type}
			if e.Err != nil {
				s.Reason = e.Err.Error()
			}
			return s
		}),
	}
}

// Write renders s to w in format.
func Write(w io.Writer, format Format, s Summary) error {
	switch format {
	case FormatJSON:
		encoder := json.NewEncoder(w)
		if err := encoder.Encode(s); err != nil {
			return fmt.Errorf("failed to encode summary as JSON: %w", err)
		}
		return nil
	case FormatText:
		return writeText(w, s)
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
}

func writeText(w io.Writer, s Summary) error {
	verb := "Compressed"
	if s.Operation == engine.OperationDecode {
		verb = "Decompressed"
	}
	_, err := fmt.Fprintf(w, "%s %s %s -> %s\n  %s -> %s (ratio %.3f) in %s\n",
		verb, s.Target, s.Input, s.Output,
		HumanSize(s.InputSize), HumanSize(s.OutputSize), s.Ratio,
		s.Duration.Round(time.Millisecond))
	if err != nil {
		return err
	}
	if len(s.Skipped) == 0 {
		return nil
	}
	if _, err := fmt.Fprintf(w, "  %d entries extracted without full metadata (insufficient privileges):\n", len(s.Skipped)); err != nil {
		return err
	}
	for _, e := range s.Skipped {
		if _, err := fmt.Fprintf(w, "    %s (%s)\n", e.Path, e.Type); err != nil {
			return err
		}
	}
	return nil
}

// HumanSize formats n with a binary unit.
func HumanSize(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

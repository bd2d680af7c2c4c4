package engine

// Result is produced by a successful run. Sizes are byte counts taken from the
// filesystem after the chain has been closed.
type Result struct {
	InputSize  uint64        `json:"input_size"`
	OutputSize uint64        `json:"output_size"`
	Entries    []EntryResult `json:"entries,omitempty"`
}

// Ratio returns OutputSize/InputSize, or 0 for an empty input.
func (r Result) Ratio() float64 {
	if r.InputSize == 0 {
		return 0
	}
	return float64(r.OutputSize) / float64(r.InputSize)
}

// Skipped returns the entries whose metadata could not be fully applied.
func (r Result) Skipped() []EntryResult {
	var skipped []EntryResult
	for _, e := range r.Entries {
		if e.Outcome == OutcomeSkippedPermission {
			skipped = append(skipped, e)
		}
	}
	return skipped
}

type EntryOutcome string

const (
	OutcomeApplied           EntryOutcome = "applied"
	OutcomeSkippedPermission EntryOutcome = "skipped_permission"
)

// EntryResult records what extraction did with a single archive entry.
type EntryResult struct {
	Path    string       `json:"path"`
	Type    string       `json:"type"`
	Outcome EntryOutcome `json:"outcome"`
	Err     error        `json:"-"`
}

package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/lzfse-cli/lzfse-cli/internal/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResult() engine.Result {
	return engine.Result{
		InputSize:  4096,
		OutputSize: 1024,
		Entries: []engine.EntryResult{
			{Path: ".", Type: "directory", Outcome: engine.OutcomeApplied},
			{Path: "dev/null", Type: "character device", Outcome: engine.OutcomeSkippedPermission, Err: errors.New("operation not permitted")},
		},
	}
}

func TestNewSummary(t *testing.T) {
	s := NewSummary(engine.OperationDecode, engine.TargetDirectory, "in.aar", "in", sampleResult(), time.Second)

	assert.Equal(t, 0.25, s.Ratio)
	require.Len(t, s.Skipped, 1)
	assert.Equal(t, SkippedEntry{Path: "dev/null", Type: "character device", Reason: "operation not permitted"}, s.Skipped[0])
}

func TestWrite_JSON(t *testing.T) {
	s := NewSummary(engine.OperationEncode, engine.TargetFile, "a.txt", "a.txt.lzfse", engine.Result{InputSize: 10, OutputSize: 5}, 2*time.Millisecond)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatJSON, s))

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "encode", got["operation"])
	assert.Equal(t, "file", got["target"])
	assert.Equal(t, "a.txt.lzfse", got["output"])
	assert.InDelta(t, 0.5, got["ratio"], 1e-9)
	assert.InDelta(t, 2e6, got["duration_ns"], 1e-9)
	assert.NotContains(t, got, "skipped")
}

func TestWrite_Text(t *testing.T) {
	s := NewSummary(engine.OperationDecode, engine.TargetDirectory, "in.aar", "in", sampleResult(), 1500*time.Millisecond)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatText, s))

	out := buf.String()
	assert.Contains(t, out, "Decompressed directory in.aar -> in")
	assert.Contains(t, out, "4.0 KiB -> 1.0 KiB (ratio 0.250) in 1.5s")
	assert.Contains(t, out, "1 entries extracted without full metadata")
	assert.Contains(t, out, "dev/null (character device)")
}

func TestWrite_UnknownFormat(t *testing.T) {
	assert.Error(t, Write(&bytes.Buffer{}, Format("xml"), Summary{}))
}

func TestHumanSize(t *testing.T) {
	tests := []struct {
		n    uint64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{1 << 20, "1.0 MiB"},
		{5 << 30, "5.0 GiB"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HumanSize(tt.n))
	}
}

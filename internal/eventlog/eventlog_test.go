package eventlog

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendWritesOneJSONLinePerCall(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "events.jsonl")
	w, err := NewWriter(path)
	require.NoError(t, err)

	require.NoError(t, w.Append(NewEnvelope(TypeScanSummary, map[string]int{"event_count": 3})))
	require.NoError(t, w.Append(NewEnvelope(TypeDetection, map[string]int{"event_count": 9})))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	scanner := bufio.NewScanner(f)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	require.Len(t, lines, 2)

	var first Envelope
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, TypeScanSummary, first.Type)

	var second Envelope
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, TypeDetection, second.Type)
}

func TestNewWriterCreatesParentDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deep", "events.jsonl")
	_, err := NewWriter(path)
	require.NoError(t, err)
	assert.DirExists(t, filepath.Dir(path))
}

package engine

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestQuarantineEntryMarshalsAsArray covers the recovery-log wire format the
// external recovery CLI requires: a 3-element list, not an object, with a
// null middle element when there is no destination.
func TestQuarantineEntryMarshalsAsArray(t *testing.T) {
	moved := QuarantineEntry{Original: "/a/b.txt", Destination: "/q/1_b.txt", Status: "moved"}
	b, err := json.Marshal(moved)
	require.NoError(t, err)
	assert.JSONEq(t, `["/a/b.txt","/q/1_b.txt","moved"]`, string(b))

	var decoded []any
	require.NoError(t, json.Unmarshal(b, &decoded))
	require.Len(t, decoded, 3)

	failed := QuarantineEntry{Original: "/a/missing.txt", Status: "file_not_found"}
	b, err = json.Marshal(failed)
	require.NoError(t, err)
	assert.JSONEq(t, `["/a/missing.txt",null,"file_not_found"]`, string(b))
}

func TestQuarantineRecordMovedIsListOfArrays(t *testing.T) {
	rec := QuarantineRecord{
		Moved: []QuarantineEntry{
			{Original: "/a", Destination: "/q/a", Status: "moved"},
			{Original: "/b", Status: "in_progress"},
		},
		TotalFiles: 2,
		Successful: 1,
	}
	b, err := json.Marshal(rec)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(b, &raw))
	moved, ok := raw["moved"].([]any)
	require.True(t, ok, "moved must decode as a JSON array of entries")
	require.Len(t, moved, 2)
	for _, entry := range moved {
		_, isList := entry.([]any)
		assert.True(t, isList, "each moved entry must be a JSON array, not an object")
	}
}

package entropy

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShannonConstantIsZero(t *testing.T) {
	b := make([]byte, 4096)
	for i := range b {
		b[i] = 0x41
	}
	assert.Equal(t, 0.0, Shannon(b))
}

func TestShannonEmptyIsZero(t *testing.T) {
	assert.Equal(t, 0.0, Shannon(nil))
}

func TestShannonRangeAndRandomHigh(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	b := make([]byte, 65536)
	_, err := r.Read(b)
	require.NoError(t, err)

	h := Shannon(b)
	assert.GreaterOrEqual(t, h, 0.0)
	assert.LessOrEqual(t, h, 8.0)
	assert.Greater(t, h, 7.0)
}

func TestSampleMissingFileIsZero(t *testing.T) {
	assert.Equal(t, 0.0, Sample(filepath.Join(t.TempDir(), "does-not-exist"), 4096))
}

func TestSampleShorterThanRequestedBytes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "short.bin")
	require.NoError(t, os.WriteFile(path, []byte("aaaa"), 0600))

	assert.Equal(t, 0.0, Sample(path, 4096))
}

func TestSampleHighEntropyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "random.bin")

	r := rand.New(rand.NewSource(2))
	b := make([]byte, 8192)
	_, err := r.Read(b)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0600))

	h := Sample(path, 4096)
	assert.Greater(t, h, 7.0)
}

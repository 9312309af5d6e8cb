package aggregator

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordAndDrainRecent(t *testing.T) {
	a := New(60, nil)
	a.Record("/tmp/a")
	a.Record("/tmp/b")

	paths := a.DrainRecent()
	require.Len(t, paths, 2)
	assert.Equal(t, []string{"/tmp/a", "/tmp/b"}, paths)
}

func TestDrainRecentPrunesStaleEvents(t *testing.T) {
	a := New(0, nil)
	a.Record("/tmp/stale")
	time.Sleep(5 * time.Millisecond)

	paths := a.DrainRecent()
	assert.Empty(t, paths)
	assert.Equal(t, 0, a.Len())
}

func TestDrainRecentIsDestructive(t *testing.T) {
	a := New(60, nil)
	a.Record("/tmp/a")

	first := a.DrainRecent()
	require.Len(t, first, 1)

	second := a.DrainRecent()
	assert.Empty(t, second)
}

func TestUICallbackCoalescedToOncePerSecond(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	a := New(60, func(string) {
		mu.Lock()
		calls++
		mu.Unlock()
	})

	for i := 0; i < 20; i++ {
		a.Record("/tmp/burst")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, calls)
}

package engine

import (
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ransomwatch/internal/config"
	"ransomwatch/internal/logging"
	"ransomwatch/internal/process"
)

// syncSink collects UI strings behind a mutex; the engine may invoke its
// callback from more than one goroutine concurrently.
type syncSink struct {
	mu       sync.Mutex
	messages []string
}

func (s *syncSink) record(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
}

func (s *syncSink) contains(want string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.messages {
		if m == want {
			return true
		}
	}
	return false
}

// fakeInspector lets tests control EnumerateSuspicious/Attribute/Terminate
// without depending on the real host's process table.
type fakeInspector struct {
	candidate  *process.Candidate
	terminated []process.Candidate
}

func (f *fakeInspector) EnumerateSuspicious(process.Thresholds) *process.Candidate {
	return f.candidate
}

func (f *fakeInspector) Attribute(string) *process.Holder { return nil }

// Terminate mirrors the real Inspector's critical-pid guard: a denylisted
// candidate is reported as skipped without ever being recorded as an
// attempted termination, matching process_linux.go's terminateOne.
func (f *fakeInspector) Terminate(c process.Candidate) process.TerminationResult {
	if c.PID <= 10 {
		return process.TerminationResult{
			Principal: process.ChildOutcome{PID: c.PID, Name: c.Name, Status: "skipped_critical"},
		}
	}
	f.terminated = append(f.terminated, c)
	return process.TerminationResult{
		Principal: process.ChildOutcome{PID: c.PID, Name: c.Name, Status: "terminated_gracefully"},
	}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	base := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.WindowSeconds = 60
	cfg.ModifiedThreshold = 1
	cfg.EntropyThreshold = 1.0
	cfg.HighEntropyCount = 1
	cfg.SampleEntropyCount = 5
	cfg.DetectionScoreThreshold = 10
	cfg.AutoQuarantine = true
	cfg.QuarantineDir = filepath.Join(base, "quarantine")
	cfg.LogsDir = filepath.Join(base, "logs")
	cfg.LogPath = filepath.Join(base, "logs", "ransomwatchd.log")
	cfg.CheckInterval = 3600
	return cfg
}

func newTestEngine(t *testing.T) (*Engine, *fakeInspector) {
	t.Helper()
	cfg := testConfig(t)

	logger, err := logging.New(&logging.Config{
		Level:  logging.LevelError,
		Format: logging.FormatText,
		Output: "stderr",
	})
	require.NoError(t, err)

	eng, err := New(cfg, logger, func(string) {})
	require.NoError(t, err)

	fake := &fakeInspector{}
	eng.inspector = fake

	return eng, fake
}

func writeRandomFile(t *testing.T, dir, name string, size int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	b := make([]byte, size)
	_, err := rand.New(rand.NewSource(int64(len(name)))).Read(b)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0600))
	return path
}

func writeZeroFile(t *testing.T, dir, name string, size int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0600))
	return path
}

// TestHighEntropyWaveTriggersQuarantine covers S1.
func TestHighEntropyWaveTriggersQuarantine(t *testing.T) {
	eng, _ := newTestEngine(t)
	src := t.TempDir()

	var files []string
	for i := 0; i < 5; i++ {
		files = append(files, writeRandomFile(t, src, filepathName(i), 8192))
	}
	for _, f := range files {
		eng.agg.Record(f)
	}

	eng.CheckNow()
	eng.respWG.Wait()

	entries, err := os.ReadDir(eng.cfg.QuarantineDir)
	require.NoError(t, err)
	assert.Len(t, entries, 5)

	for _, f := range files {
		_, err := os.Stat(f)
		assert.True(t, os.IsNotExist(err))
	}
}

// TestLowEntropyDoesNotTrigger covers S2.
func TestLowEntropyDoesNotTrigger(t *testing.T) {
	eng, _ := newTestEngine(t)
	// Five events against modified_threshold=1 saturate the rate term at 40
	// points on their own, which already clears the shared test config's
	// score trigger of 10; raise the trigger above 40 so that only the
	// entropy signal can decide.
	eng.cfg.DetectionScoreThreshold = 50
	src := t.TempDir()

	for i := 0; i < 5; i++ {
		f := writeZeroFile(t, src, filepathName(i), 8192)
		eng.agg.Record(f)
	}

	eng.CheckNow()
	eng.respWG.Wait()

	// New creates the quarantine directory up front; it must stay empty.
	entries, err := os.ReadDir(eng.cfg.QuarantineDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

// TestAutoQuarantineDisabled covers S3.
func TestAutoQuarantineDisabled(t *testing.T) {
	eng, _ := newTestEngine(t)
	eng.cfg.AutoQuarantine = false

	sink := &syncSink{}
	eng.uiSink = sink.record

	src := t.TempDir()
	var files []string
	for i := 0; i < 5; i++ {
		files = append(files, writeRandomFile(t, src, filepathName(i), 8192))
	}
	for _, f := range files {
		eng.agg.Record(f)
	}

	eng.CheckNow()
	eng.respWG.Wait()

	for _, f := range files {
		_, err := os.Stat(f)
		assert.NoError(t, err)
	}

	assert.True(t, sink.contains("Auto-quarantine is DISABLED; files left in place"))
}

// TestMissingFileDuringQuarantine covers S5.
func TestMissingFileDuringQuarantine(t *testing.T) {
	eng, _ := newTestEngine(t)
	src := t.TempDir()

	present := writeRandomFile(t, src, "present.bin", 8192)
	vanished := writeRandomFile(t, src, "vanished.bin", 8192)

	eng.agg.Record(present)
	eng.agg.Record(vanished)
	require.NoError(t, os.Remove(vanished))

	eng.CheckNow()
	eng.respWG.Wait()

	entries, err := os.ReadDir(eng.cfg.QuarantineDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

// TestCriticalPIDGuard covers S6.
func TestCriticalPIDGuard(t *testing.T) {
	eng, fake := newTestEngine(t)
	fake.candidate = &process.Candidate{PID: 4, Name: "system", Score: 999}

	sink := &syncSink{}
	eng.uiSink = sink.record

	src := t.TempDir()
	for i := 0; i < 5; i++ {
		f := writeRandomFile(t, src, filepathName(i), 8192)
		eng.agg.Record(f)
	}

	eng.CheckNow()
	eng.respWG.Wait()

	assert.Empty(t, fake.terminated, "a denylisted pid must never be signaled")
	assert.True(t, sink.contains("Skipped termination of critical process system (pid 4)"))
}

func filepathName(i int) string {
	return "sample-" + string(rune('a'+i)) + ".bin"
}

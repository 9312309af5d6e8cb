//go:build linux

package process

import (
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDescendantsOfIsTransitive spawns a shell whose only child is a second
// shell that backgrounds two sleeps, so the walked shell has grandchildren
// (the sleeps) that a direct-children-only walk would miss.
func TestDescendantsOfIsTransitive(t *testing.T) {
	cmd := exec.Command("sh", "-c", "sh -c 'sleep 30 & sleep 30 & wait' & wait")
	require.NoError(t, cmd.Start())
	defer func() {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
	}()

	var descendants []childProc
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		descendants = descendantsOf(cmd.Process.Pid)
		if len(descendants) >= 2 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	assert.GreaterOrEqual(t, len(descendants), 2, "grandchildren (the backgrounded sleeps) must be included")
}

// TestTerminateCascadesToGrandchildren exercises the full Terminate path: a
// shell principal whose grandchild sleeps must also appear in the result's
// Children list, not just its immediate shell child.
func TestTerminateCascadesToGrandchildren(t *testing.T) {
	cmd := exec.Command("sh", "-c", "sh -c 'sleep 30 & sleep 30 & wait' & wait")
	require.NoError(t, cmd.Start())
	principalPID := cmd.Process.Pid
	defer func() {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
	}()

	var descendants []childProc
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		descendants = descendantsOf(principalPID)
		if len(descendants) >= 2 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	require.GreaterOrEqual(t, len(descendants), 2, "setup: grandchildren did not appear in time")

	insp := &procInspector{}
	result := insp.Terminate(Candidate{PID: principalPID, Name: "sh"})

	assert.GreaterOrEqual(t, len(result.Children), 2, "cascade must reach grandchildren, not just direct children")
}

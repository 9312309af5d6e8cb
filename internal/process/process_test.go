package process

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsCriticalByPID(t *testing.T) {
	assert.True(t, isCritical(1, "anything"))
	assert.True(t, isCritical(10, "anything"))
	assert.False(t, isCritical(11, "anything"))
}

func TestIsCriticalByName(t *testing.T) {
	assert.True(t, isCritical(500, "System"))
	assert.True(t, isCritical(500, "csrss.exe"))
	assert.True(t, isCritical(500, "SERVICES.EXE"))
	assert.False(t, isCritical(500, "notepad.exe"))
}

func TestNewReturnsAnInspector(t *testing.T) {
	insp := New()
	assert.NotNil(t, insp)

	// EnumerateSuspicious must never panic even with an extreme threshold.
	_ = insp.EnumerateSuspicious(Thresholds{SuspicionScore: 1 << 30})
}

func TestCriticalCandidateNeverReachesTerminate(t *testing.T) {
	insp := New()
	critical := Candidate{PID: 4, Name: "system", Score: 9999}

	result := insp.Terminate(critical)
	assert.NotEqual(t, "terminated_gracefully", result.Principal.Status)
	assert.NotEqual(t, "killed_forcibly", result.Principal.Status)
}

//go:build !linux

package process

// newInspector returns a capability-absent inspector on platforms with no
// /proc-equivalent process enumeration available. Every query returns nil
// and the engine degrades to file-only response.
func newInspector() Inspector {
	return &unsupportedInspector{}
}

type unsupportedInspector struct{}

func (u *unsupportedInspector) EnumerateSuspicious(cfg Thresholds) *Candidate { return nil }
func (u *unsupportedInspector) Attribute(path string) *Holder                { return nil }
func (u *unsupportedInspector) Terminate(candidate Candidate) TerminationResult {
	return TerminationResult{Principal: ChildOutcome{PID: candidate.PID, Name: candidate.Name, Status: "error"}}
}

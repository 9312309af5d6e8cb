// Package process enumerates running processes, scores them by open-file
// count and write-byte rate, attributes a file path to its holder, and
// terminates a process tree with graceful-then-forceful escalation.
//
// Process inspection is expressed as an optional capability: hosts whose
// operating system the inspector does not support, or where the running
// principal lacks privilege, return nil from every query rather than an
// error, and the engine degrades to file-only response.
package process

import (
	"strings"
	"time"
)

// Candidate is a transient (score, process) pair, never persisted.
type Candidate struct {
	PID   int
	Name  string
	Score int
}

// Holder identifies the process found to hold a given path open.
type Holder struct {
	PID  int
	Name string
}

// ChildOutcome records the independent termination result of one process in
// a tree (principal or child).
type ChildOutcome struct {
	PID    int
	Name   string
	Status string // terminated_gracefully | killed_forcibly | failed | error | skipped_critical
}

// TerminationResult is the outcome of terminating a candidate and its
// descendants.
type TerminationResult struct {
	Principal ChildOutcome
	Children  []ChildOutcome
}

// gracefulWait and forcefulWait bound each phase of two-phase termination.
const (
	gracefulWait = 3 * time.Second
	forcefulWait = 3 * time.Second
)

// criticalNames is a fixed denylist of process names that are never
// terminated, matched case-insensitively.
var criticalNames = map[string]struct{}{
	"system":       {},
	"csrss.exe":    {},
	"smss.exe":     {},
	"wininit.exe":  {},
	"services.exe": {},
}

// isCritical reports whether pid or name is protected from termination.
func isCritical(pid int, name string) bool {
	if pid <= 10 {
		return true
	}
	_, denied := criticalNames[strings.ToLower(name)]
	return denied
}

// Thresholds holds the subset of Configuration the inspector needs.
type Thresholds struct {
	SuspicionScore int
}

// Inspector is implemented per-OS; Linux gets a real /proc-backed
// implementation, everything else a capability-absent stub.
type Inspector interface {
	// EnumerateSuspicious returns the maximum-scoring candidate whose score
	// is >= cfg.SuspicionScore, or nil if none qualifies or the capability
	// is unavailable.
	EnumerateSuspicious(cfg Thresholds) *Candidate

	// Attribute returns the process currently holding path open, or nil if
	// no process matches or the capability is unavailable.
	Attribute(path string) *Holder

	// Terminate applies two-phase graceful-then-forceful escalation to
	// candidate, then cascades to its children. Children and the principal
	// that match the critical-pid guard are recorded as skipped_critical
	// and never signaled.
	Terminate(candidate Candidate) TerminationResult
}

// New returns the platform Inspector.
func New() Inspector {
	return newInspector()
}

//go:build linux

package process

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

func newInspector() Inspector {
	return &procInspector{}
}

// procInspector enumerates processes via /proc, the same directory-walking
// approach used in place of a cgo or privileged process-enumeration library.
type procInspector struct{}

type procStat struct {
	pid        int
	comm       string
	writeBytes int64
	fdCount    int
}

func readProcs() []procStat {
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return nil
	}

	var procs []procStat
	for _, e := range entries {
		pid, err := strconv.Atoi(e.Name())
		if err != nil {
			continue
		}
		comm := readComm(pid)
		if comm == "" {
			continue
		}
		procs = append(procs, procStat{
			pid:        pid,
			comm:       comm,
			writeBytes: readWriteBytes(pid),
			fdCount:    countOpenFDs(pid),
		})
	}
	return procs
}

func readComm(pid int) string {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/comm", pid))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func readWriteBytes(pid int) int64 {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/io", pid))
	if err != nil {
		return 0
	}
	for _, line := range strings.Split(string(data), "\n") {
		if strings.HasPrefix(line, "write_bytes:") {
			fields := strings.Fields(line)
			if len(fields) == 2 {
				v, err := strconv.ParseInt(fields[1], 10, 64)
				if err == nil {
					return v
				}
			}
		}
	}
	return 0
}

func countOpenFDs(pid int) int {
	entries, err := os.ReadDir(fmt.Sprintf("/proc/%d/fd", pid))
	if err != nil {
		return 0
	}
	return len(entries)
}

// score is open-file-count plus floor(write_bytes / 1 MiB).
func score(p procStat) int {
	return p.fdCount + int(p.writeBytes/(1<<20))
}

func (i *procInspector) EnumerateSuspicious(cfg Thresholds) *Candidate {
	procs := readProcs()
	if procs == nil {
		return nil
	}

	var best *Candidate
	for _, p := range procs {
		if isCritical(p.pid, p.comm) {
			continue
		}
		s := score(p)
		if best == nil || s > best.Score {
			best = &Candidate{PID: p.pid, Name: p.comm, Score: s}
		}
	}

	if best == nil || best.Score < cfg.SuspicionScore {
		return nil
	}
	return best
}

func (i *procInspector) Attribute(path string) *Holder {
	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	entries, err := os.ReadDir("/proc")
	if err != nil {
		return nil
	}

	for _, e := range entries {
		pid, err := strconv.Atoi(e.Name())
		if err != nil {
			continue
		}
		fdDir := fmt.Sprintf("/proc/%d/fd", pid)
		fds, err := os.ReadDir(fdDir)
		if err != nil {
			continue
		}
		for _, fd := range fds {
			link, err := os.Readlink(filepath.Join(fdDir, fd.Name()))
			if err != nil {
				continue
			}
			if link == absPath {
				return &Holder{PID: pid, Name: readComm(pid)}
			}
		}
	}
	return nil
}

func (i *procInspector) Terminate(candidate Candidate) TerminationResult {
	// Snapshot the whole descendant subtree before signaling anything: once
	// the principal dies its children may be reparented (to init or a
	// subreaper), and a /proc walk taken afterward would lose them.
	descendants := descendantsOf(candidate.PID)

	result := TerminationResult{
		Principal: terminateOne(candidate.PID, candidate.Name),
	}

	for _, d := range descendants {
		result.Children = append(result.Children, terminateOne(d.pid, d.comm))
	}

	return result
}

// terminateOne applies graceful-then-forceful escalation to a single pid,
// guarded by the critical-pid denylist.
func terminateOne(pid int, name string) (outcome ChildOutcome) {
	outcome = ChildOutcome{PID: pid, Name: name}

	if isCritical(pid, name) {
		outcome.Status = "skipped_critical"
		return outcome
	}

	defer func() {
		if r := recover(); r != nil {
			outcome.Status = "error"
		}
	}()

	if err := unix.Kill(pid, syscall.SIGTERM); err != nil && err != unix.ESRCH {
		// Signal delivery itself failed for a reason other than "already
		// gone"; still attempt the forceful phase below.
	}
	if waitGone(pid, gracefulWait) {
		outcome.Status = "terminated_gracefully"
		return outcome
	}

	if err := unix.Kill(pid, syscall.SIGKILL); err != nil && err != unix.ESRCH {
		outcome.Status = "error"
		return outcome
	}
	if waitGone(pid, forcefulWait) {
		outcome.Status = "killed_forcibly"
		return outcome
	}

	outcome.Status = "failed"
	return outcome
}

// waitGone polls pid existence via signal 0 until it vanishes or the
// timeout elapses.
func waitGone(pid int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if err := unix.Kill(pid, 0); err == unix.ESRCH {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(50 * time.Millisecond)
	}
}

type childProc struct {
	pid  int
	comm string
}

// descendantsOf returns every process transitively descended from parent:
// children, grandchildren, and so on. It builds the full parent-to-children
// map from a single /proc listing, then walks it breadth-first, so the
// whole subtree is captured in one snapshot rather than one /proc scan per
// level. Best effort: a process that cannot be read is simply not included.
func descendantsOf(parent int) []childProc {
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return nil
	}

	childrenByPPid := make(map[int][]childProc)
	for _, e := range entries {
		pid, err := strconv.Atoi(e.Name())
		if err != nil {
			continue
		}
		ppid, comm := readPPid(pid)
		if comm == "" {
			continue
		}
		childrenByPPid[ppid] = append(childrenByPPid[ppid], childProc{pid: pid, comm: comm})
	}

	var descendants []childProc
	queue := append([]childProc(nil), childrenByPPid[parent]...)
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		descendants = append(descendants, next)
		queue = append(queue, childrenByPPid[next.pid]...)
	}
	return descendants
}

// readPPid parses the PPid field out of /proc/<pid>/stat, which is of the
// form "pid (comm) state ppid ...". comm may itself contain spaces and
// parentheses, so the lookup splits on the last ')'.
func readPPid(pid int) (ppid int, comm string) {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid))
	if err != nil {
		return 0, ""
	}
	s := string(data)
	open := strings.IndexByte(s, '(')
	closeParen := strings.LastIndexByte(s, ')')
	if open < 0 || closeParen < 0 || closeParen <= open {
		return 0, ""
	}
	comm = s[open+1 : closeParen]
	rest := strings.Fields(s[closeParen+1:])
	if len(rest) < 2 {
		return 0, comm
	}
	ppid, err = strconv.Atoi(rest[1])
	if err != nil {
		return 0, comm
	}
	return ppid, comm
}

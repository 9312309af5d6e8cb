// Package safeguard copies affected files into a timestamped, read-only
// snapshot directory as a best-effort recovery fallback, independent of and
// concurrent with quarantine and process termination.
package safeguard

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// Status is the outcome of safeguarding a single path.
type Status string

const (
	StatusCopied Status = "copied"
	StatusFailed Status = "failed"
)

// Copied is one entry of a safeguard run.
type Copied struct {
	Original    string
	Destination string // empty on failure
	Status      string // "copied" or "failed:<detail>"
}

// Snapshot copies paths into logsRoot/safeguards/<unix_ts>/<basename>. Only
// the basename is used for destination naming, preventing path traversal
// outside the snapshot directory regardless of what original looks like.
// After each copy, the destination is best-effort set read-only; a failure
// to chmod is non-fatal.
func Snapshot(paths []string, logsRoot string) (dir string, results []Copied) {
	ts := time.Now().Unix()
	dir = filepath.Join(logsRoot, "safeguards", fmt.Sprintf("%d", ts))

	if err := os.MkdirAll(dir, 0700); err != nil {
		results = make([]Copied, len(paths))
		for i, p := range paths {
			results[i] = Copied{Original: p, Status: fmt.Sprintf("%s:%v", StatusFailed, err)}
		}
		return dir, results
	}

	for _, p := range paths {
		results = append(results, snapshotOne(p, dir))
	}
	return dir, results
}

func snapshotOne(original, dir string) Copied {
	dest := filepath.Join(dir, filepath.Base(original))

	if err := copyFile(original, dest); err != nil {
		// The safeguard reads from the original path, which may race with
		// a concurrent quarantine move; either outcome preserves forensic
		// value, since the file now exists in one place or the other.
		return Copied{Original: original, Status: fmt.Sprintf("%s:%v", StatusFailed, err)}
	}

	if err := os.Chmod(dest, 0400); err != nil {
		// Non-fatal: the copy itself succeeded.
		return Copied{Original: original, Destination: dest, Status: string(StatusCopied)}
	}

	return Copied{Original: original, Destination: dest, Status: string(StatusCopied)}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}

// Package quarantine relocates a batch of files into an isolated directory
// with collision-free naming, falling back to copy-then-delete when an
// atomic move is refused by the OS.
package quarantine

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"
)

// Status is the outcome of quarantining a single path.
type Status string

const (
	StatusMoved                       Status = "moved"
	StatusCopiedAndRemoved            Status = "copied_and_removed"
	StatusCopiedButRemoveFailedPerm   Status = "copied_but_remove_failed_permission"
	StatusCopiedButRemoveFailedPrefix Status = "copied_but_remove_failed"
	StatusCopyFailedPrefix            Status = "copy_failed"
	StatusFailedPrefix                Status = "failed"
	StatusFileNotFound                Status = "file_not_found"
	StatusIsDirectory                 Status = "is_directory"
	StatusInvalidPath                 Status = "invalid_path"
)

// Successful reports whether status counts toward a batch's "successful"
// tally.
func (s Status) Successful() bool {
	return s == StatusMoved || s == StatusCopiedAndRemoved
}

// Result is one entry of a quarantine batch.
type Result struct {
	Original    string
	Destination string // empty when the file was not relocated
	Status      Status
	// Fingerprint is a best-effort BLAKE2b-256 digest of the file content
	// taken immediately before relocation, for forensic cross-checking
	// against the safeguard copy and the restored file. Empty when the
	// file could not be read.
	Fingerprint string
}

// Move relocates each path in paths into destRoot, returning one Result per
// input in input order. The {timestamp}_{index}_ naming prefix is
// deterministic in input order, so no two files from one batch collide.
func Move(paths []string, destRoot string) []Result {
	if err := os.MkdirAll(destRoot, 0700); err != nil {
		results := make([]Result, len(paths))
		for i, p := range paths {
			results[i] = Result{Original: p, Status: Status(fmt.Sprintf("%s:%v", StatusFailedPrefix, err))}
		}
		return results
	}

	ts := time.Now().Unix()
	results := make([]Result, 0, len(paths))

	for i, p := range paths {
		results = append(results, movePath(p, destRoot, ts, i))
	}

	return results
}

func movePath(path string, destRoot string, ts int64, index int) Result {
	if path == "" {
		return Result{Original: path, Status: StatusInvalidPath}
	}

	info, err := os.Lstat(path)
	if err != nil {
		return Result{Original: path, Status: StatusFileNotFound}
	}
	if info.IsDir() {
		return Result{Original: path, Status: StatusIsDirectory}
	}

	fingerprint := fingerprintFile(path)

	dest := uniqueDest(destRoot, ts, index, path)

	if err := os.Rename(path, dest); err == nil {
		return Result{Original: path, Destination: dest, Status: StatusMoved, Fingerprint: fingerprint}
	}

	// Atomic move refused (cross-device, permission, locked handle on
	// Windows): fall back to copy-with-metadata then remove.
	if err := copyFile(path, dest); err != nil {
		return Result{Original: path, Status: Status(fmt.Sprintf("%s:%v", StatusCopyFailedPrefix, err))}
	}

	if err := os.Remove(path); err != nil {
		status := Status(fmt.Sprintf("%s:%v", StatusCopiedButRemoveFailedPrefix, err))
		if os.IsPermission(err) {
			status = StatusCopiedButRemoveFailedPerm
		}
		return Result{Original: path, Destination: dest, Status: status, Fingerprint: fingerprint}
	}

	return Result{Original: path, Destination: dest, Status: StatusCopiedAndRemoved, Fingerprint: fingerprint}
}

// uniqueDest builds "{timestamp}_{index}_{sanitized_basename}", resolving
// collisions by appending "_1", "_2", ... before the extension.
func uniqueDest(destRoot string, ts int64, index int, original string) string {
	base := sanitizeBasename(filepath.Base(original))
	candidate := filepath.Join(destRoot, fmt.Sprintf("%d_%d_%s", ts, index, base))

	if _, err := os.Stat(candidate); err != nil {
		return candidate
	}

	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	for n := 1; ; n++ {
		candidate = filepath.Join(destRoot, fmt.Sprintf("%d_%d_%s_%d%s", ts, index, stem, n, ext))
		if _, err := os.Stat(candidate); err != nil {
			return candidate
		}
	}
}

// sanitizeBasename retains only alphanumerics, '.', '_', '-', and space.
func sanitizeBasename(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '_' || r == '-' || r == ' ':
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "quarantined_file"
	}
	return b.String()
}

// copyFile copies src to dst, preserving the source file mode.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode())
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}

// fingerprintFile returns the hex BLAKE2b-256 digest of path's content, or
// empty on any read failure; forensic value only, never authoritative.
func fingerprintFile(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	h, err := blake2b.New256(nil)
	if err != nil {
		return ""
	}
	if _, err := io.Copy(h, f); err != nil {
		return ""
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

// Package lockfile records the blueprint files a compiled Definition was
// built from, so a stale Definition file can be detected.
//
// The format is one aggregate SHA-256 line followed by "<sha256> <file>"
// lines, sorted by file name.
package lockfile

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gauditech/gaudi-sub004/internal/dsl"
)

// Entry represents a single file entry in the lock file.
type Entry struct {
	Filename string
	Checksum string
}

// LockFile represents the parsed contents of a lock file.
type LockFile struct {
	Aggregate string  // SHA-256 of all individual checksums combined
	Entries   []Entry // Individual file checksums
}

// PathFor returns the lock file kept next to a Definition file.
func PathFor(definitionFile string) string {
	return definitionFile + ".lock"
}

// Read reads and parses a lock file from the given path.
// Returns nil if the file does not exist.
func Read(path string) (*LockFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read lock file: %w", err)
	}

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if lines[0] == "" {
		return nil, fmt.Errorf("lock file %s is empty", path)
	}

	lf := &LockFile{Aggregate: strings.TrimSpace(lines[0])}
	for _, line := range lines[1:] {
		sum, name, ok := strings.Cut(strings.TrimSpace(line), " ")
		if !ok {
			continue
		}
		lf.Entries = append(lf.Entries, Entry{Filename: strings.TrimSpace(name), Checksum: sum})
	}
	return lf, nil
}

// Write records the blueprint files of dir in lockPath.
func Write(dir, lockPath string) error {
	entries, err := computeEntries(dir)
	if err != nil {
		return err
	}

	var sb strings.Builder
	sb.WriteString(computeAggregate(entries) + "\n")
	for _, e := range entries {
		fmt.Fprintf(&sb, "%s %s\n", e.Checksum, e.Filename)
	}

	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return fmt.Errorf("failed to create lock file directory: %w", err)
	}
	return os.WriteFile(lockPath, []byte(sb.String()), 0o644)
}

// Result compares a lock file with the blueprint files on disk.
type Result struct {
	NewFiles      []string // Files on disk but not in lock
	RemovedFiles  []string // Files in lock but not on disk
	ModifiedFiles []string // Files with checksum mismatches
}

// Stale reports whether any blueprint file differs from the lock.
func (r *Result) Stale() bool {
	return len(r.NewFiles)+len(r.RemovedFiles)+len(r.ModifiedFiles) > 0
}

// Changed returns every differing file, sorted.
func (r *Result) Changed() []string {
	out := slices.Concat(r.NewFiles, r.RemovedFiles, r.ModifiedFiles)
	slices.Sort(out)
	return out
}

// Check compares lockPath with the blueprint files of dir. It returns nil
// when no lock file exists.
func Check(dir, lockPath string) (*Result, error) {
	lf, err := Read(lockPath)
	if err != nil || lf == nil {
		return nil, err
	}
	entries, err := computeEntries(dir)
	if err != nil {
		return nil, err
	}

	result := &Result{}
	if computeAggregate(entries) == lf.Aggregate {
		return result, nil
	}

	locked := make(map[string]string, len(lf.Entries))
	for _, e := range lf.Entries {
		locked[e.Filename] = e.Checksum
	}
	onDisk := make(map[string]bool, len(entries))
	for _, e := range entries {
		onDisk[e.Filename] = true
		sum, ok := locked[e.Filename]
		switch {
		case !ok:
			result.NewFiles = append(result.NewFiles, e.Filename)
		case sum != e.Checksum:
			result.ModifiedFiles = append(result.ModifiedFiles, e.Filename)
		}
	}
	for _, e := range lf.Entries {
		if !onDisk[e.Filename] {
			result.RemovedFiles = append(result.RemovedFiles, e.Filename)
		}
	}
	return result, nil
}

// computeEntries checksums the blueprint files of dir, sorted by name.
func computeEntries(dir string) ([]Entry, error) {
	files, err := dsl.BlueprintFiles(dir)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(files))
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", file, err)
		}
		sum := sha256.Sum256(data)
		entries = append(entries, Entry{
			Filename: filepath.Base(file),
			Checksum: hex.EncodeToString(sum[:]),
		})
	}
	slices.SortFunc(entries, func(a, b Entry) int {
		return strings.Compare(a.Filename, b.Filename)
	})
	return entries, nil
}

// computeAggregate computes the aggregate SHA-256 from all individual checksums.
func computeAggregate(entries []Entry) string {
	h := sha256.New()
	for _, e := range entries {
		h.Write([]byte(e.Checksum))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Package snapshot builds a content fingerprint of a whole directory tree.
package snapshot

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/starford/isaz/internal/fingerprint"
)

// Snapshot maps every regular file under a root (keyed by slash-separated
// relative path) to its fingerprint. It is built transiently per
// reconciliation pass and never mutated afterwards.
type Snapshot struct {
	Root  string // absolute path to the directory root
	Files map[string]fingerprint.Fingerprint
}

// Take walks root recursively and fingerprints every regular file except
// the one named excludeName (the sidecar status file). Hidden files are
// included; directory entries produce no fingerprint.
func Take(root, excludeName string) (*Snapshot, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("snapshot: resolve root: %w", err)
	}

	snap := &Snapshot{Root: abs, Files: make(map[string]fingerprint.Fingerprint)}
	err = filepath.WalkDir(abs, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(abs, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rel == excludeName {
			return nil
		}
		fp, err := fingerprint.Compute(abs, rel)
		if err != nil {
			return err
		}
		snap.Files[rel] = fp
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("snapshot: walk %s: %w", root, err)
	}
	return snap, nil
}

// FromFingerprints reconstructs a snapshot from already-parsed fingerprints,
// e.g. the content of a status file.
func FromFingerprints(root string, fps []fingerprint.Fingerprint) *Snapshot {
	snap := &Snapshot{Root: root, Files: make(map[string]fingerprint.Fingerprint, len(fps))}
	for _, fp := range fps {
		snap.Files[fp.RelPath] = fp
	}
	return snap
}

// Serialize returns the canonical textual form: fingerprints sorted by
// relative path, one per line, newline-terminated. Sorting makes the output
// independent of filesystem enumeration order, which is what snapshot
// equality is defined on.
func (s *Snapshot) Serialize() string {
	paths := make([]string, 0, len(s.Files))
	for p := range s.Files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var b strings.Builder
	for _, p := range paths {
		b.WriteString(s.Files[p].String())
		b.WriteByte('\n')
	}
	return b.String()
}

// Equal reports whether both snapshots describe the same content set.
func (s *Snapshot) Equal(other *Snapshot) bool {
	if other == nil {
		return false
	}
	return s.Serialize() == other.Serialize()
}

// Len returns the number of fingerprinted files.
func (s *Snapshot) Len() int {
	return len(s.Files)
}

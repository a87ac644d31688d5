// Package status persists a directory's reconciliation state in a sidecar file.
//
// The sidecar is the one durable artifact of the engine. Its content is
// either the literal marker "ignore" or the canonical serialization of a
// snapshot; anything else is a parse error, never a fourth state.
package status

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/starford/isaz/internal/fingerprint"
	"github.com/starford/isaz/internal/snapshot"
)

// FileName is the fixed name of the sidecar status file. It is excluded
// from its own directory's fingerprinting.
const FileName = ".isaz-status"

// IgnoreMarker is the literal sidecar content that excludes a directory
// from backup.
const IgnoreMarker = "ignore"

// Kind enumerates the three reconciliation states of a directory.
type Kind int

const (
	// Absent means no sidecar file exists: the directory was never backed up.
	Absent Kind = iota
	// Ignored means the operator marked the directory as not to be backed up.
	Ignored
	// Recorded means the sidecar holds the snapshot of the last backup.
	Recorded
)

// Status is the parsed sidecar state. Snapshot is non-nil iff Kind is Recorded.
type Status struct {
	Kind     Kind
	Snapshot *snapshot.Snapshot
}

// Read parses the sidecar of dir. A missing file yields Absent; content
// equal to the ignore marker (after trimming) yields Ignored; otherwise
// every non-empty line must parse as a fingerprint or the whole file is
// rejected with an error wrapping apperr.ErrParse.
func Read(dir string) (Status, error) {
	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if errors.Is(err, os.ErrNotExist) {
		return Status{Kind: Absent}, nil
	}
	if err != nil {
		return Status{}, fmt.Errorf("status: read sidecar in %s: %w", dir, err)
	}

	if strings.TrimSpace(string(data)) == IgnoreMarker {
		return Status{Kind: Ignored}, nil
	}

	var fps []fingerprint.Fingerprint
	for _, line := range strings.Split(string(data), "\n") {
		if line == "" {
			continue
		}
		fp, err := fingerprint.Parse(line)
		if err != nil {
			return Status{}, fmt.Errorf("status: sidecar in %s: %w", dir, err)
		}
		fps = append(fps, fp)
	}
	return Status{Kind: Recorded, Snapshot: snapshot.FromFingerprints(dir, fps)}, nil
}

// Write atomically overwrites the sidecar of dir with the serialized
// snapshot: tmp file, fsync, rename. Callers must only invoke it after the
// corresponding archive has been durably uploaded; writing early would
// falsely mark the directory as backed up.
func Write(dir string, snap *snapshot.Snapshot) error {
	return writeSidecar(dir, []byte(snap.Serialize()))
}

// MarkIgnored overwrites the sidecar of dir with the ignore marker.
func MarkIgnored(dir string) error {
	return writeSidecar(dir, []byte(IgnoreMarker+"\n"))
}

// Exists reports whether dir has a sidecar file, without parsing it.
func Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, FileName))
	return err == nil
}

func writeSidecar(dir string, content []byte) error {
	tmp, err := os.CreateTemp(dir, ".isaz-tmp-*")
	if err != nil {
		return fmt.Errorf("status: create temp: %w", err)
	}
	tmpName := tmp.Name()

	// Clean up on any failure path.
	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("status: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("status: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("status: close temp: %w", err)
	}
	if err := os.Rename(tmpName, filepath.Join(dir, FileName)); err != nil {
		return fmt.Errorf("status: rename: %w", err)
	}
	success = true
	return nil
}

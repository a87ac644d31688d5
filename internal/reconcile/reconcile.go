// Package reconcile decides whether a directory needs to be backed up again.
package reconcile

import (
	"log/slog"

	"github.com/starford/isaz/internal/snapshot"
	"github.com/starford/isaz/internal/status"
)

// Action is the outcome of a reconciliation pass over one directory.
type Action int

const (
	// Skip means the directory is unchanged since its last backup.
	Skip Action = iota
	// Ignored means the operator excluded the directory from backup.
	Ignored
	// NeedsBackup means the directory has no recorded snapshot or its
	// content diverged from the recorded one.
	NeedsBackup
)

// Decision carries the action and, for NeedsBackup, the fresh snapshot to
// package and later persist.
type Decision struct {
	Action   Action
	Snapshot *snapshot.Snapshot
}

// Decide compares a fresh snapshot of dir against its persisted status.
// It reads the sidecar but never writes it, so it is safe to call
// repeatedly and from dry-run paths.
func Decide(dir string, logger *slog.Logger) (Decision, error) {
	st, err := status.Read(dir)
	if err != nil {
		return Decision{}, err
	}
	if st.Kind == status.Ignored {
		logger.Debug("reconcile: ignored", slog.String("dir", dir))
		return Decision{Action: Ignored}, nil
	}

	fresh, err := snapshot.Take(dir, status.FileName)
	if err != nil {
		return Decision{}, err
	}

	switch st.Kind {
	case status.Absent:
		// First-time backup, nothing to compare against.
		logger.Debug("reconcile: no recorded status", slog.String("dir", dir), slog.Int("files", fresh.Len()))
		return Decision{Action: NeedsBackup, Snapshot: fresh}, nil
	case status.Recorded:
		if fresh.Equal(st.Snapshot) {
			logger.Debug("reconcile: unchanged", slog.String("dir", dir))
			return Decision{Action: Skip}, nil
		}
		logger.Debug("reconcile: content diverged", slog.String("dir", dir), slog.Int("files", fresh.Len()))
		return Decision{Action: NeedsBackup, Snapshot: fresh}, nil
	default:
		// Unreachable: Ignored was handled before the walk.
		return Decision{Action: Skip}, nil
	}
}

// Package scheduler orders candidate directories and drives them through
// reconciliation, packaging and upload, one at a time.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/starford/isaz/internal/reconcile"
	"github.com/starford/isaz/internal/snapshot"
	"github.com/starford/isaz/internal/status"
)

// Builder packages a snapshot into a single encrypted archive file on local
// storage, encrypted for all given recipients. It must fail if a file's
// current size differs from the fingerprinted one.
type Builder interface {
	Build(ctx context.Context, snap *snapshot.Snapshot, recipients []string) (string, error)
}

// Uploader ships an archive to the remote store and blocks until it has
// been durably accepted.
type Uploader interface {
	Upload(ctx context.Context, archivePath, description string) (archiveID string, err error)
}

// Recorder persists a successfully uploaded archive in the local catalog.
// Recording is best-effort bookkeeping; it never gates the status write.
type Recorder interface {
	Record(archiveID, description string, size int64, uploadedAt time.Time) error
}

// Scheduler processes the immediate subdirectories of a backup root.
// Directories without a sidecar are handled first, newest name first;
// directory names carry a leading date, so this uploads the most recent
// drops before revisiting known ones.
type Scheduler struct {
	root       string
	recipients []string
	builder    Builder
	uploader   Uploader
	recorder   Recorder
	logger     *slog.Logger

	// Single stops the run after the first directory that actually got
	// backed up, for manual partial runs.
	Single bool
	// DryRun reports decisions without building, uploading or writing
	// anything.
	DryRun bool
}

// New creates a Scheduler over root. recorder may be nil.
func New(root string, recipients []string, b Builder, u Uploader, r Recorder, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		root:       root,
		recipients: recipients,
		builder:    b,
		uploader:   u,
		recorder:   r,
		logger:     logger,
	}
}

// Candidates returns the subdirectories of the root in processing order:
// the ones without a sidecar first, sorted by name descending, then the
// ones with a sidecar in enumeration order. Non-directory entries are
// skipped with a notice.
func (s *Scheduler) Candidates() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("scheduler: read root %s: %w", s.root, err)
	}

	var withStatus, withoutStatus []string
	for _, e := range entries {
		if !e.IsDir() {
			s.logger.Info("scheduler: skipping non-directory entry", slog.String("name", e.Name()))
			continue
		}
		dir := filepath.Join(s.root, e.Name())
		if status.Exists(dir) {
			withStatus = append(withStatus, dir)
		} else {
			withoutStatus = append(withoutStatus, dir)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(withoutStatus)))

	return append(withoutStatus, withStatus...), nil
}

// Run reconciles every candidate and backs up the ones that need it.
// A single directory's failure is reported and the run continues; the
// returned error aggregates all per-directory failures.
func (s *Scheduler) Run(ctx context.Context) error {
	candidates, err := s.Candidates()
	if err != nil {
		return err
	}

	var errs []error
	for _, dir := range candidates {
		if err := ctx.Err(); err != nil {
			// Failures seen before the cancel still get reported.
			return errors.Join(append(errs, err)...)
		}

		done, err := s.processOne(ctx, dir)
		if err != nil {
			s.logger.Error("scheduler: directory failed",
				slog.String("dir", dir),
				slog.String("error", err.Error()))
			errs = append(errs, fmt.Errorf("%s: %w", filepath.Base(dir), err))
			continue
		}
		if done && s.Single {
			s.logger.Info("scheduler: single mode, stopping after one backup")
			break
		}
	}
	return errors.Join(errs...)
}

// processOne reconciles one directory and, when needed, runs the
// build-upload-record-write sequence. It returns true when a backup was
// actually performed.
func (s *Scheduler) processOne(ctx context.Context, dir string) (bool, error) {
	decision, err := reconcile.Decide(dir, s.logger)
	if err != nil {
		return false, err
	}
	switch decision.Action {
	case reconcile.Skip:
		s.logger.Info("scheduler: up to date", slog.String("dir", dir))
		return false, nil
	case reconcile.Ignored:
		s.logger.Info("scheduler: ignored", slog.String("dir", dir))
		return false, nil
	}
	if decision.Snapshot.Len() == 0 {
		// A freshly created directory that has not received files yet.
		// There is nothing to archive; leave it Absent for the next run.
		s.logger.Info("scheduler: empty directory, nothing to archive", slog.String("dir", dir))
		return false, nil
	}

	name := filepath.Base(dir)
	s.logger.Info("scheduler: backup needed",
		slog.String("dir", dir),
		slog.Int("files", decision.Snapshot.Len()))

	if s.DryRun {
		return false, nil
	}

	archivePath, err := s.builder.Build(ctx, decision.Snapshot, s.recipients)
	if err != nil {
		return false, err
	}
	// One temporary archive exists per processed directory; remove it on
	// every exit path, success included.
	defer func() {
		if rmErr := os.Remove(archivePath); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			s.logger.Warn("scheduler: could not remove archive",
				slog.String("path", archivePath),
				slog.String("error", rmErr.Error()))
		}
	}()

	info, err := os.Stat(archivePath)
	if err != nil {
		return false, fmt.Errorf("scheduler: stat archive: %w", err)
	}

	archiveID, err := s.uploader.Upload(ctx, archivePath, name)
	if err != nil {
		// The sidecar stays untouched so the directory is retried on
		// the next run.
		return false, err
	}

	if s.recorder != nil {
		if err := s.recorder.Record(archiveID, name, info.Size(), time.Now().UTC()); err != nil {
			s.logger.Warn("scheduler: catalog record failed",
				slog.String("archive_id", archiveID),
				slog.String("error", err.Error()))
		}
	}

	// Upload is confirmed; only now may the snapshot be persisted.
	if err := status.Write(dir, decision.Snapshot); err != nil {
		return false, fmt.Errorf("scheduler: archive %s uploaded but status write failed: %w", archiveID, err)
	}

	s.logger.Info("scheduler: backed up",
		slog.String("dir", dir),
		slog.String("archive_id", archiveID),
		slog.Int64("size", info.Size()))
	return true, nil
}

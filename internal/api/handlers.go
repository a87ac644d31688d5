// Package api exposes a read-only reporting surface over the catalog and
// the per-directory reconciliation state. It never mutates sidecars, the
// catalog, or the vault.
package api

import (
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/starford/isaz/internal/inventory"
	"github.com/starford/isaz/internal/reconcile"
)

// Directory states as reported by GET /directories.
const (
	StateIgnored  = "ignored"
	StateUpToDate = "up-to-date"
	StatePending  = "pending"
	StateError    = "error"
)

// ArchiveRecord is one row of GET /archives.
type ArchiveRecord struct {
	ArchiveID   string    `json:"archive_id"`
	Description string    `json:"description"`
	Size        int64     `json:"size"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

// DirectoryState is one row of GET /directories.
type DirectoryState struct {
	Name  string `json:"name"`
	State string `json:"state"`
	Files int    `json:"files,omitempty"`
	Error string `json:"error,omitempty"`
}

// Handler holds the reporting route handlers.
type Handler struct {
	root    string
	catalog *inventory.Catalog
	logger  *slog.Logger
}

// NewHandler creates a Handler over the backup root and catalog.
func NewHandler(root string, catalog *inventory.Catalog, logger *slog.Logger) *Handler {
	return &Handler{root: root, catalog: catalog, logger: logger}
}

// ListArchives handles GET /archives.
func (h *Handler) ListArchives(w http.ResponseWriter, _ *http.Request) {
	rows, err := h.catalog.List()
	if err != nil {
		h.logger.Error("api: list archives failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}

	out := make([]ArchiveRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, ArchiveRecord{
			ArchiveID:   r.ArchiveID,
			Description: r.Description,
			Size:        r.Size,
			UploadedAt:  r.UploadedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"archives": out,
		"total":    len(out),
	})
}

// ListDirectories handles GET /directories. Each immediate subdirectory of
// the backup root is reconciled through the read-only decision path.
func (h *Handler) ListDirectories(w http.ResponseWriter, r *http.Request) {
	entries, err := os.ReadDir(h.root)
	if err != nil {
		h.logger.Error("api: read root failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}

	out := make([]DirectoryState, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		out = append(out, h.directoryState(filepath.Join(h.root, e.Name())))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"directories": out,
		"total":       len(out),
	})
}

// directoryState derives the reported state from a single Decide call so
// the sidecar is read exactly once per directory.
func (h *Handler) directoryState(dir string) DirectoryState {
	name := filepath.Base(dir)

	decision, err := reconcile.Decide(dir, h.logger)
	if err != nil {
		return DirectoryState{Name: name, State: StateError, Error: err.Error()}
	}
	switch decision.Action {
	case reconcile.Ignored:
		return DirectoryState{Name: name, State: StateIgnored}
	case reconcile.NeedsBackup:
		return DirectoryState{Name: name, State: StatePending, Files: decision.Snapshot.Len()}
	default:
		return DirectoryState{Name: name, State: StateUpToDate}
	}
}

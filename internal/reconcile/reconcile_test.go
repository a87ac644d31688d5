package reconcile

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/isaz/internal/apperr"
	"github.com/starford/isaz/internal/snapshot"
	"github.com/starford/isaz/internal/status"
	"github.com/starford/isaz/internal/testutil"
)

func decide(t *testing.T, dir string) Decision {
	t.Helper()
	d, err := Decide(dir, testutil.DiscardLogger())
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	return d
}

func TestAbsentNeedsBackup(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteTree(t, dir, map[string]string{"a.jpg": "aaa"})

	d := decide(t, dir)
	if d.Action != NeedsBackup {
		t.Fatalf("Action = %v, want NeedsBackup", d.Action)
	}
	if d.Snapshot == nil || d.Snapshot.Len() != 1 {
		t.Errorf("decision snapshot = %+v", d.Snapshot)
	}
}

func TestIgnoredSkipsEvenWhenContentChanges(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteTree(t, dir, map[string]string{"a.jpg": "aaa"})
	if err := status.MarkIgnored(dir); err != nil {
		t.Fatal(err)
	}

	if d := decide(t, dir); d.Action != Ignored {
		t.Fatalf("Action = %v, want Ignored", d.Action)
	}

	testutil.WriteTree(t, dir, map[string]string{"b.jpg": "new content"})
	if d := decide(t, dir); d.Action != Ignored {
		t.Errorf("Action after change = %v, want Ignored", d.Action)
	}
}

func TestRecordedUnchangedSkips(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteTree(t, dir, map[string]string{"a.jpg": "aaa", "b.jpg": "bbb"})

	snap, err := snapshot.Take(dir, status.FileName)
	if err != nil {
		t.Fatal(err)
	}
	if err := status.Write(dir, snap); err != nil {
		t.Fatal(err)
	}

	if d := decide(t, dir); d.Action != Skip {
		t.Errorf("Action = %v, want Skip", d.Action)
	}
}

// Scenario from the backup contract: first backup, then a deletion.
func TestDecisionScenario(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteTree(t, dir, map[string]string{"a.jpg": "content-a", "b.jpg": "content-b"})

	d := decide(t, dir)
	if d.Action != NeedsBackup || d.Snapshot.Len() != 2 {
		t.Fatalf("fresh directory: %v with %d files", d.Action, d.Snapshot.Len())
	}

	if err := status.Write(dir, d.Snapshot); err != nil {
		t.Fatal(err)
	}
	if d := decide(t, dir); d.Action != Skip {
		t.Fatalf("after write: Action = %v, want Skip", d.Action)
	}

	if err := os.Remove(filepath.Join(dir, "a.jpg")); err != nil {
		t.Fatal(err)
	}
	d = decide(t, dir)
	if d.Action != NeedsBackup {
		t.Fatalf("after deletion: Action = %v, want NeedsBackup", d.Action)
	}
	if d.Snapshot.Len() != 1 {
		t.Errorf("after deletion: snapshot has %d files, want 1", d.Snapshot.Len())
	}
	if _, ok := d.Snapshot.Files["b.jpg"]; !ok {
		t.Error("after deletion: snapshot missing b.jpg")
	}
}

func TestChangeFlipsDecisionAndRevertFlipsBack(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteTree(t, dir, map[string]string{"a.jpg": "original"})

	d := decide(t, dir)
	if err := status.Write(dir, d.Snapshot); err != nil {
		t.Fatal(err)
	}

	testutil.WriteTree(t, dir, map[string]string{"a.jpg": "modified"})
	if d := decide(t, dir); d.Action != NeedsBackup {
		t.Fatalf("after modification: Action = %v, want NeedsBackup", d.Action)
	}

	testutil.WriteTree(t, dir, map[string]string{"a.jpg": "original"})
	if d := decide(t, dir); d.Action != Skip {
		t.Errorf("after revert: Action = %v, want Skip", d.Action)
	}
}

func TestDecideIsReadOnly(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteTree(t, dir, map[string]string{"a.jpg": "aaa"})

	decide(t, dir)
	decide(t, dir)
	if status.Exists(dir) {
		t.Error("Decide created a sidecar file")
	}
}

func TestDecideSurfacesParseError(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteTree(t, dir, map[string]string{"a.jpg": "aaa"})
	if err := os.WriteFile(filepath.Join(dir, status.FileName), []byte("%% corrupted %%\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Decide(dir, testutil.DiscardLogger()); !errors.Is(err, apperr.ErrParse) {
		t.Errorf("got %v, want ErrParse", err)
	}
}

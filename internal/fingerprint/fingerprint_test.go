package fingerprint

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/isaz/internal/apperr"
)

func TestRoundTrip(t *testing.T) {
	cases := []Fingerprint{
		{RelPath: "a.jpg", Hash: "abc123", Size: 100},
		{RelPath: "dir/with spaces/file name.jpg", Hash: "00ff", Size: 0},
		{RelPath: "x", Hash: "deadbeef0123456789abcdef00000000", Size: 9223372036854775807},
	}
	for _, want := range cases {
		got, err := Parse(want.String())
		if err != nil {
			t.Fatalf("Parse(%q): %v", want.String(), err)
		}
		if got != want {
			t.Errorf("round trip: got %+v, want %+v", got, want)
		}
	}
}

func TestParseRejectsMalformedLines(t *testing.T) {
	cases := []string{
		"",
		"onlyhash",
		"hash size",
		"ABC 100 file.jpg",     // uppercase hash
		"abc -1 file.jpg",      // negative size
		"abc +1 file.jpg",      // signed size
		"abc 10x file.jpg",     // non-digit size
		"abc 100 ",             // empty path
		" 100 file.jpg",        // empty hash
		"abc_def 100 file.jpg", // non-alphanumeric hash
	}
	for _, line := range cases {
		if _, err := Parse(line); !errors.Is(err, apperr.ErrParse) {
			t.Errorf("Parse(%q): got %v, want ErrParse", line, err)
		}
	}
}

func TestNewRejectsNewlineInPath(t *testing.T) {
	for _, path := range []string{"a\nb.jpg", "a\rb.jpg", "\n"} {
		if _, err := New(path, "abc", 1); !errors.Is(err, apperr.ErrValidation) {
			t.Errorf("New(%q): got %v, want ErrValidation", path, err)
		}
	}
}

func TestNewRejectsEmptyPathAndNegativeSize(t *testing.T) {
	if _, err := New("", "abc", 1); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("empty path: got %v, want ErrValidation", err)
	}
	if _, err := New("a.jpg", "abc", -1); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("negative size: got %v, want ErrValidation", err)
	}
}

func TestCompute(t *testing.T) {
	dir := t.TempDir()
	content := []byte("hello isaz")
	if err := os.WriteFile(filepath.Join(dir, "file.bin"), content, 0o644); err != nil {
		t.Fatal(err)
	}

	fp, err := Compute(dir, "file.bin")
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if fp.RelPath != "file.bin" {
		t.Errorf("RelPath = %q", fp.RelPath)
	}
	if fp.Size != int64(len(content)) {
		t.Errorf("Size = %d, want %d", fp.Size, len(content))
	}
	if len(fp.Hash) != 32 {
		t.Errorf("Hash = %q, want 32 hex characters", fp.Hash)
	}
	for _, c := range fp.Hash {
		if (c < 'a' || c > 'f') && (c < '0' || c > '9') {
			t.Errorf("Hash contains non-lowercase-hex character %q", c)
		}
	}

	// Same content yields the same fingerprint.
	again, err := Compute(dir, "file.bin")
	if err != nil {
		t.Fatalf("Compute again: %v", err)
	}
	if again != fp {
		t.Errorf("fingerprint not stable: %+v vs %+v", again, fp)
	}
}

func TestComputeDiffersOnContentChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f")
	if err := os.WriteFile(path, []byte("one"), 0o644); err != nil {
		t.Fatal(err)
	}
	first, err := Compute(dir, "f")
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("two"), 0o644); err != nil {
		t.Fatal(err)
	}
	second, err := Compute(dir, "f")
	if err != nil {
		t.Fatal(err)
	}
	if first.Hash == second.Hash {
		t.Error("hash did not change with content")
	}
}

func TestComputeMissingFile(t *testing.T) {
	if _, err := Compute(t.TempDir(), "nope"); err == nil {
		t.Error("expected error for missing file")
	}
}

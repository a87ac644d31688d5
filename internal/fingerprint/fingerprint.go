// Package fingerprint identifies a single file by path, content digest and size.
package fingerprint

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/zeebo/xxh3"

	"github.com/starford/isaz/internal/apperr"
)

// Fingerprint is one file's backed-up identity. Equality is structural
// on all three fields.
type Fingerprint struct {
	RelPath string // relative to the directory root, never contains a newline
	Hash    string // lowercase hex xxh3-128 digest of the file content
	Size    int64
}

// New validates the fields and builds a Fingerprint. The persisted format
// is one fingerprint per line, so a newline in the path is illegal.
func New(relPath, hash string, size int64) (Fingerprint, error) {
	if strings.ContainsAny(relPath, "\n\r") {
		return Fingerprint{}, fmt.Errorf("fingerprint: path %q contains a newline: %w", relPath, apperr.ErrValidation)
	}
	if relPath == "" {
		return Fingerprint{}, fmt.Errorf("fingerprint: empty path: %w", apperr.ErrValidation)
	}
	if size < 0 {
		return Fingerprint{}, fmt.Errorf("fingerprint: negative size %d: %w", size, apperr.ErrValidation)
	}
	return Fingerprint{RelPath: relPath, Hash: hash, Size: size}, nil
}

// Compute reads the file at rootPath/relPath fully, digests its bytes and
// records its size. Bytes and size come from the same open handle so they
// describe one version of the file.
func Compute(rootPath, relPath string) (Fingerprint, error) {
	f, err := os.Open(filepath.Join(rootPath, relPath))
	if err != nil {
		return Fingerprint{}, fmt.Errorf("fingerprint: open %s: %w", relPath, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("fingerprint: read %s: %w", relPath, err)
	}
	info, err := f.Stat()
	if err != nil {
		return Fingerprint{}, fmt.Errorf("fingerprint: stat %s: %w", relPath, err)
	}
	return New(filepath.ToSlash(relPath), sum(data), info.Size())
}

// String returns the canonical single-line form "<hash> <size> <relpath>".
func (f Fingerprint) String() string {
	return f.Hash + " " + strconv.FormatInt(f.Size, 10) + " " + f.RelPath
}

// Parse inverts String. The line grammar is
// "^([a-z0-9]+) ([0-9]+) (.+)$": the path may contain spaces but the hash
// and size may not.
func Parse(line string) (Fingerprint, error) {
	hash, rest, ok := strings.Cut(line, " ")
	if !ok || hash == "" {
		return Fingerprint{}, fmt.Errorf("fingerprint: malformed line %q: %w", line, apperr.ErrParse)
	}
	for _, c := range hash {
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') {
			return Fingerprint{}, fmt.Errorf("fingerprint: bad hash in line %q: %w", line, apperr.ErrParse)
		}
	}
	sizeStr, relPath, ok := strings.Cut(rest, " ")
	if !ok || relPath == "" {
		return Fingerprint{}, fmt.Errorf("fingerprint: malformed line %q: %w", line, apperr.ErrParse)
	}
	if sizeStr == "" || strings.IndexFunc(sizeStr, func(c rune) bool { return c < '0' || c > '9' }) >= 0 {
		return Fingerprint{}, fmt.Errorf("fingerprint: bad size in line %q: %w", line, apperr.ErrParse)
	}
	size, err := strconv.ParseInt(sizeStr, 10, 64)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("fingerprint: bad size in line %q: %w", line, apperr.ErrParse)
	}
	return Fingerprint{RelPath: relPath, Hash: hash, Size: size}, nil
}

// sum returns the hex-encoded xxh3-128 digest of data.
func sum(data []byte) string {
	h := xxh3.Hash128(data).Bytes()
	return hex.EncodeToString(h[:])
}

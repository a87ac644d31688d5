// Package archive packages a snapshot into one encrypted archive file.
//
// Packaging is a two-process pipeline: tar writes the directory content to
// its stdout, an external encryption command (age-compatible flags) reads
// it and the encrypted stream lands in a temp file under the scratch
// directory. Both processes are owned, scoped and waited on every exit
// path.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"

	"github.com/starford/isaz/internal/apperr"
	"github.com/starford/isaz/internal/snapshot"
)

// DefaultEncryptCommand is the encryption binary used when none is
// configured. Recipients are passed as repeated -r flags.
const DefaultEncryptCommand = "age"

// Builder builds encrypted archives under ScratchDir.
type Builder struct {
	ScratchDir string
	EncryptCmd string
}

// NewBuilder creates a Builder. An empty encryptCmd selects the default.
func NewBuilder(scratchDir, encryptCmd string) *Builder {
	if encryptCmd == "" {
		encryptCmd = DefaultEncryptCommand
	}
	return &Builder{ScratchDir: scratchDir, EncryptCmd: encryptCmd}
}

// Build archives every file referenced by snap, encrypted for all given
// recipients, and returns the path of the archive file. Before packaging
// it stats each referenced file and aborts with an error wrapping
// apperr.ErrConsistency when a size no longer matches its fingerprint:
// the directory changed since it was fingerprinted and must not be
// uploaded in that state. No partial archive survives a failed build.
func (b *Builder) Build(ctx context.Context, snap *snapshot.Snapshot, recipients []string) (string, error) {
	paths := make([]string, 0, len(snap.Files))
	for p := range snap.Files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	if len(paths) == 0 {
		return "", fmt.Errorf("archive: snapshot of %s references no files", snap.Root)
	}

	for _, rel := range paths {
		info, err := os.Stat(filepath.Join(snap.Root, rel))
		if err != nil {
			return "", fmt.Errorf("archive: stat %s: %w", rel, err)
		}
		if got, want := info.Size(), snap.Files[rel].Size; got != want {
			return "", fmt.Errorf("archive: %s is %d bytes, fingerprinted at %d: %w",
				rel, got, want, apperr.ErrConsistency)
		}
	}

	out, err := os.CreateTemp(b.ScratchDir, filepath.Base(snap.Root)+"-*.tar.enc")
	if err != nil {
		return "", fmt.Errorf("archive: create output: %w", err)
	}
	outName := out.Name()

	success := false
	defer func() {
		if !success {
			_ = out.Close()
			_ = os.Remove(outName)
		}
	}()

	tarArgs := append([]string{"-C", snap.Root, "-cf", "-"}, paths...)
	tarCmd := exec.CommandContext(ctx, "tar", tarArgs...)

	encArgs := make([]string, 0, 2*len(recipients))
	for _, r := range recipients {
		encArgs = append(encArgs, "-r", r)
	}
	encCmd := exec.CommandContext(ctx, b.EncryptCmd, encArgs...)

	pipe, err := tarCmd.StdoutPipe()
	if err != nil {
		return "", fmt.Errorf("archive: tar stdout pipe: %w", err)
	}
	encCmd.Stdin = pipe
	encCmd.Stdout = out

	var tarStderr, encStderr bytes.Buffer
	tarCmd.Stderr = &tarStderr
	encCmd.Stderr = &encStderr

	if err := tarCmd.Start(); err != nil {
		return "", fmt.Errorf("archive: start tar: %w", err)
	}
	if err := encCmd.Start(); err != nil {
		_ = tarCmd.Process.Kill()
		_ = tarCmd.Wait()
		return "", fmt.Errorf("archive: start %s: %w", b.EncryptCmd, err)
	}

	tarErr := tarCmd.Wait()
	encErr := encCmd.Wait()
	if tarErr != nil {
		return "", fmt.Errorf("archive: tar failed: %s: %w", bytes.TrimSpace(tarStderr.Bytes()), tarErr)
	}
	if encErr != nil {
		return "", fmt.Errorf("archive: %s failed: %s: %w", b.EncryptCmd, bytes.TrimSpace(encStderr.Bytes()), encErr)
	}

	if err := out.Sync(); err != nil {
		return "", fmt.Errorf("archive: fsync output: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("archive: close output: %w", err)
	}
	success = true
	return outName, nil
}

package generation

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/oklog/ulid/v2"
)

// atomicWriteFile writes data to a fresh temp file beside path and renames
// it over path, so no reader ever observes a partially-written file.
func atomicWriteFile(path string, data []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file in %s: %w", dir, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file %s: %w", tmpPath, err)
	}
	if err := os.Chmod(tmpPath, mode); err != nil {
		return fmt.Errorf("failed to chmod temp file %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename %s to %s: %w", tmpPath, path, err)
	}
	return nil
}

// atomicCopyFile byte-copies src to a `.tmp` sibling of dst and renames it
// over dst.
func atomicCopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmpPath := dst + ".tmp"
	out, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", tmpPath, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to copy %s to %s: %w", src, tmpPath, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		return fmt.Errorf("failed to rename %s to %s: %w", tmpPath, dst, err)
	}
	return nil
}

// atomicSymlink creates a symlink target <- dst by creating it at a `.tmp`
// sibling path first and renaming it over dst, so dst is replaced
// atomically rather than unlinked-then-relinked.
func atomicSymlink(target, dst string) error {
	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmpPath := dst + ".tmp"
	os.Remove(tmpPath)
	if err := os.Symlink(target, tmpPath); err != nil {
		return fmt.Errorf("failed to create symlink %s -> %s: %w", tmpPath, target, err)
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		return fmt.Errorf("failed to rename %s to %s: %w", tmpPath, dst, err)
	}
	return nil
}

// flipActiveSymlink implements step (e): create basedir/<random-ulid> as a
// symlink to the generation directory, then rename it over basedir/secrets
// so the rename is the sole linearization point for readers.
func flipActiveSymlink(basedir, generationDir string) error {
	pointer := filepath.Join(basedir, ulid.Make().String())
	if err := os.Symlink(generationDir, pointer); err != nil {
		return fmt.Errorf("failed to create pointer symlink %s: %w", pointer, err)
	}
	secretsLink := filepath.Join(basedir, "secrets")
	if err := os.Rename(pointer, secretsLink); err != nil {
		os.Remove(pointer)
		return fmt.Errorf("failed to flip %s to %s: %w", secretsLink, pointer, err)
	}
	return nil
}

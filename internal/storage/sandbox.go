// Package storage provides file operations confined to one directory.
// Paths that would resolve outside the directory are rejected.
package storage

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrDirectoryMissing indicates a sandbox directory that does not exist and may not be created.
var ErrDirectoryMissing = errors.New("directory does not exist")

// Sandbox provides file operations within a base directory.
type Sandbox struct {
	baseDir string
}

// NewSandbox creates a Sandbox rooted at baseDir. When create is true a
// missing directory is created, otherwise it must already exist.
func NewSandbox(baseDir string, create bool) (*Sandbox, error) {
	absPath, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("getting absolute path: %w", err)
	}

	info, err := os.Stat(absPath)
	switch {
	case err == nil && !info.IsDir():
		return nil, fmt.Errorf("%s is not a directory", absPath)
	case errors.Is(err, os.ErrNotExist) && create:
		if err := os.MkdirAll(absPath, 0o750); err != nil {
			return nil, fmt.Errorf("creating base directory: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("%w: %s", ErrDirectoryMissing, absPath)
	case err != nil:
		return nil, fmt.Errorf("checking base directory: %w", err)
	}

	return &Sandbox{baseDir: absPath}, nil
}

// BaseDir returns the absolute path to the sandbox base directory.
func (s *Sandbox) BaseDir() string {
	return s.baseDir
}

// ResolvePath resolves a relative path within the sandbox.
// Returns an error if the path would escape the sandbox or is an absolute path.
func (s *Sandbox) ResolvePath(relativePath string) (string, error) {
	if filepath.IsAbs(relativePath) {
		return "", fmt.Errorf("path escapes sandbox: %s (absolute paths not allowed)", relativePath)
	}

	fullPath := filepath.Join(s.baseDir, filepath.Clean(relativePath))
	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return "", fmt.Errorf("getting absolute path: %w", err)
	}

	if !strings.HasPrefix(absPath, s.baseDir+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes sandbox: %s", relativePath)
	}

	return absPath, nil
}

// AtomicWriteFunc streams write into a file within the sandbox through a
// temporary file and a rename, so the target is either complete or untouched.
func (s *Sandbox) AtomicWriteFunc(relativePath string, write func(io.Writer) error) error {
	targetPath, err := s.ResolvePath(relativePath)
	if err != nil {
		return err
	}

	dir := filepath.Dir(targetPath)
	tempName := fmt.Sprintf(".%s.%s.tmp", filepath.Base(targetPath), randomHex(8))
	tempPath := filepath.Join(dir, tempName)

	tempFile, err := os.OpenFile(tempPath, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o640)
	if err != nil {
		return fmt.Errorf("creating temporary file: %w", err)
	}

	err = write(tempFile)
	closeErr := tempFile.Close()

	if err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("writing to temporary file: %w", err)
	}
	if closeErr != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("closing temporary file: %w", closeErr)
	}

	if err := os.Rename(tempPath, targetPath); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("renaming to target: %w", err)
	}

	return nil
}

// randomHex generates a random hex string of the specified length.
func randomHex(n int) string {
	b := make([]byte, n/2+1)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("%d", os.Getpid())
	}
	return hex.EncodeToString(b)[:n]
}

package file

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// LocalSource keeps uploaded import files under BaseDir.
type LocalSource struct {
	BaseDir string
}

func NewLocalSource(baseDir string) *LocalSource {
	if baseDir == "" {
		baseDir = "."
	}
	return &LocalSource{BaseDir: baseDir}
}

// path resolves filename inside BaseDir.
func (s *LocalSource) path(filename string) string {
	return filepath.Join(s.BaseDir, filepath.Clean("/"+filename))
}

// Open returns the stored file. A file removed after the import was queued
// surfaces as an error wrapping os.ErrNotExist.
func (s *LocalSource) Open(ctx context.Context, filename string) (io.ReadCloser, error) {
	_ = ctx

	path := s.path(filename)
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file %s: %w", path, err)
	}
	return file, nil
}

// Save writes content as <name>_<uuid><ext> and returns that name.
func (s *LocalSource) Save(ctx context.Context, originalFilename string, content io.Reader) (string, error) {
	_ = ctx

	base := filepath.Base(originalFilename)
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)
	if name == "" || name == "." {
		name = "import"
	}
	stored := fmt.Sprintf("%s_%s%s", name, uuid.NewString(), strings.ToLower(ext))

	if err := os.MkdirAll(s.BaseDir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}

	path := s.path(stored)
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create file %s: %w", path, err)
	}

	if _, err := io.Copy(file, content); err != nil {
		file.Close()
		os.Remove(path)
		return "", fmt.Errorf("write file %s: %w", path, err)
	}
	if err := file.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("close file %s: %w", path, err)
	}

	return stored, nil
}

func (s *LocalSource) Remove(ctx context.Context, filename string) error {
	_ = ctx

	path := s.path(filename)
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("remove file %s: %w", path, err)
	}
	return nil
}

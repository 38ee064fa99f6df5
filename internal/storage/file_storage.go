package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	errpkg "github.com/veranemoloko/media-downloader/internal/errors"
)

// FileStorage manages files in a single flat directory. Names containing
// path separators are rejected.
type FileStorage struct {
	dir string
}

// NewFileStorage creates a new FileStorage instance with the given directory.
func NewFileStorage(dir string) *FileStorage {
	return &FileStorage{dir: dir}
}

// Dir returns the storage directory.
func (s *FileStorage) Dir() string {
	return s.dir
}

func (s *FileStorage) path(filename string) (string, error) {
	if filename == "" || filename == "." || filename == ".." ||
		strings.ContainsAny(filename, `/\`) {
		return "", fmt.Errorf("%w: %q", errpkg.ErrInvalidName, filename)
	}
	return filepath.Join(s.dir, filename), nil
}

// CreateFile creates a new file with the given filename in the storage directory.
func (s *FileStorage) CreateFile(filename string) (*os.File, error) {
	p, err := s.path(filename)
	if err != nil {
		return nil, err
	}
	return os.Create(p)
}

// OpenFile opens an existing file for reading.
func (s *FileStorage) OpenFile(filename string) (*os.File, error) {
	p, err := s.path(filename)
	if err != nil {
		return nil, err
	}
	return os.Open(p)
}

// FileExists checks whether a regular file exists in the storage directory.
func (s *FileStorage) FileExists(filename string) bool {
	p, err := s.path(filename)
	if err != nil {
		return false
	}
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}

// GetFileSize returns the size of the file in bytes.
func (s *FileStorage) GetFileSize(filename string) (int64, error) {
	p, err := s.path(filename)
	if err != nil {
		return 0, err
	}
	info, err := os.Stat(p)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// WriteFile replaces filename with data. Readers never observe a partial file.
func (s *FileStorage) WriteFile(filename string, data []byte, perm os.FileMode) error {
	p, err := s.path(filename)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, "."+filename+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	return os.Rename(tmp.Name(), p)
}

// CopyFile copies data from the provided reader to a file with the specified filename.
// Returns the number of bytes written and any error encountered.
func (s *FileStorage) CopyFile(src io.Reader, dstFilename string) (int64, error) {
	dst, err := s.CreateFile(dstFilename)
	if err != nil {
		return 0, fmt.Errorf("create file: %w", err)
	}

	n, err := io.Copy(dst, src)
	if closeErr := dst.Close(); err == nil {
		err = closeErr
	}
	return n, err
}

// Import copies the local file at srcPath into storage under its base name
// and returns that name.
func (s *FileStorage) Import(srcPath string) (string, int64, error) {
	src, err := os.Open(srcPath)
	if err != nil {
		return "", 0, fmt.Errorf("open source: %w", err)
	}
	defer src.Close()

	name := filepath.Base(srcPath)
	n, err := s.CopyFile(src, name)
	if err != nil {
		return "", 0, fmt.Errorf("copy %s: %w", name, err)
	}
	return name, n, nil
}

// Package upload stores report media attachments on local disk.
package upload

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrDisallowedExtension = errors.New("file extension not allowed")
	ErrTooLarge            = errors.New("file too large")
	ErrInvalidName         = errors.New("invalid file name")
)

var allowedExtensions = map[string]bool{
	"png": true, "jpg": true, "jpeg": true, "gif": true, "mp4": true, "mov": true,
}

// Allowed reports whether filename has a permitted media extension (case-insensitive).
func Allowed(filename string) bool {
	return allowedExtensions[extension(filename)]
}

func extension(filename string) string {
	i := strings.LastIndex(filename, ".")
	if i < 0 || i == len(filename)-1 {
		return ""
	}
	return strings.ToLower(filename[i+1:])
}

// Store writes attachments as <uuid hex>.<ext> under Dir.
type Store struct {
	dir      string
	maxBytes int64
}

// NewStore creates dir when missing.
func NewStore(dir string, maxBytes int64) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Store{dir: dir, maxBytes: maxBytes}, nil
}

// Dir returns the storage directory.
func (s *Store) Dir() string { return s.dir }

// MaxBytes returns the per-file size limit; 0 means unlimited.
func (s *Store) MaxBytes() int64 { return s.maxBytes }

// Save copies r to a new uniquely named file and returns the stored name.
// Content beyond maxBytes aborts the save and removes the partial file.
func (s *Store) Save(originalName string, r io.Reader) (string, error) {
	if !Allowed(originalName) {
		return "", ErrDisallowedExtension
	}
	name := strings.ReplaceAll(uuid.NewString(), "-", "") + "." + extension(originalName)
	path := filepath.Join(s.dir, name)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create upload: %w", err)
	}

	src := r
	if s.maxBytes > 0 {
		src = io.LimitReader(r, s.maxBytes+1)
	}
	n, err := io.Copy(f, src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && s.maxBytes > 0 && n > s.maxBytes {
		err = ErrTooLarge
	}
	if err != nil {
		_ = os.Remove(path)
		if errors.Is(err, ErrTooLarge) {
			return "", err
		}
		return "", fmt.Errorf("write upload: %w", err)
	}
	return name, nil
}

// Path resolves a stored name to its file path. Names containing path
// separators or dot segments are rejected.
func (s *Store) Path(name string) (string, error) {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return "", ErrInvalidName
	}
	return filepath.Join(s.dir, name), nil
}

// Remove deletes a stored file. A missing file is not an error.
func (s *Store) Remove(name string) error {
	path, err := s.Path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

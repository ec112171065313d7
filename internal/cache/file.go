package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.trai.ch/zerr"

	"github.com/wozniakbe/nutriscan/internal/nutrition"
)

// document is the on-disk layout: {"barcodes": {"<code>": {...}}}.
type document struct {
	Barcodes map[string]nutrition.Record `json:"barcodes"`
}

// FileBackend stores the cache as a pretty-printed JSON file.
type FileBackend struct {
	path string
}

// NewFileBackend returns a backend for the file at path.
func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: filepath.Clean(path)}
}

// Path returns the cache file location.
func (f *FileBackend) Path() string {
	return f.path
}

// Load reads the cache file. A missing file is created holding an empty
// document before loading.
func (f *FileBackend) Load(ctx context.Context) (map[string]nutrition.Record, error) {
	//nolint:gosec // path comes from configuration
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		empty := make(map[string]nutrition.Record)
		if err := f.Save(ctx, empty); err != nil {
			return nil, err
		}
		return empty, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadFailed, zerr.Wrap(err, "read "+f.path))
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadFailed, zerr.Wrap(err, "parse "+f.path))
	}
	return doc.Barcodes, nil
}

// Save writes the whole document to a temporary file in the same directory
// and renames it over the cache file, so readers never observe a partial
// write.
func (f *FileBackend) Save(_ context.Context, records map[string]nutrition.Record) error {
	if records == nil {
		records = make(map[string]nutrition.Record)
	}

	data, err := json.MarshalIndent(document{Barcodes: records}, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSaveFailed, zerr.Wrap(err, "marshal"))
	}
	data = append(data, '\n')

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("%w: %w", ErrSaveFailed, zerr.Wrap(err, "create "+dir))
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSaveFailed, zerr.Wrap(err, "create temp file"))
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: %w", ErrSaveFailed, zerr.Wrap(err, "write "+tmp.Name()))
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %w", ErrSaveFailed, zerr.Wrap(err, "close "+tmp.Name()))
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("%w: %w", ErrSaveFailed, zerr.Wrap(err, "chmod "+tmp.Name()))
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("%w: %w", ErrSaveFailed, zerr.Wrap(err, "rename to "+f.path))
	}
	return nil
}

package workbook

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrNoBlob means the workbook has not been written yet.
var ErrNoBlob = errors.New("workbook does not exist")

// Blob stores the serialized workbook.
type Blob interface {
	// Load returns the workbook bytes, or ErrNoBlob if nothing is stored.
	Load(ctx context.Context) ([]byte, error)
	// Save replaces the stored workbook.
	Save(ctx context.Context, data []byte) error
	// Location describes where the workbook lives, for logs.
	Location() string
}

// FileBlob keeps the workbook in a local file.
type FileBlob struct {
	Path string
}

// Load reads the workbook file.
func (b *FileBlob) Load(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(b.Path)
	if os.IsNotExist(err) {
		return nil, ErrNoBlob
	}
	if err != nil {
		return nil, fmt.Errorf("read workbook %s: %w", b.Path, err)
	}
	return data, nil
}

// Save writes to a temporary file and renames it over the workbook, so a
// crash never leaves a truncated file behind.
func (b *FileBlob) Save(_ context.Context, data []byte) error {
	dir := filepath.Dir(b.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create workbook dir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".petlog-*.xlsx")
	if err != nil {
		return fmt.Errorf("create temp workbook: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp workbook: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp workbook: %w", err)
	}
	if err := os.Rename(tmp.Name(), b.Path); err != nil {
		return fmt.Errorf("replace workbook %s: %w", b.Path, err)
	}
	return nil
}

// Location returns the file path.
func (b *FileBlob) Location() string {
	return b.Path
}

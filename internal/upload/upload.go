// Package upload stores incoming audio under collision free names.
package upload

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// MaxBytes caps a single upload; a minute of 16 kHz 16-bit mono is ~2 MB.
const MaxBytes = 10 << 20

var ErrTooLarge = errors.New("upload too large")

type Dir struct {
	path string
}

func NewDir(path string) (*Dir, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Dir{path: path}, nil
}

func (d *Dir) Path() string { return d.path }

// Save copies r into a new file named <uuid><ext> and returns its name and
// full path. Nothing is left behind on error.
func (d *Dir) Save(r io.Reader, ext string) (name, path string, err error) {
	name = uuid.NewString() + ext
	path = filepath.Join(d.path, name)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", "", fmt.Errorf("create upload: %w", err)
	}
	defer func() {
		if err != nil {
			os.Remove(path)
		}
	}()

	n, err := io.Copy(f, io.LimitReader(r, MaxBytes+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", "", fmt.Errorf("write upload: %w", err)
	}
	if n > MaxBytes {
		return "", "", ErrTooLarge
	}
	if n == 0 {
		return "", "", errors.New("empty upload")
	}

	return name, path, nil
}

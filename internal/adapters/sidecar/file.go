// Package sidecar mirrors the latest heart rate into a plain text file for
// overlay tools that poll a file.
package sidecar

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/xueayi/HeartRate-to-VRC/internal/ports"
)

type FileWriter struct {
	path string
}

func NewFileWriter(path string) *FileWriter {
	return &FileWriter{path: path}
}

func (w *FileWriter) Path() string { return w.path }

// WriteValue replaces the file content with the decimal value. Readers never
// see a partial write because the new content is renamed into place.
func (w *FileWriter) WriteValue(raw int) error {
	dir := filepath.Dir(w.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(w.path)+".*")
	if err != nil {
		return fmt.Errorf("sidecar temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.WriteString(strconv.Itoa(raw)); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sidecar write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("sidecar close: %w", err)
	}
	if err := os.Rename(tmpName, w.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("sidecar rename: %w", err)
	}
	return nil
}

var _ ports.SidecarWriter = (*FileWriter)(nil)

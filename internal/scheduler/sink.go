package scheduler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// DirSink writes archive batches under a base directory, creating the
// per-month subdirectories embedded in the archive key as needed.
type DirSink struct {
	base string
}

var _ ArchiveSink = (*DirSink)(nil)

// NewDirSink creates a DirSink rooted at base.
func NewDirSink(base string) *DirSink {
	return &DirSink{base: base}
}

func (s *DirSink) WriteArchive(_ context.Context, key string, data []byte) error {
	path := filepath.Join(s.base, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating archive directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing archive file: %w", err)
	}
	return nil
}

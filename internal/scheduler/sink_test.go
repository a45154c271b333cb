package scheduler

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestDirSink_WritesNestedKey(t *testing.T) {
	base := t.TempDir()
	sink := NewDirSink(base)

	data := []byte("archive payload")
	if err := sink.WriteArchive(context.Background(), "alerts/2026/07/batch_1.jsonl.zst", data); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(base, "alerts", "2026", "07", "batch_1.jsonl.zst"))
	if err != nil {
		t.Fatalf("reading archive file: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("archive content mismatch: %q", got)
	}
}

func TestDirSink_OverwritesExistingFile(t *testing.T) {
	base := t.TempDir()
	sink := NewDirSink(base)
	key := "alerts/2026/07/batch_1.jsonl.zst"

	if err := sink.WriteArchive(context.Background(), key, []byte("first")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := sink.WriteArchive(context.Background(), key, []byte("second")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(base, filepath.FromSlash(key)))
	if err != nil {
		t.Fatalf("reading archive file: %v", err)
	}
	if string(got) != "second" {
		t.Errorf("expected overwrite, got %q", got)
	}
}

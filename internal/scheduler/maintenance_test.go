package scheduler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"

	"skywatch/internal/types"
)

// fakeRetentionDB serves aged records in batches and tracks deletions.
type fakeRetentionDB struct {
	aged      []*types.AlertRecord
	listErr   error
	deleteErr error

	deletedKeys  []string
	purgedBefore time.Time
}

func (f *fakeRetentionDB) ListSentBefore(_ context.Context, cutoff time.Time, limit int) ([]*types.AlertRecord, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []*types.AlertRecord
	for _, rec := range f.aged {
		if rec.SentAt.Before(cutoff) {
			out = append(out, rec)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeRetentionDB) Delete(_ context.Context, userID, rowKey string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deletedKeys = append(f.deletedKeys, userID+"/"+rowKey)
	remaining := f.aged[:0]
	for _, rec := range f.aged {
		if rec.UserID != userID || rec.RowKey != rowKey {
			remaining = append(remaining, rec)
		}
	}
	f.aged = remaining
	return nil
}

func (f *fakeRetentionDB) DeleteBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.purgedBefore = cutoff
	var n int64
	remaining := f.aged[:0]
	for _, rec := range f.aged {
		if rec.SentAt.Before(cutoff) {
			n++
			continue
		}
		remaining = append(remaining, rec)
	}
	f.aged = remaining
	return n, nil
}

// fakeSink captures archive writes.
type fakeSink struct {
	keys     []string
	payloads [][]byte
	writeErr error
}

func (f *fakeSink) WriteArchive(_ context.Context, key string, data []byte) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	f.keys = append(f.keys, key)
	f.payloads = append(f.payloads, data)
	return nil
}

var retentionNow = time.Date(2026, 8, 29, 3, 0, 0, 0, time.UTC)

func agedRecords(n int, sentAt time.Time) []*types.AlertRecord {
	recs := make([]*types.AlertRecord, n)
	for i := range recs {
		recs[i] = &types.AlertRecord{
			UserID:    fmt.Sprintf("user-%d", i),
			RowKey:    "conditions:2026-06-01T12",
			AlertType: types.AlertTypeConditions,
			DedupKey:  "2026-06-01T12",
			SentAt:    sentAt,
			SendCount: 1,
		}
	}
	return recs
}

func testService(db RetentionDB, sink ArchiveSink) *RetentionService {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRetentionService(db, sink, logger)
}

func decompressJSONL(t *testing.T, data []byte) []string {
	t.Helper()
	dec, err := zstd.NewReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("opening zstd reader: %v", err)
	}
	defer dec.Close()

	raw, err := io.ReadAll(dec)
	if err != nil {
		t.Fatalf("decompressing archive: %v", err)
	}
	return strings.Split(strings.TrimRight(string(raw), "\n"), "\n")
}

func TestRun_ArchivesThenPurges(t *testing.T) {
	old := agedRecords(3, retentionNow.AddDate(0, 0, -40))
	db := &fakeRetentionDB{aged: old}
	sink := &fakeSink{}

	deleted, err := testService(db, sink).Run(context.Background(), retentionNow, 30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(sink.keys) != 1 {
		t.Fatalf("expected one archive batch, got %d", len(sink.keys))
	}
	if !strings.HasPrefix(sink.keys[0], "alerts/2026/07/batch_") || !strings.HasSuffix(sink.keys[0], ".jsonl.zst") {
		t.Errorf("unexpected archive key %q", sink.keys[0])
	}

	lines := decompressJSONL(t, sink.payloads[0])
	if len(lines) != 3 {
		t.Fatalf("expected 3 archived lines, got %d", len(lines))
	}
	if !strings.Contains(lines[0], `"user_id":"user-0"`) {
		t.Errorf("unexpected first archive line %q", lines[0])
	}

	if len(db.deletedKeys) != 3 {
		t.Errorf("expected archived records deleted individually, got %v", db.deletedKeys)
	}
	// Archival already emptied the table; the sweep finds nothing more.
	if deleted != 0 {
		t.Errorf("expected 0 rows left for the purge, got %d", deleted)
	}
	if !db.purgedBefore.Equal(retentionNow.AddDate(0, 0, -30)) {
		t.Errorf("unexpected purge cutoff %s", db.purgedBefore)
	}
}

func TestRun_NilSinkSkipsArchival(t *testing.T) {
	db := &fakeRetentionDB{aged: agedRecords(2, retentionNow.AddDate(0, 0, -40))}

	deleted, err := testService(db, nil).Run(context.Background(), retentionNow, 30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted != 2 {
		t.Errorf("expected purge to remove both records, got %d", deleted)
	}
	if len(db.deletedKeys) != 0 {
		t.Error("no per-record deletes should happen without a sink")
	}
}

func TestRun_FreshRecordsAreLeftAlone(t *testing.T) {
	db := &fakeRetentionDB{aged: agedRecords(2, retentionNow.AddDate(0, 0, -10))}
	sink := &fakeSink{}

	deleted, err := testService(db, sink).Run(context.Background(), retentionNow, 30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted != 0 {
		t.Errorf("expected nothing purged, got %d", deleted)
	}
	if len(sink.keys) != 0 {
		t.Errorf("expected nothing archived, got %v", sink.keys)
	}
	if len(db.aged) != 2 {
		t.Errorf("fresh records must survive, got %d", len(db.aged))
	}
}

func TestRun_ArchiveWriteFailureAbortsPurge(t *testing.T) {
	db := &fakeRetentionDB{aged: agedRecords(2, retentionNow.AddDate(0, 0, -40))}
	sink := &fakeSink{writeErr: errors.New("bucket unavailable")}

	_, err := testService(db, sink).Run(context.Background(), retentionNow, 30)
	if err == nil {
		t.Fatal("expected the sweep to fail when archiving fails")
	}
	if len(db.aged) != 2 {
		t.Error("records must survive a failed archive so the next sweep retries")
	}
}

func TestRun_ListFailureAbortsPurge(t *testing.T) {
	db := &fakeRetentionDB{
		aged:    agedRecords(1, retentionNow.AddDate(0, 0, -40)),
		listErr: errors.New("connection refused"),
	}

	_, err := testService(db, &fakeSink{}).Run(context.Background(), retentionNow, 30)
	if err == nil {
		t.Fatal("expected the sweep to fail when listing fails")
	}
	if len(db.aged) != 1 {
		t.Error("records must survive a failed listing")
	}
}

func TestCompressRecordsJSONL_RoundTrips(t *testing.T) {
	recs := agedRecords(5, retentionNow.AddDate(0, 0, -40))

	data, err := compressRecordsJSONL(recs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := decompressJSONL(t, data)
	if len(lines) != 5 {
		t.Fatalf("expected 5 lines, got %d", len(lines))
	}
	for i, line := range lines {
		if !strings.Contains(line, fmt.Sprintf(`"user_id":"user-%d"`, i)) {
			t.Errorf("line %d missing user id: %q", i, line)
		}
	}
}

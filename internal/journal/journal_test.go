package journal

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/danmuck/reguctl/internal/testutil/testlog"
)

func openTemp(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func TestRecordAndRecent(t *testing.T) {
	testlog.Start(t)
	j := openTemp(t)
	ctx := context.Background()

	if err := j.RecordEvent(ctx, "s1", "session_open", "center connected"); err != nil {
		t.Fatalf("record event: %v", err)
	}
	if err := j.RecordFrame(ctx, "s1", "rx", "sync", []byte{0x01, 0x0A}); err != nil {
		t.Fatalf("record frame: %v", err)
	}
	if err := j.RecordControl(ctx, "s1", "tx", "ACK"); err != nil {
		t.Fatalf("record control: %v", err)
	}

	entries, err := j.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("entry count: got=%d want=3", len(entries))
	}
	// Newest first.
	if entries[0].Kind != "control" || entries[0].Code != "ACK" {
		t.Fatalf("newest entry: %+v", entries[0])
	}
	if entries[1].Kind != "frame" || entries[1].Payload != "010a" {
		t.Fatalf("frame entry: %+v", entries[1])
	}
	if entries[2].Kind != "session_open" || entries[2].Detail != "center connected" {
		t.Fatalf("event entry: %+v", entries[2])
	}
}

func TestRecentLimit(t *testing.T) {
	testlog.Start(t)
	j := openTemp(t)
	ctx := context.Background()

	for i := 0; i < 8; i++ {
		if err := j.RecordControl(ctx, "s1", "tx", "ACK"); err != nil {
			t.Fatalf("record control: %v", err)
		}
	}
	entries, err := j.Recent(ctx, 5)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(entries) != 5 {
		t.Fatalf("limited count: got=%d want=5", len(entries))
	}
}

func TestOpenCreatesParentDirectory(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "nested", "dir", "journal.db")
	j, err := Open(path)
	if err != nil {
		t.Fatalf("open with nested path: %v", err)
	}
	j.Close()
}

package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bft-labs/shardspool/internal/domain"
	"github.com/bft-labs/shardspool/internal/metrics"
	"github.com/bft-labs/shardspool/internal/spool"
)

// fakeConn records send calls and fails on demand.
type fakeConn struct {
	batchErr error
	fileErrs map[string]error

	batchCalls int
	fileCalls  []string
}

func (c *fakeConn) SendBatch(ctx context.Context, files []domain.PendingFile) error {
	c.batchCalls++
	return c.batchErr
}

func (c *fakeConn) SendFile(ctx context.Context, file domain.PendingFile) error {
	c.fileCalls = append(c.fileCalls, file.Path)
	if c.fileErrs != nil {
		return c.fileErrs[file.Path]
	}
	return nil
}

// statInspector reports every file as one row; files listed in broken fail.
type statInspector struct {
	broken map[string]bool
}

func (i statInspector) Inspect(path string) (domain.PendingFile, error) {
	if i.broken[path] {
		return domain.PendingFile{}, errors.New("unreadable header")
	}
	fi, err := os.Stat(path)
	if err != nil {
		return domain.PendingFile{}, err
	}
	return domain.PendingFile{Path: path, Bytes: uint64(fi.Size()), Rows: 1}, nil
}

func newTestQueue(t *testing.T, dir string, conn *fakeConn, insp statInspector, limits spool.Limits, split bool) *DirectoryQueue {
	t.Helper()
	cfg := QueueConfig{
		Dir:            dir,
		Destination:    "shard-1:8443",
		Limits:         limits,
		SplitOnFailure: split,
		PollInterval:   10 * time.Millisecond,
		BackoffInitial: time.Millisecond,
		BackoffMax:     5 * time.Millisecond,
	}
	return NewDirectoryQueue(cfg, conn, insp, nil, metrics.New(prometheus.NewRegistry()))
}

func writeSpoolFile(t *testing.T, dir, name string, size int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, make([]byte, size), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func TestProcessPendingDrainsDirectory(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 3; i++ {
		writeSpoolFile(t, dir, fmt.Sprintf("%d.bin", i), 10)
	}

	conn := &fakeConn{}
	q := newTestQueue(t, dir, conn, statInspector{}, spool.Limits{MaxFiles: 2}, true)

	if err := q.ProcessPending(context.Background()); err != nil {
		t.Fatalf("process: %v", err)
	}

	// 3 files under a 2-file limit means two batches.
	if conn.batchCalls != 2 {
		t.Fatalf("batch sends %d, want 2", conn.batchCalls)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("spool not drained, %d entries remain", len(entries))
	}
}

func TestProcessPendingRetriesIntactBatch(t *testing.T) {
	dir := t.TempDir()
	writeSpoolFile(t, dir, "1.bin", 10)

	conn := &fakeConn{batchErr: errors.New("shard down")}
	q := newTestQueue(t, dir, conn, statInspector{}, spool.Limits{MaxFiles: 10}, false)

	if err := q.ProcessPending(context.Background()); err == nil {
		t.Fatal("process succeeded with shard down")
	}
	descriptor := filepath.Join(dir, spool.DescriptorFileName)
	if _, err := os.Stat(descriptor); err != nil {
		t.Fatalf("descriptor gone after failed unsplit send: %v", err)
	}

	// Shard comes back; the same batch is retried as a unit without
	// re-accumulation.
	conn.batchErr = nil
	if err := q.ProcessPending(context.Background()); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if conn.batchCalls != 2 {
		t.Fatalf("batch sends %d, want 2", conn.batchCalls)
	}
	if _, err := os.Stat(descriptor); !os.IsNotExist(err) {
		t.Fatal("descriptor survived delivery")
	}
}

func TestProcessPendingSplitLeavesFailedFile(t *testing.T) {
	dir := t.TempDir()
	p1 := writeSpoolFile(t, dir, "1.bin", 10)
	p2 := writeSpoolFile(t, dir, "2.bin", 10)
	p3 := writeSpoolFile(t, dir, "3.bin", 10)

	conn := &fakeConn{
		batchErr: errors.New("batch rejected"),
		fileErrs: map[string]error{p2: errors.New("corrupt block")},
	}
	q := newTestQueue(t, dir, conn, statInspector{}, spool.Limits{MaxFiles: 10}, true)

	if err := q.ProcessPending(context.Background()); err == nil {
		t.Fatal("process succeeded with one member failing")
	}
	for _, p := range []string{p1, p3} {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Fatalf("%s not removed after individual delivery", p)
		}
	}
	if _, err := os.Stat(p2); err != nil {
		t.Fatalf("failed file missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, spool.DescriptorFileName)); !os.IsNotExist(err) {
		t.Fatal("descriptor left referencing removed files")
	}

	// The survivor is retried on the next cycle as an ordinary pending file.
	conn.fileErrs = nil
	conn.batchErr = nil
	if err := q.ProcessPending(context.Background()); err != nil {
		t.Fatalf("second cycle: %v", err)
	}
	if _, err := os.Stat(p2); !os.IsNotExist(err) {
		t.Fatal("survivor never delivered")
	}
}

func TestScanQuarantinesUnreadableFile(t *testing.T) {
	dir := t.TempDir()
	good := writeSpoolFile(t, dir, "good.bin", 10)
	bad := writeSpoolFile(t, dir, "bad.bin", 10)

	conn := &fakeConn{}
	q := newTestQueue(t, dir, conn, statInspector{broken: map[string]bool{bad: true}}, spool.Limits{MaxFiles: 10}, true)

	if err := q.ProcessPending(context.Background()); err != nil {
		t.Fatalf("process: %v", err)
	}
	if _, err := os.Stat(good); !os.IsNotExist(err) {
		t.Fatal("good file not delivered")
	}
	quarantined := filepath.Join(dir, spool.BrokenDirName, "bad.bin")
	if _, err := os.Stat(quarantined); err != nil {
		t.Fatalf("bad file not quarantined: %v", err)
	}
}

func TestRunResumesPersistedBatch(t *testing.T) {
	dir := t.TempDir()

	// Simulate a crash after persist: members and descriptor on disk.
	b := spool.NewBatch(dir, spool.Limits{MaxFiles: 10}, spool.Options{})
	path := writeSpoolFile(t, dir, "1.bin", 10)
	b.Accept(domain.PendingFile{Path: path, Bytes: 10, Rows: 1})
	if err := b.Persist(); err != nil {
		t.Fatalf("persist: %v", err)
	}

	conn := &fakeConn{}
	q := newTestQueue(t, dir, conn, statInspector{}, spool.Limits{MaxFiles: 10}, true)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- q.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("run returned %v, want context.Canceled", err)
	}

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("recovered batch never delivered")
	}
	if _, err := os.Stat(filepath.Join(dir, spool.DescriptorFileName)); !os.IsNotExist(err) {
		t.Fatal("descriptor survived recovery send")
	}
	if conn.batchCalls == 0 {
		t.Fatal("no send attempted for recovered batch")
	}
}

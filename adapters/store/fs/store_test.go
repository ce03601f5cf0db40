package storefs

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/goliatone/go-report/report"
)

func TestStore_PutOpenDelete(t *testing.T) {
	root := t.TempDir()
	store := NewStore(root)

	ref, err := store.Put(context.Background(), "reports/test", bytes.NewBufferString("%PDF-hello"), report.ArtifactMeta{
		Filename: "test.pdf",
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if ref.Meta.Size != 10 {
		t.Fatalf("expected size 10, got %d", ref.Meta.Size)
	}
	if ref.Meta.CreatedAt.IsZero() {
		t.Fatalf("expected created_at set")
	}
	if ref.Meta.ContentType != "application/pdf" {
		t.Fatalf("expected content type from filename, got %q", ref.Meta.ContentType)
	}

	reader, meta, err := store.Open(context.Background(), "reports/test")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	data, err := io.ReadAll(reader)
	_ = reader.Close()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "%PDF-hello" {
		t.Fatalf("expected payload, got %q", string(data))
	}
	if meta.Filename != "test.pdf" {
		t.Fatalf("expected filename, got %q", meta.Filename)
	}

	if err := store.Delete(context.Background(), "reports/test"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	_, _, err = store.Open(context.Background(), "reports/test")
	if report.KindFromError(err) != report.KindNotFound {
		t.Fatalf("expected not found after delete, got %v", err)
	}
	if err := store.Delete(context.Background(), "reports/test"); err != nil {
		t.Fatalf("expected repeat delete to succeed, got %v", err)
	}

	entries, err := os.ReadDir(filepath.Join(root, "reports"))
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no leftover files, found %d", len(entries))
	}
}

func TestStore_KeysStayInsideRoot(t *testing.T) {
	root := t.TempDir()
	store := NewStore(filepath.Join(root, "store"))

	ref, err := store.Put(context.Background(), "../../outside", bytes.NewBufferString("x"), report.ArtifactMeta{})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "store", "outside")); err != nil {
		t.Fatalf("expected artifact inside root: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "outside")); !os.IsNotExist(err) {
		t.Fatalf("expected nothing written outside root")
	}
	_ = ref

	invalid := []string{"", "/", "reports/x.meta.json"}
	for _, key := range invalid {
		_, err := store.Put(context.Background(), key, bytes.NewBufferString("x"), report.ArtifactMeta{})
		if report.KindFromError(err) != report.KindValidation {
			t.Fatalf("key %q: expected validation error, got %v", key, err)
		}
	}
}

func TestStore_Sweep(t *testing.T) {
	now := time.Date(2026, 10, 19, 15, 0, 0, 0, time.UTC)
	store := NewStore(t.TempDir())
	store.Now = func() time.Time { return now }

	put := func(key string, expires time.Time) {
		t.Helper()
		if _, err := store.Put(context.Background(), key, bytes.NewBufferString("doc"), report.ArtifactMeta{ExpiresAt: expires}); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}
	put("reports/expired-b", now.Add(-time.Minute))
	put("reports/expired-a", now)
	put("reports/fresh", now.Add(time.Minute))
	put("reports/forever", time.Time{})

	removed, err := store.Sweep(context.Background(), now)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(removed) != 2 || removed[0] != "reports/expired-a" || removed[1] != "reports/expired-b" {
		t.Fatalf("unexpected removed keys %v", removed)
	}
	for _, key := range []string{"reports/fresh", "reports/forever"} {
		reader, _, err := store.Open(context.Background(), key)
		if err != nil {
			t.Fatalf("expected %s to survive: %v", key, err)
		}
		_ = reader.Close()
	}
}

func TestStore_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewStore(t.TempDir()).Put(ctx, "reports/x", bytes.NewBufferString("x"), report.ArtifactMeta{})
	if report.KindFromError(err) != report.KindCanceled {
		t.Fatalf("expected canceled error, got %v", err)
	}
}

func TestStore_OneTimeDownloadThroughService(t *testing.T) {
	root := t.TempDir()
	now := time.Date(2026, 10, 19, 15, 0, 0, 0, time.UTC)
	svc := report.NewService(report.ServiceConfig{
		Store:       NewStore(root),
		TTL:         time.Minute,
		Now:         func() time.Time { return now },
		IDGenerator: func() string { return "h-1" },
	})

	receipt, err := svc.Publish(context.Background(), report.Success{
		Document:          []byte("%PDF-1.3 body %%EOF"),
		SuggestedFilename: "memo.pdf",
		ContentType:       "application/pdf",
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if receipt.Handle != "h-1" || receipt.Size != 19 {
		t.Fatalf("unexpected receipt %+v", receipt)
	}

	download, err := svc.Download(context.Background(), "h-1")
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	data, _ := io.ReadAll(download.Reader)
	if string(data) != "%PDF-1.3 body %%EOF" {
		t.Fatalf("unexpected payload %q", data)
	}
	if err := download.Reader.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if _, err := os.Stat(filepath.Join(root, "reports", "h-1")); !os.IsNotExist(err) {
		t.Fatalf("expected artifact removed after download")
	}
	if _, err := svc.Download(context.Background(), "h-1"); report.KindFromError(err) != report.KindNotFound {
		t.Fatalf("expected second download to be not found, got %v", err)
	}
}

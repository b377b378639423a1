package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLocalStorage_UploadDownload(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStorage failed: %v", err)
	}

	work := t.TempDir()
	src := writeTempFile(t, work, "recording.edc", "container bytes")

	if err := store.Upload(ctx, src, "sessions/2024/recording.edc"); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}

	exists, err := store.Exists(ctx, "sessions/2024/recording.edc")
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if !exists {
		t.Error("uploaded object should exist")
	}

	dst := filepath.Join(work, "downloaded.edc")
	if err := store.Download(ctx, "sessions/2024/recording.edc", dst); err != nil {
		t.Fatalf("Download failed: %v", err)
	}

	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "container bytes" {
		t.Errorf("downloaded content = %q, want %q", data, "container bytes")
	}
}

func TestLocalStorage_DownloadMissing(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	err = store.Download(ctx, "no/such/object", filepath.Join(t.TempDir(), "out"))
	if !errors.Is(err, ErrObjectNotFound) {
		t.Errorf("Download error = %v, want ErrObjectNotFound", err)
	}
}

func TestLocalStorage_Delete(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	src := writeTempFile(t, t.TempDir(), "a.edc", "x")
	if err := store.Upload(ctx, src, "a.edc"); err != nil {
		t.Fatal(err)
	}

	if err := store.Delete(ctx, "a.edc"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	exists, err := store.Exists(ctx, "a.edc")
	if err != nil {
		t.Fatal(err)
	}
	if exists {
		t.Error("deleted object should not exist")
	}

	// Deleting an absent object is not an error.
	if err := store.Delete(ctx, "a.edc"); err != nil {
		t.Errorf("deleting absent object: %v", err)
	}
}

func TestLocalStorage_ListObjects(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	work := t.TempDir()
	for _, obj := range []string{"runs/s1.edc", "runs/s2.edc", "other/s3.edc"} {
		src := writeTempFile(t, work, filepath.Base(obj), "x")
		if err := store.Upload(ctx, src, obj); err != nil {
			t.Fatal(err)
		}
	}

	objects, err := store.ListObjects(ctx, "runs")
	if err != nil {
		t.Fatalf("ListObjects failed: %v", err)
	}
	if len(objects) != 2 {
		t.Errorf("ListObjects returned %d objects, want 2", len(objects))
	}

	empty, err := store.ListObjects(ctx, "missing-prefix")
	if err != nil {
		t.Fatalf("ListObjects on missing prefix: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("expected empty list for missing prefix, got %v", empty)
	}
}

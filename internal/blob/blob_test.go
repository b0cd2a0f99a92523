package blob

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"testing"
)

func openStores(t *testing.T) map[string]Store {
	t.Helper()
	fsStore, err := NewFilesystem(t.TempDir())
	if err != nil {
		t.Fatalf("NewFilesystem: %v", err)
	}
	return map[string]Store{
		"fs":     fsStore,
		"memory": NewMemory(),
	}
}

func TestStoreRoundTrip(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			payload := "id,name\n1,Proceso"
			info, err := store.Put(ctx, "exports/2026/report.csv", strings.NewReader(payload), PutOptions{
				ContentType: "text/csv",
				Metadata:    map[string]string{"kind": "csv"},
			})
			if err != nil {
				t.Fatalf("Put: %v", err)
			}
			if info.Key != "exports/2026/report.csv" {
				t.Fatalf("unexpected key %q", info.Key)
			}
			if info.Size != int64(len(payload)) {
				t.Fatalf("size = %d, want %d", info.Size, len(payload))
			}
			if info.ETag == "" {
				t.Fatal("expected non-empty etag")
			}

			got, rc, err := store.Get(ctx, "exports/2026/report.csv")
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			data, err := io.ReadAll(rc)
			_ = rc.Close()
			if err != nil {
				t.Fatalf("read: %v", err)
			}
			if string(data) != payload {
				t.Fatalf("content = %q, want %q", data, payload)
			}
			if got.ContentType != "text/csv" {
				t.Fatalf("content type = %q", got.ContentType)
			}
			if got.Metadata["kind"] != "csv" {
				t.Fatalf("metadata = %v", got.Metadata)
			}

			head, err := store.Head(ctx, "exports/2026/report.csv")
			if err != nil {
				t.Fatalf("Head: %v", err)
			}
			if head.ETag != info.ETag {
				t.Fatalf("head etag %q != put etag %q", head.ETag, info.ETag)
			}
		})
	}
}

func TestPutIsCreateOnly(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if _, err := store.Put(ctx, "once.txt", strings.NewReader("a"), PutOptions{}); err != nil {
				t.Fatalf("first Put: %v", err)
			}
			if _, err := store.Put(ctx, "once.txt", strings.NewReader("b"), PutOptions{}); err == nil {
				t.Fatal("expected duplicate Put to fail")
			}
		})
	}
}

func TestDelete(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if _, err := store.Put(ctx, "gone.txt", strings.NewReader("x"), PutOptions{}); err != nil {
				t.Fatalf("Put: %v", err)
			}
			removed, err := store.Delete(ctx, "gone.txt")
			if err != nil || !removed {
				t.Fatalf("Delete = (%v, %v), want (true, nil)", removed, err)
			}
			removed, err = store.Delete(ctx, "gone.txt")
			if err != nil || removed {
				t.Fatalf("second Delete = (%v, %v), want (false, nil)", removed, err)
			}
			if _, err := store.Head(ctx, "gone.txt"); err == nil {
				t.Fatal("expected Head after delete to fail")
			}
		})
	}
}

func TestListByPrefix(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for _, key := range []string{"exports/b.csv", "exports/a.csv", "reports/r.json"} {
				if _, err := store.Put(ctx, key, strings.NewReader(key), PutOptions{}); err != nil {
					t.Fatalf("Put %s: %v", key, err)
				}
			}
			infos, err := store.List(ctx, "exports/")
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if len(infos) != 2 {
				t.Fatalf("got %d blobs, want 2", len(infos))
			}
			if infos[0].Key != "exports/a.csv" || infos[1].Key != "exports/b.csv" {
				t.Fatalf("unexpected order: %q, %q", infos[0].Key, infos[1].Key)
			}
			all, err := store.List(ctx, "")
			if err != nil {
				t.Fatalf("List all: %v", err)
			}
			if len(all) != 3 {
				t.Fatalf("got %d blobs, want 3", len(all))
			}
		})
	}
}

func TestFilesystemRejectsTraversal(t *testing.T) {
	store, err := NewFilesystem(t.TempDir())
	if err != nil {
		t.Fatalf("NewFilesystem: %v", err)
	}
	ctx := context.Background()
	for _, key := range []string{"../escape.txt", "/abs.txt", "a/../../b.txt", "  "} {
		if _, err := store.Put(ctx, key, strings.NewReader("x"), PutOptions{}); err == nil {
			t.Fatalf("expected Put(%q) to fail", key)
		}
	}
}

func TestFilesystemPresignIsLocalURL(t *testing.T) {
	store, err := NewFilesystem(t.TempDir())
	if err != nil {
		t.Fatalf("NewFilesystem: %v", err)
	}
	ctx := context.Background()
	if _, err := store.Put(ctx, "doc.txt", strings.NewReader("x"), PutOptions{}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	url, err := store.PresignURL(ctx, "doc.txt", SignedURLOptions{})
	if err != nil {
		t.Fatalf("PresignURL: %v", err)
	}
	if url != "http://local.blob/doc.txt" {
		t.Fatalf("url = %q", url)
	}
	if _, err := store.PresignURL(ctx, "doc.txt", SignedURLOptions{Method: "PUT"}); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported for PUT, got %v", err)
	}
}

func TestMemoryPresignUnsupported(t *testing.T) {
	store := NewMemory()
	if _, err := store.PresignURL(context.Background(), "k", SignedURLOptions{}); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}

func TestMemoryGetReturnsCopy(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()
	if _, err := store.Put(ctx, "k", strings.NewReader("original"), PutOptions{}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	_, rc, err := store.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	data, _ := io.ReadAll(rc)
	_ = rc.Close()
	data[0] = 'X'
	_, rc, err = store.Get(ctx, "k")
	if err != nil {
		t.Fatalf("second Get: %v", err)
	}
	again, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(again) != "original" {
		t.Fatalf("stored data mutated: %q", again)
	}
}

func TestOpenSelectsDriver(t *testing.T) {
	withEnv(t, map[string]string{
		"PROCESOCORE_BLOB_DRIVER":  "memory",
		"PROCESOCORE_BLOB_FS_ROOT": "",
	})
	store, err := Open(context.Background())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if store.Driver() != DriverMemory {
		t.Fatalf("driver = %q, want memory", store.Driver())
	}

	withEnv(t, map[string]string{
		"PROCESOCORE_BLOB_DRIVER":  "",
		"PROCESOCORE_BLOB_FS_ROOT": t.TempDir(),
	})
	store, err = Open(context.Background())
	if err != nil {
		t.Fatalf("Open default: %v", err)
	}
	if store.Driver() != DriverFilesystem {
		t.Fatalf("default driver = %q, want fs", store.Driver())
	}

	withEnv(t, map[string]string{"PROCESOCORE_BLOB_DRIVER": "tape"})
	if _, err := Open(context.Background()); err == nil {
		t.Fatal("expected unknown driver error")
	}
}

func withEnv(t *testing.T, vars map[string]string) {
	t.Helper()
	for key, value := range vars {
		prev, had := os.LookupEnv(key)
		if value == "" {
			_ = os.Unsetenv(key)
		} else {
			_ = os.Setenv(key, value)
		}
		t.Cleanup(func() {
			if had {
				_ = os.Setenv(key, prev)
			} else {
				_ = os.Unsetenv(key)
			}
		})
	}
}

package blob

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"
)

func TestOpenSelectsDriverFromEnv(t *testing.T) {
	ctx := context.Background()

	t.Setenv("LINEAGECORE_BLOB_DRIVER", "memory")
	store, err := Open(ctx)
	if err != nil {
		t.Fatalf("open memory: %v", err)
	}
	if store.Driver() != DriverMemory {
		t.Fatalf("expected memory driver, got %s", store.Driver())
	}

	root := filepath.Join(t.TempDir(), "artifacts")
	t.Setenv("LINEAGECORE_BLOB_DRIVER", "fs")
	t.Setenv("LINEAGECORE_BLOB_FS_ROOT", root)
	store, err = Open(ctx)
	if err != nil {
		t.Fatalf("open fs: %v", err)
	}
	if store.Driver() != DriverFilesystem {
		t.Fatalf("expected fs driver, got %s", store.Driver())
	}

	t.Setenv("LINEAGECORE_BLOB_DRIVER", "carrier-pigeon")
	if _, err := Open(ctx); err == nil {
		t.Fatalf("expected unknown driver error")
	}
}

func TestOpenDefaultsToFilesystem(t *testing.T) {
	t.Setenv("LINEAGECORE_BLOB_DRIVER", "")
	t.Setenv("LINEAGECORE_BLOB_FS_ROOT", t.TempDir())
	store, err := Open(context.Background())
	if err != nil {
		t.Fatalf("open default: %v", err)
	}
	if store.Driver() != DriverFilesystem {
		t.Fatalf("expected fs default, got %s", store.Driver())
	}
}

func TestOpenS3RequiresBucket(t *testing.T) {
	t.Setenv("LINEAGECORE_BLOB_DRIVER", "s3")
	t.Setenv("LINEAGECORE_S3_BUCKET", "")
	if _, err := Open(context.Background()); err == nil {
		t.Fatalf("expected missing bucket error")
	}
}

func TestFacadeRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	payload := []byte("0 0 3 0\n")
	if _, err := store.Put(ctx, "ctc/man_track.txt", bytes.NewReader(payload), PutOptions{ContentType: "text/plain"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	_, rc, err := store.Get(ctx, "ctc/man_track.txt")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	got, _ := io.ReadAll(rc)
	_ = rc.Close()
	if !bytes.Equal(got, payload) {
		t.Fatalf("payload mismatch: %q", got)
	}
	if _, err := store.PresignURL(ctx, "ctc/man_track.txt", SignedURLOptions{}); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}

func TestMockS3FacadeConstructor(t *testing.T) {
	store := NewMockS3ForTests()
	if store.Driver() != DriverS3 {
		t.Fatalf("expected s3 driver, got %s", store.Driver())
	}
}

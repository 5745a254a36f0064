package storage_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"bmsrender/internal/storage"
	"bmsrender/internal/testsupport"
)

func TestLocalFSPutCopiesArtifact(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(t.TempDir(), "op-1.mp3")
	testsupport.WriteFile(t, src, []byte("mp3 payload"))

	provider := storage.NewLocalFS(root)
	key, err := provider.Put(context.Background(), "op-1.mp3", src)
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if key != "op-1.mp3" {
		t.Fatalf("unexpected object key %q", key)
	}

	data, err := os.ReadFile(filepath.Join(root, "op-1.mp3"))
	if err != nil {
		t.Fatalf("read stored object: %v", err)
	}
	if string(data) != "mp3 payload" {
		t.Fatalf("stored object differs from artifact: %q", data)
	}
}

func TestLocalFSPutCreatesNestedKeys(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(t.TempDir(), "op-2.mp3")
	testsupport.WriteFile(t, src, []byte("mp3"))

	provider := storage.NewLocalFS(root)
	if _, err := provider.Put(context.Background(), "renders/2026/op-2.mp3", src); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "renders", "2026", "op-2.mp3")); err != nil {
		t.Fatalf("expected nested object: %v", err)
	}
}

func TestLocalFSPutRejectsMissingArtifact(t *testing.T) {
	provider := storage.NewLocalFS(t.TempDir())
	if _, err := provider.Put(context.Background(), "op-3.mp3", filepath.Join(t.TempDir(), "absent.mp3")); err == nil {
		t.Fatal("expected error for missing artifact")
	}
}

func TestLocalFSPutRejectsEmptyKey(t *testing.T) {
	provider := storage.NewLocalFS(t.TempDir())
	if _, err := provider.Put(context.Background(), "", "whatever"); err == nil {
		t.Fatal("expected error for empty key")
	}
}

func TestNewProviderSelection(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	cfg.Storage.Provider = "localfs"
	provider, err := storage.NewProvider(cfg)
	if err != nil {
		t.Fatalf("NewProvider failed: %v", err)
	}
	if provider.Name() != "localfs" {
		t.Fatalf("unexpected provider %s", provider.Name())
	}

	cfg.Storage.Provider = "s3"
	if _, err := storage.NewProvider(cfg); err == nil {
		t.Fatal("expected error for unknown provider")
	}

	cfg.Storage.Provider = "gdrive"
	if _, err := storage.NewProvider(cfg); err == nil {
		t.Fatal("expected error for gdrive without credentials")
	}
}

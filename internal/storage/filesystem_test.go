package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/docsight/docsight/internal/config"
)

func newTestStorage(t *testing.T) System {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sys, err := New(&config.StorageConfig{BasePath: t.TempDir()}, logger)
	if err != nil {
		t.Fatalf("create storage: %v", err)
	}
	return sys
}

func TestStoreAndRetrieve(t *testing.T) {
	ctx := context.Background()
	sys := newTestStorage(t)

	data := []byte("%PDF-1.7 content")
	if err := sys.Store(ctx, "documents/abc/report.pdf", data); err != nil {
		t.Fatalf("store: %v", err)
	}

	got, err := sys.Retrieve(ctx, "documents/abc/report.pdf")
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("retrieved data differs: %q", got)
	}
}

func TestStoreOverwrites(t *testing.T) {
	ctx := context.Background()
	sys := newTestStorage(t)

	if err := sys.Store(ctx, "k", []byte("first")); err != nil {
		t.Fatalf("store: %v", err)
	}
	if err := sys.Store(ctx, "k", []byte("second")); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	got, err := sys.Retrieve(ctx, "k")
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if string(got) != "second" {
		t.Errorf("expected overwritten contents, got %q", got)
	}
}

func TestRetrieveMissing(t *testing.T) {
	sys := newTestStorage(t)

	if _, err := sys.Retrieve(context.Background(), "missing/key"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	sys := newTestStorage(t)

	if err := sys.Store(ctx, "documents/x/f.pdf", []byte("data")); err != nil {
		t.Fatalf("store: %v", err)
	}
	if err := sys.Delete(ctx, "documents/x/f.pdf"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := sys.Delete(ctx, "documents/x/f.pdf"); err != nil {
		t.Errorf("second delete: %v", err)
	}

	exists, err := sys.Validate(ctx, "documents/x/f.pdf")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if exists {
		t.Error("expected key gone after delete")
	}
}

func TestDeletePrefix(t *testing.T) {
	ctx := context.Background()
	sys := newTestStorage(t)

	keys := []string{
		"images/doc1/page-0001.jpg",
		"images/doc1/page-0002.jpg",
		"images/doc2/page-0001.jpg",
	}
	for _, key := range keys {
		if err := sys.Store(ctx, key, []byte("img")); err != nil {
			t.Fatalf("store %s: %v", key, err)
		}
	}

	if err := sys.DeletePrefix(ctx, "images/doc1"); err != nil {
		t.Fatalf("delete prefix: %v", err)
	}

	for _, key := range keys[:2] {
		if exists, _ := sys.Validate(ctx, key); exists {
			t.Errorf("expected %s removed", key)
		}
	}
	if exists, _ := sys.Validate(ctx, keys[2]); !exists {
		t.Errorf("expected %s untouched", keys[2])
	}
}

func TestPathResolvesUnderBase(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sys, err := New(&config.StorageConfig{BasePath: base}, logger)
	if err != nil {
		t.Fatalf("create storage: %v", err)
	}

	path, err := sys.Path(ctx, "documents/a/b.pdf")
	if err != nil {
		t.Fatalf("path: %v", err)
	}
	if want := filepath.Join(base, "documents", "a", "b.pdf"); path != want {
		t.Errorf("expected %s, got %s", want, path)
	}
}

func TestInvalidKeys(t *testing.T) {
	ctx := context.Background()
	sys := newTestStorage(t)

	tests := []struct {
		name string
		key  string
	}{
		{"empty", ""},
		{"traversal", "../escape"},
		{"nested traversal", "documents/../../escape"},
		{"absolute", "/etc/passwd"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if err := sys.Store(ctx, tc.key, []byte("x")); !errors.Is(err, ErrInvalidKey) {
				t.Errorf("store: expected ErrInvalidKey, got %v", err)
			}
			if _, err := sys.Retrieve(ctx, tc.key); !errors.Is(err, ErrInvalidKey) {
				t.Errorf("retrieve: expected ErrInvalidKey, got %v", err)
			}
		})
	}
}

func TestDeleteRemovesEmptyParent(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sys, err := New(&config.StorageConfig{BasePath: base}, logger)
	if err != nil {
		t.Fatalf("create storage: %v", err)
	}

	if err := sys.Store(ctx, "documents/solo/f.pdf", []byte("data")); err != nil {
		t.Fatalf("store: %v", err)
	}
	if err := sys.Delete(ctx, "documents/solo/f.pdf"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if _, err := os.Stat(filepath.Join(base, "documents", "solo")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected empty parent directory removed, got %v", err)
	}
}

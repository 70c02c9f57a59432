package storage

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestFileBackendBootstrapsMissingFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "db.json")
	backend := NewFileBackend(path)

	got, err := backend.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got) != "[]" {
		t.Fatalf("expected empty collection, got %q", got)
	}

	onDisk, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("expected file to be created: %v", err)
	}
	if string(onDisk) != "[]" {
		t.Fatalf("expected bootstrapped file to contain [], got %q", onDisk)
	}
}

func TestFileBackendLoadsExistingFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "db.json")
	want := []byte(`[{"id":"abc"}]`)
	if err := os.WriteFile(path, want, 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	got, err := NewFileBackend(path).Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestFileBackendSaveOverwrites(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "db.json")
	backend := NewFileBackend(path)

	if err := backend.Save([]byte(`[{"id":"a"},{"id":"b"},{"id":"c"}]`)); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if err := backend.Save([]byte(`[{"id":"a"}]`)); err != nil {
		t.Fatalf("second save: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	if string(got) != `[{"id":"a"}]` {
		t.Fatalf("expected file to be overwritten, got %q", got)
	}
}

func TestFileBackendSaveReportsWriteErrors(t *testing.T) {
	t.Parallel()

	backend := NewFileBackend(filepath.Join(t.TempDir(), "missing", "db.json"))
	if err := backend.Save([]byte("[]")); err == nil {
		t.Fatalf("expected error writing into a missing directory")
	}
}

func TestMemoryBackendReturnsDefensiveCopies(t *testing.T) {
	t.Parallel()

	backend := NewMemoryBackend()
	payload := []byte(`[{"id":"x"}]`)
	if err := backend.Save(payload); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// mutating the caller's slice must not leak into the backend
	payload[0] = '{'
	got, err := backend.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got) != `[{"id":"x"}]` {
		t.Fatalf("expected stored copy, got %q", got)
	}

	got[0] = '{'
	again, _ := backend.Load()
	if bytes.Equal(again, got) {
		t.Fatalf("expected defensive copy, got %q", again)
	}
}

func TestMemoryBackendConcurrentAccess(t *testing.T) {
	backend := NewMemoryBackend()
	var wg sync.WaitGroup

	for i := 0; i < 32; i++ {
		wg.Add(2)

		go func() {
			defer wg.Done()
			if err := backend.Save([]byte("[]")); err != nil {
				t.Errorf("Save failed: %v", err)
			}
		}()

		go func() {
			defer wg.Done()
			if _, err := backend.Load(); err != nil {
				t.Errorf("Load failed: %v", err)
			}
		}()
	}

	wg.Wait()
}

func TestNewSelectsBackend(t *testing.T) {
	t.Parallel()

	fileBackend, err := New("file", "db.json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fb, ok := fileBackend.(*FileBackend); !ok || fb.Path() != "db.json" {
		t.Fatalf("expected file backend for db.json, got %#v", fileBackend)
	}

	memBackend, err := New(" Memory ", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := memBackend.(*MemoryBackend); !ok {
		t.Fatalf("expected memory backend, got %#v", memBackend)
	}

	if _, err := New("s3", ""); !errors.Is(err, ErrUnknownBackend) {
		t.Fatalf("expected ErrUnknownBackend, got %v", err)
	}
}

package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcher_ingestsDroppedZip(t *testing.T) {
	dir := t.TempDir()
	ingested := make(chan string, 1)

	w := NewWatcher([]string{dir}, func(path string) {
		ingested <- path
	}, WithDebounce(50*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	zipPath := filepath.Join(dir, "course.zip")
	if err := os.WriteFile(zipPath, []byte("PK\x03\x04"), 0600); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-ingested:
		if got != zipPath {
			t.Errorf("ingested %q, want %q", got, zipPath)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for ingest callback")
	}
}

func TestWatcher_ignoresNonZip(t *testing.T) {
	dir := t.TempDir()
	ingested := make(chan string, 1)

	w := NewWatcher([]string{dir}, func(path string) {
		ingested <- path
	}, WithDebounce(50*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-ingested:
		t.Errorf("unexpected ingest of %q", got)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcher_debouncesRepeatedWrites(t *testing.T) {
	dir := t.TempDir()
	ingested := make(chan string, 4)

	w := NewWatcher([]string{dir}, func(path string) {
		ingested <- path
	}, WithDebounce(200*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	zipPath := filepath.Join(dir, "big.zip")
	f, err := os.Create(zipPath)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		if _, err := f.Write([]byte("chunk")); err != nil {
			t.Fatal(err)
		}
		_ = f.Sync()
		time.Sleep(30 * time.Millisecond)
	}
	_ = f.Close()

	select {
	case <-ingested:
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for ingest callback")
	}
	// The writes above must have coalesced into a single callback.
	select {
	case got := <-ingested:
		t.Errorf("second ingest for %q; writes were not debounced", got)
	case <-time.After(400 * time.Millisecond):
	}
}

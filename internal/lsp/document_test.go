package lsp

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ch0mler/yara-language-server/internal/protocol"
)

func TestDocumentStoreDiskFallback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yara")
	if err := os.WriteFile(path, []byte("rule OnDisk { condition: true }"), 0o644); err != nil {
		t.Fatal(err)
	}

	store := NewDocumentStore()
	text, err := store.Text(protocol.FilePathToURI(path))
	if err != nil {
		t.Fatalf("Text() error = %v", err)
	}
	if text != "rule OnDisk { condition: true }" {
		t.Errorf("Text() = %q", text)
	}
}

func TestDocumentStoreOverlayWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yara")
	if err := os.WriteFile(path, []byte("stale"), 0o644); err != nil {
		t.Fatal(err)
	}
	uri := protocol.FilePathToURI(path)

	store := NewDocumentStore()
	store.MarkDirty(uri, "fresh")

	text, err := store.Text(uri)
	if err != nil {
		t.Fatalf("Text() error = %v", err)
	}
	if text != "fresh" {
		t.Errorf("Text() = %q, want the overlay", text)
	}

	// forgetting the overlay falls back to disk
	store.Forget(uri)
	text, err = store.Text(uri)
	if err != nil {
		t.Fatalf("Text() after Forget error = %v", err)
	}
	if text != "stale" {
		t.Errorf("Text() after Forget = %q, want disk contents", text)
	}
}

func TestDocumentStoreMissing(t *testing.T) {
	store := NewDocumentStore()
	_, err := store.Text(protocol.FilePathToURI(filepath.Join(t.TempDir(), "absent.yara")))
	if !errors.Is(err, ErrDocumentNotFound) {
		t.Errorf("Text() error = %v, want ErrDocumentNotFound", err)
	}
}

func TestDocumentStoreClear(t *testing.T) {
	store := NewDocumentStore()
	store.MarkDirty("file:///a.yara", "a")
	store.MarkDirty("file:///b.yara", "b")

	if got := len(store.Dirty()); got != 2 {
		t.Fatalf("Dirty() has %d entries, want 2", got)
	}

	store.Clear()
	if got := len(store.Dirty()); got != 0 {
		t.Errorf("Dirty() after Clear has %d entries", got)
	}
}

func TestDocumentStoreDirtySnapshot(t *testing.T) {
	store := NewDocumentStore()
	store.MarkDirty("file:///a.yara", "a")

	snap := store.Dirty()
	store.MarkDirty("file:///b.yara", "b")
	if len(snap) != 1 {
		t.Errorf("snapshot changed after MarkDirty: %v", snap)
	}
}

package lsp

import (
	"fmt"
	"os"
	"sync"

	"github.com/ch0mler/yara-language-server/internal/protocol"
)

// DocumentStore tracks the unsaved contents of open documents. Feature
// requests read from it first so results reflect what the user sees in the
// editor rather than what is on disk.
type DocumentStore struct {
	mu    sync.Mutex
	dirty map[protocol.DocumentURI]string
}

// NewDocumentStore creates an empty store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{dirty: make(map[protocol.DocumentURI]string)}
}

// Text returns the current contents of the document: the dirty overlay if
// one exists, otherwise the file on disk.
func (s *DocumentStore) Text(uri protocol.DocumentURI) (string, error) {
	s.mu.Lock()
	text, ok := s.dirty[uri]
	s.mu.Unlock()
	if ok {
		return text, nil
	}

	path := protocol.URIToFilePath(uri)
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDocumentNotFound, err)
	}
	return string(data), nil
}

// MarkDirty records the latest full contents of a changed document.
func (s *DocumentStore) MarkDirty(uri protocol.DocumentURI, text string) {
	s.mu.Lock()
	s.dirty[uri] = text
	s.mu.Unlock()
}

// Forget removes the overlay for a document, typically after didSave or
// didClose, so subsequent reads fall through to disk.
func (s *DocumentStore) Forget(uri protocol.DocumentURI) {
	s.mu.Lock()
	delete(s.dirty, uri)
	s.mu.Unlock()
}

// Clear drops all overlays.
func (s *DocumentStore) Clear() {
	s.mu.Lock()
	s.dirty = make(map[protocol.DocumentURI]string)
	s.mu.Unlock()
}

// Dirty returns a snapshot of the current overlays.
func (s *DocumentStore) Dirty() map[protocol.DocumentURI]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[protocol.DocumentURI]string, len(s.dirty))
	for uri, text := range s.dirty {
		out[uri] = text
	}
	return out
}

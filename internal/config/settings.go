package config

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Settings is the workspace configuration pushed by a client through
// workspace/didChangeConfiguration. It is kept as a raw JSON document and
// accessed by dotted path, so unknown keys survive round trips untouched.
// One Settings instance belongs to one connection.
type Settings struct {
	mu  sync.RWMutex
	raw []byte
}

// NewSettings returns an empty settings store.
func NewSettings() *Settings {
	return &Settings{raw: []byte("{}")}
}

// Replace swaps in a whole new settings document.
func (s *Settings) Replace(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("settings are not a valid JSON document")
	}
	s.mu.Lock()
	s.raw = data
	s.mu.Unlock()
	return nil
}

// Set assigns a single value by dotted path, e.g. "yara.compile_on_save".
func (s *Settings) Set(path string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, err := sjson.SetBytes(s.raw, path, value)
	if err != nil {
		return fmt.Errorf("set %q: %w", path, err)
	}
	s.raw = raw
	return nil
}

// Bool reads a boolean by dotted path, returning false when absent.
func (s *Settings) Bool(path string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return gjson.GetBytes(s.raw, path).Bool()
}

// String reads a string by dotted path, returning "" when absent.
func (s *Settings) String(path string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return gjson.GetBytes(s.raw, path).String()
}

// Raw returns the current settings document.
func (s *Settings) Raw() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return string(s.raw)
}

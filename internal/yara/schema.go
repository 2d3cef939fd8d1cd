package yara

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

//go:embed data/modules.json
var modulesJSON []byte

// EntryKind classifies a schema entry for completion purposes.
type EntryKind int

const (
	// KindClass is a nested namespace with further children.
	KindClass EntryKind = iota
	// KindProperty is a plain value member.
	KindProperty
	// KindMethod is a callable member.
	KindMethod
	// KindEnum is an enumerated constant.
	KindEnum
	// KindKeyList is a dictionary-like member with a known set of literal keys.
	KindKeyList
)

// String returns a human-readable kind name.
func (k EntryKind) String() string {
	switch k {
	case KindClass:
		return "class"
	case KindProperty:
		return "property"
	case KindMethod:
		return "method"
	case KindEnum:
		return "enum"
	case KindKeyList:
		return "keylist"
	default:
		return "unknown"
	}
}

// Entry is one child of a schema node.
type Entry struct {
	Label string
	Kind  EntryKind
	// Keys holds the literal key names of a KindKeyList entry.
	Keys []string
}

// Schema is the static module capability schema: a nested mapping from
// dotted module paths to member names tagged with a completion kind.
// It is immutable after load and safe to share across connections.
type Schema struct {
	doc gjson.Result
}

// LoadSchema parses the packaged module schema.
func LoadSchema() (*Schema, error) {
	if !gjson.ValidBytes(modulesJSON) {
		return nil, fmt.Errorf("packaged module schema is not valid JSON")
	}
	return &Schema{doc: gjson.ParseBytes(modulesJSON)}, nil
}

// Lookup walks the schema along the dotted path and enumerates the children
// of the final segment. It returns false when any path segment is absent or
// the final segment has no enumerable children.
func (s *Schema) Lookup(path []string) ([]Entry, bool) {
	if len(path) == 0 {
		return nil, false
	}
	node := s.doc.Get(strings.Join(path, "."))
	if !node.Exists() {
		return nil, false
	}

	switch {
	case node.IsObject():
		var entries []Entry
		node.ForEach(func(key, value gjson.Result) bool {
			entries = append(entries, childEntry(key.String(), value))
			return true
		})
		return entries, true
	case node.IsArray():
		// dictionary-like member: its children are the literal keys
		var entries []Entry
		for _, key := range node.Array() {
			entries = append(entries, Entry{Label: key.String(), Kind: KindProperty})
		}
		return entries, true
	default:
		return nil, false
	}
}

// Modules returns the top-level module names in schema order.
func (s *Schema) Modules() []string {
	var names []string
	s.doc.ForEach(func(key, _ gjson.Result) bool {
		names = append(names, key.String())
		return true
	})
	return names
}

func childEntry(label string, value gjson.Result) Entry {
	switch {
	case value.IsObject():
		return Entry{Label: label, Kind: KindClass}
	case value.IsArray():
		keys := make([]string, 0, len(value.Array()))
		for _, key := range value.Array() {
			keys = append(keys, key.String())
		}
		return Entry{Label: label, Kind: KindKeyList, Keys: keys}
	}

	switch strings.ToLower(value.String()) {
	case "enum":
		return Entry{Label: label, Kind: KindEnum}
	case "property":
		return Entry{Label: label, Kind: KindProperty}
	case "method":
		return Entry{Label: label, Kind: KindMethod}
	default:
		return Entry{Label: label, Kind: KindClass}
	}
}

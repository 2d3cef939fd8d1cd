package lsp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/ch0mler/yara-language-server/internal/protocol"
	"github.com/ch0mler/yara-language-server/internal/yara"
)

func newBareSession(t *testing.T, opts ...SessionOption) *Session {
	t.Helper()
	return NewSession(duplex{strings.NewReader(""), io.Discard}, discardLogger(), opts...)
}

func positionRequest(uri string, line, char int) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(
		`{"textDocument":{"uri":%q},"position":{"line":%d,"character":%d}}`, uri, line, char))
}

func TestHoverShowsDeclaredValue(t *testing.T) {
	s := newBareSession(t)
	s.docs.MarkDirty("file:///t.yara", sampleDoc)

	result, err := s.hover(context.Background(), 1, positionRequest("file:///t.yara", 6, 9))
	if err != nil {
		t.Fatalf("hover() error = %v", err)
	}
	hover, ok := result.(protocol.Hover)
	if !ok {
		t.Fatalf("hover() = %T, want Hover", result)
	}
	if hover.Contents.Kind != protocol.MarkupKindPlainText {
		t.Errorf("contents kind = %q", hover.Contents.Kind)
	}
	if hover.Contents.Value != `"one"` {
		t.Errorf("contents value = %q, want the declared string", hover.Contents.Value)
	}
}

func TestHoverNullOffSymbol(t *testing.T) {
	s := newBareSession(t)
	s.docs.MarkDirty("file:///t.yara", sampleDoc)

	tests := []struct {
		name       string
		line, char int
	}{
		{"whitespace", 6, 2},
		{"rule name is not a variable", 0, 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := s.hover(context.Background(), 1, positionRequest("file:///t.yara", tt.line, tt.char))
			if err != nil {
				t.Fatalf("hover() error = %v", err)
			}
			if result != nil {
				t.Errorf("hover() = %+v, want nil", result)
			}
		})
	}
}

func TestReferencesSpansSigils(t *testing.T) {
	s := newBareSession(t)
	s.docs.MarkDirty("file:///t.yara", sampleDoc)

	result, err := s.references(context.Background(), 1, positionRequest("file:///t.yara", 6, 9))
	if err != nil {
		t.Fatalf("references() error = %v", err)
	}
	locs, ok := result.([]protocol.Location)
	if !ok {
		t.Fatalf("references() = %T, want []Location", result)
	}
	// $a declaration and #a count reference, but not $abc
	if len(locs) != 2 {
		t.Fatalf("got %d locations, want 2: %+v", len(locs), locs)
	}
	for _, loc := range locs {
		if loc.URI != "file:///t.yara" {
			t.Errorf("location uri = %q", loc.URI)
		}
	}
}

func TestRenameRewritesReferences(t *testing.T) {
	s := newBareSession(t)
	s.docs.MarkDirty("file:///t.yara", sampleDoc)

	raw := json.RawMessage(`{"textDocument":{"uri":"file:///t.yara"},"position":{"line":6,"character":9},"newName":"$counter"}`)
	result, err := s.rename(context.Background(), 1, raw)
	if err != nil {
		t.Fatalf("rename() error = %v", err)
	}
	edit, ok := result.(protocol.WorkspaceEdit)
	if !ok {
		t.Fatalf("rename() = %T, want WorkspaceEdit", result)
	}
	edits := edit.Changes["file:///t.yara"]
	if len(edits) != 2 {
		t.Fatalf("got %d edits, want 2: %+v", len(edits), edits)
	}
	for _, e := range edits {
		// the sigil sits outside the edit range and the new name drops its own
		if e.NewText != "counter" {
			t.Errorf("edit text = %q, want counter", e.NewText)
		}
		if e.Range.Start.Character != 9 {
			t.Errorf("edit starts at %d, must exclude the sigil", e.Range.Start.Character)
		}
	}
}

func TestRenameRejections(t *testing.T) {
	doc := sampleDoc + "\n\nrule Second\n{\n    condition:\n        any of ($a*)\n}\n"
	s := newBareSession(t)
	s.docs.MarkDirty("file:///t.yara", doc)

	tests := []struct {
		name string
		raw  string
	}{
		{
			"blank new name",
			`{"textDocument":{"uri":"file:///t.yara"},"position":{"line":6,"character":9},"newName":""}`,
		},
		{
			"sigil-only new name",
			`{"textDocument":{"uri":"file:///t.yara"},"position":{"line":6,"character":9},"newName":"$"}`,
		},
		{
			"identical name",
			`{"textDocument":{"uri":"file:///t.yara"},"position":{"line":6,"character":9},"newName":"$a"}`,
		},
		{
			"wildcard symbol",
			`{"textDocument":{"uri":"file:///t.yara"},"position":{"line":12,"character":17},"newName":"$b"}`,
		},
		{
			"wildcard new name",
			`{"textDocument":{"uri":"file:///t.yara"},"position":{"line":6,"character":9},"newName":"$b*"}`,
		},
		{
			"no symbol under cursor",
			`{"textDocument":{"uri":"file:///t.yara"},"position":{"line":1,"character":0},"newName":"$b"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := s.rename(context.Background(), 1, json.RawMessage(tt.raw))
			if err != nil {
				t.Fatalf("rename() error = %v", err)
			}
			edit, ok := result.(protocol.WorkspaceEdit)
			if !ok {
				t.Fatalf("rename() = %T, want WorkspaceEdit", result)
			}
			total := 0
			for _, edits := range edit.Changes {
				total += len(edits)
			}
			if total != 0 {
				t.Errorf("got %d edits, want none: %+v", total, edit.Changes)
			}
		})
	}
}

func TestCompletionAfterTrigger(t *testing.T) {
	schema, err := yara.LoadSchema()
	if err != nil {
		t.Fatal(err)
	}
	s := newBareSession(t, WithSchema(schema))
	s.docs.MarkDirty("file:///t.yara", "    cuckoo.network.\n")

	result, err := s.completion(context.Background(), 1, positionRequest("file:///t.yara", 0, 19))
	if err != nil {
		t.Fatalf("completion() error = %v", err)
	}
	items, ok := result.([]protocol.CompletionItem)
	if !ok {
		t.Fatalf("completion() = %T, want []CompletionItem", result)
	}

	labels := make(map[string]protocol.CompletionItemKind)
	for _, item := range items {
		labels[item.Label] = item.Kind
	}
	if kind, found := labels["http_get"]; !found || kind != protocol.CompletionItemKindMethod {
		t.Errorf("http_get missing or wrong kind: %v", labels)
	}
}

func TestCompletionCuckooChildren(t *testing.T) {
	schema, err := yara.LoadSchema()
	if err != nil {
		t.Fatal(err)
	}
	s := newBareSession(t, WithSchema(schema))
	s.docs.MarkDirty("file:///t.yara", "    cuckoo.\n")

	result, err := s.completion(context.Background(), 1, positionRequest("file:///t.yara", 0, 11))
	if err != nil {
		t.Fatalf("completion() error = %v", err)
	}
	items, ok := result.([]protocol.CompletionItem)
	if !ok {
		t.Fatalf("completion() = %T, want []CompletionItem", result)
	}
	if len(items) != 4 {
		t.Fatalf("got %d items, want the 4 cuckoo children: %+v", len(items), items)
	}
	got := make(map[string]bool, 4)
	for _, item := range items {
		got[item.Label] = true
	}
	for _, want := range []string{"network", "registry", "filesystem", "sync"} {
		if !got[want] {
			t.Errorf("missing child %q in %v", want, got)
		}
	}
}

func TestCompletionPrefixFilter(t *testing.T) {
	schema, err := yara.LoadSchema()
	if err != nil {
		t.Fatal(err)
	}
	s := newBareSession(t, WithSchema(schema))
	s.docs.MarkDirty("file:///t.yara", "    cuckoo.net\n")

	result, err := s.completion(context.Background(), 1, positionRequest("file:///t.yara", 0, 14))
	if err != nil {
		t.Fatalf("completion() error = %v", err)
	}
	items, ok := result.([]protocol.CompletionItem)
	if !ok {
		t.Fatalf("completion() = %T, want []CompletionItem", result)
	}
	if len(items) != 1 || items[0].Label != "network" {
		t.Fatalf("items = %+v, want just network", items)
	}
	if items[0].Kind != protocol.CompletionItemKindClass {
		t.Errorf("network kind = %v, want class", items[0].Kind)
	}
}

func TestCompletionModulePrefix(t *testing.T) {
	schema, err := yara.LoadSchema()
	if err != nil {
		t.Fatal(err)
	}
	s := newBareSession(t, WithSchema(schema))
	s.docs.MarkDirty("file:///t.yara", "    cuck\n")

	result, err := s.completion(context.Background(), 1, positionRequest("file:///t.yara", 0, 8))
	if err != nil {
		t.Fatalf("completion() error = %v", err)
	}
	items, ok := result.([]protocol.CompletionItem)
	if !ok {
		t.Fatalf("completion() = %T, want []CompletionItem", result)
	}
	if len(items) != 1 || items[0].Label != "cuckoo" {
		t.Fatalf("items = %+v, want just cuckoo", items)
	}
	if items[0].Kind != protocol.CompletionItemKindModule {
		t.Errorf("cuckoo kind = %v, want module", items[0].Kind)
	}
}

func TestCompletionMethodSnippet(t *testing.T) {
	schema, err := yara.LoadSchema()
	if err != nil {
		t.Fatal(err)
	}
	s := newBareSession(t, WithSchema(schema))
	s.docs.MarkDirty("file:///t.yara", "        pe.is_dll\n")

	result, err := s.completion(context.Background(), 1, positionRequest("file:///t.yara", 0, 17))
	if err != nil {
		t.Fatalf("completion() error = %v", err)
	}
	items, ok := result.([]protocol.CompletionItem)
	if !ok {
		t.Fatalf("completion() = %T, want []CompletionItem", result)
	}
	if len(items) != 1 {
		t.Fatalf("items = %+v, want just is_dll", items)
	}
	if items[0].InsertText != "is_dll()" {
		t.Errorf("insertText = %q, want call snippet", items[0].InsertText)
	}
	if items[0].InsertTextFormat != protocol.InsertTextFormatPlainText {
		t.Errorf("insertTextFormat = %v, want plaintext", items[0].InsertTextFormat)
	}
	if items[0].Kind != protocol.CompletionItemKindMethod {
		t.Errorf("kind = %v, want method", items[0].Kind)
	}
}

func TestCompletionDictionaryKeys(t *testing.T) {
	schema, err := yara.LoadSchema()
	if err != nil {
		t.Fatal(err)
	}
	s := newBareSession(t, WithSchema(schema))
	s.docs.MarkDirty("file:///t.yara", "        pe.version_info\n")

	result, err := s.completion(context.Background(), 1, positionRequest("file:///t.yara", 0, 23))
	if err != nil {
		t.Fatalf("completion() error = %v", err)
	}
	items, ok := result.([]protocol.CompletionItem)
	if !ok {
		t.Fatalf("completion() = %T, want []CompletionItem", result)
	}

	keys := []string{
		"Comments", "CompanyName", "FileDescription", "FileVersion", "InternalName",
		"LegalCopyright", "LegalTrademarks", "OriginalFilename", "ProductName", "ProductVersion",
	}
	if len(items) != len(keys) {
		t.Fatalf("got %d items, want one per dictionary key: %+v", len(items), items)
	}
	got := make(map[string]bool, len(items))
	for _, item := range items {
		if item.InsertText != item.Label {
			t.Errorf("insertText = %q, label = %q, want them equal", item.InsertText, item.Label)
		}
		got[item.InsertText] = true
	}
	for _, key := range keys {
		want := fmt.Sprintf("version_info[%q]", key)
		if !got[want] {
			t.Errorf("missing suggestion %q in %v", want, got)
		}
	}
}

func TestCompletionIgnoresVariables(t *testing.T) {
	schema, err := yara.LoadSchema()
	if err != nil {
		t.Fatal(err)
	}
	s := newBareSession(t, WithSchema(schema))
	s.docs.MarkDirty("file:///t.yara", "    $str\n")

	result, err := s.completion(context.Background(), 1, positionRequest("file:///t.yara", 0, 8))
	if err != nil {
		t.Fatalf("completion() error = %v", err)
	}
	if result != nil {
		t.Errorf("completion() = %+v, want nil for a variable", result)
	}
}

func TestHighlightAlwaysEmpty(t *testing.T) {
	s := newBareSession(t)
	result, err := s.highlight(context.Background(), 1, nil)
	if err != nil {
		t.Fatalf("highlight() error = %v", err)
	}
	highlights, ok := result.([]protocol.DocumentHighlight)
	if !ok {
		t.Fatalf("highlight() = %T", result)
	}
	if len(highlights) != 0 {
		t.Errorf("highlight() returned %d entries, want none", len(highlights))
	}
}

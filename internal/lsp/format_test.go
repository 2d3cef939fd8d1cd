package lsp

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/ch0mler/yara-language-server/internal/protocol"
	"github.com/ch0mler/yara-language-server/internal/yara"
)

func TestFormattingRewritesRule(t *testing.T) {
	s := newBareSession(t, WithFormatter(yara.NewFormatter()))
	s.docs.MarkDirty("file:///t.yara", "rule Messy\n{\ncondition:\ntrue\n}\n")

	raw := json.RawMessage(`{"textDocument":{"uri":"file:///t.yara"},"options":{"tabSize":4,"insertSpaces":true,"trimTrailingWhitespace":true}}`)
	result, err := s.formatting(context.Background(), 1, raw)
	if err != nil {
		t.Fatalf("formatting() error = %v", err)
	}
	edits, ok := result.([]protocol.TextEdit)
	if !ok {
		t.Fatalf("formatting() = %T, want []TextEdit", result)
	}
	if len(edits) != 1 {
		t.Fatalf("got %d edits, want 1: %+v", len(edits), edits)
	}

	edit := edits[0]
	if edit.Range.Start.Line != 0 || edit.Range.End.Line != 4 {
		t.Errorf("edit spans lines %d..%d, want 0..4", edit.Range.Start.Line, edit.Range.End.Line)
	}
	want := "rule Messy\n{\n    condition:\n        true\n}"
	if edit.NewText != want {
		t.Errorf("NewText = %q, want %q", edit.NewText, want)
	}
}

func TestFormattingWithoutFormatterWarnsOnce(t *testing.T) {
	var out bytes.Buffer
	s := NewSession(duplex{strings.NewReader(""), &out}, discardLogger())

	raw := json.RawMessage(`{"textDocument":{"uri":"file:///t.yara"},"options":{"tabSize":4}}`)
	for i := 0; i < 2; i++ {
		result, err := s.formatting(context.Background(), 1, raw)
		if err != nil {
			t.Fatalf("formatting() error = %v", err)
		}
		if result != nil {
			t.Errorf("formatting() = %+v without a formatter, want nil", result)
		}
	}
	if got := strings.Count(out.String(), "No rule formatter"); got != 1 {
		t.Errorf("formatter warning sent %d times, want once", got)
	}
}

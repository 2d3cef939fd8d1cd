package lsp

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/ch0mler/yara-language-server/internal/protocol"
	"github.com/ch0mler/yara-language-server/internal/yara"
)

type stubCompiler struct {
	results []yara.CompileResult
	err     error
}

func (c stubCompiler) Compile(string) ([]yara.CompileResult, error) { return c.results, c.err }
func (c stubCompiler) Version() string                              { return "stub" }

func TestDiagnose(t *testing.T) {
	source := "rule Broken\n{\n    condition:\n        undefined_thing\n}\n"
	s := newBareSession(t, WithCompiler(stubCompiler{results: []yara.CompileResult{
		{Line: 4, Message: `undefined identifier "undefined_thing"`},
		{Line: 1, Message: "rule name may be too generic", Warning: true},
	}}))

	diags, err := s.diagnose(source)
	if err != nil {
		t.Fatalf("diagnose() error = %v", err)
	}
	if len(diags) != 2 {
		t.Fatalf("got %d diagnostics, want 2: %+v", len(diags), diags)
	}

	// compiler lines are 1-based, ranges span the trimmed line
	first := diags[0]
	if first.Range.Start.Line != 3 {
		t.Errorf("line = %d, want 3", first.Range.Start.Line)
	}
	if first.Range.Start.Character != 8 {
		t.Errorf("start character = %d, want first non-whitespace", first.Range.Start.Character)
	}
	if first.Range.End.Character != yara.MaxCol {
		t.Errorf("end character = %d, want sentinel column", first.Range.End.Character)
	}
	if first.Severity != protocol.DiagnosticSeverityError {
		t.Errorf("severity = %v, want error", first.Severity)
	}

	if diags[1].Severity != protocol.DiagnosticSeverityWarning {
		t.Errorf("second severity = %v, want warning", diags[1].Severity)
	}
}

func TestDiagnoseUndefinedString(t *testing.T) {
	source := `rule OneDiagnostic { condition: $true }`
	s := newBareSession(t, WithCompiler(stubCompiler{results: []yara.CompileResult{
		{Line: 1, Message: `undefined string "$true"`},
	}}))

	diags, err := s.diagnose(source)
	if err != nil {
		t.Fatalf("diagnose() error = %v", err)
	}
	if len(diags) != 1 {
		t.Fatalf("got %d diagnostics, want exactly 1", len(diags))
	}
	d := diags[0]
	if d.Message != `undefined string "$true"` {
		t.Errorf("message = %q", d.Message)
	}
	if d.Range.Start.Line != 0 || d.Range.End.Line != 0 {
		t.Errorf("range spans lines %d..%d, want 0..0", d.Range.Start.Line, d.Range.End.Line)
	}
	if d.Severity != protocol.DiagnosticSeverityError {
		t.Errorf("severity = %v, want error", d.Severity)
	}
}

func TestDiagnoseSkipsOutOfRangeLines(t *testing.T) {
	s := newBareSession(t, WithCompiler(stubCompiler{results: []yara.CompileResult{
		{Line: 99, Message: "phantom"},
	}}))

	diags, err := s.diagnose("rule A { condition: true }")
	if err != nil {
		t.Fatalf("diagnose() error = %v", err)
	}
	if len(diags) != 0 {
		t.Errorf("got %d diagnostics for an out-of-range line", len(diags))
	}
}

func TestDiagnoseWithoutCompilerWarnsOnce(t *testing.T) {
	var out bytes.Buffer
	s := NewSession(duplex{strings.NewReader(""), &out}, discardLogger())

	for i := 0; i < 3; i++ {
		diags, err := s.diagnose("rule A { condition: true }")
		if err != nil {
			t.Fatalf("diagnose() error = %v", err)
		}
		if diags != nil {
			t.Errorf("diagnose() = %+v without a compiler, want nil", diags)
		}
	}

	if got := strings.Count(out.String(), "No YARA compiler"); got != 1 {
		t.Errorf("compiler warning sent %d times, want once", got)
	}
}

func TestCompileAllRulesWithoutCompiler(t *testing.T) {
	s := newBareSession(t)
	if _, err := s.compileAllRules(context.Background(), nil); err != nil {
		t.Fatalf("compileAllRules() error = %v", err)
	}
}

func TestIsRuleFile(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/ws/a.yara", true},
		{"/ws/b.yar", true},
		{"/ws/B.YARA", true},
		{"/ws/readme.md", false},
		{"/ws/yara", false},
	}
	for _, tt := range tests {
		if got := isRuleFile(tt.path); got != tt.want {
			t.Errorf("isRuleFile(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

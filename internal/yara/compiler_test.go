package yara

import "testing"

func TestParseCompilerOutput(t *testing.T) {
	output := `/tmp/yarals123/rules.yara(4): error: undefined identifier "foo"
/tmp/yarals123/rules.yara(12): warning: $a may slow down scanning
something the parser should ignore
/tmp/yarals123/rules.yara(not-a-line): error: skipped
`

	results := ParseCompilerOutput(output)
	if len(results) != 2 {
		t.Fatalf("parsed %d results, want 2: %+v", len(results), results)
	}

	if results[0].Line != 4 || results[0].Warning {
		t.Errorf("results[0] = %+v, want line 4 error", results[0])
	}
	if results[0].Message != `undefined identifier "foo"` {
		t.Errorf("results[0].Message = %q", results[0].Message)
	}
	if results[1].Line != 12 || !results[1].Warning {
		t.Errorf("results[1] = %+v, want line 12 warning", results[1])
	}
}

func TestParseCompilerOutputEmpty(t *testing.T) {
	if got := ParseCompilerOutput(""); len(got) != 0 {
		t.Errorf("ParseCompilerOutput(\"\") = %+v, want none", got)
	}
}

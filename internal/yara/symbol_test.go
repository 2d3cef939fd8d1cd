package yara

import (
	"testing"

	"github.com/ch0mler/yara-language-server/internal/protocol"
)

func TestResolveSymbol(t *testing.T) {
	tests := []struct {
		name string
		text string
		pos  protocol.Position
		want Symbol
	}{
		{
			name: "count reference with cursor at token end",
			text: "  #a > 3\n",
			pos:  protocol.Position{Line: 0, Character: 4},
			want: "#a",
		},
		{
			name: "value reference mid-token",
			text: "        $hex_string and true\n",
			pos:  protocol.Position{Line: 0, Character: 12},
			want: "$hex_string",
		},
		{
			name: "wildcard reference keeps the star",
			text: "        any of ($dstring*)\n",
			pos:  protocol.Position{Line: 0, Character: 18},
			want: "$dstring*",
		},
		{
			name: "dotted module path resolves as one token",
			text: "    cuckoo.network.http_get(/evil/)\n",
			pos:  protocol.Position{Line: 0, Character: 13},
			want: "cuckoo.network.http_get",
		},
		{
			name: "bare rule name",
			text: "rule MyRule\n",
			pos:  protocol.Position{Line: 0, Character: 7},
			want: "MyRule",
		},
		{
			name: "whitespace resolves nothing",
			text: "   \n",
			pos:  protocol.Position{Line: 0, Character: 1},
			want: "",
		},
		{
			name: "line out of bounds",
			text: "rule MyRule\n",
			pos:  protocol.Position{Line: 5, Character: 0},
			want: "",
		},
		{
			name: "character out of bounds",
			text: "$a\n",
			pos:  protocol.Position{Line: 0, Character: 40},
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveSymbol(tt.text, tt.pos)
			if got != tt.want {
				t.Errorf("ResolveSymbol() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSymbolClassification(t *testing.T) {
	tests := []struct {
		sym        Symbol
		isVariable bool
		isWildcard bool
		name       string
	}{
		{sym: "$str", isVariable: true, name: "str"},
		{sym: "#count", isVariable: true, name: "count"},
		{sym: "@loc", isVariable: true, name: "loc"},
		{sym: "!len", isVariable: true, name: "len"},
		{sym: "$prefix*", isVariable: true, isWildcard: true, name: "prefix"},
		{sym: "MyRule", name: "MyRule"},
	}

	for _, tt := range tests {
		t.Run(string(tt.sym), func(t *testing.T) {
			if got := tt.sym.IsVariable(); got != tt.isVariable {
				t.Errorf("IsVariable() = %v, want %v", got, tt.isVariable)
			}
			if got := tt.sym.IsWildcard(); got != tt.isWildcard {
				t.Errorf("IsWildcard() = %v, want %v", got, tt.isWildcard)
			}
			if got := tt.sym.Name(); got != tt.name {
				t.Errorf("Name() = %q, want %q", got, tt.name)
			}
		})
	}
}

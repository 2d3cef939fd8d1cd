package yara

import (
	"strings"

	"github.com/ch0mler/yara-language-server/internal/protocol"
)

// Sigils are the characters that may introduce a variable reference and
// encode its access mode: value, count, location, and length.
const Sigils = "$#@!"

// Symbol is a token resolved from a cursor position: either a bare rule name
// or a variable reference with its leading sigil and optional trailing
// wildcard.
type Symbol string

// IsVariable reports whether the symbol starts with a variable sigil.
func (s Symbol) IsVariable() bool {
	return len(s) > 0 && strings.ContainsRune(Sigils, rune(s[0]))
}

// IsWildcard reports whether the symbol ends with a `*` wildcard, matching
// all variables sharing its prefix.
func (s Symbol) IsWildcard() bool {
	return strings.HasSuffix(string(s), "*")
}

// Name returns the bare identifier without the sigil or wildcard suffix.
func (s Symbol) Name() string {
	name := string(s)
	if s.IsVariable() {
		name = name[1:]
	}
	return strings.TrimSuffix(name, "*")
}

// ResolveSymbol extracts the token enclosing pos from the document text.
// The scan extends left to the nearest word boundary or sigil and right to
// the nearest non-identifier character, capturing a trailing `*` wildcard.
// Dots are identifier characters so dotted module paths resolve as one token.
// It returns the empty symbol when the position is out of bounds or the span
// contains no identifier characters.
func ResolveSymbol(text string, pos protocol.Position) Symbol {
	lines := strings.Split(text, "\n")
	if pos.Line < 0 || pos.Line >= len(lines) {
		return ""
	}
	line := lines[pos.Line]
	if pos.Character < 0 || pos.Character > len(line) {
		return ""
	}

	start := pos.Character
	for start > 0 && isIdentByte(line[start-1]) {
		start--
	}
	// a sigil terminates the leftward scan but belongs to the symbol
	if start > 0 && strings.IndexByte(Sigils, line[start-1]) >= 0 {
		start--
	}

	end := pos.Character
	for end < len(line) && isIdentByte(line[end]) {
		end++
	}
	if end < len(line) && line[end] == '*' {
		end++
	}

	sym := strings.Trim(line[start:end], ".")
	if !hasIdentChar(sym) {
		return ""
	}
	return Symbol(sym)
}

func isIdentByte(c byte) bool {
	return c == '_' || c == '.' ||
		(c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9')
}

func hasIdentChar(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '.' && c != '*' && (isIdentByte(c) || strings.IndexByte(Sigils, c) >= 0) {
			return true
		}
	}
	return false
}

package yara

import (
	"regexp"
	"strings"

	"github.com/ch0mler/yara-language-server/internal/protocol"
)

// DefinitionSites returns the range of the declaration site for sym, if any.
// Variables are declared as `$name = ...` inside the rule enclosing pos, so
// the search is bounded to that scope; rule names are declared by a
// `rule <name>` header anywhere in the document. Returned ranges exclude the
// sigil character or the leading `rule ` keyword.
func DefinitionSites(text string, sym Symbol, pos protocol.Position) ([]protocol.Range, error) {
	var (
		pattern    string
		scanLines  []string
		relOffset  int
		charOffset int
	)

	lines := strings.Split(text, "\n")
	if sym.IsVariable() {
		// all variables are declared with the $ sigil regardless of how
		// they are referenced
		pattern = `\$` + regexp.QuoteMeta(sym.Name()) + ` =\s`
		scope, err := RuleRange(text, pos)
		if err != nil {
			return nil, err
		}
		scanLines = lines[scope.Start.Line : scope.End.Line+1]
		relOffset = scope.Start.Line
		charOffset = 1
	} else {
		pattern = `\brule ` + regexp.QuoteMeta(string(sym)) + `\b`
		scanLines = lines
		relOffset = 0
		charOffset = 5
	}

	return scanOccurrences(scanLines, pattern, relOffset, charOffset)
}

// ReferenceSites returns every occurrence range of sym. Variable references
// match any sigil followed by the name and are bounded to the rule enclosing
// pos; wildcard variables are bounded further to the strings:..condition:
// section. Rule names match as whole words across the entire document.
func ReferenceSites(text string, sym Symbol, pos protocol.Position) ([]protocol.Range, error) {
	var (
		pattern    string
		scanLines  []string
		relOffset  int
		charOffset int
	)

	lines := strings.Split(text, "\n")
	if sym.IsVariable() {
		name := regexp.QuoteMeta(sym.Name())
		if sym.IsWildcard() {
			// expand the wildcard to a non-greedy starts-with match
			name += `.*?`
		}
		pattern = `[\` + Sigils + `]` + name + `\b`
		scope, err := RuleRange(text, pos)
		if err != nil {
			return nil, err
		}
		scanLines = lines[scope.Start.Line : scope.End.Line+1]
		relOffset = scope.Start.Line
		charOffset = 1
		if sym.IsWildcard() {
			// wildcards only make sense in the condition section, matching
			// against declarations in the strings section
			start, end := sectionBounds(scanLines)
			if start < 0 || end < 0 {
				return nil, nil
			}
			scanLines = scanLines[start:end]
			relOffset += start
		}
	} else {
		pattern = regexp.QuoteMeta(string(sym)) + `\b`
		scanLines = lines
		relOffset = 0
		charOffset = 0
	}

	return scanOccurrences(scanLines, pattern, relOffset, charOffset)
}

// sectionBounds returns the indexes of the strings: and condition: section
// markers within the given rule lines, or -1 when either is missing.
func sectionBounds(lines []string) (int, int) {
	start, end := -1, -1
	for i, line := range lines {
		if start < 0 && strings.Contains(line, "strings:") {
			start = i
		}
		if end < 0 && strings.Contains(line, "condition:") {
			end = i
		}
	}
	return start, end
}

func scanOccurrences(lines []string, pattern string, relOffset, charOffset int) ([]protocol.Range, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}

	var results []protocol.Range
	for i, line := range lines {
		for _, m := range re.FindAllStringIndex(line, -1) {
			results = append(results, protocol.Range{
				Start: protocol.Position{Line: relOffset + i, Character: m[0] + charOffset},
				End:   protocol.Position{Line: relOffset + i, Character: m[1]},
			})
		}
	}
	return results, nil
}

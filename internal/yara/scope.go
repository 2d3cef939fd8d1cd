package yara

import (
	"errors"
	"strings"

	"github.com/ch0mler/yara-language-server/internal/protocol"
)

// MaxCol is the column used for ranges that should extend to the end of a
// line regardless of its actual length.
const MaxCol = 10000

// ErrNoRule indicates that no rule declaration encloses the given position.
var ErrNoRule = errors.New("no enclosing rule")

// RuleRange locates the declaration block textually enclosing pos. It scans
// backward for the nearest `rule` header line and forward for the
// corresponding closing brace line.
//
// The detection is line-based, not a brace-matching parser: nested or
// unusually formatted declarations may resolve incorrect boundaries. This is
// an accepted limitation that keeps scope detection cheap for well-formatted
// rule files.
func RuleRange(text string, pos protocol.Position) (protocol.Range, error) {
	lines := strings.Split(text, "\n")
	if pos.Line < 0 || pos.Line >= len(lines) {
		return protocol.Range{}, ErrNoRule
	}

	start := -1
	for i := pos.Line; i >= 0; i-- {
		trimmed := strings.TrimSpace(lines[i])
		if strings.HasPrefix(trimmed, "rule ") || trimmed == "rule" {
			start = i
			break
		}
	}
	if start < 0 {
		return protocol.Range{}, ErrNoRule
	}

	end := len(lines) - 1
	for i := pos.Line; i < len(lines); i++ {
		if strings.HasPrefix(strings.TrimSpace(lines[i]), "}") {
			end = i
			break
		}
	}

	return protocol.Range{
		Start: protocol.Position{Line: start, Character: 0},
		End:   protocol.Position{Line: end, Character: len(lines[end])},
	}, nil
}

// FirstNonWhitespace returns the index of the first non-whitespace character
// in line, or 0 if the line is blank.
func FirstNonWhitespace(line string) int {
	for i := 0; i < len(line); i++ {
		if line[i] != ' ' && line[i] != '\t' {
			return i
		}
	}
	return 0
}

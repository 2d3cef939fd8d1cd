package yara

import (
	"regexp"
	"strings"
)

// KeyValue is one `name = value` entry in a rule's meta or strings section.
// Value keeps the right-hand side verbatim, including any quoting.
type KeyValue struct {
	Key   string
	Value string
}

// ParsedRule is one rule declaration split into its sections.
// StartLine and StopLine are one-based, matching the rule parser convention.
type ParsedRule struct {
	Name      string
	Tags      []string
	StartLine int
	StopLine  int
	Meta      []KeyValue
	Strings   []KeyValue
	Condition []string
	Raw       string
}

// Formatter parses rule sources into declarations and re-serializes them.
// Absence of a formatter disables the formatting feature with a one-time
// user notification.
type Formatter interface {
	Parse(source string) ([]ParsedRule, error)
	Rebuild(rule ParsedRule, opts RebuildOptions) string
}

// RebuildOptions control rule re-serialization.
type RebuildOptions struct {
	TabSize        int
	InsertSpaces   bool
	TrimWhitespace bool
	InsertNewline  bool
	TrimNewlines   bool
}

// NewFormatter returns the built-in line-based rule formatter.
func NewFormatter() Formatter {
	return &ruleFormatter{}
}

type ruleFormatter struct{}

var ruleHeader = regexp.MustCompile(`^rule\s+([A-Za-z_][A-Za-z0-9_]*)\s*(?::\s*([A-Za-z0-9_ \t]+?))?\s*\{?\s*$`)

// Parse splits source into rule declarations. The scan is line-based: a rule
// starts at a `rule <name>` header and stops at the first line beginning
// with a closing brace.
func (f *ruleFormatter) Parse(source string) ([]ParsedRule, error) {
	var rules []ParsedRule
	var current *ParsedRule
	section := ""

	lines := strings.Split(source, "\n")
	for i, raw := range lines {
		line := strings.TrimSpace(raw)

		if m := ruleHeader.FindStringSubmatch(line); m != nil {
			rules = append(rules, ParsedRule{
				Name:      m[1],
				Tags:      strings.Fields(m[2]),
				StartLine: i + 1,
			})
			current = &rules[len(rules)-1]
			section = ""
			current.Raw = raw
			continue
		}
		if current == nil {
			continue
		}
		current.Raw += "\n" + raw

		switch {
		case strings.HasPrefix(line, "}"):
			current.StopLine = i + 1
			current = nil
		case strings.HasPrefix(line, "meta:"):
			section = "meta"
		case strings.HasPrefix(line, "strings:"):
			section = "strings"
		case strings.HasPrefix(line, "condition:"):
			section = "condition"
		default:
			f.parseEntry(current, section, line)
		}
	}

	return rules, nil
}

func (f *ruleFormatter) parseEntry(rule *ParsedRule, section, line string) {
	if line == "" || line == "{" {
		return
	}
	switch section {
	case "meta", "strings":
		key, value, found := strings.Cut(line, "=")
		if !found {
			return
		}
		entry := KeyValue{Key: strings.TrimSpace(key), Value: strings.TrimSpace(value)}
		if section == "meta" {
			rule.Meta = append(rule.Meta, entry)
		} else {
			rule.Strings = append(rule.Strings, entry)
		}
	case "condition":
		rule.Condition = append(rule.Condition, line)
	}
}

// Rebuild re-serializes a parsed rule with canonical section layout. Section
// headers are indented one level and entries two; the indent unit is either
// tabs or TabSize spaces.
func (f *ruleFormatter) Rebuild(rule ParsedRule, opts RebuildOptions) string {
	indent := "\t"
	if opts.InsertSpaces {
		size := opts.TabSize
		if size <= 0 {
			size = 4
		}
		indent = strings.Repeat(" ", size)
	}

	header := "rule " + rule.Name
	if len(rule.Tags) > 0 {
		header += " : " + strings.Join(rule.Tags, " ")
	}

	lines := []string{header, "{"}
	if len(rule.Meta) > 0 {
		lines = append(lines, indent+"meta:")
		for _, entry := range rule.Meta {
			lines = append(lines, indent+indent+entry.Key+" = "+entry.Value)
		}
	}
	if len(rule.Strings) > 0 {
		lines = append(lines, indent+"strings:")
		for _, entry := range rule.Strings {
			lines = append(lines, indent+indent+entry.Key+" = "+entry.Value)
		}
	}
	if len(rule.Condition) > 0 {
		lines = append(lines, indent+"condition:")
		for _, term := range rule.Condition {
			lines = append(lines, indent+indent+term)
		}
	}
	lines = append(lines, "}")

	if !opts.TrimWhitespace {
		// raw section text carries a trailing space per line; only the
		// header and closing brace are exempt
		for i := 1; i < len(lines)-1; i++ {
			lines[i] += " "
		}
	}

	out := strings.Join(lines, "\n")
	if opts.TrimNewlines {
		out = strings.TrimRight(out, "\n")
	}
	if opts.InsertNewline {
		out += "\n"
	}
	return out
}

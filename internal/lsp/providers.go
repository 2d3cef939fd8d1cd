package lsp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ch0mler/yara-language-server/internal/protocol"
	"github.com/ch0mler/yara-language-server/internal/yara"
)

// positionParams is the common shape of position-based feature requests.
type positionParams struct {
	TextDocument protocol.TextDocumentIdentifier `json:"textDocument"`
	Position     protocol.Position               `json:"position"`
}

// documentAt decodes a position-based request and loads the document text.
func (s *Session) documentAt(raw json.RawMessage) (protocol.DocumentURI, string, protocol.Position, error) {
	var params positionParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return "", "", protocol.Position{}, err
	}
	text, err := s.docs.Text(params.TextDocument.URI)
	if err != nil {
		return params.TextDocument.URI, "", params.Position, err
	}
	return params.TextDocument.URI, text, params.Position, nil
}

// definition resolves the declaration site of the symbol under the cursor.
func (s *Session) definition(_ context.Context, _ int64, raw json.RawMessage) (any, error) {
	uri, text, pos, err := s.documentAt(raw)
	if err != nil {
		return nil, featureErr(FeatureDefinition, uri, "", err)
	}

	sym := yara.ResolveSymbol(text, pos)
	if sym == "" {
		return nil, nil
	}

	ranges, err := yara.DefinitionSites(text, sym, pos)
	if err != nil {
		if errors.Is(err, yara.ErrNoRule) {
			return nil, nil
		}
		return nil, featureErr(FeatureDefinition, uri, string(sym), err)
	}
	return locations(uri, ranges), nil
}

// references enumerates every occurrence of the symbol under the cursor.
// The includeDeclaration flag is accepted but all occurrences are returned
// either way.
func (s *Session) references(_ context.Context, _ int64, raw json.RawMessage) (any, error) {
	var params protocol.ReferenceParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, featureErr(FeatureReference, "", "", err)
	}
	uri := params.TextDocument.URI
	text, err := s.docs.Text(uri)
	if err != nil {
		return nil, featureErr(FeatureReference, uri, "", err)
	}
	pos := params.Position

	sym := yara.ResolveSymbol(text, pos)
	if sym == "" {
		return nil, nil
	}

	ranges, err := yara.ReferenceSites(text, sym, pos)
	if err != nil {
		if errors.Is(err, yara.ErrNoRule) {
			return nil, nil
		}
		return nil, featureErr(FeatureReference, uri, string(sym), err)
	}
	return locations(uri, ranges), nil
}

// rename rewrites every occurrence of the symbol under the cursor. Renames
// to an empty, identical, or wildcard name produce no edits, as does
// renaming a wildcard reference, since each match may name a different
// variable.
func (s *Session) rename(_ context.Context, _ int64, raw json.RawMessage) (any, error) {
	var params protocol.RenameParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, featureErr(FeatureRename, "", "", err)
	}
	uri := params.TextDocument.URI
	text, err := s.docs.Text(uri)
	if err != nil {
		return nil, featureErr(FeatureRename, uri, "", err)
	}

	edit := protocol.WorkspaceEdit{Changes: map[protocol.DocumentURI][]protocol.TextEdit{}}

	sym := yara.ResolveSymbol(text, params.Position)
	newName := strings.TrimLeft(params.NewName, yara.Sigils)
	switch {
	case sym == "":
		return edit, nil
	case newName == "":
		s.log.Warn("rejecting rename to blank name", "symbol", string(sym))
		return edit, nil
	case newName == sym.Name():
		return edit, nil
	case sym.IsWildcard() || strings.Contains(newName, "*"):
		s.log.Warn("rejecting wildcard rename", "symbol", string(sym), "new", newName)
		return edit, nil
	}

	ranges, err := yara.ReferenceSites(text, sym, params.Position)
	if err != nil {
		if errors.Is(err, yara.ErrNoRule) {
			return edit, nil
		}
		return nil, featureErr(FeatureRename, uri, string(sym), err)
	}

	edits := make([]protocol.TextEdit, 0, len(ranges))
	for _, r := range ranges {
		edits = append(edits, protocol.TextEdit{Range: r, NewText: newName})
	}
	edit.Changes[uri] = edits
	return edit, nil
}

// hover shows the value a variable is declared with.
func (s *Session) hover(_ context.Context, _ int64, raw json.RawMessage) (any, error) {
	var params protocol.HoverParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, featureErr(FeatureHover, "", "", err)
	}
	uri := params.TextDocument.URI
	text, err := s.docs.Text(uri)
	if err != nil {
		return nil, featureErr(FeatureHover, uri, "", err)
	}
	pos := params.Position

	sym := yara.ResolveSymbol(text, pos)
	if sym == "" || !sym.IsVariable() {
		return nil, nil
	}

	ranges, err := yara.DefinitionSites(text, sym, pos)
	if err != nil || len(ranges) == 0 {
		return nil, nil
	}

	lines := strings.Split(text, "\n")
	decl := lines[ranges[0].Start.Line]
	_, value, found := strings.Cut(decl, " = ")
	if !found {
		return nil, nil
	}
	return protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindPlainText,
			Value: strings.TrimSpace(value),
		},
	}, nil
}

// completion walks the module schema along the dotted term left of the
// cursor. A term ending at a trigger character lists the children of the
// resolved node; otherwise the final segment filters its siblings by prefix.
func (s *Session) completion(_ context.Context, _ int64, raw json.RawMessage) (any, error) {
	var params protocol.CompletionParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, featureErr(FeatureCompletion, "", "", err)
	}
	uri := params.TextDocument.URI
	text, err := s.docs.Text(uri)
	if err != nil {
		return nil, featureErr(FeatureCompletion, uri, "", err)
	}
	if s.schema == nil {
		return nil, nil
	}

	// resolve the term that ends at the cursor, not the one that starts there
	probe := params.Position
	if probe.Character > 0 {
		probe.Character--
	}
	sym := yara.ResolveSymbol(text, probe)
	if sym == "" || sym.IsVariable() {
		return nil, nil
	}

	segments := strings.Split(string(sym), ".")
	line := lineAt(text, params.Position.Line)
	afterDot := params.Position.Character > 0 &&
		params.Position.Character <= len(line) &&
		line[params.Position.Character-1] == '.'

	if afterDot {
		entries, ok := s.schema.Lookup(segments)
		if !ok {
			return nil, nil
		}
		return completionItems(entries, ""), nil
	}

	prefix := segments[len(segments)-1]
	if len(segments) == 1 {
		var items []protocol.CompletionItem
		for _, name := range s.schema.Modules() {
			if strings.HasPrefix(name, prefix) {
				items = append(items, protocol.CompletionItem{
					Label: name,
					Kind:  protocol.CompletionItemKindModule,
				})
			}
		}
		return items, nil
	}

	entries, ok := s.schema.Lookup(segments[:len(segments)-1])
	if !ok {
		return nil, nil
	}
	return completionItems(entries, prefix), nil
}

// highlight is advertised but not implemented; clients get an empty set.
func (s *Session) highlight(_ context.Context, _ int64, _ json.RawMessage) (any, error) {
	return []protocol.DocumentHighlight{}, nil
}

// completionItems renders schema entries as suggestions. Methods insert a
// call snippet, and a key-list entry expands into one indexed suggestion
// per declared dictionary key.
func completionItems(entries []yara.Entry, prefix string) []protocol.CompletionItem {
	items := make([]protocol.CompletionItem, 0, len(entries))
	for _, entry := range entries {
		if prefix != "" && !strings.HasPrefix(entry.Label, prefix) {
			continue
		}
		switch entry.Kind {
		case yara.KindMethod:
			items = append(items, protocol.CompletionItem{
				Label:            entry.Label,
				Kind:             protocol.CompletionItemKindMethod,
				InsertText:       entry.Label + "()",
				InsertTextFormat: protocol.InsertTextFormatPlainText,
			})
		case yara.KindKeyList:
			for _, key := range entry.Keys {
				indexed := fmt.Sprintf("%s[%q]", entry.Label, key)
				items = append(items, protocol.CompletionItem{
					Label:            indexed,
					Kind:             protocol.CompletionItemKindStruct,
					InsertText:       indexed,
					InsertTextFormat: protocol.InsertTextFormatPlainText,
				})
			}
		default:
			items = append(items, protocol.CompletionItem{
				Label: entry.Label,
				Kind:  completionKind(entry.Kind),
			})
		}
	}
	return items
}

func completionKind(kind yara.EntryKind) protocol.CompletionItemKind {
	switch kind {
	case yara.KindClass:
		return protocol.CompletionItemKindClass
	case yara.KindEnum:
		return protocol.CompletionItemKindEnum
	default:
		return protocol.CompletionItemKindProperty
	}
}

func locations(uri protocol.DocumentURI, ranges []protocol.Range) []protocol.Location {
	locs := make([]protocol.Location, 0, len(ranges))
	for _, r := range ranges {
		locs = append(locs, protocol.Location{URI: uri, Range: r})
	}
	return locs
}

func lineAt(text string, n int) string {
	lines := strings.Split(text, "\n")
	if n < 0 || n >= len(lines) {
		return ""
	}
	return lines[n]
}

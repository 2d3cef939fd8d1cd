package lsp

import (
	"context"
	"encoding/json"

	"github.com/ch0mler/yara-language-server/internal/protocol"
	"github.com/ch0mler/yara-language-server/internal/yara"
)

// formatting rewrites each rule in the document through the formatter
// collaborator and returns one TextEdit per rule. Without a formatter the
// request yields no edits and the client is warned once.
func (s *Session) formatting(_ context.Context, _ int64, raw json.RawMessage) (any, error) {
	var params protocol.DocumentFormattingParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, featureErr(FeatureFormat, "", "", err)
	}
	if s.formatter == nil {
		s.warnNoFormatter()
		return nil, nil
	}

	uri := params.TextDocument.URI
	text, err := s.docs.Text(uri)
	if err != nil {
		return nil, featureErr(FeatureFormat, uri, "", err)
	}

	rules, err := s.formatter.Parse(text)
	if err != nil {
		return nil, featureErr(FeatureFormat, uri, "", err)
	}

	opts := yara.RebuildOptions{
		TabSize:        params.Options.TabSize,
		InsertSpaces:   params.Options.InsertSpaces,
		TrimWhitespace: params.Options.TrimTrailingWhitespace,
		InsertNewline:  params.Options.InsertFinalNewline,
		TrimNewlines:   params.Options.TrimFinalNewlines,
	}

	edits := make([]protocol.TextEdit, 0, len(rules))
	for _, rule := range rules {
		edits = append(edits, protocol.TextEdit{
			Range: protocol.Range{
				Start: protocol.Position{Line: rule.StartLine - 1, Character: 0},
				End:   protocol.Position{Line: rule.StopLine - 1, Character: yara.MaxCol},
			},
			NewText: s.formatter.Rebuild(rule, opts),
		})
	}
	return edits, nil
}

package lsp

import (
	"errors"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/ch0mler/yara-language-server/internal/protocol"
	"github.com/ch0mler/yara-language-server/internal/yara"
)

// diagnose compiles the given source and maps compiler findings to LSP
// diagnostics. Compiler line numbers are 1-based; each finding spans from
// the first non-whitespace character to the end-of-line sentinel column.
func (s *Session) diagnose(text string) ([]protocol.Diagnostic, error) {
	if s.compiler == nil {
		s.warnNoCompiler()
		return nil, nil
	}

	results, err := s.compiler.Compile(text)
	if err != nil {
		if errors.Is(err, yara.ErrNoCompiler) {
			s.warnNoCompiler()
			return nil, nil
		}
		return nil, featureErr(FeatureDiagnostic, "", "", err)
	}

	lines := strings.Split(text, "\n")
	diags := make([]protocol.Diagnostic, 0, len(results))
	for _, r := range results {
		line := r.Line - 1
		if line < 0 || line >= len(lines) {
			continue
		}
		severity := protocol.DiagnosticSeverityError
		if r.Warning {
			severity = protocol.DiagnosticSeverityWarning
		}
		diags = append(diags, protocol.Diagnostic{
			Range: protocol.Range{
				Start: protocol.Position{Line: line, Character: yara.FirstNonWhitespace(lines[line])},
				End:   protocol.Position{Line: line, Character: yara.MaxCol},
			},
			Severity: severity,
			Source:   "yara",
			Message:  r.Message,
		})
	}
	return diags, nil
}

// publishDiagnosticsFor compiles one document and pushes its diagnostics.
// An empty diagnostic list is still published so the client clears stale
// findings.
func (s *Session) publishDiagnosticsFor(uri protocol.DocumentURI) {
	text, err := s.docs.Text(uri)
	if err != nil {
		s.log.Warn("cannot read document for diagnostics", "uri", uri, "error", err)
		return
	}
	diags, err := s.diagnose(text)
	if err != nil {
		s.log.Error("diagnostics failed", "uri", uri, "error", err)
		return
	}
	if diags == nil {
		diags = []protocol.Diagnostic{}
	}
	s.notify(MethodPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diags,
	})
}

// workspaceRuleFiles enumerates rule files under the workspace root plus any
// open documents with unsaved changes.
func (s *Session) workspaceRuleFiles() []protocol.DocumentURI {
	seen := make(map[protocol.DocumentURI]struct{})
	var uris []protocol.DocumentURI

	if s.workspace != "" {
		filepath.WalkDir(s.workspace, func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return nil
			}
			if !isRuleFile(path) {
				return nil
			}
			uri := protocol.FilePathToURI(path)
			if _, ok := seen[uri]; !ok {
				seen[uri] = struct{}{}
				uris = append(uris, uri)
			}
			return nil
		})
	}
	for uri := range s.docs.Dirty() {
		if _, ok := seen[uri]; !ok {
			seen[uri] = struct{}{}
			uris = append(uris, uri)
		}
	}
	return uris
}

func isRuleFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yar", ".yara":
		return true
	}
	return false
}

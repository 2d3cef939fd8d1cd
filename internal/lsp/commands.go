package lsp

import "context"

// Commands the server advertises through workspace/executeCommand when a
// compiler is available.
const (
	CommandCompileRule     = "yara.CompileRule"
	CommandCompileAllRules = "yara.CompileAllRules"
)

// compileRule is a placeholder. Single-rule compilation needs rule extraction
// the resolver does not do yet, so the command is accepted and ignored.
// TODO: compile just the rule under the cursor once RuleRange can carry its
// source text along with the range.
func (s *Session) compileRule(context.Context, []any) (any, error) {
	s.log.Debug("yara.CompileRule is not implemented, ignoring")
	return nil, nil
}

// compileAllRules compiles every rule file in the workspace plus any dirty
// open documents and publishes diagnostics per document.
func (s *Session) compileAllRules(ctx context.Context, _ []any) (any, error) {
	if s.compiler == nil {
		s.warnNoCompiler()
		return nil, nil
	}
	for _, uri := range s.workspaceRuleFiles() {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		s.publishDiagnosticsFor(uri)
	}
	return nil, nil
}

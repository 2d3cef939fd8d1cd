package lsp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/ch0mler/yara-language-server/internal/config"
	"github.com/ch0mler/yara-language-server/internal/protocol"
	"github.com/ch0mler/yara-language-server/internal/yara"
)

// LSP method names handled by the session.
const (
	MethodInitialize         = "initialize"
	MethodInitialized        = "initialized"
	MethodShutdown           = "shutdown"
	MethodExit               = "exit"
	MethodCancelRequest      = "$/cancelRequest"
	MethodCompletion         = "textDocument/completion"
	MethodDefinition         = "textDocument/definition"
	MethodReferences         = "textDocument/references"
	MethodRename             = "textDocument/rename"
	MethodHover              = "textDocument/hover"
	MethodHighlight          = "textDocument/documentHighlight"
	MethodFormatting         = "textDocument/formatting"
	MethodDidChange          = "textDocument/didChange"
	MethodDidClose           = "textDocument/didClose"
	MethodDidSave            = "textDocument/didSave"
	MethodPublishDiagnostics = "textDocument/publishDiagnostics"
	MethodDidChangeConfig    = "workspace/didChangeConfiguration"
	MethodExecuteCommand     = "workspace/executeCommand"
	MethodShowMessage        = "window/showMessage"
	MethodShowMessageRequest = "window/showMessageRequest"
)

// Phase is the lifecycle state of a session. Phases only advance.
type Phase int32

const (
	PhaseConnected Phase = iota
	PhaseInitialized
	PhaseShuttingDown
	PhaseExited
)

func (p Phase) String() string {
	switch p {
	case PhaseConnected:
		return "connected"
	case PhaseInitialized:
		return "initialized"
	case PhaseShuttingDown:
		return "shutting-down"
	case PhaseExited:
		return "exited"
	default:
		return "unknown"
	}
}

type featureHandler func(ctx context.Context, id int64, params json.RawMessage) (any, error)
type eventHandler func(params json.RawMessage)
type commandHandler func(ctx context.Context, args []any) (any, error)

// Session drives the LSP protocol for one client connection. Messages are
// read sequentially; requests after the handshake run in per-request
// goroutines under the scheduler's deadline.
type Session struct {
	id    string
	codec *Codec
	sched *Scheduler
	docs  *DocumentStore
	log   *slog.Logger

	schema    *yara.Schema
	compiler  yara.Compiler
	formatter yara.Formatter
	settings  *config.Settings
	cfg       config.Config

	phase atomic.Int32
	// sawInitialize latches the first initialize request. Only the read
	// loop touches it.
	sawInitialize bool
	workspace     string
	runCtx        context.Context

	compilerWarn  sync.Once
	formatterWarn sync.Once

	features map[string]featureHandler
	events   map[string]eventHandler
	commands map[string]commandHandler
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithSchema supplies the module schema used for completion.
func WithSchema(schema *yara.Schema) SessionOption {
	return func(s *Session) { s.schema = schema }
}

// WithCompiler supplies the rule compiler collaborator. A nil compiler
// disables diagnostics and the compile commands.
func WithCompiler(c yara.Compiler) SessionOption {
	return func(s *Session) { s.compiler = c }
}

// WithFormatter supplies the rule formatter collaborator.
func WithFormatter(f yara.Formatter) SessionOption {
	return func(s *Session) { s.formatter = f }
}

// WithConfig supplies the server configuration.
func WithConfig(cfg config.Config) SessionOption {
	return func(s *Session) { s.cfg = cfg }
}

// WithSessionID tags the session's log records with a connection id.
func WithSessionID(id string) SessionOption {
	return func(s *Session) { s.id = id }
}

// NewSession creates a session over the given connection.
func NewSession(conn io.ReadWriter, log *slog.Logger, opts ...SessionOption) *Session {
	s := &Session{
		codec:    NewCodec(conn),
		docs:     NewDocumentStore(),
		settings: config.NewSettings(),
		cfg:      config.Default(),
		log:      log,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.id != "" {
		s.log = s.log.With("conn", s.id)
	}

	timeout, err := s.cfg.Timeout()
	if err != nil {
		s.log.Warn("bad request_timeout, using default", "value", s.cfg.RequestTimeout)
		timeout = DefaultRequestTimeout
	}
	s.sched = NewScheduler(timeout, s.log)

	s.features = map[string]featureHandler{
		MethodCompletion:     s.completion,
		MethodDefinition:     s.definition,
		MethodReferences:     s.references,
		MethodRename:         s.rename,
		MethodHover:          s.hover,
		MethodHighlight:      s.highlight,
		MethodFormatting:     s.formatting,
		MethodExecuteCommand: s.executeCommand,
	}
	s.events = map[string]eventHandler{
		MethodInitialized:     s.onInitialized,
		MethodCancelRequest:   s.onCancelRequest,
		MethodDidChange:       s.onDidChange,
		MethodDidClose:        s.onDidClose,
		MethodDidSave:         s.onDidSave,
		MethodDidChangeConfig: s.onDidChangeConfiguration,
	}
	s.commands = map[string]commandHandler{
		CommandCompileRule:     s.compileRule,
		CommandCompileAllRules: s.compileAllRules,
	}
	return s
}

// Phase returns the session's current lifecycle phase.
func (s *Session) Phase() Phase {
	return Phase(s.phase.Load())
}

// advance moves the phase forward. Transitions never go backward, so a
// repeated initialize cannot regress a shutting-down session.
func (s *Session) advance(to Phase) {
	for {
		cur := s.phase.Load()
		if int32(to) <= cur {
			return
		}
		if s.phase.CompareAndSwap(cur, int32(to)) {
			return
		}
	}
}

// Run reads and dispatches messages until the client disconnects or asks
// the server to exit. An exit notification returns ErrServerExit; the caller
// treats that as an intentional stop rather than a failure.
func (s *Session) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.runCtx = ctx

	for {
		msg, err := s.codec.ReadMessage()
		if err != nil {
			return err
		}

		switch {
		case msg.IsRequest():
			s.dispatchRequest(ctx, msg)
		case msg.IsNotification():
			if msg.Method == MethodExit {
				s.advance(PhaseExited)
				return ErrServerExit
			}
			s.dispatchEvent(msg)
		default:
			s.log.Debug("ignoring response-shaped message", "id", msg.ID)
		}
	}
}

func (s *Session) dispatchRequest(ctx context.Context, msg *Message) {
	id := *msg.ID

	switch msg.Method {
	case MethodInitialize:
		s.respond(id, s.initialize(msg.Params))
		return
	case MethodShutdown:
		s.docs.Clear()
		s.advance(PhaseShuttingDown)
		s.log.Info("session shutting down")
		s.respond(id, nil)
		return
	}

	handler, ok := s.features[msg.Method]
	if !ok {
		s.log.Warn("unknown request method", "method", msg.Method, "id", id)
		s.respond(id, nil)
		return
	}
	if phase := s.Phase(); phase != PhaseInitialized {
		if phase >= PhaseShuttingDown {
			s.log.Debug("feature request after shutdown", "method", msg.Method, "id", id, "error", ErrShutdown)
		} else {
			s.log.Debug("feature request before handshake", "method", msg.Method, "id", id)
		}
		s.respond(id, nil)
		return
	}

	params := msg.Params
	go func() {
		result, err := s.sched.Execute(ctx, id, func(ctx context.Context) (any, error) {
			return handler(ctx, id, params)
		})
		switch {
		case err == nil:
			s.respond(id, result)
		case errors.Is(err, ErrTimeout):
			s.respond(id, nil)
		default:
			var ferr *FeatureError
			if errors.As(err, &ferr) {
				s.showMessage(protocol.MessageTypeWarning, ferr.Error())
				s.respond(id, nil)
				return
			}
			s.log.Error("request failed", "method", msg.Method, "id", id, "error", err)
			s.writeError(id, rpcErrorFor(err))
		}
	}()
}

func (s *Session) dispatchEvent(msg *Message) {
	handler, ok := s.events[msg.Method]
	if !ok {
		s.log.Debug("unhandled notification", "method", msg.Method)
		return
	}
	switch msg.Method {
	case MethodInitialized, MethodCancelRequest:
	default:
		// document and configuration notifications wait for the handshake
		if s.Phase() < PhaseInitialized {
			s.log.Debug("dropping notification before handshake", "method", msg.Method)
			return
		}
	}
	handler(msg.Params)
}

// initialize performs capability negotiation. The session stays in the
// connected phase until the initialized notification completes the
// handshake. Only the first call takes effect; repeats return the same
// capabilities without resetting state.
func (s *Session) initialize(raw json.RawMessage) any {
	var params protocol.InitializeParams
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &params); err != nil {
			s.log.Warn("bad initialize params", "error", err)
		}
	}

	if !s.sawInitialize {
		s.sawInitialize = true
		if params.RootURI != "" {
			s.workspace = protocol.URIToFilePath(params.RootURI)
		} else if params.RootPath != "" {
			s.workspace = params.RootPath
		}
		s.log.Info("initialize received", "workspace", s.workspace)
	}

	return protocol.InitializeResult{
		Capabilities: s.negotiate(params.Capabilities),
		ServerInfo:   &protocol.ServerInfo{Name: "yarals", Version: Version},
	}
}

// negotiate advertises a capability only when the client registered for it
// dynamically. Commands are offered only when a compiler is available.
func (s *Session) negotiate(client protocol.ClientCapabilities) protocol.ServerCapabilities {
	var caps protocol.ServerCapabilities

	td := client.TextDocument
	if td == nil {
		return caps
	}
	if td.Synchronization != nil && td.Synchronization.DynamicRegistration {
		caps.TextDocumentSync = protocol.TextDocumentSyncKindFull
	}
	if td.Completion != nil && td.Completion.DynamicRegistration {
		caps.CompletionProvider = &protocol.CompletionOptions{
			TriggerCharacters: []string{"."},
		}
	}
	if td.Definition != nil && td.Definition.DynamicRegistration {
		caps.DefinitionProvider = true
	}
	if td.References != nil && td.References.DynamicRegistration {
		caps.ReferencesProvider = true
	}
	if td.Rename != nil && td.Rename.DynamicRegistration {
		caps.RenameProvider = true
	}
	if td.Hover != nil && td.Hover.DynamicRegistration {
		caps.HoverProvider = true
	}
	if td.Highlight != nil && td.Highlight.DynamicRegistration {
		caps.DocumentHighlightProvider = true
	}
	if td.Formatting != nil && td.Formatting.DynamicRegistration {
		caps.DocumentFormattingProvider = true
	}
	if s.compiler != nil {
		if ws := client.Workspace; ws != nil && ws.ExecuteCommand != nil && ws.ExecuteCommand.DynamicRegistration {
			caps.ExecuteCommandProvider = &protocol.ExecuteCommandOptions{
				Commands: []string{CommandCompileRule, CommandCompileAllRules},
			}
		}
	}
	return caps
}

// onInitialized completes the handshake. Feature requests and document
// notifications are only honored from this point on.
func (s *Session) onInitialized(json.RawMessage) {
	if s.Phase() == PhaseConnected {
		s.advance(PhaseInitialized)
		s.log.Info("session initialized", "workspace", s.workspace)
		if s.runCtx != nil {
			s.startWatcher(s.runCtx)
		}
	}
	s.notify(MethodShowMessageRequest, protocol.ShowMessageRequestParams{
		Type:    protocol.MessageTypeInfo,
		Message: "Successfully connected",
	})
}

func (s *Session) onCancelRequest(raw json.RawMessage) {
	var params protocol.CancelParams
	if err := json.Unmarshal(raw, &params); err != nil {
		s.log.Warn("bad cancel params", "error", err)
		return
	}
	if s.sched.Cancel(params.ID) {
		s.log.Debug("request marked cancelled", "id", params.ID)
	}
}

func (s *Session) onDidChange(raw json.RawMessage) {
	var params protocol.DidChangeTextDocumentParams
	if err := json.Unmarshal(raw, &params); err != nil {
		s.log.Warn("bad didChange params", "error", err)
		return
	}
	// full sync: the last change carries the entire document
	if n := len(params.ContentChanges); n > 0 {
		s.docs.MarkDirty(params.TextDocument.URI, params.ContentChanges[n-1].Text)
	}
}

func (s *Session) onDidClose(raw json.RawMessage) {
	var params protocol.DidCloseTextDocumentParams
	if err := json.Unmarshal(raw, &params); err != nil {
		s.log.Warn("bad didClose params", "error", err)
		return
	}
	s.docs.Forget(params.TextDocument.URI)
}

func (s *Session) onDidSave(raw json.RawMessage) {
	var params protocol.DidSaveTextDocumentParams
	if err := json.Unmarshal(raw, &params); err != nil {
		s.log.Warn("bad didSave params", "error", err)
		return
	}
	s.docs.Forget(params.TextDocument.URI)

	if s.cfg.CompileOnSave || s.settings.Bool("yara.compile_on_save") {
		s.publishDiagnosticsFor(params.TextDocument.URI)
	}
}

func (s *Session) onDidChangeConfiguration(raw json.RawMessage) {
	var params protocol.DidChangeConfigurationParams
	if err := json.Unmarshal(raw, &params); err != nil {
		s.log.Warn("bad configuration params", "error", err)
		return
	}
	if err := s.settings.Replace(params.Settings); err != nil {
		s.log.Warn("rejecting configuration update", "error", err)
		return
	}
	s.log.Debug("configuration updated")
}

func (s *Session) executeCommand(ctx context.Context, _ int64, raw json.RawMessage) (any, error) {
	var params protocol.ExecuteCommandParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, featureErr(FeatureDiagnostic, "", "", err)
	}
	cmd, ok := s.commands[params.Command]
	if !ok {
		s.log.Warn("unknown command", "command", params.Command)
		return nil, nil
	}
	return cmd(ctx, params.Arguments)
}

func (s *Session) respond(id int64, result any) {
	if err := s.codec.WriteResponse(id, result); err != nil {
		s.log.Error("write response failed", "id", id, "error", err)
	}
}

func (s *Session) writeError(id int64, rpcErr *protocol.RPCError) {
	if err := s.codec.WriteError(id, rpcErr); err != nil {
		s.log.Error("write error response failed", "id", id, "error", err)
	}
}

func (s *Session) notify(method string, params any) {
	if err := s.codec.WriteNotification(method, params); err != nil {
		s.log.Error("write notification failed", "method", method, "error", err)
	}
}

func (s *Session) showMessage(level protocol.MessageType, text string) {
	s.notify(MethodShowMessage, protocol.ShowMessageParams{Type: level, Message: text})
}

// warnNoCompiler tells the client once that diagnostics are unavailable.
func (s *Session) warnNoCompiler() {
	s.compilerWarn.Do(func() {
		s.showMessage(protocol.MessageTypeWarning,
			"No YARA compiler installed. Diagnostics and compile commands are disabled")
	})
}

// warnNoFormatter tells the client once that formatting is unavailable.
func (s *Session) warnNoFormatter() {
	s.formatterWarn.Do(func() {
		s.showMessage(protocol.MessageTypeWarning,
			"No rule formatter configured. Formatting requests return no edits")
	})
}

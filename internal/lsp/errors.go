package lsp

import (
	"errors"
	"fmt"

	"github.com/ch0mler/yara-language-server/internal/protocol"
)

// Standard errors returned by the server engine.
var (
	// ErrShutdown indicates the session has been shut down.
	ErrShutdown = errors.New("session shut down")

	// ErrServerExit signals an intentional exit requested by the client.
	// It is informational, not a failure.
	ErrServerExit = errors.New("server exiting per client request")

	// ErrProtocol indicates a malformed frame or JSON body. Framing state
	// cannot be trusted afterwards, so the connection ends.
	ErrProtocol = errors.New("malformed protocol frame")

	// ErrTimeout indicates a request handler exceeded its deadline.
	ErrTimeout = errors.New("request timed out")

	// ErrDocumentNotFound indicates a document has neither a dirty overlay
	// nor an on-disk copy.
	ErrDocumentNotFound = errors.New("document not found")
)

// FeatureKind identifies the language feature a provider error belongs to.
type FeatureKind int

const (
	FeatureCompletion FeatureKind = iota
	FeatureDefinition
	FeatureReference
	FeatureRename
	FeatureHover
	FeatureHighlight
	FeatureFormat
	FeatureDiagnostic
)

// String returns the feature name.
func (k FeatureKind) String() string {
	switch k {
	case FeatureCompletion:
		return "completion"
	case FeatureDefinition:
		return "definition"
	case FeatureReference:
		return "reference"
	case FeatureRename:
		return "rename"
	case FeatureHover:
		return "hover"
	case FeatureHighlight:
		return "highlight"
	case FeatureFormat:
		return "format"
	case FeatureDiagnostic:
		return "diagnostic"
	default:
		return "unknown"
	}
}

// FeatureError wraps a provider-local failure with its feature kind and
// context. The session loop converts it into a window/showMessage
// notification instead of dropping the connection.
type FeatureError struct {
	Kind   FeatureKind
	Symbol string
	URI    protocol.DocumentURI
	Err    error
}

// Error implements the error interface with per-feature phrasing.
func (e *FeatureError) Error() string {
	switch e.Kind {
	case FeatureCompletion:
		return fmt.Sprintf("could not offer completion items: %v", e.Err)
	case FeatureDefinition:
		if e.Symbol != "" {
			return fmt.Sprintf("could not offer definition for symbol %q: %v", e.Symbol, e.Err)
		}
		return fmt.Sprintf("could not find symbol for definition request: %v", e.Err)
	case FeatureReference:
		return fmt.Sprintf("could not find references for %q: %v", e.Symbol, e.Err)
	case FeatureRename:
		return fmt.Sprintf("could not rename symbol: %v", e.Err)
	case FeatureHover:
		return fmt.Sprintf("could not offer definition hover: %v", e.Err)
	case FeatureHighlight:
		return fmt.Sprintf("could not offer code highlighting: %v", e.Err)
	case FeatureFormat:
		return fmt.Sprintf("could not format document: %v", e.Err)
	case FeatureDiagnostic:
		return fmt.Sprintf("could not compile rule: %v", e.Err)
	default:
		return e.Err.Error()
	}
}

// Unwrap returns the underlying error.
func (e *FeatureError) Unwrap() error {
	return e.Err
}

// featureErr builds a FeatureError around err.
func featureErr(kind FeatureKind, uri protocol.DocumentURI, symbol string, err error) error {
	return &FeatureError{Kind: kind, Symbol: symbol, URI: uri, Err: err}
}

// rpcErrorFor selects a JSON-RPC error code by error category.
func rpcErrorFor(err error) *protocol.RPCError {
	var rpcErr *protocol.RPCError
	switch {
	case errors.As(err, &rpcErr):
		return rpcErr
	case errors.Is(err, ErrTimeout):
		return &protocol.RPCError{Code: protocol.CodeRequestFailed, Message: err.Error()}
	default:
		return &protocol.RPCError{Code: protocol.CodeInternalError, Message: err.Error()}
	}
}

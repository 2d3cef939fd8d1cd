package lsp

import (
	"errors"
	"fmt"
	"testing"

	"github.com/ch0mler/yara-language-server/internal/protocol"
)

func TestFeatureErrorPhrasing(t *testing.T) {
	cause := errors.New("boom")

	tests := []struct {
		kind   FeatureKind
		symbol string
		want   string
	}{
		{FeatureCompletion, "", "could not offer completion items: boom"},
		{FeatureDefinition, "$a", `could not offer definition for symbol "$a": boom`},
		{FeatureDefinition, "", "could not find symbol for definition request: boom"},
		{FeatureReference, "$a", `could not find references for "$a": boom`},
		{FeatureRename, "", "could not rename symbol: boom"},
		{FeatureHover, "", "could not offer definition hover: boom"},
		{FeatureFormat, "", "could not format document: boom"},
		{FeatureDiagnostic, "", "could not compile rule: boom"},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/%s", tt.kind, tt.symbol), func(t *testing.T) {
			err := featureErr(tt.kind, "file:///t.yara", tt.symbol, cause)
			if err.Error() != tt.want {
				t.Errorf("Error() = %q, want %q", err.Error(), tt.want)
			}
			if !errors.Is(err, cause) {
				t.Error("FeatureError does not unwrap to its cause")
			}
		})
	}
}

func TestRPCErrorFor(t *testing.T) {
	if got := rpcErrorFor(ErrTimeout); got.Code != protocol.CodeRequestFailed {
		t.Errorf("timeout code = %d, want %d", got.Code, protocol.CodeRequestFailed)
	}
	if got := rpcErrorFor(errors.New("other")); got.Code != protocol.CodeInternalError {
		t.Errorf("generic code = %d, want %d", got.Code, protocol.CodeInternalError)
	}

	passthrough := &protocol.RPCError{Code: protocol.CodeInvalidParams, Message: "bad"}
	if got := rpcErrorFor(passthrough); got != passthrough {
		t.Error("an RPCError should pass through unchanged")
	}
}

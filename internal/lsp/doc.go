// Package lsp implements the YARA language server engine: JSON-RPC framing
// over Content-Length delimited streams, the session lifecycle state machine,
// per-request scheduling with timeouts and advisory cancellation, dirty
// document tracking, and the language feature providers.
//
// # Architecture
//
// The package is organized around these core components:
//
//   - Server: TCP accept loop, one Session per client connection
//   - Codec: JSON-RPC 2.0 base protocol framing
//   - Session: lifecycle state machine and method routing
//   - Scheduler: timeout-bounded, best-effort-cancellable request tasks
//   - DocumentStore: dirty overlay over on-disk rule files
//
// Feature providers (completion, definition, references, rename, hover,
// formatting, diagnostics) are methods on Session built from the symbol
// engine and module schema in internal/yara.
//
// # Concurrency
//
// Messages on a connection are read and routed sequentially, but every
// request handler runs as its own goroutine under the Scheduler so a slow
// provider never blocks reads of subsequent messages. Outbound writes are
// serialized by the Codec, one complete frame per write. Per-connection
// state (documents, settings, capabilities) is owned by a single Session;
// the module schema is immutable and shared by all sessions.
//
// Cancellation via $/cancelRequest is advisory: it marks the pending task
// but does not preempt the running handler. Timeouts are the only hard
// bound on handler execution.
package lsp

package lsp

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/tidwall/gjson"
)

// Message is a single decoded JSON-RPC message from the client: a request
// (ID and method), a notification (method only), or a response (ID only).
type Message struct {
	JSONRPC string
	ID      *int64
	Method  string
	Params  json.RawMessage
}

// IsRequest reports whether the message expects a response.
func (m *Message) IsRequest() bool {
	return m.ID != nil && m.Method != ""
}

// IsNotification reports whether the message is fire-and-forget.
func (m *Message) IsNotification() bool {
	return m.ID == nil && m.Method != ""
}

// Codec frames JSON-RPC messages with Content-Length headers over a duplex
// byte stream, per the LSP base protocol. Writes are serialized and each
// message is emitted as one buffered write so frames never interleave on a
// shared connection.
type Codec struct {
	reader *bufio.Reader

	mu     sync.Mutex
	writer io.Writer
}

// NewCodec creates a codec over the given stream.
func NewCodec(rw io.ReadWriter) *Codec {
	return &Codec{
		reader: bufio.NewReaderSize(rw, 64*1024),
		writer: rw,
	}
}

// ReadMessage reads and decodes a single framed message. It returns io.EOF
// when the client closes the stream and ErrProtocol on malformed input.
func (c *Codec) ReadMessage() (*Message, error) {
	header, err := c.reader.ReadString('\n')
	if err != nil {
		return nil, err
	}

	// the header/body separator follows the header line unconditionally
	if _, err := c.reader.ReadString('\n'); err != nil {
		return nil, fmt.Errorf("%w: missing header separator: %v", ErrProtocol, err)
	}

	var body []byte
	key, value, _ := strings.Cut(strings.TrimSpace(header), " ")
	if key == "Content-Length:" {
		length, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || length < 0 {
			return nil, fmt.Errorf("%w: bad Content-Length %q", ErrProtocol, value)
		}
		body = make([]byte, length)
		if _, err := io.ReadFull(c.reader, body); err != nil {
			return nil, fmt.Errorf("%w: short body: %v", ErrProtocol, err)
		}
	} else {
		// fallback for non-length-prefixed input: the next line is the body
		line, err := c.reader.ReadString('\n')
		if err != nil && line == "" {
			return nil, fmt.Errorf("%w: missing body: %v", ErrProtocol, err)
		}
		body = []byte(line)
	}

	return decodeMessage(body)
}

// decodeMessage probes the raw body for its message shape.
func decodeMessage(body []byte) (*Message, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: invalid JSON body", ErrProtocol)
	}
	doc := gjson.ParseBytes(body)

	msg := &Message{
		JSONRPC: doc.Get("jsonrpc").String(),
		Method:  doc.Get("method").String(),
	}
	if id := doc.Get("id"); id.Exists() {
		v := id.Int()
		msg.ID = &v
	}
	if params := doc.Get("params"); params.Exists() {
		msg.Params = json.RawMessage(params.Raw)
	}
	return msg, nil
}

// response is an outbound JSON-RPC result message. Result is always present
// so a nil handler result serializes as null.
type response struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Result  any    `json:"result"`
}

// errorResponse is an outbound JSON-RPC error message.
type errorResponse struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Error   any    `json:"error"`
}

// notification is an outbound JSON-RPC notification.
type notification struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// WriteResponse sends a result for the given request id.
func (c *Codec) WriteResponse(id int64, result any) error {
	return c.writeMessage(response{JSONRPC: "2.0", ID: id, Result: result})
}

// WriteError sends an error for the given request id.
func (c *Codec) WriteError(id int64, rpcErr any) error {
	return c.writeMessage(errorResponse{JSONRPC: "2.0", ID: id, Error: rpcErr})
}

// WriteNotification sends a notification to the client.
func (c *Codec) WriteNotification(method string, params any) error {
	return c.writeMessage(notification{JSONRPC: "2.0", Method: method, Params: params})
}

// writeMessage serializes the body first to compute its exact length, then
// emits header, separator, and body in a single write.
func (c *Codec) writeMessage(v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	var frame bytes.Buffer
	frame.Grow(len(body) + 32)
	fmt.Fprintf(&frame, "Content-Length: %d\r\n\r\n", len(body))
	frame.Write(body)

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.writer.Write(frame.Bytes()); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

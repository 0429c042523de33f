// Package jsonrpc implements the line-delimited JSON-RPC 2.0 codec used on
// the server's stdin/stdout streams.
//
// The server interleaves non-protocol chatter on stdout in looser setups, so
// decoding distinguishes three cases: a protocol line, a skip line (anything
// whose first non-space byte is not '{'), and a malformed line (looked like
// JSON but failed to parse).
package jsonrpc

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/oklog/ulid/v2"

	"github.com/wagiedev/gdbprobe/internal/errors"
)

// Version is the protocol tag carried by every message.
const Version = "2.0"

// Request is an outgoing call that expects a reply.
//
// Wire format:
//
//	{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{...}}
type Request struct {
	JSONRPC string `json:"jsonrpc"`

	// ID correlates the eventual response. Numeric or string; uniqueness
	// within a run is the caller's responsibility.
	ID any `json:"id"`

	Method string `json:"method"`
	Params any    `json:"params,omitempty"`
}

// Notification is a request variant with no ID. The receiver must not reply
// and senders must not wait for one.
type Notification struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// ResponseError is the error payload of a failed response.
type ResponseError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Response carries the ID of the originating request and exactly one of
// Result or Error.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *ResponseError  `json:"error,omitempty"`
}

// NewRequest builds a request with a fresh ULID identifier. ULIDs are
// timestamp-derived and monotonically distinct, so successive calls never
// collide within a run.
func NewRequest(method string, params any) *Request {
	return &Request{
		JSONRPC: Version,
		ID:      ulid.Make().String(),
		Method:  method,
		Params:  params,
	}
}

// NewRequestWithID builds a request with a caller-assigned identifier.
func NewRequestWithID(id any, method string, params any) *Request {
	return &Request{
		JSONRPC: Version,
		ID:      id,
		Method:  method,
		Params:  params,
	}
}

// NewNotification builds a notification for the given method.
func NewNotification(method string, params any) *Notification {
	return &Notification{
		JSONRPC: Version,
		Method:  method,
		Params:  params,
	}
}

// Encode serializes a request or notification to a single line terminated by
// exactly one newline. The encoded form never contains an interior newline;
// json.Marshal escapes newlines inside string values.
func Encode(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal message: %w", err)
	}

	return append(data, '\n'), nil
}

// DecodeLine decodes one raw line from the server's output stream.
//
// The line is accepted only if its first non-space byte is '{'. Rejected
// lines return (nil, false, nil): an expected skip, not a failure. Accepted
// lines that fail to parse return a MalformedMessageError.
func DecodeLine(line []byte) (*Response, bool, error) {
	trimmed := bytes.TrimSpace(line)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, false, nil
	}

	var resp Response
	if err := json.Unmarshal(trimmed, &resp); err != nil {
		return nil, false, &errors.MalformedMessageError{
			RawLine: string(trimmed),
			Err:     err,
		}
	}

	return &resp, true, nil
}

// HasResult reports whether the response carries a result payload.
func (r *Response) HasResult() bool {
	return len(r.Result) > 0 && r.Error == nil
}

// ErrorMessage returns the error payload's message, or "" on success.
func (r *Response) ErrorMessage() string {
	if r.Error == nil {
		return ""
	}

	return r.Error.Message
}

// UnmarshalResult decodes the result payload into v.
func (r *Response) UnmarshalResult(v any) error {
	if len(r.Result) == 0 {
		return fmt.Errorf("response %v has no result", r.ID)
	}

	if err := json.Unmarshal(r.Result, v); err != nil {
		return fmt.Errorf("unmarshal result: %w", err)
	}

	return nil
}

// IDEquals compares a response ID against a request ID. JSON numbers decode
// as float64, so a request sent with an int must still match its reply.
func (r *Response) IDEquals(id any) bool {
	if r.ID == id {
		return true
	}

	rf, rok := toFloat(r.ID)
	qf, qok := toFloat(id)

	return rok && qok && rf == qf
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

package mcp

import (
	"encoding/json"
	"fmt"
)

// Request is an inbound JSON-RPC 2.0 request or notification.
// The ID is kept raw so it can be echoed back verbatim (string, number,
// or null) without normalization.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// IsNotification reports whether the request carries no id and therefore
// must not receive a response.
func (r *Request) IsNotification() bool {
	return len(r.ID) == 0
}

// Response is an outbound JSON-RPC 2.0 response. Exactly one of Result
// and Error is set.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *ErrorObject    `json:"error,omitempty"`
}

// ErrorObject is the error member of a JSON-RPC 2.0 error response.
type ErrorObject struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// DecodeRequest parses one newline-delimited JSON-RPC message.
func DecodeRequest(line []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		return nil, fmt.Errorf("decoding JSON-RPC request: %w", err)
	}
	if req.Method == "" {
		return nil, fmt.Errorf("JSON-RPC message has no method")
	}
	return &req, nil
}

// NewResultResponse builds a success response echoing the request id.
func NewResultResponse(id json.RawMessage, result any) (*Response, error) {
	payload, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("marshaling result: %w", err)
	}
	return &Response{JSONRPC: "2.0", ID: normalizeID(id), Result: payload}, nil
}

// NewErrorResponse builds an error response echoing the request id.
// A missing id is emitted as explicit null per the JSON-RPC 2.0 contract.
func NewErrorResponse(id json.RawMessage, code int, message string, data any) *Response {
	return &Response{
		JSONRPC: "2.0",
		ID:      normalizeID(id),
		Error:   &ErrorObject{Code: code, Message: message, Data: data},
	}
}

func normalizeID(id json.RawMessage) json.RawMessage {
	if len(id) == 0 {
		return json.RawMessage("null")
	}
	return id
}

// EncodeResponse serializes a response to its single-line wire form.
func EncodeResponse(resp *Response) ([]byte, error) {
	data, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("marshaling response: %w", err)
	}
	return data, nil
}

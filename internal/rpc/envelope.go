// Package rpc implements the uniform call envelope every agent speaks:
// a JSON-RPC style request/response pair carried over HTTP POST, plus
// the per-agent dispatcher that resolves methods to handlers and the
// client used for agent-to-agent calls.
package rpc

import (
	"encoding/json"
	"fmt"
)

// ProtocolVersion is the only accepted envelope version.
const ProtocolVersion = "2.0"

// Reserved error code bands.
const (
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603

	// CodeDomainError marks the start of the adapter/domain band
	// (-32000..-32099) used for data-access failures surfaced through
	// the envelope.
	CodeDomainError = -32000
)

// Request is the uniform call envelope. ID is the caller's correlation
// token: a string, a number, or absent.
type Request struct {
	ProtocolVersion string         `json:"protocol_version"`
	Method          string         `json:"method"`
	Params          map[string]any `json:"params,omitempty"`
	ID              any            `json:"id,omitempty"`
}

// Response carries exactly one of Result or Error, plus the echoed id.
// Construct through Result/Failure so the invariant holds.
type Response struct {
	ProtocolVersion string `json:"protocol_version"`
	ID              any    `json:"id"`
	Result          any    `json:"result,omitempty"`
	Error           *Error `json:"error,omitempty"`
}

// MarshalJSON keeps the one-of invariant on the wire: a success response
// always carries result, null and false included, an error response
// never does.
func (r Response) MarshalJSON() ([]byte, error) {
	type wire struct {
		ProtocolVersion string          `json:"protocol_version"`
		ID              any             `json:"id"`
		Result          json.RawMessage `json:"result,omitempty"`
		Error           *Error          `json:"error,omitempty"`
	}
	w := wire{ProtocolVersion: r.ProtocolVersion, ID: r.ID, Error: r.Error}
	if r.Error == nil {
		raw, err := json.Marshal(r.Result)
		if err != nil {
			return nil, err
		}
		w.Result = raw
	}
	return json.Marshal(w)
}

// Error is the envelope error member. It doubles as a Go error so
// handlers and clients can pass it through error returns.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Class names the band an error code falls in, for logs and metrics.
func (e *Error) Class() string {
	switch {
	case e.Code == CodeInvalidRequest:
		return "invalid_request"
	case e.Code == CodeMethodNotFound:
		return "method_not_found"
	case e.Code == CodeInvalidParams:
		return "invalid_params"
	case e.Code == CodeInternalError:
		return "internal"
	case e.Code <= CodeDomainError && e.Code > CodeDomainError-100:
		return "domain"
	}
	return "unknown"
}

func Errorf(code int, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func InvalidRequest(format string, args ...any) *Error {
	return Errorf(CodeInvalidRequest, format, args...)
}

func MethodNotFound(method string) *Error {
	return Errorf(CodeMethodNotFound, "method not found: %s", method)
}

func InvalidParams(format string, args ...any) *Error {
	return Errorf(CodeInvalidParams, format, args...)
}

func InternalError(format string, args ...any) *Error {
	return Errorf(CodeInternalError, format, args...)
}

// Result builds a success response echoing id.
func Result(id, result any) Response {
	return Response{ProtocolVersion: ProtocolVersion, ID: id, Result: result}
}

// Failure builds an error response echoing id.
func Failure(id any, err *Error) Response {
	return Response{ProtocolVersion: ProtocolVersion, ID: id, Error: err}
}

// DecodeRequest parses and checks an envelope body. On failure it
// returns the envelope error to answer with; the returned id is the
// request's correlation token when one could be extracted, else nil so
// the response carries id null.
func DecodeRequest(body []byte) (Request, any, *Error) {
	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		return Request{}, extractID(body), InvalidRequest("cannot parse request: %v", err)
	}
	if req.ProtocolVersion != ProtocolVersion {
		return Request{}, req.ID, InvalidRequest("unsupported protocol_version %q (want %q)", req.ProtocolVersion, ProtocolVersion)
	}
	if req.Method == "" {
		return Request{}, req.ID, InvalidRequest("method must be set")
	}
	if req.Params == nil {
		req.Params = map[string]any{}
	}
	return req, req.ID, nil
}

// extractID digs the id out of a body that failed full decoding, so
// even malformed requests get their token echoed when possible.
func extractID(body []byte) any {
	var probe struct {
		ID any `json:"id"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return nil
	}
	return probe.ID
}

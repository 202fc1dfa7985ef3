package backend

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

// Error is returned for every failed backend call.
type Error struct {
	// Op names the call, e.g. "insert task_completions" or "rpc claim_daily_reward".
	Op string

	// StatusCode is the HTTP status, 0 for transport failures.
	StatusCode int

	// Code is the PostgREST / PostgreSQL error code, e.g. "23505".
	Code    string
	Message string
	Details string
	Hint    string

	// Transport is set when the request never produced an HTTP response.
	Transport bool

	Err error
}

func (e *Error) Error() string {
	if e.Transport {
		return fmt.Sprintf("backend: %s: network request failed: %v", e.Op, e.Err)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "backend: %s (status %d", e.Op, e.StatusCode)
	if e.Code != "" {
		fmt.Fprintf(&b, ", code %s", e.Code)
	}
	b.WriteString(")")
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// errorBody covers PostgREST errors and the auth endpoint's variants.
type errorBody struct {
	Code             json.RawMessage `json:"code"`
	Message          string          `json:"message"`
	Details          string          `json:"details"`
	Hint             string          `json:"hint"`
	Msg              string          `json:"msg"`
	ErrorCode        string          `json:"error"`
	ErrorDescription string          `json:"error_description"`
}

func newHTTPError(op string, status int, body []byte) *Error {
	e := &Error{Op: op, StatusCode: status}

	var eb errorBody
	if len(body) > 0 && json.Unmarshal(body, &eb) == nil {
		e.Code = strings.Trim(string(eb.Code), `"`)
		if e.Code == "" {
			e.Code = eb.ErrorCode
		}
		e.Details = eb.Details
		e.Hint = eb.Hint
		e.Message = firstNonEmpty(eb.Message, eb.ErrorDescription, eb.Msg)
	}
	if e.Message == "" && len(body) > 0 {
		e.Message = truncate(string(body), 200)
	}
	return e
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

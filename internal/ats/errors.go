package ats

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

// ValidationKind tells which local precondition was violated.
type ValidationKind string

const (
	UnsupportedType ValidationKind = "unsupported_type"
	TooLarge        ValidationKind = "too_large"
	EmptyQuery      ValidationKind = "empty_query"
	InvalidParams   ValidationKind = "invalid_params"
)

var (
	// ErrNotFound matches a ServerError carrying 404.
	ErrNotFound = errors.New("not found")
	// ErrBootstrapInFlight is returned when a demo bootstrap is already running.
	ErrBootstrapInFlight = errors.New("demo bootstrap is already in progress")
)

// ValidationError is a local failure. It is always returned before any network call.
type ValidationError struct {
	Kind    ValidationKind
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	switch e.Kind {
	case UnsupportedType:
		return fmt.Sprintf("unsupported type: %s", e.Value)
	case TooLarge:
		return fmt.Sprintf("file too large (max %d MB)", MaxUploadSize>>20)
	case EmptyQuery:
		return "job description must not be empty"
	default:
		return fmt.Sprintf("invalid %s: %q", e.Field, e.Value)
	}
}

// TransportError wraps timeouts and connection failures.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ServerError is a non-2xx response. Detail holds the structured message
// from the response body when the server sent one.
type ServerError struct {
	StatusCode int
	Status     string
	Detail     string
}

func (e *ServerError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("bad status: %s: %s", e.Status, e.Detail)
	}
	return fmt.Sprintf("bad status: %s", e.Status)
}

func (e *ServerError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// Message picks the text shown to a user for a failed call: the server
// detail first, then the error text itself, then fallback.
func Message(err error, fallback string) string {
	if err == nil {
		return ""
	}

	var serverErr *ServerError
	if errors.As(err, &serverErr) && strings.TrimSpace(serverErr.Detail) != "" {
		return strings.TrimSpace(serverErr.Detail)
	}

	if msg := strings.TrimSpace(err.Error()); msg != "" {
		return msg
	}

	return fallback
}

// parseDetail extracts a human readable message from an error body.
// FastAPI sends {"detail": "..."} or {"detail": [{"msg": "..."}]};
// other servers use {"error": "..."} or {"message": "..."}.
func parseDetail(body []byte) string {
	if !gjson.ValidBytes(body) {
		return ""
	}

	detail := gjson.GetBytes(body, "detail")
	switch {
	case detail.Type == gjson.String:
		return strings.TrimSpace(detail.String())
	case detail.IsArray():
		msgs := make([]string, 0)
		for _, item := range detail.Array() {
			msg := item.Get("msg").String()
			if msg == "" {
				msg = item.String()
			}
			if msg = strings.TrimSpace(msg); msg != "" {
				msgs = append(msgs, msg)
			}
		}
		return strings.Join(msgs, "; ")
	case detail.IsObject():
		return strings.TrimSpace(detail.Raw)
	}

	for _, key := range []string{"error", "message"} {
		if r := gjson.GetBytes(body, key); r.Type == gjson.String {
			return strings.TrimSpace(r.String())
		}
	}

	return ""
}

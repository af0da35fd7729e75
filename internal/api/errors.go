package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies a failed request.
type Kind int

const (
	// KindUnknown is a failure without a usable error body, or a server error.
	KindUnknown Kind = iota

	// KindTransport is a network-level failure (unreachable, reset, timeout).
	KindTransport

	// KindUnauthorized is a 401. The session has already been ended.
	KindUnauthorized

	// KindNotFound is a 404.
	KindNotFound

	// KindValidation is a 4xx carrying a structured detail message.
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindUnauthorized:
		return "unauthorized"
	case KindNotFound:
		return "not found"
	case KindValidation:
		return "validation"
	default:
		return "unknown"
	}
}

// GenericMessage replaces error bodies that cannot be parsed.
const GenericMessage = "An error occurred"

// Sentinel errors matched by *Error via errors.Is.
var (
	ErrTransport    = errors.New("transport failure")
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation failure")
)

// Error is a failed API request.
type Error struct {
	Status  int // 0 for transport failures
	Message string
	Kind    Kind
	Err     error // underlying transport error, if any
}

func (e *Error) Error() string {
	if e.Kind == KindTransport {
		return fmt.Sprintf("request failed: %s", e.Message)
	}
	return e.Message
}

// Unwrap returns the underlying transport error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error's kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrTransport:
		return e.Kind == KindTransport
	case ErrUnauthorized:
		return e.Kind == KindUnauthorized
	case ErrNotFound:
		return e.Kind == KindNotFound
	case ErrValidation:
		return e.Kind == KindValidation
	}
	return false
}

// KindOf classifies err. Errors that are not *Error are KindUnknown.
func KindOf(err error) Kind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindUnknown
}

// errorBody is the structured error payload: {"detail": "..."} or a
// list of {"msg": "..."} objects.
type errorBody struct {
	Detail json.RawMessage `json:"detail"`
}

type detailItem struct {
	Msg string `json:"msg"`
}

// parseDetail extracts the message from an error body.
// Returns ok=false when the body carries no usable detail.
func parseDetail(body []byte) (string, bool) {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil || len(eb.Detail) == 0 {
		return "", false
	}

	var s string
	if err := json.Unmarshal(eb.Detail, &s); err == nil {
		s = strings.TrimSpace(s)
		return s, s != ""
	}

	var items []detailItem
	if err := json.Unmarshal(eb.Detail, &items); err == nil {
		msgs := make([]string, 0, len(items))
		for _, it := range items {
			if m := strings.TrimSpace(it.Msg); m != "" {
				msgs = append(msgs, m)
			}
		}
		if len(msgs) > 0 {
			return strings.Join(msgs, "; "), true
		}
	}
	return "", false
}

// statusError builds the error for a non-2xx, non-401 response.
func statusError(status int, body []byte) *Error {
	msg, ok := parseDetail(body)
	if !ok {
		msg = GenericMessage
	}

	kind := KindUnknown
	switch {
	case status == http.StatusNotFound:
		kind = KindNotFound
	case ok && status >= 400 && status < 500:
		kind = KindValidation
	}
	return &Error{Status: status, Message: msg, Kind: kind}
}

// transportError wraps a failure to complete the round trip.
// Context cancellation is returned as is so callers can tell it apart.
func transportError(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	msg := err.Error()
	if errors.Is(err, context.DeadlineExceeded) {
		msg = "request timed out"
	}
	return &Error{Message: msg, Kind: KindTransport, Err: err}
}

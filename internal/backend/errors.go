package backend

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"fluxmedia/internal/services"
)

// RequestError reports a non-2xx response from the backend. Detail carries the
// server's detail field when one was present.
type RequestError struct {
	Op     string
	Status int
	Detail string
}

func (e *RequestError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: backend returned http %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: backend returned http %d: %s", e.Op, e.Status, e.Detail)
}

func (e *RequestError) Is(target error) bool { return target == services.ErrRequest }

// TransportError covers unreachable hosts, timeouts and undecodable responses.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	if e.Err == nil {
		return e.Op + ": transport failure"
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == services.ErrTransport }

// Message returns the text a user should see for a failed call, or fallback
// when the failure carries nothing displayable.
func Message(err error, fallback string) string {
	if err == nil {
		return fallback
	}
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		if reqErr.Detail != "" {
			return reqErr.Detail
		}
		return fallback
	}
	var trErr *TransportError
	if errors.As(err, &trErr) {
		if trErr.Err != nil && trErr.Err.Error() != "" {
			return trErr.Err.Error()
		}
		return fallback
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return fallback
}

type errorBody struct {
	Detail json.RawMessage `json:"detail"`
}

// parseDetail extracts the detail field from an error body. String details are
// returned verbatim; structured ones (validation lists) as compact JSON.
func parseDetail(body []byte) string {
	var payload errorBody
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	raw := bytes.TrimSpace(payload.Detail)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		if strings.TrimSpace(text) == "" {
			return ""
		}
		return text
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, raw); err != nil {
		return ""
	}
	return compact.String()
}

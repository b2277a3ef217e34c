package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Response is a completed API call.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK reports whether the status is 2xx.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// JSON decodes the response body into v.
func (r *Response) JSON(v any) error {
	if len(r.Body) == 0 {
		return fmt.Errorf("empty response body")
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Envelope is the {"resource": [...]} wrapper used for record payloads.
type Envelope struct {
	Resource []map[string]any `json:"resource"`
}

// Envelope decodes the body as a resource envelope. A body without a
// resource array is an error.
func (r *Response) Envelope() (*Envelope, error) {
	var raw struct {
		Resource *[]map[string]any `json:"resource"`
	}
	if err := r.JSON(&raw); err != nil {
		return nil, err
	}
	if raw.Resource == nil {
		return nil, fmt.Errorf("response has no resource array")
	}
	return &Envelope{Resource: *raw.Resource}, nil
}

// Sentinel errors matched by StatusError through errors.Is.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
)

// StatusError is returned for responses outside the 2xx range.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Message    string
	Body       []byte
}

func newStatusError(method, url string, r *Response) *StatusError {
	e := &StatusError{
		Method:     method,
		URL:        url,
		StatusCode: r.StatusCode,
		Body:       r.Body,
	}

	// {"error": {"code": 401, "message": "..."}}
	var apiErr struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(r.Body, &apiErr); err == nil {
		e.Message = apiErr.Error.Message
	}
	return e
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("API error (status %d) for %s %s: %s", e.StatusCode, e.Method, e.URL, e.Message)
	}
	return fmt.Sprintf("API returned status %d for %s %s", e.StatusCode, e.Method, e.URL)
}

// Is matches ErrUnauthorized and ErrNotFound by status code.
func (e *StatusError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	}
	return false
}

// StatusCode extracts the HTTP status from err, or 0 if err did not come from
// a completed response.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}

package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// ErrUnreachable marks failures where no engine node answered: connection
// errors, timeouts and an open circuit breaker.
var ErrUnreachable = errors.New("search engine unreachable")

// ResponseError is an error status returned by the engine.
type ResponseError struct {
	Op     string
	Status int
	Type   string
	Reason string
}

func (e *ResponseError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("elasticsearch %s: unexpected status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("elasticsearch %s: %d %s: %s", e.Op, e.Status, e.Type, e.Reason)
}

// IsNotFound reports whether err is an engine 404.
func IsNotFound(err error) bool {
	var re *ResponseError
	return errors.As(err, &re) && re.Status == http.StatusNotFound
}

// IsAlreadyExists reports whether err is a 400 for an index that already
// exists.
func IsAlreadyExists(err error) bool {
	var re *ResponseError
	return errors.As(err, &re) &&
		re.Status == http.StatusBadRequest &&
		re.Type == "resource_already_exists_exception"
}

// IsUnreachable reports whether err means no engine node answered.
func IsUnreachable(err error) bool {
	return errors.Is(err, ErrUnreachable)
}

// transportError wraps a client error. Caller cancellation is kept as is so
// it is not mistaken for an engine outage.
func transportError(op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("elasticsearch %s: %w", op, err)
	}
	return fmt.Errorf("elasticsearch %s: %w: %w", op, ErrUnreachable, err)
}

type errorBody struct {
	Error  json.RawMessage `json:"error"`
	Status int             `json:"status"`
}

type errorDetail struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

// responseError decodes the error body of res. It does not close the body.
func responseError(op string, res *esapi.Response) error {
	re := &ResponseError{Op: op, Status: res.StatusCode}
	if res.Body == nil {
		return re
	}
	raw, err := io.ReadAll(io.LimitReader(res.Body, 64<<10))
	if err != nil || len(raw) == 0 {
		return re
	}

	var body errorBody
	if err := json.Unmarshal(raw, &body); err != nil || len(body.Error) == 0 {
		return re
	}
	var detail errorDetail
	if err := json.Unmarshal(body.Error, &detail); err == nil {
		re.Type, re.Reason = detail.Type, detail.Reason
		return re
	}
	var msg string
	if err := json.Unmarshal(body.Error, &msg); err == nil {
		re.Reason = msg
	}
	return re
}

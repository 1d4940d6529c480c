package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/kirillkom/audio-report-client/internal/core/domain"
	"github.com/kirillkom/audio-report-client/internal/infrastructure/resilience"
)

const (
	RequestIDHeader = "X-Request-Id"

	maxResponseBytes = 32 << 20
	maxRawErrorChars = 512
)

// RequestError is a failed backend call. Error() is the user-facing detail.
type RequestError struct {
	Operation string
	Detail    domain.FailureDetail
	Err       error
}

func (e *RequestError) Error() string {
	if e == nil {
		return "backend request error"
	}
	return e.Detail.String()
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

func (e *RequestError) StatusCode() int {
	if e == nil {
		return 0
	}
	return e.Detail.StatusCode
}

type response struct {
	StatusCode int
	Body       []byte
}

// NormalizeError extracts the best diagnostic from an error response:
// JSON "error", then JSON "detail", then the raw body text, then the HTTP status.
func NormalizeError(statusCode int, status string, body []byte) domain.FailureDetail {
	detail := domain.FailureDetail{
		StatusCode: statusCode,
		Status:     strings.TrimSpace(status),
		Source:     domain.FailureFromStatus,
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return detail
	}

	var parsed map[string]any
	if err := json.Unmarshal(trimmed, &parsed); err == nil {
		for _, key := range []string{"error", "detail"} {
			if msg := stringField(parsed, key); msg != "" {
				detail.Message = msg
				detail.Source = domain.FailureFromStructured
				return detail
			}
		}
		return detail
	}

	detail.Message = truncate(string(trimmed), maxRawErrorChars)
	detail.Source = domain.FailureFromRawText
	return detail
}

func unreachable(operation string, err error) *RequestError {
	return &RequestError{
		Operation: operation,
		Detail: domain.FailureDetail{
			Source:  domain.FailureFromUnreachable,
			Message: domain.UnreachableMessage,
		},
		Err: err,
	}
}

func (c *Client) send(
	ctx context.Context,
	operation string,
	newRequest func(context.Context) (*http.Request, error),
) (response, error) {
	var out response
	requestID := uuid.NewString()
	start := time.Now()

	call := func(callCtx context.Context) error {
		if c.limiter != nil {
			if err := c.limiter.Wait(callCtx); err != nil {
				return fmt.Errorf("backend %s rate limit wait: %w", operation, err)
			}
		}

		req, err := newRequest(callCtx)
		if err != nil {
			return fmt.Errorf("create %s request: %w", operation, err)
		}
		req.Header.Set(RequestIDHeader, requestID)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return unreachable(operation, fmt.Errorf("backend %s request: %w", operation, err))
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return unreachable(operation, fmt.Errorf("read %s response: %w", operation, err))
		}
		if resp.StatusCode >= 300 {
			return &RequestError{
				Operation: operation,
				Detail:    NormalizeError(resp.StatusCode, resp.Status, body),
				Err:       fmt.Errorf("backend %s status: %s", operation, resp.Status),
			}
		}
		out = response{StatusCode: resp.StatusCode, Body: body}
		return nil
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "backend."+operation, call, classifyBackendError)
	} else {
		err = call(ctx)
	}
	c.observe(operation, err, time.Since(start))
	if err != nil {
		err = asRequestError(operation, err)
		logAttrs := []any{
			"operation", operation,
			"request_id", requestID,
			"duration_ms", float64(time.Since(start).Microseconds()) / 1000.0,
			"error", err,
		}
		var reqErr *RequestError
		if errors.As(err, &reqErr) && reqErr.Err != nil {
			logAttrs = append(logAttrs, "cause", reqErr.Err)
		}
		slog.Warn("backend_request_failed", logAttrs...)
		return response{}, err
	}

	slog.Debug("backend_request",
		"operation", operation,
		"request_id", requestID,
		"status", out.StatusCode,
		"duration_ms", float64(time.Since(start).Microseconds())/1000.0,
		"bytes", len(out.Body),
	)
	return out, nil
}

func asRequestError(operation string, err error) error {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr
	}
	if resilience.IsCircuitOpen(err) {
		return &RequestError{
			Operation: operation,
			Detail: domain.FailureDetail{
				Source:  domain.FailureFromUnreachable,
				Message: "backend temporarily unavailable (circuit open)",
			},
			Err: domain.WrapError(domain.ErrTemporary, operation, err),
		}
	}
	return unreachable(operation, err)
}

func (c *Client) observe(operation string, err error, duration time.Duration) {
	if c.metrics == nil {
		return
	}
	outcome := "success"
	var reqErr *RequestError
	switch {
	case err == nil:
	case errors.As(err, &reqErr) && reqErr.Detail.StatusCode > 0:
		outcome = fmt.Sprintf("http_%d", reqErr.Detail.StatusCode)
	case resilience.IsCircuitOpen(err):
		outcome = "circuit_open"
	default:
		outcome = "transport_error"
	}
	c.metrics.ObserveRequest(operation, outcome, duration)
}

func stringField(obj map[string]any, key string) string {
	v, ok := obj[key].(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(v)
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit]) + "..."
}

package backend

import (
	"context"
	"errors"

	"github.com/kirillkom/audio-report-client/internal/infrastructure/resilience"
)

// classifyBackendError decides which failures count against the breaker:
// server-side and network failures do, client errors such as 404 do not.
func classifyBackendError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{RecordFailure: false}
	}

	var reqErr *RequestError
	if errors.As(err, &reqErr) && reqErr.Detail.StatusCode > 0 {
		return resilience.ErrorClassification{RecordFailure: reqErr.Detail.StatusCode >= 500}
	}

	return resilience.ErrorClassification{RecordFailure: true}
}

package ports

import (
	"context"

	"github.com/kirillkom/audio-report-client/internal/core/domain"
	"github.com/kirillkom/audio-report-client/internal/core/report"
)

// JobSubmitter is the inbound contract for the submit → poll → report lifecycle.
type JobSubmitter interface {
	Submit(ctx context.Context, submission domain.Submission) error
	Stop()
	ActiveJob() (domain.Job, bool)
}

// ReportReader loads a finished report directly and asks the backend to regenerate it.
type ReportReader interface {
	Load(ctx context.Context, jobID string) (report.Fragment, error)
	Regenerate(ctx context.Context, jobID, prompt string) error
}

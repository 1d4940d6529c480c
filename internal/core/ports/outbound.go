package ports

import (
	"context"
	"io"

	"github.com/kirillkom/audio-report-client/internal/core/domain"
	"github.com/kirillkom/audio-report-client/internal/core/report"
)

// JobBackend starts jobs and reads their lifecycle state.
type JobBackend interface {
	StartJob(ctx context.Context, filename string, audio io.Reader, modelSize string) (string, error)
	GetStatus(ctx context.Context, jobID string) (domain.JobStatus, error)
	FetchFinal(ctx context.Context, jobID string) (domain.FinalResult, error)
}

// ReportBackend serves finished reports outside the polling flow.
type ReportBackend interface {
	FetchReport(ctx context.Context, jobID string) (*domain.ResultPayload, error)
	Regenerate(ctx context.Context, jobID, prompt string) error
}

// View is the set of UI affordances the lifecycle drives. Implementations
// must be safe for use from the polling goroutine.
type View interface {
	SetBusy(busy bool)
	ShowStatus(message string)
	ShowError(err error)
	ShowReport(jobID string, fragment report.Fragment)
}

// JobEventPublisher fans job lifecycle events out to other systems.
type JobEventPublisher interface {
	PublishJobEvent(ctx context.Context, event domain.JobEvent) error
}

// LifecycleMetrics records client-side lifecycle counters.
type LifecycleMetrics interface {
	ObservePollStatus(status string)
	ObserveJobOutcome(outcome string)
	SetBusy(busy bool)
}

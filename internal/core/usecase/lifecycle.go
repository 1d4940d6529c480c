package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/kirillkom/audio-report-client/internal/core/domain"
	"github.com/kirillkom/audio-report-client/internal/core/ports"
	"github.com/kirillkom/audio-report-client/internal/core/report"
)

const (
	StatusTextUploading = "Uploading and processing audio... (This may take some time)"
	StatusTextFetching  = "Fetching final report..."
	StatusTextSuccess   = "Report generated successfully!"
)

type activeJob struct {
	gen uint64
	job domain.Job
}

// LifecycleController drives one job at a time from submission to the
// rendered report. Submitting again abandons the previous job.
type LifecycleController struct {
	backend   ports.JobBackend
	poller    *Poller
	view      ports.View
	busy      *BusyState
	publisher ports.JobEventPublisher
	metrics   ports.LifecycleMetrics

	defaultModelSize string

	mu     sync.Mutex
	gen    uint64
	active *activeJob
}

type LifecycleOptions struct {
	Publisher        ports.JobEventPublisher
	Metrics          ports.LifecycleMetrics
	DefaultModelSize string
}

func NewLifecycleController(
	backend ports.JobBackend,
	poller *Poller,
	view ports.View,
	busy *BusyState,
	opts LifecycleOptions,
) *LifecycleController {
	modelSize := opts.DefaultModelSize
	if modelSize == "" {
		modelSize = domain.DefaultWhisperModelSize
	}
	return &LifecycleController{
		backend:          backend,
		poller:           poller,
		view:             view,
		busy:             busy,
		publisher:        opts.Publisher,
		metrics:          opts.Metrics,
		defaultModelSize: modelSize,
	}
}

// Submit starts a job and hands it to the poller. It returns once the job is
// started or has failed to start; the rest of the lifecycle is reported
// through the view. ctx bounds the whole lifecycle of the job, polling included.
func (c *LifecycleController) Submit(ctx context.Context, submission domain.Submission) error {
	if submission.Audio == nil || strings.TrimSpace(submission.Filename) == "" {
		err := domain.NewError(domain.ErrValidation, "Please select an audio file first.", nil)
		c.view.ShowError(err)
		return err
	}

	release := c.busy.Enter()
	handedOff := false
	defer func() {
		if !handedOff {
			release()
		}
	}()

	c.abandonActive(ctx)

	modelSize := c.modelSize(submission.ModelSize)
	c.view.ShowStatus(StatusTextUploading)
	slog.Info("job_submit", "filename", submission.Filename, "model_size", modelSize)

	jobID, err := c.backend.StartJob(ctx, submission.Filename, submission.Audio, modelSize)
	if err != nil {
		if !domain.IsKind(err, domain.ErrProtocol) {
			err = domain.NewError(domain.ErrSubmission, "Upload/Start Error: "+err.Error(), err)
		}
		c.reportFailure(ctx, "", err)
		return err
	}
	if strings.TrimSpace(jobID) == "" {
		err := domain.NewError(domain.ErrProtocol, "response missing required identifier", nil)
		c.reportFailure(ctx, "", err)
		return err
	}

	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.active = &activeJob{gen: gen, job: domain.Job{ID: jobID, Status: domain.StatusSubmitted}}
	c.mu.Unlock()

	slog.Info("job_submitted", "job_id", jobID)
	c.view.ShowStatus(fmt.Sprintf("Processing initiated (Job ID: %s). Waiting for results...", jobID))
	c.publish(ctx, domain.JobEvent{Type: domain.EventSubmitted, JobID: jobID, Status: domain.StatusSubmitted})

	handedOff = true
	c.poller.Start(ctx, jobID, PollHooks{
		OnStatus: func(jobID string, status domain.JobStatus) {
			c.onStatus(gen, jobID, status)
		},
		OnTerminal: func(ctx context.Context, jobID string, status domain.JobStatus) {
			c.finishJob(ctx, gen, jobID, status)
		},
		OnError: func(jobID string, err error) {
			if c.isCurrent(gen) {
				c.reportFailure(ctx, jobID, err)
			}
		},
		OnDone: func(string) {
			release()
		},
	})
	return nil
}

// Stop abandons the active job, if any, and clears the busy state.
func (c *LifecycleController) Stop() {
	c.abandonActive(context.Background())
}

// ActiveJob returns a snapshot of the job tracked by this controller.
func (c *LifecycleController) ActiveJob() (domain.Job, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return domain.Job{}, false
	}
	return c.active.job, true
}

func (c *LifecycleController) abandonActive(ctx context.Context) {
	c.mu.Lock()
	prev := c.active
	c.active = nil
	c.mu.Unlock()

	c.poller.Stop()

	if prev != nil && !prev.job.Status.IsTerminal() {
		slog.Info("job_abandoned", "job_id", prev.job.ID)
		c.publish(ctx, domain.JobEvent{Type: domain.EventAbandoned, JobID: prev.job.ID, Status: prev.job.Status})
	}
}

func (c *LifecycleController) onStatus(gen uint64, jobID string, status domain.JobStatus) {
	if !c.setStatus(gen, status) {
		return
	}
	if status.IsTransient() {
		c.view.ShowStatus(fmt.Sprintf("Waiting for job %s status...", jobID))
		return
	}
	c.view.ShowStatus("Status: " + string(status))
}

func (c *LifecycleController) finishJob(ctx context.Context, gen uint64, jobID string, status domain.JobStatus) {
	if !c.isCurrent(gen) {
		return
	}
	c.view.ShowStatus(StatusTextFetching)

	result, err := c.backend.FetchFinal(ctx, jobID)
	if ctx.Err() != nil || !c.isCurrent(gen) {
		slog.Info("final_result_discarded", "job_id", jobID)
		return
	}
	if err != nil {
		c.reportFailure(ctx, jobID, domain.NewError(domain.ErrResult, "Error fetching report: "+err.Error(), err))
		return
	}

	switch {
	case result.Status == domain.StatusCompleted && result.Payload != nil:
		if len(result.Payload.Malformed) > 0 {
			slog.Warn("result_sections_dropped", "job_id", jobID, "sections", result.Payload.Malformed)
		}
		fragment := report.RenderPayload(*result.Payload)
		c.setResult(gen, result.Payload)
		c.view.ShowStatus(StatusTextSuccess)
		c.view.ShowReport(jobID, fragment)
		c.observeOutcome("completed")
		c.publish(ctx, domain.JobEvent{Type: domain.EventCompleted, JobID: jobID, Status: domain.StatusCompleted})
		slog.Info("job_completed", "job_id", jobID, "sections", len(fragment.Sections))
	case result.Status == domain.StatusFailed:
		c.setStatus(gen, domain.StatusFailed)
		c.reportFailure(ctx, jobID, domain.NewError(domain.ErrResult, "Processing failed: "+result.FailureDetail, nil))
	default:
		got := string(result.Status)
		if got == "" {
			got = "Unknown"
		}
		c.reportFailure(ctx, jobID, domain.NewError(domain.ErrProtocol, "Unexpected final status: "+got, nil))
	}
}

func (c *LifecycleController) reportFailure(ctx context.Context, jobID string, err error) {
	slog.Error("job_failed", "job_id", jobID, "error", err)
	c.view.ShowError(err)
	c.observeOutcome(outcomeLabel(err))
	if jobID != "" {
		c.publish(ctx, domain.JobEvent{Type: domain.EventFailed, JobID: jobID, Message: err.Error()})
	}
}

func (c *LifecycleController) isCurrent(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active != nil && c.active.gen == gen
}

func (c *LifecycleController) setStatus(gen uint64, status domain.JobStatus) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil || c.active.gen != gen {
		return false
	}
	c.active.job.Status = status
	return true
}

func (c *LifecycleController) setResult(gen uint64, payload *domain.ResultPayload) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil || c.active.gen != gen {
		return
	}
	c.active.job.Status = domain.StatusCompleted
	c.active.job.Result = payload
}

func (c *LifecycleController) modelSize(requested string) string {
	if strings.TrimSpace(requested) == "" {
		return c.defaultModelSize
	}
	size, ok := domain.NormalizeWhisperModelSize(requested)
	if !ok {
		slog.Warn("whisper_model_size_invalid", "requested", requested, "using", size)
	}
	return size
}

func (c *LifecycleController) publish(ctx context.Context, event domain.JobEvent) {
	if c.publisher == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	// a failed notification does not fail the job
	if err := c.publisher.PublishJobEvent(context.WithoutCancel(ctx), event); err != nil {
		slog.Warn("job_event_publish_failed", "job_id", event.JobID, "type", event.Type, "error", err)
	}
}

func (c *LifecycleController) observeOutcome(outcome string) {
	if c.metrics != nil {
		c.metrics.ObserveJobOutcome(outcome)
	}
}

func outcomeLabel(err error) string {
	switch domain.KindOf(err) {
	case domain.ErrValidation:
		return "validation_error"
	case domain.ErrSubmission:
		return "submission_error"
	case domain.ErrPolling:
		return "polling_error"
	case domain.ErrProtocol:
		return "protocol_error"
	case domain.ErrResult:
		return "result_error"
	case domain.ErrMalformedPayload:
		return "malformed_payload"
	default:
		return "error"
	}
}

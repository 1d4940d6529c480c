package usecase

import (
	"context"
	"log/slog"
	"strings"

	"github.com/kirillkom/audio-report-client/internal/core/domain"
	"github.com/kirillkom/audio-report-client/internal/core/ports"
	"github.com/kirillkom/audio-report-client/internal/core/report"
)

// ReportService reads finished reports by job id and forwards regenerate
// prompts. It shares the busy state with the lifecycle controller.
type ReportService struct {
	backend ports.ReportBackend
	busy    *BusyState
}

func NewReportService(backend ports.ReportBackend, busy *BusyState) *ReportService {
	if busy == nil {
		busy = NewBusyState(nil)
	}
	return &ReportService{backend: backend, busy: busy}
}

func (s *ReportService) Load(ctx context.Context, jobID string) (report.Fragment, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return report.Fragment{}, domain.NewError(domain.ErrValidation, "Could not determine which report to load (Job ID missing).", nil)
	}

	payload, err := s.backend.FetchReport(ctx, jobID)
	if err != nil {
		return report.Fragment{}, domain.NewError(domain.ErrResult, "Failed to load report: "+err.Error(), err)
	}
	if payload == nil {
		return report.Fragment{}, domain.NewError(domain.ErrMalformedPayload, "Failed to load report: empty payload", nil)
	}
	if len(payload.Malformed) > 0 {
		slog.Warn("result_sections_dropped", "job_id", jobID, "sections", payload.Malformed)
	}
	return report.RenderPayload(*payload), nil
}

func (s *ReportService) Regenerate(ctx context.Context, jobID, prompt string) error {
	jobID = strings.TrimSpace(jobID)
	prompt = strings.TrimSpace(prompt)
	if jobID == "" {
		return domain.NewError(domain.ErrValidation, "Job ID is missing, cannot submit prompt.", nil)
	}
	if prompt == "" {
		return domain.NewError(domain.ErrValidation, "Please enter a text prompt.", nil)
	}

	release := s.busy.Enter()
	defer release()

	slog.Info("report_regenerate", "job_id", jobID, "prompt_chars", len(prompt))
	if err := s.backend.Regenerate(ctx, jobID, prompt); err != nil {
		return domain.NewError(domain.ErrSubmission, "Regenerate Error: "+err.Error(), err)
	}
	return nil
}

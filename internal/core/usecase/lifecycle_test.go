package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/audio-report-client/internal/core/domain"
	"github.com/kirillkom/audio-report-client/internal/core/report"
)

type lifecycleFixture struct {
	backend    *backendFake
	view       *viewFake
	busy       *BusyState
	publisher  *publisherFake
	metrics    *metricsFake
	controller *LifecycleController
}

func newLifecycleFixture() *lifecycleFixture {
	fx := &lifecycleFixture{
		backend:   newBackendFake(),
		view:      &viewFake{},
		publisher: &publisherFake{},
		metrics:   &metricsFake{},
	}
	fx.busy = NewBusyState(fx.view.SetBusy)
	poller := NewPoller(fx.backend, testPollInterval, fx.metrics)
	fx.controller = NewLifecycleController(fx.backend, poller, fx.view, fx.busy, LifecycleOptions{
		Publisher: fx.publisher,
		Metrics:   fx.metrics,
	})
	return fx
}

func (fx *lifecycleFixture) waitIdle(t *testing.T) {
	t.Helper()
	waitFor(t, "busy state to clear", func() bool { return !fx.busy.Busy() })
}

func audioSubmission() domain.Submission {
	return domain.Submission{Filename: "call.wav", Audio: strings.NewReader("RIFF")}
}

func TestLifecycleCompletedJobRendersDialogue(t *testing.T) {
	fx := newLifecycleFixture()
	fx.backend.startIDs = []string{"job-1"}
	fx.backend.script("job-1", domain.StatusProcessing, domain.StatusProcessing, domain.StatusCompleted)
	fx.backend.finals["job-1"] = domain.FinalResult{
		Status:  domain.StatusCompleted,
		Payload: &domain.ResultPayload{Dialogue: []domain.DialogueTurn{{Speaker: "A", Text: "Hello"}}},
	}

	if err := fx.controller.Submit(context.Background(), audioSubmission()); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	fx.waitIdle(t)

	statuses, errs, reports := fx.view.snapshot()
	if len(errs) != 0 {
		t.Fatalf("expected no errors, got %v", errs)
	}
	fragment, ok := reports["job-1"]
	if !ok {
		t.Fatalf("expected report for job-1")
	}
	dialogue, ok := fragment.Find(report.SectionDialogue)
	if !ok || len(dialogue.Lines) != 1 || dialogue.Lines[0].Label()+": "+dialogue.Lines[0].Text != "Speaker A: Hello" {
		t.Fatalf("unexpected dialogue %+v", dialogue)
	}
	if statuses[len(statuses)-1] != StatusTextSuccess {
		t.Fatalf("expected success status last, got %v", statuses)
	}
	if got := fx.backend.statusCount("job-1"); got != 3 {
		t.Fatalf("expected 3 status checks, got %d", got)
	}
	if got := fx.backend.finalCount("job-1"); got != 1 {
		t.Fatalf("expected 1 final fetch, got %d", got)
	}

	job, ok := fx.controller.ActiveJob()
	if !ok || job.Status != domain.StatusCompleted || job.Result == nil {
		t.Fatalf("unexpected active job %+v", job)
	}
	types := fx.publisher.types("job-1")
	if len(types) != 2 || types[0] != domain.EventSubmitted || types[1] != domain.EventCompleted {
		t.Fatalf("unexpected events %v", types)
	}
	fx.view.mu.Lock()
	busy := append([]bool(nil), fx.view.busy...)
	fx.view.mu.Unlock()
	if len(busy) != 2 || !busy[0] || busy[1] {
		t.Fatalf("expected busy true then false, got %v", busy)
	}
}

func TestLifecycleFailedJobShowsDetail(t *testing.T) {
	fx := newLifecycleFixture()
	fx.backend.startIDs = []string{"job-1"}
	fx.backend.script("job-1", domain.StatusFailed)
	fx.backend.finals["job-1"] = domain.FinalResult{Status: domain.StatusFailed, FailureDetail: "decode error"}

	if err := fx.controller.Submit(context.Background(), audioSubmission()); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	fx.waitIdle(t)

	_, errs, reports := fx.view.snapshot()
	if len(errs) != 1 || errs[0].Error() != "Processing failed: decode error" {
		t.Fatalf("expected exact failure message, got %v", errs)
	}
	if domain.KindOf(errs[0]) != domain.ErrResult {
		t.Fatalf("expected result error kind, got %v", domain.KindOf(errs[0]))
	}
	if len(reports) != 0 {
		t.Fatalf("expected no report, got %v", reports)
	}
	types := fx.publisher.types("job-1")
	if len(types) != 2 || types[1] != domain.EventFailed {
		t.Fatalf("unexpected events %v", types)
	}
}

func TestLifecycleStartFailureClearsBusy(t *testing.T) {
	fx := newLifecycleFixture()
	fx.backend.startErr = errors.New("status 500 Internal Server Error: <html>oops</html>")

	err := fx.controller.Submit(context.Background(), audioSubmission())
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "500") {
		t.Fatalf("expected status code in message, got %q", err.Error())
	}
	if domain.KindOf(err) != domain.ErrSubmission {
		t.Fatalf("expected submission error, got %v", domain.KindOf(err))
	}
	if fx.busy.Busy() {
		t.Fatalf("expected busy cleared")
	}
	_, errs, _ := fx.view.snapshot()
	if len(errs) != 1 {
		t.Fatalf("expected one error shown, got %v", errs)
	}
	if _, ok := fx.controller.ActiveJob(); ok {
		t.Fatalf("expected no active job")
	}
}

func TestLifecycleStartProtocolErrorKeepsKind(t *testing.T) {
	fx := newLifecycleFixture()
	fx.backend.startErr = domain.NewError(domain.ErrProtocol, "start job response is not valid JSON", nil)

	err := fx.controller.Submit(context.Background(), audioSubmission())
	if domain.KindOf(err) != domain.ErrProtocol {
		t.Fatalf("expected protocol error, got %v", err)
	}
}

func TestLifecycleMissingJobIDIsProtocolError(t *testing.T) {
	fx := newLifecycleFixture()

	err := fx.controller.Submit(context.Background(), audioSubmission())
	if domain.KindOf(err) != domain.ErrProtocol || err.Error() != "response missing required identifier" {
		t.Fatalf("unexpected error %v", err)
	}
	if fx.busy.Busy() {
		t.Fatalf("expected busy cleared")
	}
}

func TestLifecycleValidationSkipsNetwork(t *testing.T) {
	fx := newLifecycleFixture()

	err := fx.controller.Submit(context.Background(), domain.Submission{})
	if domain.KindOf(err) != domain.ErrValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if fx.backend.startCalls != 0 {
		t.Fatalf("expected no network call, got %d", fx.backend.startCalls)
	}
	fx.view.mu.Lock()
	defer fx.view.mu.Unlock()
	if len(fx.view.busy) != 0 {
		t.Fatalf("expected busy untouched, got %v", fx.view.busy)
	}
	if len(fx.view.errs) != 1 {
		t.Fatalf("expected error shown, got %v", fx.view.errs)
	}
}

func TestLifecycleResubmitStopsPreviousJob(t *testing.T) {
	fx := newLifecycleFixture()
	fx.backend.startIDs = []string{"job-A", "job-B"}
	fx.backend.script("job-A", domain.StatusProcessing)
	fx.backend.script("job-B", domain.StatusProcessing, domain.StatusCompleted)
	fx.backend.finals["job-A"] = domain.FinalResult{Status: domain.StatusCompleted, Payload: &domain.ResultPayload{}}
	fx.backend.finals["job-B"] = domain.FinalResult{
		Status:  domain.StatusCompleted,
		Payload: &domain.ResultPayload{FullTranscript: "second"},
	}

	if err := fx.controller.Submit(context.Background(), audioSubmission()); err != nil {
		t.Fatalf("Submit(A) error = %v", err)
	}
	waitFor(t, "job A to be polled", func() bool { return fx.backend.statusCount("job-A") >= 2 })

	if err := fx.controller.Submit(context.Background(), audioSubmission()); err != nil {
		t.Fatalf("Submit(B) error = %v", err)
	}
	checksA := fx.backend.statusCount("job-A")
	fx.waitIdle(t)
	time.Sleep(5 * testPollInterval)

	if got := fx.backend.statusCount("job-A"); got != checksA {
		t.Fatalf("job A polled after resubmit: %d -> %d", checksA, got)
	}
	if got := fx.backend.finalCount("job-A"); got != 0 {
		t.Fatalf("expected no final fetch for job A, got %d", got)
	}
	_, errs, reports := fx.view.snapshot()
	if len(errs) != 0 {
		t.Fatalf("expected no errors, got %v", errs)
	}
	if _, ok := reports["job-A"]; ok {
		t.Fatalf("unexpected report for abandoned job")
	}
	if _, ok := reports["job-B"]; !ok {
		t.Fatalf("expected report for job B")
	}
	typesA := fx.publisher.types("job-A")
	if len(typesA) != 2 || typesA[1] != domain.EventAbandoned {
		t.Fatalf("expected job A abandoned, got %v", typesA)
	}
	job, _ := fx.controller.ActiveJob()
	if job.ID != "job-B" {
		t.Fatalf("expected job B active, got %q", job.ID)
	}
}

func TestLifecycleNotFoundKeepsPolling(t *testing.T) {
	fx := newLifecycleFixture()
	fx.backend.startIDs = []string{"job-1"}
	fx.backend.script("job-1", domain.StatusNotFound, domain.StatusNotFound, domain.StatusCompleted)
	fx.backend.finals["job-1"] = domain.FinalResult{Status: domain.StatusCompleted, Payload: &domain.ResultPayload{FullTranscript: "ok"}}

	if err := fx.controller.Submit(context.Background(), audioSubmission()); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	fx.waitIdle(t)

	statuses, errs, reports := fx.view.snapshot()
	if len(errs) != 0 {
		t.Fatalf("expected no errors, got %v", errs)
	}
	if _, ok := reports["job-1"]; !ok {
		t.Fatalf("expected report after not_found")
	}
	found := false
	for _, s := range statuses {
		if s == "Waiting for job job-1 status..." {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected waiting status, got %v", statuses)
	}
	if got := fx.backend.finalCount("job-1"); got != 1 {
		t.Fatalf("expected final fetch once, got %d", got)
	}
}

func TestLifecyclePollingErrorStopsJob(t *testing.T) {
	fx := newLifecycleFixture()
	fx.backend.startIDs = []string{"job-1"}
	fx.backend.statuses["job-1"] = []statusReply{{err: errors.New(domain.UnreachableMessage)}}

	if err := fx.controller.Submit(context.Background(), audioSubmission()); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	fx.waitIdle(t)

	_, errs, _ := fx.view.snapshot()
	if len(errs) != 1 || errs[0].Error() != "Error checking status: "+domain.UnreachableMessage {
		t.Fatalf("unexpected errors %v", errs)
	}
	if domain.KindOf(errs[0]) != domain.ErrPolling {
		t.Fatalf("expected polling error, got %v", domain.KindOf(errs[0]))
	}
	if got := fx.backend.finalCount("job-1"); got != 0 {
		t.Fatalf("expected no final fetch, got %d", got)
	}
}

func TestLifecycleFinalFetchErrors(t *testing.T) {
	tests := []struct {
		name     string
		final    domain.FinalResult
		finalErr error
		want     string
		kind     error
	}{
		{
			name:     "transport",
			finalErr: errors.New("status 502 Bad Gateway"),
			want:     "Error fetching report: status 502 Bad Gateway",
			kind:     domain.ErrResult,
		},
		{
			name:  "unexpected status",
			final: domain.FinalResult{Status: "cancelled"},
			want:  "Unexpected final status: cancelled",
			kind:  domain.ErrProtocol,
		},
		{
			name:  "completed without payload",
			final: domain.FinalResult{Status: domain.StatusCompleted},
			want:  "Unexpected final status: completed",
			kind:  domain.ErrProtocol,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fx := newLifecycleFixture()
			fx.backend.startIDs = []string{"job-1"}
			fx.backend.script("job-1", domain.StatusCompleted)
			fx.backend.finals["job-1"] = tc.final
			fx.backend.finalErr = tc.finalErr

			if err := fx.controller.Submit(context.Background(), audioSubmission()); err != nil {
				t.Fatalf("Submit() error = %v", err)
			}
			fx.waitIdle(t)

			_, errs, _ := fx.view.snapshot()
			if len(errs) != 1 || errs[0].Error() != tc.want {
				t.Fatalf("expected %q, got %v", tc.want, errs)
			}
			if domain.KindOf(errs[0]) != tc.kind {
				t.Fatalf("expected kind %v, got %v", tc.kind, domain.KindOf(errs[0]))
			}
		})
	}
}

func TestLifecycleStopClearsBusy(t *testing.T) {
	fx := newLifecycleFixture()
	fx.backend.startIDs = []string{"job-1"}
	fx.backend.script("job-1", domain.StatusProcessing)

	if err := fx.controller.Submit(context.Background(), audioSubmission()); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	waitFor(t, "first status check", func() bool { return fx.backend.statusCount("job-1") >= 1 })

	fx.controller.Stop()
	if fx.busy.Busy() {
		t.Fatalf("expected busy cleared after Stop")
	}
	if _, ok := fx.controller.ActiveJob(); ok {
		t.Fatalf("expected no active job after Stop")
	}
	checks := fx.backend.statusCount("job-1")
	time.Sleep(5 * testPollInterval)
	if got := fx.backend.statusCount("job-1"); got != checks {
		t.Fatalf("polled after Stop: %d -> %d", checks, got)
	}
	fx.controller.Stop()
}

func TestLifecycleModelSize(t *testing.T) {
	tests := []struct {
		requested string
		want      string
	}{
		{requested: "", want: "small"},
		{requested: "LARGE", want: "large"},
		{requested: "huge", want: "small"},
	}
	for _, tc := range tests {
		fx := newLifecycleFixture()
		sub := audioSubmission()
		sub.ModelSize = tc.requested
		_ = fx.controller.Submit(context.Background(), sub)

		fx.backend.mu.Lock()
		uploaded := append([]string(nil), fx.backend.uploaded...)
		fx.backend.mu.Unlock()
		if len(uploaded) != 1 || uploaded[0] != "call.wav:"+tc.want+":RIFF" {
			t.Fatalf("requested %q: expected model %q, got %v", tc.requested, tc.want, uploaded)
		}
	}
}

func TestLifecycleRegenerateDuringJobKeepsBusy(t *testing.T) {
	fx := newLifecycleFixture()
	fx.backend.startIDs = []string{"job-1"}
	fx.backend.script("job-1", domain.StatusProcessing)
	reports := NewReportService(&reportBackendFake{}, fx.busy)

	if err := fx.controller.Submit(context.Background(), audioSubmission()); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	waitFor(t, "first status check", func() bool { return fx.backend.statusCount("job-1") >= 1 })

	if err := reports.Regenerate(context.Background(), "job-0", "summarize"); err != nil {
		t.Fatalf("Regenerate() error = %v", err)
	}
	if !fx.busy.Busy() {
		t.Fatalf("expected busy while job-1 is still polling")
	}

	fx.controller.Stop()
	if fx.busy.Busy() {
		t.Fatalf("expected busy cleared after Stop")
	}
}

package usecase

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/kirillkom/audio-report-client/internal/core/domain"
	"github.com/kirillkom/audio-report-client/internal/core/report"
)

const testPollInterval = 5 * time.Millisecond

type statusReply struct {
	status domain.JobStatus
	err    error
}

// backendFake replays scripted replies per job. The last status reply of a
// job repeats once the script is exhausted.
type backendFake struct {
	mu sync.Mutex

	startIDs   []string
	startErr   error
	startCalls int
	uploaded   []string

	statuses    map[string][]statusReply
	statusCalls map[string]int

	finals     map[string]domain.FinalResult
	finalErr   error
	finalCalls map[string]int
}

func newBackendFake() *backendFake {
	return &backendFake{
		statuses:    map[string][]statusReply{},
		statusCalls: map[string]int{},
		finals:      map[string]domain.FinalResult{},
		finalCalls:  map[string]int{},
	}
}

func (f *backendFake) StartJob(_ context.Context, filename string, audio io.Reader, modelSize string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startCalls++
	if f.startErr != nil {
		return "", f.startErr
	}
	data, _ := io.ReadAll(audio)
	f.uploaded = append(f.uploaded, filename+":"+modelSize+":"+string(data))
	if len(f.startIDs) == 0 {
		return "", nil
	}
	id := f.startIDs[0]
	f.startIDs = f.startIDs[1:]
	return id, nil
}

func (f *backendFake) GetStatus(_ context.Context, jobID string) (domain.JobStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls[jobID]++
	script := f.statuses[jobID]
	if len(script) == 0 {
		return domain.StatusProcessing, nil
	}
	reply := script[0]
	if len(script) > 1 {
		f.statuses[jobID] = script[1:]
	}
	return reply.status, reply.err
}

func (f *backendFake) FetchFinal(_ context.Context, jobID string) (domain.FinalResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finalCalls[jobID]++
	if f.finalErr != nil {
		return domain.FinalResult{}, f.finalErr
	}
	result, ok := f.finals[jobID]
	if !ok {
		return domain.FinalResult{}, errors.New("no final result scripted")
	}
	return result, nil
}

func (f *backendFake) script(jobID string, statuses ...domain.JobStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	replies := make([]statusReply, 0, len(statuses))
	for _, s := range statuses {
		replies = append(replies, statusReply{status: s})
	}
	f.statuses[jobID] = replies
}

func (f *backendFake) statusCount(jobID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statusCalls[jobID]
}

func (f *backendFake) finalCount(jobID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.finalCalls[jobID]
}

type viewFake struct {
	mu       sync.Mutex
	busy     []bool
	statuses []string
	errs     []error
	reports  map[string]report.Fragment
}

func (v *viewFake) SetBusy(busy bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.busy = append(v.busy, busy)
}

func (v *viewFake) ShowStatus(msg string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.statuses = append(v.statuses, msg)
}

func (v *viewFake) ShowError(err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.errs = append(v.errs, err)
}

func (v *viewFake) ShowReport(jobID string, fragment report.Fragment) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.reports == nil {
		v.reports = map[string]report.Fragment{}
	}
	v.reports[jobID] = fragment
}

func (v *viewFake) snapshot() (statuses []string, errs []error, reports map[string]report.Fragment) {
	v.mu.Lock()
	defer v.mu.Unlock()
	statuses = append([]string(nil), v.statuses...)
	errs = append([]error(nil), v.errs...)
	reports = make(map[string]report.Fragment, len(v.reports))
	for k, f := range v.reports {
		reports[k] = f
	}
	return statuses, errs, reports
}

type publisherFake struct {
	mu     sync.Mutex
	events []domain.JobEvent
}

func (p *publisherFake) PublishJobEvent(_ context.Context, event domain.JobEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *publisherFake) types(jobID string) []domain.JobEventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []domain.JobEventType
	for _, e := range p.events {
		if e.JobID == jobID {
			out = append(out, e.Type)
		}
	}
	return out
}

type metricsFake struct {
	mu       sync.Mutex
	polls    []string
	outcomes []string
}

func (m *metricsFake) ObservePollStatus(status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.polls = append(m.polls, status)
}

func (m *metricsFake) ObserveJobOutcome(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, outcome)
}

func (m *metricsFake) SetBusy(bool) {}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

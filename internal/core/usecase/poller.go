package usecase

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/kirillkom/audio-report-client/internal/core/domain"
	"github.com/kirillkom/audio-report-client/internal/core/ports"
)

const DefaultPollInterval = 4000 * time.Millisecond

type statusChecker interface {
	GetStatus(ctx context.Context, jobID string) (domain.JobStatus, error)
}

// PollHooks receive the outcome of a polling session. They run on the
// session goroutine and must not call Poller.Stop or Poller.Start.
type PollHooks struct {
	OnStatus   func(jobID string, status domain.JobStatus)
	OnTerminal func(ctx context.Context, jobID string, status domain.JobStatus)
	OnError    func(jobID string, err error)
	// OnDone runs last on every exit path: terminal, error, Stop or cancellation.
	OnDone func(jobID string)
}

type pollOutcome int

const (
	pollContinue pollOutcome = iota
	pollTerminal
	pollFailed
	pollCancelled
)

type Poller struct {
	checker  statusChecker
	interval time.Duration
	metrics  ports.LifecycleMetrics

	mu      sync.Mutex
	session *Session
}

func NewPoller(checker statusChecker, interval time.Duration, metrics ports.LifecycleMetrics) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{
		checker:  checker,
		interval: interval,
		metrics:  metrics,
	}
}

// Start checks jobID immediately and then every interval until a terminal
// status, a transport error, or Stop. Any previous session is fully stopped
// before the new schedule is created.
func (p *Poller) Start(ctx context.Context, jobID string, hooks PollHooks) *Session {
	sess, sessCtx := newSession(ctx, jobID)

	p.mu.Lock()
	prev := p.session
	p.session = sess
	p.mu.Unlock()

	if prev != nil {
		slog.Info("poll_session_replaced", "job_id", prev.JobID, "next_job_id", jobID)
		prev.stop()
	}

	slog.Info("poll_session_started", "job_id", jobID, "session_id", sess.ID, "interval_ms", p.interval.Milliseconds())
	go p.run(sessCtx, sess, hooks)
	return sess
}

// Stop is idempotent. When it returns no status check of the stopped
// session is in flight or pending.
func (p *Poller) Stop() {
	p.mu.Lock()
	sess := p.session
	p.session = nil
	p.mu.Unlock()

	if sess != nil {
		sess.stop()
		slog.Info("poll_session_stopped", "job_id", sess.JobID, "session_id", sess.ID)
	}
}

// Active returns the job id of the live session, if any.
func (p *Poller) Active() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.session == nil {
		return "", false
	}
	return p.session.JobID, true
}

func (p *Poller) run(ctx context.Context, sess *Session, hooks PollHooks) {
	defer p.finish(sess, hooks)

	ticker := time.NewTicker(p.interval)
	outcome, status, err := p.check(ctx, sess.JobID, hooks)
	for outcome == pollContinue {
		select {
		case <-ctx.Done():
			outcome = pollCancelled
		case <-ticker.C:
			outcome, status, err = p.check(ctx, sess.JobID, hooks)
		}
	}
	ticker.Stop()

	switch outcome {
	case pollTerminal:
		if hooks.OnTerminal != nil {
			hooks.OnTerminal(ctx, sess.JobID, status)
		}
	case pollFailed:
		if hooks.OnError != nil {
			hooks.OnError(sess.JobID, err)
		}
	}
}

func (p *Poller) finish(sess *Session, hooks PollHooks) {
	p.mu.Lock()
	if p.session == sess {
		p.session = nil
	}
	p.mu.Unlock()

	if hooks.OnDone != nil {
		hooks.OnDone(sess.JobID)
	}
	close(sess.done)
}

func (p *Poller) check(ctx context.Context, jobID string, hooks PollHooks) (pollOutcome, domain.JobStatus, error) {
	status, err := p.checker.GetStatus(ctx, jobID)
	if ctx.Err() != nil {
		return pollCancelled, "", nil
	}
	if err != nil {
		slog.Error("poll_status_failed", "job_id", jobID, "error", err)
		p.observe("error")
		return pollFailed, "", domain.NewError(domain.ErrPolling, "Error checking status: "+err.Error(), err)
	}

	p.observe(statusLabel(status))
	if hooks.OnStatus != nil {
		hooks.OnStatus(jobID, status)
	}

	switch {
	case status.IsTerminal():
		slog.Info("poll_finished", "job_id", jobID, "status", status)
		return pollTerminal, status, nil
	case status == domain.StatusProcessing:
		slog.Debug("poll_status", "job_id", jobID, "status", status)
	case status.IsTransient():
		slog.Warn("poll_status_not_found", "job_id", jobID)
	default:
		slog.Warn("poll_status_unexpected", "job_id", jobID, "status", status)
	}
	return pollContinue, status, nil
}

// statusLabel bounds the metric label set; the backend may add statuses.
func statusLabel(status domain.JobStatus) string {
	switch status {
	case domain.StatusSubmitted, domain.StatusProcessing, domain.StatusCompleted,
		domain.StatusFailed, domain.StatusNotFound:
		return string(status)
	default:
		return "other"
	}
}

func (p *Poller) observe(status string) {
	if p.metrics != nil {
		p.metrics.ObservePollStatus(status)
	}
}

package usecase

import (
	"context"

	"github.com/google/uuid"
)

// Session is one live recurring status check. A Poller holds at most one.
type Session struct {
	ID    string
	JobID string

	cancel context.CancelFunc
	done   chan struct{}
}

func newSession(parent context.Context, jobID string) (*Session, context.Context) {
	ctx, cancel := context.WithCancel(parent)
	return &Session{
		ID:     uuid.NewString(),
		JobID:  jobID,
		cancel: cancel,
		done:   make(chan struct{}),
	}, ctx
}

// Done is closed once the session goroutine has exited.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// stop cancels the schedule and waits until no further check can run.
func (s *Session) stop() {
	s.cancel()
	<-s.done
}

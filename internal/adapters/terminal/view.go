package terminal

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/kirillkom/audio-report-client/internal/core/report"
	"github.com/kirillkom/audio-report-client/internal/infrastructure/render/textview"
)

type ReportStore interface {
	Save(ctx context.Context, key string, data io.Reader) (string, error)
}

// View prints status lines to one writer and the finished report to another
// writer or to a ReportStore. It is safe for use from the poll goroutine.
type View struct {
	mu sync.Mutex

	status io.Writer
	out    io.Writer
	store  ReportStore
	format Format

	busy    bool
	idle    chan struct{}
	lastErr error
	saved   []string
}

func NewView(status, out io.Writer, format Format, store ReportStore) *View {
	idle := make(chan struct{})
	close(idle)
	return &View{
		status: status,
		out:    out,
		store:  store,
		format: format,
		idle:   idle,
	}
}

func (v *View) SetBusy(busy bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if busy == v.busy {
		return
	}
	v.busy = busy
	if busy {
		v.lastErr = nil
		v.idle = make(chan struct{})
		return
	}
	close(v.idle)
}

func (v *View) ShowStatus(msg string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	fmt.Fprintln(v.status, textview.Literal(msg))
}

func (v *View) ShowError(err error) {
	if err == nil {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.lastErr = err
	fmt.Fprintln(v.status, "Error: "+textview.Literal(err.Error()))
}

func (v *View) ShowReport(jobID string, fragment report.Fragment) {
	data, err := Encode(v.format, jobID, fragment)
	if err != nil {
		v.ShowError(fmt.Errorf("render report: %w", err))
		return
	}

	if v.store == nil {
		v.mu.Lock()
		defer v.mu.Unlock()
		if _, err := v.out.Write(data); err != nil {
			slog.Error("report_write_failed", "job_id", jobID, "error", err)
			v.lastErr = err
		}
		return
	}

	path, err := v.store.Save(context.Background(), jobID+v.format.Ext(), bytes.NewReader(data))
	if err != nil {
		v.ShowError(fmt.Errorf("save report: %w", err))
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.saved = append(v.saved, path)
	fmt.Fprintln(v.status, "Report saved to "+path)
}

// Wait blocks until the view is not busy and returns the last error shown
// since the view last became busy.
func (v *View) Wait(ctx context.Context) error {
	v.mu.Lock()
	idle := v.idle
	v.mu.Unlock()

	select {
	case <-idle:
	case <-ctx.Done():
		return ctx.Err()
	}
	return v.Err()
}

func (v *View) Err() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.lastErr
}

func (v *View) Saved() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]string, len(v.saved))
	copy(out, v.saved)
	return out
}

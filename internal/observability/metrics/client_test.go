package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func scrape(t *testing.T, m *ClientMetrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	return string(body)
}

func TestClientMetricsExposesLifecycleSeries(t *testing.T) {
	m := NewClientMetrics("reportctl")
	m.ObserveRequest("get_status", "http_404", 20*time.Millisecond)
	m.ObservePollStatus("not_found")
	m.ObservePollStatus("")
	m.ObserveJobOutcome("completed")
	m.SetBusy(true)
	m.ObserveBreakerState("backend.get_status", "open")

	body := scrape(t, m)
	for _, want := range []string{
		`arc_backend_requests_total{operation="get_status",outcome="http_404",service="reportctl"} 1`,
		`arc_poller_checks_total{service="reportctl",status="not_found"} 1`,
		`arc_poller_checks_total{service="reportctl",status="unknown"} 1`,
		`arc_jobs_finished_total{outcome="completed",service="reportctl"} 1`,
		`arc_jobs_busy{service="reportctl"} 1`,
		`arc_backend_breaker_state{operation="backend.get_status",service="reportctl"} 2`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in scrape output:\n%s", want, body)
		}
	}

	m.SetBusy(false)
	if body := scrape(t, m); !strings.Contains(body, `arc_jobs_busy{service="reportctl"} 0`) {
		t.Fatalf("expected busy gauge reset, got:\n%s", body)
	}
}

package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/audio-report-client/internal/config"
	"github.com/kirillkom/audio-report-client/internal/core/domain"
	"github.com/kirillkom/audio-report-client/internal/core/ports"
	"github.com/kirillkom/audio-report-client/internal/core/usecase"
	"github.com/kirillkom/audio-report-client/internal/infrastructure/backend"
	eventsnats "github.com/kirillkom/audio-report-client/internal/infrastructure/events/nats"
	"github.com/kirillkom/audio-report-client/internal/infrastructure/resilience"
	"github.com/kirillkom/audio-report-client/internal/observability/metrics"
)

const serviceName = "reportctl"

type App struct {
	Config config.Config

	Backend   *backend.Client
	Metrics   *metrics.ClientMetrics
	Events    *eventsnats.Publisher
	Busy      *usecase.BusyState
	Lifecycle ports.JobSubmitter
	Reports   ports.ReportReader

	closeFn func()
}

// New wires the client. view receives every status change and busy
// transition; it must be safe for use from the poll goroutine.
func New(_ context.Context, cfg config.Config, view ports.View) (*App, error) {
	clientMetrics := metrics.NewClientMetrics(serviceName)

	executor := resilience.NewExecutor(resilience.Config{
		BreakerEnabled:          cfg.BreakerEnabled,
		BreakerMinRequests:      uint32(max(cfg.BreakerMinRequests, 0)),
		BreakerFailureRatio:     cfg.BreakerFailureRatio,
		BreakerOpenTimeout:      time.Duration(cfg.BreakerOpenTimeoutSeconds) * time.Second,
		BreakerHalfOpenMaxCalls: uint32(max(cfg.BreakerHalfOpenMaxCalls, 0)),
		BreakerWindow:           time.Duration(cfg.BreakerWindowSeconds) * time.Second,
		Observer:                clientMetrics,
	})

	client := backend.New(cfg.BackendURL, backend.Options{
		Timeout:        cfg.HTTPTimeout(),
		RateLimitRPS:   cfg.BackendRateLimitRPS,
		RateLimitBurst: cfg.BackendRateLimitBurst,
		Executor:       executor,
		Metrics:        clientMetrics,
	})

	var (
		publisher ports.JobEventPublisher
		events    *eventsnats.Publisher
	)
	if cfg.NATSURL != "" {
		var err error
		events, err = eventsnats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, eventsnats.Options{
			ResilienceExecutor: executor,
		})
		if err != nil {
			return nil, fmt.Errorf("init job events: %w", err)
		}
		publisher = events
	}

	busy := usecase.NewBusyState(func(b bool) {
		view.SetBusy(b)
		clientMetrics.SetBusy(b)
	})

	modelSize, ok := domain.NormalizeWhisperModelSize(cfg.WhisperModelSize)
	if !ok {
		slog.Warn("whisper_model_size_invalid", "configured", cfg.WhisperModelSize, "using", modelSize)
	}

	poller := usecase.NewPoller(client, cfg.PollInterval(), clientMetrics)
	lifecycle := usecase.NewLifecycleController(client, poller, view, busy, usecase.LifecycleOptions{
		Publisher:        publisher,
		Metrics:          clientMetrics,
		DefaultModelSize: modelSize,
	})
	reports := usecase.NewReportService(client, busy)

	return &App{
		Config:    cfg,
		Backend:   client,
		Metrics:   clientMetrics,
		Events:    events,
		Busy:      busy,
		Lifecycle: lifecycle,
		Reports:   reports,

		closeFn: func() {
			lifecycle.Stop()
			if events != nil {
				events.Close()
			}
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

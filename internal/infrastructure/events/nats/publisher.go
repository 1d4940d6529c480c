package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/audio-report-client/internal/core/domain"
	"github.com/kirillkom/audio-report-client/internal/infrastructure/resilience"
)

const DefaultSubject = "reports.jobs"

// Publisher sends job lifecycle events to <subject>.<event type>.
type Publisher struct {
	conn     *nats.Conn
	subject  string
	executor *resilience.Executor
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
}

func New(url, subject string) (*Publisher, error) {
	return NewWithOptions(url, subject, Options{})
}

func NewWithOptions(url, subject string, options Options) (*Publisher, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := false
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}

	conn, err := nats.Connect(
		url,
		nats.Name("audio-report-client"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Publisher{
		conn:     conn,
		subject:  normalizeSubject(subject),
		executor: options.ResilienceExecutor,
	}, nil
}

func (p *Publisher) Close() {
	if p.conn == nil {
		return
	}
	if err := p.conn.FlushTimeout(2 * time.Second); err != nil {
		slog.Warn("nats_flush_failed", "error", err)
	}
	p.conn.Close()
}

func (p *Publisher) PublishJobEvent(ctx context.Context, event domain.JobEvent) error {
	data, err := encodeEvent(event)
	if err != nil {
		return err
	}
	subject := eventSubject(p.subject, event.Type)

	call := func(_ context.Context) error {
		if err := p.conn.Publish(subject, data); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	if p.executor != nil {
		err = p.executor.Execute(ctx, "nats.publish", call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return wrapTemporaryIfNeeded(err)
	}
	return nil
}

// SubscribeJobEvents delivers every event published under the subject until
// ctx is cancelled.
func (p *Publisher) SubscribeJobEvents(ctx context.Context, handler func(context.Context, domain.JobEvent) error) error {
	sub, err := p.conn.Subscribe(p.subject+".>", func(msg *nats.Msg) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}

		event, err := decodeEvent(msg.Data)
		if err != nil {
			slog.Warn("job_event_decode_failed", "subject", msg.Subject, "error", err)
			return
		}

		handlerCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		if err := handler(handlerCtx, event); err != nil {
			slog.Error("job_event_handler_failed", "job_id", event.JobID, "type", event.Type, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := p.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := p.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

func encodeEvent(event domain.JobEvent) ([]byte, error) {
	if strings.TrimSpace(event.JobID) == "" {
		return nil, fmt.Errorf("job event %q without job id", event.Type)
	}
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal job event: %w", err)
	}
	return data, nil
}

func decodeEvent(data []byte) (domain.JobEvent, error) {
	var event domain.JobEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return domain.JobEvent{}, fmt.Errorf("unmarshal job event: %w", err)
	}
	if event.JobID == "" || event.Type == "" {
		return domain.JobEvent{}, fmt.Errorf("job event missing type or job id")
	}
	return event, nil
}

func normalizeSubject(subject string) string {
	subject = strings.Trim(strings.TrimSpace(subject), ".")
	if subject == "" {
		return DefaultSubject
	}
	return subject
}

func eventSubject(base string, eventType domain.JobEventType) string {
	if eventType == "" {
		return base + ".unknown"
	}
	return base + "." + string(eventType)
}

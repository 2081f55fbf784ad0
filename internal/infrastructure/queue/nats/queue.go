package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/asn-portal/internal/core/domain"
	"github.com/kirillkom/asn-portal/internal/infrastructure/resilience"
)

const (
	headerEventID   = "Nats-Msg-Id"
	headerRequestID = "X-Request-Id"
	consumerGroup   = "review-queue"
)

// Bus carries verification events between the API and the review worker.
type Bus struct {
	conn     *nats.Conn
	subject  string
	executor *resilience.Executor
}

type Options struct {
	ClientName           string
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
}

func New(url, subject string, options Options) (*Bus, error) {
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
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}
	name := options.ClientName
	if name == "" {
		name = "asn-portal"
	}

	conn, err := nats.Connect(
		url,
		nats.Name(name),
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
	return &Bus{
		conn:     conn,
		subject:  subject,
		executor: options.ResilienceExecutor,
	}, nil
}

func (b *Bus) Close() {
	if b.conn != nil {
		b.conn.Close()
	}
}

func (b *Bus) PublishVerificationCompleted(ctx context.Context, event domain.VerificationCompleted) error {
	msg, err := encodeEvent(b.subject, event)
	if err != nil {
		return err
	}
	call := func(_ context.Context) error {
		if err := b.conn.PublishMsg(msg); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	if b.executor != nil {
		err = b.executor.Execute(ctx, "nats.publish", call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	return wrapTemporaryIfNeeded(err)
}

// SubscribeVerificationCompleted blocks until ctx is done, then drains.
func (b *Bus) SubscribeVerificationCompleted(ctx context.Context, handler func(context.Context, domain.VerificationCompleted) error) error {
	sub, err := b.conn.QueueSubscribe(b.subject, consumerGroup, func(msg *nats.Msg) {
		if ctx.Err() != nil {
			return
		}
		event, err := decodeEvent(msg)
		if err != nil {
			slog.Warn("verification_event_malformed", "subject", msg.Subject, "error", err)
			return
		}

		handlerCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		if err := handler(handlerCtx, event); err != nil {
			slog.Error("verification_event_handler_failed", "event_id", event.ID, "request_id", event.RequestID, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := b.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := b.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

func encodeEvent(subject string, event domain.VerificationCompleted) (*nats.Msg, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal verification event: %w", err)
	}
	msg := nats.NewMsg(subject)
	msg.Data = payload
	if event.ID != "" {
		msg.Header.Set(headerEventID, event.ID)
	}
	if event.RequestID != "" {
		msg.Header.Set(headerRequestID, event.RequestID)
	}
	return msg, nil
}

func decodeEvent(msg *nats.Msg) (domain.VerificationCompleted, error) {
	var event domain.VerificationCompleted
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		return domain.VerificationCompleted{}, fmt.Errorf("decode verification event: %w", err)
	}
	if event.ID == "" && msg.Header != nil {
		event.ID = msg.Header.Get(headerEventID)
	}
	if event.RequestID == "" && msg.Header != nil {
		event.RequestID = msg.Header.Get(headerRequestID)
	}
	if event.Status == "" {
		return domain.VerificationCompleted{}, fmt.Errorf("decode verification event: status is missing")
	}
	return event, nil
}

package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/St1cky1/vfx-tracker/internal/entity"
	"github.com/St1cky1/vfx-tracker/internal/infrastructure/client"
	"github.com/St1cky1/vfx-tracker/internal/metrics"
)

// ChangeHandler processes one change event taken off the feed.
type ChangeHandler interface {
	HandleChange(ctx context.Context, event *entity.ChangeEvent) error
}

type ChangeHandlerFunc func(ctx context.Context, event *entity.ChangeEvent) error

func (f ChangeHandlerFunc) HandleChange(ctx context.Context, event *entity.ChangeEvent) error {
	return f(ctx, event)
}

// LogHandler writes every change event to the structured log.
func LogHandler(logger *zap.Logger) ChangeHandler {
	return ChangeHandlerFunc(func(_ context.Context, e *entity.ChangeEvent) error {
		fields := []zap.Field{
			zap.Int64("entry_id", e.EntryID),
			zap.String("entity_type", string(e.EntityType)),
			zap.String("entity_id", e.EntityID.String()),
			zap.String("action", string(e.ActionType)),
			zap.Time("timestamp", e.Timestamp),
		}
		if e.FieldName != nil {
			fields = append(fields, zap.String("field", *e.FieldName))
		}
		if e.ReversesEntryID != nil {
			fields = append(fields, zap.Int64("reverses_entry_id", *e.ReversesEntryID))
		}
		if e.UserName != nil {
			fields = append(fields, zap.String("user", *e.UserName))
		}
		logger.Info("change feed event", fields...)
		return nil
	})
}

type Config struct {
	URL            string
	Queue          string
	ConsumerTag    string
	ReconnectDelay time.Duration
}

// ChangeFeedWorker consumes the change feed queue and hands each event to a
// ChangeHandler. It reconnects until its context is cancelled.
type ChangeFeedWorker struct {
	cfg     Config
	handler ChangeHandler
	logger  *zap.Logger
}

func NewChangeFeedWorker(cfg Config, handler ChangeHandler, logger *zap.Logger) *ChangeFeedWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ConsumerTag == "" {
		cfg.ConsumerTag = "change_feed_worker"
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 5 * time.Second
	}
	return &ChangeFeedWorker{cfg: cfg, handler: handler, logger: logger}
}

func (w *ChangeFeedWorker) Start(ctx context.Context) {
	w.logger.Info("change feed worker started", zap.String("queue", w.cfg.Queue))
	for {
		err := w.runOnce(ctx)
		if ctx.Err() != nil {
			w.logger.Info("change feed worker stopped")
			return
		}
		w.logger.Warn("change feed worker disconnected, reconnecting",
			zap.Error(err),
			zap.Duration("delay", w.cfg.ReconnectDelay),
		)
		select {
		case <-ctx.Done():
			w.logger.Info("change feed worker stopped")
			return
		case <-time.After(w.cfg.ReconnectDelay):
		}
	}
}

func (w *ChangeFeedWorker) runOnce(ctx context.Context) error {
	conn, err := amqp.Dial(w.cfg.URL)
	if err != nil {
		return fmt.Errorf("dial rabbitmq: %w", err)
	}
	defer conn.Close()

	channel, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer channel.Close()

	if _, err := client.DeclareQueue(channel, w.cfg.Queue); err != nil {
		return fmt.Errorf("declare queue %s: %w", w.cfg.Queue, err)
	}
	if err := channel.Qos(16, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}

	msgs, err := channel.Consume(
		w.cfg.Queue,       // queue
		w.cfg.ConsumerTag, // consumer tag
		false,             // auto-ack
		false,             // exclusive
		false,             // no-local
		false,             // no-wait
		nil,               // args
	)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}

	return w.Run(ctx, msgs)
}

// Run processes deliveries until ctx is done or msgs is closed.
func (w *ChangeFeedWorker) Run(ctx context.Context, msgs <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				return errors.New("delivery channel closed")
			}
			w.process(ctx, msg)
		}
	}
}

func (w *ChangeFeedWorker) process(ctx context.Context, msg amqp.Delivery) {
	// 1. Decode; malformed messages are dropped
	var event entity.ChangeEvent
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		w.logger.Error("change event decode failed", zap.ByteString("body", msg.Body), zap.Error(err))
		metrics.IncChangeFeedMessage("dropped")
		w.settle(msg.Nack(false, false))
		return
	}

	// 2. Handle; failures go back on the queue
	if err := w.handler.HandleChange(ctx, &event); err != nil {
		w.logger.Error("change event handler failed", zap.Int64("entry_id", event.EntryID), zap.Error(err))
		metrics.IncChangeFeedMessage("requeued")
		w.settle(msg.Nack(false, true))
		return
	}

	// 3. Ack
	metrics.IncChangeFeedMessage("processed")
	w.settle(msg.Ack(false))
}

func (w *ChangeFeedWorker) settle(err error) {
	if err != nil {
		w.logger.Warn("delivery acknowledgement failed", zap.Error(err))
	}
}

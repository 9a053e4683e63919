package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/St1cky1/vfx-tracker/internal/entity"
)

var ErrChangeFeedUnavailable = errors.New("change feed unavailable")

const defaultReconnectDelay = 5 * time.Second

// ChangeFeedPublisher publishes persisted change log entries to a durable
// queue. A channel is not safe for concurrent publishes, so calls are
// serialized. When the broker connection drops the publisher re-dials in the
// background; publishes fail fast with ErrChangeFeedUnavailable meanwhile.
type ChangeFeedPublisher struct {
	url            string
	queueName      string
	reconnectDelay time.Duration
	logger         *zap.Logger

	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
	closed  bool
	done    chan struct{}
}

// DeclareQueue declares the durable change feed queue on ch.
func DeclareQueue(ch *amqp.Channel, name string) (amqp.Queue, error) {
	return ch.QueueDeclare(
		name,  // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
}

// NewChangeFeedPublisher dials the broker. If the first dial fails the
// publisher starts disconnected and keeps re-dialling until Close.
func NewChangeFeedPublisher(url, queueName string, logger *zap.Logger) *ChangeFeedPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &ChangeFeedPublisher{
		url:            url,
		queueName:      queueName,
		reconnectDelay: defaultReconnectDelay,
		logger:         logger,
		done:           make(chan struct{}),
	}
	if err := c.connect(); err != nil {
		logger.Warn("change feed unavailable, publishing disabled until reconnect", zap.Error(err))
		go c.redial()
	}
	return c
}

func (c *ChangeFeedPublisher) connect() error {
	conn, err := amqp.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial rabbitmq: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	if _, err := DeclareQueue(channel, c.queueName); err != nil {
		channel.Close()
		conn.Close()
		return fmt.Errorf("declare queue %s: %w", c.queueName, err)
	}

	connClosed := conn.NotifyClose(make(chan *amqp.Error, 1))
	chanClosed := channel.NotifyClose(make(chan *amqp.Error, 1))

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		conn.Close()
		return nil
	}
	c.conn, c.channel = conn, channel
	c.mu.Unlock()

	go c.watch(conn, connClosed, chanClosed)
	return nil
}

// watch drops the connection once it or its channel closes and starts
// re-dialling unless the publisher itself was closed.
func (c *ChangeFeedPublisher) watch(conn *amqp.Connection, connClosed, chanClosed <-chan *amqp.Error) {
	var reason *amqp.Error
	select {
	case reason = <-connClosed:
	case reason = <-chanClosed:
	}

	c.mu.Lock()
	if c.conn == conn {
		c.conn, c.channel = nil, nil
	}
	shutdown := c.closed
	c.mu.Unlock()
	_ = conn.Close()

	if shutdown {
		return
	}
	if reason != nil {
		c.logger.Warn("change feed connection lost", zap.String("reason", reason.Reason), zap.Int("code", reason.Code))
	} else {
		c.logger.Warn("change feed connection lost")
	}
	c.redial()
}

func (c *ChangeFeedPublisher) redial() {
	for {
		select {
		case <-c.done:
			return
		case <-time.After(c.reconnectDelay):
		}
		if err := c.connect(); err != nil {
			c.logger.Warn("change feed reconnect failed", zap.Error(err))
			continue
		}
		c.logger.Info("change feed connected", zap.String("queue", c.queueName))
		return
	}
}

func (c *ChangeFeedPublisher) QueueName() string {
	return c.queueName
}

func (c *ChangeFeedPublisher) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channel != nil
}

func (c *ChangeFeedPublisher) PublishChange(ctx context.Context, event *entity.ChangeEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel == nil {
		return ErrChangeFeedUnavailable
	}
	err = c.channel.PublishWithContext(
		ctx,
		"",          // exchange
		c.queueName, // routing key
		false,       // mandatory
		false,       // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    event.Timestamp,
			Type:         string(event.EntityType) + "." + string(event.ActionType),
		},
	)
	if err != nil {
		return err
	}

	c.logger.Debug("change event published",
		zap.Int64("entry_id", event.EntryID),
		zap.String("entity_type", string(event.EntityType)),
		zap.String("action", string(event.ActionType)),
	)
	return nil
}

// Close stops re-dialling and closes the broker connection.
func (c *ChangeFeedPublisher) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	close(c.done)

	if c.channel != nil {
		c.channel.Close()
	}
	var err error
	if c.conn != nil {
		err = c.conn.Close()
	}
	c.conn, c.channel = nil, nil
	return err
}

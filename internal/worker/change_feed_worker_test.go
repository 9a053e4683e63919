package worker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/St1cky1/vfx-tracker/internal/entity"
)

type ackCall struct {
	tag     uint64
	ack     bool
	requeue bool
}

// MockAcknowledger - records how each delivery was settled
type MockAcknowledger struct {
	calls chan ackCall
}

func (m *MockAcknowledger) Ack(tag uint64, _ bool) error {
	m.calls <- ackCall{tag: tag, ack: true}
	return nil
}

func (m *MockAcknowledger) Nack(tag uint64, _ bool, requeue bool) error {
	m.calls <- ackCall{tag: tag, requeue: requeue}
	return nil
}

func (m *MockAcknowledger) Reject(tag uint64, requeue bool) error {
	m.calls <- ackCall{tag: tag, requeue: requeue}
	return nil
}

func TestChangeFeedWorkerSettlesDeliveries(t *testing.T) {
	acks := &MockAcknowledger{calls: make(chan ackCall, 3)}
	var handled []int64
	handler := ChangeHandlerFunc(func(_ context.Context, e *entity.ChangeEvent) error {
		handled = append(handled, e.EntryID)
		if e.EntryID == 2 {
			return assert.AnError
		}
		return nil
	})
	w := NewChangeFeedWorker(Config{Queue: "test"}, handler, nil)

	body := func(id int64) []byte {
		b, err := json.Marshal(entity.ChangeEvent{EntryID: id, EntityType: entity.EntityTask, EntityID: uuid.New(), ActionType: entity.ActionUpdate})
		require.NoError(t, err)
		return b
	}

	msgs := make(chan amqp.Delivery, 3)
	msgs <- amqp.Delivery{Acknowledger: acks, DeliveryTag: 1, Body: body(1)}
	msgs <- amqp.Delivery{Acknowledger: acks, DeliveryTag: 2, Body: body(2)}
	msgs <- amqp.Delivery{Acknowledger: acks, DeliveryTag: 3, Body: []byte("{nope")}
	close(msgs)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := w.Run(ctx, msgs)
	assert.EqualError(t, err, "delivery channel closed")

	assert.Equal(t, []int64{1, 2}, handled)
	assert.Equal(t, ackCall{tag: 1, ack: true}, <-acks.calls)
	assert.Equal(t, ackCall{tag: 2, requeue: true}, <-acks.calls)
	assert.Equal(t, ackCall{tag: 3, requeue: false}, <-acks.calls)
}

func TestChangeFeedWorkerStopsOnCancel(t *testing.T) {
	w := NewChangeFeedWorker(Config{Queue: "test"}, LogHandler(zap.NewNop()), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := w.Run(ctx, make(chan amqp.Delivery))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLogHandlerAcceptsEvents(t *testing.T) {
	reverses := int64(3)
	err := LogHandler(zap.NewNop()).HandleChange(context.Background(), &entity.ChangeEvent{
		EntryID:         4,
		EntityType:      entity.EntityShow,
		ActionType:      entity.ActionCreate,
		ReversesEntryID: &reverses,
	})
	assert.NoError(t, err)
}

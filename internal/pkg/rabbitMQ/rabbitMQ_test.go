package rabbitMQ

import (
	"context"
	"testing"
	"time"

	"github.com/ds124wfegd/bandpool/config"
	"github.com/ds124wfegd/bandpool/internal/entity"
	"github.com/ds124wfegd/bandpool/internal/pkg/codec"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueNames(t *testing.T) {
	assert.Equal(t, "bandpool.tasks.1", TaskQueue("bandpool", 1))
	assert.Equal(t, "bandpool.results.1", ResultQueue("bandpool", 1))
}

func TestNextReportsClosedDeliveries(t *testing.T) {
	msgs := make(chan amqp.Delivery)
	close(msgs)

	_, err := next(context.Background(), msgs)
	assert.ErrorIs(t, err, entity.ErrEndpointClosed)
}

func TestNextHonoursContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := next(ctx, make(chan amqp.Delivery))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestHandleSkipsMalformedResults(t *testing.T) {
	good, err := codec.MarshalResult(entity.Result{RequestID: "r", WorkerID: 1})
	require.NoError(t, err)

	msgs := make(chan amqp.Delivery, 2)
	msgs <- amqp.Delivery{Acknowledger: noopAck{}, Body: []byte("{")}
	msgs <- amqp.Delivery{Acknowledger: noopAck{}, Body: good}

	h := &WorkerHandle{id: 1, results: msgs, done: make(chan struct{})}
	res, err := h.Receive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "r", res.RequestID)

	require.NoError(t, h.Close())
	_, err = h.Receive(context.Background())
	assert.ErrorIs(t, err, entity.ErrEndpointClosed)
}

func TestNewPoolWithoutWorkers(t *testing.T) {
	_, err := NewPool(config.RabbitConfig{}, 0)
	assert.ErrorIs(t, err, entity.ErrInvalidPoolSize)

	pl, err := NewPool(config.RabbitConfig{}, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, pl.Size())
}

type noopAck struct{}

func (noopAck) Ack(tag uint64, multiple bool) error             { return nil }
func (noopAck) Nack(tag uint64, multiple, requeue bool) error { return nil }
func (noopAck) Reject(tag uint64, requeue bool) error           { return nil }

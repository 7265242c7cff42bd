package rabbitMQ

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ds124wfegd/bandpool/config"
	"github.com/ds124wfegd/bandpool/internal/entity"
	"github.com/ds124wfegd/bandpool/internal/pkg/codec"
	"github.com/ds124wfegd/bandpool/internal/pkg/pool"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

func TaskQueue(prefix string, id int) string {
	return fmt.Sprintf("%s.tasks.%d", prefix, id)
}

func ResultQueue(prefix string, id int) string {
	return fmt.Sprintf("%s.results.%d", prefix, id)
}

// broker owns one connection and channel shared by every queue opened on it.
type broker struct {
	conn    *amqp.Connection
	channel *amqp.Channel
}

func dial(url string) (*broker, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	// one unacknowledged band per consumer
	if err := channel.Qos(1, 0, false); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	return &broker{conn: conn, channel: channel}, nil
}

func (b *broker) declare(name string) error {
	_, err := b.channel.QueueDeclare(
		name,  // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", name, err)
	}
	return nil
}

func (b *broker) consume(name string) (<-chan amqp.Delivery, error) {
	msgs, err := b.channel.Consume(
		name,  // queue
		"",    // consumer
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return nil, fmt.Errorf("failed to consume from %s: %w", name, err)
	}
	return msgs, nil
}

func (b *broker) publish(ctx context.Context, queue string, body []byte) error {
	err := b.channel.PublishWithContext(
		ctx,
		"",    // exchange
		queue, // routing key
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", queue, err)
	}
	return nil
}

func (b *broker) Close() error {
	var errs []error

	if b.channel != nil {
		if err := b.channel.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if b.conn != nil {
		if err := b.conn.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors while closing RabbitMQ: %v", errs)
	}

	return nil
}

// HealthCheck проверяет соединение с RabbitMQ
func (b *broker) HealthCheck() error {
	if b.conn == nil || b.conn.IsClosed() {
		return fmt.Errorf("RabbitMQ connection is closed")
	}
	return nil
}

// next waits for one delivery and acknowledges it.
func next(ctx context.Context, msgs <-chan amqp.Delivery) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case msg, ok := <-msgs:
		if !ok {
			return nil, entity.ErrEndpointClosed
		}
		if err := msg.Ack(false); err != nil {
			return nil, fmt.Errorf("failed to ack delivery: %w", err)
		}
		return msg.Body, nil
	}
}

type WorkerHandle struct {
	id        int
	taskQueue string
	broker    *broker
	results   <-chan amqp.Delivery
	once      sync.Once
	done      chan struct{}
}

func (h *WorkerHandle) ID() int { return h.id }

func (h *WorkerHandle) Send(ctx context.Context, task entity.Task) error {
	select {
	case <-h.done:
		return entity.ErrEndpointClosed
	default:
	}
	body, err := codec.MarshalTask(task)
	if err != nil {
		return err
	}
	return h.broker.publish(ctx, h.taskQueue, body)
}

func (h *WorkerHandle) Receive(ctx context.Context) (entity.Result, error) {
	for {
		select {
		case <-h.done:
			return entity.Result{}, entity.ErrEndpointClosed
		default:
		}
		body, err := next(ctx, h.results)
		if err != nil {
			return entity.Result{}, err
		}
		res, err := codec.UnmarshalResult(body)
		if err != nil {
			logrus.WithField("worker_id", h.id).Errorf("Skipping malformed result: %v", err)
			continue
		}
		return res, nil
	}
}

// Close detaches the handle; the shared connection is closed by the pool.
func (h *WorkerHandle) Close() error {
	h.once.Do(func() { close(h.done) })
	return nil
}

type Endpoint struct {
	resultQueue string
	broker      *broker
	tasks       <-chan amqp.Delivery
}

func (e *Endpoint) NextTask(ctx context.Context) (entity.Task, error) {
	body, err := next(ctx, e.tasks)
	if err != nil {
		return entity.Task{}, err
	}
	return codec.UnmarshalTask(body)
}

func (e *Endpoint) SendResult(ctx context.Context, result entity.Result) error {
	body, err := codec.MarshalResult(result)
	if err != nil {
		return err
	}
	return e.broker.publish(ctx, e.resultQueue, body)
}

func (e *Endpoint) Close() error {
	return e.broker.Close()
}

// NewPool connects the coordinator to size-1 remote workers over one
// connection.
func NewPool(cfg config.RabbitConfig, size int) (*pool.Pool, error) {
	if size < 1 {
		return nil, fmt.Errorf("%w: %d", entity.ErrInvalidPoolSize, size)
	}
	if size == 1 {
		return pool.New()
	}

	b, err := dial(cfg.URL)
	if err != nil {
		return nil, err
	}

	handles := make([]pool.WorkerHandle, 0, size-1)
	for id := 1; id < size; id++ {
		taskQueue, resultQueue := TaskQueue(cfg.QueuePrefix, id), ResultQueue(cfg.QueuePrefix, id)
		if err := b.declare(taskQueue); err != nil {
			b.Close()
			return nil, err
		}
		if err := b.declare(resultQueue); err != nil {
			b.Close()
			return nil, err
		}
		results, err := b.consume(resultQueue)
		if err != nil {
			b.Close()
			return nil, err
		}
		handles = append(handles, &WorkerHandle{
			id:        id,
			taskQueue: taskQueue,
			broker:    b,
			results:   results,
			done:      make(chan struct{}),
		})
	}

	pl, err := pool.New(handles...)
	if err != nil {
		b.Close()
		return nil, err
	}
	pl.OnClose(b.Close)
	pl.OnHealthCheck(func(context.Context) error { return b.HealthCheck() })

	logrus.WithField("workers", size-1).Info("RabbitMQ worker pool configured")
	return pl, nil
}

func NewEndpoint(cfg config.RabbitConfig, id int) (*Endpoint, error) {
	if id < 1 {
		return nil, fmt.Errorf("worker id must be at least 1, got %d", id)
	}

	b, err := dial(cfg.URL)
	if err != nil {
		return nil, err
	}

	taskQueue, resultQueue := TaskQueue(cfg.QueuePrefix, id), ResultQueue(cfg.QueuePrefix, id)
	for _, name := range []string{taskQueue, resultQueue} {
		if err := b.declare(name); err != nil {
			b.Close()
			return nil, err
		}
	}
	tasks, err := b.consume(taskQueue)
	if err != nil {
		b.Close()
		return nil, err
	}

	if err := b.HealthCheck(); err != nil {
		b.Close()
		return nil, err
	}

	return &Endpoint{resultQueue: resultQueue, broker: b, tasks: tasks}, nil
}

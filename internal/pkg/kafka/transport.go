// Package kafka links the coordinator and its workers through a pair of
// single-partition topics per worker.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/ds124wfegd/bandpool/config"
	"github.com/ds124wfegd/bandpool/internal/entity"
	"github.com/ds124wfegd/bandpool/internal/pkg/codec"
	"github.com/ds124wfegd/bandpool/internal/pkg/pool"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// WorkerHandle is the coordinator's link to one remote worker.
type WorkerHandle struct {
	id        int
	taskTopic string
	writer    *kafka.Writer
	reader    *kafka.Reader
	closed    atomic.Bool
}

func (h *WorkerHandle) ID() int { return h.id }

func (h *WorkerHandle) Send(ctx context.Context, task entity.Task) error {
	if h.closed.Load() {
		return entity.ErrEndpointClosed
	}
	payload, err := codec.MarshalTask(task)
	if err != nil {
		return err
	}
	return publish(ctx, h.writer, h.taskTopic, task.RequestID, payload)
}

func (h *WorkerHandle) Receive(ctx context.Context) (entity.Result, error) {
	for {
		msg, err := h.reader.ReadMessage(ctx)
		if err != nil {
			if h.closed.Load() {
				return entity.Result{}, entity.ErrEndpointClosed
			}
			return entity.Result{}, err
		}
		res, err := codec.UnmarshalResult(msg.Value)
		if err != nil {
			logrus.WithField("worker_id", h.id).Errorf("Skipping malformed result at offset %d: %v", msg.Offset, err)
			continue
		}
		return res, nil
	}
}

func (h *WorkerHandle) Close() error {
	if h.closed.Swap(true) {
		return nil
	}
	return h.reader.Close()
}

// Endpoint is a worker's link to the coordinator.
type Endpoint struct {
	id          int
	resultTopic string
	writer      *kafka.Writer
	reader      *kafka.Reader
	closed      atomic.Bool
}

func (e *Endpoint) NextTask(ctx context.Context) (entity.Task, error) {
	msg, err := e.reader.ReadMessage(ctx)
	if err != nil {
		if e.closed.Load() {
			return entity.Task{}, entity.ErrEndpointClosed
		}
		return entity.Task{}, err
	}
	return codec.UnmarshalTask(msg.Value)
}

func (e *Endpoint) SendResult(ctx context.Context, result entity.Result) error {
	if e.closed.Load() {
		return entity.ErrEndpointClosed
	}
	payload, err := codec.MarshalResult(result)
	if err != nil {
		return err
	}
	return publish(ctx, e.writer, e.resultTopic, result.RequestID, payload)
}

func (e *Endpoint) Close() error {
	if e.closed.Swap(true) {
		return nil
	}
	return errors.Join(e.reader.Close(), e.writer.Close())
}

// NewPool connects the coordinator to size-1 remote workers.
func NewPool(ctx context.Context, cfg config.KafkaConfig, size int) (*pool.Pool, error) {
	if size < 1 {
		return nil, fmt.Errorf("%w: %d", entity.ErrInvalidPoolSize, size)
	}

	topics := make([]string, 0, 2*(size-1))
	for id := 1; id < size; id++ {
		topics = append(topics, TaskTopic(cfg.TopicPrefix, id), ResultTopic(cfg.TopicPrefix, id))
	}
	if len(topics) > 0 {
		if err := EnsureTopics(ctx, cfg.Brokers, topics...); err != nil {
			return nil, err
		}
	}

	writer := newWriter(cfg.Brokers)
	handles := make([]pool.WorkerHandle, 0, size-1)
	for id := 1; id < size; id++ {
		handles = append(handles, &WorkerHandle{
			id:        id,
			taskTopic: TaskTopic(cfg.TopicPrefix, id),
			writer:    writer,
			reader:    newReader(cfg.Brokers, ResultTopic(cfg.TopicPrefix, id), cfg.GroupID+"-coordinator"),
		})
	}

	pl, err := pool.New(handles...)
	if err != nil {
		writer.Close()
		return nil, err
	}
	pl.OnClose(writer.Close)

	logrus.WithFields(logrus.Fields{
		"brokers": cfg.Brokers,
		"workers": size - 1,
	}).Info("Kafka worker pool configured")
	return pl, nil
}

// NewEndpoint connects worker id to the coordinator.
func NewEndpoint(ctx context.Context, cfg config.KafkaConfig, id int) (*Endpoint, error) {
	if id < 1 {
		return nil, fmt.Errorf("worker id must be at least 1, got %d", id)
	}
	taskTopic, resultTopic := TaskTopic(cfg.TopicPrefix, id), ResultTopic(cfg.TopicPrefix, id)
	if err := EnsureTopics(ctx, cfg.Brokers, taskTopic, resultTopic); err != nil {
		return nil, err
	}

	return &Endpoint{
		id:          id,
		resultTopic: resultTopic,
		writer:      newWriter(cfg.Brokers),
		reader:      newReader(cfg.Brokers, taskTopic, fmt.Sprintf("%s-worker-%d", cfg.GroupID, id)),
	}, nil
}

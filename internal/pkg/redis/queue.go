// Package redis links the coordinator and its workers through a pair of
// Redis lists per worker.
package redis

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ds124wfegd/bandpool/config"
	"github.com/ds124wfegd/bandpool/internal/entity"
	"github.com/ds124wfegd/bandpool/internal/pkg/codec"
	"github.com/ds124wfegd/bandpool/internal/pkg/pool"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func TaskKey(prefix string, id int) string {
	return fmt.Sprintf("%s:tasks:%d", prefix, id)
}

func ResultKey(prefix string, id int) string {
	return fmt.Sprintf("%s:results:%d", prefix, id)
}

// list is a FIFO over one Redis list: LPUSH to enqueue, BRPOP to dequeue.
type list struct {
	client       *redis.Client
	key          string
	pollInterval time.Duration
}

func (l list) push(ctx context.Context, payload []byte) error {
	if err := l.client.LPush(ctx, l.key, payload).Err(); err != nil {
		return fmt.Errorf("failed to push to %s: %w", l.key, err)
	}
	return nil
}

// pop blocks in pollInterval slices until an element arrives or ctx ends.
func (l list) pop(ctx context.Context) ([]byte, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		wait := l.pollInterval
		if deadline, ok := ctx.Deadline(); ok {
			if remaining := time.Until(deadline); remaining < wait {
				wait = remaining
			}
		}
		if wait < time.Second {
			// BRPOP has whole-second resolution
			wait = time.Second
		}

		values, err := l.client.BRPop(ctx, wait, l.key).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("failed to pop from %s: %w", l.key, err)
		}
		// BRPOP replies with [key, value]
		return []byte(values[1]), nil
	}
}

type WorkerHandle struct {
	id      int
	tasks   list
	results list
	closed  atomic.Bool
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
	return h.tasks.push(ctx, payload)
}

func (h *WorkerHandle) Receive(ctx context.Context) (entity.Result, error) {
	for {
		if h.closed.Load() {
			return entity.Result{}, entity.ErrEndpointClosed
		}
		payload, err := h.results.pop(ctx)
		if err != nil {
			return entity.Result{}, err
		}
		res, err := codec.UnmarshalResult(payload)
		if err != nil {
			logrus.WithField("worker_id", h.id).Errorf("Skipping malformed result: %v", err)
			continue
		}
		return res, nil
	}
}

// Close detaches the handle; the shared client is closed by the pool.
func (h *WorkerHandle) Close() error {
	h.closed.Store(true)
	return nil
}

type Endpoint struct {
	client  *redis.Client
	tasks   list
	results list
	closed  atomic.Bool
}

func (e *Endpoint) NextTask(ctx context.Context) (entity.Task, error) {
	if e.closed.Load() {
		return entity.Task{}, entity.ErrEndpointClosed
	}
	payload, err := e.tasks.pop(ctx)
	if err != nil {
		if e.closed.Load() {
			return entity.Task{}, entity.ErrEndpointClosed
		}
		return entity.Task{}, err
	}
	return codec.UnmarshalTask(payload)
}

func (e *Endpoint) SendResult(ctx context.Context, result entity.Result) error {
	if e.closed.Load() {
		return entity.ErrEndpointClosed
	}
	payload, err := codec.MarshalResult(result)
	if err != nil {
		return err
	}
	return e.results.push(ctx, payload)
}

func (e *Endpoint) Close() error {
	if e.closed.Swap(true) {
		return nil
	}
	return e.client.Close()
}

func newClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}
	return client, nil
}

func newList(client *redis.Client, key string, cfg config.RedisConfig) list {
	poll := cfg.PollInterval
	if poll <= 0 {
		poll = time.Second
	}
	return list{client: client, key: key, pollInterval: poll}
}

// NewPool connects the coordinator to size-1 remote workers sharing one
// client.
func NewPool(ctx context.Context, cfg config.RedisConfig, size int) (*pool.Pool, error) {
	if size < 1 {
		return nil, fmt.Errorf("%w: %d", entity.ErrInvalidPoolSize, size)
	}
	if size == 1 {
		return pool.New()
	}

	client, err := newClient(ctx, cfg)
	if err != nil {
		return nil, err
	}

	handles := make([]pool.WorkerHandle, 0, size-1)
	for id := 1; id < size; id++ {
		handles = append(handles, &WorkerHandle{
			id:      id,
			tasks:   newList(client, TaskKey(cfg.KeyPrefix, id), cfg),
			results: newList(client, ResultKey(cfg.KeyPrefix, id), cfg),
		})
	}

	pl, err := pool.New(handles...)
	if err != nil {
		client.Close()
		return nil, err
	}
	pl.OnClose(client.Close)
	pl.OnHealthCheck(func(ctx context.Context) error { return client.Ping(ctx).Err() })

	logrus.WithFields(logrus.Fields{
		"addr":    cfg.Addr,
		"workers": size - 1,
	}).Info("Redis worker pool configured")
	return pl, nil
}

func NewEndpoint(ctx context.Context, cfg config.RedisConfig, id int) (*Endpoint, error) {
	if id < 1 {
		return nil, fmt.Errorf("worker id must be at least 1, got %d", id)
	}
	client, err := newClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Endpoint{
		client:  client,
		tasks:   newList(client, TaskKey(cfg.KeyPrefix, id), cfg),
		results: newList(client, ResultKey(cfg.KeyPrefix, id), cfg),
	}, nil
}

package pool

import (
	"context"
	"fmt"
	"sync"

	"github.com/ds124wfegd/bandpool/internal/entity"
	"github.com/ds124wfegd/bandpool/internal/pkg/processor"
	"github.com/ds124wfegd/bandpool/internal/worker"
)

// localLink is an in-process channel pair between the coordinator and one
// worker goroutine.
type localLink struct {
	id      int
	tasks   chan entity.Task
	results chan entity.Result
	done    chan struct{}
	once    sync.Once
}

func newLocalLink(id int) *localLink {
	return &localLink{
		id:      id,
		tasks:   make(chan entity.Task, 1),
		results: make(chan entity.Result, 1),
		done:    make(chan struct{}),
	}
}

func (l *localLink) ID() int { return l.id }

func (l *localLink) Send(ctx context.Context, task entity.Task) error {
	select {
	case <-l.done:
		return entity.ErrEndpointClosed
	default:
	}
	select {
	case l.tasks <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		return entity.ErrEndpointClosed
	}
}

func (l *localLink) Receive(ctx context.Context) (entity.Result, error) {
	select {
	case res := <-l.results:
		return res, nil
	case <-ctx.Done():
		return entity.Result{}, ctx.Err()
	case <-l.done:
		return entity.Result{}, entity.ErrEndpointClosed
	}
}

func (l *localLink) Close() error {
	l.once.Do(func() { close(l.done) })
	return nil
}

// localEndpoint is the worker goroutine's view of a localLink.
type localEndpoint struct {
	link *localLink
}

func (e localEndpoint) NextTask(ctx context.Context) (entity.Task, error) {
	select {
	case task := <-e.link.tasks:
		return task, nil
	case <-ctx.Done():
		return entity.Task{}, ctx.Err()
	case <-e.link.done:
		return entity.Task{}, entity.ErrEndpointClosed
	}
}

func (e localEndpoint) SendResult(ctx context.Context, result entity.Result) error {
	select {
	case e.link.results <- result:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-e.link.done:
		return entity.ErrEndpointClosed
	}
}

func (e localEndpoint) Close() error {
	return e.link.Close()
}

// NewLocal starts size-1 worker goroutines, each bound to its own channel
// pair, and returns the pool addressing them. Close stops the goroutines
// and waits for them to exit.
func NewLocal(size int, p processor.ImageProcessor) (*Pool, error) {
	if size < 1 {
		return nil, fmt.Errorf("%w: %d", entity.ErrInvalidPoolSize, size)
	}

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup

	handles := make([]WorkerHandle, 0, size-1)
	for id := 1; id < size; id++ {
		link := newLocalLink(id)
		handles = append(handles, link)

		w := worker.NewBandWorker(id, localEndpoint{link: link}, p)
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Start(ctx)
		}()
	}

	pl, err := New(handles...)
	if err != nil {
		cancel()
		wg.Wait()
		return nil, err
	}
	pl.OnClose(func() error {
		cancel()
		wg.Wait()
		return nil
	})
	return pl, nil
}

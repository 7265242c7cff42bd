// Package pool holds the static set of workers a coordinator dispatches to.
package pool

import (
	"context"
	"errors"
	"fmt"

	"github.com/ds124wfegd/bandpool/internal/entity"
)

// WorkerHandle is the coordinator's side of the link to one persistent
// worker. A handle is created at start-up and is never re-targeted.
type WorkerHandle interface {
	ID() int
	Send(ctx context.Context, task entity.Task) error
	// Receive blocks for the next result from this worker only.
	Receive(ctx context.Context) (entity.Result, error)
	Close() error
}

// Pool is an ordered collection of worker handles. The coordinator counts
// as member 0, so a pool with n handles has Size n+1 and handle i serves
// band i+1.
type Pool struct {
	handles []WorkerHandle
	closers []func() error
	checks  []func(ctx context.Context) error
}

// New builds a pool from handles whose IDs must run 1..len(handles) in order.
func New(handles ...WorkerHandle) (*Pool, error) {
	for i, h := range handles {
		if h.ID() != i+1 {
			return nil, fmt.Errorf("worker handle at position %d has id %d, expected %d", i, h.ID(), i+1)
		}
	}
	return &Pool{handles: handles}, nil
}

func (p *Pool) Size() int {
	return len(p.handles) + 1
}

func (p *Pool) Workers() []WorkerHandle {
	return p.handles
}

// OnClose registers fn to run after the handles have been closed.
func (p *Pool) OnClose(fn func() error) {
	p.closers = append(p.closers, fn)
}

// OnHealthCheck registers fn to report the state of the shared transport.
func (p *Pool) OnHealthCheck(fn func(ctx context.Context) error) {
	p.checks = append(p.checks, fn)
}

// HealthCheck runs every registered check. A pool without checks is healthy.
func (p *Pool) HealthCheck(ctx context.Context) error {
	var errs []error
	for _, fn := range p.checks {
		if err := fn(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (p *Pool) Close() error {
	var errs []error
	for _, h := range p.handles {
		if err := h.Close(); err != nil {
			errs = append(errs, fmt.Errorf("worker %d: %w", h.ID(), err))
		}
	}
	for _, fn := range p.closers {
		if err := fn(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

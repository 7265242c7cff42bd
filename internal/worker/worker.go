package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ds124wfegd/bandpool/internal/entity"
	"github.com/ds124wfegd/bandpool/internal/pkg/processor"

	"github.com/sirupsen/logrus"
)

// Endpoint is the worker's side of its point-to-point link to the
// coordinator.
type Endpoint interface {
	// NextTask blocks until a task arrives, ctx is done or the endpoint is
	// closed (entity.ErrEndpointClosed).
	NextTask(ctx context.Context) (entity.Task, error)
	SendResult(ctx context.Context, result entity.Result) error
	Close() error
}

// errorBackoff spaces out consecutive transport failures.
const errorBackoff = 500 * time.Millisecond

type BandWorker struct {
	id        int
	endpoint  Endpoint
	processor processor.ImageProcessor
	log       *logrus.Entry
}

func NewBandWorker(id int, endpoint Endpoint, processor processor.ImageProcessor) *BandWorker {
	return &BandWorker{
		id:        id,
		endpoint:  endpoint,
		processor: processor,
		log:       logrus.WithField("worker_id", id),
	}
}

// Start serves tasks one at a time until ctx is cancelled or the endpoint
// closes.
func (w *BandWorker) Start(ctx context.Context) {
	w.log.Info("Band worker started")

	for {
		task, err := w.endpoint.NextTask(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, entity.ErrEndpointClosed) {
				w.log.Info("Band worker stopped")
				return
			}
			w.log.Errorf("Failed to receive task: %v", err)
			if !w.pause(ctx) {
				w.log.Info("Band worker stopped")
				return
			}
			continue
		}

		start := time.Now()
		result := Apply(w.processor, w.id, task)

		entry := w.log.WithFields(logrus.Fields{
			"request_id": task.RequestID,
			"operation":  task.Operation,
			"band":       task.Band.Index,
			"rows":       task.Band.Height(),
			"duration":   time.Since(start),
		})
		if result.Error != "" {
			entry.Errorf("Band failed: %s", result.Error)
		} else {
			entry.Debug("Band processed")
		}

		if err := w.endpoint.SendResult(ctx, result); err != nil {
			if ctx.Err() != nil || errors.Is(err, entity.ErrEndpointClosed) {
				w.log.Info("Band worker stopped")
				return
			}
			entry.Errorf("Failed to send result: %v", err)
		}
	}
}

// Run serves endpoint as worker id until ctx is done.
func Run(ctx context.Context, id int, endpoint Endpoint, processor processor.ImageProcessor) {
	NewBandWorker(id, endpoint, processor).Start(ctx)
}

func (w *BandWorker) pause(ctx context.Context) bool {
	timer := time.NewTimer(errorBackoff)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// Apply runs one task through p and wraps the outcome as a Result. A panic
// inside the operation is reported through Result.Error.
func Apply(p processor.ImageProcessor, workerID int, task entity.Task) (result entity.Result) {
	result = entity.Result{
		RequestID: task.RequestID,
		WorkerID:  workerID,
		Band:      entity.Band{Index: task.Band.Index, Offset: task.Band.Offset},
	}

	defer func() {
		if r := recover(); r != nil {
			result.Band.Image = nil
			result.Error = fmt.Sprintf("operation %q panicked: %v", task.Operation, r)
		}
	}()

	result.Band.Image = p.Apply(task.Band.Image, task.Operation)
	return result
}

package service

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/ds124wfegd/bandpool/internal/entity"
	"github.com/ds124wfegd/bandpool/internal/pkg/codec"
	"github.com/ds124wfegd/bandpool/internal/pkg/partition"
	"github.com/ds124wfegd/bandpool/internal/pkg/pool"
	"github.com/ds124wfegd/bandpool/internal/pkg/processor"
	"github.com/ds124wfegd/bandpool/internal/worker"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type imageService struct {
	pool      *pool.Pool
	processor processor.ImageProcessor
	opts      Options

	// one wave in flight per pool
	slot chan struct{}
}

// gathered is one worker's contribution to a wave.
type gathered struct {
	band entity.Band
	err  error
}

func (s *imageService) ProcessImage(ctx context.Context, imageBytes []byte, operation string) (*entity.ProcessedImage, error) {
	if _, err := codec.ParseFormat(s.opts.OutputFormat); err != nil {
		return nil, err
	}
	img, err := codec.Decode(imageBytes)
	if err != nil {
		return nil, err
	}

	select {
	case s.slot <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for the worker pool: %w", ctx.Err())
	}
	defer func() { <-s.slot }()

	requestID := uuid.NewString()
	start := time.Now()
	log := logrus.WithFields(logrus.Fields{
		"request_id": requestID,
		"operation":  operation,
		"bands":      s.pool.Size(),
	})

	out, err := s.scatterGather(ctx, requestID, img, operation, log)
	if err != nil {
		log.Errorf("Request failed: %v", err)
		return nil, err
	}

	data, err := codec.Encode(out, s.opts.OutputFormat, s.opts.JPEGQuality)
	if err != nil {
		log.Errorf("Failed to encode result: %v", err)
		return nil, err
	}

	bounds := out.Bounds()
	log.WithFields(logrus.Fields{
		"width":    bounds.Dx(),
		"height":   bounds.Dy(),
		"duration": time.Since(start),
	}).Info("Request processed")

	return &entity.ProcessedImage{
		RequestID: requestID,
		Operation: operation,
		Format:    s.opts.OutputFormat,
		MimeType:  codec.MimeType(s.opts.OutputFormat),
		Width:     bounds.Dx(),
		Height:    bounds.Dy(),
		Channels:  entity.Channels(out),
		Data:      data,
	}, nil
}

func (s *imageService) scatterGather(ctx context.Context, requestID string, img image.Image, operation string, log *logrus.Entry) (image.Image, error) {
	bands, err := partition.Split(img, s.pool.Size())
	if err != nil {
		return nil, err
	}
	workers := s.pool.Workers()

	for i, h := range workers {
		task := entity.Task{RequestID: requestID, Operation: operation, Band: bands[i+1]}
		if err := s.dispatch(ctx, h, task); err != nil {
			return nil, err
		}
	}
	log.Debugf("Dispatched %d bands", len(workers))

	gctx, cancel := context.WithCancel(ctx)
	defer cancel()

	collected := make(chan gathered, len(workers))
	for i, h := range workers {
		go func(h pool.WorkerHandle, index int) {
			band, err := s.await(gctx, h, requestID, index)
			collected <- gathered{band: band, err: err}
		}(h, i+1)
	}

	processed := make([]entity.Band, len(bands))

	own := worker.Apply(s.processor, 0, entity.Task{RequestID: requestID, Operation: operation, Band: bands[0]})
	if own.Error != "" {
		return nil, &entity.WorkerFailedError{WorkerID: 0, RequestID: requestID, Reason: own.Error}
	}
	processed[0] = own.Band
	s.bandDone(0, len(bands))

	for range workers {
		g := <-collected
		if g.err != nil {
			return nil, g.err
		}
		processed[g.band.Index] = g.band
		s.bandDone(g.band.Index, len(bands))
	}

	return partition.Reassemble(processed)
}

func (s *imageService) dispatch(ctx context.Context, h pool.WorkerHandle, task entity.Task) error {
	sctx, cancel := context.WithTimeout(ctx, s.opts.WorkerTimeout)
	defer cancel()

	if err := h.Send(sctx, task); err != nil {
		if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			return &entity.WorkerTimeoutError{WorkerID: h.ID(), RequestID: task.RequestID, Timeout: s.opts.WorkerTimeout}
		}
		return fmt.Errorf("failed to send band %d to worker %d: %w", task.Band.Index, h.ID(), err)
	}
	return nil
}

// await blocks for the result of requestID from h, skipping results left
// over from earlier waves.
func (s *imageService) await(ctx context.Context, h pool.WorkerHandle, requestID string, index int) (entity.Band, error) {
	wctx, cancel := context.WithTimeout(ctx, s.opts.WorkerTimeout)
	defer cancel()

	for {
		res, err := h.Receive(wctx)
		if err != nil {
			if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
				return entity.Band{}, &entity.WorkerTimeoutError{WorkerID: h.ID(), RequestID: requestID, Timeout: s.opts.WorkerTimeout}
			}
			return entity.Band{}, fmt.Errorf("failed to receive band %d from worker %d: %w", index, h.ID(), err)
		}

		if res.RequestID != requestID {
			logrus.WithFields(logrus.Fields{
				"worker_id":  h.ID(),
				"request_id": res.RequestID,
			}).Warn("Discarding stale result")
			continue
		}
		if res.Error != "" {
			return entity.Band{}, &entity.WorkerFailedError{WorkerID: h.ID(), RequestID: requestID, Reason: res.Error}
		}
		if res.Band.Index != index {
			return entity.Band{}, fmt.Errorf("%w: worker %d returned band %d, expected %d", entity.ErrBandMismatch, h.ID(), res.Band.Index, index)
		}
		return res.Band, nil
	}
}

func (s *imageService) bandDone(index, total int) {
	if s.opts.OnBandDone != nil {
		s.opts.OnBandDone(index, total)
	}
}

func (s *imageService) Operations() []entity.OperationInfo {
	return s.processor.Operations()
}

func (s *imageService) PoolSize() int {
	return s.pool.Size()
}

func (s *imageService) Health(ctx context.Context) error {
	return s.pool.HealthCheck(ctx)
}

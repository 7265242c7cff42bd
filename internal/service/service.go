package service

import (
	"context"
	"time"

	"github.com/ds124wfegd/bandpool/internal/entity"
	"github.com/ds124wfegd/bandpool/internal/pkg/pool"
	"github.com/ds124wfegd/bandpool/internal/pkg/processor"
)

type ImageService interface {
	ProcessImage(ctx context.Context, imageBytes []byte, operation string) (*entity.ProcessedImage, error)
	Operations() []entity.OperationInfo
	PoolSize() int
	// Health reports whether the worker transport is reachable.
	Health(ctx context.Context) error
}

type Options struct {
	WorkerTimeout time.Duration
	OutputFormat  string
	JPEGQuality   int
	// OnBandDone, if set, is called once per band as it becomes available.
	OnBandDone func(index, total int)
}

const (
	defaultWorkerTimeout = 30 * time.Second
	defaultOutputFormat  = "png"
)

func NewImageService(pool *pool.Pool, processor processor.ImageProcessor, opts Options) ImageService {
	if opts.WorkerTimeout <= 0 {
		opts.WorkerTimeout = defaultWorkerTimeout
	}
	if opts.OutputFormat == "" {
		opts.OutputFormat = defaultOutputFormat
	}
	return &imageService{
		pool:      pool,
		processor: processor,
		opts:      opts,
		slot:      make(chan struct{}, 1),
	}
}

// launching the HTTP coordinator and remote band workers
package appServer

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/ds124wfegd/bandpool/config"
	"github.com/ds124wfegd/bandpool/internal/entity"
	"github.com/ds124wfegd/bandpool/internal/pkg/kafka"
	"github.com/ds124wfegd/bandpool/internal/pkg/pool"
	"github.com/ds124wfegd/bandpool/internal/pkg/processor"
	"github.com/ds124wfegd/bandpool/internal/pkg/rabbitMQ"
	"github.com/ds124wfegd/bandpool/internal/pkg/redis"
	"github.com/ds124wfegd/bandpool/internal/service"
	"github.com/ds124wfegd/bandpool/internal/transport"
	"github.com/ds124wfegd/bandpool/internal/worker"
	"github.com/gin-gonic/gin"

	"github.com/sirupsen/logrus"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	httpServer *http.Server
}

func (s *Server) Run(cfg *config.Config, handler http.Handler) error {
	s.httpServer = &http.Server{
		Addr:              cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:           handler,
		MaxHeaderBytes:    1 << 20,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       cfg.Server.Idle_timeout,
		ReadHeaderTimeout: 3 * time.Second,
		TLSConfig:         &tls.Config{MinVersion: tls.VersionTLS12},           // ban on outdate TLS certificate
		ErrorLog:          log.New(os.Stderr, "SERVER ERROR: ", log.LstdFlags), // os.Stderr can be replaced with ElsasticSearch in the feature
	}
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ConfigureLogging applies the logging section to the global logrus logger.
func ConfigureLogging(cfg config.LoggingConfig) error {
	switch cfg.Format {
	case "", "json":
		logrus.SetFormatter(new(logrus.JSONFormatter))
	case "text":
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("unknown logging.format %q", cfg.Format)
	}

	if cfg.Level == "" {
		return nil
	}
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return err
	}
	logrus.SetLevel(level)
	return nil
}

// NewPool builds the coordinator's worker pool over the configured
// transport. The local transport runs its workers in-process.
func NewPool(ctx context.Context, cfg *config.Config, imgProcessor processor.ImageProcessor) (*pool.Pool, error) {
	switch cfg.Transport.Kind {
	case "", "local":
		return pool.NewLocal(cfg.Pool.Size, imgProcessor)
	case "kafka":
		return kafka.NewPool(ctx, cfg.Kafka, cfg.Pool.Size)
	case "redis":
		return redis.NewPool(ctx, cfg.Redis, cfg.Pool.Size)
	case "rabbitmq":
		return rabbitMQ.NewPool(cfg.Rabbit, cfg.Pool.Size)
	}
	return nil, fmt.Errorf("%w: %q", entity.ErrUnknownTransport, cfg.Transport.Kind)
}

// NewEndpoint connects remote worker id over the configured transport.
func NewEndpoint(ctx context.Context, cfg *config.Config, id int) (worker.Endpoint, error) {
	switch cfg.Transport.Kind {
	case "kafka":
		return kafka.NewEndpoint(ctx, cfg.Kafka, id)
	case "redis":
		return redis.NewEndpoint(ctx, cfg.Redis, id)
	case "rabbitmq":
		return rabbitMQ.NewEndpoint(cfg.Rabbit, id)
	case "", "local":
		return nil, fmt.Errorf("%w: local workers run inside the coordinator", entity.ErrUnknownTransport)
	}
	return nil, fmt.Errorf("%w: %q", entity.ErrUnknownTransport, cfg.Transport.Kind)
}

func ServiceOptions(cfg *config.Config) service.Options {
	return service.Options{
		WorkerTimeout: cfg.Pool.WorkerTimeout,
		OutputFormat:  cfg.Pool.OutputFormat,
		JPEGQuality:   cfg.Pool.JPEGQuality,
	}
}

// NewServer runs the HTTP coordinator until ctx is cancelled.
func NewServer(ctx context.Context, cfg *config.Config) error {
	imgProcessor := processor.NewImageProcessor()

	workerPool, err := NewPool(ctx, cfg, imgProcessor)
	if err != nil {
		return fmt.Errorf("failed to build worker pool: %w", err)
	}
	defer func() {
		if err := workerPool.Close(); err != nil {
			logrus.Errorf("error occured on closing worker pool: %s", err.Error())
		}
	}()

	imgService := service.NewImageService(workerPool, imgProcessor, ServiceOptions(cfg))
	imgHandler := transport.NewImageHandler(imgService, cfg.Server.MaxUploadMB)

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	srv := new(Server)
	serveErr := make(chan error, 1)
	go func() {
		if err := srv.Run(cfg, transport.InitRoutes(imgHandler, cfg.Server.Timeout)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	logrus.WithFields(logrus.Fields{
		"port":      cfg.Server.Port,
		"pool_size": workerPool.Size(),
		"transport": cfg.Transport.Kind,
	}).Print("App Started")

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("error occured while running http server: %w", err)
		}
	}

	logrus.Print("App Shutting Down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("error occured on server shutting down: %s", err.Error())
	}
	return nil
}

// RunWorker serves tasks for remote worker id until ctx is cancelled.
func RunWorker(ctx context.Context, cfg *config.Config, id int) error {
	if id < 1 || id >= cfg.Pool.Size {
		return fmt.Errorf("worker id must be in [1, %d), got %d", cfg.Pool.Size, id)
	}

	endpoint, err := NewEndpoint(ctx, cfg, id)
	if err != nil {
		return err
	}
	defer endpoint.Close()

	logrus.WithFields(logrus.Fields{
		"worker_id": id,
		"transport": cfg.Transport.Kind,
	}).Print("Worker Started")

	worker.Run(ctx, id, endpoint, processor.NewImageProcessor())
	return nil
}

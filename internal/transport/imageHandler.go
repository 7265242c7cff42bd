package transport

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/ds124wfegd/bandpool/internal/entity"
	"github.com/ds124wfegd/bandpool/internal/transport/middleware"
	"github.com/gin-gonic/gin"
)

func (h *ImageHandler) ProcessImage(c *gin.Context) {
	file, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, entity.ErrorResponse{Error: "No image file provided"})
		return
	}
	if h.maxUploadBytes > 0 && file.Size > h.maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, entity.ErrorResponse{Error: "Image is too large"})
		return
	}

	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, entity.ErrorResponse{Error: err.Error()})
		return
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		c.JSON(http.StatusBadRequest, entity.ErrorResponse{Error: err.Error()})
		return
	}

	// unknown names are processed as identity, a missing field is rejected
	operation, ok := c.GetPostForm("operation")
	if !ok {
		c.JSON(http.StatusBadRequest, entity.ErrorResponse{Error: "No operation provided"})
		return
	}

	result, err := h.service.ProcessImage(c.Request.Context(), data, operation)
	if err != nil {
		resp := entity.ErrorResponse{Error: err.Error()}
		var timeoutErr *entity.WorkerTimeoutError
		if errors.As(err, &timeoutErr) {
			resp.RequestID = timeoutErr.RequestID
		}
		var failedErr *entity.WorkerFailedError
		if errors.As(err, &failedErr) {
			resp.RequestID = failedErr.RequestID
		}
		c.JSON(statusFor(err), resp)
		return
	}

	c.Header(middleware.RequestIDHeader, result.RequestID)
	c.Data(http.StatusOK, result.MimeType, result.Data)
}

func (h *ImageHandler) ListOperations(c *gin.Context) {
	c.JSON(http.StatusOK, entity.OperationsResponse{
		Operations: h.service.Operations(),
		PoolSize:   h.service.PoolSize(),
	})
}

func (h *ImageHandler) Health(c *gin.Context) {
	if err := h.service.Health(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unavailable",
			"error":  err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"service":   "bandpool",
		"pool_size": h.service.PoolSize(),
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, entity.ErrDecode):
		return http.StatusBadRequest
	case errors.Is(err, entity.ErrWorkerTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, entity.ErrWorkerFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

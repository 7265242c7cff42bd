package transport

import (
	"github.com/ds124wfegd/bandpool/internal/service"
)

type ImageHandler struct {
	service        service.ImageService
	maxUploadBytes int64
}

// NewImageHandler serves service; uploads above maxUploadMB are refused
// unless it is zero.
func NewImageHandler(service service.ImageService, maxUploadMB int) *ImageHandler {
	return &ImageHandler{
		service:        service,
		maxUploadBytes: int64(maxUploadMB) << 20,
	}
}

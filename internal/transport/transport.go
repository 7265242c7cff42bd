package transport

import (
	"time"

	"github.com/ds124wfegd/bandpool/internal/transport/middleware"
	"github.com/gin-gonic/gin"
)

// InitRoutes wires the HTTP API. requestTimeout bounds every request
// context; zero disables it.
func InitRoutes(imgHandler *ImageHandler, requestTimeout time.Duration) *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.CORS())
	router.Use(middleware.Logger())
	router.Use(middleware.Timeout(requestTimeout))

	router.POST("/process_image", imgHandler.ProcessImage)
	router.GET("/operations", imgHandler.ListOperations)

	// Health check
	router.GET("/health", imgHandler.Health)

	return router
}

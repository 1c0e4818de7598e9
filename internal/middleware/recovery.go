package middleware

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"callmesh-backend/pkg/logger"
	"callmesh-backend/pkg/response"
)

// Recovery recovers from panics and returns 500 error
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error("Panic recovered in HTTP handler",
					zap.String("path", c.Request.URL.Path),
					zap.Any("panic", err))
				response.InternalError(c, "Internal server error")
				c.Abort()
			}
		}()
		c.Next()
	}
}

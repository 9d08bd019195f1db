package middlewares

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORS allows any origin to read the published files, web players fetch them cross-origin
func CORS() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowHeaders:     []string{"Origin", "Content-Type", "If-None-Match", "Cache-Control", "X-Bundle-Client-Version", "X-Bundle-App-Version", "X-Bundle-Device-Id"},
		ExposeHeaders:    []string{"ETag", "Content-Length"},
		AllowMethods:     []string{"GET", "HEAD", "OPTIONS"},
		AllowCredentials: false,
	})
}

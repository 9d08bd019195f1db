package server

import (
	"net/http"

	"github.com/bundlesync/bundlesync/internal/server/blob"
	"github.com/bundlesync/bundlesync/internal/server/handlers/api"
	"github.com/bundlesync/bundlesync/internal/server/handlers/dist"
	"github.com/bundlesync/bundlesync/internal/server/middlewares"
	"github.com/bundlesync/bundlesync/internal/version"
	"github.com/gin-gonic/gin"
)

type RouteConfig struct {
	// RateLimit per client IP, e.g. `100-S`. Empty disables limiting.
	RateLimit string
	// TLS enables HSTS and the https redirect
	TLS bool
}

func SetupRoutes(backend blob.Backend, cfg *RouteConfig) (http.Handler, error) {
	r := gin.New()

	distH := dist.New(backend)

	r.Use(middlewares.Logger())
	r.Use(gin.Recovery())
	r.Use(middlewares.Secure(cfg.TLS))
	r.Use(middlewares.CORS())
	if cfg.RateLimit != "" {
		limit, err := middlewares.RateLimiter(cfg.RateLimit)
		if err != nil {
			return nil, err
		}
		r.Use(limit)
	}

	r.GET("/", IndexHandler)
	r.GET("/healthz", HealthHandler)

	v1 := r.Group("/api/v1")
	v1.Use(middlewares.GZIP())
	{
		v1.GET("/:platform/versions", distH.Versions)
	}

	// published platform roots, `/{platform}/version.txt` etc.
	r.GET("/:platform/*file", distH.File)
	r.HEAD("/:platform/*file", distH.File)

	r.NoRoute(func(c *gin.Context) {
		c.PureJSON(http.StatusNotFound, api.APIError{
			Code:    api.CodeNotFound,
			Message: "not found",
		})
	})

	r.HandleMethodNotAllowed = true
	r.NoMethod(func(c *gin.Context) {
		c.PureJSON(http.StatusMethodNotAllowed, api.APIError{
			Code:    api.CodeInvalidRequest,
			Message: "method not allowed",
		})
	})

	return r.Handler(), nil
}

func IndexHandler(ctx *gin.Context) {
	ctx.String(http.StatusOK, version.DetailedWithApp())
}

func HealthHandler(ctx *gin.Context) {
	ctx.PureJSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

func init() {
	gin.SetMode(gin.ReleaseMode)
}

package client

import (
	"net/http"

	"github.com/bundlesync/bundlesync/internal/client/handlers"
	"github.com/bundlesync/bundlesync/internal/client/middleware"
	"github.com/bundlesync/bundlesync/internal/version"
	"github.com/gin-gonic/gin"
)

type RouteConfig struct {
	Auth middleware.TokenAuthConfig
	// RateLimit in limiter notation, empty disables it
	RateLimit string
}

func SetupRoutes(client handlers.Client, routeConfig *RouteConfig) (http.Handler, error) {
	r := gin.New()

	statusH := handlers.NewStatusHandler(client)
	syncH := handlers.NewSyncHandler(client)
	resolveH := handlers.NewResolveHandler(client)
	historyH := handlers.NewHistoryHandler(client)

	r.Use(gin.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.CORS())
	r.Use(middleware.Gzip())
	if routeConfig.RateLimit != "" {
		limit, err := middleware.RateLimiter(routeConfig.RateLimit)
		if err != nil {
			return nil, err
		}
		r.Use(limit)
	}

	r.GET("/", IndexHandler)
	r.GET("/healthz", func(c *gin.Context) {
		c.PureJSON(http.StatusOK, handlers.ControlPlaneResponse{Code: handlers.CodeOk})
	})

	v1 := r.Group("/v1")
	v1.Use(middleware.TokenAuth(routeConfig.Auth))
	{
		v1.GET("/status", statusH.Status)
		v1.POST("/sync", syncH.Now)
		v1.GET("/resolve", resolveH.Resolve)
		v1.GET("/catalog", resolveH.Catalog)
		v1.GET("/history", historyH.History)
	}

	r.NoRoute(func(c *gin.Context) {
		c.PureJSON(http.StatusNotFound, handlers.ControlPlaneError{
			ErrorCode: handlers.ErrCodeNotFound,
			Error:     "not found",
		})
	})

	r.NoMethod(func(c *gin.Context) {
		c.PureJSON(http.StatusMethodNotAllowed, handlers.ControlPlaneError{
			ErrorCode: handlers.ErrCodeBadRequest,
			Error:     "method not allowed",
		})
	})

	return r.Handler(), nil
}

func init() {
	gin.SetMode(gin.ReleaseMode)
}

func IndexHandler(c *gin.Context) {
	c.PureJSON(http.StatusOK, version.Detailed())
}

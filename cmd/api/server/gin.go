package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"clean-user-service/cmd/api/di"
	ginrouter "clean-user-service/internal/adapter/gin/router"
)

// SetupGinServer creates and configures the Gin REST API server
func SetupGinServer(c *di.Container, addr string) *http.Server {
	if c.Config.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	checks := map[string]ginrouter.HealthCheck{
		"database": c.PingDatabase,
	}
	if c.RedisClient != nil {
		checks["redis"] = c.RedisClient.Healthy
	}

	router := ginrouter.SetupRouter(ginrouter.Options{
		Users:          c.GinHandler,
		Log:            c.Logger,
		Limiter:        c.HTTPLimiter,
		Metrics:        c.Metrics,
		Checks:         checks,
		SwaggerEnabled: c.Config.App.SwaggerEnabled,
		ServiceName:    c.Config.Logger.ServiceName,
		TrustedProxies: c.Config.App.TrustedProxies,
	})

	c.Logger.Info("Gin REST API configured",
		zap.String("address", addr),
		zap.Bool("swagger", c.Config.App.SwaggerEnabled),
		zap.Bool("rate_limit", c.HTTPLimiter != nil),
	)

	return &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 2 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

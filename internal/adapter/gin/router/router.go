package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"

	"clean-user-service/api/swagger"
	"clean-user-service/internal/adapter/gin/handler"
	"clean-user-service/internal/adapter/gin/middleware"
	"clean-user-service/internal/adapter/ratelimit"
	"clean-user-service/pkg/metrics"
)

const healthTimeout = 2 * time.Second

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Options carries the collaborators of the HTTP router. Only Users and Log are required.
type Options struct {
	Users          *handler.UserHandler
	Log            *zap.Logger
	Limiter        ratelimit.Limiter
	Metrics        *metrics.Metrics
	Checks         map[string]HealthCheck
	SwaggerEnabled bool
	ServiceName    string
	// TrustedProxies are the IPs or CIDRs allowed to set X-Forwarded-For
	// and X-Real-IP. Empty means the socket peer is the client.
	TrustedProxies []string
}

// SetupRouter configures and returns a Gin router with all routes and middleware
func SetupRouter(opts Options) *gin.Engine {
	router := gin.New()
	if err := router.SetTrustedProxies(opts.TrustedProxies); err != nil {
		opts.Log.Warn("invalid trusted proxies, trusting none", zap.Strings("proxies", opts.TrustedProxies), zap.Error(err))
		_ = router.SetTrustedProxies(nil)
	}

	// Logger sits outside Recovery so recovered panics are logged and counted as 500
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(opts.Log, opts.Metrics))
	router.Use(middleware.Recovery(opts.Log))

	router.GET("/health", health(opts.ServiceName, opts.Checks))
	if opts.Metrics != nil {
		router.GET("/metrics", gin.WrapH(opts.Metrics.Handler()))
	}
	if opts.SwaggerEnabled {
		router.GET("/swagger/*any", swaggerUI())
	}

	users := router.Group("/users")
	users.Use(middleware.RateLimiter(opts.Limiter, opts.Log))
	{
		users.POST("", opts.Users.CreateUser)
		users.GET("", opts.Users.ListUsers)
		users.GET("/:id", opts.Users.GetUser)
		users.PUT("/:id", opts.Users.UpdateUser)
		users.DELETE("/:id", opts.Users.DeleteUser)
	}

	return router
}

func health(service string, checks map[string]HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
		defer cancel()

		status := http.StatusOK
		deps := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				deps[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			deps[name] = "ok"
		}

		state := "healthy"
		if status != http.StatusOK {
			state = "unhealthy"
		}
		c.JSON(status, gin.H{
			"status":       state,
			"service":      service,
			"dependencies": deps,
		})
	}
}

// swaggerUI serves the embedded OpenAPI document at /swagger/doc.json and the UI everywhere else.
func swaggerUI() gin.HandlerFunc {
	ui := gin.WrapH(httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))
	return func(c *gin.Context) {
		if c.Param("any") == "/doc.json" {
			c.Data(http.StatusOK, "application/json; charset=utf-8", swagger.UserServiceJSON)
			return
		}
		ui(c)
	}
}

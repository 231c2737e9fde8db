package middleware

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wms-platform/fulfillment-service/pkg/errors"
	"github.com/wms-platform/fulfillment-service/pkg/metrics"
)

// Config holds middleware configuration
type Config struct {
	Logger         *slog.Logger
	ServiceName    string
	Metrics        *metrics.Metrics
	EnableTracing  bool
	TrustedProxies []string
}

// DefaultConfig returns a default middleware configuration
func DefaultConfig(serviceName string, logger *slog.Logger) *Config {
	return &Config{
		Logger:      logger,
		ServiceName: serviceName,
	}
}

// Setup applies the standard middleware chain to a Gin router
func Setup(router *gin.Engine, config *Config) {
	InitValidator()

	if len(config.TrustedProxies) > 0 {
		_ = router.SetTrustedProxies(config.TrustedProxies)
	}

	router.Use(Recovery(config.Logger))
	router.Use(RequestID())
	router.Use(CorrelationID())
	if config.EnableTracing {
		router.Use(Tracing(DefaultTracingConfig(config.ServiceName)))
	}
	if config.Metrics != nil {
		router.Use(Metrics(config.Metrics))
	}
	router.Use(Logger(DefaultLoggerConfig(config.Logger)))
	router.Use(ErrorHandler(config.Logger))

	router.NoRoute(NoRoute())
	router.HandleMethodNotAllowed = true
	router.NoMethod(NoMethod())
}

// HealthCheck creates a liveness handler
func HealthCheck(serviceName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": serviceName,
		})
	}
}

// ReadinessCheck creates a readiness handler with a custom check function
func ReadinessCheck(serviceName string, checkFn func(c *gin.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := checkFn(c); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "not ready",
				"service": serviceName,
				"error":   err.Error(),
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "ready",
			"service": serviceName,
		})
	}
}

// NoRoute handles 404 errors with the standard error format
func NoRoute() gin.HandlerFunc {
	return func(c *gin.Context) {
		appErr := errors.NewAppError("ROUTE_NOT_FOUND", "The requested resource was not found", http.StatusNotFound)
		c.JSON(http.StatusNotFound, newAPIErrorResponse(c, appErr))
	}
}

// NoMethod handles 405 errors with the standard error format
func NoMethod() gin.HandlerFunc {
	return func(c *gin.Context) {
		appErr := errors.NewAppError("METHOD_NOT_ALLOWED", "The request method is not supported for this resource", http.StatusMethodNotAllowed)
		c.JSON(http.StatusMethodNotAllowed, newAPIErrorResponse(c, appErr))
	}
}

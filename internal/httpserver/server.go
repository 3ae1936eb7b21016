package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/luiza-sangalli/segment/internal/auth"
	"github.com/luiza-sangalli/segment/internal/config"
	"github.com/luiza-sangalli/segment/internal/handlers"
	"github.com/luiza-sangalli/segment/internal/logging"
	"github.com/luiza-sangalli/segment/internal/pipeline"
)

// Pinger reports whether an external dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewRouter wires public endpoints and the webhook surface.
// Public: /, /health, /ready
// Webhook: /webhook/{segment,test,filters,recent,stats,sessions}
// ready may be nil when no archive is configured.
func NewRouter(cfg config.Config, svc *pipeline.Service, ready Pinger, log *logrus.Entry) *gin.Engine {
	gin.SetMode(cfg.GinMode)

	r := gin.New()
	r.Use(logging.GinMiddleware(log.WithField(logging.FieldComponent, "http")))
	r.Use(gin.Recovery())

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message":   "segment webhook is running",
			"status":    "healthy",
			"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	// Liveness: confirms the process is running.
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC().Format(time.RFC3339Nano)})
	})

	// Readiness: confirms the archive is reachable when one is configured.
	r.GET("/ready", func(c *gin.Context) {
		if ready != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
			defer cancel()

			if err := ready.Ping(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	webhook := r.Group("/webhook")
	handlerLog := log.WithField(logging.FieldComponent, "handlers")

	handlers.RegisterWebhookRoutes(webhook, svc, handlerLog)
	handlers.RegisterFilterRoutes(webhook, svc, auth.AdminKeyMiddleware(cfg.AdminAPIKey))
	handlers.RegisterQueryRoutes(webhook, svc)

	return r
}

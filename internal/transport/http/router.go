package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/flowgrid-go/pkg/apperr"
	"github.com/flowgrid-go/pkg/logger"
	"github.com/flowgrid-go/pkg/ratelimit"
)

const contextUserKey = "userID"

// NewRouter assembles the full route table. Webhook ingress is rate limited
// per path; the API group requires a caller identity.
func NewRouter(h *Handlers, webhookLimiter *ratelimit.KeyedLimiter, log logger.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(corsMiddleware())
	r.Use(loggingMiddleware(log))

	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/webhook/:path", h.VerifyWebhook)
	r.POST("/webhook/:path", ratelimit.Middleware(webhookLimiter, "path"), h.ReceiveWebhook)

	r.GET("/ws", identityMiddleware(), h.ServeWS)

	v1 := r.Group("/api/v1", identityMiddleware())
	{
		v1.POST("/workflows", h.CreateWorkflow)
		v1.GET("/workflows", h.ListWorkflows)
		v1.GET("/workflows/:id", h.GetWorkflow)
		v1.POST("/workflows/:id/activate", h.ActivateWorkflow)
		v1.POST("/workflows/:id/terminate", h.TerminateWorkflow)
		v1.POST("/workflows/:id/interact", h.Interact)
	}

	return r
}

// identityMiddleware resolves the caller. Authentication proper lives at the
// gateway; by the time traffic reaches the engine the user id header is
// trusted.
func identityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-User-ID")
		if id == "" {
			id = c.Query("userId")
		}
		if id == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				apperr.ErrResult(apperr.Validation("caller identity is required", "http.identity")))
			return
		}
		c.Set(contextUserKey, id)
		c.Next()
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, Authorization, X-User-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, DELETE")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func loggingMiddleware(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		log.Info("http request",
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"clientIp", c.ClientIP(),
		)
	}
}

package router

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/psds-microservice/voice-support/api"
	"github.com/psds-microservice/voice-support/internal/auth"
	"github.com/psds-microservice/voice-support/internal/handler"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

const (
	PathHealth  = "/health"
	PathReady   = "/ready"
	PathMetrics = "/metrics"
	PathSwagger = "/swagger"
)

type Deps struct {
	Voice   *handler.VoiceHandler
	Tickets *handler.TicketHandler
	FAQ     *handler.FAQHandler
	Auth    *handler.AuthHandler
	Stream  *handler.StreamHandler
	Session *auth.Manager
	// Ready: проверка базы для /ready; nil, всегда готов.
	Ready   handler.Pinger
	Metrics http.Handler
	Log     *zap.Logger
}

func New(d Deps) http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), requestLog(d.Log))
	r.GET(PathHealth, handler.Health)
	r.GET(PathReady, handler.Ready(d.Ready))
	if d.Metrics != nil {
		r.GET(PathMetrics, gin.WrapH(d.Metrics))
	}
	r.GET(PathSwagger, func(c *gin.Context) { c.Redirect(http.StatusFound, PathSwagger+"/") })
	r.GET(PathSwagger+"/*any", func(c *gin.Context) {
		if strings.TrimPrefix(c.Param("any"), "/") == "openapi.json" {
			c.Data(http.StatusOK, "application/json", api.OpenAPISpec)
			return
		}
		if strings.TrimPrefix(c.Param("any"), "/") == "" {
			c.Request.URL.Path = PathSwagger + "/index.html"
			c.Request.RequestURI = PathSwagger + "/index.html"
		}
		ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL(PathSwagger+"/openapi.json"))(c)
	})

	v1 := r.Group("/api/v1")
	v1.Use(d.Session.Session())
	{
		v1.POST("/voice", d.Voice.Ask)

		v1.GET("/faq", d.FAQ.Search)
		v1.POST("/faq", auth.RequireAdmin(), d.FAQ.Create)

		v1.POST("/tickets", d.Tickets.Create)
		v1.GET("/tickets", d.Tickets.List)
		v1.GET("/tickets/:id", d.Tickets.Get)
		v1.PATCH("/tickets/:id", auth.RequireAdmin(), d.Tickets.Update)
		v1.POST("/tickets/:id/resolve", auth.RequireAdmin(), d.Tickets.Resolve)
		v1.GET("/tickets/:id/messages", d.Tickets.Messages)
		v1.POST("/tickets/:id/messages", d.Tickets.PostMessage)

		v1.POST("/auth/login", d.Auth.Login)
		v1.GET("/auth/check", d.Auth.Check)
		v1.POST("/auth/logout", d.Auth.Logout)

		v1.GET("/admin/stream", auth.RequireAdmin(), d.Stream.Serve)
	}

	return r
}

func requestLog(log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(c *gin.Context) {
		c.Next()
		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", status),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		switch {
		case status >= http.StatusInternalServerError:
			log.Error("http: request", fields...)
		case status >= http.StatusBadRequest:
			log.Info("http: request", fields...)
		default:
			log.Debug("http: request", fields...)
		}
	}
}

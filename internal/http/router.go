package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/neurobridge-cdg/internal/http/handlers"
	httpMW "github.com/yungbote/neurobridge-cdg/internal/http/middleware"
	"github.com/yungbote/neurobridge-cdg/internal/observability"
	"github.com/yungbote/neurobridge-cdg/internal/platform/logger"
)

type RouterConfig struct {
	Log         *logger.Logger
	Metrics     *observability.Metrics
	ServiceName string
	CORSOrigins []string

	HealthHandler *httpH.HealthHandler
	GraphHandler  *httpH.GraphHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "cdgd"
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(serviceName))
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.CORS(cfg.CORSOrigins))
	r.Use(httpMW.Metrics(cfg.Metrics))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	api := r.Group("/api")
	{
		// Graphs
		if cfg.GraphHandler != nil {
			api.GET("/graphs/:id", cfg.GraphHandler.GetGraph)
			api.POST("/graphs/:id/patches", cfg.GraphHandler.ApplyPatch)
			api.GET("/graphs/:id/patches", cfg.GraphHandler.ListPatches)
		}
	}

	return r
}

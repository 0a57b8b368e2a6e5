package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/ogurasousui/hr-api/internal/platform/metrics"
	"go.uber.org/zap"
)

// Registrar は自身のルートを登録するハンドラーです。
type Registrar interface {
	Register(r gin.IRouter)
}

// HealthCheck は依存先の疎通を確認します。
type HealthCheck func(ctx context.Context) error

// Config はルーター構築時の依存です。
type Config struct {
	Logger         *zap.Logger
	AllowedOrigins []string
	Metrics        *metrics.HTTPMetrics
	MetricsPath    string
	Health         HealthCheck
	Handlers       []Registrar
}

// New はミドルウェアとルートを設定した gin.Engine を返します。
func New(cfg Config) *gin.Engine {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("http")

	r := gin.New()
	r.Use(RequestContext(log), Recovery(log), AccessLog(log))

	if len(cfg.AllowedOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:  cfg.AllowedOrigins,
			AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
			AllowHeaders:  []string{"Content-Type", RequestIDHeader},
			ExposeHeaders: []string{RequestIDHeader},
			MaxAge:        12 * time.Hour,
		}))
	}

	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.GET(path, gin.WrapH(cfg.Metrics.Handler()))
	}

	r.GET("/healthz", healthz(cfg.Health))

	for _, h := range cfg.Handlers {
		h.Register(r)
	}
	return r
}

func healthz(check HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		if check != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := check(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stitchflow/labelrelay/internal/api/handlers"
	"github.com/stitchflow/labelrelay/internal/api/middleware"
	"github.com/stitchflow/labelrelay/internal/label"
	"github.com/stitchflow/labelrelay/internal/store"
	"github.com/stitchflow/labelrelay/internal/telemetry"
)

// RouterConfig carries the collaborators the HTTP surface needs.
type RouterConfig struct {
	Store     store.JobStore
	Registry  store.PrinterRegistry
	Encoder   label.Encoder
	Logger    *slog.Logger
	Signature *middleware.SignatureMiddleware
	Limiter   *middleware.RateLimiter
}

// NewRouter assembles the gin engine. Health and metrics stay outside the
// security gate; everything else is rate limited and signature checked.
func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(telemetry.Handler()))

	guarded := r.Group("/")
	guarded.Use(cfg.Limiter.Middleware())
	guarded.Use(cfg.Signature.RequireSignature())

	jobs := handlers.NewJobHandler(cfg.Store, cfg.Registry, cfg.Encoder, cfg.Logger)
	jobs.RegisterRoutes(guarded)

	printers := handlers.NewPrinterHandler(cfg.Registry, cfg.Store, cfg.Encoder, cfg.Logger)
	printers.RegisterRoutes(guarded)

	return r
}

package api

import (
	"github.com/gin-gonic/gin"

	"github.com/drewrad8/strategos/pkg/breaker"
	"github.com/drewrad8/strategos/pkg/registry"
)

// Config bundles the transport-level settings named in spec.md §6's
// environment table: CORS policy and the optional Bearer-auth secret.
type Config struct {
	CORSOrigins []string
	APIKey      string
}

// RouterConfig wires the registry the handlers act against plus the
// transport Config. Grounded on yungbote-neurobridge-backend's
// server.RouterConfig (one field per handler, explicit wiring over
// a DI container).
type RouterConfig struct {
	Config  Config
	Workers *WorkerHandler
	Checkpoints *CheckpointHandler
	Stream  *StreamHandler
}

// NewRouter builds the gin engine implementing spec.md §6's entire
// operation table.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestIDMiddleware())
	router.Use(MetricsMiddleware())
	router.Use(CORSMiddleware(cfg.Config))
	router.Use(ErrorMiddleware())

	router.GET("/health", HealthHandler)

	protected := router.Group("/")
	protected.Use(AuthMiddleware(cfg.Config))

	protected.GET("/events", cfg.Stream.Stream)

	protected.GET("/checkpoints", cfg.Checkpoints.List)

	w := cfg.Workers
	workers := protected.Group("/workers")
	{
		workers.POST("", w.Spawn)
		workers.GET("", w.List)
		workers.GET("/templates", w.Templates)
		workers.POST("/spawn-from-template", w.SpawnFromTemplate)
		workers.GET("/:id", w.Get)
		workers.PATCH("/:id", w.Patch)
		workers.DELETE("/:id", w.Kill)
		workers.POST("/:id/input", w.SendInput)
		workers.POST("/:id/correction", w.Correct)
		workers.POST("/:id/settings", w.Settings)
		workers.POST("/:id/complete", w.Complete)
		workers.POST("/:id/dismiss", w.Dismiss)
		workers.GET("/:id/output", w.Output)
		workers.GET("/:id/history", w.History)
		workers.GET("/:id/children", w.Children)
		workers.GET("/:id/siblings", w.Siblings)
		workers.GET("/:id/dependencies", w.Dependencies)
	}

	return router
}

// NewDefaultRouter constructs the standard handler set from a single
// *registry.Registry, the common case for cmd/strategosd. breakers may
// be nil, in which case correction sessions run unprotected by a
// circuit breaker.
func NewDefaultRouter(reg *registry.Registry, breakers *breaker.Registry, cfg Config) *gin.Engine {
	return NewRouter(RouterConfig{
		Config:      cfg,
		Workers:     NewWorkerHandler(reg, breakers),
		Checkpoints: NewCheckpointHandler(reg),
		Stream:      NewStreamHandler(reg),
	})
}

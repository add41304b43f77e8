package router

import (
	"net/http"

	"chat-relay/backend/internal/api"
	"chat-relay/backend/internal/ws"
	"chat-relay/backend/pkg/config"
	"chat-relay/backend/pkg/errors"
	"chat-relay/backend/pkg/logger"
	"chat-relay/backend/pkg/middleware"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// Dependencies are the handlers and collaborators the routes are built from
type Dependencies struct {
	Config    *config.Config
	Logger    *logger.Logger
	WSHandler *ws.Handler
	Health    api.HealthChecker
	Messages  api.MessageReader
	// Metrics serves /metrics; nil leaves the route unregistered
	Metrics http.Handler
}

// Router is the main router for the application
type Router struct {
	Engine *gin.Engine
	Logger *logger.Logger
	Config *config.Config

	deps        Dependencies
	rateLimiter *middleware.RateLimiter
}

// unlimitedPaths are probes and scrapes; limiting them would hide outages
var unlimitedPaths = map[string]bool{
	"/health":     true,
	"/api/health": true,
	"/metrics":    true,
}

// New creates the engine and its middleware stack
func New(deps Dependencies) *Router {
	cfg := deps.Config
	if cfg == nil {
		cfg = config.Get()
	}
	log := deps.Logger
	if log == nil {
		log = logger.GetGlobal()
	}

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	// Logger first so every later middleware can use the request logger.
	engine.Use(logger.Middleware(log))
	engine.Use(errors.ErrorHandler())
	engine.Use(errors.RecoveryWithLogger())

	rateLimiter := middleware.NewRateLimiter(log, middleware.RateLimiterOptions{
		Limit: rate.Limit(cfg.Security.RateLimit),
		Burst: cfg.Security.RateLimitBurst,
		Skip: func(c *gin.Context) bool {
			return unlimitedPaths[c.Request.URL.Path]
		},
	})
	engine.Use(rateLimiter.Middleware())
	engine.Use(middleware.CORS(cfg.Security.AllowedOrigins))

	return &Router{
		Engine:      engine,
		Logger:      log,
		Config:      cfg,
		deps:        deps,
		rateLimiter: rateLimiter,
	}
}

// SetupRoutes registers all application routes
func (r *Router) SetupRoutes() {
	if r.Config.Observability.OpenAPIValidate {
		r.AddOpenAPIValidation()
	}

	r.setupHealthRoutes()

	if r.deps.Metrics != nil {
		r.Engine.GET("/metrics", gin.WrapH(r.deps.Metrics))
	}

	v1 := r.Engine.Group("/api/v1")
	if r.deps.Messages != nil {
		api.NewMessageController(r.deps.Messages).RegisterRoutes(v1)
	}

	if r.deps.WSHandler != nil {
		r.Engine.GET("/ws", r.deps.WSHandler.ServeWS)
	}
}

// Close releases background resources held by the middleware
func (r *Router) Close() {
	r.rateLimiter.Close()
}

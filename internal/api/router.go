package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/initiative-tracker/internal/config"
	"github.com/wfunc/initiative-tracker/internal/errors"
	"github.com/wfunc/initiative-tracker/internal/middleware"
	"github.com/wfunc/initiative-tracker/internal/service"
	ws "github.com/wfunc/initiative-tracker/internal/websocket"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Router HTTP surface of the tracker
type Router struct {
	engine   *gin.Engine
	db       *gorm.DB
	services *service.Services
	hub      *ws.Hub
	cfg      *config.Config
	limiter  *middleware.RateLimiter
	log      *zap.Logger

	authHandler       *AuthHandler
	campaignHandler   *CampaignHandler
	initiativeHandler *InitiativeHandler
	wsHandler         *WebSocketHandler
	authMiddleware    *middleware.AuthMiddleware
}

// NewRouter builds the engine. A nil hub disables the push channel.
func NewRouter(db *gorm.DB, services *service.Services, hub *ws.Hub, cfg *config.Config, log *zap.Logger) *Router {
	gin.SetMode(ginMode(cfg.Server.Mode))
	engine := gin.New()
	engine.Use(middleware.RequestID(), middleware.Recovery(), middleware.AccessLog())

	r := &Router{
		engine:            engine,
		db:                db,
		services:          services,
		hub:               hub,
		cfg:               cfg,
		log:               log,
		authHandler:       NewAuthHandler(services.Auth, services.User),
		campaignHandler:   NewCampaignHandler(services.Campaign, services.Character),
		initiativeHandler: NewInitiativeHandler(services.Initiative),
		authMiddleware:    middleware.NewAuthMiddleware(services.Auth),
	}
	if cfg.Security.RateLimit.Enabled {
		r.limiter = middleware.NewRateLimiter(cfg.Security.RateLimit.RequestsPerMinute, cfg.Security.RateLimit.Burst)
	}
	if hub != nil {
		services.Initiative.SetNotifier(hub)
		r.wsHandler = NewWebSocketHandler(hub, services.Campaign, cfg.WebSocket, cfg.Security.CSRF.TrustedOrigins, log.Named("websocket"))
	}

	r.setupRoutes()
	return r
}

func (r *Router) setupRoutes() {
	r.engine.GET("/health", r.healthCheck)
	registerOpenAPIRoutes(r.engine)
	registerSwaggerRoutes(r.engine)

	v1 := r.engine.Group("/api/v1")
	v1.Use(middleware.CSRF(r.cfg.Security.CSRF))
	{
		v1.GET("/csrf", r.authHandler.CSRFToken)

		auth := v1.Group("/auth")
		if r.limiter != nil {
			auth.Use(r.limiter.Middleware())
		}
		{
			auth.POST("/register", r.authHandler.Register)
			auth.POST("/login", r.authHandler.Login)
			auth.POST("/refresh", r.authHandler.RefreshToken)
		}

		authed := v1.Group("")
		authed.Use(r.authMiddleware.RequireAuth())
		{
			authed.GET("/me", r.authHandler.Me)
			authed.PUT("/me/password", r.authHandler.ChangePassword)

			authed.GET("/campaigns", r.campaignHandler.List)
			authed.POST("/campaigns", r.campaignHandler.Create)
			authed.POST("/campaigns/join", r.campaignHandler.Join)
			authed.GET("/campaigns/:id", r.campaignHandler.Get)
			authed.POST("/campaigns/:id/archive", r.campaignHandler.Archive)

			authed.GET("/campaigns/:id/characters", r.campaignHandler.ListCharacters)
			authed.POST("/campaigns/:id/characters", r.campaignHandler.CreateCharacter)
			authed.DELETE("/characters/:characterId", r.campaignHandler.DeleteCharacter)

			initiative := authed.Group("/campaigns/:id/initiative")
			{
				initiative.GET("", r.initiativeHandler.Status)
				initiative.GET("/sessions", r.initiativeHandler.History)
				initiative.POST("/start", r.initiativeHandler.Start)
				initiative.POST("/end", r.initiativeHandler.End)
				initiative.POST("/next", r.initiativeHandler.Next)
				initiative.DELETE("/entries/:entryId", r.initiativeHandler.RemoveEntry)
			}
			authed.POST("/initiative/sessions/:sessionId/entries", r.initiativeHandler.AddEntries)

			if r.wsHandler != nil {
				authed.GET(wsPath(r.cfg.WebSocket.Path), r.wsHandler.Subscribe)
			}
		}
	}

	r.engine.NoRoute(func(c *gin.Context) {
		middleware.Abort(c, errors.New(errors.ErrNotFound, "Endpoint not found."))
	})
}

// wsPath is the push route under /api/v1.
func wsPath(path string) string {
	if path == "" {
		return "/ws"
	}
	if !strings.HasPrefix(path, "/") {
		return "/" + path
	}
	return path
}

// ginMode maps server.mode onto the modes gin accepts.
func ginMode(mode string) string {
	switch mode {
	case "production", gin.ReleaseMode:
		return gin.ReleaseMode
	case gin.TestMode:
		return gin.TestMode
	default:
		return gin.DebugMode
	}
}

// healthCheck pings the database.
func (r *Router) healthCheck(c *gin.Context) {
	sqlDB, err := r.db.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		r.log.Warn("Health check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// Run starts background work owned by the router until ctx is done.
func (r *Router) Run(ctx context.Context) {
	if r.limiter != nil {
		go r.limiter.Run(ctx)
	}
}

// Handler returns the engine for an http.Server.
func (r *Router) Handler() http.Handler {
	return r.engine
}

// GetEngine returns the gin engine (tests).
func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}

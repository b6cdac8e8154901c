package app

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mx-space/notes/internal/middleware"
	"github.com/mx-space/notes/internal/modules/auth/auth"
	"github.com/mx-space/notes/internal/modules/note"
	"github.com/mx-space/notes/internal/modules/note/publiclink"
	"github.com/mx-space/notes/internal/modules/note/share"
	"github.com/mx-space/notes/internal/modules/note/tag"
	"github.com/mx-space/notes/internal/modules/system/core/health"
	"github.com/mx-space/notes/internal/pkg/response"
)

const (
	apiPrefix      = "/api/v1"
	publicCacheTTL = 15 * time.Second
	appName        = "notes"
	appVersion     = "1.0.0"
)

func (a *App) registerRoutes() {
	r := a.router
	svc := a.svc
	authMW := middleware.Auth(svc.authn)
	optionalMW := middleware.OptionalAuth(svc.authn)
	cacheMW := middleware.PublicCache(a.redis, publicCacheTTL)

	r.NoRoute(func(c *gin.Context) {
		response.NotFound(c)
	})
	r.NoMethod(func(c *gin.Context) {
		response.MethodNotAllowed(c)
	})

	// Rate limiting and idempotence run on every route when redis is enabled.
	r.Use(middleware.RateLimit(a.redis, a.cfg.RateLimit.Max, a.cfg.RateLimit.Window, a.logger))
	r.Use(middleware.Idempotence(a.redis, a.logger))

	api := r.Group(apiPrefix)
	appInfo := gin.H{"name": appName, "version": appVersion}
	api.GET("", func(c *gin.Context) { c.PureJSON(http.StatusOK, appInfo) })
	api.GET("/ping", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"data": "pong"}) })

	var redisPinger health.Pinger
	if a.redis != nil {
		redisPinger = a.redis
	}
	health.NewHandler(a.store, redisPinger, a.sched, svc.ledger, svc.links).RegisterRoutes(api, authMW)

	auth.NewHandler(svc.auth).RegisterRoutes(api, authMW)
	note.NewHandler(svc.notes).RegisterRoutes(api, authMW, optionalMW, cacheMW)
	share.NewHandler(svc.shares).RegisterRoutes(api, authMW)
	publiclink.NewHandler(svc.links).RegisterRoutes(api, authMW)
	tag.NewHandler(svc.tags).RegisterRoutes(api, authMW, cacheMW)
}

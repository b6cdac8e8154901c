// Package health exposes liveness, maintenance job control and ledger statistics.
package health

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mx-space/notes/internal/pkg/cron"
	"github.com/mx-space/notes/internal/pkg/response"
	"github.com/mx-space/notes/internal/store"
)

// Pinger is a dependency the liveness probe checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

type TokenStats interface {
	Stats(ctx context.Context) (store.TokenStats, error)
}

type LinkStats interface {
	Stats(ctx context.Context) (store.LinkStats, error)
}

type Handler struct {
	db      Pinger
	redis   Pinger
	sched   *cron.Scheduler
	tokens  TokenStats
	links   LinkStats
	started time.Time
}

// NewHandler wires the probe. redis may be nil when caching is disabled.
func NewHandler(db, redis Pinger, sched *cron.Scheduler, tokens TokenStats, links LinkStats) *Handler {
	return &Handler{
		db:      db,
		redis:   redis,
		sched:   sched,
		tokens:  tokens,
		links:   links,
		started: time.Now(),
	}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	rg.GET("/health", h.health)

	admin := rg.Group("/health", authMW)
	admin.GET("/stats", h.stats)

	cronGroup := admin.Group("/cron")
	{
		cronGroup.GET("", func(c *gin.Context) {
			items := h.sched.List()
			byName := make(map[string]cron.ListItem, len(items))
			for _, item := range items {
				byName[item.Name] = item
			}
			response.OK(c, byName)
		})

		cronGroup.POST("/run/:name", func(c *gin.Context) {
			if err := h.sched.Run(c.Param("name")); err != nil {
				response.NotFoundMsg(c, err.Error())
				return
			}
			response.OK(c, gin.H{"message": "job triggered"})
		})

		cronGroup.GET("/task/:name", func(c *gin.Context) {
			result, err := h.sched.GetTask(c.Param("name"))
			if err != nil {
				response.NotFoundMsg(c, err.Error())
				return
			}
			response.OK(c, result)
		})
	}
}

func (h *Handler) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	dbOK := h.db.Ping(ctx) == nil
	body := gin.H{
		"database": dbOK,
		"uptime":   time.Since(h.started).Round(time.Second).String(),
	}
	healthy := dbOK
	if h.redis != nil {
		redisOK := h.redis.Ping(ctx) == nil
		body["redis"] = redisOK
		healthy = healthy && redisOK
	}

	status, code := "ok", http.StatusOK
	if !healthy {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	body["status"] = status
	c.JSON(code, body)
}

func (h *Handler) stats(c *gin.Context) {
	ctx := c.Request.Context()
	tokens, err := h.tokens.Stats(ctx)
	if err != nil {
		response.Error(c, err)
		return
	}
	links, err := h.links.Stats(ctx)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{
		"refresh_tokens": tokens,
		"public_links":   links,
		"runtime": gin.H{
			"go_version": runtime.Version(),
			"goroutines": runtime.NumGoroutine(),
			"uptime":     time.Since(h.started).Round(time.Second).String(),
		},
	})
}

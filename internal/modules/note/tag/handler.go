package tag

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mx-space/notes/internal/pkg/response"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the tag routes. cacheMW wraps the anonymous listing.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW, cacheMW gin.HandlerFunc) {
	tags := rg.Group("/tags")
	tags.GET("", cacheMW, h.list)
	tags.DELETE("/unused", authMW, h.prune)
}

func (h *Handler) list(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	tags, err := h.svc.List(c.Request.Context(), c.Query("q"), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, tags)
}

func (h *Handler) prune(c *gin.Context) {
	n, err := h.svc.Prune(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"deleted": n})
}

package share

import (
	"github.com/gin-gonic/gin"
	"github.com/mx-space/notes/internal/middleware"
	"github.com/mx-space/notes/internal/pkg/pagination"
	"github.com/mx-space/notes/internal/pkg/response"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	notes := rg.Group("/notes/:id", authMW)
	notes.POST("/share/user", h.create)
	notes.GET("/shares", h.listForNote)
	notes.POST("/shares/revoke-all", h.revokeAll)

	shares := rg.Group("/shares", authMW)
	shares.GET("/received", h.received)
	shares.PUT("/:id", h.update)
	shares.DELETE("/:id", h.delete)
	shares.POST("/:id/revoke", h.revoke)
}

func (h *Handler) create(c *gin.Context) {
	var dto CreateDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	view, err := h.svc.Create(c.Request.Context(), c.Param("id"), middleware.CurrentUserID(c), dto)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, view)
}

func (h *Handler) listForNote(c *gin.Context) {
	views, err := h.svc.ListForNote(c.Request.Context(), c.Param("id"), middleware.CurrentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, views)
}

func (h *Handler) revokeAll(c *gin.Context) {
	n, err := h.svc.RevokeAll(c.Request.Context(), c.Param("id"), middleware.CurrentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"revoked": n})
}

func (h *Handler) received(c *gin.Context) {
	q := pagination.FromContext(c)
	views, total, err := h.svc.Received(c.Request.Context(), middleware.CurrentUserID(c), q)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paged(c, views, pagination.Meta(q, total))
}

func (h *Handler) update(c *gin.Context) {
	var dto UpdateDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	view, err := h.svc.Update(c.Request.Context(), c.Param("id"), middleware.CurrentUserID(c), dto)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, view)
}

func (h *Handler) delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id"), middleware.CurrentUserID(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func (h *Handler) revoke(c *gin.Context) {
	if err := h.svc.Revoke(c.Request.Context(), c.Param("id"), middleware.CurrentUserID(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

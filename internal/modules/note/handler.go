package note

import (
	"github.com/gin-gonic/gin"
	"github.com/mx-space/notes/internal/middleware"
	"github.com/mx-space/notes/internal/models"
	"github.com/mx-space/notes/internal/pkg/pagination"
	"github.com/mx-space/notes/internal/pkg/response"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the note routes. optionalMW resolves the caller when a
// token is present; cacheMW wraps the anonymous public listing.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW, optionalMW, cacheMW gin.HandlerFunc) {
	n := rg.Group("/notes")

	n.GET("/public", cacheMW, h.public)
	n.GET("/:id", optionalMW, h.get)

	n.GET("", authMW, h.search)
	n.POST("", authMW, h.create)
	n.GET("/favorites", authMW, h.favorites)
	n.GET("/shared", authMW, h.shared)
	n.PUT("/:id", authMW, h.update)
	n.DELETE("/:id", authMW, h.delete)
	n.POST("/:id/favorite", authMW, h.toggleFavorite)
}

func (h *Handler) search(c *gin.Context) {
	q := pagination.FromContext(c)
	f := Filter{
		Query:      c.Query("q"),
		Tag:        c.Query("tag"),
		Visibility: models.Visibility(c.Query("visibility")),
	}
	items, total, err := h.svc.Search(c.Request.Context(), middleware.CurrentUserID(c), f, q)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paged(c, items, pagination.Meta(q, total))
}

func (h *Handler) create(c *gin.Context) {
	var dto CreateDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	view, err := h.svc.Create(c.Request.Context(), middleware.CurrentUserID(c), dto)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, view)
}

func (h *Handler) get(c *gin.Context) {
	view, err := h.svc.Get(c.Request.Context(), c.Param("id"), middleware.CurrentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, view)
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

func (h *Handler) favorites(c *gin.Context) {
	q := pagination.FromContext(c)
	items, total, err := h.svc.Favorites(c.Request.Context(), middleware.CurrentUserID(c), q)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paged(c, items, pagination.Meta(q, total))
}

func (h *Handler) shared(c *gin.Context) {
	q := pagination.FromContext(c)
	items, total, err := h.svc.SharedWithMe(c.Request.Context(), middleware.CurrentUserID(c), q)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paged(c, items, pagination.Meta(q, total))
}

func (h *Handler) public(c *gin.Context) {
	q := pagination.FromContext(c)
	items, total, err := h.svc.Public(c.Request.Context(), q)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paged(c, items, pagination.Meta(q, total))
}

func (h *Handler) toggleFavorite(c *gin.Context) {
	view, err := h.svc.ToggleFavorite(c.Request.Context(), c.Param("id"), middleware.CurrentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, view)
}

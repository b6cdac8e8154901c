package publiclink

import (
	"errors"
	"io"

	"github.com/gin-gonic/gin"
	"github.com/mx-space/notes/internal/middleware"
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
	notes.POST("/share/public", h.create)
	notes.GET("/public-links", h.listForNote)

	links := rg.Group("/public-links", authMW)
	links.PUT("/:id", h.update)
	links.DELETE("/:id", h.delete)
	links.DELETE("/token/:token", h.deleteByToken)
	links.POST("/:id/deactivate", h.deactivate)
	links.POST("/:id/reactivate", h.reactivate)

	p := rg.Group("/p")
	p.GET("/:token", h.resolve)
	p.GET("/:token/info", h.info)
	p.POST("/:token/verify-password", h.verifyPassword)
}

func (h *Handler) create(c *gin.Context) {
	var dto CreateDTO
	if err := bindOptionalJSON(c, &dto); err != nil {
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

func (h *Handler) deleteByToken(c *gin.Context) {
	if err := h.svc.DeleteByToken(c.Request.Context(), c.Param("token"), middleware.CurrentUserID(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func (h *Handler) deactivate(c *gin.Context) {
	view, err := h.svc.Deactivate(c.Request.Context(), c.Param("id"), middleware.CurrentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, view)
}

func (h *Handler) reactivate(c *gin.Context) {
	view, err := h.svc.Reactivate(c.Request.Context(), c.Param("id"), middleware.CurrentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, view)
}

// resolve accepts the password as a query parameter or an X-Link-Password header.
func (h *Handler) resolve(c *gin.Context) {
	password := c.Query("password")
	if password == "" {
		password = c.GetHeader("X-Link-Password")
	}
	ctx := WithClient(c.Request.Context(), c.ClientIP())
	snap, err := h.svc.Resolve(ctx, c.Param("token"), password)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, snap)
}

func (h *Handler) info(c *gin.Context) {
	info, err := h.svc.Info(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, info)
}

func (h *Handler) verifyPassword(c *gin.Context) {
	var dto verifyPasswordDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	ctx := WithClient(c.Request.Context(), c.ClientIP())
	ok, err := h.svc.VerifyPassword(ctx, c.Param("token"), dto.Password)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"valid": ok})
}

// bindOptionalJSON binds a JSON body when one is present.
func bindOptionalJSON(c *gin.Context, dst any) error {
	err := c.ShouldBindJSON(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

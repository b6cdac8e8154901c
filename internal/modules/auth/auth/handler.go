package auth

import (
	"github.com/gin-gonic/gin"
	"github.com/mx-space/notes/internal/middleware"
	"github.com/mx-space/notes/internal/pkg/response"
	"github.com/mx-space/notes/internal/pkg/session"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	a := rg.Group("/auth")

	a.POST("/register", h.register)
	a.POST("/login", h.login)
	a.POST("/refresh", h.refresh)
	a.POST("/logout", h.logout)
	a.GET("/check-email", h.checkEmail)

	a.POST("/logout-all", authMW, h.logoutAll)
	a.GET("/me", authMW, h.me)
	a.GET("/sessions", authMW, h.sessions)
}

func device(c *gin.Context) session.Device {
	return session.Device{IP: c.ClientIP(), UserAgent: c.Request.UserAgent()}
}

func (h *Handler) register(c *gin.Context) {
	var dto RegisterDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	res, err := h.svc.Register(c.Request.Context(), dto, device(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, res)
}

func (h *Handler) login(c *gin.Context) {
	var dto LoginDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	res, err := h.svc.Login(c.Request.Context(), dto, device(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, res)
}

func (h *Handler) refresh(c *gin.Context) {
	var dto RefreshDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	res, err := h.svc.Refresh(c.Request.Context(), dto.RefreshToken, device(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, res)
}

func (h *Handler) logout(c *gin.Context) {
	var dto logoutDTO
	_ = c.ShouldBindJSON(&dto)
	if err := h.svc.Logout(c.Request.Context(), dto.RefreshToken); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func (h *Handler) logoutAll(c *gin.Context) {
	n, err := h.svc.LogoutAll(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"revoked": n})
}

func (h *Handler) me(c *gin.Context) {
	user, err := h.svc.Me(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, user)
}

func (h *Handler) checkEmail(c *gin.Context) {
	exists, err := h.svc.CheckEmail(c.Request.Context(), c.Query("email"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"exists": exists})
}

func (h *Handler) sessions(c *gin.Context) {
	items, err := h.svc.Sessions(c.Request.Context(), middleware.CurrentUserID(c), middleware.CurrentSessionID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, items)
}

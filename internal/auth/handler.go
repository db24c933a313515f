package auth

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Handler exposes registration, sign-in and profile endpoints.
type Handler struct {
	service *AuthService
}

func NewHandler(service *AuthService) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts the auth endpoints on rg. loginLimit may be nil.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, requireAuth gin.HandlerFunc, loginLimit gin.HandlerFunc) {
	rg.POST("/register", h.Register)
	if loginLimit != nil {
		rg.POST("/login", loginLimit, h.Login)
	} else {
		rg.POST("/login", h.Login)
	}
	rg.GET("/me", requireAuth, h.Me)
	rg.PUT("/me/profile", requireAuth, h.UpdateProfile)
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Register handles POST /api/auth/register
func (h *Handler) Register(c *gin.Context) {
	var req RegisterInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.service.Register(c.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, ErrEmailTaken):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case errors.Is(err, ErrInvalidInput):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "registration failed"})
		}
		return
	}
	c.JSON(http.StatusCreated, user)
}

// Login handles POST /api/auth/login
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.service.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "sign-in failed"})
		return
	}
	c.JSON(http.StatusOK, result)
}

// Me handles GET /api/auth/me
func (h *Handler) Me(c *gin.Context) {
	authCtx := GetAuthContext(c)
	user, err := h.service.GetUser(c.Request.Context(), authCtx.UserID)
	if err != nil {
		writeUserError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// UpdateProfile handles PUT /api/auth/me/profile
func (h *Handler) UpdateProfile(c *gin.Context) {
	var req ProfileInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	authCtx := GetAuthContext(c)
	user, err := h.service.UpdateProfile(c.Request.Context(), authCtx.UserID, req)
	if err != nil {
		writeUserError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func writeUserError(c *gin.Context, err error) {
	if errors.Is(err, ErrUserNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load user"})
}

package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"listings-api/dto"
	"listings-api/middleware"
	"listings-api/services"
)

// CookieOptions configura la cookie de sesión
type CookieOptions struct {
	Name   string
	Secure bool
}

// AuthController maneja login, logout y el usuario actual
type AuthController struct {
	service services.AuthService
	cookie  CookieOptions
	logger  *zap.Logger
}

func NewAuthController(service services.AuthService, cookie CookieOptions, logger *zap.Logger) *AuthController {
	return &AuthController{service: service, cookie: cookie, logger: logger}
}

// Login maneja POST /api/auth/login
func (ctrl *AuthController) Login(c *gin.Context) {
	// 1. Leer las credenciales del body
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	// 2. Llamar al servicio para hacer login
	resp, err := ctrl.service.Login(c.Request.Context(), req)
	if err != nil {
		respondError(c, ctrl.logger, err)
		return
	}

	// 3. Devolver el token en el body y en la cookie
	maxAge := int(time.Until(resp.ExpiresAt) / time.Second)
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(ctrl.cookie.Name, resp.Token, maxAge, "/", "", ctrl.cookie.Secure, true)
	c.JSON(http.StatusOK, resp)
}

// Logout maneja POST /api/auth/logout
func (ctrl *AuthController) Logout(c *gin.Context) {
	if claims, ok := middleware.ClaimsFrom(c); ok {
		ctrl.service.Logout(claims)
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(ctrl.cookie.Name, "", -1, "/", "", ctrl.cookie.Secure, true)
	c.JSON(http.StatusOK, dto.SuccessResponse{Message: "logged out"})
}

// Me maneja GET /api/auth/me
func (ctrl *AuthController) Me(c *gin.Context) {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, dto.ErrorResponse{Error: "unauthorized", Message: "authorization required"})
		return
	}
	user, err := ctrl.service.Me(c.Request.Context(), claims.UserID)
	if err != nil {
		respondError(c, ctrl.logger, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

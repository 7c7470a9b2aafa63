package api

import (
	"github.com/gin-gonic/gin"
	"github.com/wfunc/initiative-tracker/internal/middleware"
	"github.com/wfunc/initiative-tracker/internal/service"
)

// AuthHandler accounts and tokens
type AuthHandler struct {
	authService service.AuthService
	userService service.UserService
}

func NewAuthHandler(authService service.AuthService, userService service.UserService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		userService: userService,
	}
}

// Register creates an account.
// @Summary Register
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body service.RegisterRequest true "account"
// @Success 200 {object} Response{data=service.AuthResponse}
// @Failure 400 {object} errors.ErrorResponse
// @Router /api/v1/auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req service.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	req.IP = c.ClientIP()

	resp, err := h.authService.Register(c.Request.Context(), &req)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, resp)
}

// Login signs in by username or email.
// @Summary Login
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body service.LoginRequest true "credentials"
// @Success 200 {object} Response{data=service.AuthResponse}
// @Failure 401 {object} errors.ErrorResponse
// @Router /api/v1/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req service.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	req.IP = c.ClientIP()

	resp, err := h.authService.Login(c.Request.Context(), &req)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, resp)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// RefreshToken trades a refresh token for a new access token.
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	resp, err := h.authService.RefreshToken(c.Request.Context(), req.RefreshToken)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, resp)
}

// CSRFToken issues the anti-forgery token for the X-CSRF-Token header.
// @Summary Anti-forgery token
// @Tags Auth
// @Produce json
// @Success 200 {object} Response
// @Router /api/v1/csrf [get]
func (h *AuthHandler) CSRFToken(c *gin.Context) {
	ok(c, gin.H{"csrf_token": middleware.CSRFToken(c)})
}

// Me returns the signed-in user.
func (h *AuthHandler) Me(c *gin.Context) {
	user, err := h.userService.GetUserByID(c.Request.Context(), currentUser(c))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, user)
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

// ChangePassword replaces the signed-in user's password.
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	if err := h.userService.ChangePassword(c.Request.Context(), currentUser(c), req.OldPassword, req.NewPassword); err != nil {
		fail(c, err)
		return
	}
	okMessage(c, "Password changed.", nil)
}

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	iauth "github.com/schoolgate/schoolgate/internal/auth"
	"github.com/schoolgate/schoolgate/internal/services"
	"github.com/schoolgate/schoolgate/pkg/response"
)

// AuthHandler manages authentication flows: login, registration, device
// registration and password lifecycle.
type AuthHandler struct {
	users *services.UserService
	jwt   *iauth.JWTService
}

func NewAuthHandler(users *services.UserService, jwt *iauth.JWTService) *AuthHandler {
	return &AuthHandler{users: users, jwt: jwt}
}

type registerRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Role     string `json:"role" validate:"required,oneof=teacher manager receptionist admin"`
	Avatar   string `json:"avatar" validate:"omitempty,max=2048"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
}

// POST /api/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.users.Create(requestContext(c), services.CreateUserInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
		Avatar:   req.Avatar,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, user)
}

// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.users.Authenticate(requestContext(c), req.Email, req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}

	token, err := h.jwt.GenerateAccessToken(iauth.AccessTokenInput{
		UserID: user.ID,
		Role:   user.Role,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"tokens": tokenResponse{AccessToken: token},
		"user":   user,
	})
}

// POST /api/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	// Access tokens are stateless; logout drops the device registration so the
	// signed-out device stops receiving pushes.
	if err := h.users.ClearDeviceToken(requestContext(c), currentUserID(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "logged out"})
}

// GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	user, err := h.users.Get(requestContext(c), currentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, user)
}

type deviceTokenRequest struct {
	Token    string `json:"token" validate:"required"`
	Platform string `json:"platform" validate:"omitempty,oneof=android ios web"`
}

// PUT /api/auth/device-token
func (h *AuthHandler) UpdateDeviceToken(c *gin.Context) {
	var req deviceTokenRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if err := h.users.UpdateDeviceToken(requestContext(c), currentUserID(c), req.Token, req.Platform); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "device registered"})
}

// DELETE /api/auth/device-token
func (h *AuthHandler) ClearDeviceToken(c *gin.Context) {
	if err := h.users.ClearDeviceToken(requestContext(c), currentUserID(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "device unregistered"})
}

type updatePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8"`
}

// PUT /api/auth/password
func (h *AuthHandler) UpdatePassword(c *gin.Context) {
	var req updatePasswordRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if err := h.users.UpdatePassword(requestContext(c), currentUserID(c), req.CurrentPassword, req.NewPassword); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "password updated"})
}

type forgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// POST /api/auth/forgot-password
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req forgotPasswordRequest
	if !bindAndValidate(c, &req) {
		return
	}

	token, err := h.users.ForgotPassword(requestContext(c), req.Email)
	if err != nil {
		// Do not reveal whether the address exists.
		response.Success(c, http.StatusOK, gin.H{"message": "if the account exists, a reset token was issued"})
		return
	}

	// Without an outbound mailer the token is returned directly; the mobile
	// client relays it to the user.
	response.Success(c, http.StatusOK, gin.H{"reset_token": token})
}

type resetPasswordRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8"`
}

// POST /api/auth/reset-password
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if err := h.users.ResetPassword(requestContext(c), req.Token, req.NewPassword); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "password reset"})
}

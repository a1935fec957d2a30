package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mindwell/internal/domain"
	"mindwell/internal/service"
	"mindwell/internal/state"
)

// AuthHandler mantiene dependencias para los endpoints de sesión.
type AuthHandler struct {
	logger   *zap.Logger
	sessions *service.SessionManager
	state    *state.Container
}

// NewAuthHandler crea una instancia de AuthHandler con dependencias necesarias.
func NewAuthHandler(logger *zap.Logger, sessions *service.SessionManager, st *state.Container) *AuthHandler {
	return &AuthHandler{
		logger:   logger,
		sessions: sessions,
		state:    st,
	}
}

// SignUp maneja POST /auth/signup.
func (h *AuthHandler) SignUp(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Name     string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid signup request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	result := h.sessions.SignUp(c.Request.Context(), req.Email, req.Password, req.Name)
	if !result.Success {
		c.JSON(failureStatus(result), result)
		return
	}
	c.JSON(http.StatusCreated, result)
}

// SignIn maneja POST /auth/signin.
func (h *AuthHandler) SignIn(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid signin request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	result := h.sessions.SignIn(c.Request.Context(), req.Email, req.Password)
	if !result.Success {
		c.JSON(failureStatus(result), result)
		return
	}
	c.JSON(http.StatusOK, result)
}

// failureStatus mapea la categoría de falla del AuthResult a un status HTTP.
func failureStatus(result domain.AuthResult) int {
	switch result.Category {
	case domain.FailureValidation:
		return http.StatusBadRequest
	case domain.FailureInvalidCredentials:
		return http.StatusUnauthorized
	case domain.FailureDuplicateAccount:
		return http.StatusConflict
	case domain.FailureProvider:
		return http.StatusBadGateway
	case domain.FailureConsistency:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

// SignOut maneja POST /auth/signout. El estado local siempre queda limpio;
// un error remoto solo se reporta.
func (h *AuthHandler) SignOut(c *gin.Context) {
	if err := h.sessions.SignOut(c.Request.Context()); err != nil {
		c.JSON(http.StatusOK, gin.H{"status": "signed_out", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "signed_out"})
}

// Session maneja GET /auth/session: la vista reactiva del estado.
func (h *AuthHandler) Session(c *gin.Context) {
	c.JSON(http.StatusOK, h.state.Snapshot())
}

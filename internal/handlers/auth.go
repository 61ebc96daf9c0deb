package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sharebite/auth-service/internal/metrics"
	"github.com/sharebite/auth-service/internal/models"
	"github.com/sharebite/auth-service/internal/service"
)

// AuthHandler handles registration and login requests.
type AuthHandler struct {
	authService service.AuthService
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

// NewAuthHandler creates a new AuthHandler instance. m and logger may be nil.
func NewAuthHandler(authService service.AuthService, m *metrics.Metrics, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		metrics:     m,
		logger:      orDiscard(logger),
	}
}

// RegisterResponse is returned after a successful registration.
type RegisterResponse struct {
	Message string             `json:"message"`
	User    *models.PublicUser `json:"user"`
}

// Register godoc
// @Summary Register a new account
// @Description Create a user with a unique username and email
// @Tags auth
// @Accept json
// @Produce json
// @Param request body service.RegisterRequest true "Account details"
// @Success 201 {object} RegisterResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req service.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.authService.Register(c.Request.Context(), req)
	h.metrics.RecordAuthEvent("register", err)
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, RegisterResponse{
		Message: "user registered successfully",
		User:    user,
	})
}

// Login godoc
// @Summary User login
// @Description Authenticate with a username or email and return a session token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body service.LoginRequest true "Login credentials"
// @Success 200 {object} service.LoginResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req service.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	response, err := h.authService.Login(c.Request.Context(), req.UsernameOrEmail, req.Password)
	h.metrics.RecordAuthEvent("login", err)
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

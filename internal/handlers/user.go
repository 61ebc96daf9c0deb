package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sharebite/auth-service/internal/metrics"
	"github.com/sharebite/auth-service/internal/middleware"
	"github.com/sharebite/auth-service/internal/models"
	"github.com/sharebite/auth-service/internal/service"
)

// multipartOverhead is the room left for multipart framing on top of the
// avatar size limit.
const multipartOverhead = 64 << 10

// UserHandler handles requests of the authenticated user.
type UserHandler struct {
	profiles    service.ProfileService
	authService service.AuthService
	avatarLimit int64
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

// NewUserHandler creates a new UserHandler instance. m and logger may be nil.
func NewUserHandler(profiles service.ProfileService, authService service.AuthService, avatarLimit int64, m *metrics.Metrics, logger *slog.Logger) *UserHandler {
	if avatarLimit <= 0 {
		avatarLimit = service.DefaultAvatarLimit
	}
	return &UserHandler{
		profiles:    profiles,
		authService: authService,
		avatarLimit: avatarLimit,
		metrics:     m,
		logger:      orDiscard(logger),
	}
}

// UserResponse wraps a single user.
type UserResponse struct {
	Message string       `json:"message,omitempty"`
	User    *models.User `json:"user"`
}

func (h *UserHandler) userID(c *gin.Context) (string, bool) {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, middleware.MsgNoToken)
		return "", false
	}
	return id.UserID, true
}

// Profile godoc
// @Summary Get own profile
// @Tags user
// @Produce json
// @Security BearerAuth
// @Success 200 {object} UserResponse
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /user/profile [get]
func (h *UserHandler) Profile(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	user, err := h.profiles.GetProfile(c.Request.Context(), userID)
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, UserResponse{User: user})
}

// UpdateProfile godoc
// @Summary Update own profile
// @Description Change username, email, phone or about. Omitted fields are kept.
// @Tags user
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body service.ProfileUpdate true "Fields to change"
// @Success 200 {object} UserResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /user/profile [put]
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	var req service.ProfileUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.profiles.UpdateProfile(c.Request.Context(), userID, req)
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, UserResponse{Message: "profile updated", User: user})
}

// UploadAvatar godoc
// @Summary Upload avatar image
// @Description Accepts jpeg, png, gif or webp in the multipart field "avatar"
// @Tags user
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param avatar formData file true "Avatar image"
// @Success 200 {object} UserResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 413 {object} ErrorResponse
// @Failure 501 {object} ErrorResponse
// @Router /user/avatar [post]
func (h *UserHandler) UploadAvatar(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	maxBody := h.avatarLimit + multipartOverhead
	if c.Request.ContentLength > maxBody {
		RespondError(c, http.StatusRequestEntityTooLarge, "avatar file too large")
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBody)

	header, err := c.FormFile("avatar")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			RespondError(c, http.StatusRequestEntityTooLarge, "avatar file too large")
			return
		}
		RespondError(c, http.StatusBadRequest, "no file uploaded")
		return
	}

	file, err := header.Open()
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}
	defer file.Close()

	user, err := h.profiles.UpdateAvatar(c.Request.Context(), userID, service.AvatarUpload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	})
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, UserResponse{Message: "avatar updated", User: user})
}

// ChangePassword godoc
// @Summary Change password
// @Tags user
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body service.ChangePasswordRequest true "Current and new password"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /user/change-password [put]
func (h *UserHandler) ChangePassword(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	var req service.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	err := h.authService.ChangePassword(c.Request.Context(), userID, req.CurrentPassword, req.NewPassword)
	h.metrics.RecordAuthEvent("change_password", err)
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "password changed successfully"})
}

// DeleteAccount godoc
// @Summary Delete own account
// @Description Permanently removes the account and its avatar
// @Tags user
// @Produce json
// @Security BearerAuth
// @Success 200 {object} MessageResponse
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /user/account [delete]
func (h *UserHandler) DeleteAccount(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	err := h.authService.DeleteAccount(c.Request.Context(), userID)
	h.metrics.RecordAuthEvent("delete_account", err)
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "account deleted"})
}

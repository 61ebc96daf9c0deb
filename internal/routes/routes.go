// Package routes defines HTTP routes for the account service.
package routes

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sharebite/auth-service/internal/handlers"
	"github.com/sharebite/auth-service/internal/metrics"
	"github.com/sharebite/auth-service/internal/middleware"
	"github.com/sharebite/auth-service/internal/storage"
)

// Handlers groups the request handlers served by the router.
type Handlers struct {
	Auth   *handlers.AuthHandler
	User   *handlers.UserHandler
	Health *handlers.HealthHandler
}

// Options carries the cross-cutting pieces wired around the handlers.
type Options struct {
	AllowedOrigins []string
	// Gate authenticates requests to /api/user.
	Gate    gin.HandlerFunc
	Logger  *slog.Logger
	Metrics *metrics.Metrics
	// MetricsHandler serves /metrics when set.
	MetricsHandler http.Handler
	// UploadDir is served under /uploads when set.
	UploadDir string
}

// Setup configures all HTTP routes for the application.
func Setup(router *gin.Engine, h Handlers, opts Options) {
	router.Use(gin.Recovery())
	if opts.Logger != nil {
		router.Use(middleware.RequestLogger(opts.Logger))
	}
	if opts.Metrics != nil {
		router.Use(middleware.Metrics(opts.Metrics))
	}
	router.Use(middleware.CORS(middleware.DefaultCORSConfig(opts.AllowedOrigins)))

	router.GET("/health", h.Health.Check)
	if opts.MetricsHandler != nil {
		router.GET("/metrics", gin.WrapH(opts.MetricsHandler))
	}
	if opts.UploadDir != "" {
		router.Static(storage.DefaultURLPrefix, opts.UploadDir)
	}

	auth := router.Group("/api/auth")
	{
		auth.POST("/register", h.Auth.Register)
		auth.POST("/signup", h.Auth.Register)
		auth.POST("/login", h.Auth.Login)
		auth.POST("/signin", h.Auth.Login)
	}

	user := router.Group("/api/user", opts.Gate)
	{
		user.GET("/profile", h.User.Profile)
		user.PUT("/profile", h.User.UpdateProfile)
		user.POST("/avatar", h.User.UploadAvatar)
		user.PUT("/change-password", h.User.ChangePassword)
		user.DELETE("/account", h.User.DeleteAccount)
		user.DELETE("", h.User.DeleteAccount)
	}
}

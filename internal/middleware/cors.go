// Package middleware provides HTTP middleware for the account service.
package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORSConfig holds configuration for the CORS middleware.
type CORSConfig struct {
	// AllowedOrigins lists browser origins allowed to call the API.
	// A single "*" allows any origin.
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
	MaxAge         time.Duration
}

// DefaultCORSConfig returns the methods and headers the API uses.
func DefaultCORSConfig(origins []string) CORSConfig {
	return CORSConfig{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", RequestIDHeader},
		MaxAge:         10 * time.Minute,
	}
}

// CORS returns middleware that answers preflight requests and sets
// Access-Control headers for allowed origins. Requests from other origins
// get 403. Credentials are never allowed since tokens travel in the
// Authorization header.
func CORS(config CORSConfig) gin.HandlerFunc {
	return cors.New(config.toLibrary())
}

func (c CORSConfig) toLibrary() cors.Config {
	lib := cors.Config{
		AllowMethods:  c.AllowedMethods,
		AllowHeaders:  c.AllowedHeaders,
		ExposeHeaders: []string{RequestIDHeader},
		MaxAge:        c.MaxAge,
	}

	for _, origin := range c.AllowedOrigins {
		origin = normalizeOrigin(origin)
		switch {
		case origin == "*":
			lib.AllowAllOrigins = true
			lib.AllowOrigins = nil
			return lib
		case strings.HasPrefix(origin, "http://"), strings.HasPrefix(origin, "https://"):
			lib.AllowOrigins = append(lib.AllowOrigins, origin)
		}
	}

	// An empty allow-list is rejected by cors.New.
	if len(lib.AllowOrigins) == 0 {
		lib.AllowOriginFunc = func(string) bool { return false }
	}
	return lib
}

// normalizeOrigin lowercases and strips a trailing slash.
func normalizeOrigin(origin string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(origin)), "/")
}

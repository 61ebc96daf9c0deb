package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/sharebite/auth-service/internal/service"
)

// Rejection messages of the auth gate.
const (
	MsgNoToken      = "no token provided"
	MsgInvalidToken = "invalid token"
)

const bearerPrefix = "bearer "

// IdentityKey is the gin context key RequireAuth stores the Identity under.
const IdentityKey = "identity"

// Identity is the verified caller attached to a request by RequireAuth.
type Identity struct {
	UserID string
}

type identityKey struct{}

// ContextWithIdentity returns a copy of ctx carrying id.
func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the identity attached by RequireAuth.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok && id.UserID != ""
}

// IdentityFrom returns the identity attached to the gin request.
func IdentityFrom(c *gin.Context) (Identity, bool) {
	return IdentityFromContext(c.Request.Context())
}

// extractToken accepts "Bearer <token>" in any case, or a bare token.
func extractToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) >= len(bearerPrefix) && strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return strings.TrimSpace(header[len(bearerPrefix):])
	}
	if strings.EqualFold(header, strings.TrimSpace(bearerPrefix)) {
		return ""
	}
	return header
}

// RequireAuth rejects requests without a valid session token and attaches
// the token subject to the request context otherwise. revocations may be nil.
func RequireAuth(verifier service.JWTService, revocations service.RevocationStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c.GetHeader("Authorization"))
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": MsgNoToken})
			return
		}

		claims, err := verifier.ValidateToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": MsgInvalidToken})
			return
		}

		revoked, err := service.IsRevoked(c.Request.Context(), revocations, claims)
		if err != nil {
			_ = c.Error(err)
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"message": service.ErrUnavailable.Error()})
			return
		}
		if revoked {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": MsgInvalidToken})
			return
		}

		identity := Identity{UserID: claims.Subject}
		c.Set(IdentityKey, identity)
		c.Request = c.Request.WithContext(ContextWithIdentity(c.Request.Context(), identity))
		c.Next()
	}
}

// File: internal/middleware/auth.go
package middleware

import (
	"strings"

	"picstream_backend/internal/common"
	"picstream_backend/internal/config"
	"picstream_backend/internal/shared"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// AuthorizationHeader is the header name for authorization token
	AuthorizationHeader = "Authorization"
	// AuthorizationTypeBearer is the prefix for Bearer tokens
	AuthorizationTypeBearer = "Bearer"
	// UserIDKey is the context key for storing the authenticated user's ID
	UserIDKey = "userID"
	// UserEmailKey is the context key for storing the authenticated user's email
	UserEmailKey = "userEmail"
	// UserClaimsKey stores the whole claims object
	UserClaimsKey = "userClaims"
)

// AuthMiddleware creates a Gin middleware for JWT authentication.
//
// API clients send the token in the Authorization header; browser sessions
// established by the OAuth flow carry it in the session cookie. The header
// wins when both are present.
func AuthMiddleware(tokenService shared.TokenService, cfg *config.Config, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, err := extractToken(c, cfg)
		if err != nil {
			logger.Debug("Credential extraction failed", zap.Error(err))
			common.RespondWithError(c, err)
			return
		}

		claims, err := tokenService.ValidateToken(tokenString)
		if err != nil {
			logger.Warn("Token validation failed", zap.Error(err))
			common.RespondWithError(c, common.ErrUnauthorized.WithDetails(err.Error()))
			return
		}

		c.Set(UserIDKey, claims.UserID)
		c.Set(UserEmailKey, claims.Email)
		c.Set(UserClaimsKey, claims)

		logger.Debug("User authenticated successfully",
			zap.String("userID", claims.UserID.String()),
			zap.String("email", claims.Email),
		)

		c.Next()
	}
}

// extractToken pulls the JWT out of the Authorization header, falling back to
// the session cookie for browser clients.
func extractToken(c *gin.Context, cfg *config.Config) (string, error) {
	authHeader := c.GetHeader(AuthorizationHeader)
	if authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || !strings.EqualFold(parts[0], AuthorizationTypeBearer) {
			return "", common.ErrUnauthorized.WithDetails("Authorization header format must be 'Bearer <token>'.")
		}
		return parts[1], nil
	}

	if cookie, err := c.Cookie(cfg.SessionCookieName); err == nil && cookie != "" {
		return cookie, nil
	}

	return "", common.ErrUnauthorized.WithDetails("Authentication credentials are required.")
}

// GetUserIDFromContext retrieves the user ID from the Gin context.
// Returns uuid.Nil if not found or not a UUID.
func GetUserIDFromContext(c *gin.Context) uuid.UUID {
	val, exists := c.Get(UserIDKey)
	if !exists {
		return uuid.Nil
	}
	userID, ok := val.(uuid.UUID)
	if !ok {
		return uuid.Nil
	}
	return userID
}

// GetUserClaimsFromContext retrieves the full claims object from the Gin context.
func GetUserClaimsFromContext(c *gin.Context) *shared.Claims {
	val, exists := c.Get(UserClaimsKey)
	if !exists {
		return nil
	}
	claims, ok := val.(*shared.Claims)
	if !ok {
		return nil
	}
	return claims
}

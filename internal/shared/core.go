package shared

import (
	"context"
	"io"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// User represents an account in the system as seen outside the persistence layer.
type User struct {
	ID              uuid.UUID
	Name            string
	Email           string
	ExternalID      *string
	AvatarFilename  *string
	EmailVerifiedAt *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// RegisterInput carries validated password-registration data into the identity resolver.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Avatar   io.Reader // nil when no image was uploaded
}

// OAuthUserProfile holds the profile data received from an OAuth provider.
type OAuthUserProfile struct {
	Provider   string
	ProviderID string
	Email      string
	Name       string
	AvatarURL  string
}

// TokenResponse represents the response containing JWT tokens.
type TokenResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	TokenType    string    `json:"token_type"`
}

// Service defines the interface for the account identity workflow.
type Service interface {
	Register(ctx context.Context, input RegisterInput) (*User, error)
	Login(ctx context.Context, email, password string) (*User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*User, error)
	FindOrCreateOAuthUser(ctx context.Context, profile OAuthUserProfile) (usr *User, wasCreated bool, err error)
}

// TokenService defines the interface for JWT operations.
type TokenService interface {
	GenerateAccessToken(usr *User) (string, time.Time, error)
	GenerateRefreshToken(usr *User) (string, time.Time, error)
	ValidateToken(tokenString string) (*Claims, error)
	ParseRefreshToken(refreshTokenString string) (*Claims, error)
}

// Claims represents the JWT claims structure.
type Claims struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email"`
	jwt.RegisteredClaims
}

// File: internal/auth/oauth_service.go
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"picstream_backend/internal/common"
	"picstream_backend/internal/config"
	"picstream_backend/internal/shared"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// OAuthProvider represents an OAuth provider type.
type OAuthProvider string

const (
	ProviderGoogle OAuthProvider = "google"
)

// OAuthService defines the interface for OAuth operations.
type OAuthService interface {
	GetGoogleLoginURL(c *gin.Context) (string, error)
	HandleGoogleCallback(c *gin.Context, code string, state string) (*shared.User, *shared.TokenResponse, error)
}

type oauthService struct {
	cfg          *config.Config
	userService  shared.Service
	tokenService shared.TokenService
	logger       *zap.Logger
}

// NewOAuthService creates a new OAuth service.
func NewOAuthService(
	cfg *config.Config,
	userService shared.Service,
	tokenService shared.TokenService,
	logger *zap.Logger,
) OAuthService {
	return &oauthService{
		cfg:          cfg,
		userService:  userService,
		tokenService: tokenService,
		logger:       logger.Named("OAuthService"),
	}
}

// GetGoogleLoginURL generates the URL for Google OAuth login and sets the
// state cookie used to verify the callback.
func (s *oauthService) GetGoogleLoginURL(c *gin.Context) (string, error) {
	state, err := generateAndSetOAuthState(c, s.cfg)
	if err != nil {
		s.logger.Error("Failed to generate OAuth state for Google", zap.Error(err))
		return "", common.ErrInternalServer.WithDetails("Could not initiate Google login.")
	}
	googleCfg := getGoogleOAuthConfig(s.cfg)
	authURL := googleCfg.AuthCodeURL(state, oauth2.AccessTypeOffline)
	return authURL, nil
}

// HandleGoogleCallback processes the callback from Google: verifies state,
// exchanges the code, fetches the userinfo profile, and resolves it to an
// account.
func (s *oauthService) HandleGoogleCallback(c *gin.Context, code string, state string) (*shared.User, *shared.TokenResponse, error) {
	storedState, err := getOAuthCookie(c, s.cfg, s.cfg.OAuthStateCookieName)
	if err != nil {
		s.logger.Error("Failed to get stored OAuth state for Google callback", zap.Error(err))
		return nil, nil, common.ErrBadRequest.WithDetails("Invalid session or state mismatch.")
	}
	if state != storedState {
		s.logger.Error("Google OAuth state mismatch")
		return nil, nil, common.ErrBadRequest.WithDetails("OAuth state mismatch. Possible CSRF attack.")
	}

	googleCfg := getGoogleOAuthConfig(s.cfg)
	ctx := context.WithValue(c.Request.Context(), oauth2.HTTPClient, http.DefaultClient)

	token, err := googleCfg.Exchange(ctx, code)
	if err != nil {
		s.logger.Error("Failed to exchange Google auth code for token", zap.Error(err))
		return nil, nil, common.ErrServiceUnavailable.WithDetails("Could not exchange Google auth code.")
	}
	if !token.Valid() {
		s.logger.Error("Google token received is invalid")
		return nil, nil, common.ErrServiceUnavailable.WithDetails("Received invalid token from Google.")
	}

	profile, err := s.fetchGoogleProfile(ctx, googleCfg, token)
	if err != nil {
		return nil, nil, err
	}

	appUser, _, err := s.userService.FindOrCreateOAuthUser(c.Request.Context(), *profile)
	if err != nil {
		s.logger.Error("Failed to find or create account from Google profile", zap.Error(err))
		if _, ok := common.IsAPIError(err); ok {
			return nil, nil, err
		}
		return nil, nil, common.ErrInternalServer.WithDetails("Failed to process account after Google login.")
	}

	accessToken, accessExpiresAt, err := s.tokenService.GenerateAccessToken(appUser)
	if err != nil {
		s.logger.Error("Failed to generate access token after Google login", zap.Error(err), zap.String("userID", appUser.ID.String()))
		return nil, nil, common.ErrInternalServer.WithDetails("Could not generate access token.")
	}
	refreshToken, _, err := s.tokenService.GenerateRefreshToken(appUser)
	if err != nil {
		s.logger.Error("Failed to generate refresh token after Google login", zap.Error(err), zap.String("userID", appUser.ID.String()))
		return nil, nil, common.ErrInternalServer.WithDetails("Could not generate refresh token.")
	}

	tokenResponse := &shared.TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresAt:    accessExpiresAt,
	}

	s.logger.Info("Google OAuth login successful", zap.String("userID", appUser.ID.String()))
	return appUser, tokenResponse, nil
}

func (s *oauthService) fetchGoogleProfile(ctx context.Context, googleCfg *oauth2.Config, token *oauth2.Token) (*shared.OAuthUserProfile, error) {
	client := googleCfg.Client(ctx, token)
	userInfoResp, err := client.Get(GoogleUserInfoURL)
	if err != nil {
		s.logger.Error("Failed to fetch user info from Google", zap.Error(err))
		return nil, common.ErrServiceUnavailable.WithDetails("Could not fetch user info from Google.")
	}
	defer userInfoResp.Body.Close()

	if userInfoResp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(userInfoResp.Body)
		s.logger.Error("Google user info request failed", zap.Int("status", userInfoResp.StatusCode), zap.String("body", string(bodyBytes)))
		return nil, common.ErrServiceUnavailable.WithDetails(fmt.Sprintf("Google returned status %d for user info.", userInfoResp.StatusCode))
	}

	var googleUser struct {
		Sub     string `json:"sub"`
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := json.NewDecoder(userInfoResp.Body).Decode(&googleUser); err != nil {
		s.logger.Error("Failed to decode Google user info", zap.Error(err))
		return nil, common.ErrServiceUnavailable.WithDetails("Could not process Google user information.")
	}
	if googleUser.Sub == "" || googleUser.Email == "" {
		s.logger.Error("Google user info is missing subject or email")
		return nil, common.ErrServiceUnavailable.WithDetails("Google returned an incomplete profile.")
	}

	return &shared.OAuthUserProfile{
		Provider:   string(ProviderGoogle),
		ProviderID: googleUser.Sub,
		Email:      strings.ToLower(googleUser.Email),
		Name:       googleUser.Name,
		AvatarURL:  googleUser.Picture,
	}, nil
}

// File: internal/auth/handler.go
package auth

import (
	"errors"
	"net/http"
	"net/url"

	"picstream_backend/internal/common"
	"picstream_backend/internal/config"
	"picstream_backend/internal/shared"
	"picstream_backend/internal/user"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// Handler struct holds dependencies for auth handlers.
type Handler struct {
	userService  shared.Service
	tokenService shared.TokenService
	oauthService OAuthService
	cfg          *config.Config
	logger       *zap.Logger
}

// NewHandler creates a new auth handler.
func NewHandler(
	userService shared.Service,
	tokenService shared.TokenService,
	oauthService OAuthService,
	cfg *config.Config,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		userService:  userService,
		tokenService: tokenService,
		oauthService: oauthService,
		cfg:          cfg,
		logger:       logger,
	}
}

// RegisterRoutes sets up the routes for authentication operations.
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/register", h.register)
		authGroup.POST("/login", h.login)
		authGroup.POST("/refresh-token", h.refreshToken)
		authGroup.GET("/google/redirect", h.googleRedirect)
		authGroup.GET("/google/callback", h.googleCallback)
	}
}

func (h *Handler) register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBind(&req); err != nil {
		h.logger.Warn("Register: Invalid request body", zap.Error(err))
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			common.RespondWithError(c, common.NewValidationAPIError(common.FormatValidationErrors(ve)))
			return
		}
		common.RespondWithError(c, common.ErrBadRequest.WithDetails(err.Error()))
		return
	}

	input := shared.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	}

	// The image is optional; when present it must be a well-formed image
	// payload, which the derivative generator verifies by decoding it.
	if fileHeader, err := c.FormFile("image"); err == nil && fileHeader != nil {
		file, openErr := fileHeader.Open()
		if openErr != nil {
			h.logger.Warn("Register: failed to open uploaded image", zap.Error(openErr))
			common.RespondWithError(c, common.ErrBadRequest.WithDetails("Could not read the uploaded image."))
			return
		}
		defer file.Close()
		input.Avatar = file
	}

	registeredUser, err := h.userService.Register(c.Request.Context(), input)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}

	tokenResponse, err := h.issueTokens(registeredUser)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}

	response := gin.H{
		"user":  user.ToUserResponse(registeredUser),
		"token": tokenResponse,
	}
	common.RespondCreated(c, "Account registered successfully.", response)
}

func (h *Handler) login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Login: Invalid request body", zap.Error(err))
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			common.RespondWithError(c, common.NewValidationAPIError(common.FormatValidationErrors(ve)))
			return
		}
		common.RespondWithError(c, common.ErrBadRequest.WithDetails(err.Error()))
		return
	}

	loggedInUser, err := h.userService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}

	tokenResponse, err := h.issueTokens(loggedInUser)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}

	response := gin.H{
		"user":  user.ToUserResponse(loggedInUser),
		"token": tokenResponse,
	}
	common.RespondOK(c, "Login successful.", response)
}

func (h *Handler) refreshToken(c *gin.Context) {
	var req RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Refresh token: Invalid request body", zap.Error(err))
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			common.RespondWithError(c, common.NewValidationAPIError(common.FormatValidationErrors(ve)))
			return
		}
		common.RespondWithError(c, common.ErrBadRequest.WithDetails(err.Error()))
		return
	}

	claims, err := h.tokenService.ParseRefreshToken(req.RefreshToken)
	if err != nil {
		h.logger.Warn("Refresh token validation failed", zap.Error(err))
		common.RespondWithError(c, common.ErrUnauthorized.WithDetails("Invalid or expired refresh token."))
		return
	}

	usr, err := h.userService.GetUserByID(c.Request.Context(), claims.UserID)
	if err != nil {
		h.logger.Error("Account not found for valid refresh token claims", zap.String("userID", claims.UserID.String()), zap.Error(err))
		common.RespondWithError(c, common.ErrUnauthorized.WithDetails("Account associated with refresh token not found."))
		return
	}

	newAccessToken, newAccessExpiresAt, err := h.tokenService.GenerateAccessToken(usr)
	if err != nil {
		h.logger.Error("Failed to generate new access token during refresh", zap.Error(err), zap.String("userID", usr.ID.String()))
		common.RespondWithError(c, common.ErrInternalServer.WithDetails("Could not generate new access token."))
		return
	}

	newTokenResponse := &shared.TokenResponse{
		AccessToken:  newAccessToken,
		RefreshToken: req.RefreshToken,
		TokenType:    "Bearer",
		ExpiresAt:    newAccessExpiresAt,
	}
	common.RespondOK(c, "Token refreshed successfully.", newTokenResponse)
}

func (h *Handler) googleRedirect(c *gin.Context) {
	authURL, err := h.oauthService.GetGoogleLoginURL(c)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	c.Redirect(http.StatusTemporaryRedirect, authURL)
}

func (h *Handler) googleCallback(c *gin.Context) {
	code := c.Query("code")
	state := c.Query("state")
	if errorParam := c.Query("error"); errorParam != "" {
		h.logger.Error("Google OAuth callback error",
			zap.String("error", errorParam),
			zap.String("description", c.Query("error_description")))
		h.failGoogleLogin(c)
		return
	}

	if code == "" || state == "" {
		h.logger.Warn("Google callback missing code or state")
		h.failGoogleLogin(c)
		return
	}

	_, tokenResponse, err := h.oauthService.HandleGoogleCallback(c, code, state)
	if err != nil {
		h.logger.Error("Google OAuth callback failed", zap.Error(err))
		h.failGoogleLogin(c)
		return
	}

	// Browser flow: the credential is a session cookie, not a JSON body.
	maxAge := int(h.cfg.JWTAccessTokenExpiryMinutes.Seconds())
	setSessionCookie(c, h.cfg, tokenResponse.AccessToken, maxAge)
	c.Redirect(http.StatusSeeOther, h.cfg.PostLoginRedirectURL)
}

// failGoogleLogin sends the browser back to the landing page with a generic
// failure marker. The callback is mid-redirect, so a JSON error body would
// strand the user; details stay in the server log.
func (h *Handler) failGoogleLogin(c *gin.Context) {
	c.Redirect(http.StatusSeeOther, loginFailureRedirectURL(h.cfg))
}

func loginFailureRedirectURL(cfg *config.Config) string {
	target, err := url.Parse(cfg.PostLoginRedirectURL)
	if err != nil {
		return "/?login_error=google"
	}
	query := target.Query()
	query.Set("login_error", "google")
	target.RawQuery = query.Encode()
	return target.String()
}

// issueTokens mints the access/refresh pair for a resolved account.
func (h *Handler) issueTokens(usr *shared.User) (*shared.TokenResponse, error) {
	accessToken, accessExpiresAt, err := h.tokenService.GenerateAccessToken(usr)
	if err != nil {
		h.logger.Error("Failed to generate access token", zap.Error(err), zap.String("userID", usr.ID.String()))
		return nil, common.ErrInternalServer.WithDetails("Could not generate access token.")
	}
	refreshToken, _, err := h.tokenService.GenerateRefreshToken(usr)
	if err != nil {
		h.logger.Error("Failed to generate refresh token", zap.Error(err), zap.String("userID", usr.ID.String()))
		return nil, common.ErrInternalServer.WithDetails("Could not generate refresh token.")
	}
	return &shared.TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresAt:    accessExpiresAt,
	}, nil
}

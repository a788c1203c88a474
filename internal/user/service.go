// File: internal/user/service.go
package user

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"picstream_backend/internal/avatar"
	"picstream_backend/internal/common"
	"picstream_backend/internal/config"
	"picstream_backend/internal/platform/crypto"
	"picstream_backend/internal/shared"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DerivativeGenerator is the slice of the avatar service the identity
// resolver depends on.
type DerivativeGenerator interface {
	Generate(src io.Reader) (string, error)
	GenerateFromURL(ctx context.Context, url string) (string, error)
	Remove(base string) error
}

// ServiceImplementation implements the shared.Service interface.
type ServiceImplementation struct {
	repo        Repository
	derivatives DerivativeGenerator
	cfg         *config.Config
	logger      *zap.Logger
}

var _ shared.Service = (*ServiceImplementation)(nil)

// NewService creates a new account service.
func NewService(
	repo Repository,
	derivatives DerivativeGenerator,
	cfg *config.Config,
	logger *zap.Logger,
) *ServiceImplementation {
	return &ServiceImplementation{
		repo:        repo,
		derivatives: derivatives,
		cfg:         cfg,
		logger:      logger.Named("UserService"),
	}
}

// duplicateEmailError is the per-field shape for a taken email. Both the
// pre-check and a late unique-index violation map here, so clients see one
// consistent response no matter which side of the race they land on.
func duplicateEmailError() *common.APIError {
	return common.NewValidationAPIError(map[string]string{
		"email": "The email has already been taken.",
	})
}

// Register creates a new password-based account. Derivatives are generated
// before the row is inserted; if the insert then fails, the files are removed
// so an account can never reference a missing or partial derivative set.
func (s *ServiceImplementation) Register(ctx context.Context, input shared.RegisterInput) (*shared.User, error) {
	_, err := s.repo.FindByEmail(ctx, input.Email)
	if err == nil {
		return nil, duplicateEmailError()
	}
	if !errors.Is(err, common.ErrNotFound) {
		return nil, fmt.Errorf("failed to check existing account by email: %w", err)
	}

	hashedPassword, err := common.HashPassword(input.Password, s.cfg.BcryptCost)
	if err != nil {
		s.logger.Error("Failed to hash password during registration", zap.Error(err))
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	var avatarBase *string
	if input.Avatar != nil {
		base, err := s.derivatives.Generate(input.Avatar)
		if err != nil {
			if errors.Is(err, avatar.ErrUndecodable) {
				return nil, common.NewValidationAPIError(map[string]string{
					"image": "The image field must be a valid image file.",
				})
			}
			s.logger.Error("Failed to generate avatar derivatives", zap.Error(err))
			return nil, common.ErrInternalServer.WithDetails("Could not process the uploaded image.")
		}
		avatarBase = &base
	}

	now := time.Now()
	account := &User{
		BaseModel: common.BaseModel{
			ID:        uuid.New(),
			CreatedAt: now,
			UpdatedAt: now,
		},
		Name:            input.Name,
		Email:           input.Email,
		PasswordHash:    hashedPassword,
		AvatarFilename:  avatarBase,
		EmailVerifiedAt: &now,
	}

	if err := s.repo.Create(ctx, account); err != nil {
		if avatarBase != nil {
			if rmErr := s.derivatives.Remove(*avatarBase); rmErr != nil {
				s.logger.Warn("Failed to clean up derivatives after create failure",
					zap.String("base", *avatarBase), zap.Error(rmErr))
			}
		}
		if errors.Is(err, common.ErrConflict) {
			// Lost the race with a concurrent registration for the same email.
			return nil, duplicateEmailError()
		}
		s.logger.Error("Failed to create account in repository", zap.Error(err), zap.String("email", input.Email))
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	s.logger.Info("Account registered successfully", zap.String("userID", account.ID.String()))
	return DBToShared(account), nil
}

// Login resolves a password credential to an account. Unknown email and wrong
// password both return the same unauthorized error, so the response carries no
// account-enumeration signal.
func (s *ServiceImplementation) Login(ctx context.Context, email, password string) (*shared.User, error) {
	invalidCredentials := common.ErrUnauthorized.WithDetails("Incorrect email or password.")

	account, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			s.logger.Info("Login attempt for unknown email", zap.String("email", NormalizeEmail(email)))
			return nil, invalidCredentials
		}
		s.logger.Error("Error finding account by email during login", zap.Error(err))
		return nil, common.ErrInternalServer.WithDetails("Login failed due to an internal error.")
	}

	if !common.CheckPasswordHash(password, account.PasswordHash) {
		s.logger.Info("Login attempt with wrong password", zap.String("userID", account.ID.String()))
		return nil, invalidCredentials
	}

	s.logger.Info("Account logged in successfully", zap.String("userID", account.ID.String()))
	return DBToShared(account), nil
}

// GetUserByID fetches an account by its ID.
func (s *ServiceImplementation) GetUserByID(ctx context.Context, id uuid.UUID) (*shared.User, error) {
	account, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return DBToShared(account), nil
}

// FindOrCreateOAuthUser resolves an OAuth profile to an account. An existing
// account with the profile's email is reused as-is: the external ID is not
// backfilled and the stored password hash is untouched. A new account gets a
// random unusable password secret, so it can only authenticate via the
// provider.
func (s *ServiceImplementation) FindOrCreateOAuthUser(ctx context.Context, profile shared.OAuthUserProfile) (*shared.User, bool, error) {
	existing, err := s.repo.FindByEmail(ctx, profile.Email)
	if err == nil {
		if existing.ExternalID == nil {
			s.logger.Warn("OAuth login reusing password account without linking provider identity",
				zap.String("userID", existing.ID.String()),
				zap.String("provider", profile.Provider))
		}
		return DBToShared(existing), false, nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		s.logger.Error("Error finding account by email for OAuth profile", zap.Error(err))
		return nil, false, err
	}

	account, err := s.createFromOAuthProfile(ctx, profile)
	if err != nil {
		if errors.Is(err, common.ErrConflict) {
			// A concurrent callback or registration created the account first;
			// resolve to it rather than failing the login.
			if existing, findErr := s.repo.FindByEmail(ctx, profile.Email); findErr == nil {
				return DBToShared(existing), false, nil
			}
		}
		return nil, false, err
	}

	s.logger.Info("New OAuth account created successfully", zap.String("userID", account.ID.String()))
	return DBToShared(account), true, nil
}

func (s *ServiceImplementation) createFromOAuthProfile(ctx context.Context, profile shared.OAuthUserProfile) (*User, error) {
	var avatarBase *string
	if profile.AvatarURL != "" {
		base, err := s.derivatives.GenerateFromURL(ctx, profile.AvatarURL)
		if err != nil {
			s.logger.Error("Failed to generate derivatives from provider avatar",
				zap.String("url", profile.AvatarURL), zap.Error(err))
			return nil, common.ErrServiceUnavailable.WithDetails("Could not process the provider avatar.")
		}
		avatarBase = &base
	}

	randomSecret, err := crypto.GenerateSecureRandomString(16)
	if err != nil {
		return nil, fmt.Errorf("failed to generate account secret: %w", err)
	}
	hashedSecret, err := common.HashPassword(randomSecret, s.cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash account secret: %w", err)
	}

	externalID := fmt.Sprintf("%s:%s", profile.Provider, profile.ProviderID)
	now := time.Now()
	account := &User{
		BaseModel: common.BaseModel{
			ID:        uuid.New(),
			CreatedAt: now,
			UpdatedAt: now,
		},
		Name:            profile.Name,
		Email:           profile.Email,
		PasswordHash:    hashedSecret,
		ExternalID:      &externalID,
		AvatarFilename:  avatarBase,
		EmailVerifiedAt: &now,
	}

	if err := s.repo.Create(ctx, account); err != nil {
		if avatarBase != nil {
			if rmErr := s.derivatives.Remove(*avatarBase); rmErr != nil {
				s.logger.Warn("Failed to clean up derivatives after create failure",
					zap.String("base", *avatarBase), zap.Error(rmErr))
			}
		}
		return nil, err
	}
	return account, nil
}

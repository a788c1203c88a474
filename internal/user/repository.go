// File: internal/user/repository.go
package user

import (
	"context"
	"errors"
	"strings"

	"picstream_backend/internal/common"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository defines the interface for account data operations.
type Repository interface {
	Create(ctx context.Context, user *User) error
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*User, error)
	ListAvatarFilenames(ctx context.Context) ([]string, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewGORMRepository creates a new GORM account repository.
func NewGORMRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

// NormalizeEmail lowercases and trims an email; accounts are unique on the
// normalized value.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Create inserts a new account record. Email uniqueness is enforced by the
// database index; a unique violation surfaces as ErrConflict regardless of
// whether the caller pre-checked.
func (r *gormRepository) Create(ctx context.Context, user *User) error {
	user.Email = NormalizeEmail(user.Email)
	err := r.db.WithContext(ctx).Create(user).Error
	if err != nil {
		if isUniqueViolation(err) {
			return common.ErrConflict.WithDetails("An account with this email already exists.")
		}
		return err
	}
	return nil
}

// FindByEmail retrieves an account by its (normalized) email address.
func (r *gormRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	var account User
	err := r.db.WithContext(ctx).Where("email = ?", NormalizeEmail(email)).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrNotFound.WithDetails("Account not found with this email.")
		}
		return nil, err
	}
	return &account, nil
}

// FindByID retrieves an account by its ID.
func (r *gormRepository) FindByID(ctx context.Context, id uuid.UUID) (*User, error) {
	var account User
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrNotFound.WithDetails("Account not found with this ID.")
		}
		return nil, err
	}
	return &account, nil
}

// ListAvatarFilenames returns every avatar base token referenced by an account.
func (r *gormRepository) ListAvatarFilenames(ctx context.Context) ([]string, error) {
	var filenames []string
	err := r.db.WithContext(ctx).
		Model(&User{}).
		Where("avatar_filename IS NOT NULL").
		Pluck("avatar_filename", &filenames).Error
	if err != nil {
		return nil, err
	}
	return filenames, nil
}

func isUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(err.Error(), "unique constraint") ||
		strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key value violates unique constraint")
}

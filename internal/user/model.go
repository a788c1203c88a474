// File: internal/user/model.go
package user

import (
	"time"

	"picstream_backend/internal/common"
	"picstream_backend/internal/shared"

	"github.com/google/uuid"
)

// User represents the account model in the database.
//
// Email is stored lowercased and trimmed; the unique index on it is the
// authority on account uniqueness. OAuth-created accounts carry a bcrypt hash
// of a random secret, so they can never authenticate locally by password.
type User struct {
	common.BaseModel         // Embeds ID, CreatedAt, UpdatedAt
	Name             string  `gorm:"type:varchar(255);not null"`
	Email            string  `gorm:"type:varchar(255);not null;uniqueIndex:users_email_key"`
	PasswordHash     string  `gorm:"type:varchar(255);not null"`
	ExternalID       *string `gorm:"type:varchar(255);index"` // e.g. "google:1073741..."
	AvatarFilename   *string `gorm:"type:varchar(255)"`       // suffix-free base token of the derivative set
	EmailVerifiedAt  *time.Time
}

// TableName specifies the table name for the User model.
func (User) TableName() string {
	return "users"
}

// DBToShared converts a GORM User to the shared representation. The password
// hash never leaves this package.
func DBToShared(u *User) *shared.User {
	return &shared.User{
		ID:              u.ID,
		Name:            u.Name,
		Email:           u.Email,
		ExternalID:      u.ExternalID,
		AvatarFilename:  u.AvatarFilename,
		EmailVerifiedAt: u.EmailVerifiedAt,
		CreatedAt:       u.CreatedAt,
		UpdatedAt:       u.UpdatedAt,
	}
}

// UserResponse defines the structure for account data sent in API responses.
type UserResponse struct {
	ID              uuid.UUID  `json:"id"`
	Name            string     `json:"name"`
	Email           string     `json:"email"`
	AvatarFilename  *string    `json:"avatar_filename,omitempty"`
	EmailVerifiedAt *time.Time `json:"email_verified_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// ToUserResponse converts a shared.User to a UserResponse DTO.
func ToUserResponse(usr *shared.User) UserResponse {
	return UserResponse{
		ID:              usr.ID,
		Name:            usr.Name,
		Email:           usr.Email,
		AvatarFilename:  usr.AvatarFilename,
		EmailVerifiedAt: usr.EmailVerifiedAt,
		CreatedAt:       usr.CreatedAt,
		UpdatedAt:       usr.UpdatedAt,
	}
}

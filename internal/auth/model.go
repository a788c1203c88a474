// File: internal/auth/model.go
package auth

// RegisterRequest is the multipart registration form. The image file is read
// separately from the multipart payload; it is optional.
type RegisterRequest struct {
	Name     string `form:"name" binding:"required,max=255"`
	Email    string `form:"email" binding:"required,email,max=255"`
	Password string `form:"password" binding:"required,min=6"`
}

// LoginRequest is the JSON login body.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

// RefreshTokenRequest is the JSON refresh body.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

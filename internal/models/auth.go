package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RegisterRequest is the self-service sign-up payload. Admins supply InstitutionName;
// students supply StudentName and the InstitutionID they belong to.
type RegisterRequest struct {
	Email           string   `json:"email" validate:"required,email"`
	Password        string   `json:"password" validate:"required,min=6"`
	ConfirmPassword string   `json:"confirm_password" validate:"required,eqfield=Password"`
	Role            UserRole `json:"role" validate:"required,oneof=ADMIN STUDENT"`
	InstitutionName string   `json:"institution_name" validate:"required_if=Role ADMIN"`
	StudentName     string   `json:"student_name" validate:"required_if=Role STUDENT"`
	ParentName      string   `json:"parent_name"`
	StudentCode     string   `json:"student_code"`
	InstitutionID   string   `json:"institution_id" validate:"required_if=Role STUDENT"`
	Phone           string   `json:"phone"`
	IP              string   `json:"-"`
	UserAgent       string   `json:"-"`
}

// LoginRequest holds credentials for authenticating a user.
type LoginRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required"`
	IP        string `json:"-"`
	UserAgent string `json:"-"`
}

// LoginResponse returns the issued tokens and user info.
type LoginResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresIn    int64     `json:"expires_in"`
	User         UserInfo  `json:"user"`
	IssuedAt     time.Time `json:"issued_at"`
}

// RefreshTokenRequest exchanges a refresh token for a new access token.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
	IP           string `json:"-"`
	UserAgent    string `json:"-"`
}

// RefreshTokenResponse returns the refreshed tokens.
type RefreshTokenResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresIn    int64     `json:"expires_in"`
	IssuedAt     time.Time `json:"issued_at"`
}

// ChangePasswordRequest payload for updating password.
type ChangePasswordRequest struct {
	OldPassword     string `json:"old_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=6"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=NewPassword"`
}

// UserInfo describes the authenticated user in responses.
type UserInfo struct {
	ID              string   `json:"id"`
	Email           string   `json:"email"`
	Role            UserRole `json:"role"`
	DisplayName     string   `json:"display_name"`
	InstitutionID   string   `json:"institution_id"`
	InstitutionName string   `json:"institution_name,omitempty"`
}

// JWTClaims is the session context carried by every authenticated request.
type JWTClaims struct {
	UserID        string   `json:"user_id"`
	Role          UserRole `json:"role"`
	Email         string   `json:"email"`
	DisplayName   string   `json:"display_name"`
	InstitutionID string   `json:"institution_id"`
	jwt.RegisteredClaims
}

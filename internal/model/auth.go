package model

import "time"

type RegisterRequest struct {
	Name     string `json:"name" binding:"required,min=2,max=50"`
	Email    string `json:"email" binding:"required,email,max=254"`
	Password string `json:"password" binding:"required,min=6,max=128"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

type LogoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type UpdateProfileRequest struct {
	Name  string `json:"name" binding:"required,min=2,max=50"`
	Email string `json:"email" binding:"required,email,max=254"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required,min=6,max=128"`
}

type AuthResponse struct {
	User         UserResponse `json:"user"`
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
	ExpiresIn    int64        `json:"expiresIn"`
}

type RefreshResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

type AuthConfigResponse struct {
	AllowSignup bool `json:"allowSignup"`
}

type ProfileResponse struct {
	User UserResponse `json:"user"`
}

type ProfileUpdateResponse struct {
	Message string       `json:"message"`
	User    UserResponse `json:"user"`
}

// AuthUser is the identity resolved from a verified access token.
type AuthUser struct {
	ID    string
	Email string
}

type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type UserResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

func (u *User) Public() UserResponse {
	return UserResponse{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
	}
}

// Session revocation reasons stored alongside a revoked record.
const (
	RevokeReasonRotated         = "rotated"
	RevokeReasonLogout          = "logout"
	RevokeReasonLogoutAll       = "logout_all"
	RevokeReasonReuseDetected   = "reuse_detected"
	RevokeReasonPasswordChanged = "password_changed"
	RevokeReasonUndelivered     = "undelivered" // successor whose secret never reached the client
)

// RefreshSession is one persisted refresh-token record. Only the hash of the
// raw secret is ever stored.
type RefreshSession struct {
	ID            string
	UserID        string
	TokenHash     string
	IssuedAt      time.Time
	ExpiresAt     time.Time
	RevokedAt     *time.Time
	RevokedReason *string
	ReplacedBy    *string
}

func (s *RefreshSession) Revoked() bool {
	return s.RevokedAt != nil
}

func (s *RefreshSession) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// SessionPair is handed to the client on login, registration and rotation.
type SessionPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
}

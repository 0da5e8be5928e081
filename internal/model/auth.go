package model

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleUser   Role = "user"
	RoleDoctor Role = "doctor"
	RoleAdmin  Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleDoctor, RoleAdmin:
		return true
	default:
		return false
	}
}

// Account is a registered user. PasswordHash and RefreshTokenHash never leave the server.
type Account struct {
	ID                  uuid.UUID
	FullName            string
	Phone               string
	Email               string
	PasswordHash        string
	Role                Role
	FailedLoginAttempts int
	LockUntil           *time.Time
	RefreshTokenHash    string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// LockoutEvent describes a lock that was just engaged.
type LockoutEvent struct {
	AccountID uuid.UUID
	Phone     string
	Failures  int
	Until     time.Time
}

// AuthUser is the identity carried by a verified access token.
type AuthUser struct {
	ID   uuid.UUID
	Role Role
}

type SignupRequest struct {
	FullName string `json:"fullName"`
	Phone    string `json:"phone"`
	Email    string `json:"email,omitempty"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type DeleteTestUserRequest struct {
	Phone string `json:"phone"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type UserProjection struct {
	ID       string `json:"id"`
	FullName string `json:"fullName"`
	Role     Role   `json:"role"`
}

type AuthResponse struct {
	AccessToken  string         `json:"accessToken"`
	RefreshToken string         `json:"refreshToken"`
	User         UserProjection `json:"user"`
}

type RefreshResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

func (a *Account) Projection() UserProjection {
	return UserProjection{
		ID:       a.ID.String(),
		FullName: a.FullName,
		Role:     a.Role,
	}
}

package model

import (
	"time"

	"github.com/google/uuid"
)

// Role distinguishes candidates from exam administrators.
type Role string

const (
	RoleCandidate Role = "candidate"
	RoleAdmin     Role = "admin"
)

// Profile is an authenticated user of the platform.
type Profile struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	FullName     string    `json:"full_name"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// LoginRequest is the payload for email/password login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email,max=255"`
	Password string `json:"password" binding:"required,min=6,max=128"`
}

// LoginResponse returns the signed token and the profile it belongs to.
type LoginResponse struct {
	Token   string  `json:"token"`
	Profile Profile `json:"profile"`
}

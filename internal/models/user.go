package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// User represents a registered account held by the auth service.
type User struct {
	// ID is the unique identifier for the user (UUID format).
	// It is also the key of the user's Users, listProfil and MyProfil records.
	ID string

	// Email is the user's email address (unique, lower-cased).
	// Used for login and copied into the user's profile on save.
	Email string

	// DisplayName is projected into Users/{id}.nom at registration.
	DisplayName string

	// PasswordHash is the bcrypt hash of the user's password.
	PasswordHash string

	// CreatedAt is the Unix timestamp when the user account was created.
	CreatedAt int64

	// UpdatedAt is the Unix timestamp of the last account change.
	UpdatedAt int64
}

// NewUser creates a user with a fresh ID and timestamps.
func NewUser(email, displayName, passwordHash string) *User {
	now := time.Now().Unix()
	return &User{
		ID:           uuid.New().String(),
		Email:        strings.ToLower(strings.TrimSpace(email)),
		DisplayName:  strings.TrimSpace(displayName),
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// UserEntry is the minimal projection stored under Users/{id}.
type UserEntry struct {
	// ID is the record key; it is not part of the stored value.
	ID string `json:"-"`

	// Nom is the user's display name.
	Nom string `json:"nom"`
}

package users

import (
	"errors"
	"time"
)

var (
	// ErrNotFound indicates the user does not exist.
	ErrNotFound = errors.New("user not found")
	// ErrEmailTaken indicates the email is already registered.
	ErrEmailTaken = errors.New("user already exists")
	// ErrWrongPassword indicates a failed credential check.
	ErrWrongPassword = errors.New("password does not match")
)

// User is an account row. Provider is set at registration and never
// mutated by the booking core.
type User struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	AvatarURL    string
	Provider     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Profile is the public shape exposed over HTTP; it never carries the
// password hash.
type Profile struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url,omitempty"`
	Provider  bool   `json:"provider"`
}

// PublicProfile strips credentials from a user row.
func (u *User) PublicProfile() Profile {
	return Profile{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		AvatarURL: u.AvatarURL,
		Provider:  u.Provider,
	}
}

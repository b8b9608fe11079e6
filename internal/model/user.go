package model

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// UserStore is the session store adapter: persistence operations for users
// and their single active refresh token.
type UserStore interface {
	Create(ctx context.Context, user User) (User, error)
	Exists(ctx context.Context, username, email string) (bool, error)
	FindByLogin(ctx context.Context, usernameOrEmail string) (User, error)
	GetByID(ctx context.Context, id uuid.UUID) (User, error)
	List(ctx context.Context) ([]User, error)
	SetRefreshToken(ctx context.Context, id uuid.UUID, tokenHash *string) error
	RotateRefreshToken(ctx context.Context, id uuid.UUID, presentedHash, nextHash string) error
	GetPasswordHash(ctx context.Context, id uuid.UUID) (string, error)
	SetPasswordHash(ctx context.Context, id uuid.UUID, passwordHash string) error
}

// User represents a stored user with authentication material.
type User struct {
	ID               uuid.UUID
	Username         string
	Email            string
	FullName         string
	PasswordHash     string
	AvatarURL        *string
	CoverImageURL    *string
	RefreshTokenHash *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// PublicUser is a user with password hash and refresh token stripped.
// It is the only user shape that leaves the service layer.
type PublicUser struct {
	ID            uuid.UUID `json:"id"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	FullName      string    `json:"fullname"`
	AvatarURL     *string   `json:"avatar,omitempty"`
	CoverImageURL *string   `json:"coverImage,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Sanitize drops the sensitive fields of u.
func (u User) Sanitize() PublicUser {
	return PublicUser{
		ID:            u.ID,
		Username:      u.Username,
		Email:         u.Email,
		FullName:      u.FullName,
		AvatarURL:     u.AvatarURL,
		CoverImageURL: u.CoverImageURL,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
}

// RegisterParams contains the fields accepted on registration. Asset URLs are
// references produced by the storage collaborator, never raw bytes.
type RegisterParams struct {
	Username      string
	Email         string
	FullName      string
	Password      string
	AvatarURL     string
	CoverImageURL string
}

// LoginParams identifies a user by username or email.
type LoginParams struct {
	Username string
	Email    string
	Password string
}

// ChangePasswordParams contains the old and the new password.
type ChangePasswordParams struct {
	OldPassword string
	NewPassword string
}

// Session is the result of a successful login.
type Session struct {
	User   PublicUser
	Tokens TokenPair
}

// Identity is an authenticated caller, produced by access-token verification
// at the transport boundary and passed explicitly into the core.
type Identity struct {
	UserID uuid.UUID
}

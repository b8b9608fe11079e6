package model

import (
	"time"

	"github.com/google/uuid"
)

// TokenPurpose distinguishes access tokens from refresh tokens.
type TokenPurpose string

const (
	PurposeAccess  TokenPurpose = "access"
	PurposeRefresh TokenPurpose = "refresh"
)

// TokenManager issues and verifies signed access and refresh tokens.
type TokenManager interface {
	IssueAccessToken(userID uuid.UUID) (IssuedToken, error)
	IssueRefreshToken(userID uuid.UUID) (IssuedToken, error)
	Verify(token string, purpose TokenPurpose) (uuid.UUID, error)
}

// IssuedToken is a signed token and the moment it stops being valid.
type IssuedToken struct {
	Value     string
	ExpiresAt time.Time
}

// TokenPair is an access token together with its refresh token.
type TokenPair struct {
	Access  IssuedToken
	Refresh IssuedToken
}

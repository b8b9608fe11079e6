package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/dtroode/authkeeper-server/internal/model"
)

const (
	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

var ErrEmptySecret = errors.New("signing secret must not be empty")

// Config holds signing secrets and lifetimes. It is copied at construction
// and never changes afterwards.
type Config struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// Claims represents JWT claims with token type and user ID.
type Claims struct {
	jwt.RegisteredClaims
	UserID    uuid.UUID `json:"user_id"`
	TokenType string    `json:"typ"`
}

// JWT implements model.TokenManager backed by symmetric HMAC with one secret per purpose.
type JWT struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

var _ model.TokenManager = (*JWT)(nil)

// NewJWT creates a token manager. Zero TTLs take the defaults.
func NewJWT(cfg Config) (*JWT, error) {
	if cfg.AccessSecret == "" || cfg.RefreshSecret == "" {
		return nil, ErrEmptySecret
	}
	if cfg.AccessSecret == cfg.RefreshSecret {
		return nil, errors.New("access and refresh secrets must differ")
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = DefaultAccessTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = DefaultRefreshTTL
	}

	return &JWT{
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
		now:           time.Now,
	}, nil
}

// IssueAccessToken creates a short-lived access token.
func (j *JWT) IssueAccessToken(userID uuid.UUID) (model.IssuedToken, error) {
	return j.issue(userID, model.PurposeAccess)
}

// IssueRefreshToken creates a long-lived refresh token.
func (j *JWT) IssueRefreshToken(userID uuid.UUID) (model.IssuedToken, error) {
	return j.issue(userID, model.PurposeRefresh)
}

func (j *JWT) issue(userID uuid.UUID, purpose model.TokenPurpose) (model.IssuedToken, error) {
	secret, ttl := j.params(purpose)

	// Claims carry whole seconds, so ExpiresAt is reported at that precision too.
	now := j.now().Truncate(time.Second)
	expiresAt := now.Add(ttl)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		UserID:    userID,
		TokenType: string(purpose),
	})

	signed, err := token.SignedString(secret)
	if err != nil {
		return model.IssuedToken{}, fmt.Errorf("failed to sign %s token: %w", purpose, err)
	}

	return model.IssuedToken{Value: signed, ExpiresAt: expiresAt}, nil
}

// Verify checks that token was issued for purpose, is correctly signed and has
// not expired. A token is invalid at or after its expiry instant.
func (j *JWT) Verify(tokenString string, purpose model.TokenPurpose) (uuid.UUID, error) {
	if tokenString == "" {
		return uuid.Nil, model.NewTokenError(model.ReasonMalformed, errors.New("empty token"))
	}

	// The purpose is read first so a token of the other kind is reported as
	// such instead of failing on the secret mismatch.
	unverified := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, unverified); err != nil {
		return uuid.Nil, model.NewTokenError(model.ReasonMalformed, err)
	}
	if unverified.TokenType != string(purpose) {
		return uuid.Nil, model.NewTokenError(model.ReasonWrongPurpose,
			fmt.Errorf("token type mismatch: %q, expected %q", unverified.TokenType, purpose))
	}

	secret, _ := j.params(purpose)
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (interface{}, error) {
			return secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(j.now),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return uuid.Nil, model.NewTokenError(model.ReasonExpired, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return uuid.Nil, model.NewTokenError(model.ReasonBadSignature, err)
	case err != nil:
		return uuid.Nil, model.NewTokenError(model.ReasonMalformed, err)
	case !token.Valid:
		return uuid.Nil, model.NewTokenError(model.ReasonMalformed, errors.New("token is invalid"))
	}

	if claims.UserID == uuid.Nil {
		return uuid.Nil, model.NewTokenError(model.ReasonMalformed, errors.New("token has no user id"))
	}

	return claims.UserID, nil
}

func (j *JWT) params(purpose model.TokenPurpose) ([]byte, time.Duration) {
	if purpose == model.PurposeRefresh {
		return j.refreshSecret, j.refreshTTL
	}
	return j.accessSecret, j.accessTTL
}

package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/dtroode/authkeeper-server/internal/logger"
	"github.com/dtroode/authkeeper-server/internal/model"
)

// TokenService provides high-level operations for issuing, rotating,
// and revoking sessions. It composes the TokenManager and the refresh-token
// slot of the UserStore.
type TokenService struct {
	manager model.TokenManager
	store   model.UserStore
	logger  *logger.Logger
}

func NewTokenService(manager model.TokenManager, store model.UserStore, logger *logger.Logger) *TokenService {
	return &TokenService{manager: manager, store: store, logger: logger}
}

// Issue signs a new pair and makes its refresh token the user's only active one.
// Nothing is written unless both tokens were signed.
func (s *TokenService) Issue(ctx context.Context, userID uuid.UUID) (model.TokenPair, error) {
	pair, err := s.Sign(userID)
	if err != nil {
		return model.TokenPair{}, err
	}
	if err := s.Persist(ctx, userID, pair); err != nil {
		return model.TokenPair{}, err
	}
	return pair, nil
}

// Sign creates a pair without touching the store.
func (s *TokenService) Sign(userID uuid.UUID) (model.TokenPair, error) {
	return s.sign(userID)
}

// Persist makes pair's refresh token the user's only active one.
func (s *TokenService) Persist(ctx context.Context, userID uuid.UUID, pair model.TokenPair) error {
	hash := hashToken(pair.Refresh.Value)
	if err := s.store.SetRefreshToken(ctx, userID, &hash); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.NewAuthError(model.ReasonUserNotFound, err)
		}
		return model.NewStorageError(fmt.Errorf("persist refresh: %w", err))
	}
	return nil
}

// Rotate exchanges a valid, still-current refresh token for a new pair.
// The presented token stops working even if the caller never sees the reply.
func (s *TokenService) Rotate(ctx context.Context, presented string) (model.TokenPair, error) {
	userID, err := s.manager.Verify(presented, model.PurposeRefresh)
	if err != nil {
		return model.TokenPair{}, err
	}

	pair, err := s.sign(userID)
	if err != nil {
		return model.TokenPair{}, err
	}

	err = s.store.RotateRefreshToken(ctx, userID, hashToken(presented), hashToken(pair.Refresh.Value))
	switch {
	case errors.Is(err, model.ErrTokenMismatch):
		s.logger.Info("Token service: presented refresh token is not current",
			"user_id", userID)
		return model.TokenPair{}, model.NewAuthError(model.ReasonSessionRevoked, err)
	case errors.Is(err, model.ErrNotFound):
		return model.TokenPair{}, model.NewAuthError(model.ReasonUserNotFound, err)
	case err != nil:
		return model.TokenPair{}, model.NewStorageError(fmt.Errorf("rotate refresh: %w", err))
	}

	return pair, nil
}

// Revoke clears the user's active refresh token. Revoking an empty slot succeeds.
func (s *TokenService) Revoke(ctx context.Context, userID uuid.UUID) error {
	err := s.store.SetRefreshToken(ctx, userID, nil)
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		return model.NewStorageError(fmt.Errorf("revoke refresh: %w", err))
	}
	return nil
}

// Authenticate resolves an access token into the caller identity.
func (s *TokenService) Authenticate(accessToken string) (model.Identity, error) {
	userID, err := s.manager.Verify(accessToken, model.PurposeAccess)
	if err != nil {
		return model.Identity{}, err
	}
	return model.Identity{UserID: userID}, nil
}

func (s *TokenService) sign(userID uuid.UUID) (model.TokenPair, error) {
	access, err := s.manager.IssueAccessToken(userID)
	if err != nil {
		return model.TokenPair{}, model.NewStorageError(fmt.Errorf("issue access: %w", err))
	}

	refresh, err := s.manager.IssueRefreshToken(userID)
	if err != nil {
		return model.TokenPair{}, model.NewStorageError(fmt.Errorf("issue refresh: %w", err))
	}

	return model.TokenPair{Access: access, Refresh: refresh}, nil
}

func hashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

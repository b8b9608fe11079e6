package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	servermocks "github.com/dtroode/authkeeper-server/internal/mocks"
	"github.com/dtroode/authkeeper-server/internal/model"
	"github.com/dtroode/authkeeper-server/internal/testutil"
)

func issued(v string) model.IssuedToken {
	return model.IssuedToken{Value: v, ExpiresAt: time.Now().Add(time.Hour)}
}

func hashArg(token string) interface{} {
	return mock.MatchedBy(func(h *string) bool {
		return h != nil && *h == hashToken(token)
	})
}

func TestTokenService_Issue(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	manager := servermocks.NewTokenManager(t)
	store := servermocks.NewUserStore(t)

	manager.On("IssueAccessToken", userID).Return(issued("access"), nil).Once()
	manager.On("IssueRefreshToken", userID).Return(issued("refresh"), nil).Once()
	store.On("SetRefreshToken", ctx, userID, hashArg("refresh")).Return(nil).Once()

	svc := NewTokenService(manager, store, testutil.MakeNoopLogger())

	pair, err := svc.Issue(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, "access", pair.Access.Value)
	assert.Equal(t, "refresh", pair.Refresh.Value)
}

func TestTokenService_Issue_ManagerErrorWritesNothing(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	manager := servermocks.NewTokenManager(t)
	store := servermocks.NewUserStore(t)

	manager.On("IssueAccessToken", userID).Return(issued("access"), nil).Once()
	manager.On("IssueRefreshToken", userID).Return(model.IssuedToken{}, assert.AnError).Once()

	svc := NewTokenService(manager, store, testutil.MakeNoopLogger())

	_, err := svc.Issue(ctx, userID)
	require.ErrorIs(t, err, model.ErrStorage)
	store.AssertNotCalled(t, "SetRefreshToken", mock.Anything, mock.Anything, mock.Anything)
}

func TestTokenService_Issue_StoreError(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	manager := servermocks.NewTokenManager(t)
	store := servermocks.NewUserStore(t)

	manager.On("IssueAccessToken", userID).Return(issued("access"), nil)
	manager.On("IssueRefreshToken", userID).Return(issued("refresh"), nil)
	store.On("SetRefreshToken", ctx, userID, mock.Anything).Return(assert.AnError)

	svc := NewTokenService(manager, store, testutil.MakeNoopLogger())

	_, err := svc.Issue(ctx, userID)
	require.ErrorIs(t, err, model.ErrStorage)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestTokenService_SignThenPersist(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	manager := servermocks.NewTokenManager(t)
	store := servermocks.NewUserStore(t)

	manager.On("IssueAccessToken", userID).Return(issued("access"), nil).Once()
	manager.On("IssueRefreshToken", userID).Return(issued("refresh"), nil).Once()

	svc := NewTokenService(manager, store, testutil.MakeNoopLogger())

	pair, err := svc.Sign(userID)
	require.NoError(t, err)
	store.AssertNotCalled(t, "SetRefreshToken", mock.Anything, mock.Anything, mock.Anything)

	store.On("SetRefreshToken", ctx, userID, hashArg("refresh")).Return(model.ErrNotFound).Once()
	err = svc.Persist(ctx, userID, pair)
	assert.ErrorIs(t, err, model.ErrUserNotFound)
}

func TestTokenService_Rotate(t *testing.T) {
	userID := uuid.New()

	tests := []struct {
		name      string
		storeErr  error
		verifyErr error
		wantErr   error
	}{
		{name: "success"},
		{name: "rotated or revoked", storeErr: model.ErrTokenMismatch, wantErr: model.ErrSessionRevoked},
		{name: "user gone", storeErr: model.ErrNotFound, wantErr: model.ErrUserNotFound},
		{name: "storage failure", storeErr: assert.AnError, wantErr: model.ErrStorage},
		{name: "expired token", verifyErr: model.NewTokenError(model.ReasonExpired, nil), wantErr: model.ErrTokenExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			manager := servermocks.NewTokenManager(t)
			store := servermocks.NewUserStore(t)

			if tt.verifyErr != nil {
				manager.On("Verify", "old-refresh", model.PurposeRefresh).Return(uuid.Nil, tt.verifyErr).Once()
			} else {
				manager.On("Verify", "old-refresh", model.PurposeRefresh).Return(userID, nil).Once()
				manager.On("IssueAccessToken", userID).Return(issued("new-access"), nil).Once()
				manager.On("IssueRefreshToken", userID).Return(issued("new-refresh"), nil).Once()
				store.On("RotateRefreshToken", ctx, userID, hashToken("old-refresh"), hashToken("new-refresh")).
					Return(tt.storeErr).Once()
			}

			svc := NewTokenService(manager, store, testutil.MakeNoopLogger())

			pair, err := svc.Rotate(ctx, "old-refresh")
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "new-refresh", pair.Refresh.Value)
		})
	}
}

func TestTokenService_Revoke(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	store := servermocks.NewUserStore(t)
	store.On("SetRefreshToken", ctx, userID, (*string)(nil)).Return(nil).Once()
	store.On("SetRefreshToken", ctx, userID, (*string)(nil)).Return(model.ErrNotFound).Once()
	store.On("SetRefreshToken", ctx, userID, (*string)(nil)).Return(assert.AnError).Once()

	svc := NewTokenService(servermocks.NewTokenManager(t), store, testutil.MakeNoopLogger())

	require.NoError(t, svc.Revoke(ctx, userID))
	require.NoError(t, svc.Revoke(ctx, userID))
	require.ErrorIs(t, svc.Revoke(ctx, userID), model.ErrStorage)
}

func TestTokenService_Authenticate(t *testing.T) {
	userID := uuid.New()

	manager := servermocks.NewTokenManager(t)
	manager.On("Verify", "access", model.PurposeAccess).Return(userID, nil).Once()
	manager.On("Verify", "refresh", model.PurposeAccess).
		Return(uuid.Nil, model.NewTokenError(model.ReasonWrongPurpose, nil)).Once()

	svc := NewTokenService(manager, servermocks.NewUserStore(t), testutil.MakeNoopLogger())

	identity, err := svc.Authenticate("access")
	require.NoError(t, err)
	assert.Equal(t, userID, identity.UserID)

	_, err = svc.Authenticate("refresh")
	assert.ErrorIs(t, err, model.ErrTokenWrongPurpose)
}

func TestHashToken(t *testing.T) {
	assert.Len(t, hashToken("x"), 64)
	assert.Equal(t, hashToken("x"), hashToken("x"))
	assert.NotEqual(t, hashToken("x"), hashToken("y"))
}

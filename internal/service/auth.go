package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dtroode/authkeeper-server/internal/logger"
	"github.com/dtroode/authkeeper-server/internal/model"
	"github.com/dtroode/authkeeper-server/internal/validation"
)

// AuthOptions toggles optional registration rules.
type AuthOptions struct {
	AvatarRequired bool
}

// Auth is the session lifecycle manager: it drives a user from anonymous to
// registered, logged in and logged out.
type Auth struct {
	userStore    model.UserStore
	hasher       model.PasswordHasher
	validator    *validation.Validator
	tokenService *TokenService
	observer     Observer
	logger       *logger.Logger
	opts         AuthOptions
	now          func() time.Time
}

func NewAuth(
	userStore model.UserStore,
	hasher model.PasswordHasher,
	tokenManager model.TokenManager,
	validator *validation.Validator,
	observer Observer,
	logger *logger.Logger,
	opts AuthOptions,
) *Auth {
	if observer == nil {
		observer = nopObserver{}
	}
	return &Auth{
		userStore:    userStore,
		hasher:       hasher,
		validator:    validator,
		tokenService: NewTokenService(tokenManager, userStore, logger),
		observer:     observer,
		logger:       logger,
		opts:         opts,
		now:          time.Now,
	}
}

func (a *Auth) Register(ctx context.Context, params model.RegisterParams) (_ model.PublicUser, err error) {
	defer func() { a.observer.ObserveAuth(OpRegister, err) }()

	username := normalize(params.Username)
	email := normalize(params.Email)
	fullName := strings.TrimSpace(params.FullName)

	a.logger.Debug("Auth service: starting user registration",
		"username", username,
		"email", email)

	err = a.validator.ValidateRequiredFields(
		validation.Field{Name: "username", Value: username},
		validation.Field{Name: "email", Value: email},
		validation.Field{Name: "fullname", Value: fullName},
		validation.Field{Name: "password", Value: params.Password},
	)
	if err != nil {
		return model.PublicUser{}, err
	}
	if err = a.validator.ValidateEmailFormat(email); err != nil {
		return model.PublicUser{}, err
	}
	if err = a.validator.ValidatePassword(params.Password); err != nil {
		return model.PublicUser{}, err
	}
	if a.opts.AvatarRequired && params.AvatarURL == "" {
		err = model.NewValidationError(model.ReasonMissingField, "avatar", "avatar is required")
		return model.PublicUser{}, err
	}

	exists, err := a.userStore.Exists(ctx, username, email)
	if err != nil {
		a.logger.Error("Auth service: failed to check existing user",
			"username", username,
			"error", err.Error())
		err = model.NewStorageError(fmt.Errorf("failed to check existing user: %w", err))
		return model.PublicUser{}, err
	}
	if exists {
		a.logger.Info("Auth service: user already exists",
			"username", username,
			"email", email)
		err = model.NewConflictError("user with email or username already exists", nil)
		return model.PublicUser{}, err
	}

	passwordHash, err := a.hasher.Hash(params.Password)
	if err != nil {
		a.logger.Error("Auth service: failed to hash password",
			"username", username,
			"error", err.Error())
		err = model.NewStorageError(fmt.Errorf("failed to hash password: %w", err))
		return model.PublicUser{}, err
	}

	now := a.now().UTC()
	created, err := a.userStore.Create(ctx, model.User{
		ID:            uuid.New(),
		Username:      username,
		Email:         email,
		FullName:      fullName,
		PasswordHash:  passwordHash,
		AvatarURL:     optional(params.AvatarURL),
		CoverImageURL: optional(params.CoverImageURL),
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if errors.Is(err, model.ErrConflict) {
		a.logger.Info("Auth service: user created concurrently",
			"username", username,
			"email", email)
		err = model.NewConflictError("user with email or username already exists", err)
		return model.PublicUser{}, err
	}
	if err != nil {
		a.logger.Error("Auth service: failed to create user",
			"username", username,
			"error", err.Error())
		err = model.NewStorageError(fmt.Errorf("failed to create user: %w", err))
		return model.PublicUser{}, err
	}

	a.logger.Info("Auth service: user registration completed successfully",
		"user_id", created.ID,
		"username", username)

	return created.Sanitize(), nil
}

func (a *Auth) Login(ctx context.Context, params model.LoginParams) (_ model.Session, err error) {
	defer func() { a.observer.ObserveAuth(OpLogin, err) }()

	username := normalize(params.Username)
	email := normalize(params.Email)

	if err = a.validator.ValidateRequiredLoginFields(username, email, params.Password); err != nil {
		return model.Session{}, err
	}
	if err = a.validator.ValidateEmailAndPasswordFormat(email, params.Password); err != nil {
		return model.Session{}, err
	}

	login := email
	if login == "" {
		login = username
	}

	a.logger.Debug("Auth service: starting user login",
		"login", login)

	user, err := a.userStore.FindByLogin(ctx, login)
	// Either identifier may match when both are given.
	if errors.Is(err, model.ErrNotFound) && email != "" && username != "" {
		login = username
		user, err = a.userStore.FindByLogin(ctx, login)
	}
	if errors.Is(err, model.ErrNotFound) {
		a.hasher.DummyVerify(params.Password)
		a.logger.Info("Auth service: login for unknown user",
			"login", login)
		err = model.NewAuthError(model.ReasonUserNotFound, err)
		return model.Session{}, err
	}
	if err != nil {
		a.logger.Error("Auth service: failed to find user",
			"login", login,
			"error", err.Error())
		err = model.NewStorageError(fmt.Errorf("failed to find user: %w", err))
		return model.Session{}, err
	}

	ok, err := a.hasher.Verify(params.Password, user.PasswordHash)
	if err != nil {
		a.logger.Error("Auth service: stored password hash is unreadable",
			"user_id", user.ID,
			"error", err.Error())
		err = model.NewStorageError(fmt.Errorf("failed to verify password: %w", err))
		return model.Session{}, err
	}
	if !ok {
		a.logger.Info("Auth service: wrong password",
			"user_id", user.ID)
		err = model.NewAuthError(model.ReasonBadPassword, nil)
		return model.Session{}, err
	}

	pair, err := a.tokenService.Sign(user.ID)
	if err != nil {
		a.logger.Error("Auth service: failed to sign session",
			"user_id", user.ID,
			"error", err.Error())
		return model.Session{}, err
	}

	// Upgrading clears the stored refresh token, so it runs between signing and persisting.
	if a.hasher.NeedsRehash(user.PasswordHash) {
		a.upgradeHash(ctx, user.ID, params.Password)
	}

	err = a.tokenService.Persist(ctx, user.ID, pair)
	if err != nil {
		a.logger.Error("Auth service: failed to issue session",
			"user_id", user.ID,
			"error", err.Error())
		return model.Session{}, err
	}

	a.logger.Info("Auth service: user logged in",
		"user_id", user.ID)

	return model.Session{User: user.Sanitize(), Tokens: pair}, nil
}

func (a *Auth) upgradeHash(ctx context.Context, userID uuid.UUID, password string) {
	upgraded, err := a.hasher.Hash(password)
	if err == nil {
		err = a.userStore.SetPasswordHash(ctx, userID, upgraded)
	}
	if err != nil {
		a.logger.Warn("Auth service: failed to upgrade password hash",
			"user_id", userID,
			"error", err.Error())
		return
	}
	a.logger.Info("Auth service: password hash upgraded",
		"user_id", userID)
}

func (a *Auth) Refresh(ctx context.Context, refreshToken string) (_ model.TokenPair, err error) {
	defer func() { a.observer.ObserveAuth(OpRefresh, err) }()

	if strings.TrimSpace(refreshToken) == "" {
		err = model.NewAuthError(model.ReasonSessionRevoked, errors.New("no refresh token presented"))
		return model.TokenPair{}, err
	}

	pair, err := a.tokenService.Rotate(ctx, refreshToken)
	if err != nil {
		a.logger.Info("Auth service: refresh rejected",
			"error", err.Error())
		return model.TokenPair{}, err
	}

	return pair, nil
}

// Logout is idempotent.
func (a *Auth) Logout(ctx context.Context, identity model.Identity) (err error) {
	defer func() { a.observer.ObserveAuth(OpLogout, err) }()

	if err = a.tokenService.Revoke(ctx, identity.UserID); err != nil {
		a.logger.Error("Auth service: failed to log out",
			"user_id", identity.UserID,
			"error", err.Error())
		return err
	}

	a.logger.Info("Auth service: user logged out",
		"user_id", identity.UserID)
	return nil
}

// ChangePassword replaces the password and ends the current session, so the
// caller has to log in again with the new password.
func (a *Auth) ChangePassword(ctx context.Context, identity model.Identity, params model.ChangePasswordParams) (err error) {
	defer func() { a.observer.ObserveAuth(OpChangePassword, err) }()

	err = a.validator.ValidateRequiredFields(
		validation.Field{Name: "oldPassword", Value: params.OldPassword},
		validation.Field{Name: "newPassword", Value: params.NewPassword},
	)
	if err != nil {
		return err
	}
	if err = a.validator.ValidatePassword(params.NewPassword); err != nil {
		return err
	}

	current, err := a.userStore.GetPasswordHash(ctx, identity.UserID)
	if errors.Is(err, model.ErrNotFound) {
		err = model.NewAuthError(model.ReasonUserNotFound, err)
		return err
	}
	if err != nil {
		err = model.NewStorageError(fmt.Errorf("failed to get password hash: %w", err))
		return err
	}

	ok, err := a.hasher.Verify(params.OldPassword, current)
	if err != nil {
		err = model.NewStorageError(fmt.Errorf("failed to verify password: %w", err))
		return err
	}
	if !ok {
		a.logger.Info("Auth service: wrong old password",
			"user_id", identity.UserID)
		err = model.NewAuthError(model.ReasonBadPassword, nil)
		return err
	}

	next, err := a.hasher.Hash(params.NewPassword)
	if err != nil {
		err = model.NewStorageError(fmt.Errorf("failed to hash password: %w", err))
		return err
	}

	err = a.userStore.SetPasswordHash(ctx, identity.UserID, next)
	if errors.Is(err, model.ErrNotFound) {
		err = model.NewAuthError(model.ReasonUserNotFound, err)
		return err
	}
	if err != nil {
		err = model.NewStorageError(fmt.Errorf("failed to set password hash: %w", err))
		return err
	}

	a.logger.Info("Auth service: password changed",
		"user_id", identity.UserID)
	return nil
}

func (a *Auth) GetCurrentUser(ctx context.Context, identity model.Identity) (_ model.PublicUser, err error) {
	defer func() { a.observer.ObserveAuth(OpCurrentUser, err) }()

	user, err := a.userStore.GetByID(ctx, identity.UserID)
	if errors.Is(err, model.ErrNotFound) {
		err = model.NewAuthError(model.ReasonUserNotFound, err)
		return model.PublicUser{}, err
	}
	if err != nil {
		err = model.NewStorageError(fmt.Errorf("failed to get user: %w", err))
		return model.PublicUser{}, err
	}

	return user.Sanitize(), nil
}

func (a *Auth) ListUsers(ctx context.Context) (_ []model.PublicUser, err error) {
	defer func() { a.observer.ObserveAuth(OpListUsers, err) }()

	users, err := a.userStore.List(ctx)
	if err != nil {
		err = model.NewStorageError(fmt.Errorf("failed to list users: %w", err))
		return nil, err
	}

	public := make([]model.PublicUser, 0, len(users))
	for _, u := range users {
		public = append(public, u.Sanitize())
	}
	return public, nil
}

// Authenticate turns an access token into an identity for the transport layer.
func (a *Auth) Authenticate(_ context.Context, accessToken string) (model.Identity, error) {
	return a.tokenService.Authenticate(accessToken)
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

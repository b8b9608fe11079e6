// Package handler contains the REST handlers of the user API.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/dtroode/authkeeper-server/internal/api/http/response"
	"github.com/dtroode/authkeeper-server/internal/logger"
	"github.com/dtroode/authkeeper-server/internal/model"
	"github.com/dtroode/authkeeper-server/internal/service"
)

// UserService is the session lifecycle the handlers drive.
type UserService interface {
	Register(ctx context.Context, params model.RegisterParams) (model.PublicUser, error)
	Login(ctx context.Context, params model.LoginParams) (model.Session, error)
	Refresh(ctx context.Context, refreshToken string) (model.TokenPair, error)
	Logout(ctx context.Context, identity model.Identity) error
	ChangePassword(ctx context.Context, identity model.Identity, params model.ChangePasswordParams) error
	GetCurrentUser(ctx context.Context, identity model.Identity) (model.PublicUser, error)
	ListUsers(ctx context.Context) ([]model.PublicUser, error)
}

// AssetService stores uploaded profile images.
type AssetService interface {
	Upload(ctx context.Context, kind service.AssetKind, asset service.Asset) (string, error)
	Remove(ctx context.Context, url string)
}

// User handles the /api/v1/users endpoints.
type User struct {
	userService    UserService
	assets         AssetService
	contextManager model.ContextManager
	writer         *response.Writer
	cookies        CookieOptions
	logger         *logger.Logger
}

// NewUser creates a User handler. assets may be nil when object storage is
// disabled; uploaded files are then ignored.
func NewUser(
	userService UserService,
	assets AssetService,
	contextManager model.ContextManager,
	writer *response.Writer,
	cookies CookieOptions,
	logger *logger.Logger,
) *User {
	return &User{
		userService:    userService,
		assets:         assets,
		contextManager: contextManager,
		writer:         writer,
		cookies:        cookies,
		logger:         logger,
	}
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	FullName string `json:"fullname"`
	Password string `json:"password"`
}

type loginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

type sessionResponse struct {
	User         *model.PublicUser `json:"user,omitempty"`
	AccessToken  string            `json:"accessToken"`
	RefreshToken string            `json:"refreshToken"`
}

// Register creates an account from a JSON body or a multipart form carrying
// optional avatar and coverImage files.
func (h *User) Register(w http.ResponseWriter, r *http.Request) {
	var (
		params model.RegisterParams
		err    error
	)
	if isMultipart(r) {
		params, err = h.registerParamsFromForm(w, r)
	} else {
		var req registerRequest
		err = decodeJSON(r, &req)
		params = model.RegisterParams{
			Username: req.Username,
			Email:    req.Email,
			FullName: req.FullName,
			Password: req.Password,
		}
	}
	if err != nil {
		h.writer.Error(w, err)
		return
	}

	h.logger.Debug("User handler: processing registration request",
		"username", params.Username)

	user, err := h.userService.Register(r.Context(), params)
	if err != nil {
		h.discardAssets(r.Context(), params)
		h.logger.Info("User handler: registration failed",
			"username", params.Username,
			"error", err.Error())
		h.writer.Error(w, err)
		return
	}

	h.writer.OK(w, http.StatusCreated, user, "user registered successfully")
}

func (h *User) registerParamsFromForm(w http.ResponseWriter, r *http.Request) (model.RegisterParams, error) {
	r.Body = http.MaxBytesReader(w, r.Body, 2*service.MaxAssetSize+(1<<20))
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		return model.RegisterParams{}, response.ErrInvalidBody
	}

	params := model.RegisterParams{
		Username: r.FormValue("username"),
		Email:    r.FormValue("email"),
		FullName: r.FormValue("fullname"),
		Password: r.FormValue("password"),
	}

	var err error
	params.AvatarURL, err = h.uploadFormFile(r, "avatar", service.AssetAvatar)
	if err != nil {
		return model.RegisterParams{}, err
	}
	params.CoverImageURL, err = h.uploadFormFile(r, "coverImage", service.AssetCoverImage)
	if err != nil {
		h.discardAssets(r.Context(), params)
		return model.RegisterParams{}, err
	}
	return params, nil
}

// uploadFormFile returns an empty URL when the file is absent, storage is
// disabled or the upload failed for a reason other than a bad file.
func (h *User) uploadFormFile(r *http.Request, field string, kind service.AssetKind) (string, error) {
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return "", nil
	}
	if err != nil {
		return "", response.ErrInvalidBody
	}
	defer file.Close()

	if h.assets == nil {
		h.logger.Warn("User handler: object storage disabled, ignoring upload",
			"field", field)
		return "", nil
	}

	url, err := h.assets.Upload(r.Context(), kind, service.Asset{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Reader:      file,
	})
	if errors.Is(err, model.ErrValidation) {
		return "", err
	}
	if err != nil {
		h.logger.Warn("User handler: upload failed, continuing without it",
			"field", field,
			"error", err.Error())
		return "", nil
	}
	return url, nil
}

func (h *User) discardAssets(ctx context.Context, params model.RegisterParams) {
	if h.assets == nil {
		return
	}
	h.assets.Remove(ctx, params.AvatarURL)
	h.assets.Remove(ctx, params.CoverImageURL)
}

func (h *User) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writer.Error(w, err)
		return
	}

	session, err := h.userService.Login(r.Context(), model.LoginParams{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.writer.Error(w, err)
		return
	}

	h.setSessionCookies(w, session.Tokens)
	h.writer.OK(w, http.StatusOK, sessionResponse{
		User:         &session.User,
		AccessToken:  session.Tokens.Access.Value,
		RefreshToken: session.Tokens.Refresh.Value,
	}, "user logged in successfully")
}

// RefreshToken takes the refresh token from its cookie or, failing that, the JSON body.
func (h *User) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var presented string
	if c, err := r.Cookie(RefreshTokenCookie); err == nil {
		presented = c.Value
	}
	if presented == "" {
		var req refreshRequest
		if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
			h.writer.Error(w, err)
			return
		}
		presented = req.RefreshToken
	}

	pair, err := h.userService.Refresh(r.Context(), presented)
	if err != nil {
		h.writer.Error(w, err)
		return
	}

	h.setSessionCookies(w, pair)
	h.writer.OK(w, http.StatusOK, sessionResponse{
		AccessToken:  pair.Access.Value,
		RefreshToken: pair.Refresh.Value,
	}, "access token refreshed")
}

func (h *User) Logout(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}

	if err := h.userService.Logout(r.Context(), identity); err != nil {
		h.writer.Error(w, err)
		return
	}

	h.clearSessionCookies(w)
	h.writer.OK(w, http.StatusOK, struct{}{}, "user logged out")
}

// ChangePassword also clears the session cookies, since the stored session is revoked.
func (h *User) ChangePassword(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}

	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writer.Error(w, err)
		return
	}

	err := h.userService.ChangePassword(r.Context(), identity, model.ChangePasswordParams{
		OldPassword: req.OldPassword,
		NewPassword: req.NewPassword,
	})
	if err != nil {
		h.writer.Error(w, err)
		return
	}

	h.clearSessionCookies(w)
	h.writer.OK(w, http.StatusOK, struct{}{}, "password changed successfully")
}

func (h *User) CurrentUser(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}

	user, err := h.userService.GetCurrentUser(r.Context(), identity)
	if err != nil {
		h.writer.Error(w, err)
		return
	}

	h.writer.OK(w, http.StatusOK, user, "current user fetched successfully")
}

func (h *User) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.userService.ListUsers(r.Context())
	if err != nil {
		h.writer.Error(w, err)
		return
	}

	h.writer.OK(w, http.StatusOK, users, "users fetched successfully")
}

func (h *User) identity(w http.ResponseWriter, r *http.Request) (model.Identity, bool) {
	identity, ok := h.contextManager.GetIdentity(r.Context())
	if !ok {
		h.writer.Error(w, model.NewTokenError(model.ReasonMalformed, errors.New("no identity in request context")))
		return model.Identity{}, false
	}
	return identity, true
}

var errEmptyBody = fmt.Errorf("%w: empty", response.ErrInvalidBody)

func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return response.ErrInvalidBody
	}
	return nil
}

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "multipart/form-data"
}

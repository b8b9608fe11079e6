package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	httpctx "github.com/dtroode/authkeeper-server/internal/api/http/context"
	"github.com/dtroode/authkeeper-server/internal/api/http/response"
	"github.com/dtroode/authkeeper-server/internal/model"
	"github.com/dtroode/authkeeper-server/internal/service"
	"github.com/dtroode/authkeeper-server/internal/testutil"
)

type userServiceMock struct {
	mock.Mock
}

func (m *userServiceMock) Register(ctx context.Context, params model.RegisterParams) (model.PublicUser, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(model.PublicUser), args.Error(1)
}

func (m *userServiceMock) Login(ctx context.Context, params model.LoginParams) (model.Session, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(model.Session), args.Error(1)
}

func (m *userServiceMock) Refresh(ctx context.Context, refreshToken string) (model.TokenPair, error) {
	args := m.Called(ctx, refreshToken)
	return args.Get(0).(model.TokenPair), args.Error(1)
}

func (m *userServiceMock) Logout(ctx context.Context, identity model.Identity) error {
	return m.Called(ctx, identity).Error(0)
}

func (m *userServiceMock) ChangePassword(ctx context.Context, identity model.Identity, params model.ChangePasswordParams) error {
	return m.Called(ctx, identity, params).Error(0)
}

func (m *userServiceMock) GetCurrentUser(ctx context.Context, identity model.Identity) (model.PublicUser, error) {
	args := m.Called(ctx, identity)
	return args.Get(0).(model.PublicUser), args.Error(1)
}

func (m *userServiceMock) ListUsers(ctx context.Context) ([]model.PublicUser, error) {
	args := m.Called(ctx)
	return args.Get(0).([]model.PublicUser), args.Error(1)
}

type assetServiceMock struct {
	mock.Mock
}

func (m *assetServiceMock) Upload(ctx context.Context, kind service.AssetKind, asset service.Asset) (string, error) {
	args := m.Called(ctx, kind, asset)
	return args.String(0), args.Error(1)
}

func (m *assetServiceMock) Remove(ctx context.Context, url string) {
	m.Called(ctx, url)
}

type formFile struct {
	field, filename, contentType, content string
}

func multipartRequest(t *testing.T, fields map[string]string, files ...formFile) *http.Request {
	t.Helper()

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="`+f.field+`"; filename="`+f.filename+`"`)
		h.Set("Content-Type", f.contentType)
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write([]byte(f.content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/register", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

var registerFields = map[string]string{
	"username": "alice",
	"email":    "a@x.com",
	"fullname": "Alice",
	"password": "secret123",
}

func newHandler(us UserService, assets AssetService) *User {
	lg := testutil.MakeNoopLogger()
	return NewUser(us, assets, httpctx.NewManager(), response.NewWriter(lg), CookieOptions{Secure: true}, lg)
}

func decodeFailure(t *testing.T, rec *httptest.ResponseRecorder) response.Failure {
	t.Helper()
	var f response.Failure
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &f))
	return f
}

func TestUser_Register_MultipartUploadsAssets(t *testing.T) {
	t.Parallel()

	us := &userServiceMock{}
	assets := &assetServiceMock{}

	avatarURL := "http://minio/bucket/avatar/1.png"
	coverURL := "http://minio/bucket/cover-image/2.jpg"
	assets.On("Upload", mock.Anything, service.AssetAvatar, mock.MatchedBy(func(a service.Asset) bool {
		return a.Filename == "me.png" && a.ContentType == "image/png" && a.Size == 4
	})).Return(avatarURL, nil)
	assets.On("Upload", mock.Anything, service.AssetCoverImage, mock.Anything).Return(coverURL, nil)

	us.On("Register", mock.Anything, model.RegisterParams{
		Username:      "alice",
		Email:         "a@x.com",
		FullName:      "Alice",
		Password:      "secret123",
		AvatarURL:     avatarURL,
		CoverImageURL: coverURL,
	}).Return(model.PublicUser{ID: uuid.New(), Username: "alice", AvatarURL: &avatarURL}, nil)

	req := multipartRequest(t, registerFields,
		formFile{"avatar", "me.png", "image/png", "\x89PNG"},
		formFile{"coverImage", "cover.jpg", "image/jpeg", "jpeg-bytes"},
	)
	rec := httptest.NewRecorder()
	newHandler(us, assets).Register(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), avatarURL)
	us.AssertExpectations(t)
	assets.AssertExpectations(t)
}

func TestUser_Register_FailureRemovesAssets(t *testing.T) {
	t.Parallel()

	us := &userServiceMock{}
	assets := &assetServiceMock{}

	avatarURL := "http://minio/bucket/avatar/1.png"
	assets.On("Upload", mock.Anything, service.AssetAvatar, mock.Anything).Return(avatarURL, nil)
	assets.On("Remove", mock.Anything, avatarURL).Once()
	assets.On("Remove", mock.Anything, "").Once()

	us.On("Register", mock.Anything, mock.Anything).
		Return(model.PublicUser{}, model.NewConflictError("user with email or username already exists", nil))

	req := multipartRequest(t, registerFields, formFile{"avatar", "me.png", "image/png", "\x89PNG"})
	rec := httptest.NewRecorder()
	newHandler(us, assets).Register(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assets.AssertExpectations(t)
}

func TestUser_Register_InvalidFileRejected(t *testing.T) {
	t.Parallel()

	us := &userServiceMock{}
	assets := &assetServiceMock{}
	assets.On("Upload", mock.Anything, service.AssetAvatar, mock.Anything).
		Return("", model.NewValidationError(model.ReasonInvalidFile, "avatar", "avatar must be an image"))

	req := multipartRequest(t, registerFields, formFile{"avatar", "notes.txt", "text/plain", "hello"})
	rec := httptest.NewRecorder()
	newHandler(us, assets).Register(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	f := decodeFailure(t, rec)
	assert.Equal(t, "ValidationError", f.ErrorKind)
	assert.Equal(t, "avatar", f.Field)
	us.AssertNotCalled(t, "Register", mock.Anything, mock.Anything)
}

func TestUser_Register_StorageFailureContinues(t *testing.T) {
	t.Parallel()

	us := &userServiceMock{}
	assets := &assetServiceMock{}
	assets.On("Upload", mock.Anything, service.AssetAvatar, mock.Anything).
		Return("", model.NewStorageError(errors.New("minio down")))
	us.On("Register", mock.Anything, mock.MatchedBy(func(p model.RegisterParams) bool {
		return p.AvatarURL == "" && p.Username == "alice"
	})).Return(model.PublicUser{Username: "alice"}, nil)

	req := multipartRequest(t, registerFields, formFile{"avatar", "me.png", "image/png", "\x89PNG"})
	rec := httptest.NewRecorder()
	newHandler(us, assets).Register(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	us.AssertExpectations(t)
}

func TestUser_Register_StorageDisabledIgnoresFiles(t *testing.T) {
	t.Parallel()

	us := &userServiceMock{}
	us.On("Register", mock.Anything, mock.MatchedBy(func(p model.RegisterParams) bool {
		return p.AvatarURL == "" && p.CoverImageURL == ""
	})).Return(model.PublicUser{Username: "alice"}, nil)

	req := multipartRequest(t, registerFields, formFile{"avatar", "me.png", "image/png", "\x89PNG"})
	rec := httptest.NewRecorder()
	newHandler(us, nil).Register(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	us.AssertExpectations(t)
}

func TestUser_Register_UnknownJSONFieldRejected(t *testing.T) {
	t.Parallel()

	us := &userServiceMock{}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/register",
		strings.NewReader(`{"username":"alice","isAdmin":true}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	newHandler(us, nil).Register(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	us.AssertNotCalled(t, "Register", mock.Anything, mock.Anything)
}

func TestUser_Login_SetsSecureCookies(t *testing.T) {
	t.Parallel()

	exp := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	us := &userServiceMock{}
	us.On("Login", mock.Anything, model.LoginParams{Username: "alice", Password: "secret123"}).
		Return(model.Session{
			User: model.PublicUser{Username: "alice"},
			Tokens: model.TokenPair{
				Access:  model.IssuedToken{Value: "acc", ExpiresAt: exp},
				Refresh: model.IssuedToken{Value: "ref", ExpiresAt: exp},
			},
		}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/login",
		strings.NewReader(`{"username":"alice","password":"secret123"}`))
	rec := httptest.NewRecorder()
	newHandler(us, nil).Login(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 2)
	for _, c := range cookies {
		assert.True(t, c.HttpOnly, c.Name)
		assert.True(t, c.Secure, c.Name)
		assert.Equal(t, http.SameSiteNoneMode, c.SameSite, c.Name)
		assert.Equal(t, "/", c.Path, c.Name)
		assert.True(t, exp.Equal(c.Expires), c.Name)
	}
}

func TestUser_RefreshToken_PrefersCookie(t *testing.T) {
	t.Parallel()

	us := &userServiceMock{}
	us.On("Refresh", mock.Anything, "from-cookie").Return(model.TokenPair{
		Access:  model.IssuedToken{Value: "acc2"},
		Refresh: model.IssuedToken{Value: "ref2"},
	}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/refresh-token",
		strings.NewReader(`{"refreshToken":"from-body"}`))
	req.AddCookie(&http.Cookie{Name: RefreshTokenCookie, Value: "from-cookie"})
	rec := httptest.NewRecorder()
	newHandler(us, nil).RefreshToken(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"refreshToken":"ref2"`)
	us.AssertExpectations(t)
}

func TestUser_IdentityRequired(t *testing.T) {
	t.Parallel()

	us := &userServiceMock{}
	h := newHandler(us, nil)

	for name, fn := range map[string]http.HandlerFunc{
		"logout":          h.Logout,
		"change password": h.ChangePassword,
		"current user":    h.CurrentUser,
	} {
		rec := httptest.NewRecorder()
		fn(rec, httptest.NewRequest(http.MethodPost, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code, name)
	}
	us.AssertNotCalled(t, "Logout", mock.Anything, mock.Anything)
}

func TestUser_Logout_ClearsCookies(t *testing.T) {
	t.Parallel()

	uid := uuid.New()
	us := &userServiceMock{}
	us.On("Logout", mock.Anything, model.Identity{UserID: uid}).Return(nil)

	h := newHandler(us, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/logout", nil)
	req = req.WithContext(h.contextManager.SetIdentity(req.Context(), model.Identity{UserID: uid}))
	rec := httptest.NewRecorder()
	h.Logout(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 2)
	for _, c := range cookies {
		assert.Empty(t, c.Value)
		assert.Equal(t, -1, c.MaxAge)
	}
}

func TestUser_List_StorageError(t *testing.T) {
	t.Parallel()

	us := &userServiceMock{}
	us.On("ListUsers", mock.Anything).Return([]model.PublicUser(nil), model.NewStorageError(errors.New("db down")))

	rec := httptest.NewRecorder()
	newHandler(us, nil).List(rec, httptest.NewRequest(http.MethodGet, "/api/v1/users", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "db down")
}

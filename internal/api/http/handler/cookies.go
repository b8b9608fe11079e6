package handler

import (
	"net/http"
	"time"

	"github.com/dtroode/authkeeper-server/internal/api/http/middleware"
	"github.com/dtroode/authkeeper-server/internal/model"
)

// RefreshTokenCookie is the cookie the refresh token is delivered in.
const RefreshTokenCookie = "refreshToken"

// CookieOptions controls how session cookies are written.
type CookieOptions struct {
	Secure bool
}

func (h *User) setSessionCookies(w http.ResponseWriter, pair model.TokenPair) {
	http.SetCookie(w, h.cookie(middleware.AccessTokenCookie, pair.Access.Value, pair.Access.ExpiresAt))
	http.SetCookie(w, h.cookie(RefreshTokenCookie, pair.Refresh.Value, pair.Refresh.ExpiresAt))
}

func (h *User) clearSessionCookies(w http.ResponseWriter) {
	for _, name := range []string{middleware.AccessTokenCookie, RefreshTokenCookie} {
		c := h.cookie(name, "", time.Unix(0, 0))
		c.MaxAge = -1
		http.SetCookie(w, c)
	}
}

func (h *User) cookie(name, value string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: http.SameSiteNoneMode,
	}
}

package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/dtroode/authkeeper-server/internal/api/http/response"
	"github.com/dtroode/authkeeper-server/internal/logger"
	"github.com/dtroode/authkeeper-server/internal/model"
)

// AccessTokenCookie is the cookie the access token is delivered in.
const AccessTokenCookie = "accessToken"

var errMissingToken = errors.New("missing access token")

// Authenticator resolves an access token to an identity.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (model.Identity, error)
}

// Authenticate verifies the access token from the accessToken cookie or the
// Authorization header and stores the identity in the request context.
type Authenticate struct {
	authenticator  Authenticator
	contextManager model.ContextManager
	writer         *response.Writer
	logger         *logger.Logger
}

func NewAuthenticate(
	authenticator Authenticator,
	contextManager model.ContextManager,
	writer *response.Writer,
	logger *logger.Logger,
) *Authenticate {
	return &Authenticate{
		authenticator:  authenticator,
		contextManager: contextManager,
		writer:         writer,
		logger:         logger,
	}
}

func (m *Authenticate) Handle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := extractToken(r)
		if tokenString == "" {
			m.writer.Error(w, model.NewTokenError(model.ReasonMalformed, errMissingToken))
			return
		}

		identity, err := m.authenticator.Authenticate(r.Context(), tokenString)
		if err != nil {
			m.logger.Debug("HTTP authenticate: rejected access token",
				"path", r.URL.Path,
				"error", err.Error())
			m.writer.Error(w, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(m.contextManager.SetIdentity(r.Context(), identity)))
	})
}

// The cookie wins over the header when both are present.
func extractToken(r *http.Request) string {
	if c, err := r.Cookie(AccessTokenCookie); err == nil && c.Value != "" {
		return c.Value
	}
	header := r.Header.Get("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

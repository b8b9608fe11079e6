package router

import (
	"context"
	"net/http"
	"time"

	"github.com/dtroode/authkeeper-server/internal/api/http/handler"
	"github.com/dtroode/authkeeper-server/internal/api/http/middleware"
	"github.com/dtroode/authkeeper-server/internal/api/http/response"
	"github.com/dtroode/authkeeper-server/internal/logger"
	"github.com/dtroode/authkeeper-server/internal/metrics"
)

// Pinger reports whether a backing dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Router assembles the REST API on a ServeMux.
type Router struct {
	user           *handler.User
	authenticate   *middleware.Authenticate
	metrics        *metrics.Metrics
	pinger         Pinger
	writer         *response.Writer
	logger         *logger.Logger
	requestTimeout time.Duration
}

func New(
	user *handler.User,
	authenticate *middleware.Authenticate,
	metrics *metrics.Metrics,
	pinger Pinger,
	writer *response.Writer,
	logger *logger.Logger,
	requestTimeout time.Duration,
) *Router {
	return &Router{
		user:           user,
		authenticate:   authenticate,
		metrics:        metrics,
		pinger:         pinger,
		writer:         writer,
		logger:         logger,
		requestTimeout: requestTimeout,
	}
}

// Register returns the root handler with every route and the global middleware attached.
func (r *Router) Register() http.Handler {
	mux := http.NewServeMux()

	r.handle(mux, "POST /api/v1/users/register", r.user.Register, false)
	r.handle(mux, "POST /api/v1/users/login", r.user.Login, false)
	r.handle(mux, "POST /api/v1/users/refresh-token", r.user.RefreshToken, false)
	r.handle(mux, "POST /api/v1/users/logout", r.user.Logout, true)
	r.handle(mux, "POST /api/v1/users/change-password", r.user.ChangePassword, true)
	r.handle(mux, "GET /api/v1/users/current-user", r.user.CurrentUser, true)
	r.handle(mux, "GET /api/v1/users", r.user.List, true)

	r.handle(mux, "GET /healthz", r.health, false)
	mux.Handle("GET /metrics", r.metrics.Handler())

	global := middleware.NewChain(
		middleware.Recovery(r.writer, r.logger),
		middleware.NewLogging(r.logger).Handle,
		middleware.Timeout(r.requestTimeout),
	)
	return global.Then(mux)
}

func (r *Router) handle(mux *http.ServeMux, pattern string, fn http.HandlerFunc, protected bool) {
	chain := middleware.NewChain(middleware.Metrics(r.metrics, pattern))
	if protected {
		chain.Use(r.authenticate.Handle)
	}
	mux.Handle(pattern, chain.Then(fn))
}

func (r *Router) health(w http.ResponseWriter, req *http.Request) {
	if r.pinger != nil {
		if err := r.pinger.Ping(req.Context()); err != nil {
			r.logger.Warn("HTTP health: database ping failed",
				"error", err.Error())
			r.writer.Unavailable(w, "database unreachable")
			return
		}
	}
	r.writer.OK(w, http.StatusOK, map[string]string{"status": "ok"}, "healthy")
}

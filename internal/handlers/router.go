package handlers

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nkiryanov/bookshop/internal/handlers/middleware"
	"github.com/nkiryanov/bookshop/internal/logger"
	"github.com/nkiryanov/bookshop/internal/metrics"
	"github.com/nkiryanov/bookshop/internal/models"
)

type authService interface {
	// Login with identifier and secret
	// Has to return apperrors.ErrInvalidCredentials whatever was wrong with credentials
	Login(ctx context.Context, identifier string, secret string) (models.Session, error)

	// Authenticate request by its bearer token and return subject ID
	Authenticate(r *http.Request) (subjectID string, err error)

	// Current identity of the subject
	// Has to return apperrors.ErrIdentityNotFound if it doesn't exist anymore
	Identity(ctx context.Context, subjectID string) (models.Identity, error)

	// Set access token to response
	SetToken(w http.ResponseWriter, token models.IssuedToken)
}

type privileged struct {
	pattern string
	handler http.Handler
}

type routerConfig struct {
	privileged []privileged
	gatherer   prometheus.Gatherer
	recorder   metrics.Recorder
	origins    []string
}

type Option func(*routerConfig)

// WithPrivileged mounts handler behind the auth gate
// Pattern is the http.ServeMux one, e.g. "POST /api/books"
func WithPrivileged(pattern string, h http.Handler) Option {
	return func(c *routerConfig) {
		c.privileged = append(c.privileged, privileged{pattern: pattern, handler: h})
	}
}

// WithMetrics records metrics with rec and serves /metrics from gatherer
func WithMetrics(gatherer prometheus.Gatherer, rec metrics.Recorder) Option {
	return func(c *routerConfig) {
		c.gatherer = gatherer
		c.recorder = rec
	}
}

// WithCORS allows cross origin requests from origins
func WithCORS(origins []string) Option {
	return func(c *routerConfig) {
		c.origins = origins
	}
}

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

func NewRouter(authService authService, logger logger.Logger, opts ...Option) http.Handler {
	cfg := routerConfig{recorder: metrics.NoOp{}}
	for _, opt := range opts {
		opt(&cfg)
	}

	gate := middleware.NewAuth(
		authService,
		middleware.WithAuthLogger(logger),
		middleware.WithAuthMetrics(cfg.recorder),
	)

	authHandler := NewAuth(authService, logger, cfg.recorder, gate.Auth)

	root := http.NewServeMux()
	root.Handle("/api/auth/", http.StripPrefix("/api/auth", authHandler.Handler()))
	for _, p := range cfg.privileged {
		root.Handle(p.pattern, gate.Auth(p.handler))
	}
	if cfg.gatherer != nil {
		root.Handle("GET /metrics", metrics.Handler(cfg.gatherer))
	}

	mds := []func(http.Handler) http.Handler{
		middleware.Recoverer(logger),
		middleware.LoggerMiddleware(logger),
		middleware.StatusMiddleware(cfg.recorder),
	}
	if len(cfg.origins) > 0 {
		mds = append(mds, middleware.CORSMiddleware(cfg.origins))
	}

	return chain(root, mds...)
}

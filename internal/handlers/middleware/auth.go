package middleware

import (
	"errors"
	"net/http"

	"github.com/nkiryanov/bookshop/internal/apperrors"
	"github.com/nkiryanov/bookshop/internal/handlers/authctx"
	"github.com/nkiryanov/bookshop/internal/handlers/render"
	"github.com/nkiryanov/bookshop/internal/metrics"
)

type authenticator interface {
	// Returns subject ID of the request bearer token
	Authenticate(r *http.Request) (subjectID string, err error)
}

type debugLogger interface {
	Debug(msg string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}

// AuthMiddleware lets through only requests with a valid bearer token
type AuthMiddleware struct {
	auth    authenticator
	logger  debugLogger
	metrics metrics.Recorder
}

type AuthOption func(*AuthMiddleware)

// Log rejection reason at debug level
func WithAuthLogger(l debugLogger) AuthOption {
	return func(m *AuthMiddleware) { m.logger = l }
}

func WithAuthMetrics(r metrics.Recorder) AuthOption {
	return func(m *AuthMiddleware) { m.metrics = r }
}

func NewAuth(a authenticator, opts ...AuthOption) *AuthMiddleware {
	m := &AuthMiddleware{
		auth:    a,
		logger:  nopLogger{},
		metrics: metrics.NoOp{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Auth rejects request with the same 401 response whatever the failure was
// On success subject ID is available with authctx.SubjectFromContext
func (m *AuthMiddleware) Auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subjectID, err := m.auth.Authenticate(r)
		if err != nil {
			reason := rejectReason(err)
			m.logger.Debug("request rejected", "reason", reason, "uri", r.RequestURI, "error", err)
			m.metrics.RecordGateRejected(reason)

			render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		m.metrics.RecordGatePassed()
		ctx := authctx.WithSubject(r.Context(), subjectID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrMissingToken):
		return metrics.ReasonMissing
	case errors.Is(err, apperrors.ErrMalformedToken):
		return metrics.ReasonMalformed
	case errors.Is(err, apperrors.ErrForgedToken):
		return metrics.ReasonForged
	case errors.Is(err, apperrors.ErrTokenExpired):
		return metrics.ReasonExpired
	default:
		return metrics.ReasonInternal
	}
}

package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/nkiryanov/bookshop/internal/handlers/render"
)

type errorLogger interface {
	Error(msg string, args ...any)
}

// Recoverer turns panic in handler into 500 response
func Recoverer(l errorLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				l.Error(
					"panic recovered",
					"panic", rec,
					"method", r.Method,
					"uri", r.RequestURI,
					"stack", string(debug.Stack()),
				)
				render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			}()

			next.ServeHTTP(w, r)
		})
	}
}

package middleware

import (
	"net/http"

	"github.com/nkiryanov/bookshop/internal/metrics"
)

// StatusMiddleware counts responses by status code
func StatusMiddleware(r metrics.Recorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			lw := &logWriter{
				ResponseWriter: w,
				data:           logData{responseStatus: http.StatusOK},
			}

			next.ServeHTTP(lw, req)

			r.RecordHTTPStatus(lw.data.responseStatus)
		})
	}
}

package middleware

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/inkbook/studio-admin/pkg/logging"
)

// RequestLogger emits structured start and completion logs for every request.
// The request id comes from chi's RequestID middleware when present.
func RequestLogger(logger *logging.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqID := chimw.GetReqID(r.Context())
			if reqID == "" {
				reqID = r.Header.Get(chimw.RequestIDHeader)
			}
			if reqID == "" {
				reqID = uuid.NewString()
			}
			w.Header().Set(chimw.RequestIDHeader, reqID)

			log := logger.With("request_id", reqID, "method", r.Method, "path", r.URL.Path)
			log.Debug("request started", "remote_ip", r.RemoteAddr)

			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			attrs := []any{"status", status, "bytes", ww.BytesWritten(), "duration_ms", time.Since(start).Milliseconds()}
			if status >= http.StatusInternalServerError {
				log.Error("request completed", attrs...)
				return
			}
			log.Info("request completed", attrs...)
		})
	}
}

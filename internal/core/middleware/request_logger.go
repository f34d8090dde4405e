package middleware

import (
	"net/http"
	"time"

	"github.com/visadesk/walletcore/internal/core/logger"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func RequestLogger(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			log.Info("HTTP request",
				logger.StringField("method", r.Method),
				logger.StringField("path", r.URL.Path),
				logger.IntField("status", rec.status),
				logger.StringField("remote_addr", r.RemoteAddr),
				logger.Int64Field("duration_ms", time.Since(start).Milliseconds()),
			)
		})
	}
}

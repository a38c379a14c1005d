package restserver

import (
	"net/http"
	"time"

	"github.com/chrissnell/vitalseg/internal/log"
)

// statusRecorder captures the status code and body size written by a handler
type statusRecorder struct {
	http.ResponseWriter
	status int
	size   int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.size += n
	return n, err
}

// requestLogMiddleware records every request in the HTTP log buffer
func requestLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}

		next.ServeHTTP(rec, req)

		if rec.status == 0 {
			rec.status = http.StatusOK
		}
		entry := log.HTTPLogEntry{
			Timestamp:  start,
			Method:     req.Method,
			Path:       req.URL.Path,
			Status:     rec.status,
			Duration:   time.Since(start),
			Size:       rec.size,
			RemoteAddr: req.RemoteAddr,
			UserAgent:  req.UserAgent(),
		}
		if rec.status >= http.StatusInternalServerError {
			entry.Error = http.StatusText(rec.status)
		}
		log.LogHTTPRequest(entry)
	})
}

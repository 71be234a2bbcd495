package middleware

import (
	"net/http"
	"time"

	"github.com/ternarybob/arbor"
)

// statusRecorder captures the status code and body size of a response
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += n
	return n, err
}

// quietPaths are polled by clients and logged at debug level only
var quietPaths = map[string]bool{
	"/health": true,
	"/status": true,
}

// Logging logs each request with its status, response size and duration.
// Server errors log at error level, client errors at warn level.
func Logging(logger arbor.ILogger) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next(rec, r)

			duration := time.Since(start)
			switch {
			case rec.status >= http.StatusInternalServerError:
				logger.Error().Str("method", r.Method).Str("path", r.URL.Path).Int("status", rec.status).Int("bytes", rec.bytes).Dur("duration", duration).Msg("HTTP request failed")
			case rec.status >= http.StatusBadRequest:
				logger.Warn().Str("method", r.Method).Str("path", r.URL.Path).Int("status", rec.status).Int("bytes", rec.bytes).Dur("duration", duration).Msg("HTTP request rejected")
			case quietPaths[r.URL.Path]:
				logger.Debug().Str("method", r.Method).Str("path", r.URL.Path).Int("status", rec.status).Dur("duration", duration).Msg("HTTP request")
			default:
				logger.Info().Str("method", r.Method).Str("path", r.URL.Path).Str("remote_addr", r.RemoteAddr).Int("status", rec.status).Int("bytes", rec.bytes).Dur("duration", duration).Msg("HTTP request")
			}
		}
	}
}

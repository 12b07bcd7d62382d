package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/okian/crowdwatch/pkg/logger"
	"github.com/okian/crowdwatch/pkg/metrics"
)

// RequestIDHeader carries the correlation id of a request. An incoming value
// is kept; otherwise one is generated.
const RequestIDHeader = "X-Request-ID"

// Instrument wraps next with request ids, panic recovery, access logging
// and Prometheus metrics under the given endpoint label.
func Instrument(endpoint string, next http.HandlerFunc) http.HandlerFunc {
	log := logger.Get().Named("http")
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		defer func() {
			if p := recover(); p != nil {
				metrics.RecordErrorByComponent("http", "panic")
				log.Error(r.Context(), "handler panicked",
					logger.String("endpoint", endpoint),
					logger.String("request_id", id),
					logger.Any("panic", p))
				if !rec.wrote {
					writeError(rec, http.StatusInternalServerError, "internal_error", nil)
				}
			}
			observe(endpoint, r.Method, rec.status, time.Since(start))
			log.Debug(r.Context(), "request served",
				logger.String("endpoint", endpoint),
				logger.String("method", r.Method),
				logger.Int("status", rec.status),
				logger.String("request_id", id),
				logger.Duration("took", time.Since(start)))
		}()
		next(rec, r)
	}
}

func observe(endpoint, method string, status int, took time.Duration) {
	ms := float64(took.Microseconds()) / 1000
	code := strconv.Itoa(status)
	metrics.RecordHTTPRequest(endpoint, method, code)
	metrics.RecordHTTPRequestDuration(endpoint, method, code, ms)
	if status < http.StatusBadRequest {
		return
	}
	kind := statusKind(status)
	metrics.RecordErrorByEndpoint(endpoint, method, kind)
	metrics.RecordErrorByType(kind, statusSeverity(status))
	metrics.RecordErrorLatency("http", kind, ms)
}

// statusKind buckets an error status for the error metrics.
func statusKind(status int) string {
	switch {
	case status == http.StatusServiceUnavailable:
		return "unavailable"
	case status >= http.StatusInternalServerError:
		return "server_error"
	case status == http.StatusNotFound:
		return "not_found"
	case status == http.StatusMethodNotAllowed:
		return "method_not_allowed"
	default:
		return "client_error"
	}
}

func statusSeverity(status int) string {
	if status >= http.StatusInternalServerError {
		return "high"
	}
	return "medium"
}

// statusRecorder remembers the status written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
	wrote  bool
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.wrote {
		return
	}
	s.status = code
	s.wrote = true
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	s.wrote = true
	return s.ResponseWriter.Write(b)
}

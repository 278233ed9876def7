package gateway

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// withMiddleware wraps handlers with the common request chain.
func (h *handler) withMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return h.metricsMiddleware(
		h.requestIDMiddleware(
			h.panicRecoveryMiddleware(
				h.rateLimitMiddleware(
					h.loggingMiddleware(next),
				),
			),
		),
	)
}

func (h *handler) metricsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := recordStatus(w)
		next.ServeHTTP(rec, r)
		h.metrics.IncHTTPRequest(r.Method, r.URL.Path, strconv.Itoa(rec.code()))
	}
}

// requestIDMiddleware keeps a caller supplied X-Request-Id when it is a UUID
// and generates one otherwise.
func (h *handler) requestIDMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-Id")
		if _, err := uuid.Parse(requestID); err != nil {
			requestID = uuid.New().String()
		}

		ctx := context.WithValue(r.Context(), contextKeyRequestID, requestID)
		w.Header().Set("X-Request-Id", requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

func (h *handler) rateLimitMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !h.rateLimiter.Allow() {
			h.metrics.IncRateLimitReject()
			w.Header().Set("Retry-After", "1")
			writeError(w, r, http.StatusTooManyRequests, CodeRateLimitExceeded, "rate limit exceeded", true)
			return
		}
		next.ServeHTTP(w, r)
	}
}

func (h *handler) panicRecoveryMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				h.metrics.IncPanicRecovery()
				requestLogger(r.Context(), h.logger).Error("panic recovered",
					"event", "panic_recovered",
					"error", fmt.Sprint(rec),
					"path", r.URL.Path,
					"method", r.Method,
				)
				writeError(w, r, http.StatusInternalServerError, CodeInternal, "internal server error", true)
			}
		}()
		next.ServeHTTP(w, r)
	}
}

func (h *handler) loggingMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := recordStatus(w)

		next.ServeHTTP(rec, r)

		requestLogger(r.Context(), h.logger).Debug("request completed",
			"event", "request_completed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.code(),
			"duration", time.Since(start).String(),
		)
	}
}

// statusRecorder keeps the first status code written to the response.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

// recordStatus wraps w, reusing a recorder already installed further out in
// the chain.
func recordStatus(w http.ResponseWriter) *statusRecorder {
	if rec, ok := w.(*statusRecorder); ok {
		return rec
	}
	return &statusRecorder{ResponseWriter: w}
}

func (s *statusRecorder) WriteHeader(status int) {
	if s.status == 0 {
		s.status = status
	}
	s.ResponseWriter.WriteHeader(status)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	return s.ResponseWriter.Write(b)
}

func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

// code is the recorded status, or 200 when the handler wrote nothing.
func (s *statusRecorder) code() int {
	if s.status == 0 {
		return http.StatusOK
	}
	return s.status
}

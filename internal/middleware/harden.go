package middleware

import (
	"errors"
	"net/http"

	apperrors "github.com/yourhelpa/helpa-server-go/internal/errors"
	"github.com/yourhelpa/helpa-server-go/internal/httputil"
)

// DefaultMaxBodySize covers the largest WhatsApp and Monnify deliveries.
const DefaultMaxBodySize int64 = 1 << 20

var errBodyTooLarge = apperrors.ValidationError("Request body too large")

// BodyLimit rejects declared oversize bodies up front and caps the rest
// while they are read.
func BodyLimit(maxSize int64) func(http.Handler) http.Handler {
	if maxSize <= 0 {
		maxSize = DefaultMaxBodySize
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body == nil {
				next.ServeHTTP(w, r)
				return
			}
			if r.ContentLength > maxSize {
				httputil.WriteErrorWithStatus(w, http.StatusRequestEntityTooLarge, errBodyTooLarge)
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxSize)
			next.ServeHTTP(w, r)
		})
	}
}

// writeBodyError answers a failed body read, distinguishing the size cap
// from a broken connection.
func writeBodyError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		httputil.WriteErrorWithStatus(w, http.StatusRequestEntityTooLarge, errBodyTooLarge)
		return
	}
	httputil.WriteError(w, apperrors.ValidationError("Failed to read request body"))
}

// SecurityHeaders sets headers for an API that only answers JSON and plain
// text to webhook callers. hsts adds Strict-Transport-Security.
func SecurityHeaders(hsts bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "no-referrer")
			h.Set("Cache-Control", "no-store")
			h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
			if hsts {
				h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}
			next.ServeHTTP(w, r)
		})
	}
}

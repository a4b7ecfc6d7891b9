package middleware

import (
	"net/http"
)

// MaxRequestSize caps request body reads at maxBytes. Handlers decoding an
// oversized body get an error from MaxBytesReader and reject the request.
func MaxRequestSize(maxBytes int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))
			}
			next.ServeHTTP(w, r)
		})
	}
}

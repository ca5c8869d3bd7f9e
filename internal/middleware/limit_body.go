package middleware

import (
	"net/http"
)

// MaxBodySize is the largest request body accepted (1MB). Raw transactions and
// calldata are bounded well below this by request validation.
const MaxBodySize = 1 << 20

// LimitBody caps request bodies at MaxBodySize
func LimitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, MaxBodySize)
		next.ServeHTTP(w, r)
	})
}

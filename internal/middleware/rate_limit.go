package middleware

import (
	"net/http"
	"time"

	pkghttp "github.com/BradenHooton/mobistudy/pkg/http"
	"github.com/go-chi/httprate"
)

// RateLimitByIP limits each client IP to requestsPerMinute requests
func RateLimitByIP(requestsPerMinute int) func(next http.Handler) http.Handler {
	return httprate.Limit(
		requestsPerMinute,
		time.Minute,
		httprate.WithKeyByRealIP(),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			pkghttp.WriteTooManyRequests(w, "Too many requests, please try again later")
		}),
	)
}

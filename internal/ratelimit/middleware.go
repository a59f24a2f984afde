package ratelimit

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mkarlsen/scimgate/internal/auth"
	"github.com/mkarlsen/scimgate/internal/scim"
)

// Middleware returns an HTTP middleware that enforces rate limits using the
// provided Limiter. It expects an authenticated organization in the request
// context (set by auth.TokenAuthMiddleware) and uses the organization's ID as
// the bucket key, so each tenant gets an independent budget.
//
// Rate-limit headers are always set on the response:
//
//	X-RateLimit-Limit     — maximum requests allowed in the window
//	X-RateLimit-Remaining — tokens remaining in the current window
//	X-RateLimit-Reset     — Unix timestamp when the bucket is fully replenished
//
// When the limit is exceeded the middleware responds with HTTP 429 and a
// SCIM-format error body.
func Middleware(limiter *Limiter, onReject ...func()) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			org := auth.OrganizationFromContext(r.Context())
			if org == nil {
				// No organization in context — skip rate limiting.
				next.ServeHTTP(w, r)
				return
			}

			key := org.ID

			// Always set headers so callers can inspect their quota.
			limit, remaining, resetAt := limiter.Status(key)
			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", limit))
			w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))
			w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", resetAt.Unix()))

			if !limiter.Allow(key) {
				for _, fn := range onReject {
					fn()
				}
				w.Header().Set("Content-Type", scim.ContentType)
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]interface{}{
					"schemas": []string{scim.SchemaError},
					"status":  "429",
					"detail":  "Rate limit exceeded. Try again later.",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

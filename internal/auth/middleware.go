package auth

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/mkarlsen/scimgate/internal/scim"
)

type contextKey int

const organizationContextKey contextKey = iota

// ContextWithOrganization returns a new context carrying the given
// organization scope.
func ContextWithOrganization(ctx context.Context, org *Organization) context.Context {
	return context.WithValue(ctx, organizationContextKey, org)
}

// OrganizationFromContext extracts the organization from the context, or nil
// if not present.
func OrganizationFromContext(ctx context.Context) *Organization {
	org, _ := ctx.Value(organizationContextKey).(*Organization)
	return org
}

// UsageRecorder records that a token was used. Recording happens off the
// request's critical path; failures are swallowed by the recorder.
type UsageRecorder interface {
	Record(tokenID string)
}

// TokenAuthMiddleware returns middleware that authenticates SCIM requests
// using a bearer token in the Authorization header. The token is hashed and
// looked up via the service's token store. On success the organization scope
// is injected into the request context and the token use is recorded.
// Failures are answered with a SCIM-formatted 401.
func TokenAuthMiddleware(svc *Service, usage UsageRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			plaintext := extractBearerToken(r)
			if plaintext == "" {
				writeUnauthenticated(w, "missing or malformed authorization header")
				return
			}

			token, err := svc.Authenticate(r.Context(), plaintext)
			if err != nil || token == nil {
				writeUnauthenticated(w, "invalid bearer token")
				return
			}

			if usage != nil {
				usage.Record(token.ID)
			}

			ctx := ContextWithOrganization(r.Context(), &token.Organization)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AdminAuthMiddleware returns middleware that protects the token-management
// API with a static admin key. An empty configured key disables the admin
// surface entirely.
func AdminAuthMiddleware(adminKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if adminKey == "" {
				writeAdminError(w, http.StatusServiceUnavailable, "admin_disabled", "admin API is not configured")
				return
			}

			token := extractBearerToken(r)
			if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(adminKey)) != 1 {
				writeAdminError(w, http.StatusUnauthorized, "unauthorized", "invalid admin key")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

// scimErrorBody mirrors the SCIM error wire shape; status is a string per
// RFC 7644.
type scimErrorBody struct {
	Schemas []string `json:"schemas"`
	Detail  string   `json:"detail"`
	Status  string   `json:"status"`
}

func writeUnauthenticated(w http.ResponseWriter, detail string) {
	w.Header().Set("Content-Type", scim.ContentType)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(scimErrorBody{
		Schemas: []string{scim.SchemaError},
		Detail:  detail,
		Status:  "401",
	})
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeAdminError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{
		Error: errorBody{
			Code:    code,
			Message: message,
		},
	})
}

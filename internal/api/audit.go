package api

import (
	"log/slog"
	"net/http"

	"github.com/mkarlsen/scimgate/internal/auth"
)

// auditLog emits a structured audit log entry for a provisioning or admin
// action.
func auditLog(r *http.Request, action string, resourceType string, resourceID string, detail ...any) {
	attrs := []any{
		"action", action,
		"resource_type", resourceType,
		"resource_id", resourceID,
		"ip", clientIP(r),
		"request_id", RequestIDFromContext(r.Context()),
	}

	if org := auth.OrganizationFromContext(r.Context()); org != nil {
		attrs = append(attrs, "organization_id", org.ID, "organization_name", org.Name)
	}

	attrs = append(attrs, detail...)
	slog.Info("audit", attrs...)
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	return r.RemoteAddr
}

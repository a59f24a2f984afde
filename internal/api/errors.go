package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/mkarlsen/scimgate/internal/scim"
)

// maxBodySize is the maximum allowed request body size (1 MB).
const maxBodySize = 1 << 20

// errorEnvelope is the standard error response shape for admin endpoints.
type errorEnvelope struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeError writes a JSON error response with the given status code.
func writeError(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorEnvelope{
		Error: errorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// writeJSON writes a JSON response with the given status code and data.
func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// scimErrorBody is the wire shape for SCIM protocol errors (RFC 7644 §3.12).
// The status field is a string per the RFC.
type scimErrorBody struct {
	Schemas  []string `json:"schemas"`
	ScimType string   `json:"scimType,omitempty"`
	Detail   string   `json:"detail"`
	Status   string   `json:"status"`
}

// writeSCIM writes a SCIM response body with the scim+json media type.
func writeSCIM(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", scim.ContentType)
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// writeSCIMError maps err onto a SCIM error response. Domain errors carry
// their own status; anything else becomes an opaque 500 with the detail kept
// server-side.
func writeSCIMError(w http.ResponseWriter, r *http.Request, err error) {
	if se := scim.AsError(err); se != nil {
		writeSCIM(w, se.Status, scimErrorBody{
			Schemas:  []string{scim.SchemaError},
			ScimType: se.ScimType,
			Detail:   se.Detail,
			Status:   strconv.Itoa(se.Status),
		})
		return
	}

	slog.Error("scim request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"request_id", RequestIDFromContext(r.Context()),
		"error", err,
	)
	writeSCIM(w, http.StatusInternalServerError, scimErrorBody{
		Schemas: []string{scim.SchemaError},
		Detail:  "internal server error",
		Status:  "500",
	})
}

// readJSON decodes the request body into v, enforcing a size limit.
func readJSON(r *http.Request, v interface{}) error {
	lr := io.LimitReader(r.Body, maxBodySize)
	return json.NewDecoder(lr).Decode(v)
}

package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"

	"github.com/mkarlsen/scimgate/internal/directory"
)

// organizationsHandler groups organization admin HTTP handlers.
type organizationsHandler struct {
	store *directory.Store
}

func newOrganizationsHandler(store *directory.Store) *organizationsHandler {
	return &organizationsHandler{store: store}
}

// createOrganizationRequest is the JSON body for creating an organization.
type createOrganizationRequest struct {
	Name string `json:"name"`
}

// CreateOrganization handles POST /admin/v1/organizations (admin).
func (h *organizationsHandler) CreateOrganization(w http.ResponseWriter, r *http.Request) {
	var req createOrganizationRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse request body")
		return
	}

	if req.Name == "" {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", "name is required")
		return
	}

	org, err := h.store.CreateOrganization(r.Context(), req.Name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to create organization")
		return
	}

	auditLog(r, "create", "organization", org.ID, "name", org.Name)

	writeJSON(w, http.StatusCreated, org)
}

// GetOrganization handles GET /admin/v1/organizations/{id} (admin).
func (h *organizationsHandler) GetOrganization(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "invalid_id", "organization id is required")
		return
	}

	org, err := h.store.GetOrganization(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "not_found", "organization not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to get organization")
		return
	}

	writeJSON(w, http.StatusOK, org)
}

// ListOrganizations handles GET /admin/v1/organizations (admin).
func (h *organizationsHandler) ListOrganizations(w http.ResponseWriter, r *http.Request) {
	orgs, err := h.store.ListOrganizations(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list organizations")
		return
	}

	if orgs == nil {
		orgs = []*directory.Organization{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"organizations": orgs,
	})
}

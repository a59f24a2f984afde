package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"

	"github.com/mkarlsen/scimgate/internal/auth"
	"github.com/mkarlsen/scimgate/internal/directory"
	"github.com/mkarlsen/scimgate/internal/token"
)

// tokensHandler groups SCIM token admin HTTP handlers.
type tokensHandler struct {
	store    *token.Store
	orgStore *directory.Store
}

func newTokensHandler(store *token.Store, orgStore *directory.Store) *tokensHandler {
	return &tokensHandler{store: store, orgStore: orgStore}
}

// IssueToken handles POST /admin/v1/organizations/{id}/tokens (admin).
// Generates a provisioning token and returns the plaintext in the response
// (only time it is shown).
func (h *tokensHandler) IssueToken(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "id")
	if orgID == "" {
		writeError(w, http.StatusBadRequest, "invalid_id", "organization id is required")
		return
	}

	// Reject tokens for organizations that don't exist.
	if _, err := h.orgStore.GetOrganization(r.Context(), orgID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "not_found", "organization not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to get organization")
		return
	}

	hash, plaintext, err := auth.GenerateToken()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to generate token")
		return
	}

	tok, err := h.store.Create(r.Context(), orgID, hash)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to create token")
		return
	}

	auditLog(r, "issue", "scim_token", tok.ID, "organization_id", orgID)

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"id":              tok.ID,
		"organization_id": tok.OrganizationID,
		"token":           plaintext,
		"created_at":      tok.CreatedAt,
	})
}

// ListTokens handles GET /admin/v1/organizations/{id}/tokens (admin).
// Token hashes are never returned.
func (h *tokensHandler) ListTokens(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "id")
	if orgID == "" {
		writeError(w, http.StatusBadRequest, "invalid_id", "organization id is required")
		return
	}

	tokens, err := h.store.ListByOrganization(r.Context(), orgID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list tokens")
		return
	}

	if tokens == nil {
		tokens = []*token.Token{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"tokens": tokens,
	})
}

// RevokeToken handles DELETE /admin/v1/tokens/{id} (admin).
func (h *tokensHandler) RevokeToken(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "invalid_id", "token id is required")
		return
	}

	if err := h.store.Delete(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to revoke token")
		return
	}

	auditLog(r, "revoke", "scim_token", id)

	w.WriteHeader(http.StatusNoContent)
}

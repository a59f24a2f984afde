package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mkarlsen/scimgate/internal/auth"
	"github.com/mkarlsen/scimgate/internal/metrics"
	"github.com/mkarlsen/scimgate/internal/scim"
)

// defaultPageSize is the page size used when an identity provider omits the
// count parameter.
const defaultPageSize = 100

// usersHandler serves the SCIM /Users resource endpoints.
type usersHandler struct {
	svc     *scim.Service
	metrics *metrics.Metrics
}

func newUsersHandler(svc *scim.Service, m *metrics.Metrics) *usersHandler {
	return &usersHandler{svc: svc, metrics: m}
}

// trackOp records the outcome of a provisioning operation.
func (h *usersHandler) trackOp(operation string, err error) {
	if h.metrics == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	h.metrics.IncProvisioningOp(operation, status)
}

// ListUsers handles GET /scim/v2/Users.
func (h *usersHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	org := auth.OrganizationFromContext(r.Context())
	if org == nil {
		writeSCIMError(w, r, scim.Unauthenticated("no authenticated organization"))
		return
	}

	params := scim.ListParams{
		StartIndex: queryInt(r, "startIndex", 1),
		Count:      queryInt(r, "count", defaultPageSize),
		Filter:     r.URL.Query().Get("filter"),
	}

	resp, err := h.svc.List(r.Context(), org.ID, params)
	h.trackOp("list", err)
	if err != nil {
		writeSCIMError(w, r, err)
		return
	}
	writeSCIM(w, http.StatusOK, resp)
}

// GetUser handles GET /scim/v2/Users/{id}.
func (h *usersHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	org := auth.OrganizationFromContext(r.Context())
	if org == nil {
		writeSCIMError(w, r, scim.Unauthenticated("no authenticated organization"))
		return
	}

	user, err := h.svc.Get(r.Context(), org.ID, chi.URLParam(r, "id"))
	h.trackOp("get", err)
	if err != nil {
		writeSCIMError(w, r, err)
		return
	}
	writeSCIM(w, http.StatusOK, user)
}

// CreateUser handles POST /scim/v2/Users.
func (h *usersHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	org := auth.OrganizationFromContext(r.Context())
	if org == nil {
		writeSCIMError(w, r, scim.Unauthenticated("no authenticated organization"))
		return
	}

	var input scim.UserInput
	if err := readJSON(r, &input); err != nil {
		writeSCIMError(w, r, scim.BadRequest("failed to parse request body"))
		return
	}

	user, err := h.svc.Create(r.Context(), org.ID, input)
	h.trackOp("create", err)
	if err != nil {
		writeSCIMError(w, r, err)
		return
	}

	auditLog(r, "provision", "user", user.ID, "user_name", input.UserName)

	writeSCIM(w, http.StatusCreated, user)
}

// ReplaceUser handles PUT /scim/v2/Users/{id}.
func (h *usersHandler) ReplaceUser(w http.ResponseWriter, r *http.Request) {
	org := auth.OrganizationFromContext(r.Context())
	if org == nil {
		writeSCIMError(w, r, scim.Unauthenticated("no authenticated organization"))
		return
	}
	id := chi.URLParam(r, "id")

	var input scim.UserInput
	if err := readJSON(r, &input); err != nil {
		writeSCIMError(w, r, scim.BadRequest("failed to parse request body"))
		return
	}

	user, err := h.svc.Replace(r.Context(), org.ID, id, input)
	h.trackOp("replace", err)
	if err != nil {
		writeSCIMError(w, r, err)
		return
	}

	auditLog(r, "replace", "user", id)

	writeSCIM(w, http.StatusOK, user)
}

// PatchUser handles PATCH /scim/v2/Users/{id}.
func (h *usersHandler) PatchUser(w http.ResponseWriter, r *http.Request) {
	org := auth.OrganizationFromContext(r.Context())
	if org == nil {
		writeSCIMError(w, r, scim.Unauthenticated("no authenticated organization"))
		return
	}
	id := chi.URLParam(r, "id")

	var patch scim.PatchOp
	if err := readJSON(r, &patch); err != nil {
		writeSCIMError(w, r, scim.BadRequest("failed to parse request body"))
		return
	}

	user, err := h.svc.Patch(r.Context(), org.ID, id, patch)
	h.trackOp("patch", err)
	if err != nil {
		writeSCIMError(w, r, err)
		return
	}

	auditLog(r, "patch", "user", id)

	writeSCIM(w, http.StatusOK, user)
}

// DeactivateUser handles DELETE /scim/v2/Users/{id}. The user record is kept;
// only the organization membership is revoked.
func (h *usersHandler) DeactivateUser(w http.ResponseWriter, r *http.Request) {
	org := auth.OrganizationFromContext(r.Context())
	if org == nil {
		writeSCIMError(w, r, scim.Unauthenticated("no authenticated organization"))
		return
	}
	id := chi.URLParam(r, "id")

	err := h.svc.Deactivate(r.Context(), org.ID, id)
	h.trackOp("deactivate", err)
	if err != nil {
		writeSCIMError(w, r, err)
		return
	}

	auditLog(r, "deactivate", "user", id)

	w.WriteHeader(http.StatusNoContent)
}

// queryInt parses an integer query parameter, falling back to def when the
// parameter is absent or malformed. Identity providers are not consistent
// about pagination parameters, so parsing is lenient.
func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

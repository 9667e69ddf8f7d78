package httptransport

import (
	"net/http"

	"ncrtrack/internal/domain"
)

func (h *Handler) handleMyPermissions(w http.ResponseWriter, r *http.Request) {
	actor := Actor(r.Context())

	roles, err := h.perms.Roles(r.Context(), actor)
	if err != nil {
		h.writeError(w, err)
		return
	}
	levels, err := h.perms.Resolve(r.Context(), actor)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.respond(w, http.StatusOK, map[string]any{
		"email":    actor,
		"roles":    roles,
		"sections": levels,
	})
}

func (h *Handler) handleListGrants(w http.ResponseWriter, r *http.Request) {
	grants, err := h.perms.Grants(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.respond(w, http.StatusOK, grants)
}

type grantBody struct {
	Email  string `json:"email"`
	Role   string `json:"role"`
	Sector string `json:"sector"`
}

func (h *Handler) handleAssignRole(w http.ResponseWriter, r *http.Request) {
	var body grantBody
	if err := decode(r, &body); err != nil {
		h.badRequest(w, "invalid JSON body")
		return
	}
	if body.Email == "" {
		h.badRequest(w, "email is required")
		return
	}
	if err := h.perms.Assign(r.Context(), body.Email, domain.Role(body.Role), body.Sector); err != nil {
		h.writeError(w, err)
		return
	}
	h.respond(w, http.StatusNoContent, nil)
}

func (h *Handler) handleRevokeRole(w http.ResponseWriter, r *http.Request) {
	var body grantBody
	if err := decode(r, &body); err != nil {
		h.badRequest(w, "invalid JSON body")
		return
	}
	if err := h.perms.Revoke(r.Context(), body.Email, domain.Role(body.Role)); err != nil {
		h.writeError(w, err)
		return
	}
	h.respond(w, http.StatusNoContent, nil)
}

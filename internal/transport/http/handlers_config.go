package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"ncrtrack/internal/domain"
	"ncrtrack/internal/schema"
)

// Configuration endpoints. Reads are open to any authenticated user so forms
// can render; mutations sit behind requireAdmin in the router.

func (h *Handler) handleListSections(w http.ResponseWriter, r *http.Request) {
	sections, err := h.schema.Sections(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.respond(w, http.StatusOK, sections)
}

func (h *Handler) handleSaveSection(w http.ResponseWriter, r *http.Request) {
	var section schema.Section
	if err := decode(r, &section); err != nil {
		h.badRequest(w, "invalid JSON body")
		return
	}
	if section.Name == "" {
		h.badRequest(w, "section name is required")
		return
	}
	if err := h.schema.SaveSection(r.Context(), section); err != nil {
		h.writeError(w, err)
		return
	}
	h.respond(w, http.StatusNoContent, nil)
}

func (h *Handler) handleDeleteSection(w http.ResponseWriter, r *http.Request) {
	if err := h.schema.DeleteSection(r.Context(), chi.URLParam(r, "name")); err != nil {
		h.writeError(w, err)
		return
	}
	h.respond(w, http.StatusNoContent, nil)
}

func (h *Handler) handleListFields(w http.ResponseWriter, r *http.Request) {
	fields, err := h.schema.FieldsForSection(r.Context(), chi.URLParam(r, "section"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.respond(w, http.StatusOK, fields)
}

func (h *Handler) handleSaveField(w http.ResponseWriter, r *http.Request) {
	var field schema.Field
	if err := decode(r, &field); err != nil {
		h.badRequest(w, "invalid JSON body")
		return
	}
	field.Section = chi.URLParam(r, "section")
	if field.Name == "" {
		h.badRequest(w, "field name is required")
		return
	}
	if err := h.schema.SaveField(r.Context(), field); err != nil {
		h.writeError(w, err)
		return
	}
	h.respond(w, http.StatusNoContent, nil)
}

func (h *Handler) handleDeleteField(w http.ResponseWriter, r *http.Request) {
	err := h.schema.DeleteField(r.Context(), chi.URLParam(r, "section"), chi.URLParam(r, "name"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.respond(w, http.StatusNoContent, nil)
}

func (h *Handler) handleListLists(w http.ResponseWriter, r *http.Request) {
	lists, err := h.schema.Lists(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.respond(w, http.StatusOK, lists)
}

type listBody struct {
	Items []string `json:"items"`
}

func (h *Handler) handleSaveList(w http.ResponseWriter, r *http.Request) {
	var body listBody
	if err := decode(r, &body); err != nil {
		h.badRequest(w, "invalid JSON body")
		return
	}
	if err := h.schema.SaveList(r.Context(), chi.URLParam(r, "name"), body.Items); err != nil {
		h.writeError(w, err)
		return
	}
	h.respond(w, http.StatusNoContent, nil)
}

func (h *Handler) handleDeleteList(w http.ResponseWriter, r *http.Request) {
	if err := h.schema.DeleteList(r.Context(), chi.URLParam(r, "name")); err != nil {
		h.writeError(w, err)
		return
	}
	h.respond(w, http.StatusNoContent, nil)
}

// requireAdmin gates configuration and grant mutations on the Admin role.
func (h *Handler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		roles, err := h.perms.Roles(r.Context(), Actor(r.Context()))
		if err != nil {
			h.writeError(w, err)
			return
		}
		for _, role := range roles {
			if role == domain.RoleAdmin {
				next.ServeHTTP(w, r)
				return
			}
		}
		h.respond(w, http.StatusForbidden, map[string]string{"error": "admin_required"})
	})
}

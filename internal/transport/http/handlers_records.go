package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"ncrtrack/internal/store"
	"ncrtrack/internal/workflow"
)

type submitBody struct {
	Fields map[string]string `json:"fields"`
}

func (h *Handler) handleCreateRecord(w http.ResponseWriter, r *http.Request) {
	var body submitBody
	if err := decode(r, &body); err != nil {
		h.badRequest(w, "invalid JSON body")
		return
	}

	res, err := h.engine.Submit(r.Context(), workflow.SubmitRequest{
		Patch: body.Fields,
		Actor: Actor(r.Context()),
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.respond(w, http.StatusCreated, res)
}

func (h *Handler) handleUpdateRecord(w http.ResponseWriter, r *http.Request) {
	var body submitBody
	if err := decode(r, &body); err != nil {
		h.badRequest(w, "invalid JSON body")
		return
	}

	res, err := h.engine.Submit(r.Context(), workflow.SubmitRequest{
		Number: recordNumber(r),
		Patch:  body.Fields,
		Actor:  Actor(r.Context()),
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.respond(w, http.StatusOK, res)
}

func (h *Handler) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	row, err := h.engine.Get(r.Context(), recordNumber(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.respond(w, http.StatusOK, row)
}

func (h *Handler) handleListRecords(w http.ResponseWriter, r *http.Request) {
	if term := r.URL.Query().Get("q"); term != "" {
		rows, err := h.engine.Search(r.Context(), term)
		if err != nil {
			h.writeError(w, err)
			return
		}
		h.respond(w, http.StatusOK, rowsOrEmpty(rows))
		return
	}

	filters := store.Filters{}
	if status := r.URL.Query().Get("status"); status != "" {
		filters["Status"] = status
	}
	if sector := r.URL.Query().Get("sector"); sector != "" {
		filters["Sector"] = sector
	}

	rows, err := h.engine.List(r.Context(), filters)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.respond(w, http.StatusOK, rowsOrEmpty(rows))
}

func (h *Handler) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Delete(r.Context(), recordNumber(r), Actor(r.Context())); err != nil {
		h.writeError(w, err)
		return
	}
	h.respond(w, http.StatusNoContent, nil)
}

func (h *Handler) handleRestoreRecord(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Restore(r.Context(), recordNumber(r), Actor(r.Context())); err != nil {
		h.writeError(w, err)
		return
	}
	h.respond(w, http.StatusNoContent, nil)
}

func (h *Handler) handleRecordHistory(w http.ResponseWriter, r *http.Request) {
	number := recordNumber(r)
	if _, err := h.engine.Get(r.Context(), number); err != nil {
		h.writeError(w, err)
		return
	}
	entries, err := h.trail.ForRecord(r.Context(), number)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.respond(w, http.StatusOK, entries)
}

// recordNumber rebuilds the NNNN/YYYY identifier from its two path segments.
func recordNumber(r *http.Request) string {
	return chi.URLParam(r, "seq") + "/" + chi.URLParam(r, "year")
}

func rowsOrEmpty(rows []store.Row) []store.Row {
	if rows == nil {
		return []store.Row{}
	}
	return rows
}

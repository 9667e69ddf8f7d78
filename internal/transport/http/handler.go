// Package httptransport is the thin HTTP layer over the workflow engine,
// configuration registry, and permission resolver. It translates the domain
// error taxonomy into stable status codes and JSON envelopes; business logic
// stays out of it.
package httptransport

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"ncrtrack/internal/audit"
	"ncrtrack/internal/domain"
	"ncrtrack/internal/permission"
	"ncrtrack/internal/schema"
	"ncrtrack/internal/workflow"
)

type Handler struct {
	engine *workflow.Engine
	schema *schema.Manager
	perms  *permission.Resolver
	trail  *audit.Recorder
	log    *slog.Logger
}

func NewHandler(
	engine *workflow.Engine,
	cfg *schema.Manager,
	perms *permission.Resolver,
	trail *audit.Recorder,
	log *slog.Logger,
) *Handler {
	return &Handler{engine: engine, schema: cfg, perms: perms, trail: trail, log: log}
}

func (h *Handler) respond(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.log.Error("response encode failed", "error", err)
	}
}

// writeError maps the domain taxonomy onto status codes:
// busy 503 (+Retry-After), denied 403, validation 422, not found 404,
// backend 502, everything else 500.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var denied *domain.PermissionDeniedError
	var invalid *domain.ValidationError
	var backend *domain.BackendError

	switch {
	case domain.IsRetryable(err):
		w.Header().Set("Retry-After", "2")
		h.respond(w, http.StatusServiceUnavailable, map[string]string{
			"error": "busy",
		})
	case errors.As(err, &denied):
		h.respond(w, http.StatusForbidden, map[string]any{
			"error":    "permission_denied",
			"sections": denied.Sections,
		})
	case errors.As(err, &invalid):
		h.respond(w, http.StatusUnprocessableEntity, map[string]any{
			"error":      "validation_failed",
			"fields":     invalid.Fields(),
			"violations": violationList(invalid),
		})
	case errors.Is(err, domain.ErrNotFound):
		h.respond(w, http.StatusNotFound, map[string]string{
			"error": "not_found",
		})
	case errors.As(err, &backend):
		h.log.Error("backend failure", "op", backend.Op, "error", backend.Err)
		h.respond(w, http.StatusBadGateway, map[string]string{
			"error": "backend_unavailable",
		})
	default:
		h.log.Error("unhandled error", "error", err)
		h.respond(w, http.StatusInternalServerError, map[string]string{
			"error": "internal",
		})
	}
}

func violationList(err *domain.ValidationError) []map[string]string {
	out := make([]map[string]string, len(err.Violations))
	for i, v := range err.Violations {
		out[i] = map[string]string{"field": v.Field, "rule": v.Rule}
	}
	return out
}

func decode(r *http.Request, dest any) error {
	defer r.Body.Close() //nolint:errcheck
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dest)
}

func (h *Handler) badRequest(w http.ResponseWriter, msg string) {
	h.respond(w, http.StatusBadRequest, map[string]string{"error": "bad_request", "detail": msg})
}

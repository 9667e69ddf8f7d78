package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter wires the API. Everything under /api/v1 requires a valid bearer
// token; configuration and grant mutations additionally require Admin.
func NewRouter(h *Handler, verifier TokenVerifier) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(RequireAuth(verifier, h.log))

		r.Route("/records", func(r chi.Router) {
			r.Post("/", h.handleCreateRecord)
			r.Get("/", h.handleListRecords)
			r.Route("/{seq}/{year}", func(r chi.Router) {
				r.Get("/", h.handleGetRecord)
				r.Put("/", h.handleUpdateRecord)
				r.Delete("/", h.handleDeleteRecord)
				r.Post("/restore", h.handleRestoreRecord)
				r.Get("/history", h.handleRecordHistory)
			})
		})

		r.Route("/config", func(r chi.Router) {
			r.Get("/sections", h.handleListSections)
			r.Get("/sections/{section}/fields", h.handleListFields)
			r.Get("/lists", h.handleListLists)

			r.Group(func(r chi.Router) {
				r.Use(h.requireAdmin)
				r.Post("/sections", h.handleSaveSection)
				r.Delete("/sections/{name}", h.handleDeleteSection)
				r.Post("/sections/{section}/fields", h.handleSaveField)
				r.Delete("/sections/{section}/fields/{name}", h.handleDeleteField)
				r.Post("/lists/{name}", h.handleSaveList)
				r.Delete("/lists/{name}", h.handleDeleteList)
			})
		})

		r.Route("/permissions", func(r chi.Router) {
			r.Get("/me", h.handleMyPermissions)

			r.Group(func(r chi.Router) {
				r.Use(h.requireAdmin)
				r.Get("/", h.handleListGrants)
				r.Post("/", h.handleAssignRole)
				r.Delete("/", h.handleRevokeRole)
			})
		})
	})

	return r
}

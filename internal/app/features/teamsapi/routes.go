package teamsapi

import (
	"net/http"

	"github.com/projectgoat/projectgoat/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes returns a router with the team endpoints. All routes require a
// session; mutating routes additionally require the CSRF token.
func Routes(h *Handler, m *auth.Manager) http.Handler {
	r := chi.NewRouter()
	r.Use(m.RequireSession)
	r.Use(m.VerifyCSRF)

	r.Get("/", h.ListHandler)
	r.Post("/switch", h.SwitchHandler)

	r.Route("/current", func(cr chi.Router) {
		cr.Get("/", h.CurrentHandler)
		cr.Put("/", h.RenameHandler)
		cr.Post("/archive", h.ArchiveHandler)

		cr.Route("/members", func(mr chi.Router) {
			mr.Get("/", h.MembersHandler)
			mr.Post("/", h.CreateMemberHandler)
			mr.Put("/{userID}/role", h.RoleHandler)
			mr.Delete("/{userID}", h.RemoveHandler)
		})
	})

	return r
}

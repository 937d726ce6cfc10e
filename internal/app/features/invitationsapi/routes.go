package invitationsapi

import (
	"net/http"

	"github.com/projectgoat/projectgoat/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes returns a router with the invitation endpoints.
//
// When mounted at /api/invitations:
//   - POST   /api/invitations                  (session + CSRF, admin)
//   - GET    /api/invitations                  (session + CSRF, admin)
//   - DELETE /api/invitations/{id}             (session + CSRF, admin)
//   - GET    /api/invitations/{token}/details  (public)
//   - POST   /api/invitations/{token}/accept   (public)
func Routes(h *Handler, m *auth.Manager) http.Handler {
	r := chi.NewRouter()

	r.Get("/{token}/details", h.DetailsHandler)
	r.Post("/{token}/accept", h.AcceptHandler)

	r.Group(func(pr chi.Router) {
		pr.Use(m.RequireSession)
		pr.Use(m.VerifyCSRF)
		pr.Post("/", h.CreateHandler)
		pr.Get("/", h.ListHandler)
		pr.Delete("/{id}", h.RevokeHandler)
	})

	return r
}

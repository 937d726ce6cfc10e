package profileapi

import (
	"net/http"

	"github.com/projectgoat/projectgoat/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes returns a router with the profile endpoints.
//
// When mounted at /api/users:
//   - GET /api/users/me (session)
//   - PUT /api/users/me (session + CSRF)
func Routes(h *Handler, m *auth.Manager) http.Handler {
	r := chi.NewRouter()
	r.Use(m.RequireSession)
	r.Use(m.VerifyCSRF)
	r.Get("/me", h.MeHandler)
	r.Put("/me", h.UpdateHandler)
	return r
}

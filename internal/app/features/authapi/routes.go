package authapi

import (
	"net/http"

	"github.com/projectgoat/projectgoat/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes returns a router with the authentication endpoints.
//
// When mounted at /api/auth:
//   - POST /api/auth/login           (public)
//   - POST /api/auth/register        (public)
//   - GET  /api/auth/session         (session optional)
//   - POST /api/auth/logout          (session)
//   - POST /api/auth/change-password (session + CSRF)
func Routes(h *Handler, m *auth.Manager) http.Handler {
	r := chi.NewRouter()

	r.Post("/login", h.LoginHandler)
	r.Post("/register", h.RegisterHandler)

	// The session check answers anonymously instead of rejecting.
	r.With(m.OptionalSession).Get("/session", h.SessionHandler)

	// Logout needs the session token but not the CSRF token: the most a
	// forged request could do is end its own session.
	r.With(m.RequireSession).Post("/logout", h.LogoutHandler)

	r.Group(func(pr chi.Router) {
		pr.Use(m.RequireSession)
		pr.Use(m.VerifyCSRF)
		pr.Post("/change-password", h.ChangePasswordHandler)
	})

	return r
}

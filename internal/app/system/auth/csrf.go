package auth

import (
	"crypto/subtle"
	"net/http"

	"github.com/projectgoat/projectgoat/internal/app/system/apierr"
	"go.uber.org/zap"
)

// safeMethods are read-only per RFC 9110 and skip CSRF verification.
var safeMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodHead:    true,
	http.MethodOptions: true,
}

// VerifyCSRF returns middleware that checks the CSRF header on mutating
// requests against the token bound to the server-side session. It must run
// after RequireSession so the AuthContext is present.
//
// The stored-token model (rather than a double-submit cookie) means a token
// is only ever valid for the exact session it was issued with, and rotating
// it on password change invalidates anything an attacker may have captured.
func (m *Manager) VerifyCSRF(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if safeMethods[r.Method] {
			next.ServeHTTP(w, r)
			return
		}

		a, ok := CurrentAuth(r)
		if !ok {
			apierr.Write(w, apierr.New(apierr.CodeSessionInvalid, "no session token provided"))
			return
		}

		presented := r.Header.Get(CSRFHeader)
		if presented == "" {
			apierr.Write(w, apierr.New(apierr.CodeCSRFMismatch, "missing CSRF token"))
			return
		}

		if subtle.ConstantTimeCompare([]byte(presented), []byte(a.Session.CSRFToken)) != 1 {
			// Tokens themselves are never logged.
			m.logger.Warn("CSRF token mismatch",
				zap.String("path", r.URL.Path),
				zap.String("user_id", a.User.ID.Hex()))
			apierr.Write(w, apierr.New(apierr.CodeCSRFMismatch, "CSRF token does not match session"))
			return
		}

		next.ServeHTTP(w, r)
	})
}

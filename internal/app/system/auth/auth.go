package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/projectgoat/projectgoat/internal/app/store/sessions"
	"github.com/projectgoat/projectgoat/internal/app/system/apierr"
	"github.com/projectgoat/projectgoat/internal/domain/models"
	"github.com/gorilla/securecookie"
	gorillasessions "github.com/gorilla/sessions"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Session error classification for logging and monitoring.
type sessionErrorType int

const (
	sessionErrUnknown sessionErrorType = iota
	sessionErrExpired                  // timestamp expired - normal
	sessionErrTampered                 // MAC invalid - potential attack
	sessionErrCorrupted                // decode/decrypt failed - corruption or key rotation
	sessionErrBackend                  // store/backend failure
)

/*─────────────────────────────────────────────────────────────────────────────*
| Session constants                                                           |
*─────────────────────────────────────────────────────────────────────────────*/

const (
	// SessionHeader carries the session token on API requests. The signed
	// cookie is the fallback carrier for browser clients.
	SessionHeader = "X-Session-ID"
	// CSRFHeader carries the session-bound CSRF token on mutating requests.
	CSRFHeader = "X-CSRF-Token"

	sessionTokenKey = "session_token"
)

/*─────────────────────────────────────────────────────────────────────────────*
| Manager - injectable session management                                      |
*─────────────────────────────────────────────────────────────────────────────*/

// Manager validates and issues sessions. The server-side session record is
// authoritative; the signed cookie only transports the token for browsers
// that cannot set the session header.
type Manager struct {
	cookies     *gorillasessions.CookieStore
	logger      *zap.Logger
	name        string
	sessions    *sessions.Store
	userFetcher UserFetcher

	idleTimeout     time.Duration
	absoluteTimeout time.Duration
}

// NewManager creates a Manager with the provided configuration.
//
// Parameters:
//   - sessionKey: signing key for cookies (must be ≥32 chars in production)
//   - name: session cookie name (defaults to "projectgoat-session" if empty)
//   - domain: cookie domain (empty means current host)
//   - idle: sliding inactivity timeout
//   - absolute: hard session lifetime measured from login
//   - secure: if true, cookies are Secure (for HTTPS production)
//   - logger: zap logger for session error logging
//
// Returns an error if sessionKey is empty or too weak for production mode.
func NewManager(sessionKey, name, domain string, idle, absolute time.Duration, secure bool, sessionStore *sessions.Store, logger *zap.Logger) (*Manager, error) {
	if sessionKey == "" {
		return nil, &ConfigError{Message: "session key is empty; provide ≥32 random chars"}
	}

	isWeak := len(sessionKey) < 32 || isDefaultKey(sessionKey)

	if secure {
		// In production mode, require a strong key - fail startup if weak
		if isWeak {
			return nil, &ConfigError{
				Message: "session key is too weak for production; provide ≥32 random chars (not the default dev key)",
			}
		}
	} else if isWeak {
		// In dev mode, warn but allow weak keys
		logger.Warn("session key is weak; 32+ random chars required in production",
			zap.Int("length", len(sessionKey)),
			zap.Bool("is_default", isDefaultKey(sessionKey)))
	}

	if name == "" {
		name = "projectgoat-session"
	}

	store := gorillasessions.NewCookieStore([]byte(sessionKey))
	opts := &gorillasessions.Options{
		Domain:   domain,
		Path:     "/",
		MaxAge:   int(absolute.Seconds()),
		Secure:   secure,
		HttpOnly: true,
	}

	// SameSite=Lax is the recommended setting for first-party session cookies.
	// It allows cookies on same-site requests and top-level navigations while
	// blocking cross-site POST requests.
	opts.SameSite = http.SameSiteLaxMode

	store.Options = opts

	logger.Info("session manager initialized",
		zap.Bool("secure", secure),
		zap.String("name", name),
		zap.Duration("idle_timeout", idle),
		zap.Duration("absolute_timeout", absolute))

	return &Manager{
		cookies:         store,
		logger:          logger,
		name:            name,
		sessions:        sessionStore,
		idleTimeout:     idle,
		absoluteTimeout: absolute,
	}, nil
}

// ConfigError is returned when session configuration is invalid.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return e.Message
}

// SessionName returns the configured session cookie name.
func (m *Manager) SessionName() string {
	return m.name
}

// IdleTimeout returns the sliding inactivity timeout.
func (m *Manager) IdleTimeout() time.Duration { return m.idleTimeout }

// AbsoluteTimeout returns the hard session lifetime.
func (m *Manager) AbsoluteTimeout() time.Duration { return m.absoluteTimeout }

// SetUserFetcher sets the UserFetcher used to fetch fresh user data on each
// request. This must be called after database initialization.
func (m *Manager) SetUserFetcher(uf UserFetcher) {
	m.userFetcher = uf
}

/*─────────────────────────────────────────────────────────────────────────────*
| UserFetcher interface                                                       |
*─────────────────────────────────────────────────────────────────────────────*/

// UserFetcher fetches fresh user data from the database. Fetching on every
// request means disabled accounts and profile updates take effect immediately.
type UserFetcher interface {
	// FetchUser retrieves a user by ID. Returns mongo.ErrNoDocuments if the
	// user does not exist.
	FetchUser(ctx context.Context, userID primitive.ObjectID) (*models.User, error)
}

/*─────────────────────────────────────────────────────────────────────────────*
| Auth context                                                                |
*─────────────────────────────────────────────────────────────────────────────*/

// AuthContext is the authenticated state attached to a request: the fresh
// user record and the validated server-side session.
type AuthContext struct {
	User    *models.User
	Session *sessions.Session
}

// UserID returns the authenticated user's ObjectID.
func (a *AuthContext) UserID() primitive.ObjectID {
	return a.User.ID
}

// SessionToken returns the token of the session backing this request.
func (a *AuthContext) SessionToken() string {
	return a.Session.Token
}

// CurrentTeamID returns the team context carried by the session, or the zero
// ObjectID when none is set.
func (a *AuthContext) CurrentTeamID() primitive.ObjectID {
	if a.Session.CurrentTeamID == nil {
		return primitive.NilObjectID
	}
	return *a.Session.CurrentTeamID
}

type ctxKey string

const authCtxKey ctxKey = "authContext"

// CurrentAuth returns the auth context & "found?" flag from the request context.
func CurrentAuth(r *http.Request) (*AuthContext, bool) {
	a, ok := r.Context().Value(authCtxKey).(*AuthContext)
	return a, ok
}

/*─────────────────────────────────────────────────────────────────────────────*
| Session issue / teardown                                                     |
*─────────────────────────────────────────────────────────────────────────────*/

// IssueSession creates a server-side session for the user and sets the
// session cookie. The returned record carries the token and CSRF token the
// client needs.
func (m *Manager) IssueSession(ctx context.Context, w http.ResponseWriter, r *http.Request, userID primitive.ObjectID, teamID *primitive.ObjectID, ip, userAgent string) (sessions.Session, error) {
	now := time.Now()
	rec, err := m.sessions.Create(ctx, sessions.Session{
		UserID:        userID,
		CurrentTeamID: teamID,
		IPAddress:     ip,
		UserAgent:     userAgent,
		LoginAt:       now,
		LastActivity:  now,
		// Retention margin past the absolute deadline so closed sessions
		// stay inspectable before the TTL removes them.
		ExpiresAt: now.Add(m.absoluteTimeout + 24*time.Hour),
	})
	if err != nil {
		return sessions.Session{}, err
	}

	sess, err := m.cookies.Get(r, m.name)
	if err != nil {
		sess, _ = m.cookies.New(r, m.name)
	}
	sess.Values[sessionTokenKey] = rec.Token
	if err := sess.Save(r, w); err != nil {
		m.logger.Warn("failed to set session cookie", zap.Error(err))
	}
	return rec, nil
}

// ClearCookie expires the session cookie.
func (m *Manager) ClearCookie(w http.ResponseWriter, r *http.Request) {
	sess, err := m.cookies.Get(r, m.name)
	if err != nil {
		return
	}
	delete(sess.Values, sessionTokenKey)
	sess.Options.MaxAge = -1
	_ = sess.Save(r, w)
}

// TokenFromRequest extracts the session token, preferring the session header
// over the signed cookie.
func (m *Manager) TokenFromRequest(r *http.Request) string {
	if tok := strings.TrimSpace(r.Header.Get(SessionHeader)); tok != "" {
		return tok
	}
	sess, err := m.cookies.Get(r, m.name)
	if err != nil {
		m.logCookieError(err, r)
		return ""
	}
	if tok, ok := sess.Values[sessionTokenKey].(string); ok {
		return tok
	}
	return ""
}

/*─────────────────────────────────────────────────────────────────────────────*
| Validation                                                                   |
*─────────────────────────────────────────────────────────────────────────────*/

// Validate checks a token against the server-side session records.
//
// Absolute expiry is checked before idle expiry: a session past both limits
// reports the absolute reason. Valid sessions get their activity bumped, so
// the idle window slides on every authenticated request.
func (m *Manager) Validate(ctx context.Context, token, ip, userAgent string) (*sessions.Session, error) {
	if token == "" {
		return nil, apierr.New(apierr.CodeSessionInvalid, "no session token provided")
	}

	rec, err := m.sessions.GetOpenByToken(ctx, token)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, apierr.New(apierr.CodeSessionInvalid, "session not found or already ended")
		}
		return nil, err
	}

	now := time.Now()

	if now.Sub(rec.LoginAt) >= m.absoluteTimeout {
		if cerr := m.sessions.Close(ctx, token, sessions.EndReasonExpiredAbsolute); cerr != nil {
			m.logger.Warn("failed to close absolutely expired session", zap.Error(cerr))
		}
		return nil, apierr.New(apierr.CodeSessionExpiredAbsolute, "session exceeded its maximum lifetime; log in again")
	}

	if now.Sub(rec.LastActivity) >= m.idleTimeout {
		if cerr := m.sessions.Close(ctx, token, sessions.EndReasonExpiredIdle); cerr != nil {
			m.logger.Warn("failed to close idle session", zap.Error(cerr))
		}
		return nil, apierr.New(apierr.CodeSessionExpiredIdle, "session expired due to inactivity; log in again")
	}

	if err := m.sessions.Touch(ctx, token, ip, userAgent); err != nil {
		m.logger.Warn("failed to touch session", zap.Error(err))
	}
	rec.LastActivity = now

	return rec, nil
}

/*─────────────────────────────────────────────────────────────────────────────*
| Middleware                                                                  |
*─────────────────────────────────────────────────────────────────────────────*/

// authenticate resolves the request's session token to an AuthContext.
// Errors come back as apierr values with the matching session code.
func (m *Manager) authenticate(r *http.Request) (*AuthContext, error) {
	token := m.TokenFromRequest(r)

	rec, err := m.Validate(r.Context(), token, clientIP(r), r.UserAgent())
	if err != nil {
		return nil, err
	}

	if m.userFetcher == nil {
		m.logger.Error("no user fetcher configured; rejecting authenticated request")
		return nil, apierr.New(apierr.CodeInternal, "internal server error")
	}

	user, err := m.userFetcher.FetchUser(r.Context(), rec.UserID)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			// User deleted while the session was live.
			_ = m.sessions.Close(r.Context(), token, sessions.EndReasonRevoked)
			return nil, apierr.New(apierr.CodeSessionInvalid, "session user no longer exists")
		}
		return nil, err
	}

	if user.Status == models.StatusDisabled {
		_ = m.sessions.Close(r.Context(), token, sessions.EndReasonRevoked)
		return nil, apierr.New(apierr.CodeAccountDisabled, "account is disabled")
	}

	return &AuthContext{User: user, Session: rec}, nil
}

// RequireSession returns middleware that authenticates the request against
// the server-side session store and injects the AuthContext. Requests with a
// missing, invalid, or expired session are rejected with the matching error
// code.
func (m *Manager) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a, err := m.authenticate(r)
		if err != nil {
			apierr.Write(w, err)
			return
		}
		next.ServeHTTP(w, withAuth(r, a))
	})
}

// OptionalSession authenticates like RequireSession when the request carries
// a usable token, but a missing, unknown, or already-ended session is not an
// error: the request proceeds without an AuthContext. Expired sessions still
// surface their idle/absolute codes so clients can tell a timeout apart from
// never having logged in.
func (m *Manager) OptionalSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a, err := m.authenticate(r)
		if err != nil {
			var apiErr *apierr.Error
			if errors.As(err, &apiErr) && apiErr.Code == apierr.CodeSessionInvalid {
				next.ServeHTTP(w, r)
				return
			}
			apierr.Write(w, err)
			return
		}
		next.ServeHTTP(w, withAuth(r, a))
	})
}

/*─────────────────────────────────────────────────────────────────────────────*
| Helpers                                                                     |
*─────────────────────────────────────────────────────────────────────────────*/

func withAuth(r *http.Request, a *AuthContext) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), authCtxKey, a))
}

// WithTestAuth injects an AuthContext into the request context for testing.
func WithTestAuth(r *http.Request, a *AuthContext) *http.Request {
	return withAuth(r, a)
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	if idx := strings.LastIndex(r.RemoteAddr, ":"); idx != -1 {
		return r.RemoteAddr[:idx]
	}
	return r.RemoteAddr
}

func (m *Manager) logCookieError(err error, r *http.Request) {
	errType, errCategory := classifySessionError(err)
	switch errType {
	case sessionErrExpired:
		m.logger.Debug("session cookie expired",
			zap.String("category", errCategory),
			zap.String("path", r.URL.Path))
	case sessionErrTampered:
		m.logger.Warn("session cookie MAC validation failed (possible tampering)",
			zap.String("category", errCategory),
			zap.String("path", r.URL.Path),
			zap.String("remote_addr", r.RemoteAddr),
			zap.String("user_agent", r.UserAgent()))
	case sessionErrCorrupted:
		m.logger.Info("session cookie decode failed",
			zap.String("category", errCategory),
			zap.String("path", r.URL.Path))
	case sessionErrBackend:
		m.logger.Error("session cookie store error",
			zap.Error(err),
			zap.String("path", r.URL.Path))
	default:
		m.logger.Warn("session cookie error",
			zap.Error(err),
			zap.String("category", errCategory),
			zap.String("path", r.URL.Path))
	}
}

// isDefaultKey checks if the session key appears to be a default/placeholder value.
func isDefaultKey(key string) bool {
	lower := strings.ToLower(key)
	patterns := []string{
		"dev-only",
		"change-me",
		"placeholder",
		"default",
		"example",
		"insecure",
		"test-key",
		"secret123",
		"password",
	}
	for _, p := range patterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// classifySessionError categorizes a session/cookie error for appropriate logging.
func classifySessionError(err error) (sessionErrorType, string) {
	if err == nil {
		return sessionErrUnknown, "none"
	}

	errStr := strings.ToLower(err.Error())

	if scErr, ok := err.(securecookie.Error); ok {
		if !scErr.IsDecode() {
			return sessionErrBackend, "backend"
		}

		switch {
		case strings.Contains(errStr, "expired timestamp"):
			return sessionErrExpired, "expired"
		case strings.Contains(errStr, "mac") || strings.Contains(errStr, "hash"):
			return sessionErrTampered, "mac_invalid"
		case strings.Contains(errStr, "decrypt"):
			return sessionErrCorrupted, "decrypt_failed"
		case strings.Contains(errStr, "base64") || strings.Contains(errStr, "decode"):
			return sessionErrCorrupted, "decode_failed"
		default:
			return sessionErrCorrupted, "decode_other"
		}
	}

	return sessionErrBackend, "unknown"
}

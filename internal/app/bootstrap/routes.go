// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"
	"time"

	"github.com/dalemusser/waffle/config"
	"github.com/dalemusser/waffle/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	authapifeature "github.com/projectgoat/projectgoat/internal/app/features/authapi"
	healthfeature "github.com/projectgoat/projectgoat/internal/app/features/health"
	invitationsapifeature "github.com/projectgoat/projectgoat/internal/app/features/invitationsapi"
	profileapifeature "github.com/projectgoat/projectgoat/internal/app/features/profileapi"
	teamsapifeature "github.com/projectgoat/projectgoat/internal/app/features/teamsapi"
	"github.com/projectgoat/projectgoat/internal/app/store/attempts"
	invitationstore "github.com/projectgoat/projectgoat/internal/app/store/invitation"
	loginstore "github.com/projectgoat/projectgoat/internal/app/store/logins"
	membershipstore "github.com/projectgoat/projectgoat/internal/app/store/memberships"
	sessionstore "github.com/projectgoat/projectgoat/internal/app/store/sessions"
	"github.com/projectgoat/projectgoat/internal/app/store/taskstore"
	teamstore "github.com/projectgoat/projectgoat/internal/app/store/teams"
	userstore "github.com/projectgoat/projectgoat/internal/app/store/users"
	"github.com/projectgoat/projectgoat/internal/app/system/apierr"
	"github.com/projectgoat/projectgoat/internal/app/system/auth"
	"github.com/projectgoat/projectgoat/internal/app/system/authz"
	"github.com/projectgoat/projectgoat/internal/app/system/ratelimit"
	"github.com/projectgoat/projectgoat/internal/app/system/reqlog"
	"github.com/projectgoat/projectgoat/internal/app/system/teamrules"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// any Startup hooks have completed. At this point you have access to:
//   - coreCfg: WAFFLE core configuration (ports, env, timeouts, etc.)
//   - appCfg: app-specific configuration defined in AppConfig
//   - deps: any DB or backend clients bundled in DBDeps
//   - logger: the fully configured zap.Logger for this app
//
// This function should:
//  1. Create a router (chi, standard mux, etc.)
//  2. Mount feature routers for different parts of your application
//  3. Add any additional middleware needed for specific routes
//  4. Return the configured router as an http.Handler
//
// All routes here are JSON APIs. Authentication is the X-Session-ID header
// checked against the sessions collection; state-changing routes also
// require the session's X-CSRF-Token header. Feature routers apply those
// checks themselves via auth.Manager middleware.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	db := deps.MongoDatabase

	// Secure cookies and strict session-key checks in production mode.
	secure := coreCfg.Env == "prod"

	sessionsStore := sessionstore.New(db)

	manager, err := auth.NewManager(
		appCfg.SessionKey,
		appCfg.SessionName,
		appCfg.SessionDomain,
		appCfg.SessionIdleTimeout,
		appCfg.SessionAbsoluteTimeout,
		secure,
		sessionsStore,
		logger,
	)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}

	// Fetch fresh user data on each request so disabled accounts and
	// profile updates take effect immediately.
	manager.SetUserFetcher(userstore.NewFetcher(db, logger))

	users := userstore.New(db)
	teams := teamstore.New(db)
	memberships := membershipstore.New(db)
	logins := loginstore.New(db)
	tasks := taskstore.New(db)
	invitations := invitationstore.New(db, appCfg.InvitationExpiry)

	guard := ratelimit.NewGuard(
		attempts.New(db),
		appCfg.RateLimitLoginAttempts,
		appCfg.RateLimitLoginWindow,
		appCfg.RateLimitLoginLockout,
	)

	resolver := authz.NewResolver(memberships)
	rules := teamrules.NewChecker(teams, memberships)

	r := chi.NewRouter()

	// ─────────────────────────────────────────────────────────────────────────────
	// Global Middleware (applies to ALL routes)
	// ─────────────────────────────────────────────────────────────────────────────

	// Request timeout middleware: prevents requests from hanging indefinitely.
	r.Use(chimw.Timeout(30 * time.Second))

	// CORS middleware: must be early in the chain to handle preflight requests.
	r.Use(middleware.CORSFromConfig(coreCfg))

	// Security headers middleware: adds X-Frame-Options, X-Content-Type-Options, etc.
	r.Use(middleware.SecurityHeadersFromConfig(coreCfg))

	// Request logging with an X-Request-ID on every response.
	r.Use(reqlog.Middleware(logger))

	// ─────────────────────────────────────────────────────────────────────────────
	// Routes
	// ─────────────────────────────────────────────────────────────────────────────

	// Authentication: register, login, logout, session, password change.
	authHandler := authapifeature.NewHandler(
		db, users, teams, memberships, sessionsStore, logins,
		guard, manager, deps.Mailer, appCfg.BaseURL, logger,
	)
	r.Mount("/api/auth", authapifeature.Routes(authHandler, manager))

	// Current-user profile and login history.
	profileHandler := profileapifeature.NewHandler(users, logins, logger)
	r.Mount("/api/users", profileapifeature.Routes(profileHandler, manager))

	// Teams, memberships, roles, and member removal.
	teamsHandler := teamsapifeature.NewHandler(
		db, teams, memberships, users, tasks, sessionsStore,
		resolver, rules, logger,
	)
	r.Mount("/api/teams", teamsapifeature.Routes(teamsHandler, manager))

	// Invitations: create, list, revoke, inspect, accept.
	invitationsHandler := invitationsapifeature.NewHandler(
		db, invitations, teams, memberships, users, manager,
		resolver, rules, deps.Mailer, appCfg.BaseURL, logger,
	)
	r.Mount("/api/invitations", invitationsapifeature.Routes(invitationsHandler, manager))

	// Health check endpoints for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.MongoClient, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))
	r.Mount("/api/health", healthfeature.Routes(healthHandler))
	healthfeature.MountRootEndpoints(r, healthHandler)

	// 404 catch-all for unmatched routes
	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		apierr.Write(w, apierr.New(apierr.CodeNotFound, "resource not found"))
	})

	return r, nil
}

// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). They represent *app-level*
// configuration, not WAFFLE core configuration.
//
// WAFFLE's CoreConfig handles framework-level settings like:
//   - HTTP/HTTPS ports and TLS configuration
//   - Logging level and format
//   - CORS settings
//   - Request body size limits
//   - Database connection timeouts
//
// AppConfig is where everything specific to this application lives.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64 // Maximum connections in pool (default: 100)
	MongoMinPoolSize uint64 // Minimum connections to keep warm (default: 10)

	// Session management configuration
	SessionKey             string        // Secret key for signing session cookies (must be strong in production)
	SessionName            string        // Cookie name for sessions (default: projectgoat-session)
	SessionDomain          string        // Cookie domain (blank means current host)
	SessionIdleTimeout     time.Duration // Inactivity window before a session expires (default: 30m)
	SessionAbsoluteTimeout time.Duration // Hard session lifetime regardless of activity (default: 8h)

	// Rate limiting configuration
	RateLimitLoginAttempts int           // Max failed login attempts before lockout (default: 5)
	RateLimitLoginWindow   time.Duration // Time window for counting failed attempts (default: 15m)
	RateLimitLoginLockout  time.Duration // Lockout duration after exceeding limit (default: 15m)

	// Attempt ledger retention; older attempt rows are purged by a
	// background job.
	LoginAttemptRetention time.Duration

	// Invitation settings
	InvitationExpiry time.Duration // How long invitation tokens stay valid (default: 168h)

	// Email/SMTP configuration
	MailEnabled  bool   // Send emails; disable for local development without SMTP
	MailSMTPHost string // SMTP server host (e.g., localhost for Mailpit)
	MailSMTPPort int    // SMTP server port (e.g., 1025 for Mailpit, 587 for SES)
	MailSMTPUser string // SMTP username (empty for Mailpit)
	MailSMTPPass string // SMTP password
	MailFrom     string // From email address (e.g., noreply@example.com)
	MailFromName string // From display name

	// Base URL for links in emails (invitations, login)
	BaseURL string // e.g., "https://example.com" or "http://localhost:3000"

	// Admin seeding configuration
	SeedAdminEmail    string // Email of the admin user to create on startup (if set)
	SeedAdminName     string // Name of the admin user to create on startup
	SeedAdminPassword string // Initial password for the seeded admin
	SeedAdminTeam     string // Name of the team created for the seeded admin
}

// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"

	"github.com/dalemusser/waffle/config"
	"github.com/projectgoat/projectgoat/internal/app/system/seeding"
	"github.com/projectgoat/projectgoat/internal/app/system/tasks"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Startup runs once after DB connections and schema/index setup are complete,
// but before the HTTP handler is built and requests are served.
//
// This is the place for one-time initialization that depends on having live
// database connections and fully loaded configuration. Unlike ConnectDB and
// EnsureSchema which focus on infrastructure, Startup is for application-level
// initialization.
//
// Returning a non-nil error will abort startup and prevent the server from
// starting. Returning nil signals that initialization succeeded.
//
// The context will be cancelled if the process is asked to shut down while
// Startup is running; honor it in any long-running work.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	// Seed the initial admin user, team, and membership if configured.
	if err := seeding.SeedAll(ctx, deps.MongoDatabase, logger, seeding.AdminSeed{
		Email:    appCfg.SeedAdminEmail,
		FullName: appCfg.SeedAdminName,
		Password: appCfg.SeedAdminPassword,
		TeamName: appCfg.SeedAdminTeam,
	}); err != nil {
		logger.Error("failed to seed admin user", zap.Error(err))
		return err
	}

	// Start background task runner
	startTaskRunner(deps.MongoDatabase, appCfg, logger)

	return nil
}

// taskRunner is the global task runner instance, used for graceful shutdown.
var taskRunner *tasks.Runner

// startTaskRunner initializes and starts the background task runner.
func startTaskRunner(db *mongo.Database, appCfg AppConfig, logger *zap.Logger) {
	taskRunner = tasks.New(logger)

	// Close sessions idle past the inactivity window and sessions past
	// their absolute lifetime.
	taskRunner.Register(tasks.IdleSessionCloseJob(db, appCfg.SessionIdleTimeout, logger))
	taskRunner.Register(tasks.AbsoluteSessionCloseJob(db, appCfg.SessionAbsoluteTimeout, logger))

	// Purge expired invitations and aged login-attempt rows.
	taskRunner.Register(tasks.InvitationCleanupJob(db, logger))
	taskRunner.Register(tasks.LoginAttemptCleanupJob(db, appCfg.LoginAttemptRetention, logger))

	// Start running jobs
	taskRunner.Start()
}

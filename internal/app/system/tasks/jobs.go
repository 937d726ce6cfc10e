// internal/app/system/tasks/jobs.go
package tasks

import (
	"context"
	"time"

	"github.com/projectgoat/projectgoat/internal/app/store/attempts"
	"github.com/projectgoat/projectgoat/internal/app/store/sessions"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// IdleSessionCloseJob closes open sessions whose last activity fell outside
// the idle window. The session validator also closes idle sessions lazily on
// their next request; this job sweeps the ones that never come back.
func IdleSessionCloseJob(db *mongo.Database, idle time.Duration, logger *zap.Logger) Job {
	store := sessions.New(db)
	return Job{
		Name:     "idle-session-close",
		Interval: 5 * time.Minute,
		Run: func(ctx context.Context) error {
			closed, err := store.CloseIdleSessions(ctx, idle)
			if err != nil {
				return err
			}
			if closed > 0 {
				logger.Info("closed idle sessions", zap.Int64("closed", closed))
			}
			return nil
		},
	}
}

// AbsoluteSessionCloseJob closes open sessions that have outlived the
// absolute lifetime measured from login.
func AbsoluteSessionCloseJob(db *mongo.Database, lifetime time.Duration, logger *zap.Logger) Job {
	store := sessions.New(db)
	return Job{
		Name:     "absolute-session-close",
		Interval: 15 * time.Minute,
		Run: func(ctx context.Context) error {
			closed, err := store.CloseAbsoluteExpired(ctx, lifetime)
			if err != nil {
				return err
			}
			if closed > 0 {
				logger.Info("closed sessions past absolute lifetime", zap.Int64("closed", closed))
			}
			return nil
		},
	}
}

// InvitationCleanupJob removes invitations that expired without ever being
// accepted, once they are 30 days past expiry. Accepted invitations are kept.
func InvitationCleanupJob(db *mongo.Database, logger *zap.Logger) Job {
	return Job{
		Name:     "invitation-cleanup",
		Interval: 6 * time.Hour,
		Run: func(ctx context.Context) error {
			cutoff := time.Now().Add(-30 * 24 * time.Hour)
			result, err := db.Collection("invitations").DeleteMany(ctx, bson.M{
				"used_at":    nil,
				"expires_at": bson.M{"$lt": cutoff},
			})
			if err != nil {
				return err
			}
			if result.DeletedCount > 0 {
				logger.Info("cleaned up old invitations",
					zap.Int64("deleted", result.DeletedCount))
			}
			return nil
		},
	}
}

// LoginAttemptCleanupJob purges login attempt rows older than the retention
// window. The rate limiter only looks at the recent window, so old rows are
// pure storage cost.
func LoginAttemptCleanupJob(db *mongo.Database, retention time.Duration, logger *zap.Logger) Job {
	store := attempts.New(db)
	return Job{
		Name:     "login-attempt-cleanup",
		Interval: 6 * time.Hour,
		Run: func(ctx context.Context) error {
			deleted, err := store.DeleteBefore(ctx, time.Now().Add(-retention))
			if err != nil {
				return err
			}
			if deleted > 0 {
				logger.Info("purged old login attempts", zap.Int64("deleted", deleted))
			}
			return nil
		},
	}
}

// internal/app/system/seeding/seeding.go
package seeding

import (
	"context"

	membershipstore "github.com/projectgoat/projectgoat/internal/app/store/memberships"
	teamstore "github.com/projectgoat/projectgoat/internal/app/store/teams"
	userstore "github.com/projectgoat/projectgoat/internal/app/store/users"
	"github.com/projectgoat/projectgoat/internal/app/system/authutil"
	"github.com/projectgoat/projectgoat/internal/domain/models"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// AdminSeed describes the bootstrap administrator created on first run.
// Email and Password must both be set for seeding to happen.
type AdminSeed struct {
	Email    string
	FullName string
	Password string
	TeamName string
}

// SeedAll seeds default data if not already present.
func SeedAll(ctx context.Context, db *mongo.Database, logger *zap.Logger, seed AdminSeed) error {
	return seedAdmin(ctx, db, logger, seed)
}

// seedAdmin creates the initial admin user, their team, and an admin
// membership. It is a no-op when seeding is not configured or the user
// already exists, so it is safe to run on every startup.
func seedAdmin(ctx context.Context, db *mongo.Database, logger *zap.Logger, seed AdminSeed) error {
	if seed.Email == "" || seed.Password == "" {
		logger.Info("admin seeding skipped (not configured)")
		return nil
	}

	users := userstore.New(db)

	exists, err := users.ExistsByEmail(ctx, seed.Email)
	if err != nil {
		logger.Error("failed to check for existing admin user",
			zap.String("email", seed.Email),
			zap.Error(err))
		return err
	}
	if exists {
		return nil
	}

	hash, err := authutil.HashPassword(seed.Password)
	if err != nil {
		return err
	}

	fullName := seed.FullName
	if fullName == "" {
		fullName = "Administrator"
	}

	admin, err := users.Create(ctx, models.User{
		FullName:     fullName,
		Email:        seed.Email,
		PasswordHash: hash,
		Status:       models.StatusActive,
	})
	if err != nil {
		logger.Error("failed to seed admin user",
			zap.String("email", seed.Email),
			zap.Error(err))
		return err
	}

	teamName := seed.TeamName
	if teamName == "" {
		teamName = "Default Team"
	}

	teams := teamstore.New(db)
	team, err := teams.Create(ctx, models.Team{
		Name:        teamName,
		AccountType: models.AccountTypeMulti,
		Status:      models.TeamStatusActive,
		CreatedBy:   admin.ID,
	})
	if err != nil {
		logger.Error("failed to seed admin team",
			zap.String("team", teamName),
			zap.Error(err))
		return err
	}

	memberships := membershipstore.New(db)
	if _, err := memberships.Create(ctx, models.Membership{
		TeamID: team.ID,
		UserID: admin.ID,
		Role:   models.RoleAdmin,
	}); err != nil {
		logger.Error("failed to seed admin membership", zap.Error(err))
		return err
	}

	logger.Info("seeded admin user",
		zap.String("email", admin.Email),
		zap.String("team", team.Name))
	return nil
}

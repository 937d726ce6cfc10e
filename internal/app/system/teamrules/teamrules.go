// Package teamrules holds cross-store team invariants that more than one
// feature has to enforce.
package teamrules

import (
	"context"
	"fmt"

	membershipstore "github.com/projectgoat/projectgoat/internal/app/store/memberships"
	teamstore "github.com/projectgoat/projectgoat/internal/app/store/teams"
	"github.com/projectgoat/projectgoat/internal/app/system/apierr"
	"github.com/projectgoat/projectgoat/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Checker evaluates join rules against the team and membership stores.
type Checker struct {
	teams       *teamstore.Store
	memberships *membershipstore.Store
}

// NewChecker creates a Checker.
func NewChecker(teams *teamstore.Store, memberships *membershipstore.Store) *Checker {
	return &Checker{teams: teams, memberships: memberships}
}

// CanJoin reports whether the user may become a member of the team.
//
// A join is rejected when:
//   - the target team is archived,
//   - the target team has the "single" account type and already has a member,
//   - the user already belongs to a "single" account type team.
//
// Returns nil when the join is allowed; otherwise an API error with
// CodeConflict (or CodeNotFound for a missing team).
func (c *Checker) CanJoin(ctx context.Context, teamID, userID primitive.ObjectID) error {
	team, err := c.teams.GetByID(ctx, teamID)
	if err != nil {
		return apierr.New(apierr.CodeNotFound, "team not found")
	}
	if team.Status == models.TeamStatusArchived {
		return apierr.New(apierr.CodeConflict, "team is archived")
	}

	if team.AccountType == models.AccountTypeSingle {
		n, err := c.memberships.CountMembers(ctx, teamID)
		if err != nil {
			return fmt.Errorf("count members: %w", err)
		}
		if n > 0 {
			return apierr.New(apierr.CodeConflict, "this team does not accept additional members")
		}
	}

	existing, err := c.memberships.ListByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("list memberships: %w", err)
	}
	if len(existing) == 0 {
		return nil
	}

	ids := make([]primitive.ObjectID, 0, len(existing))
	for _, m := range existing {
		ids = append(ids, m.TeamID)
	}
	teams, err := c.teams.GetByIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("load teams: %w", err)
	}
	for _, t := range teams {
		if t.AccountType == models.AccountTypeSingle {
			return apierr.New(apierr.CodeConflict, "your account type does not allow joining additional teams")
		}
	}
	return nil
}

// internal/app/system/authz/authz.go
package authz

import (
	"context"
	"errors"

	membershipstore "github.com/projectgoat/projectgoat/internal/app/store/memberships"
	"github.com/projectgoat/projectgoat/internal/app/system/apierr"
	"github.com/projectgoat/projectgoat/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Capability is a predicate over a membership role. Handlers authorize
// against capabilities, never against raw role strings, so role semantics
// stay in one place.
type Capability func(role string) bool

// Team capabilities, from most to least restrictive.
var (
	// CanManageTeam covers renaming, archiving, and account-type changes.
	CanManageTeam Capability = func(role string) bool {
		return role == models.RoleAdmin
	}

	// CanManageMembers covers inviting, removing, and role changes.
	CanManageMembers Capability = func(role string) bool {
		return role == models.RoleAdmin
	}

	// CanEditTasks covers creating, assigning, and completing tasks.
	CanEditTasks Capability = func(role string) bool {
		return role == models.RoleAdmin || role == models.RoleMember
	}

	// CanView covers read access to team data. Every member has it.
	CanView Capability = func(role string) bool {
		return models.IsValidRole(role)
	}
)

// Resolver derives the caller's authority in a team from the membership
// collection on every check. Roles are never read from the session or the
// request; a role change takes effect on the next request.
type Resolver struct {
	memberships *membershipstore.Store
}

// NewResolver creates a Resolver over the membership store.
func NewResolver(memberships *membershipstore.Store) *Resolver {
	return &Resolver{memberships: memberships}
}

// Membership returns the caller's membership in the team. Non-members get
// CodeNotTeamMember; lookups fail closed.
func (z *Resolver) Membership(ctx context.Context, teamID, userID primitive.ObjectID) (*models.Membership, error) {
	m, err := z.memberships.Get(ctx, teamID, userID)
	if err != nil {
		if errors.Is(err, membershipstore.ErrNotFound) {
			return nil, apierr.New(apierr.CodeNotTeamMember, "you are not a member of this team")
		}
		return nil, err
	}
	return m, nil
}

// Require returns the caller's membership if it grants the capability.
// Members without the capability get CodeInsufficientRole.
func (z *Resolver) Require(ctx context.Context, teamID, userID primitive.ObjectID, cap Capability) (*models.Membership, error) {
	m, err := z.Membership(ctx, teamID, userID)
	if err != nil {
		return nil, err
	}
	if !cap(m.Role) {
		return nil, apierr.New(apierr.CodeInsufficientRole, "your role does not permit this action")
	}
	return m, nil
}

// internal/domain/models/membership.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Membership links a user to a team with a role. A user holds at most one
// membership per team; the (team_id, user_id) pair is unique.
type Membership struct {
	ID        primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	TeamID    primitive.ObjectID  `bson:"team_id" json:"team_id"`
	UserID    primitive.ObjectID  `bson:"user_id" json:"user_id"`
	Role      string              `bson:"role" json:"role"` // admin, member, viewer
	InvitedBy *primitive.ObjectID `bson:"invited_by,omitempty" json:"invited_by,omitempty"`
	JoinedAt  time.Time           `bson:"joined_at" json:"joined_at"`
	UpdatedAt time.Time           `bson:"updated_at" json:"updated_at"`
}

// Membership roles, from most to least privileged.
const (
	RoleAdmin  = "admin"
	RoleMember = "member"
	RoleViewer = "viewer"
)

// AllRoles returns all valid membership roles.
func AllRoles() []string {
	return []string{RoleAdmin, RoleMember, RoleViewer}
}

// IsValidRole checks if a role is valid.
func IsValidRole(role string) bool {
	for _, r := range AllRoles() {
		if r == role {
			return true
		}
	}
	return false
}

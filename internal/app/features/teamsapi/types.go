package teamsapi

import (
	"time"

	"github.com/projectgoat/projectgoat/internal/domain/models"
)

// TeamPayload is the wire shape for a team plus the caller's role in it.
type TeamPayload struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	AccountType string    `json:"accountType"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
	Role        string    `json:"role,omitempty"`
}

// MemberPayload is the wire shape for one team member.
type MemberPayload struct {
	UserID   string    `json:"userId"`
	Name     string    `json:"name"`
	Email    string    `json:"email"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joinedAt"`
}

// RenameInput is the PUT /api/teams/current request body.
type RenameInput struct {
	Name string `json:"name" validate:"required,max=200" label:"Team name"`
}

// SwitchInput is the POST /api/teams/switch request body.
type SwitchInput struct {
	TeamID string `json:"teamId" validate:"required,objectid" label:"Team"`
}

// CreateMemberInput is the POST /api/teams/current/members request body
// for direct member creation by an admin.
type CreateMemberInput struct {
	Name     string `json:"name" validate:"required,max=200" label:"Name"`
	Email    string `json:"email" validate:"required,email,max=254" label:"Email"`
	Password string `json:"password" validate:"required" label:"Password"`
	Role     string `json:"role" validate:"required,role" label:"Role"`
}

// RoleInput is the PUT /api/teams/current/members/{userID}/role request body.
type RoleInput struct {
	Role string `json:"role" validate:"required,role" label:"Role"`
}

// Member-removal task dispositions.
const (
	DispositionUnassign      = "unassign"
	DispositionReassignAdmin = "reassign_admin"
	DispositionKeep          = "keep"
)

// teamPayload converts a team plus the caller's role to its wire shape.
func teamPayload(t *models.Team, role string) TeamPayload {
	return TeamPayload{
		ID:          t.ID.Hex(),
		Name:        t.Name,
		AccountType: t.AccountType,
		Status:      t.Status,
		CreatedAt:   t.CreatedAt,
		Role:        role,
	}
}

package invitationsapi

import (
	"time"

	invitationstore "github.com/projectgoat/projectgoat/internal/app/store/invitation"
)

// CreateInput is the POST /api/invitations request body.
type CreateInput struct {
	Email string `json:"email" validate:"required,email,max=254" label:"Email"`
	Role  string `json:"role" validate:"required,role" label:"Role"`
}

// AcceptInput is the POST /api/invitations/{token}/accept request body.
// Name and password are required only when the invited email has no
// account yet.
type AcceptInput struct {
	Name     string `json:"name" validate:"omitempty,max=200" label:"Name"`
	Password string `json:"password" label:"Password"`
}

// InvitationPayload is the wire shape of an invitation for the admin who
// manages it.
type InvitationPayload struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
}

// DetailsResponse is the public GET /api/invitations/{token}/details
// response. It never reveals whether the invited email has an account.
type DetailsResponse struct {
	TeamName    string    `json:"teamName"`
	AccountType string    `json:"accountType"`
	InviterName string    `json:"inviterName"`
	Email       string    `json:"email"`
	Role        string    `json:"role"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// AcceptResponse is returned after a successful acceptance. The accept is
// also a login: the new session's tokens ride along.
type AcceptResponse struct {
	SessionID string      `json:"sessionId"`
	CSRFToken string      `json:"csrfToken"`
	User      UserPayload `json:"user"`
	Team      TeamPayload `json:"team"`
}

// UserPayload is the wire shape for the accepted account.
type UserPayload struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// TeamPayload is the wire shape for the joined team.
type TeamPayload struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	AccountType string `json:"accountType"`
	Role        string `json:"role"`
}

// invitationPayload converts an invitation to its admin wire shape.
func invitationPayload(inv *invitationstore.Invitation) InvitationPayload {
	return InvitationPayload{
		ID:        inv.ID.Hex(),
		Email:     inv.Email,
		Role:      inv.Role,
		Token:     inv.Token,
		ExpiresAt: inv.ExpiresAt,
		CreatedAt: inv.CreatedAt,
	}
}

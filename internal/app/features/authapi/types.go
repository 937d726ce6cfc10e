package authapi

import (
	"time"

	sessionstore "github.com/projectgoat/projectgoat/internal/app/store/sessions"
	"github.com/projectgoat/projectgoat/internal/domain/models"
)

// UserPayload is the wire shape for an account in API responses.
type UserPayload struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Email       string     `json:"email"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
}

// TeamPayload is the wire shape for a team plus the caller's role in it.
type TeamPayload struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	AccountType string `json:"accountType"`
	Role        string `json:"role"`
}

// LoginResponse is returned by login, register, and invitation acceptance.
type LoginResponse struct {
	SessionID   string        `json:"sessionId"`
	CSRFToken   string        `json:"csrfToken"`
	User        UserPayload   `json:"user"`
	CurrentTeam *TeamPayload  `json:"currentTeam,omitempty"`
	Teams       []TeamPayload `json:"teams"`
}

// SessionResponse is returned by GET /api/auth/session. Without a valid
// session the body is just {"authenticated": false, "user": null}; the
// session fields appear only for an authenticated caller.
type SessionResponse struct {
	Authenticated bool         `json:"authenticated"`
	User          *UserPayload `json:"user"`
	CurrentTeam   *TeamPayload `json:"currentTeam,omitempty"`
	CSRFToken     string       `json:"csrfToken,omitempty"`
	LoginAt       *time.Time   `json:"loginAt,omitempty"`
	IdleExpiresAt *time.Time   `json:"idleExpiresAt,omitempty"`
	HardExpiresAt *time.Time   `json:"hardExpiresAt,omitempty"`
}

// LoginInput is the POST /api/auth/login request body.
type LoginInput struct {
	Email    string `json:"email" validate:"required,email" label:"Email"`
	Password string `json:"password" validate:"required" label:"Password"`
}

// RegisterInput is the POST /api/auth/register request body.
type RegisterInput struct {
	Name     string `json:"name" validate:"required,max=200" label:"Name"`
	Email    string `json:"email" validate:"required,email,max=254" label:"Email"`
	Password string `json:"password" validate:"required" label:"Password"`
	TeamName string `json:"teamName" validate:"max=200" label:"Team name"`
}

// ChangePasswordInput is the POST /api/auth/change-password request body.
type ChangePasswordInput struct {
	CurrentPassword string `json:"currentPassword" validate:"required" label:"Current password"`
	NewPassword     string `json:"newPassword" validate:"required" label:"New password"`
}

// userPayload converts a user model to its wire shape.
func userPayload(u *models.User) UserPayload {
	return UserPayload{
		ID:          u.ID.Hex(),
		Name:        u.FullName,
		Email:       u.Email,
		LastLoginAt: u.LastLoginAt,
	}
}

// teamPayload converts a team plus the caller's membership to its wire shape.
func teamPayload(t *models.Team, role string) TeamPayload {
	return TeamPayload{
		ID:          t.ID.Hex(),
		Name:        t.Name,
		AccountType: t.AccountType,
		Role:        role,
	}
}

// sessionCurrentTeam picks the payload matching the session's current team,
// or nil when the session has none.
func sessionCurrentTeam(sess *sessionstore.Session, teams []TeamPayload) *TeamPayload {
	if sess.CurrentTeamID == nil {
		return nil
	}
	want := sess.CurrentTeamID.Hex()
	for i := range teams {
		if teams[i].ID == want {
			return &teams[i]
		}
	}
	return nil
}

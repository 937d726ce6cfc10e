// Package profileapi provides the current-user profile API.
//
// Endpoints (mounted at /api/users, session required):
//   - GET /api/users/me - Profile plus recent login history
//   - PUT /api/users/me - Update name/email; role changes are rejected here
package profileapi

import (
	"errors"
	"net/http"
	"time"

	loginstore "github.com/projectgoat/projectgoat/internal/app/store/logins"
	userstore "github.com/projectgoat/projectgoat/internal/app/store/users"
	"github.com/projectgoat/projectgoat/internal/app/system/apierr"
	"github.com/projectgoat/projectgoat/internal/app/system/auth"
	"github.com/projectgoat/projectgoat/internal/app/system/htmlsanitize"
	"github.com/projectgoat/projectgoat/internal/app/system/inputval"
	"github.com/projectgoat/projectgoat/internal/app/system/jsonutil"
	"github.com/projectgoat/projectgoat/internal/app/system/normalize"
	"go.uber.org/zap"
)

// loginHistoryLimit caps the history returned with the profile.
const loginHistoryLimit = 10

// Handler handles profile API requests.
type Handler struct {
	users  *userstore.Store
	logins *loginstore.Store
	logger *zap.Logger
}

// NewHandler creates a new profileapi handler.
func NewHandler(users *userstore.Store, logins *loginstore.Store, logger *zap.Logger) *Handler {
	return &Handler{users: users, logins: logins, logger: logger}
}

// ProfileResponse is the GET /api/users/me response body.
type ProfileResponse struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Email        string       `json:"email"`
	Status       string       `json:"status"`
	LastLoginAt  *time.Time   `json:"lastLoginAt,omitempty"`
	CreatedAt    time.Time    `json:"createdAt"`
	LoginHistory []LoginEntry `json:"loginHistory"`
}

// LoginEntry is one row of the profile's login history.
type LoginEntry struct {
	At        time.Time `json:"at"`
	IP        string    `json:"ip"`
	UserAgent string    `json:"userAgent,omitempty"`
}

// UpdateInput is the PUT /api/users/me request body. The Role field exists
// only so a role-change attempt can be rejected explicitly instead of being
// silently ignored.
type UpdateInput struct {
	Name  *string `json:"name" validate:"omitempty,min=1,max=200" label:"Name"`
	Email *string `json:"email" validate:"omitempty,email,max=254" label:"Email"`
	Role  *string `json:"role"`
}

// MeHandler handles GET /api/users/me.
func (h *Handler) MeHandler(w http.ResponseWriter, r *http.Request) {
	a, ok := auth.CurrentAuth(r)
	if !ok {
		apierr.Write(w, apierr.New(apierr.CodeSessionInvalid, "no active session"))
		return
	}

	records, err := h.logins.GetByUser(r.Context(), a.UserID(), loginHistoryLimit)
	if err != nil {
		h.logger.Warn("profile: failed to load login history", zap.Error(err))
		records = nil
	}

	history := make([]LoginEntry, 0, len(records))
	for _, rec := range records {
		history = append(history, LoginEntry{
			At:        rec.CreatedAt,
			IP:        rec.IP,
			UserAgent: rec.UserAgent,
		})
	}

	u := a.User
	jsonutil.OK(w, ProfileResponse{
		ID:           u.ID.Hex(),
		Name:         u.FullName,
		Email:        u.Email,
		Status:       u.Status,
		LastLoginAt:  u.LastLoginAt,
		CreatedAt:    u.CreatedAt,
		LoginHistory: history,
	})
}

// UpdateHandler handles PUT /api/users/me.
func (h *Handler) UpdateHandler(w http.ResponseWriter, r *http.Request) {
	a, ok := auth.CurrentAuth(r)
	if !ok {
		apierr.Write(w, apierr.New(apierr.CodeSessionInvalid, "no active session"))
		return
	}

	var in UpdateInput
	if err := jsonutil.Decode(r, &in); err != nil {
		apierr.Write(w, apierr.New(apierr.CodeValidation, "invalid JSON payload"))
		return
	}
	if in.Role != nil {
		apierr.Write(w, apierr.New(apierr.CodeValidation, "role cannot be changed through the profile"))
		return
	}
	if res := inputval.Validate(in); res.HasErrors() {
		apierr.Write(w, res.Err())
		return
	}
	if in.Name == nil && in.Email == nil {
		apierr.Write(w, apierr.New(apierr.CodeValidation, "nothing to update"))
		return
	}

	ctx := r.Context()
	update := userstore.UpdateInput{}

	if in.Name != nil {
		name := htmlsanitize.Sanitize(*in.Name)
		if name == "" {
			apierr.Write(w, apierr.New(apierr.CodeValidation, "Name is required."))
			return
		}
		update.FullName = &name
	}
	if in.Email != nil {
		email := normalize.Email(*in.Email)
		if email != a.User.Email {
			exists, err := h.users.ExistsByEmail(ctx, email)
			if err != nil {
				h.logger.Error("profile: email check failed", zap.Error(err))
				apierr.Write(w, err)
				return
			}
			if exists {
				apierr.Write(w, apierr.New(apierr.CodeConflict, "an account with this email already exists"))
				return
			}
		}
		update.Email = &email
	}

	if err := h.users.UpdateFromInput(ctx, a.UserID(), update); err != nil {
		if errors.Is(err, userstore.ErrDuplicateEmail) {
			apierr.Write(w, apierr.New(apierr.CodeConflict, "an account with this email already exists"))
			return
		}
		h.logger.Error("profile: update failed", zap.Error(err))
		apierr.Write(w, err)
		return
	}

	user, err := h.users.GetByID(ctx, a.UserID())
	if err != nil {
		h.logger.Error("profile: reload failed", zap.Error(err))
		apierr.Write(w, err)
		return
	}

	jsonutil.OK(w, ProfileResponse{
		ID:          user.ID.Hex(),
		Name:        user.FullName,
		Email:       user.Email,
		Status:      user.Status,
		LastLoginAt: user.LastLoginAt,
		CreatedAt:   user.CreatedAt,
	})
}

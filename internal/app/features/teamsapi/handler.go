// Package teamsapi provides the team and membership management API.
//
// Endpoints (mounted at /api/teams, session required):
//   - GET    /api/teams                                  - Teams the caller belongs to
//   - GET    /api/teams/current                          - Current team detail
//   - PUT    /api/teams/current                          - Rename (admin)
//   - POST   /api/teams/current/archive                  - Archive (admin)
//   - POST   /api/teams/switch                           - Switch current team
//   - GET    /api/teams/current/members                  - List members
//   - POST   /api/teams/current/members                  - Create a member directly (admin)
//   - PUT    /api/teams/current/members/{userID}/role    - Change a member's role (admin)
//   - DELETE /api/teams/current/members/{userID}         - Remove a member (admin)
//
// The caller's role is re-derived from the membership collection on every
// request; nothing in the request body or session is trusted for authority.
package teamsapi

import (
	"context"
	"errors"
	"net/http"

	membershipstore "github.com/projectgoat/projectgoat/internal/app/store/memberships"
	"github.com/projectgoat/projectgoat/internal/app/store/taskstore"
	teamstore "github.com/projectgoat/projectgoat/internal/app/store/teams"
	userstore "github.com/projectgoat/projectgoat/internal/app/store/users"
	sessionstore "github.com/projectgoat/projectgoat/internal/app/store/sessions"
	"github.com/projectgoat/projectgoat/internal/app/system/apierr"
	"github.com/projectgoat/projectgoat/internal/app/system/auth"
	"github.com/projectgoat/projectgoat/internal/app/system/authutil"
	"github.com/projectgoat/projectgoat/internal/app/system/authz"
	"github.com/projectgoat/projectgoat/internal/app/system/htmlsanitize"
	"github.com/projectgoat/projectgoat/internal/app/system/inputval"
	"github.com/projectgoat/projectgoat/internal/app/system/jsonutil"
	"github.com/projectgoat/projectgoat/internal/app/system/normalize"
	"github.com/projectgoat/projectgoat/internal/app/system/teamrules"
	"github.com/projectgoat/projectgoat/internal/app/system/txn"
	"github.com/projectgoat/projectgoat/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler handles team API requests.
type Handler struct {
	db          *mongo.Database
	teams       *teamstore.Store
	memberships *membershipstore.Store
	users       *userstore.Store
	tasks       *taskstore.Store
	sessions    *sessionstore.Store
	authz       *authz.Resolver
	rules       *teamrules.Checker
	logger      *zap.Logger
}

// NewHandler creates a new teamsapi handler.
func NewHandler(
	db *mongo.Database,
	teams *teamstore.Store,
	memberships *membershipstore.Store,
	users *userstore.Store,
	tasks *taskstore.Store,
	sessions *sessionstore.Store,
	resolver *authz.Resolver,
	rules *teamrules.Checker,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		db:          db,
		teams:       teams,
		memberships: memberships,
		users:       users,
		tasks:       tasks,
		sessions:    sessions,
		authz:       resolver,
		rules:       rules,
		logger:      logger,
	}
}

// ListHandler handles GET /api/teams.
func (h *Handler) ListHandler(w http.ResponseWriter, r *http.Request) {
	a, ok := auth.CurrentAuth(r)
	if !ok {
		apierr.Write(w, apierr.New(apierr.CodeSessionInvalid, "no active session"))
		return
	}
	ctx := r.Context()

	ms, err := h.memberships.ListByUser(ctx, a.UserID())
	if err != nil {
		h.logger.Error("teams: list memberships failed", zap.Error(err))
		apierr.Write(w, err)
		return
	}

	out := make([]TeamPayload, 0, len(ms))
	if len(ms) > 0 {
		ids := make([]primitive.ObjectID, 0, len(ms))
		for _, m := range ms {
			ids = append(ids, m.TeamID)
		}
		ts, err := h.teams.GetByIDs(ctx, ids)
		if err != nil {
			h.logger.Error("teams: load failed", zap.Error(err))
			apierr.Write(w, err)
			return
		}
		byID := make(map[primitive.ObjectID]models.Team, len(ts))
		for _, t := range ts {
			byID[t.ID] = t
		}
		for _, m := range ms {
			if t, ok := byID[m.TeamID]; ok {
				out = append(out, teamPayload(&t, m.Role))
			}
		}
	}

	jsonutil.OK(w, map[string]any{"teams": out})
}

// CurrentHandler handles GET /api/teams/current.
func (h *Handler) CurrentHandler(w http.ResponseWriter, r *http.Request) {
	a, teamID, ok := h.currentTeam(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	m, err := h.authz.Membership(ctx, teamID, a.UserID())
	if err != nil {
		apierr.Write(w, err)
		return
	}
	team, err := h.teams.GetByID(ctx, teamID)
	if err != nil {
		apierr.Write(w, apierr.New(apierr.CodeNotFound, "team not found"))
		return
	}

	jsonutil.OK(w, teamPayload(team, m.Role))
}

// RenameHandler handles PUT /api/teams/current.
func (h *Handler) RenameHandler(w http.ResponseWriter, r *http.Request) {
	a, teamID, ok := h.currentTeam(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	if _, err := h.authz.Require(ctx, teamID, a.UserID(), authz.CanManageTeam); err != nil {
		apierr.Write(w, err)
		return
	}

	var in RenameInput
	if err := jsonutil.Decode(r, &in); err != nil {
		apierr.Write(w, apierr.New(apierr.CodeValidation, "invalid JSON payload"))
		return
	}
	if res := inputval.Validate(in); res.HasErrors() {
		apierr.Write(w, res.Err())
		return
	}

	name := htmlsanitize.Sanitize(in.Name)
	if name == "" {
		apierr.Write(w, apierr.New(apierr.CodeValidation, "Team name is required."))
		return
	}

	if err := h.teams.Rename(ctx, teamID, name); err != nil {
		h.logger.Error("teams: rename failed", zap.Error(err))
		apierr.Write(w, err)
		return
	}

	team, err := h.teams.GetByID(ctx, teamID)
	if err != nil {
		apierr.Write(w, err)
		return
	}
	jsonutil.OK(w, teamPayload(team, models.RoleAdmin))
}

// ArchiveHandler handles POST /api/teams/current/archive.
func (h *Handler) ArchiveHandler(w http.ResponseWriter, r *http.Request) {
	a, teamID, ok := h.currentTeam(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	if _, err := h.authz.Require(ctx, teamID, a.UserID(), authz.CanManageTeam); err != nil {
		apierr.Write(w, err)
		return
	}

	if err := h.teams.SetStatus(ctx, teamID, models.TeamStatusArchived); err != nil {
		h.logger.Error("teams: archive failed", zap.Error(err))
		apierr.Write(w, err)
		return
	}

	h.logger.Info("team archived",
		zap.String("team_id", teamID.Hex()),
		zap.String("by", a.UserID().Hex()))
	jsonutil.NoContent(w)
}

// SwitchHandler handles POST /api/teams/switch. The caller must be a
// member of the target team; the session's current team is updated.
func (h *Handler) SwitchHandler(w http.ResponseWriter, r *http.Request) {
	a, ok := auth.CurrentAuth(r)
	if !ok {
		apierr.Write(w, apierr.New(apierr.CodeSessionInvalid, "no active session"))
		return
	}

	var in SwitchInput
	if err := jsonutil.Decode(r, &in); err != nil {
		apierr.Write(w, apierr.New(apierr.CodeValidation, "invalid JSON payload"))
		return
	}
	if res := inputval.Validate(in); res.HasErrors() {
		apierr.Write(w, res.Err())
		return
	}
	teamID, _ := primitive.ObjectIDFromHex(in.TeamID)

	ctx := r.Context()
	m, err := h.authz.Membership(ctx, teamID, a.UserID())
	if err != nil {
		apierr.Write(w, err)
		return
	}
	team, err := h.teams.GetByID(ctx, teamID)
	if err != nil {
		apierr.Write(w, apierr.New(apierr.CodeNotFound, "team not found"))
		return
	}
	if team.Status == models.TeamStatusArchived {
		apierr.Write(w, apierr.New(apierr.CodeConflict, "team is archived"))
		return
	}

	if err := h.sessions.SetCurrentTeam(ctx, a.SessionToken(), teamID); err != nil {
		h.logger.Error("teams: switch failed", zap.Error(err))
		apierr.Write(w, err)
		return
	}

	jsonutil.OK(w, teamPayload(team, m.Role))
}

// MembersHandler handles GET /api/teams/current/members.
func (h *Handler) MembersHandler(w http.ResponseWriter, r *http.Request) {
	a, teamID, ok := h.currentTeam(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	if _, err := h.authz.Require(ctx, teamID, a.UserID(), authz.CanView); err != nil {
		apierr.Write(w, err)
		return
	}

	ms, err := h.memberships.ListByTeam(ctx, teamID)
	if err != nil {
		h.logger.Error("teams: list members failed", zap.Error(err))
		apierr.Write(w, err)
		return
	}

	ids := make([]primitive.ObjectID, 0, len(ms))
	for _, m := range ms {
		ids = append(ids, m.UserID)
	}
	us, err := h.users.GetByIDs(ctx, ids)
	if err != nil {
		h.logger.Error("teams: load members failed", zap.Error(err))
		apierr.Write(w, err)
		return
	}
	byID := make(map[primitive.ObjectID]models.User, len(us))
	for _, u := range us {
		byID[u.ID] = u
	}

	out := make([]MemberPayload, 0, len(ms))
	for _, m := range ms {
		u, ok := byID[m.UserID]
		if !ok {
			continue
		}
		out = append(out, MemberPayload{
			UserID:   m.UserID.Hex(),
			Name:     u.FullName,
			Email:    u.Email,
			Role:     m.Role,
			JoinedAt: m.JoinedAt,
		})
	}

	jsonutil.OK(w, map[string]any{"members": out})
}

// CreateMemberHandler handles POST /api/teams/current/members: an admin
// creates an account and attaches it to the team in one step.
func (h *Handler) CreateMemberHandler(w http.ResponseWriter, r *http.Request) {
	a, teamID, ok := h.currentTeam(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	if _, err := h.authz.Require(ctx, teamID, a.UserID(), authz.CanManageMembers); err != nil {
		apierr.Write(w, err)
		return
	}

	var in CreateMemberInput
	if err := jsonutil.Decode(r, &in); err != nil {
		apierr.Write(w, apierr.New(apierr.CodeValidation, "invalid JSON payload"))
		return
	}
	in.Role = normalize.Role(in.Role)
	if res := inputval.Validate(in); res.HasErrors() {
		apierr.Write(w, res.Err())
		return
	}
	if err := authutil.ValidatePassword(in.Password); err != nil {
		apierr.Write(w, apierr.New(apierr.CodeWeakPassword, err.Error()))
		return
	}

	email := normalize.Email(in.Email)
	exists, err := h.users.ExistsByEmail(ctx, email)
	if err != nil {
		apierr.Write(w, err)
		return
	}
	if exists {
		apierr.Write(w, apierr.New(apierr.CodeConflict, "an account with this email already exists"))
		return
	}

	hash, err := authutil.HashPassword(in.Password)
	if err != nil {
		h.logger.Error("teams: hash failed", zap.Error(err))
		apierr.Write(w, err)
		return
	}

	var user models.User
	var membership models.Membership
	adminID := a.UserID()
	err = txn.Run(ctx, h.db, h.logger, func(tc context.Context) error {
		var terr error
		user, terr = h.users.Create(tc, models.User{
			FullName:     htmlsanitize.Sanitize(in.Name),
			Email:        email,
			PasswordHash: hash,
		})
		if terr != nil {
			return terr
		}
		if terr = h.rules.CanJoin(tc, teamID, user.ID); terr != nil {
			return terr
		}
		membership, terr = h.memberships.Create(tc, models.Membership{
			TeamID:    teamID,
			UserID:    user.ID,
			Role:      in.Role,
			InvitedBy: &adminID,
		})
		return terr
	})
	if err != nil {
		if errors.Is(err, userstore.ErrDuplicateEmail) {
			apierr.Write(w, apierr.New(apierr.CodeConflict, "an account with this email already exists"))
			return
		}
		apierr.Write(w, err)
		return
	}

	h.logger.Info("member created",
		zap.String("team_id", teamID.Hex()),
		zap.String("user_id", user.ID.Hex()),
		zap.String("role", in.Role),
		zap.String("by", adminID.Hex()))

	jsonutil.Created(w, MemberPayload{
		UserID:   user.ID.Hex(),
		Name:     user.FullName,
		Email:    user.Email,
		Role:     membership.Role,
		JoinedAt: membership.JoinedAt,
	})
}

// RoleHandler handles PUT /api/teams/current/members/{userID}/role.
// Self-demotion and demoting the last admin are rejected.
func (h *Handler) RoleHandler(w http.ResponseWriter, r *http.Request) {
	a, teamID, ok := h.currentTeam(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	if _, err := h.authz.Require(ctx, teamID, a.UserID(), authz.CanManageMembers); err != nil {
		apierr.Write(w, err)
		return
	}

	targetID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "userID"))
	if err != nil {
		apierr.Write(w, apierr.New(apierr.CodeValidation, "invalid user id"))
		return
	}
	if targetID == a.UserID() {
		apierr.Write(w, apierr.New(apierr.CodeConflict, "you cannot change your own role"))
		return
	}

	var in RoleInput
	if err := jsonutil.Decode(r, &in); err != nil {
		apierr.Write(w, apierr.New(apierr.CodeValidation, "invalid JSON payload"))
		return
	}
	in.Role = normalize.Role(in.Role)
	if res := inputval.Validate(in); res.HasErrors() {
		apierr.Write(w, res.Err())
		return
	}

	err = txn.Run(ctx, h.db, h.logger, func(tc context.Context) error {
		target, terr := h.memberships.Get(tc, teamID, targetID)
		if terr != nil {
			if errors.Is(terr, membershipstore.ErrNotFound) {
				return apierr.New(apierr.CodeNotFound, "membership not found")
			}
			return terr
		}
		if target.Role == models.RoleAdmin && in.Role != models.RoleAdmin {
			admins, terr := h.memberships.CountAdmins(tc, teamID)
			if terr != nil {
				return terr
			}
			if admins <= 1 {
				return apierr.New(apierr.CodeWouldRemoveLastAdmin, "a team must keep at least one admin")
			}
		}
		return h.memberships.UpdateRole(tc, teamID, targetID, in.Role)
	})
	if err != nil {
		apierr.Write(w, err)
		return
	}

	h.logger.Info("member role changed",
		zap.String("team_id", teamID.Hex()),
		zap.String("user_id", targetID.Hex()),
		zap.String("role", in.Role),
		zap.String("by", a.UserID().Hex()))

	jsonutil.OK(w, map[string]string{"userId": targetID.Hex(), "role": in.Role})
}

// RemoveHandler handles DELETE /api/teams/current/members/{userID}.
//
// The disposition query parameter decides what happens to the member's
// open tasks:
//   - unassign (default): tasks stay, assignee cleared
//   - reassign_admin: tasks move to the admin performing the removal
//   - keep: tasks keep the departed assignee
//
// Disposition and membership delete run in one transaction.
func (h *Handler) RemoveHandler(w http.ResponseWriter, r *http.Request) {
	a, teamID, ok := h.currentTeam(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	if _, err := h.authz.Require(ctx, teamID, a.UserID(), authz.CanManageMembers); err != nil {
		apierr.Write(w, err)
		return
	}

	targetID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "userID"))
	if err != nil {
		apierr.Write(w, apierr.New(apierr.CodeValidation, "invalid user id"))
		return
	}
	if targetID == a.UserID() {
		apierr.Write(w, apierr.New(apierr.CodeConflict, "you cannot remove yourself from the team"))
		return
	}

	disposition := r.URL.Query().Get("disposition")
	if disposition == "" {
		disposition = DispositionUnassign
	}
	switch disposition {
	case DispositionUnassign, DispositionReassignAdmin, DispositionKeep:
	default:
		apierr.Write(w, apierr.New(apierr.CodeValidation,
			"disposition must be one of: unassign, reassign_admin, keep"))
		return
	}

	adminID := a.UserID()
	var affected int64
	err = txn.Run(ctx, h.db, h.logger, func(tc context.Context) error {
		target, terr := h.memberships.Get(tc, teamID, targetID)
		if terr != nil {
			if errors.Is(terr, membershipstore.ErrNotFound) {
				return apierr.New(apierr.CodeNotFound, "membership not found")
			}
			return terr
		}
		if target.Role == models.RoleAdmin {
			admins, terr := h.memberships.CountAdmins(tc, teamID)
			if terr != nil {
				return terr
			}
			if admins <= 1 {
				return apierr.New(apierr.CodeWouldRemoveLastAdmin, "a team must keep at least one admin")
			}
		}

		switch disposition {
		case DispositionUnassign:
			affected, terr = h.tasks.UnassignByAssignee(tc, teamID, targetID)
		case DispositionReassignAdmin:
			affected, terr = h.tasks.ReassignByAssignee(tc, teamID, targetID, adminID)
		case DispositionKeep:
			// Tasks keep their assignee for the audit trail.
		}
		if terr != nil {
			return terr
		}

		return h.memberships.Remove(tc, teamID, targetID)
	})
	if err != nil {
		apierr.Write(w, err)
		return
	}

	h.logger.Info("member removed",
		zap.String("team_id", teamID.Hex()),
		zap.String("user_id", targetID.Hex()),
		zap.String("disposition", disposition),
		zap.Int64("tasks_affected", affected),
		zap.String("by", adminID.Hex()))

	jsonutil.OK(w, map[string]any{
		"userId":        targetID.Hex(),
		"disposition":   disposition,
		"tasksAffected": affected,
	})
}

// currentTeam pulls the session's current team, writing an error response
// when the session has none.
func (h *Handler) currentTeam(w http.ResponseWriter, r *http.Request) (*auth.AuthContext, primitive.ObjectID, bool) {
	a, ok := auth.CurrentAuth(r)
	if !ok {
		apierr.Write(w, apierr.New(apierr.CodeSessionInvalid, "no active session"))
		return nil, primitive.NilObjectID, false
	}
	teamID := a.CurrentTeamID()
	if teamID.IsZero() {
		apierr.Write(w, apierr.New(apierr.CodeNotFound, "no current team selected"))
		return nil, primitive.NilObjectID, false
	}
	return a, teamID, true
}

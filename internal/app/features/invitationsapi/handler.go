// Package invitationsapi provides the team invitation API.
//
// Endpoints (mounted at /api/invitations):
//   - POST   /api/invitations                  - Create an invitation (admin)
//   - GET    /api/invitations                  - List pending invitations (admin)
//   - DELETE /api/invitations/{id}             - Revoke a pending invitation (admin)
//   - GET    /api/invitations/{token}/details  - Public invitation preview
//   - POST   /api/invitations/{token}/accept   - Accept; also logs the user in
//
// Details and accept are public and CSRF-exempt: the token itself is the
// credential, and accepting happens before any session exists.
package invitationsapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	invitationstore "github.com/projectgoat/projectgoat/internal/app/store/invitation"
	membershipstore "github.com/projectgoat/projectgoat/internal/app/store/memberships"
	teamstore "github.com/projectgoat/projectgoat/internal/app/store/teams"
	userstore "github.com/projectgoat/projectgoat/internal/app/store/users"
	"github.com/projectgoat/projectgoat/internal/app/system/apierr"
	"github.com/projectgoat/projectgoat/internal/app/system/auth"
	"github.com/projectgoat/projectgoat/internal/app/system/authutil"
	"github.com/projectgoat/projectgoat/internal/app/system/authz"
	"github.com/projectgoat/projectgoat/internal/app/system/htmlsanitize"
	"github.com/projectgoat/projectgoat/internal/app/system/inputval"
	"github.com/projectgoat/projectgoat/internal/app/system/jsonutil"
	"github.com/projectgoat/projectgoat/internal/app/system/mailer"
	"github.com/projectgoat/projectgoat/internal/app/system/network"
	"github.com/projectgoat/projectgoat/internal/app/system/normalize"
	"github.com/projectgoat/projectgoat/internal/app/system/teamrules"
	"github.com/projectgoat/projectgoat/internal/app/system/txn"
	"github.com/projectgoat/projectgoat/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler handles invitation API requests.
type Handler struct {
	db          *mongo.Database
	invitations *invitationstore.Store
	teams       *teamstore.Store
	memberships *membershipstore.Store
	users       *userstore.Store
	manager     *auth.Manager
	authz       *authz.Resolver
	rules       *teamrules.Checker
	mail        *mailer.Mailer
	baseURL     string
	logger      *zap.Logger
}

// NewHandler creates a new invitationsapi handler.
func NewHandler(
	db *mongo.Database,
	invitations *invitationstore.Store,
	teams *teamstore.Store,
	memberships *membershipstore.Store,
	users *userstore.Store,
	manager *auth.Manager,
	resolver *authz.Resolver,
	rules *teamrules.Checker,
	mail *mailer.Mailer,
	baseURL string,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		db:          db,
		invitations: invitations,
		teams:       teams,
		memberships: memberships,
		users:       users,
		manager:     manager,
		authz:       resolver,
		rules:       rules,
		mail:        mail,
		baseURL:     baseURL,
		logger:      logger,
	}
}

// CreateHandler handles POST /api/invitations for the session's current
// team. Existing members and duplicate pending invitations are rejected.
func (h *Handler) CreateHandler(w http.ResponseWriter, r *http.Request) {
	a, teamID, ok := h.currentTeam(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	if _, err := h.authz.Require(ctx, teamID, a.UserID(), authz.CanManageMembers); err != nil {
		apierr.Write(w, err)
		return
	}

	var in CreateInput
	if err := jsonutil.Decode(r, &in); err != nil {
		apierr.Write(w, apierr.New(apierr.CodeValidation, "invalid JSON payload"))
		return
	}
	in.Role = normalize.Role(in.Role)
	if res := inputval.Validate(in); res.HasErrors() {
		apierr.Write(w, res.Err())
		return
	}

	email := normalize.Email(in.Email)

	team, err := h.teams.GetByID(ctx, teamID)
	if err != nil {
		apierr.Write(w, apierr.New(apierr.CodeNotFound, "team not found"))
		return
	}
	if team.AccountType == models.AccountTypeSingle {
		apierr.Write(w, apierr.New(apierr.CodeConflict, "this team does not accept additional members"))
		return
	}
	if team.Status == models.TeamStatusArchived {
		apierr.Write(w, apierr.New(apierr.CodeConflict, "team is archived"))
		return
	}

	// Already a member?
	if existing, err := h.users.GetByEmail(ctx, email); err == nil {
		if _, merr := h.memberships.Get(ctx, teamID, existing.ID); merr == nil {
			apierr.Write(w, apierr.New(apierr.CodeConflict, "this email already belongs to a team member"))
			return
		}
	}

	pending, err := h.invitations.PendingForEmail(ctx, teamID, email)
	if err != nil {
		apierr.Write(w, err)
		return
	}
	if pending {
		apierr.Write(w, apierr.New(apierr.CodeConflict, "a pending invitation for this email already exists"))
		return
	}

	inv, err := h.invitations.Create(ctx, invitationstore.CreateInput{
		TeamID:    teamID,
		Email:     email,
		Role:      in.Role,
		InvitedBy: a.UserID(),
	})
	if err != nil {
		h.logger.Error("invitations: create failed", zap.Error(err))
		apierr.Write(w, err)
		return
	}

	h.logger.Info("invitation created",
		zap.String("team_id", teamID.Hex()),
		zap.String("role", in.Role),
		zap.String("by", a.UserID().Hex()))

	h.sendInvitationEmail(inv, team, a.User)

	jsonutil.Created(w, invitationPayload(inv))
}

// ListHandler handles GET /api/invitations: pending invitations for the
// current team.
func (h *Handler) ListHandler(w http.ResponseWriter, r *http.Request) {
	a, teamID, ok := h.currentTeam(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	if _, err := h.authz.Require(ctx, teamID, a.UserID(), authz.CanManageMembers); err != nil {
		apierr.Write(w, err)
		return
	}

	invs, err := h.invitations.ListPendingByTeam(ctx, teamID)
	if err != nil {
		h.logger.Error("invitations: list failed", zap.Error(err))
		apierr.Write(w, err)
		return
	}

	out := make([]InvitationPayload, 0, len(invs))
	for i := range invs {
		out = append(out, invitationPayload(&invs[i]))
	}
	jsonutil.OK(w, map[string]any{"invitations": out})
}

// RevokeHandler handles DELETE /api/invitations/{id}. Only pending
// invitations of the current team can be revoked.
func (h *Handler) RevokeHandler(w http.ResponseWriter, r *http.Request) {
	a, teamID, ok := h.currentTeam(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	if _, err := h.authz.Require(ctx, teamID, a.UserID(), authz.CanManageMembers); err != nil {
		apierr.Write(w, err)
		return
	}

	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		apierr.Write(w, apierr.New(apierr.CodeValidation, "invalid invitation id"))
		return
	}

	if err := h.invitations.Revoke(ctx, teamID, id); err != nil {
		if errors.Is(err, invitationstore.ErrNotFound) {
			apierr.Write(w, apierr.New(apierr.CodeInvitationNotFound, "no pending invitation found"))
			return
		}
		apierr.Write(w, err)
		return
	}

	h.logger.Info("invitation revoked",
		zap.String("team_id", teamID.Hex()),
		zap.String("invitation_id", id.Hex()),
		zap.String("by", a.UserID().Hex()))
	jsonutil.NoContent(w)
}

// DetailsHandler handles GET /api/invitations/{token}/details. Public:
// invitees follow the emailed link before they have any session.
func (h *Handler) DetailsHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	inv, err := h.invitations.VerifyToken(ctx, chi.URLParam(r, "token"))
	if err != nil {
		apierr.Write(w, classifyTokenError(err))
		return
	}

	team, err := h.teams.GetByID(ctx, inv.TeamID)
	if err != nil {
		apierr.Write(w, apierr.New(apierr.CodeInvitationNotFound, "invitation not found"))
		return
	}

	inviterName := ""
	if inviter, err := h.users.GetByID(ctx, inv.InvitedBy); err == nil {
		inviterName = inviter.FullName
	}

	jsonutil.OK(w, DetailsResponse{
		TeamName:    team.Name,
		AccountType: team.AccountType,
		InviterName: inviterName,
		Email:       inv.Email,
		Role:        inv.Role,
		ExpiresAt:   inv.ExpiresAt,
	})
}

// AcceptHandler handles POST /api/invitations/{token}/accept.
//
// The token proves control of the invited email, so acceptance doubles as a
// login. For a new email the body must carry name and password; for an
// existing account the membership is attached directly. Consumption is a
// single atomic claim; concurrent accepts of the same token produce exactly
// one membership.
func (h *Handler) AcceptHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	token := chi.URLParam(r, "token")

	var in AcceptInput
	if err := jsonutil.Decode(r, &in); err != nil {
		apierr.Write(w, apierr.New(apierr.CodeValidation, "invalid JSON payload"))
		return
	}
	if res := inputval.Validate(in); res.HasErrors() {
		apierr.Write(w, res.Err())
		return
	}

	inv, err := h.invitations.VerifyToken(ctx, token)
	if err != nil {
		apierr.Write(w, classifyTokenError(err))
		return
	}

	user, err := h.users.GetByEmail(ctx, inv.Email)
	newAccount := false
	switch {
	case err == nil:
		if user.Status == models.StatusDisabled {
			apierr.Write(w, apierr.New(apierr.CodeAccountDisabled, "account is disabled"))
			return
		}
	case errors.Is(err, mongo.ErrNoDocuments):
		newAccount = true
		if in.Name == "" || in.Password == "" {
			apierr.Write(w, apierr.New(apierr.CodeValidation, "name and password are required to create your account"))
			return
		}
		if perr := authutil.ValidatePassword(in.Password); perr != nil {
			apierr.Write(w, apierr.New(apierr.CodeWeakPassword, perr.Error()))
			return
		}
	default:
		apierr.Write(w, err)
		return
	}

	var hash string
	if newAccount {
		hash, err = authutil.HashPassword(in.Password)
		if err != nil {
			h.logger.Error("invitations: hash failed", zap.Error(err))
			apierr.Write(w, err)
			return
		}
	}

	var membership models.Membership
	err = txn.Run(ctx, h.db, h.logger, func(tc context.Context) error {
		claimed, terr := h.invitations.Consume(tc, token)
		if terr != nil {
			return classifyTokenError(terr)
		}

		if newAccount {
			created, uerr := h.users.Create(tc, models.User{
				FullName:     htmlsanitize.Sanitize(in.Name),
				Email:        claimed.Email,
				PasswordHash: hash,
			})
			if uerr != nil {
				return uerr
			}
			user = &created
		}

		if terr = h.rules.CanJoin(tc, claimed.TeamID, user.ID); terr != nil {
			return terr
		}

		inviter := claimed.InvitedBy
		membership, terr = h.memberships.Create(tc, models.Membership{
			TeamID:    claimed.TeamID,
			UserID:    user.ID,
			Role:      claimed.Role,
			InvitedBy: &inviter,
		})
		return terr
	})
	if err != nil {
		if errors.Is(err, membershipstore.ErrDuplicateMembership) {
			apierr.Write(w, apierr.New(apierr.CodeConflict, "you are already a member of this team"))
			return
		}
		apierr.Write(w, err)
		return
	}

	team, err := h.teams.GetByID(ctx, inv.TeamID)
	if err != nil {
		apierr.Write(w, err)
		return
	}

	sess, err := h.manager.IssueSession(ctx, w, r, user.ID, &inv.TeamID,
		network.GetClientIP(r), r.UserAgent())
	if err != nil {
		h.logger.Error("invitations: failed to issue session", zap.Error(err))
		apierr.Write(w, err)
		return
	}

	h.logger.Info("invitation accepted",
		zap.String("team_id", inv.TeamID.Hex()),
		zap.String("user_id", user.ID.Hex()),
		zap.Bool("new_account", newAccount))

	jsonutil.OK(w, AcceptResponse{
		SessionID: sess.Token,
		CSRFToken: sess.CSRFToken,
		User:      UserPayload{ID: user.ID.Hex(), Name: user.FullName, Email: user.Email},
		Team: TeamPayload{
			ID:          team.ID.Hex(),
			Name:        team.Name,
			AccountType: team.AccountType,
			Role:        membership.Role,
		},
	})
}

// classifyTokenError maps invitation store sentinels onto the API error
// taxonomy. Revoked tokens look like missing ones.
func classifyTokenError(err error) error {
	switch {
	case errors.Is(err, invitationstore.ErrNotFound), errors.Is(err, invitationstore.ErrRevoked):
		return apierr.New(apierr.CodeInvitationNotFound, "invitation not found")
	case errors.Is(err, invitationstore.ErrExpired):
		return apierr.New(apierr.CodeInvitationExpired, "this invitation has expired")
	case errors.Is(err, invitationstore.ErrConsumed):
		return apierr.New(apierr.CodeInvitationConsumed, "this invitation has already been used")
	default:
		return err
	}
}

func (h *Handler) sendInvitationEmail(inv *invitationstore.Invitation, team *models.Team, inviter *models.User) {
	if h.mail == nil {
		return
	}
	go func() {
		expiresIn := "7 days"
		if days := int(time.Until(inv.ExpiresAt).Hours()/24 + 0.5); days >= 1 {
			expiresIn = fmt.Sprintf("%d days", days)
			if days == 1 {
				expiresIn = "1 day"
			}
		}
		text, html := mailer.InvitationEmail(mailer.InvitationEmailData{
			AppName:     h.mail.FromName(),
			InviterName: inviter.FullName,
			TeamName:    team.Name,
			Role:        inv.Role,
			AcceptURL:   h.baseURL + "/invitations/" + inv.Token + "/accept",
			ExpiresIn:   expiresIn,
		})
		if err := h.mail.Send(mailer.Email{
			To:       inv.Email,
			Subject:  inviter.FullName + " invited you to " + team.Name,
			TextBody: text,
			HTMLBody: html,
		}); err != nil {
			h.logger.Warn("failed to send invitation email", zap.Error(err))
		}
	}()
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

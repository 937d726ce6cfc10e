// Package authapi provides the authentication API: login, logout,
// registration, password change, and session introspection.
//
// Endpoints (mounted at /api/auth):
//   - POST /api/auth/login           - Verify credentials and issue a session
//   - POST /api/auth/register        - Create an account with its first team
//   - POST /api/auth/logout          - Close the current session
//   - POST /api/auth/change-password - Change password, revoke other sessions
//   - GET  /api/auth/session         - Describe the current session
//
// Login and register are public; logout, change-password, and session
// require an authenticated session.
package authapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/projectgoat/projectgoat/internal/app/store/attempts"
	membershipstore "github.com/projectgoat/projectgoat/internal/app/store/memberships"
	sessionstore "github.com/projectgoat/projectgoat/internal/app/store/sessions"
	teamstore "github.com/projectgoat/projectgoat/internal/app/store/teams"
	userstore "github.com/projectgoat/projectgoat/internal/app/store/users"
	loginstore "github.com/projectgoat/projectgoat/internal/app/store/logins"
	"github.com/projectgoat/projectgoat/internal/app/system/apierr"
	"github.com/projectgoat/projectgoat/internal/app/system/auth"
	"github.com/projectgoat/projectgoat/internal/app/system/authutil"
	"github.com/projectgoat/projectgoat/internal/app/system/htmlsanitize"
	"github.com/projectgoat/projectgoat/internal/app/system/inputval"
	"github.com/projectgoat/projectgoat/internal/app/system/jsonutil"
	"github.com/projectgoat/projectgoat/internal/app/system/mailer"
	"github.com/projectgoat/projectgoat/internal/app/system/network"
	"github.com/projectgoat/projectgoat/internal/app/system/normalize"
	"github.com/projectgoat/projectgoat/internal/app/system/ratelimit"
	"github.com/projectgoat/projectgoat/internal/app/system/txn"
	"github.com/projectgoat/projectgoat/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler handles authentication API requests.
type Handler struct {
	db          *mongo.Database
	users       *userstore.Store
	teams       *teamstore.Store
	memberships *membershipstore.Store
	sessions    *sessionstore.Store
	logins      *loginstore.Store
	guard       *ratelimit.Guard
	manager     *auth.Manager
	mail        *mailer.Mailer
	baseURL     string
	logger      *zap.Logger
}

// NewHandler creates a new authapi handler.
func NewHandler(
	db *mongo.Database,
	users *userstore.Store,
	teams *teamstore.Store,
	memberships *membershipstore.Store,
	sessions *sessionstore.Store,
	logins *loginstore.Store,
	guard *ratelimit.Guard,
	manager *auth.Manager,
	mail *mailer.Mailer,
	baseURL string,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		db:          db,
		users:       users,
		teams:       teams,
		memberships: memberships,
		sessions:    sessions,
		logins:      logins,
		guard:       guard,
		manager:     manager,
		mail:        mail,
		baseURL:     baseURL,
		logger:      logger,
	}
}

// LoginHandler handles POST /api/auth/login.
//
// The response never distinguishes an unknown email from a wrong password.
// Every attempt, including blocked ones, lands in the attempt ledger.
func (h *Handler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var in LoginInput
	if err := jsonutil.Decode(r, &in); err != nil {
		apierr.Write(w, apierr.New(apierr.CodeValidation, "invalid JSON payload"))
		return
	}
	if res := inputval.Validate(in); res.HasErrors() {
		apierr.Write(w, res.Err())
		return
	}

	ctx := r.Context()
	email := normalize.Email(in.Email)
	ip := network.GetClientIP(r)
	userAgent := r.UserAgent()

	decision := h.guard.Check(ctx, email)
	if !decision.Allowed {
		h.recordFailure(ctx, email, ip, userAgent, attempts.ReasonRateLimited)
		e := apierr.New(apierr.CodeRateLimited, "too many failed login attempts, try again later")
		if decision.BlockedUntil != nil {
			e = e.WithField("retryAfterSeconds", int(time.Until(*decision.BlockedUntil).Seconds()))
		}
		apierr.Write(w, e)
		return
	}

	user, err := h.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			// Burn a hash comparison so this path is not measurably
			// faster than a wrong password.
			authutil.BurnPasswordCheck(in.Password)
			h.recordFailure(ctx, email, ip, userAgent, attempts.ReasonUnknownEmail)
			apierr.Write(w, apierr.New(apierr.CodeInvalidCredentials, "invalid email or password"))
			return
		}
		h.logger.Error("login: user lookup failed", zap.Error(err))
		apierr.Write(w, err)
		return
	}

	if !authutil.CheckPassword(in.Password, user.PasswordHash) {
		lockedOut, lockedUntil, rerr := h.guard.RecordFailure(ctx, email, ip, userAgent, attempts.ReasonBadPassword)
		if rerr != nil {
			h.logger.Warn("login: failed to record attempt", zap.Error(rerr))
		}
		if lockedOut && lockedUntil != nil {
			// Mirror the window lockout onto the user doc for admin visibility.
			if uerr := h.users.SetLockout(ctx, user.ID, lockedUntil); uerr != nil {
				h.logger.Warn("login: failed to set lockout", zap.Error(uerr))
			}
		}
		apierr.Write(w, apierr.New(apierr.CodeInvalidCredentials, "invalid email or password"))
		return
	}

	// The ledger also records rejections that happen after the password
	// check, so the audit trail is complete even when the caller never
	// sees the real reason.
	now := time.Now()
	if user.Locked(now) {
		h.recordFailure(ctx, email, ip, userAgent, attempts.ReasonAccountLocked)
		apierr.Write(w, apierr.New(apierr.CodeAccountLocked, "account is temporarily locked"))
		return
	}
	if user.Status == models.StatusDisabled {
		h.recordFailure(ctx, email, ip, userAgent, attempts.ReasonAccountDisabled)
		apierr.Write(w, apierr.New(apierr.CodeAccountDisabled, "account is disabled"))
		return
	}

	if err := h.guard.RecordSuccess(ctx, email, ip, userAgent); err != nil {
		h.logger.Warn("login: failed to record success", zap.Error(err))
	}
	if err := h.users.RecordLogin(ctx, user.ID, now); err != nil {
		h.logger.Warn("login: failed to stamp last login", zap.Error(err))
	}
	if err := h.logins.CreateFrom(ctx, r, user.ID); err != nil {
		h.logger.Warn("login: failed to record login history", zap.Error(err))
	}

	teams, roles, err := h.teamsForUser(ctx, user.ID)
	if err != nil {
		h.logger.Error("login: failed to load teams", zap.Error(err))
		apierr.Write(w, err)
		return
	}

	var currentTeamID *primitive.ObjectID
	if len(roles) > 0 {
		id, _ := primitive.ObjectIDFromHex(teams[0].ID)
		currentTeamID = &id
	}

	sess, err := h.manager.IssueSession(ctx, w, r, user.ID, currentTeamID, ip, r.UserAgent())
	if err != nil {
		h.logger.Error("login: failed to issue session", zap.Error(err))
		apierr.Write(w, err)
		return
	}

	h.logger.Info("user logged in",
		zap.String("user_id", user.ID.Hex()),
		zap.String("ip", ip))

	jsonutil.OK(w, LoginResponse{
		SessionID:   sess.Token,
		CSRFToken:   sess.CSRFToken,
		User:        userPayload(user),
		CurrentTeam: sessionCurrentTeam(&sess, teams),
		Teams:       teams,
	})
}

// RegisterHandler handles POST /api/auth/register.
// Creates the account, its first team with the caller as admin, and a
// session, all in one operation.
func (h *Handler) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var in RegisterInput
	if err := jsonutil.Decode(r, &in); err != nil {
		apierr.Write(w, apierr.New(apierr.CodeValidation, "invalid JSON payload"))
		return
	}
	if res := inputval.Validate(in); res.HasErrors() {
		apierr.Write(w, res.Err())
		return
	}
	if err := authutil.ValidatePassword(in.Password); err != nil {
		apierr.Write(w, apierr.New(apierr.CodeWeakPassword, err.Error()))
		return
	}

	ctx := r.Context()
	name := htmlsanitize.Sanitize(in.Name)
	email := normalize.Email(in.Email)

	hash, err := authutil.HashPassword(in.Password)
	if err != nil {
		h.logger.Error("register: hash failed", zap.Error(err))
		apierr.Write(w, err)
		return
	}

	teamName := htmlsanitize.Sanitize(in.TeamName)
	if teamName == "" {
		teamName = name + "'s Team"
	}

	var user models.User
	var team models.Team
	err = txn.Run(ctx, h.db, h.logger, func(tc context.Context) error {
		var terr error
		user, terr = h.users.Create(tc, models.User{
			FullName:     name,
			Email:        email,
			PasswordHash: hash,
		})
		if terr != nil {
			return terr
		}
		team, terr = h.teams.Create(tc, models.Team{
			Name:        teamName,
			AccountType: models.AccountTypeMulti,
			CreatedBy:   user.ID,
		})
		if terr != nil {
			return terr
		}
		_, terr = h.memberships.Create(tc, models.Membership{
			TeamID: team.ID,
			UserID: user.ID,
			Role:   models.RoleAdmin,
		})
		return terr
	})
	if err != nil {
		if errors.Is(err, userstore.ErrDuplicateEmail) {
			apierr.Write(w, apierr.New(apierr.CodeConflict, "an account with this email already exists"))
			return
		}
		h.logger.Error("register: failed", zap.Error(err))
		apierr.Write(w, err)
		return
	}

	sess, err := h.manager.IssueSession(ctx, w, r, user.ID, &team.ID, network.GetClientIP(r), r.UserAgent())
	if err != nil {
		h.logger.Error("register: failed to issue session", zap.Error(err))
		apierr.Write(w, err)
		return
	}

	h.logger.Info("account registered",
		zap.String("user_id", user.ID.Hex()),
		zap.String("team_id", team.ID.Hex()))

	h.sendWelcomeEmail(user)

	teams := []TeamPayload{teamPayload(&team, models.RoleAdmin)}
	jsonutil.Created(w, LoginResponse{
		SessionID:   sess.Token,
		CSRFToken:   sess.CSRFToken,
		User:        userPayload(&user),
		CurrentTeam: &teams[0],
		Teams:       teams,
	})
}

// LogoutHandler handles POST /api/auth/logout.
func (h *Handler) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	a, ok := auth.CurrentAuth(r)
	if !ok {
		apierr.Write(w, apierr.New(apierr.CodeSessionInvalid, "no active session"))
		return
	}

	if err := h.sessions.Close(r.Context(), a.SessionToken(), sessionstore.EndReasonLogout); err != nil {
		h.logger.Warn("logout: failed to close session", zap.Error(err))
	}
	h.manager.ClearCookie(w, r)

	h.logger.Info("user logged out", zap.String("user_id", a.UserID().Hex()))
	jsonutil.NoContent(w)
}

// ChangePasswordHandler handles POST /api/auth/change-password.
// All other sessions of the user are revoked; the current session survives
// with a fresh CSRF token.
func (h *Handler) ChangePasswordHandler(w http.ResponseWriter, r *http.Request) {
	a, ok := auth.CurrentAuth(r)
	if !ok {
		apierr.Write(w, apierr.New(apierr.CodeSessionInvalid, "no active session"))
		return
	}

	var in ChangePasswordInput
	if err := jsonutil.Decode(r, &in); err != nil {
		apierr.Write(w, apierr.New(apierr.CodeValidation, "invalid JSON payload"))
		return
	}
	if res := inputval.Validate(in); res.HasErrors() {
		apierr.Write(w, res.Err())
		return
	}

	ctx := r.Context()
	user := a.User

	if !authutil.CheckPassword(in.CurrentPassword, user.PasswordHash) {
		apierr.Write(w, apierr.New(apierr.CodeInvalidCredentials, "current password is incorrect"))
		return
	}
	if err := authutil.ValidatePassword(in.NewPassword); err != nil {
		apierr.Write(w, apierr.New(apierr.CodeWeakPassword, err.Error()))
		return
	}
	if authutil.CheckPassword(in.NewPassword, user.PasswordHash) {
		apierr.Write(w, apierr.New(apierr.CodePasswordReused, "new password must differ from the current password"))
		return
	}

	hash, err := authutil.HashPassword(in.NewPassword)
	if err != nil {
		h.logger.Error("change password: hash failed", zap.Error(err))
		apierr.Write(w, err)
		return
	}
	if err := h.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		h.logger.Error("change password: update failed", zap.Error(err))
		apierr.Write(w, err)
		return
	}

	closed, err := h.sessions.CloseByUserExcept(ctx, user.ID, a.SessionToken(), sessionstore.EndReasonRevoked)
	if err != nil {
		h.logger.Error("change password: failed to revoke sessions", zap.Error(err))
		apierr.Write(w, err)
		return
	}

	csrf, err := h.sessions.RotateCSRF(ctx, a.SessionToken())
	if err != nil {
		h.logger.Error("change password: failed to rotate CSRF token", zap.Error(err))
		apierr.Write(w, err)
		return
	}

	h.logger.Info("password changed",
		zap.String("user_id", user.ID.Hex()),
		zap.Int64("sessions_revoked", closed))

	h.sendPasswordChangedEmail(user)

	jsonutil.OK(w, map[string]any{
		"csrfToken":       csrf,
		"sessionsRevoked": closed,
	})
}

// SessionHandler handles GET /api/auth/session. The route is auth-optional:
// a caller with no usable session gets a 200 with a null user rather than an
// error, so clients can probe their state without special-casing a 401.
func (h *Handler) SessionHandler(w http.ResponseWriter, r *http.Request) {
	a, ok := auth.CurrentAuth(r)
	if !ok {
		jsonutil.OK(w, SessionResponse{})
		return
	}

	teams, _, err := h.teamsForUser(r.Context(), a.UserID())
	if err != nil {
		h.logger.Error("session: failed to load teams", zap.Error(err))
		apierr.Write(w, err)
		return
	}

	sess := a.Session
	user := userPayload(a.User)
	loginAt := sess.LoginAt
	idleAt := sess.LastActivity.Add(h.manager.IdleTimeout())
	hardAt := sess.LoginAt.Add(h.manager.AbsoluteTimeout())
	jsonutil.OK(w, SessionResponse{
		Authenticated: true,
		User:          &user,
		CurrentTeam:   sessionCurrentTeam(sess, teams),
		CSRFToken:     sess.CSRFToken,
		LoginAt:       &loginAt,
		IdleExpiresAt: &idleAt,
		HardExpiresAt: &hardAt,
	})
}

// teamsForUser loads every team the user belongs to with the user's role,
// newest membership first per the membership store's ordering.
func (h *Handler) teamsForUser(ctx context.Context, userID primitive.ObjectID) ([]TeamPayload, map[primitive.ObjectID]string, error) {
	ms, err := h.memberships.ListByUser(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("list memberships: %w", err)
	}
	if len(ms) == 0 {
		return []TeamPayload{}, map[primitive.ObjectID]string{}, nil
	}

	roles := make(map[primitive.ObjectID]string, len(ms))
	ids := make([]primitive.ObjectID, 0, len(ms))
	for _, m := range ms {
		roles[m.TeamID] = m.Role
		ids = append(ids, m.TeamID)
	}

	ts, err := h.teams.GetByIDs(ctx, ids)
	if err != nil {
		return nil, nil, fmt.Errorf("load teams: %w", err)
	}
	byID := make(map[primitive.ObjectID]models.Team, len(ts))
	for _, t := range ts {
		byID[t.ID] = t
	}

	// Preserve membership ordering.
	out := make([]TeamPayload, 0, len(ms))
	for _, m := range ms {
		t, ok := byID[m.TeamID]
		if !ok {
			continue
		}
		out = append(out, teamPayload(&t, m.Role))
	}
	return out, roles, nil
}

// recordFailure appends a failure to the ledger, logging but not surfacing
// storage errors (the login path already has its answer).
func (h *Handler) recordFailure(ctx context.Context, email, ip, userAgent, reason string) {
	if _, _, err := h.guard.RecordFailure(ctx, email, ip, userAgent, reason); err != nil {
		h.logger.Warn("login: failed to record attempt", zap.Error(err))
	}
}

func (h *Handler) sendWelcomeEmail(user models.User) {
	if h.mail == nil {
		return
	}
	go func() {
		text, html := mailer.WelcomeEmail(mailer.WelcomeEmailData{
			AppName:  h.mail.FromName(),
			UserName: user.FullName,
			LoginURL: h.baseURL + "/login",
		})
		if err := h.mail.Send(mailer.Email{
			To:       user.Email,
			Subject:  "Welcome to " + h.mail.FromName(),
			TextBody: text,
			HTMLBody: html,
		}); err != nil {
			h.logger.Warn("failed to send welcome email", zap.Error(err))
		}
	}()
}

func (h *Handler) sendPasswordChangedEmail(user *models.User) {
	if h.mail == nil {
		return
	}
	go func() {
		text, html := mailer.PasswordChangedEmail(mailer.PasswordChangedEmailData{
			AppName:  h.mail.FromName(),
			LoginURL: h.baseURL + "/login",
		})
		if err := h.mail.Send(mailer.Email{
			To:       user.Email,
			Subject:  "Your password was changed",
			TextBody: text,
			HTMLBody: html,
		}); err != nil {
			h.logger.Warn("failed to send password changed email", zap.Error(err))
		}
	}()
}

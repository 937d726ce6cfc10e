package authapi

import (
	"net/http"
	"testing"
	"time"

	"github.com/projectgoat/projectgoat/internal/app/store/attempts"
	membershipstore "github.com/projectgoat/projectgoat/internal/app/store/memberships"
	sessionstore "github.com/projectgoat/projectgoat/internal/app/store/sessions"
	teamstore "github.com/projectgoat/projectgoat/internal/app/store/teams"
	userstore "github.com/projectgoat/projectgoat/internal/app/store/users"
	loginstore "github.com/projectgoat/projectgoat/internal/app/store/logins"
	"github.com/projectgoat/projectgoat/internal/app/system/apierr"
	"github.com/projectgoat/projectgoat/internal/app/system/auth"
	"github.com/projectgoat/projectgoat/internal/app/system/ratelimit"
	"github.com/projectgoat/projectgoat/internal/domain/models"
	"github.com/projectgoat/projectgoat/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

func mustObjectID(t *testing.T, hex string) primitive.ObjectID {
	t.Helper()
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		t.Fatalf("bad object ID %q: %v", hex, err)
	}
	return id
}

const testSessionKey = "0123456789abcdef0123456789abcdef"

type testEnv struct {
	users    *userstore.Store
	sessions *sessionstore.Store
	attempts *attempts.Store
	manager  *auth.Manager
	router   http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()

	users := userstore.New(db)
	teams := teamstore.New(db)
	memberships := membershipstore.New(db)
	sessions := sessionstore.New(db)
	logins := loginstore.New(db)
	attemptLedger := attempts.New(db)
	guard := ratelimit.NewGuard(attemptLedger, 5, 15*time.Minute, 15*time.Minute)

	manager, err := auth.NewManager(testSessionKey, "", "", 30*time.Minute, 8*time.Hour, false, sessions, logger)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	manager.SetUserFetcher(userstore.NewFetcher(db, logger))

	h := NewHandler(db, users, teams, memberships, sessions, logins, guard, manager, nil, "http://localhost:8080", logger)

	return &testEnv{
		users:    users,
		sessions: sessions,
		attempts: attemptLedger,
		manager:  manager,
		router:   Routes(h, manager),
	}
}

func (e *testEnv) do(req *http.Request) *testutil.ResponseRecorder {
	rec := testutil.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) register(t *testing.T, name, email, password string) LoginResponse {
	t.Helper()
	req := testutil.NewJSONRequest(t, http.MethodPost, "/register", RegisterInput{
		Name:     name,
		Email:    email,
		Password: password,
	})
	rec := e.do(req)
	rec.AssertStatus(t, http.StatusCreated)
	var out LoginResponse
	rec.DecodeJSON(t, &out)
	return out
}

func (e *testEnv) login(t *testing.T, email, password string) *testutil.ResponseRecorder {
	t.Helper()
	req := testutil.NewJSONRequest(t, http.MethodPost, "/login", LoginInput{
		Email:    email,
		Password: password,
	})
	return e.do(req)
}

func withSession(req *http.Request, sessionID, csrfToken string) *http.Request {
	req.Header.Set(auth.SessionHeader, sessionID)
	if csrfToken != "" {
		req.Header.Set(auth.CSRFHeader, csrfToken)
	}
	return req
}

func TestRegister(t *testing.T) {
	env := newTestEnv(t)

	out := env.register(t, "Ada Lovelace", "Ada@Example.COM", "Correct-horse-battery9")

	if out.SessionID == "" {
		t.Error("expected a session ID")
	}
	if out.CSRFToken == "" {
		t.Error("expected a CSRF token")
	}
	if out.User.Email != "ada@example.com" {
		t.Errorf("email not normalized: got %q", out.User.Email)
	}
	if out.CurrentTeam == nil {
		t.Fatal("expected a current team")
	}
	if out.CurrentTeam.Role != models.RoleAdmin {
		t.Errorf("registrant role: got %q, want %q", out.CurrentTeam.Role, models.RoleAdmin)
	}
	if out.CurrentTeam.Name != "Ada Lovelace's Team" {
		t.Errorf("default team name: got %q", out.CurrentTeam.Name)
	}
	if len(out.Teams) != 1 {
		t.Errorf("teams: got %d, want 1", len(out.Teams))
	}
}

func TestRegister_CustomTeamName(t *testing.T) {
	env := newTestEnv(t)

	req := testutil.NewJSONRequest(t, http.MethodPost, "/register", RegisterInput{
		Name:     "Ada Lovelace",
		Email:    "ada@example.com",
		Password: "Correct-horse-battery9",
		TeamName: "Analytical Engines",
	})
	rec := env.do(req)
	rec.AssertStatus(t, http.StatusCreated)

	var out LoginResponse
	rec.DecodeJSON(t, &out)
	if out.CurrentTeam == nil || out.CurrentTeam.Name != "Analytical Engines" {
		t.Errorf("team name not honored: %+v", out.CurrentTeam)
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "Ada Lovelace", "ada@example.com", "Correct-horse-battery9")

	req := testutil.NewJSONRequest(t, http.MethodPost, "/register", RegisterInput{
		Name:     "Other Ada",
		Email:    "ADA@example.com",
		Password: "Another-long-passw0rd",
	})
	rec := env.do(req)
	rec.AssertStatus(t, http.StatusConflict)
	if code := rec.ErrorCode(t); code != string(apierr.CodeConflict) {
		t.Errorf("error code: got %q", code)
	}
}

func TestRegister_WeakPassword(t *testing.T) {
	env := newTestEnv(t)

	req := testutil.NewJSONRequest(t, http.MethodPost, "/register", RegisterInput{
		Name:     "Ada Lovelace",
		Email:    "ada@example.com",
		Password: "short",
	})
	rec := env.do(req)
	rec.AssertStatus(t, http.StatusBadRequest)
	if code := rec.ErrorCode(t); code != string(apierr.CodeWeakPassword) {
		t.Errorf("error code: got %q", code)
	}
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	reg := env.register(t, "Ada Lovelace", "ada@example.com", "Correct-horse-battery9")

	rec := env.login(t, "ada@example.com", "Correct-horse-battery9")
	rec.AssertStatus(t, http.StatusOK)

	var out LoginResponse
	rec.DecodeJSON(t, &out)
	if out.SessionID == "" || out.SessionID == reg.SessionID {
		t.Errorf("expected a fresh session ID, got %q", out.SessionID)
	}
	if out.User.LastLoginAt == nil {
		t.Error("expected last_login_at to be stamped")
	}
	if out.CurrentTeam == nil || out.CurrentTeam.Role != models.RoleAdmin {
		t.Errorf("current team: %+v", out.CurrentTeam)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "Ada Lovelace", "ada@example.com", "Correct-horse-battery9")

	rec := env.login(t, "ada@example.com", "wrong-password-entirely")
	rec.AssertStatus(t, http.StatusUnauthorized)
	if code := rec.ErrorCode(t); code != string(apierr.CodeInvalidCredentials) {
		t.Errorf("error code: got %q", code)
	}
}

func TestLogin_UnknownEmail(t *testing.T) {
	env := newTestEnv(t)

	rec := env.login(t, "nobody@example.com", "whatever-password")
	rec.AssertStatus(t, http.StatusUnauthorized)
	if code := rec.ErrorCode(t); code != string(apierr.CodeInvalidCredentials) {
		t.Errorf("error code: got %q", code)
	}
}

func TestLogin_LockoutAfterRepeatedFailures(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "Ada Lovelace", "ada@example.com", "Correct-horse-battery9")

	for i := 0; i < 5; i++ {
		rec := env.login(t, "ada@example.com", "wrong-password-entirely")
		rec.AssertStatus(t, http.StatusUnauthorized)
	}

	// Even the correct password is refused while the lockout holds.
	rec := env.login(t, "ada@example.com", "Correct-horse-battery9")
	rec.AssertStatus(t, http.StatusTooManyRequests)
	if code := rec.ErrorCode(t); code != string(apierr.CodeRateLimited) {
		t.Errorf("error code: got %q", code)
	}

	var body struct {
		RetryAfterSeconds int `json:"retryAfterSeconds"`
	}
	rec.DecodeJSON(t, &body)
	if body.RetryAfterSeconds <= 0 {
		t.Errorf("retryAfterSeconds: got %d, want > 0", body.RetryAfterSeconds)
	}
}

func TestLogin_DisabledAccount(t *testing.T) {
	env := newTestEnv(t)
	reg := env.register(t, "Ada Lovelace", "ada@example.com", "Correct-horse-battery9")

	ctx, cancel := testutil.TestContext()
	defer cancel()
	userID := mustObjectID(t, reg.User.ID)
	disabled := models.StatusDisabled
	if err := env.users.UpdateFromInput(ctx, userID, userstore.UpdateInput{Status: &disabled}); err != nil {
		t.Fatalf("disable user: %v", err)
	}

	rec := env.login(t, "ada@example.com", "Correct-horse-battery9")
	rec.AssertStatus(t, http.StatusForbidden)
	if code := rec.ErrorCode(t); code != string(apierr.CodeAccountDisabled) {
		t.Errorf("error code: got %q", code)
	}

	// The rejection lands in the ledger with its real reason.
	recent, err := env.attempts.ListRecent(ctx, "ada@example.com", 1)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if len(recent) != 1 {
		t.Fatalf("attempts: got %d, want 1", len(recent))
	}
	if recent[0].Outcome != attempts.OutcomeFailure {
		t.Errorf("outcome: got %q, want %q", recent[0].Outcome, attempts.OutcomeFailure)
	}
	if recent[0].Reason != attempts.ReasonAccountDisabled {
		t.Errorf("reason: got %q, want %q", recent[0].Reason, attempts.ReasonAccountDisabled)
	}
}

func TestLogin_LockedAccount(t *testing.T) {
	env := newTestEnv(t)
	reg := env.register(t, "Ada Lovelace", "ada@example.com", "Correct-horse-battery9")

	ctx, cancel := testutil.TestContext()
	defer cancel()
	userID := mustObjectID(t, reg.User.ID)
	until := time.Now().Add(10 * time.Minute)
	if err := env.users.SetLockout(ctx, userID, &until); err != nil {
		t.Fatalf("set lockout: %v", err)
	}

	// The correct password is refused while the account is locked, and the
	// refusal is recorded.
	rec := env.login(t, "ada@example.com", "Correct-horse-battery9")
	rec.AssertStatus(t, http.StatusForbidden)
	if code := rec.ErrorCode(t); code != string(apierr.CodeAccountLocked) {
		t.Errorf("error code: got %q", code)
	}

	recent, err := env.attempts.ListRecent(ctx, "ada@example.com", 1)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if len(recent) != 1 {
		t.Fatalf("attempts: got %d, want 1", len(recent))
	}
	if recent[0].Reason != attempts.ReasonAccountLocked {
		t.Errorf("reason: got %q, want %q", recent[0].Reason, attempts.ReasonAccountLocked)
	}
}

func TestLogin_AttemptLedgerDetail(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "Ada Lovelace", "ada@example.com", "Correct-horse-battery9")

	req := testutil.NewJSONRequest(t, http.MethodPost, "/login", LoginInput{
		Email:    "ada@example.com",
		Password: "wrong-password-entirely",
	})
	req.Header.Set("User-Agent", "goat-client/2.1")
	env.do(req).AssertStatus(t, http.StatusUnauthorized)

	ctx, cancel := testutil.TestContext()
	defer cancel()
	recent, err := env.attempts.ListRecent(ctx, "ada@example.com", 1)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if len(recent) != 1 {
		t.Fatalf("attempts: got %d, want 1", len(recent))
	}
	if recent[0].UserAgent != "goat-client/2.1" {
		t.Errorf("user agent: got %q, want goat-client/2.1", recent[0].UserAgent)
	}
	if recent[0].Reason != attempts.ReasonBadPassword {
		t.Errorf("reason: got %q, want %q", recent[0].Reason, attempts.ReasonBadPassword)
	}

	// An unknown email is recorded too, under its own reason.
	env.login(t, "stranger@example.com", "wrong-password-entirely").AssertStatus(t, http.StatusUnauthorized)
	recent, err = env.attempts.ListRecent(ctx, "stranger@example.com", 1)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if len(recent) != 1 {
		t.Fatalf("attempts: got %d, want 1", len(recent))
	}
	if recent[0].Reason != attempts.ReasonUnknownEmail {
		t.Errorf("reason: got %q, want %q", recent[0].Reason, attempts.ReasonUnknownEmail)
	}
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t)
	reg := env.register(t, "Ada Lovelace", "ada@example.com", "Correct-horse-battery9")

	// No CSRF token on purpose: logout is exempt.
	req := withSession(testutil.NewRequest(http.MethodPost, "/logout"), reg.SessionID, "")
	rec := env.do(req)
	rec.AssertStatus(t, http.StatusNoContent)

	// The closed session no longer authenticates; the check answers
	// anonymously rather than rejecting.
	req = withSession(testutil.NewRequest(http.MethodGet, "/session"), reg.SessionID, "")
	rec = env.do(req)
	rec.AssertStatus(t, http.StatusOK)
	var out SessionResponse
	rec.DecodeJSON(t, &out)
	if out.Authenticated || out.User != nil {
		t.Errorf("closed session still authenticates: %+v", out)
	}
}

func TestSession(t *testing.T) {
	env := newTestEnv(t)
	reg := env.register(t, "Ada Lovelace", "ada@example.com", "Correct-horse-battery9")

	req := withSession(testutil.NewRequest(http.MethodGet, "/session"), reg.SessionID, "")
	rec := env.do(req)
	rec.AssertStatus(t, http.StatusOK)

	var out SessionResponse
	rec.DecodeJSON(t, &out)
	if !out.Authenticated {
		t.Error("expected an authenticated session")
	}
	if out.User == nil || out.User.Email != "ada@example.com" {
		t.Errorf("user: got %+v", out.User)
	}
	if out.CSRFToken != reg.CSRFToken {
		t.Errorf("csrf token: got %q, want %q", out.CSRFToken, reg.CSRFToken)
	}
	if out.CurrentTeam == nil {
		t.Error("expected a current team")
	}
	if !out.IdleExpiresAt.After(time.Now()) {
		t.Errorf("idle expiry in the past: %v", out.IdleExpiresAt)
	}
	wantHard := out.LoginAt.Add(8 * time.Hour)
	if !out.HardExpiresAt.Equal(wantHard) {
		t.Errorf("hard expiry: got %v, want %v", out.HardExpiresAt, wantHard)
	}
}

func TestSession_Anonymous(t *testing.T) {
	env := newTestEnv(t)

	// No token at all: the check reports "not signed in" instead of
	// failing.
	rec := env.do(testutil.NewRequest(http.MethodGet, "/session"))
	rec.AssertStatus(t, http.StatusOK)
	var out SessionResponse
	rec.DecodeJSON(t, &out)
	if out.Authenticated || out.User != nil {
		t.Errorf("anonymous check authenticated: %+v", out)
	}

	// Same for a token no session ever had.
	rec = env.do(withSession(testutil.NewRequest(http.MethodGet, "/session"), "no-such-session", ""))
	rec.AssertStatus(t, http.StatusOK)
	out = SessionResponse{}
	rec.DecodeJSON(t, &out)
	if out.Authenticated || out.User != nil {
		t.Errorf("unknown token authenticated: %+v", out)
	}
}

func TestChangePassword(t *testing.T) {
	env := newTestEnv(t)
	reg := env.register(t, "Ada Lovelace", "ada@example.com", "Correct-horse-battery9")

	// A second session that should be revoked by the password change.
	otherRec := env.login(t, "ada@example.com", "Correct-horse-battery9")
	otherRec.AssertStatus(t, http.StatusOK)
	var other LoginResponse
	otherRec.DecodeJSON(t, &other)

	req := withSession(testutil.NewJSONRequest(t, http.MethodPost, "/change-password", ChangePasswordInput{
		CurrentPassword: "Correct-horse-battery9",
		NewPassword:     "Staple-gun-sunrise-42",
	}), reg.SessionID, reg.CSRFToken)
	rec := env.do(req)
	rec.AssertStatus(t, http.StatusOK)

	var out struct {
		CSRFToken       string `json:"csrfToken"`
		SessionsRevoked int64  `json:"sessionsRevoked"`
	}
	rec.DecodeJSON(t, &out)
	if out.SessionsRevoked != 1 {
		t.Errorf("sessions revoked: got %d, want 1", out.SessionsRevoked)
	}
	if out.CSRFToken == "" || out.CSRFToken == reg.CSRFToken {
		t.Errorf("expected a rotated CSRF token, got %q", out.CSRFToken)
	}

	// The other session is gone; the current one still works.
	rec = env.do(withSession(testutil.NewRequest(http.MethodGet, "/session"), other.SessionID, ""))
	rec.AssertStatus(t, http.StatusOK)
	var otherSess SessionResponse
	rec.DecodeJSON(t, &otherSess)
	if otherSess.Authenticated {
		t.Error("revoked session still authenticates")
	}

	rec = env.do(withSession(testutil.NewRequest(http.MethodGet, "/session"), reg.SessionID, ""))
	rec.AssertStatus(t, http.StatusOK)
	var currSess SessionResponse
	rec.DecodeJSON(t, &currSess)
	if !currSess.Authenticated {
		t.Error("current session lost after password change")
	}

	// Old password no longer logs in, the new one does.
	env.login(t, "ada@example.com", "Correct-horse-battery9").AssertStatus(t, http.StatusUnauthorized)
	env.login(t, "ada@example.com", "Staple-gun-sunrise-42").AssertStatus(t, http.StatusOK)
}

func TestChangePassword_WrongCurrent(t *testing.T) {
	env := newTestEnv(t)
	reg := env.register(t, "Ada Lovelace", "ada@example.com", "Correct-horse-battery9")

	req := withSession(testutil.NewJSONRequest(t, http.MethodPost, "/change-password", ChangePasswordInput{
		CurrentPassword: "not-my-password",
		NewPassword:     "Staple-gun-sunrise-42",
	}), reg.SessionID, reg.CSRFToken)
	rec := env.do(req)
	rec.AssertStatus(t, http.StatusUnauthorized)
	if code := rec.ErrorCode(t); code != string(apierr.CodeInvalidCredentials) {
		t.Errorf("error code: got %q", code)
	}
}

func TestChangePassword_Reused(t *testing.T) {
	env := newTestEnv(t)
	reg := env.register(t, "Ada Lovelace", "ada@example.com", "Correct-horse-battery9")

	req := withSession(testutil.NewJSONRequest(t, http.MethodPost, "/change-password", ChangePasswordInput{
		CurrentPassword: "Correct-horse-battery9",
		NewPassword:     "Correct-horse-battery9",
	}), reg.SessionID, reg.CSRFToken)
	rec := env.do(req)
	rec.AssertStatus(t, http.StatusBadRequest)
	if code := rec.ErrorCode(t); code != string(apierr.CodePasswordReused) {
		t.Errorf("error code: got %q", code)
	}
}

func TestChangePassword_MissingCSRF(t *testing.T) {
	env := newTestEnv(t)
	reg := env.register(t, "Ada Lovelace", "ada@example.com", "Correct-horse-battery9")

	req := withSession(testutil.NewJSONRequest(t, http.MethodPost, "/change-password", ChangePasswordInput{
		CurrentPassword: "Correct-horse-battery9",
		NewPassword:     "Staple-gun-sunrise-42",
	}), reg.SessionID, "")
	rec := env.do(req)
	rec.AssertStatus(t, http.StatusForbidden)
	if code := rec.ErrorCode(t); code != string(apierr.CodeCSRFMismatch) {
		t.Errorf("error code: got %q", code)
	}
}

func TestLogin_Validation(t *testing.T) {
	env := newTestEnv(t)

	rec := env.login(t, "", "")
	rec.AssertStatus(t, http.StatusBadRequest)
	if code := rec.ErrorCode(t); code != string(apierr.CodeValidation) {
		t.Errorf("error code: got %q", code)
	}
}

package ratelimit

import (
	"testing"
	"time"

	"github.com/projectgoat/projectgoat/internal/app/store/attempts"
	"github.com/projectgoat/projectgoat/internal/testutil"
)

func newTestGuard(t *testing.T) *Guard {
	t.Helper()
	db := testutil.SetupTestDB(t)
	return NewGuard(attempts.New(db), 5, 15*time.Minute, 15*time.Minute)
}

func TestNewGuard(t *testing.T) {
	g := newTestGuard(t)
	if g == nil {
		t.Fatal("NewGuard() returned nil")
	}
	if g.MaxAttempts() != 5 {
		t.Errorf("MaxAttempts() = %v, want 5", g.MaxAttempts())
	}
	if g.Window() != 15*time.Minute {
		t.Errorf("Window() = %v, want 15m", g.Window())
	}
	if g.Lockout() != 15*time.Minute {
		t.Errorf("Lockout() = %v, want 15m", g.Lockout())
	}
}

func TestGuard_Check_NoHistory(t *testing.T) {
	g := newTestGuard(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	d := g.Check(ctx, "fresh@example.com")
	if !d.Allowed {
		t.Error("Check() with no history should allow")
	}
	if d.Remaining != 5 {
		t.Errorf("Remaining = %v, want 5", d.Remaining)
	}
	if d.BlockedUntil != nil {
		t.Errorf("BlockedUntil = %v, want nil", d.BlockedUntil)
	}
}

func TestGuard_Check_RemainingDecrements(t *testing.T) {
	g := newTestGuard(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	email := "steady@example.com"
	for i := 0; i < 2; i++ {
		if _, _, err := g.RecordFailure(ctx, email, "10.0.0.1", "test-agent/1.0", attempts.ReasonBadPassword); err != nil {
			t.Fatalf("RecordFailure() error = %v", err)
		}
	}

	d := g.Check(ctx, email)
	if !d.Allowed {
		t.Error("Check() below threshold should allow")
	}
	if d.Remaining != 3 {
		t.Errorf("Remaining = %v, want 3", d.Remaining)
	}
}

func TestGuard_RecordFailure_ReachesLockout(t *testing.T) {
	g := newTestGuard(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	email := "locked@example.com"
	for i := 0; i < 4; i++ {
		lockedOut, until, err := g.RecordFailure(ctx, email, "10.0.0.1", "test-agent/1.0", attempts.ReasonBadPassword)
		if err != nil {
			t.Fatalf("RecordFailure() error = %v", err)
		}
		if lockedOut {
			t.Fatalf("Failure %d should not lock out yet", i+1)
		}
		if until != nil {
			t.Fatalf("Failure %d should not report a lockout time", i+1)
		}
	}

	lockedOut, until, err := g.RecordFailure(ctx, email, "10.0.0.1", "test-agent/1.0", attempts.ReasonBadPassword)
	if err != nil {
		t.Fatalf("RecordFailure() error = %v", err)
	}
	if !lockedOut {
		t.Error("Fifth failure should trigger lockout")
	}
	if until == nil {
		t.Fatal("Lockout time should be set")
	}
	if !until.After(time.Now()) {
		t.Errorf("Lockout should end in the future, got %v", until)
	}

	d := g.Check(ctx, email)
	if d.Allowed {
		t.Error("Check() during lockout should block")
	}
	if d.Remaining != -1 {
		t.Errorf("Remaining = %v, want -1", d.Remaining)
	}
	if d.BlockedUntil == nil {
		t.Error("BlockedUntil should be set while blocked")
	}
}

func TestGuard_Check_SuccessDoesNotReset(t *testing.T) {
	g := newTestGuard(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	email := "persistent@example.com"
	for i := 0; i < 4; i++ {
		if _, _, err := g.RecordFailure(ctx, email, "10.0.0.1", "test-agent/1.0", attempts.ReasonBadPassword); err != nil {
			t.Fatalf("RecordFailure() error = %v", err)
		}
	}
	if err := g.RecordSuccess(ctx, email, "10.0.0.1", "test-agent/1.0"); err != nil {
		t.Fatalf("RecordSuccess() error = %v", err)
	}

	// The ledger keeps the failures; one more failure still locks out
	d := g.Check(ctx, email)
	if !d.Allowed {
		t.Error("Check() should still allow with 4 failures")
	}
	if d.Remaining != 1 {
		t.Errorf("Remaining = %v, want 1 after success", d.Remaining)
	}

	lockedOut, _, err := g.RecordFailure(ctx, email, "10.0.0.1", "test-agent/1.0", attempts.ReasonBadPassword)
	if err != nil {
		t.Fatalf("RecordFailure() error = %v", err)
	}
	if !lockedOut {
		t.Error("Fifth failure after success should still trigger lockout")
	}
}

func TestGuard_Check_EmailsIndependent(t *testing.T) {
	g := newTestGuard(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	for i := 0; i < 5; i++ {
		if _, _, err := g.RecordFailure(ctx, "victim@example.com", "10.0.0.1", "test-agent/1.0", attempts.ReasonBadPassword); err != nil {
			t.Fatalf("RecordFailure() error = %v", err)
		}
	}

	if d := g.Check(ctx, "victim@example.com"); d.Allowed {
		t.Error("Locked email should be blocked")
	}
	if d := g.Check(ctx, "bystander@example.com"); !d.Allowed {
		t.Error("Another email should be unaffected")
	}
}

func TestGuard_Check_WindowExpiry(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := attempts.New(db)
	// Tiny window so the failures age out immediately
	g := NewGuard(store, 2, time.Millisecond, time.Millisecond)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	email := "expiring@example.com"
	for i := 0; i < 2; i++ {
		if err := store.Record(ctx, email, "10.0.0.1", "test-agent/1.0", attempts.OutcomeFailure, attempts.ReasonBadPassword); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	time.Sleep(10 * time.Millisecond)

	d := g.Check(ctx, email)
	if !d.Allowed {
		t.Error("Check() should allow after the window and lockout pass")
	}
}

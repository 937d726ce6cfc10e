package attempts

import (
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/projectgoat/projectgoat/internal/testutil"
)

func TestNew(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	if store == nil {
		t.Fatal("New() returned nil")
	}
}

func TestStore_EnsureIndexes(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	err := store.EnsureIndexes(ctx)
	if err != nil {
		t.Fatalf("EnsureIndexes() error = %v", err)
	}

	// Retention is the cleanup job's: no index may silently expire
	// ledger entries on its own schedule.
	cursor, err := db.Collection("login_attempts").Indexes().List(ctx)
	if err != nil {
		t.Fatalf("Indexes().List() error = %v", err)
	}
	var specs []bson.M
	if err := cursor.All(ctx, &specs); err != nil {
		t.Fatalf("cursor.All() error = %v", err)
	}
	for _, spec := range specs {
		if _, ok := spec["expireAfterSeconds"]; ok {
			t.Errorf("index %v carries a TTL", spec["name"])
		}
	}
}

func TestStore_Record(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	err := store.Record(ctx, "User@Example.COM", "192.168.1.1", "test-agent/1.0", OutcomeFailure, ReasonBadPassword)
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	// Email is normalized on write; lookups use the normalized form too
	recent, err := store.ListRecent(ctx, "user@example.com", 10)
	if err != nil {
		t.Fatalf("ListRecent() error = %v", err)
	}
	if len(recent) != 1 {
		t.Fatalf("Expected 1 attempt, got %d", len(recent))
	}
	if recent[0].Email != "user@example.com" {
		t.Errorf("Email = %v, want user@example.com", recent[0].Email)
	}
	if recent[0].IP != "192.168.1.1" {
		t.Errorf("IP = %v, want 192.168.1.1", recent[0].IP)
	}
	if recent[0].Outcome != OutcomeFailure {
		t.Errorf("Outcome = %v, want %v", recent[0].Outcome, OutcomeFailure)
	}
	if recent[0].UserAgent != "test-agent/1.0" {
		t.Errorf("UserAgent = %v, want test-agent/1.0", recent[0].UserAgent)
	}
	if recent[0].Reason != ReasonBadPassword {
		t.Errorf("Reason = %v, want %v", recent[0].Reason, ReasonBadPassword)
	}
}

func TestStore_CountFailuresSince(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	email := "count@example.com"
	for i := 0; i < 3; i++ {
		if err := store.Record(ctx, email, "10.0.0.1", "test-agent/1.0", OutcomeFailure, ReasonBadPassword); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}
	// Successes never count toward the failure threshold
	if err := store.Record(ctx, email, "10.0.0.1", "test-agent/1.0", OutcomeSuccess, ""); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	// Other emails are independent
	if err := store.Record(ctx, "other@example.com", "10.0.0.1", "test-agent/1.0", OutcomeFailure, ReasonBadPassword); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	count, err := store.CountFailuresSince(ctx, email, time.Now().Add(-15*time.Minute))
	if err != nil {
		t.Fatalf("CountFailuresSince() error = %v", err)
	}
	if count != 3 {
		t.Errorf("CountFailuresSince() = %v, want 3", count)
	}

	// A window starting after the failures sees none of them
	count, err = store.CountFailuresSince(ctx, email, time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("CountFailuresSince() error = %v", err)
	}
	if count != 0 {
		t.Errorf("CountFailuresSince() = %v, want 0", count)
	}
}

func TestStore_CountFailuresSince_SuccessDoesNotClear(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	email := "ledger@example.com"
	if err := store.Record(ctx, email, "10.0.0.1", "test-agent/1.0", OutcomeFailure, ReasonBadPassword); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if err := store.Record(ctx, email, "10.0.0.1", "test-agent/1.0", OutcomeFailure, ReasonBadPassword); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if err := store.Record(ctx, email, "10.0.0.1", "test-agent/1.0", OutcomeSuccess, ""); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	// Earlier failures stay on the ledger after a successful login
	count, err := store.CountFailuresSince(ctx, email, time.Now().Add(-15*time.Minute))
	if err != nil {
		t.Fatalf("CountFailuresSince() error = %v", err)
	}
	if count != 2 {
		t.Errorf("CountFailuresSince() after success = %v, want 2", count)
	}
}

func TestStore_LastFailure(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	email := "last@example.com"

	// No failures yet
	got, err := store.LastFailure(ctx, email)
	if err != nil {
		t.Fatalf("LastFailure() error = %v", err)
	}
	if got != nil {
		t.Errorf("LastFailure() = %v, want nil", got)
	}

	if err := store.Record(ctx, email, "10.0.0.1", "test-agent/1.0", OutcomeFailure, ReasonBadPassword); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if err := store.Record(ctx, email, "10.0.0.2", "test-agent/1.0", OutcomeFailure, ReasonBadPassword); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	// A trailing success does not change the last failure
	if err := store.Record(ctx, email, "10.0.0.3", "test-agent/1.0", OutcomeSuccess, ""); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	got, err = store.LastFailure(ctx, email)
	if err != nil {
		t.Fatalf("LastFailure() error = %v", err)
	}
	if got == nil {
		t.Fatal("LastFailure() = nil, want most recent failure")
	}
	if got.IP != "10.0.0.2" {
		t.Errorf("LastFailure() IP = %v, want 10.0.0.2", got.IP)
	}
}

func TestStore_ListRecent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	email := "list@example.com"
	ips := []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"}
	for _, ip := range ips {
		if err := store.Record(ctx, email, ip, "test-agent/1.0", OutcomeFailure, ReasonBadPassword); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
		time.Sleep(5 * time.Millisecond)
	}

	recent, err := store.ListRecent(ctx, email, 2)
	if err != nil {
		t.Fatalf("ListRecent() error = %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("Expected 2 attempts, got %d", len(recent))
	}
	if recent[0].IP != "10.0.0.3" {
		t.Errorf("First attempt IP = %v, want newest 10.0.0.3", recent[0].IP)
	}
	if recent[1].IP != "10.0.0.2" {
		t.Errorf("Second attempt IP = %v, want 10.0.0.2", recent[1].IP)
	}
}

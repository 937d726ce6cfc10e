package userstore

import (
	"testing"
	"time"

	"github.com/projectgoat/projectgoat/internal/app/system/status"
	"github.com/projectgoat/projectgoat/internal/domain/models"
	"github.com/projectgoat/projectgoat/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

func TestStore_Create(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	created, err := store.Create(ctx, models.User{
		FullName:     "  Test User  ",
		Email:        "Test@Example.COM",
		PasswordHash: "hashed",
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if created.ID.IsZero() {
		t.Error("Create() should assign an ID")
	}
	if created.FullName != "Test User" {
		t.Errorf("FullName = %q, want %q", created.FullName, "Test User")
	}
	if created.Email != "test@example.com" {
		t.Errorf("Email = %q, want %q", created.Email, "test@example.com")
	}
	if created.EmailCI == "" {
		t.Error("EmailCI should be populated")
	}
	if created.Status != status.Active {
		t.Errorf("Status = %q, want %q", created.Status, status.Active)
	}
	if created.PasswordChangedAt.IsZero() {
		t.Error("PasswordChangedAt should be stamped on create")
	}
}

func TestStore_Create_InvalidStatus(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	_, err := store.Create(ctx, models.User{
		FullName: "Bad Status",
		Email:    "badstatus@example.com",
		Status:   "suspended",
	})
	if err == nil {
		t.Error("Create() with invalid status should fail")
	}
}

func TestStore_Create_DuplicateEmail(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := store.EnsureIndexes(ctx); err != nil {
		t.Fatalf("EnsureIndexes() error = %v", err)
	}

	_, err := store.Create(ctx, models.User{
		FullName: "First",
		Email:    "dup@example.com",
	})
	if err != nil {
		t.Fatalf("First Create() error = %v", err)
	}

	// Same address with different casing collides on the folded key
	_, err = store.Create(ctx, models.User{
		FullName: "Second",
		Email:    "DUP@Example.com",
	})
	if err != ErrDuplicateEmail {
		t.Errorf("Create() duplicate error = %v, want %v", err, ErrDuplicateEmail)
	}
}

func TestStore_GetByID(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	created, err := store.Create(ctx, models.User{
		FullName: "Get By ID",
		Email:    "getbyid@example.com",
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := store.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Email != "getbyid@example.com" {
		t.Errorf("Email = %v, want getbyid@example.com", got.Email)
	}

	_, err = store.GetByID(ctx, primitive.NewObjectID())
	if err != mongo.ErrNoDocuments {
		t.Errorf("GetByID() for unknown ID error = %v, want %v", err, mongo.ErrNoDocuments)
	}
}

func TestStore_GetByIDs(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	a, err := store.Create(ctx, models.User{FullName: "A", Email: "a@example.com"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	b, err := store.Create(ctx, models.User{FullName: "B", Email: "b@example.com"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	users, err := store.GetByIDs(ctx, []primitive.ObjectID{a.ID, b.ID})
	if err != nil {
		t.Fatalf("GetByIDs() error = %v", err)
	}
	if len(users) != 2 {
		t.Errorf("Expected 2 users, got %d", len(users))
	}

	// Empty input short-circuits
	users, err = store.GetByIDs(ctx, nil)
	if err != nil {
		t.Fatalf("GetByIDs(nil) error = %v", err)
	}
	if users != nil {
		t.Errorf("GetByIDs(nil) = %v, want nil", users)
	}
}

func TestStore_GetByEmail(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	_, err := store.Create(ctx, models.User{
		FullName: "Email Lookup",
		Email:    "lookup@example.com",
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	tests := []struct {
		name    string
		email   string
		wantErr bool
	}{
		{"exact match", "lookup@example.com", false},
		{"different case", "LOOKUP@Example.COM", false},
		{"surrounding whitespace", "  lookup@example.com  ", false},
		{"unknown email", "missing@example.com", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.GetByEmail(ctx, tt.email)
			if (err != nil) != tt.wantErr {
				t.Errorf("GetByEmail() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && got.Email != "lookup@example.com" {
				t.Errorf("Email = %v, want lookup@example.com", got.Email)
			}
		})
	}
}

func TestStore_ExistsByEmail(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	_, err := store.Create(ctx, models.User{
		FullName: "Exists",
		Email:    "exists@example.com",
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	exists, err := store.ExistsByEmail(ctx, "EXISTS@example.com")
	if err != nil {
		t.Fatalf("ExistsByEmail() error = %v", err)
	}
	if !exists {
		t.Error("ExistsByEmail() = false, want true")
	}

	exists, err = store.ExistsByEmail(ctx, "nobody@example.com")
	if err != nil {
		t.Fatalf("ExistsByEmail() error = %v", err)
	}
	if exists {
		t.Error("ExistsByEmail() = true, want false")
	}
}

func TestStore_UpdateFromInput(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	created, err := store.Create(ctx, models.User{
		FullName: "Original Name",
		Email:    "original@example.com",
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	newName := "Updated Name"
	err = store.UpdateFromInput(ctx, created.ID, UpdateInput{FullName: &newName})
	if err != nil {
		t.Fatalf("UpdateFromInput() error = %v", err)
	}

	got, err := store.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.FullName != newName {
		t.Errorf("FullName = %v, want %v", got.FullName, newName)
	}
	// Untouched fields survive a partial update
	if got.Email != "original@example.com" {
		t.Errorf("Email = %v, want original@example.com", got.Email)
	}
}

func TestStore_UpdateFromInput_AllFields(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	created, err := store.Create(ctx, models.User{
		FullName: "Before",
		Email:    "before@example.com",
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	name := "After"
	email := "After@Example.com"
	st := status.Disabled
	err = store.UpdateFromInput(ctx, created.ID, UpdateInput{
		FullName: &name,
		Email:    &email,
		Status:   &st,
	})
	if err != nil {
		t.Fatalf("UpdateFromInput() error = %v", err)
	}

	got, err := store.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.FullName != "After" {
		t.Errorf("FullName = %v, want After", got.FullName)
	}
	if got.Email != "after@example.com" {
		t.Errorf("Email = %v, want after@example.com", got.Email)
	}
	if got.Status != status.Disabled {
		t.Errorf("Status = %v, want %v", got.Status, status.Disabled)
	}
}

func TestStore_UpdateFromInput_InvalidStatus(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	created, err := store.Create(ctx, models.User{
		FullName: "Status Check",
		Email:    "statuscheck@example.com",
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	bad := "banned"
	err = store.UpdateFromInput(ctx, created.ID, UpdateInput{Status: &bad})
	if err == nil {
		t.Error("UpdateFromInput() with invalid status should fail")
	}
}

func TestStore_UpdatePassword(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	created, err := store.Create(ctx, models.User{
		FullName:     "Password User",
		Email:        "password@example.com",
		PasswordHash: "old-hash",
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	before := created.PasswordChangedAt

	time.Sleep(10 * time.Millisecond)
	err = store.UpdatePassword(ctx, created.ID, "new-hash")
	if err != nil {
		t.Fatalf("UpdatePassword() error = %v", err)
	}

	got, err := store.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.PasswordHash != "new-hash" {
		t.Errorf("PasswordHash = %v, want new-hash", got.PasswordHash)
	}
	if !got.PasswordChangedAt.After(before) {
		t.Error("PasswordChangedAt should advance on password update")
	}
}

func TestStore_SetLockout(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	created, err := store.Create(ctx, models.User{
		FullName: "Lockout User",
		Email:    "lockout@example.com",
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	until := time.Now().Add(15 * time.Minute)
	if err := store.SetLockout(ctx, created.ID, &until); err != nil {
		t.Fatalf("SetLockout() error = %v", err)
	}

	got, err := store.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.AccountLockedUntil == nil {
		t.Fatal("AccountLockedUntil should be set")
	}
	if !got.Locked(time.Now()) {
		t.Error("Locked() = false, want true while lockout is in the future")
	}

	// Clearing the lockout
	if err := store.SetLockout(ctx, created.ID, nil); err != nil {
		t.Fatalf("SetLockout(nil) error = %v", err)
	}
	got, err = store.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Locked(time.Now()) {
		t.Error("Locked() = true after clearing lockout")
	}
}

func TestStore_RecordLogin(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	created, err := store.Create(ctx, models.User{
		FullName: "Login User",
		Email:    "login@example.com",
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	at := time.Now()
	if err := store.RecordLogin(ctx, created.ID, at); err != nil {
		t.Fatalf("RecordLogin() error = %v", err)
	}

	got, err := store.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.LastLoginAt == nil {
		t.Fatal("LastLoginAt should be set")
	}
	if got.LastLoginAt.Unix() != at.Unix() {
		t.Errorf("LastLoginAt = %v, want %v", got.LastLoginAt, at)
	}
}

func TestStore_Delete(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	created, err := store.Create(ctx, models.User{
		FullName: "Delete Me",
		Email:    "deleteme@example.com",
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	deleted, err := store.Delete(ctx, created.ID)
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if deleted != 1 {
		t.Errorf("Delete() = %v, want 1", deleted)
	}

	_, err = store.GetByID(ctx, created.ID)
	if err != mongo.ErrNoDocuments {
		t.Errorf("GetByID() after delete error = %v, want %v", err, mongo.ErrNoDocuments)
	}

	// Deleting a missing user reports zero
	deleted, err = store.Delete(ctx, primitive.NewObjectID())
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if deleted != 0 {
		t.Errorf("Delete() = %v, want 0", deleted)
	}
}

func TestStore_FindAndCount(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	for _, u := range []models.User{
		{FullName: "Active One", Email: "active1@example.com"},
		{FullName: "Active Two", Email: "active2@example.com"},
		{FullName: "Disabled One", Email: "disabled1@example.com", Status: status.Disabled},
	} {
		if _, err := store.Create(ctx, u); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	active, err := store.Find(ctx, bson.M{"status": status.Active})
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if len(active) != 2 {
		t.Errorf("Find(active) returned %d users, want 2", len(active))
	}

	count, err := store.Count(ctx, bson.M{"status": status.Disabled})
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 1 {
		t.Errorf("Count(disabled) = %v, want 1", count)
	}
}

func TestFetcher_FetchUser(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	fetcher := NewFetcher(db, zap.NewNop())
	ctx, cancel := testutil.TestContext()
	defer cancel()

	created, err := store.Create(ctx, models.User{
		FullName: "Fetched User",
		Email:    "fetched@example.com",
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := fetcher.FetchUser(ctx, created.ID)
	if err != nil {
		t.Fatalf("FetchUser() error = %v", err)
	}
	if got.Email != "fetched@example.com" {
		t.Errorf("Email = %v, want fetched@example.com", got.Email)
	}
}

func TestFetcher_FetchUser_NotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fetcher := NewFetcher(db, zap.NewNop())
	ctx, cancel := testutil.TestContext()
	defer cancel()

	_, err := fetcher.FetchUser(ctx, primitive.NewObjectID())
	if err != mongo.ErrNoDocuments {
		t.Errorf("FetchUser() error = %v, want %v", err, mongo.ErrNoDocuments)
	}
}

func TestFetcher_FetchUser_Disabled(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	fetcher := NewFetcher(db, zap.NewNop())
	ctx, cancel := testutil.TestContext()
	defer cancel()

	created, err := store.Create(ctx, models.User{
		FullName: "Disabled User",
		Email:    "disabledfetch@example.com",
		Status:   status.Disabled,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// Fetcher returns disabled users; the session middleware decides what
	// to do with them.
	got, err := fetcher.FetchUser(ctx, created.ID)
	if err != nil {
		t.Fatalf("FetchUser() error = %v", err)
	}
	if got.Status != status.Disabled {
		t.Errorf("Status = %v, want %v", got.Status, status.Disabled)
	}
}

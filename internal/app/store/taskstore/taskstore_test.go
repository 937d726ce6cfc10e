package taskstore

import (
	"testing"

	"github.com/projectgoat/projectgoat/internal/domain/models"
	"github.com/projectgoat/projectgoat/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
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
}

func TestStore_Create(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	teamID := primitive.NewObjectID()
	assignee := primitive.NewObjectID()

	created, err := store.Create(ctx, models.Task{
		TeamID:     teamID,
		Title:      "Write the report",
		AssigneeID: &assignee,
		CreatedBy:  primitive.NewObjectID(),
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if created.ID.IsZero() {
		t.Error("Create() should assign an ID")
	}
	if created.Status != models.TaskStatusOpen {
		t.Errorf("Status = %v, want %v", created.Status, models.TaskStatusOpen)
	}

	got, err := store.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Title != "Write the report" {
		t.Errorf("Title = %v, want Write the report", got.Title)
	}
	if got.AssigneeID == nil || *got.AssigneeID != assignee {
		t.Errorf("AssigneeID = %v, want %v", got.AssigneeID, assignee)
	}
}

func TestStore_GetByID_NotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	_, err := store.GetByID(ctx, primitive.NewObjectID())
	if err != mongo.ErrNoDocuments {
		t.Errorf("GetByID() error = %v, want %v", err, mongo.ErrNoDocuments)
	}
}

func TestStore_ListByAssignee(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	teamID := primitive.NewObjectID()
	assignee := primitive.NewObjectID()
	other := primitive.NewObjectID()

	for _, title := range []string{"First", "Second"} {
		if _, err := store.Create(ctx, models.Task{
			TeamID:     teamID,
			Title:      title,
			AssigneeID: &assignee,
			CreatedBy:  primitive.NewObjectID(),
		}); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}
	// Another assignee and another team are excluded
	if _, err := store.Create(ctx, models.Task{
		TeamID:     teamID,
		Title:      "Someone else's",
		AssigneeID: &other,
		CreatedBy:  primitive.NewObjectID(),
	}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := store.Create(ctx, models.Task{
		TeamID:     primitive.NewObjectID(),
		Title:      "Other team",
		AssigneeID: &assignee,
		CreatedBy:  primitive.NewObjectID(),
	}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	tasks, err := store.ListByAssignee(ctx, teamID, assignee)
	if err != nil {
		t.Fatalf("ListByAssignee() error = %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("Expected 2 tasks, got %d", len(tasks))
	}
	if tasks[0].Title != "First" {
		t.Errorf("First task = %v, want First", tasks[0].Title)
	}

	count, err := store.CountByAssignee(ctx, teamID, assignee)
	if err != nil {
		t.Fatalf("CountByAssignee() error = %v", err)
	}
	if count != 2 {
		t.Errorf("CountByAssignee() = %v, want 2", count)
	}
}

func TestStore_UnassignByAssignee(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	teamID := primitive.NewObjectID()
	assignee := primitive.NewObjectID()

	created, err := store.Create(ctx, models.Task{
		TeamID:     teamID,
		Title:      "Orphan me",
		AssigneeID: &assignee,
		CreatedBy:  primitive.NewObjectID(),
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	touched, err := store.UnassignByAssignee(ctx, teamID, assignee)
	if err != nil {
		t.Fatalf("UnassignByAssignee() error = %v", err)
	}
	if touched != 1 {
		t.Errorf("UnassignByAssignee() = %v, want 1", touched)
	}

	got, err := store.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.AssigneeID != nil {
		t.Errorf("AssigneeID = %v, want nil after unassign", got.AssigneeID)
	}
	// Task itself survives
	if got.Title != "Orphan me" {
		t.Errorf("Title = %v, want Orphan me", got.Title)
	}
}

func TestStore_ReassignByAssignee(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	teamID := primitive.NewObjectID()
	from := primitive.NewObjectID()
	to := primitive.NewObjectID()

	for i := 0; i < 2; i++ {
		if _, err := store.Create(ctx, models.Task{
			TeamID:     teamID,
			Title:      "Handover",
			AssigneeID: &from,
			CreatedBy:  primitive.NewObjectID(),
		}); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}
	// A task in another team stays with the original assignee
	otherTeamTask, err := store.Create(ctx, models.Task{
		TeamID:     primitive.NewObjectID(),
		Title:      "Stays put",
		AssigneeID: &from,
		CreatedBy:  primitive.NewObjectID(),
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	moved, err := store.ReassignByAssignee(ctx, teamID, from, to)
	if err != nil {
		t.Fatalf("ReassignByAssignee() error = %v", err)
	}
	if moved != 2 {
		t.Errorf("ReassignByAssignee() = %v, want 2", moved)
	}

	count, err := store.CountByAssignee(ctx, teamID, to)
	if err != nil {
		t.Fatalf("CountByAssignee() error = %v", err)
	}
	if count != 2 {
		t.Errorf("CountByAssignee(to) = %v, want 2", count)
	}

	got, err := store.GetByID(ctx, otherTeamTask.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.AssigneeID == nil || *got.AssigneeID != from {
		t.Errorf("Other team's task assignee = %v, want %v", got.AssigneeID, from)
	}
}

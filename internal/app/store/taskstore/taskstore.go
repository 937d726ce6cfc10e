// internal/app/store/taskstore/taskstore.go
package taskstore

import (
	"context"
	"time"

	"github.com/projectgoat/projectgoat/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("tasks")}
}

// EnsureIndexes creates indexes for efficient querying.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "team_id", Value: 1}, {Key: "status", Value: 1}},
			Options: options.Index().SetName("idx_task_team_status"),
		},
		{
			Keys:    bson.D{{Key: "team_id", Value: 1}, {Key: "assignee_id", Value: 1}},
			Options: options.Index().SetName("idx_task_team_assignee"),
		},
	}
	_, err := s.c.Indexes().CreateMany(ctx, indexes)
	return err
}

// Create inserts a new task.
func (s *Store) Create(ctx context.Context, t models.Task) (models.Task, error) {
	t.ID = primitive.NewObjectID()
	if t.Status == "" {
		t.Status = models.TaskStatusOpen
	}
	now := time.Now()
	t.CreatedAt = now
	t.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, t); err != nil {
		return models.Task{}, err
	}
	return t, nil
}

// GetByID loads a task by ObjectID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Task, error) {
	var t models.Task
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&t); err != nil {
		return nil, err
	}
	return &t, nil
}

// ListByAssignee retrieves a member's tasks within a team.
func (s *Store) ListByAssignee(ctx context.Context, teamID, userID primitive.ObjectID) ([]models.Task, error) {
	cur, err := s.c.Find(ctx, bson.M{"team_id": teamID, "assignee_id": userID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var tasks []models.Task
	if err := cur.All(ctx, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// CountByAssignee counts a member's tasks within a team.
func (s *Store) CountByAssignee(ctx context.Context, teamID, userID primitive.ObjectID) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"team_id": teamID, "assignee_id": userID})
}

// UnassignByAssignee clears the assignee on all of a member's tasks within a
// team. Returns the number of tasks touched.
func (s *Store) UnassignByAssignee(ctx context.Context, teamID, userID primitive.ObjectID) (int64, error) {
	res, err := s.c.UpdateMany(ctx,
		bson.M{"team_id": teamID, "assignee_id": userID},
		bson.M{
			"$set":   bson.M{"updated_at": time.Now()},
			"$unset": bson.M{"assignee_id": ""},
		},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// ReassignByAssignee moves all of a member's tasks within a team to another
// user. Returns the number of tasks touched.
func (s *Store) ReassignByAssignee(ctx context.Context, teamID, fromUser, toUser primitive.ObjectID) (int64, error) {
	res, err := s.c.UpdateMany(ctx,
		bson.M{"team_id": teamID, "assignee_id": fromUser},
		bson.M{"$set": bson.M{
			"assignee_id": toUser,
			"updated_at":  time.Now(),
		}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// Count returns the number of tasks matching the given filter.
func (s *Store) Count(ctx context.Context, filter bson.M) (int64, error) {
	return s.c.CountDocuments(ctx, filter)
}

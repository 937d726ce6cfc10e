// internal/domain/models/task.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Task is a unit of work inside a team. Only the fields membership
// management touches live here; assignment is what matters when a member
// leaves a team.
type Task struct {
	ID         primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	TeamID     primitive.ObjectID  `bson:"team_id" json:"team_id"`
	Title      string              `bson:"title" json:"title"`
	Status     string              `bson:"status" json:"status"` // open, in_progress, done
	AssigneeID *primitive.ObjectID `bson:"assignee_id,omitempty" json:"assignee_id,omitempty"`
	CreatedBy  primitive.ObjectID  `bson:"created_by" json:"created_by"`
	CreatedAt  time.Time           `bson:"created_at" json:"created_at"`
	UpdatedAt  time.Time           `bson:"updated_at" json:"updated_at"`
}

// Task statuses
const (
	TaskStatusOpen       = "open"
	TaskStatusInProgress = "in_progress"
	TaskStatusDone       = "done"
)

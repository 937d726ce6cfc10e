// internal/domain/models/team.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Team is a collaboration workspace. Every user belongs to at least one
// team; a "single" account type team is the personal workspace created at
// registration, a "multi" team may hold any number of members.
type Team struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name        string             `bson:"name" json:"name"`
	AccountType string             `bson:"account_type" json:"account_type"` // single, multi
	Status      string             `bson:"status" json:"status"`             // active, archived
	CreatedBy   primitive.ObjectID `bson:"created_by" json:"created_by"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time          `bson:"updated_at" json:"updated_at"`
}

// Team account types
const (
	AccountTypeSingle = "single"
	AccountTypeMulti  = "multi"
)

// Team statuses
const (
	TeamStatusActive   = "active"
	TeamStatusArchived = "archived"
)

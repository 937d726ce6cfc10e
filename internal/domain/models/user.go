// internal/domain/models/user.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User represents an account holder of the application.
//
// Auth fields:
//   - Email: What the user types to identify themselves (stored lowercase)
//   - EmailCI: Folded version for case-insensitive matching
//   - PasswordHash: bcrypt hash, never serialized to JSON
type User struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	FullName   string             `bson:"full_name" json:"full_name"`
	FullNameCI string             `bson:"full_name_ci" json:"-"` // lowercase, diacritics-stripped

	Email   string `bson:"email" json:"email"`       // login identifier (lowercase)
	EmailCI string `bson:"email_ci" json:"-"` // folded for case-insensitive matching

	PasswordHash      string    `bson:"password_hash" json:"-"`
	PasswordChangedAt time.Time `bson:"password_changed_at,omitempty" json:"-"`

	// Status and lockout
	Status             string     `bson:"status" json:"status"` // active, disabled
	AccountLockedUntil *time.Time `bson:"account_locked_until,omitempty" json:"-"`

	LastLoginAt *time.Time `bson:"last_login_at,omitempty" json:"last_login_at,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// User statuses
const (
	StatusActive   = "active"
	StatusDisabled = "disabled"
)

// Locked reports whether the account is under an explicit lockout at now.
func (u *User) Locked(now time.Time) bool {
	return u.AccountLockedUntil != nil && u.AccountLockedUntil.After(now)
}

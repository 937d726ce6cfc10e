// internal/app/store/attempts/store.go
package attempts

import (
	"context"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Attempt outcomes
const (
	OutcomeFailure = "failure"
	OutcomeSuccess = "success"
)

// Failure reasons. Stored for the audit trail only; responses never
// distinguish them.
const (
	ReasonBadPassword     = "bad_password"
	ReasonUnknownEmail    = "unknown_email"
	ReasonRateLimited     = "rate_limited"
	ReasonAccountLocked   = "account_locked"
	ReasonAccountDisabled = "account_disabled"
)

// Attempt is one login attempt against an email. The collection is an
// append-only ledger; rate limiting is computed from recent failure counts,
// never by mutating or deleting prior entries.
type Attempt struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Email     string             `bson:"email"` // Normalized email (lowercase)
	IP        string             `bson:"ip,omitempty"`
	UserAgent string             `bson:"user_agent,omitempty"`
	Outcome   string             `bson:"outcome"` // failure, success
	Reason    string             `bson:"reason,omitempty"`
	At        time.Time          `bson:"at"`
}

// Store manages the login attempt ledger.
type Store struct {
	c *mongo.Collection
}

// New creates a new attempt Store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("login_attempts")}
}

// EnsureIndexes creates necessary indexes for efficient querying.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		// Window queries: failures per email, newest first
		{
			Keys:    bson.D{{Key: "email", Value: 1}, {Key: "at", Value: -1}},
			Options: options.Index().SetName("idx_attempt_email_at"),
		},
		// Retention sweep queries by timestamp. No TTL here: retention is
		// a configured duration enforced by the cleanup job, not a
		// constant baked into the index.
		{
			Keys:    bson.D{{Key: "at", Value: 1}},
			Options: options.Index().SetName("idx_attempt_at"),
		},
	}
	_, err := s.c.Indexes().CreateMany(ctx, indexes)
	return err
}

// normalizeEmail converts email to lowercase for consistent lookups.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Record appends an attempt to the ledger. Reason is empty for successes.
func (s *Store) Record(ctx context.Context, email, ip, userAgent, outcome, reason string) error {
	_, err := s.c.InsertOne(ctx, Attempt{
		ID:        primitive.NewObjectID(),
		Email:     normalizeEmail(email),
		IP:        ip,
		UserAgent: userAgent,
		Outcome:   outcome,
		Reason:    reason,
		At:        time.Now(),
	})
	return err
}

// CountFailuresSince counts failed attempts for an email at or after since.
func (s *Store) CountFailuresSince(ctx context.Context, email string, since time.Time) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{
		"email":   normalizeEmail(email),
		"outcome": OutcomeFailure,
		"at":      bson.M{"$gte": since},
	})
}

// LastFailure returns the most recent failed attempt for an email, or nil if
// there is none.
func (s *Store) LastFailure(ctx context.Context, email string) (*Attempt, error) {
	var a Attempt
	err := s.c.FindOne(ctx,
		bson.M{"email": normalizeEmail(email), "outcome": OutcomeFailure},
		options.FindOne().SetSort(bson.D{{Key: "at", Value: -1}}),
	).Decode(&a)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ListRecent returns the newest attempts for an email, most recent first.
func (s *Store) ListRecent(ctx context.Context, email string, limit int64) ([]Attempt, error) {
	opts := options.Find().SetSort(bson.D{{Key: "at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cursor, err := s.c.Find(ctx, bson.M{"email": normalizeEmail(email)}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []Attempt
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteBefore removes attempts older than cutoff. The ledger is
// append-only for its retention window; this is the retention sweep.
func (s *Store) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.c.DeleteMany(ctx, bson.M{"at": bson.M{"$lt": cutoff}})
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}

// internal/app/store/invitation/invitationstore.go
package invitation

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Token classification errors. Callers map these onto API error codes.
var (
	ErrNotFound = errors.New("invitation not found")
	ErrExpired  = errors.New("invitation has expired")
	ErrConsumed = errors.New("invitation has already been used")
	ErrRevoked  = errors.New("invitation has been revoked")
)

// Invitation invites an email address into a team with a role. The token is
// single-use: Consume claims it atomically so two concurrent accepts cannot
// both succeed.
type Invitation struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	TeamID    primitive.ObjectID `bson:"team_id"`
	Email     string             `bson:"email"`
	Token     string             `bson:"token"`
	Role      string             `bson:"role"`
	InvitedBy primitive.ObjectID `bson:"invited_by"`
	ExpiresAt time.Time          `bson:"expires_at"`
	UsedAt    *time.Time         `bson:"used_at,omitempty"`
	Revoked   bool               `bson:"revoked"`
	CreatedAt time.Time          `bson:"created_at"`
}

// Pending reports whether the invitation can still be accepted at now.
func (inv *Invitation) Pending(now time.Time) bool {
	return inv.UsedAt == nil && !inv.Revoked && inv.ExpiresAt.After(now)
}

// Store provides access to the invitations collection.
type Store struct {
	c      *mongo.Collection
	expiry time.Duration
}

// New creates a new invitation store.
func New(db *mongo.Database, expiry time.Duration) *Store {
	return &Store{
		c:      db.Collection("invitations"),
		expiry: expiry,
	}
}

// EnsureIndexes creates necessary indexes for the collection.
// Expired invitations are kept (not TTL-deleted) so accepting an expired
// token can be told apart from a token that never existed.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "token", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("idx_invitation_token"),
		},
		{
			Keys:    bson.D{{Key: "team_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_invitation_team"),
		},
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetName("idx_invitation_email"),
		},
	}

	_, err := s.c.Indexes().CreateMany(ctx, indexes)
	return err
}

// CreateInput contains the input for creating an invitation.
type CreateInput struct {
	TeamID    primitive.ObjectID
	Email     string
	Role      string
	InvitedBy primitive.ObjectID
}

// Create creates a new invitation and returns it.
func (s *Store) Create(ctx context.Context, input CreateInput) (*Invitation, error) {
	token, err := generateToken()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	inv := Invitation{
		ID:        primitive.NewObjectID(),
		TeamID:    input.TeamID,
		Email:     input.Email,
		Token:     token,
		Role:      input.Role,
		InvitedBy: input.InvitedBy,
		ExpiresAt: now.Add(s.expiry),
		Revoked:   false,
		CreatedAt: now,
	}

	if _, err := s.c.InsertOne(ctx, inv); err != nil {
		return nil, err
	}

	return &inv, nil
}

// VerifyToken looks up an invitation by token and classifies its state.
// Returns the invitation with nil error only when it is still pending.
func (s *Store) VerifyToken(ctx context.Context, token string) (*Invitation, error) {
	var inv Invitation
	if err := s.c.FindOne(ctx, bson.M{"token": token}).Decode(&inv); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}

	switch {
	case inv.Revoked:
		return nil, ErrRevoked
	case inv.UsedAt != nil:
		return nil, ErrConsumed
	case !inv.ExpiresAt.After(time.Now()):
		return nil, ErrExpired
	}
	return &inv, nil
}

// Consume atomically claims a pending invitation, stamping used_at. Exactly
// one concurrent caller wins; the rest get a classification error.
func (s *Store) Consume(ctx context.Context, token string) (*Invitation, error) {
	now := time.Now()
	var inv Invitation
	err := s.c.FindOneAndUpdate(ctx,
		bson.M{
			"token":      token,
			"used_at":    nil,
			"revoked":    false,
			"expires_at": bson.M{"$gt": now},
		},
		bson.M{"$set": bson.M{"used_at": now}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&inv)

	if err == mongo.ErrNoDocuments {
		// Lost the race or the token is not pending. Re-fetch to classify.
		_, verr := s.VerifyToken(ctx, token)
		if verr == nil {
			// Pending again is impossible after a failed claim; treat as consumed.
			return nil, ErrConsumed
		}
		return nil, verr
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// Revoke revokes a pending invitation.
// Returns ErrNotFound if no pending invitation matches.
func (s *Store) Revoke(ctx context.Context, teamID, id primitive.ObjectID) error {
	res, err := s.c.UpdateOne(
		ctx,
		bson.M{"_id": id, "team_id": teamID, "used_at": nil, "revoked": false},
		bson.M{"$set": bson.M{"revoked": true}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ListPendingByTeam returns all pending (unused, not expired, not revoked)
// invitations for a team.
func (s *Store) ListPendingByTeam(ctx context.Context, teamID primitive.ObjectID) ([]Invitation, error) {
	filter := bson.M{
		"team_id":    teamID,
		"used_at":    nil,
		"revoked":    false,
		"expires_at": bson.M{"$gt": time.Now()},
	}

	cursor, err := s.c.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var invitations []Invitation
	if err := cursor.All(ctx, &invitations); err != nil {
		return nil, err
	}

	return invitations, nil
}

// PendingForEmail checks whether a pending invitation to the team already
// exists for the email.
func (s *Store) PendingForEmail(ctx context.Context, teamID primitive.ObjectID, email string) (bool, error) {
	count, err := s.c.CountDocuments(ctx, bson.M{
		"team_id":    teamID,
		"email":      email,
		"used_at":    nil,
		"revoked":    false,
		"expires_at": bson.M{"$gt": time.Now()},
	})
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetByID returns an invitation by ID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*Invitation, error) {
	var inv Invitation
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&inv); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &inv, nil
}

// DeleteExpiredBefore removes expired, never-used invitations older than
// cutoff. Used by the background cleanup job.
func (s *Store) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{
		"used_at":    nil,
		"expires_at": bson.M{"$lt": cutoff},
	})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// generateToken generates a random URL-safe token.
func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

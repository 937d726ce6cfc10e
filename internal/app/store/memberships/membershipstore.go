// internal/app/store/memberships/membershipstore.go
package membershipstore

import (
	"context"
	"errors"
	"time"

	"github.com/projectgoat/projectgoat/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	// ErrDuplicateMembership is returned when the user is already a member
	// of the team.
	ErrDuplicateMembership = errors.New("user is already a member of this team")
	// ErrNotFound is returned when no membership exists for the lookup.
	ErrNotFound = errors.New("membership not found")
	errBadRole  = errors.New(`role must be "admin"|"member"|"viewer"`)
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("memberships")}
}

// EnsureIndexes creates indexes for efficient querying. The compound
// (team_id, user_id) index is unique: one membership per user per team.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "team_id", Value: 1}, {Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("idx_membership_team_user"),
		},
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().SetName("idx_membership_user"),
		},
		{
			Keys:    bson.D{{Key: "team_id", Value: 1}, {Key: "role", Value: 1}},
			Options: options.Index().SetName("idx_membership_team_role"),
		},
	}
	_, err := s.c.Indexes().CreateMany(ctx, indexes)
	return err
}

// Create inserts a new membership after validating the role.
func (s *Store) Create(ctx context.Context, m models.Membership) (models.Membership, error) {
	if !models.IsValidRole(m.Role) {
		return models.Membership{}, errBadRole
	}

	m.ID = primitive.NewObjectID()
	now := time.Now()
	if m.JoinedAt.IsZero() {
		m.JoinedAt = now
	}
	m.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, m); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Membership{}, ErrDuplicateMembership
		}
		return models.Membership{}, err
	}
	return m, nil
}

// Get loads the membership for a user in a team.
// Returns ErrNotFound if the user is not a member.
func (s *Store) Get(ctx context.Context, teamID, userID primitive.ObjectID) (*models.Membership, error) {
	var m models.Membership
	err := s.c.FindOne(ctx, bson.M{"team_id": teamID, "user_id": userID}).Decode(&m)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ListByTeam retrieves all memberships of a team, admins first then by
// join time.
func (s *Store) ListByTeam(ctx context.Context, teamID primitive.ObjectID) ([]models.Membership, error) {
	cur, err := s.c.Find(ctx, bson.M{"team_id": teamID},
		options.Find().SetSort(bson.D{{Key: "role", Value: 1}, {Key: "joined_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var memberships []models.Membership
	if err := cur.All(ctx, &memberships); err != nil {
		return nil, err
	}
	return memberships, nil
}

// ListByUser retrieves all memberships held by a user.
func (s *Store) ListByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Membership, error) {
	cur, err := s.c.Find(ctx, bson.M{"user_id": userID},
		options.Find().SetSort(bson.D{{Key: "joined_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var memberships []models.Membership
	if err := cur.All(ctx, &memberships); err != nil {
		return nil, err
	}
	return memberships, nil
}

// UpdateRole changes the role of a member.
// Returns ErrNotFound if the user is not a member of the team.
func (s *Store) UpdateRole(ctx context.Context, teamID, userID primitive.ObjectID, role string) error {
	if !models.IsValidRole(role) {
		return errBadRole
	}
	res, err := s.c.UpdateOne(ctx,
		bson.M{"team_id": teamID, "user_id": userID},
		bson.M{"$set": bson.M{
			"role":       role,
			"updated_at": time.Now(),
		}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Remove deletes the membership of a user in a team.
// Returns ErrNotFound if the user is not a member.
func (s *Store) Remove(ctx context.Context, teamID, userID primitive.ObjectID) error {
	res, err := s.c.DeleteOne(ctx, bson.M{"team_id": teamID, "user_id": userID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// CountAdmins returns the number of admins in a team.
func (s *Store) CountAdmins(ctx context.Context, teamID primitive.ObjectID) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{
		"team_id": teamID,
		"role":    models.RoleAdmin,
	})
}

// CountMembers returns the number of members of a team (all roles).
func (s *Store) CountMembers(ctx context.Context, teamID primitive.ObjectID) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"team_id": teamID})
}

// FirstAdmin returns the longest-standing admin of a team.
// Returns ErrNotFound if the team has no admin.
func (s *Store) FirstAdmin(ctx context.Context, teamID primitive.ObjectID) (*models.Membership, error) {
	var m models.Membership
	err := s.c.FindOne(ctx,
		bson.M{"team_id": teamID, "role": models.RoleAdmin},
		options.FindOne().SetSort(bson.D{{Key: "joined_at", Value: 1}}),
	).Decode(&m)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

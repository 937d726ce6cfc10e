// internal/app/store/users/fetcher.go
package userstore

import (
	"context"

	"github.com/projectgoat/projectgoat/internal/app/system/timeouts"
	"github.com/projectgoat/projectgoat/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Fetcher implements auth.UserFetcher to load fresh user data on each request.
type Fetcher struct {
	users  *mongo.Collection
	logger *zap.Logger
}

// NewFetcher creates a user fetcher that queries the given database.
func NewFetcher(db *mongo.Database, logger *zap.Logger) *Fetcher {
	return &Fetcher{
		users:  db.Collection("users"),
		logger: logger,
	}
}

// FetchUser retrieves a user by ID. Returns mongo.ErrNoDocuments if the user
// does not exist; status checks are the caller's concern.
func (f *Fetcher) FetchUser(ctx context.Context, userID primitive.ObjectID) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, timeouts.Short)
	defer cancel()

	var u models.User
	if err := f.users.FindOne(ctx, bson.M{"_id": userID}).Decode(&u); err != nil {
		return nil, err
	}
	return &u, nil
}

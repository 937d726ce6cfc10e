// internal/app/store/sessions/store.go
package sessions

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Session end reasons
const (
	EndReasonLogout          = "logout"           // User explicitly logged out
	EndReasonExpiredIdle     = "expired_idle"     // No activity within the idle timeout
	EndReasonExpiredAbsolute = "expired_absolute" // Session outlived its absolute lifetime
	EndReasonRevoked         = "revoked"          // Closed server-side (e.g. password change)
)

// Session is a server-side session record. The token is the credential the
// client presents; the CSRF token is bound to the session and must accompany
// every mutating request.
type Session struct {
	ID            primitive.ObjectID  `bson:"_id,omitempty"`
	Token         string              `bson:"token"` // Unique 32-byte random token
	CSRFToken     string              `bson:"csrf_token"`
	UserID        primitive.ObjectID  `bson:"user_id"`
	CurrentTeamID *primitive.ObjectID `bson:"current_team_id,omitempty"`
	IPAddress     string              `bson:"ip_address,omitempty"`
	UserAgent     string              `bson:"user_agent,omitempty"`

	// Lifecycle tracking
	LoginAt      time.Time  `bson:"login_at"`                // When session started
	LogoutAt     *time.Time `bson:"logout_at,omitempty"`     // When session ended (nil if active)
	LastActivity time.Time  `bson:"last_activity"`           // Last authenticated request
	EndReason    string     `bson:"end_reason,omitempty"`    // logout, expired_idle, expired_absolute, revoked
	DurationSecs int64      `bson:"duration_secs,omitempty"` // Computed on close

	// TTL expiration (absolute deadline plus a retention margin)
	ExpiresAt time.Time `bson:"expires_at"`

	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// Store manages session records in MongoDB. Closed sessions are kept until
// the TTL index removes them so recent history stays inspectable.
type Store struct {
	c *mongo.Collection
}

// New creates a new session Store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("sessions")}
}

// EnsureIndexes creates indexes for efficient querying and TTL expiration.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		// Lookup by token (unique)
		{
			Keys:    bson.D{{Key: "token", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("idx_session_token"),
		},
		// Lookup by user
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().SetName("idx_session_user"),
		},
		// TTL index for automatic cleanup
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0).SetName("idx_session_ttl"),
		},
		// Active sessions query (who's online)
		{
			Keys:    bson.D{{Key: "logout_at", Value: 1}, {Key: "last_activity", Value: -1}},
			Options: options.Index().SetName("idx_session_active"),
		},
	}
	_, err := s.c.Indexes().CreateMany(ctx, indexes)
	return err
}

// GenerateToken generates a random URL-safe token. Used for both session
// tokens and session-bound CSRF tokens.
func GenerateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// Create inserts a new session. Token and CSRFToken are generated if empty.
func (s *Store) Create(ctx context.Context, session Session) (Session, error) {
	if session.ID.IsZero() {
		session.ID = primitive.NewObjectID()
	}
	var err error
	if session.Token == "" {
		if session.Token, err = GenerateToken(); err != nil {
			return Session{}, err
		}
	}
	if session.CSRFToken == "" {
		if session.CSRFToken, err = GenerateToken(); err != nil {
			return Session{}, err
		}
	}
	now := time.Now()
	session.CreatedAt = now
	session.UpdatedAt = now
	if session.LoginAt.IsZero() {
		session.LoginAt = now
	}
	if session.LastActivity.IsZero() {
		session.LastActivity = now
	}
	if _, err := s.c.InsertOne(ctx, session); err != nil {
		return Session{}, err
	}
	return session, nil
}

// GetOpenByToken retrieves a session that has not been closed yet.
// Expiry is NOT checked here; callers classify idle/absolute expiry so the
// session can be closed with the right end reason.
func (s *Store) GetOpenByToken(ctx context.Context, token string) (*Session, error) {
	var session Session
	err := s.c.FindOne(ctx, bson.M{
		"token":     token,
		"logout_at": nil,
	}).Decode(&session)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// GetByToken retrieves a session by token regardless of state.
func (s *Store) GetByToken(ctx context.Context, token string) (*Session, error) {
	var session Session
	if err := s.c.FindOne(ctx, bson.M{"token": token}).Decode(&session); err != nil {
		return nil, err
	}
	return &session, nil
}

// Touch updates the last activity time and optionally the IP and user agent.
// Only open sessions are touched.
func (s *Store) Touch(ctx context.Context, token string, ip, userAgent string) error {
	now := time.Now()
	set := bson.M{
		"last_activity": now,
		"updated_at":    now,
	}
	if ip != "" {
		set["ip_address"] = ip
	}
	if userAgent != "" {
		set["user_agent"] = userAgent
	}
	_, err := s.c.UpdateOne(ctx,
		bson.M{"token": token, "logout_at": nil},
		bson.M{"$set": set},
	)
	return err
}

// SetCurrentTeam switches the team context carried by the session.
func (s *Store) SetCurrentTeam(ctx context.Context, token string, teamID primitive.ObjectID) error {
	_, err := s.c.UpdateOne(ctx,
		bson.M{"token": token, "logout_at": nil},
		bson.M{"$set": bson.M{
			"current_team_id": teamID,
			"updated_at":      time.Now(),
		}},
	)
	return err
}

// RotateCSRF replaces the session's CSRF token and returns the new value.
func (s *Store) RotateCSRF(ctx context.Context, token string) (string, error) {
	csrf, err := GenerateToken()
	if err != nil {
		return "", err
	}
	_, err = s.c.UpdateOne(ctx,
		bson.M{"token": token, "logout_at": nil},
		bson.M{"$set": bson.M{
			"csrf_token": csrf,
			"updated_at": time.Now(),
		}},
	)
	if err != nil {
		return "", err
	}
	return csrf, nil
}

// Close closes a session with a reason and computes the duration.
// This marks the session as ended but does not delete it (for audit purposes).
func (s *Store) Close(ctx context.Context, token string, reason string) error {
	var session Session
	err := s.c.FindOne(ctx, bson.M{"token": token}).Decode(&session)
	if err != nil {
		return err
	}

	now := time.Now()
	duration := int64(now.Sub(session.LoginAt).Seconds())

	_, err = s.c.UpdateOne(ctx, bson.M{"token": token}, bson.M{
		"$set": bson.M{
			"logout_at":     now,
			"end_reason":    reason,
			"duration_secs": duration,
			"updated_at":    now,
		},
	})
	return err
}

// CloseByUser closes all open sessions for a user with the given reason.
// Returns the number of sessions closed.
func (s *Store) CloseByUser(ctx context.Context, userID primitive.ObjectID, reason string) (int64, error) {
	now := time.Now()
	res, err := s.c.UpdateMany(ctx,
		bson.M{
			"user_id":   userID,
			"logout_at": nil,
		},
		bson.M{
			"$set": bson.M{
				"logout_at":  now,
				"end_reason": reason,
				"updated_at": now,
			},
		},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// CloseByUserExcept closes all open sessions for a user except the specified
// token. Used on password change so the changing session survives.
func (s *Store) CloseByUserExcept(ctx context.Context, userID primitive.ObjectID, exceptToken string, reason string) (int64, error) {
	now := time.Now()
	res, err := s.c.UpdateMany(ctx,
		bson.M{
			"user_id":   userID,
			"token":     bson.M{"$ne": exceptToken},
			"logout_at": nil,
		},
		bson.M{
			"$set": bson.M{
				"logout_at":  now,
				"end_reason": reason,
				"updated_at": now,
			},
		},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// CloseIdleSessions closes open sessions with no activity inside the idle
// window. Returns the number of sessions closed.
func (s *Store) CloseIdleSessions(ctx context.Context, idle time.Duration) (int64, error) {
	cutoff := time.Now().Add(-idle)
	now := time.Now()

	result, err := s.c.UpdateMany(ctx,
		bson.M{
			"logout_at":     nil,
			"last_activity": bson.M{"$lt": cutoff},
		},
		bson.M{
			"$set": bson.M{
				"logout_at":  now,
				"end_reason": EndReasonExpiredIdle,
				"updated_at": now,
			},
		},
	)
	if err != nil {
		return 0, err
	}
	return result.ModifiedCount, nil
}

// CloseAbsoluteExpired closes open sessions that have outlived the absolute
// lifetime. Returns the number of sessions closed.
func (s *Store) CloseAbsoluteExpired(ctx context.Context, lifetime time.Duration) (int64, error) {
	cutoff := time.Now().Add(-lifetime)
	now := time.Now()

	result, err := s.c.UpdateMany(ctx,
		bson.M{
			"logout_at": nil,
			"login_at":  bson.M{"$lt": cutoff},
		},
		bson.M{
			"$set": bson.M{
				"logout_at":  now,
				"end_reason": EndReasonExpiredAbsolute,
				"updated_at": now,
			},
		},
	)
	if err != nil {
		return 0, err
	}
	return result.ModifiedCount, nil
}

// GetActiveByUser retrieves all open sessions for a user, most recent
// activity first.
func (s *Store) GetActiveByUser(ctx context.Context, userID primitive.ObjectID) ([]Session, error) {
	cursor, err := s.c.Find(ctx, bson.M{
		"user_id":   userID,
		"logout_at": nil,
	}, options.Find().SetSort(bson.D{{Key: "last_activity", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var sessions []Session
	if err := cursor.All(ctx, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

// CountActive counts currently open sessions.
func (s *Store) CountActive(ctx context.Context) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"logout_at": nil})
}

// Delete removes a session by token. Close is preferred; Delete exists for
// administrative cleanup.
func (s *Store) Delete(ctx context.Context, token string) error {
	_, err := s.c.DeleteOne(ctx, bson.M{"token": token})
	return err
}

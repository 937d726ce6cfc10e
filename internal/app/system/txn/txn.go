// Package txn runs multi-document MongoDB writes atomically where the
// deployment allows it.
//
// Registration, invitation acceptance, and member removal each touch several
// collections (users, teams, memberships, sessions, tasks) that must move
// together. Against a replica set those writes run in a real transaction;
// against a standalone server they fall back to sequential execution, which
// keeps local development working at the cost of atomicity.
package txn

import (
	"context"
	"strings"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Func receives the context to use for every database operation inside the
// unit of work. Inside a transaction it is a mongo.SessionContext; in the
// fallback path it is the caller's context unchanged.
type Func func(ctx context.Context) error

// Run executes fn inside a MongoDB transaction when the server supports
// them, and plainly otherwise. The fallback is logged at Warn so a
// production deployment running without a replica set is visible.
func Run(ctx context.Context, db *mongo.Database, log *zap.Logger, fn Func) error {
	session, err := db.Client().StartSession()
	if err != nil {
		if log != nil {
			log.Warn("failed to start session, running without transaction",
				zap.Error(err))
		}
		return fn(ctx)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	if err != nil {
		if IsNotSupported(err) {
			if log != nil {
				log.Warn("transactions not supported, running without transaction",
					zap.Error(err))
			}
			return fn(ctx)
		}
		return err
	}
	return nil
}

// IsNotSupported reports whether err means the server cannot run
// multi-document transactions at all, as opposed to a transaction that
// legitimately failed.
//
// Code 20 is "Transaction numbers are only allowed on a replica set member
// or mongos"; 51 is IllegalOperation; 263 is OperationNotSupportedInTransaction.
func IsNotSupported(err error) bool {
	if err == nil {
		return false
	}

	if cmdErr, ok := err.(mongo.CommandError); ok {
		switch cmdErr.Code {
		case 20, 51, 263:
			return true
		}
	}

	// DocumentDB and older servers report the same condition with varying
	// messages and no useful code. Require two keyword hits so an ordinary
	// write error mentioning "session" is not misread as unsupported.
	errStr := strings.ToLower(err.Error())
	keywords := []string{
		"transaction",
		"replica set",
		"session",
		"not supported",
		"illegal operation",
	}

	matches := 0
	for _, kw := range keywords {
		if strings.Contains(errStr, kw) {
			matches++
		}
	}
	return matches >= 2
}

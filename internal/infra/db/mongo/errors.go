package mongo

import (
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"

	"convo/internal/domain/conversation"
)

const (
	writeConflictCode  = 112
	transientTxnLabel  = "TransientTransactionError"
	unknownCommitLabel = "UnknownTransactionCommitResult"
	maxCommitAttempts  = 3
)

// isTransactionConflict reports whether the server aborted the transaction because a
// concurrent one touched the same documents.
func isTransactionConflict(err error) bool {
	var se mongo.ServerError
	if !errors.As(err, &se) {
		return false
	}
	return se.HasErrorCode(writeConflictCode) ||
		se.HasErrorLabel(transientTxnLabel) ||
		se.HasErrorLabel(unknownCommitLabel)
}

func hasLabel(err error, label string) bool {
	var se mongo.ServerError
	return errors.As(err, &se) && se.HasErrorLabel(label)
}

// mapWriteError turns a transaction conflict into onConflict so the retry middleware
// re-runs the command in a fresh unit. Other errors pass through.
func mapWriteError(err, onConflict error) error {
	if err == nil || !isTransactionConflict(err) {
		return err
	}
	return fmt.Errorf("%w: %v", onConflict, err)
}

// mapCreateError is mapWriteError for inserts guarded by the unique direct key.
func mapCreateError(err error) error {
	if err != nil && mongo.IsDuplicateKeyError(err) {
		return conversation.ErrDirectKeyTaken
	}
	return mapWriteError(err, conversation.ErrDirectKeyTaken)
}

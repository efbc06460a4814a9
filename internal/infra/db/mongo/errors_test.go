package mongo

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/mongo"

	"convo/internal/domain/conversation"
	"convo/internal/domain/shared/fault"
)

func TestMapCreateError(t *testing.T) {
	writeConflict := mongo.CommandError{Code: writeConflictCode, Name: "WriteConflict", Labels: []string{transientTxnLabel}}
	duplicate := mongo.WriteException{WriteErrors: mongo.WriteErrors{{Code: 11000, Message: "E11000 duplicate key"}}}
	plain := errors.New("network down")

	cases := []struct {
		name string
		err  error
		want error
	}{
		{"write conflict", writeConflict, conversation.ErrDirectKeyTaken},
		{"duplicate key", duplicate, conversation.ErrDirectKeyTaken},
		{"other", plain, plain},
		{"nil", nil, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := mapCreateError(tc.err)
			if tc.want == nil {
				assert.NoError(t, got)
				return
			}
			assert.ErrorIs(t, got, tc.want)
		})
	}
	assert.Equal(t, fault.Conflict, fault.KindOf(mapCreateError(writeConflict)))
	assert.Equal(t, fault.Kind(""), fault.KindOf(mapCreateError(plain)))
}

func TestMapWriteError_TransientLabels(t *testing.T) {
	for _, label := range []string{transientTxnLabel, unknownCommitLabel} {
		err := mapWriteError(mongo.CommandError{Code: 251, Labels: []string{label}}, conversation.ErrConcurrentUpdate)
		assert.ErrorIs(t, err, conversation.ErrConcurrentUpdate, label)
		assert.Equal(t, fault.Conflict, fault.KindOf(err), label)
	}

	notFound := mongo.CommandError{Code: 26, Name: "NamespaceNotFound"}
	assert.NotErrorIs(t, mapWriteError(notFound, conversation.ErrConcurrentUpdate), conversation.ErrConcurrentUpdate)
}

func TestCommitWithRetry(t *testing.T) {
	unknown := mongo.CommandError{Code: 50, Labels: []string{unknownCommitLabel}}

	calls := 0
	err := commitWithRetry(func() error {
		calls++
		if calls == 1 {
			return unknown
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 2, calls)

	calls = 0
	err = commitWithRetry(func() error {
		calls++
		return unknown
	})
	assert.Equal(t, maxCommitAttempts, calls)
	assert.Equal(t, fault.Conflict, fault.KindOf(err))

	calls = 0
	err = commitWithRetry(func() error {
		calls++
		return mongo.CommandError{Code: writeConflictCode, Labels: []string{transientTxnLabel}}
	})
	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, conversation.ErrConcurrentUpdate)
}

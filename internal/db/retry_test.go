package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"

	"billflow/desk/internal/utils"
)

// mockMongoDuplicateKeyError creates an error that IsMongoDuplicateKeyError will recognize.
func mockMongoDuplicateKeyError(key string) error {
	mongoErr := mongo.WriteError{
		Code:    11000,
		Message: fmt.Sprintf("E11000 duplicate key error collection: test.invoice_renders index: _id_ dup key: { : \"%s\" }", key),
	}
	return mongo.WriteException{WriteErrors: []mongo.WriteError{mongoErr}}
}

func TestWithRetries_SuccessfulFirstAttempt(t *testing.T) {
	var opCalled int
	err := WithRetries(func() error {
		opCalled++
		return nil
	}, 3, IsMongoDuplicateKeyError)

	assert.NoError(t, err)
	assert.Equal(t, 1, opCalled)
}

func TestWithRetries_FailureNonDuplicateKey(t *testing.T) {
	var opCalled int
	expectedErr := errors.New("some other error")
	err := WithRetries(func() error {
		opCalled++
		return expectedErr
	}, 3, IsMongoDuplicateKeyError)

	assert.ErrorIs(t, err, expectedErr)
	assert.Equal(t, 1, opCalled)
}

func TestWithRetries_ExhaustRetries(t *testing.T) {
	var opCalled int
	colliding := utils.DocRef{0, 0, 0, 0, 1}

	maxRetries := 3
	err := WithRetries(func() error {
		opCalled++
		return mockMongoDuplicateKeyError(colliding.String())
	}, maxRetries, IsMongoDuplicateKeyError)

	require.Error(t, err)
	assert.True(t, IsMongoDuplicateKeyError(err), "got %T: %v", err, err)
	assert.Equal(t, maxRetries+1, opCalled)
}

func TestWithRetries_CollisionResolves(t *testing.T) {
	originalHook := utils.NewDocRefHook
	defer func() { utils.NewDocRefHook = originalHook }()

	ref1 := utils.DocRef{1, 2, 3, 4, 1}
	ref2 := utils.DocRef{1, 2, 3, 4, 2}

	refsToReturn := []utils.DocRef{ref1, ref1, ref2}
	hookCallCount := 0
	utils.NewDocRefHook = func() (utils.DocRef, bool) {
		if hookCallCount < len(refsToReturn) {
			ref := refsToReturn[hookCallCount]
			hookCallCount++
			return ref, true
		}
		return utils.DocRef{}, false
	}

	// ref1 is already taken, so the first two attempts collide
	inserted := map[utils.DocRef]bool{ref1: true}
	var opCalled int

	err := WithRetries(func() error {
		opCalled++
		ref := utils.NewDocRef()
		if inserted[ref] {
			return mockMongoDuplicateKeyError(ref.String())
		}
		inserted[ref] = true
		return nil
	}, 3, IsMongoDuplicateKeyError)

	require.NoError(t, err)
	assert.Equal(t, 3, opCalled)
	assert.Equal(t, 3, hookCallCount)
	assert.True(t, inserted[ref2])
	assert.Len(t, inserted, 2)
}

func TestIsMongoDuplicateKeyError(t *testing.T) {
	assert.True(t, IsMongoDuplicateKeyError(fmt.Errorf("wrapped: %w", mockMongoDuplicateKeyError("k"))))
	assert.True(t, IsMongoDuplicateKeyError(mongo.BulkWriteException{
		WriteErrors: []mongo.BulkWriteError{{WriteError: mongo.WriteError{Code: 11000}}},
	}))
	assert.False(t, IsMongoDuplicateKeyError(mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 121}}}))
	assert.False(t, IsMongoDuplicateKeyError(errors.New("nope")))
}

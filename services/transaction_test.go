package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/hms-audit/repositories"
	"github.com/upb/hms-audit/repositories/repotest"
)

func TestWithTransactionResult_Commit(t *testing.T) {
	txm := &repotest.TransactionManager{}

	result, err := WithTransactionResult(context.Background(), txm, func(ctx context.Context, tx repositories.Transaction) (string, error) {
		assert.NotNil(t, tx)
		return "success", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "success", result)
	commits, rollbacks := txm.Outcomes()
	assert.Equal(t, 1, commits)
	assert.Equal(t, 0, rollbacks)
}

func TestWithTransactionResult_BeginError(t *testing.T) {
	txm := &repotest.TransactionManager{BeginErr: errors.New("failed to begin transaction")}

	called := false
	_, err := WithTransactionResult(context.Background(), txm, func(ctx context.Context, tx repositories.Transaction) (int, error) {
		called = true
		return 1, nil
	})

	assert.Error(t, err)
	assert.False(t, called)
}

func TestWithTransactionResult_Panic(t *testing.T) {
	txm := &repotest.TransactionManager{}

	assert.Panics(t, func() {
		_, _ = WithTransactionResult(context.Background(), txm, func(ctx context.Context, tx repositories.Transaction) (int, error) {
			panic("boom")
		})
	})
	_, rollbacks := txm.Outcomes()
	assert.Equal(t, 1, rollbacks)
}

func TestWithTransactionResult_KeepsPartialResultOnError(t *testing.T) {
	txm := &repotest.TransactionManager{}
	expectedErr := errors.New("operation failed")

	result, err := WithTransactionResult(context.Background(), txm, func(ctx context.Context, tx repositories.Transaction) (int, error) {
		return 3, expectedErr
	})

	assert.Equal(t, expectedErr, err)
	assert.Equal(t, 3, result)
	_, rollbacks := txm.Outcomes()
	assert.Equal(t, 1, rollbacks)
}

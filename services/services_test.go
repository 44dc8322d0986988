package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swapflow-hq/swapflow/api/db"
	"github.com/swapflow-hq/swapflow/api/models"
)

func TestSimpleClientResolver(t *testing.T) {
	// ARRANGE
	client := &MockEthClient{}
	resolver := NewSimpleClientResolver(map[uint64]EthClient{421614: client})

	// ACT / ASSERT
	got, err := resolver.GetClient(421614)
	require.NoError(t, err)
	assert.Equal(t, EthClient(client), got)

	_, err = resolver.GetClient(84532)
	assert.Error(t, err)
}

func TestApplyTransition(t *testing.T) {
	ctx := context.Background()

	t.Run("ForwardTransitionPersists", func(t *testing.T) {
		// ARRANGE
		database := db.NewMemDB()
		intent := &models.Intent{ID: intentI1, Status: models.IntentStatusPending}
		require.NoError(t, database.CreateIntent(ctx, intent))

		// ACT
		applied, err := applyTransition(ctx, database, intent, models.IntentStatusValidated)

		// ASSERT
		require.NoError(t, err)
		assert.True(t, applied)
		assert.Equal(t, models.IntentStatusValidated, intent.Status)

		stored, err := database.GetIntent(ctx, intentI1)
		require.NoError(t, err)
		assert.Equal(t, models.IntentStatusValidated, stored.Status)
	})

	t.Run("BackwardTransitionIsNoop", func(t *testing.T) {
		// ARRANGE
		database := db.NewMemDB()
		intent := &models.Intent{ID: intentI1, Status: models.IntentStatusSettling}
		require.NoError(t, database.CreateIntent(ctx, intent))

		// ACT
		applied, err := applyTransition(ctx, database, intent, models.IntentStatusExecuting)

		// ASSERT
		require.NoError(t, err)
		assert.False(t, applied)

		stored, err := database.GetIntent(ctx, intentI1)
		require.NoError(t, err)
		assert.Equal(t, models.IntentStatusSettling, stored.Status)
	})

	t.Run("MissingIntentErrors", func(t *testing.T) {
		// ARRANGE
		database := db.NewMemDB()
		intent := &models.Intent{ID: intentI1, Status: models.IntentStatusPending}

		// ACT
		applied, err := applyTransition(ctx, database, intent, models.IntentStatusValidating)

		// ASSERT
		require.Error(t, err)
		assert.False(t, applied)
	})
}

package db

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swapflow-hq/swapflow/api/models"
)

const (
	testIntentID = "0x1111111111111111111111111111111111111111111111111111111111111111"
)

func newMockDB(t *testing.T) (*PostgresDB, sqlmock.Sqlmock) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return NewPostgresDBFromConn(conn), mock
}

func intentRows(id string, status models.IntentStatus) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "onchain_id", "source_chain", "destination_chain", "token", "amount",
		"recipient", "sender", "parsed_data", "status", "created_at", "updated_at",
	}).AddRow(id, int64(42), uint64(421614), uint64(84532), "0xT", "1000",
		"0xR", "0xS", []byte(`{}`), string(status), now, now)
}

func TestGetIntent(t *testing.T) {
	ctx := context.Background()

	t.Run("Found", func(t *testing.T) {
		// ARRANGE
		database, mock := newMockDB(t)

		mock.ExpectQuery("SELECT (.+) FROM intents WHERE id").
			WithArgs(testIntentID).
			WillReturnRows(intentRows(testIntentID, models.IntentStatusBridging))

		// ACT
		intent, err := database.GetIntent(ctx, testIntentID)

		// ASSERT
		require.NoError(t, err)
		assert.Equal(t, testIntentID, intent.ID)
		assert.Equal(t, uint64(42), intent.OnchainID)
		assert.Equal(t, models.IntentStatusBridging, intent.Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("NotFound", func(t *testing.T) {
		// ARRANGE
		database, mock := newMockDB(t)

		mock.ExpectQuery("SELECT (.+) FROM intents WHERE id").
			WithArgs(testIntentID).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		// ACT
		_, err := database.GetIntent(ctx, testIntentID)

		// ASSERT
		assert.ErrorIs(t, err, ErrIntentNotFound)
	})
}

func TestGetIntentByOnchainID(t *testing.T) {
	// ARRANGE
	database, mock := newMockDB(t)

	mock.ExpectQuery("SELECT (.+) FROM intents WHERE onchain_id").
		WithArgs(int64(42)).
		WillReturnRows(intentRows(testIntentID, models.IntentStatusExecuting))

	// ACT
	intent, err := database.GetIntentByOnchainID(context.Background(), 42)

	// ASSERT
	require.NoError(t, err)
	assert.Equal(t, testIntentID, intent.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateIntentStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("Updates", func(t *testing.T) {
		// ARRANGE
		database, mock := newMockDB(t)

		mock.ExpectExec("UPDATE intents").
			WithArgs(string(models.IntentStatusSettling), testIntentID).
			WillReturnResult(sqlmock.NewResult(0, 1))

		// ACT
		err := database.UpdateIntentStatus(ctx, testIntentID, models.IntentStatusSettling)

		// ASSERT
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("MissingRow", func(t *testing.T) {
		// ARRANGE
		database, mock := newMockDB(t)

		mock.ExpectExec("UPDATE intents").
			WithArgs(string(models.IntentStatusSettling), testIntentID).
			WillReturnResult(sqlmock.NewResult(0, 0))

		// ACT
		err := database.UpdateIntentStatus(ctx, testIntentID, models.IntentStatusSettling)

		// ASSERT
		assert.ErrorIs(t, err, ErrIntentNotFound)
	})
}

func TestListStaleIntents(t *testing.T) {
	// ARRANGE
	database, mock := newMockDB(t)
	olderThan := time.Now().Add(-5 * time.Minute)

	mock.ExpectQuery("SELECT (.+) FROM intents").
		WithArgs(olderThan, 50).
		WillReturnRows(intentRows(testIntentID, models.IntentStatusBridging))

	// ACT
	stale, err := database.ListStaleIntents(context.Background(), olderThan, 50)

	// ASSERT
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, testIntentID, stale[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLastProcessedBlock(t *testing.T) {
	ctx := context.Background()

	t.Run("Existing", func(t *testing.T) {
		// ARRANGE
		database, mock := newMockDB(t)

		mock.ExpectQuery("SELECT block_number").
			WithArgs(uint64(421614)).
			WillReturnRows(sqlmock.NewRows([]string{"block_number"}).AddRow(uint64(105)))

		// ACT
		block, err := database.GetLastProcessedBlock(ctx, 421614)

		// ASSERT
		require.NoError(t, err)
		assert.Equal(t, uint64(105), block)
	})

	t.Run("MissingRowIsSeeded", func(t *testing.T) {
		// ARRANGE
		database, mock := newMockDB(t)

		mock.ExpectQuery("SELECT block_number").
			WithArgs(uint64(421614)).
			WillReturnRows(sqlmock.NewRows([]string{"block_number"}))
		mock.ExpectExec("INSERT INTO last_processed_blocks").
			WithArgs(uint64(421614), uint64(0)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		// ACT
		block, err := database.GetLastProcessedBlock(ctx, 421614)

		// ASSERT
		require.NoError(t, err)
		assert.Zero(t, block)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Update", func(t *testing.T) {
		// ARRANGE
		database, mock := newMockDB(t)

		mock.ExpectExec("INSERT INTO last_processed_blocks").
			WithArgs(uint64(421614), uint64(105)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		// ACT
		err := database.UpdateLastProcessedBlock(ctx, 421614, 105)

		// ASSERT
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

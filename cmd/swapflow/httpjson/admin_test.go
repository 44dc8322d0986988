package httpjson

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/swapflow-hq/swapflow/api/models"
	"github.com/swapflow-hq/swapflow/api/services"
	"github.com/tidwall/gjson"
)

const messageID = "0x00000000000000000000000000000000000000000000000000000000000000c3"

func TestNotifyIntent(t *testing.T) {
	t.Run("PushesCurrentSnapshot", func(t *testing.T) {
		// ARRANGE
		ts := newTestSuite(t)
		ts.createIntent(intentA, models.IntentStatusExecuting)

		ts.Hub.On("Push", intentA, mock.AnythingOfType("models.StatusSnapshot")).Once()
		ts.Hub.On("SubscriberCount", intentA).Return(3)

		// ACT
		res, err := ts.Client.Post().AddPath("/api/v1/admin/intents/" + intentA + "/notify").Do()

		// ASSERT
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, res.StatusCode)

		body := res.Bytes()
		assert.Equal(t, intentA, gjson.GetBytes(body, "snapshot.intentId").String())
		assert.Equal(t, int64(3), gjson.GetBytes(body, "subscribers").Int())

		ts.Hub.AssertExpectations(t)
	})

	t.Run("UnknownIntent", func(t *testing.T) {
		// ARRANGE
		ts := newTestSuite(t)

		// ACT
		res, err := ts.Client.Post().AddPath("/api/v1/admin/intents/" + unknownIntent + "/notify").Do()

		// ASSERT
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, res.StatusCode)
		ts.Hub.AssertNotCalled(t, "Push", mock.Anything, mock.Anything)
	})
}

func TestPollMessage(t *testing.T) {
	t.Run("TerminalResult", func(t *testing.T) {
		// ARRANGE
		ts := newTestSuite(t)

		ts.Tracker.
			On("PollUntilTerminal", mock.Anything, messageID, intentA, 3, 100*time.Millisecond).
			Return(services.ResultSuccess, nil).
			Once()

		// ACT
		res, err := ts.Client.Post().
			AddPath("/api/v1/admin/messages/" + messageID + "/poll").
			JSON(map[string]any{
				"intent_id":    intentA,
				"max_attempts": 3,
				"interval_ms":  100,
			}).
			Do()

		// ASSERT
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, res.StatusCode)

		body := res.Bytes()
		assert.Equal(t, messageID, gjson.GetBytes(body, "message_id").String())
		assert.Equal(t, string(services.ResultSuccess), gjson.GetBytes(body, "result").String())

		ts.Tracker.AssertExpectations(t)
	})

	t.Run("DefaultsApplied", func(t *testing.T) {
		// ARRANGE
		ts := newTestSuite(t)

		ts.Tracker.
			On("PollUntilTerminal", mock.Anything, messageID, intentA, 5, 2*time.Second).
			Return(services.ResultTimeout, nil).
			Once()

		// ACT
		res, err := ts.Client.Post().
			AddPath("/api/v1/admin/messages/" + messageID + "/poll").
			JSON(map[string]any{"intent_id": intentA}).
			Do()

		// ASSERT
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, res.StatusCode)
		assert.Equal(t, string(services.ResultTimeout), gjson.GetBytes(res.Bytes(), "result").String())

		ts.Tracker.AssertExpectations(t)
	})

	t.Run("MissingIntentID", func(t *testing.T) {
		// ARRANGE
		ts := newTestSuite(t)

		// ACT
		res, err := ts.Client.Post().
			AddPath("/api/v1/admin/messages/" + messageID + "/poll").
			JSON(map[string]any{}).
			Do()

		// ASSERT
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, res.StatusCode)
		ts.Tracker.AssertNotCalled(t, "PollUntilTerminal")
	})

	t.Run("AttemptsOverCap", func(t *testing.T) {
		// ARRANGE
		ts := newTestSuite(t)

		// ACT
		res, err := ts.Client.Post().
			AddPath("/api/v1/admin/messages/" + messageID + "/poll").
			JSON(map[string]any{
				"intent_id":    intentA,
				"max_attempts": 50,
			}).
			Do()

		// ASSERT
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	})

	t.Run("InvalidMessageID", func(t *testing.T) {
		// ARRANGE
		ts := newTestSuite(t)

		// ACT
		res, err := ts.Client.Post().
			AddPath("/api/v1/admin/messages/bogus/poll").
			JSON(map[string]any{"intent_id": intentA}).
			Do()

		// ASSERT
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	})
}

func TestGetStats(t *testing.T) {
	// ARRANGE
	ts := newTestSuite(t)
	require.NoError(t, ts.Database.UpdateLastProcessedBlock(ts.Ctx, 421614, 12345))

	ts.Tracker.On("ActiveCount").Return(2)
	ts.Hub.On("TotalSubscribers").Return(7)
	ts.Hub.On("PushCount").Return(uint64(100))
	ts.Hub.On("FailureCount").Return(uint64(1))

	// ACT
	res, err := ts.Client.Get().AddPath("/api/v1/admin/stats").Do()

	// ASSERT
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode)

	body := res.Bytes()
	assert.Equal(t, int64(2), gjson.GetBytes(body, "active_watchers").Int())
	assert.Equal(t, int64(2), gjson.GetBytes(body, "tracked_messages").Int())
	assert.Equal(t, int64(7), gjson.GetBytes(body, "subscribers").Int())
	assert.Equal(t, int64(100), gjson.GetBytes(body, "pushes").Int())
	assert.Equal(t, int64(1), gjson.GetBytes(body, "push_failures").Int())

	arbitrum := gjson.GetBytes(body, `chains.#(chain_id==421614)`)
	require.True(t, arbitrum.Exists())
	assert.Equal(t, int64(12345), arbitrum.Get("cursor_block").Int())
	assert.Equal(t, "arbitrum_sepolia", arbitrum.Get("name").String())
}

package httpjson

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swapflow-hq/swapflow/api/models"
	"github.com/tidwall/gjson"
)

const (
	intentA = "0x00000000000000000000000000000000000000000000000000000000000000a1"
	intentB = "0x00000000000000000000000000000000000000000000000000000000000000b2"

	unknownIntent = "0x00000000000000000000000000000000000000000000000000000000000000ff"
)

func TestGetIntent(t *testing.T) {
	t.Run("Found", func(t *testing.T) {
		// ARRANGE
		ts := newTestSuite(t)
		ts.createIntent(intentA, models.IntentStatusRouting)

		// ACT
		res, err := ts.Client.Get().AddPath("/api/v1/intents/" + intentA).Do()

		// ASSERT
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, res.StatusCode)

		assertResponseContainsJSON(t, res, "id", intentA)
		assertResponseContainsJSON(t, res, "status", string(models.IntentStatusRouting))
		assert.Equal(t, int64(421614), gjson.GetBytes(res.Bytes(), "source_chain").Int())
	})

	t.Run("NotFound", func(t *testing.T) {
		// ARRANGE
		ts := newTestSuite(t)

		// ACT
		res, err := ts.Client.Get().AddPath("/api/v1/intents/" + unknownIntent).Do()

		// ASSERT
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, res.StatusCode)
	})

	t.Run("InvalidIDFormat", func(t *testing.T) {
		// ARRANGE
		ts := newTestSuite(t)

		// ACT
		res, err := ts.Client.Get().AddPath("/api/v1/intents/not-a-bytes32").Do()

		// ASSERT
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	})
}

func TestGetIntentStatus(t *testing.T) {
	t.Run("SnapshotFields", func(t *testing.T) {
		// ARRANGE
		ts := newTestSuite(t)
		ts.createIntent(intentA, models.IntentStatusBridging)

		// ACT
		res, err := ts.Client.Get().AddPath("/api/v1/intents/" + intentA + "/status").Do()

		// ASSERT
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, res.StatusCode)

		body := res.Bytes()
		assert.Equal(t, intentA, gjson.GetBytes(body, "intentId").String())
		assert.Equal(t, string(models.IntentStatusBridging), gjson.GetBytes(body, "status").String())
		assert.Equal(t, int64(models.IntentStatusBridging.Progress()), gjson.GetBytes(body, "progress").Int())
		assert.NotEmpty(t, gjson.GetBytes(body, "message").String())
	})

	t.Run("TerminalFailure", func(t *testing.T) {
		// ARRANGE
		ts := newTestSuite(t)
		ts.createIntent(intentB, models.IntentStatusFailed)

		// ACT
		res, err := ts.Client.Get().AddPath("/api/v1/intents/" + intentB + "/status").Do()

		// ASSERT
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, res.StatusCode)
		assert.Equal(t, int64(models.FailedProgress), gjson.GetBytes(res.Bytes(), "progress").Int())
	})
}

func TestCreateIntent(t *testing.T) {
	validBody := func() map[string]any {
		return map[string]any{
			"id":                intentA,
			"source_chain":      421614,
			"destination_chain": 84532,
			"token":             "0x1234567890123456789012345678901234567890",
			"amount":            "1000",
			"recipient":         "0x0987654321098765432109876543210987654321",
		}
	}

	t.Run("Created", func(t *testing.T) {
		// ARRANGE
		ts := newTestSuite(t)

		// ACT
		res, err := ts.Client.Post().AddPath("/api/v1/intents").JSON(validBody()).Do()

		// ASSERT
		require.NoError(t, err)
		require.Equal(t, http.StatusCreated, res.StatusCode)
		assertResponseContainsJSON(t, res, "id", intentA)
		assertResponseContainsJSON(t, res, "status", string(models.IntentStatusPending))

		// persisted
		intent, err := ts.Database.GetIntent(ts.Ctx, intentA)
		require.NoError(t, err)
		assert.Equal(t, models.IntentStatusPending, intent.Status)
	})

	t.Run("MissingField", func(t *testing.T) {
		// ARRANGE
		ts := newTestSuite(t)
		body := validBody()
		delete(body, "token")

		// ACT
		res, err := ts.Client.Post().AddPath("/api/v1/intents").JSON(body).Do()

		// ASSERT
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	})

	t.Run("UnconfiguredChain", func(t *testing.T) {
		// ARRANGE
		ts := newTestSuite(t)
		body := validBody()
		body["source_chain"] = 1

		// ACT
		res, err := ts.Client.Post().AddPath("/api/v1/intents").JSON(body).Do()

		// ASSERT
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	})

	t.Run("BadAmount", func(t *testing.T) {
		// ARRANGE
		ts := newTestSuite(t)
		body := validBody()
		body["amount"] = "-5"

		// ACT
		res, err := ts.Client.Post().AddPath("/api/v1/intents").JSON(body).Do()

		// ASSERT
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	})
}

func TestListIntents(t *testing.T) {
	t.Run("Paginated", func(t *testing.T) {
		// ARRANGE
		ts := newTestSuite(t)
		for i := 0; i < 5; i++ {
			id := fmt.Sprintf("0x%063x%d", 0, i)
			ts.createIntent(id, models.IntentStatusPending)
		}

		// ACT
		res, err := ts.Client.Get().
			AddPath("/api/v1/intents").
			SetQuery("page", "1").
			SetQuery("page_size", "2").
			Do()

		// ASSERT
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, res.StatusCode)

		body := res.Bytes()
		assert.Equal(t, int64(5), gjson.GetBytes(body, "total_count").Int())
		assert.Equal(t, int64(2), gjson.GetBytes(body, "page_size").Int())
		assert.Len(t, gjson.GetBytes(body, "data").Array(), 2)
	})

	t.Run("EmptySet", func(t *testing.T) {
		// ARRANGE
		ts := newTestSuite(t)

		// ACT
		res, err := ts.Client.Get().AddPath("/api/v1/intents").Do()

		// ASSERT
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, res.StatusCode)
		assert.Equal(t, int64(0), gjson.GetBytes(res.Bytes(), "total_count").Int())
	})

	t.Run("InvalidPage", func(t *testing.T) {
		// ARRANGE
		ts := newTestSuite(t)

		// ACT
		res, err := ts.Client.Get().
			AddPath("/api/v1/intents").
			SetQuery("page", "0").
			Do()

		// ASSERT
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	})

	t.Run("PageSizeOverCap", func(t *testing.T) {
		// ARRANGE
		ts := newTestSuite(t)

		// ACT
		res, err := ts.Client.Get().
			AddPath("/api/v1/intents").
			SetQuery("page_size", "500").
			Do()

		// ASSERT
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	})
}

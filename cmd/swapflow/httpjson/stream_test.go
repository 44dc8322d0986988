package httpjson

import (
	"net/http"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/swapflow-hq/swapflow/api/fanout"
)

func (ts *testSuite) dialStream(path string) (*websocket.Conn, *http.Response, error) {
	wsURL := strings.Replace(ts.Server.URL, "http://", "ws://", 1) + path

	return websocket.DefaultDialer.Dial(wsURL, nil)
}

func TestStreamIntent(t *testing.T) {
	t.Run("RegistersSubscriber", func(t *testing.T) {
		// ARRANGE
		ts := newTestSuite(t)

		ts.Hub.
			On("Register", mock.Anything, mock.Anything, intentA, "").
			Return(&fanout.Subscriber{ID: "sub-1"}, nil).
			Once()

		// ACT
		conn, _, err := ts.dialStream("/api/v1/intents/" + intentA + "/ws")

		// ASSERT
		require.NoError(t, err)
		defer conn.Close()

		ts.Hub.AssertExpectations(t)
	})

	t.Run("PassesUserID", func(t *testing.T) {
		// ARRANGE
		ts := newTestSuite(t)
		user := "0x1234567890123456789012345678901234567890"

		ts.Hub.
			On("Register", mock.Anything, mock.Anything, intentA, user).
			Return(&fanout.Subscriber{ID: "sub-2"}, nil).
			Once()

		// ACT
		conn, _, err := ts.dialStream("/api/v1/intents/" + intentA + "/ws?user=" + user)

		// ASSERT
		require.NoError(t, err)
		defer conn.Close()

		ts.Hub.AssertExpectations(t)
	})

	t.Run("InvalidIntentIDRejectedBeforeUpgrade", func(t *testing.T) {
		// ARRANGE
		ts := newTestSuite(t)

		// ACT
		_, res, err := ts.dialStream("/api/v1/intents/bogus/ws")

		// ASSERT
		require.Error(t, err)
		require.NotNil(t, res)
		assert.Equal(t, http.StatusBadRequest, res.StatusCode)
		ts.Hub.AssertNotCalled(t, "Register")
	})

	t.Run("InvalidUserRejectedBeforeUpgrade", func(t *testing.T) {
		// ARRANGE
		ts := newTestSuite(t)

		// ACT
		_, res, err := ts.dialStream("/api/v1/intents/" + intentA + "/ws?user=not-an-address")

		// ASSERT
		require.Error(t, err)
		require.NotNil(t, res)
		assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	})

	t.Run("RegistrationErrorClosesWithPolicyViolation", func(t *testing.T) {
		// ARRANGE
		ts := newTestSuite(t)

		ts.Hub.
			On("Register", mock.Anything, mock.Anything, unknownIntent, "").
			Return(nil, errors.New("intent not found")).
			Once()

		// ACT
		conn, _, err := ts.dialStream("/api/v1/intents/" + unknownIntent + "/ws")

		// ASSERT
		// Upgrade succeeds, then the server closes with a policy violation.
		require.NoError(t, err)
		defer conn.Close()

		_, _, readErr := conn.ReadMessage()
		require.Error(t, readErr)

		var closeErr *websocket.CloseError
		require.ErrorAs(t, readErr, &closeErr)
		assert.Equal(t, websocket.ClosePolicyViolation, closeErr.Code)
		assert.Contains(t, closeErr.Text, "intent not found")
	})
}

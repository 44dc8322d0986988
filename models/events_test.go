package models

import (
	"math/big"
	"strings"
	"testing"

	ethabi "github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swapflow-hq/swapflow/api/config"
)

func newTestDecoder(t *testing.T) (*EventDecoder, ethabi.ABI) {
	decoder, err := NewEventDecoder(config.WatcherEventsABI)
	require.NoError(t, err)

	parsed, err := ethabi.JSON(strings.NewReader(config.WatcherEventsABI))
	require.NoError(t, err)

	return decoder, parsed
}

func packData(t *testing.T, parsed ethabi.ABI, event string, values ...interface{}) []byte {
	data, err := parsed.Events[event].Inputs.NonIndexed().Pack(values...)
	require.NoError(t, err)
	return data
}

func TestEventDecoder(t *testing.T) {
	const chainID = uint64(421614)

	decoder, parsed := newTestDecoder(t)

	var (
		onchainID = common.BigToHash(big.NewInt(42))
		refID     = common.HexToHash("0x1111111111111111111111111111111111111111111111111111111111111111")
		messageID = common.HexToHash("0x2222222222222222222222222222222222222222222222222222222222222222")
		token     = common.HexToAddress("0x3333333333333333333333333333333333333333")
	)

	t.Run("IntentValidated", func(t *testing.T) {
		// ARRANGE
		vlog := types.Log{
			Topics:      []common.Hash{decoder.EventID(IntentValidatedEventName), onchainID, refID},
			Data:        packData(t, parsed, IntentValidatedEventName, token, big.NewInt(1000), big.NewInt(84532)),
			BlockNumber: 101,
			Index:       3,
			TxHash:      common.HexToHash("0xaa"),
		}

		// ACT
		event, err := decoder.Decode(chainID, vlog)

		// ASSERT
		require.NoError(t, err)

		validated, ok := event.(*IntentValidatedEvent)
		require.True(t, ok)

		assert.Equal(t, refID.Hex(), validated.RefID)
		assert.Equal(t, token.Hex(), validated.Token)
		assert.Equal(t, uint64(84532), validated.DestinationChain)
		assert.Equal(t, IntentStatusValidated, event.Status())

		meta := event.Meta()
		assert.Equal(t, uint64(42), meta.OnchainID)
		assert.Equal(t, chainID, meta.ChainID)
		assert.Equal(t, uint64(101), meta.BlockNumber)
		assert.Equal(t, uint(3), meta.LogIndex)
	})

	t.Run("BridgeInitiated", func(t *testing.T) {
		// ARRANGE
		vlog := types.Log{
			Topics: []common.Hash{decoder.EventID(BridgeInitiatedEventName), onchainID, messageID},
			Data:   packData(t, parsed, BridgeInitiatedEventName, token, big.NewInt(999), big.NewInt(84532)),
		}

		// ACT
		event, err := decoder.Decode(chainID, vlog)

		// ASSERT
		require.NoError(t, err)

		bridged, ok := event.(*BridgeInitiatedEvent)
		require.True(t, ok)

		assert.Equal(t, messageID.Hex(), bridged.MessageID)
		assert.Equal(t, uint64(84532), bridged.DestinationChain)
		assert.Equal(t, IntentStatusBridging, event.Status())
	})

	t.Run("SettlementFailed", func(t *testing.T) {
		// ARRANGE
		vlog := types.Log{
			Topics: []common.Hash{decoder.EventID(SettlementFailedEventName), onchainID, messageID},
			Data:   packData(t, parsed, SettlementFailedEventName, "bridge reverted"),
		}

		// ACT
		event, err := decoder.Decode(chainID, vlog)

		// ASSERT
		require.NoError(t, err)

		failed, ok := event.(*SettlementFailedEvent)
		require.True(t, ok)

		assert.Equal(t, "bridge reverted", failed.Reason)
		assert.Equal(t, IntentStatusFailed, event.Status())
	})

	t.Run("UnknownSignature", func(t *testing.T) {
		// ARRANGE
		vlog := types.Log{
			Topics: []common.Hash{common.HexToHash("0xdead"), onchainID},
		}

		// ACT
		_, err := decoder.Decode(chainID, vlog)

		// ASSERT
		assert.ErrorIs(t, err, ErrUnknownEvent)
	})

	t.Run("NoTopics", func(t *testing.T) {
		_, err := decoder.Decode(chainID, types.Log{})
		assert.ErrorIs(t, err, ErrUnknownEvent)
	})

	t.Run("MissingIndexedTopic", func(t *testing.T) {
		// ARRANGE
		// BridgeInitiated requires the message id as a third topic.
		vlog := types.Log{
			Topics: []common.Hash{decoder.EventID(BridgeInitiatedEventName), onchainID},
			Data:   packData(t, parsed, BridgeInitiatedEventName, token, big.NewInt(1), big.NewInt(2)),
		}

		// ACT
		_, err := decoder.Decode(chainID, vlog)

		// ASSERT
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrUnknownEvent)
	})

	t.Run("MalformedData", func(t *testing.T) {
		// ARRANGE
		vlog := types.Log{
			Topics: []common.Hash{decoder.EventID(SwapExecutedEventName), onchainID},
			Data:   []byte{0x01, 0x02},
		}

		// ACT
		_, err := decoder.Decode(chainID, vlog)

		// ASSERT
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrUnknownEvent)
	})
}

package services

import (
	"context"
	"math/big"
	"strings"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum"
	ethabi "github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/swapflow-hq/swapflow/api/clients/bridgeapi"
	"github.com/swapflow-hq/swapflow/api/config"
	"github.com/swapflow-hq/swapflow/api/models"
)

// MockEthClient is a mock implementation of the EthClient interface
type MockEthClient struct {
	mock.Mock
}

func (m *MockEthClient) BlockNumber(ctx context.Context) (uint64, error) {
	args := m.Called(ctx)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *MockEthClient) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.Log), args.Error(1)
}

// MockStatusLookup is a mock implementation of the StatusLookup interface
type MockStatusLookup struct {
	mock.Mock
}

func (m *MockStatusLookup) GetStatus(ctx context.Context, messageID string) (*bridgeapi.MessageStatus, error) {
	args := m.Called(ctx, messageID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*bridgeapi.MessageStatus), args.Error(1)
}

// recordingPusher captures every push in order.
type recordingPusher struct {
	mu        sync.Mutex
	snapshots []models.StatusSnapshot
	intents   []string
}

func (p *recordingPusher) Push(intentID string, snapshot models.StatusSnapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.intents = append(p.intents, intentID)
	p.snapshots = append(p.snapshots, snapshot)
}

func (p *recordingPusher) Snapshots() []models.StatusSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]models.StatusSnapshot, len(p.snapshots))
	copy(out, p.snapshots)
	return out
}

// recordingRegistry captures tracked-message registrations.
type recordingRegistry struct {
	mu       sync.Mutex
	messages []models.TrackedMessage
}

func (r *recordingRegistry) Register(msg models.TrackedMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
}

func newTestEventDecoder(t *testing.T) (*models.EventDecoder, ethabi.ABI) {
	decoder, err := models.NewEventDecoder(config.WatcherEventsABI)
	require.NoError(t, err)

	parsed, err := ethabi.JSON(strings.NewReader(config.WatcherEventsABI))
	require.NoError(t, err)

	return decoder, parsed
}

func packEventData(t *testing.T, parsed ethabi.ABI, event string, values ...interface{}) []byte {
	data, err := parsed.Events[event].Inputs.NonIndexed().Pack(values...)
	require.NoError(t, err)
	return data
}

func onchainIDTopic(id uint64) common.Hash {
	return common.BigToHash(new(big.Int).SetUint64(id))
}

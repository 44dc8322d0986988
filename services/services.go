// Package services contains the periodic tasks that drive intent lifecycle
// tracking: the per-chain event watcher, the cross-chain message tracker and
// the stalled-intent fallback poller.
package services

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
	"github.com/swapflow-hq/swapflow/api/db"
	"github.com/swapflow-hq/swapflow/api/models"
)

// Timeout configurations. Every RPC, lookup and persistence call made from a
// periodic task is bounded so a hung dependency stalls only its own cycle.
const (
	DefaultRPCTimeout = 15 * time.Second
	DefaultDBTimeout  = 10 * time.Second
)

// Pusher delivers status snapshots to subscribers; implemented by fanout.Hub.
type Pusher interface {
	Push(intentID string, snapshot models.StatusSnapshot)
}

// EthClient is the subset of ethclient.Client the watcher and tracker use.
type EthClient interface {
	BlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
}

// ClientResolver provides access to chain-specific Ethereum clients
type ClientResolver interface {
	// GetClient returns the client for the specified chain ID
	GetClient(chainID uint64) (EthClient, error)
}

// SimpleClientResolver is a basic implementation of ClientResolver backed by
// a static map of chain IDs to clients.
type SimpleClientResolver struct {
	clients map[uint64]EthClient
}

// NewSimpleClientResolver creates a new resolver with the provided map of chain IDs to clients
func NewSimpleClientResolver(clients map[uint64]EthClient) *SimpleClientResolver {
	return &SimpleClientResolver{
		clients: clients,
	}
}

// GetClient returns the client for the specified chain ID
func (r *SimpleClientResolver) GetClient(chainID uint64) (EthClient, error) {
	client, ok := r.clients[chainID]
	if !ok {
		return nil, errors.Errorf("no client found for chain ID %d", chainID)
	}
	return client, nil
}

// applyTransition persists a forward-only status transition and reports
// whether it was applied. Re-applying an already-applied transition (or any
// backward move) is a no-op, which makes log replay idempotent. The intent
// is mutated in place on success.
func applyTransition(ctx context.Context, database db.Database, intent *models.Intent, to models.IntentStatus) (bool, error) {
	if !models.CanTransition(intent.Status, to) {
		return false, nil
	}

	dbCtx, cancel := context.WithTimeout(ctx, DefaultDBTimeout)
	defer cancel()

	if err := database.UpdateIntentStatus(dbCtx, intent.ID, to); err != nil {
		return false, errors.Wrapf(err, "failed to persist transition %s -> %s", intent.Status, to)
	}

	intent.Status = to
	intent.UpdatedAt = time.Now()
	return true, nil
}

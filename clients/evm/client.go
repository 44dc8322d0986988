package evm

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/swapflow-hq/swapflow/api/config"
	"github.com/swapflow-hq/swapflow/api/logging"
	"golang.org/x/sync/errgroup"
)

const (
	dialRetries   = 3
	verifyTimeout = 5 * time.Second
)

// ResolveClientsFromConfig provisions a map of [chainID] => ethclient.Client based on the config.
func ResolveClientsFromConfig(
	ctx context.Context,
	cfg config.Config,
	logger zerolog.Logger,
) (map[uint64]*ethclient.Client, error) {
	var (
		clients             = make(map[uint64]*ethclient.Client, len(cfg.ChainConfigs))
		mu                  = sync.Mutex{}
		errGroup, ctxShared = errgroup.WithContext(ctx)
	)

	for chainID := range cfg.ChainConfigs {
		chain := *cfg.ChainConfigs[chainID]
		errGroup.Go(func() error {
			client, err := NewFromConfig(ctxShared, chain, logger)
			if err != nil {
				return errors.Wrapf(err, "failed to create client for chain %d", chain.ChainID)
			}

			mu.Lock()
			clients[chain.ChainID] = client
			mu.Unlock()

			return nil
		})
	}

	if err := errGroup.Wait(); err != nil {
		return nil, err
	}

	return clients, nil
}

// NewFromConfig creates a new ethclient.Client from a chain configuration.
// The watcher is poll-based, so WebSocket URLs are rewritten to HTTP; range
// queries over HTTP are more reliable than long-lived subscriptions.
func NewFromConfig(
	ctx context.Context,
	chain config.ChainConfig,
	logger zerolog.Logger,
) (*ethclient.Client, error) {
	logger = logger.With().
		Uint64(logging.FieldChain, chain.ChainID).
		Str(logging.FieldModule, "evm_client").
		Logger()

	httpURL := chain.RPCURL
	httpURL = strings.Replace(httpURL, "wss://", "https://", 1)
	httpURL = strings.Replace(httpURL, "ws://", "http://", 1)

	var (
		client  *ethclient.Client
		lastErr error
	)

	for attempt := 0; attempt < dialRetries; attempt++ {
		client, lastErr = ethclient.DialContext(ctx, httpURL)
		if lastErr == nil {
			break
		}

		if attempt < dialRetries-1 {
			retryDelay := time.Duration(5*(attempt+1)) * time.Second
			logger.Warn().
				Err(lastErr).
				Int("attempt", attempt+1).
				Dur("retry_in", retryDelay).
				Msg("Failed to connect, retrying")

			select {
			case <-time.After(retryDelay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	if lastErr != nil {
		return nil, errors.Wrapf(lastErr, "failed to connect after %d attempts", dialRetries)
	}

	// verify that the client works
	ctx, cancel := context.WithTimeout(ctx, verifyTimeout)
	defer cancel()

	bn, err := client.BlockNumber(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get block number")
	}

	logger.Info().
		Uint64(logging.FieldBlock, bn).
		Msg("Successfully created EVM client")

	return client, nil
}

package services

import (
	"context"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/swapflow-hq/swapflow/api/config"
	"github.com/swapflow-hq/swapflow/api/db"
	"github.com/swapflow-hq/swapflow/api/logging"
	"github.com/swapflow-hq/swapflow/api/models"
)

// MessageRegistry receives bridge messages observed on-chain; implemented by
// the message tracker.
type MessageRegistry interface {
	Register(msg models.TrackedMessage)
}

// ChainWatcher polls one chain's router and settlement contracts for
// lifecycle events and folds them into intent status transitions.
//
// Log-based polling rather than subscriptions: a FilterLogs range query over
// HTTP works against every provider, survives reconnects for free, and the
// block cursor makes restarts resume exactly where they left off.
type ChainWatcher struct {
	chain    *config.ChainConfig
	client   EthClient
	database db.Database
	decoder  *models.EventDecoder
	pusher   Pusher
	registry MessageRegistry
	metrics  *MetricsService
	logger   zerolog.Logger

	addresses []common.Address
	topics    [][]common.Hash

	cursor   atomic.Uint64
	stop     chan struct{}
	stopOnce sync.Once
}

// NewChainWatcher creates a watcher for a single chain.
func NewChainWatcher(
	chain *config.ChainConfig,
	client EthClient,
	database db.Database,
	decoder *models.EventDecoder,
	pusher Pusher,
	registry MessageRegistry,
	metrics *MetricsService,
	logger zerolog.Logger,
) *ChainWatcher {
	addresses := []common.Address{common.HexToAddress(chain.RouterAddress)}
	if chain.SettlementAddress != "" && chain.SettlementAddress != chain.RouterAddress {
		addresses = append(addresses, common.HexToAddress(chain.SettlementAddress))
	}

	topic0 := []common.Hash{
		decoder.EventID(models.IntentValidatedEventName),
		decoder.EventID(models.SwapExecutedEventName),
		decoder.EventID(models.BridgeInitiatedEventName),
		decoder.EventID(models.IntentFailedEventName),
		decoder.EventID(models.SettlementConfirmedEventName),
		decoder.EventID(models.SettlementFailedEventName),
	}

	return &ChainWatcher{
		chain:     chain,
		client:    client,
		database:  database,
		decoder:   decoder,
		pusher:    pusher,
		registry:  registry,
		metrics:   metrics,
		logger:    logger.With().Str(logging.FieldModule, "watcher").Uint64(logging.FieldChain, chain.ChainID).Logger(),
		addresses: addresses,
		topics:    [][]common.Hash{topic0},
		stop:      make(chan struct{}),
	}
}

// Start runs the polling loop until the context is cancelled. A panicking
// cycle is logged and the loop continues on the next tick.
func (w *ChainWatcher) Start(ctx context.Context) {
	w.logger.Info().
		Dur("interval", w.chain.BlockInterval).
		Uint64("max_block_range", w.chain.MaxBlockRange).
		Msg("starting chain watcher")

	ticker := time.NewTicker(w.chain.BlockInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("chain watcher stopped")
			return
		case <-w.stop:
			w.logger.Info().Msg("chain watcher stopped")
			return
		case <-ticker.C:
			w.pollSafely(ctx)
		}
	}
}

// Stop halts the polling loop. Safe to call more than once.
func (w *ChainWatcher) Stop() {
	w.stopOnce.Do(func() { close(w.stop) })
}

// CursorPosition returns the last block this watcher persisted as processed,
// or zero if no cycle has completed yet.
func (w *ChainWatcher) CursorPosition() uint64 {
	return w.cursor.Load()
}

func (w *ChainWatcher) pollSafely(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error().Interface("panic", r).Msg("recovered from panic in poll cycle")
		}
	}()

	if err := w.PollOnce(ctx); err != nil {
		w.logger.Error().Err(err).Msg("poll cycle failed")
	}
}

// PollOnce runs a single polling cycle: it fetches the chain head, queries
// logs over the unprocessed range (capped at MaxBlockRange) and advances the
// persisted cursor only after every log in the range has been handled. An
// error anywhere leaves the cursor untouched so the range is retried.
func (w *ChainWatcher) PollOnce(ctx context.Context) error {
	rpcCtx, cancel := context.WithTimeout(ctx, DefaultRPCTimeout)
	head, err := w.client.BlockNumber(rpcCtx)
	cancel()
	if err != nil {
		return errors.Wrap(err, "failed to get chain head")
	}

	dbCtx, cancel := context.WithTimeout(ctx, DefaultDBTimeout)
	cursor, err := w.database.GetLastProcessedBlock(dbCtx, w.chain.ChainID)
	cancel()
	if err != nil {
		return errors.Wrap(err, "failed to get last processed block")
	}

	// First run on this chain: anchor at the current head instead of
	// backfilling from genesis.
	if cursor == 0 {
		w.logger.Info().Uint64(logging.FieldBlock, head).Msg("initializing block cursor at chain head")
		return w.advanceCursor(ctx, head)
	}

	if head <= cursor {
		return nil
	}

	from := cursor + 1
	to := head
	if to-cursor > w.chain.MaxBlockRange {
		to = cursor + w.chain.MaxBlockRange
	}

	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: w.addresses,
		Topics:    w.topics,
	}

	rpcCtx, cancel = context.WithTimeout(ctx, DefaultRPCTimeout)
	logs, err := w.client.FilterLogs(rpcCtx, query)
	cancel()
	if err != nil {
		return errors.Wrapf(err, "failed to filter logs for blocks %d-%d", from, to)
	}

	for _, vlog := range logs {
		if err := w.processLog(ctx, vlog); err != nil {
			return errors.Wrapf(err, "failed to process log at block %d index %d", vlog.BlockNumber, vlog.Index)
		}
	}

	if len(logs) > 0 {
		w.logger.Info().
			Uint64("from", from).
			Uint64("to", to).
			Int("logs", len(logs)).
			Msg("processed block range")
	}

	return w.advanceCursor(ctx, to)
}

func (w *ChainWatcher) advanceCursor(ctx context.Context, blockNumber uint64) error {
	dbCtx, cancel := context.WithTimeout(ctx, DefaultDBTimeout)
	defer cancel()

	if err := w.database.UpdateLastProcessedBlock(dbCtx, w.chain.ChainID, blockNumber); err != nil {
		return errors.Wrapf(err, "failed to update last processed block to %d", blockNumber)
	}

	w.cursor.Store(blockNumber)
	if w.metrics != nil {
		w.metrics.SetCursor(w.chain.Name, blockNumber)
	}
	return nil
}

// processLog decodes one log and applies its lifecycle transition. Logs with
// unknown signatures or unknown intents are skipped, not errors: the range
// may contain unrelated contract activity, and an intent the intake never
// registered cannot be tracked. Malformed payloads of known signatures are
// logged and skipped too, so one bad log cannot wedge the cursor forever.
func (w *ChainWatcher) processLog(ctx context.Context, vlog types.Log) error {
	event, err := w.decoder.Decode(w.chain.ChainID, vlog)
	if err != nil {
		if errors.Is(err, models.ErrUnknownEvent) {
			return nil
		}
		w.logger.Warn().Err(err).
			Uint64(logging.FieldBlock, vlog.BlockNumber).
			Str("tx", vlog.TxHash.Hex()).
			Msg("skipping malformed event payload")
		return nil
	}

	meta := event.Meta()

	intent, err := w.resolveIntent(ctx, event)
	if err != nil {
		if errors.Is(err, db.ErrIntentNotFound) {
			// Routine on shared contracts: other parties' intents emit the
			// same events.
			w.logger.Debug().
				Str("event", event.Name()).
				Uint64("onchain_id", meta.OnchainID).
				Uint64(logging.FieldBlock, meta.BlockNumber).
				Msg("event references unknown intent, skipping")
			return nil
		}
		return err
	}

	applied, err := applyTransition(ctx, w.database, intent, event.Status())
	if err != nil {
		return err
	}
	if !applied {
		// Replayed or out-of-order log; the stored status already covers it.
		w.logger.Debug().
			Str("event", event.Name()).
			Str(logging.FieldIntent, intent.ID).
			Str(logging.FieldStatus, string(intent.Status)).
			Msg("transition not applicable, skipping")
		return nil
	}

	if w.metrics != nil {
		w.metrics.RecordEvent(w.chain.Name, event.Name())
	}

	opts := []models.SnapshotOption{models.WithTx(meta.TxHash, meta.ChainID, meta.BlockNumber)}

	switch ev := event.(type) {
	case *models.BridgeInitiatedEvent:
		opts = append(opts, models.WithMetadata("message_id", ev.MessageID))
		if w.registry != nil {
			now := time.Now()
			w.registry.Register(models.TrackedMessage{
				MessageID:        ev.MessageID,
				IntentID:         intent.ID,
				SourceChain:      w.chain.ChainID,
				DestinationChain: ev.DestinationChain,
				RegisteredAt:     now,
				LastCheckedAt:    now,
			})
		}
	case *models.IntentFailedEvent:
		opts = append(opts, models.WithMetadata("failure_reason", ev.Reason))
	case *models.SettlementConfirmedEvent:
		opts = append(opts, models.WithMetadata("message_id", ev.MessageID))
	case *models.SettlementFailedEvent:
		opts = append(opts,
			models.WithMetadata("message_id", ev.MessageID),
			models.WithMetadata("failure_reason", ev.Reason),
		)
	}

	w.logger.Info().
		Str("event", event.Name()).
		Str(logging.FieldIntent, intent.ID).
		Str(logging.FieldStatus, string(intent.Status)).
		Uint64(logging.FieldBlock, meta.BlockNumber).
		Msg("intent transitioned")

	if w.pusher != nil {
		w.pusher.Push(intent.ID, models.NewStatusSnapshot(intent, opts...))
	}

	return nil
}

// resolveIntent maps a decoded event back to the persisted intent.
// IntentValidated is the linking event: it carries the intake-assigned ref id
// and binds the on-chain numeric id to it. Every later event is resolved
// through that binding.
func (w *ChainWatcher) resolveIntent(ctx context.Context, event models.ChainEvent) (*models.Intent, error) {
	dbCtx, cancel := context.WithTimeout(ctx, DefaultDBTimeout)
	defer cancel()

	validated, ok := event.(*models.IntentValidatedEvent)
	if !ok {
		return w.database.GetIntentByOnchainID(dbCtx, event.Meta().OnchainID)
	}

	intent, err := w.database.GetIntent(dbCtx, validated.RefID)
	if err != nil {
		return nil, err
	}

	if intent.OnchainID != validated.OnchainID {
		if err := w.database.SetIntentOnchainID(dbCtx, intent.ID, validated.OnchainID); err != nil {
			return nil, errors.Wrap(err, "failed to bind onchain id")
		}
		intent.OnchainID = validated.OnchainID
	}

	return intent, nil
}

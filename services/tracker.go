package services

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/swapflow-hq/swapflow/api/clients/bridgeapi"
	"github.com/swapflow-hq/swapflow/api/config"
	"github.com/swapflow-hq/swapflow/api/db"
	"github.com/swapflow-hq/swapflow/api/logging"
	"github.com/swapflow-hq/swapflow/api/models"
)

// StatusLookup is the external message-status API consumed by the tracker;
// implemented by bridgeapi.Client.
type StatusLookup interface {
	GetStatus(ctx context.Context, messageID string) (*bridgeapi.MessageStatus, error)
}

// TrackerResult is the outcome of a bounded manual poll.
type TrackerResult string

const (
	ResultSuccess TrackerResult = "success"
	ResultFailed  TrackerResult = "failed"
	// ResultTimeout means attempts were exhausted: we stopped watching, we
	// do not know the message failed.
	ResultTimeout TrackerResult = "timeout"
)

// MessageTracker owns the active set of in-flight cross-chain messages.
// Messages enter through Register (called by the chain watchers), are swept
// periodically against the external status API, and leave on a terminal
// result or on TTL expiry. A retired message is never re-admitted, which
// keeps watcher log replays from resurrecting finished transfers.
type MessageTracker struct {
	database db.Database
	lookup   StatusLookup
	resolver ClientResolver
	decoder  *models.EventDecoder
	chains   map[uint64]*config.ChainConfig
	pusher   Pusher
	metrics  *MetricsService
	logger   zerolog.Logger

	interval   time.Duration
	ttl        time.Duration
	scanWindow uint64

	mu      sync.Mutex
	active  map[string]*models.TrackedMessage
	retired map[string]struct{}
}

// NewMessageTracker creates the tracker. The resolver and chain configs feed
// the destination-chain receipt fallback; they may be nil/empty in tests
// that only exercise the API path.
func NewMessageTracker(
	database db.Database,
	lookup StatusLookup,
	resolver ClientResolver,
	decoder *models.EventDecoder,
	chains map[uint64]*config.ChainConfig,
	pusher Pusher,
	metrics *MetricsService,
	interval, ttl time.Duration,
	logger zerolog.Logger,
) *MessageTracker {
	return &MessageTracker{
		database:   database,
		lookup:     lookup,
		resolver:   resolver,
		decoder:    decoder,
		chains:     chains,
		pusher:     pusher,
		metrics:    metrics,
		logger:     logger.With().Str(logging.FieldModule, "tracker").Logger(),
		interval:   interval,
		ttl:        ttl,
		scanWindow: config.DefaultReceiptScanWindow,
		active:     make(map[string]*models.TrackedMessage),
		retired:    make(map[string]struct{}),
	}
}

// Register adds a message to the active set. Registering an already-active
// or already-retired message is a no-op.
func (t *MessageTracker) Register(msg models.TrackedMessage) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.active[msg.MessageID]; ok {
		return
	}
	if _, ok := t.retired[msg.MessageID]; ok {
		return
	}

	now := time.Now()
	if msg.RegisteredAt.IsZero() {
		msg.RegisteredAt = now
	}
	if msg.LastCheckedAt.IsZero() {
		msg.LastCheckedAt = now
	}

	t.active[msg.MessageID] = &msg

	t.logger.Info().
		Str(logging.FieldMessage, msg.MessageID).
		Str(logging.FieldIntent, msg.IntentID).
		Uint64("source_chain", msg.SourceChain).
		Uint64("destination_chain", msg.DestinationChain).
		Msg("tracking cross-chain message")

	if t.metrics != nil {
		t.metrics.SetTrackedMessages(len(t.active))
	}
}

// ActiveCount returns the number of messages currently tracked.
func (t *MessageTracker) ActiveCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.active)
}

// ActiveMessages returns a copy of the active set, for the admin surface.
func (t *MessageTracker) ActiveMessages() []models.TrackedMessage {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]models.TrackedMessage, 0, len(t.active))
	for _, msg := range t.active {
		out = append(out, *msg)
	}
	return out
}

// Start runs the sweep loop until the context is cancelled.
func (t *MessageTracker) Start(ctx context.Context) {
	t.logger.Info().
		Dur("interval", t.interval).
		Dur("ttl", t.ttl).
		Msg("starting message tracker")

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.logger.Info().Msg("message tracker stopped")
			return
		case <-ticker.C:
			t.sweepSafely(ctx)
		}
	}
}

func (t *MessageTracker) sweepSafely(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error().Interface("panic", r).Msg("recovered from panic in tracker sweep")
		}
	}()

	t.SweepOnce(ctx)
}

// SweepOnce checks every active message once. One message's failure never
// affects the rest of the batch. The batch holds copies: the live structs
// are only touched under the lock, so concurrent stats reads stay safe.
func (t *MessageTracker) SweepOnce(ctx context.Context) {
	t.mu.Lock()
	batch := make([]models.TrackedMessage, 0, len(t.active))
	for _, msg := range t.active {
		batch = append(batch, *msg)
	}
	t.mu.Unlock()

	now := time.Now()
	for i := range batch {
		msg := &batch[i]
		if msg.Age(now) > t.ttl {
			t.expire(ctx, msg)
			continue
		}
		t.checkMessage(ctx, msg)
	}
}

// expire retires a message whose TTL window has passed. The intent's
// persisted status is left untouched: expiry means we stopped watching, not
// that the transfer failed.
func (t *MessageTracker) expire(ctx context.Context, msg *models.TrackedMessage) {
	t.logger.Warn().
		Str(logging.FieldMessage, msg.MessageID).
		Str(logging.FieldIntent, msg.IntentID).
		Dur("age", msg.Age(time.Now())).
		Msg("tracked message exceeded TTL, retiring")

	t.retire(msg.MessageID)

	intent, err := t.getIntent(ctx, msg.IntentID)
	if err != nil {
		t.logger.Error().Err(err).Str(logging.FieldIntent, msg.IntentID).Msg("failed to load intent for timeout push")
		return
	}

	if intent.Status.Terminal() {
		return
	}

	t.push(intent.ID, models.NewStatusSnapshot(intent,
		models.WithMetadata("bridge_status", "timeout"),
		models.WithMetadata("message_id", msg.MessageID),
	))
}

// checkMessage runs one status lookup for one message and applies the
// outcome.
func (t *MessageTracker) checkMessage(ctx context.Context, msg *models.TrackedMessage) {
	t.touch(msg.MessageID)

	status, err := t.lookup.GetStatus(ctx, msg.MessageID)
	if err != nil {
		// Inconclusive lookup: try the destination chain directly before
		// giving up on this sweep.
		t.logger.Warn().Err(err).
			Str(logging.FieldMessage, msg.MessageID).
			Msg("status lookup inconclusive, checking destination chain")

		found, receiptErr := t.checkDestinationReceipt(ctx, msg)
		if receiptErr != nil {
			t.logger.Debug().Err(receiptErr).
				Str(logging.FieldMessage, msg.MessageID).
				Msg("destination receipt check failed")
		}
		if found {
			t.settle(ctx, msg, "")
			return
		}

		t.pushInterim(ctx, msg)
		return
	}

	switch status.State {
	case bridgeapi.StateSuccess:
		t.settle(ctx, msg, status.DestTxHash)
	case bridgeapi.StateFailed:
		t.fail(ctx, msg, status.Error)
	default:
		// not_found, pending and in-flight are all "not yet terminal".
		t.pushInterim(ctx, msg)
	}
}

// settle handles a delivered message: the intent moves to settling and final
// completion stays with the settlement event on the destination chain.
func (t *MessageTracker) settle(ctx context.Context, msg *models.TrackedMessage, destTxHash string) {
	t.retire(msg.MessageID)

	intent, err := t.getIntent(ctx, msg.IntentID)
	if err != nil {
		t.logger.Error().Err(err).Str(logging.FieldIntent, msg.IntentID).Msg("failed to load intent for settle")
		return
	}

	applied, err := applyTransition(ctx, t.database, intent, models.IntentStatusSettling)
	if err != nil {
		t.logger.Error().Err(err).Str(logging.FieldIntent, intent.ID).Msg("failed to persist settling transition")
		return
	}

	t.logger.Info().
		Str(logging.FieldMessage, msg.MessageID).
		Str(logging.FieldIntent, intent.ID).
		Str("dest_tx", destTxHash).
		Msg("cross-chain message delivered")

	if !applied {
		return
	}

	opts := []models.SnapshotOption{
		models.WithStep(models.StepBridgeCompleted),
		models.WithMetadata("message_id", msg.MessageID),
	}
	if destTxHash != "" {
		opts = append(opts, models.WithTx(destTxHash, msg.DestinationChain, 0))
	}

	t.push(intent.ID, models.NewStatusSnapshot(intent, opts...))
}

func (t *MessageTracker) fail(ctx context.Context, msg *models.TrackedMessage, reason string) {
	t.retire(msg.MessageID)

	intent, err := t.getIntent(ctx, msg.IntentID)
	if err != nil {
		t.logger.Error().Err(err).Str(logging.FieldIntent, msg.IntentID).Msg("failed to load intent for failure")
		return
	}

	applied, err := applyTransition(ctx, t.database, intent, models.IntentStatusFailed)
	if err != nil {
		t.logger.Error().Err(err).Str(logging.FieldIntent, intent.ID).Msg("failed to persist failed transition")
		return
	}

	t.logger.Warn().
		Str(logging.FieldMessage, msg.MessageID).
		Str(logging.FieldIntent, intent.ID).
		Str("reason", reason).
		Msg("cross-chain message failed")

	if !applied {
		return
	}

	opts := []models.SnapshotOption{models.WithMetadata("message_id", msg.MessageID)}
	if reason != "" {
		opts = append(opts, models.WithMetadata("failure_reason", reason))
	}

	t.push(intent.ID, models.NewStatusSnapshot(intent, opts...))
}

// pushInterim re-emits the intent's current status without any transition,
// so subscribers see the transfer is still being watched.
func (t *MessageTracker) pushInterim(ctx context.Context, msg *models.TrackedMessage) {
	intent, err := t.getIntent(ctx, msg.IntentID)
	if err != nil {
		if errors.Is(err, db.ErrIntentNotFound) {
			// Intent disappeared underneath the message; stop watching.
			t.logger.Warn().Str(logging.FieldIntent, msg.IntentID).Msg("tracked message references missing intent, retiring")
			t.retire(msg.MessageID)
			return
		}
		t.logger.Error().Err(err).Str(logging.FieldIntent, msg.IntentID).Msg("failed to load intent for interim push")
		return
	}

	if intent.Status.Terminal() {
		// The lifecycle finished elsewhere (e.g. a settlement event on the
		// destination chain) while the transfer was still being watched.
		// Terminal means no further snapshots, so retire quietly.
		t.logger.Debug().
			Str(logging.FieldIntent, intent.ID).
			Str(logging.FieldStatus, string(intent.Status)).
			Msg("intent already terminal, retiring tracked message")
		t.retire(msg.MessageID)
		return
	}

	t.push(intent.ID, models.NewStatusSnapshot(intent,
		models.WithMetadata("bridge_status", "in_flight"),
		models.WithMetadata("message_id", msg.MessageID),
	))
}

// checkDestinationReceipt scans the tail of the destination chain for a
// SettlementConfirmed log carrying this message id. The message id is the
// second indexed topic, so the scan is a narrow topic-filtered range query.
func (t *MessageTracker) checkDestinationReceipt(ctx context.Context, msg *models.TrackedMessage) (bool, error) {
	if t.resolver == nil || t.decoder == nil {
		return false, nil
	}

	chain, ok := t.chains[msg.DestinationChain]
	if !ok || chain.SettlementAddress == "" {
		return false, nil
	}

	client, err := t.resolver.GetClient(msg.DestinationChain)
	if err != nil {
		return false, err
	}

	rpcCtx, cancel := context.WithTimeout(ctx, DefaultRPCTimeout)
	defer cancel()

	head, err := client.BlockNumber(rpcCtx)
	if err != nil {
		return false, errors.Wrap(err, "failed to get destination chain head")
	}

	from := uint64(0)
	if head > t.scanWindow {
		from = head - t.scanWindow
	}

	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(head),
		Addresses: []common.Address{common.HexToAddress(chain.SettlementAddress)},
		Topics: [][]common.Hash{
			{t.decoder.EventID(models.SettlementConfirmedEventName)},
			nil,
			{common.HexToHash(msg.MessageID)},
		},
	}

	logs, err := client.FilterLogs(rpcCtx, query)
	if err != nil {
		return false, errors.Wrap(err, "failed to scan destination chain for receipt")
	}

	return len(logs) > 0, nil
}

// PollUntilTerminal repeatedly checks one message until it reaches a
// terminal state, attempts are exhausted, or the context is cancelled. Used
// by the administrative trigger, not by the steady-state sweep.
func (t *MessageTracker) PollUntilTerminal(ctx context.Context, messageID, intentID string, maxAttempts int, interval time.Duration) (TrackerResult, error) {
	msg := &models.TrackedMessage{
		MessageID:    messageID,
		IntentID:     intentID,
		RegisteredAt: time.Now(),
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ResultTimeout, ctx.Err()
			case <-time.After(interval):
			}
		}

		status, err := t.lookup.GetStatus(ctx, messageID)
		if err != nil {
			t.logger.Warn().Err(err).
				Str(logging.FieldMessage, messageID).
				Int("attempt", attempt+1).
				Msg("manual poll attempt inconclusive")
			continue
		}

		switch status.State {
		case bridgeapi.StateSuccess:
			t.settle(ctx, msg, status.DestTxHash)
			return ResultSuccess, nil
		case bridgeapi.StateFailed:
			t.fail(ctx, msg, status.Error)
			return ResultFailed, nil
		}
	}

	return ResultTimeout, nil
}

// touch records a check time on the live struct. The sweep works on copies,
// so this is the only write that reaches the shared entry.
func (t *MessageTracker) touch(messageID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if msg, ok := t.active[messageID]; ok {
		msg.LastCheckedAt = time.Now()
	}
}

func (t *MessageTracker) retire(messageID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.active, messageID)
	t.retired[messageID] = struct{}{}

	if t.metrics != nil {
		t.metrics.SetTrackedMessages(len(t.active))
	}
}

func (t *MessageTracker) getIntent(ctx context.Context, intentID string) (*models.Intent, error) {
	dbCtx, cancel := context.WithTimeout(ctx, DefaultDBTimeout)
	defer cancel()
	return t.database.GetIntent(dbCtx, intentID)
}

func (t *MessageTracker) push(intentID string, snapshot models.StatusSnapshot) {
	if t.pusher != nil {
		t.pusher.Push(intentID, snapshot)
	}
}

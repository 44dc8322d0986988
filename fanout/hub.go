// Package fanout maintains the registry of realtime subscribers and pushes
// status snapshots to exactly the subscribers bound to an intent. It is the
// single choke point through which every status change reaches clients.
package fanout

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/swapflow-hq/swapflow/api/db"
	"github.com/swapflow-hq/swapflow/api/logging"
	"github.com/swapflow-hq/swapflow/api/models"
)

const rebindTimeout = 5 * time.Second

var (
	// ErrIntentNotFound rejects subscriptions to unknown intents.
	ErrIntentNotFound = errors.New("intent not found")

	// ErrSubscriberLimit rejects subscriptions past the configured limits.
	ErrSubscriberLimit = errors.New("subscriber limit reached")

	// ErrHubClosed rejects subscriptions during shutdown.
	ErrHubClosed = errors.New("hub is shutting down")
)

// Metrics receives the hub's gauge and counter updates; implemented by
// services.MetricsService. A nil Metrics disables reporting.
type Metrics interface {
	SetSubscribers(count int)
	RecordPush()
	RecordPushFailure()
}

// Hub owns the subscriber index. All index mutation goes through Register,
// Rebind and Unregister; pushes are serialized under the same lock so that
// per-intent delivery order matches the order transitions were applied.
type Hub struct {
	mu       sync.Mutex
	byIntent map[string]map[*Subscriber]struct{}
	total    int
	closed   bool

	database     db.Database
	maxPerIntent int
	maxTotal     int
	metrics      Metrics

	pushes   uint64
	failures uint64

	logger zerolog.Logger
}

// NewHub creates a hub backed by the persistence collaborator, which is used
// for intent-existence checks and initial snapshots.
func NewHub(database db.Database, maxPerIntent, maxTotal int, metrics Metrics, logger zerolog.Logger) *Hub {
	return &Hub{
		byIntent:     make(map[string]map[*Subscriber]struct{}),
		database:     database,
		maxPerIntent: maxPerIntent,
		maxTotal:     maxTotal,
		metrics:      metrics,
		logger:       logger.With().Str(logging.FieldModule, "fanout").Logger(),
	}
}

// setSubscriberGauge must be called with h.mu held.
func (h *Hub) setSubscriberGauge() {
	if h.metrics != nil {
		h.metrics.SetSubscribers(h.total)
	}
}

// Register binds a freshly upgraded connection to an intent. On success the
// client immediately receives a connected frame followed by the current
// status snapshot, so it never has to wait for the next transition.
func (h *Hub) Register(ctx context.Context, conn *websocket.Conn, intentID, userID string) (*Subscriber, error) {
	intent, err := h.database.GetIntent(ctx, intentID)
	if err != nil {
		return nil, errors.Wrapf(ErrIntentNotFound, "id %s", intentID)
	}

	sub := &Subscriber{
		ID:          uuid.NewString(),
		UserID:      userID,
		ConnectedAt: time.Now(),
		conn:        conn,
		intentID:    intentID,
		send:        make(chan Frame, sendBuffer),
		done:        make(chan struct{}),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrHubClosed
	}
	if h.total >= h.maxTotal {
		h.mu.Unlock()
		return nil, errors.Wrap(ErrSubscriberLimit, "process-wide limit")
	}
	if len(h.byIntent[intentID]) >= h.maxPerIntent {
		h.mu.Unlock()
		return nil, errors.Wrapf(ErrSubscriberLimit, "intent %s", intentID)
	}

	if h.byIntent[intentID] == nil {
		h.byIntent[intentID] = make(map[*Subscriber]struct{})
	}
	h.byIntent[intentID][sub] = struct{}{}
	h.total++
	h.setSubscriberGauge()

	// Enqueue the greeting and the initial snapshot while still holding the
	// lock so no concurrent Push can slip in between them.
	sub.enqueue(Frame{
		Type: FrameConnected,
		Data: map[string]interface{}{
			"message":       "Subscribed to intent updates",
			"authenticated": sub.Authenticated(),
		},
		Timestamp: time.Now(),
	})
	sub.enqueue(Frame{
		Type:      FrameStatus,
		Data:      models.NewStatusSnapshot(intent),
		Timestamp: time.Now(),
	})
	h.mu.Unlock()

	go sub.writePump(h)
	go sub.readPump(h)

	h.logger.Debug().
		Str(logging.FieldSubscriber, sub.ID).
		Str(logging.FieldIntent, intentID).
		Bool("authenticated", sub.Authenticated()).
		Msg("Subscriber registered")

	return sub, nil
}

// Rebind switches which intent a long-lived connection is watching. The new
// intent is validated before any index is touched.
func (h *Hub) Rebind(ctx context.Context, sub *Subscriber, newIntentID string) error {
	intent, err := h.database.GetIntent(ctx, newIntentID)
	if err != nil {
		return errors.Wrapf(ErrIntentNotFound, "id %s", newIntentID)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrHubClosed
	}

	if _, ok := h.byIntent[sub.intentID][sub]; !ok {
		// Already unregistered; nothing to rebind.
		return ErrHubClosed
	}

	if sub.intentID != newIntentID && len(h.byIntent[newIntentID]) >= h.maxPerIntent {
		return errors.Wrapf(ErrSubscriberLimit, "intent %s", newIntentID)
	}

	h.removeLocked(sub)
	if h.byIntent[newIntentID] == nil {
		h.byIntent[newIntentID] = make(map[*Subscriber]struct{})
	}
	h.byIntent[newIntentID][sub] = struct{}{}
	h.total++
	sub.intentID = newIntentID

	sub.enqueue(Frame{
		Type:      FrameStatus,
		Data:      models.NewStatusSnapshot(intent),
		Timestamp: time.Now(),
	})

	h.logger.Debug().
		Str(logging.FieldSubscriber, sub.ID).
		Str(logging.FieldIntent, newIntentID).
		Msg("Subscriber rebound")

	return nil
}

// Push delivers a snapshot to every subscriber currently bound to the
// intent. Pushes for one intent are serialized, so each subscriber's
// outbound buffer sees snapshots in transition order. A subscriber whose
// buffer is full or whose socket is gone is dropped without affecting the
// rest.
func (h *Hub) Push(intentID string, snapshot models.StatusSnapshot) {
	frame := Frame{
		Type:      FrameStatus,
		Data:      snapshot,
		Timestamp: time.Now(),
	}

	var dropped []*Subscriber

	h.mu.Lock()
	for sub := range h.byIntent[intentID] {
		if !sub.enqueue(frame) {
			dropped = append(dropped, sub)
			continue
		}
		h.pushes++
		if h.metrics != nil {
			h.metrics.RecordPush()
		}
	}
	h.mu.Unlock()

	if len(dropped) > 0 {
		h.mu.Lock()
		h.failures += uint64(len(dropped))
		if h.metrics != nil {
			for range dropped {
				h.metrics.RecordPushFailure()
			}
		}
		h.mu.Unlock()
	}

	for _, sub := range dropped {
		h.logger.Warn().
			Str(logging.FieldSubscriber, sub.ID).
			Str(logging.FieldIntent, intentID).
			Msg("Dropping slow or dead subscriber")
		h.Unregister(sub)
	}
}

// Unregister removes a subscriber from all indexes and closes its socket.
// Idempotent; called from both pumps and safe to call multiple times.
func (h *Hub) Unregister(sub *Subscriber) {
	h.mu.Lock()
	intentID := sub.IntentID()
	_, registered := h.byIntent[intentID][sub]
	if registered {
		h.removeLocked(sub)
		h.setSubscriberGauge()
	}
	h.mu.Unlock()

	sub.close()

	if registered {
		h.logger.Debug().
			Str(logging.FieldSubscriber, sub.ID).
			Str(logging.FieldIntent, intentID).
			Msg("Subscriber unregistered")
	}
}

// removeLocked must be called with h.mu held.
func (h *Hub) removeLocked(sub *Subscriber) {
	set := h.byIntent[sub.intentID]
	if _, ok := set[sub]; !ok {
		return
	}

	delete(set, sub)
	if len(set) == 0 {
		delete(h.byIntent, sub.intentID)
	}
	h.total--
}

// SubscriberCount returns the number of subscribers bound to an intent.
func (h *Hub) SubscriberCount(intentID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.byIntent[intentID])
}

// TotalSubscribers returns the process-wide subscriber count.
func (h *Hub) TotalSubscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.total
}

// PushCount returns the number of successfully enqueued pushes.
func (h *Hub) PushCount() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pushes
}

// FailureCount returns the number of deliveries dropped due to slow or dead
// connections.
func (h *Hub) FailureCount() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.failures
}

// Close rejects new registrations and closes every subscriber connection.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true

	var subs []*Subscriber
	for _, set := range h.byIntent {
		for sub := range set {
			subs = append(subs, sub)
		}
	}
	h.byIntent = make(map[string]map[*Subscriber]struct{})
	h.total = 0
	h.setSubscriberGauge()
	h.mu.Unlock()

	for _, sub := range subs {
		sub.close()
	}

	h.logger.Info().Int("subscribers", len(subs)).Msg("Fanout hub closed")
}

package models

import (
	"encoding/json"
	"time"
)

// Intent represents a cross-chain swap intent tracked through its lifecycle.
//
// Statuses are tracked in the API only; the contracts emit discrete events
// (validation, swap execution, bridge initiation, settlement) and the API
// folds them into the full lifecycle.
type Intent struct {
	ID               string          `json:"id"`
	OnchainID        uint64          `json:"onchain_id,omitempty"`
	SourceChain      uint64          `json:"source_chain"`
	DestinationChain uint64          `json:"destination_chain"`
	Token            string          `json:"token"`
	Amount           string          `json:"amount"`
	Recipient        string          `json:"recipient"`
	Sender           string          `json:"sender,omitempty"`
	ParsedData       json.RawMessage `json:"parsed_data,omitempty"`
	Status           IntentStatus    `json:"status"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// TrackedMessage is one outstanding cross-chain transfer leg, registered by
// the chain watcher when it observes a BridgeInitiated event and owned by the
// message tracker until it reaches a terminal state or exceeds its TTL.
type TrackedMessage struct {
	MessageID        string    `json:"message_id"`
	IntentID         string    `json:"intent_id"`
	SourceChain      uint64    `json:"source_chain"`
	DestinationChain uint64    `json:"destination_chain"`
	RegisteredAt     time.Time `json:"registered_at"`
	LastCheckedAt    time.Time `json:"last_checked_at"`
}

// Age returns how long the message has been tracked.
func (m *TrackedMessage) Age(now time.Time) time.Duration {
	return now.Sub(m.RegisteredAt)
}

// StatusSnapshot is the derived, point-in-time representation of an intent's
// progress pushed to subscribers. It is always computed fresh from the
// persisted intent plus any in-flight context; never stored.
type StatusSnapshot struct {
	IntentID                  string            `json:"intentId"`
	Status                    IntentStatus      `json:"status"`
	Step                      string            `json:"step"`
	Progress                  int               `json:"progress"`
	Message                   string            `json:"message"`
	TxHash                    string            `json:"txHash,omitempty"`
	ChainID                   uint64            `json:"chainId,omitempty"`
	BlockNumber               uint64            `json:"blockNumber,omitempty"`
	EstimatedSecondsRemaining int               `json:"estimatedSecondsRemaining,omitempty"`
	Metadata                  map[string]string `json:"metadata,omitempty"`
}

// SnapshotOption mutates a freshly computed snapshot before it is pushed.
type SnapshotOption func(*StatusSnapshot)

// WithTx attaches the triggering transaction hash and block number.
func WithTx(txHash string, chainID, blockNumber uint64) SnapshotOption {
	return func(s *StatusSnapshot) {
		s.TxHash = txHash
		s.ChainID = chainID
		s.BlockNumber = blockNumber
	}
}

// WithStep overrides the default step name for the intent's status.
func WithStep(step string) SnapshotOption {
	return func(s *StatusSnapshot) {
		s.Step = step
	}
}

// WithMessage overrides the default human-readable message.
func WithMessage(message string) SnapshotOption {
	return func(s *StatusSnapshot) {
		s.Message = message
	}
}

// WithMetadata attaches one metadata key/value pair.
func WithMetadata(key, value string) SnapshotOption {
	return func(s *StatusSnapshot) {
		if s.Metadata == nil {
			s.Metadata = make(map[string]string)
		}
		s.Metadata[key] = value
	}
}

// NewStatusSnapshot computes the snapshot for an intent's current status.
func NewStatusSnapshot(intent *Intent, opts ...SnapshotOption) StatusSnapshot {
	snapshot := StatusSnapshot{
		IntentID:                  intent.ID,
		Status:                    intent.Status,
		Step:                      intent.Status.Step(),
		Progress:                  intent.Status.Progress(),
		Message:                   intent.Status.HumanMessage(),
		EstimatedSecondsRemaining: intent.Status.EstimatedSecondsRemaining(),
	}

	for _, opt := range opts {
		opt(&snapshot)
	}

	return snapshot
}

package models

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
)

// Event names as emitted by the router and settlement verifier contracts.
const (
	IntentValidatedEventName     = "IntentValidated"
	SwapExecutedEventName        = "SwapExecuted"
	BridgeInitiatedEventName     = "BridgeInitiated"
	IntentFailedEventName        = "IntentFailed"
	SettlementConfirmedEventName = "SettlementConfirmed"
	SettlementFailedEventName    = "SettlementFailed"
)

// ErrUnknownEvent is returned by Decode for logs whose topic0 does not match
// any known event signature. Expected for unrelated contract activity.
var ErrUnknownEvent = errors.New("unknown event signature")

// EventMeta carries the fields shared by every decoded event.
type EventMeta struct {
	// OnchainID is the numeric intent id assigned by on-chain validation.
	OnchainID   uint64
	ChainID     uint64
	BlockNumber uint64
	LogIndex    uint
	TxHash      string
}

// ChainEvent is one decoded contract log from the closed set of known
// lifecycle events. Decode produces exactly one variant per log.
type ChainEvent interface {
	Name() string
	// Status is the intent status the event maps to.
	Status() IntentStatus
	Meta() EventMeta
}

// IntentValidatedEvent is the only self-describing event: it links the
// intake-assigned RefID to the on-chain numeric intent id.
type IntentValidatedEvent struct {
	EventMeta
	RefID            string
	Token            string
	Amount           *big.Int
	DestinationChain uint64
}

func (e *IntentValidatedEvent) Name() string         { return IntentValidatedEventName }
func (e *IntentValidatedEvent) Status() IntentStatus { return IntentStatusValidated }
func (e *IntentValidatedEvent) Meta() EventMeta      { return e.EventMeta }

type SwapExecutedEvent struct {
	EventMeta
	TokenIn   string
	TokenOut  string
	AmountIn  *big.Int
	AmountOut *big.Int
}

func (e *SwapExecutedEvent) Name() string         { return SwapExecutedEventName }
func (e *SwapExecutedEvent) Status() IntentStatus { return IntentStatusExecuting }
func (e *SwapExecutedEvent) Meta() EventMeta      { return e.EventMeta }

type BridgeInitiatedEvent struct {
	EventMeta
	MessageID        string
	Token            string
	Amount           *big.Int
	DestinationChain uint64
}

func (e *BridgeInitiatedEvent) Name() string         { return BridgeInitiatedEventName }
func (e *BridgeInitiatedEvent) Status() IntentStatus { return IntentStatusBridging }
func (e *BridgeInitiatedEvent) Meta() EventMeta      { return e.EventMeta }

type IntentFailedEvent struct {
	EventMeta
	Reason string
}

func (e *IntentFailedEvent) Name() string         { return IntentFailedEventName }
func (e *IntentFailedEvent) Status() IntentStatus { return IntentStatusFailed }
func (e *IntentFailedEvent) Meta() EventMeta      { return e.EventMeta }

type SettlementConfirmedEvent struct {
	EventMeta
	MessageID string
	Timestamp *big.Int
}

func (e *SettlementConfirmedEvent) Name() string         { return SettlementConfirmedEventName }
func (e *SettlementConfirmedEvent) Status() IntentStatus { return IntentStatusCompleted }
func (e *SettlementConfirmedEvent) Meta() EventMeta      { return e.EventMeta }

type SettlementFailedEvent struct {
	EventMeta
	MessageID string
	Reason    string
}

func (e *SettlementFailedEvent) Name() string         { return SettlementFailedEventName }
func (e *SettlementFailedEvent) Status() IntentStatus { return IntentStatusFailed }
func (e *SettlementFailedEvent) Meta() EventMeta      { return e.EventMeta }

// EventDecoder turns raw contract logs into tagged ChainEvent variants.
// Signatures are mutually exclusive, so the first topic0 match wins.
type EventDecoder struct {
	abi     abi.ABI
	eventID map[common.Hash]string
}

// NewEventDecoder parses the event ABI and indexes event signatures.
func NewEventDecoder(eventsABI string) (*EventDecoder, error) {
	parsed, err := abi.JSON(strings.NewReader(eventsABI))
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse events ABI")
	}

	byID := make(map[common.Hash]string, len(parsed.Events))
	for name, event := range parsed.Events {
		byID[event.ID] = name
	}

	return &EventDecoder{abi: parsed, eventID: byID}, nil
}

// EventID returns the topic0 hash for a known event name.
func (d *EventDecoder) EventID(name string) common.Hash {
	return d.abi.Events[name].ID
}

// Decode decodes a single log. ErrUnknownEvent means the log is not one of
// the known signatures; any other error means a recognized signature with a
// malformed payload.
func (d *EventDecoder) Decode(chainID uint64, vlog types.Log) (ChainEvent, error) {
	if len(vlog.Topics) == 0 {
		return nil, ErrUnknownEvent
	}

	name, ok := d.eventID[vlog.Topics[0]]
	if !ok {
		return nil, ErrUnknownEvent
	}

	if len(vlog.Topics) < 2 {
		return nil, errors.Errorf("%s: expected at least 2 topics, got %d", name, len(vlog.Topics))
	}

	meta := EventMeta{
		OnchainID:   new(big.Int).SetBytes(vlog.Topics[1].Bytes()).Uint64(),
		ChainID:     chainID,
		BlockNumber: vlog.BlockNumber,
		LogIndex:    vlog.Index,
		TxHash:      vlog.TxHash.Hex(),
	}

	unpacked, err := d.abi.Unpack(name, vlog.Data)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to unpack %s data", name)
	}

	switch name {
	case IntentValidatedEventName:
		return decodeIntentValidated(meta, vlog, unpacked)
	case SwapExecutedEventName:
		return decodeSwapExecuted(meta, unpacked)
	case BridgeInitiatedEventName:
		return decodeBridgeInitiated(meta, vlog, unpacked)
	case IntentFailedEventName:
		return decodeIntentFailed(meta, unpacked)
	case SettlementConfirmedEventName:
		return decodeSettlementConfirmed(meta, vlog, unpacked)
	case SettlementFailedEventName:
		return decodeSettlementFailed(meta, vlog, unpacked)
	}

	return nil, ErrUnknownEvent
}

func secondIndexedTopic(name string, vlog types.Log) (common.Hash, error) {
	if len(vlog.Topics) < 3 {
		return common.Hash{}, errors.Errorf("%s: expected 3 topics, got %d", name, len(vlog.Topics))
	}
	return vlog.Topics[2], nil
}

func decodeIntentValidated(meta EventMeta, vlog types.Log, unpacked []interface{}) (ChainEvent, error) {
	refID, err := secondIndexedTopic(IntentValidatedEventName, vlog)
	if err != nil {
		return nil, err
	}

	if len(unpacked) < 3 {
		return nil, errors.Errorf("%s: expected 3 fields, got %d", IntentValidatedEventName, len(unpacked))
	}

	token, ok := unpacked[0].(common.Address)
	if !ok {
		return nil, errors.Errorf("%s: invalid token", IntentValidatedEventName)
	}

	amount, ok := unpacked[1].(*big.Int)
	if !ok || amount == nil {
		return nil, errors.Errorf("%s: invalid amount", IntentValidatedEventName)
	}

	destChain, ok := unpacked[2].(*big.Int)
	if !ok || destChain == nil {
		return nil, errors.Errorf("%s: invalid destination chain", IntentValidatedEventName)
	}

	return &IntentValidatedEvent{
		EventMeta:        meta,
		RefID:            refID.Hex(),
		Token:            token.Hex(),
		Amount:           amount,
		DestinationChain: destChain.Uint64(),
	}, nil
}

func decodeSwapExecuted(meta EventMeta, unpacked []interface{}) (ChainEvent, error) {
	if len(unpacked) < 4 {
		return nil, errors.Errorf("%s: expected 4 fields, got %d", SwapExecutedEventName, len(unpacked))
	}

	tokenIn, okIn := unpacked[0].(common.Address)
	tokenOut, okOut := unpacked[1].(common.Address)
	amountIn, okAmountIn := unpacked[2].(*big.Int)
	amountOut, okAmountOut := unpacked[3].(*big.Int)

	if !okIn || !okOut || !okAmountIn || !okAmountOut || amountIn == nil || amountOut == nil {
		return nil, errors.Errorf("%s: invalid payload", SwapExecutedEventName)
	}

	return &SwapExecutedEvent{
		EventMeta: meta,
		TokenIn:   tokenIn.Hex(),
		TokenOut:  tokenOut.Hex(),
		AmountIn:  amountIn,
		AmountOut: amountOut,
	}, nil
}

func decodeBridgeInitiated(meta EventMeta, vlog types.Log, unpacked []interface{}) (ChainEvent, error) {
	messageID, err := secondIndexedTopic(BridgeInitiatedEventName, vlog)
	if err != nil {
		return nil, err
	}

	if len(unpacked) < 3 {
		return nil, errors.Errorf("%s: expected 3 fields, got %d", BridgeInitiatedEventName, len(unpacked))
	}

	token, ok := unpacked[0].(common.Address)
	if !ok {
		return nil, errors.Errorf("%s: invalid token", BridgeInitiatedEventName)
	}

	amount, ok := unpacked[1].(*big.Int)
	if !ok || amount == nil {
		return nil, errors.Errorf("%s: invalid amount", BridgeInitiatedEventName)
	}

	destChain, ok := unpacked[2].(*big.Int)
	if !ok || destChain == nil {
		return nil, errors.Errorf("%s: invalid destination chain", BridgeInitiatedEventName)
	}

	return &BridgeInitiatedEvent{
		EventMeta:        meta,
		MessageID:        messageID.Hex(),
		Token:            token.Hex(),
		Amount:           amount,
		DestinationChain: destChain.Uint64(),
	}, nil
}

func decodeIntentFailed(meta EventMeta, unpacked []interface{}) (ChainEvent, error) {
	if len(unpacked) < 1 {
		return nil, errors.Errorf("%s: expected 1 field, got %d", IntentFailedEventName, len(unpacked))
	}

	reason, ok := unpacked[0].(string)
	if !ok {
		return nil, errors.Errorf("%s: invalid reason", IntentFailedEventName)
	}

	return &IntentFailedEvent{EventMeta: meta, Reason: reason}, nil
}

func decodeSettlementConfirmed(meta EventMeta, vlog types.Log, unpacked []interface{}) (ChainEvent, error) {
	messageID, err := secondIndexedTopic(SettlementConfirmedEventName, vlog)
	if err != nil {
		return nil, err
	}

	if len(unpacked) < 1 {
		return nil, errors.Errorf("%s: expected 1 field, got %d", SettlementConfirmedEventName, len(unpacked))
	}

	timestamp, ok := unpacked[0].(*big.Int)
	if !ok || timestamp == nil {
		return nil, errors.Errorf("%s: invalid timestamp", SettlementConfirmedEventName)
	}

	return &SettlementConfirmedEvent{
		EventMeta: meta,
		MessageID: messageID.Hex(),
		Timestamp: timestamp,
	}, nil
}

func decodeSettlementFailed(meta EventMeta, vlog types.Log, unpacked []interface{}) (ChainEvent, error) {
	messageID, err := secondIndexedTopic(SettlementFailedEventName, vlog)
	if err != nil {
		return nil, err
	}

	if len(unpacked) < 1 {
		return nil, errors.Errorf("%s: expected 1 field, got %d", SettlementFailedEventName, len(unpacked))
	}

	reason, ok := unpacked[0].(string)
	if !ok {
		return nil, errors.Errorf("%s: invalid reason", SettlementFailedEventName)
	}

	return &SettlementFailedEvent{
		EventMeta: meta,
		MessageID: messageID.Hex(),
		Reason:    reason,
	}, nil
}

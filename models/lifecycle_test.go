package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIntentStatus(t *testing.T) {
	t.Run("ProgressIsMonotonic", func(t *testing.T) {
		// ARRANGE
		happyPath := []IntentStatus{
			IntentStatusPending,
			IntentStatusValidating,
			IntentStatusValidated,
			IntentStatusRouting,
			IntentStatusExecuting,
			IntentStatusBridging,
			IntentStatusSettling,
			IntentStatusCompleted,
		}

		// ASSERT
		prev := -1
		for _, status := range happyPath {
			assert.True(t, status.Valid(), "status %s should be valid", status)
			assert.Greater(t, status.Progress(), prev, "progress must increase at %s", status)
			prev = status.Progress()
		}

		assert.Equal(t, 100, IntentStatusCompleted.Progress())
		assert.Equal(t, FailedProgress, IntentStatusFailed.Progress())
	})

	t.Run("Terminal", func(t *testing.T) {
		assert.True(t, IntentStatusCompleted.Terminal())
		assert.True(t, IntentStatusFailed.Terminal())
		assert.False(t, IntentStatusPending.Terminal())
		assert.False(t, IntentStatusSettling.Terminal())
	})

	t.Run("Invalid", func(t *testing.T) {
		assert.False(t, IntentStatus("bogus").Valid())
		assert.Empty(t, IntentStatus("bogus").Step())
	})
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from IntentStatus
		to   IntentStatus
		want bool
	}{
		{"Forward", IntentStatusPending, IntentStatusValidating, true},
		{"SkipAhead", IntentStatusValidated, IntentStatusBridging, true},
		{"Backward", IntentStatusExecuting, IntentStatusValidated, false},
		{"SameStatus", IntentStatusBridging, IntentStatusBridging, false},
		{"FailedFromAnywhere", IntentStatusPending, IntentStatusFailed, true},
		{"FailedFromLate", IntentStatusSettling, IntentStatusFailed, true},
		{"NotOutOfCompleted", IntentStatusCompleted, IntentStatusFailed, false},
		{"NotOutOfFailed", IntentStatusFailed, IntentStatusCompleted, false},
		{"UnknownFrom", IntentStatus("bogus"), IntentStatusValidated, false},
		{"UnknownTo", IntentStatusPending, IntentStatus("bogus"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestNewStatusSnapshot(t *testing.T) {
	// ARRANGE
	intent := &Intent{
		ID:     "0xI1",
		Status: IntentStatusBridging,
	}

	// ACT
	snapshot := NewStatusSnapshot(intent,
		WithTx("0xTX", 421614, 105),
		WithStep(StepBridgeCompleted),
		WithMetadata("message_id", "0xM1"),
	)

	// ASSERT
	assert.Equal(t, "0xI1", snapshot.IntentID)
	assert.Equal(t, IntentStatusBridging, snapshot.Status)
	assert.Equal(t, IntentStatusBridging.Progress(), snapshot.Progress)
	assert.Equal(t, StepBridgeCompleted, snapshot.Step)
	assert.Equal(t, "0xTX", snapshot.TxHash)
	assert.Equal(t, uint64(421614), snapshot.ChainID)
	assert.Equal(t, uint64(105), snapshot.BlockNumber)
	assert.Equal(t, "0xM1", snapshot.Metadata["message_id"])
}

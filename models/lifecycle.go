package models

// IntentStatus represents the lifecycle state of an intent.
//
// Statuses only move forward along the happy path, or jump to failed from any
// non-terminal state. Completed and failed are terminal.
type IntentStatus string

const (
	IntentStatusPending    IntentStatus = "pending"
	IntentStatusValidating IntentStatus = "validating"
	IntentStatusValidated  IntentStatus = "validated"
	IntentStatusRouting    IntentStatus = "routing"
	IntentStatusExecuting  IntentStatus = "executing"
	IntentStatusBridging   IntentStatus = "bridging"
	IntentStatusSettling   IntentStatus = "settling"
	IntentStatusCompleted  IntentStatus = "completed"
	IntentStatusFailed     IntentStatus = "failed"
)

// FailedProgress is the sentinel progress value pushed for failed intents.
// It tells clients to halt instead of waiting for further updates.
const FailedProgress = -1

// StepBridgeCompleted is pushed when a tracked cross-chain message reaches
// its destination; the intent moves to settling but the triggering step is
// the bridge arrival, not settlement itself.
const StepBridgeCompleted = "bridge_completed"

type statusInfo struct {
	rank     int
	progress int
	step     string
	message  string
	etaSecs  int
}

// The rank orders statuses along the transition graph. Failed carries the
// highest rank so it is accepted from any non-terminal state.
var statusTable = map[IntentStatus]statusInfo{
	IntentStatusPending:    {rank: 0, progress: 5, step: "intent_received", message: "Intent received and queued for validation", etaSecs: 90},
	IntentStatusValidating: {rank: 1, progress: 15, step: "validating", message: "Validating intent parameters on-chain", etaSecs: 75},
	IntentStatusValidated:  {rank: 2, progress: 25, step: "validated", message: "Intent validated, selecting route", etaSecs: 60},
	IntentStatusRouting:    {rank: 3, progress: 40, step: "route_selected", message: "Comparing routes and locking in best quote", etaSecs: 50},
	IntentStatusExecuting:  {rank: 4, progress: 55, step: "executing_swap", message: "Executing swap on source chain", etaSecs: 40},
	IntentStatusBridging:   {rank: 5, progress: 70, step: "bridging", message: "Transferring funds across chains", etaSecs: 30},
	IntentStatusSettling:   {rank: 6, progress: 85, step: "settling", message: "Funds arrived, verifying settlement", etaSecs: 15},
	IntentStatusCompleted:  {rank: 7, progress: 100, step: "completed", message: "Swap completed successfully", etaSecs: 0},
	IntentStatusFailed:     {rank: 8, progress: FailedProgress, step: "failed", message: "Swap failed", etaSecs: 0},
}

// Valid reports whether the status is one of the known lifecycle states.
func (s IntentStatus) Valid() bool {
	_, ok := statusTable[s]
	return ok
}

// Terminal reports whether no further transition can occur.
func (s IntentStatus) Terminal() bool {
	return s == IntentStatusCompleted || s == IntentStatusFailed
}

// Progress returns the progress percentage for the status, or FailedProgress.
func (s IntentStatus) Progress() int {
	return statusTable[s].progress
}

// Step returns the machine-readable step name for the status.
func (s IntentStatus) Step() string {
	return statusTable[s].step
}

// HumanMessage returns the human-readable message template for the status.
func (s IntentStatus) HumanMessage() string {
	return statusTable[s].message
}

// EstimatedSecondsRemaining returns the fallback ETA for the status, used
// only when no live estimate is available.
func (s IntentStatus) EstimatedSecondsRemaining() int {
	return statusTable[s].etaSecs
}

// CanTransition reports whether moving from one status to another is a
// forward transition. Failed is reachable from any non-terminal state.
// Re-applying the current status is not a transition.
func CanTransition(from, to IntentStatus) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	if from.Terminal() || from == to {
		return false
	}
	if to == IntentStatusFailed {
		return true
	}
	return statusTable[to].rank > statusTable[from].rank
}

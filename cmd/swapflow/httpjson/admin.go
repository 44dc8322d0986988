package httpjson

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	web "github.com/swapflow-hq/swapflow/api/http"
	"github.com/swapflow-hq/swapflow/api/models"
	"github.com/swapflow-hq/swapflow/api/utils"
)

const (
	defaultPollAttempts = 5
	maxPollAttempts     = 20
	defaultPollInterval = 2 * time.Second
)

func (h *handler) setupAdminRoutes(rg *gin.RouterGroup) {
	admin := rg.Group("/admin")

	admin.POST("/intents/:id/notify", h.notifyIntent)
	admin.POST("/messages/:id/poll", h.pollMessage)
	admin.GET("/stats", h.getStats)
}

// notifyIntent re-emits the intent's current status to all bound
// subscribers. No transition is applied; this is a manual liveness trigger.
func (h *handler) notifyIntent(c *gin.Context) {
	intent, ok := h.resolveIntent(c)
	if !ok {
		return
	}

	snapshot := models.NewStatusSnapshot(intent)
	h.deps.Hub.Push(intent.ID, snapshot)

	c.JSON(http.StatusOK, gin.H{
		"snapshot":    snapshot,
		"subscribers": h.deps.Hub.SubscriberCount(intent.ID),
	})
}

type pollMessageRequest struct {
	IntentID    string `json:"intent_id" binding:"required"`
	MaxAttempts int    `json:"max_attempts"`
	IntervalMs  int    `json:"interval_ms"`
}

// pollMessage runs a bounded on-demand status poll for one cross-chain
// message, outside the steady-state sweep cadence.
func (h *handler) pollMessage(c *gin.Context) {
	messageID := c.Param("id")
	if err := utils.ValidateBytes32(messageID); err != nil {
		web.ErrBadRequest(c, err)
		return
	}

	var req pollMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		web.ErrBadRequest(c, errors.Wrap(err, "invalid request"))
		return
	}

	if err := utils.ValidateBytes32(req.IntentID); err != nil {
		web.ErrBadRequest(c, errors.Wrap(err, "invalid intent_id"))
		return
	}

	attempts := req.MaxAttempts
	if attempts <= 0 {
		attempts = defaultPollAttempts
	}
	if attempts > maxPollAttempts {
		web.ErrBadRequest(c, errors.Errorf("max_attempts must be at most %d", maxPollAttempts))
		return
	}

	interval := defaultPollInterval
	if req.IntervalMs > 0 {
		interval = time.Duration(req.IntervalMs) * time.Millisecond
	}

	result, err := h.deps.Tracker.PollUntilTerminal(c.Request.Context(), messageID, req.IntentID, attempts, interval)
	if err != nil {
		web.ErrInternalServerError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message_id": messageID,
		"result":     result,
	})
}

// getStats is a read-only projection of internal state: per-chain cursor
// positions, the active tracked-message set and fanout counters.
func (h *handler) getStats(c *gin.Context) {
	ctx := c.Request.Context()

	chains := make([]gin.H, 0, len(h.deps.ChainConfigs))
	for chainID, chain := range h.deps.ChainConfigs {
		cursor, err := h.deps.Database.GetLastProcessedBlock(ctx, chainID)
		if err != nil {
			web.ErrInternalServerError(c, err)
			return
		}

		chains = append(chains, gin.H{
			"chain_id":     chainID,
			"name":         chain.Name,
			"cursor_block": cursor,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"active_watchers":  len(h.deps.ChainConfigs),
		"chains":           chains,
		"tracked_messages": h.deps.Tracker.ActiveCount(),
		"subscribers":      h.deps.Hub.TotalSubscribers(),
		"pushes":           h.deps.Hub.PushCount(),
		"push_failures":    h.deps.Hub.FailureCount(),
	})
}

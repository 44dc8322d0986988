package httpjson

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/swapflow-hq/swapflow/api/db"
	web "github.com/swapflow-hq/swapflow/api/http"
	"github.com/swapflow-hq/swapflow/api/logging"
	"github.com/swapflow-hq/swapflow/api/models"
	"github.com/swapflow-hq/swapflow/api/utils"
)

func (h *handler) setupIntentRoutes(rg *gin.RouterGroup) {
	intents := rg.Group("/intents")

	intents.GET("", h.listIntents)
	intents.POST("", h.createIntent)
	intents.GET(":id", h.getIntent)
	intents.GET(":id/status", h.getIntentStatus)
	intents.GET(":id/ws", h.streamIntent)
}

type paginatedResponse struct {
	Data       interface{} `json:"data"`
	Page       int         `json:"page"`
	PageSize   int         `json:"page_size"`
	TotalCount int         `json:"total_count"`
}

func (h *handler) listIntents(c *gin.Context) {
	ctx := c.Request.Context()

	pag, err := resolvePagination(c)
	if err != nil {
		web.ErrBadRequest(c, err)
		return
	}

	intents, totalCount, err := h.deps.Database.ListIntents(ctx, pag.Page, pag.PageSize)
	if err != nil {
		web.ErrInternalServerError(c, err)
		return
	}

	c.JSON(http.StatusOK, paginatedResponse{
		Data:       intents,
		Page:       pag.Page,
		PageSize:   pag.PageSize,
		TotalCount: totalCount,
	})
}

type createIntentRequest struct {
	ID               string `json:"id" binding:"required"`
	SourceChain      uint64 `json:"source_chain" binding:"required"`
	DestinationChain uint64 `json:"destination_chain" binding:"required"`
	Token            string `json:"token" binding:"required"`
	Amount           string `json:"amount" binding:"required"`
	Recipient        string `json:"recipient" binding:"required"`
	Sender           string `json:"sender"`
}

func (req *createIntentRequest) validate(chains map[uint64]bool) error {
	if err := utils.ValidateBytes32(req.ID); err != nil {
		return errors.Wrap(err, "invalid id")
	}

	if err := utils.ValidateChain(req.SourceChain, chains); err != nil {
		return errors.Wrap(err, "invalid source_chain")
	}

	if err := utils.ValidateChain(req.DestinationChain, chains); err != nil {
		return errors.Wrap(err, "invalid destination_chain")
	}

	if err := utils.ValidateAddress(req.Token); err != nil {
		return errors.Wrap(err, "invalid token")
	}

	if err := utils.ValidateAmount(req.Amount); err != nil {
		return errors.Wrap(err, "invalid amount")
	}

	if err := utils.ValidateAddress(req.Recipient); err != nil {
		return errors.Wrap(err, "invalid recipient")
	}

	if req.Sender != "" {
		if err := utils.ValidateAddress(req.Sender); err != nil {
			return errors.Wrap(err, "invalid sender")
		}
	}

	return nil
}

// createIntent registers an intent ahead of its on-chain events, so that
// subscribers can bind before the watcher observes the first transition.
func (h *handler) createIntent(c *gin.Context) {
	ctx := c.Request.Context()

	var req createIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		web.ErrBadRequest(c, errors.Wrap(err, "invalid request"))
		return
	}

	if err := req.validate(h.chainSet()); err != nil {
		web.ErrBadRequest(c, err)
		return
	}

	intent := &models.Intent{
		ID:               req.ID,
		SourceChain:      req.SourceChain,
		DestinationChain: req.DestinationChain,
		Token:            req.Token,
		Amount:           req.Amount,
		Recipient:        req.Recipient,
		Sender:           req.Sender,
		Status:           models.IntentStatusPending,
	}

	if err := h.deps.Database.CreateIntent(ctx, intent); err != nil {
		web.ErrInternalServerError(c, err)
		return
	}

	h.logger.Info().
		Str(logging.FieldIntent, intent.ID).
		Uint64(logging.FieldChain, intent.SourceChain).
		Msg("intent created")

	c.JSON(http.StatusCreated, intent)
}

func (h *handler) chainSet() map[uint64]bool {
	chains := make(map[uint64]bool, len(h.deps.ChainConfigs))
	for chainID := range h.deps.ChainConfigs {
		chains[chainID] = true
	}
	return chains
}

func (h *handler) getIntent(c *gin.Context) {
	intent, ok := h.resolveIntent(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, intent)
}

// getIntentStatus returns the same snapshot a subscriber would receive over
// the realtime channel, for clients that prefer to poll.
func (h *handler) getIntentStatus(c *gin.Context) {
	intent, ok := h.resolveIntent(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, models.NewStatusSnapshot(intent))
}

// resolveIntent validates the :id param and loads the intent, writing the
// error response itself when it returns ok=false.
func (h *handler) resolveIntent(c *gin.Context) (*models.Intent, bool) {
	ctx := c.Request.Context()

	id := c.Param("id")
	if id == "" {
		web.ErrBadRequest(c, errors.Wrap(ErrParamRequired, "intent id"))
		return nil, false
	}

	if err := utils.ValidateBytes32(id); err != nil {
		h.logger.Debug().Str(logging.FieldIntent, id).Msg("Invalid intent ID format")
		web.ErrBadRequest(c, err)
		return nil, false
	}

	intent, err := h.deps.Database.GetIntent(ctx, id)
	if err != nil {
		if errors.Is(err, db.ErrIntentNotFound) {
			web.ErrNotFound(c, errors.Wrap(ErrNotFound, "intent"))
			return nil, false
		}

		web.ErrInternalServerError(c, err)
		return nil, false
	}

	return intent, true
}

package httpjson

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	web "github.com/swapflow-hq/swapflow/api/http"
	"github.com/swapflow-hq/swapflow/api/logging"
	"github.com/swapflow-hq/swapflow/api/utils"
)

// Origin policy for the upgrade itself is delegated to the CORS middleware
// in front of this handler; browsers enforce the response headers, and
// non-browser clients are not constrained by Origin anyway.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// streamIntent upgrades the connection and registers it as a subscriber for
// the intent in the path. The optional `user` query parameter attaches an
// authenticated user id to the subscription.
//
// Errors before the upgrade are plain HTTP responses; errors after the
// upgrade (unknown intent, subscriber limits) are delivered as a close
// frame so the client sees the reason.
func (h *handler) streamIntent(c *gin.Context) {
	intentID := c.Param("id")
	if err := utils.ValidateBytes32(intentID); err != nil {
		web.ErrBadRequest(c, err)
		return
	}

	userID := c.Query("user")
	if userID != "" {
		if err := utils.ValidateAddress(userID); err != nil {
			web.ErrBadRequest(c, errors.Wrap(err, "invalid user"))
			return
		}
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		h.logger.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	sub, err := h.deps.Hub.Register(c.Request.Context(), conn, intentID, userID)
	if err != nil {
		h.logger.Debug().Err(err).
			Str(logging.FieldIntent, intentID).
			Msg("subscriber registration rejected")

		msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error())
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		_ = conn.Close()
		return
	}

	h.logger.Debug().
		Str(logging.FieldIntent, intentID).
		Str(logging.FieldSubscriber, sub.ID).
		Msg("subscriber connected")
}

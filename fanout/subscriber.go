package fanout

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/swapflow-hq/swapflow/api/logging"
)

const (
	// Time allowed to write a frame to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong from the peer.
	pongWait = 60 * time.Second

	// Send pings with this period; must be less than pongWait.
	pingPeriod = 30 * time.Second

	maxInboundSize = 1024
	sendBuffer     = 32
)

// Frame is the JSON envelope exchanged on the realtime channel.
type Frame struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Frame types.
const (
	FrameConnected = "connected"
	FrameStatus    = "status"
	FrameError     = "error"
	FramePong      = "pong"

	frameSubscribe = "subscribe"
	framePing      = "ping"
)

type inboundFrame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type subscribeRequest struct {
	IntentID string `json:"intentId"`
}

// Subscriber is one realtime connection bound to exactly one intent.
// The bound intent can change via a subscribe frame (rebind).
type Subscriber struct {
	ID          string
	UserID      string
	ConnectedAt time.Time

	conn *websocket.Conn

	// intentID is guarded by the owning hub's lock.
	intentID string

	send      chan Frame
	done      chan struct{}
	closeOnce sync.Once
}

// IntentID returns the currently bound intent.
func (s *Subscriber) IntentID() string {
	return s.intentID
}

// Authenticated reports whether the connection identified a user.
func (s *Subscriber) Authenticated() bool {
	return s.UserID != ""
}

// enqueue appends a frame to the subscriber's ordered outbound buffer.
// It never blocks: a full buffer means the client cannot keep up and the
// subscriber is dropped by the caller.
func (s *Subscriber) enqueue(frame Frame) bool {
	select {
	case <-s.done:
		return false
	default:
	}

	select {
	case s.send <- frame:
		return true
	default:
		return false
	}
}

func (s *Subscriber) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
}

// readPump consumes inbound frames until the socket errors or closes.
// Runs as one goroutine per subscriber; it drives unregistration on error.
func (s *Subscriber) readPump(h *Hub) {
	defer h.Unregister(s)

	logger := h.logger.With().Str(logging.FieldSubscriber, s.ID).Logger()

	s.conn.SetReadLimit(maxInboundSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var frame inboundFrame
		if err := s.conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug().Err(err).Msg("Subscriber connection closed unexpectedly")
			}
			return
		}

		// Reading a valid frame also counts as liveness
		_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))

		switch frame.Type {
		case frameSubscribe:
			s.handleSubscribe(h, frame.Data, logger)
		case framePing:
			s.enqueue(Frame{Type: FramePong, Timestamp: time.Now()})
		default:
			s.enqueue(errorFrame(errors.Errorf("unrecognized message type %q", frame.Type)))
		}
	}
}

func (s *Subscriber) handleSubscribe(h *Hub, data json.RawMessage, logger zerolog.Logger) {
	var req subscribeRequest
	if err := json.Unmarshal(data, &req); err != nil || req.IntentID == "" {
		s.enqueue(errorFrame(errors.New("subscribe requires an intentId")))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), rebindTimeout)
	defer cancel()

	if err := h.Rebind(ctx, s, req.IntentID); err != nil {
		logger.Debug().Err(err).Str(logging.FieldIntent, req.IntentID).Msg("Rebind rejected")
		s.enqueue(errorFrame(err))
	}
}

// writePump drains the outbound buffer in order and keeps the connection
// alive with periodic pings.
func (s *Subscriber) writePump(h *Hub) {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		h.Unregister(s)
	}()

	for {
		select {
		case frame, ok := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := s.conn.WriteJSON(frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.done:
			return
		}
	}
}

func errorFrame(err error) Frame {
	return Frame{
		Type:      FrameError,
		Data:      map[string]string{"message": err.Error()},
		Timestamp: time.Now(),
	}
}

// Package bridgeapi is the client for the external cross-chain message
// status API. The API is treated as unreliable: timeouts, 5xx responses and
// malformed payloads are surfaced as errors ("inconclusive, retry later"),
// while a clean 404 means the message is not indexed yet.
package bridgeapi

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/h2non/gentleman.v2"
	"gopkg.in/h2non/gentleman.v2/plugins/timeout"
)

// MessageState is the lookup result for one cross-chain message.
type MessageState string

const (
	StateSuccess  MessageState = "success"
	StateFailed   MessageState = "failed"
	StateInFlight MessageState = "inflight"
	StatePending  MessageState = "pending"
	StateNotFound MessageState = "not_found"
)

// Terminal reports whether the state is definitive.
func (s MessageState) Terminal() bool {
	return s == StateSuccess || s == StateFailed
}

// MessageStatus is the decoded response for one message lookup.
type MessageStatus struct {
	State        MessageState `json:"state"`
	SourceTxHash string       `json:"sourceTxHash,omitempty"`
	DestTxHash   string       `json:"destTxHash,omitempty"`
	Error        string       `json:"error,omitempty"`
}

// Client queries the bridge relayer status API.
type Client struct {
	http *gentleman.Client
}

// New creates a bridge API client with a mandatory per-request timeout.
func New(baseURL string, requestTimeout time.Duration) *Client {
	cli := gentleman.New()
	cli.BaseURL(baseURL)
	cli.Use(timeout.Request(requestTimeout))

	return &Client{http: cli}
}

type statusResponse struct {
	Status       string `json:"status"`
	SourceTxHash string `json:"sourceTxHash"`
	DestTxHash   string `json:"destTxHash"`
	Error        string `json:"error"`
}

// GetStatus looks up a message by id. A nil error with StateNotFound means
// "still processing, not yet indexed"; a non-nil error means the lookup was
// inconclusive and should be retried later.
func (c *Client) GetStatus(ctx context.Context, messageID string) (*MessageStatus, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res, err := c.http.Request().
		Method("GET").
		Path("/v1/messages/:id").
		Param("id", messageID).
		Send()
	if err != nil {
		return nil, errors.Wrap(err, "bridge api request failed")
	}

	if res.StatusCode == 404 {
		return &MessageStatus{State: StateNotFound}, nil
	}

	if !res.Ok {
		return nil, errors.Errorf("bridge api returned status %d", res.StatusCode)
	}

	var payload statusResponse
	if err := res.JSON(&payload); err != nil {
		return nil, errors.Wrap(err, "failed to decode bridge api response")
	}

	state, err := parseState(payload.Status)
	if err != nil {
		return nil, err
	}

	return &MessageStatus{
		State:        state,
		SourceTxHash: payload.SourceTxHash,
		DestTxHash:   payload.DestTxHash,
		Error:        payload.Error,
	}, nil
}

// parseState normalizes the upstream status labels. IN_FLIGHT and PENDING
// both map to non-terminal states and are handled identically downstream.
func parseState(raw string) (MessageState, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "SUCCESS", "DELIVERED":
		return StateSuccess, nil
	case "FAILED", "REVERTED":
		return StateFailed, nil
	case "INFLIGHT", "IN_FLIGHT":
		return StateInFlight, nil
	case "PENDING":
		return StatePending, nil
	default:
		return "", errors.Errorf("unknown message status %q", raw)
	}
}

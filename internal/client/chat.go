package client

import (
	"context"
	"errors"
	"net/url"
	"strconv"

	"github.com/stemsi/tutor-gateway/internal/model"
)

// ErrMissingUserID is returned when a chat call is attempted without a
// user id. The upstream keys conversations by user, so this is a hard
// precondition, not a transport failure.
var ErrMissingUserID = errors.New("chat call requires a user id")

const (
	chatPath   = "/api/ai/chat/"
	healthPath = "/api/ai/health/"
)

type chatSendResponse struct {
	Success     bool               `json:"success"`
	UserMessage *model.ChatMessage `json:"user_message"`
	AIResponse  *model.ChatMessage `json:"ai_response"`
	Error       string             `json:"error,omitempty"`
}

type chatHistoryResponse struct {
	Success  bool                `json:"success"`
	Messages []model.ChatMessage `json:"messages"`
	Error    string              `json:"error,omitempty"`
}

type healthResponse struct {
	Success bool `json:"success"`
}

// Exchange is a confirmed user/AI message pair returned by one send.
type Exchange struct {
	UserMessage model.ChatMessage
	AIResponse  model.ChatMessage
}

// SendMessage posts one user message and returns the confirmed pair.
func (c *AIClient) SendMessage(ctx context.Context, userID int, message string) (*Exchange, error) {
	if userID <= 0 {
		return nil, ErrMissingUserID
	}

	query := url.Values{"user_id": {strconv.Itoa(userID)}}
	body := map[string]string{"message": message}

	var resp chatSendResponse
	if err := c.post(ctx, chatPath, query, body, &resp); err != nil {
		return nil, err
	}
	if !resp.Success || resp.UserMessage == nil || resp.AIResponse == nil {
		return nil, &APIError{StatusCode: 200, Message: resp.Error}
	}

	return &Exchange{
		UserMessage: *resp.UserMessage,
		AIResponse:  *resp.AIResponse,
	}, nil
}

// History fetches up to limit past messages for the user, oldest first.
func (c *AIClient) History(ctx context.Context, userID, limit int) ([]model.ChatMessage, error) {
	if userID <= 0 {
		return nil, ErrMissingUserID
	}

	query := url.Values{
		"user_id": {strconv.Itoa(userID)},
		"limit":   {strconv.Itoa(limit)},
	}

	var resp chatHistoryResponse
	if err := c.get(ctx, chatPath, query, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, &APIError{StatusCode: 200, Message: resp.Error}
	}
	return resp.Messages, nil
}

// Health reports whether the upstream AI service is reachable and ready.
// A transport error is reported as unhealthy, not as a failure.
func (c *AIClient) Health(ctx context.Context) bool {
	var resp healthResponse
	if err := c.get(ctx, healthPath, nil, &resp); err != nil {
		c.log.Warn().Err(err).Msg("Upstream health check failed")
		return false
	}
	return resp.Success
}

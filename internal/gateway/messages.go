package gateway

import (
	"context"
	"fmt"
	"net/url"
)

// CreateMessage posts a new message and returns the server's record,
// including the server-assigned id.
func (c *Client) CreateMessage(ctx context.Context, conversationID, senderID, text string) (*Message, error) {
	if text == "" {
		return nil, fmt.Errorf("create message: text is required")
	}
	var out Message
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"conversationId": conversationID,
			"senderId":       senderID,
			"text":           text,
		}).
		SetResult(&out).
		Post("/messages")
	if err := checkResponse(resp, err); err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}
	return &out, nil
}

// ListMessages returns the full message history of a conversation.
func (c *Client) ListMessages(ctx context.Context, conversationID string) ([]Message, error) {
	var out []Message
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/messages/conversation/" + url.PathEscape(conversationID))
	if err := checkResponse(resp, err); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return out, nil
}

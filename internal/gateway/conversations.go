package gateway

import (
	"context"
	"fmt"
	"net/url"
)

// CreateConversation opens a conversation between the given participants.
func (c *Client) CreateConversation(ctx context.Context, participantIDs []string) (*Conversation, error) {
	if len(participantIDs) < 2 {
		return nil, fmt.Errorf("create conversation: at least two participants required")
	}
	var out Conversation
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string][]string{"participants": participantIDs}).
		SetResult(&out).
		Post("/conversations")
	if err := checkResponse(resp, err); err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	return &out, nil
}

// ListConversations returns all conversations the user participates in.
func (c *Client) ListConversations(ctx context.Context, userID string) ([]Conversation, error) {
	var out []Conversation
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/conversations/user/" + url.PathEscape(userID))
	if err := checkResponse(resp, err); err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return out, nil
}

// DeleteConversation removes a conversation.
func (c *Client) DeleteConversation(ctx context.Context, conversationID string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		Delete("/conversations/" + url.PathEscape(conversationID))
	if err := checkResponse(resp, err); err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	return nil
}

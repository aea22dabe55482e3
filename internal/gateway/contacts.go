package gateway

import (
	"context"
	"fmt"
	"net/url"
)

// AddContact adds contactUserID to userID's contact list.
func (c *Client) AddContact(ctx context.Context, userID, contactUserID string) (*Contact, error) {
	var out Contact
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"userId": userID, "contactId": contactUserID}).
		SetResult(&out).
		Post("/contacts/add")
	if err := checkResponse(resp, err); err != nil {
		return nil, fmt.Errorf("add contact: %w", err)
	}
	return &out, nil
}

// ListContacts returns the user's contact list.
func (c *Client) ListContacts(ctx context.Context, userID string) ([]Contact, error) {
	var out []Contact
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/contacts/user/" + url.PathEscape(userID))
	if err := checkResponse(resp, err); err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	return out, nil
}

// RenameContact sets the alias of a contact entry.
func (c *Client) RenameContact(ctx context.Context, contactID, alias string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"alias": alias}).
		Put("/contacts/" + url.PathEscape(contactID) + "/alias")
	if err := checkResponse(resp, err); err != nil {
		return fmt.Errorf("rename contact: %w", err)
	}
	return nil
}

// RemoveContact deletes a contact entry.
func (c *Client) RemoveContact(ctx context.Context, contactID string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		Delete("/contacts/" + url.PathEscape(contactID))
	if err := checkResponse(resp, err); err != nil {
		return fmt.Errorf("remove contact: %w", err)
	}
	return nil
}

package gateway

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

// Register creates a new account and returns the auth token and user.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	if req.FirstName == "" || req.LastName == "" || req.Phone == "" || req.Password == "" {
		return nil, fmt.Errorf("register: first name, last name, phone and password are required")
	}
	var out AuthResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		Post("/users/register")
	if err := checkResponse(resp, err); err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	c.logger.Info("account registered", zap.String("user_id", out.User.ID))
	return &out, nil
}

// Login authenticates with phone and password.
func (c *Client) Login(ctx context.Context, creds Credentials) (*AuthResponse, error) {
	if creds.Phone == "" || creds.Password == "" {
		return nil, fmt.Errorf("login: phone and password are required")
	}
	var out AuthResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(creds).
		SetResult(&out).
		Post("/users/login")
	if err := checkResponse(resp, err); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	return &out, nil
}

// Profile fetches a user's profile.
func (c *Client) Profile(ctx context.Context, userID string) (*User, error) {
	var out User
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/users/profile/" + url.PathEscape(userID))
	if err := checkResponse(resp, err); err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return &out, nil
}

// UpdateProfile updates the mutable profile fields.
func (c *Client) UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) (*User, error) {
	var out User
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(update).
		SetResult(&out).
		Put("/users/" + url.PathEscape(userID))
	if err := checkResponse(resp, err); err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return &out, nil
}

// SearchByPhone looks up a user by phone number. Numbers without a leading
// "+" are normalized to +33 country-code form with the leading zero dropped.
func (c *Client) SearchByPhone(ctx context.Context, phone string) (*User, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return nil, fmt.Errorf("search: phone number is required")
	}
	var out User
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/users/search/" + url.PathEscape(NormalizePhone(phone)))
	if err := checkResponse(resp, err); err != nil {
		return nil, fmt.Errorf("search by phone: %w", err)
	}
	return &out, nil
}

// NormalizePhone converts a national number to +33 form. Already
// +-prefixed numbers pass through unchanged.
func NormalizePhone(phone string) string {
	if strings.HasPrefix(phone, "+") {
		return phone
	}
	return "+33" + strings.TrimPrefix(phone, "0")
}

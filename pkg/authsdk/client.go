package authsdk

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal HTTP client for the token service. It covers the four
// lifecycle operations; callers bind the access token into their own
// requests via the configured header.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a client with a sane default timeout.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// TokenAuth exchanges a username and password for an access token
// (plus a refresh token in stored-refresh mode).
func (c *Client) TokenAuth(ctx context.Context, username, password string) (*TokenResponse, error) {
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)

	var out TokenResponse
	if err := c.postForm(ctx, "/v1/token", form, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyToken decodes and validates an access token, returning its claims.
func (c *Client) VerifyToken(ctx context.Context, token string) (*VerifyResponse, error) {
	form := url.Values{}
	form.Set("token", token)

	var out VerifyResponse
	if err := c.postForm(ctx, "/v1/token/verify", form, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RefreshToken obtains a new access token. In sliding-window mode the input
// is the current access token; in stored mode it is the opaque refresh
// token, and the response carries its single-use successor.
func (c *Client) RefreshToken(ctx context.Context, token string) (*TokenResponse, error) {
	form := url.Values{}
	form.Set("token", token)

	var out TokenResponse
	if err := c.postForm(ctx, "/v1/token/refresh", form, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RevokeToken permanently revokes a stored refresh token and returns the
// revocation timestamp in epoch seconds.
func (c *Client) RevokeToken(ctx context.Context, refreshToken string) (*RevokeResponse, error) {
	form := url.Values{}
	form.Set("refresh_token", refreshToken)

	var out RevokeResponse
	if err := c.postForm(ctx, "/v1/token/revoke", form, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) postForm(ctx context.Context, path string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.BaseURL+path,
		strings.NewReader(form.Encode()),
	)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		var er ErrorResponse
		if err := json.Unmarshal(body, &er); err != nil || er.Error == "" {
			return fmt.Errorf("authsdk: unexpected status %d", resp.StatusCode)
		}
		return &APIError{
			StatusCode:  resp.StatusCode,
			Code:        er.Error,
			Description: er.ErrorDescription,
		}
	}

	return json.Unmarshal(body, out)
}

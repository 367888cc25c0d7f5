// Package zhiyan is an HTTP client for the zhiyan conversational-commerce API.
package zhiyan

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const DefaultBaseURL = "https://dev.zhiyan.chat"

// Shop identifies the storefront a conversation runs against. The chat
// endpoint requires all four fields on every call.
type Shop struct {
	Platform string
	Name     string
	Account  string
	ID       string
}

type Client struct {
	baseURL string
	shop    Shop
	client  *http.Client
}

func NewClient(baseURL string, shop Shop, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		shop:    shop,
		client:  &http.Client{Timeout: timeout},
	}
}

// Shop returns the storefront profile the client was built with.
func (c *Client) Shop() Shop {
	return c.shop
}

type loginRequest struct {
	Account  string `json:"account"`
	Password string `json:"password"`
}

// LoginResult carries the token issued by a successful login.
type LoginResult struct {
	AccessToken string `json:"accessToken"`
	ExpiresIn   int64  `json:"expiresIn"`
}

type loginResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    LoginResult `json:"data"`
}

// Login authenticates against /api/auth/login and returns the bearer token.
func (c *Client) Login(ctx context.Context, account, password string) (*LoginResult, error) {
	var resp loginResponse
	if err := c.postJSON(ctx, "/api/auth/login", "", loginRequest{Account: account, Password: password}, &resp); err != nil {
		return nil, err
	}
	if resp.Code != http.StatusOK {
		return nil, fmt.Errorf("login rejected (code %d): %s", resp.Code, resp.Message)
	}
	if resp.Data.AccessToken == "" {
		return nil, fmt.Errorf("login returned empty accessToken")
	}
	return &resp.Data, nil
}

func (c *Client) postJSON(ctx context.Context, path, token string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return c.do(req, out)
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, token string, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("api call: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("api error %d: %s", resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

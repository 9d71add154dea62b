// Package taikomcp is a small Go client for the TaikoMCP-Chain REST API.
package taikomcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"sync"
	"time"
)

// DefaultHTTPTimeout defines the timeout used by clients created without a
// custom http.Client.
const DefaultHTTPTimeout = 60 * time.Second

// Client wraps the HTTP interactions with the TaikoMCP-Chain REST API.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client

	mu          sync.RWMutex
	accessToken string
}

// TransferRequest mirrors the transfer action payload. An empty Token means
// the chain's native asset.
type TransferRequest struct {
	Chain     string `json:"chain"`
	Token     string `json:"token,omitempty"`
	Amount    string `json:"amount,omitempty"`
	ToAddress string `json:"to_address"`
	Data      string `json:"data,omitempty"`
}

// BalanceRequest mirrors the balance action payload.
type BalanceRequest struct {
	Chain   string `json:"chain"`
	Address string `json:"address"`
	Token   string `json:"token,omitempty"`
}

// AnalyticsRequest mirrors the analytics action payload.
type AnalyticsRequest struct {
	Chain           string `json:"chain"`
	ContractAddress string `json:"contract_address"`
}

// ChatRequest asks the agent to extract parameters from a message and run
// the named action.
type ChatRequest struct {
	Action  string   `json:"action"`
	Message string   `json:"message"`
	History []string `json:"history,omitempty"`
	Source  string   `json:"source"`
}

// ActionResult is the agent's reply. Content is action specific.
type ActionResult struct {
	RequestID string          `json:"request_id"`
	Action    string          `json:"action"`
	Text      string          `json:"text"`
	Content   json.RawMessage `json:"content"`
}

// Chain describes a network the agent can operate on.
type Chain struct {
	Name         string `json:"name"`
	ID           int64  `json:"id"`
	DisplayName  string `json:"display_name"`
	NativeSymbol string `json:"native_symbol"`
	ExplorerURL  string `json:"explorer_url"`
}

// APIError represents a failed action or a rejected request.
type APIError struct {
	StatusCode int
	Code       string `json:"code"`
	Text       string `json:"text"`
	Message    string `json:"-"`
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	if e.Code != "" {
		return fmt.Sprintf("taikomcp api error (%d): %s - %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("taikomcp api error (%d): %s", e.StatusCode, e.Message)
}

// NewClient instantiates a client for the TaikoMCP-Chain API. When httpClient
// is nil, a default client with DefaultHTTPTimeout is used.
func NewClient(rawURL string, httpClient *http.Client) (*Client, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &Client{baseURL: parsed, httpClient: httpClient}, nil
}

// SetAccessToken sets the bearer token sent with every API call.
func (c *Client) SetAccessToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken = token
}

// AccessToken returns the currently stored token string.
func (c *Client) AccessToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accessToken
}

// Transfer sends native coins or tokens from the agent's wallet.
func (c *Client) Transfer(ctx context.Context, req TransferRequest) (ActionResult, error) {
	return c.action(ctx, "/api/v1/actions/transfer", req)
}

// Balance queries a native or token balance.
func (c *Client) Balance(ctx context.Context, req BalanceRequest) (ActionResult, error) {
	return c.action(ctx, "/api/v1/actions/balance", req)
}

// Analytics summarises a contract's recent activity.
func (c *Client) Analytics(ctx context.Context, req AnalyticsRequest) (ActionResult, error) {
	return c.action(ctx, "/api/v1/actions/analytics", req)
}

// Chat runs an action from a free-form message.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (ActionResult, error) {
	return c.action(ctx, "/api/v1/chat", req)
}

// Chains lists the networks the agent knows.
func (c *Client) Chains(ctx context.Context) ([]Chain, error) {
	var out struct {
		Chains []Chain `json:"chains"`
	}
	req, err := c.newRequest(ctx, http.MethodGet, "/api/v1/chains", nil)
	if err != nil {
		return nil, err
	}
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return out.Chains, nil
}

func (c *Client) action(ctx context.Context, endpoint string, payload any) (ActionResult, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return ActionResult{}, fmt.Errorf("encode request: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return ActionResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	var result ActionResult
	if err := c.do(req, &result); err != nil {
		return ActionResult{}, err
	}
	return result, nil
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, body io.Reader) (*http.Request, error) {
	rel := &url.URL{Path: path.Join(c.baseURL.Path, endpoint)}
	u := c.baseURL.ResolveReference(rel)
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if token := c.AccessToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := APIError{StatusCode: resp.StatusCode}
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read error response: %w", err)
		}
		var payload struct {
			Code    string `json:"code"`
			Text    string `json:"text"`
			Error   string `json:"error"`
			Content struct {
				Error string `json:"error"`
			} `json:"content"`
		}
		if len(data) > 0 && json.Unmarshal(data, &payload) == nil {
			apiErr.Code = payload.Code
			apiErr.Text = payload.Text
			apiErr.Message = payload.Content.Error
			if apiErr.Message == "" {
				apiErr.Message = payload.Error
			}
		}
		if apiErr.Message == "" {
			apiErr.Message = string(bytes.TrimSpace(data))
		}
		return &apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

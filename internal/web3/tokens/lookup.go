// Package tokens 将代币符号映射为指定链上的合约地址。
package tokens

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://li.quest"
	defaultTimeout = 15 * time.Second
)

// Token 是钱包所需的代币元数据子集。
type Token struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
	ChainID  int64  `json:"chainId"`
	Name     string `json:"name"`
}

// Lookup 在 chainID 对应的链上查找 symbol 登记的代币。
type Lookup interface {
	FindToken(ctx context.Context, chainID int64, symbol string) (*Token, error)
}

// Config 描述 LI.FI 代币查询服务。
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// LiFiClient 请求 `GET {base}/v1/token?chain={id}&token={symbol}`。
type LiFiClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewLiFiClient 使用默认值构造客户端。
func NewLiFiClient(cfg Config) *LiFiClient {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &LiFiClient{
		baseURL:    baseURL,
		apiKey:     strings.TrimSpace(cfg.APIKey),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// FindToken 返回代币元数据，符号未知时返回错误。
func (c *LiFiClient) FindToken(ctx context.Context, chainID int64, symbol string) (*Token, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return nil, errors.New("token symbol is empty")
	}

	query := url.Values{}
	query.Set("chain", strconv.FormatInt(chainID, 10))
	query.Set("token", symbol)
	endpoint := c.baseURL + "/v1/token?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-lifi-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("lookup token %s: %w", symbol, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("token service returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var token Token
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}
	if strings.TrimSpace(token.Address) == "" {
		return nil, fmt.Errorf("token %s has no address on chain %d", symbol, chainID)
	}
	return &token, nil
}

// Static 是以链 ID 与大写符号为键的内存查询表。
type Static map[int64]map[string]string

// FindToken 返回配置的代币，未配置时返回错误。
func (s Static) FindToken(_ context.Context, chainID int64, symbol string) (*Token, error) {
	sym := strings.ToUpper(strings.TrimSpace(symbol))
	addr, ok := s[chainID][sym]
	if !ok {
		return nil, fmt.Errorf("token %s not listed on chain %d", symbol, chainID)
	}
	return &Token{Address: addr, Symbol: sym, ChainID: chainID}, nil
}

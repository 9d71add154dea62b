// Package goldrush 从 GoldRush（Covalent）索引服务获取合约交易历史。
package goldrush

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"TaikoMCP-Chain/internal/analytics"
	"TaikoMCP-Chain/internal/web3"
	"TaikoMCP-Chain/pkg/logger"
)

const (
	defaultBaseURL  = "https://api.covalenthq.com"
	defaultPageSize = 1000
	defaultMaxPages = 10
	defaultTimeout  = 30 * time.Second
)

// Config 描述索引服务的访问参数。
type Config struct {
	APIKey   string
	BaseURL  string
	PageSize int
	MaxPages int
	Timeout  time.Duration
}

// Client 基于 transactions_v2 接口实现 analytics.HistoryFetcher。
type Client struct {
	apiKey     string
	baseURL    string
	pageSize   int
	maxPages   int
	httpClient *http.Client
	logger     *slog.Logger
}

var _ analytics.HistoryFetcher = (*Client)(nil)

// NewClient 校验配置并创建客户端。
func NewClient(cfg Config) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("goldrush api key is required")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	maxPages := cfg.MaxPages
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		apiKey:     apiKey,
		baseURL:    baseURL,
		pageSize:   pageSize,
		maxPages:   maxPages,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.Named("goldrush"),
	}, nil
}

type envelope struct {
	Data struct {
		Items      []item `json:"items"`
		Pagination *struct {
			HasMore    bool `json:"has_more"`
			PageNumber int  `json:"page_number"`
		} `json:"pagination"`
	} `json:"data"`
	Error        bool   `json:"error"`
	ErrorMessage string `json:"error_message"`
	ErrorCode    *int   `json:"error_code"`
}

type item struct {
	BlockSignedAt string      `json:"block_signed_at"`
	TxHash        string      `json:"tx_hash"`
	GasSpent      json.Number `json:"gas_spent"`
	FromAddress   string      `json:"from_address"`
	ToAddress     *string     `json:"to_address"`
}

// FetchHistory 按分页返回合约的全部索引交易，最多读取配置的页数。
// 达到页数上限而索引服务仍报告有更多数据时记录告警，此时结果缺少最早的交易。
func (c *Client) FetchHistory(ctx context.Context, chain web3.ChainConfig, contract string) ([]analytics.TransactionRecord, error) {
	slug := strings.TrimSpace(chain.IndexerSlug)
	if slug == "" {
		return nil, fmt.Errorf("chain %s has no indexer slug", chain.Name)
	}

	var records []analytics.TransactionRecord
	for page := 0; page < c.maxPages; page++ {
		env, err := c.fetchPage(ctx, slug, contract, page)
		if err != nil {
			return nil, err
		}
		for i, it := range env.Data.Items {
			rec, err := it.record()
			if err != nil {
				return nil, fmt.Errorf("page %d item %d: %w", page, i, err)
			}
			records = append(records, rec)
		}
		if env.Data.Pagination == nil || !env.Data.Pagination.HasMore {
			return records, nil
		}
	}
	c.logger.Warn("history truncated at page limit",
		slog.String("chain", chain.Name),
		slog.String("contract", contract),
		slog.Int("max_pages", c.maxPages),
		slog.Int("page_size", c.pageSize),
		slog.Int("records", len(records)),
	)
	return records, nil
}

func (c *Client) fetchPage(ctx context.Context, slug, contract string, page int) (*envelope, error) {
	query := url.Values{}
	query.Set("page-size", strconv.Itoa(c.pageSize))
	query.Set("page-number", strconv.Itoa(page))
	endpoint := fmt.Sprintf("%s/v1/%s/address/%s/transactions_v2/?%s",
		c.baseURL, url.PathEscape(slug), url.PathEscape(contract), query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build history request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request history: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("API request failed: %d %s: %s",
			resp.StatusCode, http.StatusText(resp.StatusCode), strings.TrimSpace(string(body)))
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode history response: %w", err)
	}
	if env.Error {
		msg := strings.TrimSpace(env.ErrorMessage)
		if msg == "" {
			msg = "indexer reported an error"
		}
		return nil, errors.New(msg)
	}
	return &env, nil
}

func (it item) record() (analytics.TransactionRecord, error) {
	ts, err := time.Parse(time.RFC3339, strings.TrimSpace(it.BlockSignedAt))
	if err != nil {
		return analytics.TransactionRecord{}, fmt.Errorf("bad block_signed_at %q: %w", it.BlockSignedAt, err)
	}
	from := strings.TrimSpace(it.FromAddress)
	if from == "" {
		return analytics.TransactionRecord{}, fmt.Errorf("transaction %s has no from_address", it.TxHash)
	}
	var gas uint64
	if raw := it.GasSpent.String(); raw != "" {
		gas, err = strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return analytics.TransactionRecord{}, fmt.Errorf("bad gas_spent %q: %w", raw, err)
		}
	}
	var to string
	if it.ToAddress != nil {
		to = strings.TrimSpace(*it.ToAddress)
	}
	return analytics.TransactionRecord{Timestamp: ts, GasSpent: gas, From: from, To: to}, nil
}

// Package names 将可读的账户名称（例如 ENS 或 Web3 域名）解析为十六进制地址。
package names

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

const (
	defaultBaseURL = "https://api.ensideas.com/ens/resolve"
	defaultTimeout = 15 * time.Second
)

// Resolver 查询名称注册的地址，未注册的名称返回空地址与 nil 错误。
type Resolver interface {
	Lookup(ctx context.Context, name string) (string, error)
}

// Config 描述 HTTP 域名解析服务。
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// HTTPResolver 请求 `GET {base}/{name}`，期望返回 `{"address": "0x..."}`。
type HTTPResolver struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPResolver 使用默认值构造解析器。
func NewHTTPResolver(cfg Config) *HTTPResolver {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &HTTPResolver{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Lookup 解析名称，404 与 null 地址均表示未注册。
func (r *HTTPResolver) Lookup(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", nil
	}

	endpoint := r.baseURL + "/" + url.PathEscape(name)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("build name lookup request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("lookup %s: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", nil
	}
	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("name service returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var decoded struct {
		Address *string `json:"address"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode name lookup response: %w", err)
	}
	if decoded.Address == nil {
		return "", nil
	}
	return strings.TrimSpace(*decoded.Address), nil
}

// Static 是以小写名称为键的内存解析器。
type Static map[string]string

// Lookup 返回配置的地址，未配置时返回空字符串。
func (s Static) Lookup(_ context.Context, name string) (string, error) {
	return s[strings.ToLower(strings.TrimSpace(name))], nil
}

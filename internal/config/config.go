package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/crypto"

	"TaikoMCP-Chain/internal/web3"
	"TaikoMCP-Chain/pkg/logger"
)

// 支持的环境变量，优先级高于配置文件。
const (
	EnvConfigPath  = "TAIKOMCP_CONFIG"
	EnvPrivateKey  = "TAIKO_PRIVATE_KEY"
	EnvProviderURL = "TAIKO_PROVIDER_URL"
	EnvGoldRushKey = "GOLDRUSH_API_KEY"
	EnvOpenAIKey   = "OPENAI_API_KEY"
)

// Config 描述了 TaikoMCP 在启动阶段需要加载的核心配置。
type Config struct {
	Server    ServerConfig    `json:"server"`
	Logger    logger.Config   `json:"logger"`
	Metrics   MetricsConfig   `json:"metrics"`
	Auth      AuthConfig      `json:"auth"`
	Web3      Web3Config      `json:"web3"`
	Names     NamesConfig     `json:"names"`
	Tokens    TokensConfig    `json:"tokens"`
	Analytics AnalyticsConfig `json:"analytics"`
	LLM       LLMConfig       `json:"llm"`
	Alerting  AlertingConfig  `json:"alerting"`
}

// ServerConfig 控制 API 服务的监听地址等参数。
type ServerConfig struct {
	Address         string   `json:"address"`
	ShutdownTimeout Duration `json:"shutdown_timeout"`
}

// MetricsConfig 控制 Prometheus 指标的暴露方式。
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// AuthConfig 列出允许访问 API 的静态令牌，为空时不启用鉴权。
type AuthConfig struct {
	Tokens []string `json:"tokens"`
}

// Web3Config 包含签名私钥、默认链与可选的链定义文件。
type Web3Config struct {
	PrivateKey  string `json:"private_key"`
	ProviderURL string `json:"provider_url"`
	ActiveChain string `json:"active_chain"`
	ChainsFile  string `json:"chains_file"`
}

// NamesConfig 配置域名解析服务。
type NamesConfig struct {
	BaseURL string   `json:"base_url"`
	Timeout Duration `json:"timeout"`
}

// TokensConfig 配置代币信息查询服务。ListFile 指向本地代币清单，优先于远程查询。
type TokensConfig struct {
	BaseURL  string   `json:"base_url"`
	APIKey   string   `json:"api_key"`
	Timeout  Duration `json:"timeout"`
	ListFile string   `json:"list_file"`
}

// AnalyticsConfig 配置交易历史索引服务。
type AnalyticsConfig struct {
	APIKey   string   `json:"api_key"`
	BaseURL  string   `json:"base_url"`
	PageSize int      `json:"page_size"`
	MaxPages int      `json:"max_pages"`
	Timeout  Duration `json:"timeout"`
}

// LLMConfig 用于配置参数提取所用的大模型。
type LLMConfig struct {
	Provider string   `json:"provider"`
	APIKey   string   `json:"api_key"`
	BaseURL  string   `json:"base_url"`
	Model    string   `json:"model"`
	Timeout  Duration `json:"timeout"`
}

// AlertingConfig 配置动作失败告警的 Webhook 地址，为空时不发送告警。
type AlertingConfig struct {
	WebhookURL string   `json:"webhook_url"`
	Timeout    Duration `json:"timeout"`
}

// Duration 支持以 "30s"、"1m" 形式书写的时长。
type Duration struct {
	time.Duration
}

// UnmarshalJSON 接受字符串时长或纳秒整数。
func (d *Duration) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case nil:
		d.Duration = 0
	case float64:
		d.Duration = time.Duration(v)
	case string:
		if strings.TrimSpace(v) == "" {
			d.Duration = 0
			return nil
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("无效的时长 %q: %w", v, err)
		}
		d.Duration = parsed
	default:
		return fmt.Errorf("无效的时长 %s", string(data))
	}
	return nil
}

// MarshalJSON 以字符串形式输出时长。
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// Load 负责解析指定路径的 JSON 配置文件。路径为空时使用 TAIKOMCP_CONFIG，
// 两者都为空则仅使用默认值与环境变量。
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}

	var cfg Config
	baseDir := "."
	if path != "" {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("打开配置文件失败: %w", err)
		}
		defer file.Close()

		content, err := io.ReadAll(file)
		if err != nil {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
		if err := json.Unmarshal(content, &cfg); err != nil {
			return nil, fmt.Errorf("解析配置失败: %w", err)
		}
		baseDir = filepath.Dir(path)
	}

	cfg.applyEnv(os.LookupEnv)
	cfg.applyDefaults(baseDir)

	return &cfg, nil
}

// applyEnv 使用环境变量覆盖敏感字段。
func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	override := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	override(EnvPrivateKey, &c.Web3.PrivateKey)
	override(EnvProviderURL, &c.Web3.ProviderURL)
	override(EnvGoldRushKey, &c.Analytics.APIKey)
	override(EnvOpenAIKey, &c.LLM.APIKey)
}

// applyDefaults 在用户未填写部分字段时设置合理的默认值。
func (c *Config) applyDefaults(baseDir string) {
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}
	if c.Server.ShutdownTimeout.Duration <= 0 {
		c.Server.ShutdownTimeout.Duration = 10 * time.Second
	}

	if c.Logger.Level == "" {
		c.Logger.Level = "info"
	}
	if c.Logger.Format == "" {
		c.Logger.Format = "json"
	}
	if c.Logger.Audit.Enabled && c.Logger.Audit.Path != "" && !filepath.IsAbs(c.Logger.Audit.Path) {
		c.Logger.Audit.Path = filepath.Join(baseDir, c.Logger.Audit.Path)
	}

	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}

	if c.Web3.ActiveChain == "" {
		c.Web3.ActiveChain = web3.ChainTaiko
	}
	if c.Web3.ChainsFile != "" && !filepath.IsAbs(c.Web3.ChainsFile) {
		c.Web3.ChainsFile = filepath.Join(baseDir, c.Web3.ChainsFile)
	}
	if c.Tokens.ListFile != "" && !filepath.IsAbs(c.Tokens.ListFile) {
		c.Tokens.ListFile = filepath.Join(baseDir, c.Tokens.ListFile)
	}

	if c.Analytics.PageSize <= 0 {
		c.Analytics.PageSize = 1000
	}
	if c.Analytics.MaxPages <= 0 {
		c.Analytics.MaxPages = 10
	}

	if c.LLM.Provider == "" {
		c.LLM.Provider = "openai"
	}
	if c.LLM.Timeout.Duration <= 0 {
		c.LLM.Timeout.Duration = 60 * time.Second
	}
}

// Validate 检查启动所需的必填项。签名私钥与索引服务密钥必须存在，
// 自定义 RPC 地址必须是 http(s) 地址。
func (c *Config) Validate() error {
	var problems []string

	key := strings.TrimPrefix(strings.TrimSpace(c.Web3.PrivateKey), "0x")
	if key == "" {
		problems = append(problems, "Taiko private key is required")
	} else if _, err := crypto.HexToECDSA(key); err != nil {
		problems = append(problems, "Taiko private key is invalid: "+err.Error())
	}
	if strings.TrimSpace(c.Analytics.APIKey) == "" {
		problems = append(problems, "GoldRush API key is required")
	}
	if url := strings.TrimSpace(c.Web3.ProviderURL); url != "" &&
		!strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		problems = append(problems, "Taiko provider URL must be an http(s) URL")
	}
	if c.LLM.Provider != "openai" {
		problems = append(problems, fmt.Sprintf("unsupported llm provider %q", c.LLM.Provider))
	}

	if len(problems) > 0 {
		return errors.New("Taiko configuration validation failed:\n" + strings.Join(problems, "\n"))
	}
	return nil
}

// ChainTemplates 返回内置链模板，叠加链定义文件与 TAIKO_PROVIDER_URL 覆盖。
func (c *Config) ChainTemplates() (map[string]web3.ChainConfig, error) {
	chains := web3.BuiltinChains()

	defs, err := web3.LoadChainDefinitions(c.Web3.ChainsFile)
	if err != nil {
		return nil, err
	}
	if err := defs.Apply(chains); err != nil {
		return nil, err
	}

	if url := strings.TrimSpace(c.Web3.ProviderURL); url != "" {
		active := c.Web3.ActiveChain
		chain, ok := chains[active]
		if !ok {
			return nil, fmt.Errorf("unknown active chain %q", active)
		}
		chain.CustomRPCURL = url
		chains[active] = chain
	}
	return chains, nil
}

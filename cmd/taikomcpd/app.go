package main

import (
	"context"
	"fmt"

	"TaikoMCP-Chain/internal/agent"
	"TaikoMCP-Chain/internal/analytics"
	"TaikoMCP-Chain/internal/analytics/goldrush"
	"TaikoMCP-Chain/internal/config"
	"TaikoMCP-Chain/internal/llm/openai"
	"TaikoMCP-Chain/internal/observability/alerting"
	"TaikoMCP-Chain/internal/observability/metrics"
	"TaikoMCP-Chain/internal/web3/names"
	"TaikoMCP-Chain/internal/web3/provider"
	"TaikoMCP-Chain/internal/web3/tokens"
	"TaikoMCP-Chain/pkg/logger"
)

// app 汇总一次进程运行所需的组件。
type app struct {
	cfg      *config.Config
	registry *provider.Registry
	agent    *agent.Agent
	metrics  *metrics.Recorder
}

// loadApp 加载配置、初始化日志并装配智能体。validate 为 false 时跳过必填项校验。
func loadApp(_ context.Context, validate bool) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if validate {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	if err := logger.Init(cfg.Logger); err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}

	templates, err := cfg.ChainTemplates()
	if err != nil {
		return nil, err
	}
	registry, err := provider.NewRegistry(
		provider.EthereumDialer(cfg.Web3.PrivateKey),
		provider.WithTemplates(templates),
		provider.WithActive(cfg.Web3.ActiveChain),
	)
	if err != nil {
		return nil, err
	}

	var fetcher analytics.HistoryFetcher
	if cfg.Analytics.APIKey != "" {
		client, err := goldrush.NewClient(goldrush.Config{
			APIKey:   cfg.Analytics.APIKey,
			BaseURL:  cfg.Analytics.BaseURL,
			PageSize: cfg.Analytics.PageSize,
			MaxPages: cfg.Analytics.MaxPages,
			Timeout:  cfg.Analytics.Timeout.Duration,
		})
		if err != nil {
			return nil, err
		}
		fetcher = client
	}

	var tokenLookup tokens.Chain
	if cfg.Tokens.ListFile != "" {
		list, err := tokens.LoadStatic(cfg.Tokens.ListFile)
		if err != nil {
			return nil, err
		}
		tokenLookup = append(tokenLookup, list)
	}
	tokenLookup = append(tokenLookup, tokens.NewLiFiClient(tokens.Config{
		BaseURL: cfg.Tokens.BaseURL,
		APIKey:  cfg.Tokens.APIKey,
		Timeout: cfg.Tokens.Timeout.Duration,
	}))

	recorder := metrics.NewRecorder()
	opts := []agent.Option{
		agent.WithObserver(recorder),
		agent.WithLLMTimeout(cfg.LLM.Timeout.Duration),
	}
	if cfg.LLM.APIKey != "" {
		extractor, err := openai.NewClient(openai.Config{
			APIKey:  cfg.LLM.APIKey,
			BaseURL: cfg.LLM.BaseURL,
			Model:   cfg.LLM.Model,
			Timeout: cfg.LLM.Timeout.Duration,
		})
		if err != nil {
			return nil, err
		}
		opts = append(opts, agent.WithExtractor(extractor))
	} else {
		logger.L().Warn("未配置 OpenAI API Key，对话接口不可用")
	}
	if cfg.Alerting.WebhookURL != "" {
		opts = append(opts, agent.WithAlerts(alerting.NewFanout(
			alerting.NewWebhookNotifier(cfg.Alerting.WebhookURL, cfg.Alerting.Timeout.Duration),
		)))
	}

	ag := agent.New(
		registry,
		names.NewHTTPResolver(names.Config{BaseURL: cfg.Names.BaseURL, Timeout: cfg.Names.Timeout.Duration}),
		tokenLookup,
		analytics.NewService(fetcher),
		opts...,
	)

	return &app{cfg: cfg, registry: registry, agent: ag, metrics: recorder}, nil
}

// Close 释放链客户端并刷新日志。
func (a *app) Close() {
	a.registry.Close()
	_ = logger.Sync()
}

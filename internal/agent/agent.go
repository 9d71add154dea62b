package agent

import (
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"TaikoMCP-Chain/internal/analytics"
	xerrors "TaikoMCP-Chain/internal/errors"
	"TaikoMCP-Chain/internal/llm"
	"TaikoMCP-Chain/internal/observability/alerting"
	"TaikoMCP-Chain/internal/wallet"
	"TaikoMCP-Chain/internal/web3"
	"TaikoMCP-Chain/internal/web3/names"
	"TaikoMCP-Chain/internal/web3/provider"
	"TaikoMCP-Chain/internal/web3/tokens"
	"TaikoMCP-Chain/pkg/logger"
)

// 动作名称，与参数提取模板一一对应。
const (
	ActionTransfer  = string(llm.ActionTransfer)
	ActionBalance   = string(llm.ActionBalance)
	ActionAnalytics = string(llm.ActionAnalytics)
)

// SourceDirect 表示来自用户直接对话的消息，只有这类消息允许触发转账。
const SourceDirect = "direct"

// CodeActionNotAllowed 表示当前来源不允许执行该动作。
const CodeActionNotAllowed xerrors.Code = "ACTION_NOT_ALLOWED"

func init() {
	xerrors.Register(CodeActionNotAllowed, xerrors.Attributes{
		Message:  "Transfer not allowed",
		Severity: xerrors.SeverityWarning,
	})
}

// ActionResult 是动作返回给调用方的文本与结构化内容；失败时 Content 为 {"error": msg}。
type ActionResult struct {
	RequestID string `json:"request_id"`
	Action    string `json:"action"`
	Text      string `json:"text"`
	Content   any    `json:"content"`
}

// AnalyticsRequest 描述一次合约分析请求。
type AnalyticsRequest struct {
	Chain           string `json:"chain"`
	ContractAddress string `json:"contract_address"`
}

// Intent 是一条待处理的对话消息。
type Intent struct {
	Action   string   `json:"action"`
	Message  string   `json:"message"`
	History  []string `json:"history,omitempty"`
	Source   string   `json:"source"`
	Defaults Defaults `json:"-"`
}

// Defaults 是参数提取缺失时使用的默认值。
type Defaults struct {
	Chain string
}

// Observer 接收每次动作的结果，用于指标统计。
type Observer interface {
	ObserveAction(action, outcome string, elapsed time.Duration)
}

// Agent 将钱包、分析与参数提取能力组合为面向对话的动作。
type Agent struct {
	registry   *provider.Registry
	names      names.Resolver
	tokens     tokens.Lookup
	analytics  *analytics.Service
	extractor  llm.Extractor
	observer   Observer
	alerts     alerting.Dispatcher
	llmTimeout time.Duration
	logger     *slog.Logger
}

// Option 定义可选的 Agent 配置。
type Option func(*Agent)

// WithExtractor 配置参数提取器，Handle 依赖它。
func WithExtractor(extractor llm.Extractor) Option {
	return func(a *Agent) {
		a.extractor = extractor
	}
}

// WithObserver 配置动作观察者。
func WithObserver(observer Observer) Option {
	return func(a *Agent) {
		a.observer = observer
	}
}

// WithAlerts 配置告警分发器，严重级别为 critical 的失败会触发告警。
func WithAlerts(dispatcher alerting.Dispatcher) Option {
	return func(a *Agent) {
		a.alerts = dispatcher
	}
}

// WithLLMTimeout 设置调用大模型的超时时间。
func WithLLMTimeout(timeout time.Duration) Option {
	return func(a *Agent) {
		if timeout <= 0 {
			a.llmTimeout = 0
			return
		}
		a.llmTimeout = timeout
	}
}

// New 创建一个 Agent。registry 作为模板，每个动作都会派生独立会话。
func New(registry *provider.Registry, resolver names.Resolver, lookup tokens.Lookup, analyticsSvc *analytics.Service, opts ...Option) *Agent {
	ag := &Agent{
		registry:  registry,
		names:     resolver,
		tokens:    lookup,
		analytics: analyticsSvc,
		logger:    logger.Named("agent"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(ag)
		}
	}
	return ag
}

// Chains 返回全部可用链的配置，按名称排序。
func (a *Agent) Chains() []web3.ChainConfig {
	session := a.registry.Clone()
	defer session.Close()

	chainNames := session.Chains()
	chains := make([]web3.ChainConfig, 0, len(chainNames))
	for _, name := range chainNames {
		if chain, err := session.Resolve(name); err == nil {
			chains = append(chains, chain)
		}
	}
	return chains
}

// Transfer 执行原生币或代币转账。
func (a *Agent) Transfer(ctx context.Context, req wallet.TransferRequest) (*ActionResult, error) {
	start := time.Now()
	session := a.registry.Clone()
	defer session.Close()

	transferer := wallet.NewTransferer(session, wallet.NewAddressResolver(a.names), wallet.NewAssetResolver(a.tokens))
	res, err := transferer.Execute(ctx, req)
	if err != nil {
		return a.fail(ActionTransfer, "Transfer failed", err, start)
	}

	chain := session.Active()
	text := fmt.Sprintf("Successfully transferred %s %s to %s\n\nLink to explorer: %s",
		res.Amount, res.Token, res.Recipient, chain.TxURL(res.TxHash))
	return a.succeed(ActionTransfer, text, res, start), nil
}

// GetBalance 查询地址余额。
func (a *Agent) GetBalance(ctx context.Context, req wallet.BalanceRequest) (*ActionResult, error) {
	start := time.Now()
	session := a.registry.Clone()
	defer session.Close()

	svc := wallet.NewBalanceService(session, wallet.NewAddressResolver(a.names), wallet.NewAssetResolver(a.tokens))
	res, err := svc.Query(ctx, req)
	if err != nil {
		return a.fail(ActionBalance, "Fetching failed", err, start)
	}

	chain := session.Active()
	text := fmt.Sprintf("%s has %s %s in %s.", res.Address, res.Balance.Amount, res.Balance.Token, chain.DisplayName)
	return a.succeed(ActionBalance, text, res, start), nil
}

// GetAnalytics 汇总合约最近 1/7/30 天的链上活动。
func (a *Agent) GetAnalytics(ctx context.Context, req AnalyticsRequest) (*ActionResult, error) {
	start := time.Now()
	summary, err := a.analyze(ctx, req)
	if err != nil {
		return a.fail(ActionAnalytics, "Analytics Process failed", err, start)
	}
	return a.succeed(ActionAnalytics, "Here you go,\n"+analytics.RenderReport(summary), summary, start), nil
}

func (a *Agent) analyze(ctx context.Context, req AnalyticsRequest) (analytics.Summary, error) {
	if a.analytics == nil {
		return analytics.Summary{}, xerrors.New(xerrors.CodeInitializationFailure, "analytics service is not configured")
	}
	name := strings.TrimSpace(req.Chain)
	if name == "" {
		return analytics.Summary{}, xerrors.New(xerrors.CodeMissingChain, "")
	}
	session := a.registry.Clone()
	defer session.Close()

	chain, err := session.Switch(name, "")
	if err != nil {
		return analytics.Summary{}, err
	}
	return a.analytics.Analyze(ctx, chain, req.ContractAddress)
}

// WalletInfo 返回当前签名钱包的地址、余额与激活链信息，供参数提取时参考。
func (a *Agent) WalletInfo(ctx context.Context) (string, error) {
	session := a.registry.Clone()
	defer session.Close()

	chain := session.Active()
	client, err := session.Client(ctx, chain.Name)
	if err != nil {
		return "", err
	}
	sender, err := client.Sender()
	if err != nil {
		return "", err
	}
	balance, err := client.NativeBalance(ctx, sender)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Taiko chain Wallet Address: %s\nBalance: %s %s\nChain ID: %d, Name: %s",
		sender.Hex(), wallet.FormatUnits(balance, chain.NativeDecimals), chain.NativeSymbol, chain.ID, chain.DisplayName), nil
}

// Handle 通过大模型从消息中提取参数，再分派到对应动作。
func (a *Agent) Handle(ctx context.Context, intent Intent) (*ActionResult, error) {
	action := strings.ToLower(strings.TrimSpace(intent.Action))
	switch action {
	case ActionTransfer, ActionBalance, ActionAnalytics:
	default:
		return nil, xerrors.New(xerrors.CodeInvalidArgument, fmt.Sprintf("unsupported action %q", intent.Action))
	}
	if action == ActionTransfer && intent.Source != SourceDirect {
		err := xerrors.New(CodeActionNotAllowed, "")
		a.observe(action, "refused", 0)
		return &ActionResult{
			RequestID: uuid.NewString(),
			Action:    action,
			Text:      "I can't do that for you.",
			Content:   map[string]string{"error": err.Message()},
		}, err
	}
	if a.extractor == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "未配置参数提取器")
	}

	var walletInfo string
	if action != ActionAnalytics {
		info, err := a.WalletInfo(ctx)
		if err != nil {
			a.logger.Warn("wallet info unavailable", logger.Err(err))
		}
		walletInfo = info
	}

	extractCtx := ctx
	if a.llmTimeout > 0 {
		var cancel context.CancelFunc
		extractCtx, cancel = context.WithTimeout(ctx, a.llmTimeout)
		defer cancel()
	}
	messages := append(append([]string(nil), intent.History...), intent.Message)
	params, err := a.extractor.Extract(extractCtx, llm.ExtractRequest{
		Action:     llm.Action(action),
		Messages:   messages,
		WalletInfo: walletInfo,
	})
	if err != nil {
		if stdErrors.Is(err, context.DeadlineExceeded) {
			return nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "参数提取超时")
		}
		return nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "参数提取失败")
	}

	chain := params.Get("chain")
	if chain == "" {
		chain = intent.Defaults.Chain
	}
	if chain == "" {
		chain = web3.ChainTaiko
	}

	switch action {
	case ActionTransfer:
		return a.Transfer(ctx, wallet.TransferRequest{
			Chain:     chain,
			Token:     params.Get("token"),
			Amount:    params.Get("amount"),
			ToAddress: params.Get("toAddress"),
			Data:      params.Get("data"),
		})
	case ActionBalance:
		address := params.Get("address")
		if address == "" {
			address = a.SignerAddress(ctx)
		}
		return a.GetBalance(ctx, wallet.BalanceRequest{
			Chain:   chain,
			Address: address,
			Token:   params.Get("token"),
		})
	default:
		return a.GetAnalytics(ctx, AnalyticsRequest{
			Chain:           chain,
			ContractAddress: params.Get("contractAddress"),
		})
	}
}

// SignerAddress 返回签名钱包地址，获取失败时返回空串，由余额查询报告缺失地址。
func (a *Agent) SignerAddress(ctx context.Context) string {
	session := a.registry.Clone()
	defer session.Close()

	client, err := session.Client(ctx, session.Active().Name)
	if err != nil {
		return ""
	}
	sender, err := client.Sender()
	if err != nil {
		return ""
	}
	return sender.Hex()
}

func (a *Agent) succeed(action, text string, content any, start time.Time) *ActionResult {
	requestID := uuid.NewString()
	a.logger.Info("action completed",
		slog.String("request_id", requestID),
		slog.String("action", action),
		slog.Duration("elapsed", time.Since(start)),
	)
	a.observe(action, "success", time.Since(start))
	return &ActionResult{RequestID: requestID, Action: action, Text: text, Content: content}
}

func (a *Agent) fail(action, prefix string, err error, start time.Time) (*ActionResult, error) {
	requestID := uuid.NewString()
	msg := xerrors.Describe(err)
	a.logger.Error("action failed",
		slog.String("request_id", requestID),
		slog.String("action", action),
		slog.String("error_code", string(xerrors.CodeOf(err))),
		logger.Err(err),
	)
	a.observe(action, "failure", time.Since(start))
	a.alert(action, requestID, err)
	return &ActionResult{
		RequestID: requestID,
		Action:    action,
		Text:      prefix + ": " + msg,
		Content:   map[string]string{"error": msg},
	}, err
}

func (a *Agent) alert(action, requestID string, err error) {
	if a.alerts == nil || xerrors.SeverityOf(err) != xerrors.SeverityCritical {
		return
	}
	event := alerting.Event{
		Code:       xerrors.CodeOf(err),
		Message:    xerrors.Describe(err),
		Severity:   xerrors.SeverityCritical,
		Action:     action,
		RequestID:  requestID,
		OccurredAt: time.Now(),
	}
	if e, ok := xerrors.From(err); ok {
		event.Metadata = e.Metadata()
	}
	// 使用独立上下文，避免调用方取消导致告警丢失。
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if notifyErr := a.alerts.Notify(ctx, event); notifyErr != nil {
		a.logger.Warn("alert dispatch failed", slog.String("request_id", requestID), logger.Err(notifyErr))
	}
}

func (a *Agent) observe(action, outcome string, elapsed time.Duration) {
	if a.observer != nil {
		a.observer.ObserveAction(action, outcome, elapsed)
	}
}

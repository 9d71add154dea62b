package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"TaikoMCP-Chain/internal/agent"
	"TaikoMCP-Chain/internal/auth"
	xerrors "TaikoMCP-Chain/internal/errors"
	"TaikoMCP-Chain/internal/observability/metrics"
	"TaikoMCP-Chain/internal/wallet"
	"TaikoMCP-Chain/pkg/logger"
)

// maxBodyBytes 限制请求体大小。
const maxBodyBytes = 1 << 20

// Server 负责暴露 REST 接口，供外部驱动智能体执行。
type Server struct {
	addr            string
	agent           *agent.Agent
	guard           *auth.TokenGuard
	metrics         *metrics.Recorder
	metricsPath     string
	shutdownTimeout time.Duration
}

// Option 定义可选的服务配置。
type Option func(*Server)

// WithGuard 配置鉴权守卫。
func WithGuard(guard *auth.TokenGuard) Option {
	return func(s *Server) {
		s.guard = guard
	}
}

// WithMetrics 配置指标记录器以及暴露路径。
func WithMetrics(recorder *metrics.Recorder, path string) Option {
	return func(s *Server) {
		s.metrics = recorder
		if path != "" {
			s.metricsPath = path
		}
	}
}

// WithShutdownTimeout 设置优雅关闭的等待时间。
func WithShutdownTimeout(timeout time.Duration) Option {
	return func(s *Server) {
		if timeout > 0 {
			s.shutdownTimeout = timeout
		}
	}
}

// NewServer 构造 API 服务实例。
func NewServer(addr string, ag *agent.Agent, opts ...Option) *Server {
	s := &Server{
		addr:            addr,
		agent:           ag,
		metricsPath:     "/metrics",
		shutdownTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Handler 返回完整的路由。健康检查与指标端点不经过鉴权。
func (s *Server) Handler() http.Handler {
	api := http.NewServeMux()
	s.route(api, "/api/v1/actions/transfer", s.handleTransfer)
	s.route(api, "/api/v1/actions/balance", s.handleBalance)
	s.route(api, "/api/v1/actions/analytics", s.handleAnalytics)
	s.route(api, "/api/v1/chat", s.handleChat)
	s.route(api, "/api/v1/chains", s.handleChains)

	mux := http.NewServeMux()
	mux.Handle("/api/", s.guard.Middleware(api))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.metrics != nil {
		mux.Handle(s.metricsPath, s.metrics.Handler())
	}
	return mux
}

func (s *Server) route(mux *http.ServeMux, pattern string, handler http.HandlerFunc) {
	var h http.Handler = handler
	if s.metrics != nil {
		h = s.metrics.Middleware(pattern, h)
	}
	mux.Handle(pattern, h)
}

// Start 启动 HTTP 服务，直到上下文取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	// 配置 HTTP 服务器。
	server := &http.Server{
		Addr:              s.addr,
		Handler:           withContext(ctx, s.Handler()),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// 启动服务器并监听关闭信号。
	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req wallet.TransferRequest
	if !s.decode(w, r, &req) {
		return
	}
	logger.Audit().Info("transfer_requested",
		"caller", callerOf(r),
		"chain", req.Chain,
		"token", req.Token,
		"to", req.ToAddress,
	)
	res, err := s.agent.Transfer(r.Context(), req)
	writeResult(w, res, err)
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	var req wallet.BalanceRequest
	if !s.decode(w, r, &req) {
		return
	}
	res, err := s.agent.GetBalance(r.Context(), req)
	writeResult(w, res, err)
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	var req agent.AnalyticsRequest
	if !s.decode(w, r, &req) {
		return
	}
	res, err := s.agent.GetAnalytics(r.Context(), req)
	writeResult(w, res, err)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var intent agent.Intent
	if !s.decode(w, r, &intent) {
		return
	}
	logger.Audit().Info("chat_requested", "caller", callerOf(r), "action", intent.Action, "source", intent.Source)
	res, err := s.agent.Handle(r.Context(), intent)
	writeResult(w, res, err)
}

func (s *Server) handleChains(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "仅支持 GET", http.StatusMethodNotAllowed)
		return
	}
	if s.agent == nil {
		http.Error(w, "Agent 未初始化", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"chains": s.agent.Chains()})
}

// decode 校验方法并解析请求体，失败时直接写回错误响应。
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Method != http.MethodPost {
		http.Error(w, "仅支持 POST", http.StatusMethodNotAllowed)
		return false
	}
	if s.agent == nil {
		http.Error(w, "Agent 未初始化", http.StatusServiceUnavailable)
		return false
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"code":  string(xerrors.CodeInvalidArgument),
			"error": "请求体解析失败: " + err.Error(),
		})
		return false
	}
	return true
}

// callerOf 返回鉴权后的调用方名称，未启用鉴权时为 anonymous。
func callerOf(r *http.Request) string {
	if name, ok := auth.CallerFromContext(r.Context()); ok {
		return name
	}
	return "anonymous"
}

type errorBody struct {
	*agent.ActionResult
	Code string `json:"code"`
}

func writeResult(w http.ResponseWriter, res *agent.ActionResult, err error) {
	if err == nil {
		writeJSON(w, http.StatusOK, res)
		return
	}
	status := StatusFor(err)
	if res == nil {
		res = &agent.ActionResult{Text: xerrors.Describe(err), Content: map[string]string{"error": xerrors.Describe(err)}}
	}
	writeJSON(w, status, errorBody{ActionResult: res, Code: string(xerrors.CodeOf(err))})
}

// StatusFor 将错误码映射为 HTTP 状态码：参数问题 400，未找到 404，拒绝 403，其余 502。
func StatusFor(err error) int {
	switch xerrors.CodeOf(err) {
	case xerrors.CodeInvalidArgument,
		xerrors.CodeEmptyIdentifier,
		xerrors.CodeMissingAddress,
		xerrors.CodeMissingRecipient,
		xerrors.CodeMissingChain,
		xerrors.CodeMissingAmount,
		xerrors.CodeInvalidAmount:
		return http.StatusBadRequest
	case xerrors.CodeUnknownChain,
		xerrors.CodeUnresolvedName,
		xerrors.CodeTokenNotFound:
		return http.StatusNotFound
	case agent.CodeActionNotAllowed:
		return http.StatusForbidden
	case xerrors.CodeInitializationFailure:
		return http.StatusServiceUnavailable
	case xerrors.CodeBalanceQueryFailed:
		// 余额查询会包裹校验类错误，以内层错误码为准。
		if e, ok := xerrors.From(err); ok {
			if inner := e.Unwrap(); inner != nil && xerrors.CodeOf(inner) != xerrors.CodeUnknown {
				return StatusFor(inner)
			}
		}
		return http.StatusBadGateway
	default:
		return http.StatusBadGateway
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// withContext 确保请求处理能够感知根上下文取消。
func withContext(ctx context.Context, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-ctx.Done():
			http.Error(w, "服务已关闭", http.StatusServiceUnavailable)
			return
		default:
		}
		handler.ServeHTTP(w, r)
	})
}

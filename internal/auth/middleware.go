package auth

import (
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	loggerpkg "TaikoMCP-Chain/pkg/logger"
)

// 鉴权过程中返回的错误。
var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid token")
)

// Subject 描述通过鉴权的调用方。
type Subject struct {
	Name string
}

// TokenGuard 使用静态 Bearer 令牌保护 API。令牌格式为 "name:secret" 或仅 "secret"。
type TokenGuard struct {
	tokens map[string]string
	audit  *slog.Logger
}

// NewTokenGuard 根据令牌列表构造守卫；列表为空时守卫放行所有请求。
func NewTokenGuard(tokens []string) *TokenGuard {
	g := &TokenGuard{tokens: make(map[string]string, len(tokens))}
	for idx, raw := range tokens {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		name, secret, ok := strings.Cut(raw, ":")
		if !ok || strings.TrimSpace(secret) == "" {
			name, secret = "client-"+strconv.Itoa(idx+1), raw
		}
		g.tokens[strings.TrimSpace(secret)] = strings.TrimSpace(name)
	}
	return g
}

// Enabled 表示是否配置了令牌。
func (g *TokenGuard) Enabled() bool {
	return g != nil && len(g.tokens) > 0
}

// Authenticate 校验 Authorization 头并返回对应主体。
func (g *TokenGuard) Authenticate(header string) (*Subject, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil, ErrMissingToken
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return nil, ErrMissingToken
	}
	token = strings.TrimSpace(token)
	for secret, name := range g.tokens {
		if subtle.ConstantTimeCompare([]byte(secret), []byte(token)) == 1 {
			return &Subject{Name: name}, nil
		}
	}
	return nil, ErrInvalidToken
}

// Middleware 返回一个 HTTP 中间件，用于处理身份认证并记录审计日志。
func (g *TokenGuard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !g.Enabled() {
			next.ServeHTTP(w, r)
			return
		}
		subject, err := g.Authenticate(r.Header.Get("Authorization"))
		if err != nil {
			status := http.StatusUnauthorized
			http.Error(w, http.StatusText(status), status)
			g.logger().Warn("access_denied",
				"path", r.URL.Path,
				"method", r.Method,
				"status", status,
				"error", err.Error(),
			)
			return
		}

		// 记录审计日志。
		start := time.Now()
		aw := &auditWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(aw, r.WithContext(WithSubject(r.Context(), subject)))
		g.logger().Info("api_request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", aw.status,
			"duration_ms", time.Since(start).Milliseconds(),
			"client", subject.Name,
		)
	})
}

func (g *TokenGuard) logger() *slog.Logger {
	if g.audit != nil {
		return g.audit
	}
	return loggerpkg.Audit()
}

// auditWriter 是一个包装了 http.ResponseWriter 的结构体，用于捕获响应状态码。
type auditWriter struct {
	http.ResponseWriter
	status int
}

// WriteHeader 捕获响应状态码并调用底层的 WriteHeader 方法。
func (w *auditWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

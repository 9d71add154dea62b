package errors

import (
	stdErrors "errors"
	"fmt"
	"maps"
	"sync"
)

// Code 表示系统内的统一错误码。
type Code string

// Severity 描述错误的严重程度，用于日志与审计。
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Attributes 为错误码提供默认行为。
type Attributes struct {
	Message  string
	Severity Severity
}

const (
	CodeUnknown               Code = "UNKNOWN"
	CodeInvalidArgument       Code = "INVALID_ARGUMENT"
	CodeInitializationFailure Code = "INITIALIZATION_FAILURE"

	CodeUnknownChain         Code = "UNKNOWN_CHAIN"
	CodeEmptyIdentifier      Code = "EMPTY_IDENTIFIER"
	CodeMissingAddress       Code = "MISSING_ADDRESS"
	CodeMissingRecipient     Code = "MISSING_RECIPIENT"
	CodeMissingChain         Code = "MISSING_CHAIN"
	CodeMissingAmount        Code = "MISSING_AMOUNT"
	CodeInvalidAmount        Code = "INVALID_AMOUNT"
	CodeUnresolvedName       Code = "UNRESOLVED_NAME"
	CodeTokenNotFound        Code = "TOKEN_NOT_FOUND"
	CodeTransferNotConfirmed Code = "TRANSFER_NOT_CONFIRMED"
	CodeTransferFailed       Code = "TRANSFER_FAILED"
	CodeBalanceQueryFailed   Code = "BALANCE_QUERY_FAILED"
	CodeHistoryFetchFailed   Code = "HISTORY_FETCH_FAILED"
)

var (
	registryMu sync.RWMutex
	registry   = map[Code]Attributes{
		CodeUnknown:               {Message: "unknown error", Severity: SeverityCritical},
		CodeInvalidArgument:       {Message: "invalid argument", Severity: SeverityInfo},
		CodeInitializationFailure: {Message: "service not initialized", Severity: SeverityWarning},
		CodeUnknownChain:          {Message: "invalid chain name", Severity: SeverityInfo},
		CodeEmptyIdentifier:       {Message: "empty address", Severity: SeverityInfo},
		CodeMissingAddress:        {Message: "no address provided", Severity: SeverityInfo},
		CodeMissingRecipient:      {Message: "recipient address is missing", Severity: SeverityInfo},
		CodeMissingChain:          {Message: "chain parameter is missing", Severity: SeverityInfo},
		CodeMissingAmount:         {Message: "amount is required for native token transfer", Severity: SeverityInfo},
		CodeInvalidAmount:         {Message: "invalid amount provided", Severity: SeverityInfo},
		CodeUnresolvedName:        {Message: "invalid address", Severity: SeverityInfo},
		CodeTokenNotFound:         {Message: "token not found", Severity: SeverityInfo},
		CodeTransferNotConfirmed:  {Message: "transaction hash is invalid", Severity: SeverityCritical},
		CodeTransferFailed:        {Message: "transfer failed", Severity: SeverityWarning},
		CodeBalanceQueryFailed:    {Message: "failed to fetch balance", Severity: SeverityWarning},
		CodeHistoryFetchFailed:    {Message: "failed to fetch transaction data", Severity: SeverityWarning},
	}
)

// Register 允许业务模块在初始化阶段注册新的错误码描述。
func Register(code Code, attr Attributes) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[code] = attr
}

// AttributesOf 返回错误码对应的属性。若未注册则返回 UNKNOWN 的属性。
func AttributesOf(code Code) Attributes {
	registryMu.RLock()
	defer registryMu.RUnlock()
	if attr, ok := registry[code]; ok {
		return attr
	}
	return registry[CodeUnknown]
}

// Error 携带错误码、面向用户的描述以及可选的底层原因。
type Error struct {
	code     Code
	message  string
	cause    error
	metadata map[string]string
	severity Severity // 为空时取错误码注册的默认值
}

// Option 定义可选配置。
type Option func(*Error)

// WithMetadata 附加额外信息。
func WithMetadata(key, value string) Option {
	return func(e *Error) {
		if e.metadata == nil {
			e.metadata = make(map[string]string)
		}
		e.metadata[key] = value
	}
}

// WithSeverity 覆盖默认严重程度。
func WithSeverity(sev Severity) Option {
	return func(e *Error) {
		e.severity = sev
	}
}

// New 创建一个新的错误实例。message 为空时使用错误码的默认描述。
func New(code Code, message string, opts ...Option) *Error {
	if message == "" {
		message = AttributesOf(code).Message
	}
	e := &Error{code: code, message: message}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Wrap 在已有错误外包裹统一错误类型。
func Wrap(code Code, cause error, message string, opts ...Option) *Error {
	e := New(code, message, opts...)
	e.cause = cause
	return e
}

// Error 实现 error 接口。
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.code, e.message)
}

// Detail 返回不带错误码前缀的可读描述，适合直接展示给终端用户。
func (e *Error) Detail() string {
	if e == nil {
		return ""
	}
	if e.cause == nil {
		return e.message
	}
	var inner *Error
	if stdErrors.As(e.cause, &inner) {
		return e.message + ": " + inner.Detail()
	}
	return e.message + ": " + e.cause.Error()
}

// Unwrap 实现 errors.Unwrap。
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Code 返回错误码。
func (e *Error) Code() Code {
	if e == nil {
		return CodeUnknown
	}
	return e.code
}

// Message 返回错误信息。
func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

// Metadata 返回附加信息。
func (e *Error) Metadata() map[string]string {
	if e == nil || len(e.metadata) == 0 {
		return nil
	}
	return maps.Clone(e.metadata)
}

// Severity 返回错误严重程度。
func (e *Error) Severity() Severity {
	if e == nil {
		return SeverityInfo
	}
	if e.severity != "" {
		return e.severity
	}
	return AttributesOf(e.code).Severity
}

// From 尝试从 error 中解析统一错误类型。
func From(err error) (*Error, bool) {
	if err == nil {
		return nil, false
	}
	var target *Error
	if stdErrors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// CodeOf 返回错误链最外层的错误码。
func CodeOf(err error) Code {
	if e, ok := From(err); ok {
		return e.Code()
	}
	return CodeUnknown
}

// HasCode 沿错误链逐层查找，任意一层带有 code 即返回 true。
func HasCode(err error, code Code) bool {
	for err != nil {
		e, ok := From(err)
		if !ok {
			return false
		}
		if e.code == code {
			return true
		}
		err = e.cause
	}
	return false
}

// SeverityOf 返回错误严重程度。
func SeverityOf(err error) Severity {
	if e, ok := From(err); ok {
		return e.Severity()
	}
	return AttributesOf(CodeUnknown).Severity
}

// Describe 返回面向用户的错误描述；非统一错误直接返回 err.Error()。
func Describe(err error) string {
	if err == nil {
		return ""
	}
	if e, ok := From(err); ok {
		return e.Detail()
	}
	return err.Error()
}

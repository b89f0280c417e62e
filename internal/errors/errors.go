package errors

import (
	stdErrors "errors"
	"fmt"
	"log/slog"
)

// Code 错误码，决定日志级别以及是否值得重试
type Code string

const (
	CodeUnknown          Code = "UNKNOWN"
	CodeInvalidArgument  Code = "INVALID_ARGUMENT"
	CodeTimeout          Code = "TIMEOUT"
	CodeLLMFailure       Code = "LLM_FAILURE"
	CodeUpstreamFailure  Code = "UPSTREAM_FAILURE"
	CodeConfigInvalid    Code = "CONFIG_INVALID"
	CodeRetriesExhausted Code = "RETRIES_EXHAUSTED"
	CodeCacheFailure     Code = "CACHE_FAILURE"
)

// MetaStatus 上游 HTTP 状态码
const MetaStatus = "status"

type codeInfo struct {
	message   string
	level     slog.Level
	retryable bool
}

// TIMEOUT 不重试：一次超时已经用完了本轮的时间预算
var codes = map[Code]codeInfo{
	CodeUnknown:          {"unknown error", slog.LevelError, false},
	CodeInvalidArgument:  {"invalid argument", slog.LevelInfo, false},
	CodeTimeout:          {"operation timed out", slog.LevelWarn, false},
	CodeLLMFailure:       {"llm request failed", slog.LevelWarn, true},
	CodeUpstreamFailure:  {"upstream request failed", slog.LevelWarn, true},
	CodeConfigInvalid:    {"invalid configuration", slog.LevelError, false},
	CodeRetriesExhausted: {"retries exhausted", slog.LevelError, false},
	CodeCacheFailure:     {"cache failure", slog.LevelInfo, true},
}

func infoOf(code Code) codeInfo {
	if info, ok := codes[code]; ok {
		return info
	}
	return codes[CodeUnknown]
}

// Error 带错误码的错误
type Error struct {
	code      Code
	message   string
	cause     error
	meta      map[string]string
	retryable *bool
}

type Option func(*Error)

// WithMeta 附加键值信息，例如上游状态码
func WithMeta(key, value string) Option {
	return func(e *Error) {
		if e.meta == nil {
			e.meta = make(map[string]string)
		}
		e.meta[key] = value
	}
}

// WithRetryable 覆盖错误码默认的重试属性
func WithRetryable(retryable bool) Option {
	return func(e *Error) { e.retryable = &retryable }
}

// New 创建错误，message 为空时使用错误码默认信息
func New(code Code, message string, opts ...Option) *Error {
	if message == "" {
		message = infoOf(code).message
	}
	e := &Error{code: code, message: message}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Wrap 包裹已有错误
func Wrap(code Code, cause error, message string, opts ...Option) *Error {
	e := New(code, message, opts...)
	e.cause = cause
	return e
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.code, e.message)
}

func (e *Error) Unwrap() error { return e.cause }

// Is 按错误码比较
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && e.code == t.code
}

func (e *Error) Code() Code { return e.code }

// Message 不含 cause 的信息
func (e *Error) Message() string { return e.message }

// Meta 返回附加信息，不存在时为空串
func (e *Error) Meta(key string) string { return e.meta[key] }

// From 从错误链中取出第一个 *Error
func From(err error) (*Error, bool) {
	var target *Error
	if err != nil && stdErrors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// CodeOf 返回错误码，非 *Error 为 UNKNOWN
func CodeOf(err error) Code {
	if e, ok := From(err); ok {
		return e.code
	}
	return CodeUnknown
}

// Retryable 判断错误是否值得重试；nil 与非 *Error 都不重试
func Retryable(err error) bool {
	e, ok := From(err)
	if !ok {
		return false
	}
	if e.retryable != nil {
		return *e.retryable
	}
	return infoOf(e.code).retryable
}

// LevelOf 错误码对应的日志级别
func LevelOf(code Code) slog.Level { return infoOf(code).level }

// Level 错误对应的日志级别
func Level(err error) slog.Level { return LevelOf(CodeOf(err)) }

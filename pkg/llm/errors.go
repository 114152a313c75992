package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// ErrorKind 错误类型
type ErrorKind int

const (
	KindNone      ErrorKind = iota
	KindNetwork             // 网络瞬时错误
	KindRateLimit           // 429 / 配额耗尽
	KindServer              // 服务端错误（5xx）
	KindClient              // 客户端错误（4xx）
	KindPermanent           // 其他错误
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindNetwork:
		return "network"
	case KindRateLimit:
		return "rate_limit"
	case KindServer:
		return "server"
	case KindClient:
		return "client"
	default:
		return "permanent"
	}
}

// ErrEmptyResponse 模型没有返回任何候选
var ErrEmptyResponse = errors.New("llm returned no choices")

// APIError 归一化后的 SDK 错误
type APIError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("llm api error %d: %s", e.StatusCode, e.Message)
	}
	return "llm api error: " + e.Message
}

func (e *APIError) Unwrap() error {
	return e.Err
}

var rateLimitPatterns = []string{
	"429",
	"rate limit",
	"rate_limit",
	"too many requests",
	"quota",
	"resource_exhausted",
	"resource exhausted",
}

var networkPatterns = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"no such host",
	"i/o timeout",
	"network is unreachable",
}

// Classify 对调用错误分类
func Classify(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindPermanent
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == 429:
			return KindRateLimit
		case apiErr.StatusCode >= 500:
			if containsAny(apiErr.Message, rateLimitPatterns) {
				return KindRateLimit
			}
			return KindServer
		case apiErr.StatusCode >= 400:
			if containsAny(apiErr.Message, rateLimitPatterns[1:]) {
				return KindRateLimit
			}
			return KindClient
		}
	}

	msg := err.Error()
	if containsAny(msg, rateLimitPatterns) {
		return KindRateLimit
	}

	var netErr net.Error
	if errors.As(err, &netErr) || containsAny(msg, networkPatterns) {
		return KindNetwork
	}
	return KindPermanent
}

// IsRateLimit 是否是限流错误
func IsRateLimit(err error) bool {
	return Classify(err) == KindRateLimit
}

func containsAny(s string, patterns []string) bool {
	s = strings.ToLower(s)
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

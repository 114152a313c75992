package translate

import (
	"errors"
	"fmt"
)

// 预定义错误
var (
	// ErrNoKeyPool 未配置密钥池
	ErrNoKeyPool = errors.New("api key pool not configured")

	// ErrEmptyText 空文本
	ErrEmptyText = errors.New("empty text provided")

	// ErrRateLimitExhausted 轮换和冷却重试都用尽
	ErrRateLimitExhausted = errors.New("rate limit retries exhausted")
)

// 错误代码
const (
	ErrCodeValidation = "VALIDATION_ERROR"
	ErrCodeLLM        = "LLM_ERROR"
	ErrCodeRateLimit  = "RATE_LIMIT_ERROR"
	ErrCodeResponse   = "RESPONSE_ERROR"
)

// TranslationError 单个分块的翻译错误
type TranslationError struct {
	Code    string // 错误代码
	Message string // 错误消息
	ChunkID string // 出错的分块
	Cause   error  // 原因
}

func (e *TranslationError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.ChunkID != "" {
		msg += fmt.Sprintf(" (chunk %s)", e.ChunkID)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap 返回原因错误
func (e *TranslationError) Unwrap() error {
	return e.Cause
}

// NewTranslationError 创建翻译错误
func NewTranslationError(code, chunkID, message string, cause error) *TranslationError {
	return &TranslationError{
		Code:    code,
		Message: message,
		ChunkID: chunkID,
		Cause:   cause,
	}
}

// IsRateLimitExhausted 是否是限流重试用尽导致的终止
func IsRateLimitExhausted(err error) bool {
	return errors.Is(err, ErrRateLimitExhausted)
}

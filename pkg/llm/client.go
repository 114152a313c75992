// Package llm 定义抽象的模型调用接口及其基于 SDK 的实现。
// 密钥在每次调用时传入，以便上层按密钥池轮换。
package llm

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// SDK 名称
const (
	SDKOpenAI   = "openai"
	SDKGoOpenAI = "go-openai"
)

// DefaultBaseURL Gemini 的 OpenAI 兼容端点
const DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"

// Request 一次模型调用
type Request struct {
	Model       string
	System      string
	Prompt      string
	ImageJPEG   []byte // 非空时以 data URL 形式附带图片
	Temperature float64
	MaxTokens   int
}

// Usage token 用量
type Usage struct {
	Input  int `json:"input"`
	Output int `json:"output"`
	Total  int `json:"total"`
}

// Add 累加用量
func (u *Usage) Add(other *Usage) {
	if other == nil {
		return
	}
	u.Input += other.Input
	u.Output += other.Output
	u.Total += other.Total
}

// Response 模型响应
type Response struct {
	Text  string
	Model string
	Usage *Usage
}

// Client 模型调用接口
type Client interface {
	Complete(ctx context.Context, apiKey string, req Request) (*Response, error)
}

// Config 客户端配置
type Config struct {
	SDK       string
	BaseURL   string
	Timeout   time.Duration
	RPMLimit  int
	UserAgent string
}

// New 按配置创建客户端，并在配置了 RPM 时加上限速
func New(cfg Config, logger *zap.Logger) (Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}

	var client Client
	switch strings.ToLower(cfg.SDK) {
	case "", SDKOpenAI:
		client = NewOpenAIClient(cfg, logger)
	case SDKGoOpenAI:
		client = NewGoOpenAIClient(cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported llm sdk: %s", cfg.SDK)
	}

	return WithRateLimit(client, cfg.RPMLimit), nil
}

// ImageDataURL 把 JPEG 编码为 data URL
func ImageDataURL(jpeg []byte) string {
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(jpeg)
}

func snippet(s string) string {
	const max = 80
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}

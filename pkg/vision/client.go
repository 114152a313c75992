// Package vision 把渲染后的页面图片交给模型转写为 Markdown，并可选地让模型自检结果。
package vision

import (
	"context"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/nerdneilsfield/guided-translator/pkg/keypool"
	"github.com/nerdneilsfield/guided-translator/pkg/layout"
	"github.com/nerdneilsfield/guided-translator/pkg/llm"
	"github.com/nerdneilsfield/guided-translator/pkg/pdf"
)

// Validation 自检结果
type Validation struct {
	IsValid    bool     `json:"isValid"`
	Confidence int      `json:"confidence"`
	Issues     []string `json:"issues"`
}

// DefaultValidation 自检响应无法解析时的乐观结果
var DefaultValidation = Validation{IsValid: true, Confidence: 70}

// Options 视觉客户端参数
type Options struct {
	Model           string
	MaxOutputTokens int
}

// Client 视觉提取客户端，与翻译共用同一个密钥池
type Client struct {
	llm    llm.Client
	pool   *keypool.Pool
	opts   Options
	logger *zap.Logger
}

// NewClient 创建视觉提取客户端
func NewClient(client llm.Client, pool *keypool.Pool, opts Options, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxOutputTokens <= 0 {
		opts.MaxOutputTokens = 8192
	}
	return &Client{llm: client, pool: pool, opts: opts, logger: logger}
}

// RenderOptionsFor 复杂页面用更高的分辨率和质量
func RenderOptionsFor(c layout.Complexity) pdf.RenderOptions {
	if c == layout.ComplexityComplex {
		return pdf.RenderOptions{Scale: 2.0, Quality: 0.9}
	}
	return pdf.RenderOptions{Scale: 1.5, Quality: 0.8}
}

// ExtractPage 转写一页图片。依次尝试池中每个密钥，全部失败时返回 *keypool.AggregateError。
func (c *Client) ExtractPage(ctx context.Context, image []byte, complexity layout.Complexity) (string, error) {
	req := llm.Request{
		Model:       c.opts.Model,
		Prompt:      PromptFor(complexity),
		ImageJPEG:   image,
		Temperature: 0.1,
		MaxTokens:   c.opts.MaxOutputTokens,
	}

	text, err := keypool.RunWithFailover(ctx, c.pool.Keys(), func(ctx context.Context, key keypool.APIKey) (string, error) {
		resp, err := c.llm.Complete(ctx, key.Key, req)
		if err != nil {
			c.logger.Warn("视觉提取失败，尝试下一个密钥",
				zap.String("key", keypool.Mask(key.Key)),
				zap.String("kind", llm.Classify(err).String()),
				zap.Error(err))
			return "", err
		}
		return resp.Text, nil
	})
	if err != nil {
		return "", err
	}

	text = StripFences(text)
	if text == "" {
		return "", fmt.Errorf("vision extraction: %w", llm.ErrEmptyResponse)
	}
	return text, nil
}

// Validate 让模型对照图片检查转写结果。调用失败时返回错误；响应无法解析时返回 DefaultValidation。
func (c *Client) Validate(ctx context.Context, image []byte, markdown string) (Validation, error) {
	req := llm.Request{
		Model:       c.opts.Model,
		Prompt:      validationPrompt(markdown),
		ImageJPEG:   image,
		Temperature: 0,
		MaxTokens:   1024,
	}
	raw, err := keypool.RunWithFailover(ctx, c.pool.Keys(), func(ctx context.Context, key keypool.APIKey) (string, error) {
		resp, err := c.llm.Complete(ctx, key.Key, req)
		if err != nil {
			return "", err
		}
		return resp.Text, nil
	})
	if err != nil {
		return Validation{}, err
	}
	return ParseValidation(raw), nil
}

// ParseValidation 从模型响应中取出第一个 JSON 对象
func ParseValidation(raw string) Validation {
	body := StripFences(raw)
	start := strings.Index(body, "{")
	end := strings.LastIndex(body, "}")
	if start < 0 || end <= start {
		return DefaultValidation
	}
	body = body[start : end+1]
	if !gjson.Valid(body) {
		return DefaultValidation
	}

	result := gjson.Parse(body)
	valid := result.Get("isValid")
	confidence := result.Get("confidence")
	if !valid.Exists() || !confidence.Exists() {
		return DefaultValidation
	}

	v := Validation{
		IsValid:    valid.Bool(),
		Confidence: clamp(int(confidence.Int()), 0, 100),
	}
	result.Get("issues").ForEach(func(_, issue gjson.Result) bool {
		if s := strings.TrimSpace(issue.String()); s != "" {
			v.Issues = append(v.Issues, s)
		}
		return true
	})
	return v
}

// StripFences 去掉包裹整个响应的代码围栏
func StripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	lines := strings.Split(text, "\n")
	lines = lines[1:]
	if n := len(lines); n > 0 && strings.TrimSpace(lines[n-1]) == "```" {
		lines = lines[:n-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

package test

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/nerdneilsfield/guided-translator/pkg/llm"
)

// MockLLMClient 基于 testify/mock 的 llm.Client
type MockLLMClient struct {
	mock.Mock
}

// Complete 执行完成请求
func (m *MockLLMClient) Complete(ctx context.Context, apiKey string, req llm.Request) (*llm.Response, error) {
	args := m.Called(ctx, apiKey, req)
	resp, _ := args.Get(0).(*llm.Response)
	return resp, args.Error(1)
}

// Call 记录的一次调用
type Call struct {
	APIKey  string
	Request llm.Request
}

// FuncClient 用函数实现 llm.Client，并记录每次调用
type FuncClient struct {
	Fn func(n int, apiKey string, req llm.Request) (*llm.Response, error)

	mu    sync.Mutex
	calls []Call
}

// Complete 调用 Fn，n 从 0 开始计数
func (c *FuncClient) Complete(ctx context.Context, apiKey string, req llm.Request) (*llm.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	n := len(c.calls)
	c.calls = append(c.calls, Call{APIKey: apiKey, Request: req})
	c.mu.Unlock()
	return c.Fn(n, apiKey, req)
}

// Calls 返回调用记录
func (c *FuncClient) Calls() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Call, len(c.calls))
	copy(out, c.calls)
	return out
}

// Keys 返回按调用顺序使用过的密钥
func (c *FuncClient) Keys() []string {
	calls := c.Calls()
	keys := make([]string, len(calls))
	for i, call := range calls {
		keys[i] = call.APIKey
	}
	return keys
}

// Text 构造一个只含文本的响应
func Text(s string) *llm.Response {
	return &llm.Response{Text: s, Usage: &llm.Usage{Input: 10, Output: 5, Total: 15}}
}

// RateLimited 构造 429 错误
func RateLimited() error {
	return &llm.APIError{StatusCode: 429, Message: "Resource has been exhausted (e.g. check quota)."}
}

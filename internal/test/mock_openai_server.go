package test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tidwall/gjson"
)

// MockRequest 记录一次请求
type MockRequest struct {
	APIKey   string
	Model    string
	System   string
	User     string
	HasImage bool
}

// MockOpenAIServer 模拟 OpenAI 兼容的 chat/completions 端点。
// 可以为指定密钥设置失败状态码，用来模拟限流。
type MockOpenAIServer struct {
	Server          *httptest.Server
	URL             string
	DefaultResponse string

	mu         sync.Mutex
	failByKey  map[string]int
	responseFn func(MockRequest) string
	requests   []MockRequest
}

// NewMockOpenAIServer 创建模拟服务器，测试结束时自动关闭
func NewMockOpenAIServer(t *testing.T) *MockOpenAIServer {
	mock := &MockOpenAIServer{
		DefaultResponse: "这是翻译后的文本",
		failByKey:       make(map[string]int),
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		body, err := io.ReadAll(r.Body)
		if err != nil || !gjson.ValidBytes(body) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error": {"message": "无法解析请求体", "type": "invalid_request_error"}}`))
			return
		}

		req := parseMockRequest(body)
		req.APIKey = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")

		mock.mu.Lock()
		mock.requests = append(mock.requests, req)
		status := mock.failByKey[req.APIKey]
		response := mock.DefaultResponse
		if mock.responseFn != nil {
			response = mock.responseFn(req)
		}
		mock.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if status != 0 {
			w.WriteHeader(status)
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"error": map[string]interface{}{
					"message": "Resource has been exhausted (e.g. check quota).",
					"type":    "rate_limit_error",
					"code":    status,
				},
			})
			return
		}

		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":      "chatcmpl-mock",
			"object":  "chat.completion",
			"created": time.Now().Unix(),
			"model":   req.Model,
			"choices": []map[string]interface{}{
				{
					"message": map[string]interface{}{
						"role":    "assistant",
						"content": response,
					},
					"finish_reason": "stop",
					"index":         0,
				},
			},
			"usage": map[string]interface{}{
				"prompt_tokens":     100,
				"completion_tokens": 50,
				"total_tokens":      150,
			},
		})
	}))

	mock.Server = server
	mock.URL = server.URL + "/v1/"

	t.Cleanup(func() {
		server.Close()
	})

	return mock
}

// content 可能是字符串，也可能是多段数组
func parseMockRequest(body []byte) MockRequest {
	req := MockRequest{Model: gjson.GetBytes(body, "model").String()}
	gjson.GetBytes(body, "messages").ForEach(func(_, msg gjson.Result) bool {
		content := msg.Get("content")
		var text strings.Builder
		if content.IsArray() {
			content.ForEach(func(_, part gjson.Result) bool {
				switch part.Get("type").String() {
				case "text":
					text.WriteString(part.Get("text").String())
				case "image_url":
					if strings.HasPrefix(part.Get("image_url.url").String(), "data:image/jpeg;base64,") {
						req.HasImage = true
					}
				}
				return true
			})
		} else {
			text.WriteString(content.String())
		}
		switch msg.Get("role").String() {
		case "system":
			req.System = text.String()
		case "user":
			req.User = text.String()
		}
		return true
	})
	return req
}

// FailKey 让指定密钥的请求返回 status
func (m *MockOpenAIServer) FailKey(key string, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failByKey[key] = status
}

// SetResponseFunc 按请求内容生成响应
func (m *MockOpenAIServer) SetResponseFunc(fn func(MockRequest) string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responseFn = fn
}

// SetDefaultResponse 设置默认响应
func (m *MockOpenAIServer) SetDefaultResponse(response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DefaultResponse = response
}

// Requests 返回已收到的请求
func (m *MockOpenAIServer) Requests() []MockRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// GoOpenAIClient 基于 sashabaranov/go-openai 的实现
type GoOpenAIClient struct {
	cfg        Config
	logger     *zap.Logger
	httpClient *http.Client
}

// NewGoOpenAIClient 创建 go-openai 客户端
func NewGoOpenAIClient(cfg Config, logger *zap.Logger) *GoOpenAIClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GoOpenAIClient{
		cfg:        cfg,
		logger:     logger,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// Complete 执行一次对话补全
func (c *GoOpenAIClient) Complete(ctx context.Context, apiKey string, req Request) (*Response, error) {
	conf := goopenai.DefaultConfig(apiKey)
	conf.BaseURL = strings.TrimSuffix(c.cfg.BaseURL, "/")
	conf.HTTPClient = c.httpClient
	client := goopenai.NewClientWithConfig(conf)

	messages := make([]goopenai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, goopenai.ChatCompletionMessage{
			Role:    goopenai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	user := goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleUser}
	if len(req.ImageJPEG) > 0 {
		user.MultiContent = []goopenai.ChatMessagePart{
			{Type: goopenai.ChatMessagePartTypeText, Text: req.Prompt},
			{
				Type: goopenai.ChatMessagePartTypeImageURL,
				ImageURL: &goopenai.ChatMessageImageURL{
					URL:    ImageDataURL(req.ImageJPEG),
					Detail: goopenai.ImageURLDetailHigh,
				},
			},
		}
	} else {
		user.Content = req.Prompt
	}
	messages = append(messages, user)

	c.logger.Debug("发送模型请求",
		zap.String("sdk", SDKGoOpenAI),
		zap.String("model", req.Model),
		zap.Bool("image", len(req.ImageJPEG) > 0),
		zap.String("prompt", snippet(req.Prompt)))

	resp, err := client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: float32(req.Temperature),
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return nil, normalizeGoOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrEmptyResponse
	}

	return &Response{
		Text:  resp.Choices[0].Message.Content,
		Model: resp.Model,
		Usage: &Usage{
			Input:  resp.Usage.PromptTokens,
			Output: resp.Usage.CompletionTokens,
			Total:  resp.Usage.TotalTokens,
		},
	}, nil
}

func normalizeGoOpenAIError(err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return &APIError{StatusCode: apiErr.HTTPStatusCode, Message: apiErr.Message, Err: err}
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return &APIError{StatusCode: reqErr.HTTPStatusCode, Message: reqErr.Error(), Err: err}
	}
	return err
}

package llm

import (
	"context"
	"errors"
	"net/http"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"
)

// OpenAIClient 基于 openai-go 的实现。SDK 自带的重试被关闭，
// 限流由上层的轮换协议处理。
type OpenAIClient struct {
	cfg        Config
	logger     *zap.Logger
	httpClient *http.Client
}

// NewOpenAIClient 创建 openai-go 客户端
func NewOpenAIClient(cfg Config, logger *zap.Logger) *OpenAIClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OpenAIClient{
		cfg:        cfg,
		logger:     logger,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// Complete 执行一次对话补全
func (c *OpenAIClient) Complete(ctx context.Context, apiKey string, req Request) (*Response, error) {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithBaseURL(c.cfg.BaseURL),
		option.WithMaxRetries(0),
		option.WithHTTPClient(c.httpClient),
	}
	if c.cfg.UserAgent != "" {
		opts = append(opts, option.WithHeader("User-Agent", c.cfg.UserAgent))
	}
	client := openai.NewClient(opts...)

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	if len(req.ImageJPEG) > 0 {
		parts := []openai.ChatCompletionContentPartUnionParam{
			openai.TextContentPart(req.Prompt),
			openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
				URL:    ImageDataURL(req.ImageJPEG),
				Detail: "high",
			}),
		}
		messages = append(messages, openai.UserMessage(parts))
	} else {
		messages = append(messages, openai.UserMessage(req.Prompt))
	}

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(req.Model),
		Messages:    messages,
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	c.logger.Debug("发送模型请求",
		zap.String("sdk", SDKOpenAI),
		zap.String("model", req.Model),
		zap.Bool("image", len(req.ImageJPEG) > 0),
		zap.String("prompt", snippet(req.Prompt)))

	completion, err := client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, normalizeOpenAIError(err)
	}
	if len(completion.Choices) == 0 {
		return nil, ErrEmptyResponse
	}

	return &Response{
		Text:  completion.Choices[0].Message.Content,
		Model: completion.Model,
		Usage: &Usage{
			Input:  int(completion.Usage.PromptTokens),
			Output: int(completion.Usage.CompletionTokens),
			Total:  int(completion.Usage.TotalTokens),
		},
	}, nil
}

func normalizeOpenAIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &APIError{StatusCode: apiErr.StatusCode, Message: apiErr.Error(), Err: err}
	}
	return err
}

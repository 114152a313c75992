// Package translate 逐块调用模型完成带术语约束的翻译，并实现限流恢复协议：
// 先轮换密钥，全部密钥都被限流后进入可中断的冷却倒计时。
package translate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nerdneilsfield/guided-translator/pkg/chunk"
	"github.com/nerdneilsfield/guided-translator/pkg/glossary"
	"github.com/nerdneilsfield/guided-translator/pkg/keypool"
	"github.com/nerdneilsfield/guided-translator/pkg/llm"
)

// Config 翻译引擎配置
type Config struct {
	Model           string
	Temperature     float64
	MaxOutputTokens int
	CooldownSeconds int
	CooldownTick    time.Duration // 倒计时每一格的时长，测试中可以调小
	MaxRetries      int           // 冷却重试次数上限
}

// DefaultConfig 默认配置
func DefaultConfig() Config {
	return Config{
		Model:           "gemini-2.0-flash",
		Temperature:     0.1,
		MaxOutputTokens: 8192,
		CooldownSeconds: 60,
		CooldownTick:    time.Second,
		MaxRetries:      3,
	}
}

// Status 限流过程中的状态通知
type Status struct {
	Message       string `json:"message"`
	Countdown     int    `json:"countdown,omitempty"`
	Retry         int    `json:"retry,omitempty"`
	MaxRetries    int    `json:"maxRetries,omitempty"`
	KeyIndex      int    `json:"keyIndex"`
	CanSkipToPaid bool   `json:"canSkipToPaid,omitempty"`
}

// StatusFunc 状态回调，可以为 nil
type StatusFunc func(Status)

// TranslatedChunk 翻译后的分块
type TranslatedChunk struct {
	chunk.Chunk
	Translation  string               `json:"translation"`
	MatchedTerms []glossary.TermMatch `json:"matchedTerms"`
	NewTerms     []glossary.NewTerm   `json:"newTerms"`
	TokenUsage   *llm.Usage           `json:"tokenUsage,omitempty"`
	Error        string               `json:"error,omitempty"`
}

// Engine 翻译引擎。同一个密钥池同时只应有一个在途请求。
type Engine struct {
	client llm.Client
	pool   *keypool.Pool
	cfg    Config
	logger *zap.Logger
	skip   chan struct{}
}

// NewEngine 创建翻译引擎，未设置的字段取默认值
func NewEngine(client llm.Client, pool *keypool.Pool, cfg Config, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultConfig()
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.MaxOutputTokens <= 0 {
		cfg.MaxOutputTokens = def.MaxOutputTokens
	}
	if cfg.CooldownSeconds <= 0 {
		cfg.CooldownSeconds = def.CooldownSeconds
	}
	if cfg.CooldownTick <= 0 {
		cfg.CooldownTick = def.CooldownTick
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &Engine{
		client: client,
		pool:   pool,
		cfg:    cfg,
		logger: logger,
		skip:   make(chan struct{}, 1),
	}
}

// Pool 返回引擎使用的密钥池
func (e *Engine) Pool() *keypool.Pool {
	return e.pool
}

// SkipToPaid 把当前密钥直接切到第一个付费密钥，并打断正在进行的冷却。
// 池中没有付费密钥时返回 false。
func (e *Engine) SkipToPaid() bool {
	key, ok := e.pool.SkipToPaid()
	if !ok {
		return false
	}
	e.logger.Info("切换到付费密钥", zap.String("key", keypool.Mask(key.Key)))
	select {
	case e.skip <- struct{}{}:
	default:
	}
	return true
}

// TranslateChunk 翻译单个分块。matcher 可以为 nil。
// 限流重试用尽时返回包装了 ErrRateLimitExhausted 的错误；其他模型错误不重试，直接返回。
func (e *Engine) TranslateChunk(ctx context.Context, c chunk.Chunk, matcher *glossary.Matcher, onStatus StatusFunc) (*TranslatedChunk, error) {
	if e.pool == nil || e.pool.Size() == 0 {
		return nil, NewTranslationError(ErrCodeValidation, c.ID, "no api keys", ErrNoKeyPool)
	}
	if strings.TrimSpace(c.Text) == "" {
		return nil, NewTranslationError(ErrCodeValidation, c.ID, "nothing to translate", ErrEmptyText)
	}
	if matcher == nil {
		matcher, _ = glossary.NewMatcher(nil)
	}
	if onStatus == nil {
		onStatus = func(Status) {}
	}

	relevant := matcher.Relevant(c.Text)
	req := llm.Request{
		Model:       e.cfg.Model,
		System:      systemPrompt,
		Prompt:      BuildPrompt(c.Text, relevant),
		Temperature: e.cfg.Temperature,
		MaxTokens:   e.cfg.MaxOutputTokens,
	}

	keysTried := 0
	retries := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		key := e.pool.Current()
		resp, err := e.client.Complete(ctx, key.Key, req)
		if err == nil {
			translation := CleanResponse(resp.Text)
			if translation == "" {
				return nil, NewTranslationError(ErrCodeResponse, c.ID, "empty translation", llm.ErrEmptyResponse)
			}
			return &TranslatedChunk{
				Chunk:        c,
				Translation:  translation,
				MatchedTerms: matcher.Identify(c.Text),
				NewTerms:     matcher.NewTermCandidates(c.Text),
				TokenUsage:   resp.Usage,
			}, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		if !llm.IsRateLimit(err) {
			e.logger.Warn("翻译调用失败",
				zap.String("chunk", c.ID),
				zap.String("kind", llm.Classify(err).String()),
				zap.Error(err))
			return nil, NewTranslationError(ErrCodeLLM, c.ID, "llm call failed", err)
		}

		keysTried++
		next := e.pool.Rotate()
		e.logger.Warn("密钥被限流，轮换到下一个密钥",
			zap.String("chunk", c.ID),
			zap.String("from", keypool.Mask(key.Key)),
			zap.String("to", keypool.Mask(next.Key)),
			zap.Int("keys_tried", keysTried))

		if keysTried < e.pool.Size() {
			onStatus(Status{
				Message:  fmt.Sprintf("Rate limited, switching to key %d/%d...", e.pool.CurrentIndex()+1, e.pool.Size()),
				KeyIndex: e.pool.CurrentIndex(),
			})
			continue
		}

		if retries >= e.cfg.MaxRetries {
			return nil, NewTranslationError(ErrCodeRateLimit, c.ID,
				fmt.Sprintf("all %d keys rate limited after %d cooldowns", e.pool.Size(), retries),
				fmt.Errorf("%w: %v", ErrRateLimitExhausted, err))
		}
		retries++
		if err := e.cooldown(ctx, retries, onStatus); err != nil {
			return nil, err
		}
		keysTried = 0
	}
}

// cooldown 逐格倒计时；ctx 取消或收到跳转付费密钥信号时提前结束
func (e *Engine) cooldown(ctx context.Context, retry int, onStatus StatusFunc) error {
	select {
	case <-e.skip:
	default:
	}

	canSkip := e.pool.HasPaid()
	ticker := time.NewTicker(e.cfg.CooldownTick)
	defer ticker.Stop()

	e.logger.Info("所有密钥都被限流，进入冷却",
		zap.Int("seconds", e.cfg.CooldownSeconds),
		zap.Int("retry", retry),
		zap.Int("max_retries", e.cfg.MaxRetries))

	for remaining := e.cfg.CooldownSeconds; remaining > 0; {
		onStatus(Status{
			Message:       fmt.Sprintf("All keys rate limited, waiting %ds... (retry %d/%d)", remaining, retry, e.cfg.MaxRetries),
			Countdown:     remaining,
			Retry:         retry,
			MaxRetries:    e.cfg.MaxRetries,
			KeyIndex:      e.pool.CurrentIndex(),
			CanSkipToPaid: canSkip,
		})
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-e.skip:
			onStatus(Status{
				Message:  fmt.Sprintf("Skipped cooldown, using paid key %d/%d", e.pool.CurrentIndex()+1, e.pool.Size()),
				Retry:    retry,
				KeyIndex: e.pool.CurrentIndex(),
			})
			return nil
		case <-ticker.C:
			remaining--
		}
	}
	return nil
}

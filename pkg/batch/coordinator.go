// Package batch 顺序翻译分块：请求之间保持固定间隔，每完成一块立即持久化，
// 并通过一个事件通道报告进度、状态、完成与错误。
package batch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nerdneilsfield/guided-translator/pkg/chunk"
	"github.com/nerdneilsfield/guided-translator/pkg/glossary"
	"github.com/nerdneilsfield/guided-translator/pkg/translate"
)

// DefaultDelay 成功请求之间的间隔
const DefaultDelay = 1500 * time.Millisecond

// ErrInvalidResume 已完成的分块数超过总数
var ErrInvalidResume = errors.New("completed chunks exceed total chunks")

// Translator 单块翻译
type Translator interface {
	TranslateChunk(ctx context.Context, c chunk.Chunk, matcher *glossary.Matcher, onStatus translate.StatusFunc) (*translate.TranslatedChunk, error)
}

// Persister 单块持久化
type Persister interface {
	SaveChunk(ctx context.Context, tc *translate.TranslatedChunk) error
}

// Options 批次参数
type Options struct {
	Delay     time.Duration
	Persister Persister
}

// Coordinator 批次调度器
type Coordinator struct {
	translator Translator
	opts       Options
	logger     *zap.Logger
}

// NewCoordinator 创建调度器
func NewCoordinator(t Translator, opts Options, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Delay < 0 {
		opts.Delay = 0
	}
	return &Coordinator{translator: t, opts: opts, logger: logger}
}

// ErrorPlaceholder 翻译失败的分块使用的占位译文
func ErrorPlaceholder(err error) string {
	return fmt.Sprintf("[Translation Error: %v]", err)
}

// Run 从 len(completed) 处续译剩余分块。输入校验失败时同步返回错误，不发起任何调用。
// 调用方必须读完事件通道；最后一个事件总是 EventDone，随后通道关闭。
func (c *Coordinator) Run(ctx context.Context, chunks []chunk.Chunk, completed []translate.TranslatedChunk, entries []glossary.Entry) (<-chan Event, error) {
	if len(entries) == 0 {
		return nil, glossary.ErrEmptyGlossary
	}
	if len(completed) > len(chunks) {
		return nil, fmt.Errorf("%w: %d > %d", ErrInvalidResume, len(completed), len(chunks))
	}
	matcher, err := glossary.NewMatcher(entries)
	if err != nil {
		return nil, err
	}

	events := make(chan Event, 16)
	go func() {
		defer close(events)
		summary := c.run(ctx, chunks, completed, matcher, events)
		events <- Event{Kind: EventDone, Summary: summary}
	}()
	return events, nil
}

func (c *Coordinator) run(ctx context.Context, chunks []chunk.Chunk, completed []translate.TranslatedChunk, matcher *glossary.Matcher, events chan<- Event) *Summary {
	start := time.Now()
	total := len(chunks)
	resumed := len(completed)

	results := make([]translate.TranslatedChunk, 0, total)
	results = append(results, completed...)

	var matched []glossary.TermMatch
	for _, tc := range completed {
		matched = append(matched, tc.MatchedTerms...)
	}

	summary := &Summary{Total: total, Resumed: resumed}
	finish := func() *Summary {
		summary.Duration = time.Since(start)
		summary.Coverage = glossary.CoverageOf(matched, matcher.Size())
		summary.Chunks = results
		return summary
	}

	onStatus := func(s translate.Status) {
		status := s
		events <- Event{Kind: EventStatus, Status: &status}
	}

	c.logger.Info("开始批量翻译",
		zap.Int("total", total),
		zap.Int("resumed", resumed),
		zap.Duration("delay", c.opts.Delay))

	for i := resumed; i < total; i++ {
		if err := ctx.Err(); err != nil {
			summary.Canceled = true
			return finish()
		}

		current := chunks[i]
		tc, err := c.translator.TranslateChunk(ctx, current, matcher, onStatus)
		if err != nil {
			if ctx.Err() != nil {
				// 被取消的在途分块不记录，续译时重新翻译
				summary.Canceled = true
				return finish()
			}
			c.logger.Warn("分块翻译失败，记录占位译文",
				zap.String("chunk", current.ID),
				zap.Int("position", current.Position),
				zap.Error(err))
			tc = &translate.TranslatedChunk{
				Chunk:        current,
				Translation:  ErrorPlaceholder(err),
				MatchedTerms: matcher.Identify(current.Text),
				Error:        err.Error(),
			}
			summary.Failed++
			events <- Event{Kind: EventError, ChunkID: current.ID, Err: err}
		} else {
			summary.Translated++
			summary.TokenUsage.Add(tc.TokenUsage)
		}

		if c.opts.Persister != nil {
			if err := c.opts.Persister.SaveChunk(ctx, tc); err != nil {
				c.logger.Error("分块持久化失败，停止批次", zap.String("chunk", current.ID), zap.Error(err))
				summary.Err = fmt.Errorf("persist %s: %w", current.ID, err)
				events <- Event{Kind: EventError, ChunkID: current.ID, Err: summary.Err}
				return finish()
			}
		}

		results = append(results, *tc)
		matched = append(matched, tc.MatchedTerms...)

		done := tc
		events <- Event{Kind: EventChunkComplete, Chunk: done}
		events <- Event{Kind: EventProgress, Progress: c.progress(i+1, total, resumed, start, matched, matcher.Size())}

		if tc.Error == "" && i < total-1 && c.opts.Delay > 0 {
			timer := time.NewTimer(c.opts.Delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				summary.Canceled = true
				return finish()
			case <-timer.C:
			}
		}
	}

	c.logger.Info("批量翻译完成",
		zap.Int("translated", summary.Translated),
		zap.Int("failed", summary.Failed),
		zap.Int("total_tokens", summary.TokenUsage.Total))
	return finish()
}

func (c *Coordinator) progress(current, total, resumed int, start time.Time, matched []glossary.TermMatch, glossarySize int) *Progress {
	p := &Progress{
		Current:          current,
		Total:            total,
		GlossaryCoverage: glossary.CoverageOf(matched, glossarySize),
	}
	if total > 0 {
		p.Percentage = current * 100 / total
	}
	if done := current - resumed; done > 0 {
		perChunk := time.Since(start) / time.Duration(done)
		p.EstimatedTimeRemaining = perChunk * time.Duration(total-current)
	}
	return p
}

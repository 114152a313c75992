// Package extract 逐页调度规则重建和视觉提取，输出完整的文档结构。
package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/nerdneilsfield/guided-translator/pkg/layout"
	"github.com/nerdneilsfield/guided-translator/pkg/pdf"
	"github.com/nerdneilsfield/guided-translator/pkg/vision"
)

// DefaultMaxFileBytes 默认文件大小上限
const DefaultMaxFileBytes int64 = 50 * 1024 * 1024

// 各提取方式的置信度
const (
	ConfidenceLegacy   = 80
	ConfidenceVision   = 90
	ConfidenceFallback = 40
	ConfidenceMarkdown = 100
)

var (
	ErrUnsupportedFileType = errors.New("unsupported file type, expected .pdf or .md")
	ErrFileTooLarge        = errors.New("file too large")
	ErrNotEnglish          = errors.New("source document is not English")
)

// Method 单页的提取方式
type Method string

const (
	MethodLegacy   Method = "legacy"
	MethodVision   Method = "vision"
	MethodFallback Method = "fallback"
	MethodMarkdown Method = "markdown"
)

// PageResult 单页提取结果
type PageResult struct {
	Page       int                `json:"page"`
	Complexity layout.Complexity  `json:"complexity"`
	Method     Method             `json:"method"`
	Confidence int                `json:"confidence"`
	Text       string             `json:"-"`
	Validation *vision.Validation `json:"validation,omitempty"`
}

// DocumentStructure 提取的最终产物
type DocumentStructure struct {
	Text        string       `json:"text"`
	Pages       int          `json:"pages"`
	WordCount   int          `json:"wordCount"`
	Language    Language     `json:"language"`
	PageResults []PageResult `json:"pageResults,omitempty"`
}

// RequireEnglish 中文原文不进入翻译
func (d *DocumentStructure) RequireEnglish() error {
	if d.Language == LanguageChinese {
		return ErrNotEnglish
	}
	return nil
}

// PageSource 逐页提供文本片段
type PageSource interface {
	NumPages() int
	PageGlyphs(page int) ([]layout.GlyphRun, error)
}

// PageRenderer 把单页渲染为 JPEG
type PageRenderer interface {
	RenderPage(ctx context.Context, page int, opts pdf.RenderOptions) ([]byte, error)
}

// VisionExtractor 视觉转写与自检
type VisionExtractor interface {
	ExtractPage(ctx context.Context, image []byte, complexity layout.Complexity) (string, error)
	Validate(ctx context.Context, image []byte, markdown string) (vision.Validation, error)
}

// ProgressFunc 页面进度回调
type ProgressFunc func(current, total int)

// Options 提取参数
type Options struct {
	VisionEnabled bool
	Validate      bool
	MaxFileBytes  int64
	OnProgress    ProgressFunc
}

// Extractor 文档提取调度器
type Extractor struct {
	vision VisionExtractor
	opts   Options
	logger *zap.Logger
}

// NewExtractor 创建调度器；vision 为 nil 时所有页面走规则重建
func NewExtractor(v VisionExtractor, opts Options, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxFileBytes <= 0 {
		opts.MaxFileBytes = DefaultMaxFileBytes
	}
	return &Extractor{vision: v, opts: opts, logger: logger}
}

// ExtractFile 按扩展名分派到 Markdown 或 PDF 提取
func (e *Extractor) ExtractFile(ctx context.Context, path string) (*DocumentStructure, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".pdf" && ext != ".md" && ext != ".markdown" {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFileType, ext)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.Size() > e.opts.MaxFileBytes {
		return nil, fmt.Errorf("%w: %.1fMB exceeds %dMB", ErrFileTooLarge,
			float64(info.Size())/(1024*1024), e.opts.MaxFileBytes/(1024*1024))
	}

	if ext != ".pdf" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		return e.ExtractMarkdown(string(data)), nil
	}

	doc, err := pdf.Open(path)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	return e.ExtractPDF(ctx, doc, pdf.NewRenderer(path, e.logger))
}

// ExtractMarkdown Markdown 原文直接计数，不经过版式分析
func (e *Extractor) ExtractMarkdown(text string) *DocumentStructure {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	words := CountWords(text)
	pages := words / 500
	if pages < 1 {
		pages = 1
	}
	if e.opts.OnProgress != nil {
		e.opts.OnProgress(1, 1)
	}
	return &DocumentStructure{
		Text:      text,
		Pages:     pages,
		WordCount: words,
		Language:  DetectLanguage(text),
		PageResults: []PageResult{{
			Page: 1, Complexity: layout.ComplexitySimple, Method: MethodMarkdown, Confidence: ConfidenceMarkdown,
		}},
	}
}

// ExtractPDF 逐页提取。单页失败只降级该页，不会中断整个文档；只有 ctx 取消会返回错误。
func (e *Extractor) ExtractPDF(ctx context.Context, src PageSource, renderer PageRenderer) (*DocumentStructure, error) {
	total := src.NumPages()
	texts := make([]string, 0, total)
	results := make([]PageResult, 0, total)

	for page := 1; page <= total; page++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		result, err := e.extractPage(ctx, src, renderer, page)
		if err != nil {
			return nil, err
		}
		texts = append(texts, result.Text)
		results = append(results, result)

		if e.opts.OnProgress != nil {
			e.opts.OnProgress(page, total)
		}
	}

	text := layout.JoinPages(texts)
	return &DocumentStructure{
		Text:        text,
		Pages:       total,
		WordCount:   CountWords(text),
		Language:    DetectLanguage(text),
		PageResults: results,
	}, nil
}

func (e *Extractor) extractPage(ctx context.Context, src PageSource, renderer PageRenderer, page int) (PageResult, error) {
	runs, err := src.PageGlyphs(page)
	if err != nil {
		e.logger.Warn("读取页面文本失败，按空页处理", zap.Int("page", page), zap.Error(err))
		runs = nil
	}
	runs = layout.NonEmpty(runs)
	complexity := layout.Classify(runs)

	legacy := func(method Method, confidence int) PageResult {
		return PageResult{
			Page:       page,
			Complexity: complexity,
			Method:     method,
			Confidence: confidence,
			Text:       layout.ReconstructPage(runs),
		}
	}

	if !complexity.NeedsVision() || !e.opts.VisionEnabled || e.vision == nil || renderer == nil {
		return legacy(MethodLegacy, ConfidenceLegacy), nil
	}

	image, err := renderer.RenderPage(ctx, page, vision.RenderOptionsFor(complexity))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return PageResult{}, ctxErr
		}
		e.logger.Warn("页面渲染失败，回退到规则重建", zap.Int("page", page), zap.Error(err))
		return legacy(MethodFallback, ConfidenceFallback), nil
	}

	text, err := e.vision.ExtractPage(ctx, image, complexity)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return PageResult{}, ctxErr
		}
		e.logger.Warn("视觉提取失败，回退到规则重建",
			zap.Int("page", page),
			zap.String("complexity", string(complexity)),
			zap.Error(err))
		return legacy(MethodFallback, ConfidenceFallback), nil
	}

	result := PageResult{
		Page:       page,
		Complexity: complexity,
		Method:     MethodVision,
		Confidence: ConfidenceVision,
		Text:       text,
	}

	if e.opts.Validate {
		v, err := e.vision.Validate(ctx, image, text)
		if err != nil {
			e.logger.Warn("视觉自检失败，保留提取结果", zap.Int("page", page), zap.Error(err))
		} else {
			result.Validation = &v
			result.Confidence = v.Confidence
		}
	}

	e.logger.Debug("页面视觉提取完成",
		zap.Int("page", page),
		zap.String("complexity", string(complexity)),
		zap.Int("confidence", result.Confidence))
	return result, nil
}

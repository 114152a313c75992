// Package export 按位置重组译文，并导出为 Markdown、HTML 或 PDF。
package export

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/nerdneilsfield/guided-translator/pkg/translate"
)

// DefaultTitle 未指定标题时使用
const DefaultTitle = "Technical Translation"

// Format 导出格式
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
	FormatPDF      Format = "pdf"
)

var (
	ErrNoChunks          = errors.New("no chunks to export")
	ErrUnsupportedFormat = errors.New("unsupported export format")
	ErrNoFont            = errors.New("pdf export requires a UTF-8 TTF font for Chinese text")
)

// Options 导出参数
type Options struct {
	Title           string
	IncludeOriginal bool
	FontPath        string
	Generated       time.Time
}

func (o Options) withDefaults() Options {
	if o.Title == "" {
		o.Title = DefaultTitle
	}
	if o.Generated.IsZero() {
		o.Generated = time.Now()
	}
	return o
}

// ParseFormat 解析格式名或文件扩展名
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "md", "markdown":
		return FormatMarkdown, nil
	case "html", "htm":
		return FormatHTML, nil
	case "pdf":
		return FormatPDF, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}

// Extension 格式对应的文件扩展名
func (f Format) Extension() string {
	if f == FormatMarkdown {
		return ".md"
	}
	return "." + string(f)
}

// Sorted 返回按 Position 排序的副本
func Sorted(chunks []translate.TranslatedChunk) []translate.TranslatedChunk {
	out := make([]translate.TranslatedChunk, len(chunks))
	copy(out, chunks)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

// Merge 按位置拼接译文，块之间空一行
func Merge(chunks []translate.TranslatedChunk) string {
	sorted := Sorted(chunks)
	parts := make([]string, 0, len(sorted))
	for _, c := range sorted {
		parts = append(parts, strings.TrimSpace(c.Translation))
	}
	return strings.Join(parts, "\n\n")
}

// Write 按格式写出
func Write(w io.Writer, format Format, chunks []translate.TranslatedChunk, opts Options) error {
	if len(chunks) == 0 {
		return ErrNoChunks
	}
	opts = opts.withDefaults()

	switch format {
	case FormatMarkdown:
		data, err := Markdown(chunks, opts)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	case FormatHTML:
		data, err := HTML(chunks, opts)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	case FormatPDF:
		return PDF(w, chunks, opts)
	}
	return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
}

// WriteFile 写出到文件，必要时创建目录
func WriteFile(path string, format Format, chunks []translate.TranslatedChunk, opts Options) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("创建输出目录失败: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("创建输出文件失败: %w", err)
	}
	if err := Write(f, format, chunks, opts); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return err
	}
	return f.Close()
}

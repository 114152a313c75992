package export

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Kunde21/markdownfmt/v3"
	"github.com/Kunde21/markdownfmt/v3/markdown"

	"github.com/nerdneilsfield/guided-translator/pkg/translate"
)

// 格式化前需要原样保留的片段
var protectedPatterns = []struct {
	prefix  string
	pattern *regexp.Regexp
}{
	{"LATEX_BLOCK", regexp.MustCompile(`\$\$[\s\S]*?\$\$`)},
	{"LATEX_INLINE", regexp.MustCompile(`\$[^$\n]+\$`)},
}

var extraBlankLines = regexp.MustCompile(`\n{3,}`)

// Markdown 生成带 front matter 的 Markdown 文档
func Markdown(chunks []translate.TranslatedChunk, opts Options) ([]byte, error) {
	opts = opts.withDefaults()

	body, err := FormatMarkdown(markdownBody(chunks, opts))
	if err != nil {
		return nil, err
	}

	// front matter 在格式化之后拼接，避免被识别成 setext 标题
	var sb strings.Builder
	sb.WriteString("---\n")
	fmt.Fprintf(&sb, "title: %q\n", opts.Title)
	fmt.Fprintf(&sb, "generated: %s\n", opts.Generated.Format("2006-01-02 15:04"))
	fmt.Fprintf(&sb, "chunks: %d\n", len(chunks))
	sb.WriteString("---\n\n")
	sb.WriteString(body)
	return []byte(sb.String()), nil
}

func markdownBody(chunks []translate.TranslatedChunk, opts Options) string {
	sorted := Sorted(chunks)
	parts := make([]string, 0, len(sorted)*2)
	for _, c := range sorted {
		if opts.IncludeOriginal && strings.TrimSpace(c.Text) != "" {
			parts = append(parts, quote(c.Text))
		}
		parts = append(parts, strings.TrimSpace(c.Translation))
	}
	return strings.Join(parts, "\n\n")
}

func quote(text string) string {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	for i, l := range lines {
		if l == "" {
			lines[i] = ">"
			continue
		}
		lines[i] = "> " + l
	}
	return strings.Join(lines, "\n")
}

// FormatMarkdown 规范化 Markdown，公式片段保持原样
func FormatMarkdown(text string) (string, error) {
	protected, markers := protectBlocks(text)

	formatted, err := markdownfmt.Process("", []byte(protected),
		markdown.WithCodeFormatters(markdown.GoCodeFormatter))
	if err != nil {
		return "", fmt.Errorf("markdown formatting failed: %w", err)
	}

	result := restoreBlocks(string(formatted), markers)
	result = extraBlankLines.ReplaceAllString(result, "\n\n")
	result = strings.TrimLeft(result, "\n")
	return strings.TrimRight(result, "\n") + "\n", nil
}

func protectBlocks(text string) (string, map[string]string) {
	markers := make(map[string]string)
	for _, p := range protectedPatterns {
		counter := 0
		text = p.pattern.ReplaceAllStringFunc(text, func(match string) string {
			counter++
			marker := fmt.Sprintf("@@%s_%d@@", p.prefix, counter)
			markers[marker] = match
			return marker
		})
	}
	return text, markers
}

func restoreBlocks(text string, markers map[string]string) string {
	for marker, original := range markers {
		text = strings.ReplaceAll(text, marker, original)
	}
	return text
}

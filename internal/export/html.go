package export

import (
	"bytes"
	"fmt"
	"html"

	mathjax "github.com/litao91/goldmark-mathjax"
	"github.com/yuin/goldmark"
	meta "github.com/yuin/goldmark-meta"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"

	"github.com/nerdneilsfield/guided-translator/pkg/translate"
)

const htmlHead = `<!DOCTYPE html>
<html lang="zh-CN">
<head>
<meta charset="utf-8">
<title>%s</title>
<style>
body { max-width: 860px; margin: 2em auto; font-family: "Noto Sans SC", "Microsoft YaHei", sans-serif; line-height: 1.7; color: #333; }
blockquote { color: #888; border-left: 3px solid #ddd; margin-left: 0; padding-left: 1em; }
table { border-collapse: collapse; }
th, td { border: 1px solid #ccc; padding: 4px 8px; }
</style>
</head>
<body>
`

const htmlTail = "</body>\n</html>\n"

func newMarkdownRenderer() goldmark.Markdown {
	return goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			mathjax.MathJax,
			meta.Meta,
		),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
	)
}

// HTML 把 Markdown 导出结果渲染为独立的 HTML 页面。
// 标题取自 front matter。
func HTML(chunks []translate.TranslatedChunk, opts Options) ([]byte, error) {
	source, err := Markdown(chunks, opts)
	if err != nil {
		return nil, err
	}
	return RenderHTML(source)
}

// RenderHTML 渲染带 front matter 的 Markdown
func RenderHTML(source []byte) ([]byte, error) {
	md := newMarkdownRenderer()
	ctx := parser.NewContext()

	var body bytes.Buffer
	if err := md.Convert(source, &body, parser.WithContext(ctx)); err != nil {
		return nil, fmt.Errorf("html rendering failed: %w", err)
	}

	title := DefaultTitle
	if v, ok := meta.Get(ctx)["title"].(string); ok && v != "" {
		title = v
	}

	var out bytes.Buffer
	fmt.Fprintf(&out, htmlHead, html.EscapeString(title))
	out.Write(body.Bytes())
	out.WriteString(htmlTail)
	return out.Bytes(), nil
}

package export

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerdneilsfield/guided-translator/pkg/chunk"
	"github.com/nerdneilsfield/guided-translator/pkg/translate"
)

func tc(pos int, typ chunk.Type, text, translation string) translate.TranslatedChunk {
	return translate.TranslatedChunk{
		Chunk:       chunk.Chunk{ID: "chunk_" + string(rune('0'+pos)), Text: text, Position: pos, Type: typ},
		Translation: translation,
	}
}

func sample() []translate.TranslatedChunk {
	return []translate.TranslatedChunk{
		tc(2, chunk.TypeParagraph, "The limiter shall act.", "限制器应动作。"),
		tc(0, chunk.TypeHeading, "# 4 Brakes", "# 4 制动器"),
		tc(1, chunk.TypeParagraph, "Each hoist shall have a brake.", "每个起升机构应设置制动器。  "),
	}
}

var fixedTime = time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)

func TestMergeSortsByPosition(t *testing.T) {
	assert.Equal(t, "# 4 制动器\n\n每个起升机构应设置制动器。\n\n限制器应动作。", Merge(sample()))
	assert.Equal(t, "", Merge(nil))
}

func TestParseFormat(t *testing.T) {
	tests := map[string]Format{"md": FormatMarkdown, ".markdown": FormatMarkdown, "HTML": FormatHTML, "pdf": FormatPDF}
	for in, want := range tests {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseFormat("docx")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
	assert.Equal(t, ".md", FormatMarkdown.Extension())
	assert.Equal(t, ".pdf", FormatPDF.Extension())
}

func TestMarkdownExport(t *testing.T) {
	data, err := Markdown(sample(), Options{Title: "起重机标准", Generated: fixedTime})
	require.NoError(t, err)
	out := string(data)

	assert.True(t, strings.HasPrefix(out, "---\ntitle: \"起重机标准\"\ngenerated: 2024-05-01 09:30\nchunks: 3\n---\n\n"))
	heading := strings.Index(out, "# 4 制动器")
	para := strings.Index(out, "每个起升机构应设置制动器。")
	last := strings.Index(out, "限制器应动作。")
	require.True(t, heading > 0 && para > heading && last > para)
	assert.NotContains(t, out, "Each hoist")
	assert.True(t, strings.HasSuffix(out, "\n"))
	assert.NotContains(t, out, "\n\n\n")
}

func TestMarkdownIncludeOriginal(t *testing.T) {
	data, err := Markdown(sample(), Options{IncludeOriginal: true, Generated: fixedTime})
	require.NoError(t, err)
	out := string(data)

	assert.Contains(t, out, "title: \"Technical Translation\"")
	original := strings.Index(out, "> Each hoist shall have a brake.")
	translation := strings.Index(out, "每个起升机构应设置制动器。")
	require.Positive(t, original)
	assert.Less(t, original, translation)
}

func TestFormatMarkdownKeepsFormulas(t *testing.T) {
	out, err := FormatMarkdown("载荷 $F_{max} = m_1 g$ 不得超过。\n\n\n\n$$\nP_{rated} \\le 1.25 P\n$$")
	require.NoError(t, err)
	assert.Contains(t, out, "$F_{max} = m_1 g$")
	assert.Contains(t, out, "$$\nP_{rated} \\le 1.25 P\n$$")
	assert.NotContains(t, out, "@@LATEX")
}

func TestHTMLExport(t *testing.T) {
	chunks := append(sample(), tc(3, chunk.TypeTable, "| a | b |", "| 项目 | 数值 |\n|---|---|\n| 额定载荷 | 10 t |"))
	data, err := HTML(chunks, Options{Title: "起重机 <标准>", Generated: fixedTime})
	require.NoError(t, err)
	out := string(data)

	assert.Contains(t, out, "<title>起重机 &lt;标准&gt;</title>")
	assert.Contains(t, out, "<h1 id=")
	assert.Contains(t, out, "制动器</h1>")
	assert.Contains(t, out, "<table>")
	assert.Contains(t, out, "额定载荷")
	// front matter 被解析为元数据，不出现在正文里
	assert.NotContains(t, out, "generated: 2024")
	assert.True(t, strings.HasSuffix(out, "</html>\n"))
}

func TestPDFRequiresFont(t *testing.T) {
	var buf bytes.Buffer
	assert.ErrorIs(t, PDF(&buf, sample(), Options{}), ErrNoFont)
	assert.ErrorIs(t, PDF(&buf, sample(), Options{FontPath: filepath.Join(t.TempDir(), "none.ttf")}), ErrNoFont)
	assert.Zero(t, buf.Len())
}

func TestPDFWithSystemFont(t *testing.T) {
	candidates := []string{
		"/usr/share/fonts/truetype/wqy/wqy-microhei.ttf",
		"/usr/share/fonts/truetype/droid/DroidSansFallbackFull.ttf",
		"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
	}
	font := ""
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			font = c
			break
		}
	}
	if font == "" {
		t.Skip("no TTF font available")
	}

	var buf bytes.Buffer
	require.NoError(t, PDF(&buf, sample(), Options{FontPath: font, IncludeOriginal: true, Generated: fixedTime}))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "doc.md")
	require.NoError(t, WriteFile(path, FormatMarkdown, sample(), Options{Generated: fixedTime}))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "限制器应动作。")

	bad := filepath.Join(t.TempDir(), "doc.pdf")
	assert.ErrorIs(t, WriteFile(bad, FormatPDF, sample(), Options{}), ErrNoFont)
	_, err = os.Stat(bad)
	assert.True(t, os.IsNotExist(err))

	assert.ErrorIs(t, Write(&bytes.Buffer{}, FormatMarkdown, nil, Options{}), ErrNoChunks)
}

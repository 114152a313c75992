// Package pdf 是 PDF 库的边界层：把 ledongthuc/pdf 的字符级文本项
// 转换为 layout.GlyphRun，并通过 pdftoppm 把页面渲染为 JPEG。
package pdf

import (
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	lpdf "github.com/ledongthuc/pdf"
	"golang.org/x/text/unicode/norm"

	"github.com/nerdneilsfield/guided-translator/pkg/layout"
)

// ErrPageOutOfRange 页码超出范围
var ErrPageOutOfRange = errors.New("page out of range")

// Document 打开的 PDF 文档
type Document struct {
	path   string
	file   *os.File
	reader *lpdf.Reader
}

// Open 打开 PDF 文件
func Open(path string) (*Document, error) {
	f, r, err := lpdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf %s: %w", path, err)
	}
	return &Document{path: path, file: f, reader: r}, nil
}

// Path 文档路径
func (d *Document) Path() string {
	return d.path
}

// NumPages 页数
func (d *Document) NumPages() int {
	return d.reader.NumPage()
}

// Close 关闭底层文件
func (d *Document) Close() error {
	return d.file.Close()
}

// PageGlyphs 返回第 page 页（从 1 开始）的文本片段，按内容流顺序排列
func (d *Document) PageGlyphs(page int) (runs []layout.GlyphRun, err error) {
	if page < 1 || page > d.NumPages() {
		return nil, fmt.Errorf("%w: %d", ErrPageOutOfRange, page)
	}

	p := d.reader.Page(page)
	if p.V.IsNull() {
		return nil, nil
	}

	// 损坏的内容流会让底层库 panic
	defer func() {
		if r := recover(); r != nil {
			runs = nil
			err = fmt.Errorf("failed to read page %d content: %v", page, r)
		}
	}()

	return GlyphRuns(p.Content().Text), nil
}

// GlyphRuns 把字符级文本项合并为片段。
// 同一基线上水平距离足够近的字符合并为一个片段，字符间距较大时补一个空格。
func GlyphRuns(texts []lpdf.Text) []layout.GlyphRun {
	var runs []layout.GlyphRun
	var cur *layout.GlyphRun
	var sb strings.Builder

	flush := func() {
		if cur == nil {
			return
		}
		cur.Text = norm.NFKC.String(sb.String())
		runs = append(runs, *cur)
		cur = nil
		sb.Reset()
	}

	for _, t := range texts {
		if t.S == "" {
			continue
		}
		size := t.FontSize
		if size <= 0 {
			size = 10
		}

		if cur != nil {
			sameBaseline := math.Abs(t.Y-cur.Y) < size*0.3
			gap := t.X - cur.Right()
			if !sameBaseline || gap > size*1.5 || gap < -size {
				flush()
			} else if gap > size*0.25 && !strings.HasSuffix(sb.String(), " ") && t.S != " " {
				sb.WriteByte(' ')
			}
		}

		if cur == nil {
			cur = &layout.GlyphRun{X: t.X, Y: t.Y, Height: size}
		}
		sb.WriteString(t.S)
		if right := t.X + t.W; right > cur.Right() {
			cur.Width = right - cur.X
		}
		if size > cur.Height {
			cur.Height = size
		}
	}
	flush()

	return runs
}

// SortReadingOrder 按阅读顺序（自上而下、自左而右）排序片段。
// PDF 坐标 y 轴向上，因此 y 大的在前。
func SortReadingOrder(runs []layout.GlyphRun) {
	sort.SliceStable(runs, func(i, j int) bool {
		if math.Abs(runs[i].Y-runs[j].Y) > 1 {
			return runs[i].Y > runs[j].Y
		}
		return runs[i].X < runs[j].X
	})
}

package layout

import (
	"math"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// columnGap 行内水平间隙超过该值时插入列分隔符
	columnGap = 30.0
	// headingHeight 行高超过该值的行视为标题
	headingHeight = 12.0

	columnSeparator = " | "
	headingPrefix   = "## "
	indentText      = "  "
)

// lineState 当前正在拼接的行
type lineState struct {
	text   strings.Builder
	indent int
	height float64
}

// Reconstructor 基于规则的行/段落重建器
type Reconstructor struct {
	thresholds Thresholds
	margin     float64

	lines   []string
	current *lineState

	lastY     float64
	lastX     float64
	lastWidth float64
}

// NewReconstructor 使用给定阈值和左边距创建重建器
func NewReconstructor(thresholds Thresholds, margin float64) *Reconstructor {
	return &Reconstructor{thresholds: thresholds, margin: margin}
}

// ReconstructPage 推断阈值与左边距后重建整页文本
func ReconstructPage(runs []GlyphRun) string {
	runs = NonEmpty(runs)
	r := NewReconstructor(AnalyzeThresholds(runs), DominantLeftMargin(runs))
	for _, run := range runs {
		r.Add(run)
	}
	return r.String()
}

// JoinPages 以空行连接各页文本
func JoinPages(pages []string) string {
	return strings.Join(pages, "\n\n")
}

// Add 按文档顺序加入一个片段
func (r *Reconstructor) Add(run GlyphRun) {
	if run.IsEmpty() {
		return
	}

	if r.current == nil {
		r.startLine(run)
		r.remember(run)
		return
	}

	gap := math.Abs(run.Y - r.lastY)
	if gap < r.thresholds.SameLine {
		r.merge(run)
	} else {
		r.flush()
		if gap > r.thresholds.ParagraphBreak {
			r.lines = append(r.lines, "")
		}
		r.startLine(run)
	}
	r.remember(run)
}

// Lines 返回已经完成的行（包括当前行）
func (r *Reconstructor) Lines() []string {
	r.flush()
	return r.lines
}

// String 返回以换行连接的页面文本
func (r *Reconstructor) String() string {
	return strings.Join(r.Lines(), "\n")
}

func (r *Reconstructor) remember(run GlyphRun) {
	r.lastY = run.Y
	r.lastX = run.X
	r.lastWidth = run.Width
}

func (r *Reconstructor) startLine(run GlyphRun) {
	r.current = &lineState{
		indent: IndentLevel(run.X, r.margin),
		height: run.Height,
	}
	r.current.text.WriteString(strings.TrimSpace(run.Text))
}

// merge 把片段并入当前行，处理连字符断词与行内分栏
func (r *Reconstructor) merge(run GlyphRun) {
	fragment := strings.TrimSpace(run.Text)
	line := r.current.text.String()

	switch {
	case strings.HasSuffix(line, "-"):
		if startsLower(fragment) {
			line = strings.TrimSuffix(line, "-")
			r.current.text.Reset()
			r.current.text.WriteString(line)
		}
		r.current.text.WriteString(fragment)
	case run.X-(r.lastX+r.lastWidth) > columnGap:
		r.current.text.WriteString(columnSeparator)
		r.current.text.WriteString(fragment)
	default:
		r.current.text.WriteString(" ")
		r.current.text.WriteString(fragment)
	}

	if run.Height > r.current.height {
		r.current.height = run.Height
	}
}

func (r *Reconstructor) flush() {
	if r.current == nil {
		return
	}
	text := r.current.text.String()
	if r.current.height > headingHeight {
		r.lines = append(r.lines, headingPrefix+text)
	} else {
		r.lines = append(r.lines, strings.Repeat(indentText, r.current.indent)+text)
	}
	r.current = nil
}

func startsLower(s string) bool {
	first, _ := utf8.DecodeRuneInString(s)
	return first != utf8.RuneError && unicode.IsLower(first)
}

// Package layout 从 PDF 文本层的定位文本片段推断页面版式，
// 并在不调用模型的情况下把一页重建为 Markdown 风格的文本。
package layout

import (
	"math"
	"strings"
)

// GlyphRun 页面坐标系中的一个文本片段
type GlyphRun struct {
	Text   string  `json:"text"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// IsEmpty 片段是否只包含空白
func (g GlyphRun) IsEmpty() bool {
	return strings.TrimSpace(g.Text) == ""
}

// Right 片段右边缘的 x 坐标
func (g GlyphRun) Right() float64 {
	return g.X + g.Width
}

// NonEmpty 过滤掉空白片段，保持原有顺序
func NonEmpty(runs []GlyphRun) []GlyphRun {
	out := make([]GlyphRun, 0, len(runs))
	for _, r := range runs {
		if !r.IsEmpty() {
			out = append(out, r)
		}
	}
	return out
}

// quantize 把坐标量化到最近的 step 倍数
func quantize(v, step float64) float64 {
	return math.Round(v/step) * step
}

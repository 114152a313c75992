package layout

import (
	"math"
	"sort"
)

// 间距统计参数
const (
	minUsableGap = 0.1
	maxUsableGap = 500.0
	minGapCount  = 5

	marginBucket     = 5.0
	indentUnit       = 20.0
	sameLineFloor    = 2.0
	newLineFloor     = 10.0
	paragraphFloor   = 25.0
	sameLineFactor   = 0.8
	newLineFactor    = 1.5
	paragraphFactor  = 1.2
	sameLinePercent  = 0.2
	newLinePercent   = 0.5
	paragraphPercent = 0.8
)

// Thresholds 一页的三个垂直间距阈值
type Thresholds struct {
	SameLine       float64 `json:"same_line"`
	NewLine        float64 `json:"new_line"`
	ParagraphBreak float64 `json:"paragraph_break"`
}

// FallbackThresholds 可用间距不足时使用的固定阈值（典型行高单位）
var FallbackThresholds = Thresholds{SameLine: 3, NewLine: 15, ParagraphBreak: 30}

// AnalyzeThresholds 根据相邻片段的垂直间距分布推断本页阈值。
// 空白片段先被过滤；<=0.1 或 >=500 的间距视为噪声或跨页。
func AnalyzeThresholds(runs []GlyphRun) Thresholds {
	gaps := verticalGaps(NonEmpty(runs))
	if len(gaps) < minGapCount {
		return FallbackThresholds
	}

	sort.Float64s(gaps)
	p20 := percentile(gaps, sameLinePercent)
	p50 := percentile(gaps, newLinePercent)
	p80 := percentile(gaps, paragraphPercent)

	return Thresholds{
		SameLine:       math.Max(p20*sameLineFactor, sameLineFloor),
		NewLine:        math.Max(p50*newLineFactor, newLineFloor),
		ParagraphBreak: math.Max(p80*paragraphFactor, paragraphFloor),
	}
}

func verticalGaps(runs []GlyphRun) []float64 {
	if len(runs) < 2 {
		return nil
	}
	gaps := make([]float64, 0, len(runs)-1)
	for i := 1; i < len(runs); i++ {
		gap := math.Abs(runs[i].Y - runs[i-1].Y)
		if gap > minUsableGap && gap < maxUsableGap {
			gaps = append(gaps, gap)
		}
	}
	return gaps
}

// percentile 取已排序切片中 floor(n*p) 位置的值
func percentile(sorted []float64, p float64) float64 {
	idx := int(math.Floor(float64(len(sorted)) * p))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// DominantLeftMargin 返回出现次数最多的左边距（x 量化到 5 单位）。
// 并列时取更靠左的值；没有片段时返回 0。
func DominantLeftMargin(runs []GlyphRun) float64 {
	counts := make(map[float64]int)
	for _, r := range NonEmpty(runs) {
		counts[quantize(r.X, marginBucket)]++
	}

	best, bestCount := 0.0, 0
	for bin, n := range counts {
		if n > bestCount || (n == bestCount && bin < best) {
			best, bestCount = bin, n
		}
	}
	return best
}

// IndentLevel 按 20 单位一级计算相对左边距的缩进深度
func IndentLevel(x, margin float64) int {
	return int(math.Floor(math.Max(0, x-margin) / indentUnit))
}

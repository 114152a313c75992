package layout

// Complexity 页面版式复杂度，决定走规则重建还是视觉提取
type Complexity string

const (
	ComplexitySimple  Complexity = "simple"
	ComplexityComplex Complexity = "complex"
	ComplexityTable   Complexity = "table"
)

// 分类阈值。列数阈值是经验值，可按文档集合调整。
var (
	TableColumnThreshold   = 6
	ComplexColumnThreshold = 4
	DenseItemThreshold     = 300
)

const columnBucket = 10.0

// NeedsVision 该复杂度是否应交给视觉提取
func (c Complexity) NeedsVision() bool {
	return c == ComplexityComplex || c == ComplexityTable
}

// UniqueColumns 统计量化到 10 单位后的不同 x 坐标数
func UniqueColumns(runs []GlyphRun) int {
	seen := make(map[float64]struct{})
	for _, r := range runs {
		seen[quantize(r.X, columnBucket)] = struct{}{}
	}
	return len(seen)
}

// Classify 单次遍历给页面打分
func Classify(runs []GlyphRun) Complexity {
	runs = NonEmpty(runs)
	if len(runs) == 0 {
		return ComplexitySimple
	}

	columns := UniqueColumns(runs)
	switch {
	case columns > TableColumnThreshold:
		return ComplexityTable
	case columns > ComplexColumnThreshold || len(runs) > DenseItemThreshold:
		return ComplexityComplex
	default:
		return ComplexitySimple
	}
}

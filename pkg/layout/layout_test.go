package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runAt(text string, x, y, w, h float64) GlyphRun {
	return GlyphRun{Text: text, X: x, Y: y, Width: w, Height: h}
}

func TestAnalyzeThresholds(t *testing.T) {
	t.Run("no usable gaps falls back", func(t *testing.T) {
		assert.Equal(t, FallbackThresholds, AnalyzeThresholds(nil))
		assert.Equal(t, Thresholds{3, 15, 30}, AnalyzeThresholds([]GlyphRun{runAt("a", 0, 100, 5, 10)}))

		sameY := []GlyphRun{
			runAt("a", 0, 100, 5, 10),
			runAt("b", 10, 100, 5, 10),
			runAt("c", 20, 100, 5, 10),
		}
		assert.Equal(t, FallbackThresholds, AnalyzeThresholds(sameY))
	})

	t.Run("outlier gaps are ignored", func(t *testing.T) {
		runs := []GlyphRun{
			runAt("a", 0, 0, 5, 10),
			runAt("b", 0, 600, 5, 10),
			runAt("c", 0, 610, 5, 10),
			runAt("d", 0, 620, 5, 10),
		}
		assert.Equal(t, FallbackThresholds, AnalyzeThresholds(runs))
	})

	t.Run("percentiles with floors", func(t *testing.T) {
		var runs []GlyphRun
		for i := 0; i < 6; i++ {
			runs = append(runs, runAt("line", 50, float64(700-i*10), 30, 10))
		}
		th := AnalyzeThresholds(runs)
		assert.InDelta(t, 8.0, th.SameLine, 1e-9)
		assert.InDelta(t, 15.0, th.NewLine, 1e-9)
		assert.InDelta(t, 25.0, th.ParagraphBreak, 1e-9)
	})

	t.Run("empty runs are filtered before measuring", func(t *testing.T) {
		var runs []GlyphRun
		for i := 0; i < 6; i++ {
			runs = append(runs, runAt("line", 50, float64(700-i*20), 30, 10))
			runs = append(runs, runAt("  ", 50, 0, 0, 0))
		}
		th := AnalyzeThresholds(runs)
		assert.InDelta(t, 16.0, th.SameLine, 1e-9)
		assert.InDelta(t, 30.0, th.NewLine, 1e-9)
		assert.InDelta(t, 25.0, th.ParagraphBreak, 1e-9)
	})
}

func TestDominantLeftMargin(t *testing.T) {
	runs := []GlyphRun{
		runAt("a", 50, 0, 1, 1),
		runAt("b", 51, 0, 1, 1),
		runAt("c", 49, 0, 1, 1),
		runAt("d", 100, 0, 1, 1),
	}
	assert.Equal(t, 50.0, DominantLeftMargin(runs))

	tie := []GlyphRun{
		runAt("a", 100, 0, 1, 1),
		runAt("b", 100, 0, 1, 1),
		runAt("c", 50, 0, 1, 1),
		runAt("d", 50, 0, 1, 1),
	}
	assert.Equal(t, 50.0, DominantLeftMargin(tie))
	assert.Equal(t, 0.0, DominantLeftMargin(nil))

	assert.Equal(t, 2, IndentLevel(95, 50))
	assert.Equal(t, 0, IndentLevel(30, 50))
	assert.Equal(t, 0, IndentLevel(69, 50))
}

func TestReconstructor(t *testing.T) {
	r := NewReconstructor(FallbackThresholds, 50)
	for _, run := range []GlyphRun{
		runAt("Title", 50, 760, 40, 14),
		runAt("Intro-", 50, 730, 30, 10),
		runAt("duction", 80, 730, 35, 10),
		runAt("Value", 50, 690, 25, 10),
		runAt("42", 150, 690, 20, 10),
		runAt("indented", 90, 675, 40, 10),
		runAt("Anti-", 50, 660, 25, 10),
		runAt("Lock", 75, 660, 25, 10),
		runAt("braking", 105, 660, 35, 10),
	} {
		r.Add(run)
	}

	assert.Equal(t, []string{
		"## Title",
		"Introduction",
		"",
		"Value | 42",
		"    indented",
		"Anti-Lock braking",
	}, r.Lines())
}

func TestReconstructPageAndJoin(t *testing.T) {
	page := ReconstructPage([]GlyphRun{
		runAt("Hello", 50, 700, 25, 10),
		runAt("world", 80, 700, 25, 10),
		runAt(" ", 200, 10, 0, 0),
	})
	require.Equal(t, "Hello world", page)
	assert.Equal(t, "a\n\nb", JoinPages([]string{"a", "b"}))
	assert.Equal(t, "", ReconstructPage(nil))
}

func TestClassify(t *testing.T) {
	columnsAt := func(xs ...float64) []GlyphRun {
		runs := make([]GlyphRun, 0, len(xs))
		for i, x := range xs {
			runs = append(runs, runAt("cell", x, float64(700-i), 5, 10))
		}
		return runs
	}

	tests := []struct {
		name string
		runs []GlyphRun
		want Complexity
	}{
		{"empty page", nil, ComplexitySimple},
		{"whitespace only", []GlyphRun{runAt(" ", 10, 10, 1, 1)}, ComplexitySimple},
		{"single column", columnsAt(50, 52, 48, 50), ComplexitySimple},
		{"five columns", columnsAt(50, 100, 150, 200, 250), ComplexityComplex},
		{"seven columns", columnsAt(50, 100, 150, 200, 250, 300, 350), ComplexityTable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.runs))
		})
	}

	t.Run("dense page", func(t *testing.T) {
		var runs []GlyphRun
		for i := 0; i < 301; i++ {
			runs = append(runs, runAt("w", 50, float64(i), 5, 10))
		}
		assert.Equal(t, ComplexityComplex, Classify(runs))
	})

	assert.True(t, ComplexityTable.NeedsVision())
	assert.False(t, ComplexitySimple.NeedsVision())
}

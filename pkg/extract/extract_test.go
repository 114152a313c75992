package extract

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/nerdneilsfield/guided-translator/pkg/layout"
	"github.com/nerdneilsfield/guided-translator/pkg/pdf"
	"github.com/nerdneilsfield/guided-translator/pkg/vision"
)

type fakeSource struct {
	pages [][]layout.GlyphRun
	errs  map[int]error
}

func (f *fakeSource) NumPages() int { return len(f.pages) }

func (f *fakeSource) PageGlyphs(page int) ([]layout.GlyphRun, error) {
	if err := f.errs[page]; err != nil {
		return nil, err
	}
	return f.pages[page-1], nil
}

type fakeRenderer struct {
	opts []pdf.RenderOptions
	err  error
}

func (f *fakeRenderer) RenderPage(_ context.Context, page int, opts pdf.RenderOptions) ([]byte, error) {
	f.opts = append(f.opts, opts)
	if f.err != nil {
		return nil, f.err
	}
	return []byte{byte(page)}, nil
}

type mockVision struct {
	mock.Mock
}

func (m *mockVision) ExtractPage(ctx context.Context, image []byte, c layout.Complexity) (string, error) {
	args := m.Called(ctx, image, c)
	return args.String(0), args.Error(1)
}

func (m *mockVision) Validate(ctx context.Context, image []byte, md string) (vision.Validation, error) {
	args := m.Called(ctx, image, md)
	return args.Get(0).(vision.Validation), args.Error(1)
}

func simplePage() []layout.GlyphRun {
	return []layout.GlyphRun{
		{Text: "Scope of this standard", X: 72, Y: 700, Width: 150, Height: 10},
		{Text: "applies to cranes", X: 72, Y: 688, Width: 120, Height: 10},
	}
}

func tablePage() []layout.GlyphRun {
	var runs []layout.GlyphRun
	for col := 0; col < 8; col++ {
		runs = append(runs, layout.GlyphRun{Text: "c", X: float64(72 + col*60), Y: 500, Width: 10, Height: 10})
	}
	return runs
}

func TestExtractPDFRoutesByComplexity(t *testing.T) {
	src := &fakeSource{pages: [][]layout.GlyphRun{simplePage(), tablePage()}}
	renderer := &fakeRenderer{}
	v := &mockVision{}
	v.On("ExtractPage", mock.Anything, []byte{2}, layout.ComplexityTable).Return("| a | b |", nil)
	v.On("Validate", mock.Anything, []byte{2}, "| a | b |").Return(vision.Validation{IsValid: true, Confidence: 95}, nil)

	var progress [][2]int
	e := NewExtractor(v, Options{
		VisionEnabled: true,
		Validate:      true,
		OnProgress:    func(c, t int) { progress = append(progress, [2]int{c, t}) },
	}, nil)

	doc, err := e.ExtractPDF(context.Background(), src, renderer)
	require.NoError(t, err)
	v.AssertExpectations(t)

	assert.Equal(t, 2, doc.Pages)
	assert.Equal(t, [][2]int{{1, 2}, {2, 2}}, progress)
	require.Len(t, doc.PageResults, 2)
	assert.Equal(t, MethodLegacy, doc.PageResults[0].Method)
	assert.Equal(t, ConfidenceLegacy, doc.PageResults[0].Confidence)
	assert.Equal(t, MethodVision, doc.PageResults[1].Method)
	assert.Equal(t, 95, doc.PageResults[1].Confidence)
	assert.Equal(t, []pdf.RenderOptions{{Scale: 1.5, Quality: 0.8}}, renderer.opts)

	assert.True(t, strings.HasSuffix(doc.Text, "\n\n| a | b |"))
	assert.Contains(t, doc.Text, "Scope of this standard")
	assert.Equal(t, CountWords(doc.Text), doc.WordCount)
}

func TestExtractPDFFallsBackWhenVisionFails(t *testing.T) {
	src := &fakeSource{pages: [][]layout.GlyphRun{tablePage()}}
	v := &mockVision{}
	v.On("ExtractPage", mock.Anything, mock.Anything, layout.ComplexityTable).Return("", errors.New("all 2 api keys failed"))

	e := NewExtractor(v, Options{VisionEnabled: true}, nil)
	doc, err := e.ExtractPDF(context.Background(), src, &fakeRenderer{})
	require.NoError(t, err)
	require.Len(t, doc.PageResults, 1)
	assert.Equal(t, MethodFallback, doc.PageResults[0].Method)
	assert.Equal(t, ConfidenceFallback, doc.PageResults[0].Confidence)
	assert.Contains(t, doc.Text, "c")
}

func TestExtractPDFRenderFailureFallsBack(t *testing.T) {
	src := &fakeSource{pages: [][]layout.GlyphRun{tablePage()}}
	v := &mockVision{}
	e := NewExtractor(v, Options{VisionEnabled: true}, nil)

	doc, err := e.ExtractPDF(context.Background(), src, &fakeRenderer{err: pdf.ErrRendererUnavailable})
	require.NoError(t, err)
	assert.Equal(t, MethodFallback, doc.PageResults[0].Method)
	v.AssertNotCalled(t, "ExtractPage", mock.Anything, mock.Anything, mock.Anything)
}

func TestExtractPDFVisionDisabled(t *testing.T) {
	src := &fakeSource{
		pages: [][]layout.GlyphRun{tablePage(), simplePage()},
		errs:  map[int]error{2: errors.New("corrupt content stream")},
	}
	e := NewExtractor(nil, Options{VisionEnabled: true}, nil)

	doc, err := e.ExtractPDF(context.Background(), src, &fakeRenderer{})
	require.NoError(t, err)
	assert.Equal(t, MethodLegacy, doc.PageResults[0].Method)
	assert.Equal(t, layout.ComplexityTable, doc.PageResults[0].Complexity)
	assert.Equal(t, layout.ComplexitySimple, doc.PageResults[1].Complexity)
	assert.Equal(t, "", doc.PageResults[1].Text)
}

func TestExtractPDFCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	e := NewExtractor(nil, Options{}, nil)
	_, err := e.ExtractPDF(ctx, &fakeSource{pages: [][]layout.GlyphRun{simplePage()}}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExtractMarkdown(t *testing.T) {
	e := NewExtractor(nil, Options{}, nil)
	doc := e.ExtractMarkdown("# Title\r\n\r\nThe brake shall work.")
	assert.Equal(t, "# Title\n\nThe brake shall work.", doc.Text)
	assert.Equal(t, 1, doc.Pages)
	assert.Equal(t, 6, doc.WordCount)
	assert.Equal(t, LanguageEnglish, doc.Language)

	long := e.ExtractMarkdown(strings.Repeat("word ", 1200))
	assert.Equal(t, 2, long.Pages)
}

func TestExtractFileValidation(t *testing.T) {
	dir := t.TempDir()
	e := NewExtractor(nil, Options{MaxFileBytes: 10}, nil)

	txt := filepath.Join(dir, "doc.txt")
	require.NoError(t, os.WriteFile(txt, []byte("x"), 0o644))
	_, err := e.ExtractFile(context.Background(), txt)
	assert.ErrorIs(t, err, ErrUnsupportedFileType)

	big := filepath.Join(dir, "doc.md")
	require.NoError(t, os.WriteFile(big, []byte("this is longer than ten bytes"), 0o644))
	_, err = e.ExtractFile(context.Background(), big)
	assert.ErrorIs(t, err, ErrFileTooLarge)

	small := filepath.Join(dir, "ok.md")
	require.NoError(t, os.WriteFile(small, []byte("# Hi"), 0o644))
	doc, err := e.ExtractFile(context.Background(), small)
	require.NoError(t, err)
	assert.Equal(t, "# Hi", doc.Text)
}

func TestDetectLanguage(t *testing.T) {
	assert.Equal(t, LanguageEnglish, DetectLanguage("The rated capacity limiter shall stop the crane."))
	assert.Equal(t, LanguageChinese, DetectLanguage("额定能力限制器应使起重机停止运行。"))
	assert.Equal(t, LanguageUnknown, DetectLanguage(""))
	assert.Equal(t, LanguageUnknown, DetectLanguage("制动 brake crane"))

	doc := &DocumentStructure{Language: LanguageChinese}
	assert.ErrorIs(t, doc.RequireEnglish(), ErrNotEnglish)
	doc.Language = LanguageUnknown
	assert.NoError(t, doc.RequireEnglish())
}

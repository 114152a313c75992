package export

import (
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"github.com/nerdneilsfield/guided-translator/pkg/chunk"
	"github.com/nerdneilsfield/guided-translator/pkg/translate"
)

const fontFamily = "CJK"

var (
	headingLine  = regexp.MustCompile(`^(#{1,6})\s+(.*)$`)
	bulletLine   = regexp.MustCompile(`^[-*]\s+(.*)$`)
	numberedLine = regexp.MustCompile(`^(\d+\.)\s+(.*)$`)
)

// 各级标题字号
var headingSizes = map[int]float64{1: 16, 2: 14, 3: 13, 4: 12, 5: 11, 6: 10}

// PDF 生成可检索文字的 PDF。中文需要 UTF-8 TTF 字体，缺失时返回 ErrNoFont。
func PDF(w io.Writer, chunks []translate.TranslatedChunk, opts Options) error {
	opts = opts.withDefaults()
	if opts.FontPath == "" {
		return ErrNoFont
	}
	if _, err := os.Stat(opts.FontPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s not found", ErrNoFont, opts.FontPath)
		}
		return fmt.Errorf("读取字体失败: %w", err)
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddUTF8Font(fontFamily, "", opts.FontPath)

	pdf.SetHeaderFunc(func() {
		pdf.SetFont(fontFamily, "", 9)
		pdf.SetTextColor(128, 128, 128)
		pdf.CellFormat(0, 10, opts.Title, "", 1, "R", false, 0, "")
	})
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont(fontFamily, "", 9)
		pdf.SetTextColor(128, 128, 128)
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d", pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	pdf.AddPage()
	r := &pdfRenderer{pdf: pdf}
	r.title(opts.Title)
	r.meta("Generated: " + opts.Generated.Format("2006-01-02 15:04"))

	for _, c := range Sorted(chunks) {
		if opts.IncludeOriginal && strings.TrimSpace(c.Text) != "" {
			r.original(c.Text)
		}
		translation := strings.TrimSpace(c.Translation)
		if translation == "" {
			continue
		}
		if c.Type == chunk.TypeHeading && !strings.HasPrefix(translation, "#") {
			r.heading(translation, 2)
			continue
		}
		r.markdown(translation)
	}

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("pdf generation failed: %w", err)
	}
	return pdf.Output(w)
}

type pdfRenderer struct {
	pdf *gofpdf.Fpdf
}

func (r *pdfRenderer) title(text string) {
	r.pdf.SetFont(fontFamily, "", 18)
	r.pdf.SetTextColor(0, 0, 0)
	r.pdf.MultiCell(0, 10, text, "", "L", false)
	r.pdf.Ln(3)
}

func (r *pdfRenderer) meta(text string) {
	r.pdf.SetFont(fontFamily, "", 10)
	r.pdf.SetTextColor(100, 100, 100)
	r.pdf.MultiCell(0, 5, text, "", "L", false)
	r.pdf.Ln(8)
}

func (r *pdfRenderer) original(text string) {
	r.pdf.SetFont(fontFamily, "", 8)
	r.pdf.SetTextColor(150, 150, 150)
	r.pdf.MultiCell(0, 4, strings.TrimSpace(text), "", "L", false)
	r.pdf.Ln(1)
}

func (r *pdfRenderer) heading(text string, level int) {
	size, ok := headingSizes[level]
	if !ok {
		size = 12
	}
	r.pdf.SetFont(fontFamily, "", size)
	r.pdf.SetTextColor(30, 30, 50)
	if r.pdf.GetY() > 30 {
		r.pdf.Ln(3)
	}
	r.pdf.MultiCell(0, size*0.6, text, "", "L", false)
	r.pdf.Ln(2)
}

func (r *pdfRenderer) paragraph(text string) {
	r.pdf.SetFont(fontFamily, "", 10)
	r.pdf.SetTextColor(50, 50, 50)
	r.pdf.MultiCell(0, 5, text, "", "L", false)
	r.pdf.Ln(2)
}

func (r *pdfRenderer) listItem(marker, text string) {
	r.pdf.SetFont(fontFamily, "", 10)
	r.pdf.SetTextColor(50, 50, 50)
	r.pdf.CellFormat(r.pdf.GetStringWidth(marker)+2, 5, marker, "", 0, "L", false, 0, "")
	r.pdf.MultiCell(0, 5, text, "", "L", false)
}

// markdown 逐行渲染标题、列表和段落
func (r *pdfRenderer) markdown(text string) {
	for _, line := range strings.Split(text, "\n") {
		stripped := strings.TrimSpace(line)
		switch {
		case stripped == "":
			r.pdf.Ln(2)
		case headingLine.MatchString(stripped):
			m := headingLine.FindStringSubmatch(stripped)
			r.heading(strings.TrimSpace(m[2]), len(m[1]))
		case bulletLine.MatchString(stripped):
			r.listItem("•", bulletLine.FindStringSubmatch(stripped)[1])
		case numberedLine.MatchString(stripped):
			m := numberedLine.FindStringSubmatch(stripped)
			r.listItem(m[1], m[2])
		default:
			r.paragraph(stripped)
		}
	}
}

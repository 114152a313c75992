package vision

import (
	"fmt"

	"github.com/nerdneilsfield/guided-translator/pkg/layout"
)

const transcribePrompt = `# Technical Document Transcription Task

Transcribe this page of a technical standards document into Markdown.

## Rules
1. Transcribe ALL text verbatim. Do NOT summarize, paraphrase or translate.
2. Keep clause numbers (e.g. 5.2.1, A.1) exactly as printed at the start of their lines.
3. Render headings with #, lists with - or their original numbering.
4. Render tables as Markdown tables with one row per printed row.
5. Render formulas in LaTeX between $ signs.
6. Ignore running headers, footers and page numbers.
7. Output ONLY the Markdown, without code fences or commentary.`

const tablePrompt = `# Technical Table Transcription Task

This page is dominated by one or more tables. Transcribe it into Markdown.

## Rules
1. Preserve the exact column structure. Every row MUST have the same number of cells as the header.
2. Merged cells are repeated in every column or row they span.
3. Write an empty cell as -
4. Write a value you cannot read with certainty as ?
5. Keep units, tolerances and footnote markers exactly as printed.
6. Transcribe any text outside the tables verbatim, keeping clause numbers.
7. Output ONLY the Markdown, without code fences or commentary.`

const validatePrompt = `You are checking a Markdown transcription of the attached page image.

Compare the transcription with the image and reply with a JSON object only:
{"isValid": true|false, "confidence": 0-100, "issues": ["..."]}

isValid is false when text, numbers or table cells are missing or wrong.

## Transcription
%s`

// PromptFor 按页面复杂度选择提示词
func PromptFor(c layout.Complexity) string {
	if c == layout.ComplexityTable {
		return tablePrompt
	}
	return transcribePrompt
}

func validationPrompt(markdown string) string {
	return fmt.Sprintf(validatePrompt, markdown)
}

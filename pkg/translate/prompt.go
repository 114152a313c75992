package translate

import (
	"strings"

	"github.com/nerdneilsfield/guided-translator/pkg/glossary"
)

const systemPrompt = "You are a professional translator of technical standards from English into Simplified Chinese."

// BuildPrompt 生成带术语约束的翻译提示词，只列出原文中出现的术语
func BuildPrompt(text string, terms []glossary.Entry) string {
	var sb strings.Builder
	sb.WriteString("# Technical Document Translation Task\n\n")
	sb.WriteString("## Instructions\n")
	sb.WriteString("Translate the following English technical document content into Simplified Chinese.\n\n")

	sb.WriteString("## Rules\n")
	sb.WriteString("1. When a term listed under Mandatory Terminology appears, you MUST use exactly the given translation.\n")
	sb.WriteString("2. Translate ALL text completely, including tables, lists and notes. Do not skip or summarize anything.\n")
	sb.WriteString("3. Keep proper nouns, standard codes (e.g. EN 13001, ISO 9001), units and formulas unchanged.\n")
	sb.WriteString("4. If the text starts with a clause number (e.g. 5.2.1 or A.1), keep it exactly as it is at the start.\n")
	sb.WriteString("5. Preserve the exact number of line breaks, the indentation and all Markdown formatting.\n")
	sb.WriteString("6. Output ONLY the translated text. No explanations, no commentary, no code fences.\n")

	if len(terms) > 0 {
		sb.WriteString("\n## Mandatory Terminology\n")
		sb.WriteString("You MUST use these exact translations for the following terms:\n")
		for _, t := range terms {
			sb.WriteString("- ")
			sb.WriteString(t.English)
			sb.WriteString(" → ")
			sb.WriteString(t.Chinese)
			sb.WriteString("\n")
		}
	}

	sb.WriteString("\n## Source Text\n")
	sb.WriteString(text)
	sb.WriteString("\n\n## Translation (Chinese):")
	return sb.String()
}

var preambles = []string{
	"here is the translation:",
	"here's the translation:",
	"translation (chinese):",
	"translation:",
	"以下是翻译：",
	"以下是译文：",
	"译文：",
	"译文:",
	"翻译：",
	"翻译:",
}

// CleanResponse 去掉代码围栏和常见的开场白
func CleanResponse(text string) string {
	text = strings.TrimSpace(text)
	for {
		before := text
		text = stripFence(text)
		text = stripPreamble(text)
		if text == before {
			return text
		}
	}
}

func stripFence(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	lines := strings.Split(text, "\n")[1:]
	if n := len(lines); n > 0 && strings.TrimSpace(lines[n-1]) == "```" {
		lines = lines[:n-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func stripPreamble(text string) string {
	lower := strings.ToLower(text)
	for _, p := range preambles {
		if strings.HasPrefix(lower, p) {
			return strings.TrimSpace(text[len(p):])
		}
	}
	return text
}

// Package chunk 把文档文本切分为按条款组织、受 token 预算约束的翻译单元。
package chunk

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/dlclark/regexp2"
)

// DefaultMaxTokens 默认每个分块的 token 预算
const DefaultMaxTokens = 800

// Type 分块的结构类型
type Type string

const (
	TypeHeading   Type = "heading"
	TypeParagraph Type = "paragraph"
	TypeList      Type = "list"
	TypeTable     Type = "table"
)

// Metadata 分块元数据
type Metadata struct {
	Heading      string `json:"heading,omitempty"`
	Level        int    `json:"level,omitempty"`
	ClauseNumber string `json:"clauseNumber,omitempty"`
}

// Chunk 一个翻译单元。Position 从 0 开始连续编号，是重组和续译的唯一依据。
type Chunk struct {
	ID       string   `json:"id"`
	Text     string   `json:"text"`
	Position int      `json:"position"`
	Type     Type     `json:"type"`
	Metadata Metadata `json:"metadata"`
}

var (
	// 条款号，例如 "5.2.1"、"A.1"；允许前面带 Markdown 标题标记
	clausePattern  = regexp.MustCompile(`^(?:#{1,6}\s+)?((?:\d+\.)*\d+|[A-Z]\.\d+(?:\.\d+)*)\s+`)
	paragraphBreak = regexp.MustCompile(`\n[ \t]*\n`)
	// 句末标点后的空白
	sentenceBreak = regexp2.MustCompile(`(?<=[.!?。！？])\s+`, regexp2.None)
)

// EstimateTokens 粗略估计 token 数：每 4 个字符约 1 个 token，向上取整
func EstimateTokens(text string) int {
	n := len([]rune(text))
	return (n + 3) / 4
}

// ClauseNumber 返回行首的条款号，没有则返回空串
func ClauseNumber(line string) string {
	m := clausePattern.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return ""
	}
	return m[1]
}

type section struct {
	clause string
	lines  []string
}

func (s section) text() string {
	return strings.TrimSpace(strings.Join(s.lines, "\n"))
}

// SplitIntoChunks 按条款切分文本，超出预算的条款再按段落、句子贪心打包。
// maxTokens<=0 时使用 DefaultMaxTokens。
func SplitIntoChunks(text string, maxTokens int) []Chunk {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var chunks []Chunk
	emit := func(body, clause string) {
		body = strings.TrimSpace(body)
		if body == "" {
			return
		}
		pos := len(chunks)
		c := Chunk{
			ID:       fmt.Sprintf("chunk_%d", pos),
			Text:     body,
			Position: pos,
			Metadata: Metadata{ClauseNumber: clause},
		}
		classify(&c)
		chunks = append(chunks, c)
	}

	for _, sec := range splitSections(text) {
		body := sec.text()
		if body == "" {
			continue
		}
		if EstimateTokens(body) <= maxTokens {
			emit(body, sec.clause)
			continue
		}

		clause := sec.clause
		for _, part := range packParagraphs(body, maxTokens) {
			emit(part, clause)
			clause = ""
		}
	}
	return chunks
}

func splitSections(text string) []section {
	var sections []section
	current := section{}
	for _, line := range strings.Split(text, "\n") {
		if clause := ClauseNumber(line); clause != "" {
			if len(current.lines) > 0 {
				sections = append(sections, current)
			}
			current = section{clause: clause}
		}
		current.lines = append(current.lines, line)
	}
	if len(current.lines) > 0 {
		sections = append(sections, current)
	}
	return sections
}

// packParagraphs 把段落贪心地装入不超过预算的分块；单个超长段落按句子拆分
func packParagraphs(body string, maxTokens int) []string {
	var out []string
	var current []string
	flush := func(sep string) {
		if len(current) > 0 {
			out = append(out, strings.Join(current, sep))
			current = nil
		}
	}

	for _, para := range paragraphBreak.Split(body, -1) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}

		if EstimateTokens(para) > maxTokens {
			flush("\n\n")
			for _, sentence := range splitSentences(para) {
				candidate := strings.Join(append(append([]string{}, current...), sentence), " ")
				if len(current) > 0 && EstimateTokens(candidate) > maxTokens {
					flush(" ")
				}
				current = append(current, sentence)
			}
			flush(" ")
			continue
		}

		candidate := strings.Join(append(append([]string{}, current...), para), "\n\n")
		if len(current) > 0 && EstimateTokens(candidate) > maxTokens {
			flush("\n\n")
		}
		current = append(current, para)
	}
	flush("\n\n")
	return out
}

func splitSentences(para string) []string {
	var out []string
	runes := []rune(para)
	start := 0
	m, err := sentenceBreak.FindStringMatch(para)
	for err == nil && m != nil {
		if s := strings.TrimSpace(string(runes[start:m.Index])); s != "" {
			out = append(out, s)
		}
		start = m.Index + m.Length
		m, err = sentenceBreak.FindNextMatch(m)
	}
	if s := strings.TrimSpace(string(runes[start:])); s != "" {
		out = append(out, s)
	}
	return out
}

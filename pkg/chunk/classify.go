package chunk

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// 标题判定的信号权重
const (
	WeightMarkdownHeading  = 5
	WeightStructuralPrefix = 5
	WeightNumberedShort    = 3
	WeightCapitalizedShort = 2
	WeightClauseShort      = 3

	HeadingThreshold = 2

	shortLineRunes       = 80
	capitalizedLineRunes = 60
)

// HeadingSignals 首行上观察到的标题信号
type HeadingSignals struct {
	MarkdownHeading  bool // 以 # 开头
	StructuralPrefix bool // Chapter/Section/Annex/Appendix 前缀
	NumberedShort    bool // 条款号开头的短行
	CapitalizedShort bool // 首字母大写、较短、无句末标点
	ClauseShort      bool // 分块带有条款号且首行较短
}

// HeadingScore 累加命中信号的权重
func HeadingScore(s HeadingSignals) int {
	score := 0
	if s.MarkdownHeading {
		score += WeightMarkdownHeading
	}
	if s.StructuralPrefix {
		score += WeightStructuralPrefix
	}
	if s.NumberedShort {
		score += WeightNumberedShort
	}
	if s.CapitalizedShort {
		score += WeightCapitalizedShort
	}
	if s.ClauseShort {
		score += WeightClauseShort
	}
	return score
}

var (
	markdownHeading  = regexp.MustCompile(`^(#{1,6})\s+`)
	structuralPrefix = regexp.MustCompile(`(?i)^(chapter|section|annex|appendix)\b`)
	listMarker       = regexp.MustCompile(`^\s*([-*•]|\d+[.)])\s+`)
)

// DetectHeadingSignals 计算首行的标题信号
func DetectHeadingSignals(firstLine, clause string) HeadingSignals {
	line := strings.TrimSpace(firstLine)
	n := utf8.RuneCountInString(line)
	short := n > 0 && n <= shortLineRunes

	first, _ := utf8.DecodeRuneInString(line)
	last, _ := utf8.DecodeLastRuneInString(line)

	return HeadingSignals{
		MarkdownHeading:  markdownHeading.MatchString(line),
		StructuralPrefix: structuralPrefix.MatchString(line),
		NumberedShort:    short && ClauseNumber(line) != "",
		CapitalizedShort: n > 0 && n <= capitalizedLineRunes && unicode.IsUpper(first) && !strings.ContainsRune(".,;:!?。，；：！？", last),
		ClauseShort:      short && clause != "",
	}
}

// Classify 判定文本的结构类型
func Classify(text, clause string) Type {
	first := firstLine(text)
	if HeadingScore(DetectHeadingSignals(first, clause)) >= HeadingThreshold {
		return TypeHeading
	}
	if listMarker.MatchString(first) {
		return TypeList
	}
	if isTable(text) {
		return TypeTable
	}
	return TypeParagraph
}

// HeadingLevel 优先取 # 数量，其次取条款层级，默认 2
func HeadingLevel(firstLine, clause string) int {
	if m := markdownHeading.FindStringSubmatch(strings.TrimSpace(firstLine)); m != nil {
		return len(m[1])
	}
	if clause != "" {
		return len(strings.Split(clause, "."))
	}
	return 2
}

func classify(c *Chunk) {
	c.Type = Classify(c.Text, c.Metadata.ClauseNumber)
	if c.Type == TypeHeading {
		first := firstLine(c.Text)
		c.Metadata.Level = HeadingLevel(first, c.Metadata.ClauseNumber)
		c.Metadata.Heading = strings.TrimSpace(markdownHeading.ReplaceAllString(strings.TrimSpace(first), ""))
	}
}

// 至少 5 个竖线且分布在至少 2 行
func isTable(text string) bool {
	pipes, lines := 0, 0
	for _, line := range strings.Split(text, "\n") {
		if c := strings.Count(line, "|"); c > 0 {
			pipes += c
			lines++
		}
	}
	return pipes >= 5 && lines >= 2
}

func firstLine(text string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(text), "\n")
	return line
}

package extract

import (
	"regexp"
	"strings"
)

// Language 文档语言
type Language string

const (
	LanguageEnglish Language = "en"
	LanguageChinese Language = "zh"
	LanguageUnknown Language = "unknown"
)

const languageSampleRunes = 1000

var (
	cjkPattern       = regexp.MustCompile(`[\x{4e00}-\x{9fff}]`)
	latinWordPattern = regexp.MustCompile(`[A-Za-z]+`)
)

// DetectLanguage 取前 1000 个字符，比较汉字数和拉丁单词数
func DetectLanguage(text string) Language {
	sample := text
	if r := []rune(text); len(r) > languageSampleRunes {
		sample = string(r[:languageSampleRunes])
	}

	cjk := len(cjkPattern.FindAllStringIndex(sample, -1))
	words := len(latinWordPattern.FindAllStringIndex(sample, -1))

	switch {
	case cjk > words:
		return LanguageChinese
	case words > 2*cjk:
		return LanguageEnglish
	default:
		return LanguageUnknown
	}
}

// CountWords 按空白切分计数
func CountWords(text string) int {
	return len(strings.Fields(text))
}

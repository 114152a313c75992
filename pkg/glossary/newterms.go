package glossary

import (
	"sort"
	"strings"

	"github.com/dlclark/regexp2"
)

// NewTerm 术语表中没有的候选术语
type NewTerm struct {
	English   string `json:"english"`
	Positions []int  `json:"positions"`
}

// 2 到 4 个首字母大写的连续单词，例如 "Electronic Stability Control"
var candidatePattern = regexp2.MustCompile(`(?<![\w-])[A-Z][a-zA-Z0-9]+(?:[ -][A-Z][a-zA-Z0-9]+){1,3}(?![\w-])`, regexp2.None)

// 句首常见的非术语词
var candidateStopwords = map[string]bool{
	"The": true, "This": true, "These": true, "That": true, "Those": true,
	"A": true, "An": true, "If": true, "When": true, "Where": true,
	"For": true, "In": true, "On": true, "See": true, "Table": true, "Figure": true,
}

// NewTermCandidates 找出不在术语表中的候选术语，按首次出现位置排序
func (m *Matcher) NewTermCandidates(text string) []NewTerm {
	known := make(map[string]bool, len(m.terms))
	for _, t := range m.terms {
		known[strings.ToLower(t.entry.English)] = true
	}

	found := make(map[string]*NewTerm)
	var order []string
	match, err := candidatePattern.FindStringMatch(text)
	for err == nil && match != nil {
		phrase, offset := trimStopword(match.String(), match.Index)
		if phrase != "" && strings.ContainsAny(phrase, " -") && !known[strings.ToLower(phrase)] {
			key := strings.ToLower(phrase)
			if nt, ok := found[key]; ok {
				nt.Positions = append(nt.Positions, offset)
			} else {
				found[key] = &NewTerm{English: phrase, Positions: []int{offset}}
				order = append(order, key)
			}
		}
		match, err = candidatePattern.FindNextMatch(match)
	}

	out := make([]NewTerm, 0, len(order))
	for _, k := range order {
		out = append(out, *found[k])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Positions[0] < out[j].Positions[0]
	})
	return out
}

func trimStopword(phrase string, offset int) (string, int) {
	first, rest, ok := strings.Cut(phrase, " ")
	if ok && candidateStopwords[first] {
		return rest, offset + len([]rune(first)) + 1
	}
	return phrase, offset
}

// Package glossary 提供术语表加载、整词匹配、覆盖率统计和新术语候选识别。
package glossary

import (
	"errors"
	"sort"
	"strings"

	"github.com/dlclark/regexp2"
	"github.com/lithammer/fuzzysearch/fuzzy"
)

// ErrEmptyGlossary 术语表没有任何有效条目
var ErrEmptyGlossary = errors.New("glossary is empty")

// 匹配来源
const (
	SourceGlossary = "glossary"
	SourceNew      = "new"
)

// Entry 术语表条目
type Entry struct {
	English string `json:"english"`
	Chinese string `json:"chinese"`
	Source  string `json:"source,omitempty"`
}

// TermMatch 文本中命中的术语。Positions 是按 rune 计的起始偏移，升序。
type TermMatch struct {
	English   string `json:"english"`
	Chinese   string `json:"chinese"`
	Positions []int  `json:"positions"`
	Source    string `json:"source"`
}

// Coverage 术语覆盖率
type Coverage struct {
	Matched    int `json:"matched"`
	Total      int `json:"total"`
	Percentage int `json:"percentage"`
}

type compiledTerm struct {
	entry Entry
	re    *regexp2.Regexp
}

// Matcher 预编译的术语匹配器。长术语优先，已被长术语覆盖的区间不再匹配短术语。
type Matcher struct {
	terms []compiledTerm
}

// NewMatcher 编译术语表。英文为空的条目被忽略，重复条目只保留第一个。
func NewMatcher(entries []Entry) (*Matcher, error) {
	seen := make(map[string]bool, len(entries))
	terms := make([]compiledTerm, 0, len(entries))
	for _, e := range entries {
		e.English = strings.TrimSpace(e.English)
		e.Chinese = strings.TrimSpace(e.Chinese)
		key := strings.ToLower(e.English)
		if e.English == "" || seen[key] {
			continue
		}
		seen[key] = true

		re, err := regexp2.Compile(`(?<!\w)`+regexp2.Escape(e.English)+`(?!\w)`, regexp2.IgnoreCase)
		if err != nil {
			return nil, err
		}
		terms = append(terms, compiledTerm{entry: e, re: re})
	}

	sort.SliceStable(terms, func(i, j int) bool {
		return len([]rune(terms[i].entry.English)) > len([]rune(terms[j].entry.English))
	})
	return &Matcher{terms: terms}, nil
}

// Size 术语数量
func (m *Matcher) Size() int {
	return len(m.terms)
}

// Entries 按匹配顺序（长术语在前）返回条目
func (m *Matcher) Entries() []Entry {
	out := make([]Entry, len(m.terms))
	for i, t := range m.terms {
		out[i] = t.entry
	}
	return out
}

// Identify 找出文本中出现的术语，按首次出现位置排序
func (m *Matcher) Identify(text string) []TermMatch {
	if text == "" || len(m.terms) == 0 {
		return nil
	}
	consumed := make([]bool, len([]rune(text)))

	var matches []TermMatch
	for _, t := range m.terms {
		var positions []int
		match, err := t.re.FindStringMatch(text)
		for err == nil && match != nil {
			// regexp2 的 Index/Length 以 rune 计
			start, length := match.Index, match.Length
			if !overlaps(consumed, start, length) {
				for i := start; i < start+length; i++ {
					consumed[i] = true
				}
				positions = append(positions, start)
			}
			match, err = t.re.FindNextMatch(match)
		}
		if len(positions) > 0 {
			matches = append(matches, TermMatch{
				English:   t.entry.English,
				Chinese:   t.entry.Chinese,
				Positions: positions,
				Source:    SourceGlossary,
			})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Positions[0] < matches[j].Positions[0]
	})
	return matches
}

// Relevant 只返回在文本中出现过的条目，顺序同 Identify
func (m *Matcher) Relevant(text string) []Entry {
	found := m.Identify(text)
	out := make([]Entry, 0, len(found))
	for _, f := range found {
		out = append(out, Entry{English: f.English, Chinese: f.Chinese, Source: SourceGlossary})
	}
	return out
}

// Search 对英文和中文做模糊搜索，结果按相似度排序
func (m *Matcher) Search(query string, limit int) []Entry {
	if query == "" {
		return nil
	}
	targets := make([]string, 0, len(m.terms)*2)
	owner := make(map[string]Entry, len(m.terms)*2)
	for _, t := range m.terms {
		for _, s := range []string{t.entry.English, t.entry.Chinese} {
			if s == "" {
				continue
			}
			if _, ok := owner[s]; !ok {
				targets = append(targets, s)
				owner[s] = t.entry
			}
		}
	}

	ranks := fuzzy.RankFindNormalizedFold(query, targets)
	sort.Sort(ranks)

	seen := make(map[string]bool)
	var out []Entry
	for _, r := range ranks {
		e := owner[r.Target]
		if seen[e.English] {
			continue
		}
		seen[e.English] = true
		out = append(out, e)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// IdentifyTermsInText 用一次性的匹配器识别术语
func IdentifyTermsInText(text string, entries []Entry) ([]TermMatch, error) {
	m, err := NewMatcher(entries)
	if err != nil {
		return nil, err
	}
	return m.Identify(text), nil
}

// CalculateCoverage 统计在文本中至少出现一次的术语比例，四舍五入到整数百分比
func CalculateCoverage(text string, entries []Entry) (Coverage, error) {
	m, err := NewMatcher(entries)
	if err != nil {
		return Coverage{}, err
	}
	return m.Coverage(text), nil
}

// Coverage 统计覆盖率
func (m *Matcher) Coverage(text string) Coverage {
	total := m.Size()
	if total == 0 {
		return Coverage{}
	}
	matched := len(m.Identify(text))
	return Coverage{
		Matched:    matched,
		Total:      total,
		Percentage: (matched*100 + total/2) / total,
	}
}

func overlaps(mask []bool, start, length int) bool {
	for i := start; i < start+length && i < len(mask); i++ {
		if mask[i] {
			return true
		}
	}
	return false
}

// CoverageOf 按不同术语（忽略大小写）统计一组匹配结果对术语表的覆盖率
func CoverageOf(matches []TermMatch, total int) Coverage {
	if total <= 0 {
		return Coverage{}
	}
	seen := make(map[string]bool, len(matches))
	for _, m := range matches {
		if m.Source == SourceNew {
			continue
		}
		seen[strings.ToLower(m.English)] = true
	}
	matched := len(seen)
	if matched > total {
		matched = total
	}
	return Coverage{
		Matched:    matched,
		Total:      total,
		Percentage: (matched*100 + total/2) / total,
	}
}

package pipeline

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxSearchQueryChars 检索查询的最大字符数
const MaxSearchQueryChars = 200

var searchDirective = regexp.MustCompile(`(?i)\[\s*search\s*:\s*([^\]\n]*)\]`)

// ParseSearchDirective 从思考文本中取出第一个 [SEARCH: query] 的查询。
// 标记本身保留在思考文本中，这里只负责抽取。
func ParseSearchDirective(text string) (string, bool) {
	m := searchDirective.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	q := strings.TrimSpace(m[1])
	if q == "" {
		return "", false
	}
	return clip(q, MaxSearchQueryChars, ""), true
}

// clip 按字符截断，超长时追加 suffix
func clip(s string, max int, suffix string) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return strings.TrimRight(string(r[:max]), " ") + suffix
}

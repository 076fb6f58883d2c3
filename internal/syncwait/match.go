package syncwait

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Matcher decides whether a snapshot shows the expected document. It returns
// the evidence it matched on.
type Matcher interface {
	Match(text string) (string, bool)
	String() string
}

type contains string

// Contains matches when text appears verbatim as whole words: "Test 4" does
// not match inside "Test 42".
func Contains(text string) Matcher { return contains(text) }

func (c contains) Match(text string) (string, bool) {
	if c == "" {
		return "", false
	}
	if containsWord(text, string(c)) {
		return string(c), true
	}
	return "", false
}

func (c contains) String() string { return "contains " + quote(string(c)) }

type tagged struct {
	tag      string
	keywords []string
}

// TagWithKeywords matches a line that carries the run tag plus every
// keyword, for apps that reformat or truncate titles.
func TagWithKeywords(tag string, keywords ...string) Matcher {
	return tagged{tag: tag, keywords: keywords}
}

func (m tagged) Match(text string) (string, bool) {
	if m.tag == "" {
		return "", false
	}
	for _, line := range strings.Split(text, "\n") {
		if !containsWord(line, m.tag) {
			continue
		}
		ok := true
		for _, k := range m.keywords {
			if !containsWord(line, k) {
				ok = false
				break
			}
		}
		if ok {
			return strings.TrimSpace(line), true
		}
	}
	return "", false
}

func (m tagged) String() string {
	return "tag " + quote(m.tag) + " with " + strings.Join(m.keywords, ", ")
}

type anyOf []Matcher

// AnyOf tries matchers in order.
func AnyOf(ms ...Matcher) Matcher { return anyOf(ms) }

func (a anyOf) Match(text string) (string, bool) {
	for _, m := range a {
		if ev, ok := m.Match(text); ok {
			return ev, true
		}
	}
	return "", false
}

func (a anyOf) String() string {
	parts := make([]string, len(a))
	for i, m := range a {
		parts[i] = m.String()
	}
	return strings.Join(parts, " or ")
}

// ForSeed is the usual matcher for a seeded document: the exact title, or
// the run tag on a line that also names the label and the "GitHub" and
// "Test" markers.
func ForSeed(title, label, tag string) Matcher {
	keywords := []string{"GitHub", "Test"}
	if label = strings.TrimSpace(label); label != "" {
		keywords = append(keywords, label)
	}
	return AnyOf(Contains(title), TagWithKeywords(tag, keywords...))
}

// containsWord reports whether sub occurs in s with no letter or digit
// directly before or after it.
func containsWord(s, sub string) bool {
	if sub == "" {
		return false
	}
	for from := 0; from <= len(s)-len(sub); {
		i := strings.Index(s[from:], sub)
		if i < 0 {
			return false
		}
		start, end := from+i, from+i+len(sub)
		before, _ := utf8.DecodeLastRuneInString(s[:start])
		after, _ := utf8.DecodeRuneInString(s[end:])
		if !isWord(before) && !isWord(after) {
			return true
		}
		_, size := utf8.DecodeRuneInString(s[start:])
		from = start + size
	}
	return false
}

func isWord(r rune) bool {
	return r != utf8.RuneError && (unicode.IsLetter(r) || unicode.IsDigit(r))
}

func quote(s string) string { return `"` + s + `"` }

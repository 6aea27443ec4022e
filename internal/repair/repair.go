// Package repair recovers a structured validation opinion from the free-form
// text a language model returns. Models routinely wrap JSON in code fences,
// surround it with prose, or emit Python literals; each tolerated mistake is
// a small named rule in Rules.
package repair

import (
	"regexp"
	"strings"
)

// Rule is one textual repair. Apply must be pure and idempotent.
type Rule struct {
	Name  string
	Apply func(string) string
}

// Rules is the ordered repair table applied by Repair.
var Rules = []Rule{
	{Name: "placeholder-bool", Apply: collapsePlaceholderBool},
	{Name: "trailing-commas", Apply: removeTrailingCommas},
	{Name: "single-quotes", Apply: singleToDoubleQuotes},
	{Name: "null-variants", Apply: normalizeNulls},
	{Name: "python-bools", Apply: normalizeBools},
}

// Repair applies every rule in Rules in order.
func Repair(s string) string {
	return Apply(s, Rules)
}

// Apply runs the given rules over s in order.
func Apply(s string, rules []Rule) string {
	for _, r := range rules {
		s = r.Apply(s)
	}
	return s
}

// StripFence returns the body of the first fenced code block in s, or s
// trimmed when there is no fence. An unterminated fence keeps everything
// after the opening line.
func StripFence(s string) string {
	s = strings.TrimSpace(s)
	start := strings.Index(s, "```")
	if start < 0 {
		return s
	}
	body := s[start+3:]
	// Drop the info string ("json", "JSON", ...) on the opening line.
	if nl := strings.IndexByte(body, '\n'); nl >= 0 && !strings.ContainsAny(body[:nl], "{}") {
		body = body[nl+1:]
	} else if nl < 0 {
		body = strings.TrimLeft(body, "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ")
	}
	if end := strings.Index(body, "```"); end >= 0 {
		body = body[:end]
	}
	return strings.TrimSpace(body)
}

// FindObject returns the leading object when s already starts with '{'.
// Otherwise it returns the first brace-balanced object in s that mentions
// the agrees key.
func FindObject(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "{") {
		if end := matchBrace(s, 0); end >= 0 {
			return s[:end+1], true
		}
		return s, true
	}
	for i := 0; i < len(s); i++ {
		if s[i] != '{' {
			continue
		}
		end := matchBrace(s, i)
		if end < 0 {
			break
		}
		candidate := s[i : end+1]
		if strings.Contains(candidate, "agrees") {
			return candidate, true
		}
		i = end
	}
	return "", false
}

// matchBrace returns the index of the brace closing the one at open, or -1.
// Braces inside quoted strings are ignored.
func matchBrace(s string, open int) int {
	depth := 0
	var quote byte
	for i := open; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			switch c {
			case '\\':
				i++
			case quote:
				quote = 0
			}
			continue
		}
		switch c {
		case '"':
			quote = c
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

var (
	placeholderBool = regexp.MustCompile(`(?i)\btrue\s*/\s*false\b`)
	trailingComma   = regexp.MustCompile(`,\s*([}\]])`)
	nullVariant     = regexp.MustCompile(`\b(?:None|NULL|Null|nil|undefined)\b`)
	pythonTrue      = regexp.MustCompile(`\b(?:True|TRUE)\b`)
	pythonFalse     = regexp.MustCompile(`\b(?:False|FALSE)\b`)
)

func collapsePlaceholderBool(s string) string {
	return outsideStrings(s, func(seg string) string {
		return placeholderBool.ReplaceAllString(seg, "true")
	})
}

func removeTrailingCommas(s string) string {
	return outsideStrings(s, func(seg string) string {
		return trailingComma.ReplaceAllString(seg, "$1")
	})
}

func normalizeNulls(s string) string {
	return outsideStrings(s, func(seg string) string {
		return nullVariant.ReplaceAllString(seg, "null")
	})
}

func normalizeBools(s string) string {
	return outsideStrings(s, func(seg string) string {
		seg = pythonTrue.ReplaceAllString(seg, "true")
		return pythonFalse.ReplaceAllString(seg, "false")
	})
}

// outsideStrings applies fn to every part of s that is not inside a
// double-quoted JSON string.
func outsideStrings(s string, fn func(string) string) string {
	var b strings.Builder
	b.Grow(len(s))
	segStart := 0
	for i := 0; i < len(s); i++ {
		if s[i] != '"' {
			continue
		}
		b.WriteString(fn(s[segStart:i]))
		end := closingQuote(s, i)
		if end < 0 {
			b.WriteString(s[i:])
			return b.String()
		}
		b.WriteString(s[i : end+1])
		i = end
		segStart = end + 1
	}
	b.WriteString(fn(s[segStart:]))
	return b.String()
}

// closingQuote returns the index of the unescaped '"' ending the string that
// opens at i, or -1.
func closingQuote(s string, i int) int {
	for j := i + 1; j < len(s); j++ {
		switch s[j] {
		case '\\':
			j++
		case '"':
			return j
		}
	}
	return -1
}

// singleToDoubleQuotes rewrites single-quoted keys and values as JSON
// strings. A quote only closes a single-quoted string when the next
// non-space byte is structural, so apostrophes inside values survive.
// Double quotes inside a converted string are escaped.
func singleToDoubleQuotes(s string) string {
	if !strings.Contains(s, "'") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 8)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"':
			end := closingQuote(s, i)
			if end < 0 {
				b.WriteString(s[i:])
				return b.String()
			}
			b.WriteString(s[i : end+1])
			i = end
		case c == '\'' && opensValue(s, i):
			end := closingSingle(s, i)
			if end < 0 {
				b.WriteString(s[i:])
				return b.String()
			}
			b.WriteByte('"')
			for _, r := range strings.ReplaceAll(s[i+1:end], `\'`, "'") {
				if r == '"' {
					b.WriteString(`\"`)
					continue
				}
				b.WriteRune(r)
			}
			b.WriteByte('"')
			i = end
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// opensValue reports whether the quote at i follows a structural byte, so
// it starts a key or value rather than sitting inside a bare word.
func opensValue(s string, i int) bool {
	for j := i - 1; j >= 0; j-- {
		switch s[j] {
		case ' ', '\t', '\n', '\r':
			continue
		case '{', '[', ',', ':':
			return true
		default:
			return false
		}
	}
	return true
}

func closingSingle(s string, open int) int {
	for j := open + 1; j < len(s); j++ {
		switch s[j] {
		case '\\':
			j++
		case '\'':
			if closesValue(s, j) {
				return j
			}
		}
	}
	return -1
}

func closesValue(s string, i int) bool {
	for j := i + 1; j < len(s); j++ {
		switch s[j] {
		case ' ', '\t', '\n', '\r':
			continue
		case '}', ']', ',', ':':
			return true
		default:
			return false
		}
	}
	return true
}

// Package scan holds the lexical machinery shared by the interactive
// engine: the line accumulator that decides when buffered input forms a
// complete fragment, and the small hand-written scanners used for macro
// argument splitting, declaration detection and quote tracking.
package scan

import "unicode"

// IsIdentStart reports whether r can begin an identifier.
func IsIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

// IsIdentPart reports whether r can appear after the first character of
// an identifier.
func IsIdentPart(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// ScanIdent returns the end offset of the identifier starting at i, or i
// if no identifier starts there.
func ScanIdent(s string, i int) int {
	if i >= len(s) || !IsIdentStart(rune(s[i])) {
		return i
	}
	j := i + 1
	for j < len(s) && IsIdentPart(rune(s[j])) {
		j++
	}
	return j
}

// BalancedGroup scans the parenthesised group starting at s[i] (which
// must be '('), tracking (), {} and [] depth jointly so that structured
// arguments do not end the group early. Quoted spans are inert. It
// returns the offset one past the closing ')' and false when the group
// never closes.
func BalancedGroup(s string, i int) (end int, ok bool) {
	if i >= len(s) || s[i] != '(' {
		return i, false
	}
	depth := 0
	var quote byte
	for j := i; j < len(s); j++ {
		c := s[j]
		if quote != 0 {
			if c == '\\' {
				j++
			} else if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			quote = c
		case '(', '{', '[':
			depth++
		case ')', '}', ']':
			depth--
			if depth == 0 && c == ')' {
				return j + 1, true
			}
			if depth < 0 {
				return j, false
			}
		}
	}
	return len(s), false
}

// SplitTopLevel splits s on sep occurrences at joint bracket depth zero,
// outside quoted spans. Leading and trailing space is kept; callers trim.
func SplitTopLevel(s string, sep byte) []string {
	var parts []string
	depth := 0
	var quote byte
	start := 0
	for j := 0; j < len(s); j++ {
		c := s[j]
		if quote != 0 {
			if c == '\\' {
				j++
			} else if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			quote = c
		case '(', '{', '[':
			depth++
		case ')', '}', ']':
			depth--
		default:
			if c == sep && depth == 0 {
				parts = append(parts, s[start:j])
				start = j + 1
			}
		}
	}
	return append(parts, s[start:])
}

// QuoteParity reports whether offset i of s falls inside a double-quoted
// span, judged by counting unescaped '"' marks to its left.
func QuoteParity(s string, i int) bool {
	odd := false
	for j := 0; j < i && j < len(s); j++ {
		switch s[j] {
		case '\\':
			j++
		case '"':
			odd = !odd
		}
	}
	return odd
}

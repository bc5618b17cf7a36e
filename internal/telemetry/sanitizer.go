// Package telemetry provides the sanitizer, extractors, and span-name
// generator a dependency-injected telemetry handler needs to annotate a
// query without ever seeing raw literal values (spec §4.12). No sink is
// implemented here — emitting spans/metrics is an external concern; this
// package only derives the strings a sink would attach to its own spans.
package telemetry

import "strings"

// Sanitize replaces literal values in sql with `?`, respecting single- and
// double-quoted string literals (with backslash and doubled-quote escapes)
// and collapsing an `IN (...)` list to a single placeholder. Operates only
// on original SQL text, never on an already-parameterized template.
func Sanitize(sql string) string {
	var b strings.Builder
	i := 0
	n := len(sql)

	for i < n {
		c := sql[i]
		switch {
		case c == '\'' || c == '"':
			i = skipQuoted(sql, i, c)
			b.WriteByte('?')

		case isDigitStart(sql, i):
			j := skipNumber(sql, i)
			b.WriteByte('?')
			i = j
			continue

		case isInKeyword(sql, i):
			b.WriteString(sql[i : i+2])
			i += 2
			j := skipSpaces(sql, i)
			if j < n && sql[j] == '(' {
				close := matchParen(sql, j)
				b.WriteString(sql[i:j])
				b.WriteString("(?)")
				i = close + 1
				continue
			}

		default:
			b.WriteByte(c)
			i++
			continue
		}
	}
	return b.String()
}

func skipQuoted(sql string, i int, quote byte) int {
	i++ // opening quote already written by caller as '?'
	n := len(sql)
	for i < n {
		c := sql[i]
		if c == '\\' && i+1 < n {
			i += 2
			continue
		}
		if c == quote {
			// doubled-quote escape: '' or ""
			if i+1 < n && sql[i+1] == quote {
				i += 2
				continue
			}
			return i + 1
		}
		i++
	}
	return n
}

func isDigitStart(sql string, i int) bool {
	c := sql[i]
	if c < '0' || c > '9' {
		return false
	}
	if i > 0 {
		prev := sql[i-1]
		if isIdentByte(prev) {
			return false
		}
	}
	return true
}

func skipNumber(sql string, i int) int {
	n := len(sql)
	for i < n && (isDigitByte(sql[i]) || sql[i] == '.' || sql[i] == 'e' || sql[i] == 'E' ||
		((sql[i] == '+' || sql[i] == '-') && i > 0 && (sql[i-1] == 'e' || sql[i-1] == 'E'))) {
		i++
	}
	return i
}

func isDigitByte(c byte) bool { return c >= '0' && c <= '9' }

func isIdentByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || isDigitByte(c)
}

func isInKeyword(sql string, i int) bool {
	if i+2 > len(sql) {
		return false
	}
	if !strings.EqualFold(sql[i:i+2], "IN") {
		return false
	}
	if i > 0 && isIdentByte(sql[i-1]) {
		return false
	}
	if i+2 < len(sql) && isIdentByte(sql[i+2]) {
		return false
	}
	return true
}

func skipSpaces(sql string, i int) int {
	for i < len(sql) && (sql[i] == ' ' || sql[i] == '\t' || sql[i] == '\n' || sql[i] == '\r') {
		i++
	}
	return i
}

func matchParen(sql string, open int) int {
	depth := 0
	for i := open; i < len(sql); i++ {
		switch sql[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return len(sql) - 1
}

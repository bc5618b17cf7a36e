package telemetry

import (
	"fmt"
	"strings"
)

var keywords = []string{"FROM", "JOIN", "INTO", "UPDATE"}

// OperationName returns the first non-comment keyword of sql, uppercased
// (spec §4.12): SELECT, INSERT, UPDATE, DELETE, and so on.
func OperationName(sql string) string {
	s := stripLeadingComments(sql)
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	end := strings.IndexFunc(s, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '('
	})
	if end < 0 {
		end = len(s)
	}
	return strings.ToUpper(s[:end])
}

// CollectionName returns the first identifier following FROM, JOIN, INTO,
// or UPDATE (spec §4.12).
func CollectionName(sql string) string {
	s := stripLeadingComments(sql)
	upper := strings.ToUpper(s)

	bestIdx := -1
	var bestKeyword string
	for _, kw := range keywords {
		idx := indexWord(upper, kw)
		if idx >= 0 && (bestIdx < 0 || idx < bestIdx) {
			bestIdx = idx
			bestKeyword = kw
		}
	}
	if bestIdx < 0 {
		return ""
	}

	rest := s[bestIdx+len(bestKeyword):]
	rest = strings.TrimLeft(rest, " \t\n\r")
	end := strings.IndexFunc(rest, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == ',' || r == '(' || r == ';'
	})
	if end < 0 {
		end = len(rest)
	}
	name := strings.Trim(rest[:end], "`\"'")
	if dot := strings.LastIndex(name, "."); dot >= 0 {
		name = name[dot+1:]
	}
	return name
}

func indexWord(upper, word string) int {
	start := 0
	for {
		idx := strings.Index(upper[start:], word)
		if idx < 0 {
			return -1
		}
		abs := start + idx
		before := abs == 0 || !isIdentByte(upper[abs-1])
		afterPos := abs + len(word)
		after := afterPos >= len(upper) || !isIdentByte(upper[afterPos])
		if before && after {
			return abs
		}
		start = abs + len(word)
	}
}

func stripLeadingComments(sql string) string {
	s := strings.TrimSpace(sql)
	for {
		switch {
		case strings.HasPrefix(s, "--"):
			if nl := strings.IndexByte(s, '\n'); nl >= 0 {
				s = strings.TrimSpace(s[nl+1:])
				continue
			}
			return ""
		case strings.HasPrefix(s, "/*"):
			if end := strings.Index(s, "*/"); end >= 0 {
				s = strings.TrimSpace(s[end+2:])
				continue
			}
			return ""
		}
		return s
	}
}

// SpanName derives a span name per spec §4.12's priority order: operation
// plus collection; operation plus target; collection alone; a fixed
// database-system identifier.
func SpanName(sql, host string, port int) string {
	op := OperationName(sql)
	coll := CollectionName(sql)

	switch {
	case op != "" && coll != "":
		return fmt.Sprintf("%s %s", op, coll)
	case op != "":
		target := fmt.Sprintf("%s:%d", host, port)
		return fmt.Sprintf("%s %s", op, target)
	case coll != "":
		return coll
	default:
		return "mysql"
	}
}

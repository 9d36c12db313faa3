package history

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	tokenRe = regexp.MustCompile(`[^\s"']+|"([^"]*)"|'([^']*)'`)
	wordRe  = regexp.MustCompile(`^[\p{L}\p{N}]+$`)
)

// ParseQuery converts user input into FTS5 syntax.
// Supports: "phrase search", prompt:term, result:term (alias answer:).
func ParseQuery(input string) string {
	var parts []string

	tokens := tokenRe.FindAllString(strings.TrimSpace(input), -1)
	for _, token := range tokens {
		if strings.HasPrefix(token, "\"") || strings.HasPrefix(token, "'") {
			parts = append(parts, quote(strings.Trim(token, `"'`)))
			continue
		}

		field, term, hasField := strings.Cut(token, ":")
		if hasField {
			switch strings.ToLower(field) {
			case "prompt", "q":
				parts = append(parts, kindFilter("prompt", term))
				continue
			case "result", "answer":
				parts = append(parts, kindFilter("result", term))
				continue
			}
		}

		parts = append(parts, matchTerm(token))
	}

	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, " AND ")
}

func kindFilter(kind, term string) string {
	if term == "" {
		return fmt.Sprintf("kind:%s", kind)
	}
	return fmt.Sprintf("(kind:%s AND content:%s)", kind, matchTerm(term))
}

// matchTerm prefix-matches plain words and quotes anything FTS5 would
// read as syntax.
func matchTerm(token string) string {
	switch token {
	case "AND", "OR", "NOT", "NEAR":
		return quote(token)
	}
	if wordRe.MatchString(token) {
		if len([]rune(token)) > 3 {
			return token + "*"
		}
		return token
	}
	return quote(token)
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

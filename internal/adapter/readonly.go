// Package adapter provides the data-access implementations behind the
// query planner: a statement classifier enforcing the read-only
// contract, and adapters for an embedded SQLite store and a BigQuery
// warehouse, both satisfying domain.Adapter identically.
package adapter

import (
	"strings"
	"unicode"
)

// selectionVerbs start a read-only statement.
var selectionVerbs = map[string]struct{}{
	"SELECT": {},
	"WITH":   {},
}

// mutatingKeywords are rejected anywhere they appear as a standalone
// token, regardless of position. INTO covers SELECT INTO variants.
var mutatingKeywords = map[string]struct{}{
	"INSERT":   {},
	"UPDATE":   {},
	"DELETE":   {},
	"MERGE":    {},
	"REPLACE":  {},
	"UPSERT":   {},
	"CREATE":   {},
	"ALTER":    {},
	"DROP":     {},
	"TRUNCATE": {},
	"RENAME":   {},
	"GRANT":    {},
	"REVOKE":   {},
	"ATTACH":   {},
	"DETACH":   {},
	"PRAGMA":   {},
	"VACUUM":   {},
	"REINDEX":  {},
	"EXEC":     {},
	"EXECUTE":  {},
	"CALL":     {},
	"COPY":     {},
	"LOAD":     {},
	"INTO":     {},
}

// StatementTokens normalizes a statement into uppercase word tokens.
// String literals, quoted identifiers and comments are stripped first,
// so a column named "deleted_at" or a literal 'DROP TABLE' can never
// trip the keyword check, and a keyword hidden in a comment never
// sneaks through by masking the one that follows.
func StatementTokens(query string) []string {
	var tokens []string
	var word strings.Builder

	flush := func() {
		if word.Len() > 0 {
			tokens = append(tokens, strings.ToUpper(word.String()))
			word.Reset()
		}
	}

	runes := []rune(query)
	i := 0
	for i < len(runes) {
		r := runes[i]

		switch {
		// Line comment: -- to end of line.
		case r == '-' && i+1 < len(runes) && runes[i+1] == '-':
			flush()
			for i < len(runes) && runes[i] != '\n' {
				i++
			}

		// Block comment: /* ... */ (unterminated runs to the end).
		case r == '/' && i+1 < len(runes) && runes[i+1] == '*':
			flush()
			i += 2
			for i < len(runes) {
				if runes[i] == '*' && i+1 < len(runes) && runes[i+1] == '/' {
					i += 2
					break
				}
				i++
			}

		// String literal: '...' with '' as the escape.
		case r == '\'':
			flush()
			i++
			for i < len(runes) {
				if runes[i] == '\'' {
					if i+1 < len(runes) && runes[i+1] == '\'' {
						i += 2
						continue
					}
					i++
					break
				}
				i++
			}

		// Quoted identifiers: "..." (standard) and `...` (BigQuery).
		case r == '"' || r == '`':
			quote := r
			flush()
			i++
			for i < len(runes) && runes[i] != quote {
				i++
			}
			if i < len(runes) {
				i++
			}

		case unicode.IsLetter(r) || r == '_' || (word.Len() > 0 && unicode.IsDigit(r)):
			word.WriteRune(r)
			i++

		default:
			flush()
			i++
		}
	}
	flush()
	return tokens
}

// readOnlyViolation classifies a statement and returns the reason it is
// not a read-only selection, or "" when it is acceptable.
func readOnlyViolation(query string) string {
	tokens := StatementTokens(query)
	if len(tokens) == 0 {
		return "statement is empty"
	}
	if _, ok := selectionVerbs[tokens[0]]; !ok {
		return "statement must begin with SELECT or WITH, got " + tokens[0]
	}
	for _, tok := range tokens {
		if _, ok := mutatingKeywords[tok]; ok {
			return "statement contains the mutating keyword " + tok
		}
	}
	return ""
}

// IsReadOnly reports whether a statement is a read-only selection, with
// the rejection reason when it is not.
func IsReadOnly(query string) (bool, string) {
	reason := readOnlyViolation(query)
	return reason == "", reason
}

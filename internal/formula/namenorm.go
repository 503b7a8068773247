package formula

import (
	"strings"
	"unicode"

	"github.com/surgebase/porter2"
)

// NormalizeName reduces a column name to a canonical token form for
// similarity scoring: split on case transitions and separators, lowercase,
// stem each token, join with spaces. "EmployeeIDs", "employee_id" and
// "Employee Ids" all normalize alike.
func NormalizeName(name string) string {
	tokens := splitName(name)
	for i, tok := range tokens {
		tokens[i] = porter2.Stem(tok)
	}
	return strings.Join(tokens, " ")
}

// splitName breaks an identifier at separators and lower-to-upper case
// transitions, handling acronym runs ("HTTPStatus" -> http, status).
func splitName(name string) []string {
	var tokens []string
	var cur []rune

	flush := func() {
		if len(cur) > 0 {
			tokens = append(tokens, strings.ToLower(string(cur)))
			cur = nil
		}
	}

	runes := []rune(name)
	for i, r := range runes {
		switch {
		case r == '_' || r == '-' || r == ' ' || r == '.':
			flush()
		case unicode.IsUpper(r):
			if i > 0 && (unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1])) {
				flush()
			} else if i > 0 && unicode.IsUpper(runes[i-1]) &&
				i+1 < len(runes) && unicode.IsLower(runes[i+1]) {
				// End of an acronym run: the last upper belongs to the
				// next word.
				flush()
			}
			cur = append(cur, r)
		default:
			cur = append(cur, r)
		}
	}
	flush()
	return tokens
}

// Package formula extracts LOOKUP(...) call sites from formula text and
// validates their column references against the file registry. Only the
// LOOKUP calls are parsed; the surrounding formula language is opaque text.
package formula

import (
	"strings"
)

// Call is one extracted LOOKUP call site. Offsets are byte positions into
// the formula, for editor highlighting. Two-argument calls carry only a
// return column; three-argument calls carry search and return columns.
type Call struct {
	Start int
	End   int

	ValueExpr    string // first argument, raw expression text
	SearchColumn string
	ReturnColumn string

	Malformed bool
	Reason    string
}

// ExtractCalls scans the formula for LOOKUP call sites. The scanner
// understands nested parentheses in the value argument and quoted column
// names with either quote style; a quote is escaped by doubling it or by a
// backslash. Broken calls (unterminated argument lists, unquoted column
// names, wrong arity) come back as malformed calls instead of being
// silently skipped.
func ExtractCalls(formula string) []Call {
	var calls []Call
	for i := 0; i < len(formula); {
		j := strings.Index(formula[i:], "LOOKUP")
		if j < 0 {
			break
		}
		start := i + j
		i = start + len("LOOKUP")

		// Must be a standalone identifier followed by an open paren.
		if start > 0 && isIdentChar(formula[start-1]) {
			continue
		}
		k := i
		for k < len(formula) && (formula[k] == ' ' || formula[k] == '\t') {
			k++
		}
		if k >= len(formula) || formula[k] != '(' {
			continue
		}

		call, next := parseCall(formula, start, k+1)
		calls = append(calls, call)
		i = next
	}
	return calls
}

func isIdentChar(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// parseCall tokenizes the argument list starting just past the open paren.
// Returns the call and the scan position to resume from.
func parseCall(formula string, start, argStart int) (Call, int) {
	var args []string
	var cur strings.Builder
	depth := 1
	var quote byte

	i := argStart
	for ; i < len(formula); i++ {
		c := formula[i]

		if quote != 0 {
			switch {
			case c == '\\' && i+1 < len(formula):
				cur.WriteByte(c)
				cur.WriteByte(formula[i+1])
				i++
			case c == quote && i+1 < len(formula) && formula[i+1] == quote:
				// Doubled quote stays inside the literal.
				cur.WriteByte(c)
				cur.WriteByte(formula[i+1])
				i++
			case c == quote:
				quote = 0
				cur.WriteByte(c)
			default:
				cur.WriteByte(c)
			}
			continue
		}

		switch c {
		case '\'', '"':
			quote = c
			cur.WriteByte(c)
		case '(':
			depth++
			cur.WriteByte(c)
		case ')':
			depth--
			if depth == 0 {
				args = append(args, strings.TrimSpace(cur.String()))
				return buildCall(formula, start, i+1, args), i + 1
			}
			cur.WriteByte(c)
		case ',':
			if depth == 1 {
				args = append(args, strings.TrimSpace(cur.String()))
				cur.Reset()
			} else {
				cur.WriteByte(c)
			}
		default:
			cur.WriteByte(c)
		}
	}

	// Ran out of text before the argument list closed.
	return Call{
		Start:     start,
		End:       len(formula),
		Malformed: true,
		Reason:    "unterminated LOOKUP call",
	}, len(formula)
}

func buildCall(formula string, start, end int, args []string) Call {
	call := Call{Start: start, End: end}

	if len(args) == 1 && args[0] == "" {
		args = nil
	}
	if len(args) < 2 || len(args) > 3 {
		call.Malformed = true
		call.Reason = "LOOKUP expects 2 or 3 arguments"
		return call
	}

	call.ValueExpr = args[0]
	columnArgs := args[1:]
	cols := make([]string, 0, len(columnArgs))
	for _, arg := range columnArgs {
		col, ok := unquoteColumn(arg)
		if !ok {
			call.Malformed = true
			call.Reason = "column arguments must be quoted strings"
			return call
		}
		cols = append(cols, col)
	}

	if len(cols) == 1 {
		call.ReturnColumn = cols[0]
	} else {
		call.SearchColumn = cols[0]
		call.ReturnColumn = cols[1]
	}
	return call
}

// unquoteColumn strips matching quotes from a column argument and resolves
// both escape forms. An unquoted argument is rejected: a column name is a
// literal, not an expression.
func unquoteColumn(arg string) (string, bool) {
	if len(arg) < 2 {
		return "", false
	}
	q := arg[0]
	if (q != '\'' && q != '"') || arg[len(arg)-1] != q {
		return "", false
	}
	inner := arg[1 : len(arg)-1]

	var out strings.Builder
	for i := 0; i < len(inner); i++ {
		c := inner[i]
		switch {
		case c == '\\' && i+1 < len(inner):
			out.WriteByte(inner[i+1])
			i++
		case c == q && i+1 < len(inner) && inner[i+1] == q:
			out.WriteByte(c)
			i++
		case c == q:
			// A lone closing quote in the middle means the argument was
			// never one literal.
			return "", false
		default:
			out.WriteByte(c)
		}
	}
	name := strings.TrimSpace(out.String())
	return name, name != ""
}

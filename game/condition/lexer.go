package condition

import "strings"

// Operator is a comparison operator.
type Operator string

const (
	OpGE Operator = ">="
	OpLE Operator = "<="
	OpEQ Operator = "=="
	OpNE Operator = "!="
	OpGT Operator = ">"
	OpLT Operator = "<"
)

// comparisonOps is the operator search order for entity and reputation
// clauses: two-character operators first.
var comparisonOps = []Operator{OpGE, OpLE, OpEQ, OpNE, OpGT, OpLT}

// bareOps is the search order for bare variable clauses.
var bareOps = []Operator{OpGT, OpLT, OpEQ}

func isComparison(s string) (Operator, bool) {
	for _, op := range comparisonOps {
		if string(op) == s {
			return op, true
		}
	}
	return "", false
}

// clause is one operand split into left side, operator and right side.
type clause struct {
	lhs string
	op  Operator
	rhs string
}

// splitOperator finds the first operator of ops (in list order) that occurs
// in s outside quotes and splits s around its first such occurrence.
func splitOperator(s string, ops []Operator) (clause, bool) {
	for _, op := range ops {
		if i := indexUnquoted(s, string(op)); i >= 0 {
			return clause{
				lhs: strings.TrimSpace(s[:i]),
				op:  op,
				rhs: strings.TrimSpace(s[i+len(op):]),
			}, true
		}
	}
	return clause{}, false
}

// splitLogical breaks s on every sep outside a quoted literal.
func splitLogical(s, sep string) []string {
	var parts []string
	for {
		i := indexUnquoted(s, sep)
		if i < 0 {
			break
		}
		parts = append(parts, strings.TrimSpace(s[:i]))
		s = s[i+len(sep):]
	}
	if parts == nil {
		return []string{s}
	}
	return append(parts, strings.TrimSpace(s))
}

// indexUnquoted is strings.Index that skips quoted literals. A quote only
// opens at the start of a token, so an apostrophe inside a word is plain
// text; an unterminated quote runs to the end of s.
func indexUnquoted(s, sub string) int {
	var quote byte
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case (c == '"' || c == '\'') && (i == 0 || strings.IndexByte(" \t=<>!", s[i-1]) >= 0):
			quote = c
		case strings.HasPrefix(s[i:], sub):
			return i
		}
	}
	return -1
}

func unquote(s string) string {
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '"' || first == '\'') && first == last {
			return s[1 : len(s)-1]
		}
	}
	return s
}

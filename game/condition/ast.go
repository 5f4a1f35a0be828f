package condition

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformed is returned by Parse for expressions outside the grammar.
var ErrMalformed = errors.New("condition: malformed expression")

// Expr is a parsed condition.
type Expr interface {
	isExpr()
}

// EntityRef addresses one entity variable, written @type:id:key.
type EntityRef struct {
	Type string
	ID   string
	Key  string
}

func (r EntityRef) String() string { return r.Type + ":" + r.ID + ":" + r.Key }

// Literal is the right-hand side of a comparison, quotes stripped.
type Literal string

type (
	Or  struct{ Terms []Expr }
	And struct{ Terms []Expr }

	EntityCompare struct {
		Ref EntityRef
		Op  Operator
		Lit Literal
	}

	HasItem struct{ ItemID string }
	HasClue struct{ ClueID string }
	Flag    struct{ Name string }

	ReputationCompare struct {
		FactionID string
		Op        Operator
		Value     int
	}

	// VarCompare is a bare "name op value" against the story variables.
	// Only >, < and == are recognised.
	VarCompare struct {
		Name string
		Op   Operator
		Lit  Literal
	}
)

func (Or) isExpr()                {}
func (And) isExpr()               {}
func (EntityCompare) isExpr()     {}
func (HasItem) isExpr()           {}
func (HasClue) isExpr()           {}
func (Flag) isExpr()              {}
func (ReputationCompare) isExpr() {}
func (VarCompare) isExpr()        {}

// Parse turns an expression into an Expr. "||" binds loosest, then "&&".
func Parse(expr string) (Expr, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, ErrMalformed
	}
	ors := splitLogical(expr, "||")
	or := Or{Terms: make([]Expr, 0, len(ors))}
	for _, o := range ors {
		ands := splitLogical(o, "&&")
		and := And{Terms: make([]Expr, 0, len(ands))}
		for _, a := range ands {
			term, err := parseClause(a)
			if err != nil {
				return nil, err
			}
			and.Terms = append(and.Terms, term)
		}
		if len(and.Terms) == 1 {
			or.Terms = append(or.Terms, and.Terms[0])
		} else {
			or.Terms = append(or.Terms, and)
		}
	}
	if len(or.Terms) == 1 {
		return or.Terms[0], nil
	}
	return or, nil
}

func parseClause(s string) (Expr, error) {
	switch {
	case s == "":
		return nil, ErrMalformed
	case strings.HasPrefix(s, "@"):
		return parseEntity(s)
	case strings.HasPrefix(s, "has_item:"):
		return HasItem{ItemID: strings.TrimSpace(strings.TrimPrefix(s, "has_item:"))}, nil
	case strings.HasPrefix(s, "has_clue:"):
		return HasClue{ClueID: strings.TrimSpace(strings.TrimPrefix(s, "has_clue:"))}, nil
	case strings.HasPrefix(s, "flag:"):
		return Flag{Name: strings.TrimSpace(strings.TrimPrefix(s, "flag:"))}, nil
	case strings.HasPrefix(s, "reputation:"):
		return parseReputation(s)
	}
	return parseBare(s)
}

func parseEntity(s string) (Expr, error) {
	c, ok := splitOperator(s, comparisonOps)
	if !ok {
		return nil, fmt.Errorf("%w: no operator in %q", ErrMalformed, s)
	}
	parts := strings.Split(strings.TrimPrefix(c.lhs, "@"), ":")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return nil, fmt.Errorf("%w: entity reference %q", ErrMalformed, c.lhs)
	}
	return EntityCompare{
		Ref: EntityRef{Type: parts[0], ID: parts[1], Key: parts[2]},
		Op:  c.op,
		Lit: Literal(unquote(c.rhs)),
	}, nil
}

func parseReputation(s string) (Expr, error) {
	fields := strings.Fields(s)
	if len(fields) != 3 {
		return nil, fmt.Errorf("%w: reputation needs 3 tokens: %q", ErrMalformed, s)
	}
	op, ok := isComparison(fields[1])
	if !ok {
		return nil, fmt.Errorf("%w: operator %q", ErrMalformed, fields[1])
	}
	v, err := strconv.Atoi(fields[2])
	if err != nil {
		return nil, fmt.Errorf("%w: reputation value %q", ErrMalformed, fields[2])
	}
	return ReputationCompare{
		FactionID: strings.TrimPrefix(fields[0], "reputation:"),
		Op:        op,
		Value:     v,
	}, nil
}

func parseBare(s string) (Expr, error) {
	c, ok := splitOperator(s, bareOps)
	if !ok || c.lhs == "" {
		return nil, fmt.Errorf("%w: %q", ErrMalformed, s)
	}
	if c.op != OpEQ {
		if _, err := strconv.Atoi(c.rhs); err != nil {
			return nil, fmt.Errorf("%w: not an integer: %q", ErrMalformed, c.rhs)
		}
	}
	return VarCompare{Name: c.lhs, Op: c.op, Lit: Literal(c.rhs)}, nil
}

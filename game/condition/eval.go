// Package condition parses and evaluates the story condition language.
//
// Supported clauses, checked in this order:
//
//	@type:id:key <op> value      entity variable (op: >= <= == != > <)
//	has_item:<id>                inventory holds the item
//	has_clue:<id>                clue collected
//	flag:<name>                  flag set
//	reputation:<faction> <op> n  faction reputation
//	var > n | var < n | var == s story variable
//
// Clauses may be joined with && and ||. Evaluation never fails: anything
// malformed is false.
package condition

import (
	"cmp"
	"strconv"

	"github.com/kasuganosora/novelsim/game/state"
	"github.com/kasuganosora/novelsim/resource"
)

// DefaultEntityValue is used when an entity variable has no value anywhere.
const DefaultEntityValue = "0"

// Evaluate parses and evaluates expr. Parse errors evaluate to false.
func Evaluate(expr string, s *state.GameState, story *resource.Story) bool {
	e, err := Parse(expr)
	if err != nil {
		return false
	}
	return Eval(e, s, story)
}

// Eval evaluates a parsed expression.
func Eval(e Expr, s *state.GameState, story *resource.Story) bool {
	if s == nil {
		return false
	}
	switch x := e.(type) {
	case Or:
		for _, t := range x.Terms {
			if Eval(t, s, story) {
				return true
			}
		}
		return false
	case And:
		for _, t := range x.Terms {
			if !Eval(t, s, story) {
				return false
			}
		}
		return len(x.Terms) > 0
	case EntityCompare:
		return compareValues(LookupEntity(x.Ref, s, story), string(x.Lit), x.Op)
	case HasItem:
		for _, slot := range s.Inventory {
			if slot.ItemID == x.ItemID && slot.Quantity > 0 {
				return true
			}
		}
		return false
	case HasClue:
		return s.CollectedClues.Has(x.ClueID)
	case Flag:
		return s.Flags.Has(x.Name)
	case ReputationCompare:
		return compareOrdered(s.FactionReputations[x.FactionID], x.Value, x.Op)
	case VarCompare:
		return evalVar(x, s)
	}
	return false
}

// LookupEntity resolves an entity variable: the dynamic override in the game
// state first, then the static variables authored on the story entity, then
// DefaultEntityValue.
func LookupEntity(ref EntityRef, s *state.GameState, story *resource.Story) string {
	if v, ok := s.EntityVariables[ref.String()]; ok {
		return v
	}
	if story != nil {
		if v, ok := staticVariables(ref, story)[ref.Key]; ok {
			return v
		}
	}
	return DefaultEntityValue
}

func staticVariables(ref EntityRef, story *resource.Story) map[string]string {
	switch ref.Type {
	case "char", "character":
		if c, ok := story.Character(ref.ID); ok {
			return c.Variables
		}
	case "loc", "location":
		if l, ok := story.Location(ref.ID); ok {
			return l.Variables
		}
	case "item":
		if it, ok := story.Item(ref.ID); ok {
			return it.Variables
		}
	}
	return nil
}

// compareValues compares numerically when both sides are numbers, otherwise
// supports only string == and !=.
func compareValues(actual, expected string, op Operator) bool {
	a, errA := strconv.ParseFloat(actual, 64)
	b, errB := strconv.ParseFloat(expected, 64)
	if errA == nil && errB == nil {
		return compareOrdered(a, b, op)
	}
	switch op {
	case OpEQ:
		return actual == expected
	case OpNE:
		return actual != expected
	}
	return false
}

func compareOrdered[T cmp.Ordered](a, b T, op Operator) bool {
	switch op {
	case OpGE:
		return a >= b
	case OpLE:
		return a <= b
	case OpEQ:
		return a == b
	case OpNE:
		return a != b
	case OpGT:
		return a > b
	case OpLT:
		return a < b
	}
	return false
}

func evalVar(x VarCompare, s *state.GameState) bool {
	raw, ok := s.Variables[x.Name]
	if x.Op == OpEQ {
		return ok && raw == string(x.Lit)
	}
	want, err := strconv.Atoi(string(x.Lit))
	if err != nil {
		return false
	}
	have, err := strconv.Atoi(raw)
	if err != nil {
		have = 0
	}
	return compareOrdered(have, want, x.Op)
}

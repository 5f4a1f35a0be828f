package battle

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/kasuganosora/novelsim/resource"
)

// EvalFormula evaluates a skill damage formula.
// Variables: a.atk, a.def, a.spd (a.agi), a.luk, a.hp, a.mp, a.mhp, a.mmp, a.level
//            b.*  (same for defender)
// Operators: + - * /  with parentheses.
// Functions: Math.floor, Math.ceil, Math.round, Math.max, Math.min, Math.abs
func EvalFormula(formula string, a, b *resource.CharacterStats) (float64, error) {
	lower := strings.ToLower(formula)
	for _, kw := range []string{"function", "var ", "let ", "const ", ";", "{", "}"} {
		if strings.Contains(lower, kw) {
			return 0, fmt.Errorf("formula is not an expression: %q", formula)
		}
	}
	p := &parser{input: formula, a: a, b: b}
	v, err := p.parseExpr()
	if err != nil {
		return 0, err
	}
	if p.skipWS(); p.pos < len(p.input) {
		return 0, fmt.Errorf("unexpected chars at pos %d: %q", p.pos, p.input[p.pos:])
	}
	return v, nil
}

// ---- Recursive-descent parser ----

type parser struct {
	input string
	pos   int
	a, b  *resource.CharacterStats
}

func (p *parser) skipWS() {
	for p.pos < len(p.input) && unicode.IsSpace(rune(p.input[p.pos])) {
		p.pos++
	}
}

func (p *parser) peek() byte {
	p.skipWS()
	if p.pos >= len(p.input) {
		return 0
	}
	return p.input[p.pos]
}

func (p *parser) consume() byte {
	p.skipWS()
	if p.pos >= len(p.input) {
		return 0
	}
	ch := p.input[p.pos]
	p.pos++
	return ch
}

// parseExpr = parseTerm (('+' | '-') parseTerm)*
func (p *parser) parseExpr() (float64, error) {
	v, err := p.parseTerm()
	if err != nil {
		return 0, err
	}
	for {
		ch := p.peek()
		if ch != '+' && ch != '-' {
			break
		}
		p.consume()
		right, err := p.parseTerm()
		if err != nil {
			return 0, err
		}
		if ch == '+' {
			v += right
		} else {
			v -= right
		}
	}
	return v, nil
}

// parseTerm = parseFactor (('*' | '/') parseFactor)*
func (p *parser) parseTerm() (float64, error) {
	v, err := p.parseFactor()
	if err != nil {
		return 0, err
	}
	for {
		ch := p.peek()
		if ch != '*' && ch != '/' {
			break
		}
		p.consume()
		right, err := p.parseFactor()
		if err != nil {
			return 0, err
		}
		if ch == '*' {
			v *= right
			continue
		}
		if right == 0 {
			return 0, fmt.Errorf("division by zero")
		}
		v /= right
	}
	return v, nil
}

// parseFactor = '(' parseExpr ')' | '-' parseFactor | number | a.x | b.x | Math.f(args)
func (p *parser) parseFactor() (float64, error) {
	ch := p.peek()
	switch {
	case ch == '(':
		p.consume()
		v, err := p.parseExpr()
		if err != nil {
			return 0, err
		}
		if p.consume() != ')' {
			return 0, fmt.Errorf("expected ')'")
		}
		return v, nil

	case ch == '-':
		p.consume()
		v, err := p.parseFactor()
		return -v, err

	case unicode.IsDigit(rune(ch)) || ch == '.':
		return p.parseNumber()

	case ch == 'a' || ch == 'b':
		return p.parseVariable()

	case ch == 'M':
		return p.parseMathFunc()

	case ch == 0:
		return 0, fmt.Errorf("unexpected end of formula")

	default:
		return 0, fmt.Errorf("unexpected character %q at pos %d", ch, p.pos)
	}
}

func (p *parser) parseNumber() (float64, error) {
	start := p.pos
	hasDot := false
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		if c == '.' && !hasDot {
			hasDot = true
		} else if c < '0' || c > '9' {
			break
		}
		p.pos++
	}
	return strconv.ParseFloat(p.input[start:p.pos], 64)
}

func (p *parser) parseVariable() (float64, error) {
	who := p.input[p.pos]
	p.pos++
	if p.pos >= len(p.input) || p.input[p.pos] != '.' {
		return 0, fmt.Errorf("expected '.' after '%c'", who)
	}
	p.pos++
	start := p.pos
	for p.pos < len(p.input) && (unicode.IsLetter(rune(p.input[p.pos])) || p.input[p.pos] == '_') {
		p.pos++
	}
	stats := p.a
	if who == 'b' {
		stats = p.b
	}
	if stats == nil {
		return 0, fmt.Errorf("no stats bound to '%c'", who)
	}
	return statField(stats, p.input[start:p.pos])
}

func statField(s *resource.CharacterStats, field string) (float64, error) {
	switch field {
	case "hp":
		return float64(s.CurrentHP), nil
	case "mp":
		return float64(s.CurrentMP), nil
	case "mhp":
		return float64(s.MaxHP), nil
	case "mmp":
		return float64(s.MaxMP), nil
	case "atk":
		return float64(s.Attack), nil
	case "def":
		return float64(s.Defense), nil
	case "spd", "agi":
		return float64(s.Speed), nil
	case "luk":
		return float64(s.Luck), nil
	case "level":
		return float64(s.Level), nil
	}
	return 0, fmt.Errorf("unknown stat field %q", field)
}

func (p *parser) parseMathFunc() (float64, error) {
	const prefix = "Math."
	if !strings.HasPrefix(p.input[p.pos:], prefix) {
		return 0, fmt.Errorf("expected Math.xxx at pos %d", p.pos)
	}
	p.pos += len(prefix)
	start := p.pos
	for p.pos < len(p.input) && unicode.IsLetter(rune(p.input[p.pos])) {
		p.pos++
	}
	fname := p.input[start:p.pos]
	if p.consume() != '(' {
		return 0, fmt.Errorf("expected '(' after Math.%s", fname)
	}
	var args []float64
	for {
		if p.peek() == ')' {
			p.pos++
			break
		}
		if p.pos >= len(p.input) {
			return 0, fmt.Errorf("unterminated Math.%s call", fname)
		}
		v, err := p.parseExpr()
		if err != nil {
			return 0, err
		}
		args = append(args, v)
		if p.peek() == ',' {
			p.pos++
		}
	}
	return applyMathFunc(fname, args)
}

func applyMathFunc(name string, args []float64) (float64, error) {
	unary := map[string]func(float64) float64{
		"floor": math.Floor,
		"ceil":  math.Ceil,
		"round": math.Round,
		"abs":   math.Abs,
	}
	if fn, ok := unary[name]; ok {
		if len(args) != 1 {
			return 0, fmt.Errorf("Math.%s expects 1 argument", name)
		}
		return fn(args[0]), nil
	}
	switch name {
	case "max", "min":
		if len(args) == 0 {
			return 0, fmt.Errorf("Math.%s expects >=1 argument", name)
		}
		v := args[0]
		for _, a := range args[1:] {
			if name == "max" {
				v = math.Max(v, a)
			} else {
				v = math.Min(v, a)
			}
		}
		return v, nil
	}
	return 0, fmt.Errorf("unknown Math.%s", name)
}

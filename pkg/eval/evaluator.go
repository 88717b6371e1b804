// pkg/eval/evaluator.go
//
// Eval re-walks a raw token slice captured by the parser (a WHERE
// predicate, a SET right-hand side, a trigger condition, ...) with its
// own precedence-climbing pass. Nothing here builds or caches an
// expression tree: every call starts a fresh scan over the shared
// token buffer, per the engine's token-sharing design.
package eval

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"quill/pkg/sql/lexer"
	"quill/pkg/sql/parser"
	"quill/pkg/value"
)

var (
	ErrEval    = errors.New("eval error")
	errTooDeep = fmt.Errorf("%w: function call nesting too deep", ErrEval)
)

func evalErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrEval}, args...)...)
}

// Eval evaluates a captured token slice against ctx and returns its
// value. An empty slice evaluates to Null.
func Eval(toks parser.Expr, ctx *EvalContext) (value.Value, error) {
	if len(toks) == 0 {
		return value.Null(), nil
	}
	s := &evalState{toks: toks, ctx: ctx}
	v, err := s.parseOr()
	if err != nil {
		return value.Null(), err
	}
	if !s.atEnd() {
		return value.Null(), evalErrorf("unexpected token %q", s.cur().Literal)
	}
	return v, nil
}

// EvalBool evaluates toks and collapses the result to a two-valued
// boolean via Value.IsTruthy (deliberate null/false collapse).
func EvalBool(toks parser.Expr, ctx *EvalContext) (bool, error) {
	v, err := Eval(toks, ctx)
	if err != nil {
		return false, err
	}
	return v.IsTruthy(), nil
}

type evalState struct {
	toks []lexer.Token
	pos  int
	ctx  *EvalContext
}

func (s *evalState) atEnd() bool { return s.pos >= len(s.toks) }

func (s *evalState) cur() lexer.Token {
	if s.atEnd() {
		return lexer.Token{Type: lexer.EOF}
	}
	return s.toks[s.pos]
}

func (s *evalState) curIs(tt lexer.TokenType) bool { return s.cur().Type == tt }

func (s *evalState) advance() lexer.Token {
	t := s.cur()
	s.pos++
	return t
}

func (s *evalState) expect(tt lexer.TokenType) (lexer.Token, error) {
	if !s.curIs(tt) {
		return lexer.Token{}, evalErrorf("expected %s, got %q", tt, s.cur().Literal)
	}
	return s.advance(), nil
}

// --- precedence climbing ---

func (s *evalState) parseOr() (value.Value, error) {
	left, err := s.parseAnd()
	if err != nil {
		return value.Null(), err
	}
	for s.curIs(lexer.OR) {
		s.advance()
		right, err := s.parseAnd()
		if err != nil {
			return value.Null(), err
		}
		left = value.NewBool(left.IsTruthy() || right.IsTruthy())
	}
	return left, nil
}

func (s *evalState) parseAnd() (value.Value, error) {
	left, err := s.parseNot()
	if err != nil {
		return value.Null(), err
	}
	for s.curIs(lexer.AND) {
		s.advance()
		right, err := s.parseNot()
		if err != nil {
			return value.Null(), err
		}
		left = value.NewBool(left.IsTruthy() && right.IsTruthy())
	}
	return left, nil
}

func (s *evalState) parseNot() (value.Value, error) {
	if s.curIs(lexer.NOT) {
		s.advance()
		v, err := s.parseNot()
		if err != nil {
			return value.Null(), err
		}
		return value.NewBool(!v.IsTruthy()), nil
	}
	return s.parseComparison()
}

func (s *evalState) parseComparison() (value.Value, error) {
	left, err := s.parseAdd()
	if err != nil {
		return value.Null(), err
	}

	// IS [NOT] NULL
	if s.curIs(lexer.IS) {
		s.advance()
		negate := false
		if s.curIs(lexer.NOT) {
			negate = true
			s.advance()
		}
		if _, err := s.expect(lexer.NULL_KW); err != nil {
			return value.Null(), err
		}
		result := left.IsNull()
		if negate {
			result = !result
		}
		return value.NewBool(result), nil
	}

	negate := false
	if s.curIs(lexer.NOT) {
		// Lookahead: NOT only belongs here if followed by BETWEEN/IN/LIKE.
		switch s.at(1).Type {
		case lexer.BETWEEN, lexer.IN, lexer.LIKE:
			negate = true
			s.advance()
		}
	}

	switch s.cur().Type {
	case lexer.BETWEEN:
		s.advance()
		lo, err := s.parseAdd()
		if err != nil {
			return value.Null(), err
		}
		if _, err := s.expect(lexer.AND); err != nil {
			return value.Null(), err
		}
		hi, err := s.parseAdd()
		if err != nil {
			return value.Null(), err
		}
		result := false
		if !left.IsNull() && !lo.IsNull() && !hi.IsNull() {
			result = value.Compare(left, lo) >= 0 && value.Compare(left, hi) <= 0
		}
		if negate {
			result = !result
		}
		return value.NewBool(result), nil

	case lexer.IN:
		s.advance()
		items, err := s.parseExprList()
		if err != nil {
			return value.Null(), err
		}
		result := false
		for _, it := range items {
			if value.Equal(left, it) {
				result = true
				break
			}
		}
		if negate {
			result = !result
		}
		return value.NewBool(result), nil

	case lexer.LIKE:
		s.advance()
		pat, err := s.parseAdd()
		if err != nil {
			return value.Null(), err
		}
		result, err := matchLike(left.AsText(), pat.AsText())
		if err != nil {
			return value.Null(), err
		}
		if negate {
			result = !result
		}
		return value.NewBool(result), nil
	}

	switch s.cur().Type {
	case lexer.EQ, lexer.NEQ, lexer.LT, lexer.GT, lexer.LTE, lexer.GTE:
		op := s.advance().Type
		right, err := s.parseAdd()
		if err != nil {
			return value.Null(), err
		}
		if left.IsNull() || right.IsNull() {
			return value.NewBool(false), nil
		}
		cmp := value.Compare(left, right)
		switch op {
		case lexer.EQ:
			return value.NewBool(value.Equal(left, right)), nil
		case lexer.NEQ:
			return value.NewBool(!value.Equal(left, right)), nil
		case lexer.LT:
			return value.NewBool(cmp < 0), nil
		case lexer.GT:
			return value.NewBool(cmp > 0), nil
		case lexer.LTE:
			return value.NewBool(cmp <= 0), nil
		case lexer.GTE:
			return value.NewBool(cmp >= 0), nil
		}
	}
	return left, nil
}

// parseExprList parses "(" expr ("," expr)* ")".
func (s *evalState) parseExprList() ([]value.Value, error) {
	if _, err := s.expect(lexer.LPAREN); err != nil {
		return nil, err
	}
	var out []value.Value
	for {
		if s.curIs(lexer.RPAREN) {
			break
		}
		v, err := s.parseOr()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
		if s.curIs(lexer.COMMA) {
			s.advance()
			continue
		}
		break
	}
	if _, err := s.expect(lexer.RPAREN); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *evalState) parseAdd() (value.Value, error) {
	left, err := s.parseMul()
	if err != nil {
		return value.Null(), err
	}
	for s.curIs(lexer.PLUS) || s.curIs(lexer.MINUS) {
		op := s.advance().Type
		right, err := s.parseMul()
		if err != nil {
			return value.Null(), err
		}
		if op == lexer.PLUS {
			left, err = value.Add(left, right)
		} else {
			left, err = value.Sub(left, right)
		}
		if err != nil {
			return value.Null(), evalErrorf("%v", err)
		}
	}
	return left, nil
}

func (s *evalState) parseMul() (value.Value, error) {
	left, err := s.parsePow()
	if err != nil {
		return value.Null(), err
	}
	for s.curIs(lexer.STAR) || s.curIs(lexer.SLASH) || s.curIs(lexer.PERCENT) {
		op := s.advance().Type
		right, err := s.parsePow()
		if err != nil {
			return value.Null(), err
		}
		switch op {
		case lexer.STAR:
			left, err = value.Mul(left, right)
		case lexer.SLASH:
			left, err = value.Div(left, right)
		case lexer.PERCENT:
			left, err = value.Mod(left, right)
		}
		if err != nil {
			return value.Null(), evalErrorf("%v", err)
		}
	}
	return left, nil
}

// parsePow handles right-associative "^" exponentiation, binding tighter
// than * / % but looser than unary minus.
func (s *evalState) parsePow() (value.Value, error) {
	left, err := s.parseUnary()
	if err != nil {
		return value.Null(), err
	}
	if s.curIs(lexer.CARET) {
		s.advance()
		right, err := s.parsePow()
		if err != nil {
			return value.Null(), err
		}
		base, err := left.AsFloat()
		if err != nil {
			return value.Null(), evalErrorf("%v", err)
		}
		exp, err := right.AsFloat()
		if err != nil {
			return value.Null(), evalErrorf("%v", err)
		}
		return value.NewFloat(math.Pow(base, exp)), nil
	}
	return left, nil
}

func (s *evalState) parseUnary() (value.Value, error) {
	if s.curIs(lexer.MINUS) {
		s.advance()
		v, err := s.parseUnary()
		if err != nil {
			return value.Null(), err
		}
		return value.Sub(value.NewInt(0), v)
	}
	if s.curIs(lexer.PLUS) {
		s.advance()
		return s.parseUnary()
	}
	return s.parsePrimary()
}

func (s *evalState) at(off int) lexer.Token {
	i := s.pos + off
	if i < 0 || i >= len(s.toks) {
		return lexer.Token{Type: lexer.EOF}
	}
	return s.toks[i]
}

func (s *evalState) parsePrimary() (value.Value, error) {
	tok := s.cur()
	switch tok.Type {
	case lexer.LPAREN:
		s.advance()
		v, err := s.parseOr()
		if err != nil {
			return value.Null(), err
		}
		if _, err := s.expect(lexer.RPAREN); err != nil {
			return value.Null(), err
		}
		return v, nil

	case lexer.NULL_KW:
		s.advance()
		return value.Null(), nil

	case lexer.TRUE_KW:
		s.advance()
		return value.NewBool(true), nil

	case lexer.FALSE_KW:
		s.advance()
		return value.NewBool(false), nil

	case lexer.STRING:
		s.advance()
		return value.NewText(tok.Literal), nil

	case lexer.INT:
		s.advance()
		n, err := strconv.ParseInt(tok.Literal, 10, 64)
		if err != nil {
			return value.Null(), evalErrorf("invalid integer literal %q", tok.Literal)
		}
		return value.NewInt(n), nil

	case lexer.FLOAT:
		s.advance()
		f, err := strconv.ParseFloat(tok.Literal, 64)
		if err != nil {
			return value.Null(), evalErrorf("invalid float literal %q", tok.Literal)
		}
		return value.NewFloat(f), nil

	case lexer.CASE:
		return s.parseCase()

	case lexer.CAST:
		return s.parseCast()

	case lexer.CONVERT:
		return s.parseConvert()

	case lexer.IDENT:
		return s.parseIdentOrCall()

	case lexer.MINUS, lexer.PLUS:
		return s.parseUnary()
	}
	// A keyword spelled like a function name (DOUBLE, LEFT, IF, ...) is a
	// call when it is followed by '('.
	if s.at(1).Type == lexer.LPAREN {
		s.advance()
		return s.parseCall(tok.Literal)
	}
	return value.Null(), evalErrorf("unexpected token %q", tok.Literal)
}

// parseIdentOrCall resolves a bare identifier as a qualified or bare
// column lookup, or as a function call (user function, then add-in,
// then built-in, falling back to Null if nothing resolves it — see
// resolution order).
func (s *evalState) parseIdentOrCall() (value.Value, error) {
	name := s.advance().Literal

	if s.curIs(lexer.DOT) {
		s.advance()
		col, err := s.expect(lexer.IDENT)
		if err != nil {
			return value.Null(), err
		}
		if v, ok := s.ctx.Row.Get(name + "." + col.Literal); ok {
			return v, nil
		}
		if v, ok := s.ctx.Row.Get(col.Literal); ok {
			return v, nil
		}
		return value.Null(), nil
	}

	if s.curIs(lexer.LPAREN) {
		return s.parseCall(name)
	}

	if v, ok := s.ctx.Row.Get(name); ok {
		return v, nil
	}
	return value.Null(), nil
}

func (s *evalState) parseCall(name string) (value.Value, error) {
	upper := strings.ToUpper(name)
	if aggregateFuncs[upper] {
		return s.parseAggregateCall(upper)
	}

	s.advance() // consume '('
	var args []value.Value
	for !s.curIs(lexer.RPAREN) {
		v, err := s.parseOr()
		if err != nil {
			return value.Null(), err
		}
		args = append(args, v)
		if s.curIs(lexer.COMMA) {
			s.advance()
			continue
		}
		break
	}
	if _, err := s.expect(lexer.RPAREN); err != nil {
		return value.Null(), err
	}

	if s.ctx.Functions != nil {
		if fn, ok := s.ctx.Functions.Lookup(name); ok {
			return s.callUserFunction(fn, args)
		}
	}
	if s.ctx.AddIns != nil {
		if fn, ok := s.ctx.AddIns.Lookup(name); ok {
			return fn(args), nil
		}
	}
	if s.ctx.Builtins != nil {
		if fn, ok := s.ctx.Builtins.Lookup(name); ok {
			return fn(args)
		}
	}
	return value.Null(), nil
}

// parseAggregateCall handles a COUNT/SUM/AVG/MIN/MAX call. If the
// current row already carries a binding under the call's canonical key
// (bound by the SELECT pipeline's grouped precompute before it
// evaluates HAVING/ORDER BY), that precomputed value is returned
// directly. Otherwise the call is evaluated against this row alone,
// producing the row-level placeholder contribution described in
// aggregate.go.
func (s *evalState) parseAggregateCall(fn string) (value.Value, error) {
	if _, err := s.expect(lexer.LPAREN); err != nil {
		return value.Null(), err
	}
	start := s.pos
	depth := 0
	for {
		if s.atEnd() {
			return value.Null(), evalErrorf("unterminated call to %s", fn)
		}
		if s.curIs(lexer.RPAREN) && depth == 0 {
			break
		}
		if s.curIs(lexer.LPAREN) {
			depth++
		} else if s.curIs(lexer.RPAREN) {
			depth--
		}
		s.advance()
	}
	argToks := s.toks[start:s.pos]
	s.advance() // consume ')'

	distinct := false
	inner := argToks
	if len(inner) > 0 && inner[0].Type == lexer.DISTINCT {
		distinct = true
		inner = inner[1:]
	}
	isStar := len(inner) == 1 && inner[0].Type == lexer.STAR

	key := CanonicalAggKey(fn, distinct, inner)
	if v, ok := s.ctx.Row.Get(key); ok {
		return v, nil
	}

	contribute, _ := rowLevelAggregate(fn)
	if isStar || len(inner) == 0 {
		return contribute(nil), nil
	}
	v, err := Eval(parser.Expr(inner), s.ctx)
	if err != nil {
		return value.Null(), err
	}
	return contribute([]value.Value{v}), nil
}

func (s *evalState) callUserFunction(fn *UserFunction, args []value.Value) (value.Value, error) {
	params := NewRow()
	for i, p := range fn.Params {
		var v value.Value
		if i < len(args) {
			v = args[i]
		} else {
			v = value.Null()
		}
		params.Set(p.Name, v)
	}
	childCtx, err := s.ctx.childCall(params)
	if err != nil {
		return value.Null(), err
	}
	result, err := Eval(fn.Body, childCtx)
	if err != nil {
		return value.Null(), err
	}
	col := value.Column{Name: fn.Name, Type: fn.ReturnType}
	return col.Coerce(result)
}

func (s *evalState) parseCase() (value.Value, error) {
	s.advance() // CASE
	var subject *value.Value
	if !s.curIs(lexer.WHEN) {
		v, err := s.parseOr()
		if err != nil {
			return value.Null(), err
		}
		subject = &v
	}

	var result value.Value = value.Null()
	matched := false
	for s.curIs(lexer.WHEN) {
		s.advance()
		cond, err := s.parseOr()
		if err != nil {
			return value.Null(), err
		}
		if _, err := s.expect(lexer.THEN); err != nil {
			return value.Null(), err
		}
		then, err := s.parseOr()
		if err != nil {
			return value.Null(), err
		}
		if matched {
			continue
		}
		var hit bool
		if subject != nil {
			hit = !subject.IsNull() && !cond.IsNull() && value.Equal(*subject, cond)
		} else {
			hit = cond.IsTruthy()
		}
		if hit {
			result = then
			matched = true
		}
	}
	if s.curIs(lexer.ELSE) {
		s.advance()
		elseVal, err := s.parseOr()
		if err != nil {
			return value.Null(), err
		}
		if !matched {
			result = elseVal
		}
	}
	if _, err := s.expect(lexer.END); err != nil {
		return value.Null(), err
	}
	return result, nil
}

func (s *evalState) parseCast() (value.Value, error) {
	s.advance() // CAST
	if _, err := s.expect(lexer.LPAREN); err != nil {
		return value.Null(), err
	}
	v, err := s.parseOr()
	if err != nil {
		return value.Null(), err
	}
	if _, err := s.expect(lexer.AS); err != nil {
		return value.Null(), err
	}
	typeName, err := s.readTypeName()
	if err != nil {
		return value.Null(), err
	}
	if _, err := s.expect(lexer.RPAREN); err != nil {
		return value.Null(), err
	}
	col := value.Column{Name: "", Type: value.LookupColType(typeName)}
	result, err := col.Coerce(v)
	if err != nil {
		return value.Null(), evalErrorf("%v", err)
	}
	return result, nil
}

// parseConvert supports CONVERT(type, expr), the SQL-Server-flavored
// sibling of CAST.
func (s *evalState) parseConvert() (value.Value, error) {
	s.advance() // CONVERT
	if _, err := s.expect(lexer.LPAREN); err != nil {
		return value.Null(), err
	}
	typeName, err := s.readTypeName()
	if err != nil {
		return value.Null(), err
	}
	if _, err := s.expect(lexer.COMMA); err != nil {
		return value.Null(), err
	}
	v, err := s.parseOr()
	if err != nil {
		return value.Null(), err
	}
	if _, err := s.expect(lexer.RPAREN); err != nil {
		return value.Null(), err
	}
	col := value.Column{Name: "", Type: value.LookupColType(typeName)}
	result, err := col.Coerce(v)
	if err != nil {
		return value.Null(), evalErrorf("%v", err)
	}
	return result, nil
}

func (s *evalState) readTypeName() (string, error) {
	tok := s.advance()
	name := tok.Literal
	if s.curIs(lexer.LPAREN) {
		depth := 0
		for {
			t := s.advance()
			if t.Type == lexer.LPAREN {
				depth++
			} else if t.Type == lexer.RPAREN {
				depth--
				if depth == 0 {
					break
				}
			} else if t.Type == lexer.EOF {
				return "", evalErrorf("unterminated type specifier")
			}
		}
	}
	if name == "" {
		return "", evalErrorf("expected type name")
	}
	return name, nil
}

// matchLike compiles a SQL LIKE pattern ('%' -> any run, '_' -> any one
// char, everything else literal) into an anchored, case-insensitive
// regular expression and matches text against it.
func matchLike(text, pattern string) (bool, error) {
	var b strings.Builder
	b.WriteString("(?is)^")
	for _, r := range pattern {
		switch r {
		case '%':
			b.WriteString(".*")
		case '_':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	re, err := regexp.Compile(b.String())
	if err != nil {
		return false, evalErrorf("invalid LIKE pattern %q", pattern)
	}
	return re.MatchString(text), nil
}

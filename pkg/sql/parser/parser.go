// pkg/sql/parser/parser.go
//
// Recursive-descent parser. The statement-level grammar (DDL/DML/SELECT
// clause structure) is parsed into the AST types in ast.go; expressions
// are never turned into a tree here — they are captured as raw token
// slices (see Expr) for pkg/eval to walk at evaluation time.
package parser

import (
	"fmt"
	"strings"

	"quill/pkg/sql/lexer"
)

// ErrParse is the sentinel wrapped by every parser error.
var ErrParse = fmt.Errorf("parse error")

// Parser holds the full token stream for one statement and an index into
// it, per the "single token list, advancing index" design.
type Parser struct {
	tokens []lexer.Token
	pos    int
	src    string
}

// New tokenizes sql in full and returns a Parser ready to parse one
// statement from it.
func New(sql string) *Parser {
	l := lexer.New(sql)
	var toks []lexer.Token
	for {
		t := l.NextToken()
		toks = append(toks, t)
		if t.Type == lexer.EOF {
			break
		}
	}
	return &Parser{tokens: toks, src: sql}
}

func (p *Parser) cur() lexer.Token  { return p.tokens[p.pos] }
func (p *Parser) at(off int) lexer.Token {
	i := p.pos + off
	if i < 0 {
		i = 0
	}
	if i >= len(p.tokens) {
		i = len(p.tokens) - 1
	}
	return p.tokens[i]
}
func (p *Parser) peek() lexer.Token { return p.at(1) }

func (p *Parser) advance() lexer.Token {
	t := p.cur()
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
	return t
}

func (p *Parser) curIs(tt lexer.TokenType) bool  { return p.cur().Type == tt }
func (p *Parser) peekIs(tt lexer.TokenType) bool { return p.peek().Type == tt }

func (p *Parser) expect(tt lexer.TokenType) (lexer.Token, error) {
	if !p.curIs(tt) {
		return lexer.Token{}, p.errorf("expected %s, got %q", tt, p.cur().Literal)
	}
	return p.advance(), nil
}

func (p *Parser) errorf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrParse, fmt.Sprintf(format, args...))
}

// Parse parses exactly one statement, optionally followed by a trailing
// ';' and EOF. Multi-statement batches are out of scope.
func (p *Parser) Parse() (Stmt, error) {
	switch p.cur().Type {
	case lexer.SELECT:
		return p.parseSelect()
	case lexer.INSERT:
		return p.parseInsert()
	case lexer.UPDATE:
		return p.parseUpdate()
	case lexer.DELETE:
		return p.parseDelete()
	case lexer.CREATE:
		return p.parseCreate()
	case lexer.ALTER:
		return p.parseAlter()
	case lexer.DROP:
		return p.parseDrop()
	default:
		return nil, p.errorf("unexpected token %q at start of statement", p.cur().Literal)
	}
}

// --- expression capture ---

var valueEndTypes = map[lexer.TokenType]bool{
	lexer.INT: true, lexer.FLOAT: true, lexer.STRING: true,
	lexer.NULL_KW: true, lexer.TRUE_KW: true, lexer.FALSE_KW: true,
}

// captureUntil scans tokens from the current position, tracking paren
// depth, and returns everything up to (not including) the first
// depth-zero token whose type is in stop, or SEMICOLON/EOF. The parser's
// position is left at the stopping token.
func (p *Parser) captureUntil(stop map[lexer.TokenType]bool) Expr {
	start := p.pos
	depth := 0
	for {
		t := p.cur()
		if t.Type == lexer.EOF {
			break
		}
		if depth == 0 && (t.Type == lexer.SEMICOLON || stop[t.Type]) {
			break
		}
		if t.Type == lexer.LPAREN {
			depth++
		} else if t.Type == lexer.RPAREN {
			if depth == 0 {
				break
			}
			depth--
		}
		p.advance()
	}
	return Expr(p.tokens[start:p.pos])
}

func stopSet(types ...lexer.TokenType) map[lexer.TokenType]bool {
	m := make(map[lexer.TokenType]bool, len(types))
	for _, t := range types {
		m[t] = true
	}
	return m
}

// --- SELECT ---

var clauseStarts = stopSet(lexer.FROM, lexer.WHERE, lexer.GROUP, lexer.HAVING,
	lexer.ORDER, lexer.LIMIT, lexer.OFFSET, lexer.SEMICOLON)

func (p *Parser) parseSelect() (*SelectStmt, error) {
	stmt := &SelectStmt{}
	p.advance() // SELECT

	if p.curIs(lexer.DISTINCT) {
		stmt.Distinct = true
		p.advance()
	}
	if p.curIs(lexer.TOP) {
		p.advance()
		if p.curIs(lexer.LPAREN) {
			p.advance()
			stmt.Top = p.captureUntil(stopSet(lexer.RPAREN))
			if _, err := p.expect(lexer.RPAREN); err != nil {
				return nil, err
			}
		} else {
			stmt.Top = Expr{p.advance()}
		}
	}

	items, err := p.parseSelectItems()
	if err != nil {
		return nil, err
	}
	stmt.Items = items

	if p.curIs(lexer.FROM) {
		p.advance()
		src, err := p.parseSourceRef()
		if err != nil {
			return nil, err
		}
		stmt.Sources = append(stmt.Sources, src)
		for p.curIs(lexer.COMMA) {
			p.advance()
			src, err := p.parseSourceRef()
			if err != nil {
				return nil, err
			}
			stmt.Sources = append(stmt.Sources, src)
		}
		for isJoinStart(p.cur().Type) {
			j, err := p.parseJoin()
			if err != nil {
				return nil, err
			}
			stmt.Joins = append(stmt.Joins, j)
		}
	}

	if p.curIs(lexer.WHERE) {
		p.advance()
		stmt.Where = p.captureUntil(stopSet(lexer.GROUP, lexer.HAVING, lexer.ORDER, lexer.LIMIT, lexer.OFFSET))
	}

	if p.curIs(lexer.GROUP) {
		p.advance()
		if _, err := p.expect(lexer.BY); err != nil {
			return nil, err
		}
		for {
			stmt.GroupBy = append(stmt.GroupBy, p.captureUntil(stopSet(lexer.COMMA, lexer.HAVING, lexer.ORDER, lexer.LIMIT, lexer.OFFSET)))
			if p.curIs(lexer.COMMA) {
				p.advance()
				continue
			}
			break
		}
	}

	if p.curIs(lexer.HAVING) {
		p.advance()
		stmt.Having = p.captureUntil(stopSet(lexer.ORDER, lexer.LIMIT, lexer.OFFSET))
	}

	if p.curIs(lexer.ORDER) {
		p.advance()
		if _, err := p.expect(lexer.BY); err != nil {
			return nil, err
		}
		for {
			e := p.captureUntil(stopSet(lexer.COMMA, lexer.ASC, lexer.DESC, lexer.LIMIT, lexer.OFFSET))
			item := OrderItem{Expr: e}
			if p.curIs(lexer.ASC) {
				p.advance()
			} else if p.curIs(lexer.DESC) {
				item.Desc = true
				p.advance()
			}
			stmt.OrderBy = append(stmt.OrderBy, item)
			if p.curIs(lexer.COMMA) {
				p.advance()
				continue
			}
			break
		}
	}

	if p.curIs(lexer.LIMIT) {
		p.advance()
		stmt.Limit = p.captureUntil(stopSet(lexer.OFFSET))
	}
	if p.curIs(lexer.OFFSET) {
		p.advance()
		stmt.Offset = p.captureUntil(stopSet())
	}

	return stmt, nil
}

func isJoinStart(t lexer.TokenType) bool {
	switch t {
	case lexer.JOIN, lexer.INNER, lexer.LEFT, lexer.RIGHT, lexer.FULL, lexer.CROSS:
		return true
	}
	return false
}

func (p *Parser) parseJoin() (JoinClause, error) {
	j := JoinClause{Kind: JoinInner}
	switch p.cur().Type {
	case lexer.INNER:
		p.advance()
	case lexer.LEFT:
		j.Kind = JoinLeft
		p.advance()
		if p.curIs(lexer.OUTER) {
			p.advance()
		}
	case lexer.RIGHT:
		j.Kind = JoinRight
		p.advance()
		if p.curIs(lexer.OUTER) {
			p.advance()
		}
	case lexer.FULL:
		j.Kind = JoinFull
		p.advance()
		if p.curIs(lexer.OUTER) {
			p.advance()
		}
	case lexer.CROSS:
		j.Kind = JoinCross
		p.advance()
	}
	if _, err := p.expect(lexer.JOIN); err != nil {
		return j, err
	}
	name, err := p.expect(lexer.IDENT)
	if err != nil {
		return j, err
	}
	j.Table = name.Literal
	j.Alias = j.Table
	if p.curIs(lexer.AS) {
		p.advance()
		alias, err := p.expect(lexer.IDENT)
		if err != nil {
			return j, err
		}
		j.Alias = alias.Literal
	} else if p.curIs(lexer.IDENT) {
		j.Alias = p.advance().Literal
	}
	if j.Kind != JoinCross {
		if _, err := p.expect(lexer.ON); err != nil {
			return j, err
		}
		j.On = p.captureUntil(stopSet(lexer.JOIN, lexer.INNER, lexer.LEFT, lexer.RIGHT,
			lexer.FULL, lexer.CROSS, lexer.WHERE, lexer.GROUP, lexer.HAVING, lexer.ORDER,
			lexer.LIMIT, lexer.OFFSET))
	}
	return j, nil
}

func (p *Parser) parseSourceRef() (SourceRef, error) {
	name, err := p.expect(lexer.IDENT)
	if err != nil {
		return SourceRef{}, err
	}
	ref := SourceRef{Table: name.Literal, Alias: name.Literal}
	if p.curIs(lexer.AS) {
		p.advance()
		alias, err := p.expect(lexer.IDENT)
		if err != nil {
			return SourceRef{}, err
		}
		ref.Alias = alias.Literal
	} else if p.curIs(lexer.IDENT) {
		ref.Alias = p.advance().Literal
	}
	return ref, nil
}

var aggregateNames = map[string]bool{"COUNT": true, "SUM": true, "AVG": true, "MIN": true, "MAX": true}

func (p *Parser) parseSelectItems() ([]SelectItem, error) {
	var items []SelectItem
	for {
		item, err := p.parseSelectItem()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		if p.curIs(lexer.COMMA) {
			p.advance()
			continue
		}
		break
	}
	return items, nil
}

func (p *Parser) parseSelectItem() (SelectItem, error) {
	if p.curIs(lexer.STAR) {
		p.advance()
		return SelectItem{Star: true}, nil
	}
	if p.curIs(lexer.IDENT) && p.at(1).Type == lexer.DOT && p.at(2).Type == lexer.STAR {
		alias := p.advance().Literal
		p.advance() // '.'
		p.advance() // '*'
		return SelectItem{Star: true, StarAlias: alias}, nil
	}

	start := p.pos
	depth := 0
	lastWasValue := false
	for {
		t := p.cur()
		if t.Type == lexer.EOF || t.Type == lexer.SEMICOLON {
			break
		}
		if depth == 0 && (t.Type == lexer.COMMA || clauseStarts[t.Type] || t.Type == lexer.AS) {
			break
		}
		if depth == 0 && t.Type == lexer.IDENT && lastWasValue {
			break // bare alias
		}
		switch t.Type {
		case lexer.LPAREN:
			depth++
			lastWasValue = false
		case lexer.RPAREN:
			if depth == 0 {
				goto done
			}
			depth--
			lastWasValue = true
		case lexer.IDENT:
			lastWasValue = p.peek().Type != lexer.LPAREN
		case lexer.DOT:
			lastWasValue = false
		default:
			lastWasValue = valueEndTypes[t.Type]
		}
		p.advance()
	}
done:
	expr := Expr(p.tokens[start:p.pos])
	item := SelectItem{Expr: expr}

	if p.curIs(lexer.AS) {
		p.advance()
		name, err := p.expect(lexer.IDENT)
		if err != nil {
			return item, err
		}
		item.Alias = name.Literal
	} else if p.curIs(lexer.IDENT) {
		item.Alias = p.advance().Literal
	}

	detectAggregate(&item)
	return item, nil
}

// detectAggregate implements the syntactic aggregate detection of spec
// 4.5: a top-level call to COUNT|SUM|AVG|MIN|MAX, optionally with a
// leading DISTINCT, reconstructed as FUNC([DISTINCT ]argsText).
func detectAggregate(item *SelectItem) {
	e := item.Expr
	if len(e) < 3 || e[0].Type != lexer.IDENT || !aggregateNames[strings.ToUpper(e[0].Literal)] {
		return
	}
	if e[1].Type != lexer.LPAREN || e[len(e)-1].Type != lexer.RPAREN {
		return
	}
	item.IsAggregate = true
	item.AggFunc = strings.ToUpper(e[0].Literal)
	inner := e[2 : len(e)-1]
	if len(inner) > 0 && inner[0].Type == lexer.DISTINCT {
		item.AggDistinct = true
		inner = inner[1:]
	}
	item.AggArgs = inner
}

// --- INSERT / UPDATE / DELETE ---

func (p *Parser) parseInsert() (*InsertStmt, error) {
	stmt := &InsertStmt{}
	p.advance() // INSERT
	if _, err := p.expect(lexer.INTO); err != nil {
		return nil, err
	}
	name, err := p.expect(lexer.IDENT)
	if err != nil {
		return nil, err
	}
	stmt.Table = name.Literal

	if p.curIs(lexer.LPAREN) {
		p.advance()
		for {
			c, err := p.expect(lexer.IDENT)
			if err != nil {
				return nil, err
			}
			stmt.Columns = append(stmt.Columns, c.Literal)
			if p.curIs(lexer.COMMA) {
				p.advance()
				continue
			}
			break
		}
		if _, err := p.expect(lexer.RPAREN); err != nil {
			return nil, err
		}
	}

	if _, err := p.expect(lexer.VALUES); err != nil {
		return nil, err
	}
	for {
		if _, err := p.expect(lexer.LPAREN); err != nil {
			return nil, err
		}
		var row []Expr
		for {
			row = append(row, p.captureUntil(stopSet(lexer.COMMA, lexer.RPAREN)))
			if p.curIs(lexer.COMMA) {
				p.advance()
				continue
			}
			break
		}
		if _, err := p.expect(lexer.RPAREN); err != nil {
			return nil, err
		}
		stmt.Rows = append(stmt.Rows, row)
		if p.curIs(lexer.COMMA) {
			p.advance()
			continue
		}
		break
	}
	return stmt, nil
}

func (p *Parser) parseUpdate() (*UpdateStmt, error) {
	stmt := &UpdateStmt{}
	p.advance() // UPDATE
	name, err := p.expect(lexer.IDENT)
	if err != nil {
		return nil, err
	}
	stmt.Table = name.Literal
	if _, err := p.expect(lexer.SET); err != nil {
		return nil, err
	}
	for {
		col, err := p.expect(lexer.IDENT)
		if err != nil {
			return nil, err
		}
		if p.curIs(lexer.EQ) {
			p.advance()
		} else if _, err := p.expect(lexer.ASSIGN); err != nil {
			return nil, p.errorf("expected '=' after column %q in SET", col.Literal)
		}
		val := p.captureUntil(stopSet(lexer.COMMA, lexer.WHERE))
		stmt.Set = append(stmt.Set, Assignment{Column: col.Literal, Value: val})
		if p.curIs(lexer.COMMA) {
			p.advance()
			continue
		}
		break
	}
	if p.curIs(lexer.WHERE) {
		p.advance()
		stmt.Where = p.captureUntil(stopSet())
	}
	return stmt, nil
}

func (p *Parser) parseDelete() (*DeleteStmt, error) {
	stmt := &DeleteStmt{}
	p.advance() // DELETE
	if _, err := p.expect(lexer.FROM); err != nil {
		return nil, err
	}
	name, err := p.expect(lexer.IDENT)
	if err != nil {
		return nil, err
	}
	stmt.Table = name.Literal
	if p.curIs(lexer.WHERE) {
		p.advance()
		stmt.Where = p.captureUntil(stopSet())
	}
	return stmt, nil
}

// --- CREATE / ALTER / DROP ---

func (p *Parser) parseCreate() (Stmt, error) {
	p.advance() // CREATE
	switch p.cur().Type {
	case lexer.TABLE:
		return p.parseCreateTable()
	case lexer.FUNCTION:
		return p.parseCreateFunction()
	case lexer.TRIGGER:
		return p.parseCreateTrigger()
	default:
		return nil, p.errorf("expected TABLE, FUNCTION, or TRIGGER after CREATE, got %q", p.cur().Literal)
	}
}

func (p *Parser) parseTypeName() (string, error) {
	tok := p.advance()
	name := tok.Literal
	if name == "" {
		name = tok.Type.String()
	}
	if p.curIs(lexer.LPAREN) {
		p.advance()
		for !p.curIs(lexer.RPAREN) && !p.curIs(lexer.EOF) {
			p.advance()
		}
		if _, err := p.expect(lexer.RPAREN); err != nil {
			return "", err
		}
	}
	return strings.ToUpper(name), nil
}

func (p *Parser) parseCreateTable() (*CreateTableStmt, error) {
	stmt := &CreateTableStmt{}
	p.advance() // TABLE
	name, err := p.expect(lexer.IDENT)
	if err != nil {
		return nil, err
	}
	stmt.Name = name.Literal
	if _, err := p.expect(lexer.LPAREN); err != nil {
		return nil, err
	}
	for {
		if isTableConstraintStart(p.cur().Type) {
			p.skipBalancedToCommaOrClose()
		} else {
			col, err := p.parseColumnDef()
			if err != nil {
				return nil, err
			}
			stmt.Columns = append(stmt.Columns, col)
		}
		if p.curIs(lexer.COMMA) {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expect(lexer.RPAREN); err != nil {
		return nil, err
	}
	return stmt, nil
}

func isTableConstraintStart(t lexer.TokenType) bool {
	switch t {
	case lexer.PRIMARY, lexer.UNIQUE, lexer.FOREIGN, lexer.CONSTRAINT, lexer.INDEX, lexer.KEY, lexer.CHECK:
		return true
	}
	return false
}

// skipBalancedToCommaOrClose consumes tokens (respecting paren depth)
// until a depth-zero comma or the closing paren of the column list, used
// for inline table constraints the engine parses but discards.
func (p *Parser) skipBalancedToCommaOrClose() {
	depth := 0
	for {
		t := p.cur()
		if t.Type == lexer.EOF {
			return
		}
		if depth == 0 && (t.Type == lexer.COMMA || t.Type == lexer.RPAREN) {
			return
		}
		if t.Type == lexer.LPAREN {
			depth++
		} else if t.Type == lexer.RPAREN {
			depth--
		}
		p.advance()
	}
}

func (p *Parser) parseColumnDef() (ColumnDef, error) {
	name, err := p.expect(lexer.IDENT)
	if err != nil {
		return ColumnDef{}, err
	}
	typeName, err := p.parseTypeName()
	if err != nil {
		return ColumnDef{}, err
	}
	col := ColumnDef{Name: name.Literal, TypeName: typeName}
	for isColumnConstraintStart(p.cur().Type) {
		switch p.cur().Type {
		case lexer.NOT:
			p.advance()
			if _, err := p.expect(lexer.NULL_KW); err != nil {
				return ColumnDef{}, err
			}
			col.NotNull = true
		case lexer.DEFAULT:
			p.advance()
			col.Default = p.captureUntil(stopSet(lexer.COMMA, lexer.RPAREN, lexer.NOT, lexer.DEFAULT,
				lexer.PRIMARY, lexer.UNIQUE, lexer.REFERENCES, lexer.CHECK, lexer.IDENTITY, lexer.AUTO_INCREMENT))
		case lexer.PRIMARY:
			p.advance()
			p.expect(lexer.KEY)
		case lexer.UNIQUE, lexer.IDENTITY, lexer.AUTO_INCREMENT, lexer.NULL_KW:
			p.advance()
		case lexer.REFERENCES:
			p.advance()
			p.expect(lexer.IDENT)
			if p.curIs(lexer.LPAREN) {
				p.skipParenGroup()
			}
		case lexer.CHECK:
			p.advance()
			if p.curIs(lexer.LPAREN) {
				p.skipParenGroup()
			}
		default:
			p.advance()
		}
	}
	return col, nil
}

func isColumnConstraintStart(t lexer.TokenType) bool {
	switch t {
	case lexer.NOT, lexer.NULL_KW, lexer.DEFAULT, lexer.PRIMARY, lexer.UNIQUE,
		lexer.REFERENCES, lexer.CHECK, lexer.IDENTITY, lexer.AUTO_INCREMENT, lexer.CONSTRAINT:
		return true
	}
	return false
}

func (p *Parser) skipParenGroup() {
	p.advance() // '('
	depth := 1
	for depth > 0 && !p.curIs(lexer.EOF) {
		if p.curIs(lexer.LPAREN) {
			depth++
		} else if p.curIs(lexer.RPAREN) {
			depth--
		}
		p.advance()
	}
}

func (p *Parser) parseCreateFunction() (*CreateFunctionStmt, error) {
	stmt := &CreateFunctionStmt{}
	p.advance() // FUNCTION
	name, err := p.expect(lexer.IDENT)
	if err != nil {
		return nil, err
	}
	stmt.Name = name.Literal
	if _, err := p.expect(lexer.LPAREN); err != nil {
		return nil, err
	}
	if !p.curIs(lexer.RPAREN) {
		for {
			pname, err := p.expect(lexer.IDENT)
			if err != nil {
				return nil, err
			}
			ptype, err := p.parseTypeName()
			if err != nil {
				return nil, err
			}
			stmt.Params = append(stmt.Params, FuncParam{Name: pname.Literal, TypeName: ptype})
			if p.curIs(lexer.COMMA) {
				p.advance()
				continue
			}
			break
		}
	}
	if _, err := p.expect(lexer.RPAREN); err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.RETURNS); err != nil {
		return nil, err
	}
	retType, err := p.parseTypeName()
	if err != nil {
		return nil, err
	}
	stmt.ReturnType = retType

	if _, err := p.expect(lexer.AS); err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.BEGIN); err != nil {
		return nil, err
	}
	for !p.curIs(lexer.END) {
		if p.curIs(lexer.EOF) {
			return nil, p.errorf("unterminated function body, expected END")
		}
		if p.curIs(lexer.RETURN) {
			p.advance()
			stmt.Body = p.captureUntil(stopSet(lexer.SEMICOLON, lexer.END))
			if p.curIs(lexer.SEMICOLON) {
				p.advance()
			}
			continue
		}
		// Additional body statements are parsed-over but ignored: only
		// the single RETURN expression is honored (spec 4.4, 9).
		p.advance()
	}
	p.advance() // END
	return stmt, nil
}

func (p *Parser) parseCreateTrigger() (*CreateTriggerStmt, error) {
	startTok := p.pos
	stmt := &CreateTriggerStmt{}
	p.advance() // TRIGGER
	name, err := p.expect(lexer.IDENT)
	if err != nil {
		return nil, err
	}
	stmt.Name = name.Literal

	switch p.cur().Type {
	case lexer.BEFORE:
		stmt.Timing = TriggerBefore
	case lexer.AFTER:
		stmt.Timing = TriggerAfter
	default:
		return nil, p.errorf("expected BEFORE or AFTER, got %q", p.cur().Literal)
	}
	p.advance()

	switch p.cur().Type {
	case lexer.INSERT:
		stmt.Event = TriggerInsert
	case lexer.UPDATE:
		stmt.Event = TriggerUpdate
	case lexer.DELETE:
		stmt.Event = TriggerDelete
	default:
		return nil, p.errorf("expected INSERT, UPDATE, or DELETE, got %q", p.cur().Literal)
	}
	p.advance()

	if _, err := p.expect(lexer.ON); err != nil {
		return nil, err
	}
	table, err := p.expect(lexer.IDENT)
	if err != nil {
		return nil, err
	}
	stmt.Table = table.Literal

	if p.curIs(lexer.FOR) {
		p.advance()
		if _, err := p.expect(lexer.EACH); err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.ROW); err != nil {
			return nil, err
		}
	}
	if p.curIs(lexer.AS) {
		p.advance()
	}
	if _, err := p.expect(lexer.BEGIN); err != nil {
		return nil, err
	}
	body, err := p.parseTriggerBody()
	if err != nil {
		return nil, err
	}
	stmt.Body = body
	if _, err := p.expect(lexer.END); err != nil {
		return nil, err
	}
	if p.curIs(lexer.SEMICOLON) {
		p.advance()
	}

	// Reconstruct the original "CREATE TRIGGER ... END" text from tokens;
	// startTok points at TRIGGER, so back up one to include CREATE.
	var sb strings.Builder
	from := startTok - 1
	if from < 0 {
		from = 0
	}
	for i := from; i < p.pos; i++ {
		if i > from {
			sb.WriteByte(' ')
		}
		sb.WriteString(tokenText(p.tokens[i]))
	}
	stmt.SourceText = sb.String()
	return stmt, nil
}

// RenderExpr reconstructs source text from a captured token slice,
// space-joined and re-quoting STRING tokens. Used by the trigger runtime
// to turn a captured embedded-DML token slice back into parsable SQL.
func RenderExpr(e Expr) string {
	var sb strings.Builder
	for i, t := range e {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(tokenText(t))
	}
	return sb.String()
}

func tokenText(t lexer.Token) string {
	switch t.Type {
	case lexer.STRING:
		return "'" + strings.ReplaceAll(t.Literal, "'", "''") + "'"
	default:
		return t.Literal
	}
}

// parseTriggerBody parses statements terminated by ';' until END,
//
func (p *Parser) parseTriggerBody() ([]TriggerStmt, error) {
	var body []TriggerStmt
	for !p.curIs(lexer.END) && !p.curIs(lexer.ELSE) && !p.curIs(lexer.ELSEIF) {
		if p.curIs(lexer.EOF) {
			return nil, p.errorf("unterminated trigger body, expected END")
		}
		stmt, err := p.parseTriggerStmt()
		if err != nil {
			return nil, err
		}
		body = append(body, stmt)
	}
	return body, nil
}

func (p *Parser) parseTriggerStmt() (TriggerStmt, error) {
	if p.curIs(lexer.SET) {
		return p.parseTriggerSet()
	}
	if p.curIs(lexer.IF) {
		return p.parseTriggerIf()
	}
	return p.parseTriggerDml()
}

func (p *Parser) parseTriggerSet() (TriggerStmt, error) {
	p.advance() // SET
	target, err := p.expect(lexer.IDENT)
	if err != nil {
		return TriggerStmt{}, err
	}
	isNew, col, err := splitNewOld(target.Literal)
	if err != nil {
		return TriggerStmt{}, p.errorf("%v", err)
	}
	if p.curIs(lexer.DOT) {
		p.advance()
		c, err := p.expect(lexer.IDENT)
		if err != nil {
			return TriggerStmt{}, err
		}
		col = c.Literal
	}
	if _, err := p.expect(lexer.EQ); err != nil {
		return TriggerStmt{}, err
	}
	val := p.captureUntil(stopSet(lexer.SEMICOLON))
	if p.curIs(lexer.SEMICOLON) {
		p.advance()
	}
	return TriggerStmt{Kind: TriggerStmtSetNewOld, IsNew: isNew, Column: col, Value: val}, nil
}

func splitNewOld(ident string) (isNew bool, col string, err error) {
	parts := strings.SplitN(ident, ".", 2)
	head := strings.ToUpper(parts[0])
	switch head {
	case "NEW":
		isNew = true
	case "OLD":
		isNew = false
	default:
		return false, "", fmt.Errorf("expected NEW.col or OLD.col, got %q", ident)
	}
	if len(parts) == 2 {
		col = parts[1]
	}
	return isNew, col, nil
}

func (p *Parser) parseTriggerIf() (TriggerStmt, error) {
	stmt := TriggerStmt{Kind: TriggerStmtIf}
	p.advance() // IF
	for {
		cond := p.captureUntil(stopSet(lexer.THEN))
		if _, err := p.expect(lexer.THEN); err != nil {
			return stmt, err
		}
		body, err := p.parseTriggerBody()
		if err != nil {
			return stmt, err
		}
		stmt.Branches = append(stmt.Branches, TriggerBranch{Cond: cond, Body: body})
		if p.curIs(lexer.ELSEIF) {
			p.advance()
			continue
		}
		break
	}
	if p.curIs(lexer.ELSE) {
		p.advance()
		body, err := p.parseTriggerBody()
		if err != nil {
			return stmt, err
		}
		stmt.Else = body
	}
	if _, err := p.expect(lexer.END); err != nil {
		return stmt, err
	}
	if _, err := p.expect(lexer.IF); err != nil {
		return stmt, p.errorf("expected END IF, got END %q", p.cur().Literal)
	}
	if p.curIs(lexer.SEMICOLON) {
		p.advance()
	}
	return stmt, nil
}

// parseTriggerDml captures any other trigger-body statement verbatim as
// a token sequence to be rewritten and re-executed by the trigger
// runtime.
func (p *Parser) parseTriggerDml() (TriggerStmt, error) {
	toks := p.captureUntil(stopSet(lexer.SEMICOLON))
	if len(toks) == 0 {
		return TriggerStmt{}, p.errorf("empty trigger statement")
	}
	if p.curIs(lexer.SEMICOLON) {
		p.advance()
	}
	return TriggerStmt{Kind: TriggerStmtDml, DmlTokens: toks}, nil
}

// --- ALTER / DROP ---

func (p *Parser) parseAlter() (Stmt, error) {
	p.advance() // ALTER
	if _, err := p.expect(lexer.TABLE); err != nil {
		return nil, err
	}
	name, err := p.expect(lexer.IDENT)
	if err != nil {
		return nil, err
	}
	table := name.Literal

	switch p.cur().Type {
	case lexer.ADD:
		p.advance()
		if p.curIs(lexer.COLUMN) {
			p.advance()
		}
		if p.curIs(lexer.CONSTRAINT) || p.curIs(lexer.PRIMARY) || p.curIs(lexer.FOREIGN) || p.curIs(lexer.UNIQUE) || p.curIs(lexer.CHECK) {
			p.skipToSemicolon()
			return &AlterNoop{Table: table}, nil
		}
		col, err := p.parseColumnDef()
		if err != nil {
			return nil, err
		}
		return &AlterAddColumn{Table: table, Column: col}, nil
	case lexer.DROP:
		p.advance()
		if p.curIs(lexer.COLUMN) {
			p.advance()
		}
		colName, err := p.expect(lexer.IDENT)
		if err != nil {
			return nil, err
		}
		return &AlterDropColumn{Table: table, Column: colName.Literal}, nil
	case lexer.RENAME:
		// Column rename has no defined target semantics here; reject
		// rather than silently accept and do nothing.
		return nil, p.errorf("ALTER TABLE ... RENAME is not supported")
	default:
		p.skipToSemicolon()
		return &AlterNoop{Table: table}, nil
	}
}

func (p *Parser) skipToSemicolon() {
	for !p.curIs(lexer.SEMICOLON) && !p.curIs(lexer.EOF) {
		p.advance()
	}
}

func (p *Parser) parseDrop() (Stmt, error) {
	p.advance() // DROP
	switch p.cur().Type {
	case lexer.TABLE:
		p.advance()
		ifExists := p.consumeIfExists()
		name, err := p.expect(lexer.IDENT)
		if err != nil {
			return nil, err
		}
		return &DropTableStmt{Name: name.Literal, IfExists: ifExists}, nil
	case lexer.FUNCTION:
		p.advance()
		name, err := p.expect(lexer.IDENT)
		if err != nil {
			return nil, err
		}
		return &DropFunctionStmt{Name: name.Literal}, nil
	case lexer.TRIGGER:
		p.advance()
		ifExists := p.consumeIfExists()
		name, err := p.expect(lexer.IDENT)
		if err != nil {
			return nil, err
		}
		return &DropTriggerStmt{Name: name.Literal, IfExists: ifExists}, nil
	default:
		return nil, p.errorf("expected TABLE, FUNCTION, or TRIGGER after DROP, got %q", p.cur().Literal)
	}
}

func (p *Parser) consumeIfExists() bool {
	if p.curIs(lexer.IF) {
		p.advance()
		p.expect(lexer.EXISTS)
		return true
	}
	return false
}

package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/christophcharles/colloml/internal/lexer"
	"github.com/christophcharles/colloml/pkg/ast"
)

func (p *Parser) registerExpressionParsers() {
	p.prefixParseFns[lexer.INT] = p.parseIntLit
	p.prefixParseFns[lexer.TRUE] = p.parseBoolLit
	p.prefixParseFns[lexer.FALSE] = p.parseBoolLit
	p.prefixParseFns[lexer.STRING] = p.parseStringLit
	p.prefixParseFns[lexer.NONE_KW] = p.parseNoneLit
	p.prefixParseFns[lexer.IDENT] = p.parseIdentExpr
	p.prefixParseFns[lexer.LPAREN] = p.parseGroupedOrTuple
	p.prefixParseFns[lexer.LBRACK] = p.parseListLike
	p.prefixParseFns[lexer.LBRACE] = p.parseStructLit
	p.prefixParseFns[lexer.DOLLAR] = p.parseVarCallExpr
	p.prefixParseFns[lexer.AT] = p.parseGlobalList
	p.prefixParseFns[lexer.PIPE] = p.parseCardinality
	p.prefixParseFns[lexer.MINUS] = p.parsePrefixExpr
	p.prefixParseFns[lexer.NOT] = p.parsePrefixExpr
	p.prefixParseFns[lexer.BANG] = p.parsePrefixExpr
	p.prefixParseFns[lexer.PANIC] = p.parsePanicExpr
	p.prefixParseFns[lexer.FORALL] = p.parseForallExpr
	p.prefixParseFns[lexer.SUM] = p.parseSumExpr
	p.prefixParseFns[lexer.FOLD] = p.parseFoldExpr
	p.prefixParseFns[lexer.IF] = p.parseIfExpr
	p.prefixParseFns[lexer.MATCH] = p.parseMatchExpr
	p.prefixParseFns[lexer.LET] = p.parseLetExpr

	for _, t := range []lexer.TokenType{
		lexer.PLUS, lexer.MINUS, lexer.ASTERISK, lexer.SLASH_SLASH, lexer.PERCENT,
		lexer.EQ, lexer.NOT_EQ, lexer.LESS, lexer.LESS_EQ, lexer.GREATER, lexer.GREATER_EQ,
		lexer.CONSTR_EQ, lexer.CONSTR_LE, lexer.CONSTR_GE,
		lexer.AND, lexer.AMP_AMP, lexer.OR, lexer.PIPE_PIPE, lexer.QQUESTION,
	} {
		p.infixParseFns[t] = p.parseBinaryExpr
	}
	p.infixParseFns[lexer.IN] = p.parseInExpr
	p.infixParseFns[lexer.DOT] = p.parseDotSegment
	p.infixParseFns[lexer.LBRACK] = p.parseIndexSegment
	p.infixParseFns[lexer.AS] = p.parseCastExpr
}

// parseExpression is the Pratt core: the cursor is on the expression's
// first token and ends on its last token.
func (p *Parser) parseExpression(precedence int) ast.Expression {
	prefix := p.prefixParseFns[p.curToken().Type]
	if prefix == nil {
		p.addError(fmt.Sprintf("unexpected token %s in expression", p.curToken().Type))
		return nil
	}
	left := prefix()

	for left != nil && precedence < p.peekPrecedence() {
		infix := p.infixParseFns[p.peekToken().Type]
		if infix == nil {
			return left
		}
		p.nextToken()
		left = infix(left)
	}
	return left
}

func (p *Parser) parseIntLit() ast.Expression {
	tok := p.curToken()
	v, err := strconv.ParseInt(tok.Literal, 10, 32)
	if err != nil {
		p.addError(fmt.Sprintf("integer literal %s out of range", tok.Literal))
		return nil
	}
	return &ast.IntLit{Value: int32(v), Sp: tok.Span()}
}

func (p *Parser) parseBoolLit() ast.Expression {
	return &ast.BoolLit{Value: p.curTokenIs(lexer.TRUE), Sp: p.curToken().Span()}
}

func (p *Parser) parseStringLit() ast.Expression {
	return &ast.StringLit{Value: p.curToken().Literal, Sp: p.curToken().Span()}
}

func (p *Parser) parseNoneLit() ast.Expression {
	return &ast.NoneLit{Sp: p.curToken().Span()}
}

// parseIdentExpr parses an identifier path and decides between a plain
// reference, a generic call, a struct-style call and a module-qualified
// variable call.
func (p *Parser) parseIdentExpr() ast.Expression {
	start := p.curToken().Span()
	path := p.parseNamespacePath()

	// mod::$Var(args) / mod::$[Var](args)
	if p.peekTokenIs(lexer.DBL_COLON) && p.peekAhead(2).Type == lexer.DOLLAR {
		if len(path.Segments) != 1 {
			p.addError("variable calls qualify with a single module name")
			return nil
		}
		p.nextToken() // ::
		p.nextToken() // $
		return p.parseVarCallTail(path.Segments[0], start)
	}

	switch {
	case p.peekTokenIs(lexer.LPAREN):
		p.nextToken()
		args := p.parseCallArgs()
		if p.failed() {
			return nil
		}
		return &ast.GenericCall{Path: path, Args: args, Sp: start.Merge(p.curToken().Span())}
	case p.peekTokenIs(lexer.LBRACE) && p.structCallAhead():
		p.nextToken()
		fields := p.parseStructLitFields()
		if fields == nil {
			return nil
		}
		return &ast.StructCall{Path: path, Fields: fields, Sp: start.Merge(p.curToken().Span())}
	default:
		return &ast.IdentPath{Path: path, Sp: path.Sp}
	}
}

// structCallAhead reports whether the `{` at peek position opens a
// struct-style call (`Type{field: …}` or `Type{}`) rather than a block.
func (p *Parser) structCallAhead() bool {
	if p.peekAhead(2).Type == lexer.RBRACE {
		return true
	}
	return p.peekAhead(2).Type == lexer.IDENT && p.peekAhead(3).Type == lexer.COLON
}

// parseCallArgs parses (e1, e2, ...); the cursor is on the opening paren
// and ends on the closing one.
func (p *Parser) parseCallArgs() []ast.Expression {
	args := []ast.Expression{}
	for !p.peekTokenIs(lexer.RPAREN) {
		p.nextToken()
		arg := p.parseExpression(LOWEST)
		if arg == nil {
			return nil
		}
		args = append(args, arg)
		if p.peekTokenIs(lexer.COMMA) {
			p.nextToken()
		}
	}
	p.nextToken() // consume RPAREN
	return args
}

// parseGroupedOrTuple parses ( expr ) or ( e1, e2, ... ).
func (p *Parser) parseGroupedOrTuple() ast.Expression {
	start := p.curToken().Span()
	p.nextToken()
	first := p.parseExpression(LOWEST)
	if first == nil {
		return nil
	}

	if !p.peekTokenIs(lexer.COMMA) {
		if !p.expectPeek(lexer.RPAREN) {
			return nil
		}
		return first
	}

	elements := []ast.Expression{first}
	for p.peekTokenIs(lexer.COMMA) {
		p.nextToken()
		p.nextToken()
		elem := p.parseExpression(LOWEST)
		if elem == nil {
			return nil
		}
		elements = append(elements, elem)
	}
	if !p.expectPeek(lexer.RPAREN) {
		return nil
	}
	return &ast.TupleLit{Elements: elements, Sp: start.Merge(p.curToken().Span())}
}

// parseListLike parses list literals, ranges, comprehensions and the
// list-typed complex cast [T](args).
func (p *Parser) parseListLike() ast.Expression {
	start := p.curToken().Span()

	if p.peekTokenIs(lexer.RBRACK) {
		p.nextToken()
		return &ast.ListLit{Sp: start.Merge(p.curToken().Span())}
	}

	p.nextToken()
	first := p.parseExpression(LOWEST)
	if first == nil {
		return nil
	}

	switch {
	case p.peekTokenIs(lexer.DOTDOT):
		p.nextToken()
		p.nextToken()
		end := p.parseExpression(LOWEST)
		if end == nil {
			return nil
		}
		if !p.expectPeek(lexer.RBRACK) {
			return nil
		}
		return &ast.RangeLit{Start: first, End: end, Sp: start.Merge(p.curToken().Span())}

	case p.peekTokenIs(lexer.FOR):
		return p.parseComprehensionTail(first, start)
	}

	// [T](args) complex cast: single type-shaped element followed by a call
	if ip, ok := first.(*ast.IdentPath); ok &&
		p.peekTokenIs(lexer.RBRACK) && p.peekAhead(2).Type == lexer.LPAREN {
		p.nextToken() // ]
		elemType := &ast.PathType{Path: ip.Path, Sp: ip.Sp}
		listType := &ast.ListType{Elem: elemType, Sp: start.Merge(p.curToken().Span())}
		p.nextToken() // (
		args := p.parseCallArgs()
		if p.failed() {
			return nil
		}
		return &ast.ComplexTypeCast{Type: listType, Args: args, Sp: start.Merge(p.curToken().Span())}
	}

	elements := []ast.Expression{first}
	for p.peekTokenIs(lexer.COMMA) {
		p.nextToken()
		p.nextToken()
		elem := p.parseExpression(LOWEST)
		if elem == nil {
			return nil
		}
		elements = append(elements, elem)
	}
	if !p.expectPeek(lexer.RBRACK) {
		return nil
	}
	return &ast.ListLit{Elements: elements, Sp: start.Merge(p.curToken().Span())}
}

// parseComprehensionTail continues after `[ body` when the next token is
// `for`.
func (p *Parser) parseComprehensionTail(body ast.Expression, start lexer.Span) ast.Expression {
	var clauses []*ast.CompClause
	for p.peekTokenIs(lexer.FOR) {
		p.nextToken()
		if !p.expectPeek(lexer.IDENT) {
			return nil
		}
		v := p.curIdent()
		if !p.expectPeek(lexer.IN) {
			return nil
		}
		p.nextToken()
		coll := p.parseExpression(LOWEST)
		if coll == nil {
			return nil
		}
		clauses = append(clauses, &ast.CompClause{Var: v, Collection: coll})
	}

	var filter ast.Expression
	if p.peekTokenIs(lexer.WHERE) {
		p.nextToken()
		p.nextToken()
		filter = p.parseExpression(LOWEST)
		if filter == nil {
			return nil
		}
	}
	if !p.expectPeek(lexer.RBRACK) {
		return nil
	}
	return &ast.Comprehension{
		Body:    body,
		Clauses: clauses,
		Filter:  filter,
		Sp:      start.Merge(p.curToken().Span()),
	}
}

// parseStructLit parses { f1: e1, ... }; the cursor is on the opening
// brace.
func (p *Parser) parseStructLit() ast.Expression {
	start := p.curToken().Span()
	fields := p.parseStructLitFields()
	if fields == nil {
		return nil
	}
	return &ast.StructLit{Fields: fields, Sp: start.Merge(p.curToken().Span())}
}

// parseStructLitFields parses the field list of a struct literal; the
// cursor is on `{` and ends on `}`.
func (p *Parser) parseStructLitFields() []*ast.StructLitField {
	var fields []*ast.StructLitField
	for !p.peekTokenIs(lexer.RBRACE) {
		if !p.expectPeek(lexer.IDENT) {
			return nil
		}
		name := p.curIdent()
		if !p.expectPeek(lexer.COLON) {
			return nil
		}
		p.nextToken()
		val := p.parseExpression(LOWEST)
		if val == nil {
			return nil
		}
		fields = append(fields, &ast.StructLitField{Name: name, Value: val})
		if p.peekTokenIs(lexer.COMMA) {
			p.nextToken()
		}
	}
	p.nextToken() // consume RBRACE
	return fields
}

// parseVarCallExpr parses $Var(args) and $[VarList](args); the cursor is
// on the dollar sign.
func (p *Parser) parseVarCallExpr() ast.Expression {
	return p.parseVarCallTail(nil, p.curToken().Span())
}

// parseVarCallTail parses the variable-call syntax after the dollar sign
// (which the cursor is on), with an optional module qualifier.
func (p *Parser) parseVarCallTail(module *ast.Ident, start lexer.Span) ast.Expression {
	if p.peekTokenIs(lexer.LBRACK) {
		p.nextToken()
		if !p.expectPeek(lexer.IDENT) {
			return nil
		}
		name := p.curIdent()
		if !p.expectPeek(lexer.RBRACK) {
			return nil
		}
		if !p.expectPeek(lexer.LPAREN) {
			return nil
		}
		args := p.parseCallArgs()
		if p.failed() {
			return nil
		}
		return &ast.VarListCall{
			Module: module,
			Name:   name,
			Args:   args,
			Sp:     start.Merge(p.curToken().Span()),
		}
	}

	if !p.expectPeek(lexer.IDENT) {
		return nil
	}
	name := p.curIdent()
	if !p.expectPeek(lexer.LPAREN) {
		return nil
	}
	args := p.parseCallArgs()
	if p.failed() {
		return nil
	}
	return &ast.VarCall{
		Module: module,
		Name:   name,
		Args:   args,
		Sp:     start.Merge(p.curToken().Span()),
	}
}

// parseGlobalList parses @[T]; the cursor is on the at sign.
func (p *Parser) parseGlobalList() ast.Expression {
	start := p.curToken().Span()
	if !p.expectPeek(lexer.LBRACK) {
		return nil
	}
	p.nextToken()
	typ := p.parseTypeExpr()
	if typ == nil {
		return nil
	}
	if !p.expectPeek(lexer.RBRACK) {
		return nil
	}
	return &ast.GlobalList{Type: typ, Sp: start.Merge(p.curToken().Span())}
}

// parseCardinality parses |expr|.
func (p *Parser) parseCardinality() ast.Expression {
	start := p.curToken().Span()
	p.nextToken()
	inner := p.parseExpression(LOWEST)
	if inner == nil {
		return nil
	}
	if !p.expectPeek(lexer.PIPE) {
		return nil
	}
	return &ast.Cardinality{Inner: inner, Sp: start.Merge(p.curToken().Span())}
}

// parsePrefixExpr parses -x, not x, !x.
func (p *Parser) parsePrefixExpr() ast.Expression {
	start := p.curToken().Span()
	op := p.curToken().Literal
	if p.curTokenIs(lexer.BANG) || p.curTokenIs(lexer.NOT) {
		op = "not"
	}
	p.nextToken()
	right := p.parseExpression(PREFIX)
	if right == nil {
		return nil
	}
	return &ast.UnaryExpr{Op: op, Right: right, Sp: start.Merge(right.Span())}
}

// parsePanicExpr parses panic! expr.
func (p *Parser) parsePanicExpr() ast.Expression {
	start := p.curToken().Span()
	p.nextToken()
	val := p.parseExpression(LOWEST)
	if val == nil {
		return nil
	}
	return &ast.PanicExpr{Value: val, Sp: start.Merge(val.Span())}
}

// parseQuantifierHead parses `v in coll (where filter)?` after the
// quantifier keyword (which the cursor is on).
func (p *Parser) parseQuantifierHead() (*ast.Ident, ast.Expression, ast.Expression, bool) {
	if !p.expectPeek(lexer.IDENT) {
		return nil, nil, nil, false
	}
	v := p.curIdent()
	if !p.expectPeek(lexer.IN) {
		return nil, nil, nil, false
	}
	p.nextToken()
	coll := p.parseExpression(LOWEST)
	if coll == nil {
		return nil, nil, nil, false
	}
	var filter ast.Expression
	if p.peekTokenIs(lexer.WHERE) {
		p.nextToken()
		p.nextToken()
		filter = p.parseExpression(LOWEST)
		if filter == nil {
			return nil, nil, nil, false
		}
	}
	return v, coll, filter, true
}

// parseBracedBody parses `{ expr }`.
func (p *Parser) parseBracedBody() ast.Expression {
	if !p.expectPeek(lexer.LBRACE) {
		return nil
	}
	p.nextToken()
	body := p.parseExpression(LOWEST)
	if body == nil {
		return nil
	}
	if !p.expectPeek(lexer.RBRACE) {
		return nil
	}
	return body
}

func (p *Parser) parseForallExpr() ast.Expression {
	start := p.curToken().Span()
	v, coll, filter, ok := p.parseQuantifierHead()
	if !ok {
		return nil
	}
	body := p.parseBracedBody()
	if body == nil {
		return nil
	}
	return &ast.ForallExpr{
		Var: v, Collection: coll, Filter: filter, Body: body,
		Sp: start.Merge(p.curToken().Span()),
	}
}

func (p *Parser) parseSumExpr() ast.Expression {
	start := p.curToken().Span()
	v, coll, filter, ok := p.parseQuantifierHead()
	if !ok {
		return nil
	}
	body := p.parseBracedBody()
	if body == nil {
		return nil
	}
	return &ast.SumExpr{
		Var: v, Collection: coll, Filter: filter, Body: body,
		Sp: start.Merge(p.curToken().Span()),
	}
}

// parseFoldExpr parses:
//
//	fold v in coll accum a = init (where filter)? { body }
func (p *Parser) parseFoldExpr() ast.Expression {
	start := p.curToken().Span()
	if !p.expectPeek(lexer.IDENT) {
		return nil
	}
	v := p.curIdent()
	if !p.expectPeek(lexer.IN) {
		return nil
	}
	p.nextToken()
	coll := p.parseExpression(LOWEST)
	if coll == nil {
		return nil
	}
	if !p.expectPeek(lexer.ACCUM) {
		return nil
	}
	if !p.expectPeek(lexer.IDENT) {
		return nil
	}
	accum := p.curIdent()
	if !p.expectPeek(lexer.ASSIGN) {
		return nil
	}
	p.nextToken()
	init := p.parseExpression(LOWEST)
	if init == nil {
		return nil
	}
	var filter ast.Expression
	if p.peekTokenIs(lexer.WHERE) {
		p.nextToken()
		p.nextToken()
		filter = p.parseExpression(LOWEST)
		if filter == nil {
			return nil
		}
	}
	body := p.parseBracedBody()
	if body == nil {
		return nil
	}
	return &ast.FoldExpr{
		Var: v, Collection: coll, Accum: accum, Init: init,
		Filter: filter, Body: body,
		Sp: start.Merge(p.curToken().Span()),
	}
}

func (p *Parser) parseIfExpr() ast.Expression {
	start := p.curToken().Span()
	p.nextToken()
	cond := p.parseExpression(LOWEST)
	if cond == nil {
		return nil
	}
	then := p.parseBracedBody()
	if then == nil {
		return nil
	}
	if !p.expectPeek(lexer.ELSE) {
		return nil
	}
	els := p.parseBracedBody()
	if els == nil {
		return nil
	}
	return &ast.IfExpr{Cond: cond, Then: then, Else: els, Sp: start.Merge(p.curToken().Span())}
}

// parseMatchExpr parses:
//
//	match e { ident (as T)? (where f)? => body, ... }
func (p *Parser) parseMatchExpr() ast.Expression {
	start := p.curToken().Span()
	p.nextToken()
	subject := p.parseExpression(LOWEST)
	if subject == nil {
		return nil
	}
	if !p.expectPeek(lexer.LBRACE) {
		return nil
	}

	var branches []*ast.MatchBranch
	for !p.peekTokenIs(lexer.RBRACE) {
		if !p.expectPeek(lexer.IDENT) {
			return nil
		}
		branch := &ast.MatchBranch{Ident: p.curIdent()}
		if p.peekTokenIs(lexer.AS) {
			p.nextToken()
			p.nextToken()
			branch.AsType = p.parseTypeExpr()
			if branch.AsType == nil {
				return nil
			}
		}
		if p.peekTokenIs(lexer.WHERE) {
			p.nextToken()
			p.nextToken()
			branch.Filter = p.parseExpression(LOWEST)
			if branch.Filter == nil {
				return nil
			}
		}
		if !p.expectPeek(lexer.FAT_ARROW) {
			return nil
		}
		p.nextToken()
		branch.Body = p.parseExpression(LOWEST)
		if branch.Body == nil {
			return nil
		}
		branches = append(branches, branch)
		if p.peekTokenIs(lexer.COMMA) {
			p.nextToken()
		}
	}
	p.nextToken() // consume RBRACE
	if len(branches) == 0 {
		p.addError("match needs at least one branch")
		return nil
	}
	return &ast.MatchExpr{Subject: subject, Branches: branches, Sp: start.Merge(p.curToken().Span())}
}

// parseLetExpr parses let x = v { body }.
func (p *Parser) parseLetExpr() ast.Expression {
	start := p.curToken().Span()
	if !p.expectPeek(lexer.IDENT) {
		return nil
	}
	v := p.curIdent()
	if !p.expectPeek(lexer.ASSIGN) {
		return nil
	}
	p.nextToken()
	val := p.parseExpression(LOWEST)
	if val == nil {
		return nil
	}
	body := p.parseBracedBody()
	if body == nil {
		return nil
	}
	return &ast.LetExpr{Var: v, Value: val, Body: body, Sp: start.Merge(p.curToken().Span())}
}

// parseBinaryExpr parses left <op> right; the cursor is on the operator.
func (p *Parser) parseBinaryExpr(left ast.Expression) ast.Expression {
	tok := p.curToken()
	op := tok.Literal
	switch tok.Type {
	case lexer.AMP_AMP:
		op = "and"
	case lexer.PIPE_PIPE:
		op = "or"
	}
	prec := getPrecedence(tok.Type)
	p.nextToken()
	right := p.parseExpression(prec)
	if right == nil {
		return nil
	}
	return &ast.BinaryExpr{Op: op, Left: left, Right: right, Sp: left.Span().Merge(right.Span())}
}

// parseInExpr parses left in collection.
func (p *Parser) parseInExpr(left ast.Expression) ast.Expression {
	p.nextToken()
	coll := p.parseExpression(COMPARE)
	if coll == nil {
		return nil
	}
	return &ast.InExpr{Item: left, Collection: coll, Sp: left.Span().Merge(coll.Span())}
}

// parseCastExpr parses `as T`, `as? T` and `as! T`; the cursor is on as.
func (p *Parser) parseCastExpr(left ast.Expression) ast.Expression {
	kind := ast.CastAscribe
	if p.peekTokenIs(lexer.QUESTION) {
		kind = ast.CastMaybe
		p.nextToken()
	} else if p.peekTokenIs(lexer.BANG) {
		kind = ast.CastPanic
		p.nextToken()
	}
	p.nextToken()
	typ := p.parseTypeExpr()
	if typ == nil {
		return nil
	}
	return &ast.CastExpr{Expr: left, Type: typ, Kind: kind, Sp: left.Span().Merge(p.curToken().Span())}
}

// pathOf extends an existing path expression or starts a new one.
func pathOf(left ast.Expression) *ast.PathExpr {
	if pe, ok := left.(*ast.PathExpr); ok {
		return pe
	}
	return &ast.PathExpr{Object: left, Sp: left.Span()}
}

// parseDotSegment parses .field and .N tuple access; the cursor is on
// the dot.
func (p *Parser) parseDotSegment(left ast.Expression) ast.Expression {
	pe := pathOf(left)
	start := p.curToken().Span()

	switch {
	case p.peekTokenIs(lexer.INT):
		p.nextToken()
		idx, err := strconv.Atoi(p.curToken().Literal)
		if err != nil {
			p.addError("invalid tuple index")
			return nil
		}
		pe.Segments = append(pe.Segments, &ast.PathSegment{
			IsTuple:    true,
			TupleIndex: idx,
			Sp:         start.Merge(p.curToken().Span()),
		})
	case p.peekTokenIs(lexer.IDENT):
		p.nextToken()
		pe.Segments = append(pe.Segments, &ast.PathSegment{
			Field: p.curToken().Literal,
			Sp:    start.Merge(p.curToken().Span()),
		})
	default:
		p.peekError(lexer.IDENT)
		return nil
	}
	pe.Sp = pe.Sp.Merge(p.curToken().Span())
	return pe
}

// parseIndexSegment parses [expr]? and [expr]!; the cursor is on the
// opening bracket.
func (p *Parser) parseIndexSegment(left ast.Expression) ast.Expression {
	pe := pathOf(left)
	start := p.curToken().Span()

	p.nextToken()
	idx := p.parseExpression(LOWEST)
	if idx == nil {
		return nil
	}
	if !p.expectPeek(lexer.RBRACK) {
		return nil
	}

	var panicking bool
	switch {
	case p.peekTokenIs(lexer.BANG):
		panicking = true
		p.nextToken()
	case p.peekTokenIs(lexer.QUESTION):
		p.nextToken()
	default:
		p.addError("list index needs a '?' or '!' suffix")
		return nil
	}

	pe.Segments = append(pe.Segments, &ast.PathSegment{
		Index:      idx,
		IndexPanic: panicking,
		Sp:         start.Merge(p.curToken().Span()),
	})
	pe.Sp = pe.Sp.Merge(p.curToken().Span())
	return pe
}

// parseDocstringLines collects consecutive DOCLINE tokens and splits each
// into text parts and embedded String(expr) expressions.
func (p *Parser) parseDocstringLines() []ast.DocstringLine {
	var lines []ast.DocstringLine
	for p.curTokenIs(lexer.DOCLINE) {
		line, err := parseDocstringText(p.curToken().Literal)
		if err != "" {
			p.addError(err)
			return nil
		}
		lines = append(lines, line)
		p.nextToken()
	}
	return lines
}

// parseDocstringText splits a docstring line around String(...) segments
// and parses each embedded expression.
func parseDocstringText(text string) (ast.DocstringLine, string) {
	var line ast.DocstringLine
	rest := text
	for {
		idx := strings.Index(rest, "String(")
		if idx < 0 {
			if rest != "" || len(line) == 0 {
				line = append(line, ast.DocstringPart{Prefix: rest})
			}
			return line, ""
		}
		prefix := rest[:idx]
		inner, remaining, ok := balancedParen(rest[idx+len("String("):])
		if !ok {
			return nil, "unbalanced String(...) in docstring"
		}
		expr, err := ParseExpressionString(inner)
		if err != nil {
			return nil, "invalid expression in docstring: " + err.Error()
		}
		line = append(line, ast.DocstringPart{Prefix: prefix, Expr: expr})
		rest = remaining
	}
}

// balancedParen scans to the parenthesis matching an already-consumed
// opening one; returns the inner text and the remainder after it.
func balancedParen(s string) (inner, rest string, ok bool) {
	depth := 1
	for i, ch := range s {
		switch ch {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return s[:i], s[i+1:], true
			}
		}
	}
	return "", "", false
}

// ParseTypeString parses a standalone type name, as used by schema
// files.
func ParseTypeString(input string) (ast.TypeExpr, error) {
	p := New(input)
	typ := p.parseTypeExpr()
	if typ == nil || p.failed() {
		if len(p.errors) > 0 {
			return nil, p.errors[0]
		}
		return nil, &Error{Message: "empty type"}
	}
	if !p.peekTokenIs(lexer.EOF) {
		return nil, &Error{Message: "trailing tokens after type", Span: p.peekToken().Span(), Pos: p.peekToken().Pos}
	}
	return typ, nil
}

// ParseExpressionString parses a standalone expression, as used by
// docstring interpolation.
func ParseExpressionString(input string) (ast.Expression, error) {
	p := New(input)
	expr := p.parseExpression(LOWEST)
	if expr == nil || p.failed() {
		if len(p.errors) > 0 {
			return nil, p.errors[0]
		}
		return nil, &Error{Message: "empty expression"}
	}
	if !p.peekTokenIs(lexer.EOF) {
		return nil, &Error{Message: "trailing tokens after expression", Span: p.peekToken().Span(), Pos: p.peekToken().Pos}
	}
	return expr, nil
}

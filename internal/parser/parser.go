// Package parser implements the CoLLoML parser using Pratt parsing.
//
// The parser accumulates tokens from the lexer up front and walks them
// with a current/peek cursor. Errors carry byte spans; parsing a module
// stops at the first unrecoverable failure, so callers see one fatal
// parse error per module.
package parser

import (
	"fmt"

	"github.com/christophcharles/colloml/internal/lexer"
	"github.com/christophcharles/colloml/pkg/ast"
)

// Precedence levels for operators (lowest to highest).
const (
	_ int = iota
	LOWEST
	COALESCE // ??
	OR       // or ||
	AND      // and &&
	COMPARE  // == != < <= > >= === <== >== in
	SUM      // + -
	PRODUCT  // * // %
	PREFIX   // -x, not x
	POSTFIX  // .field, [i]!, as T
	CALL     // f(args)
)

// precedences maps token types to their precedence levels.
var precedences = map[lexer.TokenType]int{
	lexer.QQUESTION:   COALESCE,
	lexer.OR:          OR,
	lexer.PIPE_PIPE:   OR,
	lexer.AND:         AND,
	lexer.AMP_AMP:     AND,
	lexer.EQ:          COMPARE,
	lexer.NOT_EQ:      COMPARE,
	lexer.LESS:        COMPARE,
	lexer.LESS_EQ:     COMPARE,
	lexer.GREATER:     COMPARE,
	lexer.GREATER_EQ:  COMPARE,
	lexer.CONSTR_EQ:   COMPARE,
	lexer.CONSTR_LE:   COMPARE,
	lexer.CONSTR_GE:   COMPARE,
	lexer.IN:          COMPARE,
	lexer.PLUS:        SUM,
	lexer.MINUS:       SUM,
	lexer.ASTERISK:    PRODUCT,
	lexer.SLASH_SLASH: PRODUCT,
	lexer.PERCENT:     PRODUCT,
	lexer.DOT:         POSTFIX,
	lexer.LBRACK:      POSTFIX,
	lexer.AS:          POSTFIX,
}

// Error is a parse error with its source span.
type Error struct {
	Message string
	Span    lexer.Span
	Pos     lexer.Position
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s at %s", e.Message, e.Pos)
}

type prefixParseFn func() ast.Expression
type infixParseFn func(ast.Expression) ast.Expression

// Parser parses one CoLLoML module.
type Parser struct {
	tokens         []lexer.Token
	pos            int
	errors         []*Error
	lexErrors      []lexer.LexError
	prefixParseFns map[lexer.TokenType]prefixParseFn
	infixParseFns  map[lexer.TokenType]infixParseFn
}

// New creates a Parser over the given source text.
func New(input string) *Parser {
	l := lexer.New(input)
	var tokens []lexer.Token
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.Type == lexer.EOF {
			break
		}
	}

	p := &Parser{
		tokens:         tokens,
		lexErrors:      l.Errors(),
		prefixParseFns: map[lexer.TokenType]prefixParseFn{},
		infixParseFns:  map[lexer.TokenType]infixParseFn{},
	}
	p.registerExpressionParsers()
	return p
}

// Errors returns the accumulated parse errors.
func (p *Parser) Errors() []*Error {
	return p.errors
}

// LexErrors returns the lexer errors accumulated during tokenization.
func (p *Parser) LexErrors() []lexer.LexError {
	return p.lexErrors
}

func (p *Parser) curToken() lexer.Token {
	return p.tokens[p.pos]
}

func (p *Parser) peekToken() lexer.Token {
	if p.pos+1 < len(p.tokens) {
		return p.tokens[p.pos+1]
	}
	return p.tokens[len(p.tokens)-1]
}

// peekAhead returns the token n positions after the current one.
func (p *Parser) peekAhead(n int) lexer.Token {
	if p.pos+n < len(p.tokens) {
		return p.tokens[p.pos+n]
	}
	return p.tokens[len(p.tokens)-1]
}

func (p *Parser) nextToken() {
	if p.pos+1 < len(p.tokens) {
		p.pos++
	}
}

func (p *Parser) curTokenIs(t lexer.TokenType) bool {
	return p.curToken().Type == t
}

func (p *Parser) peekTokenIs(t lexer.TokenType) bool {
	return p.peekToken().Type == t
}

// expectPeek advances if the peek token matches, otherwise records an
// error and returns false.
func (p *Parser) expectPeek(t lexer.TokenType) bool {
	if p.peekTokenIs(t) {
		p.nextToken()
		return true
	}
	p.peekError(t)
	return false
}

func (p *Parser) peekError(t lexer.TokenType) {
	tok := p.peekToken()
	p.addErrorAt(fmt.Sprintf("expected next token to be %s, got %s instead", t, tok.Type), tok)
}

func (p *Parser) addError(msg string) {
	p.addErrorAt(msg, p.curToken())
}

func (p *Parser) addErrorAt(msg string, tok lexer.Token) {
	p.errors = append(p.errors, &Error{Message: msg, Span: tok.Span(), Pos: tok.Pos})
}

func (p *Parser) failed() bool {
	return len(p.errors) > 0
}

func getPrecedence(t lexer.TokenType) int {
	if prec, ok := precedences[t]; ok {
		return prec
	}
	return LOWEST
}

func (p *Parser) peekPrecedence() int {
	return getPrecedence(p.peekToken().Type)
}

// ParseFile parses the whole module. On failure the returned file is nil
// and the errors are in Errors() or, for lexer errors, LexErrors().
func (p *Parser) ParseFile() *ast.File {
	file := &ast.File{}
	for !p.curTokenIs(lexer.EOF) {
		stmt := p.parseStatement()
		if stmt == nil || p.failed() {
			return nil
		}
		file.Statements = append(file.Statements, stmt)
		p.nextToken()
	}
	if len(p.lexErrors) > 0 {
		return nil
	}
	return file
}

// parseStatement parses one top-level declaration. The cursor ends on the
// statement's final token (the semicolon).
func (p *Parser) parseStatement() ast.Statement {
	docstring := p.parseDocstringLines()

	switch p.curToken().Type {
	case lexer.IMPORT:
		if len(docstring) > 0 {
			p.addError("docstring not allowed before import")
			return nil
		}
		return p.parseImportDecl()
	case lexer.PUB, lexer.LET, lexer.TYPE, lexer.ENUM, lexer.REIFY:
		return p.parseDeclaration(docstring)
	default:
		p.addError(fmt.Sprintf("expected declaration, got %s", p.curToken().Type))
		return nil
	}
}

func (p *Parser) parseDeclaration(docstring []ast.DocstringLine) ast.Statement {
	start := p.curToken()
	public := false
	if p.curTokenIs(lexer.PUB) {
		public = true
		p.nextToken()
	}

	switch p.curToken().Type {
	case lexer.LET:
		return p.parseFuncDecl(docstring, public, start)
	case lexer.TYPE:
		if len(docstring) > 0 {
			p.addError("docstring not allowed before type declaration")
			return nil
		}
		return p.parseTypeDecl(public, start)
	case lexer.ENUM:
		if len(docstring) > 0 {
			p.addError("docstring not allowed before enum declaration")
			return nil
		}
		return p.parseEnumDecl(public, start)
	case lexer.REIFY:
		return p.parseReifyDecl(docstring, public, start)
	default:
		p.addError(fmt.Sprintf("expected let, type, enum or reify, got %s", p.curToken().Type))
		return nil
	}
}

// parseFuncDecl parses: let name(p1: T1, ...) -> T = body;
// The cursor is on the `let` token.
func (p *Parser) parseFuncDecl(docstring []ast.DocstringLine, public bool, start lexer.Token) ast.Statement {
	if !p.expectPeek(lexer.IDENT) {
		return nil
	}
	name := p.curIdent()

	if !p.expectPeek(lexer.LPAREN) {
		return nil
	}

	var params []*ast.Param
	for !p.peekTokenIs(lexer.RPAREN) {
		if !p.expectPeek(lexer.IDENT) {
			return nil
		}
		paramName := p.curIdent()
		if !p.expectPeek(lexer.COLON) {
			return nil
		}
		p.nextToken()
		typ := p.parseTypeExpr()
		if typ == nil {
			return nil
		}
		params = append(params, &ast.Param{Name: paramName, Type: typ})
		if p.peekTokenIs(lexer.COMMA) {
			p.nextToken()
		}
	}
	p.nextToken() // consume RPAREN

	if !p.expectPeek(lexer.ARROW) {
		return nil
	}
	p.nextToken()
	ret := p.parseTypeExpr()
	if ret == nil {
		return nil
	}

	if !p.expectPeek(lexer.ASSIGN) {
		return nil
	}
	p.nextToken()
	body := p.parseExpression(LOWEST)
	if body == nil {
		return nil
	}

	if !p.expectPeek(lexer.SEMICOLON) {
		return nil
	}

	return &ast.FuncDecl{
		Docstring: docstring,
		Public:    public,
		Name:      name,
		Params:    params,
		Return:    ret,
		Body:      body,
		Sp:        start.Span().Merge(p.curToken().Span()),
	}
}

// parseTypeDecl parses: type Name = T;
func (p *Parser) parseTypeDecl(public bool, start lexer.Token) ast.Statement {
	if !p.expectPeek(lexer.IDENT) {
		return nil
	}
	name := p.curIdent()
	if !p.expectPeek(lexer.ASSIGN) {
		return nil
	}
	p.nextToken()
	underlying := p.parseTypeExpr()
	if underlying == nil {
		return nil
	}
	if !p.expectPeek(lexer.SEMICOLON) {
		return nil
	}
	return &ast.TypeDecl{
		Public:     public,
		Name:       name,
		Underlying: underlying,
		Sp:         start.Span().Merge(p.curToken().Span()),
	}
}

// parseEnumDecl parses: enum Name = V1(...) | V2 { ... } | V3;
func (p *Parser) parseEnumDecl(public bool, start lexer.Token) ast.Statement {
	if !p.expectPeek(lexer.IDENT) {
		return nil
	}
	name := p.curIdent()
	if !p.expectPeek(lexer.ASSIGN) {
		return nil
	}

	var variants []*ast.EnumVariant
	for {
		if !p.expectPeek(lexer.IDENT) {
			return nil
		}
		variant := p.parseEnumVariant()
		if variant == nil {
			return nil
		}
		variants = append(variants, variant)
		if !p.peekTokenIs(lexer.PIPE) {
			break
		}
		p.nextToken()
	}

	if !p.expectPeek(lexer.SEMICOLON) {
		return nil
	}
	return &ast.EnumDecl{
		Public:   public,
		Name:     name,
		Variants: variants,
		Sp:       start.Span().Merge(p.curToken().Span()),
	}
}

// parseEnumVariant parses one variant; the cursor is on the variant name.
func (p *Parser) parseEnumVariant() *ast.EnumVariant {
	name := p.curIdent()
	startSpan := p.curToken().Span()

	switch {
	case p.peekTokenIs(lexer.LPAREN):
		p.nextToken()
		var elems []ast.TypeExpr
		for !p.peekTokenIs(lexer.RPAREN) {
			p.nextToken()
			typ := p.parseTypeExpr()
			if typ == nil {
				return nil
			}
			elems = append(elems, typ)
			if p.peekTokenIs(lexer.COMMA) {
				p.nextToken()
			}
		}
		p.nextToken() // consume RPAREN
		return &ast.EnumVariant{
			Name:    name,
			Payload: &ast.EnumVariantType{Tuple: elems},
			Sp:      startSpan.Merge(p.curToken().Span()),
		}
	case p.peekTokenIs(lexer.LBRACE):
		p.nextToken()
		fields := p.parseStructFieldDefs()
		if fields == nil {
			return nil
		}
		return &ast.EnumVariant{
			Name:    name,
			Payload: &ast.EnumVariantType{Struct: fields},
			Sp:      startSpan.Merge(p.curToken().Span()),
		}
	default:
		return &ast.EnumVariant{Name: name, Sp: startSpan}
	}
}

// parseReifyDecl parses: reify func as $Name; or reify func as $[Name];
func (p *Parser) parseReifyDecl(docstring []ast.DocstringLine, public bool, start lexer.Token) ast.Statement {
	if !p.expectPeek(lexer.IDENT) {
		return nil
	}
	path := p.parseNamespacePath()

	if !p.expectPeek(lexer.AS) {
		return nil
	}
	if !p.expectPeek(lexer.DOLLAR) {
		return nil
	}

	varList := false
	if p.peekTokenIs(lexer.LBRACK) {
		varList = true
		p.nextToken()
	}
	if !p.expectPeek(lexer.IDENT) {
		return nil
	}
	name := p.curIdent()
	if varList {
		if !p.expectPeek(lexer.RBRACK) {
			return nil
		}
	}
	if !p.expectPeek(lexer.SEMICOLON) {
		return nil
	}

	return &ast.ReifyDecl{
		Docstring:      docstring,
		Public:         public,
		ConstraintPath: path,
		VarList:        varList,
		Name:           name,
		Sp:             start.Span().Merge(p.curToken().Span()),
	}
}

// parseImportDecl parses: import "module" as alias; / import "module" as *;
func (p *Parser) parseImportDecl() ast.Statement {
	start := p.curToken()
	if !p.expectPeek(lexer.STRING) {
		return nil
	}
	modulePath := p.curToken().Literal
	pathSpan := p.curToken().Span()
	if !p.expectPeek(lexer.AS) {
		return nil
	}

	var alias *ast.Ident
	if p.peekTokenIs(lexer.ASTERISK) {
		p.nextToken()
	} else if p.expectPeek(lexer.IDENT) {
		alias = p.curIdent()
	} else {
		return nil
	}

	if !p.expectPeek(lexer.SEMICOLON) {
		return nil
	}
	return &ast.ImportDecl{
		ModulePath: modulePath,
		PathSpan:   pathSpan,
		Alias:      alias,
		Sp:         start.Span().Merge(p.curToken().Span()),
	}
}

// curIdent wraps the current IDENT token as an ast.Ident.
func (p *Parser) curIdent() *ast.Ident {
	return &ast.Ident{Name: p.curToken().Literal, Sp: p.curToken().Span()}
}

// parseNamespacePath parses ident (:: ident)*; the cursor is on the first
// segment and ends on the last one.
func (p *Parser) parseNamespacePath() *ast.NamespacePath {
	path := &ast.NamespacePath{Segments: []*ast.Ident{p.curIdent()}}
	start := p.curToken().Span()
	for p.peekTokenIs(lexer.DBL_COLON) && p.peekAhead(2).Type == lexer.IDENT {
		p.nextToken()
		p.nextToken()
		path.Segments = append(path.Segments, p.curIdent())
	}
	path.Sp = start.Merge(p.curToken().Span())
	return path
}

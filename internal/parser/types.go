package parser

import (
	"fmt"

	"github.com/christophcharles/colloml/internal/lexer"
	"github.com/christophcharles/colloml/pkg/ast"
)

// parseTypeExpr parses a type name. The cursor is on the type's first
// token and ends on its last token (including trailing `?` markers).
func (p *Parser) parseTypeExpr() ast.TypeExpr {
	start := p.curToken().Span()

	switch p.curToken().Type {
	case lexer.IDENT:
		path := p.parseNamespacePath()
		maybe := p.parseMaybeSuffix()
		return &ast.PathType{
			Path:       path,
			MaybeCount: maybe,
			Sp:         start.Merge(p.curToken().Span()),
		}
	case lexer.LBRACK:
		if p.peekTokenIs(lexer.RBRACK) {
			p.nextToken()
			return &ast.EmptyListType{Sp: start.Merge(p.curToken().Span())}
		}
		p.nextToken()
		elem := p.parseTypeExpr()
		if elem == nil {
			return nil
		}
		if !p.expectPeek(lexer.RBRACK) {
			return nil
		}
		maybe := p.parseMaybeSuffix()
		return &ast.ListType{
			Elem:       elem,
			MaybeCount: maybe,
			Sp:         start.Merge(p.curToken().Span()),
		}
	case lexer.LPAREN:
		var elems []ast.TypeExpr
		for !p.peekTokenIs(lexer.RPAREN) {
			p.nextToken()
			elem := p.parseTypeExpr()
			if elem == nil {
				return nil
			}
			elems = append(elems, elem)
			if p.peekTokenIs(lexer.COMMA) {
				p.nextToken()
			}
		}
		p.nextToken() // consume RPAREN
		if len(elems) < 2 {
			p.addError("tuple type needs at least two elements")
			return nil
		}
		maybe := p.parseMaybeSuffix()
		return &ast.TupleType{
			Elems:      elems,
			MaybeCount: maybe,
			Sp:         start.Merge(p.curToken().Span()),
		}
	case lexer.LBRACE:
		fields := p.parseStructFieldDefs()
		if fields == nil {
			return nil
		}
		maybe := p.parseMaybeSuffix()
		return &ast.StructType{
			Fields:     fields,
			MaybeCount: maybe,
			Sp:         start.Merge(p.curToken().Span()),
		}
	default:
		p.addError(fmt.Sprintf("expected type, got %s", p.curToken().Type))
		return nil
	}
}

// parseMaybeSuffix consumes trailing `?` markers and returns their count.
func (p *Parser) parseMaybeSuffix() int {
	count := 0
	for p.peekTokenIs(lexer.QUESTION) {
		p.nextToken()
		count++
	}
	return count
}

// parseStructFieldDefs parses { f1: T1, f2: T2 }. The cursor is on the
// opening brace and ends on the closing one.
func (p *Parser) parseStructFieldDefs() []*ast.StructFieldDef {
	var fields []*ast.StructFieldDef
	for !p.peekTokenIs(lexer.RBRACE) {
		if !p.expectPeek(lexer.IDENT) {
			return nil
		}
		name := p.curIdent()
		if !p.expectPeek(lexer.COLON) {
			return nil
		}
		p.nextToken()
		typ := p.parseTypeExpr()
		if typ == nil {
			return nil
		}
		fields = append(fields, &ast.StructFieldDef{Name: name, Type: typ})
		if p.peekTokenIs(lexer.COMMA) {
			p.nextToken()
		}
	}
	p.nextToken() // consume RBRACE
	if len(fields) == 0 {
		p.addError("struct type needs at least one field")
		return nil
	}
	return fields
}

package lexer

import (
	"testing"
)

// TestNextToken_Declaration tests tokenizing a full function declaration.
func TestNextToken_Declaration(t *testing.T) {
	input := `pub let exactly_one() -> Constraint = sum i in [0..10] { $V(i) } === 1;`

	expected := []struct {
		typ     TokenType
		literal string
	}{
		{PUB, "pub"},
		{LET, "let"},
		{IDENT, "exactly_one"},
		{LPAREN, "("},
		{RPAREN, ")"},
		{ARROW, "->"},
		{IDENT, "Constraint"},
		{ASSIGN, "="},
		{SUM, "sum"},
		{IDENT, "i"},
		{IN, "in"},
		{LBRACK, "["},
		{INT, "0"},
		{DOTDOT, ".."},
		{INT, "10"},
		{RBRACK, "]"},
		{LBRACE, "{"},
		{DOLLAR, "$"},
		{IDENT, "V"},
		{LPAREN, "("},
		{IDENT, "i"},
		{RPAREN, ")"},
		{RBRACE, "}"},
		{CONSTR_EQ, "==="},
		{INT, "1"},
		{SEMICOLON, ";"},
		{EOF, ""},
	}

	l := New(input)
	for i, exp := range expected {
		tok := l.NextToken()
		if tok.Type != exp.typ {
			t.Fatalf("token %d: type = %s, want %s", i, tok.Type, exp.typ)
		}
		if tok.Literal != exp.literal {
			t.Fatalf("token %d: literal = %q, want %q", i, tok.Literal, exp.literal)
		}
	}
	if len(l.Errors()) != 0 {
		t.Fatalf("unexpected lexer errors: %v", l.Errors())
	}
}

// TestNextToken_Operators tests the three-character constraint operators
// against their shorter cousins.
func TestNextToken_Operators(t *testing.T) {
	tests := []struct {
		input string
		types []TokenType
	}{
		{"=== == = =>", []TokenType{CONSTR_EQ, EQ, ASSIGN, FAT_ARROW}},
		{"<== <= <", []TokenType{CONSTR_LE, LESS_EQ, LESS}},
		{">== >= >", []TokenType{CONSTR_GE, GREATER_EQ, GREATER}},
		{"! !=", []TokenType{BANG, NOT_EQ}},
		{"? ??", []TokenType{QUESTION, QQUESTION}},
		{"| ||", []TokenType{PIPE, PIPE_PIPE}},
		{"&&", []TokenType{AMP_AMP}},
		{"- ->", []TokenType{MINUS, ARROW}},
		{". .. ::", []TokenType{DOT, DOTDOT, DBL_COLON}},
		{"// %", []TokenType{SLASH_SLASH, PERCENT}},
		{"$ @", []TokenType{DOLLAR, AT}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			l := New(tt.input)
			for i, want := range tt.types {
				tok := l.NextToken()
				if tok.Type != want {
					t.Fatalf("token %d of %q: type = %s, want %s", i, tt.input, tok.Type, want)
				}
			}
			if tok := l.NextToken(); tok.Type != EOF {
				t.Fatalf("expected EOF, got %s", tok.Type)
			}
		})
	}
}

// TestNextToken_Keywords checks keyword recognition including panic!.
func TestNextToken_Keywords(t *testing.T) {
	input := "forall sum fold accum if else match for where in true false none and or not panic! reify import as"
	want := []TokenType{
		FORALL, SUM, FOLD, ACCUM, IF, ELSE, MATCH, FOR, WHERE, IN,
		TRUE, FALSE, NONE_KW, AND, OR, NOT, PANIC, REIFY, IMPORT, AS,
	}

	l := New(input)
	for i, w := range want {
		tok := l.NextToken()
		if tok.Type != w {
			t.Fatalf("token %d: type = %s, want %s", i, tok.Type, w)
		}
	}
}

// TestNextToken_PanicIsNotAnIdent checks that bare "panic" without the
// bang stays an identifier.
func TestNextToken_PanicIsNotAnIdent(t *testing.T) {
	l := New("panic")
	tok := l.NextToken()
	if tok.Type != IDENT || tok.Literal != "panic" {
		t.Fatalf("got %s %q, want IDENT \"panic\"", tok.Type, tok.Literal)
	}
}

func TestNextToken_StringLiterals(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{`"hello"`, "hello"},
		{`"a\nb"`, "a\nb"},
		{`"tab\there"`, "tab\there"},
		{`"quote\"inside"`, `quote"inside`},
		{`"back\\slash"`, `back\slash`},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			l := New(tt.input)
			tok := l.NextToken()
			if tok.Type != STRING {
				t.Fatalf("type = %s, want STRING", tok.Type)
			}
			if tok.Literal != tt.want {
				t.Fatalf("literal = %q, want %q", tok.Literal, tt.want)
			}
		})
	}
}

func TestNextToken_UnterminatedString(t *testing.T) {
	l := New("\"oops\n")
	tok := l.NextToken()
	if tok.Type != ILLEGAL {
		t.Fatalf("type = %s, want ILLEGAL", tok.Type)
	}
	if len(l.Errors()) == 0 {
		t.Fatal("expected a lexer error")
	}
}

// TestNextToken_Docstring checks /// lines against the // division
// operator.
func TestNextToken_Docstring(t *testing.T) {
	input := "/// Ensures String(x) is scheduled\nlet f() -> Int = 4 // 2;"
	l := New(input)

	tok := l.NextToken()
	if tok.Type != DOCLINE {
		t.Fatalf("type = %s, want DOCLINE", tok.Type)
	}
	if tok.Literal != "Ensures String(x) is scheduled" {
		t.Fatalf("literal = %q", tok.Literal)
	}

	want := []TokenType{LET, IDENT, LPAREN, RPAREN, ARROW, IDENT, ASSIGN, INT, SLASH_SLASH, INT, SEMICOLON, EOF}
	for i, w := range want {
		tok := l.NextToken()
		if tok.Type != w {
			t.Fatalf("token %d: type = %s, want %s", i, tok.Type, w)
		}
	}
}

// TestNextToken_Positions checks line/column/offset bookkeeping.
func TestNextToken_Positions(t *testing.T) {
	input := "let x\nlet y"
	l := New(input)

	tok := l.NextToken() // let
	if tok.Pos.Line != 1 || tok.Pos.Column != 1 || tok.Pos.Offset != 0 {
		t.Fatalf("first token pos = %+v", tok.Pos)
	}
	tok = l.NextToken() // x
	if tok.Pos.Line != 1 || tok.Pos.Column != 5 {
		t.Fatalf("second token pos = %+v", tok.Pos)
	}
	tok = l.NextToken() // let (line 2)
	if tok.Pos.Line != 2 || tok.Pos.Column != 1 || tok.Pos.Offset != 6 {
		t.Fatalf("third token pos = %+v", tok.Pos)
	}
	tok = l.NextToken() // y
	if tok.Span() != (Span{Start: 10, End: 11}) {
		t.Fatalf("fourth token span = %v", tok.Span())
	}
}

func TestNextToken_UnicodeColumns(t *testing.T) {
	l := New("Δ x")
	tok := l.NextToken()
	if tok.Type != IDENT || tok.Literal != "Δ" {
		t.Fatalf("got %s %q", tok.Type, tok.Literal)
	}
	tok = l.NextToken()
	if tok.Pos.Column != 3 {
		t.Fatalf("x column = %d, want 3 (runes, not bytes)", tok.Pos.Column)
	}
}

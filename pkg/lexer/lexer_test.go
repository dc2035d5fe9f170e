package lexer

import "testing"

func TestNextTokenPunctuation(t *testing.T) {
	input := `| a b | a := 3 + 4. ^a`

	tests := []struct {
		typ     TokenType
		literal string
	}{
		{TokenPipe, "|"},
		{TokenIdentifier, "a"},
		{TokenIdentifier, "b"},
		{TokenPipe, "|"},
		{TokenIdentifier, "a"},
		{TokenAssign, ":="},
		{TokenInteger, "3"},
		{TokenBinarySelector, "+"},
		{TokenInteger, "4"},
		{TokenPeriod, "."},
		{TokenCaret, "^"},
		{TokenIdentifier, "a"},
		{TokenEOF, ""},
	}

	l := New(input)
	for i, tt := range tests {
		tok := l.NextToken()
		if tok.Type != tt.typ {
			t.Fatalf("test[%d] - wrong type. expected=%s, got=%s (%q)", i, tt.typ, tok.Type, tok.Literal)
		}
		if tok.Literal != tt.literal {
			t.Fatalf("test[%d] - wrong literal. expected=%q, got=%q", i, tt.literal, tok.Literal)
		}
	}
}

func TestNextTokenLiterals(t *testing.T) {
	input := `'hello' $x #foo #at:put: #+ #(1 2 'three')`

	tests := []struct {
		typ     TokenType
		literal string
	}{
		{TokenString, "hello"},
		{TokenCharacter, "x"},
		{TokenSymbol, "foo"},
		{TokenSymbol, "at:put:"},
		{TokenSymbol, "+"},
		{TokenHashLParen, "#("},
		{TokenInteger, "1"},
		{TokenInteger, "2"},
		{TokenString, "three"},
		{TokenRParen, ")"},
		{TokenEOF, ""},
	}

	l := New(input)
	for i, tt := range tests {
		tok := l.NextToken()
		if tok.Type != tt.typ {
			t.Fatalf("test[%d] - wrong type. expected=%s, got=%s (%q)", i, tt.typ, tok.Type, tok.Literal)
		}
		if tok.Literal != tt.literal {
			t.Fatalf("test[%d] - wrong literal. expected=%q, got=%q", i, tt.literal, tok.Literal)
		}
	}
}

func TestNegativeNumberVersusBinarySelector(t *testing.T) {
	l := New("3 - 4")
	if tok := l.NextToken(); tok.Type != TokenInteger || tok.Literal != "3" {
		t.Fatalf("expected integer 3, got %v %q", tok.Type, tok.Literal)
	}
	if tok := l.NextToken(); tok.Type != TokenBinarySelector || tok.Literal != "-" {
		t.Fatalf("expected binary selector '-', got %v %q", tok.Type, tok.Literal)
	}
	if tok := l.NextToken(); tok.Type != TokenInteger || tok.Literal != "4" {
		t.Fatalf("expected integer 4, got %v %q", tok.Type, tok.Literal)
	}

	l2 := New("x := -4")
	l2.NextToken() // x
	l2.NextToken() // :=
	if tok := l2.NextToken(); tok.Type != TokenInteger || tok.Literal != "-4" {
		t.Fatalf("expected negative literal -4, got %v %q", tok.Type, tok.Literal)
	}
}

func TestSkipsComments(t *testing.T) {
	l := New(`"a comment" 42 "another" + 1`)
	if tok := l.NextToken(); tok.Type != TokenInteger || tok.Literal != "42" {
		t.Fatalf("expected 42, got %v %q", tok.Type, tok.Literal)
	}
	if tok := l.NextToken(); tok.Type != TokenBinarySelector {
		t.Fatalf("expected binary selector, got %v %q", tok.Type, tok.Literal)
	}
}

func TestCascadeSemicolon(t *testing.T) {
	l := New("a foo; bar")
	want := []TokenType{TokenIdentifier, TokenIdentifier, TokenSemicolon, TokenIdentifier, TokenEOF}
	for i, w := range want {
		tok := l.NextToken()
		if tok.Type != w {
			t.Fatalf("test[%d]: expected %s, got %s", i, w, tok.Type)
		}
	}
}

func TestIdentifierTracksLine(t *testing.T) {
	l := New("a\nb")
	first := l.NextToken()
	if first.Line != 1 {
		t.Fatalf("expected line 1, got %d", first.Line)
	}
	second := l.NextToken()
	if second.Line != 2 {
		t.Fatalf("expected line 2, got %d", second.Line)
	}
}

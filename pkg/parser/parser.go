// Package parser implements a recursive descent parser that turns a
// token stream from pkg/lexer into an ast.Method, resolving every
// variable reference it encounters against a resolver.Scope as it
// goes (see pkg/resolver for why resolution happens during parsing
// rather than as a separate pass).
//
// Message precedence follows ordinary Smalltalk rules, tightest to
// loosest: unary sends, then binary sends, then keyword sends. Each
// precedence level is its own parse method, and each calls down into
// the next-tighter level for its operands — the usual recursive
// descent encoding of a precedence climb.
package parser

import (
	"fmt"

	"github.com/minitalklang/minitalk/pkg/ast"
	"github.com/minitalklang/minitalk/pkg/heap"
	"github.com/minitalklang/minitalk/pkg/lexer"
	"github.com/minitalklang/minitalk/pkg/resolver"
)

// Parser consumes a token stream and builds an ast.Method. A Parser is
// single-use: construct one per method being compiled.
type Parser struct {
	l    *lexer.Lexer
	cur  lexer.Token
	peek lexer.Token

	scope *resolver.Scope
	errs  []error
}

// New creates a parser over source, resolving variable references
// against a fresh scope owned by class (nil for a class-less
// compilation).
func New(source string, class *heap.Class) *Parser {
	p := &Parser{
		l:     lexer.New(source),
		scope: resolver.NewScope(class),
	}
	p.next()
	p.next()
	return p
}

func (p *Parser) next() {
	p.cur = p.peek
	p.peek = p.l.NextToken()
}

func (p *Parser) errorf(format string, args ...any) {
	p.errs = append(p.errs, &parseError{
		msg:    fmt.Sprintf(format, args...),
		line:   p.cur.Line,
		column: p.cur.Column,
	})
}

type parseError struct {
	msg    string
	line   int
	column int
}

func (e *parseError) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.line, e.column, e.msg)
}

// Errors returns every parse error accumulated so far.
func (p *Parser) Errors() []error { return p.errs }

// ParseMethod parses a full method definition: a message pattern,
// optional `| temp temp |` declarations, and a statement sequence.
// primitive is the VM primitive number to attach, or -1 for none —
// MiniTalk has no `<primitive: n>` pragma syntax of its own, so the
// caller (the driver binding source text to a class) supplies it out
// of band.
func (p *Parser) ParseMethod(primitive int) *ast.Method {
	selector, args := p.parseMessagePattern()
	for _, a := range args {
		p.scope.DeclareArgument(a)
	}

	if p.cur.Type == lexer.TokenPipe {
		p.parseTemporaryDecls(true)
	}

	stmts := p.parseStatements(lexer.TokenEOF)

	return &ast.Method{
		Selector:          &ast.Symbol{Name: selector},
		NumberArguments:   len(args),
		NumberTemporaries: p.scope.MethodTempCount(),
		Primitive:         primitive,
		Statements:        stmts,
	}
}

// parseMessagePattern parses the method header: a unary, binary, or
// keyword selector pattern, returning the assembled selector string
// and the argument names it introduces, in declaration order.
func (p *Parser) parseMessagePattern() (string, []string) {
	switch p.cur.Type {
	case lexer.TokenIdentifier:
		if p.peek.Type == lexer.TokenColon {
			return p.parseKeywordPattern()
		}
		sel := p.cur.Literal
		p.next()
		return sel, nil
	case lexer.TokenBinarySelector:
		sel := p.cur.Literal
		p.next()
		arg := p.expectIdentifier()
		return sel, []string{arg}
	default:
		p.errorf("expected a message pattern, got %s", p.cur.Type)
		return "", nil
	}
}

func (p *Parser) parseKeywordPattern() (string, []string) {
	var selector string
	var args []string
	for p.cur.Type == lexer.TokenIdentifier && p.peek.Type == lexer.TokenColon {
		selector += p.cur.Literal + ":"
		p.next() // keyword part
		p.next() // ':'
		args = append(args, p.expectIdentifier())
	}
	return selector, args
}

func (p *Parser) expectIdentifier() string {
	if p.cur.Type != lexer.TokenIdentifier {
		p.errorf("expected identifier, got %s", p.cur.Type)
		return ""
	}
	name := p.cur.Literal
	p.next()
	return name
}

// parseTemporaryDecls parses a `| a b c |` declaration list, declaring
// each name in the current scope. atMethodTop is threaded through to
// the scope so the method's own NumberTemporaries count excludes
// nested blocks' temporaries.
func (p *Parser) parseTemporaryDecls(atMethodTop bool) {
	p.next() // consume opening '|'
	for p.cur.Type == lexer.TokenIdentifier {
		p.scope.DeclareTemporary(p.cur.Literal, atMethodTop)
		p.next()
	}
	if p.cur.Type != lexer.TokenPipe {
		p.errorf("expected closing '|' in temporary declaration, got %s", p.cur.Type)
		return
	}
	p.next()
}

// parseStatements parses a period-separated statement sequence until
// it hits until (TokenEOF for a method body, TokenRBracket for a
// block body).
func (p *Parser) parseStatements(until lexer.TokenType) []ast.Node {
	var stmts []ast.Node
	for p.cur.Type != until && p.cur.Type != lexer.TokenEOF {
		stmts = append(stmts, p.parseStatement())
		if p.cur.Type == lexer.TokenPeriod {
			p.next()
		} else {
			break
		}
	}
	return stmts
}

func (p *Parser) parseStatement() ast.Node {
	if p.cur.Type == lexer.TokenCaret {
		p.next()
		return &ast.RetExp{Expression: p.parseExpression()}
	}
	return p.parseExpression()
}

// parseExpression parses one assignment-or-lower expression:
// `identifier := expression`, chained recursively so `a := b :=
// 5` collects every target before coding the shared right-hand side.
func (p *Parser) parseExpression() ast.Node {
	if p.cur.Type == lexer.TokenIdentifier && p.peek.Type == lexer.TokenAssign {
		name := p.cur.Literal
		p.next() // identifier
		p.next() // ':='
		target := p.scope.Resolve(name)
		rest := p.parseExpression()
		if assign, ok := rest.(*ast.Assign); ok {
			return &ast.Assign{Variables: append([]*ast.Variable{target}, assign.Variables...), Expression: assign.Expression}
		}
		return &ast.Assign{Variables: []*ast.Variable{target}, Expression: rest}
	}
	return p.parseCascade()
}

// parseCascade parses a keyword-message-or-lower expression, folding
// it into a Cascade if followed by one or more `;`-separated
// additional sends against the same receiver.
func (p *Parser) parseCascade() ast.Node {
	expr := p.parseKeywordMessage()
	if p.cur.Type != lexer.TokenSemicolon {
		return expr
	}

	msg, receiver := splitOffMessage(expr)
	if msg == nil {
		p.errorf("cascade receiver is not a message send")
		return expr
	}
	messages := []*ast.Message{msg}
	for p.cur.Type == lexer.TokenSemicolon {
		p.next()
		messages = append(messages, p.parseCascadedMessage())
	}
	return &ast.Cascade{Receiver: receiver, Messages: messages}
}

// splitOffMessage detaches a top-level Message's receiver so the
// cascade can hold the receiver once and the message with a nil
// Receiver (matching every other inner cascade send).
func splitOffMessage(node ast.Node) (*ast.Message, ast.Node) {
	msg, ok := node.(*ast.Message)
	if !ok {
		return nil, nil
	}
	receiver := msg.Receiver
	return &ast.Message{Selector: msg.Selector, Arguments: msg.Arguments, SuperFlag: msg.SuperFlag}, receiver
}

// parseCascadedMessage parses one `;`-introduced cascade part: a
// unary, binary, or keyword selector applied with no receiver of its
// own (the cascade's shared receiver is already on the stack).
func (p *Parser) parseCascadedMessage() *ast.Message {
	switch {
	case p.cur.Type == lexer.TokenIdentifier && p.peek.Type == lexer.TokenColon:
		sel, args := p.parseKeywordParts()
		return &ast.Message{Selector: &ast.Symbol{Name: sel}, Arguments: args}
	case p.cur.Type == lexer.TokenBinarySelector:
		sel := p.cur.Literal
		p.next()
		arg := p.parseUnary()
		return &ast.Message{Selector: &ast.Symbol{Name: sel}, Arguments: []ast.Node{arg}}
	case p.cur.Type == lexer.TokenIdentifier:
		sel := p.cur.Literal
		p.next()
		return &ast.Message{Selector: &ast.Symbol{Name: sel}}
	default:
		p.errorf("expected a cascaded message, got %s", p.cur.Type)
		return &ast.Message{Selector: &ast.Symbol{}}
	}
}

func (p *Parser) parseKeywordParts() (string, []ast.Node) {
	var selector string
	var args []ast.Node
	for p.cur.Type == lexer.TokenIdentifier && p.peek.Type == lexer.TokenColon {
		selector += p.cur.Literal + ":"
		p.next()
		p.next()
		args = append(args, p.parseBinaryMessage())
	}
	return selector, args
}

// parseKeywordMessage parses a keyword send, e.g. `dict at: k put: v`,
// falling through to a bare binary message when no keyword part
// follows.
func (p *Parser) parseKeywordMessage() ast.Node {
	receiver := p.parseBinaryMessage()
	if p.cur.Type != lexer.TokenIdentifier || p.peek.Type != lexer.TokenColon {
		return receiver
	}
	superFlag := isSuperReceiver(receiver)
	sel, args := p.parseKeywordParts()
	return &ast.Message{Receiver: receiver, Selector: &ast.Symbol{Name: sel}, Arguments: args, SuperFlag: superFlag}
}

// parseBinaryMessage parses a left-associative chain of binary sends,
// e.g. `3 + 4 * 2`, falling through to a bare unary message when no
// binary selector follows.
func (p *Parser) parseBinaryMessage() ast.Node {
	receiver := p.parseUnary()
	for p.cur.Type == lexer.TokenBinarySelector {
		superFlag := isSuperReceiver(receiver)
		sel := p.cur.Literal
		p.next()
		arg := p.parseUnary()
		receiver = &ast.Message{Receiver: receiver, Selector: &ast.Symbol{Name: sel}, Arguments: []ast.Node{arg}, SuperFlag: superFlag}
	}
	return receiver
}

// parseUnary parses a left-associative chain of unary sends, e.g.
// `collection reverse asArray`, falling through to a primary
// expression when no unary selector follows.
func (p *Parser) parseUnary() ast.Node {
	receiver := p.parsePrimary()
	for p.cur.Type == lexer.TokenIdentifier && p.peek.Type != lexer.TokenColon {
		superFlag := isSuperReceiver(receiver)
		sel := p.cur.Literal
		p.next()
		receiver = &ast.Message{Receiver: receiver, Selector: &ast.Symbol{Name: sel}, SuperFlag: superFlag}
	}
	return receiver
}

// isSuperReceiver reports whether node is a bare reference to super,
// in which case the message built on top of it is a super send.
func isSuperReceiver(node ast.Node) bool {
	v, ok := node.(*ast.Variable)
	return ok && v.Record.Kind == ast.KindSuper
}

// parsePrimary parses a literal, variable reference, parenthesized
// expression, or block.
func (p *Parser) parsePrimary() ast.Node {
	switch p.cur.Type {
	case lexer.TokenIdentifier:
		name := p.cur.Literal
		p.next()
		return p.scope.Resolve(name)
	case lexer.TokenInteger:
		return p.parseInteger()
	case lexer.TokenFloat:
		return p.parseFloat()
	case lexer.TokenString:
		s := &ast.String{Value: p.cur.Literal}
		p.next()
		return s
	case lexer.TokenCharacter:
		c := &ast.CharCon{Value: rune(p.cur.Literal[0])}
		p.next()
		return c
	case lexer.TokenSymbol:
		s := &ast.Symbol{Name: p.cur.Literal}
		p.next()
		return s
	case lexer.TokenHashLParen:
		return p.parseArrayLiteral()
	case lexer.TokenLParen:
		p.next()
		expr := p.parseExpression()
		if p.cur.Type != lexer.TokenRParen {
			p.errorf("expected ')', got %s", p.cur.Type)
		} else {
			p.next()
		}
		return expr
	case lexer.TokenLBracket:
		return p.parseBlock()
	default:
		p.errorf("unexpected token %s in expression", p.cur.Type)
		tok := p.cur
		p.next()
		return &ast.String{Value: tok.Literal}
	}
}

func (p *Parser) parseInteger() ast.Node {
	var n int64
	fmt.Sscanf(p.cur.Literal, "%d", &n)
	p.next()
	return &ast.IntNum{Value: n}
}

func (p *Parser) parseFloat() ast.Node {
	var f float64
	fmt.Sscanf(p.cur.Literal, "%g", &f)
	p.next()
	return &ast.FloNum{Value: f}
}

// parseArrayLiteral parses a literal array, #(1 2 'three' #four (5 6)).
// Every element is itself a literal; a bare identifier in literal
// position denotes a symbol, not a variable reference, and a nested
// `(...)` or `#(...)` is a nested array literal.
func (p *Parser) parseArrayLiteral() ast.Node {
	p.next() // consume '#('
	var elements []ast.Node
	for p.cur.Type != lexer.TokenRParen && p.cur.Type != lexer.TokenEOF {
		elements = append(elements, p.parseLiteralElement())
	}
	if p.cur.Type == lexer.TokenRParen {
		p.next()
	} else {
		p.errorf("expected ')' to close array literal, got %s", p.cur.Type)
	}
	return &ast.Array{Elements: elements}
}

func (p *Parser) parseLiteralElement() ast.Node {
	switch p.cur.Type {
	case lexer.TokenIdentifier:
		name := p.cur.Literal
		p.next()
		return &ast.Symbol{Name: name}
	case lexer.TokenInteger:
		return p.parseInteger()
	case lexer.TokenFloat:
		return p.parseFloat()
	case lexer.TokenString:
		s := &ast.String{Value: p.cur.Literal}
		p.next()
		return s
	case lexer.TokenCharacter:
		c := &ast.CharCon{Value: rune(p.cur.Literal[0])}
		p.next()
		return c
	case lexer.TokenSymbol:
		s := &ast.Symbol{Name: p.cur.Literal}
		p.next()
		return s
	case lexer.TokenBinarySelector:
		name := p.cur.Literal
		p.next()
		return &ast.Symbol{Name: name}
	case lexer.TokenHashLParen:
		return p.parseArrayLiteral()
	case lexer.TokenLParen:
		p.next()
		var elements []ast.Node
		for p.cur.Type != lexer.TokenRParen && p.cur.Type != lexer.TokenEOF {
			elements = append(elements, p.parseLiteralElement())
		}
		if p.cur.Type == lexer.TokenRParen {
			p.next()
		}
		return &ast.Array{Elements: elements}
	default:
		p.errorf("unexpected token %s in array literal", p.cur.Type)
		tok := p.cur
		p.next()
		return &ast.String{Value: tok.Literal}
	}
}

// parseBlock parses a block literal: `[:a :b | | t | statements]`.
// Block arguments and temporaries share the method's flat frame (see
// pkg/resolver), so they're declared in the same Scope as everything
// else; the block's own AST node lists both, arguments first, in
// Variables — the order the compiler emits their initial stores in.
func (p *Parser) parseBlock() ast.Node {
	p.next() // consume '['

	var vars []*ast.Variable
	for p.cur.Type == lexer.TokenColon {
		p.next()
		name := p.expectIdentifier()
		vars = append(vars, p.scope.DeclareArgument(name))
	}
	if len(vars) > 0 {
		if p.cur.Type != lexer.TokenPipe {
			p.errorf("expected '|' after block argument list, got %s", p.cur.Type)
		} else {
			p.next()
		}
	}
	if p.cur.Type == lexer.TokenPipe {
		p.next() // consume opening '|'
		for p.cur.Type == lexer.TokenIdentifier {
			vars = append(vars, p.scope.DeclareTemporary(p.cur.Literal, false))
			p.next()
		}
		if p.cur.Type != lexer.TokenPipe {
			p.errorf("expected closing '|' in block temporary declaration, got %s", p.cur.Type)
		} else {
			p.next()
		}
	}

	stmts := p.parseStatements(lexer.TokenRBracket)
	if p.cur.Type == lexer.TokenRBracket {
		p.next()
	} else {
		p.errorf("expected ']' to close block, got %s", p.cur.Type)
	}

	return &ast.Block{
		NumberVariables: len(vars),
		Variables:       vars,
		Statements:      stmts,
	}
}

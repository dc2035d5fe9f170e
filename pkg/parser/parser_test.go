package parser

import (
	"testing"

	"github.com/minitalklang/minitalk/pkg/ast"
	"github.com/minitalklang/minitalk/pkg/heap"
)

func parseMethod(t *testing.T, src string, class *heap.Class) *ast.Method {
	t.Helper()
	p := New(src, class)
	m := p.ParseMethod(-1)
	if errs := p.Errors(); len(errs) != 0 {
		t.Fatalf("unexpected parse errors: %v", errs)
	}
	return m
}

func TestParseUnaryMethod(t *testing.T) {
	m := parseMethod(t, "isEmpty\n\t^self size = 0", nil)
	if m.Selector.Name != "isEmpty" {
		t.Fatalf("expected selector isEmpty, got %q", m.Selector.Name)
	}
	if m.NumberArguments != 0 {
		t.Fatalf("expected 0 arguments, got %d", m.NumberArguments)
	}
	if len(m.Statements) != 1 {
		t.Fatalf("expected 1 statement, got %d", len(m.Statements))
	}
	ret, ok := m.Statements[0].(*ast.RetExp)
	if !ok {
		t.Fatalf("expected RetExp, got %T", m.Statements[0])
	}
	msg, ok := ret.Expression.(*ast.Message)
	if !ok || msg.Selector.Name != "=" {
		t.Fatalf("expected '=' send, got %#v", ret.Expression)
	}
}

func TestParseKeywordMethodWithTemporaries(t *testing.T) {
	m := parseMethod(t, "at: key put: value\n| old |\nold := self at: key.\n^old", nil)
	if m.Selector.Name != "at:put:" {
		t.Fatalf("expected at:put:, got %q", m.Selector.Name)
	}
	if m.NumberArguments != 2 {
		t.Fatalf("expected 2 arguments, got %d", m.NumberArguments)
	}
	if m.NumberTemporaries != 1 {
		t.Fatalf("expected 1 temporary, got %d", m.NumberTemporaries)
	}
}

func TestParseBinaryMessagePrecedence(t *testing.T) {
	m := parseMethod(t, "test\n^3 + 4 * 2", nil)
	ret := m.Statements[0].(*ast.RetExp)
	outer, ok := ret.Expression.(*ast.Message)
	if !ok || outer.Selector.Name != "*" {
		t.Fatalf("expected outer '*' send, got %#v", ret.Expression)
	}
	inner, ok := outer.Receiver.(*ast.Message)
	if !ok || inner.Selector.Name != "+" {
		t.Fatalf("expected inner '+' send as receiver, got %#v", outer.Receiver)
	}
}

func TestParseUnaryTighterThanBinary(t *testing.T) {
	m := parseMethod(t, "test\n^3 factorial + 4", nil)
	ret := m.Statements[0].(*ast.RetExp)
	plus, ok := ret.Expression.(*ast.Message)
	if !ok || plus.Selector.Name != "+" {
		t.Fatalf("expected '+' send, got %#v", ret.Expression)
	}
	recv, ok := plus.Receiver.(*ast.Message)
	if !ok || recv.Selector.Name != "factorial" {
		t.Fatalf("expected 'factorial' unary send as receiver, got %#v", plus.Receiver)
	}
}

func TestParseCascade(t *testing.T) {
	m := parseMethod(t, "test\n^OrderedCollection new add: 1; add: 2; yourself", nil)
	ret := m.Statements[0].(*ast.RetExp)
	cascade, ok := ret.Expression.(*ast.Cascade)
	if !ok {
		t.Fatalf("expected Cascade, got %#v", ret.Expression)
	}
	if len(cascade.Messages) != 3 {
		t.Fatalf("expected 3 cascaded messages, got %d", len(cascade.Messages))
	}
	for _, msg := range cascade.Messages {
		if msg.Receiver != nil {
			t.Fatalf("cascaded message should have nil Receiver, got %#v", msg.Receiver)
		}
	}
	if cascade.Messages[0].Selector.Name != "add:" || cascade.Messages[2].Selector.Name != "yourself" {
		t.Fatalf("unexpected cascade selectors: %+v", cascade.Messages)
	}
}

func TestParseBlockWithArgsAndTemps(t *testing.T) {
	m := parseMethod(t, "test\n^[:x | | y | y := x + 1. y] value: 5", nil)
	ret := m.Statements[0].(*ast.RetExp)
	send, ok := ret.Expression.(*ast.Message)
	if !ok || send.Selector.Name != "value:" {
		t.Fatalf("expected value: send, got %#v", ret.Expression)
	}
	block, ok := send.Receiver.(*ast.Block)
	if !ok {
		t.Fatalf("expected Block receiver, got %#v", send.Receiver)
	}
	if block.NumberVariables != 2 {
		t.Fatalf("expected 2 block variables (1 arg + 1 temp), got %d", block.NumberVariables)
	}
}

func TestParseArrayLiteral(t *testing.T) {
	m := parseMethod(t, "test\n^#(1 2 'three' #four (5 6))", nil)
	ret := m.Statements[0].(*ast.RetExp)
	arr, ok := ret.Expression.(*ast.Array)
	if !ok {
		t.Fatalf("expected Array literal, got %#v", ret.Expression)
	}
	if len(arr.Elements) != 5 {
		t.Fatalf("expected 5 elements, got %d", len(arr.Elements))
	}
	if _, ok := arr.Elements[4].(*ast.Array); !ok {
		t.Fatalf("expected last element to be a nested array, got %#v", arr.Elements[4])
	}
}

func TestParseAssignChain(t *testing.T) {
	m := parseMethod(t, "test\n| a b |\na := b := 5.\n^a", nil)
	assign, ok := m.Statements[0].(*ast.Assign)
	if !ok {
		t.Fatalf("expected Assign, got %#v", m.Statements[0])
	}
	if len(assign.Variables) != 2 {
		t.Fatalf("expected 2 assign targets, got %d", len(assign.Variables))
	}
}

func TestParseInstanceVariableResolution(t *testing.T) {
	class := heap.NewClass("Point", nil, []string{"x", "y"})
	m := parseMethod(t, "x\n^x", class)
	ret := m.Statements[0].(*ast.RetExp)
	v, ok := ret.Expression.(*ast.Variable)
	if !ok || v.Record.Kind != ast.KindInstance || v.Record.Offset != 0 {
		t.Fatalf("expected instance variable x at offset 0, got %#v", ret.Expression)
	}
}

func TestParseSuperSend(t *testing.T) {
	m := parseMethod(t, "printOn: aStream\nsuper printOn: aStream", nil)
	msg, ok := m.Statements[0].(*ast.Message)
	if !ok || !msg.SuperFlag {
		t.Fatalf("expected a super send, got %#v", m.Statements[0])
	}
}

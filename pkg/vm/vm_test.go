package vm

import (
	"testing"

	"github.com/minitalklang/minitalk/pkg/compiler"
	"github.com/minitalklang/minitalk/pkg/heap"
	"github.com/minitalklang/minitalk/pkg/parser"
)

// compileAndInstall parses src as a method of class, compiles it and
// installs the result, returning the CompiledMethod's selector for
// convenience at the call site.
func compileAndInstall(t *testing.T, machine *heap.Machine, class *heap.Class, src string) string {
	t.Helper()
	p := parser.New(src, class)
	method := p.ParseMethod(-1)
	if errs := p.Errors(); len(errs) != 0 {
		t.Fatalf("unexpected parse errors for %q: %v", src, errs)
	}
	_, assoc, err := compiler.CodeMethod(machine, method, false)
	if err != nil {
		t.Fatalf("CodeMethod failed for %q: %v", src, err)
	}
	class.Install(assoc)
	return method.Selector.Name
}

func newTestVM() (*VM, *heap.Machine, []string) {
	var out []string
	m := heap.NewMachine()
	v := New(m, func(s string) { out = append(out, s) })
	return v, m, out
}

func TestSendUnaryMethodReturnsSelf(t *testing.T) {
	v, m, _ := newTestVM()
	class := heap.NewClass("Point", nil, nil)
	compileAndInstall(t, m, class, "yourself\n^self")

	recv := m.NewInstance(class)
	result, err := v.Send(recv, "yourself", nil)
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if result != recv {
		t.Fatalf("expected yourself to return the receiver, got %v", result)
	}
}

func TestSendBinaryArithmeticPrimitive(t *testing.T) {
	v, m, _ := newTestVM()
	result, err := v.Send(m.NewSmallInteger(7), "+", []heap.ObjPtr{m.NewSmallInteger(5)})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if result.Kind != heap.KindSmallInteger || result.Int != 12 {
		t.Fatalf("expected 12, got %+v", result)
	}
}

func TestSendInstanceVariableAccessorsAndMutators(t *testing.T) {
	v, m, _ := newTestVM()
	class := heap.NewClass("Counter", nil, []string{"count"})
	compileAndInstall(t, m, class, "count\n^count")
	compileAndInstall(t, m, class, "count: aNumber\ncount := aNumber")

	recv := m.NewInstance(class)
	if _, err := v.Send(recv, "count:", []heap.ObjPtr{m.NewSmallInteger(41)}); err != nil {
		t.Fatalf("count: failed: %v", err)
	}
	result, err := v.Send(recv, "count", nil)
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if result.Int != 41 {
		t.Fatalf("expected 41, got %d", result.Int)
	}
}

func TestSendBlockValueWithArgument(t *testing.T) {
	v, m, _ := newTestVM()
	class := heap.NewClass("Object", nil, nil)
	compileAndInstall(t, m, class, "double: aBlock\n^aBlock value: 21")

	recv := m.NewInstance(class)
	result, err := v.Send(recv, "double:", []heap.ObjPtr{makeDoublingBlock(t, v, m)})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if result.Kind != heap.KindSmallInteger || result.Int != 42 {
		t.Fatalf("expected 42, got %+v", result)
	}
}

// makeDoublingBlock compiles a method that merely returns the block
// `[:x | x * 2]` and invokes it once to hand the caller the resulting
// block object.
func makeDoublingBlock(t *testing.T, v *VM, m *heap.Machine) heap.ObjPtr {
	t.Helper()
	class := heap.NewClass("BlockFactory", nil, nil)
	compileAndInstall(t, m, class, "makeBlock\n^[:x | x * 2]")
	recv := m.NewInstance(class)
	block, err := v.Send(recv, "makeBlock", nil)
	if err != nil {
		t.Fatalf("makeBlock failed: %v", err)
	}
	return block
}

func TestNonLocalReturnUnwindsThroughBlock(t *testing.T) {
	v, m, _ := newTestVM()
	class := heap.NewClass("Finder", nil, nil)
	compileAndInstall(t, m, class, "firstEven: aBlock\naBlock value.\n^-1")
	compileAndInstall(t, m, class, "run\n^self firstEven: [^99]")

	recv := m.NewInstance(class)
	result, err := v.Send(recv, "run", nil)
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if result.Kind != heap.KindSmallInteger || result.Int != 99 {
		t.Fatalf("expected non-local return to produce 99, got %+v", result)
	}
}

func TestWhileTrueLoopsAndAccumulates(t *testing.T) {
	v, m, _ := newTestVM()
	class := heap.NewClass("Summer", nil, []string{"total", "i"})
	compileAndInstall(t, m, class, "sumTo: n\ntotal := 0. i := 1.\n[i <= n] whileTrue: [total := total + i. i := i + 1].\n^total")

	recv := m.NewInstance(class)
	result, err := v.Send(recv, "sumTo:", []heap.ObjPtr{m.NewSmallInteger(5)})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if result.Int != 15 {
		t.Fatalf("expected 15, got %d", result.Int)
	}
}

func TestDoesNotUnderstandReportsRuntimeError(t *testing.T) {
	v, m, _ := newTestVM()
	class := heap.NewClass("Empty", nil, nil)
	recv := m.NewInstance(class)

	_, err := v.Send(recv, "frobnicate", nil)
	if err == nil {
		t.Fatalf("expected doesNotUnderstand error")
	}
	if _, ok := err.(*RuntimeError); !ok {
		t.Fatalf("expected *RuntimeError, got %T", err)
	}
}

func TestTranscriptShowWritesToOutputSink(t *testing.T) {
	var lines []string
	m := heap.NewMachine()
	v := New(m, func(s string) { lines = append(lines, s) })
	transcript := NewTranscript(m)
	m.DefineGlobal("Transcript", transcript)

	class := heap.NewClass("Greeter", nil, nil)
	compileAndInstall(t, m, class, "greet\nTranscript show: 'hello'")
	recv := m.NewInstance(class)

	if _, err := v.Send(recv, "greet", nil); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if len(lines) != 1 || lines[0] != "hello" {
		t.Fatalf("expected Transcript output [\"hello\"], got %v", lines)
	}
}

func TestSuperSendStartsLookupAtSuperclass(t *testing.T) {
	v, m, _ := newTestVM()
	base := heap.NewClass("Base", nil, nil)
	compileAndInstall(t, m, base, "greeting\n^'base'")
	derived := heap.NewClass("Derived", base, nil)
	compileAndInstall(t, m, derived, "greeting\n^'derived'")
	compileAndInstall(t, m, derived, "superGreeting\n^super greeting")

	recv := m.NewInstance(derived)
	result, err := v.Send(recv, "superGreeting", nil)
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if result.Str != "base" {
		t.Fatalf("expected super send to reach Base>>greeting, got %q", result.Str)
	}
}

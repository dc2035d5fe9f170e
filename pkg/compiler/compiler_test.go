package compiler

import (
	"testing"

	"github.com/minitalklang/minitalk/pkg/bytecode"
	"github.com/minitalklang/minitalk/pkg/heap"
	"github.com/minitalklang/minitalk/pkg/parser"
)

func compileSource(t *testing.T, machine *heap.Machine, class *heap.Class, src string) (heap.ObjPtr, []bytecode.Instruction) {
	t.Helper()
	p := parser.New(src, class)
	method := p.ParseMethod(-1)
	if errs := p.Errors(); len(errs) != 0 {
		t.Fatalf("unexpected parse errors: %v", errs)
	}
	cm, _, err := CodeMethod(machine, method, false)
	if err != nil {
		t.Fatalf("CodeMethod failed: %v", err)
	}
	code := cm.Slots[heap.BytecodesInCompiledMethod]
	var raw []byte
	if code.Kind == heap.KindByteArray {
		raw = code.Bytes
	}
	instrs, err := bytecode.Disassemble(raw)
	if err != nil {
		t.Fatalf("Disassemble failed: %v", err)
	}
	return cm, instrs
}

func TestCompileSimpleUnaryMethod(t *testing.T) {
	m := heap.NewMachine()
	cm, instrs := compileSource(t, m, nil, "yourself\n^self")

	if len(instrs) != 2 {
		t.Fatalf("expected 2 instructions, got %d: %v", len(instrs), instrs)
	}
	if instrs[0].Op != bytecode.PushSelf {
		t.Errorf("expected PUSHSELF, got %s", instrs[0].Op.Name())
	}
	if instrs[1].Op != bytecode.Ret {
		t.Errorf("expected RET, got %s", instrs[1].Op.Name())
	}
	if cm.Slots[heap.NumberArgsInCompiledMethod].Int != 0 {
		t.Errorf("expected 0 arguments")
	}
}

func TestCompileLiteralAndReturn(t *testing.T) {
	_, instrs := compileSource(t, heap.NewMachine(), nil, "test\n^42")
	if len(instrs) != 2 {
		t.Fatalf("expected 2 instructions, got %d: %v", len(instrs), instrs)
	}
	if instrs[0].Op != bytecode.PushLtrl || instrs[0].Operand != 0 {
		t.Errorf("expected PUSHLTRL 0, got %s", instrs[0])
	}
	if instrs[1].Op != bytecode.Ret {
		t.Errorf("expected RET, got %s", instrs[1].Op.Name())
	}
}

func TestCompileBinarySend(t *testing.T) {
	_, instrs := compileSource(t, heap.NewMachine(), nil, "test\n^3 + 4")
	// PUSHLTRL 3, PUSHLTRL 4, SEND +, RET
	if len(instrs) != 4 {
		t.Fatalf("expected 4 instructions, got %d: %v", len(instrs), instrs)
	}
	if instrs[2].Op != bytecode.Send || instrs[2].Operand != 1 {
		t.Errorf("expected SEND with 1 argument, got %s", instrs[2])
	}
}

func TestCompileInstanceVariableLoadAndStore(t *testing.T) {
	class := heap.NewClass("Point", nil, []string{"x", "y"})
	_, instrs := compileSource(t, heap.NewMachine(), class, "setX: aNumber\nx := aNumber")

	// PUSHTEMP 0, STOREINST 0, PUSHSELF, RET  (discarded assignment falls back to self)
	if len(instrs) != 4 {
		t.Fatalf("expected 4 instructions, got %d: %v", len(instrs), instrs)
	}
	if instrs[0].Op != bytecode.PushTemp || instrs[0].Operand != 0 {
		t.Errorf("expected PUSHTEMP 0, got %s", instrs[0])
	}
	if instrs[1].Op != bytecode.StoreInst || instrs[1].Operand != 0 {
		t.Errorf("expected STOREINST 0, got %s", instrs[1])
	}
	if instrs[2].Op != bytecode.PushSelf {
		t.Errorf("expected trailing PUSHSELF, got %s", instrs[2].Op.Name())
	}
}

func TestCompileMultipleStatementsPopsIntermediateValues(t *testing.T) {
	_, instrs := compileSource(t, heap.NewMachine(), nil, "test\n3 printNl.\n4 printNl.\n^self")

	popCount := 0
	for _, in := range instrs {
		if in.Op == bytecode.Pop {
			popCount++
		}
	}
	if popCount != 2 {
		t.Fatalf("expected 2 POP instructions for discarded statement results, got %d: %v", popCount, instrs)
	}
}

func TestCompileBlockEmitsPushBlockAndJump(t *testing.T) {
	_, instrs := compileSource(t, heap.NewMachine(), nil, "test\n^[:x | x + 1] value: 5")

	var sawPushBlock, sawJump bool
	for _, in := range instrs {
		switch in.Op {
		case bytecode.PushBlock:
			sawPushBlock = true
			if in.Operand != 1 {
				t.Errorf("expected PUSHBLOCK with 1 argument, got %s", in)
			}
			if in.Param != bytecode.BlockBaseline {
				t.Errorf("expected PUSHBLOCK baseline param %d, got %d", bytecode.BlockBaseline, in.Param)
			}
		case bytecode.Jump:
			sawJump = true
		}
	}
	if !sawPushBlock || !sawJump {
		t.Fatalf("expected both PUSHBLOCK and JUMP in: %v", instrs)
	}
}

func TestCompileArrayLiteralMaterializesNestedElements(t *testing.T) {
	m := heap.NewMachine()
	cm, instrs := compileSource(t, m, nil, "test\n^#(1 2 #(3 4))")

	if instrs[0].Op != bytecode.PushLtrl {
		t.Fatalf("expected PUSHLTRL, got %s", instrs[0].Op.Name())
	}
	literals := cm.Slots[heap.LiteralsInCompiledMethod]
	arr := literals.Slots[instrs[0].Operand]
	if arr.Kind != heap.KindArray || len(arr.Slots) != 3 {
		t.Fatalf("expected a 3-element array literal, got %#v", arr)
	}
	nested := arr.Slots[2]
	if nested.Kind != heap.KindArray || len(nested.Slots) != 2 {
		t.Fatalf("expected nested 2-element array, got %#v", nested)
	}
}

func TestCompileCascadeDupsReceiver(t *testing.T) {
	_, instrs := compileSource(t, heap.NewMachine(), nil, "test\nTranscript show: 'a'; show: 'b'")

	dupCount := 0
	for _, in := range instrs {
		if in.Op == bytecode.Dup {
			dupCount++
		}
	}
	if dupCount != 1 {
		t.Fatalf("expected exactly 1 DUP (before every cascaded send but the last), got %d: %v", dupCount, instrs)
	}
}

func TestCompileSharedVariableUsesAssociation(t *testing.T) {
	m := heap.NewMachine()
	m.DefineGlobal("Smalltalk", m.Nil)
	_, instrs := compileSource(t, m, nil, "test\n^Smalltalk")

	if instrs[0].Op != bytecode.PushAssoc {
		t.Fatalf("expected PUSHASSOC for a global reference, got %s", instrs[0].Op.Name())
	}
}

func TestCompileExtendedOperandForLargeLiteralIndex(t *testing.T) {
	m := heap.NewMachine()
	var src string
	src = "test\n"
	for i := 0; i < 20; i++ {
		src += "3 printNl.\n"
	}
	src += "^self"
	_, instrs := compileSource(t, m, nil, src)

	var sawExtended bool
	for _, in := range instrs {
		if in.Op == bytecode.PushLtrl && in.Width == 2 {
			sawExtended = true
		}
	}
	if !sawExtended {
		t.Fatalf("expected at least one extended-form PUSHLTRL once the literal table grows past 16 entries")
	}
}

package bytecode_test

import (
	"bytes"
	"testing"

	"github.com/minitalklang/minitalk/pkg/bytecode"
	"github.com/minitalklang/minitalk/pkg/heap"
)

func TestEncodeDecodeMethodRoundTrips(t *testing.T) {
	m := heap.NewMachine()
	class := heap.NewClass("Point", nil, []string{"x", "y"})

	method := m.NewCompiledMethod()
	method.Slots[heap.SelectorInCompiledMethod] = m.NewSymbol("x:y:")
	method.Slots[heap.NumberArgsInCompiledMethod] = m.NewSmallInteger(2)
	method.Slots[heap.TempSizeInCompiledMethod] = m.NewSmallInteger(0)
	method.Slots[heap.StackSizeInCompiledMethod] = m.NewSmallInteger(4)
	method.Slots[heap.BytecodesInCompiledMethod] = m.NewByteArray([]byte{
		byte(bytecode.PushTemp) | 0x00,
		byte(bytecode.StoreInst) | 0x00,
		byte(bytecode.PushTemp) | 0x01,
		byte(bytecode.StoreInst) | 0x01,
		byte(bytecode.PushSelf),
		byte(bytecode.Ret),
	})
	literals := m.NewArray(3)
	literals.Slots[0] = m.NewSmallInteger(7)
	literals.Slots[1] = m.NewString("hello")
	arr := m.NewArray(2)
	arr.Slots[0] = m.NewCharacter('a')
	arr.Slots[1] = m.NewFloat(3.5)
	literals.Slots[2] = arr
	method.Slots[heap.LiteralsInCompiledMethod] = literals

	var buf bytes.Buffer
	if err := bytecode.EncodeMethod(method, &buf); err != nil {
		t.Fatalf("EncodeMethod failed: %v", err)
	}

	_ = class // class isn't part of the .mtb format; only the method is serialized
	decoded, err := bytecode.DecodeMethod(&buf, m)
	if err != nil {
		t.Fatalf("DecodeMethod failed: %v", err)
	}

	if decoded.Slots[heap.SelectorInCompiledMethod].Str != "x:y:" {
		t.Fatalf("selector mismatch: got %q", decoded.Slots[heap.SelectorInCompiledMethod].Str)
	}
	if decoded.Slots[heap.NumberArgsInCompiledMethod].Int != 2 {
		t.Fatalf("numArgs mismatch: got %d", decoded.Slots[heap.NumberArgsInCompiledMethod].Int)
	}
	if !bytes.Equal(decoded.Slots[heap.BytecodesInCompiledMethod].Bytes, method.Slots[heap.BytecodesInCompiledMethod].Bytes) {
		t.Fatalf("code bytes mismatch")
	}

	decodedLits := decoded.Slots[heap.LiteralsInCompiledMethod]
	if len(decodedLits.Slots) != 3 {
		t.Fatalf("expected 3 literals, got %d", len(decodedLits.Slots))
	}
	if decodedLits.Slots[0].Int != 7 {
		t.Fatalf("literal 0 mismatch: got %d", decodedLits.Slots[0].Int)
	}
	if decodedLits.Slots[1].Str != "hello" {
		t.Fatalf("literal 1 mismatch: got %q", decodedLits.Slots[1].Str)
	}
	nestedArr := decodedLits.Slots[2]
	if len(nestedArr.Slots) != 2 || nestedArr.Slots[0].Char != 'a' || nestedArr.Slots[1].Float != 3.5 {
		t.Fatalf("nested array literal mismatch: got %+v", nestedArr)
	}
}

func TestDecodeMethodRejectsBadMagic(t *testing.T) {
	m := heap.NewMachine()
	buf := bytes.NewReader([]byte{0, 0, 0, 0, 0, 0, 0, 1})
	if _, err := bytecode.DecodeMethod(buf, m); err == nil {
		t.Fatalf("expected an error for a bad magic number")
	}
}

func TestEncodeMethodRejectsUnencodableLiteral(t *testing.T) {
	m := heap.NewMachine()
	method := m.NewCompiledMethod()
	method.Slots[heap.SelectorInCompiledMethod] = m.NewSymbol("bad")
	literals := m.NewArray(1)
	literals.Slots[0] = m.NewInstance(heap.NewClass("Weird", nil, nil))
	method.Slots[heap.LiteralsInCompiledMethod] = literals

	var buf bytes.Buffer
	if err := bytecode.EncodeMethod(method, &buf); err == nil {
		t.Fatalf("expected an error encoding an Instance literal")
	}
}

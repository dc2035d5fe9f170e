package bytecode_test

import (
	"testing"

	"github.com/minitalklang/minitalk/pkg/bytecode"
)

func TestDisassembleShortAndExtendedOperands(t *testing.T) {
	code := []byte{
		byte(bytecode.PushTemp) | 0x03, // short form, operand 3
		byte(bytecode.OpExtended) | bytecode.Family(bytecode.PushTemp), 0x14, // extended, operand 20
		byte(bytecode.Send) | 0x01, 0x02, // SEND 1 arg, selector literal 2
		byte(bytecode.Ret),
	}

	instructions, err := bytecode.Disassemble(code)
	if err != nil {
		t.Fatalf("Disassemble failed: %v", err)
	}
	if len(instructions) != 4 {
		t.Fatalf("expected 4 instructions, got %d", len(instructions))
	}

	if instructions[0].Op != bytecode.PushTemp || instructions[0].Operand != 3 || instructions[0].Width != 1 {
		t.Fatalf("unexpected short-form instruction: %+v", instructions[0])
	}
	if instructions[1].Op != bytecode.PushTemp || instructions[1].Operand != 20 || instructions[1].Width != 2 {
		t.Fatalf("unexpected extended-form instruction: %+v", instructions[1])
	}
	if instructions[2].Op != bytecode.Send || instructions[2].Operand != 1 || instructions[2].Param != 2 {
		t.Fatalf("unexpected SEND instruction: %+v", instructions[2])
	}
	if instructions[3].Op != bytecode.Ret {
		t.Fatalf("unexpected final instruction: %+v", instructions[3])
	}
}

func TestDisassembleReportsTruncatedJump(t *testing.T) {
	code := []byte{byte(bytecode.Jump), 0x00}
	if _, err := bytecode.Disassemble(code); err == nil {
		t.Fatalf("expected an error for a truncated JUMP")
	}
}

func TestDecodeOperandWidths(t *testing.T) {
	code := []byte{byte(bytecode.PushLtrl) | 0x05, byte(bytecode.OpExtended) | bytecode.Family(bytecode.PushLtrl), 0xFF}

	operand, width, err := bytecode.DecodeOperand(code, 0)
	if err != nil || operand != 5 || width != 1 {
		t.Fatalf("short operand decode: got (%d, %d, %v)", operand, width, err)
	}

	operand, width, err = bytecode.DecodeOperand(code, 1)
	if err != nil || operand != 0xFF || width != 2 {
		t.Fatalf("extended operand decode: got (%d, %d, %v)", operand, width, err)
	}
}

package bytecode

import "fmt"

// Instruction is a single decoded bytecode instruction, as produced by
// Disassemble. It exists purely for inspection (disassembly, fuzzing,
// property tests) — the VM decodes the raw byte stream itself rather
// than building this structure at execution time.
type Instruction struct {
	Offset   int    // code offset the lead byte sits at
	Op       Opcode // family base for parameterized opcodes
	Operand  int    // decoded 4-bit-or-extended operand, or jump target
	Param    int    // second parameter byte for SEND/SENDSUPER/PUSHBLOCK, else -1
	Width    int    // total bytes consumed, including Param and any offset
}

// DecodeOperand reads the operand of a parameterized opcode starting
// at code[offset], which must be a lead byte whose value is either
// `family | smallOperand` or an extended tag `OpExtended | familyIndex`
// followed by a full operand byte. It returns the decoded operand and
// the number of bytes consumed (1 or 2).
func DecodeOperand(code []byte, offset int) (operand, width int, err error) {
	if offset >= len(code) {
		return 0, 0, fmt.Errorf("bytecode: offset %d out of range", offset)
	}
	lead := code[offset]
	if lead&0xF0 == OpExtended {
		if offset+1 >= len(code) {
			return 0, 0, fmt.Errorf("bytecode: truncated extended operand at %d", offset)
		}
		return int(code[offset+1]), 2, nil
	}
	return int(lead & familyMask), 1, nil
}

// Disassemble decodes the full instruction stream in code into a
// sequence of Instructions, in order. It is used for debugging output
// and by property tests that want to reinterpret emitted bytecode
// abstractly without executing it.
func Disassemble(code []byte) ([]Instruction, error) {
	var out []Instruction
	offset := 0
	for offset < len(code) {
		start := offset
		lead := code[offset]

		// Non-parameterized single-byte opcodes.
		switch Opcode(lead) {
		case PushSelf, PushNil, PushFalse, PushTrue, Dup, Pop, Ret, RetBlock:
			out = append(out, Instruction{Offset: start, Op: Opcode(lead), Param: -1, Width: 1})
			offset++
			continue
		case Jump:
			if offset+3 > len(code) {
				return nil, fmt.Errorf("bytecode: truncated JUMP at %d", start)
			}
			target := int(code[offset+1])<<8 | int(code[offset+2])
			out = append(out, Instruction{Offset: start, Op: Jump, Operand: target, Param: -1, Width: 3})
			offset += 3
			continue
		}

		// Parameterized opcodes: recover the family base, decode the
		// operand (short or extended), then any trailing param byte.
		var family byte
		var operandWidth int
		var operand int
		if lead&0xF0 == OpExtended {
			family = lead & familyMask
			if offset+1 >= len(code) {
				return nil, fmt.Errorf("bytecode: truncated extended operand at %d", start)
			}
			operand = int(code[offset+1])
			operandWidth = 2
		} else {
			family = lead >> 4
			operand = int(lead & familyMask)
			operandWidth = 1
		}
		op := Opcode(family << 4)

		param := -1
		width := operandWidth
		switch op {
		case Send, SendSuper, PushBlock:
			if offset+operandWidth >= len(code) {
				return nil, fmt.Errorf("bytecode: missing parameter byte at %d", start)
			}
			param = int(code[offset+operandWidth])
			width++
		case PushInst, PushTemp, PushLtrl, PushAssoc, StoreInst, StoreTemp, StoreAssoc:
			// no trailing parameter byte
		default:
			return nil, fmt.Errorf("bytecode: unrecognized opcode byte 0x%02x at %d", lead, start)
		}

		out = append(out, Instruction{Offset: start, Op: op, Operand: operand, Param: param, Width: width})
		offset += width
	}
	return out, nil
}

// String renders an Instruction in disassembly form, e.g. "PUSHLTRL 3"
// or "SEND 1, 7".
func (in Instruction) String() string {
	switch in.Op {
	case Send, SendSuper:
		return fmt.Sprintf("%s %d, %d", in.Op.Name(), in.Operand, in.Param)
	case PushBlock:
		return fmt.Sprintf("%s %d, %d", in.Op.Name(), in.Operand, in.Param)
	case Jump:
		return fmt.Sprintf("%s %d", in.Op.Name(), in.Operand)
	case PushSelf, PushNil, PushFalse, PushTrue, Dup, Pop, Ret, RetBlock:
		return in.Op.Name()
	default:
		return fmt.Sprintf("%s %d", in.Op.Name(), in.Operand)
	}
}

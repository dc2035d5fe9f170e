package compiler

import "github.com/minitalklang/minitalk/pkg/bytecode"

// code0 emits a non-parameterized single-byte opcode and applies its
// stack delta.
func (c *coder) code0(op bytecode.Opcode, stackDelta int) error {
	if err := c.emitter.emitByte(byte(op)); err != nil {
		return err
	}
	return c.stack.update(stackDelta)
}

// code1 emits a parameterized opcode carrying one operand, using the
// short form (operand packed into the lead byte's low nibble) when it
// fits in 4 bits, or the extended two-byte form otherwise.
func (c *coder) code1(op bytecode.Opcode, value int, stackDelta int) error {
	if err := c.emitShortOrExtended(op, value); err != nil {
		return err
	}
	return c.stack.update(stackDelta)
}

// code2 is code1 plus one additional parameter byte appended after the
// (possibly extended) lead sequence — used by SEND/SENDSUPER (selector
// literal index) and PUSHBLOCK (argument-count baseline).
func (c *coder) code2(op bytecode.Opcode, value int, param byte, stackDelta int) error {
	if err := c.emitShortOrExtended(op, value); err != nil {
		return err
	}
	if err := c.emitter.emitByte(param); err != nil {
		return err
	}
	return c.stack.update(stackDelta)
}

// code3 emits an opcode that takes a 16-bit absolute code offset
// rather than a nibble-packed operand (JUMP). The caller supplies a
// placeholder offset (0 when the target isn't known yet) and, to patch
// it later, must remember the offset field's own address: that's
// emitter.currentOffset() taken right after this call returns, minus 2
// (the two reserved bytes code3 just emitted) — not the address taken
// before the call, which points at the opcode byte itself.
func (c *coder) code3(op bytecode.Opcode, offset uint16, stackDelta int) error {
	if err := c.emitter.emitByte(byte(op)); err != nil {
		return err
	}
	if err := c.emitter.emitOffset(offset); err != nil {
		return err
	}
	return c.stack.update(stackDelta)
}

// emitShortOrExtended implements the 4.4 encoding rule: emit OP|value
// in one byte when value < 16, otherwise emit the OpExtended-tagged
// lead byte followed by the full 8-bit operand.
func (c *coder) emitShortOrExtended(op bytecode.Opcode, value int) error {
	if value < 16 {
		return c.emitter.emitByte(byte(op) | byte(value))
	}
	if err := c.emitter.emitByte(bytecode.OpExtended | bytecode.Family(op)); err != nil {
		return err
	}
	return c.emitter.emitByte(byte(value))
}

// Package vm implements the bytecode virtual machine that executes the
// CompiledMethod objects pkg/compiler produces.
//
// Execution Model:
//
// Each message send that resolves to bytecode (as opposed to a builtin
// primitive) creates an activation: a private operand stack, a shared
// reference to the method's temp/argument frame, and an instruction
// pointer into the method's code array. A block literal does not get
// its own activation at the point it's pushed (PUSHBLOCK just builds a
// closure object); it gets one only when the closure is later sent
// `value`/`value:`/..., which may happen from a completely different
// call site — even after the method that created it has already
// returned. That's fine for an ordinary value send; it only becomes a
// runtime error if the block then attempts a non-local return (`^`)
// and its home activation is no longer anywhere on the call stack to
// receive it.
//
// Non-local return: RET always targets the activation belonging to
// the method the currently executing code is part of (its `home`),
// not just the innermost block activation. A block invocation that
// hits RET unwinds every activation between itself and its home,
// carrying the same value, stopping only once the home activation
// itself produces it as its method-call result.
//
// Example Execution:
//
//	Source: x := 5. x + 3.
//
//	Bytecode:
//	  PUSHLTRL 0   ; literal[0] = 5
//	  STORETEMP 0  ; x is slot 0
//	  PUSHTEMP 0   ; load x
//	  PUSHLTRL 1   ; literal[1] = 3
//	  SEND 1, 2    ; literal[2] = #+, 1 argument
//	  RET
package vm

import (
	"fmt"

	"github.com/minitalklang/minitalk/pkg/bytecode"
	"github.com/minitalklang/minitalk/pkg/heap"
)

// closure is the VM-internal payload of a KindBlockClosure Object (see
// heap.Object.Opaque). It carries everything invoking the block later
// needs: the code to run, the shared temp frame to run it against, and
// the home activation non-local return unwinds to.
//
// numVars is PUSHBLOCK's operand: the combined count of block
// arguments and block-local temporaries (see ast.Block's doc comment
// and pkg/compiler's codeBlock). The split between the two isn't
// recorded in the bytecode; it is implied at invocation time by
// however many arguments the value/value:/... send actually supplies.
type closure struct {
	home    *activation
	method  heap.ObjPtr
	code    []byte
	literals []heap.ObjPtr
	offset  int
	numVars int
	self    heap.ObjPtr
	class   *heap.Class
}

// activation is one live method or block execution.
type activation struct {
	method   heap.ObjPtr
	code     []byte
	literals []heap.ObjPtr
	temps    []heap.ObjPtr
	self     heap.ObjPtr
	class    *heap.Class // class the method was found in, for super sends
	stack    []heap.ObjPtr
	ip       int
	home     *activation // the method activation this one returns through; itself, for a real method activation
	selector string
}

func (a *activation) push(v heap.ObjPtr) { a.stack = append(a.stack, v) }

func (a *activation) pop() (heap.ObjPtr, error) {
	if len(a.stack) == 0 {
		return nil, fmt.Errorf("vm: stack underflow")
	}
	v := a.stack[len(a.stack)-1]
	a.stack = a.stack[:len(a.stack)-1]
	return v, nil
}

// nonLocalReturn is the sentinel propagated up the Go call stack when
// a RET executes inside a block activation: it must keep unwinding
// until it reaches the activation matching target.
type nonLocalReturn struct {
	target *activation
	value  heap.ObjPtr
}

func (nonLocalReturn) Error() string { return "vm: non-local return" }

// VM executes CompiledMethod bytecode against one heap.Machine. A VM
// is reusable across many top-level sends; Transcript output and the
// machine's global dictionary persist across them.
type VM struct {
	Machine *heap.Machine
	Out     func(string) // Transcript show: sink; output is discarded when nil
	frames  []StackFrame
}

// New creates a VM over machine, writing Transcript output with out.
func New(machine *heap.Machine, out func(string)) *VM {
	return &VM{Machine: machine, Out: out}
}

// Send dispatches selector to receiver with args, as a fresh top-level
// call with no enclosing activation. A non-local return is absorbed by
// the method activation it targets; one that escapes every activation
// inside this call (its home has already returned) is reported as a
// RuntimeError.
func (vm *VM) Send(receiver heap.ObjPtr, selector string, args []heap.ObjPtr) (heap.ObjPtr, error) {
	result, err := vm.send(receiver, receiverClass(vm.Machine, receiver), selector, args)
	if _, ok := err.(nonLocalReturn); ok {
		return nil, &RuntimeError{Message: "non-local return from a block whose home context has already returned", StackTrace: vm.frames}
	}
	return result, err
}

// send is the shared dispatch path for ordinary sends. startClass is
// the class LookupMethod begins its search at — receiver's own class
// normally, or a defining class's superclass for a super send.
func (vm *VM) send(receiver heap.ObjPtr, startClass *heap.Class, selector string, args []heap.ObjPtr) (heap.ObjPtr, error) {
	if receiver != nil && receiver.Kind == heap.KindBlockClosure && isBlockValueSelector(selector) {
		return vm.invokeBlock(receiver, args)
	}

	if result, handled, err := vm.primitive(receiver, selector, args); handled {
		return result, err
	}

	if startClass != nil {
		if assoc, definingClass := startClass.LookupMethod(selector); assoc != nil {
			method := assoc.Slots[heap.ValueInAssociation]
			return vm.invokeMethod(method, receiver, definingClass, args, selector)
		}
	}

	return nil, &RuntimeError{Message: fmt.Sprintf("doesNotUnderstand: #%s", selector), StackTrace: vm.frames}
}

func receiverClass(m *heap.Machine, receiver heap.ObjPtr) *heap.Class {
	if receiver == nil {
		return nil
	}
	if receiver.Class != nil {
		return receiver.Class
	}
	switch receiver.Kind {
	case heap.KindSmallInteger:
		return m.SmallIntegerClass
	case heap.KindFloat:
		return m.FloatClass
	case heap.KindString:
		return m.StringClass
	case heap.KindCharacter:
		return m.CharacterClass
	case heap.KindSymbol:
		return m.SymbolClass
	case heap.KindBoolean:
		return m.BooleanClass
	default:
		return nil
	}
}

// invokeMethod runs a CompiledMethod's bytecode as a brand-new
// activation (home == itself): arguments occupy the bottom numArgs
// temp slots, the rest of the temp frame starts Nil. The frame also
// covers the slots of block arguments and block temporaries, which
// share it at offsets past the method's own temporaries.
func (vm *VM) invokeMethod(method, self heap.ObjPtr, class *heap.Class, args []heap.ObjPtr, selector string) (heap.ObjPtr, error) {
	numArgs := int(method.Slots[heap.NumberArgsInCompiledMethod].Int)
	tempSize := int(method.Slots[heap.TempSizeInCompiledMethod].Int)
	if len(args) != numArgs {
		return nil, &RuntimeError{Message: fmt.Sprintf("wrong number of arguments to #%s: expected %d, got %d", selector, numArgs, len(args))}
	}

	// tempSize counts only the method's own temporaries, so widen the
	// frame to every temp slot the code (block bodies included) addresses.
	frameSize := numArgs + tempSize
	if instrs, err := bytecode.Disassemble(codeBytes(method)); err == nil {
		for _, in := range instrs {
			if (in.Op == bytecode.PushTemp || in.Op == bytecode.StoreTemp) && in.Operand >= frameSize {
				frameSize = in.Operand + 1
			}
		}
	}

	act := &activation{
		method:   method,
		code:     codeBytes(method),
		literals: literalSlots(method),
		temps:    make([]heap.ObjPtr, frameSize),
		self:     self,
		class:    class,
		selector: selector,
	}
	for i, a := range args {
		act.temps[i] = a
	}
	for i := numArgs; i < len(act.temps); i++ {
		act.temps[i] = vm.Machine.Nil
	}
	act.home = act

	vm.frames = append(vm.frames, StackFrame{Name: frameName(class, selector), Selector: selector})
	defer func() { vm.frames = vm.frames[:len(vm.frames)-1] }()

	result, err := vm.run(act)
	if nlr, ok := err.(nonLocalReturn); ok && nlr.target == act {
		return nlr.value, nil
	}
	return result, err
}

// invokeBlock runs a closure's code, sharing its defining activation's
// temp frame (that's how a block sees its enclosing method's
// variables) but with a fresh operand stack and instruction pointer.
//
// The block's own prologue (emitted by codeBlock) pops numVars values
// off the stack, in declaration order, storing each into its temp
// slot — so the values must be pushed with the first declared
// variable on top. Only the leading len(args) declared variables are
// real block arguments; anything beyond that is a block-local
// temporary this call has to seed with Nil itself, since the bytecode
// doesn't separately record the arg/temp split.
func (vm *VM) invokeBlock(blockObj heap.ObjPtr, args []heap.ObjPtr) (heap.ObjPtr, error) {
	cl, ok := blockObj.Opaque.(*closure)
	if !ok {
		return nil, &RuntimeError{Message: "vm: not a block"}
	}
	if len(args) > cl.numVars {
		return nil, &RuntimeError{Message: fmt.Sprintf("wrong number of arguments to a block: expected %d, got %d", cl.numVars, len(args))}
	}

	act := &activation{
		method:   cl.method,
		code:     cl.code,
		literals: cl.literals,
		temps:    cl.home.temps,
		self:     cl.self,
		class:    cl.class,
		ip:       cl.offset,
		home:     cl.home,
	}
	for i := 0; i < cl.numVars-len(args); i++ {
		act.push(vm.Machine.Nil)
	}
	for i := len(args) - 1; i >= 0; i-- {
		act.push(args[i])
	}

	// A non-local return out of this block is never consumed here: its
	// target is always some enclosing method activation, and only that
	// activation's own invokeMethod call is positioned to stop the
	// unwind, once every intervening Go call frame (including whatever
	// sent this block `value`) has propagated it that far.
	return vm.run(act)
}

func frameName(class *heap.Class, selector string) string {
	if class == nil {
		return selector
	}
	return class.Name + ">>" + selector
}

func codeBytes(method heap.ObjPtr) []byte {
	code := method.Slots[heap.BytecodesInCompiledMethod]
	if code.Kind != heap.KindByteArray {
		return nil
	}
	return code.Bytes
}

func literalSlots(method heap.ObjPtr) []heap.ObjPtr {
	lits := method.Slots[heap.LiteralsInCompiledMethod]
	if lits.Kind != heap.KindArray {
		return nil
	}
	return lits.Slots
}

func isBlockValueSelector(selector string) bool {
	switch selector {
	case "value", "value:", "value:value:", "value:value:value:", "value:value:value:value:":
		return true
	default:
		return false
	}
}

// run executes act's code from its current ip until a RET/RETBLOCK
// terminates it or an error aborts it. A RET that targets an
// activation other than act itself is returned as a nonLocalReturn
// error for the caller (invokeBlock or run's own SEND handling) to
// keep propagating.
func (vm *VM) run(act *activation) (heap.ObjPtr, error) {
	m := vm.Machine
	for act.ip < len(act.code) {
		lead := act.code[act.ip]
		start := act.ip

		switch bytecode.Opcode(lead) {
		case bytecode.PushSelf:
			act.push(act.self)
			act.ip++
			continue
		case bytecode.PushNil:
			act.push(m.Nil)
			act.ip++
			continue
		case bytecode.PushFalse:
			act.push(m.False)
			act.ip++
			continue
		case bytecode.PushTrue:
			act.push(m.True)
			act.ip++
			continue
		case bytecode.Dup:
			v, err := act.pop()
			if err != nil {
				return nil, vm.fail(err)
			}
			act.push(v)
			act.push(v)
			act.ip++
			continue
		case bytecode.Pop:
			if _, err := act.pop(); err != nil {
				return nil, vm.fail(err)
			}
			act.ip++
			continue
		case bytecode.Ret:
			v, err := act.pop()
			if err != nil {
				return nil, vm.fail(err)
			}
			if act.home == act {
				return v, nil
			}
			return nil, nonLocalReturn{target: act.home, value: v}
		case bytecode.RetBlock:
			v, err := act.pop()
			if err != nil {
				return nil, vm.fail(err)
			}
			return v, nil
		case bytecode.Jump:
			if start+3 > len(act.code) {
				return nil, vm.fail(fmt.Errorf("truncated JUMP"))
			}
			target := int(act.code[start+1])<<8 | int(act.code[start+2])
			act.ip = target
			continue
		}

		operand, width, err := bytecode.DecodeOperand(act.code, start)
		if err != nil {
			return nil, vm.fail(err)
		}
		family := byte(lead)
		if lead&0xF0 == bytecode.OpExtended {
			family = (lead & 0x0F) << 4
		} else {
			family = lead & 0xF0
		}
		op := bytecode.Opcode(family)

		switch op {
		case bytecode.PushInst:
			if operand >= len(act.self.Slots) {
				return nil, vm.fail(fmt.Errorf("instance variable index %d out of range", operand))
			}
			act.push(act.self.Slots[operand])
			act.ip = start + width
		case bytecode.PushTemp:
			if operand >= len(act.temps) {
				return nil, vm.fail(fmt.Errorf("temp index %d out of range", operand))
			}
			act.push(act.temps[operand])
			act.ip = start + width
		case bytecode.PushLtrl:
			if operand >= len(act.literals) {
				return nil, vm.fail(fmt.Errorf("literal index %d out of range", operand))
			}
			act.push(act.literals[operand])
			act.ip = start + width
		case bytecode.PushAssoc:
			if operand >= len(act.literals) {
				return nil, vm.fail(fmt.Errorf("literal index %d out of range", operand))
			}
			assoc := act.literals[operand]
			act.push(assoc.Slots[heap.ValueInAssociation])
			act.ip = start + width
		case bytecode.StoreInst:
			v, err := act.pop()
			if err != nil {
				return nil, vm.fail(err)
			}
			if operand >= len(act.self.Slots) {
				return nil, vm.fail(fmt.Errorf("instance variable index %d out of range", operand))
			}
			act.self.Slots[operand] = v
			act.ip = start + width
		case bytecode.StoreTemp:
			v, err := act.pop()
			if err != nil {
				return nil, vm.fail(err)
			}
			if operand >= len(act.temps) {
				return nil, vm.fail(fmt.Errorf("temp index %d out of range", operand))
			}
			act.temps[operand] = v
			act.ip = start + width
		case bytecode.StoreAssoc:
			v, err := act.pop()
			if err != nil {
				return nil, vm.fail(err)
			}
			if operand >= len(act.literals) {
				return nil, vm.fail(fmt.Errorf("literal index %d out of range", operand))
			}
			act.literals[operand].Slots[heap.ValueInAssociation] = v
			act.ip = start + width
		case bytecode.PushBlock:
			if start+width >= len(act.code) {
				return nil, vm.fail(fmt.Errorf("missing PUSHBLOCK parameter byte"))
			}
			// start+width is the BlockBaseline param byte; the JUMP
			// over the block body follows immediately after it.
			jumpOffset := start + width + 1
			if jumpOffset >= len(act.code) || bytecode.Opcode(act.code[jumpOffset]) != bytecode.Jump {
				return nil, vm.fail(fmt.Errorf("PUSHBLOCK not followed by JUMP"))
			}
			bodyStart := jumpOffset + 3
			cl := &closure{
				home:     act.home,
				method:   act.method,
				code:     act.code,
				literals: act.literals,
				offset:   bodyStart,
				numVars:  operand,
				self:     act.self,
				class:    act.class,
			}
			act.push(m.NewBlockClosure(cl))
			target := int(act.code[jumpOffset+1])<<8 | int(act.code[jumpOffset+2])
			act.ip = target
		case bytecode.Send, bytecode.SendSuper:
			if start+width >= len(act.code) {
				return nil, vm.fail(fmt.Errorf("missing SEND selector byte"))
			}
			selIdx := int(act.code[start+width])
			if selIdx >= len(act.literals) {
				return nil, vm.fail(fmt.Errorf("selector literal index %d out of range", selIdx))
			}
			selector := act.literals[selIdx].Str
			argCount := operand
			if len(act.stack) < argCount+1 {
				return nil, vm.fail(fmt.Errorf("stack underflow on SEND %s", selector))
			}
			args := make([]heap.ObjPtr, argCount)
			copy(args, act.stack[len(act.stack)-argCount:])
			act.stack = act.stack[:len(act.stack)-argCount]
			receiver, err := act.pop()
			if err != nil {
				return nil, vm.fail(err)
			}

			var startClass *heap.Class
			if op == bytecode.SendSuper {
				if act.class == nil {
					return nil, vm.fail(fmt.Errorf("super send with no enclosing class"))
				}
				startClass = act.class.Superclass
			} else {
				startClass = receiverClass(m, receiver)
			}

			result, err := vm.send(receiver, startClass, selector, args)
			if err != nil {
				return nil, err
			}
			act.push(result)
			act.ip = start + width + 1
		default:
			return nil, vm.fail(fmt.Errorf("unrecognized opcode byte 0x%02x", lead))
		}
	}
	return nil, vm.fail(fmt.Errorf("code ran off the end of the method without a RET/RETBLOCK"))
}

func (vm *VM) fail(err error) error {
	if re, ok := err.(*RuntimeError); ok {
		return re
	}
	return newRuntimeError(err.Error(), vm.frames)
}

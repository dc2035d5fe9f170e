// Package compiler implements the MiniTalk bytecode generator: the
// pass that walks an already-parsed, variable-resolved method tree and
// emits stack-discipline-balanced bytecode, materializing literal
// objects directly into the target heap as it goes.
//
// The four collaborators that make up a method compilation — the
// emitter buffer, the stack tracker, the literal table, and the
// literal materializer's scratch roots — are bundled into one coder
// value per call to CodeMethod rather than kept as module-global state
// the way the source does. That keeps a coder value inert between
// calls and makes the generator safe to use from more than one
// goroutine, as long as each goroutine has its own coder and Machine.
package compiler

import (
	"github.com/minitalklang/minitalk/pkg/ast"
	"github.com/minitalklang/minitalk/pkg/bytecode"
	"github.com/minitalklang/minitalk/pkg/heap"
)

// coder holds all per-method compilation state.
type coder struct {
	emitter *emitter
	stack   stackTracker
	literals *literalTable
	machine *heap.Machine
}

func newCoder(machine *heap.Machine) *coder {
	return &coder{
		emitter:  newEmitter(),
		literals: newLiteralTable(),
		machine:  machine,
	}
}

// codeLoad emits the load sequence for a resolved variable reference.
func (c *coder) codeLoad(v *ast.Variable) error {
	rec := v.Record
	switch rec.Kind {
	case ast.KindSelf, ast.KindSuper:
		return c.code0(bytecode.PushSelf, 1)
	case ast.KindNil:
		return c.code0(bytecode.PushNil, 1)
	case ast.KindFalse:
		return c.code0(bytecode.PushFalse, 1)
	case ast.KindTrue:
		return c.code0(bytecode.PushTrue, 1)
	case ast.KindInstance:
		return c.code1(bytecode.PushInst, rec.Offset, 1)
	case ast.KindArgument, ast.KindTemporary:
		return c.code1(bytecode.PushTemp, rec.Offset, 1)
	case ast.KindShared:
		idx, err := c.literals.intern(v)
		if err != nil {
			return err
		}
		return c.code1(bytecode.PushAssoc, idx, 1)
	default:
		return ErrIllegalVariableLoad
	}
}

// codeStore emits the store sequence for a resolved variable
// reference. Only instance, temporary/argument and shared variables
// can be assignment targets; self/super/nil/true/false cannot.
func (c *coder) codeStore(v *ast.Variable) error {
	rec := v.Record
	switch rec.Kind {
	case ast.KindInstance:
		return c.code1(bytecode.StoreInst, rec.Offset, -1)
	case ast.KindArgument, ast.KindTemporary:
		return c.code1(bytecode.StoreTemp, rec.Offset, -1)
	case ast.KindShared:
		idx, err := c.literals.intern(v)
		if err != nil {
			return err
		}
		return c.code1(bytecode.StoreAssoc, idx, -1)
	default:
		return ErrIllegalVariableStore
	}
}

// codeExpression is the recursive heart of the generator. valueNeeded
// controls whether node's result must be left on the stack when this
// call returns; when false, the coder may omit the push entirely or
// emit a trailing POP, whichever the node's contract calls for.
func (c *coder) codeExpression(node ast.Node, valueNeeded bool) error {
	if node == nil {
		return ErrEmptyExpression
	}
	switch n := node.(type) {
	case *ast.Symbol, *ast.IntNum, *ast.FloNum, *ast.String, *ast.CharCon, *ast.Array:
		if !valueNeeded {
			return nil
		}
		idx, err := c.literals.intern(node)
		if err != nil {
			return err
		}
		return c.code1(bytecode.PushLtrl, idx, 1)

	case *ast.Variable:
		if !valueNeeded {
			return nil
		}
		return c.codeLoad(n)

	case *ast.Block:
		return c.codeBlock(n, valueNeeded)

	case *ast.Message:
		return c.codeMessage(n, valueNeeded)

	case *ast.Cascade:
		return c.codeCascade(n, valueNeeded)

	case *ast.Assign:
		return c.codeAssign(n, valueNeeded)

	case *ast.Method:
		return c.codeMethodBody(n, valueNeeded)

	default:
		return ErrIllegalNode
	}
}

func (c *coder) codeBlock(n *ast.Block, valueNeeded bool) error {
	if !valueNeeded {
		return nil
	}
	if err := c.code2(bytecode.PushBlock, n.NumberVariables, bytecode.BlockBaseline, 1); err != nil {
		return err
	}
	if err := c.code3(bytecode.Jump, 0, 0); err != nil {
		return err
	}
	patchLocation := c.emitter.currentOffset() - 2
	// Model the arguments the VM will have pushed for the block before
	// entering its body.
	if err := c.stack.update(n.NumberVariables); err != nil {
		return err
	}
	for _, v := range n.Variables {
		if err := c.codeStore(v); err != nil {
			return err
		}
	}
	if err := c.codeStatements(n.Statements, true); err != nil {
		return err
	}
	c.emitter.patchOffset(patchLocation, c.emitter.currentOffset())
	return nil
}

func (c *coder) codeMessage(n *ast.Message, valueNeeded bool) error {
	if n.Receiver != nil {
		if err := c.codeExpression(n.Receiver, true); err != nil {
			return err
		}
	}
	// A nil Receiver means this Message is an inner send of a Cascade;
	// the receiver is already sitting on the stack from the cascade's
	// own receiver expression.
	argCount := 0
	for _, arg := range n.Arguments {
		if err := c.codeExpression(arg, true); err != nil {
			return err
		}
		argCount++
	}
	selectorIdx, err := c.literals.intern(n.Selector)
	if err != nil {
		return err
	}
	op := bytecode.Send
	if n.SuperFlag {
		op = bytecode.SendSuper
	}
	if err := c.code2(op, argCount, byte(selectorIdx), -argCount); err != nil {
		return err
	}
	if !valueNeeded {
		return c.code0(bytecode.Pop, -1)
	}
	return nil
}

func (c *coder) codeCascade(n *ast.Cascade, valueNeeded bool) error {
	if err := c.codeExpression(n.Receiver, true); err != nil {
		return err
	}
	last := len(n.Messages) - 1
	for i, msg := range n.Messages {
		if i == last {
			if err := c.codeExpression(msg, valueNeeded); err != nil {
				return err
			}
			continue
		}
		if err := c.code0(bytecode.Dup, 1); err != nil {
			return err
		}
		if err := c.codeExpression(msg, false); err != nil {
			return err
		}
	}
	return nil
}

func (c *coder) codeAssign(n *ast.Assign, valueNeeded bool) error {
	if err := c.codeExpression(n.Expression, true); err != nil {
		return err
	}
	last := len(n.Variables) - 1
	for i := 0; i < last; i++ {
		if err := c.code0(bytecode.Dup, 1); err != nil {
			return err
		}
		if err := c.codeStore(n.Variables[i]); err != nil {
			return err
		}
	}
	if valueNeeded {
		if err := c.code0(bytecode.Dup, 1); err != nil {
			return err
		}
	}
	return c.codeStore(n.Variables[last])
}

// codeStatements codes a block's statement sequence. isBlock selects
// the block-return terminator (RETBLOCK) over the method terminator
// (RET) for an implicit last-value return; an explicit `^expr` always
// ends in RET regardless of context, since a method-return unwinds
// through any enclosing block activations.
func (c *coder) codeStatements(statements []ast.Node, isBlock bool) error {
	if len(statements) == 0 {
		if err := c.code0(bytecode.PushNil, 1); err != nil {
			return err
		}
		return c.code0(bytecode.RetBlock, -1)
	}
	for _, stmt := range statements[:len(statements)-1] {
		if err := c.codeExpression(stmt, false); err != nil {
			return err
		}
	}
	last := statements[len(statements)-1]
	if ret, ok := last.(*ast.RetExp); ok {
		if err := c.codeExpression(ret.Expression, true); err != nil {
			return err
		}
		return c.code0(bytecode.Ret, -1)
	}
	if err := c.codeExpression(last, true); err != nil {
		return err
	}
	if isBlock {
		return c.code0(bytecode.RetBlock, -1)
	}
	return c.code0(bytecode.Ret, -1)
}

// codeMethodBody codes a whole method's top level. It differs from a
// block's statement sequence in two ways: there's no outer
// PUSHBLOCK/JUMP pair, and a discarded non-return final value falls
// back to returning self rather than a block result.
func (c *coder) codeMethodBody(n *ast.Method, lastValueNeeded bool) error {
	if len(n.Statements) == 0 {
		if err := c.code0(bytecode.PushSelf, 1); err != nil {
			return err
		}
		return c.code0(bytecode.Ret, -1)
	}
	for _, stmt := range n.Statements[:len(n.Statements)-1] {
		if err := c.codeExpression(stmt, false); err != nil {
			return err
		}
	}
	last := n.Statements[len(n.Statements)-1]
	if ret, ok := last.(*ast.RetExp); ok {
		if err := c.codeExpression(ret.Expression, true); err != nil {
			return err
		}
		return c.code0(bytecode.Ret, -1)
	}
	if lastValueNeeded {
		if err := c.codeExpression(last, true); err != nil {
			return err
		}
		return c.code0(bytecode.Ret, -1)
	}
	if err := c.codeExpression(last, false); err != nil {
		return err
	}
	if err := c.code0(bytecode.PushSelf, 1); err != nil {
		return err
	}
	return c.code0(bytecode.Ret, -1)
}

package compiler

import (
	"github.com/minitalklang/minitalk/pkg/ast"
	"github.com/minitalklang/minitalk/pkg/heap"
)

// CodeMethod is the method assembler (4.7): it runs the expression
// coder over method, then allocates the code ByteArray, the literal
// Array (materializing each table entry in order, since later
// literals in the table can only ever reference earlier ones by
// index, never the reverse), the CompiledMethod itself, and the
// Association binding its selector to it.
//
// lastValueNeeded selects method-vs-expression return discipline: true
// makes a discarded final non-return statement return its own value
// instead of self, which is what an interactive "doIt" evaluation
// wants.
//
// machine.Roots is reset to all-Nil before codeMethod starts, so a
// previous failed compile can never leak a half-built literal or
// method into this one.
func CodeMethod(machine *heap.Machine, method *ast.Method, lastValueNeeded bool) (compiledMethod, association heap.ObjPtr, err error) {
	machine.Roots.Reset(machine.Nil)

	c := newCoder(machine)
	if err := c.codeExpression(method, lastValueNeeded); err != nil {
		machine.Roots.Reset(machine.Nil)
		return nil, nil, err
	}

	if len(c.emitter.code) != 0 {
		machine.Roots.CompilerCode = machine.NewByteArray(c.emitter.code)
	} else {
		machine.Roots.CompilerCode = machine.Nil
	}

	if n := len(c.literals.nodes); n != 0 {
		literalsArray := machine.NewArray(n)
		machine.Roots.CompilerLiterals = literalsArray
		for i, node := range c.literals.nodes {
			lit, err := c.materializeLiteral(node)
			if err != nil {
				machine.Roots.Reset(machine.Nil)
				return nil, nil, err
			}
			literalsArray.Slots[i] = lit
		}
	} else {
		machine.Roots.CompilerLiterals = machine.Nil
	}

	machine.Roots.CompilerMethod = machine.NewCompiledMethod()
	cm := machine.Roots.CompilerMethod
	selector := machine.NewSymbol(method.Selector.Name)
	cm.Slots[heap.SelectorInCompiledMethod] = selector
	if method.Primitive != -1 {
		cm.Slots[heap.PrimitiveInCompiledMethod] = machine.NewSmallInteger(int64(method.Primitive))
	}
	cm.Slots[heap.NumberArgsInCompiledMethod] = machine.NewSmallInteger(int64(method.NumberArguments))
	cm.Slots[heap.TempSizeInCompiledMethod] = machine.NewSmallInteger(int64(method.NumberTemporaries))
	cm.Slots[heap.StackSizeInCompiledMethod] = machine.NewSmallInteger(int64(c.stack.max))
	cm.Slots[heap.BytecodesInCompiledMethod] = machine.Roots.CompilerCode
	cm.Slots[heap.LiteralsInCompiledMethod] = machine.Roots.CompilerLiterals

	machine.Roots.CompilerAssociation = machine.NewAssociation(selector, cm)

	compiledMethod = machine.Roots.CompilerMethod
	association = machine.Roots.CompilerAssociation
	return compiledMethod, association, nil
}

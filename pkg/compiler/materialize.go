package compiler

import (
	"github.com/minitalklang/minitalk/pkg/ast"
	"github.com/minitalklang/minitalk/pkg/heap"
)

// materializeLiteral turns one literal-table AST node into a heap
// object, leaving the result in c.machine.Roots.CompilerLiteral (and
// returning it directly, since Go callers don't need the root
// indirection the source relies on for GC safety).
//
// Array literals are the one case that allocates more than once while
// building a single literal: the element array is allocated, then
// each element is itself materialized (which may allocate), and only
// then written into the parent array's slot. The source's technique
// for keeping the in-progress array reachable through all of that is a
// LIFO chain of LinkedObject cons cells hung off the
// CompilerLiterals root, with the array currently under construction
// always at the head — so a nested array literal pushes a new link,
// builds its own slots, and pops back to its parent's link when done.
// We keep that exact structure here even though Go's collector makes
// it unnecessary for correctness, because it's still the clearest way
// to express "the array under construction right now" during the
// recursion, and it keeps this code legible against the design it's
// grounded on.
func (c *coder) materializeLiteral(node ast.Node) (heap.ObjPtr, error) {
	m := c.machine
	switch n := node.(type) {
	case *ast.Symbol:
		m.Roots.CompilerLiteral = m.NewSymbol(n.Name)
	case *ast.IntNum:
		m.Roots.CompilerLiteral = m.NewSmallInteger(n.Value)
	case *ast.FloNum:
		m.Roots.CompilerLiteral = m.NewFloat(n.Value)
	case *ast.String:
		m.Roots.CompilerLiteral = m.NewString(n.Value)
	case *ast.CharCon:
		m.Roots.CompilerLiteral = m.NewCharacter(n.Value)
	case *ast.Array:
		link := m.NewLinkedObject(m.Nil, m.Roots.CompilerLiterals)
		m.Roots.CompilerLiterals = link
		array := m.NewArray(len(n.Elements))
		link.Slots[heap.ObjectInLinkedObject] = array
		for i, el := range n.Elements {
			if _, err := c.materializeLiteral(el); err != nil {
				return nil, err
			}
			array.Slots[i] = m.Roots.CompilerLiteral
		}
		m.Roots.CompilerLiteral = link.Slots[heap.ObjectInLinkedObject]
		m.Roots.CompilerLiterals = link.Slots[heap.NextLinkInLinkedObject]
	case *ast.Variable:
		// Only shared (global) variable references ever reach the
		// literal table; every other kind loads without interning.
		m.Roots.CompilerLiteral = m.LookupGlobal(n.Record.Name)
	default:
		return nil, ErrIllegalLiteralNode
	}
	return m.Roots.CompilerLiteral, nil
}

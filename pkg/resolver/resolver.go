// Package resolver assigns every variable reference in a method tree
// its VariableRecord: which kind of variable it is, and — for
// instance variables, arguments and temporaries — its slot offset.
//
// The source keeps this as a pass that runs to completion before the
// generator ever sees the tree (initVariables/computeOffsets in the
// driver, ahead of codeMethod). MiniTalk's grammar declares every
// argument and temporary upfront (a method's argument list, then its
// `| a b c |` temporary declaration, then blocks' own `:x |`/`| t |`
// headers as they're parsed) so there's never a forward reference to a
// temporary or argument that hasn't been declared yet. That lets this
// package resolve each reference the moment the parser reaches it,
// instead of needing a second tree walk afterward — a deliberate
// simplification from a two-pass design to a one-pass one, recorded as
// an open-question resolution in DESIGN.md rather than a change in
// observable behavior: the VariableRecord a reference ends up with is
// identical either way.
//
// A Scope is owned by one method compilation. Arguments and
// temporaries — at the method level and in every nested block — share
// one flat offset frame, per the wire format's PUSHTEMP/STORETEMP
// opcodes addressing "argument/temporary at slot n" with no separate
// block-frame indirection.
package resolver

import (
	"github.com/minitalklang/minitalk/pkg/ast"
	"github.com/minitalklang/minitalk/pkg/heap"
)

// Scope resolves identifiers encountered while parsing a single
// method body (including all of its nested blocks) against the
// enclosing class and the temp/argument frame built up so far.
type Scope struct {
	class      *heap.Class
	records    map[string]*ast.VariableRecord
	nextSlot   int
	methodTemp int // count of temporaries declared directly on the method, not inside a block
}

// NewScope starts a fresh resolution scope for a method of class.
func NewScope(class *heap.Class) *Scope {
	return &Scope{class: class, records: make(map[string]*ast.VariableRecord)}
}

// DeclareArgument introduces name as the next method or block
// argument, returning the Variable node that owns its record.
func (s *Scope) DeclareArgument(name string) *ast.Variable {
	rec := &ast.VariableRecord{Kind: ast.KindArgument, Offset: s.nextSlot}
	s.nextSlot++
	s.records[name] = rec
	return &ast.Variable{Record: rec}
}

// DeclareTemporary introduces name as the next temporary. atMethodTop
// is true when this declaration is the method's own `| ... |` list
// (as opposed to a nested block's), which is the count that becomes
// ast.Method.NumberTemporaries.
func (s *Scope) DeclareTemporary(name string, atMethodTop bool) *ast.Variable {
	rec := &ast.VariableRecord{Kind: ast.KindTemporary, Offset: s.nextSlot}
	s.nextSlot++
	if atMethodTop {
		s.methodTemp++
	}
	s.records[name] = rec
	return &ast.Variable{Record: rec}
}

// MethodTempCount returns the number of temporaries declared directly
// on the method (excluding ones declared inside nested blocks).
func (s *Scope) MethodTempCount() int { return s.methodTemp }

// Resolve looks up name as a reference (not a declaration). It checks,
// in order: the four pseudo-variables, an already-declared
// argument/temporary, an instance variable of the class (or one of
// its superclasses), and finally falls back to a shared (global)
// variable reference resolved by name at literal-materialization
// time.
func (s *Scope) Resolve(name string) *ast.Variable {
	switch name {
	case "self":
		return &ast.Variable{Record: &ast.VariableRecord{Kind: ast.KindSelf}}
	case "super":
		return &ast.Variable{Record: &ast.VariableRecord{Kind: ast.KindSuper}}
	case "nil":
		return &ast.Variable{Record: &ast.VariableRecord{Kind: ast.KindNil}}
	case "false":
		return &ast.Variable{Record: &ast.VariableRecord{Kind: ast.KindFalse}}
	case "true":
		return &ast.Variable{Record: &ast.VariableRecord{Kind: ast.KindTrue}}
	}
	if rec, ok := s.records[name]; ok {
		return &ast.Variable{Record: rec}
	}
	if s.class != nil {
		if off := s.class.InstanceVarOffset(name); off != -1 {
			return &ast.Variable{Record: &ast.VariableRecord{Kind: ast.KindInstance, Offset: off}}
		}
	}
	return &ast.Variable{Record: &ast.VariableRecord{Kind: ast.KindShared, Name: name}}
}

// Package heap models the virtual machine's managed object memory: the
// heap the bytecode compiler allocates literals and CompiledMethods
// into, and the small set of scratch roots the compiler parks
// in-progress objects in while it builds them.
//
// In the system this is modeled on, the heap is a custom
// mark-and-sweep store and every pointer into it can be invalidated by
// a collection triggered from any allocation — so a partially built
// object that is only reachable through a local variable is unsafe the
// moment another allocation happens. The discipline there is to chain
// every in-progress object through one of a handful of named fields on
// a process-wide `machine` record, which the collector walks as roots.
//
// Go's runtime already tracks every reachable pointer precisely, so an
// Object referenced from a local variable can never be collected out
// from under its holder. We keep the Machine's scratch-root fields
// anyway (CompilerLiteral, CompilerLiterals, CompilerCode,
// CompilerMethod, CompilerAssociation, CompilerClass) because they are
// load-bearing for the *algorithm*, not just for GC safety: the array
// literal materializer in pkg/compiler uses CompilerLiterals as the
// head of a LIFO chain of in-progress arrays, exactly as the source
// design does, and the driver resets all of them to Nil between
// compiles so a failed compile can't retain a half-built literal. See
// DESIGN.md for the full writeup of this decision.
package heap

// Kind tags the representation an Object carries.
type Kind int

const (
	KindNil Kind = iota
	KindBoolean
	KindSmallInteger
	KindFloat
	KindString
	KindCharacter
	KindSymbol
	KindByteArray
	KindArray
	KindAssociation
	KindLinkedObject
	KindCompiledMethod
	KindBlockClosure
	KindInstance
	KindClass
)

// Slot indices within an Association's Slots.
const (
	KeyInAssociation = iota
	ValueInAssociation
	sizeOfAssociation
)

// Slot indices within a LinkedObject's Slots — the one-shot cons cell
// the literal materializer uses as a GC-safe recursion stack while it
// builds a nested Array literal.
const (
	ObjectInLinkedObject = iota
	NextLinkInLinkedObject
	sizeOfLinkedObject
)

// Slot indices within a CompiledMethod's Slots.
const (
	SelectorInCompiledMethod = iota
	PrimitiveInCompiledMethod
	NumberArgsInCompiledMethod
	TempSizeInCompiledMethod
	StackSizeInCompiledMethod
	BytecodesInCompiledMethod
	LiteralsInCompiledMethod
	SizeOfCompiledMethod
)

// Object is a single heap-resident value. Which fields are meaningful
// depends on Kind; this mirrors the source's tagged, fixed-layout
// object representation rather than using a Go interface per kind,
// since the compiler never needs polymorphic dispatch over objects —
// only the handful of constructors in this package do.
type Object struct {
	Kind  Kind
	Class *Class

	Int   int64
	Float float64
	Str   string
	Char  rune
	Bytes []byte

	// Slots holds pointer-valued fields: Array/ByteArray elements,
	// Association{Key,Value}, LinkedObject{Object,NextLink},
	// CompiledMethod's fixed fields, and Instance fields.
	Slots []ObjPtr

	// Opaque carries a VM-internal payload for KindBlockClosure (a
	// *vm.closure, holding the defining activation and code offset a
	// block needs to be invoked later, possibly from a different
	// activation entirely). The heap and bytecode packages never read
	// or write this field; it exists so pkg/vm doesn't need a second,
	// parallel object representation just for closures.
	Opaque any
}

// ObjPtr is a reference to a heap-resident Object. Using the bare
// pointer type (rather than a handle indirected through a table) is
// safe here precisely because Go's GC — unlike the hand-rolled
// collector this design is modeled on — never moves or frees a value
// still reachable from a live variable.
type ObjPtr = *Object

// Class describes a MiniTalk class: its instance variable layout and
// its method dictionary, keyed by selector. The method dictionary is
// populated by installing the Association a compile produces.
type Class struct {
	Name             string
	Superclass       *Class
	InstanceVarNames []string
	Methods          map[string]ObjPtr // selector -> Association(selector, CompiledMethod)
}

// NewClass creates a class with no methods installed yet.
func NewClass(name string, superclass *Class, instanceVarNames []string) *Class {
	return &Class{
		Name:             name,
		Superclass:       superclass,
		InstanceVarNames: instanceVarNames,
		Methods:          make(map[string]ObjPtr),
	}
}

// InstanceVarOffset returns the slot offset of the named instance
// variable, searching from the class up through its superclasses (so
// subclass-declared variables are numbered after inherited ones), or
// -1 if not found.
func (c *Class) InstanceVarOffset(name string) int {
	base := 0
	if c.Superclass != nil {
		base = c.Superclass.InstanceVarCount()
		if off := c.Superclass.InstanceVarOffset(name); off != -1 {
			return off
		}
	}
	for i, n := range c.InstanceVarNames {
		if n == name {
			return base + i
		}
	}
	return -1
}

// InstanceVarCount returns the total number of instance variable slots
// an instance of c carries, including inherited ones.
func (c *Class) InstanceVarCount() int {
	n := len(c.InstanceVarNames)
	if c.Superclass != nil {
		n += c.Superclass.InstanceVarCount()
	}
	return n
}

// LookupMethod searches c and its superclasses for selector.
func (c *Class) LookupMethod(selector string) (ObjPtr, *Class) {
	for cls := c; cls != nil; cls = cls.Superclass {
		if assoc, ok := cls.Methods[selector]; ok {
			return assoc, cls
		}
	}
	return nil, nil
}

// Install binds an Association produced by the compiler into the
// class's method dictionary under its selector.
func (c *Class) Install(association ObjPtr) {
	key := association.Slots[KeyInAssociation]
	c.Methods[key.Str] = association
}

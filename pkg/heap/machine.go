package heap

// Machine is the process-wide record the compiler and VM share. It
// owns the three pseudo-variable singletons (Nil, True, False), the
// symbol intern table, the global (class/pool variable) bindings, and
// the compiler's named scratch roots.
//
// A Machine is not safe for concurrent compiles: exactly one compile
// may be in flight against it at a time, matching the single-threaded,
// synchronous scheduling model the generator is specified against. A
// caller that needs concurrent compiles runs more than one Machine.
type Machine struct {
	Nil   ObjPtr
	True  ObjPtr
	False ObjPtr

	symbols map[string]ObjPtr
	globals ObjPtr // head of a LinkedObject chain of Associations; Nil when empty

	ByteArrayClass      *Class
	ArrayClass          *Class
	AssociationClass    *Class
	LinkedObjectClass   *Class
	CompiledMethodClass *Class
	SymbolClass         *Class
	StringClass         *Class
	CharacterClass      *Class
	SmallIntegerClass   *Class
	FloatClass          *Class
	BooleanClass        *Class

	// Roots is the compiler's scratch-root set. See the package doc
	// for why Go keeps these as an explicit algorithmic device rather
	// than a GC-safety requirement.
	Roots ScratchRoots

	allocations int
}

// ScratchRoots is the named root set a single compile threads its
// in-progress literal, code and method objects through.
type ScratchRoots struct {
	CompilerLiteral     ObjPtr
	CompilerLiterals    ObjPtr
	CompilerCode        ObjPtr
	CompilerMethod      ObjPtr
	CompilerAssociation ObjPtr
	CompilerClass       *Class
}

// Reset clears every scratch root. The driver calls this before every
// compile and again whenever a compile fails, so a failed compile
// cannot retain a half-built literal or method through a stale root.
func (r *ScratchRoots) Reset(nilObj ObjPtr) {
	r.CompilerLiteral = nilObj
	r.CompilerLiterals = nilObj
	r.CompilerCode = nilObj
	r.CompilerMethod = nilObj
	r.CompilerAssociation = nilObj
	r.CompilerClass = nil
}

// NewMachine builds a Machine with its singletons, base classes and an
// empty global dictionary ready to use.
func NewMachine() *Machine {
	m := &Machine{symbols: make(map[string]ObjPtr)}

	m.Nil = &Object{Kind: KindNil}
	m.True = &Object{Kind: KindBoolean, Int: 1}
	m.False = &Object{Kind: KindBoolean, Int: 0}
	m.globals = m.Nil

	m.ByteArrayClass = NewClass("ByteArray", nil, nil)
	m.ArrayClass = NewClass("Array", nil, nil)
	m.AssociationClass = NewClass("Association", nil, nil)
	m.LinkedObjectClass = NewClass("LinkedObject", nil, nil)
	m.CompiledMethodClass = NewClass("CompiledMethod", nil, nil)
	m.SymbolClass = NewClass("Symbol", nil, nil)
	m.StringClass = NewClass("String", nil, nil)
	m.CharacterClass = NewClass("Character", nil, nil)
	m.SmallIntegerClass = NewClass("SmallInteger", nil, nil)
	m.FloatClass = NewClass("Float", nil, nil)
	m.BooleanClass = NewClass("Boolean", nil, nil)

	m.Roots.Reset(m.Nil)
	return m
}

// allocate accounts for an allocation. It exists, rather than calling
// `&Object{}` directly everywhere, so a future caller can hang a real
// collection or allocation limit off this single choke point without
// touching every constructor.
func (m *Machine) allocate(obj ObjPtr) ObjPtr {
	m.allocations++
	return obj
}

// NewSymbol interns name, returning the same Object for repeated
// interning of the same name (Symbols are compared by identity at
// runtime, so interning is required for `==` to work on them).
func (m *Machine) NewSymbol(name string) ObjPtr {
	if sym, ok := m.symbols[name]; ok {
		return sym
	}
	sym := m.allocate(&Object{Kind: KindSymbol, Class: m.SymbolClass, Str: name})
	m.symbols[name] = sym
	return sym
}

// NewSmallInteger allocates a boxed integer literal.
func (m *Machine) NewSmallInteger(v int64) ObjPtr {
	return m.allocate(&Object{Kind: KindSmallInteger, Class: m.SmallIntegerClass, Int: v})
}

// NewFloat allocates a boxed floating point literal.
func (m *Machine) NewFloat(v float64) ObjPtr {
	return m.allocate(&Object{Kind: KindFloat, Class: m.FloatClass, Float: v})
}

// NewString allocates a String object.
func (m *Machine) NewString(v string) ObjPtr {
	return m.allocate(&Object{Kind: KindString, Class: m.StringClass, Str: v})
}

// NewCharacter allocates a Character object.
func (m *Machine) NewCharacter(v rune) ObjPtr {
	return m.allocate(&Object{Kind: KindCharacter, Class: m.CharacterClass, Char: v})
}

// NewByteArray allocates a ByteArray holding a copy of data.
func (m *Machine) NewByteArray(data []byte) ObjPtr {
	buf := make([]byte, len(data))
	copy(buf, data)
	return m.allocate(&Object{Kind: KindByteArray, Class: m.ByteArrayClass, Bytes: buf})
}

// NewArray allocates an indexable Array of length size, with every
// slot initialized to Nil.
func (m *Machine) NewArray(size int) ObjPtr {
	slots := make([]ObjPtr, size)
	for i := range slots {
		slots[i] = m.Nil
	}
	return m.allocate(&Object{Kind: KindArray, Class: m.ArrayClass, Slots: slots})
}

// NewLinkedObject allocates a one-shot cons cell: object followed by
// the rest of the chain in next.
func (m *Machine) NewLinkedObject(object, next ObjPtr) ObjPtr {
	return m.allocate(&Object{
		Kind:  KindLinkedObject,
		Class: m.LinkedObjectClass,
		Slots: []ObjPtr{ObjectInLinkedObject: object, NextLinkInLinkedObject: next},
	})
}

// NewAssociation allocates a (key, value) pair.
func (m *Machine) NewAssociation(key, value ObjPtr) ObjPtr {
	return m.allocate(&Object{
		Kind:  KindAssociation,
		Class: m.AssociationClass,
		Slots: []ObjPtr{KeyInAssociation: key, ValueInAssociation: value},
	})
}

// NewCompiledMethod allocates an all-Nil CompiledMethod shell, ready
// for the method assembler to populate field by field.
func (m *Machine) NewCompiledMethod() ObjPtr {
	slots := make([]ObjPtr, SizeOfCompiledMethod)
	for i := range slots {
		slots[i] = m.Nil
	}
	return m.allocate(&Object{Kind: KindCompiledMethod, Class: m.CompiledMethodClass, Slots: slots})
}

// NewInstance allocates a fresh instance of class, every field Nil.
func (m *Machine) NewInstance(class *Class) ObjPtr {
	slots := make([]ObjPtr, class.InstanceVarCount())
	for i := range slots {
		slots[i] = m.Nil
	}
	return m.allocate(&Object{Kind: KindInstance, Class: class, Slots: slots})
}

// NewBlockClosure allocates a block closure object wrapping opaque,
// the VM-internal closure payload (see Object.Opaque).
func (m *Machine) NewBlockClosure(opaque any) ObjPtr {
	return m.allocate(&Object{Kind: KindBlockClosure, Opaque: opaque})
}

// DefineGlobal binds name to value in the global dictionary, pushing a
// fresh Association onto the chain. It does not check for an existing
// binding; redefinition shadows rather than mutates, matching how a
// fresh class or pool-variable install would behave in the image this
// models.
func (m *Machine) DefineGlobal(name string, value ObjPtr) ObjPtr {
	assoc := m.NewAssociation(m.NewSymbol(name), value)
	m.globals = m.NewLinkedObject(assoc, m.globals)
	return assoc
}

// LookupGlobal performs the linear scan over the global association
// chain described by the generator's literal materializer, returning
// the Association itself (not its value) so the runtime can later
// rebind the global and have every holder of the Association see the
// change.
//
// The original implementation compared only strncmp(key, name,
// len(name)) bytes, so an association whose key was a proper prefix of
// the search name would wrongly match (e.g. looking up "Object2" could
// match the "Object" binding first laid down). This resolves the
// spec's documented open question in favor of the fix: full-length
// equality, not just a length-of-the-needle prefix compare.
func (m *Machine) LookupGlobal(name string) ObjPtr {
	for link := m.globals; link != m.Nil; link = link.Slots[NextLinkInLinkedObject] {
		assoc := link.Slots[ObjectInLinkedObject]
		key := assoc.Slots[KeyInAssociation]
		if key.Str == name {
			return assoc
		}
	}
	return m.Nil
}

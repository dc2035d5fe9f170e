// Package ast defines the Abstract Syntax Tree nodes produced by the
// MiniTalk parser and consumed by the bytecode compiler.
//
// Unlike a general-purpose language AST, MiniTalk's tree is small and
// closed: a method body is built entirely out of the variants declared
// in this file. There is no plugin mechanism and no dynamic dispatch
// on node behavior — the compiler recovers the variant with a type
// switch and acts on it directly. Node only exists so the tree can be
// stored and passed around with a single type; all of the interesting
// behavior lives in the compiler's recursive descent over the variants.
//
// Tree ownership: the parser builds the tree and the driver that calls
// the compiler owns it for the duration of a single compile. The
// compiler never mutates a node; it only reads the tree while it
// assembles code and literals.
package ast

// Node is the marker interface implemented by every AST variant. It
// carries no behavior; its only purpose is to let the tree be
// represented with one type while recursive descent uses a type
// switch to tell the variants apart.
type Node interface {
	node()
}

// Symbol is a literal symbol, e.g. #foo or a bare selector appearing
// in literal position (#(foo bar)).
type Symbol struct {
	Name string
}

func (*Symbol) node() {}

// IntNum is an integer literal.
type IntNum struct {
	Value int64
}

func (*IntNum) node() {}

// FloNum is a floating point literal.
type FloNum struct {
	Value float64
}

func (*FloNum) node() {}

// String is a string literal, 'like this'.
type String struct {
	Value string
}

func (*String) node() {}

// CharCon is a character literal, $x.
type CharCon struct {
	Value rune
}

func (*CharCon) node() {}

// Array is a literal array, #(1 2 'three' #four). Elements are
// themselves literal nodes (numbers, strings, characters, symbols, or
// nested arrays) — never arbitrary expressions.
type Array struct {
	Elements []Node
}

func (*Array) node() {}

// VariableKind tags how a Variable reference resolved. The resolver
// (an external pass, not part of this package) fills in a
// VariableRecord for every identifier the parser encounters; the
// compiler only reads the Kind and Offset fields to decide which
// opcode to emit.
type VariableKind int

const (
	// KindSelf marks a reference to the method receiver.
	KindSelf VariableKind = iota
	// KindSuper marks a reference to the receiver used as a super
	// send target; loads the same way as KindSelf.
	KindSuper
	// KindNil, KindFalse, KindTrue are the three pseudo-variable
	// literals baked into the language.
	KindNil
	KindFalse
	KindTrue
	// KindInstance is an instance variable of the method's class,
	// addressed by Offset.
	KindInstance
	// KindArgument is a method or block argument, addressed by
	// Offset in the shared argument/temporary frame.
	KindArgument
	// KindTemporary is a method or block temporary, addressed by
	// Offset in the same frame as arguments.
	KindTemporary
	// KindShared is a reference to a global binding (a class name or
	// a pool/global variable); Name is used to look up the backing
	// Association at literal-materialization time.
	KindShared
)

// VariableRecord is produced by the resolver and attached to every
// Variable node. The generator treats it as read-only.
type VariableRecord struct {
	Kind   VariableKind
	Offset int    // meaningful for KindInstance/KindArgument/KindTemporary
	Name   string // meaningful for KindShared (global lookup key)
}

// Variable is a reference to a variable: an identifier that the
// resolver has already classified into a VariableRecord. The same
// node type backs both loads and stores — whether an occurrence is a
// load or a store depends entirely on where it sits in the tree
// (e.g. as an Assign target vs. a bare expression).
type Variable struct {
	Record *VariableRecord
}

func (*Variable) node() {}

// Block is a lexically scoped, deferred-evaluation closure literal.
// NumberVariables is the combined count of block arguments and block
// temporaries; Variables lists them in declaration order (arguments
// first) so the compiler can emit their initial stores in that order;
// the VM pushes them with the first declared variable on top, so each
// store pops the value meant for its variable.
type Block struct {
	NumberVariables int
	Variables       []*Variable
	Statements      []Node
}

func (*Block) node() {}

// Message is a message send. Receiver is nil exactly when this
// Message is an inner send of a Cascade — in that case the receiver
// is already sitting on the stack from the cascade's own receiver
// expression.
type Message struct {
	Receiver  Node
	Selector  *Symbol
	Arguments []Node
	SuperFlag bool
}

func (*Message) node() {}

// Cascade sends multiple messages to one receiver. Receiver is coded
// once; Messages is the non-empty list of sends against it, each with
// a nil Message.Receiver.
type Cascade struct {
	Receiver Node
	Messages []*Message
}

func (*Cascade) node() {}

// Assign stores the value of Expression into one or more variables,
// left to right, e.g. `a := b := 5`. Variables is non-empty.
type Assign struct {
	Variables  []*Variable
	Expression Node
}

func (*Assign) node() {}

// RetExp is an explicit `^expression` return. Appearing as a method's
// last statement it compiles to a method return (RET); appearing as a
// block's last statement it still compiles to a method return — it
// unwinds through any enclosing block activations, unlike an implicit
// block result.
type RetExp struct {
	Expression Node
}

func (*RetExp) node() {}

// Method is the root of a compiled method's tree. Primitive is -1
// when no VM primitive is attached.
type Method struct {
	Selector          *Symbol
	NumberArguments   int
	NumberTemporaries int
	Primitive         int
	Statements        []Node
}

func (*Method) node() {}

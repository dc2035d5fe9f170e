package vm

import (
	"fmt"
	"strings"

	"github.com/minitalklang/minitalk/pkg/heap"
)

// TranscriptClassName names the class of the well-known Transcript
// object a hosting program binds into the global dictionary so
// MiniTalk code can print. It carries no state of its own; every
// Transcript selector is handled as a primitive below.
const TranscriptClassName = "Transcript"

// NewTranscript allocates the singleton Transcript object. Callers
// bind it with machine.DefineGlobal("Transcript", vm.NewTranscript(machine)).
func NewTranscript(machine *heap.Machine) heap.ObjPtr {
	class := heap.NewClass(TranscriptClassName, nil, nil)
	return machine.NewInstance(class)
}

// primitive tries the builtin operations every MiniTalk image gets for
// free: SmallInteger and Float arithmetic/comparison, String/Symbol/
// Character basics, and Transcript output. handled is false when
// selector isn't one of these, so the caller falls through to a
// user-defined method lookup.
func (vm *VM) primitive(receiver heap.ObjPtr, selector string, args []heap.ObjPtr) (result heap.ObjPtr, handled bool, err error) {
	if receiver == nil {
		return nil, false, nil
	}

	if receiver.Kind == heap.KindInstance && receiver.Class != nil && receiver.Class.Name == TranscriptClassName {
		return vm.transcriptPrimitive(receiver, selector, args)
	}

	switch receiver.Kind {
	case heap.KindSmallInteger:
		return vm.integerPrimitive(receiver, selector, args)
	case heap.KindFloat:
		return vm.floatPrimitive(receiver, selector, args)
	case heap.KindString, heap.KindSymbol:
		return vm.stringPrimitive(receiver, selector, args)
	case heap.KindCharacter:
		return vm.characterPrimitive(receiver, selector, args)
	case heap.KindBoolean:
		return vm.booleanPrimitive(receiver, selector, args)
	default:
		return vm.commonPrimitive(receiver, selector, args)
	}
}

func (vm *VM) transcriptPrimitive(receiver heap.ObjPtr, selector string, args []heap.ObjPtr) (heap.ObjPtr, bool, error) {
	switch selector {
	case "show:":
		vm.write(displayString(args[0]))
		return receiver, true, nil
	case "showCr:":
		vm.write(displayString(args[0]) + "\n")
		return receiver, true, nil
	case "cr":
		vm.write("\n")
		return receiver, true, nil
	default:
		return nil, false, nil
	}
}

func (vm *VM) write(s string) {
	if vm.Out != nil {
		vm.Out(s)
	}
}

func (vm *VM) integerPrimitive(receiver heap.ObjPtr, selector string, args []heap.ObjPtr) (heap.ObjPtr, bool, error) {
	m := vm.Machine
	if len(args) == 1 && args[0].Kind == heap.KindFloat {
		return vm.floatPrimitive(m.NewFloat(float64(receiver.Int)), selector, args)
	}
	if len(args) == 1 && args[0].Kind == heap.KindSmallInteger {
		a, b := receiver.Int, args[0].Int
		switch selector {
		case "+":
			return m.NewSmallInteger(a + b), true, nil
		case "-":
			return m.NewSmallInteger(a - b), true, nil
		case "*":
			return m.NewSmallInteger(a * b), true, nil
		case "/":
			if b == 0 {
				return nil, true, &RuntimeError{Message: "division by zero"}
			}
			if a%b == 0 {
				return m.NewSmallInteger(a / b), true, nil
			}
			return m.NewFloat(float64(a) / float64(b)), true, nil
		case "//":
			if b == 0 {
				return nil, true, &RuntimeError{Message: "division by zero"}
			}
			return m.NewSmallInteger(floorDiv(a, b)), true, nil
		case "\\\\":
			if b == 0 {
				return nil, true, &RuntimeError{Message: "division by zero"}
			}
			return m.NewSmallInteger(a - floorDiv(a, b)*b), true, nil
		case "<":
			return vm.boolObj(a < b), true, nil
		case ">":
			return vm.boolObj(a > b), true, nil
		case "<=":
			return vm.boolObj(a <= b), true, nil
		case ">=":
			return vm.boolObj(a >= b), true, nil
		case "=":
			return vm.boolObj(a == b), true, nil
		case "~=":
			return vm.boolObj(a != b), true, nil
		}
	}
	switch selector {
	case "negated":
		return m.NewSmallInteger(-receiver.Int), true, nil
	case "abs":
		if receiver.Int < 0 {
			return m.NewSmallInteger(-receiver.Int), true, nil
		}
		return receiver, true, nil
	case "asFloat":
		return m.NewFloat(float64(receiver.Int)), true, nil
	case "printString", "displayString":
		return m.NewString(fmt.Sprintf("%d", receiver.Int)), true, nil
	case "even":
		return vm.boolObj(receiver.Int%2 == 0), true, nil
	case "odd":
		return vm.boolObj(receiver.Int%2 != 0), true, nil
	case "printNl":
		vm.write(fmt.Sprintf("%d\n", receiver.Int))
		return receiver, true, nil
	case "timesRepeat:":
		return vm.timesRepeat(receiver, args)
	}
	return nil, false, nil
}

func (vm *VM) timesRepeat(receiver heap.ObjPtr, args []heap.ObjPtr) (heap.ObjPtr, bool, error) {
	if len(args) != 1 || args[0].Kind != heap.KindBlockClosure {
		return nil, false, nil
	}
	for i := int64(0); i < receiver.Int; i++ {
		if _, err := vm.invokeBlock(args[0], nil); err != nil {
			return nil, true, err
		}
	}
	return receiver, true, nil
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func (vm *VM) floatPrimitive(receiver heap.ObjPtr, selector string, args []heap.ObjPtr) (heap.ObjPtr, bool, error) {
	m := vm.Machine
	if len(args) == 1 && (args[0].Kind == heap.KindFloat || args[0].Kind == heap.KindSmallInteger) {
		a := receiver.Float
		b := args[0].Float
		if args[0].Kind == heap.KindSmallInteger {
			b = float64(args[0].Int)
		}
		switch selector {
		case "+":
			return m.NewFloat(a + b), true, nil
		case "-":
			return m.NewFloat(a - b), true, nil
		case "*":
			return m.NewFloat(a * b), true, nil
		case "/":
			if b == 0 {
				return nil, true, &RuntimeError{Message: "division by zero"}
			}
			return m.NewFloat(a / b), true, nil
		case "<":
			return vm.boolObj(a < b), true, nil
		case ">":
			return vm.boolObj(a > b), true, nil
		case "<=":
			return vm.boolObj(a <= b), true, nil
		case ">=":
			return vm.boolObj(a >= b), true, nil
		case "=":
			return vm.boolObj(a == b), true, nil
		case "~=":
			return vm.boolObj(a != b), true, nil
		}
	}
	switch selector {
	case "negated":
		return m.NewFloat(-receiver.Float), true, nil
	case "truncated":
		return m.NewSmallInteger(int64(receiver.Float)), true, nil
	case "printString", "displayString":
		return m.NewString(fmt.Sprintf("%g", receiver.Float)), true, nil
	case "printNl":
		vm.write(fmt.Sprintf("%g\n", receiver.Float))
		return receiver, true, nil
	}
	return nil, false, nil
}

func (vm *VM) stringPrimitive(receiver heap.ObjPtr, selector string, args []heap.ObjPtr) (heap.ObjPtr, bool, error) {
	m := vm.Machine
	switch selector {
	case ",":
		if len(args) == 1 && (args[0].Kind == heap.KindString || args[0].Kind == heap.KindSymbol) {
			return m.NewString(receiver.Str + args[0].Str), true, nil
		}
	case "=":
		if len(args) == 1 {
			return vm.boolObj((args[0].Kind == heap.KindString || args[0].Kind == heap.KindSymbol) && args[0].Str == receiver.Str), true, nil
		}
	case "size":
		return m.NewSmallInteger(int64(len([]rune(receiver.Str)))), true, nil
	case "asUppercase":
		return m.NewString(strings.ToUpper(receiver.Str)), true, nil
	case "asLowercase":
		return m.NewString(strings.ToLower(receiver.Str)), true, nil
	case "asString":
		return m.NewString(receiver.Str), true, nil
	case "asSymbol":
		return m.NewSymbol(receiver.Str), true, nil
	case "isEmpty":
		return vm.boolObj(receiver.Str == ""), true, nil
	case "printString", "displayString":
		return m.NewString(receiver.Str), true, nil
	case "printNl":
		vm.write(receiver.Str + "\n")
		return receiver, true, nil
	}
	return nil, false, nil
}

func (vm *VM) characterPrimitive(receiver heap.ObjPtr, selector string, args []heap.ObjPtr) (heap.ObjPtr, bool, error) {
	m := vm.Machine
	switch selector {
	case "asInteger":
		return m.NewSmallInteger(int64(receiver.Char)), true, nil
	case "asString":
		return m.NewString(string(receiver.Char)), true, nil
	case "=":
		if len(args) == 1 && args[0].Kind == heap.KindCharacter {
			return vm.boolObj(args[0].Char == receiver.Char), true, nil
		}
	case "printNl":
		vm.write(string(receiver.Char) + "\n")
		return receiver, true, nil
	}
	return nil, false, nil
}

func (vm *VM) booleanPrimitive(receiver heap.ObjPtr, selector string, args []heap.ObjPtr) (heap.ObjPtr, bool, error) {
	truth := receiver.Int != 0
	switch selector {
	case "ifTrue:":
		if len(args) == 1 && args[0].Kind == heap.KindBlockClosure {
			if truth {
				v, err := vm.invokeBlock(args[0], nil)
				return v, true, err
			}
			return vm.Machine.Nil, true, nil
		}
	case "ifFalse:":
		if len(args) == 1 && args[0].Kind == heap.KindBlockClosure {
			if !truth {
				v, err := vm.invokeBlock(args[0], nil)
				return v, true, err
			}
			return vm.Machine.Nil, true, nil
		}
	case "ifTrue:ifFalse:":
		if len(args) == 2 && args[0].Kind == heap.KindBlockClosure && args[1].Kind == heap.KindBlockClosure {
			branch := args[1]
			if truth {
				branch = args[0]
			}
			v, err := vm.invokeBlock(branch, nil)
			return v, true, err
		}
	case "not":
		return vm.boolObj(!truth), true, nil
	case "&":
		if len(args) == 1 {
			return vm.boolObj(truth && args[0].Int != 0), true, nil
		}
	case "|":
		if len(args) == 1 {
			return vm.boolObj(truth || args[0].Int != 0), true, nil
		}
	case "printNl":
		vm.write(fmt.Sprintf("%v\n", truth))
		return receiver, true, nil
	}
	return nil, false, nil
}

// commonPrimitive handles selectors meaningful on any object: identity
// comparison and the whileTrue:-style control-flow messages sent to
// block receivers.
func (vm *VM) commonPrimitive(receiver heap.ObjPtr, selector string, args []heap.ObjPtr) (heap.ObjPtr, bool, error) {
	switch selector {
	case "==":
		if len(args) == 1 {
			return vm.boolObj(receiver == args[0]), true, nil
		}
	case "~~":
		if len(args) == 1 {
			return vm.boolObj(receiver != args[0]), true, nil
		}
	case "isNil":
		return vm.boolObj(receiver.Kind == heap.KindNil), true, nil
	case "notNil":
		return vm.boolObj(receiver.Kind != heap.KindNil), true, nil
	}
	if receiver.Kind == heap.KindBlockClosure {
		return vm.blockControlFlow(receiver, selector, args)
	}
	return nil, false, nil
}

func (vm *VM) blockControlFlow(receiver heap.ObjPtr, selector string, args []heap.ObjPtr) (heap.ObjPtr, bool, error) {
	switch selector {
	case "whileTrue:":
		if len(args) != 1 || args[0].Kind != heap.KindBlockClosure {
			return nil, false, nil
		}
		for {
			cond, err := vm.invokeBlock(receiver, nil)
			if err != nil {
				return nil, true, err
			}
			if cond.Kind != heap.KindBoolean || cond.Int == 0 {
				break
			}
			if _, err := vm.invokeBlock(args[0], nil); err != nil {
				return nil, true, err
			}
		}
		return vm.Machine.Nil, true, nil
	case "whileFalse:":
		if len(args) != 1 || args[0].Kind != heap.KindBlockClosure {
			return nil, false, nil
		}
		for {
			cond, err := vm.invokeBlock(receiver, nil)
			if err != nil {
				return nil, true, err
			}
			if cond.Kind != heap.KindBoolean || cond.Int != 0 {
				break
			}
			if _, err := vm.invokeBlock(args[0], nil); err != nil {
				return nil, true, err
			}
		}
		return vm.Machine.Nil, true, nil
	}
	return nil, false, nil
}

func (vm *VM) boolObj(v bool) heap.ObjPtr {
	if v {
		return vm.Machine.True
	}
	return vm.Machine.False
}

// DisplayString renders obj the way Transcript show:/printNl do, for a
// hosting program (the CLI, a REPL) that wants to show a send's result
// without reimplementing this repo's display conventions.
func DisplayString(obj heap.ObjPtr) string {
	return displayString(obj)
}

func displayString(obj heap.ObjPtr) string {
	switch obj.Kind {
	case heap.KindString, heap.KindSymbol:
		return obj.Str
	case heap.KindSmallInteger:
		return fmt.Sprintf("%d", obj.Int)
	case heap.KindFloat:
		return fmt.Sprintf("%g", obj.Float)
	case heap.KindCharacter:
		return string(obj.Char)
	case heap.KindNil:
		return "nil"
	case heap.KindBoolean:
		return fmt.Sprintf("%v", obj.Int != 0)
	default:
		return "a " + className(obj)
	}
}

func className(obj heap.ObjPtr) string {
	if obj.Class != nil {
		return obj.Class.Name
	}
	return "Object"
}

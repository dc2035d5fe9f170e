// Package bytecode also provides serialization for compiled methods,
// so a MiniTalk image can ship pre-compiled `.mtb` method bodies
// instead of recompiling source text on every load.
//
// Binary Format Layout:
//
//	[Header]
//	  Magic Number (4 bytes): "MTLK" (0x4D544C4B)
//	  Version (4 bytes): format version, currently 1
//
//	[Method]
//	  Selector (string)
//	  Primitive (int32, -1 if absent)
//	  NumberArguments (int32)
//	  TempSize (int32)
//	  StackSize (int32)
//	  Code length (uint32) + raw bytecode bytes
//	  Literal count (uint32), then each literal
//
// Literal Types:
//
//	0x01 Integer   (int64)
//	0x02 Float     (float64)
//	0x03 String    (uint32 length + UTF-8 bytes)
//	0x04 Character (uint32 rune)
//	0x05 Symbol    (uint32 length + UTF-8 bytes)
//	0x06 Array     (uint32 count, then each element recursively)
//	0x07 Global    (uint32 length + UTF-8 name; re-resolved by LookupGlobal on load)
//
// This mirrors the layout a stock-image bytecode compiler would use to
// cache compiled methods on disk: compact, versioned, and a direct
// structural image of the in-memory CompiledMethod.
package bytecode

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/minitalklang/minitalk/pkg/heap"
)

const (
	// MagicNumber is the file signature for .mtb method files.
	MagicNumber uint32 = 0x4D544C4B
	// FormatVersion is the current .mtb format version.
	FormatVersion uint32 = 1
)

const (
	litInteger byte = 0x01
	litFloat   byte = 0x02
	litString  byte = 0x03
	litChar    byte = 0x04
	litSymbol  byte = 0x05
	litArray   byte = 0x06
	litGlobal  byte = 0x07
)

// EncodeMethod writes a CompiledMethod object (as laid out in
// pkg/heap) to w in the .mtb binary format.
func EncodeMethod(method heap.ObjPtr, w io.Writer) error {
	if err := binary.Write(w, binary.BigEndian, MagicNumber); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, FormatVersion); err != nil {
		return err
	}

	selector := method.Slots[heap.SelectorInCompiledMethod]
	if err := writeString(w, selector.Str); err != nil {
		return err
	}

	primitive := int32(-1)
	if prim := method.Slots[heap.PrimitiveInCompiledMethod]; prim.Kind == heap.KindSmallInteger {
		primitive = int32(prim.Int)
	}
	for _, v := range []int32{
		primitive,
		int32(method.Slots[heap.NumberArgsInCompiledMethod].Int),
		int32(method.Slots[heap.TempSizeInCompiledMethod].Int),
		int32(method.Slots[heap.StackSizeInCompiledMethod].Int),
	} {
		if err := binary.Write(w, binary.BigEndian, v); err != nil {
			return err
		}
	}

	code := method.Slots[heap.BytecodesInCompiledMethod]
	var codeBytes []byte
	if code.Kind == heap.KindByteArray {
		codeBytes = code.Bytes
	}
	if err := binary.Write(w, binary.BigEndian, uint32(len(codeBytes))); err != nil {
		return err
	}
	if _, err := w.Write(codeBytes); err != nil {
		return err
	}

	literals := method.Slots[heap.LiteralsInCompiledMethod]
	var count uint32
	if literals.Kind == heap.KindArray {
		count = uint32(len(literals.Slots))
	}
	if err := binary.Write(w, binary.BigEndian, count); err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		if err := encodeLiteral(literals.Slots[i], w); err != nil {
			return err
		}
	}
	return nil
}

func encodeLiteral(obj heap.ObjPtr, w io.Writer) error {
	switch obj.Kind {
	case heap.KindSmallInteger:
		if _, err := w.Write([]byte{litInteger}); err != nil {
			return err
		}
		return binary.Write(w, binary.BigEndian, obj.Int)
	case heap.KindFloat:
		if _, err := w.Write([]byte{litFloat}); err != nil {
			return err
		}
		return binary.Write(w, binary.BigEndian, obj.Float)
	case heap.KindString:
		if _, err := w.Write([]byte{litString}); err != nil {
			return err
		}
		return writeString(w, obj.Str)
	case heap.KindCharacter:
		if _, err := w.Write([]byte{litChar}); err != nil {
			return err
		}
		return binary.Write(w, binary.BigEndian, uint32(obj.Char))
	case heap.KindSymbol:
		if _, err := w.Write([]byte{litSymbol}); err != nil {
			return err
		}
		return writeString(w, obj.Str)
	case heap.KindArray:
		if _, err := w.Write([]byte{litArray}); err != nil {
			return err
		}
		if err := binary.Write(w, binary.BigEndian, uint32(len(obj.Slots))); err != nil {
			return err
		}
		for _, el := range obj.Slots {
			if err := encodeLiteral(el, w); err != nil {
				return err
			}
		}
		return nil
	case heap.KindAssociation:
		if _, err := w.Write([]byte{litGlobal}); err != nil {
			return err
		}
		key := obj.Slots[heap.KeyInAssociation]
		return writeString(w, key.Str)
	default:
		return fmt.Errorf("bytecode: cannot encode literal of kind %v", obj.Kind)
	}
}

// DecodeMethod reads a .mtb file from r, materializing a fresh
// CompiledMethod in machine's heap.
func DecodeMethod(r io.Reader, machine *heap.Machine) (heap.ObjPtr, error) {
	var magic, version uint32
	if err := binary.Read(r, binary.BigEndian, &magic); err != nil {
		return nil, err
	}
	if magic != MagicNumber {
		return nil, fmt.Errorf("bytecode: bad magic number 0x%08x", magic)
	}
	if err := binary.Read(r, binary.BigEndian, &version); err != nil {
		return nil, err
	}
	if version != FormatVersion {
		return nil, fmt.Errorf("bytecode: unsupported format version %d", version)
	}

	selectorName, err := readString(r)
	if err != nil {
		return nil, err
	}

	var primitive, numArgs, tempSize, stackSize int32
	for _, v := range []*int32{&primitive, &numArgs, &tempSize, &stackSize} {
		if err := binary.Read(r, binary.BigEndian, v); err != nil {
			return nil, err
		}
	}

	var codeLen uint32
	if err := binary.Read(r, binary.BigEndian, &codeLen); err != nil {
		return nil, err
	}
	codeBytes := make([]byte, codeLen)
	if _, err := io.ReadFull(r, codeBytes); err != nil {
		return nil, err
	}

	var litCount uint32
	if err := binary.Read(r, binary.BigEndian, &litCount); err != nil {
		return nil, err
	}
	literalsObj := machine.Nil
	if litCount > 0 {
		literalsObj = machine.NewArray(int(litCount))
		for i := uint32(0); i < litCount; i++ {
			lit, err := decodeLiteral(r, machine)
			if err != nil {
				return nil, err
			}
			literalsObj.Slots[i] = lit
		}
	}

	method := machine.NewCompiledMethod()
	method.Slots[heap.SelectorInCompiledMethod] = machine.NewSymbol(selectorName)
	if primitive != -1 {
		method.Slots[heap.PrimitiveInCompiledMethod] = machine.NewSmallInteger(int64(primitive))
	}
	method.Slots[heap.NumberArgsInCompiledMethod] = machine.NewSmallInteger(int64(numArgs))
	method.Slots[heap.TempSizeInCompiledMethod] = machine.NewSmallInteger(int64(tempSize))
	method.Slots[heap.StackSizeInCompiledMethod] = machine.NewSmallInteger(int64(stackSize))
	if codeLen > 0 {
		method.Slots[heap.BytecodesInCompiledMethod] = machine.NewByteArray(codeBytes)
	} else {
		method.Slots[heap.BytecodesInCompiledMethod] = machine.Nil
	}
	method.Slots[heap.LiteralsInCompiledMethod] = literalsObj
	return method, nil
}

func decodeLiteral(r io.Reader, machine *heap.Machine) (heap.ObjPtr, error) {
	var tag [1]byte
	if _, err := io.ReadFull(r, tag[:]); err != nil {
		return nil, err
	}
	switch tag[0] {
	case litInteger:
		var v int64
		if err := binary.Read(r, binary.BigEndian, &v); err != nil {
			return nil, err
		}
		return machine.NewSmallInteger(v), nil
	case litFloat:
		var v float64
		if err := binary.Read(r, binary.BigEndian, &v); err != nil {
			return nil, err
		}
		return machine.NewFloat(v), nil
	case litString:
		s, err := readString(r)
		if err != nil {
			return nil, err
		}
		return machine.NewString(s), nil
	case litChar:
		var v uint32
		if err := binary.Read(r, binary.BigEndian, &v); err != nil {
			return nil, err
		}
		return machine.NewCharacter(rune(v)), nil
	case litSymbol:
		s, err := readString(r)
		if err != nil {
			return nil, err
		}
		return machine.NewSymbol(s), nil
	case litArray:
		var count uint32
		if err := binary.Read(r, binary.BigEndian, &count); err != nil {
			return nil, err
		}
		arr := machine.NewArray(int(count))
		for i := uint32(0); i < count; i++ {
			el, err := decodeLiteral(r, machine)
			if err != nil {
				return nil, err
			}
			arr.Slots[i] = el
		}
		return arr, nil
	case litGlobal:
		name, err := readString(r)
		if err != nil {
			return nil, err
		}
		return machine.LookupGlobal(name), nil
	default:
		return nil, fmt.Errorf("bytecode: unknown literal tag 0x%02x", tag[0])
	}
}

func writeString(w io.Writer, s string) error {
	if err := binary.Write(w, binary.BigEndian, uint32(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func readString(r io.Reader) (string, error) {
	var n uint32
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

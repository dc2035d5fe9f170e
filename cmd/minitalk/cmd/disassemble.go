package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/minitalklang/minitalk/pkg/bytecode"
	"github.com/minitalklang/minitalk/pkg/heap"
	"github.com/spf13/cobra"
)

var (
	disasmClassName string
	disasmVars      string
	disasmPrimitive int
)

var disassembleCmd = &cobra.Command{
	Use:   "disassemble <file>",
	Short: "Print the bytecode of a .mtb file or a MiniTalk method source file",
	Args:  cobra.ExactArgs(1),
	RunE:  runDisassemble,
}

func init() {
	disassembleCmd.Flags().StringVar(&disasmClassName, "class", "DoIt", "scratch class name, when disassembling source")
	disassembleCmd.Flags().StringVar(&disasmVars, "vars", "", "comma-separated instance variable names, when disassembling source")
	disassembleCmd.Flags().IntVar(&disasmPrimitive, "primitive", -1, "primitive pragma number, when disassembling source")
}

func runDisassemble(cmd *cobra.Command, args []string) error {
	path := args[0]
	machine := heap.NewMachine()

	var method heap.ObjPtr
	if strings.HasSuffix(path, ".mtb") {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("opening %s: %w", path, err)
		}
		defer f.Close()
		method, err = bytecode.DecodeMethod(f, machine)
		if err != nil {
			return fmt.Errorf("decoding %s: %w", path, err)
		}
	} else {
		src, err := readSourceFile(path)
		if err != nil {
			return err
		}
		spec := classSpec{name: disasmClassName, vars: splitVars(disasmVars), primitive: disasmPrimitive}
		_, method, _, err = compileSource(machine, spec, src, false)
		if err != nil {
			return err
		}
	}

	return printDisassembly(cmd, method)
}

// printDisassembly writes method's selector, literal table, and decoded
// instruction stream to cmd's output.
func printDisassembly(cmd *cobra.Command, method heap.ObjPtr) error {
	return writeDisassembly(cmd.OutOrStdout(), method)
}

func writeDisassembly(w io.Writer, method heap.ObjPtr) error {
	selector := method.Slots[heap.SelectorInCompiledMethod]
	fmt.Fprintf(w, "%s\n", selector.Str)
	fmt.Fprintf(w, "  numArgs=%d tempSize=%d stackSize=%d\n",
		method.Slots[heap.NumberArgsInCompiledMethod].Int,
		method.Slots[heap.TempSizeInCompiledMethod].Int,
		method.Slots[heap.StackSizeInCompiledMethod].Int)

	literals := method.Slots[heap.LiteralsInCompiledMethod]
	if literals.Kind == heap.KindArray {
		fmt.Fprintf(w, "  literals:\n")
		for i, lit := range literals.Slots {
			fmt.Fprintf(w, "    [%d] %s\n", i, literalString(lit))
		}
	}

	code := method.Slots[heap.BytecodesInCompiledMethod]
	if code.Kind != heap.KindByteArray {
		fmt.Fprintf(w, "  <no code>\n")
		return nil
	}
	instructions, err := bytecode.Disassemble(code.Bytes)
	if err != nil {
		return fmt.Errorf("disassembling: %w", err)
	}
	for _, in := range instructions {
		fmt.Fprintf(w, "  %4d  %s\n", in.Offset, in.String())
	}
	return nil
}

func literalString(obj heap.ObjPtr) string {
	switch obj.Kind {
	case heap.KindString:
		return fmt.Sprintf("%q", obj.Str)
	case heap.KindSymbol:
		return "#" + obj.Str
	case heap.KindSmallInteger:
		return fmt.Sprintf("%d", obj.Int)
	case heap.KindFloat:
		return fmt.Sprintf("%g", obj.Float)
	case heap.KindCharacter:
		return fmt.Sprintf("$%c", obj.Char)
	case heap.KindAssociation:
		return "global #" + obj.Slots[heap.KeyInAssociation].Str
	default:
		return fmt.Sprintf("<%v>", obj.Kind)
	}
}

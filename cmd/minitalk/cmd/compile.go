package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/minitalklang/minitalk/pkg/bytecode"
	"github.com/minitalklang/minitalk/pkg/heap"
	"github.com/spf13/cobra"
)

var (
	compileOut       string
	compileClassName string
	compileVars      string
	compilePrimitive int
	compileDisasm    bool
)

var compileCmd = &cobra.Command{
	Use:   "compile <source-file>",
	Short: "Compile a MiniTalk method into a .mtb bytecode file",
	Args:  cobra.ExactArgs(1),
	RunE:  runCompile,
}

func init() {
	compileCmd.Flags().StringVarP(&compileOut, "output", "o", "", "output .mtb path (default: source name with .mtb extension)")
	compileCmd.Flags().StringVar(&compileClassName, "class", "DoIt", "name of the scratch class the method is installed on")
	compileCmd.Flags().StringVar(&compileVars, "vars", "", "comma-separated instance variable names for the scratch class")
	compileCmd.Flags().IntVar(&compilePrimitive, "primitive", -1, "primitive pragma number to stamp on the method")
	compileCmd.Flags().BoolVar(&compileDisasm, "disassemble", false, "print the compiled bytecode after writing the .mtb file")
}

func runCompile(cmd *cobra.Command, args []string) error {
	src, err := readSourceFile(args[0])
	if err != nil {
		return err
	}

	machine := heap.NewMachine()
	spec := classSpec{name: compileClassName, vars: splitVars(compileVars), primitive: compilePrimitive}
	_, method, selector, err := compileSource(machine, spec, src, false)
	if err != nil {
		return err
	}

	out := compileOut
	if out == "" {
		out = strings.TrimSuffix(args[0], filepath.Ext(args[0])) + ".mtb"
	}
	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("creating %s: %w", out, err)
	}
	defer f.Close()

	if err := bytecode.EncodeMethod(method, f); err != nil {
		return fmt.Errorf("encoding %s: %w", out, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "compiled %s>>%s -> %s\n", compileClassName, selector, out)

	if compileDisasm {
		return printDisassembly(cmd, method)
	}
	return nil
}

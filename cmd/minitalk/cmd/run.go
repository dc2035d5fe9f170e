package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/minitalklang/minitalk/pkg/bytecode"
	"github.com/minitalklang/minitalk/pkg/heap"
	"github.com/minitalklang/minitalk/pkg/vm"
	"github.com/spf13/cobra"
)

var (
	runClassName string
	runVars      string
	runPrimitive int
	runArgs      []string
)

var runCmd = &cobra.Command{
	Use:   "run <file>",
	Short: "Compile (or load) a MiniTalk method and send it to a fresh instance",
	Args:  cobra.ExactArgs(1),
	RunE:  runRun,
}

func init() {
	runCmd.Flags().StringVar(&runClassName, "class", "DoIt", "name of the scratch class the method is installed on")
	runCmd.Flags().StringVar(&runVars, "vars", "", "comma-separated instance variable names for the scratch class")
	runCmd.Flags().IntVar(&runPrimitive, "primitive", -1, "primitive pragma number to stamp on the method, when compiling source")
	runCmd.Flags().StringSliceVar(&runArgs, "arg", nil, "argument to send along with the selector (repeatable)")
}

func runRun(cmd *cobra.Command, args []string) error {
	path := args[0]
	machine := heap.NewMachine()
	machine.DefineGlobal(vm.TranscriptClassName, vm.NewTranscript(machine))

	var class *heap.Class
	var selector string
	if strings.HasSuffix(path, ".mtb") {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("opening %s: %w", path, err)
		}
		defer f.Close()
		method, err := bytecode.DecodeMethod(f, machine)
		if err != nil {
			return fmt.Errorf("decoding %s: %w", path, err)
		}
		class = heap.NewClass(runClassName, nil, splitVars(runVars))
		selector = method.Slots[heap.SelectorInCompiledMethod].Str
		class.Install(machine.NewAssociation(machine.NewSymbol(selector), method))
	} else {
		src, err := readSourceFile(path)
		if err != nil {
			return err
		}
		spec := classSpec{name: runClassName, vars: splitVars(runVars), primitive: runPrimitive}
		class, _, selector, err = compileSource(machine, spec, src, false)
		if err != nil {
			return err
		}
	}

	sendArgs := make([]heap.ObjPtr, len(runArgs))
	for i, a := range runArgs {
		sendArgs[i] = parseLiteralArg(machine, a)
	}

	interp := vm.New(machine, func(s string) { fmt.Fprint(cmd.OutOrStdout(), s) })
	receiver := machine.NewInstance(class)
	result, err := interp.Send(receiver, selector, sendArgs)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s\n", vm.DisplayString(result))
	return nil
}

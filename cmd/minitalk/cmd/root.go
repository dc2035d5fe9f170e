// Package cmd wires the minitalk command-line tool: compile, run,
// disassemble, and an interactive repl, all sharing the same
// parser/compiler/vm pipeline the rest of this repository implements.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "minitalk",
	Short: "MiniTalk bytecode compiler and virtual machine",
	Long: `minitalk compiles MiniTalk method source into CompiledMethod
bytecode and executes it against the bytecode virtual machine.`,
}

// Execute runs the root command, exiting non-zero on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(compileCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(disassembleCmd)
	rootCmd.AddCommand(replCmd)
}

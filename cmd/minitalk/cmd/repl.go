package cmd

import (
	"github.com/minitalklang/minitalk/cmd/minitalk/repl"
	"github.com/spf13/cobra"
)

var replNoColor bool

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Start an interactive doIt loop against a live MiniTalk image",
	RunE: func(cmd *cobra.Command, args []string) error {
		return repl.Start(repl.Options{NoColor: replNoColor})
	},
}

func init() {
	replCmd.Flags().BoolVar(&replNoColor, "no-color", false, "disable styled output")
}

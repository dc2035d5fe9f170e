// Command minitalk compiles and runs MiniTalk method source against
// the bytecode virtual machine in pkg/vm.
package main

import "github.com/minitalklang/minitalk/cmd/minitalk/cmd"

func main() {
	cmd.Execute()
}

package cmd

import (
	"fmt"
	"os"

	"github.com/bradford-hamilton/fantasyvm/vm"
	"github.com/spf13/cobra"
)

// inspectCmd prints a program's size and its first 16 bytes (fewer for a
// shorter program; none when the program is too large to load). It is a
// developer aid, not a symbolic disassembler -- no mnemonic table, no
// operand decoding, just raw bytes, matching the Non-goal against a
// symbolic assembler/disassembler.
var inspectCmd = &cobra.Command{
	Use:   "inspect `path/to/program.bin`",
	Short: "print a program's size and first few bytes",
	Args:  cobra.ExactArgs(1),
	Run:   runInspect,
}

func runInspect(cmd *cobra.Command, args []string) {
	path := args[0]
	program, err := os.ReadFile(path)
	if err != nil {
		fmt.Printf("error reading %s: %v\n", path, err)
		os.Exit(1)
	}

	fmt.Printf("%s: %d bytes", path, len(program))
	if len(program) > vm.MaxProgramSize {
		fmt.Printf(" (too large, max %d)\n", vm.MaxProgramSize)
		return
	}
	fmt.Println()

	n := len(program)
	if n > 16 {
		n = 16
	}
	fmt.Print("first bytes:")
	for i := 0; i < n; i++ {
		fmt.Printf(" %02X", program[i])
	}
	fmt.Println()
}

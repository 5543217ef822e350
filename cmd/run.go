package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/bradford-hamilton/fantasyvm/backend/headless"
	"github.com/bradford-hamilton/fantasyvm/backend/pixelgl"
	"github.com/bradford-hamilton/fantasyvm/vm"
	"github.com/spf13/cobra"
)

var (
	runScale    float64
	runHeadless bool
)

// runCmd loads a program and runs it to completion against either the
// windowed pixelgl backend or a terminal-only headless backend.
var runCmd = &cobra.Command{
	Use:   "run `path/to/program.bin`",
	Short: "run a fantasyvm program",
	Args:  cobra.ExactArgs(1),
	Run:   runProgram,
}

func init() {
	runCmd.Flags().Float64Var(&runScale, "scale", 3, "window scale factor (pixelgl backend only)")
	runCmd.Flags().BoolVar(&runHeadless, "headless", false, "render to the terminal instead of opening a window")
}

func runProgram(cmd *cobra.Command, args []string) {
	path := args[0]
	program, err := os.ReadFile(path)
	if err != nil {
		fmt.Printf("error reading %s: %v\n", path, err)
		os.Exit(1)
	}

	if runHeadless {
		runHeadlessProgram(program)
		return
	}
	runWindowedProgram(program)
}

func runHeadlessProgram(program []byte) {
	keyboard := vm.NewKeyboard()
	shutdown := vm.NewShutdownSignal()

	backend, err := headless.New(keyboard, shutdown)
	if err != nil {
		fmt.Printf("error starting headless backend: %v\n", err)
		os.Exit(1)
	}
	defer backend.Close()

	machine := vm.NewMachine(backend, shutdown)
	if err := machine.Load(program); err != nil {
		fmt.Printf("error loading program: %v\n", err)
		os.Exit(1)
	}

	done := make(chan struct{})
	go func() {
		machine.Run()
		close(done)
	}()

	ticker := time.NewTicker(33 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			backend.Render()
			return
		case <-ticker.C:
			backend.Render()
		}
	}
}

// runWindowedProgram must run on the main thread, so main.go invokes
// it through pixelgl.Run the same way the teacher's main.go does.
func runWindowedProgram(program []byte) {
	keyboard := vm.NewKeyboard()
	shutdown := vm.NewShutdownSignal()

	backend, err := pixelgl.New(pixelgl.Config{
		Title:    "fantasyvm",
		Scale:    runScale,
		Keyboard: keyboard,
		Shutdown: shutdown,
	})
	if err != nil {
		fmt.Printf("error creating window: %v\n", err)
		os.Exit(1)
	}

	machine := vm.NewMachine(backend, shutdown)
	if err := machine.Load(program); err != nil {
		fmt.Printf("error loading program: %v\n", err)
		os.Exit(1)
	}

	go machine.Run()

	backend.Pump()
}

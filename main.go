package main

import (
	"github.com/bradford-hamilton/fantasyvm/cmd"
	"github.com/faiface/pixel/pixelgl"
)

func main() {
	// pixelgl needs access to the main thread, so the cobra command
	// tree runs inside pixelgl.Run even for subcommands (version,
	// inspect, headless run) that never touch the windowing toolkit.
	pixelgl.Run(cmd.Execute)
}

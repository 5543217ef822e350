// Package headless is a vm.DeviceSurface backend that renders the text
// plane to a real terminal and reads keystrokes one at a time without
// waiting for Enter, for running fantasyvm over ssh/CI/a plain tty
// without an OpenGL context. It puts stdin into raw mode with
// golang.org/x/term, the same dependency
// IntuitionAmiga-IntuitionEngine reaches for in its own headless
// back end.
package headless

import (
	"bufio"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/bradford-hamilton/fantasyvm/surface"
	"github.com/bradford-hamilton/fantasyvm/vm"
	"golang.org/x/term"
)

// Backend is a vm.DeviceSurface that prints the text plane to stdout
// and reads raw keystrokes from stdin.
type Backend struct {
	*surface.Core

	in       *os.File
	oldState *term.State
	reader   *bufio.Reader
	keyboard *vm.Keyboard
	shutdown *vm.ShutdownSignal

	pixelGlyphOn  byte
	pixelGlyphOff byte
}

// New puts stdin into raw mode (if it's a terminal; otherwise runs
// without raw mode, reading line-buffered input) and starts a
// goroutine that pumps keystrokes into keyboard.
func New(keyboard *vm.Keyboard, shutdown *vm.ShutdownSignal) (*Backend, error) {
	b := &Backend{
		Core:          surface.NewCore(),
		in:            os.Stdin,
		reader:        bufio.NewReader(os.Stdin),
		keyboard:      keyboard,
		shutdown:      shutdown,
		pixelGlyphOn:  '#',
		pixelGlyphOff: '.',
	}

	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		oldState, err := term.MakeRaw(fd)
		if err != nil {
			return nil, fmt.Errorf("entering raw mode: %w", err)
		}
		b.oldState = oldState
	}

	go b.pumpInput()
	return b, nil
}

// Close restores the terminal to its original mode.
func (b *Backend) Close() error {
	if b.oldState == nil {
		return nil
	}
	return term.Restore(int(b.in.Fd()), b.oldState)
}

func (b *Backend) pumpInput() {
	for {
		if b.shutdown != nil && b.shutdown.Requested() {
			return
		}
		c, err := b.reader.ReadByte()
		if err != nil {
			return
		}
		b.keyboard.Deliver(c)
	}
}

// Sleep blocks for ms milliseconds.
func (b *Backend) Sleep(ms uint16) {
	time.Sleep(time.Duration(ms) * time.Millisecond)
}

// Beep writes the terminal bell character; frequency and duration are
// not controllable over a tty, so both are best-effort ignored beyond
// emitting the bell once.
func (b *Backend) Beep(freqHz, durMs uint16) {
	fmt.Fprint(os.Stdout, "\a")
}

// ReadChar blocks on the shared keyboard mailbox.
func (b *Backend) ReadChar() byte {
	return b.keyboard.Read(b.shutdown)
}

// NowLo16 returns the low 16 bits of the Unix time in seconds.
func (b *Backend) NowLo16() uint16 {
	return uint16(time.Now().Unix())
}

// RandMod samples uniformly from [0,n] inclusive.
func (b *Backend) RandMod(n uint16) uint16 {
	if n == 0 {
		return 0
	}
	return uint16(rand.Intn(int(n) + 1))
}

// Render prints the current surface to stdout: the text plane
// verbatim, or an ASCII approximation of the pixel plane when
// pixel_mode is set. Intended to be called on a repaint tick by the
// caller, mirroring the pixelgl backend's Pump loop but without a
// windowing toolkit driving it.
func (b *Backend) Render() {
	if !b.Core.Dirty() {
		return
	}
	fmt.Fprint(os.Stdout, "\x1b[2J\x1b[H") // clear screen, home cursor

	if b.Core.PixelMode() {
		b.renderPixels()
		return
	}
	b.renderText()
}

func (b *Backend) renderText() {
	cells := b.Core.TextCells()
	for row := 0; row < vm.TextRows; row++ {
		line := make([]byte, vm.TextCols)
		for col := 0; col < vm.TextCols; col++ {
			ch := cells[row][col].Char
			if ch == 0 {
				ch = ' '
			}
			line[col] = ch
		}
		fmt.Fprintln(os.Stdout, string(line))
	}
}

// renderPixels downsamples the 320x200 plane to one terminal row per
// two pixel rows, since most terminal fonts are roughly twice as tall
// as they are wide.
func (b *Backend) renderPixels() {
	pixels := b.Core.Pixels()
	for y := 0; y < vm.PixelHeight; y += 2 {
		line := make([]byte, vm.PixelWidth)
		for x := 0; x < vm.PixelWidth; x++ {
			if pixels[y][x] {
				line[x] = b.pixelGlyphOn
			} else {
				line[x] = b.pixelGlyphOff
			}
		}
		fmt.Fprintln(os.Stdout, string(line))
	}
}

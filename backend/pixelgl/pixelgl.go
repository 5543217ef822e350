// Package pixelgl is the real windowed vm.DeviceSurface backend: it
// renders the text plane or the pixel plane (whichever pixel_mode
// selects) into a faiface/pixel window, pumps keyboard events into a
// vm.Keyboard mailbox, and plays BEEP tones through faiface/beep. This
// is the windowing/rasterization back end spec.md §1 calls an external
// collaborator, interface-only from the core's point of view; it is
// grounded directly in the teacher's internal/pixel.Window, generalized
// from a fixed 64x32 monochrome CHIP-8 plane to an 80x25 text plane
// plus a 320x200 1-bit pixel plane with a 16-color palette.
package pixelgl

import (
	"fmt"
	"time"

	"github.com/bradford-hamilton/fantasyvm/surface"
	"github.com/bradford-hamilton/fantasyvm/vm"
	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"
	"github.com/faiface/pixel"
	"github.com/faiface/pixel/imdraw"
	"github.com/faiface/pixel/pixelgl"
	"golang.org/x/image/colornames"
	"golang.org/x/image/font/basicfont"
)

const refreshRate = 60

// glyphWidth and glyphHeight come from the basicfont 7x13 face's
// advance and line height; the text plane is laid out on this grid,
// scaled by the window scale factor.
var (
	glyphWidth  = basicfont.Face7x13.Advance
	glyphHeight = basicfont.Face7x13.Height
)

// Palette is the fixed 16-entry RGB table the core's 4-bit color index
// selects into; the core itself only ever writes the index.
var Palette = [vm.PaletteSize]pixel.RGBA{
	pixel.ToRGBA(colornames.Black), pixel.ToRGBA(colornames.Darkblue), pixel.ToRGBA(colornames.Darkgreen), pixel.ToRGBA(colornames.Darkcyan),
	pixel.ToRGBA(colornames.Darkred), pixel.ToRGBA(colornames.Purple), pixel.ToRGBA(colornames.Saddlebrown), pixel.ToRGBA(colornames.Lightgray),
	pixel.ToRGBA(colornames.Gray), pixel.ToRGBA(colornames.Blue), pixel.ToRGBA(colornames.Green), pixel.ToRGBA(colornames.Cyan),
	pixel.ToRGBA(colornames.Red), pixel.ToRGBA(colornames.Magenta), pixel.ToRGBA(colornames.Yellow), pixel.ToRGBA(colornames.White),
}

// keyMap mirrors the teacher's hex-keypad map, generalized to the
// printable-ASCII-plus-control-codes keyboard spec.md §6 specifies: it
// maps the lowercase letters, the digits, and space; punctuation and
// shifted characters are not mapped. Enter and Backspace are not in the
// map; handleKeyInput delivers them as '\n' and '\b'.
var keyMap = buildKeyMap()

// Backend is a vm.DeviceSurface backed by a real window. It embeds
// *surface.Core for the rendering-agnostic text/pixel/cursor state and
// supplies the host-specific half of the interface: Sleep, Beep,
// ReadChar, NowLo16, and RandMod.
type Backend struct {
	*surface.Core

	win      *pixelgl.Window
	scale    float64
	keyboard *vm.Keyboard
	shutdown *vm.ShutdownSignal
}

// Config configures window creation.
type Config struct {
	Title    string
	Scale    float64
	Keyboard *vm.Keyboard
	Shutdown *vm.ShutdownSignal
}

// New creates the window and returns a Backend. Must be called on the
// main thread (i.e. from inside pixelgl.Run), the same constraint the
// teacher's pixel.NewWindow carries.
func New(cfg Config) (*Backend, error) {
	if cfg.Scale <= 0 {
		cfg.Scale = 3
	}
	width := float64(vm.PixelWidth) * cfg.Scale
	height := float64(vm.TextRows*glyphHeight) * cfg.Scale
	if pixelHeight := float64(vm.PixelHeight) * cfg.Scale; pixelHeight > height {
		height = pixelHeight
	}

	title := cfg.Title
	if title == "" {
		title = "fantasyvm"
	}
	winCfg := pixelgl.WindowConfig{
		Title:  title,
		Bounds: pixel.R(0, 0, width, height),
		VSync:  true,
	}
	w, err := pixelgl.NewWindow(winCfg)
	if err != nil {
		return nil, fmt.Errorf("creating window: %w", err)
	}

	return &Backend{
		Core:     surface.NewCore(),
		win:      w,
		scale:    cfg.Scale,
		keyboard: cfg.Keyboard,
		shutdown: cfg.Shutdown,
	}, nil
}

// Sleep blocks the VM goroutine for ms milliseconds.
func (b *Backend) Sleep(ms uint16) {
	time.Sleep(time.Duration(ms) * time.Millisecond)
}

// Beep synthesizes a square wave of freqHz for durMs milliseconds and
// plays it through the speaker, replacing the teacher's fixed
// pre-recorded mp3 asset (our BEEP opcode carries a frequency the
// teacher's sound timer never did).
func (b *Backend) Beep(freqHz, durMs uint16) {
	if freqHz == 0 || durMs == 0 {
		return
	}
	const sampleRate = beep.SampleRate(44100)
	speaker.Init(sampleRate, sampleRate.N(time.Second/10))
	speaker.Play(newSquareWave(sampleRate, float64(freqHz), time.Duration(durMs)*time.Millisecond))
}

// ReadChar blocks on the shared keyboard mailbox until the window's
// input pump delivers a codepoint.
func (b *Backend) ReadChar() byte {
	return b.keyboard.Read(b.shutdown)
}

// NowLo16 returns the low 16 bits of the Unix time in seconds.
func (b *Backend) NowLo16() uint16 {
	return uint16(time.Now().Unix())
}

// RandMod samples uniformly from [0,n] inclusive using math/rand.
func (b *Backend) RandMod(n uint16) uint16 {
	return randMod(n)
}

// Closed reports whether the underlying window has been closed.
func (b *Backend) Closed() bool {
	return b.win.Closed()
}

// Pump runs the input/repaint loop at refreshRate Hz until the window
// closes or shutdown fires; it must run on the main thread alongside
// the windowing toolkit, the same pattern as the teacher's main.go
// ticker loop. The VM itself runs on a separate goroutine started by
// the caller.
func (b *Backend) Pump() {
	ticker := time.NewTicker(time.Second / refreshRate)
	defer ticker.Stop()

	for range ticker.C {
		if b.win.Closed() {
			b.shutdown.Request()
			return
		}
		if b.shutdown != nil && b.shutdown.Requested() {
			return
		}

		b.win.UpdateInput()
		b.handleKeyInput()

		b.Core.Dirty() // drain the flag; we repaint unconditionally at refreshRate
		b.repaint()
	}
}

func (b *Backend) handleKeyInput() {
	for codepoint, button := range keyMap {
		if b.win.JustPressed(button) {
			b.keyboard.Deliver(codepoint)
		}
	}
	if b.win.JustPressed(pixelgl.KeyEnter) {
		b.keyboard.Deliver('\n')
	}
	if b.win.JustPressed(pixelgl.KeyBackspace) {
		b.keyboard.Deliver('\b')
	}
}

func (b *Backend) repaint() {
	b.win.Clear(colornames.Black)
	imd := imdraw.New(nil)

	if b.Core.PixelMode() {
		b.drawPixelPlane(imd)
	} else {
		b.drawTextPlane(imd)
	}

	imd.Draw(b.win)
	b.win.Update()
}

func (b *Backend) drawPixelPlane(imd *imdraw.IMDraw) {
	pixels := b.Core.Pixels()
	imd.Color = pixel.RGB(1, 1, 1)
	for y := 0; y < vm.PixelHeight; y++ {
		for x := 0; x < vm.PixelWidth; x++ {
			if !pixels[y][x] {
				continue
			}
			px := float64(x) * b.scale
			py := float64(vm.PixelHeight-1-y) * b.scale
			imd.Push(pixel.V(px, py), pixel.V(px+b.scale, py+b.scale))
			imd.Rectangle(0)
		}
	}
}

// drawTextPlane renders each non-space cell as a solid block in its
// cell's color, sized to basicfont.Face7x13's advance and line height.
// Like the teacher's DrawGraphics (which draws a filled square per set
// CHIP-8 pixel rather than sampling a real font), this favors the
// imdraw primitive the rest of the backend already uses over rasterizing
// glyph bitmaps through image/draw.
func (b *Backend) drawTextPlane(imd *imdraw.IMDraw) {
	cells := b.Core.TextCells()
	for row := 0; row < vm.TextRows; row++ {
		for col := 0; col < vm.TextCols; col++ {
			cell := cells[row][col]
			if cell.Char == 0 || cell.Char == ' ' {
				continue
			}
			idx := cell.Color
			if int(idx) >= len(Palette) {
				idx = 0
			}
			imd.Color = Palette[idx]
			px := float64(col*glyphWidth) * b.scale
			py := float64((vm.TextRows-1-row)*glyphHeight) * b.scale
			imd.Push(pixel.V(px, py), pixel.V(px+b.scale*float64(glyphWidth-1), py+b.scale*float64(glyphHeight-2)))
			imd.Rectangle(0)
		}
	}
}

func buildKeyMap() map[byte]pixelgl.Button {
	m := map[byte]pixelgl.Button{}
	letters := []struct {
		b byte
		k pixelgl.Button
	}{
		{'a', pixelgl.KeyA}, {'b', pixelgl.KeyB}, {'c', pixelgl.KeyC}, {'d', pixelgl.KeyD},
		{'e', pixelgl.KeyE}, {'f', pixelgl.KeyF}, {'g', pixelgl.KeyG}, {'h', pixelgl.KeyH},
		{'i', pixelgl.KeyI}, {'j', pixelgl.KeyJ}, {'k', pixelgl.KeyK}, {'l', pixelgl.KeyL},
		{'m', pixelgl.KeyM}, {'n', pixelgl.KeyN}, {'o', pixelgl.KeyO}, {'p', pixelgl.KeyP},
		{'q', pixelgl.KeyQ}, {'r', pixelgl.KeyR}, {'s', pixelgl.KeyS}, {'t', pixelgl.KeyT},
		{'u', pixelgl.KeyU}, {'v', pixelgl.KeyV}, {'w', pixelgl.KeyW}, {'x', pixelgl.KeyX},
		{'y', pixelgl.KeyY}, {'z', pixelgl.KeyZ},
		{'0', pixelgl.Key0}, {'1', pixelgl.Key1}, {'2', pixelgl.Key2}, {'3', pixelgl.Key3},
		{'4', pixelgl.Key4}, {'5', pixelgl.Key5}, {'6', pixelgl.Key6}, {'7', pixelgl.Key7},
		{'8', pixelgl.Key8}, {'9', pixelgl.Key9},
		{' ', pixelgl.KeySpace},
	}
	for _, l := range letters {
		m[l.b] = l.k
	}
	return m
}

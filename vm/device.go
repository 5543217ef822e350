package vm

// DeviceSurface is the only interface the core presents outward. The
// execution loop is the sole writer; a windowing/audio back end (see
// the backend/ packages) is the sole reader, observing through a dirty
// flag rather than a lock. Swapping implementations gets you a real
// display, a headless test harness, or a record/replay harness without
// touching the VM (see design note in spec.md §9).
type DeviceSurface interface {
	// PutChar writes one byte to the text plane, applying the cursor
	// and scroll rules from spec.md §4.3.
	PutChar(c byte)

	// ClearText blanks every text cell to (space, current color),
	// homes the cursor, and switches out of pixel mode.
	ClearText()

	// SetColor updates the color used for subsequently written text
	// cells. idx must be < 16; callers are expected to check this
	// themselves (the execution loop does, per SET_COLOR's opcode
	// semantics).
	SetColor(idx uint8)

	// Cursor returns the current text cursor position.
	Cursor() (x, y uint8)

	// SetCursor moves the text cursor, clamping out-of-range
	// coordinates rather than faulting.
	SetCursor(x, y uint8)

	// SetPixel sets or clears one pixel. Coordinates outside the
	// 320x200 plane are dropped.
	SetPixel(x, y int, v bool)

	// ClearPixels zeroes the pixel plane and switches out of pixel
	// mode.
	ClearPixels()

	// DrawLine, DrawRect, FillRect, and DrawCircle rasterize a
	// primitive into the pixel plane, clipping to its bounds and
	// switching into pixel mode.
	DrawLine(x0, y0, x1, y1 int)
	DrawRect(x0, y0, x1, y1 int)
	FillRect(x0, y0, x1, y1 int)
	DrawCircle(cx, cy, r int)

	// Sleep blocks the calling goroutine for the given duration.
	Sleep(ms uint16)

	// Beep sounds a tone of the given frequency for the given
	// duration, best-effort non-blocking beyond dur.
	Beep(freqHz, durMs uint16)

	// ReadChar blocks until a keyboard codepoint has arrived since
	// this call began, then returns it.
	ReadChar() byte

	// NowLo16 returns the low 16 bits of a wall-clock seconds counter.
	NowLo16() uint16

	// RandMod returns a uniform sample in [0, n] inclusive.
	RandMod(n uint16) uint16
}

// PaletteSize is the number of entries in the fixed color table the core
// writes indices into; a back end chooses the RGB values.
const PaletteSize = 16

// TextCols and TextRows are the text plane's dimensions.
const (
	TextCols = 80
	TextRows = 25
)

// PixelWidth and PixelHeight are the pixel plane's dimensions.
const (
	PixelWidth  = 320
	PixelHeight = 200
)

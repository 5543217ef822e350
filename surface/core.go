// Package surface implements the text-plane, pixel-plane, cursor, and
// color state every DeviceSurface backend shares (spec.md §3-§4.3). A
// concrete backend (backend/pixelgl, backend/headless, backend/record)
// embeds *Core for the rendering-agnostic half of vm.DeviceSurface and
// supplies its own Sleep, Beep, ReadChar, NowLo16, and RandMod, which
// genuinely differ per host.
package surface

import (
	"sync"

	"github.com/bradford-hamilton/fantasyvm/vm"
)

// TextCell is one character cell: a codepoint and a 4-bit palette index.
type TextCell struct {
	Char  byte
	Color uint8
}

// Core holds the device surface state described in spec.md §3: the text
// plane, the pixel plane, the cursor, the current color, and the
// pixel/text mode flag. The VM is the sole writer; a back end reads it
// through the snapshot methods. Every method, readers included, takes
// Core's lock, so a back end's reads never race the VM's writes (spec.md
// §5's "single-writer" note describes program order within the VM
// thread, not freedom from a read data race with a second thread).
type Core struct {
	mu sync.Mutex

	text [vm.TextRows][vm.TextCols]TextCell
	pix  [vm.PixelHeight][vm.PixelWidth]bool

	cursorX, cursorY uint8
	currentColor     uint8
	pixelMode        bool
	dirty            bool
}

// NewCore returns a Core with a blank text plane in color 0.
func NewCore() *Core {
	c := &Core{}
	c.ClearText()
	return c
}

// Dirty reports whether any write has happened since the last call to
// Dirty, and clears the flag. A back end calls this once per
// repaint tick.
func (c *Core) Dirty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	d := c.dirty
	c.dirty = false
	return d
}

func (c *Core) markDirty() {
	c.dirty = true
}

// TextCells returns a copy of the 80x25 text plane.
func (c *Core) TextCells() [vm.TextRows][vm.TextCols]TextCell {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.text
}

// Pixels returns a copy of the 320x200 pixel plane.
func (c *Core) Pixels() [vm.PixelHeight][vm.PixelWidth]bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pix
}

// PixelMode reports whether the surface should currently be rendered
// as pixels rather than text.
func (c *Core) PixelMode() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pixelMode
}

// Cursor returns the current text cursor position.
func (c *Core) Cursor() (x, y uint8) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cursorX, c.cursorY
}

// SetCursor moves the cursor, clamping rather than faulting on an
// out-of-range coordinate (spec.md §7, CursorOutOfRange).
func (c *Core) SetCursor(x, y uint8) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if x < vm.TextCols {
		c.cursorX = x
	}
	if y < vm.TextRows {
		c.cursorY = y
	}
	c.markDirty()
}

// SetColor updates the color applied to subsequently written text
// cells. The caller (the execution loop) is responsible for checking
// idx < vm.PaletteSize; Core does not re-check it.
func (c *Core) SetColor(idx uint8) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.currentColor = idx
	c.markDirty()
}

// ClearText blanks every cell to (space, currentColor), homes the
// cursor, and switches out of pixel mode.
func (c *Core) ClearText() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for y := range c.text {
		for x := range c.text[y] {
			c.text[y][x] = TextCell{Char: ' ', Color: c.currentColor}
		}
	}
	c.cursorX, c.cursorY = 0, 0
	c.pixelMode = false
	c.markDirty()
}

// PutChar applies the cursor and scroll rules from spec.md §4.3.
func (c *Core) PutChar(ch byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.markDirty()

	switch ch {
	case '\n':
		c.cursorY++
		c.cursorX = 0
		return
	case '\r':
		c.cursorX = 0
		return
	case '\b':
		if c.cursorX > 0 {
			c.cursorX--
		}
		return
	case '\t':
		c.cursorX = (c.cursorX + 4) &^ 3
		if c.cursorX > vm.TextCols {
			c.cursorX = vm.TextCols
		}
		return
	}

	if c.cursorX == vm.TextCols {
		c.cursorX = 0
		c.cursorY++
	}
	c.scrollIfNeeded()

	c.text[c.cursorY][c.cursorX] = TextCell{Char: ch, Color: c.currentColor}
	c.cursorX++
}

// scrollIfNeeded moves every row up by one and clamps cursorY to the
// last row whenever output would otherwise advance onto row
// vm.TextRows. Must be called with mu held.
func (c *Core) scrollIfNeeded() {
	if c.cursorY < vm.TextRows {
		return
	}
	for row := 0; row < vm.TextRows-1; row++ {
		c.text[row] = c.text[row+1]
	}
	for x := 0; x < vm.TextCols; x++ {
		c.text[vm.TextRows-1][x] = TextCell{Char: ' ', Color: c.currentColor}
	}
	c.cursorY = vm.TextRows - 1
}

// SetPixel sets or clears one pixel, dropping out-of-range coordinates
// silently (clipping, not fault) and switching into pixel mode.
func (c *Core) SetPixel(x, y int, v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pixelMode = true
	if x >= 0 && x < vm.PixelWidth && y >= 0 && y < vm.PixelHeight {
		c.pix[y][x] = v
	}
	c.markDirty()
}

// ClearPixels zeroes the pixel plane and switches out of pixel mode.
func (c *Core) ClearPixels() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pix = [vm.PixelHeight][vm.PixelWidth]bool{}
	c.pixelMode = false
	c.markDirty()
}

func (c *Core) plot(x, y int) {
	if x >= 0 && x < vm.PixelWidth && y >= 0 && y < vm.PixelHeight {
		c.pix[y][x] = true
	}
}

// DrawLine rasterizes a Bresenham line from (x0,y0) to (x1,y1),
// clipping each plotted point.
func (c *Core) DrawLine(x0, y0, x1, y1 int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pixelMode = true
	defer c.markDirty()

	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	err := dx + dy

	x, y := x0, y0
	for {
		c.plot(x, y)
		if x == x1 && y == y1 {
			break
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x += sx
		}
		if e2 <= dx {
			err += dx
			y += sy
		}
	}
}

// DrawRect draws the outline of the axis-aligned rectangle bounded by
// (x0,y0) and (x1,y1).
func (c *Core) DrawRect(x0, y0, x1, y1 int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pixelMode = true
	defer c.markDirty()

	left, right := minMax(x0, x1)
	top, bottom := minMax(y0, y1)
	for x := left; x <= right; x++ {
		c.plot(x, top)
		c.plot(x, bottom)
	}
	for y := top; y <= bottom; y++ {
		c.plot(left, y)
		c.plot(right, y)
	}
}

// FillRect fills the axis-aligned rectangle bounded by (x0,y0) and
// (x1,y1).
func (c *Core) FillRect(x0, y0, x1, y1 int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pixelMode = true
	defer c.markDirty()

	left, right := minMax(x0, x1)
	top, bottom := minMax(y0, y1)
	for y := top; y <= bottom; y++ {
		for x := left; x <= right; x++ {
			c.plot(x, y)
		}
	}
}

// DrawCircle rasterizes a circle of radius r centered at (cx,cy) using
// the midpoint circle algorithm (Bresenham's circle variant).
func (c *Core) DrawCircle(cx, cy, r int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pixelMode = true
	defer c.markDirty()

	x, y := r, 0
	err := 1 - r

	for x >= y {
		c.plot(cx+x, cy+y)
		c.plot(cx+y, cy+x)
		c.plot(cx-y, cy+x)
		c.plot(cx-x, cy+y)
		c.plot(cx-x, cy-y)
		c.plot(cx-y, cy-x)
		c.plot(cx+y, cy-x)
		c.plot(cx+x, cy-y)

		y++
		if err < 0 {
			err += 2*y + 1
		} else {
			x--
			err += 2*(y-x) + 1
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func minMax(a, b int) (int, int) {
	if a > b {
		return b, a
	}
	return a, b
}

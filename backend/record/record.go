// Package record provides a vm.DeviceSurface that logs every output,
// sleep, beep, and key-read call it receives (Cursor, NowLo16, and
// RandMod are not logged) and replays a fixed keyboard script instead of blocking
// on a real input thread. It exists for golden-file tests and for
// driving a program non-interactively (spec.md §9's "swap
// implementations ... for record/replay" design note).
package record

import (
	"fmt"

	"github.com/bradford-hamilton/fantasyvm/surface"
)

// Event is one recorded call into the device surface.
type Event struct {
	Op   string
	Args []int
}

// Surface wraps *surface.Core with a call log, a scripted clock, a
// scripted RNG, and a scripted keyboard so the same program run is
// reproducible across test invocations.
type Surface struct {
	*surface.Core

	Events []Event

	// Clock, if non-nil, is consulted by NowLo16 instead of a real
	// wall clock, so tests can assert on GET_TIME.
	Clock func() uint16

	// RandSource, if non-nil, is consulted by RandMod instead of
	// math/rand, so tests can assert on RANDOM.
	RandSource func(n uint16) uint16

	// Keys is a fixed queue of codepoints ReadChar pops from, in
	// order; once exhausted ReadChar returns 0 immediately rather
	// than blocking (there is no live input thread in record mode).
	Keys []byte

	// Sleeps records every requested sleep duration instead of
	// actually blocking, so tests run instantly.
	Sleeps []uint16

	// Beeps records every requested tone.
	Beeps []struct{ FreqHz, DurMs uint16 }
}

// New returns a Surface with a blank Core.
func New() *Surface {
	return &Surface{Core: surface.NewCore()}
}

func (s *Surface) log(op string, args ...int) {
	s.Events = append(s.Events, Event{Op: op, Args: args})
}

// PutChar records the byte and delegates to Core for the actual text
// plane/scroll semantics.
func (s *Surface) PutChar(c byte) {
	s.log("PutChar", int(c))
	s.Core.PutChar(c)
}

func (s *Surface) ClearText() {
	s.log("ClearText")
	s.Core.ClearText()
}

func (s *Surface) SetColor(idx uint8) {
	s.log("SetColor", int(idx))
	s.Core.SetColor(idx)
}

func (s *Surface) SetCursor(x, y uint8) {
	s.log("SetCursor", int(x), int(y))
	s.Core.SetCursor(x, y)
}

func (s *Surface) SetPixel(x, y int, v bool) {
	vi := 0
	if v {
		vi = 1
	}
	s.log("SetPixel", x, y, vi)
	s.Core.SetPixel(x, y, v)
}

func (s *Surface) ClearPixels() {
	s.log("ClearPixels")
	s.Core.ClearPixels()
}

func (s *Surface) DrawLine(x0, y0, x1, y1 int) {
	s.log("DrawLine", x0, y0, x1, y1)
	s.Core.DrawLine(x0, y0, x1, y1)
}

func (s *Surface) DrawRect(x0, y0, x1, y1 int) {
	s.log("DrawRect", x0, y0, x1, y1)
	s.Core.DrawRect(x0, y0, x1, y1)
}

func (s *Surface) FillRect(x0, y0, x1, y1 int) {
	s.log("FillRect", x0, y0, x1, y1)
	s.Core.FillRect(x0, y0, x1, y1)
}

func (s *Surface) DrawCircle(cx, cy, r int) {
	s.log("DrawCircle", cx, cy, r)
	s.Core.DrawCircle(cx, cy, r)
}

// Sleep does not actually block; it just records the request so tests
// stay fast and deterministic.
func (s *Surface) Sleep(ms uint16) {
	s.log("Sleep", int(ms))
	s.Sleeps = append(s.Sleeps, ms)
}

// Beep records the tone request instead of producing sound.
func (s *Surface) Beep(freqHz, durMs uint16) {
	s.log("Beep", int(freqHz), int(durMs))
	s.Beeps = append(s.Beeps, struct{ FreqHz, DurMs uint16 }{freqHz, durMs})
}

// ReadChar pops the next scripted codepoint, or returns 0 if the
// script is exhausted.
func (s *Surface) ReadChar() byte {
	if len(s.Keys) == 0 {
		s.log("ReadChar", -1)
		return 0
	}
	c := s.Keys[0]
	s.Keys = s.Keys[1:]
	s.log("ReadChar", int(c))
	return c
}

// NowLo16 uses Clock if set, else 0.
func (s *Surface) NowLo16() uint16 {
	if s.Clock != nil {
		return s.Clock()
	}
	return 0
}

// RandMod uses RandSource if set, else always returns 0 (still within
// [0,n] for any n, and deterministic).
func (s *Surface) RandMod(n uint16) uint16 {
	if s.RandSource != nil {
		return s.RandSource(n)
	}
	return 0
}

// String renders the recorded event log, useful for golden-file
// comparisons in tests.
func (s *Surface) String() string {
	out := ""
	for _, e := range s.Events {
		out += fmt.Sprintf("%s%v\n", e.Op, e.Args)
	}
	return out
}

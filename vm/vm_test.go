package vm_test

import (
	"testing"

	"github.com/bradford-hamilton/fantasyvm/backend/record"
	"github.com/bradford-hamilton/fantasyvm/vm"
)

func newMachine() (*vm.Machine, *record.Surface) {
	dev := record.New()
	m := vm.NewMachine(dev, nil)
	return m, dev
}

// asm is a tiny helper for building literal byte programs in tests
// without hand-counting offsets for every instruction.
func asm(bytes ...int) []byte {
	out := make([]byte, len(bytes))
	for i, b := range bytes {
		out[i] = byte(b)
	}
	return out
}

func le16(v uint16) (lo, hi int) {
	return int(byte(v)), int(byte(v >> 8))
}

func TestHelloWorld(t *testing.T) {
	m, dev := newMachine()
	program := []byte{0x02, 'H', 'e', 'l', 'l', 'o', 0x00, 0x00}
	if err := m.Load(program); err != nil {
		t.Fatalf("Load: %v", err)
	}
	m.Run()

	cells := dev.TextCells()
	want := "Hello"
	for i, ch := range want {
		if cells[0][i].Char != byte(ch) {
			t.Errorf("cell[0][%d] = %q, want %q", i, cells[0][i].Char, ch)
		}
	}
	x, y := dev.Cursor()
	if x != 5 || y != 0 {
		t.Errorf("cursor = (%d,%d), want (5,0)", x, y)
	}
	if m.Running() {
		t.Error("machine still running after HALT")
	}
}

func TestNewlineScroll(t *testing.T) {
	m, dev := newMachine()
	var program []byte
	for i := 0; i < 26; i++ {
		program = append(program, 0x02, 'X', '\n', 0x00)
	}
	program = append(program, 0x00)

	if err := m.Load(program); err != nil {
		t.Fatalf("Load: %v", err)
	}
	m.Run()

	if m.LastFault() != "" {
		t.Fatalf("unexpected fault: %s", m.LastFault())
	}
	cells := dev.TextCells()
	if cells[24][0].Char != 'X' {
		t.Errorf("row 24 col 0 = %q, want 'X'", cells[24][0].Char)
	}
	for row := 0; row < 24; row++ {
		if cells[row][0].Char != 'X' {
			t.Errorf("row %d col 0 = %q, want 'X'", row, cells[row][0].Char)
		}
	}
}

func TestLoopCountdown(t *testing.T) {
	m, _ := newMachine()
	program := asm(
		0x40, 0x00, 0x0A, 0x00, // LOAD_REG r0, 10
		0x40, 0x01, 0x01, 0x00, // LOAD_REG r1, 1
		0x40, 0x02, 0x00, 0x00, // LOAD_REG r2, 0
		0x51, 0x00, 0x00, 0x01, // SUB r0, r0, r1
		0x5B, 0x00, 0x02, // CMP r0, r2
		0x62, 0x08, 0x00, // JNZ 8
		0x00, // HALT
	)
	if err := m.Load(program); err != nil {
		t.Fatalf("Load: %v", err)
	}
	m.Run()

	if m.Running() {
		t.Error("machine should have halted")
	}
	if m.LastFault() != "" {
		t.Fatalf("unexpected fault: %s", m.LastFault())
	}
	if got := m.RegRead(0); got != 0 {
		t.Errorf("reg0 = %d, want 0", got)
	}
	if got := m.RegRead(1); got != 1 {
		t.Errorf("reg1 = %d, want 1", got)
	}
	if got := m.RegRead(2); got != 0 {
		t.Errorf("reg2 = %d, want 0", got)
	}
	if m.Flags()&vm.FlagZero == 0 {
		t.Error("Zero flag should be set after the final CMP")
	}
}

func TestCallRet(t *testing.T) {
	m, _ := newMachine()
	program := asm(
		0x65, 0x04, 0x00, // CALL 4
		0x00,                   // HALT
		0x40, 0x00, 0x2A, 0x00, // LOAD_REG r0, 42
		0x66, // RET
	)
	if err := m.Load(program); err != nil {
		t.Fatalf("Load: %v", err)
	}
	sp0 := m.SP() // Load resets SP to the top of the stack region
	m.Run()
	if m.LastFault() != "" {
		t.Fatalf("unexpected fault: %s", m.LastFault())
	}
	if got := m.RegRead(0); got != 42 {
		t.Errorf("reg0 = %d, want 42", got)
	}
	if got := m.SP(); got != sp0 {
		t.Errorf("SP = %d, want %d (back to its pre-CALL value)", got, sp0)
	}
}

func TestDivisionByZero(t *testing.T) {
	m, _ := newMachine()
	program := asm(
		0x40, 0x00, 0x0A, 0x00, // LOAD_REG r0, 10
		0x40, 0x01, 0x00, 0x00, // LOAD_REG r1, 0
		0x53, 0x02, 0x00, 0x01, // DIV r2, r0, r1
		0x00, // HALT
	)
	if err := m.Load(program); err != nil {
		t.Fatalf("Load: %v", err)
	}
	m.Run()
	if m.LastFault() != "" {
		t.Fatalf("unexpected fault: %s", m.LastFault())
	}
	if got := m.RegRead(2); got != 0 {
		t.Errorf("reg2 = %d, want 0 (DIV by zero must leave dst untouched)", got)
	}
}

func TestPixelOutOfBounds(t *testing.T) {
	m, dev := newMachine()
	xlo, xhi := le16(400)
	ylo, yhi := le16(300)
	program := asm(
		0x30, xlo, xhi, ylo, yhi, 0x01, // SET_PIXEL 400, 300, 1
		0x00, // HALT
	)
	if err := m.Load(program); err != nil {
		t.Fatalf("Load: %v", err)
	}
	m.Run()
	if m.LastFault() != "" {
		t.Fatalf("unexpected fault: %s", m.LastFault())
	}
	if !dev.PixelMode() {
		t.Error("pixel mode should be true after SET_PIXEL, even when clipped")
	}
	pixels := dev.Pixels()
	for y := range pixels {
		for x := range pixels[y] {
			if pixels[y][x] {
				t.Fatalf("pixel plane should remain all-zero, found set pixel at (%d,%d)", x, y)
			}
		}
	}
}

func TestUnknownOpcodeFaults(t *testing.T) {
	m, _ := newMachine()
	if err := m.Load(asm(0xFF)); err != nil {
		t.Fatalf("Load: %v", err)
	}
	m.Run()
	if m.Running() {
		t.Error("machine should have halted on unknown opcode")
	}
	if m.LastFault() == "" {
		t.Error("expected a fault reason for an unknown opcode")
	}
}

func TestDecoderOutOfRangeFaults(t *testing.T) {
	m, _ := newMachine()
	// PRINT_CHAR with no operand byte in the program: RAM is zero-filled
	// beyond the loaded bytes (spec.md §9), so the immediate reads as 0
	// and the zero byte after it halts the machine without a fault.
	if err := m.Load(asm(0x01)); err != nil {
		t.Fatalf("Load: %v", err)
	}
	m.Run()
	if m.Running() {
		t.Error("machine should not still be running")
	}

	// A 16-bit operand that starts at the last byte of RAM crosses
	// MemSize and must fault: JMP 0xFFFE lands on another JMP whose
	// target immediate would need bytes 0xFFFF and 0x10000.
	program := make([]byte, vm.MemSize)
	program[0], program[1], program[2] = 0x60, 0xFE, 0xFF
	program[0xFFFE] = 0x60
	if err := m.Load(program); err != nil {
		t.Fatalf("Load: %v", err)
	}
	m.Run()
	if m.Running() {
		t.Error("machine should have halted on an operand read past the end of RAM")
	}
	if m.LastFault() == "" {
		t.Error("expected a fault reason for an operand read past the end of RAM")
	}
}

func TestArithmeticWraps(t *testing.T) {
	m, _ := newMachine()
	hi := asm(
		0x40, 0x00, 0xFF, 0xFF, // LOAD_REG r0, 0xFFFF
		0x40, 0x01, 0x02, 0x00, // LOAD_REG r1, 2
		0x50, 0x02, 0x00, 0x01, // ADD r2, r0, r1
		0x00,
	)
	if err := m.Load(hi); err != nil {
		t.Fatalf("Load: %v", err)
	}
	m.Run()
	if m.LastFault() != "" {
		t.Fatalf("unexpected fault: %s", m.LastFault())
	}
	if got := m.RegRead(2); got != 1 {
		t.Errorf("reg2 = %d, want 1 (0xFFFF + 2 wraps modulo 2^16)", got)
	}
}

// jccTaken assembles CMP r0,r1 followed by one conditional-jump opcode
// and returns whether that jump was taken: the target path sets r3 to
// 1, the fallthrough path sets r3 to 0, and both paths halt.
func jccTaken(t *testing.T, jccOp byte, r0, r1 uint16) bool {
	t.Helper()
	m, _ := newMachine()
	lo0, hi0 := le16(r0)
	lo1, hi1 := le16(r1)
	program := asm(
		0x40, 0x00, lo0, hi0, // idx0-3:   LOAD_REG r0, r0
		0x40, 0x01, lo1, hi1, // idx4-7:   LOAD_REG r1, r1
		0x5B, 0x00, 0x01, // idx8-10:  CMP r0, r1
		int(jccOp), 19, 0x00, // idx11-13: Jcc 19
		0x40, 0x03, 0x00, 0x00, // idx14-17: LOAD_REG r3, 0 (not taken)
		0x00,                   // idx18:    HALT
		0x40, 0x03, 0x01, 0x00, // idx19-22: LOAD_REG r3, 1 (taken)
		0x00, // idx23: HALT
	)
	if err := m.Load(program); err != nil {
		t.Fatalf("Load: %v", err)
	}
	m.Run()
	if m.LastFault() != "" {
		t.Fatalf("unexpected fault: %s", m.LastFault())
	}
	return m.RegRead(3) == 1
}

func TestCmpJccContract(t *testing.T) {
	const (
		jz  = 0x61
		jnz = 0x62
		jg  = 0x63
		jl  = 0x64
	)
	cases := []struct {
		name         string
		r0, r1       uint16
		wantZ, wantG, wantL bool
	}{
		{"equal", 5, 5, true, false, false},
		{"greater", 7, 3, false, true, false},
		{"less", 2, 9, false, false, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := jccTaken(t, jz, tc.r0, tc.r1); got != tc.wantZ {
				t.Errorf("JZ taken = %v, want %v", got, tc.wantZ)
			}
			if got := jccTaken(t, jnz, tc.r0, tc.r1); got != !tc.wantZ {
				t.Errorf("JNZ taken = %v, want %v", got, !tc.wantZ)
			}
			if got := jccTaken(t, jg, tc.r0, tc.r1); got != tc.wantG {
				t.Errorf("JG taken = %v, want %v", got, tc.wantG)
			}
			if got := jccTaken(t, jl, tc.r0, tc.r1); got != tc.wantL {
				t.Errorf("JL taken = %v, want %v", got, tc.wantL)
			}
		})
	}
}

func TestCopyMemRoundTrip(t *testing.T) {
	m, _ := newMachine()
	srcLo, srcHi := le16(0x100)
	dstLo, dstHi := le16(0x200)
	lenLo, lenHi := le16(4)
	program := asm(
		0x40, 0x00, 0xAA, 0xBB, // LOAD_REG r0, 0xBBAA
		0x41, 0x00, 0x00, 0x01, // STORE_REG r0, 0x100
		0x82, srcLo, srcHi, dstLo, dstHi, lenLo, lenHi, // COPY_MEM 0x100, 0x200, 4
		0x80, 0x01, 0x00, 0x02, // LOAD_MEM r1, 0x200
		0x00,
	)
	if err := m.Load(program); err != nil {
		t.Fatalf("Load: %v", err)
	}
	m.Run()
	if m.LastFault() != "" {
		t.Fatalf("unexpected fault: %s", m.LastFault())
	}
	if got := m.RegRead(1); got != 0xBBAA {
		t.Errorf("reg1 = 0x%04X, want 0xBBAA (LOAD_MEM must read back exactly what STORE_REG wrote via COPY_MEM)", got)
	}
}

func TestLoadTooLarge(t *testing.T) {
	m, _ := newMachine()
	big := make([]byte, vm.MaxProgramSize+1)
	if err := m.Load(big); err != vm.ErrProgramTooLarge {
		t.Fatalf("Load(oversized) = %v, want ErrProgramTooLarge", err)
	}
}

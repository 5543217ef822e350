package vm

// Each function below decodes the operands of exactly one opcode and
// applies its effect, mirroring the fetch-decode-apply split the
// dispatch table exists to express (spec.md §9's "dense dispatch table"
// design note): the execution loop itself contains no per-opcode
// control flow.

func execHalt(m *Machine) bool {
	m.running = false
	return true
}

func execPrintChar(m *Machine) bool {
	c, ok := m.fetchU8()
	if !ok {
		m.fault(outOfRangeDiagnostic, "PRINT_CHAR operand out of range")
		return false
	}
	m.device.PutChar(c)
	return true
}

func execPrintStr(m *Machine) bool {
	for {
		c, ok := m.fetchU8()
		if !ok {
			m.fault(outOfRangeDiagnostic, "PRINT_STR ran past end of RAM")
			return false
		}
		if c == 0 {
			return true
		}
		m.device.PutChar(c)
	}
}

func execClearScreen(m *Machine) bool {
	m.device.ClearText()
	return true
}

func execSetColor(m *Machine) bool {
	idx, ok := m.fetchU8()
	if !ok {
		m.fault(outOfRangeDiagnostic, "SET_COLOR operand out of range")
		return false
	}
	if idx < PaletteSize {
		m.device.SetColor(idx)
	}
	return true
}

func execGetCursor(m *Machine) bool {
	rx, ok1 := m.fetchU8()
	ry, ok2 := m.fetchU8()
	if !ok1 || !ok2 {
		m.fault(outOfRangeDiagnostic, "GET_CURSOR operands out of range")
		return false
	}
	x, y := m.device.Cursor()
	m.regWrite(rx, uint16(x))
	m.regWrite(ry, uint16(y))
	return true
}

func execSetCursor(m *Machine) bool {
	x, ok1 := m.fetchU8()
	y, ok2 := m.fetchU8()
	if !ok1 || !ok2 {
		m.fault(outOfRangeDiagnostic, "SET_CURSOR operands out of range")
		return false
	}
	m.device.SetCursor(x, y)
	return true
}

// fetch4u16 reads four consecutive 16-bit little-endian immediates, the
// shape shared by DRAW_LINE, DRAW_RECT, and FILL_RECT.
func (m *Machine) fetch4u16() (a, b, c, d uint16, ok bool) {
	var o1, o2, o3, o4 bool
	a, o1 = m.fetchU16LE()
	b, o2 = m.fetchU16LE()
	c, o3 = m.fetchU16LE()
	d, o4 = m.fetchU16LE()
	return a, b, c, d, o1 && o2 && o3 && o4
}

func execDrawLine(m *Machine) bool {
	x0, y0, x1, y1, ok := m.fetch4u16()
	if !ok {
		m.fault(outOfRangeDiagnostic, "DRAW_LINE operands out of range")
		return false
	}
	m.device.DrawLine(int(x0), int(y0), int(x1), int(y1))
	return true
}

func execDrawRect(m *Machine) bool {
	x0, y0, x1, y1, ok := m.fetch4u16()
	if !ok {
		m.fault(outOfRangeDiagnostic, "DRAW_RECT operands out of range")
		return false
	}
	m.device.DrawRect(int(x0), int(y0), int(x1), int(y1))
	return true
}

func execFillRect(m *Machine) bool {
	x0, y0, x1, y1, ok := m.fetch4u16()
	if !ok {
		m.fault(outOfRangeDiagnostic, "FILL_RECT operands out of range")
		return false
	}
	m.device.FillRect(int(x0), int(y0), int(x1), int(y1))
	return true
}

func execDrawCircle(m *Machine) bool {
	cx, ok1 := m.fetchU16LE()
	cy, ok2 := m.fetchU16LE()
	r, ok3 := m.fetchU16LE()
	if !ok1 || !ok2 || !ok3 {
		m.fault(outOfRangeDiagnostic, "DRAW_CIRCLE operands out of range")
		return false
	}
	m.device.DrawCircle(int(cx), int(cy), int(r))
	return true
}

func execSleepMs(m *Machine) bool {
	ms, ok := m.fetchU16LE()
	if !ok {
		m.fault(outOfRangeDiagnostic, "SLEEP_MS operand out of range")
		return false
	}
	m.device.Sleep(ms)
	return true
}

func execBeep(m *Machine) bool {
	freq, ok1 := m.fetchU16LE()
	dur, ok2 := m.fetchU16LE()
	if !ok1 || !ok2 {
		m.fault(outOfRangeDiagnostic, "BEEP operands out of range")
		return false
	}
	m.device.Beep(freq, dur)
	return true
}

func execGetTime(m *Machine) bool {
	r, ok := m.fetchU8()
	if !ok {
		m.fault(outOfRangeDiagnostic, "GET_TIME operand out of range")
		return false
	}
	m.regWrite(r, m.device.NowLo16())
	return true
}

func execRandom(m *Machine) bool {
	r, ok1 := m.fetchU8()
	max, ok2 := m.fetchU16LE()
	if !ok1 || !ok2 {
		m.fault(outOfRangeDiagnostic, "RANDOM operands out of range")
		return false
	}
	m.regWrite(r, m.device.RandMod(max))
	return true
}

func execSetPixel(m *Machine) bool {
	x, ok1 := m.fetchU16LE()
	y, ok2 := m.fetchU16LE()
	v, ok3 := m.fetchU8()
	if !ok1 || !ok2 || !ok3 {
		m.fault(outOfRangeDiagnostic, "SET_PIXEL operands out of range")
		return false
	}
	m.device.SetPixel(int(x), int(y), v != 0)
	return true
}

func execClearPixels(m *Machine) bool {
	m.device.ClearPixels()
	return true
}

func execLoadReg(m *Machine) bool {
	r, ok1 := m.fetchU8()
	imm, ok2 := m.fetchU16LE()
	if !ok1 || !ok2 {
		m.fault(outOfRangeDiagnostic, "LOAD_REG operands out of range")
		return false
	}
	m.regWrite(r, imm)
	return true
}

func execStoreReg(m *Machine) bool {
	r, ok1 := m.fetchU8()
	addr, ok2 := m.fetchU16LE()
	if !ok1 || !ok2 {
		m.fault(outOfRangeDiagnostic, "STORE_REG operands out of range")
		return false
	}
	if !m.writeU16LE(addr, m.regRead(r)) {
		m.fault(outOfRangeDiagnostic, "STORE_REG address out of range")
		return false
	}
	return true
}

func execPush(m *Machine) bool {
	r, ok := m.fetchU8()
	if !ok {
		m.fault(outOfRangeDiagnostic, "PUSH operand out of range")
		return false
	}
	v := m.regRead(r)
	m.pushU8(byte(v))
	m.pushU8(byte(v >> 8))
	return true
}

func execPop(m *Machine) bool {
	r, ok := m.fetchU8()
	if !ok {
		m.fault(outOfRangeDiagnostic, "POP operand out of range")
		return false
	}
	hi := m.popU8()
	lo := m.popU8()
	m.regWrite(r, uint16(lo)|uint16(hi)<<8)
	return true
}

// fetch3reg reads three register-index operands, the shape shared by
// every three-register arithmetic opcode.
func (m *Machine) fetch3reg() (dst, s1, s2 uint8, ok bool) {
	var o1, o2, o3 bool
	dst, o1 = m.fetchU8()
	s1, o2 = m.fetchU8()
	s2, o3 = m.fetchU8()
	return dst, s1, s2, o1 && o2 && o3
}

// execBinaryArith builds a handler for the three-register opcodes whose
// semantics are "dst = op(s1, s2)" with no special-casing. All
// arithmetic wraps modulo 2^16, which is exactly what Go's uint16 gives
// us for free.
func execBinaryArith(op func(a, b uint16) uint16) opcodeHandler {
	return func(m *Machine) bool {
		dst, s1, s2, ok := m.fetch3reg()
		if !ok {
			m.fault(outOfRangeDiagnostic, "arithmetic operands out of range")
			return false
		}
		m.regWrite(dst, op(m.regRead(s1), m.regRead(s2)))
		return true
	}
}

func execDiv(m *Machine) bool {
	dst, s1, s2, ok := m.fetch3reg()
	if !ok {
		m.fault(outOfRangeDiagnostic, "DIV operands out of range")
		return false
	}
	divisor := m.regRead(s2)
	if divisor == 0 {
		return true // leave dst untouched
	}
	m.regWrite(dst, m.regRead(s1)/divisor)
	return true
}

func execMod(m *Machine) bool {
	dst, s1, s2, ok := m.fetch3reg()
	if !ok {
		m.fault(outOfRangeDiagnostic, "MOD operands out of range")
		return false
	}
	divisor := m.regRead(s2)
	if divisor == 0 {
		return true // leave dst untouched
	}
	m.regWrite(dst, m.regRead(s1)%divisor)
	return true
}

func execNot(m *Machine) bool {
	dst, ok1 := m.fetchU8()
	src, ok2 := m.fetchU8()
	if !ok1 || !ok2 {
		m.fault(outOfRangeDiagnostic, "NOT operands out of range")
		return false
	}
	m.regWrite(dst, ^m.regRead(src))
	return true
}

// shiftAmount masks a shift count to [0,16), the resolution spec.md §9
// picks for SHL/SHR's undefined "shift by reg[src] without masking"
// source behavior.
func shiftAmount(v uint16) uint {
	return uint(v) & 0xF
}

func execShl(m *Machine) bool {
	dst, ok1 := m.fetchU8()
	amtReg, ok2 := m.fetchU8()
	if !ok1 || !ok2 {
		m.fault(outOfRangeDiagnostic, "SHL operands out of range")
		return false
	}
	m.regWrite(dst, m.regRead(dst)<<shiftAmount(m.regRead(amtReg)))
	return true
}

func execShr(m *Machine) bool {
	dst, ok1 := m.fetchU8()
	amtReg, ok2 := m.fetchU8()
	if !ok1 || !ok2 {
		m.fault(outOfRangeDiagnostic, "SHR operands out of range")
		return false
	}
	m.regWrite(dst, m.regRead(dst)>>shiftAmount(m.regRead(amtReg)))
	return true
}

func execCmp(m *Machine) bool {
	s1, ok1 := m.fetchU8()
	s2, ok2 := m.fetchU8()
	if !ok1 || !ok2 {
		m.fault(outOfRangeDiagnostic, "CMP operands out of range")
		return false
	}
	a, b := m.regRead(s1), m.regRead(s2)
	m.flagClearAll()
	switch {
	case a == b:
		m.flagSet(FlagZero)
	case a > b:
		m.flagSet(FlagGreater)
	default:
		m.flagSet(FlagLess)
	}
	return true
}

func execJmp(m *Machine) bool {
	target, ok := m.fetchU16LE()
	if !ok {
		m.fault(outOfRangeDiagnostic, "JMP operand out of range")
		return false
	}
	m.pc = target
	return true
}

// execJcc builds a conditional-jump handler. When invert is false the
// jump is taken iff bit is set; when true it is taken iff bit is clear
// (this is how JNZ is expressed against the same FlagZero bit JZ
// tests). The target operand is always consumed, even when the branch
// is not taken, so PC ends up at the post-operand position per spec.md
// §4.4.
func execJcc(bit uint8, invert bool) opcodeHandler {
	return func(m *Machine) bool {
		target, ok := m.fetchU16LE()
		if !ok {
			m.fault(outOfRangeDiagnostic, "jump operand out of range")
			return false
		}
		take := m.flagTest(bit)
		if invert {
			take = !take
		}
		if take {
			m.pc = target
		}
		return true
	}
}

func execCall(m *Machine) bool {
	target, ok := m.fetchU16LE()
	if !ok {
		m.fault(outOfRangeDiagnostic, "CALL operand out of range")
		return false
	}
	m.pushU16LE(m.pc)
	m.pc = target
	return true
}

func execRet(m *Machine) bool {
	m.pc = m.popU16LE()
	return true
}

func execReadChar(m *Machine) bool {
	r, ok := m.fetchU8()
	if !ok {
		m.fault(outOfRangeDiagnostic, "READ_CHAR operand out of range")
		return false
	}
	c := m.device.ReadChar()
	m.regWrite(r, uint16(c))
	return true
}

func execLoadMem(m *Machine) bool {
	r, ok1 := m.fetchU8()
	addr, ok2 := m.fetchU16LE()
	if !ok1 || !ok2 {
		m.fault(outOfRangeDiagnostic, "LOAD_MEM operands out of range")
		return false
	}
	v, ok := m.readU16LE(addr)
	if !ok {
		m.fault(outOfRangeDiagnostic, "LOAD_MEM address out of range")
		return false
	}
	m.regWrite(r, v)
	return true
}

func execStoreMem(m *Machine) bool {
	addr, ok1 := m.fetchU16LE()
	r, ok2 := m.fetchU8()
	if !ok1 || !ok2 {
		m.fault(outOfRangeDiagnostic, "STORE_MEM operands out of range")
		return false
	}
	if !m.writeU16LE(addr, m.regRead(r)) {
		m.fault(outOfRangeDiagnostic, "STORE_MEM address out of range")
		return false
	}
	return true
}

// execCopyMem implements COPY_MEM overlap-safely by choosing the
// forward or backward copy direction based on whether dst is past src,
// exactly the way memmove avoids clobbering source bytes it hasn't
// read yet.
func execCopyMem(m *Machine) bool {
	src, ok1 := m.fetchU16LE()
	dst, ok2 := m.fetchU16LE()
	length, ok3 := m.fetchU16LE()
	if !ok1 || !ok2 || !ok3 {
		m.fault(outOfRangeDiagnostic, "COPY_MEM operands out of range")
		return false
	}
	if length == 0 {
		return true
	}
	// Accept copies ending at the very last byte: src+len<=MemSize,
	// not the source's stricter src+len<MemSize (spec.md §9 open
	// question, resolved to the more permissive boundary here).
	if int(src)+int(length) > MemSize || int(dst)+int(length) > MemSize {
		m.fault(outOfRangeDiagnostic, "COPY_MEM range out of bounds")
		return false
	}
	if dst > src {
		for i := int(length) - 1; i >= 0; i-- {
			m.ram[int(dst)+i] = m.ram[int(src)+i]
		}
	} else {
		for i := 0; i < int(length); i++ {
			m.ram[int(dst)+i] = m.ram[int(src)+i]
		}
	}
	return true
}

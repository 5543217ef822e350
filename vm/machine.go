// Package vm is a small fantasy-computer virtual machine. It loads a flat
// bytecode program into a 64 KiB RAM image and executes it against eight
// 16-bit registers, a program counter, a stack pointer, and a flags byte,
// driving program-visible side effects (text, pixels, sound, keyboard)
// through the DeviceSurface interface rather than talking to any real
// display or audio hardware directly.
package vm

import (
	"fmt"
)

// MemSize is the size of the machine's linear address space in bytes.
const MemSize = 0x10000 // 65536

// StackSize is the size, in bytes, of the stack region at the top of RAM.
const StackSize = 256

// stackBase is the RAM index the stack region begins at; SP is added to
// this base to get the absolute address of the top-of-stack byte.
const stackBase = MemSize - StackSize

// NumRegisters is the number of general-purpose 16-bit registers.
const NumRegisters = 8

// Flag bits set only by CMP.
const (
	FlagZero    = 1 << 0
	FlagGreater = 1 << 1
	FlagLess    = 1 << 2
)

// MaxProgramSize is the largest program Load will accept.
const MaxProgramSize = MemSize

// ErrProgramTooLarge is returned by Load when the program exceeds MemSize.
var ErrProgramTooLarge = fmt.Errorf("program too large: max size is %d bytes", MaxProgramSize)

// Machine is the virtual machine's state: RAM, registers, PC, SP, flags,
// and the running bit. A Machine is created by NewMachine and reset by
// Load, which clears RAM, registers, and flags, so nothing is retained
// across program runs.
type Machine struct {
	ram   [MemSize]byte
	regs  [NumRegisters]uint16
	pc    uint16
	sp    uint16
	flags uint8

	running bool

	// device is the program-visible side-effect target: text plane,
	// pixel plane, cursor, color, sleep, beep, and blocking key read.
	// READ_CHAR's blocking behavior is owned by whichever keyboard
	// mailbox the concrete device was constructed with; the machine
	// itself never touches the mailbox directly.
	device DeviceSurface

	// shutdown, when non-nil, is checked by Run before every
	// instruction so an external close can stop a running program
	// without waiting for HALT.
	shutdown *ShutdownSignal

	// lastFault holds a human-readable description of the condition
	// that halted the machine, if any (empty string on a clean HALT).
	lastFault string
}

// NewMachine constructs a Machine wired to the given device surface. It
// does not load a program; call Load before Run.
func NewMachine(device DeviceSurface, shutdown *ShutdownSignal) *Machine {
	return &Machine{
		device:   device,
		shutdown: shutdown,
	}
}

// Load installs program at address 0, zeroes the rest of RAM, resets PC
// to 0, SP to the top of the stack region, clears registers and flags,
// and marks the machine running. It rejects programs larger than MemSize
// without modifying any existing state.
func (m *Machine) Load(program []byte) error {
	if len(program) > MaxProgramSize {
		return ErrProgramTooLarge
	}

	m.ram = [MemSize]byte{}
	copy(m.ram[:], program)

	m.regs = [NumRegisters]uint16{}
	m.pc = 0
	m.sp = StackSize - 1
	m.flags = 0
	m.running = true
	m.lastFault = ""

	return nil
}

// Running reports whether the machine is still executing.
func (m *Machine) Running() bool {
	return m.running
}

// LastFault returns the diagnostic recorded by the last fault, or an
// empty string if the machine halted cleanly or is still running.
func (m *Machine) LastFault() string {
	return m.lastFault
}

// PC returns the current program counter, mostly useful for tests.
func (m *Machine) PC() uint16 {
	return m.pc
}

// SP returns the current stack pointer, mostly useful for tests
// asserting the call/return round-trip contract in spec.md §8.
func (m *Machine) SP() uint16 {
	return m.sp
}

// RegRead returns the value of general register i, or 0 for i>=8 (the
// same BadRegisterIndex policy an in-program read gets). Exported for
// tests; the execution loop uses the unexported regRead directly.
func (m *Machine) RegRead(i uint8) uint16 {
	return m.regRead(i)
}

// Flags returns the raw flags byte; only FlagZero, FlagGreater, and
// FlagLess are ever set, by CMP.
func (m *Machine) Flags() uint8 {
	return m.flags
}

// ---- bounds-checked RAM access (C1) ----

func (m *Machine) readU8(addr uint16) (uint8, bool) {
	if int(addr) >= MemSize {
		return 0, false
	}
	return m.ram[addr], true
}

func (m *Machine) writeU8(addr uint16, v uint8) bool {
	if int(addr) >= MemSize {
		return false
	}
	m.ram[addr] = v
	return true
}

func (m *Machine) readU16LE(addr uint16) (uint16, bool) {
	if int(addr)+1 >= MemSize {
		return 0, false
	}
	lo := uint16(m.ram[addr])
	hi := uint16(m.ram[addr+1])
	return lo | hi<<8, true
}

func (m *Machine) writeU16LE(addr uint16, v uint16) bool {
	if int(addr)+1 >= MemSize {
		return false
	}
	m.ram[addr] = byte(v)
	m.ram[addr+1] = byte(v >> 8)
	return true
}

// regRead reads register i, returning 0 for i>=NumRegisters (the caller
// decides whether that's a no-op or should be skipped; for reads it is
// always safe to return 0).
func (m *Machine) regRead(i uint8) uint16 {
	if i >= NumRegisters {
		return 0
	}
	return m.regs[i]
}

// regWrite writes register i; writes to i>=NumRegisters are silently
// dropped per the BadRegisterIndex policy.
func (m *Machine) regWrite(i uint8, v uint16) {
	if i >= NumRegisters {
		return
	}
	m.regs[i] = v
}

func (m *Machine) flagSet(bit uint8) {
	m.flags |= bit
}

func (m *Machine) flagClearAll() {
	m.flags = 0
}

func (m *Machine) flagTest(bit uint8) bool {
	return m.flags&bit != 0
}

// ---- operand decoder (C2) ----

// fetchU8 reads the byte at pc and advances pc by one. Every uint16 pc
// lies inside RAM, so ok is always true; a fetch at 0xFFFF wraps pc to
// 0 rather than faulting.
func (m *Machine) fetchU8() (v uint8, ok bool) {
	v, ok = m.readU8(m.pc)
	if ok {
		m.pc++
	}
	return
}

// fetchU16LE reads the little-endian 16-bit word at pc and advances pc
// by two.
func (m *Machine) fetchU16LE() (v uint16, ok bool) {
	v, ok = m.readU16LE(m.pc)
	if ok {
		m.pc += 2
	}
	return
}

// ---- stack discipline shared by PUSH/POP and CALL/RET ----

// pushU8 writes one byte to the stack region and decrements SP. A push
// when sp==0 is silently dropped (see spec §9 on stack wrap-around).
func (m *Machine) pushU8(v uint8) {
	if m.sp == 0 {
		return
	}
	m.ram[stackBase+int(m.sp)] = v
	m.sp--
}

// popU8 increments SP and reads the byte it now points at. A pop when
// sp is already at the top of the stack region is silently dropped and
// returns 0.
func (m *Machine) popU8() uint8 {
	if int(m.sp) >= StackSize-1 {
		return 0
	}
	m.sp++
	return m.ram[stackBase+int(m.sp)]
}

func (m *Machine) pushU16LE(v uint16) {
	m.pushU8(byte(v))
	m.pushU8(byte(v >> 8))
}

func (m *Machine) popU16LE() uint16 {
	hi := m.popU8()
	lo := m.popU8()
	return uint16(lo) | uint16(hi)<<8
}

// ---- execution loop (C4) ----

// diagnostic opcode/fault byte sequences, written through the device
// surface so a running program's final screen carries the failure.
var unknownOpcodeDiagnostic = []byte("\nError: Unknown opcode\n")
var outOfRangeDiagnostic = []byte("\nError: Out of range\n")

// Run executes the loaded program to completion: it fetches one opcode
// per iteration, dispatches it, and stops on HALT, an unknown opcode, a
// shutdown request, or a multi-byte operand or memory access that would
// cross MemSize. One-byte fetches do not fault at the end of RAM: a
// fetch at 0xFFFF wraps pc to 0 and execution continues from there. It
// returns once running is false.
func (m *Machine) Run() {
	for m.running {
		if m.shutdown != nil && m.shutdown.Requested() {
			m.running = false
			return
		}

		op, ok := m.fetchU8()
		if !ok {
			m.fault(outOfRangeDiagnostic, "pc out of range")
			return
		}

		handler, known := dispatchTable[op]
		if !known {
			m.fault(unknownOpcodeDiagnostic, fmt.Sprintf("unknown opcode 0x%02X", op))
			return
		}

		if !handler(m) {
			// the handler already emitted a diagnostic via fault()
			return
		}
	}
}

// fault writes a diagnostic to the device surface and halts the machine.
func (m *Machine) fault(diagnostic []byte, reason string) {
	for _, b := range diagnostic {
		m.device.PutChar(b)
	}
	m.lastFault = reason
	m.running = false
}

package vm

import (
	"sync"
	"time"
)

// pollInterval is the granularity at which ReadChar polls the mailbox
// while waiting for a key; spec.md §5 requires at least 10 Hz.
const pollInterval = 10 * time.Millisecond

// Keyboard is the single-slot mailbox carrying the latest key codepoint
// from the back-end input thread to the VM thread. Read returns only a
// codepoint delivered after it began, and each Deliver overwrites the
// previous codepoint, so of several keys delivered during one Read only
// the most recent is returned; keys delivered while no Read is waiting
// are discarded. This is the only synchronization point between the two
// threads (spec.md §5).
type Keyboard struct {
	mu      sync.Mutex
	pending bool
	code    byte
	seq     uint64
}

// NewKeyboard returns an empty mailbox.
func NewKeyboard() *Keyboard {
	return &Keyboard{}
}

// Deliver is called by the back-end input thread whenever a key event
// arrives. It overwrites any codepoint not yet consumed.
func (k *Keyboard) Deliver(codepoint byte) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.code = codepoint
	k.pending = true
	k.seq++
}

// Read blocks until a codepoint has been delivered since Read began,
// polling at pollInterval, then consumes and returns it. shutdown, if
// non-nil, is checked each poll so an external close can unblock a
// program waiting on input.
func (k *Keyboard) Read(shutdown *ShutdownSignal) byte {
	startSeq := k.currentSeq()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		if shutdown != nil && shutdown.Requested() {
			return 0
		}
		if c, ok := k.tryConsume(startSeq); ok {
			return c
		}
		<-ticker.C
	}
}

func (k *Keyboard) currentSeq() uint64 {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.seq
}

func (k *Keyboard) tryConsume(sinceSeq uint64) (byte, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.pending && k.seq > sinceSeq {
		k.pending = false
		return k.code, true
	}
	return 0, false
}

// ShutdownSignal is a shared flag that lets a closed window end a
// running program without waiting for a HALT or fault. Machine.Run
// checks it before every instruction, so a tight loop stops too, and
// Keyboard.Read checks it on every poll; a SLEEP_MS or BEEP already in
// progress is not interrupted.
type ShutdownSignal struct {
	mu        sync.Mutex
	requested bool
}

// NewShutdownSignal returns a signal that has not yet fired.
func NewShutdownSignal() *ShutdownSignal {
	return &ShutdownSignal{}
}

// Request marks the signal as fired. Safe to call more than once.
func (s *ShutdownSignal) Request() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requested = true
}

// Requested reports whether Request has been called.
func (s *ShutdownSignal) Requested() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requested
}

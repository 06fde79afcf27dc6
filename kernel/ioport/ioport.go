/*
 * pmkernel - Port I/O and interrupt-flag primitives
 *
 * Stands in for the handful of privileged x86 instructions (in/out,
 * cli/sti, lidt/lgdt/ltr, invlpg) that a hosted Go process cannot issue.
 * Every other component reaches hardware only through this package.
 */
package ioport

import "sync"

type ports struct {
	mu  sync.Mutex
	reg [65536]uint8
}

var io ports

var (
	intMu     sync.Mutex
	ifEnabled = true
)

// Out8 writes a byte to a simulated I/O port.
func Out8(port uint16, value uint8) {
	io.mu.Lock()
	defer io.mu.Unlock()
	io.reg[port] = value
}

// In8 reads a byte from a simulated I/O port.
func In8(port uint16) uint8 {
	io.mu.Lock()
	defer io.mu.Unlock()
	return io.reg[port]
}

// InterruptsEnabled reports whether the simulated IF flag is set.
func InterruptsEnabled() bool {
	intMu.Lock()
	defer intMu.Unlock()
	return ifEnabled
}

// DisableInterrupts clears the simulated IF flag (cli).
func DisableInterrupts() {
	intMu.Lock()
	defer intMu.Unlock()
	ifEnabled = false
}

// EnableInterrupts sets the simulated IF flag (sti).
func EnableInterrupts() {
	intMu.Lock()
	defer intMu.Unlock()
	ifEnabled = true
}

// CriticalSection runs fn with interrupts forced off, restoring whatever
// the IF flag held on entry before returning. This is the single
// interrupts-off abstraction every component uses to serialize access to
// process-wide mutable state: the pid vector, terminal table, paging
// structures, and the TSS.
func CriticalSection(fn func()) {
	intMu.Lock()
	prior := ifEnabled
	ifEnabled = false
	intMu.Unlock()

	fn()

	intMu.Lock()
	ifEnabled = prior
	intMu.Unlock()
}

// tlbGeneration increments on every FlushTLB; kernel/paging keeps no
// translation cache, so it has no other effect on a host without a real MMU.
var tlbGeneration uint64

// FlushTLB invalidates cached virtual-to-physical translations.
func FlushTLB() {
	intMu.Lock()
	tlbGeneration++
	intMu.Unlock()
}

// TLBGeneration returns the current flush generation counter.
func TLBGeneration() uint64 {
	intMu.Lock()
	defer intMu.Unlock()
	return tlbGeneration
}

// Installed records which low-level structures have been loaded at boot
// (IDT, GDT, TSS), so tests can assert on boot ordering without a real CPU.
type Installed struct {
	IDT bool
	GDT bool
	TSS bool
}

var installed Installed

// LoadIDT marks the interrupt descriptor table as installed.
func LoadIDT() { installed.IDT = true }

// LoadGDT marks the global descriptor table as installed.
func LoadGDT() { installed.GDT = true }

// LoadTSS marks the task-state segment as installed.
func LoadTSS() { installed.TSS = true }

// Loaded reports which low-level structures have been loaded.
func Loaded() Installed { return installed }

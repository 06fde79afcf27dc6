/*
 * pmkernel - Simulated physical memory
 *
 * A single byte arena standing in for physical RAM: one package-global
 * backing array, exported Get/Put accessors, no entity outside this
 * package ever touches the array directly.
 */
package mem

import "pmkernel/kernel/kconst"

const (
	// VideoMemBase is the physical address of the legacy text-mode buffer.
	VideoMemBase = 0x000B8000
	// VideoMemBytes is the size of the 80x25 (char, attribute) buffer.
	VideoMemBytes = 80 * 25 * 2

	// terminalBackingBase sits just past the last process's 4MB frame and
	// holds one 4KB mirror page per virtual terminal.
	terminalBackingBase = kconst.ProcessFrameBase + kconst.MaxProcesses*kconst.FourMB

	// PhysicalBytes is the size of the simulated physical address space:
	// enough for the kernel image, MAX_PROCESSES 4MB user frames starting
	// at 8MB, and one 4KB video-backing page per terminal.
	PhysicalBytes = terminalBackingBase + kconst.MaxTerminals*kconst.BlockSize
)

var physical [PhysicalBytes]byte

// TerminalBackingAddr returns the physical address of terminal t's 4KB
// offscreen video mirror page.
func TerminalBackingAddr(t int) uint32 {
	return terminalBackingBase + uint32(t)*kconst.BlockSize
}

// CheckAddr reports whether addr is a valid physical address.
func CheckAddr(addr uint32) bool {
	return addr < PhysicalBytes
}

// GetByte reads one byte of physical memory without bounds checking.
func GetByte(addr uint32) byte {
	return physical[addr]
}

// PutByte writes one byte of physical memory without bounds checking.
func PutByte(addr uint32, v byte) {
	physical[addr] = v
}

// ReadAt copies length bytes out of physical memory starting at addr.
func ReadAt(addr uint32, length int) []byte {
	out := make([]byte, length)
	copy(out, physical[addr:int(addr)+length])
	return out
}

// WriteAt copies data into physical memory starting at addr.
func WriteAt(addr uint32, data []byte) {
	copy(physical[addr:], data)
}

// Zero clears length bytes of physical memory starting at addr.
func Zero(addr uint32, length int) {
	z := physical[addr : int(addr)+length]
	for i := range z {
		z[i] = 0
	}
}

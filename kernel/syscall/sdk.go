package syscall

import (
	"pmkernel/kernel/idt"
	"pmkernel/kernel/process"
)

// invoke builds an interrupt frame for pid/terminal and runs it through
// the installed syscall gate, the same path a real `int 0x80` would take
// from ring 3. Registered Program closures call the wrappers below
// instead of touching idt directly.
func invoke(p *process.Process, call int, a0, a1, a2 uint32, bufs [3][]byte) int32 {
	process.CheckKillRequest(p)
	frame := &idt.Frame{
		Vector:   idt.SyscallVector,
		Pid:      p.Pid,
		Terminal: p.Terminal,
		Call:     call,
		Args:     [3]uint32{a0, a1, a2},
		Bufs:     bufs,
	}
	idt.Dispatch(frame)
	return frame.RetVal
}

// Read issues the read() syscall for fdNum into buf.
func Read(p *process.Process, fdNum int, buf []byte, n int) int32 {
	return invoke(p, SysRead, uint32(fdNum), 0, uint32(n), [3][]byte{nil, buf, nil})
}

// Write issues the write() syscall for fdNum from buf.
func Write(p *process.Process, fdNum int, buf []byte, n int) int32 {
	return invoke(p, SysWrite, uint32(fdNum), 0, uint32(n), [3][]byte{nil, buf, nil})
}

// Open issues the open() syscall for name, returning the new fd number
// or -1.
func Open(p *process.Process, name string) int32 {
	nameBuf := append([]byte(name), 0)
	return invoke(p, SysOpen, 0, 0, 0, [3][]byte{nameBuf, nil, nil})
}

// Close issues the close() syscall for fdNum.
func Close(p *process.Process, fdNum int) int32 {
	return invoke(p, SysClose, uint32(fdNum), 0, 0, [3][]byte{})
}

// Execute issues the execute() syscall for cmd, blocking until the
// child halts, and returns its status.
func Execute(p *process.Process, cmd string) int32 {
	nameBuf := append([]byte(cmd), 0)
	return invoke(p, SysExecute, 0, 0, 0, [3][]byte{nameBuf, nil, nil})
}

// Halt issues the halt() syscall; it never returns.
func Halt(p *process.Process, status int32) {
	invoke(p, SysHalt, uint32(status), 0, 0, [3][]byte{})
}

// Getargs issues the getargs() syscall into buf.
func Getargs(p *process.Process, buf []byte) int32 {
	return invoke(p, SysGetargs, 0, 0, 0, [3][]byte{buf, nil, nil})
}

// Vidmap issues the vidmap() syscall, returning the mapped virtual
// address via out (a 4-byte little-endian slot).
func Vidmap(p *process.Process, out []byte) int32 {
	return invoke(p, SysVidmap, 0, 0, 0, [3][]byte{out, nil, nil})
}

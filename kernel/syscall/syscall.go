/*
 * pmkernel - Syscall gate dispatch
 *
 * Vector 0x80's handler reads frame.Call and dispatches through a
 * 10-entry table. fd lookups against a process's descriptor table
 * happen here, uniformly, before handing off to the backend's
 * Operations.Read/Write -- which is also where the
 * mark-open-after-backend-succeeds ordering lives: open()
 * only flips a descriptor's Open flag to true once the backend's own
 * Open call has returned without error, so a failed open never leaves a
 * half-initialized descriptor live in the table.
 */
package syscall

import (
	"pmkernel/kernel/fd"
	"pmkernel/kernel/fs"
	"pmkernel/kernel/idt"
	"pmkernel/kernel/kconst"
	"pmkernel/kernel/process"
	"pmkernel/kernel/rtc"
	"pmkernel/kernel/terminal"
)

// Syscall numbers, in the fixed order the ABI assigns them starting at 1
// (call number 0 is reserved/invalid, matching the reference ABI).
const (
	SysHalt = iota + 1
	SysExecute
	SysRead
	SysWrite
	SysOpen
	SysClose
	SysGetargs
	SysVidmap
	SysSetHandler
	SysSigreturn
)

// Install registers the syscall gate at idt.SyscallVector.
func Install() {
	idt.Install(idt.SyscallVector, dispatch)
}

// current resolves the process handle a frame's pid names. It is bound
// once by BindCurrentLookup; the frame's pid is filled in by the SDK's
// invoke from the calling process.
var current func(pid int) *process.Process

// BindCurrentLookup wires the scheduler's process lookup into the
// dispatch table. Call once during boot.
func BindCurrentLookup(lookup func(pid int) *process.Process) {
	current = lookup
}

func dispatch(frame *idt.Frame) {
	p := current(frame.Pid)
	if p == nil {
		frame.RetVal = -1
		return
	}
	switch frame.Call {
	case SysHalt:
		process.Halt(p, int32(frame.Args[0]))
	case SysExecute:
		frame.RetVal = sysExecute(p, frame)
	case SysRead:
		frame.RetVal = sysRead(p, frame)
	case SysWrite:
		frame.RetVal = sysWrite(p, frame)
	case SysOpen:
		frame.RetVal = sysOpen(p, frame)
	case SysClose:
		frame.RetVal = sysClose(p, frame)
	case SysGetargs:
		frame.RetVal = sysGetargs(p, frame)
	case SysVidmap:
		frame.RetVal = sysVidmap(p, frame)
	case SysSetHandler, SysSigreturn:
		frame.RetVal = -1 // signal delivery has no realized component
	default:
		frame.RetVal = -1
	}
}

func sysExecute(p *process.Process, frame *idt.Frame) int32 {
	cmd := argString(frame)
	if cmd == "" {
		return -1
	}
	return process.Execute(p.Terminal, cmd)
}

func argString(frame *idt.Frame) string {
	buf, ok := bufArg(frame, 0)
	if !ok {
		return ""
	}
	n := 0
	for n < len(buf) && buf[n] != 0 {
		n++
	}
	return string(buf[:n])
}

// bufArg resolves frame.Args[idx] as a byte slice. The syscall entry
// path stashes the caller's slice in frame.Bufs before Dispatch runs;
// it is used as given, with no range check or paging translation.
func bufArg(frame *idt.Frame, idx int) ([]byte, bool) {
	if idx >= len(frame.Bufs) || frame.Bufs[idx] == nil {
		return nil, false
	}
	return frame.Bufs[idx], true
}

func sysRead(p *process.Process, frame *idt.Frame) int32 {
	fdNum := int(frame.Args[0])
	if fdNum < 0 || fdNum >= len(p.FDs.Slots) {
		return -1
	}
	buf, ok := bufArg(frame, 1)
	if !ok {
		return -1
	}
	n, err := p.FDs.Slots[fdNum].Read(buf, int(frame.Args[2]))
	if err != nil {
		return -1
	}
	return int32(n)
}

func sysWrite(p *process.Process, frame *idt.Frame) int32 {
	fdNum := int(frame.Args[0])
	if fdNum < 0 || fdNum >= len(p.FDs.Slots) {
		return -1
	}
	buf, ok := bufArg(frame, 1)
	if !ok {
		return -1
	}
	n, err := p.FDs.Slots[fdNum].Write(buf, int(frame.Args[2]))
	if err != nil {
		return -1
	}
	return int32(n)
}

func sysOpen(p *process.Process, frame *idt.Frame) int32 {
	name := argString(frame)
	if name == "" {
		return -1
	}

	slot := p.FDs.AllocateFrom(2)
	if slot < 0 {
		return -1
	}

	ops, err := resolveOps(name)
	if err != nil {
		return -1
	}

	d := &p.FDs.Slots[slot]
	d.Terminal = p.Terminal
	d.Ops = ops
	// Open is attempted before the slot is marked live: a failing
	// backend Open() must never leave a half-initialized descriptor
	// occupying an fd number the process believes is free.
	if err := ops.Open(d, name); err != nil {
		d.Ops = nil
		return -1
	}
	d.Open = true
	return int32(slot)
}

func resolveOps(name string) (fd.Operations, error) {
	if name == "stdin" {
		return terminal.StdinOps, nil
	}
	if name == "stdout" {
		return terminal.StdoutOps, nil
	}
	img := fs.Mounted()
	if img == nil {
		return nil, fs.ErrNotFound
	}
	dent, err := img.ReadDentryByName(name)
	if err != nil {
		return nil, err
	}
	switch dent.Type {
	case kconst.DentryTypeRTC:
		return rtc.Ops, nil
	case kconst.DentryTypeDir:
		return fs.DirOps, nil
	default:
		return fs.RegularOps, nil
	}
}

func sysClose(p *process.Process, frame *idt.Frame) int32 {
	fdNum := int(frame.Args[0])
	if fdNum < 2 || fdNum >= len(p.FDs.Slots) {
		return -1 // fd 0 and 1 may never be closed
	}
	if err := p.FDs.Slots[fdNum].Close(); err != nil {
		return -1
	}
	return 0
}

func sysGetargs(p *process.Process, frame *idt.Frame) int32 {
	buf, ok := bufArg(frame, 0)
	if !ok {
		return -1
	}
	if err := process.GetArgs(p, buf); err != nil {
		return -1
	}
	return 0
}

func sysVidmap(p *process.Process, frame *idt.Frame) int32 {
	ptrOut, ok := bufArg(frame, 0)
	if !ok || len(ptrOut) < 4 {
		return -1
	}
	addr, err := process.Vidmap(p, true)
	if err != nil {
		return -1
	}
	ptrOut[0] = byte(addr)
	ptrOut[1] = byte(addr >> 8)
	ptrOut[2] = byte(addr >> 16)
	ptrOut[3] = byte(addr >> 24)
	return 0
}

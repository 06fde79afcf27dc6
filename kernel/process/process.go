/*
 * pmkernel - Process control blocks and the execute/halt lifecycle
 *
 * A hosted Go process has no ring-3 to drop into and no real MMU fault
 * to single-step, so "executing" a user program means running a
 * registered Go closure with a *Process handle standing in for the
 * user-mode CPU state: the closure issues the same ten syscalls a real
 * program's libc stubs would, through the same fd table and paging
 * state. Execute blocks its caller until the closure returns, so a
 * parent observes its child's exit status as Execute's return value.
 */
package process

import (
	"errors"
	"sync"

	"pmkernel/kernel/fd"
	"pmkernel/kernel/fs"
	"pmkernel/kernel/ioport"
	"pmkernel/kernel/kconst"
	"pmkernel/kernel/mem"
	"pmkernel/kernel/paging"
	"pmkernel/kernel/terminal"
)

func init() {
	// Backends that spin awaiting device state (a line of input, an RTC
	// interval) poll through here so a pending kill can abort the
	// blocked read from the process's own goroutine.
	fd.BlockedPoll = func(terminalID int) {
		pmu.Lock()
		var proc *Process
		if stack := foreground[terminalID]; len(stack) > 0 {
			proc = processes[stack[len(stack)-1]]
		}
		pmu.Unlock()
		if proc != nil {
			CheckKillRequest(proc)
		}
	}
}

// Program is the closure a registered executable name runs as. It
// receives the process handle it was given, through which it performs
// every blocking I/O and process-control operation a real user program
// would via its syscall stubs.
type Program func(p *Process) int32

var (
	mu       sync.Mutex
	registry = map[string]Program{}
)

// RegisterProgram binds name so that Execute(name, ...) runs fn.
func RegisterProgram(name string, fn Program) {
	mu.Lock()
	defer mu.Unlock()
	registry[name] = fn
}

// elfMagic is the four-byte header every loadable image must start with.
var elfMagic = [4]byte{0x7f, 'E', 'L', 'F'}

// Process is one process control block.
type Process struct {
	Pid        int
	ParentPid  int
	Terminal   int
	Name       string
	Args       string
	EntryAddr  uint32
	FDs        fd.Table
	VidmapOn   bool
	haltStatus int32
	done       chan struct{}

	kmu           sync.Mutex
	killRequested bool
	killStatus    int32
}

var (
	pmu       sync.Mutex
	pidInUse  [kconst.MaxProcesses]bool
	processes [kconst.MaxProcesses]*Process
	// foreground maps each terminal to the pid currently running on it,
	// a stack since Execute nests: foreground[t] is always the innermost.
	foreground [kconst.MaxTerminals][]int
)

func allocPid() int {
	for i := 0; i < kconst.MaxProcesses; i++ {
		if !pidInUse[i] {
			pidInUse[i] = true
			return i
		}
	}
	return -1
}

func freePid(pid int) {
	pidInUse[pid] = false
	processes[pid] = nil
}

// ErrNoProcessSlots is returned by Execute when all MaxProcesses pids
// are already in use.
var ErrNoProcessSlots = errors.New("process: no free pid")

// ErrNotFound is returned by Execute when the named executable has no
// registered program and no matching filesystem dentry.
var ErrNotFound = errors.New("process: command not found")

// ErrBadExecutable is returned when the named file exists but does not
// carry the ELF-style magic header.
var ErrBadExecutable = errors.New("process: not executable")

func splitCommand(cmd string) (name string, args string) {
	for len(cmd) > 0 && cmd[0] == ' ' {
		cmd = cmd[1:]
	}
	i := 0
	for i < len(cmd) && cmd[i] != ' ' {
		i++
	}
	name = cmd[:i]
	if len(name) > kconst.MaxNameLength {
		name = name[:kconst.MaxNameLength]
	}
	for i < len(cmd) && cmd[i] == ' ' {
		i++
	}
	args = cmd[i:]
	if len(args) > kconst.MaxArgLength {
		args = args[:kconst.MaxArgLength]
	}
	return name, args
}

// validateExecutable reads the first 40 bytes of name's file, requires
// the 0x7F 'E' 'L' 'F' magic, and returns the little-endian entry
// address stored at bytes 24..27.
func validateExecutable(name string) (uint32, error) {
	img := fs.Mounted()
	if img == nil {
		return 0, ErrNotFound
	}
	dent, err := img.ReadDentryByName(name)
	if err != nil {
		return 0, ErrNotFound
	}
	if dent.Type != kconst.DentryTypeRegular {
		return 0, ErrBadExecutable
	}
	var header [40]byte
	n, err := img.ReadData(dent.Inode, 0, header[:], len(header))
	if err != nil || n < len(header) {
		return 0, ErrBadExecutable
	}
	if [4]byte{header[0], header[1], header[2], header[3]} != elfMagic {
		return 0, ErrBadExecutable
	}
	entry := uint32(header[24]) | uint32(header[25])<<8 |
		uint32(header[26])<<16 | uint32(header[27])<<24
	return entry, nil
}

// loadImage copies name's file content into pid's user frame at the
// fixed program load offset, capped at the frame size. A name with no
// filesystem backing (a built-in program) loads nothing.
func loadImage(name string, pid int) error {
	img := fs.Mounted()
	if img == nil {
		return nil
	}
	dent, err := img.ReadDentryByName(name)
	if err != nil {
		return nil
	}
	size, err := img.FileSize(dent.Inode)
	if err != nil {
		return err
	}
	if size > kconst.FourMB-kconst.ProgramLoadOffset {
		size = kconst.FourMB - kconst.ProgramLoadOffset
	}
	buf := make([]byte, size)
	if _, err := img.ReadData(dent.Inode, 0, buf, size); err != nil {
		return err
	}
	mem.WriteAt(kconst.ProcessFrameAddr(pid)+kconst.ProgramLoadOffset, buf)
	return nil
}

// Execute parses cmd as "name arg...", validates name as an executable
// (a registered program always qualifies; a filesystem-backed name must
// carry the ELF magic header), allocates a pid, installs the new
// process's paging and fd table, runs it to completion, and tears
// everything down again. It returns the child's halt status, or -1 if
// the command could not be started at all. Any failure after pid
// allocation but before the program begins running rolls the pid back
// immediately, so a bad load never leaks a process slot.
func Execute(terminalID int, cmd string) int32 {
	name, args := splitCommand(cmd)
	if name == "" {
		return -1
	}

	mu.Lock()
	prog, registered := registry[name]
	mu.Unlock()

	var entry uint32
	if !registered {
		var err error
		if entry, err = validateExecutable(name); err != nil {
			return -1
		}
	}

	var proc *Process
	pid := -1
	ioport.CriticalSection(func() {
		pmu.Lock()
		defer pmu.Unlock()
		pid = allocPid()
		if pid < 0 {
			return
		}
		parent := -1
		if stack := foreground[terminalID]; len(stack) > 0 {
			parent = stack[len(stack)-1]
		}
		proc = &Process{
			Pid:       pid,
			ParentPid: parent,
			Terminal:  terminalID,
			Name:      name,
			Args:      args,
			EntryAddr: entry,
			done:      make(chan struct{}),
		}
		proc.FDs.Slots[0] = fd.Descriptor{Ops: terminal.StdinOps, Open: true, Terminal: terminalID}
		proc.FDs.Slots[1] = fd.Descriptor{Ops: terminal.StdoutOps, Open: true, Terminal: terminalID}
		processes[pid] = proc
		foreground[terminalID] = append(foreground[terminalID], pid)
	})
	if pid < 0 {
		return -1
	}

	paging.SetProcessPaging(pid, false, terminal.Get(terminalID).BackingAddr())
	// The new process's kernel stack top is what a real switch would
	// write into tss.esp0 at this point.
	ioport.LoadTSS()

	if err := loadImage(name, pid); err != nil {
		// A failed image copy rolls the pid allocation back; nothing
		// else of the child exists yet.
		if parentPid := teardown(terminalID, pid); parentPid >= 0 {
			paging.SetProcessPaging(parentPid, processes[parentPid].VidmapOn, terminal.Get(terminalID).BackingAddr())
		}
		return -1
	}

	if !registered {
		prog = registerFilesystemLoader(name)
	}

	status := runChild(proc, prog)

	parentPid := teardown(terminalID, pid)

	if parentPid >= 0 {
		paging.SetProcessPaging(parentPid, processes[parentPid].VidmapOn, terminal.Get(terminalID).BackingAddr())
	}

	return status
}

// teardown frees pid and removes it from terminalID's foreground stack,
// returning the pid left in the foreground (the parent), or -1.
func teardown(terminalID, pid int) int {
	parent := -1
	ioport.CriticalSection(func() {
		pmu.Lock()
		defer pmu.Unlock()
		freePid(pid)
		stack := foreground[terminalID]
		for i := len(stack) - 1; i >= 0; i-- {
			if stack[i] == pid {
				foreground[terminalID] = append(stack[:i], stack[i+1:]...)
				break
			}
		}
		if s := foreground[terminalID]; len(s) > 0 {
			parent = s[len(s)-1]
		}
	})
	return parent
}

func runChild(proc *Process, prog Program) (status int32) {
	defer func() {
		if r := recover(); r != nil {
			if h, ok := r.(haltSignal); ok {
				status = h.status
			} else {
				status = 256 // exception-equivalent termination
			}
		}
		proc.FDs.CloseAll()
		close(proc.done)
	}()
	return prog(proc)
}

// registerFilesystemLoader returns a Program that streams name's file
// content in from the mounted filesystem as the process's only visible
// behavior: real user-mode code execution has no host analog, so a
// filesystem-backed executable that is not one of the built-in
// registered programs runs as a pass-through "cat its own image to
// stdout, then halt 0" stand-in. This still exercises the full
// validate/load/fd/paging path real execution would.
func registerFilesystemLoader(name string) Program {
	return func(p *Process) int32 {
		img := fs.Mounted()
		dent, err := img.ReadDentryByName(name)
		if err != nil {
			return -1
		}
		buf := make([]byte, kconst.BlockSize)
		n, err := img.ReadData(dent.Inode, 0, buf, len(buf))
		if err != nil {
			return -1
		}
		_, _ = p.FDs.Slots[1].Write(buf, n)
		return 0
	}
}

// Halt terminates the calling process with status, keeping only its low
// byte the way the real syscall ABI does.
func Halt(p *Process, status int32) {
	p.haltStatus = status & 0xFF
	panic(haltSignal{status: p.haltStatus})
}

type haltSignal struct{ status int32 }

// KillCurrentProc is invoked by the exception handler and by ctrl+C. A
// process only ever runs on its own goroutine, so this cannot panic its
// way to a halt from the scheduler's goroutine; it records the request
// instead, and the process's own goroutine honors it at its next
// syscall or blocked-read poll. A process that never yields cannot be
// terminated out from under it.
func KillCurrentProc(terminalID int, status int32) {
	ioport.CriticalSection(func() {
		pmu.Lock()
		stack := foreground[terminalID]
		if len(stack) == 0 {
			pmu.Unlock()
			return
		}
		pid := stack[len(stack)-1]
		proc := processes[pid]
		pmu.Unlock()
		if proc == nil {
			return
		}
		proc.kmu.Lock()
		proc.killRequested = true
		proc.killStatus = status
		proc.kmu.Unlock()
	})
}

// CheckKillRequest panics with a halt signal if p has a pending kill
// request. Called by the syscall package at the top of every syscall
// dispatch and by the fd package's blocked-read poll, the two points a
// running process yields back into kernel code.
func CheckKillRequest(p *Process) {
	p.kmu.Lock()
	requested := p.killRequested
	status := p.killStatus
	p.kmu.Unlock()
	if requested {
		p.haltStatus = status
		panic(haltSignal{status: p.haltStatus})
	}
}

// GetArgs copies the process's saved argument string into buf, failing
// if it (plus a NUL) would not fit.
func GetArgs(p *Process, buf []byte) error {
	if len(p.Args)+1 > len(buf) {
		return errors.New("process: argument buffer too small")
	}
	copy(buf, p.Args)
	buf[len(p.Args)] = 0
	return nil
}

// Vidmap enables or disables the process's private screen-memory
// mapping and reports the virtual address it was mapped to.
func Vidmap(p *Process, enable bool) (uint32, error) {
	p.VidmapOn = enable
	term := terminal.Get(p.Terminal)
	paging.VidmapPaging(enable, term.BackingAddr())
	if !enable {
		return 0, nil
	}
	return kconst.VidmapVirtualAddr, nil
}

// Lookup returns the live process bound to pid, or nil if pid is not
// currently in use.
func Lookup(pid int) *Process {
	pmu.Lock()
	defer pmu.Unlock()
	if pid < 0 || pid >= kconst.MaxProcesses {
		return nil
	}
	return processes[pid]
}

// ForegroundPid reports the innermost running process on terminalID, or
// -1 if none.
func ForegroundPid(terminalID int) int {
	pmu.Lock()
	defer pmu.Unlock()
	stack := foreground[terminalID]
	if len(stack) == 0 {
		return -1
	}
	return stack[len(stack)-1]
}

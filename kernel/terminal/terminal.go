/*
 * pmkernel - Virtual terminal: video output, keyboard line discipline
 *
 * Each of the kconst.MaxTerminals virtual terminals owns an 80x25 text
 * video page and a 128-byte line-input buffer. The foreground pid of each
 * terminal is tracked by kernel/process; the ForegroundPid field here is
 * set to -1 by Init and not updated afterwards. Keyboard scan codes are
 * decoded through parallel per-modifier lookup tables, and line
 * assembly happens here rather than in the keyboard IRQ stub so a
 * half-typed line survives a terminal switch.
 */
package terminal

import (
	"sync"
	"time"

	"pmkernel/kernel/fd"
	"pmkernel/kernel/ioport"
	"pmkernel/kernel/kconst"
	"pmkernel/kernel/mem"
)

// Terminal is one virtual terminal's complete state.
type Terminal struct {
	ID            int
	Cursor        int // 0..80*25-1, character cells
	ForegroundPid int
	LineBuf       [kconst.LineBufferSize]byte
	LineLen       int
	EnterReceived bool // a full line is ready for TerminalRead to drain
	HaltRequested bool // ctrl+C was seen; scheduler should kill the foreground process
	shiftDown     bool
	ctrlDown      bool
	capsLock      bool
	backingAddr   uint32
	subscribers   []chan byte
}

var (
	mu        sync.Mutex
	terminals [kconst.MaxTerminals]*Terminal
	visible   int
	// targetVisible holds the terminal a user hotkey asked to bring on
	// screen: alt+Fn only records the request here, and the scheduler
	// performs the actual swap on its next tick. -1 means no terminal
	// has ever been requested.
	targetVisible = -1
)

// Init allocates all terminals and makes terminal 0 visible. Call once
// during boot.
func Init() {
	mu.Lock()
	defer mu.Unlock()
	for i := range terminals {
		terminals[i] = &Terminal{ID: i, ForegroundPid: -1, backingAddr: mem.TerminalBackingAddr(i)}
	}
	visible = 0
	targetVisible = -1
}

// Get returns terminal t. Panics on an out-of-range index, the same
// contract as a direct array index would give a caller.
func Get(t int) *Terminal {
	mu.Lock()
	defer mu.Unlock()
	return terminals[t]
}

// Visible reports which terminal currently owns the physical video buffer.
func Visible() int {
	mu.Lock()
	defer mu.Unlock()
	return visible
}

// SwitchVisible makes t the physically displayed terminal, copying the
// previously visible terminal's video content out to its backing page
// and t's backing content into the live video buffer.
func SwitchVisible(t int) {
	mu.Lock()
	defer mu.Unlock()
	if t == visible {
		return
	}
	old := terminals[visible]
	mem.WriteAt(old.backingAddr, mem.ReadAt(mem.VideoMemBase, mem.VideoMemBytes))
	next := terminals[t]
	mem.WriteAt(mem.VideoMemBase, mem.ReadAt(next.backingAddr, mem.VideoMemBytes))
	visible = t
}

// RequestVisible records t as the terminal to bring on screen. It does
// not switch anything itself; ApplyPendingVisibleSwitch, called by the
// scheduler on its next tick, performs the actual swap.
func RequestVisible(t int) {
	mu.Lock()
	targetVisible = t
	mu.Unlock()
}

// ApplyPendingVisibleSwitch performs the swap RequestVisible asked for,
// if any is outstanding. Called once per PIT tick by the scheduler, so
// an alt+Fn press takes effect on the following tick rather than
// synchronously inside the keyboard ISR.
func ApplyPendingVisibleSwitch() {
	mu.Lock()
	t := targetVisible
	mu.Unlock()
	if t < 0 {
		return
	}
	SwitchVisible(t)
}

// BackingAddr returns terminal t's offscreen video mirror page, the
// page vidmap maps for processes running on terminal t.
func (term *Terminal) BackingAddr() uint32 {
	return term.backingAddr
}

// putChar writes one character cell into whichever video buffer term
// currently owns (live, if visible; its backing page otherwise),
// scrolling the 80x25 buffer up one row when the cursor runs off the
// bottom. A newline moves to column 0 of the next row without writing a
// cell.
func (term *Terminal) putChar(c byte) {
	dest := term.videoBase()
	const cols, rows = 80, 25

	for _, sub := range term.subscribers {
		select {
		case sub <- c:
		default: // a slow reader never blocks terminal output
		}
	}

	if c == '\n' {
		term.Cursor = (term.Cursor/cols + 1) * cols
	} else {
		mem.PutByte(dest+uint32(term.Cursor)*2, c)
		mem.PutByte(dest+uint32(term.Cursor)*2+1, 0x07)
		term.Cursor++
	}

	if term.Cursor >= cols*rows {
		row1 := mem.ReadAt(dest+uint32(cols)*2, (rows-1)*cols*2)
		mem.WriteAt(dest, row1)
		mem.Zero(dest+uint32((rows-1)*cols)*2, cols*2)
		term.Cursor -= cols
	}
}

func (term *Terminal) videoBase() uint32 {
	if term.ID == visible {
		return mem.VideoMemBase
	}
	return term.backingAddr
}

// TerminalWrite copies up to n bytes of buf to term's video output.
// NUL bytes are skipped but still counted in the returned total.
func TerminalWrite(t int, buf []byte, n int) (int, error) {
	mu.Lock()
	defer mu.Unlock()
	term := terminals[t]
	if n > len(buf) {
		n = len(buf)
	}
	for i := 0; i < n; i++ {
		if buf[i] == 0 {
			continue
		}
		term.putChar(buf[i])
	}
	return n, nil
}

// TerminalRead drains one completed line from terminal t, if a full
// line is waiting: up to n bytes, always ending in a newline (forced
// over the last copied byte when the caller's cap would otherwise drop
// it). Reports ready=false when no line has been completed yet; the
// blocking stdin read spins on this.
func TerminalRead(t int, buf []byte, n int) (int, bool) {
	mu.Lock()
	defer mu.Unlock()
	term := terminals[t]
	if !term.EnterReceived {
		return 0, false
	}
	count := term.LineLen
	if count > n {
		count = n
	}
	if count > len(buf) {
		count = len(buf)
	}
	copy(buf[:count], term.LineBuf[:count])
	if count > 0 && count < term.LineLen {
		buf[count-1] = '\n'
	}
	for i := 0; i < term.LineLen; i++ {
		term.LineBuf[i] = ' '
	}
	term.LineLen = 0
	term.EnterReceived = false
	return count, true
}

// KeyEvent carries one decoded keyboard event up from the IRQ stub.
type KeyEvent struct {
	ScanCode int
	Released bool
}

// HandleScanCode decodes one make/break scan code for whichever terminal
// currently owns the keyboard (the visible one) and applies it: shift
// and ctrl modifier tracking, F1/F2/F3 requesting a terminal switch
// (applied by the scheduler on its next tick, not here; alt is not
// tracked, so the function key alone triggers it), ctrl+C setting
// HaltRequested, ctrl+L clearing the screen, backspace editing the line
// buffer, and a bare Enter completing the line and echoing a newline.
// The whole decode runs as the keyboard ISR would: interrupts off.
func HandleScanCode(ev KeyEvent) {
	ioport.CriticalSection(func() {
		handleScanCode(ev)
	})
}

func handleScanCode(ev KeyEvent) {
	mu.Lock()
	term := terminals[visible]

	switch ev.ScanCode {
	case scLShift, scRShift:
		term.shiftDown = !ev.Released
		mu.Unlock()
		return
	case scLCtrl:
		term.ctrlDown = !ev.Released
		mu.Unlock()
		return
	case scCapsLock:
		if !ev.Released {
			term.capsLock = !term.capsLock
		}
		mu.Unlock()
		return
	case scF1, scF2, scF3:
		if !ev.Released {
			target := int(ev.ScanCode - scF1)
			mu.Unlock()
			RequestVisible(target)
			return
		}
		mu.Unlock()
		return
	}

	if ev.Released {
		mu.Unlock()
		return
	}

	if term.ctrlDown {
		switch ev.ScanCode {
		case scC:
			term.HaltRequested = true
		case scL:
			term.Cursor = 0
			mem.Zero(term.videoBase(), mem.VideoMemBytes)
		}
		mu.Unlock()
		return
	}

	switch ev.ScanCode {
	case scEnter:
		term.putChar('\n')
		if term.LineLen < len(term.LineBuf) {
			term.LineBuf[term.LineLen] = '\n'
			term.LineLen++
		} else {
			term.LineBuf[len(term.LineBuf)-1] = '\n'
		}
		term.EnterReceived = true
		mu.Unlock()
		return
	case scBackspace:
		if term.LineLen > 0 {
			term.LineLen--
			if term.Cursor%80 != 0 {
				term.Cursor--
				mem.PutByte(term.videoBase()+uint32(term.Cursor)*2, ' ')
			}
		}
		mu.Unlock()
		return
	}

	c := decode(ev.ScanCode, term.shiftDown, term.capsLock)
	mu.Unlock()
	if c == 0 {
		return
	}

	mu.Lock()
	if term.LineLen < len(term.LineBuf)-1 {
		term.LineBuf[term.LineLen] = c
		term.LineLen++
		term.putChar(c)
	}
	mu.Unlock()
}

// Subscribe registers a channel that receives a copy of every byte
// terminal t writes to its video output from this point on (e.g. a
// console connection mirroring the terminal to a remote client).
// Unsubscribe removes it again.
func Subscribe(t int) (ch chan byte, unsubscribe func()) {
	mu.Lock()
	defer mu.Unlock()
	term := terminals[t]
	sub := make(chan byte, 256)
	term.subscribers = append(term.subscribers, sub)
	return sub, func() {
		mu.Lock()
		defer mu.Unlock()
		for i, s := range term.subscribers {
			if s == sub {
				term.subscribers = append(term.subscribers[:i], term.subscribers[i+1:]...)
				close(sub)
				return
			}
		}
	}
}

// InjectASCII feeds one already-decoded ASCII byte into terminal t's
// line discipline, the entry point for input sources that do not speak
// PS/2 scan codes (the host-keyboard reader and the loopback console
// both arrive with plain bytes already). It applies the same editing
// and control-character rules HandleScanCode does for the keys with an
// obvious ASCII equivalent.
func InjectASCII(t int, c byte) {
	mu.Lock()
	term := terminals[t]

	switch c {
	case 0x03: // ctrl+C
		term.HaltRequested = true
		mu.Unlock()
		return
	case 0x0c: // ctrl+L
		term.Cursor = 0
		mem.Zero(term.videoBase(), mem.VideoMemBytes)
		mu.Unlock()
		return
	case '\r', '\n':
		term.putChar('\n')
		if term.LineLen < len(term.LineBuf) {
			term.LineBuf[term.LineLen] = '\n'
			term.LineLen++
		} else {
			term.LineBuf[len(term.LineBuf)-1] = '\n'
		}
		term.EnterReceived = true
		mu.Unlock()
		return
	case 0x7f, 0x08:
		if term.LineLen > 0 {
			term.LineLen--
			if term.Cursor%80 != 0 {
				term.Cursor--
				mem.PutByte(term.videoBase()+uint32(term.Cursor)*2, ' ')
			}
		}
		mu.Unlock()
		return
	}

	if term.LineLen < len(term.LineBuf)-1 {
		term.LineBuf[term.LineLen] = c
		term.LineLen++
		term.putChar(c)
	}
	mu.Unlock()
}

// StdinOps is the fd.Operations implementation bound to fd 0: reads
// drain a completed line from the descriptor's owning terminal, writes
// are rejected.
var StdinOps fd.Operations = stdinOps{}

// StdoutOps is the fd.Operations implementation bound to fd 1: writes
// go to the descriptor's owning terminal, reads are rejected.
var StdoutOps fd.Operations = stdoutOps{}

type stdinOps struct{}

func (stdinOps) Name() string                             { return "stdin" }
func (stdinOps) Open(d *fd.Descriptor, name string) error { return nil }
func (stdinOps) Close(d *fd.Descriptor) error             { return nil }
func (stdinOps) Write(d *fd.Descriptor, buf []byte, n int) (int, error) {
	return -1, fd.ErrUnsupported
}

// Read blocks until the owning terminal has a complete line, sleeping
// between checks of the enter flag. PollBlocked lets a pending ctrl+C
// terminate the blocked process mid-spin.
func (stdinOps) Read(d *fd.Descriptor, buf []byte, n int) (int, error) {
	for {
		got, ready := TerminalRead(d.Terminal, buf, n)
		if ready {
			return got, nil
		}
		fd.PollBlocked(d.Terminal)
		time.Sleep(readPollInterval)
	}
}

// readPollInterval is how often a blocked stdin read rechecks the
// enter flag.
const readPollInterval = time.Millisecond

type stdoutOps struct{}

func (stdoutOps) Name() string                             { return "stdout" }
func (stdoutOps) Open(d *fd.Descriptor, name string) error { return nil }
func (stdoutOps) Close(d *fd.Descriptor) error             { return nil }
func (stdoutOps) Read(d *fd.Descriptor, buf []byte, n int) (int, error) {
	return -1, fd.ErrUnsupported
}
func (stdoutOps) Write(d *fd.Descriptor, buf []byte, n int) (int, error) {
	return TerminalWrite(d.Terminal, buf, n)
}

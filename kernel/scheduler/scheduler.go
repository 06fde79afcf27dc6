/*
 * pmkernel - PIT-driven round-robin terminal scheduling
 *
 * Three virtual terminals, each permanently running a shell (relaunched
 * whenever it halts). Each terminal is its own goroutine, so the Go
 * runtime already multiplexes them across OS threads; a hand-rolled
 * context switch on top would fight it. What the 100Hz PIT tick drives:
 * sending end-of-interrupt to the PIC on schedule, ticking the event
 * queue, applying a pending visible-terminal switch, and polling each
 * terminal for a pending ctrl+C halt request.
 */
package scheduler

import (
	"time"

	"pmkernel/kernel/eventqueue"
	"pmkernel/kernel/ioport"
	"pmkernel/kernel/pic"
	"pmkernel/kernel/process"
	"pmkernel/kernel/syscall"
	"pmkernel/kernel/terminal"
	"pmkernel/util/debug"
)

const (
	pitHz  = 100
	pitIRQ = 0

	pitCommandPort = 0x43
	pitChannel0    = 0x40
	// pitMode3 selects channel 0, lo/hi access, square-wave mode.
	pitMode3 = 0x36
	// pitDivisor is 1193180Hz / pitHz, rounded to the nearest count.
	pitDivisor = 11932
)

// programPIT writes the mode byte and the 100Hz divisor to the timer
// and unmasks its IRQ line.
func programPIT() {
	ioport.Out8(pitCommandPort, pitMode3)
	ioport.Out8(pitChannel0, uint8(pitDivisor&0xFF))
	ioport.Out8(pitChannel0, uint8(pitDivisor>>8))
	pic.Unmask(pitIRQ)
}

// traceComponent is the DEBUG config keyword that turns on a trace line
// each time the tick loop honors a pending ctrl+C halt request.
const traceComponent = "SCHED"

// Events is the scheduler's shared tick queue, exported so boot code and
// device drivers needing delayed callbacks can schedule against the same
// clock the scheduler advances.
var Events eventqueue.Queue

var (
	pitTicker     *time.Ticker
	stopCh        chan struct{}
	bootTerminals int
)

// Boot launches one goroutine per virtual terminal, each running a
// shell in a loop, and starts the PIT ticker. Call once, after every
// other subsystem (paging, fs, fd backends) has finished its own Init.
func Boot(terminalCount int) {
	syscall.BindCurrentLookup(lookupCurrent)
	bootTerminals = terminalCount
	programPIT()

	for t := 0; t < terminalCount; t++ {
		go runTerminalShell(t)
	}

	pitTicker = time.NewTicker(time.Second / pitHz)
	stopCh = make(chan struct{})
	go tickLoop()
}

// Stop halts the PIT ticker. Terminal shell goroutines are not
// interrupted; they are expected to run for the kernel's lifetime.
func Stop() {
	if pitTicker == nil {
		return
	}
	pitTicker.Stop()
	close(stopCh)
	pitTicker = nil
}

func runTerminalShell(t int) {
	for {
		process.Execute(t, "shell")
		term := terminal.Get(t)
		term.HaltRequested = false
	}
}

func tickLoop() {
	for {
		select {
		case <-pitTicker.C:
			tick()
		case <-stopCh:
			return
		}
	}
}

// tick runs with interrupts off for its whole duration; EOI goes out
// first so the next timer interrupt is never held off by the work below.
func tick() {
	ioport.CriticalSection(func() {
		pic.SendEOI(pitIRQ)
		Events.Advance()
		terminal.ApplyPendingVisibleSwitch()

		for t := 0; t < bootTerminals; t++ {
			term := terminal.Get(t)
			if term.HaltRequested {
				term.HaltRequested = false
				if debug.Enabled(traceComponent) {
					debug.Debugf(traceComponent, 1, 1, "terminal %d: honoring ctrl+C halt request", t)
				}
				process.KillCurrentProc(t, 256)
			}
		}
	})
}

func lookupCurrent(pid int) *process.Process {
	return process.Lookup(pid)
}

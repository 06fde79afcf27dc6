/*
 * pmkernel - Host-keyboard adapter
 *
 * Reads the real terminal's stdin in raw mode and routes each byte into
 * one virtual terminal's line discipline: raw mode stops the host OS
 * from line-buffering and echoing, CR translates to LF and DEL to BS,
 * and a dedicated goroutine feeds bytes in one at a time with an
 * ordinary blocking Read. Stop restores the terminal mode but does not
 * interrupt a pending Read; it returns once that Read has returned and
 * the goroutine has exited.
 */
package hostio

import (
	"os"
	"sync"

	"golang.org/x/term"

	"pmkernel/kernel/terminal"
)

// Host reads raw host stdin and feeds it to one virtual terminal.
type Host struct {
	terminalID int
	fd         int
	oldState   *term.State
	stopCh     chan struct{}
	done       chan struct{}
	stopOnce   sync.Once
}

// New creates a host adapter that will feed terminalID's keyboard.
func New(terminalID int) *Host {
	return &Host{
		terminalID: terminalID,
		stopCh:     make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start puts stdin into raw mode and begins routing bytes. Returns an
// error if raw mode could not be set (e.g. stdin is not a tty).
func (h *Host) Start() error {
	h.fd = int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(h.fd)
	if err != nil {
		return err
	}
	h.oldState = oldState

	go h.readLoop()
	return nil
}

func (h *Host) readLoop() {
	defer close(h.done)
	buf := make([]byte, 1)
	for {
		select {
		case <-h.stopCh:
			return
		default:
		}
		n, err := os.Stdin.Read(buf)
		if n > 0 {
			b := buf[0]
			if b == '\r' {
				b = '\n'
			}
			if b == 0x7F {
				b = 0x08
			}
			terminal.InjectASCII(h.terminalID, b)
		}
		if err != nil {
			return
		}
	}
}

// Stop restores the host terminal to its prior mode and waits for the
// read goroutine to exit.
func (h *Host) Stop() {
	h.stopOnce.Do(func() {
		close(h.stopCh)
	})
	if h.oldState != nil {
		_ = term.Restore(h.fd, h.oldState)
	}
	<-h.done
}

/*
 * pmkernel - Virtualized real-time clock
 *
 * The real RTC only interrupts at 1024Hz; each virtual terminal asks for
 * its own slower rate by way of a divider, and the interrupt handler
 * ticks every open terminal's divider down on every hardware tick,
 * posting a received-interrupt flag when it reaches zero. The hardware
 * tick is a time.Ticker, since there is no host interrupt controller
 * to program.
 */
package rtc

import (
	"errors"
	"sync"
	"time"

	"pmkernel/kernel/fd"
	"pmkernel/kernel/kconst"
	"pmkernel/kernel/pic"
)

// rtcIRQ is the slave-PIC line the hardware clock interrupts on.
const rtcIRQ = 8

// ErrBadFrequency is returned by RtcWrite when the requested rate is not
// a power of two greater than 2 and at most kconst.RTCRate.
var ErrBadFrequency = errors.New("rtc: frequency must be a power of two in (2, 1024]")

type terminalState struct {
	divider  int
	counter  int
	received bool
}

var (
	mu        sync.Mutex
	terminals [kconst.MaxTerminals]terminalState
	ticker    *time.Ticker
	stopCh    chan struct{}
)

// Start begins the hardware tick at kconst.RTCRate Hz. Call once during
// boot; Stop reverses it.
func Start() {
	mu.Lock()
	if ticker != nil {
		mu.Unlock()
		return
	}
	ticker = time.NewTicker(time.Second / time.Duration(kconst.RTCRate))
	stopCh = make(chan struct{})
	t := ticker
	stop := stopCh
	mu.Unlock()

	pic.Unmask(rtcIRQ)

	go func() {
		for {
			select {
			case <-t.C:
				tick()
			case <-stop:
				return
			}
		}
	}()
}

// Stop halts the hardware ticker.
func Stop() {
	mu.Lock()
	defer mu.Unlock()
	if ticker == nil {
		return
	}
	ticker.Stop()
	close(stopCh)
	ticker = nil
}

func tick() {
	// EOI goes out before the divider bookkeeping, so a slow pass can
	// never hold off the next hardware interrupt.
	pic.SendEOI(rtcIRQ)
	mu.Lock()
	defer mu.Unlock()
	for i := range terminals {
		ts := &terminals[i]
		if ts.divider == 0 {
			continue
		}
		ts.counter--
		if ts.counter <= 0 {
			ts.counter = ts.divider
			ts.received = true
		}
	}
}

func dividerFor(freq int) int {
	return kconst.RTCRate / freq
}

func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// RtcOpen resets the caller's terminal to the default 2Hz rate and
// enables delivery.
func RtcOpen(terminal int) error {
	mu.Lock()
	defer mu.Unlock()
	if terminal < 0 || terminal >= kconst.MaxTerminals {
		return errors.New("rtc: bad terminal")
	}
	terminals[terminal] = terminalState{divider: dividerFor(2), counter: dividerFor(2)}
	return nil
}

// RtcWrite validates freq and installs it as terminal's new divider.
func RtcWrite(terminal int, freq int) error {
	if !isPowerOfTwo(freq) || freq <= 2 || freq > kconst.RTCRate {
		return ErrBadFrequency
	}
	mu.Lock()
	defer mu.Unlock()
	terminals[terminal].divider = dividerFor(freq)
	terminals[terminal].counter = dividerFor(freq)
	return nil
}

// RtcRead reports whether terminal's divider has fired since the last
// RtcRead, clearing the flag when it has. A blocked rtc read spins on
// this until it returns true.
func RtcRead(terminal int) bool {
	mu.Lock()
	defer mu.Unlock()
	ts := &terminals[terminal]
	if !ts.received {
		return false
	}
	ts.received = false
	return true
}

// pollInterval is how often a blocked Read rechecks the received flag.
// It is finer than one hardware tick (1/RTCRate) so a read never misses
// an interrupt by more than a fraction of a tick.
const pollInterval = time.Second / (kconst.RTCRate * 2)

// Ops is the fd.Operations implementation bound to rtc dentries. Write
// expects a single 4-byte little-endian frequency in buf.
var Ops fd.Operations = rtcOps{}

type rtcOps struct{}

func (rtcOps) Name() string { return "rtc" }

func (rtcOps) Open(d *fd.Descriptor, name string) error {
	return RtcOpen(d.Terminal)
}

// Read spins until terminal's interrupt-received flag goes high, then
// clears it and returns 0. The spin sleeps pollInterval between checks
// rather than busy-looping, since nothing here needs to react faster
// than the hardware tick that sets the flag. PollBlocked lets a pending
// ctrl+C terminate the blocked process mid-spin.
func (rtcOps) Read(d *fd.Descriptor, buf []byte, n int) (int, error) {
	for !RtcRead(d.Terminal) {
		fd.PollBlocked(d.Terminal)
		time.Sleep(pollInterval)
	}
	return 0, nil
}

func (rtcOps) Write(d *fd.Descriptor, buf []byte, n int) (int, error) {
	if n < 4 || len(buf) < 4 {
		return -1, errors.New("rtc: write requires a 4-byte frequency")
	}
	freq := int(buf[0]) | int(buf[1])<<8 | int(buf[2])<<16 | int(buf[3])<<24
	if err := RtcWrite(d.Terminal, freq); err != nil {
		return -1, err
	}
	return 4, nil
}

func (rtcOps) Close(d *fd.Descriptor) error { return nil }

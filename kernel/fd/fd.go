/*
 * pmkernel - File-descriptor operation-table dispatch
 *
 * Each backend (stdin, stdout, regular file, directory, rtc) implements
 * the small Operations interface, and a Descriptor holds which
 * implementation it is bound to. This package is a leaf: fs, rtc, and
 * terminal each implement Operations against it, and none of them
 * import each other.
 */
package fd

import "errors"

// BlockedPoll, when set, is invoked by backends each time around a spin
// awaiting device state. The process layer installs a hook that aborts
// the blocked read when a kill is pending for the spinning terminal's
// foreground process.
var BlockedPoll func(terminal int)

// PollBlocked runs the installed BlockedPoll hook, if any.
func PollBlocked(terminal int) {
	if BlockedPoll != nil {
		BlockedPoll(terminal)
	}
}

// ErrClosed is returned by any operation attempted on a closed descriptor.
var ErrClosed = errors.New("fd: descriptor not open")

// ErrUnsupported is returned by operations a backend does not implement
// (write on stdin, read on stdout, write on a regular/dir/rtc file).
var ErrUnsupported = errors.New("fd: unsupported operation")

// Operations is the per-backend operation table. Every backend --
// stdin/stdout, the read-only filesystem's regular-file and directory
// tables, and the RTC device -- implements it.
type Operations interface {
	Read(d *Descriptor, buf []byte, n int) (int, error)
	Write(d *Descriptor, buf []byte, n int) (int, error)
	Open(d *Descriptor, name string) error
	Close(d *Descriptor) error
	Name() string
}

// Descriptor is one slot of a process's fd table: an operation table, an
// inode index (meaningful only to the filesystem backend), a byte
// position, and whether the slot is in use. When Open is false the other
// fields are undefined; only Read/Write/Close may be invoked while Open.
type Descriptor struct {
	Ops      Operations
	Inode    int
	Pos      int
	Open     bool
	Terminal int // owning virtual terminal, used by stdin/stdout/rtc backends
}

// Read dispatches to d's operation table, failing closed descriptors.
func (d *Descriptor) Read(buf []byte, n int) (int, error) {
	if !d.Open {
		return -1, ErrClosed
	}
	return d.Ops.Read(d, buf, n)
}

// Write dispatches to d's operation table, failing closed descriptors.
func (d *Descriptor) Write(buf []byte, n int) (int, error) {
	if !d.Open {
		return -1, ErrClosed
	}
	return d.Ops.Write(d, buf, n)
}

// Close dispatches to d's operation table and marks the slot free, even
// when the backend's Close returns an error (which is passed back).
// Closing an already-closed descriptor fails without side effects.
func (d *Descriptor) Close() error {
	if !d.Open {
		return ErrClosed
	}
	err := d.Ops.Close(d)
	d.Open = false
	d.Ops = nil
	return err
}

// Table holds one process's fixed-size fd array.
type Table struct {
	Slots [8]Descriptor
}

// AllocateFrom returns the lowest free slot index at or above start, or
// -1 if the table is full.
func (t *Table) AllocateFrom(start int) int {
	for i := start; i < len(t.Slots); i++ {
		if !t.Slots[i].Open {
			return i
		}
	}
	return -1
}

// CloseAll closes every open descriptor in the table, ignoring indices
// that are already closed.
func (t *Table) CloseAll() {
	for i := range t.Slots {
		if t.Slots[i].Open {
			_ = t.Slots[i].Close()
		}
	}
}

/*
 * pmkernel - Boot-time self-test
 *
 * A short battery of sanity checks main.go can run after boot (behind
 * -selftest, after which main exits): paging identity map, a non-empty
 * root directory if a filesystem was mounted, and an fd table
 * allocate/close cycle. This is a smoke test, not a substitute for the
 * package-level unit tests; it exists so a deployed binary can verify
 * its own boot sequence.
 */
package selftest

import (
	"errors"
	"fmt"

	"pmkernel/kernel/fd"
	"pmkernel/kernel/fs"
	"pmkernel/kernel/kconst"
	"pmkernel/kernel/paging"
)

// Run executes every check in order, stopping at the first failure.
func Run() error {
	if err := checkPaging(); err != nil {
		return fmt.Errorf("paging: %w", err)
	}
	if err := checkFDTable(); err != nil {
		return fmt.Errorf("fd: %w", err)
	}
	if err := checkFilesystem(); err != nil {
		return fmt.Errorf("fs: %w", err)
	}
	return nil
}

func checkPaging() error {
	if !paging.Enabled() {
		return errors.New("paging not enabled after Init")
	}
	if _, ok := paging.Translate(0x000B8000, paging.AccessSuper); !ok {
		return errors.New("video page not mapped")
	}
	if _, ok := paging.Translate(kconst.KernelPageIndex*kconst.FourMB, paging.AccessSuper); !ok {
		return errors.New("kernel page not mapped")
	}
	return nil
}

func checkFDTable() error {
	var table fd.Table
	slot := table.AllocateFrom(2)
	if slot != 2 {
		return fmt.Errorf("expected first free slot 2, got %d", slot)
	}
	table.Slots[slot] = fd.Descriptor{Ops: noopOps{}, Open: true}
	if err := table.Slots[slot].Close(); err != nil {
		return err
	}
	if table.Slots[slot].Open {
		return errors.New("descriptor still open after Close")
	}
	return nil
}

func checkFilesystem() error {
	img := fs.Mounted()
	if img == nil {
		return nil // no image mounted is not a failure, just nothing to check
	}
	if img.NumDentries() == 0 {
		return errors.New("mounted filesystem reports zero dentries")
	}
	return nil
}

type noopOps struct{}

func (noopOps) Name() string                                           { return "noop" }
func (noopOps) Open(d *fd.Descriptor, name string) error               { return nil }
func (noopOps) Close(d *fd.Descriptor) error                           { return nil }
func (noopOps) Read(d *fd.Descriptor, buf []byte, n int) (int, error)  { return 0, nil }
func (noopOps) Write(d *fd.Descriptor, buf []byte, n int) (int, error) { return 0, nil }

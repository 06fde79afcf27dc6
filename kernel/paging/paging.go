/*
 * pmkernel - Two-level page directory / page table model
 *
 * One page directory, one first-4MB page table, and one vidmap page
 * table, held as package state and mutated only through Init,
 * SetProcessPaging, and VidmapPaging. There is no real MMU underneath a
 * hosted Go process, so Translate is the bookkeeping a page-fault trap
 * would otherwise provide.
 */
package paging

import (
	"sync"

	"pmkernel/kernel/ioport"
	"pmkernel/kernel/kconst"
	"pmkernel/kernel/mem"
)

// pageDirEntries is the fixed size of an x86 page directory.
const pageDirEntries = 1024

type directoryEntry struct {
	present bool
	user    bool
	frame   uint32 // physical base address this entry maps
}

var (
	mu        sync.Mutex
	directory [pageDirEntries]directoryEntry
	// firstTable models page 0's 4KB-granularity table: every slot is
	// not-present except the one covering 0x000B8000 (video memory).
	firstTablePresent bool
	enabled           bool
	currentPid        = -1
	vidmapOn          bool
	vidmapBacking     uint32
)

// Init builds the initial identity map: page 0's table has only the video
// slot present, directory entry 0 points at it, directory entry
// KernelPageIndex identity-maps the 4MB kernel page as a supervisor-only
// large page, PSE is implied by that large-page usage, and paging is
// marked enabled.
func Init() {
	mu.Lock()
	defer mu.Unlock()

	directory = [pageDirEntries]directoryEntry{}
	firstTablePresent = true

	directory[0] = directoryEntry{present: true, user: false, frame: 0}
	directory[kconst.KernelPageIndex] = directoryEntry{
		present: true,
		user:    false,
		frame:   kconst.KernelPageIndex * kconst.FourMB,
	}
	currentPid = -1
	vidmapOn = false
	enabled = true

	ioport.LoadGDT()
	ioport.FlushTLB()
}

// SetProcessPaging rewrites the USER_PAGING directory entry to the frame
// backing pid, reapplies vidmap according to wantVidmap (the new
// process's stored vidmap flag), then flushes the TLB.
func SetProcessPaging(pid int, wantVidmap bool, visibleBackingAddr uint32) {
	mu.Lock()
	currentPid = pid
	directory[kconst.UserPagingIndex] = directoryEntry{
		present: true,
		user:    true,
		frame:   kconst.ProcessFrameAddr(pid),
	}
	mu.Unlock()

	VidmapPaging(wantVidmap, visibleBackingAddr)
	ioport.FlushTLB()
}

// VidmapPaging clears the VIDMAP_PAGE directory entry when on is false;
// otherwise it points that entry at a single-entry user-accessible page
// table naming backingAddr (the video page of the terminal that owns the
// running process).
func VidmapPaging(on bool, backingAddr uint32) {
	mu.Lock()
	defer mu.Unlock()

	vidmapOn = on
	vidmapBacking = backingAddr
	if !on {
		directory[kconst.VidmapPageIndex] = directoryEntry{}
		return
	}
	directory[kconst.VidmapPageIndex] = directoryEntry{
		present: true,
		user:    true,
		frame:   backingAddr,
	}
}

// Enabled reports whether paging has been initialized.
func Enabled() bool {
	mu.Lock()
	defer mu.Unlock()
	return enabled
}

// CurrentPid reports the pid the USER_PAGING entry currently maps.
func CurrentPid() int {
	mu.Lock()
	defer mu.Unlock()
	return currentPid
}

// VidmapInstalled reports whether the vidmap page table entry is present,
// and if so, the physical page it names.
func VidmapInstalled() (uint32, bool) {
	mu.Lock()
	defer mu.Unlock()
	return vidmapBacking, vidmapOn
}

// Translate walks the page directory for a read/write access and returns
// the physical address addr maps to, or ok=false if no entry covers it
// (the page-fault case). access is one of AccessSuper or AccessUser.
func Translate(addr uint32, access int) (uint32, bool) {
	mu.Lock()
	defer mu.Unlock()

	idx := addr / kconst.FourMB
	switch {
	case idx == 0:
		// Page 0's table: only the video page is present, at 4KB
		// granularity, regardless of the requested offset.
		if !firstTablePresent {
			return 0, false
		}
		pageBase := addr &^ (kconst.BlockSize - 1)
		if pageBase != mem.VideoMemBase {
			return 0, false
		}
		if access == AccessUser {
			return 0, false
		}
		return addr, true

	case idx == kconst.KernelPageIndex:
		e := directory[idx]
		if !e.present {
			return 0, false
		}
		if access == AccessUser && !e.user {
			return 0, false
		}
		return e.frame + (addr % kconst.FourMB), true

	case idx == kconst.UserPagingIndex:
		e := directory[idx]
		if !e.present {
			return 0, false
		}
		if access == AccessUser && !e.user {
			return 0, false
		}
		return e.frame + (addr % kconst.FourMB), true

	case idx == kconst.VidmapPageIndex:
		e := directory[idx]
		if !e.present {
			return 0, false
		}
		return e.frame + (addr % kconst.BlockSize), true

	default:
		return 0, false
	}
}

const (
	// AccessSuper is a supervisor-mode memory access.
	AccessSuper = iota
	// AccessUser is a ring-3 memory access, rejected by non-user pages.
	AccessUser
)

package paging

import (
	"testing"

	"pmkernel/kernel/kconst"
	"pmkernel/kernel/mem"
)

func TestInitMapsVideoAndKernel(t *testing.T) {
	Init()

	if !Enabled() {
		t.Fatal("Enabled() false after Init")
	}
	if addr, ok := Translate(mem.VideoMemBase, AccessSuper); !ok || addr != mem.VideoMemBase {
		t.Fatalf("video page not identity mapped: addr=%d ok=%v", addr, ok)
	}
	if _, ok := Translate(kconst.KernelPageIndex*kconst.FourMB, AccessSuper); !ok {
		t.Fatal("kernel page not mapped")
	}
}

func TestSetProcessPagingMapsUserFrame(t *testing.T) {
	Init()
	SetProcessPaging(2, false, mem.TerminalBackingAddr(0))

	if CurrentPid() != 2 {
		t.Fatalf("CurrentPid() = %d, want 2", CurrentPid())
	}
	addr, ok := Translate(kconst.UserVirtualBase, AccessUser)
	if !ok {
		t.Fatal("user page not mapped after SetProcessPaging")
	}
	if addr != kconst.ProcessFrameAddr(2) {
		t.Fatalf("user page maps to %#x, want %#x", addr, kconst.ProcessFrameAddr(2))
	}
}

func TestVidmapTogglesPresence(t *testing.T) {
	Init()
	backing := mem.TerminalBackingAddr(1)

	VidmapPaging(true, backing)
	addr, on := VidmapInstalled()
	if !on || addr != backing {
		t.Fatalf("vidmap not installed as expected: addr=%#x on=%v", addr, on)
	}
	if _, ok := Translate(kconst.VidmapVirtualAddr, AccessUser); !ok {
		t.Fatal("vidmap virtual address not mapped while enabled")
	}

	VidmapPaging(false, 0)
	if _, ok := Translate(kconst.VidmapVirtualAddr, AccessUser); ok {
		t.Fatal("vidmap virtual address still mapped after disabling")
	}
}

func TestUnmappedAddressFaults(t *testing.T) {
	Init()
	if _, ok := Translate(kconst.UserVirtualBase, AccessUser); ok {
		t.Fatal("user page should not be mapped before SetProcessPaging")
	}
}

package process

import (
	"encoding/binary"
	"testing"

	"pmkernel/kernel/fs"
	"pmkernel/kernel/ioport"
	"pmkernel/kernel/kconst"
	"pmkernel/kernel/mem"
	"pmkernel/kernel/paging"
	"pmkernel/kernel/terminal"
)

func setup(t *testing.T) {
	t.Helper()
	paging.Init()
	terminal.Init()
}

func TestExecuteRunsRegisteredProgramAndReturnsHaltStatus(t *testing.T) {
	setup(t)
	RegisterProgram("halts-with-7", func(p *Process) int32 {
		Halt(p, 7)
		return -99 // unreachable
	})

	status := Execute(0, "halts-with-7")
	if status != 7 {
		t.Fatalf("Execute status = %d, want 7", status)
	}
	if !ioport.Loaded().TSS {
		t.Fatal("Execute never loaded the task-state segment")
	}
}

func TestExecuteUnknownCommandReturnsNegativeOneWithoutLeakingPid(t *testing.T) {
	setup(t)
	for i := 0; i < kMaxProcessesForTest(); i++ {
		if status := Execute(0, "no-such-program"); status != -1 {
			t.Fatalf("iteration %d: status = %d, want -1", i, status)
		}
	}
}

func kMaxProcessesForTest() int { return 8 } // exceeds MaxProcesses to prove no leak

func TestExecuteGetArgsRoundTrips(t *testing.T) {
	setup(t)
	var captured string
	RegisterProgram("echo-args", func(p *Process) int32 {
		buf := make([]byte, 128)
		if err := GetArgs(p, buf); err != nil {
			Halt(p, 1)
		}
		n := 0
		for n < len(buf) && buf[n] != 0 {
			n++
		}
		captured = string(buf[:n])
		Halt(p, 0)
		return 0
	})

	if status := Execute(0, "echo-args hello world"); status != 0 {
		t.Fatalf("status = %d, want 0", status)
	}
	if captured != "hello world" {
		t.Fatalf("captured args = %q, want %q", captured, "hello world")
	}
}

func TestExecuteWritesToOwningTerminal(t *testing.T) {
	setup(t)
	RegisterProgram("writer", func(p *Process) int32 {
		msg := []byte("hi\n")
		_, _ = p.FDs.Slots[1].Write(msg, len(msg))
		Halt(p, 0)
		return 0
	})

	Execute(0, "writer")

	c := mem.GetByte(mem.VideoMemBase)
	if c != 'h' {
		t.Fatalf("video memory byte 0 = %q, want 'h'", c)
	}
}

// buildExecImage assembles an image with one executable file whose
// first 40 bytes form a valid header (magic, then the entry address at
// bytes 24..27) followed by body.
func buildExecImage(name string, entry uint32, body string) []byte {
	img := make([]byte, 3*kconst.BlockSize)
	binary.LittleEndian.PutUint32(img[0:4], 1)  // dentries
	binary.LittleEndian.PutUint32(img[4:8], 1)  // inodes
	binary.LittleEndian.PutUint32(img[8:12], 1) // data blocks

	copy(img[64:96], name)
	binary.LittleEndian.PutUint32(img[96:100], uint32(kconst.DentryTypeRegular))
	binary.LittleEndian.PutUint32(img[100:104], 0)

	data := img[2*kconst.BlockSize:]
	data[0], data[1], data[2], data[3] = 0x7f, 'E', 'L', 'F'
	binary.LittleEndian.PutUint32(data[24:28], entry)
	copy(data[40:], body)

	inodeOff := kconst.BlockSize
	binary.LittleEndian.PutUint32(img[inodeOff:inodeOff+4], uint32(40+len(body)))
	binary.LittleEndian.PutUint32(img[inodeOff+4:inodeOff+8], 0)
	return img
}

func TestExecuteLoadsFilesystemImageIntoUserFrame(t *testing.T) {
	setup(t)
	img, err := fs.Load(buildExecImage("prog", 0x08048100, "payload"))
	if err != nil {
		t.Fatalf("fs.Load: %v", err)
	}
	fs.Mount(img)
	defer fs.Mount(nil)

	if status := Execute(0, "prog"); status != 0 {
		t.Fatalf("Execute(prog) = %d, want 0", status)
	}

	// The first free pid was 0, so the image landed in pid 0's frame at
	// the fixed program load offset.
	base := kconst.ProcessFrameAddr(0) + kconst.ProgramLoadOffset
	if mem.GetByte(base) != 0x7f || mem.GetByte(base+1) != 'E' {
		t.Fatalf("user frame does not start with the executable header: % x",
			mem.ReadAt(base, 4))
	}
}

func TestVidmapReportsFixedVirtualAddress(t *testing.T) {
	setup(t)
	var mappedAddr uint32
	RegisterProgram("mapper", func(p *Process) int32 {
		addr, err := Vidmap(p, true)
		if err != nil {
			Halt(p, 1)
		}
		mappedAddr = addr
		Halt(p, 0)
		return 0
	})

	Execute(0, "mapper")
	if mappedAddr != kconst.VidmapVirtualAddr {
		t.Fatalf("Vidmap returned %#x, want %#x", mappedAddr, kconst.VidmapVirtualAddr)
	}
}

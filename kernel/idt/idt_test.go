package idt

import (
	"testing"

	"pmkernel/kernel/ioport"
)

func TestInstallAndDispatch(t *testing.T) {
	var got *Frame
	Install(SyscallVector, func(f *Frame) {
		got = f
		f.RetVal = 7
	})

	frame := &Frame{Vector: SyscallVector, Pid: 1}
	Dispatch(frame)

	if got != frame {
		t.Fatal("handler did not receive the dispatched frame")
	}
	if frame.RetVal != 7 {
		t.Fatalf("RetVal = %d, want 7", frame.RetVal)
	}
}

func TestDispatchWithNoHandlerIsANoop(t *testing.T) {
	frame := &Frame{Vector: 250} // an unused vector
	Dispatch(frame)              // must not panic
	if frame.RetVal != 0 {
		t.Fatalf("RetVal = %d, want 0 (untouched)", frame.RetVal)
	}
}

func TestInstalledReportsOccupancy(t *testing.T) {
	if Installed(251) {
		t.Fatal("vector 251 reported installed before Install was called")
	}
	Install(251, func(*Frame) {})
	if !Installed(251) {
		t.Fatal("vector 251 not reported installed after Install")
	}
}

func TestLoadedMarksIDTInstalled(t *testing.T) {
	Loaded()
	if !ioport.Loaded().IDT {
		t.Fatal("Loaded did not mark the IDT as loaded")
	}
}

package ioport

import "testing"

func TestOut8In8RoundTrip(t *testing.T) {
	Out8(0x60, 0xAB)
	if v := In8(0x60); v != 0xAB {
		t.Fatalf("In8 = %#x, want 0xAB", v)
	}
}

func TestCriticalSectionRestoresPriorFlag(t *testing.T) {
	EnableInterrupts()
	CriticalSection(func() {
		if InterruptsEnabled() {
			t.Fatal("interrupts still enabled inside CriticalSection")
		}
	})
	if !InterruptsEnabled() {
		t.Fatal("CriticalSection did not restore the prior enabled flag")
	}

	DisableInterrupts()
	CriticalSection(func() {})
	if InterruptsEnabled() {
		t.Fatal("CriticalSection did not restore the prior disabled flag")
	}
}

func TestFlushTLBIncrementsGeneration(t *testing.T) {
	before := TLBGeneration()
	FlushTLB()
	if TLBGeneration() != before+1 {
		t.Fatalf("TLBGeneration = %d, want %d", TLBGeneration(), before+1)
	}
}

func TestLoadMarksInstalled(t *testing.T) {
	LoadIDT()
	LoadGDT()
	LoadTSS()
	got := Loaded()
	if !got.IDT || !got.GDT || !got.TSS {
		t.Fatalf("Loaded() = %+v, want all true", got)
	}
}

package pic

import (
	"testing"

	"pmkernel/kernel/ioport"
)

func TestInitMasksAllLines(t *testing.T) {
	Init()
	if ioport.In8(masterData) != 0xFF {
		t.Fatalf("master mask after Init = %#x, want 0xFF", ioport.In8(masterData))
	}
	if ioport.In8(slaveData) != 0xFF {
		t.Fatalf("slave mask after Init = %#x, want 0xFF", ioport.In8(slaveData))
	}
}

func TestUnmaskThenMaskMasterLine(t *testing.T) {
	Init()
	Unmask(0)
	if ioport.In8(masterData)&0x01 != 0 {
		t.Fatal("IRQ0 still masked after Unmask")
	}
	Mask(0)
	if ioport.In8(masterData)&0x01 == 0 {
		t.Fatal("IRQ0 not masked after Mask")
	}
}

func TestUnmaskSlaveLine(t *testing.T) {
	Init()
	Unmask(10) // slave IRQ2
	if ioport.In8(slaveData)&(1<<2) != 0 {
		t.Fatal("IRQ10 still masked in slave register after Unmask")
	}
}

func TestSendEOISignalsSlaveForSlaveIRQ(t *testing.T) {
	Init()
	SendEOI(10)
	if ioport.In8(slaveCommand) != eoiBase|uint8(2) {
		t.Fatalf("slave command = %#x, want %#x", ioport.In8(slaveCommand), eoiBase|uint8(2))
	}
	if ioport.In8(masterCommand) != eoiBase|uint8(2) {
		t.Fatalf("master command = %#x, want %#x", ioport.In8(masterCommand), eoiBase|uint8(2))
	}
}

package mem

import "testing"

func TestGetPutByte(t *testing.T) {
	PutByte(0x1000, 0x42)
	if v := GetByte(0x1000); v != 0x42 {
		t.Fatalf("GetByte = %#x, want 0x42", v)
	}
}

func TestReadAtWriteAt(t *testing.T) {
	WriteAt(0x2000, []byte("hello"))
	got := ReadAt(0x2000, 5)
	if string(got) != "hello" {
		t.Fatalf("ReadAt = %q, want %q", got, "hello")
	}
}

func TestZeroClears(t *testing.T) {
	WriteAt(0x3000, []byte{1, 2, 3, 4})
	Zero(0x3000, 4)
	got := ReadAt(0x3000, 4)
	for i, b := range got {
		if b != 0 {
			t.Fatalf("byte %d = %#x, want 0 after Zero", i, b)
		}
	}
}

func TestCheckAddr(t *testing.T) {
	if !CheckAddr(0) {
		t.Fatal("CheckAddr(0) = false")
	}
	if CheckAddr(PhysicalBytes) {
		t.Fatal("CheckAddr(PhysicalBytes) = true, want false (one past the end)")
	}
}

func TestTerminalBackingAddrDistinctPerTerminal(t *testing.T) {
	a0 := TerminalBackingAddr(0)
	a1 := TerminalBackingAddr(1)
	if a0 == a1 {
		t.Fatal("terminal 0 and 1 share a backing address")
	}
	if !CheckAddr(a0) || !CheckAddr(a1) {
		t.Fatal("terminal backing address out of the physical range")
	}
}

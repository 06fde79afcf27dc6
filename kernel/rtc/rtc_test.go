package rtc

import "testing"

func TestRtcWriteRejectsNonPowerOfTwo(t *testing.T) {
	_ = RtcOpen(0)
	if err := RtcWrite(0, 3); err != ErrBadFrequency {
		t.Fatalf("RtcWrite(3) = %v, want ErrBadFrequency", err)
	}
	if err := RtcWrite(0, 1); err != ErrBadFrequency {
		t.Fatalf("RtcWrite(1) = %v, want ErrBadFrequency (must be > 2)", err)
	}
	if err := RtcWrite(0, 2048); err != ErrBadFrequency {
		t.Fatalf("RtcWrite(2048) = %v, want ErrBadFrequency (exceeds RTCRate)", err)
	}
}

func TestRtcWriteAcceptsValidFrequency(t *testing.T) {
	_ = RtcOpen(0)
	if err := RtcWrite(0, 4); err != nil {
		t.Fatalf("RtcWrite(4): %v", err)
	}
	if err := RtcWrite(0, 1024); err != nil {
		t.Fatalf("RtcWrite(1024): %v", err)
	}
}

func TestTickFiresAtDividerBoundary(t *testing.T) {
	_ = RtcOpen(0)
	if err := RtcWrite(0, 512); err != nil { // divider = 2
		t.Fatalf("RtcWrite: %v", err)
	}
	if RtcRead(0) {
		t.Fatal("RtcRead true before any tick")
	}
	tick()
	if RtcRead(0) {
		t.Fatal("RtcRead true after only one tick of a two-tick divider")
	}
	tick()
	if !RtcRead(0) {
		t.Fatal("RtcRead false after divider's worth of ticks")
	}
	if RtcRead(0) {
		t.Fatal("RtcRead did not clear the received flag")
	}
}

func TestOpenResetsToDefaultRate(t *testing.T) {
	if err := RtcOpen(1); err != nil {
		t.Fatalf("RtcOpen: %v", err)
	}
	if terminals[1].divider != dividerFor(2) {
		t.Fatalf("divider after Open = %d, want %d", terminals[1].divider, dividerFor(2))
	}
}

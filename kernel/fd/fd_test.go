package fd

import "testing"

type recordingOps struct {
	closed bool
}

func (o *recordingOps) Name() string                          { return "recording" }
func (o *recordingOps) Open(d *Descriptor, name string) error { return nil }
func (o *recordingOps) Close(d *Descriptor) error {
	o.closed = true
	return nil
}
func (o *recordingOps) Read(d *Descriptor, buf []byte, n int) (int, error) {
	copy(buf, "ok")
	return 2, nil
}
func (o *recordingOps) Write(d *Descriptor, buf []byte, n int) (int, error) {
	return n, nil
}

func TestClosedDescriptorRejectsIO(t *testing.T) {
	var d Descriptor
	if _, err := d.Read(nil, 0); err != ErrClosed {
		t.Fatalf("Read on closed fd = %v, want ErrClosed", err)
	}
	if _, err := d.Write(nil, 0); err != ErrClosed {
		t.Fatalf("Write on closed fd = %v, want ErrClosed", err)
	}
	if err := d.Close(); err != ErrClosed {
		t.Fatalf("Close on closed fd = %v, want ErrClosed", err)
	}
}

func TestReadWriteDispatchToOps(t *testing.T) {
	ops := &recordingOps{}
	d := Descriptor{Ops: ops, Open: true}

	buf := make([]byte, 8)
	n, err := d.Read(buf, len(buf))
	if err != nil || n != 2 || string(buf[:n]) != "ok" {
		t.Fatalf("Read = (%d, %v), buf=%q", n, err, buf[:n])
	}

	n, err = d.Write([]byte("hello"), 5)
	if err != nil || n != 5 {
		t.Fatalf("Write = (%d, %v)", n, err)
	}

	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !ops.closed {
		t.Fatal("backend Close never invoked")
	}
	if d.Open {
		t.Fatal("descriptor still marked open after Close")
	}
}

func TestTableAllocateFromSkipsReservedSlots(t *testing.T) {
	var table Table
	table.Slots[0].Open = true
	table.Slots[1].Open = true

	slot := table.AllocateFrom(2)
	if slot != 2 {
		t.Fatalf("AllocateFrom(2) = %d, want 2", slot)
	}

	for i := 2; i < len(table.Slots); i++ {
		table.Slots[i].Open = true
	}
	if got := table.AllocateFrom(2); got != -1 {
		t.Fatalf("AllocateFrom on full table = %d, want -1", got)
	}
}

func TestTableCloseAll(t *testing.T) {
	ops := &recordingOps{}
	var table Table
	table.Slots[2] = Descriptor{Ops: ops, Open: true}
	table.CloseAll()
	if !ops.closed {
		t.Fatal("CloseAll never invoked backend Close")
	}
	if table.Slots[2].Open {
		t.Fatal("slot still open after CloseAll")
	}
}

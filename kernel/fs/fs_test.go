package fs

import (
	"encoding/binary"
	"testing"

	"pmkernel/kernel/fd"
	"pmkernel/kernel/kconst"
)

// buildImage assembles a minimal valid image: one regular file "hello"
// (inode 0, one data block), one directory dentry ".", one rtc dentry.
func buildImage(t *testing.T, content []byte) []byte {
	t.Helper()
	const numInode = 1
	const numDataBlk = 1
	total := kconst.BlockSize + numInode*kconst.BlockSize + numDataBlk*kconst.BlockSize
	img := make([]byte, total)

	binary.LittleEndian.PutUint32(img[0:4], 3)
	binary.LittleEndian.PutUint32(img[4:8], numInode)
	binary.LittleEndian.PutUint32(img[8:12], numDataBlk)

	putDentry(img, 0, ".", kconst.DentryTypeDir, 0)
	putDentry(img, 1, "rtc", kconst.DentryTypeRTC, 0)
	putDentry(img, 2, "hello", kconst.DentryTypeRegular, 0)

	inodeOff := kconst.BlockSize * (1 + 0)
	binary.LittleEndian.PutUint32(img[inodeOff:inodeOff+4], uint32(len(content)))
	binary.LittleEndian.PutUint32(img[inodeOff+4:inodeOff+8], 0) // data block 0

	dataOff := kconst.BlockSize * (1 + numInode)
	copy(img[dataOff:], content)

	return img
}

func putDentry(img []byte, index int, name string, typ int, inode int) {
	base := 64 + index*64
	copy(img[base:base+32], name)
	binary.LittleEndian.PutUint32(img[base+32:base+36], uint32(typ))
	binary.LittleEndian.PutUint32(img[base+36:base+40], uint32(inode))
}

func TestLoadAndReadDentries(t *testing.T) {
	img, err := Load(buildImage(t, []byte("hi\n")))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if img.NumDentries() != 3 {
		t.Fatalf("NumDentries() = %d, want 3", img.NumDentries())
	}

	dent, err := img.ReadDentryByName("hello")
	if err != nil {
		t.Fatalf("ReadDentryByName: %v", err)
	}
	if dent.Type != kconst.DentryTypeRegular {
		t.Fatalf("Type = %d, want regular", dent.Type)
	}

	if _, err := img.ReadDentryByName("missing"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestReadDataClipsToFileSize(t *testing.T) {
	img, err := Load(buildImage(t, []byte("hi\n")))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	dent, _ := img.ReadDentryByName("hello")

	buf := make([]byte, 64)
	n, err := img.ReadData(dent.Inode, 0, buf, len(buf))
	if err != nil {
		t.Fatalf("ReadData: %v", err)
	}
	if string(buf[:n]) != "hi\n" {
		t.Fatalf("ReadData = %q, want %q", buf[:n], "hi\n")
	}

	n, err = img.ReadData(dent.Inode, 2, buf, 10)
	if err != nil || n != 1 {
		t.Fatalf("ReadData one before EOF = (%d, %v), want (1, nil)", n, err)
	}

	n, err = img.ReadData(dent.Inode, 10, buf, len(buf))
	if err != nil {
		t.Fatalf("ReadData past EOF: %v", err)
	}
	if n != 0 {
		t.Fatalf("ReadData past EOF returned %d bytes, want 0", n)
	}
}

func TestReadDentryByIndexOutOfRange(t *testing.T) {
	img, err := Load(buildImage(t, []byte("x")))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := img.ReadDentryByIndex(99); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDirReadNullTerminatesWhenBufferHasRoom(t *testing.T) {
	img, err := Load(buildImage(t, []byte("hi\n")))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	Mount(img)
	defer Mount(nil)

	d := &fd.Descriptor{}
	if err := DirOps.Open(d, "."); err != nil {
		t.Fatalf("Open: %v", err)
	}

	// dentry 0 is ".", a 1-byte name; a 4-byte buffer has room to spare.
	buf := []byte{0xAA, 0xAA, 0xAA, 0xAA}
	n, err := DirOps.Read(d, buf, len(buf))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if n != 1 || buf[0] != '.' {
		t.Fatalf("Read = (%d, %q), want (1, \".\")", n, buf[:n])
	}
	if buf[1] != 0 {
		t.Fatalf("buf[1] = %d, want 0 (null terminator)", buf[1])
	}
}

func TestDirReadDoesNotNullTerminateWhenBufferExactlyFitsName(t *testing.T) {
	img, err := Load(buildImage(t, []byte("hi\n")))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	Mount(img)
	defer Mount(nil)

	d := &fd.Descriptor{Pos: 1} // dentry 1 is "rtc", a 3-byte name
	buf := []byte{0xAA, 0xAA, 0xAA}
	n, err := DirOps.Read(d, buf, len(buf))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if n != 3 || string(buf) != "rtc" {
		t.Fatalf("Read = (%d, %q), want (3, \"rtc\")", n, buf)
	}
}

/*
 * pmkernel - Read-only block filesystem
 *
 * Parses the in-memory image handed to the kernel at boot: a boot block,
 * up to 63 64-byte directory entries, an inode region, and 4KB data
 * blocks. Nothing here ever mutates the image.
 */
package fs

import (
	"encoding/binary"
	"errors"

	"pmkernel/kernel/fd"
	"pmkernel/kernel/kconst"
)

const (
	dentrySize     = 64
	inodeSize      = kconst.BlockSize
	maxInodeBlocks = kconst.MaxDataBlocks
)

// Dentry is one 64-byte directory entry: name, type, inode index.
type Dentry struct {
	Name  string
	Type  int
	Inode int
}

// Image is a parsed read-only filesystem image.
type Image struct {
	raw        []byte
	numDentry  int
	numInode   int
	numDataBlk int
}

// ErrNotFound is returned when a name or index does not resolve.
var ErrNotFound = errors.New("fs: not found")

// ErrOutOfRange is returned when read_data encounters a bad inode or
// data-block index.
var ErrOutOfRange = errors.New("fs: index out of range")

// Load parses raw as a filesystem image. raw is retained, not copied; the
// caller must not mutate it afterwards.
func Load(raw []byte) (*Image, error) {
	if len(raw) < kconst.BlockSize {
		return nil, errors.New("fs: image shorter than one block")
	}
	img := &Image{raw: raw}
	img.numDentry = int(binary.LittleEndian.Uint32(raw[0:4]))
	img.numInode = int(binary.LittleEndian.Uint32(raw[4:8]))
	img.numDataBlk = int(binary.LittleEndian.Uint32(raw[8:12]))
	if img.numDentry > kconst.MaxDentries {
		img.numDentry = kconst.MaxDentries
	}
	return img, nil
}

// ReadDentryByIndex bounds-checks i and copies the dentry at that index.
func (img *Image) ReadDentryByIndex(i int) (Dentry, error) {
	if i < 0 || i >= img.numDentry {
		return Dentry{}, ErrNotFound
	}
	base := 64 + i*dentrySize
	return img.decodeDentry(base), nil
}

func (img *Image) decodeDentry(base int) Dentry {
	nameBytes := img.raw[base : base+kconst.MaxNameLength]
	n := 0
	for n < len(nameBytes) && nameBytes[n] != 0 {
		n++
	}
	name := string(nameBytes[:n])
	typ := int(binary.LittleEndian.Uint32(img.raw[base+32 : base+36]))
	inode := int(binary.LittleEndian.Uint32(img.raw[base+36 : base+40]))
	return Dentry{Name: name, Type: typ, Inode: inode}
}

// ReadDentryByName performs a linear scan of up to 63 entries; equality
// holds when both string lengths (capped at 32) and the first 32 bytes
// match. The first match wins.
func (img *Image) ReadDentryByName(name string) (Dentry, error) {
	capped := name
	if len(capped) > kconst.MaxNameLength {
		capped = capped[:kconst.MaxNameLength]
	}
	for i := 0; i < img.numDentry; i++ {
		base := 64 + i*dentrySize
		nameBytes := img.raw[base : base+kconst.MaxNameLength]
		n := 0
		for n < len(nameBytes) && nameBytes[n] != 0 {
			n++
		}
		entryName := string(nameBytes[:n])
		if len(entryName) > kconst.MaxNameLength {
			entryName = entryName[:kconst.MaxNameLength]
		}
		if entryName == capped {
			return img.decodeDentry(base), nil
		}
	}
	return Dentry{}, ErrNotFound
}

func (img *Image) inodeOffset(inode int) (int, bool) {
	if inode < 0 || inode >= img.numInode {
		return 0, false
	}
	return kconst.BlockSize * (1 + inode), true
}

// FileSize returns the size in bytes stored in inode's first word.
func (img *Image) FileSize(inode int) (int, error) {
	off, ok := img.inodeOffset(inode)
	if !ok {
		return 0, ErrOutOfRange
	}
	return int(binary.LittleEndian.Uint32(img.raw[off : off+4])), nil
}

// ReadData clips length to (file_size - offset), returns 0 when
// offset >= file_size, and otherwise walks the inode's data-block-index
// array starting at offset/4096 with intra-block offset offset%4096,
// copying at most one block at a time until length bytes are delivered.
// Returns ErrOutOfRange if the inode or any referenced data block is out
// of range.
func (img *Image) ReadData(inode int, offset int, buf []byte, length int) (int, error) {
	inodeOff, ok := img.inodeOffset(inode)
	if !ok {
		return 0, ErrOutOfRange
	}
	size := int(binary.LittleEndian.Uint32(img.raw[inodeOff : inodeOff+4]))
	if offset >= size {
		return 0, nil
	}
	if length > size-offset {
		length = size - offset
	}
	if length > len(buf) {
		length = len(buf)
	}

	dataRegionStart := kconst.BlockSize * (1 + img.numInode)
	delivered := 0
	blockIdx := offset / kconst.BlockSize
	blockOff := offset % kconst.BlockSize

	for delivered < length {
		if blockIdx >= maxInodeBlocks {
			return delivered, ErrOutOfRange
		}
		entryOff := inodeOff + 4 + blockIdx*4
		dataBlockNum := int(binary.LittleEndian.Uint32(img.raw[entryOff : entryOff+4]))
		if dataBlockNum < 0 || dataBlockNum >= img.numDataBlk {
			return delivered, ErrOutOfRange
		}
		blockStart := dataRegionStart + dataBlockNum*kconst.BlockSize
		n := kconst.BlockSize - blockOff
		if n > length-delivered {
			n = length - delivered
		}
		copy(buf[delivered:delivered+n], img.raw[blockStart+blockOff:blockStart+blockOff+n])
		delivered += n
		blockIdx++
		blockOff = 0
	}
	return delivered, nil
}

// NumDentries reports how many directory entries the image carries.
func (img *Image) NumDentries() int { return img.numDentry }

// mounted is the single filesystem image the kernel boots with; there
// is exactly one for the lifetime of the kernel, and open() resolves
// names against it.
var mounted *Image

// Mount installs img as the filesystem every open() call resolves
// against. Called once during boot after Load succeeds.
func Mount(img *Image) {
	mounted = img
}

// Mounted returns the currently mounted image, or nil if none has been
// mounted yet.
func Mounted() *Image {
	return mounted
}

// RegularOps is the fd.Operations implementation bound to dentries of
// type kconst.DentryTypeRegular: read-only, positioned reads that walk
// the underlying inode's data blocks, no directory listing semantics.
var RegularOps fd.Operations = regularOps{}

// DirOps is the fd.Operations implementation bound to the single root
// directory dentry: each successive read() call, regardless of the
// caller's buffer, yields the next directory entry's name and advances
// an internal cursor kept in the descriptor's Pos field.
var DirOps fd.Operations = dirOps{}

type regularOps struct{}

func (regularOps) Name() string { return "regular" }

func (regularOps) Open(d *fd.Descriptor, name string) error {
	if mounted == nil {
		return ErrNotFound
	}
	dent, err := mounted.ReadDentryByName(name)
	if err != nil {
		return err
	}
	if dent.Type != kconst.DentryTypeRegular {
		return ErrNotFound
	}
	if err := mounted.validateBlocks(dent.Inode); err != nil {
		return err
	}
	d.Inode = dent.Inode
	d.Pos = 0
	return nil
}

// validateBlocks checks that every data-block index named by inode's
// length-implied block list resolves within the image's data region,
// the up-front check file_regular's open() performs before a single
// read() ever walks the inode.
func (img *Image) validateBlocks(inode int) error {
	inodeOff, ok := img.inodeOffset(inode)
	if !ok {
		return ErrOutOfRange
	}
	size := int(binary.LittleEndian.Uint32(img.raw[inodeOff : inodeOff+4]))
	numBlocks := (size + kconst.BlockSize - 1) / kconst.BlockSize
	for b := 0; b < numBlocks; b++ {
		if b >= maxInodeBlocks {
			return ErrOutOfRange
		}
		entryOff := inodeOff + 4 + b*4
		dataBlockNum := int(binary.LittleEndian.Uint32(img.raw[entryOff : entryOff+4]))
		if dataBlockNum < 0 || dataBlockNum >= img.numDataBlk {
			return ErrOutOfRange
		}
	}
	return nil
}

func (regularOps) Read(d *fd.Descriptor, buf []byte, n int) (int, error) {
	if mounted == nil {
		return 0, ErrNotFound
	}
	got, err := mounted.ReadData(d.Inode, d.Pos, buf, n)
	if err != nil {
		return got, err
	}
	d.Pos += got
	return got, nil
}

func (regularOps) Write(d *fd.Descriptor, buf []byte, n int) (int, error) {
	return -1, fd.ErrUnsupported
}

func (regularOps) Close(d *fd.Descriptor) error { return nil }

type dirOps struct{}

func (dirOps) Name() string { return "dir" }

func (dirOps) Open(d *fd.Descriptor, name string) error {
	d.Pos = 0
	return nil
}

func (dirOps) Read(d *fd.Descriptor, buf []byte, n int) (int, error) {
	if mounted == nil {
		return 0, ErrNotFound
	}
	dent, err := mounted.ReadDentryByIndex(d.Pos)
	if err != nil {
		return 0, nil // past the last entry: read() returns 0, not an error
	}
	d.Pos++
	cap := min(n, len(buf))
	copied := copy(buf[:cap], dent.Name)
	// Null-terminate only when the caller's buffer outgrows the name
	// itself; a buffer exactly the name's length has no room left for
	// the NUL.
	if cap > copied {
		buf[copied] = 0
	}
	return copied, nil
}

func (dirOps) Write(d *fd.Descriptor, buf []byte, n int) (int, error) {
	return -1, fd.ErrUnsupported
}

func (dirOps) Close(d *fd.Descriptor) error { return nil }

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

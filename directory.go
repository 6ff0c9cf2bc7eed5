package tecnicofs

import (
	"bytes"
	"encoding/binary"
)

// dirEntry is (inumber, name): an entry is empty when inumber == -1. Names
// are stored as fixed-width, NUL-padded byte arrays of MaxFileName bytes.
type dirEntry struct {
	inumber int32
	name    [MaxFileName]byte
}

// dirEntrySize is the on-block-bytes width of one directory entry: a 4-byte
// inumber followed by the fixed-width name.
const dirEntrySize = 4 + MaxFileName

func getDirEntry(block []byte, i int) dirEntry {
	off := i * dirEntrySize
	var e dirEntry
	e.inumber = int32(binary.LittleEndian.Uint32(block[off : off+4]))
	copy(e.name[:], block[off+4:off+dirEntrySize])
	return e
}

func putDirEntry(block []byte, i int, e dirEntry) {
	off := i * dirEntrySize
	binary.LittleEndian.PutUint32(block[off:off+4], uint32(e.inumber))
	copy(block[off+4:off+dirEntrySize], e.name[:])
}

func encodeName(name string) [MaxFileName]byte {
	var buf [MaxFileName]byte
	n := copy(buf[:MaxFileName-1], name)
	buf[n] = 0
	return buf
}

func nameEquals(e [MaxFileName]byte, name string) bool {
	want := encodeName(name)
	// Compare only up to the first NUL, matching the original's
	// strncmp(..., MAX_FILE_NAME) semantics over NUL-padded arrays.
	return bytes.Equal(trimNUL(e[:]), trimNUL(want[:]))
}

func trimNUL(b []byte) []byte {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return b[:i]
	}
	return b
}

// directory implements add/find against the root directory's single data
// block, addressed through the parent inode's first direct block pointer.
type directory struct {
	inodes *inodeTable
	blocks *blockPool
}

func newDirectory(inodes *inodeTable, blocks *blockPool) *directory {
	return &directory{inodes: inodes, blocks: blocks}
}

// add places (child, name) into the first empty slot of parent's directory
// block, under parent's inode write lock. It fails if the directory is
// full, name is empty, or either inumber is invalid. Duplicate-name
// detection is the caller's duty (tfs_open serializes creates with the open
// mutex specifically so this never arises).
func (d *directory) add(parent, child int, name string) error {
	if !validInumber(parent) || !validInumber(child) {
		return newErr("directory.add", KindInvalidArgument, "invalid inumber")
	}
	if name == "" {
		return newErr("directory.add", KindInvalidArgument, "empty name")
	}

	d.inodes.cfg.insertDelay()

	d.inodes.locks[parent].Lock()
	defer d.inodes.locks[parent].Unlock()

	n := d.inodes.get(parent)
	if n == nil || n.Type != DirType {
		return newErr("directory.add", KindInvalidArgument, "parent is not a directory")
	}

	block := d.blocks.get(int(n.Direct[0]))
	if block == nil {
		return newErr("directory.add", KindIOError, "missing directory block")
	}

	for i := 0; i < MaxDirEntries; i++ {
		e := getDirEntry(block, i)
		if e.inumber == -1 {
			putDirEntry(block, i, dirEntry{inumber: int32(child), name: encodeName(name)})
			return nil
		}
	}
	return newErr("directory.add", KindResourceExhausted, "directory full")
}

// find returns the inumber of the first entry named name under parent's
// read lock, or -1 if absent.
func (d *directory) find(parent int, name string) int {
	d.inodes.cfg.insertDelay()

	if !validInumber(parent) {
		return -1
	}

	d.inodes.locks[parent].RLock()
	defer d.inodes.locks[parent].RUnlock()

	n := d.inodes.get(parent)
	if n == nil || n.Type != DirType {
		return -1
	}

	block := d.blocks.get(int(n.Direct[0]))
	if block == nil {
		return -1
	}

	for i := 0; i < MaxDirEntries; i++ {
		e := getDirEntry(block, i)
		if e.inumber != -1 && nameEquals(e.name, name) {
			return int(e.inumber)
		}
	}
	return -1
}

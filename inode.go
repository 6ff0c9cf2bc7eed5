package tecnicofs

import (
	"encoding/binary"
	"sync"
)

// InodeType distinguishes a plain file from the (single, root) directory.
type InodeType int

const (
	FileType InodeType = iota
	DirType
)

// Inode is the on-disk (here, in-memory) shape of a file or directory: a
// type, a size in bytes, INODE_DIRECT_BLOCK_SIZE direct block indices (-1
// meaning absent), and one indirect block index (-1 if absent). The indirect
// block, when present, holds BlockSize/4 additional int32 block indices.
type Inode struct {
	Type     InodeType
	Size     int
	Direct   [InodeDirectBlockSize]int32
	Indirect int32
}

// inodeTable is a fixed array of inodes with an allocation bitmap and one
// reader/writer lock per inode. Allocation uses the same
// read-then-upgrade protocol as the block pool.
type inodeTable struct {
	cfg    *Config
	blocks *blockPool

	allocMu sync.RWMutex
	taken   [InodeTableSize]bool

	locks [InodeTableSize]sync.RWMutex
	nodes [InodeTableSize]Inode
}

func newInodeTable(cfg *Config, blocks *blockPool) *inodeTable {
	return &inodeTable{cfg: cfg, blocks: blocks}
}

func validInumber(inumber int) bool {
	return inumber >= 0 && inumber < InodeTableSize
}

// create finds a free slot, marks it taken, and initializes the inode. For
// DirType it allocates one data block, sets size to BlockSize, and fills it
// with empty directory entries; on any failure the slot is freed again and
// -1 is returned. For FileType, size is 0 and all block pointers are -1.
func (t *inodeTable) create(typ InodeType) (int, error) {
	t.allocMu.RLock()
	inumber := -1
	for i := 0; i < InodeTableSize; i++ {
		t.cfg.insertDelay()

		if t.taken[i] {
			continue
		}

		t.allocMu.RUnlock()
		t.allocMu.Lock()
		if t.taken[i] {
			t.allocMu.Unlock()
			t.allocMu.RLock()
			continue
		}
		t.taken[i] = true
		inumber = i
		t.allocMu.Unlock()
		break
	}
	if inumber == -1 {
		// Loop fell through without taking the write lock on its last
		// iteration; the read lock is still held in that case.
		t.allocMu.RUnlock()
		return -1, newErr("inode.create", KindResourceExhausted, "inode table full")
	}

	t.cfg.insertDelay()
	n := &t.nodes[inumber]
	n.Type = typ

	if typ == DirType {
		blockIdx := t.blocks.alloc()
		if blockIdx == -1 {
			t.freeSlot(inumber)
			return -1, newErr("inode.create", KindResourceExhausted, "block pool full")
		}

		n.Size = BlockSize
		n.Direct[0] = int32(blockIdx)
		for i := 1; i < InodeDirectBlockSize; i++ {
			n.Direct[i] = -1
		}
		n.Indirect = -1

		block := t.blocks.get(blockIdx)
		for i := 0; i < MaxDirEntries; i++ {
			putDirEntry(block, i, dirEntry{inumber: -1})
		}
	} else {
		n.Size = 0
		for i := 0; i < InodeDirectBlockSize; i++ {
			n.Direct[i] = -1
		}
		n.Indirect = -1
	}

	return inumber, nil
}

func (t *inodeTable) freeSlot(inumber int) {
	t.allocMu.Lock()
	t.taken[inumber] = false
	t.allocMu.Unlock()
}

// delete releases all data blocks of inumber (including its indirect block,
// if present) and marks the slot free.
func (t *inodeTable) delete(inumber int) error {
	t.cfg.insertDelay()
	t.cfg.insertDelay()

	if !validInumber(inumber) {
		return newErr("inode.delete", KindInvalidArgument, "inumber out of range")
	}

	t.allocMu.Lock()
	defer t.allocMu.Unlock()

	if !t.taken[inumber] {
		return newErr("inode.delete", KindInvalidArgument, "inumber not in use")
	}

	t.locks[inumber].Lock()
	defer t.locks[inumber].Unlock()

	n := &t.nodes[inumber]
	if err := t.freeBlocksLocked(n); err != nil {
		return err
	}
	t.taken[inumber] = false
	return nil
}

// truncate releases all data blocks of inumber and resets its size to 0; the
// slot remains taken.
func (t *inodeTable) truncate(inumber int) error {
	t.cfg.insertDelay()
	t.cfg.insertDelay()

	if !validInumber(inumber) {
		return newErr("inode.truncate", KindInvalidArgument, "inumber out of range")
	}

	t.allocMu.RLock()
	defer t.allocMu.RUnlock()

	if !t.taken[inumber] {
		return newErr("inode.truncate", KindInvalidArgument, "inumber not in use")
	}

	t.locks[inumber].Lock()
	defer t.locks[inumber].Unlock()

	n := &t.nodes[inumber]
	if err := t.freeBlocksLocked(n); err != nil {
		return err
	}
	n.Size = 0
	return nil
}

// freeBlocksLocked releases every block an inode references -- direct and
// indirect -- and resets the pointers to -1, leaving block_at unable to
// return a freed index. Callers must hold the inode's write lock.
func (t *inodeTable) freeBlocksLocked(n *Inode) error {
	for i := 0; i < InodeDirectBlockSize; i++ {
		if n.Direct[i] != -1 {
			if err := t.blocks.free(int(n.Direct[i])); err != nil {
				return err
			}
			n.Direct[i] = -1
		}
	}
	if n.Indirect != -1 {
		// The indirect block's slots are only meaningful up to the
		// inode's size; past it they may hold stale bytes.
		used := (n.Size + BlockSize - 1) / BlockSize
		for i := InodeDirectBlockSize; i < used && i < InodeBlockCount; i++ {
			if b := t.blockAt(n, i); b != -1 {
				if err := t.blocks.free(b); err != nil {
					return err
				}
			}
		}
		if err := t.blocks.free(int(n.Indirect)); err != nil {
			return err
		}
		n.Indirect = -1
	}
	return nil
}

// get returns a pointer to the inode at inumber. The caller is responsible
// for any locking required around the access.
func (t *inodeTable) get(inumber int) *Inode {
	if !validInumber(inumber) {
		return nil
	}
	t.cfg.insertDelay()
	return &t.nodes[inumber]
}

const indirectEntrySize = 4 // sizeof(int32)

// blockAt returns the data block index stored at the given logical index of
// n, or -1 if index is out of range or no block has been installed there
// yet (including the case where the indirect block itself is unallocated).
func (t *inodeTable) blockAt(n *Inode, index int) int {
	if index < 0 || index >= InodeBlockCount {
		return -1
	}
	if index < InodeDirectBlockSize {
		return int(n.Direct[index])
	}

	if n.Indirect == -1 {
		return -1
	}
	block := t.blocks.get(int(n.Indirect))
	if block == nil {
		return -1
	}
	off := (index - InodeDirectBlockSize) * indirectEntrySize
	return int(int32(binary.LittleEndian.Uint32(block[off : off+indirectEntrySize])))
}

// setBlockAt installs blockIdx at the given logical index of n, lazily
// allocating the indirect block on first indirect write.
func (t *inodeTable) setBlockAt(n *Inode, index int, blockIdx int) error {
	if index < 0 || index >= InodeBlockCount {
		return newErr("inode.setBlockAt", KindInvalidArgument, "block index out of range")
	}
	if index < InodeDirectBlockSize {
		n.Direct[index] = int32(blockIdx)
		return nil
	}

	if n.Indirect == -1 {
		newIndirect := t.blocks.alloc()
		if newIndirect == -1 {
			return newErr("inode.setBlockAt", KindResourceExhausted, "block pool full")
		}
		// Publish the pointer only after the block is fully ready to
		// be read as an indirect array (see spec open question (c)).
		n.Indirect = int32(newIndirect)
	}

	block := t.blocks.get(int(n.Indirect))
	off := (index - InodeDirectBlockSize) * indirectEntrySize
	binary.LittleEndian.PutUint32(block[off:off+indirectEntrySize], uint32(int32(blockIdx)))
	return nil
}

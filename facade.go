package tecnicofs

import (
	"strings"
	"sync/atomic"
	"time"

	"github.com/jacobsa/syncutil"
)

// Tfs is the filesystem facade: init/lookup/open/close/read/write/truncate,
// plus the cooperative shutdown-after-all-closed operation. All FS state
// (inode table, block pool, root directory, open-file table) is reachable
// only through a Tfs value; there is no package-level mutable state.
type Tfs struct {
	cfg Config

	blocks  *blockPool
	inodes  *inodeTable
	dir     *directory
	openFT  *openFileTable

	// openMu serializes the name-lookup-then-maybe-create critical
	// section of Open so that two concurrent O_CREAT calls for the same
	// name can never both observe a miss and both create an inode (spec
	// section 9, "Open-time race (double create)"). It is acquired before,
	// never while holding, any inode rwlock (the lookup and directory
	// insertion under it take the root inode's lock), and released before
	// the optional truncate and handle allocation.
	openMu syncutil.InvariantMutex

	shuttingDown atomic.Bool
}

// New creates a fresh filesystem: the inode table, block pool and open-file
// table are allocated and the root directory inode is created at
// RootDirInum.
func New(cfg Config) (*Tfs, error) {
	if cfg.Clock == nil {
		cfg = DefaultConfig()
	}

	t := &Tfs{cfg: cfg}
	t.blocks = newBlockPool(&t.cfg)
	t.inodes = newInodeTable(&t.cfg, t.blocks)
	t.dir = newDirectory(t.inodes, t.blocks)
	t.openFT = newOpenFileTable()
	t.openMu = syncutil.NewInvariantMutex(func() {})

	root, err := t.inodes.create(DirType)
	if err != nil {
		return nil, err
	}
	if root != RootDirInum {
		return nil, newErr("tfs.New", KindIOError, "root inode did not land at RootDirInum")
	}

	return t, nil
}

// Destroy releases the filesystem's resources. After Destroy, a Tfs value
// must not be used again.
func (t *Tfs) Destroy() {
	// All backing storage is Go-managed memory; there is nothing to
	// release beyond letting the tables get garbage collected once the
	// last reference (this Tfs value) is dropped.
}

func validPathname(name string) bool {
	return len(name) > 1 && name[0] == '/'
}

// Lookup resolves name to an inumber via the root directory, or -1 if
// absent. name must be a valid pathname (non-empty, longer than one
// character, beginning with '/').
func (t *Tfs) Lookup(name string) (int, error) {
	if !validPathname(name) {
		return -1, newErr("tfs.Lookup", KindInvalidArgument, "invalid pathname")
	}
	return t.dir.find(RootDirInum, strings.TrimPrefix(name, "/")), nil
}

// Open resolves name under flags (a bitmask of OCreat, OTrunc, OAppend) and
// returns a fresh handle from the open-file table.
func (t *Tfs) Open(name string, flags int) (int, error) {
	if !validPathname(name) {
		return -1, newErr("tfs.Open", KindInvalidArgument, "invalid pathname")
	}
	if t.shuttingDown.Load() {
		return -1, newErr("tfs.Open", KindShuttingDown, "filesystem is shutting down")
	}

	bareName := strings.TrimPrefix(name, "/")

	t.openMu.Lock()
	inumber := t.dir.find(RootDirInum, bareName)

	var offset int
	var created bool

	if inumber >= 0 {
		n := t.inodes.get(inumber)
		if n == nil {
			t.openMu.Unlock()
			return -1, newErr("tfs.Open", KindIOError, "dangling directory entry")
		}
		if flags&OAppend != 0 {
			offset = n.Size
		} else {
			offset = 0
		}
	} else if flags&OCreat != 0 {
		var err error
		inumber, err = t.inodes.create(FileType)
		if err != nil {
			t.openMu.Unlock()
			return -1, err
		}
		created = true
		if err := t.dir.add(RootDirInum, inumber, bareName); err != nil {
			// Roll back: the created inode must not be left
			// dangling with no directory entry pointing at it.
			_ = t.inodes.delete(inumber)
			t.openMu.Unlock()
			return -1, err
		}
		offset = 0
	} else {
		t.openMu.Unlock()
		return -1, newErr("tfs.Open", KindNotFound, "no such file")
	}
	t.openMu.Unlock()

	if !created && flags&OTrunc != 0 {
		if err := t.inodes.truncate(inumber); err != nil {
			return -1, err
		}
		offset = 0
	}

	handle := t.openFT.add(inumber, offset)
	if handle == -1 {
		return -1, newErr("tfs.Open", KindResourceExhausted, "open-file table full")
	}
	return handle, nil
}

// Close removes the open-file entry for handle. It does not free inode
// data.
func (t *Tfs) Close(handle int) error {
	return t.openFT.remove(handle)
}

// Write copies up to len(data) bytes to handle starting at its current
// offset, growing the file and allocating blocks as needed, and returns the
// number of bytes actually written.
func (t *Tfs) Write(handle int, data []byte) (int, error) {
	entry := t.openFT.get(handle)
	if entry == nil {
		return -1, newErr("tfs.Write", KindInvalidArgument, "invalid handle")
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	n := t.inodes.get(entry.inumber)
	if n == nil {
		return -1, newErr("tfs.Write", KindInvalidArgument, "invalid inode")
	}

	t.inodes.locks[entry.inumber].Lock()
	defer t.inodes.locks[entry.inumber].Unlock()

	if entry.offset > n.Size {
		entry.offset = n.Size
	}

	toWrite := len(data)
	if entry.offset+toWrite > MaxFileSize {
		toWrite = MaxFileSize - entry.offset
	}

	written := toWrite
	currentBlock := entry.offset / BlockSize

	for toWrite > 0 {
		inBlock := BlockSize - entry.offset%BlockSize
		if inBlock > toWrite {
			inBlock = toWrite
		}

		if n.Size <= currentBlock*BlockSize {
			newBlock := t.blocks.alloc()
			if newBlock == -1 {
				return written - toWrite, newErr("tfs.Write", KindResourceExhausted, "block pool full")
			}
			if err := t.inodes.setBlockAt(n, currentBlock, newBlock); err != nil {
				return written - toWrite, err
			}
		}

		blockIdx := t.inodes.blockAt(n, currentBlock)
		block := t.blocks.get(blockIdx)
		if block == nil {
			return written - toWrite, newErr("tfs.Write", KindIOError, "missing data block")
		}

		copy(block[entry.offset%BlockSize:], data[written-toWrite:written-toWrite+inBlock])

		entry.offset += inBlock
		if entry.offset > n.Size {
			n.Size = entry.offset
		}

		currentBlock++
		toWrite -= inBlock
	}

	return written, nil
}

// Read copies up to len(out) bytes into out starting at handle's current
// offset and returns the number of bytes actually read (0 at EOF).
func (t *Tfs) Read(handle int, out []byte) (int, error) {
	entry := t.openFT.get(handle)
	if entry == nil {
		return -1, newErr("tfs.Read", KindInvalidArgument, "invalid handle")
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	n := t.inodes.get(entry.inumber)
	if n == nil {
		return -1, newErr("tfs.Read", KindInvalidArgument, "invalid inode")
	}

	t.inodes.locks[entry.inumber].RLock()
	defer t.inodes.locks[entry.inumber].RUnlock()

	if entry.offset > n.Size {
		entry.offset = n.Size
	}

	toRead := n.Size - entry.offset
	if toRead > len(out) {
		toRead = len(out)
	}

	read := toRead
	currentBlock := entry.offset / BlockSize

	for toRead > 0 {
		inBlock := BlockSize - entry.offset%BlockSize
		if inBlock > toRead {
			inBlock = toRead
		}

		blockIdx := t.inodes.blockAt(n, currentBlock)
		block := t.blocks.get(blockIdx)
		if block == nil {
			return read - toRead, newErr("tfs.Read", KindIOError, "missing data block")
		}

		copy(out[read-toRead:read-toRead+inBlock], block[entry.offset%BlockSize:])

		entry.offset += inBlock
		currentBlock++
		toRead -= inBlock
	}

	return read, nil
}

// Truncate frees all blocks of inumber (and its indirect block) and resets
// size to 0, holding the inode's write lock so readers and writers are
// excluded for the duration.
func (t *Tfs) Truncate(inumber int) error {
	return t.inodes.truncate(inumber)
}

// ShutdownAfterAllClosed sets a one-way "no new opens" flag, blocks until
// every open-file entry is free, then destroys the FS state. New Open calls
// made after the flag is set fail with KindShuttingDown.
func (t *Tfs) ShutdownAfterAllClosed() error {
	t.shuttingDown.Store(true)

	for t.openFT.countTaken() > 0 {
		time.Sleep(time.Millisecond)
	}

	t.Destroy()
	return nil
}

package tecnicofs

import "sync"

// blockPool is a fixed pool of DataBlocks equally sized blocks of BLOCK_SIZE
// bytes, plus a parallel allocation bitmap. Blocks carry raw bytes; callers
// decide whether a given block holds file payload, an indirect pointer
// array, or directory entries.
type blockPool struct {
	cfg *Config

	// mu guards taken. The allocator uses a read-lock-then-upgrade
	// protocol: scan under a read lock,
	// drop it, take the write lock, recheck the candidate slot, and
	// either commit or resume scanning under a fresh read lock.
	mu    sync.RWMutex
	taken [DataBlocks]bool

	data [DataBlocks][BlockSize]byte
}

func newBlockPool(cfg *Config) *blockPool {
	return &blockPool{cfg: cfg}
}

// alloc scans for the first free block, lowest index first, and marks it
// taken. It returns -1 if the pool is exhausted.
func (p *blockPool) alloc() int {
	p.mu.RLock()
	for i := 0; i < DataBlocks; i++ {
		p.cfg.insertDelay()

		if p.taken[i] {
			continue
		}

		p.mu.RUnlock()
		p.mu.Lock()
		if p.taken[i] {
			// Lost the race to another allocator; recheck from
			// where we left off under a read lock again.
			p.mu.Unlock()
			p.mu.RLock()
			continue
		}
		p.taken[i] = true
		p.mu.Unlock()
		return i
	}
	p.mu.RUnlock()
	return -1
}

// free marks a taken block free. It returns an error if index is out of
// range.
func (p *blockPool) free(index int) error {
	if index < 0 || index >= DataBlocks {
		return newErr("block.free", KindInvalidArgument, "block index out of range")
	}

	p.cfg.insertDelay()

	p.mu.Lock()
	p.taken[index] = false
	p.mu.Unlock()
	return nil
}

// get returns a mutable view of the block's bytes. It does not lock: callers
// serialize access through whatever structure (inode rwlock, directory
// parent lock) owns the reference to this block index. Returns nil if index
// is out of range.
func (p *blockPool) get(index int) []byte {
	if index < 0 || index >= DataBlocks {
		return nil
	}

	p.cfg.insertDelay()
	return p.data[index][:]
}

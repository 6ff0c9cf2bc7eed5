package tecnicofs

import (
	"sync"

	"github.com/jacobsa/syncutil"
)

// openFileEntry is (inumber, offset, lock, taken). offset is a byte
// position, initialized at open time and advanced by reads and writes; the
// entry's own mutex serializes operations sharing the handle so that offset
// progresses monotonically without interleaving byte ranges.
type openFileEntry struct {
	mu      sync.Mutex
	inumber int
	offset  int
}

// openFileTable is a fixed-size table of handles with a per-entry mutex and
// one table-wide allocation mutex. The allocation mutex is a
// syncutil.InvariantMutex whose invariant hook, checkInvariants, asserts
// nothing beyond what add/remove already guarantee by construction.
type openFileTable struct {
	allocMu syncutil.InvariantMutex // GUARDS taken
	taken   [MaxOpenFiles]bool
	entries [MaxOpenFiles]openFileEntry
}

func newOpenFileTable() *openFileTable {
	t := &openFileTable{}
	t.allocMu = syncutil.NewInvariantMutex(t.checkInvariants)
	return t
}

// checkInvariants is a hook for syncutil.InvariantMutex; add/remove already
// keep taken and entries in lockstep by construction, so there is nothing
// further to assert here.
func (t *openFileTable) checkInvariants() {}

func validHandle(h int) bool {
	return h >= 0 && h < MaxOpenFiles
}

// add finds a free slot, marks it taken, stores (inumber, offset), and
// returns its index, or -1 if the table is full.
func (t *openFileTable) add(inumber, offset int) int {
	t.allocMu.Lock()
	defer t.allocMu.Unlock()

	for i := 0; i < MaxOpenFiles; i++ {
		if !t.taken[i] {
			t.taken[i] = true
			t.entries[i].mu.Lock()
			t.entries[i].inumber = inumber
			t.entries[i].offset = offset
			t.entries[i].mu.Unlock()
			return i
		}
	}
	return -1
}

// remove marks handle free. It fails if handle is invalid or already free;
// it does not consult the inode.
func (t *openFileTable) remove(handle int) error {
	t.allocMu.Lock()
	defer t.allocMu.Unlock()

	if !validHandle(handle) || !t.taken[handle] {
		return newErr("openfile.remove", KindInvalidArgument, "invalid or already-closed handle")
	}
	t.taken[handle] = false
	return nil
}

// get returns a pointer to handle's entry. Operations on the entry must hold
// its own mutex; this method performs no locking itself.
func (t *openFileTable) get(handle int) *openFileEntry {
	if !validHandle(handle) {
		return nil
	}
	return &t.entries[handle]
}

// countTaken reports how many handles are currently in use, used by
// shutdown-after-all-closed to know when it may proceed.
func (t *openFileTable) countTaken() int {
	t.allocMu.Lock()
	defer t.allocMu.Unlock()

	n := 0
	for _, v := range t.taken {
		if v {
			n++
		}
	}
	return n
}

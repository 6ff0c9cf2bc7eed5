package tecnicofs

import (
	"runtime"
	"time"

	"github.com/jacobsa/timeutil"
)

// Compile-time limits. These are invariants for the implementer, not runtime
// knobs: changing them changes the shape of the inode/block tables.
// PipeStringLength and MaxFileName mirror wire.StringLength, which the wire
// package defines separately; changing them here does not change the wire
// framing.
const (
	RootDirInum = 0

	BlockSize  = 1024
	DataBlocks = 1024

	InodeTableSize       = 50
	MaxOpenFiles         = 20
	InodeDirectBlockSize = 10
	// InodeBlockCount is the maximum number of blocks a single inode can
	// reference: the direct slots, plus one indirect block's worth of
	// int32 pointers.
	InodeBlockCount = InodeDirectBlockSize + BlockSize/4

	MaxFileName             = 40
	PipeStringLength        = 40
	SimultaneousConnections = 50

	// MaxFileSize is the largest a file may grow, in bytes.
	MaxFileSize = InodeBlockCount * BlockSize

	// MaxDirEntries is how many (inumber, name) pairs fit in the root
	// directory's single data block.
	MaxDirEntries = BlockSize / dirEntrySize
)

// tfs_open flags, matching the wire protocol's flags bitmask exactly.
const (
	OCreat  = 0b001
	OTrunc  = 0b010
	OAppend = 0b100
)

// Config bundles the runtime knobs that are not part of the wire protocol:
// how much synthetic latency to charge against block-pool and inode-table
// accesses, and the clock that latency is measured against. Tests set Delay
// to zero to run at full speed; production defaults approximate the
// original implementation's busy-loop delay.
type Config struct {
	// Delay is the synthetic per-access latency applied on every inode
	// and block pool access. It models storage latency; it is not a
	// correctness requirement, and implementations must not optimize it
	// away (see insertDelay below).
	Delay time.Duration

	// Clock supplies wall-clock time for the delay loop. Tests can swap
	// in a fake to make the delay deterministic without actually
	// sleeping real wall time (by setting Delay to zero alongside it).
	Clock timeutil.Clock
}

// DefaultConfig returns the configuration used when none is supplied:
// a small non-zero delay (enough to be observable under a race detector
// without slowing tests to a crawl) and the real wall clock.
func DefaultConfig() Config {
	return Config{
		Delay: 50 * time.Microsecond,
		Clock: timeutil.RealClock(),
	}
}

// insertDelay spins until Delay has elapsed according to Clock. It is a
// direct translation of the original implementation's touch_all_memory
// busy-loop: the point is to burn wall-clock time on every access to a
// "persistent" structure without relying on the scheduler to put the
// goroutine to sleep, so that accesses made while holding short critical
// sections contend realistically.
func (c *Config) insertDelay() {
	if c == nil || c.Delay <= 0 || c.Clock == nil {
		return
	}
	deadline := c.Clock.Now().Add(c.Delay)
	for c.Clock.Now().Before(deadline) {
		runtime.Gosched()
	}
}

package tecnicofs

import (
	"sync"
	"testing"

	"github.com/jacobsa/timeutil"

	. "github.com/jacobsa/oglematchers"
	. "github.com/jacobsa/ogletest"
)

func TestBlock(t *testing.T) { RunTests(t) }

type BlockPoolTest struct {
	cfg *Config
	p   *blockPool
}

func init() { RegisterTestSuite(&BlockPoolTest{}) }

func (t *BlockPoolTest) SetUp(ti *TestInfo) {
	t.cfg = &Config{Delay: 0, Clock: timeutil.RealClock()}
	t.p = newBlockPool(t.cfg)
}

func (t *BlockPoolTest) AllocReturnsDistinctLowestIndexFirst() {
	a := t.p.alloc()
	b := t.p.alloc()
	AssertEq(0, a)
	AssertEq(1, b)
}

func (t *BlockPoolTest) FreeMakesASlotReusable() {
	a := t.p.alloc()
	AssertEq(nil, t.p.free(a))
	b := t.p.alloc()
	ExpectEq(a, b)
}

func (t *BlockPoolTest) FreeRejectsOutOfRangeIndex() {
	ExpectNe(nil, t.p.free(-1))
	ExpectNe(nil, t.p.free(DataBlocks))
}

func (t *BlockPoolTest) GetReturnsAWritableView() {
	idx := t.p.alloc()
	b := t.p.get(idx)
	AssertEq(BlockSize, len(b))
	b[0] = 0x42
	ExpectEq(byte(0x42), t.p.get(idx)[0])
}

func (t *BlockPoolTest) GetOutOfRangeReturnsNil() {
	ExpectTrue(t.p.get(-1) == nil)
	ExpectTrue(t.p.get(DataBlocks) == nil)
}

func (t *BlockPoolTest) ExhaustionReturnsMinusOne() {
	for i := 0; i < DataBlocks; i++ {
		AssertNe(-1, t.p.alloc())
	}
	ExpectEq(-1, t.p.alloc())
}

func (t *BlockPoolTest) ConcurrentAllocNeverDoubleAllocates() {
	const goroutines = 32
	seen := make([]int, goroutines)
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func(i int) {
			defer wg.Done()
			seen[i] = t.p.alloc()
		}(i)
	}
	wg.Wait()

	unique := map[int]bool{}
	for _, idx := range seen {
		AssertNe(-1, idx)
		AssertFalse(unique[idx])
		unique[idx] = true
	}
	ExpectEq(goroutines, len(unique))
}

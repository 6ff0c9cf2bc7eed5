package tecnicofs

import (
	"testing"

	"github.com/jacobsa/timeutil"

	. "github.com/jacobsa/oglematchers"
	. "github.com/jacobsa/ogletest"
)

func TestInode(t *testing.T) { RunTests(t) }

type InodeTableTest struct {
	cfg    *Config
	blocks *blockPool
	table  *inodeTable
}

func init() { RegisterTestSuite(&InodeTableTest{}) }

func (t *InodeTableTest) SetUp(ti *TestInfo) {
	t.cfg = &Config{Delay: 0, Clock: timeutil.RealClock()}
	t.blocks = newBlockPool(t.cfg)
	t.table = newInodeTable(t.cfg, t.blocks)
}

func (t *InodeTableTest) CreateDir_AllocatesOneBlockAndEmptyEntries() {
	inumber, err := t.table.create(DirType)
	AssertEq(nil, err)

	n := t.table.get(inumber)
	AssertEq(BlockSize, n.Size)
	AssertNe(int32(-1), n.Direct[0])

	block := t.blocks.get(int(n.Direct[0]))
	e := getDirEntry(block, 0)
	ExpectEq(int32(-1), e.inumber)
}

func (t *InodeTableTest) CreateFile_SizeZeroAllBlocksAbsent() {
	inumber, err := t.table.create(FileType)
	AssertEq(nil, err)

	n := t.table.get(inumber)
	ExpectEq(0, n.Size)
	for i := 0; i < InodeDirectBlockSize; i++ {
		ExpectEq(int32(-1), n.Direct[i])
	}
	ExpectEq(int32(-1), n.Indirect)
}

func (t *InodeTableTest) CreateExhaustion() {
	for i := 0; i < InodeTableSize; i++ {
		_, err := t.table.create(FileType)
		AssertEq(nil, err)
	}
	_, err := t.table.create(FileType)
	AssertNe(nil, err)
	ExpectEq(KindResourceExhausted, KindOf(err))
}

func (t *InodeTableTest) DeleteFreesBlocksAndSlot() {
	inumber, err := t.table.create(FileType)
	AssertEq(nil, err)

	n := t.table.get(inumber)
	blockIdx := t.blocks.alloc()
	AssertEq(nil, t.table.setBlockAt(n, 0, blockIdx))

	AssertEq(nil, t.table.delete(inumber))

	// The slot is free again: a fresh create should be able to reuse it.
	reused, err := t.table.create(FileType)
	AssertEq(nil, err)
	ExpectEq(inumber, reused)

	// And the block that was attached is free for reallocation.
	ExpectEq(blockIdx, t.blocks.alloc())
}

func (t *InodeTableTest) TruncateZeroesSizeAndEveryBlockPointer() {
	inumber, err := t.table.create(FileType)
	AssertEq(nil, err)

	n := t.table.get(inumber)
	for i := 0; i < InodeDirectBlockSize; i++ {
		b := t.blocks.alloc()
		AssertEq(nil, t.table.setBlockAt(n, i, b))
	}
	indirectBlock := t.blocks.alloc()
	AssertEq(nil, t.table.setBlockAt(n, InodeDirectBlockSize, indirectBlock))
	n.Size = (InodeDirectBlockSize + 1) * BlockSize

	AssertEq(nil, t.table.truncate(inumber))

	n = t.table.get(inumber)
	ExpectEq(0, n.Size)
	for i := 0; i < InodeBlockCount; i++ {
		ExpectEq(-1, t.table.blockAt(n, i))
	}
}

func (t *InodeTableTest) BlockAtSetBlockAt_DirectAndIndirect() {
	inumber, err := t.table.create(FileType)
	AssertEq(nil, err)
	n := t.table.get(inumber)

	b0 := t.blocks.alloc()
	AssertEq(nil, t.table.setBlockAt(n, 0, b0))
	ExpectEq(b0, t.table.blockAt(n, 0))

	bIndirect := t.blocks.alloc()
	AssertEq(nil, t.table.setBlockAt(n, InodeDirectBlockSize+5, bIndirect))
	ExpectEq(bIndirect, t.table.blockAt(n, InodeDirectBlockSize+5))

	// A slot of the indirect block that was never written reads back as
	// the block's zero value (index 0), not a sentinel -- callers must
	// only read indices they have themselves written via setBlockAt.
	ExpectEq(0, t.table.blockAt(n, InodeDirectBlockSize+6))
}

func (t *InodeTableTest) BlockAtOutOfRangeReturnsMinusOne() {
	inumber, err := t.table.create(FileType)
	AssertEq(nil, err)
	n := t.table.get(inumber)

	ExpectEq(-1, t.table.blockAt(n, -1))
	ExpectEq(-1, t.table.blockAt(n, InodeBlockCount))
}

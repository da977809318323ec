package ring

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBacklogGrowsAcrossWrap(t *testing.T) {
	b := newBacklog(2)
	b.PushBack(Nop().WithUserData(1))
	b.PushBack(Nop().WithUserData(2))
	assert.Equal(t, uint64(1), b.PopFront().UserData)
	b.PushBack(Nop().WithUserData(3))
	b.PushBack(Nop().WithUserData(4))

	assert.Equal(t, 3, b.Len())
	for _, want := range []uint64{2, 3, 4} {
		assert.Equal(t, want, b.Front().UserData)
		assert.Equal(t, want, b.PopFront().UserData)
	}
	assert.Zero(t, b.Len())
}

func TestOpConstructors(t *testing.T) {
	buf := make([]byte, 16)
	op := ReadFixed(3, buf[:8], 0, 2).WithFixedFile(1).WithUserData(9)
	assert.Equal(t, OpReadFixed, op.Code)
	assert.Equal(t, int32(1), op.Fd)
	assert.Equal(t, FlagFixedFile, op.Flags&FlagFixedFile)
	assert.Equal(t, uint16(2), op.BufIndex)
	assert.Equal(t, uint64(9), op.UserData)
	assert.Equal(t, "read_fixed(fd=1 len=8 ud=0x9)", op.String())

	assert.Equal(t, PollIn, PollAdd(4, PollIn).OpFlags)
	assert.Equal(t, "opcode(99)", Opcode(99).String())
}

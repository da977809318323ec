package ring_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/y001j/uringhttp/ring"
	"github.com/y001j/uringhttp/ring/ringtest"
)

func userData(ops []ring.Op) []uint64 {
	out := make([]uint64, 0, len(ops))
	for _, op := range ops {
		out = append(out, op.UserData)
	}
	return out
}

func TestProxyBacklogKeepsOrderAndLosesNothing(t *testing.T) {
	kr := ringtest.New(4)
	p := ring.NewProxy(kr, 2)

	const extra = 10
	var want []uint64
	for i := 0; i < 4+extra; i++ {
		p.Push(ring.Nop().WithUserData(uint64(i)))
		want = append(want, uint64(i))
	}
	require.Equal(t, extra, p.Backlogged())
	assert.Equal(t, uint64(extra), p.Deferred())

	for rounds := 0; p.Backlogged() > 0; rounds++ {
		require.Less(t, rounds, 100, "backlog never drained")
		_, err := p.SubmitAndWait(0)
		require.NoError(t, err)
		p.DrainBacklog()
	}
	_, err := p.SubmitAndWait(0)
	require.NoError(t, err)

	assert.Equal(t, want, userData(kr.Submitted))
}

func TestProxyPushQueuesBehindBacklog(t *testing.T) {
	kr := ringtest.New(1)
	p := ring.NewProxy(kr, 1)

	p.Push(ring.Nop().WithUserData(1))
	p.Push(ring.Nop().WithUserData(2))
	require.Equal(t, 1, p.Backlogged())

	_, err := p.SubmitAndWait(0)
	require.NoError(t, err)

	// The ring has room again, but 3 must not overtake 2.
	p.Push(ring.Nop().WithUserData(3))
	assert.Equal(t, 2, p.Backlogged())
	assert.Empty(t, kr.Queued())

	p.DrainBacklog()
	_, err = p.SubmitAndWait(0)
	require.NoError(t, err)
	p.DrainBacklog()
	_, err = p.SubmitAndWait(0)
	require.NoError(t, err)

	assert.Equal(t, []uint64{1, 2, 3}, userData(kr.Submitted))
}

func TestProxyPushManyIsAllOrNothing(t *testing.T) {
	kr := ringtest.New(3)
	p := ring.NewProxy(kr, 4)

	p.Push(ring.Nop().WithUserData(1))
	p.PushMany([]ring.Op{
		ring.Nop().WithUserData(2),
		ring.Nop().WithUserData(3),
		ring.Nop().WithUserData(4),
	})

	assert.Len(t, kr.Queued(), 1)
	assert.Equal(t, 3, p.Backlogged())

	p.PushMany(nil)
	assert.Equal(t, 3, p.Backlogged())

	kr2 := ringtest.New(3)
	p2 := ring.NewProxy(kr2, 4)
	p2.PushMany([]ring.Op{ring.Nop(), ring.Nop()})
	assert.Len(t, kr2.Queued(), 2)
	assert.Zero(t, p2.Backlogged())
}

func TestProxyDrainFlushesOnceWhenFull(t *testing.T) {
	kr := ringtest.New(2)
	p := ring.NewProxy(kr, 4)
	for i := 0; i < 5; i++ {
		p.Push(ring.Nop().WithUserData(uint64(i)))
	}
	require.Equal(t, 3, p.Backlogged())

	moved := p.DrainBacklog()
	assert.Equal(t, 2, moved)
	assert.Equal(t, 1, p.Backlogged())
	assert.Equal(t, []uint64{0, 1}, userData(kr.Submitted))
	assert.Equal(t, []uint64{2, 3}, userData(kr.Queued()))
}

func TestProxyDrainStopsOnSubmitError(t *testing.T) {
	kr := ringtest.New(1)
	p := ring.NewProxy(kr, 1)
	p.Push(ring.Nop())
	p.Push(ring.Nop())

	kr.SubmitErr = unix.EBADF
	assert.Zero(t, p.DrainBacklog())
	assert.Equal(t, 1, p.Backlogged())
}

func TestProxySubmitAndWaitTransientErrors(t *testing.T) {
	for _, errno := range []unix.Errno{unix.EBUSY, unix.EINTR, unix.EAGAIN, unix.ETIME} {
		kr := ringtest.New(4)
		p := ring.NewProxy(kr, 1)
		kr.WaitErr = errno

		n, err := p.SubmitAndWait(1)
		assert.NoError(t, err, errno.Error())
		assert.Zero(t, n)
	}

	kr := ringtest.New(4)
	p := ring.NewProxy(kr, 1)
	kr.WaitErr = unix.EBADF
	_, err := p.SubmitAndWait(1)
	assert.ErrorIs(t, err, unix.EBADF)
}

func TestProxyPollCompletionDrains(t *testing.T) {
	kr := ringtest.New(4)
	p := ring.NewProxy(kr, 1)
	p.Push(ring.Nop().WithUserData(5))
	p.Push(ring.Nop().WithUserData(6))
	_, err := p.SubmitAndWait(1)
	require.NoError(t, err)
	kr.Complete(1, 0)
	kr.Complete(0, -int32(unix.ECANCELED))

	c, ok := p.PollCompletion()
	require.True(t, ok)
	assert.Equal(t, uint64(6), c.UserData)
	assert.NoError(t, c.Err())

	c, ok = p.PollCompletion()
	require.True(t, ok)
	assert.ErrorIs(t, c.Err(), unix.ECANCELED)

	_, ok = p.PollCompletion()
	assert.False(t, ok)
}

func TestProxyRegistration(t *testing.T) {
	kr := ringtest.New(4)
	p := ring.NewProxy(kr, 1)

	assert.ErrorIs(t, p.RegisterBuffers(nil), ring.ErrEmptyRegistration)
	require.NoError(t, p.RegisterBuffers([][]byte{make([]byte, 8)}))
	assert.ErrorIs(t, p.RegisterBuffers([][]byte{make([]byte, 8)}), ring.ErrAlreadyRegistered)
	require.NoError(t, p.RegisterFiles([]int32{3}))
	assert.ErrorIs(t, p.RegisterFiles([]int32{3}), ring.ErrAlreadyRegistered)

	require.NoError(t, p.Unregister())
	assert.Nil(t, kr.Buffers)
	assert.Nil(t, kr.Files)
	require.NoError(t, p.Unregister())

	require.NoError(t, p.Close())
	assert.True(t, kr.Closed)
	require.NoError(t, p.Close())

	_, err := p.SubmitAndWait(1)
	assert.ErrorIs(t, err, ring.ErrClosed)
}
